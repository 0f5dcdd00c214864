package measure

import (
	"fmt"
	"math"

	"github.com/golang/geo/r2"
)

// PostureMode selects the posture scoring formula.
type PostureMode int

const (
	// PostureSimple scores the neck angle only.
	PostureSimple PostureMode = iota
	// PostureExtended averages the neck score with a back (shoulder-to-hip) score.
	PostureExtended
)

func (m PostureMode) String() string {
	switch m {
	case PostureSimple:
		return "simple"
	case PostureExtended:
		return "extended"
	default:
		return fmt.Sprintf("PostureMode(%d)", int(m))
	}
}

// ParsePostureMode parses "simple" or "extended".
func ParsePostureMode(s string) (PostureMode, error) {
	switch s {
	case "simple", "":
		return PostureSimple, nil
	case "extended":
		return PostureExtended, nil
	default:
		return PostureSimple, fmt.Errorf("unknown posture mode %q", s)
	}
}

// Posture grade bands.
const (
	GradeGood = "good"
	GradeFair = "fair"
	GradePoor = "poor"
)

// PostureGrade buckets a score into good (>= 80), fair (>= 50) or poor.
func PostureGrade(score int) string {
	switch {
	case score >= 80:
		return GradeGood
	case score >= 50:
		return GradeFair
	default:
		return GradePoor
	}
}

// tiltAngle returns the angle in degrees between the upright vertical and
// the segment from lower up to upper. Image y grows downward, so the
// vertical component is lower.y - upper.y; it is floored at 1 pixel so a
// collapsed or inverted segment reads as strongly tilted rather than NaN.
func tiltAngle(upper, lower r2.Point) float64 {
	vx := upper.X - lower.X
	vy := lower.Y - upper.Y
	return math.Atan2(math.Abs(vx), math.Max(1, vy)) * 180 / math.Pi
}

// angleScore maps an angle onto [0,100]: 0 degrees scores 100 and maxDeg or
// more scores 0.
func angleScore(angleDeg, maxDeg float64) int {
	if math.IsNaN(angleDeg) {
		return 0
	}
	a := math.Min(maxDeg, math.Max(0, angleDeg))
	return int(math.Round(100 * (1 - a/maxDeg)))
}

// roundTenth rounds to one decimal place for diagnostic output.
func roundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}
