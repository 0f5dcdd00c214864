package measure

import "math"

// Output is the result of evaluating one frame. A nil field means the
// landmarks it depends on were absent (or, for *Unit fields, that the engine
// is uncalibrated). Calibrated records whether a calibration was in effect
// when the frame was evaluated.
type Output struct {
	Calibrated        bool     `json:"calibrated"`
	ShoulderWidthPx   *float64 `json:"shoulder_width_px"`
	ShoulderWidthUnit *float64 `json:"shoulder_width_unit"`
	HeightPx          *float64 `json:"height_px"` // smoothed
	HeightUnit        *float64 `json:"height_unit"`
	PostureScore      *int     `json:"posture_score"` // 0-100
	PostureAngleDeg   *float64 `json:"posture_angle_deg"`
	BackAngleDeg      *float64 `json:"back_angle_deg,omitempty"` // extended mode only
	PostureGrade      string   `json:"posture_grade,omitempty"`
}

// Empty reports whether no measurement was produced.
func (o Output) Empty() bool {
	return o.ShoulderWidthPx == nil && o.HeightPx == nil && o.PostureScore == nil
}

func ptr[T any](v T) *T { return &v }

// roundHalfUp rounds x.5 toward positive infinity.
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
