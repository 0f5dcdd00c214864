package measure

import (
	"math"

	"github.com/golang/geo/r2"
)

// Distance returns the Euclidean distance between a and b. Points far
// enough apart overflow to +Inf; callers treat that as no measurement.
func Distance(a, b r2.Point) float64 {
	return a.Sub(b).Norm()
}

// Midpoint returns the arithmetic mean of a and b. Each coordinate is halved
// before adding so the result stays finite for any finite input.
func Midpoint(a, b r2.Point) r2.Point {
	return r2.Point{X: a.X/2 + b.X/2, Y: a.Y/2 + b.Y/2}
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
