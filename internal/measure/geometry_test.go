package measure

import (
	"testing"

	"github.com/golang/geo/r2"
	"github.com/stretchr/testify/assert"
)

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b r2.Point
		want float64
	}{
		{"same point", r2.Point{X: 3, Y: 4}, r2.Point{X: 3, Y: 4}, 0},
		{"3-4-5", r2.Point{X: 0, Y: 0}, r2.Point{X: 3, Y: 4}, 5},
		{"horizontal", r2.Point{X: 80, Y: 100}, r2.Point{X: 120, Y: 100}, 40},
		{"negative coordinates", r2.Point{X: -1, Y: -1}, r2.Point{X: 2, Y: 3}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Distance(tt.a, tt.b), 1e-12)
			assert.Equal(t, Distance(tt.a, tt.b), Distance(tt.b, tt.a))
		})
	}
}

func TestMidpoint(t *testing.T) {
	got := Midpoint(r2.Point{X: 85, Y: 300}, r2.Point{X: 115, Y: 300})
	assert.Equal(t, r2.Point{X: 100, Y: 300}, got)

	far := Midpoint(r2.Point{X: 1e308, Y: -1e308}, r2.Point{X: 1e308, Y: -1e308})
	assert.Equal(t, r2.Point{X: 1e308, Y: -1e308}, far, "no overflow for large finite input")
}

func TestParsePostureMode(t *testing.T) {
	m, err := ParsePostureMode("extended")
	assert.NoError(t, err)
	assert.Equal(t, PostureExtended, m)

	m, err = ParsePostureMode("")
	assert.NoError(t, err)
	assert.Equal(t, PostureSimple, m)

	_, err = ParsePostureMode("strict")
	assert.Error(t, err)
	assert.Equal(t, "PostureMode(7)", PostureMode(7).String())
}

func TestPostureGrade(t *testing.T) {
	assert.Equal(t, GradeGood, PostureGrade(100))
	assert.Equal(t, GradeGood, PostureGrade(80))
	assert.Equal(t, GradeFair, PostureGrade(79))
	assert.Equal(t, GradeFair, PostureGrade(50))
	assert.Equal(t, GradePoor, PostureGrade(49))
	assert.Equal(t, GradePoor, PostureGrade(0))
}
