package session

import (
	"fmt"
	"strings"

	"github.com/banshee-data/mirrorfit/internal/measure"
)

func describe(out measure.Output) string {
	var parts []string
	if out.ShoulderWidthPx != nil {
		parts = append(parts, fmt.Sprintf("shoulders=%.1fpx", *out.ShoulderWidthPx))
	}
	if out.HeightPx != nil {
		parts = append(parts, fmt.Sprintf("height=%.1fpx", *out.HeightPx))
	}
	if out.PostureScore != nil {
		parts = append(parts, fmt.Sprintf("posture=%d/100", *out.PostureScore))
	}
	if len(parts) == 0 {
		return "no measurements"
	}
	return strings.Join(parts, " ")
}
