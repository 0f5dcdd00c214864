package units

import (
	"math"
	"testing"
)

func TestConvertLength(t *testing.T) {
	tests := []struct {
		name     string
		lengthCM float64
		units    string
		expected float64
	}{
		{"40 cm to mm", 40.0, MM, 400.0},
		{"40 cm to cm", 40.0, CM, 40.0},
		{"175 cm to m", 175.0, M, 1.75},
		{"2.54 cm to in", 2.54, IN, 1.0},
		{"shoulders 45.72 cm to in", 45.72, IN, 18.0},
		{"unknown units default to cm", 40.0, "unknown", 40.0},
		{"0 cm to in", 0.0, IN, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ConvertLength(tt.lengthCM, tt.units)
			if math.Abs(result-tt.expected) > 1e-9 {
				t.Errorf("ConvertLength(%f, %s) = %f, want %f", tt.lengthCM, tt.units, result, tt.expected)
			}
		})
	}
}

func TestToCentimetresRoundTrip(t *testing.T) {
	for _, u := range ValidUnits {
		t.Run(u, func(t *testing.T) {
			got := ToCentimetres(ConvertLength(42.0, u), u)
			if math.Abs(got-42.0) > 1e-9 {
				t.Errorf("round trip through %s = %f, want 42", u, got)
			}
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		expected bool
	}{
		{"valid mm", MM, true},
		{"valid cm", CM, true},
		{"valid m", M, true},
		{"valid in", IN, true},
		{"invalid unit", "ft", false},
		{"empty string", "", false},
		{"case sensitive", "CM", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := IsValid(tt.unit)
			if result != tt.expected {
				t.Errorf("IsValid(%s) = %v, want %v", tt.unit, result, tt.expected)
			}
		})
	}
}

func TestGetValidUnitsString(t *testing.T) {
	expected := "mm, cm, m, in"
	result := GetValidUnitsString()
	if result != expected {
		t.Errorf("GetValidUnitsString() = %s, want %s", result, expected)
	}
}
