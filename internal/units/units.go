// Package units provides shared constants and validation for length units
package units

// Unit constants
const (
	MM = "mm"
	CM = "cm"
	M  = "m"
	IN = "in"
)

// ValidUnits contains all valid unit values
var ValidUnits = []string{MM, CM, M, IN}

// IsValid checks if the given unit is in the list of valid units
func IsValid(unit string) bool {
	for _, validUnit := range ValidUnits {
		if unit == validUnit {
			return true
		}
	}
	return false
}

// GetValidUnitsString returns a comma-separated string of valid units for error messages
func GetValidUnitsString() string {
	return "mm, cm, m, in"
}

// ConvertLength converts a length from centimetres to the target units.
// Calibration factors are expressed in centimetres per pixel.
func ConvertLength(lengthCM float64, targetUnits string) float64 {
	switch targetUnits {
	case MM:
		return lengthCM * 10
	case CM:
		return lengthCM
	case M:
		return lengthCM / 100
	case IN:
		return lengthCM / 2.54
	default:
		return lengthCM
	}
}

// ToCentimetres converts a length in the given units back to centimetres.
func ToCentimetres(length float64, fromUnits string) float64 {
	switch fromUnits {
	case MM:
		return length / 10
	case M:
		return length * 100
	case IN:
		return length * 2.54
	default:
		return length
	}
}
