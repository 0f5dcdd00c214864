package measure

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// DefaultReferenceWidth is the assumed real-world shoulder width, in
// centimetres, used by auto-calibration.
const DefaultReferenceWidth = 40.0

// calibration holds the session's units-per-pixel factor. The zero value is
// uncalibrated.
type calibration struct {
	unitsPerPixel float64
	set           bool
}

func validFactor(v float64) bool {
	return v > 0 && !math.IsInf(v, 0) && !math.IsNaN(v)
}

// ParseCalibration parses a numeric calibration entry such as "0.2345".
// Empty, non-numeric, non-finite and non-positive values are rejected with
// ErrInvalidInput.
func ParseCalibration(s string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidInput, s)
	}
	if !validFactor(v) {
		return 0, fmt.Errorf("%w: %v must be a positive number", ErrInvalidInput, v)
	}
	return v, nil
}

// SetCalibration sets the units-per-pixel factor directly. Invalid values
// leave the current calibration unchanged.
func (e *Engine) SetCalibration(unitsPerPixel float64) error {
	if !validFactor(unitsPerPixel) {
		return fmt.Errorf("%w: factor %v must be a positive number", ErrInvalidInput, unitsPerPixel)
	}
	e.cal = calibration{unitsPerPixel: unitsPerPixel, set: true}
	return nil
}

// SetCalibrationFromReference derives the factor from a known real-world
// width and the same width measured in pixels.
func (e *Engine) SetCalibrationFromReference(knownUnits, measuredPx float64) (float64, error) {
	if !validFactor(knownUnits) {
		return 0, fmt.Errorf("%w: reference width %v must be a positive number", ErrInvalidInput, knownUnits)
	}
	if !validFactor(measuredPx) {
		return 0, fmt.Errorf("%w: measured width %v px must be a positive number", ErrInvalidInput, measuredPx)
	}
	k := knownUnits / measuredPx
	if err := e.SetCalibration(k); err != nil {
		return 0, err
	}
	return k, nil
}

// AutoCalibrate calibrates against the configured reference shoulder width.
func (e *Engine) AutoCalibrate() (float64, error) {
	return e.AutoCalibrateWith(e.cfg.ReferenceWidth)
}

// AutoCalibrateWith derives the factor from the shoulder width measured on
// the most recent frame and a reference real-world shoulder width. It fails
// with ErrNoMeasurement when the shoulders were not measurable, leaving the
// calibration unchanged.
func (e *Engine) AutoCalibrateWith(referenceWidth float64) (float64, error) {
	if !validFactor(referenceWidth) {
		return 0, fmt.Errorf("%w: reference width %v must be a positive number", ErrInvalidInput, referenceWidth)
	}
	px, ok := e.ShoulderWidthPx()
	if !ok || !validFactor(px) {
		return 0, ErrNoMeasurement
	}
	return e.SetCalibrationFromReference(referenceWidth, px)
}

// ResetCalibration clears the calibration. The height history is kept.
func (e *Engine) ResetCalibration() {
	e.cal = calibration{}
}

// Calibration returns the current units-per-pixel factor, if set.
func (e *Engine) Calibration() (float64, bool) {
	return e.cal.unitsPerPixel, e.cal.set
}

// ToUnit converts a pixel length to physical units using the current
// calibration. It reports false when uncalibrated or when the product
// overflows.
func (e *Engine) ToUnit(px float64) (float64, bool) {
	if !e.cal.set {
		return 0, false
	}
	u := px * e.cal.unitsPerPixel
	return u, finite(u)
}
