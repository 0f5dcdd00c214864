package measure

import "errors"

var (
	// ErrNoMeasurement is returned by auto-calibration when no positive
	// shoulder width was measured on the most recent frame.
	ErrNoMeasurement = errors.New("no shoulder measurement available")

	// ErrInvalidInput is returned when a calibration value is non-numeric,
	// non-finite or not positive.
	ErrInvalidInput = errors.New("invalid calibration input")
)
