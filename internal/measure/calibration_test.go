package measure

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mirrorfit/internal/pose"
	"github.com/banshee-data/mirrorfit/internal/testutil"
)

func TestToUnit_RoundTrip(t *testing.T) {
	e := NewEngine(DefaultConfig())

	_, ok := e.ToUnit(100)
	assert.False(t, ok, "uncalibrated")

	for _, k := range []float64{0.1, 0.2345, 1, 3.75} {
		require.NoError(t, e.SetCalibration(k))
		for _, px := range []float64{0, 1, 40, 287.5, 1234.5678} {
			got, ok := e.ToUnit(px)
			require.True(t, ok)
			assert.Equal(t, px*k, got)
		}
	}

	e.ResetCalibration()
	for _, px := range []float64{0, 40, 287.5} {
		_, ok := e.ToUnit(px)
		assert.False(t, ok)
	}
	_, ok = e.Calibration()
	assert.False(t, ok)
}

func TestSetCalibration_RejectsInvalid(t *testing.T) {
	e := NewEngine(DefaultConfig())
	require.NoError(t, e.SetCalibration(0.25))

	for _, v := range []float64{0, -1, math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := e.SetCalibration(v)
		assert.ErrorIs(t, err, ErrInvalidInput, "value %v", v)
	}

	k, ok := e.Calibration()
	require.True(t, ok)
	assert.Equal(t, 0.25, k, "state unchanged after rejected input")
}

func TestParseCalibration(t *testing.T) {
	tests := []struct {
		in      string
		want    float64
		wantErr bool
	}{
		{"0.2345", 0.2345, false},
		{" 1.5 ", 1.5, false},
		{"", 0, true},
		{"abc", 0, true},
		{"0", 0, true},
		{"-0.5", 0, true},
		{"NaN", 0, true},
		{"Inf", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCalibration(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAutoCalibrate_DefaultReference(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.EvaluateFrame(testutil.Standing().Frame()) // 40px shoulders

	k, err := e.AutoCalibrate()
	require.NoError(t, err)
	assert.Equal(t, 1.0, k)

	got, ok := e.Calibration()
	require.True(t, ok)
	assert.Equal(t, 1.0, got)
}

func TestAutoCalibrateWith_UserReference(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.EvaluateFrame(testutil.Standing().Frame())

	k, err := e.AutoCalibrateWith(46)
	require.NoError(t, err)
	assert.InDelta(t, 1.15, k, 1e-12)
}

func TestAutoCalibrate_NoShoulders(t *testing.T) {
	e := NewEngine(DefaultConfig())
	require.NoError(t, e.SetCalibration(0.3))

	// Never measured.
	_, err := e.AutoCalibrate()
	assert.True(t, errors.Is(err, ErrNoMeasurement))

	// Measured once, then shoulders lost on the latest frame.
	e.EvaluateFrame(testutil.Standing().Frame())
	e.EvaluateFrame(testutil.Standing().Set(pose.RightShoulder, 120, 100, 0.2).Frame())
	_, err = e.AutoCalibrate()
	assert.ErrorIs(t, err, ErrNoMeasurement)

	k, ok := e.Calibration()
	require.True(t, ok)
	assert.Equal(t, 0.3, k, "calibration unchanged")
}

func TestAutoCalibrate_ZeroWidthShoulders(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.EvaluateFrame(testutil.NewFrame().
		Set(pose.LeftShoulder, 50, 50, 0.9).
		Set(pose.RightShoulder, 50, 50, 0.9).Frame())

	_, err := e.AutoCalibrate()
	assert.ErrorIs(t, err, ErrNoMeasurement)
	_, ok := e.Calibration()
	assert.False(t, ok)
}

func TestAutoCalibrateWith_InvalidReference(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e.EvaluateFrame(testutil.Standing().Frame())

	_, err := e.AutoCalibrateWith(-40)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, ok := e.Calibration()
	assert.False(t, ok)
}

func TestSetCalibrationFromReference(t *testing.T) {
	e := NewEngine(DefaultConfig())

	k, err := e.SetCalibrationFromReference(44, 88)
	require.NoError(t, err)
	assert.Equal(t, 0.5, k)

	_, err = e.SetCalibrationFromReference(44, 0)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = e.SetCalibrationFromReference(0, 88)
	assert.ErrorIs(t, err, ErrInvalidInput)

	got, _ := e.Calibration()
	assert.Equal(t, 0.5, got)
}

func TestResetCalibrationKeepsHeightHistory(t *testing.T) {
	e := NewEngine(DefaultConfig())
	require.NoError(t, e.SetCalibration(1))
	e.EvaluateFrame(testutil.Standing().Frame())

	e.ResetCalibration()

	assert.Len(t, e.HeightSamples(), 1)
	out := e.EvaluateFrame(nil)
	testutil.AssertFloatPtr(t, "HeightPx", out.HeightPx, 287.5, 1e-9)
	assert.Nil(t, out.HeightUnit)
}

func TestCalibrationAppliesFromNextFrame(t *testing.T) {
	e := NewEngine(DefaultConfig())
	before := e.EvaluateFrame(testutil.Standing().Frame())
	require.NoError(t, e.SetCalibration(2))

	assert.Nil(t, before.ShoulderWidthUnit, "already reported values are not recomputed")

	after := e.EvaluateFrame(testutil.Standing().Frame())
	testutil.AssertFloatPtr(t, "ShoulderWidthUnit", after.ShoulderWidthUnit, 80, 1e-9)
}
