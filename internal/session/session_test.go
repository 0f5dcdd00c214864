package session

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/mirrorfit/internal/measure"
	"github.com/banshee-data/mirrorfit/internal/pose"
	"github.com/banshee-data/mirrorfit/internal/testutil"
	"github.com/banshee-data/mirrorfit/internal/timeutil"
)

type fakeRecorder struct {
	mu           sync.Mutex
	frames       []uint64
	calibrations []string
	factors      []*float64
	err          error
}

func (r *fakeRecorder) RecordMeasurement(sessionID string, seq uint64, at time.Time, out measure.Output) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, seq)
	return r.err
}

func (r *fakeRecorder) RecordCalibration(sessionID string, at time.Time, kind string, k *float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calibrations = append(r.calibrations, kind)
	r.factors = append(r.factors, k)
	return r.err
}

func newTestSession(rec Recorder) *Session {
	clock := timeutil.NewMockClock(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	opts := []Option{WithClock(clock), WithID("test-session")}
	if rec != nil {
		opts = append(opts, WithRecorder(rec))
	}
	return New(measure.NewEngine(measure.DefaultConfig()), opts...)
}

func TestNewGeneratesID(t *testing.T) {
	a := New(measure.NewEngine(measure.DefaultConfig()))
	b := New(measure.NewEngine(measure.DefaultConfig()))
	assert.NotEmpty(t, a.ID())
	assert.NotEqual(t, a.ID(), b.ID())
}

func TestProcessFrame_UpdatesLatestAndRecords(t *testing.T) {
	rec := &fakeRecorder{}
	s := newTestSession(rec)

	assert.Equal(t, uint64(0), s.Latest().Seq)

	s.ProcessFrame(testutil.Standing().Frame())
	out := s.ProcessFrame(pose.Frame{})

	snap := s.Latest()
	assert.Equal(t, "test-session", snap.SessionID)
	assert.Equal(t, uint64(2), snap.Seq)
	assert.Equal(t, out, snap.Output)
	assert.Equal(t, []uint64{1, 2}, rec.frames)
}

func TestProcessFrame_RecorderErrorDoesNotStopProcessing(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	s := newTestSession(rec)

	out := s.ProcessFrame(testutil.Standing().Frame())
	require.NotNil(t, out.ShoulderWidthPx)
	assert.Equal(t, uint64(1), s.Latest().Seq)
}

func TestCalibrationCommands(t *testing.T) {
	rec := &fakeRecorder{}
	s := newTestSession(rec)

	state, err := s.AutoCalibrate(0)
	assert.ErrorIs(t, err, measure.ErrNoMeasurement)
	assert.False(t, state.Calibrated)

	s.ProcessFrame(testutil.Standing().Frame())
	state, err = s.AutoCalibrate(0)
	require.NoError(t, err)
	require.True(t, state.Calibrated)
	assert.Equal(t, 1.0, *state.UnitsPerPixel)

	state, err = s.AutoCalibrate(20)
	require.NoError(t, err)
	assert.Equal(t, 0.5, *state.UnitsPerPixel)

	state, err = s.SetCalibrationText("abc")
	assert.ErrorIs(t, err, measure.ErrInvalidInput)
	assert.Equal(t, 0.5, *state.UnitsPerPixel, "rejected input keeps state")

	state, err = s.SetCalibrationText("0.25")
	require.NoError(t, err)
	assert.Equal(t, 0.25, *state.UnitsPerPixel)

	state, err = s.SetCalibrationFromReference(30, 60)
	require.NoError(t, err)
	assert.Equal(t, 0.5, *state.UnitsPerPixel)

	state = s.ResetCalibration()
	assert.False(t, state.Calibrated)
	assert.Nil(t, state.UnitsPerPixel)

	assert.Equal(t, []string{
		CalibrationAuto, CalibrationAuto, CalibrationManual, CalibrationReference, CalibrationReset,
	}, rec.calibrations, "failed commands are not recorded")
	assert.Nil(t, rec.factors[len(rec.factors)-1])
}

func TestReset_ClearsHistoryKeepsCalibration(t *testing.T) {
	s := newTestSession(nil)
	_, err := s.SetCalibration(2)
	require.NoError(t, err)
	s.ProcessFrame(testutil.Standing().Frame())

	s.Reset()

	assert.True(t, s.Latest().Output.Empty())
	assert.True(t, s.Calibration().Calibrated)
	assert.Nil(t, s.ProcessFrame(nil).HeightPx)
}

func TestConcurrentFramesAndCommands(t *testing.T) {
	s := newTestSession(&fakeRecorder{})
	frame := testutil.Standing().Frame()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			s.ProcessFrame(frame)
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_, _ = s.AutoCalibrate(0)
			_ = s.Calibration()
			s.ResetCalibration()
		}
	}()
	wg.Wait()

	assert.Equal(t, uint64(500), s.Latest().Seq)
}

func TestEvaluate_ReturnsOwnFrame(t *testing.T) {
	s := newTestSession(&fakeRecorder{})
	frames := map[float64]pose.Frame{
		40: testutil.Standing().Frame(),
		80: testutil.Standing().
			Set(pose.LeftShoulder, 60, 100, 0.9).
			Set(pose.RightShoulder, 140, 100, 0.9).Frame(),
	}

	const perWorker = 300
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seqs = make(map[uint64]bool)
	)
	for width, frame := range frames {
		wg.Add(1)
		go func(width float64, frame pose.Frame) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				snap := s.Evaluate(frame)
				if snap.Output.ShoulderWidthPx == nil || *snap.Output.ShoulderWidthPx != width {
					t.Errorf("seq %d: got shoulder width %v, want %v", snap.Seq, snap.Output.ShoulderWidthPx, width)
					return
				}
				mu.Lock()
				seqs[snap.Seq] = true
				mu.Unlock()
			}
		}(width, frame)
	}
	wg.Wait()

	assert.Len(t, seqs, 2*perWorker, "every evaluation gets its own seq")
	assert.Equal(t, uint64(2*perWorker), s.Latest().Seq)
}

func TestEvaluate_RecordsCalibrationInOutput(t *testing.T) {
	s := newTestSession(nil)

	assert.False(t, s.Evaluate(testutil.Standing().Frame()).Output.Calibrated)

	_, err := s.SetCalibration(0.5)
	require.NoError(t, err)
	snap := s.Evaluate(testutil.Standing().Frame())
	assert.True(t, snap.Output.Calibrated)
	assert.Equal(t, uint64(2), snap.Seq)
	assert.Equal(t, time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC), snap.At)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "no measurements", describe(measure.Output{}))

	e := measure.NewEngine(measure.DefaultConfig())
	got := describe(e.EvaluateFrame(testutil.Standing().Frame()))
	assert.Equal(t, "shoulders=40.0px height=287.5px posture=100/100", got)
}
