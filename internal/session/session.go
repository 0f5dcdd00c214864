// Package session serialises access to a measurement engine shared by the
// frame driver and the HTTP/gRPC command surfaces, and reports every
// evaluated frame and calibration change to an optional recorder.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/banshee-data/mirrorfit/internal/measure"
	"github.com/banshee-data/mirrorfit/internal/monitoring"
	"github.com/banshee-data/mirrorfit/internal/pose"
	"github.com/banshee-data/mirrorfit/internal/timeutil"
)

// Calibration event kinds passed to Recorder.RecordCalibration.
const (
	CalibrationManual    = "manual"
	CalibrationReference = "reference"
	CalibrationAuto      = "auto"
	CalibrationReset     = "reset"
)

// Recorder receives the session's measurement log. Errors are logged and
// never interrupt frame processing.
type Recorder interface {
	RecordMeasurement(sessionID string, seq uint64, at time.Time, out measure.Output) error
	RecordCalibration(sessionID string, at time.Time, kind string, unitsPerPixel *float64) error
}

// Snapshot is the latest evaluated frame.
type Snapshot struct {
	SessionID string         `json:"session_id"`
	Seq       uint64         `json:"seq"`
	At        time.Time      `json:"at"`
	Output    measure.Output `json:"output"`
}

// CalibrationState reports the current calibration.
type CalibrationState struct {
	Calibrated    bool     `json:"calibrated"`
	UnitsPerPixel *float64 `json:"units_per_pixel"`
}

// Session owns one Engine for the lifetime of the process.
type Session struct {
	mu     sync.Mutex
	id     string
	engine *measure.Engine
	clock  timeutil.Clock
	rec    Recorder

	seq      uint64
	latest   measure.Output
	latestAt time.Time
}

// Option configures a Session.
type Option func(*Session)

// WithRecorder sets the measurement log.
func WithRecorder(r Recorder) Option {
	return func(s *Session) { s.rec = r }
}

// WithClock overrides the clock used to timestamp frames.
func WithClock(c timeutil.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithID overrides the generated session id.
func WithID(id string) Option {
	return func(s *Session) { s.id = id }
}

// New wraps engine in a Session with a fresh random id.
func New(engine *measure.Engine, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		engine: engine,
		clock:  timeutil.RealClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Mode returns the engine's posture mode.
func (s *Session) Mode() measure.PostureMode {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Mode()
}

// ProcessFrame evaluates one raw keypoint frame.
func (s *Session) ProcessFrame(frame pose.Frame) measure.Output {
	return s.Evaluate(frame).Output
}

// Evaluate evaluates one raw keypoint frame and returns it with the sequence
// number and timestamp it was assigned. Unlike a later call to Latest, the
// result cannot belong to a frame evaluated concurrently by another caller.
func (s *Session) Evaluate(frame pose.Frame) Snapshot {
	s.mu.Lock()
	out := s.engine.EvaluateFrame(frame)
	s.seq++
	snap := Snapshot{SessionID: s.id, Seq: s.seq, At: s.clock.Now(), Output: out}
	s.latest, s.latestAt = out, snap.At
	s.mu.Unlock()

	monitoring.Tracef("session %s frame %d: %s", s.id, snap.Seq, describe(out))
	if s.rec != nil {
		if err := s.rec.RecordMeasurement(s.id, snap.Seq, snap.At, out); err != nil {
			monitoring.Logf("failed to record frame %d: %v", snap.Seq, err)
		}
	}
	return snap
}

// Latest returns the most recently evaluated frame. Seq is zero before the
// first frame.
func (s *Session) Latest() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{SessionID: s.id, Seq: s.seq, At: s.latestAt, Output: s.latest}
}

// Calibration returns the current calibration state.
func (s *Session) Calibration() CalibrationState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calibrationLocked()
}

func (s *Session) calibrationLocked() CalibrationState {
	k, ok := s.engine.Calibration()
	if !ok {
		return CalibrationState{}
	}
	return CalibrationState{Calibrated: true, UnitsPerPixel: &k}
}

// SetCalibration sets the units-per-pixel factor directly.
func (s *Session) SetCalibration(unitsPerPixel float64) (CalibrationState, error) {
	return s.calibrate(CalibrationManual, func(e *measure.Engine) error {
		return e.SetCalibration(unitsPerPixel)
	})
}

// SetCalibrationText parses and applies a typed calibration value.
func (s *Session) SetCalibrationText(text string) (CalibrationState, error) {
	v, err := measure.ParseCalibration(text)
	if err != nil {
		return s.Calibration(), err
	}
	return s.SetCalibration(v)
}

// SetCalibrationFromReference derives the factor from a known width and its
// measured pixel length.
func (s *Session) SetCalibrationFromReference(knownUnits, measuredPx float64) (CalibrationState, error) {
	return s.calibrate(CalibrationReference, func(e *measure.Engine) error {
		_, err := e.SetCalibrationFromReference(knownUnits, measuredPx)
		return err
	})
}

// AutoCalibrate calibrates from the current shoulder width. A zero
// referenceWidth selects the configured default.
func (s *Session) AutoCalibrate(referenceWidth float64) (CalibrationState, error) {
	return s.calibrate(CalibrationAuto, func(e *measure.Engine) error {
		var err error
		if referenceWidth == 0 {
			_, err = e.AutoCalibrate()
		} else {
			_, err = e.AutoCalibrateWith(referenceWidth)
		}
		return err
	})
}

// ResetCalibration clears the calibration.
func (s *Session) ResetCalibration() CalibrationState {
	state, _ := s.calibrate(CalibrationReset, func(e *measure.Engine) error {
		e.ResetCalibration()
		return nil
	})
	return state
}

// Reset clears the engine's height history.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.engine.Reset()
	_, calibrated := s.engine.Calibration()
	s.latest = measure.Output{Calibrated: calibrated}
}

func (s *Session) calibrate(kind string, apply func(*measure.Engine) error) (CalibrationState, error) {
	s.mu.Lock()
	err := apply(s.engine)
	state := s.calibrationLocked()
	at := s.clock.Now()
	s.mu.Unlock()

	if err != nil {
		return state, err
	}

	if state.Calibrated {
		monitoring.Logf("calibration (%s): %.4f units/px", kind, *state.UnitsPerPixel)
	} else {
		monitoring.Logf("calibration (%s): cleared", kind)
	}
	if s.rec != nil {
		if err := s.rec.RecordCalibration(s.id, at, kind, state.UnitsPerPixel); err != nil {
			monitoring.Logf("failed to record calibration: %v", err)
		}
	}
	return state, nil
}
