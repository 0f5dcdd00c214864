// Package measure derives shoulder width, smoothed standing height and a
// posture score from per-frame pose landmarks, and converts pixel lengths to
// physical units through a session calibration factor.
//
// An Engine is not safe for concurrent use. Callers that evaluate frames and
// issue calibration commands from different goroutines must serialise access
// (see internal/session).
package measure

import (
	"github.com/banshee-data/mirrorfit/internal/config"
	"github.com/banshee-data/mirrorfit/internal/pose"
)

// Config controls an Engine.
type Config struct {
	ConfidenceThreshold *float64    // Keypoint must score strictly above this to count; nil means pose.DefaultConfidenceThreshold
	HeightWindow        int         // Raw height samples averaged for the reported height
	HeightFactor        float64     // Nose-to-ankle span multiplier for standing height
	PostureMode         PostureMode // Simple (neck) or extended (neck + back)
	NeckMaxAngleDeg     float64     // Neck tilt scoring zero
	BackMaxAngleDeg     float64     // Back tilt scoring zero (extended mode)
	ReferenceWidth      float64     // Real-world shoulder width used by AutoCalibrate
}

// DefaultConfig returns the built-in engine configuration.
func DefaultConfig() Config {
	return ConfigFromTuning(config.EmptyTuningConfig())
}

// ConfigFromTuning builds a Config from a loaded TuningConfig. The posture
// mode falls back to simple if the tuning value does not parse; LoadTuningConfig
// has already validated it.
func ConfigFromTuning(cfg *config.TuningConfig) Config {
	mode, _ := ParsePostureMode(cfg.GetPostureMode())
	return Config{
		ConfidenceThreshold: ptr(cfg.GetConfidenceThreshold()),
		HeightWindow:        cfg.GetHeightWindow(),
		HeightFactor:        cfg.GetHeightFactor(),
		PostureMode:         mode,
		NeckMaxAngleDeg:     cfg.GetNeckMaxAngleDeg(),
		BackMaxAngleDeg:     cfg.GetBackMaxAngleDeg(),
		ReferenceWidth:      cfg.GetReferenceWidth(),
	}
}

// Engine turns landmark sets into measurements. It owns the height sample
// buffer and the calibration state.
type Engine struct {
	cfg    Config
	height *HeightBuffer
	cal    calibration

	// shoulder width measured on the most recent frame
	lastShoulderPx float64
	hasShoulder    bool
}

// NewEngine returns an uncalibrated engine with an empty height history.
// Zero-valued config fields take their defaults; a nil ConfidenceThreshold
// takes pose.DefaultConfidenceThreshold, so an explicit 0 stays expressible.
func NewEngine(cfg Config) *Engine {
	def := DefaultConfig()
	if cfg.ConfidenceThreshold == nil {
		cfg.ConfidenceThreshold = ptr(pose.DefaultConfidenceThreshold)
	} else {
		cfg.ConfidenceThreshold = ptr(*cfg.ConfidenceThreshold)
	}
	if cfg.HeightWindow <= 0 {
		cfg.HeightWindow = def.HeightWindow
	}
	if cfg.HeightFactor <= 0 {
		cfg.HeightFactor = def.HeightFactor
	}
	if cfg.NeckMaxAngleDeg <= 0 {
		cfg.NeckMaxAngleDeg = def.NeckMaxAngleDeg
	}
	if cfg.BackMaxAngleDeg <= 0 {
		cfg.BackMaxAngleDeg = def.BackMaxAngleDeg
	}
	if cfg.ReferenceWidth <= 0 {
		cfg.ReferenceWidth = def.ReferenceWidth
	}
	return &Engine{
		cfg:    cfg,
		height: NewHeightBuffer(cfg.HeightWindow),
	}
}

// Config returns the engine configuration after defaults were applied.
func (e *Engine) Config() Config {
	cfg := e.cfg
	cfg.ConfidenceThreshold = ptr(*e.cfg.ConfidenceThreshold)
	return cfg
}

// ConfidenceThreshold returns the keypoint confidence a landmark must
// strictly exceed to count as present.
func (e *Engine) ConfidenceThreshold() float64 { return *e.cfg.ConfidenceThreshold }

// Mode returns the posture scoring mode.
func (e *Engine) Mode() PostureMode { return e.cfg.PostureMode }

// EvaluateFrame filters a raw keypoint frame with the configured confidence
// threshold and evaluates it.
func (e *Engine) EvaluateFrame(frame pose.Frame) Output {
	return e.Evaluate(pose.Filter(frame, e.ConfidenceThreshold()))
}

// Evaluate computes the measurements for one frame. Outputs whose landmarks
// are absent are left nil; only the smoothed height carries history across
// frames.
func (e *Engine) Evaluate(set pose.LandmarkSet) Output {
	out := Output{Calibrated: e.cal.set}

	e.hasShoulder = false
	if sw, ok := shoulderWidth(set); ok {
		e.lastShoulderPx, e.hasShoulder = sw, true
		out.ShoulderWidthPx = ptr(sw)
		if u, ok := e.ToUnit(sw); ok {
			out.ShoulderWidthUnit = ptr(u)
		}
	}

	if raw, ok := e.rawHeight(set); ok {
		e.height.Push(raw)
	}
	if h, ok := e.height.Mean(); ok {
		out.HeightPx = ptr(h)
		if u, ok := e.ToUnit(h); ok {
			out.HeightUnit = ptr(u)
		}
	}

	e.scorePosture(set, &out)
	return out
}

func shoulderWidth(set pose.LandmarkSet) (float64, bool) {
	ls, okL := set.Get(pose.LeftShoulder)
	rs, okR := set.Get(pose.RightShoulder)
	if !okL || !okR {
		return 0, false
	}
	d := Distance(ls.Point(), rs.Point())
	return d, finite(d)
}

// rawHeight estimates standing height from the nose to the mid-ankle point.
// The span undershoots true height at both ends, hence HeightFactor.
func (e *Engine) rawHeight(set pose.LandmarkSet) (float64, bool) {
	nose, ok1 := set.Get(pose.Nose)
	la, ok2 := set.Get(pose.LeftAnkle)
	ra, ok3 := set.Get(pose.RightAnkle)
	if !ok1 || !ok2 || !ok3 {
		return 0, false
	}
	midAnkle := Midpoint(la.Point(), ra.Point())
	h := Distance(nose.Point(), midAnkle) * e.cfg.HeightFactor
	return h, finite(h)
}

func (e *Engine) scorePosture(set pose.LandmarkSet, out *Output) {
	nose, ok1 := set.Get(pose.Nose)
	ls, ok2 := set.Get(pose.LeftShoulder)
	rs, ok3 := set.Get(pose.RightShoulder)
	if !ok1 || !ok2 || !ok3 {
		return
	}
	midShoulder := Midpoint(ls.Point(), rs.Point())

	neckAngle := tiltAngle(nose.Point(), midShoulder)
	score := angleScore(neckAngle, e.cfg.NeckMaxAngleDeg)
	out.PostureAngleDeg = ptr(roundTenth(neckAngle))

	if e.cfg.PostureMode == PostureExtended {
		// Missing hips score the back as perfect rather than dropping the
		// posture output.
		backScore := 100
		lh, okL := set.Get(pose.LeftHip)
		rh, okR := set.Get(pose.RightHip)
		if okL && okR {
			backAngle := tiltAngle(midShoulder, Midpoint(lh.Point(), rh.Point()))
			backScore = angleScore(backAngle, e.cfg.BackMaxAngleDeg)
			out.BackAngleDeg = ptr(roundTenth(backAngle))
		}
		score = roundHalfUp(float64(score+backScore) / 2)
	}

	out.PostureScore = &score
	out.PostureGrade = PostureGrade(score)
}

// ShoulderWidthPx returns the shoulder width measured on the most recent
// frame, if the shoulders were visible.
func (e *Engine) ShoulderWidthPx() (float64, bool) {
	return e.lastShoulderPx, e.hasShoulder
}

// HeightPx returns the current smoothed height in pixels.
func (e *Engine) HeightPx() (float64, bool) {
	return e.height.Mean()
}

// HeightSamples returns the buffered raw height samples, oldest first.
func (e *Engine) HeightSamples() []float64 {
	return e.height.Samples()
}

// Reset clears the height history and the last shoulder measurement. The
// calibration is kept.
func (e *Engine) Reset() {
	e.height.Reset()
	e.lastShoulderPx, e.hasShoulder = 0, false
}
