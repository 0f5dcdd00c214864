package config

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/mirrorfit/internal/units"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
const DefaultConfigPath = "config/tuning.defaults.json"

// Posture modes accepted by posture_mode.
const (
	PostureModeSimple   = "simple"
	PostureModeExtended = "extended"
)

// TuningConfig is the root configuration for the measurement pipeline.
// Every field is optional; the Get* methods fall back to the built-in
// defaults for anything the file omits.
type TuningConfig struct {
	// Keypoint filter
	ConfidenceThreshold *float64 `json:"confidence_threshold,omitempty"`

	// Measurement engine
	HeightWindow    *int     `json:"height_window,omitempty"`
	HeightFactor    *float64 `json:"height_factor,omitempty"`
	PostureMode     *string  `json:"posture_mode,omitempty"`
	NeckMaxAngleDeg *float64 `json:"neck_max_angle_deg,omitempty"`
	BackMaxAngleDeg *float64 `json:"back_max_angle_deg,omitempty"`

	// Calibration
	ReferenceWidth *float64 `json:"reference_width,omitempty"` // centimetres
	DisplayUnits   *string  `json:"display_units,omitempty"`

	// Frame driver
	FrameInterval *string `json:"frame_interval,omitempty"` // duration string like "33ms"

	// Session log
	DBPath       *string `json:"db_path,omitempty"`
	LogRetention *int    `json:"log_retention,omitempty"` // measurements kept per session, 0 keeps all
}

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted from
// the file keep their defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// MustLoadDefaultConfig loads DefaultConfigPath, searching the current
// directory and its parents up to the repository root. Panics if the file
// cannot be loaded; intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,
		"../../../" + DefaultConfigPath,
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

func positiveFinite(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

// Validate checks that the configuration values are valid.
func (c *TuningConfig) Validate() error {
	if c.ConfidenceThreshold != nil {
		if v := *c.ConfidenceThreshold; math.IsNaN(v) || v < 0 || v >= 1 {
			return fmt.Errorf("confidence_threshold must be in [0, 1), got %f", v)
		}
	}

	if c.HeightWindow != nil && *c.HeightWindow < 1 {
		return fmt.Errorf("height_window must be at least 1, got %d", *c.HeightWindow)
	}

	if c.HeightFactor != nil && !positiveFinite(*c.HeightFactor) {
		return fmt.Errorf("height_factor must be positive, got %f", *c.HeightFactor)
	}

	if c.PostureMode != nil {
		switch *c.PostureMode {
		case PostureModeSimple, PostureModeExtended:
		default:
			return fmt.Errorf("posture_mode must be %q or %q, got %q", PostureModeSimple, PostureModeExtended, *c.PostureMode)
		}
	}

	if c.NeckMaxAngleDeg != nil && !positiveFinite(*c.NeckMaxAngleDeg) {
		return fmt.Errorf("neck_max_angle_deg must be positive, got %f", *c.NeckMaxAngleDeg)
	}
	if c.BackMaxAngleDeg != nil && !positiveFinite(*c.BackMaxAngleDeg) {
		return fmt.Errorf("back_max_angle_deg must be positive, got %f", *c.BackMaxAngleDeg)
	}

	if c.ReferenceWidth != nil && !positiveFinite(*c.ReferenceWidth) {
		return fmt.Errorf("reference_width must be positive, got %f", *c.ReferenceWidth)
	}

	if c.DisplayUnits != nil && !units.IsValid(*c.DisplayUnits) {
		return fmt.Errorf("display_units must be one of %s, got %q", units.GetValidUnitsString(), *c.DisplayUnits)
	}

	if c.LogRetention != nil && *c.LogRetention < 0 {
		return fmt.Errorf("log_retention must not be negative, got %d", *c.LogRetention)
	}

	if c.FrameInterval != nil && *c.FrameInterval != "" {
		d, err := time.ParseDuration(*c.FrameInterval)
		if err != nil {
			return fmt.Errorf("invalid frame_interval '%s': %w", *c.FrameInterval, err)
		}
		if d <= 0 {
			return fmt.Errorf("frame_interval must be positive, got %s", d)
		}
	}

	return nil
}

// GetConfidenceThreshold returns the confidence_threshold value or the default.
func (c *TuningConfig) GetConfidenceThreshold() float64 {
	if c.ConfidenceThreshold == nil {
		return 0.3
	}
	return *c.ConfidenceThreshold
}

// GetHeightWindow returns the height_window value or the default.
func (c *TuningConfig) GetHeightWindow() int {
	if c.HeightWindow == nil {
		return 10
	}
	return *c.HeightWindow
}

// GetHeightFactor returns the height_factor value or the default.
func (c *TuningConfig) GetHeightFactor() float64 {
	if c.HeightFactor == nil {
		return 1.15
	}
	return *c.HeightFactor
}

// GetPostureMode returns the posture_mode value or the default.
func (c *TuningConfig) GetPostureMode() string {
	if c.PostureMode == nil || *c.PostureMode == "" {
		return PostureModeSimple
	}
	return *c.PostureMode
}

// GetNeckMaxAngleDeg returns the neck_max_angle_deg value or the default.
func (c *TuningConfig) GetNeckMaxAngleDeg() float64 {
	if c.NeckMaxAngleDeg == nil {
		return 30
	}
	return *c.NeckMaxAngleDeg
}

// GetBackMaxAngleDeg returns the back_max_angle_deg value or the default.
func (c *TuningConfig) GetBackMaxAngleDeg() float64 {
	if c.BackMaxAngleDeg == nil {
		return 15
	}
	return *c.BackMaxAngleDeg
}

// GetReferenceWidth returns the reference_width value or the default.
func (c *TuningConfig) GetReferenceWidth() float64 {
	if c.ReferenceWidth == nil {
		return 40
	}
	return *c.ReferenceWidth
}

// GetDisplayUnits returns the display_units value or the default.
func (c *TuningConfig) GetDisplayUnits() string {
	if c.DisplayUnits == nil || *c.DisplayUnits == "" {
		return units.CM
	}
	return *c.DisplayUnits
}

// GetFrameInterval parses and returns the FrameInterval as a time.Duration.
func (c *TuningConfig) GetFrameInterval() time.Duration {
	if c.FrameInterval == nil || *c.FrameInterval == "" {
		return 33 * time.Millisecond
	}
	d, err := time.ParseDuration(*c.FrameInterval)
	if err != nil || d <= 0 {
		return 33 * time.Millisecond
	}
	return d
}

// GetDBPath returns the db_path value or the default in-memory database.
func (c *TuningConfig) GetDBPath() string {
	if c.DBPath == nil || *c.DBPath == "" {
		return ":memory:"
	}
	return *c.DBPath
}

// GetLogRetention returns the log_retention value or the default, about ten
// minutes of frames at the default interval.
func (c *TuningConfig) GetLogRetention() int {
	if c.LogRetention == nil {
		return 18000
	}
	return *c.LogRetention
}
