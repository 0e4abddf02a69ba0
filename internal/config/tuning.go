package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// DefaultConfigPath is the path to the canonical tuning defaults file.
// This is the single source of truth for all default tuning values.
const DefaultConfigPath = "config/tuning.defaults.json"

// Built-in fallbacks used by the Get* accessors when a field is omitted.
const (
	defaultMaxTracks      = 50
	defaultMaxReports     = 100
	defaultMaxTrackAge    = 2 * time.Second
	defaultFirstTrackID   = 1000
	defaultAlpha          = 0.5
	defaultBeta           = 0.2
	defaultGamma          = 0.0
	defaultCorrelator     = "identity"
	defaultGateDistanceM  = 500.0
	defaultOwnerID        = "ownship"
	defaultFrameInterval  = 100 * time.Millisecond
	defaultSensorInterval = 250 * time.Millisecond
)

var defaultTargetFilter = []string{"ground"}

// TuningConfig is the root of the track manager tuning file. The same JSON
// is accepted at startup and by the admin reconfigure endpoint.
type TuningConfig struct {
	// Capacity
	MaxTracks    *int    `json:"max_tracks,omitempty"`
	MaxReports   *int    `json:"max_reports,omitempty"`
	MaxTrackAge  *string `json:"max_track_age,omitempty"` // duration string like "2s"
	FirstTrackID *int    `json:"first_track_id,omitempty"`

	// Alpha-beta-gamma gains
	Alpha        *float64 `json:"alpha,omitempty"`
	Beta         *float64 `json:"beta,omitempty"`
	Gamma        *float64 `json:"gamma,omitempty"`
	GammaEnabled *bool    `json:"gamma_enabled,omitempty"`

	// Association
	TargetFilter       []string `json:"target_filter,omitempty"`
	Correlator         *string  `json:"correlator,omitempty"` // "identity" or "gated"
	GateDistanceMeters *float64 `json:"gate_distance_m,omitempty"`

	// Recording
	LogUpdates *bool   `json:"log_updates,omitempty"`
	OwnerID    *string `json:"owner_id,omitempty"`

	// Simulation driver (cmd/tracksim)
	FrameInterval  *string `json:"frame_interval,omitempty"`
	SensorInterval *string `json:"sensor_interval,omitempty"`
}

func ptrFloat64(v float64) *float64 { return &v }
func ptrBool(v bool) *bool          { return &v }
func ptrString(v string) *string    { return &v }
func ptrInt(v int) *int             { return &v }

// EmptyTuningConfig returns a TuningConfig with all fields set to nil.
// Use LoadTuningConfig to load actual values from the defaults file.
func EmptyTuningConfig() *TuningConfig {
	return &TuningConfig{}
}

// DefaultTuningConfig returns a TuningConfig with every field populated
// from the built-in fallbacks.
func DefaultTuningConfig() *TuningConfig {
	return &TuningConfig{
		MaxTracks:          ptrInt(defaultMaxTracks),
		MaxReports:         ptrInt(defaultMaxReports),
		MaxTrackAge:        ptrString(defaultMaxTrackAge.String()),
		FirstTrackID:       ptrInt(defaultFirstTrackID),
		Alpha:              ptrFloat64(defaultAlpha),
		Beta:               ptrFloat64(defaultBeta),
		Gamma:              ptrFloat64(defaultGamma),
		GammaEnabled:       ptrBool(false),
		TargetFilter:       append([]string(nil), defaultTargetFilter...),
		Correlator:         ptrString(defaultCorrelator),
		GateDistanceMeters: ptrFloat64(defaultGateDistanceM),
		LogUpdates:         ptrBool(false),
		OwnerID:            ptrString(defaultOwnerID),
		FrameInterval:      ptrString(defaultFrameInterval.String()),
		SensorInterval:     ptrString(defaultSensorInterval.String()),
	}
}

// LoadTuningConfig loads a TuningConfig from a JSON file.
// The file must have a .json extension and be under 1MB. Fields omitted
// from the JSON fall back to the Get* defaults, so partial configs are safe.
func LoadTuningConfig(path string) (*TuningConfig, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	const maxFileSize = 1 * 1024 * 1024 // 1MB
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return ParseTuningConfig(data)
}

// ParseTuningConfig decodes and validates a tuning document.
func ParseTuningConfig(data []byte) (*TuningConfig, error) {
	cfg := EmptyTuningConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// MustLoadDefaultConfig loads the canonical tuning defaults from DefaultConfigPath.
// It searches for the file in the current directory and common parent directories.
// Panics if the file cannot be loaded, intended for test setup.
func MustLoadDefaultConfig() *TuningConfig {
	candidates := []string{
		DefaultConfigPath,
		"../" + DefaultConfigPath,
		"../../" + DefaultConfigPath,    // from internal/config/
		"../../../" + DefaultConfigPath, // from internal/tracks/debug/
	}
	for _, path := range candidates {
		if cfg, err := LoadTuningConfig(path); err == nil {
			return cfg
		}
	}
	panic("cannot find " + DefaultConfigPath + " - run tests from repository root")
}

// Validate checks the fields that are set. Cross-field range checks on the
// resulting manager config happen in the tracks package.
func (c *TuningConfig) Validate() error {
	if c.MaxTracks != nil && *c.MaxTracks <= 0 {
		return fmt.Errorf("max_tracks must be positive, got %d", *c.MaxTracks)
	}
	if c.MaxReports != nil && *c.MaxReports <= 0 {
		return fmt.Errorf("max_reports must be positive, got %d", *c.MaxReports)
	}
	if c.FirstTrackID != nil && *c.FirstTrackID < 0 {
		return fmt.Errorf("first_track_id must be non-negative, got %d", *c.FirstTrackID)
	}
	for name, s := range map[string]*string{
		"max_track_age":   c.MaxTrackAge,
		"frame_interval":  c.FrameInterval,
		"sensor_interval": c.SensorInterval,
	} {
		if s == nil || *s == "" {
			continue
		}
		d, err := time.ParseDuration(*s)
		if err != nil {
			return fmt.Errorf("invalid %s '%s': %w", name, *s, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	if c.Alpha != nil && (*c.Alpha < 0 || *c.Alpha > 2) {
		return fmt.Errorf("alpha must be between 0 and 2, got %f", *c.Alpha)
	}
	if c.Beta != nil && (*c.Beta < 0 || *c.Beta > 4) {
		return fmt.Errorf("beta must be between 0 and 4, got %f", *c.Beta)
	}
	if c.Gamma != nil && (*c.Gamma < 0 || *c.Gamma > 4) {
		return fmt.Errorf("gamma must be between 0 and 4, got %f", *c.Gamma)
	}
	if c.Correlator != nil {
		switch *c.Correlator {
		case "", "identity", "gated":
		default:
			return fmt.Errorf("correlator must be \"identity\" or \"gated\", got %q", *c.Correlator)
		}
	}
	if c.GateDistanceMeters != nil && *c.GateDistanceMeters < 0 {
		return fmt.Errorf("gate_distance_m must be non-negative, got %f", *c.GateDistanceMeters)
	}
	return nil
}

func parseDurationOr(s *string, def time.Duration) time.Duration {
	if s == nil || *s == "" {
		return def
	}
	d, err := time.ParseDuration(*s)
	if err != nil {
		return def
	}
	return d
}

// GetMaxTracks returns the max_tracks value or the default.
func (c *TuningConfig) GetMaxTracks() int {
	if c.MaxTracks == nil {
		return defaultMaxTracks
	}
	return *c.MaxTracks
}

// GetMaxReports returns the max_reports value or the default.
func (c *TuningConfig) GetMaxReports() int {
	if c.MaxReports == nil {
		return defaultMaxReports
	}
	return *c.MaxReports
}

// GetMaxTrackAge parses max_track_age, falling back to the default on a
// missing or unparsable value.
func (c *TuningConfig) GetMaxTrackAge() time.Duration {
	return parseDurationOr(c.MaxTrackAge, defaultMaxTrackAge)
}

// GetFirstTrackID returns the first_track_id value or the default.
func (c *TuningConfig) GetFirstTrackID() int {
	if c.FirstTrackID == nil {
		return defaultFirstTrackID
	}
	return *c.FirstTrackID
}

func (c *TuningConfig) GetAlpha() float64 {
	if c.Alpha == nil {
		return defaultAlpha
	}
	return *c.Alpha
}

func (c *TuningConfig) GetBeta() float64 {
	if c.Beta == nil {
		return defaultBeta
	}
	return *c.Beta
}

func (c *TuningConfig) GetGamma() float64 {
	if c.Gamma == nil {
		return defaultGamma
	}
	return *c.Gamma
}

func (c *TuningConfig) GetGammaEnabled() bool {
	if c.GammaEnabled == nil {
		return false
	}
	return *c.GammaEnabled
}

// GetTargetFilter returns the accepted target kind names. An explicit empty
// list means every kind.
func (c *TuningConfig) GetTargetFilter() []string {
	if c.TargetFilter == nil {
		return append([]string(nil), defaultTargetFilter...)
	}
	return append([]string(nil), c.TargetFilter...)
}

func (c *TuningConfig) GetCorrelator() string {
	if c.Correlator == nil || *c.Correlator == "" {
		return defaultCorrelator
	}
	return *c.Correlator
}

func (c *TuningConfig) GetGateDistanceMeters() float64 {
	if c.GateDistanceMeters == nil {
		return defaultGateDistanceM
	}
	return *c.GateDistanceMeters
}

func (c *TuningConfig) GetLogUpdates() bool {
	if c.LogUpdates == nil {
		return false
	}
	return *c.LogUpdates
}

func (c *TuningConfig) GetOwnerID() string {
	if c.OwnerID == nil || *c.OwnerID == "" {
		return defaultOwnerID
	}
	return *c.OwnerID
}

// GetFrameInterval is the simulated frame period for cmd/tracksim.
func (c *TuningConfig) GetFrameInterval() time.Duration {
	return parseDurationOr(c.FrameInterval, defaultFrameInterval)
}

// GetSensorInterval is the synthetic sensor scan period for cmd/tracksim.
func (c *TuningConfig) GetSensorInterval() time.Duration {
	return parseDurationOr(c.SensorInterval, defaultSensorInterval)
}
