package tracks

import (
	"errors"
	"fmt"
	"time"

	"github.com/banshee-data/trackcorr/internal/config"
)

// ErrInvalidConfig is wrapped by every Config.Validate failure.
var ErrInvalidConfig = errors.New("invalid track manager config")

// Config holds the tunables for a Manager. It is fixed for a run and only
// replaced through Manager.Reconfigure.
type Config struct {
	MaxTracks    int
	MaxReports   int
	MaxTrackAge  time.Duration
	FirstTrackID int

	Alpha        float64
	Beta         float64
	Gamma        float64
	GammaEnabled bool

	// LogUpdates enables per-track events to the Recorder.
	LogUpdates bool

	TargetFilter TargetKind
	Correlator   string
	GateDistance float64 // metres, gated correlator only

	// OwnerID names the owning entity in recorder events.
	OwnerID string
}

// DefaultConfig returns the built-in defaults. They match
// config/tuning.defaults.json.
func DefaultConfig() Config {
	return Config{
		MaxTracks:    50,
		MaxReports:   100,
		MaxTrackAge:  2 * time.Second,
		FirstTrackID: 1000,
		Alpha:        0.5,
		Beta:         0.2,
		Gamma:        0,
		TargetFilter: KindGround,
		Correlator:   CorrelatorIdentity,
		GateDistance: 500,
		OwnerID:      "ownship",
	}
}

// Validate checks ranges. Errors wrap ErrInvalidConfig.
func (c Config) Validate() error {
	switch {
	case c.MaxTracks <= 0:
		return fmt.Errorf("%w: max_tracks must be positive, got %d", ErrInvalidConfig, c.MaxTracks)
	case c.MaxReports <= 0:
		return fmt.Errorf("%w: max_reports must be positive, got %d", ErrInvalidConfig, c.MaxReports)
	case c.MaxTrackAge <= 0:
		return fmt.Errorf("%w: max_track_age must be positive, got %s", ErrInvalidConfig, c.MaxTrackAge)
	case c.FirstTrackID < 0:
		return fmt.Errorf("%w: first_track_id must be non-negative, got %d", ErrInvalidConfig, c.FirstTrackID)
	case c.Alpha < 0 || c.Alpha > 2:
		return fmt.Errorf("%w: alpha must be in [0, 2], got %v", ErrInvalidConfig, c.Alpha)
	case c.Beta < 0 || c.Beta > 4:
		return fmt.Errorf("%w: beta must be in [0, 4], got %v", ErrInvalidConfig, c.Beta)
	case c.Gamma < 0 || c.Gamma > 4:
		return fmt.Errorf("%w: gamma must be in [0, 4], got %v", ErrInvalidConfig, c.Gamma)
	case c.GateDistance < 0:
		return fmt.Errorf("%w: gate_distance_m must be non-negative, got %v", ErrInvalidConfig, c.GateDistance)
	}
	if c.Correlator != "" && c.Correlator != CorrelatorIdentity && c.Correlator != CorrelatorGated {
		return fmt.Errorf("%w: unknown correlator %q", ErrInvalidConfig, c.Correlator)
	}
	return nil
}

// ConfigFromTuning maps a loaded tuning file onto a manager Config.
func ConfigFromTuning(tc *config.TuningConfig) (Config, error) {
	kinds, err := ParseTargetKinds(tc.GetTargetFilter())
	if err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	cfg := Config{
		MaxTracks:    tc.GetMaxTracks(),
		MaxReports:   tc.GetMaxReports(),
		MaxTrackAge:  tc.GetMaxTrackAge(),
		FirstTrackID: tc.GetFirstTrackID(),
		Alpha:        tc.GetAlpha(),
		Beta:         tc.GetBeta(),
		Gamma:        tc.GetGamma(),
		GammaEnabled: tc.GetGammaEnabled(),
		LogUpdates:   tc.GetLogUpdates(),
		TargetFilter: kinds,
		Correlator:   tc.GetCorrelator(),
		GateDistance: tc.GetGateDistanceMeters(),
		OwnerID:      tc.GetOwnerID(),
	}
	return cfg, cfg.Validate()
}
