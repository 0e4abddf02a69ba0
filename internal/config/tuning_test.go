package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultTuningConfig(t *testing.T) {
	cfg := DefaultTuningConfig()

	if cfg.MaxTracks == nil || *cfg.MaxTracks != 50 {
		t.Errorf("Expected MaxTracks 50, got %v", cfg.MaxTracks)
	}
	if cfg.MaxTrackAge == nil || *cfg.MaxTrackAge != "2s" {
		t.Errorf("Expected MaxTrackAge '2s', got %v", cfg.MaxTrackAge)
	}
	if cfg.GetFirstTrackID() != 1000 {
		t.Errorf("GetFirstTrackID() = %d, want 1000", cfg.GetFirstTrackID())
	}
	if cfg.GetAlpha() != 0.5 || cfg.GetBeta() != 0.2 || cfg.GetGamma() != 0 {
		t.Errorf("gains = %v/%v/%v, want 0.5/0.2/0", cfg.GetAlpha(), cfg.GetBeta(), cfg.GetGamma())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestEmptyTuningConfig_Getters(t *testing.T) {
	cfg := EmptyTuningConfig()

	if got := cfg.GetMaxTracks(); got != 50 {
		t.Errorf("GetMaxTracks() = %d, want 50", got)
	}
	if got := cfg.GetMaxReports(); got != 100 {
		t.Errorf("GetMaxReports() = %d, want 100", got)
	}
	if got := cfg.GetMaxTrackAge(); got != 2*time.Second {
		t.Errorf("GetMaxTrackAge() = %v, want 2s", got)
	}
	if got := cfg.GetCorrelator(); got != "identity" {
		t.Errorf("GetCorrelator() = %q, want identity", got)
	}
	if got := cfg.GetTargetFilter(); len(got) != 1 || got[0] != "ground" {
		t.Errorf("GetTargetFilter() = %v, want [ground]", got)
	}
	if got := cfg.GetGateDistanceMeters(); got != 500 {
		t.Errorf("GetGateDistanceMeters() = %v, want 500", got)
	}
	if cfg.GetGammaEnabled() || cfg.GetLogUpdates() {
		t.Error("gamma_enabled and log_updates should default to false")
	}
	if got := cfg.GetOwnerID(); got != "ownship" {
		t.Errorf("GetOwnerID() = %q, want ownship", got)
	}
	if got := cfg.GetFrameInterval(); got != 100*time.Millisecond {
		t.Errorf("GetFrameInterval() = %v, want 100ms", got)
	}
	if got := cfg.GetSensorInterval(); got != 250*time.Millisecond {
		t.Errorf("GetSensorInterval() = %v, want 250ms", got)
	}
}

func TestGetTargetFilter_ExplicitEmptyMeansAll(t *testing.T) {
	cfg := &TuningConfig{TargetFilter: []string{}}
	if got := cfg.GetTargetFilter(); len(got) != 0 {
		t.Errorf("GetTargetFilter() = %v, want empty", got)
	}
}

func TestGetMaxTrackAge_BadValueFallsBack(t *testing.T) {
	cfg := &TuningConfig{MaxTrackAge: ptrString("not-a-duration")}
	if got := cfg.GetMaxTrackAge(); got != 2*time.Second {
		t.Errorf("GetMaxTrackAge() = %v, want default 2s", got)
	}
}

func TestLoadTuningConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test_config.json")

	testJSON := `{
  "max_tracks": 2,
  "max_track_age": "3s",
  "alpha": 1.0,
  "beta": 0,
  "target_filter": ["ground", "air"],
  "correlator": "gated",
  "log_updates": true
}`
	if err := os.WriteFile(configPath, []byte(testJSON), 0644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}

	cfg, err := LoadTuningConfig(configPath)
	if err != nil {
		t.Fatalf("LoadTuningConfig failed: %v", err)
	}

	if cfg.GetMaxTracks() != 2 {
		t.Errorf("GetMaxTracks() = %d, want 2", cfg.GetMaxTracks())
	}
	if cfg.GetMaxTrackAge() != 3*time.Second {
		t.Errorf("GetMaxTrackAge() = %v, want 3s", cfg.GetMaxTrackAge())
	}
	if cfg.GetAlpha() != 1.0 || cfg.GetBeta() != 0 {
		t.Errorf("gains = %v/%v, want 1/0", cfg.GetAlpha(), cfg.GetBeta())
	}
	if cfg.GetCorrelator() != "gated" {
		t.Errorf("GetCorrelator() = %q, want gated", cfg.GetCorrelator())
	}
	if !cfg.GetLogUpdates() {
		t.Error("GetLogUpdates() = false, want true")
	}
	// Omitted fields keep their defaults.
	if cfg.GetMaxReports() != 100 {
		t.Errorf("GetMaxReports() = %d, want default 100", cfg.GetMaxReports())
	}
}

func TestLoadTuningConfig_Errors(t *testing.T) {
	tmpDir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(tmpDir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
		return p
	}

	tests := []struct {
		name    string
		path    string
		wantErr string
	}{
		{"wrong extension", write("cfg.yaml", "{}"), ".json extension"},
		{"missing file", filepath.Join(tmpDir, "missing.json"), "failed to stat"},
		{"bad json", write("bad.json", "{not json"), "failed to parse"},
		{"zero max tracks", write("zero.json", `{"max_tracks": 0}`), "max_tracks must be positive"},
		{"negative first id", write("neg.json", `{"first_track_id": -1}`), "first_track_id"},
		{"bad age", write("age.json", `{"max_track_age": "soon"}`), "invalid max_track_age"},
		{"zero age", write("zeroage.json", `{"max_track_age": "0s"}`), "max_track_age must be positive"},
		{"alpha range", write("alpha.json", `{"alpha": 2.5}`), "alpha must be between"},
		{"unknown correlator", write("corr.json", `{"correlator": "nearest"}`), "correlator must be"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadTuningConfig(tt.path)
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadTuningConfig_TooLarge(t *testing.T) {
	p := filepath.Join(t.TempDir(), "big.json")
	big := make([]byte, 1024*1024+1)
	for i := range big {
		big[i] = ' '
	}
	if err := os.WriteFile(p, big, 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTuningConfig(p); err == nil || !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected too large error, got %v", err)
	}
}

func TestMustLoadDefaultConfig(t *testing.T) {
	cfg := MustLoadDefaultConfig()
	want := DefaultTuningConfig()

	if cfg.GetMaxTracks() != want.GetMaxTracks() {
		t.Errorf("defaults file max_tracks = %d, want %d", cfg.GetMaxTracks(), want.GetMaxTracks())
	}
	if cfg.GetMaxTrackAge() != want.GetMaxTrackAge() {
		t.Errorf("defaults file max_track_age = %v, want %v", cfg.GetMaxTrackAge(), want.GetMaxTrackAge())
	}
	if cfg.GetCorrelator() != want.GetCorrelator() {
		t.Errorf("defaults file correlator = %q, want %q", cfg.GetCorrelator(), want.GetCorrelator())
	}
}
