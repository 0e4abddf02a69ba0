package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang/geo/r3"
	"gonum.org/v1/plot/vg"

	sqlite "github.com/banshee-data/trackcorr/internal/storage/sqlite"
)

func TestTrajectoryPlot(t *testing.T) {
	traj := map[int][]sqlite.TrajectoryPoint{
		1001: {{Frame: 1, Position: r3.Vector{X: 10, Y: 10}}, {Frame: 2, Position: r3.Vector{X: 20, Y: 15}}},
		1000: {{Frame: 1, Position: r3.Vector{X: -5}}, {Frame: 2, Position: r3.Vector{X: -6, Y: 1}}},
	}
	p, err := trajectoryPlot("run-1", traj)
	if err != nil {
		t.Fatalf("trajectoryPlot failed: %v", err)
	}
	if p.Title.Text != "Run run-1 - 2 tracks" {
		t.Errorf("unexpected title %q", p.Title.Text)
	}

	out := filepath.Join(t.TempDir(), "tracks.png")
	if err := p.Save(4*vg.Inch, 4*vg.Inch, out); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(b) < 8 || string(b[1:4]) != "PNG" {
		t.Errorf("expected a PNG file, got %d bytes", len(b))
	}
}

func TestTrajectoryPlot_Empty(t *testing.T) {
	p, err := trajectoryPlot("empty", nil)
	if err != nil {
		t.Fatalf("trajectoryPlot failed: %v", err)
	}
	if p.Title.Text != "Run empty - 0 tracks" {
		t.Errorf("unexpected title %q", p.Title.Text)
	}
}
