// Command trackplot renders the recorded trajectories of one run to a PNG.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/trackcorr/internal/db"
	sqlite "github.com/banshee-data/trackcorr/internal/storage/sqlite"
)

var (
	dbPath   = flag.String("db", "tracks.db", "SQLite file written by tracksim")
	runID    = flag.String("run", "", "Run ID to plot (defaults to the most recent run)")
	outPath  = flag.String("out", "tracks.png", "Output PNG path")
	listRuns = flag.Bool("list", false, "List recorded runs and exit")
	sizeIn   = flag.Float64("size", 8, "Plot width and height in inches")
)

func main() {
	flag.Parse()

	database, err := db.Open(*dbPath)
	if err != nil {
		log.Fatalf("trackplot: %v", err)
	}
	defer database.Close()
	store := sqlite.NewEventStore(database.DB)

	if *listRuns {
		if err := printRuns(store); err != nil {
			log.Fatalf("trackplot: %v", err)
		}
		return
	}

	id := *runID
	if id == "" {
		runs, err := store.Runs()
		if err != nil {
			log.Fatalf("trackplot: %v", err)
		}
		if len(runs) == 0 {
			log.Fatalf("trackplot: no runs recorded in %s", *dbPath)
		}
		id = runs[0].RunID
	}

	traj, err := store.Trajectories(id)
	if err != nil {
		log.Fatalf("trackplot: %v", err)
	}
	p, err := trajectoryPlot(id, traj)
	if err != nil {
		log.Fatalf("trackplot: %v", err)
	}
	size := vg.Length(*sizeIn) * vg.Inch
	if err := p.Save(size, size, *outPath); err != nil {
		log.Fatalf("trackplot: save %s: %v", *outPath, err)
	}
	log.Printf("wrote %d tracks of run %s to %s", len(traj), id, *outPath)
}

func printRuns(store *sqlite.EventStore) error {
	runs, err := store.Runs()
	if err != nil {
		return err
	}
	for _, r := range runs {
		ended := "running"
		if r.EndedNanos != nil {
			ended = time.Duration(*r.EndedNanos - r.StartedNanos).Round(time.Second).String()
		}
		fmt.Fprintf(os.Stdout, "%s  %s  owner=%s correlator=%s  %s\n",
			r.RunID, time.Unix(0, r.StartedNanos).UTC().Format(time.RFC3339), r.OwnerID, r.Correlator, ended)
	}
	return nil
}

// trajectoryPlot draws one line per track in ownship-relative XY, in track
// ID order so colours are stable between renders.
func trajectoryPlot(runID string, traj map[int][]sqlite.TrajectoryPoint) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Run %s - %d tracks", runID, len(traj))
	p.X.Label.Text = "East (m)"
	p.Y.Label.Text = "North (m)"
	p.Add(plotter.NewGrid())

	ids := make([]int, 0, len(traj))
	for id := range traj {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for i, id := range ids {
		pts := make(plotter.XYs, 0, len(traj[id]))
		for _, tp := range traj[id] {
			pts = append(pts, plotter.XY{X: tp.Position.X, Y: tp.Position.Y})
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("track %d line: %w", id, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1)
		p.Add(line)
		p.Legend.Add(fmt.Sprintf("%d", id), line)
	}
	return p, nil
}
