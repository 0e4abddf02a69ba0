// Command tracksim runs a track manager against a simulated ownship and a
// synthetic GMTI sensor, records track events to SQLite and serves the live
// state and admin pages over HTTP.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/geo/r3"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/banshee-data/trackcorr/internal/config"
	"github.com/banshee-data/trackcorr/internal/db"
	"github.com/banshee-data/trackcorr/internal/monitor"
	"github.com/banshee-data/trackcorr/internal/monitoring"
	"github.com/banshee-data/trackcorr/internal/sim"
	sqlite "github.com/banshee-data/trackcorr/internal/storage/sqlite"
	"github.com/banshee-data/trackcorr/internal/timeutil"
	"github.com/banshee-data/trackcorr/internal/tracks"
	"github.com/banshee-data/trackcorr/internal/tracks/debug"
	"github.com/banshee-data/trackcorr/internal/version"
)

var (
	configPath  = flag.String("config", "", "Path to tuning JSON (defaults to config/tuning.defaults.json)")
	dbPath      = flag.String("db", "tracks.db", "SQLite file for recorded track events (empty disables recording)")
	listen      = flag.String("listen", ":8090", "Listen address for the API and admin pages")
	logFile     = flag.String("log-file", "", "Write logs to this file with rotation instead of stderr")
	numTargets  = flag.Int("targets", 8, "Number of simulated targets")
	seed        = flag.Uint64("seed", 1, "Seed for target placement and sensor noise")
	noiseSigma  = flag.Float64("noise", 5, "Sensor position noise, metres per axis (1 sigma)")
	sensorRange = flag.Float64("range", 15000, "Sensor maximum range in metres (0 = unlimited)")
	anonymous   = flag.Bool("anonymous", false, "Strip target identities from sensor reports")
	orbitRadius = flag.Float64("orbit-radius", 2000, "Ownship orbit radius in metres")
	orbitPeriod = flag.Duration("orbit-period", 4*time.Minute, "Ownship orbit period")
	runFor      = flag.Duration("duration", 0, "Stop after this long (0 runs until interrupted)")
	debugFrames = flag.Bool("debug-frames", false, "Collect per-frame association debug records")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *logFile != "" {
		monitoring.SetOutput(&lumberjack.Logger{
			Filename:   *logFile,
			MaxSize:    32, // MB
			MaxBackups: 3,
			MaxAge:     14,
			Compress:   true,
		})
	}

	if err := run(); err != nil {
		log.Fatalf("tracksim: %v", err)
	}
}

func loadTuning() (*config.TuningConfig, error) {
	if *configPath != "" {
		return config.LoadTuningConfig(*configPath)
	}
	return config.MustLoadDefaultConfig(), nil
}

func run() error {
	tuning, err := loadTuning()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	cfg, err := tracks.ConfigFromTuning(tuning)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if *runFor > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *runFor)
		defer cancel()
	}

	clock := timeutil.RealClock{}
	own := sim.NewOwnshipSim(clock, r3.Vector{}, *orbitRadius, *orbitPeriod)
	collector := debug.NewCollector()
	collector.SetEnabled(*debugFrames)

	mgr, err := tracks.NewManager(cfg,
		tracks.WithOwnship(own),
		tracks.WithDebugCollector(collector),
		tracks.WithClock(clock))
	if err != nil {
		return err
	}
	monitoring.Logf("tracksim %s: owner=%s correlator=%s max_tracks=%d max_reports=%d",
		version.Version, cfg.OwnerID, cfg.Correlator, cfg.MaxTracks, cfg.MaxReports)

	mux := http.NewServeMux()
	apiOpts := []monitor.Option{monitor.WithDebugFrames(collector)}

	var rec *sqlite.RunRecorder
	if *dbPath != "" {
		database, err := db.NewDB(*dbPath)
		if err != nil {
			return err
		}
		defer database.Close()

		store := sqlite.NewEventStore(database.DB)
		rec, err = store.StartRun(cfg.OwnerID, cfg.Correlator, tuning, clock.Now(), 0)
		if err != nil {
			return err
		}
		mgr.SetRecorder(rec)
		monitoring.Logf("recording run %s to %s", rec.ID(), database.Path())

		apiOpts = append(apiOpts, monitor.WithEventStore(store, rec.ID))
		if err := database.AttachAdminRoutes(mux); err != nil {
			return err
		}
	}
	monitor.NewAPI(mgr, apiOpts...).RegisterRoutes(mux)

	sensor := sim.NewGMTISensor(sim.SensorConfig{
		SensorID:   "gmti-1",
		Interval:   tuning.GetSensorInterval(),
		MaxRange:   *sensorRange,
		NoiseSigma: *noiseSigma,
		Anonymous:  *anonymous,
		Seed:       *seed,
	}, clock, own, mgr, buildTargets(*numTargets, *seed))
	runner := sim.NewRunner(clock, mgr, tuning.GetFrameInterval())

	server := &http.Server{Addr: *listen, Handler: mux}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return runner.Run(gctx) })
	g.Go(func() error { return sensor.Run(gctx) })
	g.Go(func() error { return logStats(gctx, clock, mgr, 10*time.Second) })
	g.Go(func() error {
		monitoring.Logf("listening on %s", *listen)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	mgr.Killed()
	if rec != nil {
		if cerr := rec.Close(clock.Now()); cerr != nil && err == nil {
			err = cerr
		}
	}
	monitoring.Logf("tracksim stopped: %+v", mgr.Stats())
	return err
}

func logStats(ctx context.Context, clock timeutil.Clock, mgr *tracks.Manager, every time.Duration) error {
	ticker := clock.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C():
			s := mgr.Stats()
			monitoring.Logf("frames=%d live=%d queued=%d spawns=%d assoc=%d evictions=%d dropped=%d",
				s.Frames, s.LiveTracks, s.QueuedReports, s.Spawns, s.Associations, s.Evictions, s.ReportsDropped)
		}
	}
}
