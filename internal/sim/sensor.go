package sim

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/trackcorr/internal/monitoring"
	"github.com/banshee-data/trackcorr/internal/timeutil"
	"github.com/banshee-data/trackcorr/internal/tracks"
)

// ReportSink accepts detection reports. *tracks.Manager satisfies it.
type ReportSink interface {
	NewReport(r tracks.Report, signalLevel float64) bool
}

// Target is a simulated entity moving at constant velocity. Position is in
// the earth frame at the sensor's start time.
type Target struct {
	tracks.Target
	Position r3.Vector
	Velocity r3.Vector
}

// PositionAt returns the target's earth-frame position elapsed after start.
func (t Target) PositionAt(elapsed time.Duration) r3.Vector {
	return t.Position.Add(t.Velocity.Mul(elapsed.Seconds()))
}

// SensorConfig describes a GMTISensor.
type SensorConfig struct {
	SensorID string
	Interval time.Duration
	// MaxRange drops targets farther than this from the ownship; 0 means
	// unlimited.
	MaxRange float64
	// NoiseSigma is the per-axis Gaussian position noise in metres.
	NoiseSigma float64
	// Anonymous strips target identities from reports, as a plain radar
	// would.
	Anonymous bool
	Seed      uint64
}

// GMTISensor observes a target set relative to an ownship and feeds noisy
// reports to a sink from its own goroutine.
type GMTISensor struct {
	cfg     SensorConfig
	clock   timeutil.Clock
	ownship tracks.Ownship
	sink    ReportSink
	start   time.Time

	mu      sync.Mutex
	targets []Target
	noise   distuv.Normal
	scans   uint64
	sent    uint64
	refused uint64
}

// NewGMTISensor builds a sensor over targets. The target positions are taken
// as of the clock's current time.
func NewGMTISensor(cfg SensorConfig, clock timeutil.Clock, ownship tracks.Ownship, sink ReportSink, targets []Target) *GMTISensor {
	if cfg.Interval <= 0 {
		cfg.Interval = 250 * time.Millisecond
	}
	if cfg.SensorID == "" {
		cfg.SensorID = "gmti"
	}
	return &GMTISensor{
		cfg:     cfg,
		clock:   clock,
		ownship: ownship,
		sink:    sink,
		start:   clock.Now(),
		targets: append([]Target(nil), targets...),
		noise: distuv.Normal{
			Mu:    0,
			Sigma: cfg.NoiseSigma,
			Src:   rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15),
		},
	}
}

// SetTargets replaces the observed target set.
func (s *GMTISensor) SetTargets(targets []Target) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.targets = append(s.targets[:0], targets...)
}

// Scan observes every target at now and pushes one report per target in
// range. It returns the number of reports the sink accepted.
func (s *GMTISensor) Scan(now time.Time) int {
	own, ok := s.ownship.OwnshipState()
	if !ok {
		return 0
	}

	s.mu.Lock()
	s.scans++
	elapsed := now.Sub(s.start)
	reports := make([]tracks.Report, 0, len(s.targets))
	for _, t := range s.targets {
		rel := t.PositionAt(elapsed).Sub(own.Position)
		rng := rel.Norm()
		if s.cfg.MaxRange > 0 && rng > s.cfg.MaxRange {
			continue
		}
		if s.cfg.NoiseSigma > 0 {
			rel = rel.Add(r3.Vector{X: s.noise.Rand(), Y: s.noise.Rand(), Z: s.noise.Rand()})
		}
		r := tracks.Report{
			Target:    t.Target,
			SensorID:  s.cfg.SensorID,
			RangeRate: rangeRate(rel, t.Velocity.Sub(own.Velocity)),
			Position:  rel,
		}
		if s.cfg.Anonymous {
			r.Target.ID = ""
		}
		reports = append(reports, r)
	}
	s.mu.Unlock()

	accepted := 0
	for _, r := range reports {
		if s.sink.NewReport(r, signalLevel(r.Position.Norm(), s.cfg.MaxRange)) {
			accepted++
		}
	}

	s.mu.Lock()
	s.sent += uint64(accepted)
	s.refused += uint64(len(reports) - accepted)
	s.mu.Unlock()
	return accepted
}

// Run scans on every tick of the sensor interval until ctx is done.
func (s *GMTISensor) Run(ctx context.Context) error {
	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	monitoring.Logf("[sim] sensor %s scanning every %v", s.cfg.SensorID, s.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			monitoring.Logf("[sim] sensor %s stopped: scans=%d sent=%d refused=%d",
				s.cfg.SensorID, s.scans, s.sent, s.refused)
			s.mu.Unlock()
			return nil
		case now := <-ticker.C():
			s.Scan(now)
		}
	}
}

// Counts returns the scan count and how many reports were accepted and
// refused by the sink.
func (s *GMTISensor) Counts() (scans, sent, refused uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.scans, s.sent, s.refused
}

func rangeRate(rel, relVel r3.Vector) float64 {
	n := rel.Norm()
	if n == 0 {
		return 0
	}
	return rel.Dot(relVel) / n
}

// signalLevel falls off linearly from 1 at the sensor to 0.1 at MaxRange.
func signalLevel(rng, maxRange float64) float64 {
	if maxRange <= 0 {
		return 1
	}
	return max(0.1, 1-0.9*rng/maxRange)
}
