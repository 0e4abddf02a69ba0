package sim

import (
	"math"
	"sync"
	"time"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/trackcorr/internal/timeutil"
	"github.com/banshee-data/trackcorr/internal/tracks"
)

const (
	defaultOrbitRadius = 2000.0 // metres
	defaultOrbitPeriod = 240 * time.Second
)

// OwnshipSim flies a circle of Radius metres around Center once per Period,
// counter-clockwise, starting due east of the centre at the clock's time of
// construction. It is safe for concurrent use.
type OwnshipSim struct {
	Center r3.Vector
	Radius float64
	Period time.Duration

	clock timeutil.Clock
	start time.Time

	mu    sync.RWMutex
	alive bool
}

// NewOwnshipSim returns a live OwnshipSim. Zero radius or period select
// defaults.
func NewOwnshipSim(clock timeutil.Clock, center r3.Vector, radius float64, period time.Duration) *OwnshipSim {
	if radius <= 0 {
		radius = defaultOrbitRadius
	}
	if period <= 0 {
		period = defaultOrbitPeriod
	}
	return &OwnshipSim{
		Center: center,
		Radius: radius,
		Period: period,
		clock:  clock,
		start:  clock.Now(),
		alive:  true,
	}
}

// SetAlive toggles whether the ownship provides a reference frame. A dead
// ownship makes every manager frame a no-op.
func (s *OwnshipSim) SetAlive(alive bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alive = alive
}

// Alive reports whether the ownship provides a reference frame.
func (s *OwnshipSim) Alive() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.alive
}

// StateAt returns the kinematic state at t.
func (s *OwnshipSim) StateAt(t time.Time) tracks.OwnshipState {
	omega := 2 * math.Pi / s.Period.Seconds()
	w := omega * t.Sub(s.start).Seconds()
	sin, cos := math.Sincos(w)

	speed := s.Radius * omega
	return tracks.OwnshipState{
		Position:     s.Center.Add(r3.Vector{X: s.Radius * cos, Y: s.Radius * sin}),
		Velocity:     r3.Vector{X: -speed * sin, Y: speed * cos},
		Acceleration: r3.Vector{X: -speed * omega * cos, Y: -speed * omega * sin},
		HeadingRad:   math.Mod(math.Atan2(-sin, cos)+2*math.Pi, 2*math.Pi),
	}
}

// OwnshipState implements tracks.Ownship at the clock's current time.
func (s *OwnshipSim) OwnshipState() (tracks.OwnshipState, bool) {
	if !s.Alive() {
		return tracks.OwnshipState{}, false
	}
	return s.StateAt(s.clock.Now()), true
}
