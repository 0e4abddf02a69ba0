package tracks

import (
	"time"

	"github.com/golang/geo/r3"
)

// OwnshipState is the owning entity's kinematic state for one frame.
type OwnshipState struct {
	Position     r3.Vector
	Velocity     r3.Vector
	Acceleration r3.Vector
	HeadingRad   float64 // ground-track heading
}

// Ownship supplies the owning entity's state. ok is false when no valid
// reference frame exists, which turns the frame pass into a no-op.
type Ownship interface {
	OwnshipState() (s OwnshipState, ok bool)
}

// OwnshipFunc adapts a function to Ownship.
type OwnshipFunc func() (OwnshipState, bool)

func (f OwnshipFunc) OwnshipState() (OwnshipState, bool) { return f() }

// StaticOwnship is an Ownship that never moves.
type StaticOwnship OwnshipState

func (s StaticOwnship) OwnshipState() (OwnshipState, bool) { return OwnshipState(s), true }

// EventKind names a track lifecycle event sent to the Recorder.
type EventKind string

const (
	EventCreated      EventKind = "created"
	EventUpdated      EventKind = "updated"
	EventRemoved      EventKind = "removed"
	EventSpawnDropped EventKind = "spawn_dropped"
)

// TrackEvent is one recorder record. Track is a copy taken at the time of
// the event; for EventSpawnDropped it holds the track that was not created.
type TrackEvent struct {
	Kind    EventKind
	OwnerID string
	Frame   uint64
	Time    time.Time
	Track   Track
}

// Recorder receives track events when Config.LogUpdates is set. Calls are
// fire-and-forget; implementations must not block the frame pass for long
// and report their own failures.
type Recorder interface {
	RecordTrackEvent(ev TrackEvent)
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(TrackEvent)

func (f RecorderFunc) RecordTrackEvent(ev TrackEvent) { f(ev) }

// DebugCollector receives per-frame algorithm internals. The debug
// subpackage provides the buffering implementation.
type DebugCollector interface {
	IsEnabled() bool
	BeginFrame(frameID uint64, dt time.Duration)
	RecordAssociation(reportIdx int, targetID string, trackID int, distance float64, accepted bool)
	RecordGate(trackID int, center r3.Vector, radius float64)
	RecordInnovation(trackID int, predicted, measured r3.Vector, residual float64)
	RecordPrediction(trackID int, position, velocity r3.Vector)
	EndFrame()
}

// Stats are cumulative counters since the manager was created or last
// reset.
type Stats struct {
	Frames          uint64 `json:"frames"`
	SkippedFrames   uint64 `json:"skipped_frames"`
	ReportsAccepted uint64 `json:"reports_accepted"`
	ReportsDropped  uint64 `json:"reports_dropped"`
	ReportsFiltered uint64 `json:"reports_filtered"`
	Spawns          uint64 `json:"spawns"`
	SpawnsDropped   uint64 `json:"spawns_dropped"`
	Associations    uint64 `json:"associations"`
	Evictions       uint64 `json:"evictions"`
	LiveTracks      int    `json:"live_tracks"`
	QueuedReports   int    `json:"queued_reports"`
}
