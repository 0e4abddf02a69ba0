// Package debug provides instrumentation for the track correlation engine.
// The Collector captures algorithm internals (association decisions, gates,
// filter innovations, predictions) for the admin debug page and for tuning.
package debug

import (
	"sync"
	"time"

	"github.com/golang/geo/r3"
)

// Pre-allocation capacities for frame slices, sized for a few dozen tracks
// and reports per frame.
const (
	defaultAssociationCapacity = 32
	defaultGateCapacity        = 16
	defaultInnovationCapacity  = 16
	defaultPredictionCapacity  = 32
)

// Collector accumulates debug records for one frame at a time and keeps the
// last completed frame for readers. It satisfies tracks.DebugCollector.
//
// The frame pass calls BeginFrame, Record*, then EndFrame. HTTP handlers
// read the result with Last from other goroutines.
type Collector struct {
	mu      sync.Mutex
	enabled bool
	current *Frame
	last    *Frame
}

// Frame contains all debug records for a single frame pass.
type Frame struct {
	FrameID uint64        `json:"frame_id"`
	Dt      time.Duration `json:"dt"`

	Associations []AssociationRecord `json:"associations"`
	Gates        []GateRecord        `json:"gates"`
	Innovations  []InnovationRecord  `json:"innovations"`
	Predictions  []PredictionRecord  `json:"predictions"`
}

// AssociationRecord is one report/track pairing the correlator considered.
type AssociationRecord struct {
	ReportIndex int     `json:"report_index"`
	TargetID    string  `json:"target_id,omitempty"`
	TrackID     int     `json:"track_id"`
	DistanceM   float64 `json:"distance_m"`
	Accepted    bool    `json:"accepted"`
}

// GateRecord is the spherical search region around a coast-predicted track.
type GateRecord struct {
	TrackID int       `json:"track_id"`
	Center  r3.Vector `json:"center"`
	RadiusM float64   `json:"radius_m"`
}

// InnovationRecord is the observation residual applied to a track.
type InnovationRecord struct {
	TrackID   int       `json:"track_id"`
	Predicted r3.Vector `json:"predicted"`
	Measured  r3.Vector `json:"measured"`
	Residual  float64   `json:"residual_m"`
}

// PredictionRecord is a track's state after the predict/correct step.
type PredictionRecord struct {
	TrackID  int       `json:"track_id"`
	Position r3.Vector `json:"position"`
	Velocity r3.Vector `json:"velocity"`
}

// NewCollector creates a collector that's initially disabled.
func NewCollector() *Collector {
	return &Collector{}
}

// SetEnabled controls whether the collector records anything. Disabling
// drops the in-progress frame but keeps the last completed one.
func (c *Collector) SetEnabled(enabled bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enabled = enabled
	if !enabled {
		c.current = nil
	}
}

// IsEnabled returns true if the collector is actively recording.
func (c *Collector) IsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// BeginFrame starts a new frame. Records made before BeginFrame are ignored.
func (c *Collector) BeginFrame(frameID uint64, dt time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.enabled {
		return
	}
	c.current = &Frame{
		FrameID:      frameID,
		Dt:           dt,
		Associations: make([]AssociationRecord, 0, defaultAssociationCapacity),
		Gates:        make([]GateRecord, 0, defaultGateCapacity),
		Innovations:  make([]InnovationRecord, 0, defaultInnovationCapacity),
		Predictions:  make([]PredictionRecord, 0, defaultPredictionCapacity),
	}
}

func (c *Collector) RecordAssociation(reportIdx int, targetID string, trackID int, distance float64, accepted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	c.current.Associations = append(c.current.Associations, AssociationRecord{
		ReportIndex: reportIdx,
		TargetID:    targetID,
		TrackID:     trackID,
		DistanceM:   distance,
		Accepted:    accepted,
	})
}

func (c *Collector) RecordGate(trackID int, center r3.Vector, radius float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	c.current.Gates = append(c.current.Gates, GateRecord{TrackID: trackID, Center: center, RadiusM: radius})
}

func (c *Collector) RecordInnovation(trackID int, predicted, measured r3.Vector, residual float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	c.current.Innovations = append(c.current.Innovations, InnovationRecord{
		TrackID:   trackID,
		Predicted: predicted,
		Measured:  measured,
		Residual:  residual,
	})
}

func (c *Collector) RecordPrediction(trackID int, position, velocity r3.Vector) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	c.current.Predictions = append(c.current.Predictions, PredictionRecord{
		TrackID:  trackID,
		Position: position,
		Velocity: velocity,
	})
}

// EndFrame publishes the in-progress frame as the last completed frame.
func (c *Collector) EndFrame() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return
	}
	c.last = c.current
	c.current = nil
}

// Last returns the most recently completed frame, or nil. The returned frame
// is never modified again by the collector.
func (c *Collector) Last() *Frame {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// Reset clears both the in-progress and the last completed frame.
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = nil
	c.last = nil
}
