package sqlite

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/trackcorr/internal/monitoring"
	"github.com/banshee-data/trackcorr/internal/tracks"
)

// DefaultRecorderBuffer is the number of events a RunRecorder queues before
// it starts dropping.
const DefaultRecorderBuffer = 1024

var errRecorderClosed = errors.New("run recorder closed")

// RunRecorder writes track events for one run on a background goroutine so
// the frame pass never waits on the database. When its buffer is full new
// events are dropped and counted.
type RunRecorder struct {
	store *EventStore
	runID string

	mu     sync.RWMutex
	closed bool
	events chan tracks.TrackEvent
	done   chan struct{}

	written atomic.Uint64
	dropped atomic.Uint64
	failed  atomic.Uint64
}

// StartRun creates a run row and returns a recorder writing into it.
// buffer <= 0 selects DefaultRecorderBuffer.
func (s *EventStore) StartRun(ownerID, correlator string, cfg any, started time.Time, buffer int) (*RunRecorder, error) {
	runID, err := s.CreateRun(ownerID, correlator, cfg, started)
	if err != nil {
		return nil, err
	}
	if buffer <= 0 {
		buffer = DefaultRecorderBuffer
	}
	r := &RunRecorder{
		store:  s,
		runID:  runID,
		events: make(chan tracks.TrackEvent, buffer),
		done:   make(chan struct{}),
	}
	go r.loop()
	return r, nil
}

// ID returns the run's UUID.
func (r *RunRecorder) ID() string { return r.runID }

// RecordTrackEvent implements tracks.Recorder. It never blocks.
func (r *RunRecorder) RecordTrackEvent(ev tracks.TrackEvent) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.dropped.Add(1)
		return
	}
	select {
	case r.events <- ev:
	default:
		if r.dropped.Add(1)%100 == 1 {
			monitoring.Logf("[recorder] run %s: buffer full, dropping events (%d dropped)", r.runID, r.dropped.Load())
		}
	}
}

func (r *RunRecorder) loop() {
	defer close(r.done)
	for ev := range r.events {
		if err := r.store.InsertEvent(r.runID, ev); err != nil {
			if r.failed.Add(1) == 1 {
				monitoring.Logf("[recorder] run %s: %v", r.runID, err)
			}
			continue
		}
		r.written.Add(1)
	}
}

// Written returns how many events reached the database.
func (r *RunRecorder) Written() uint64 { return r.written.Load() }

// Dropped returns how many events were discarded for lack of buffer space
// or after Close.
func (r *RunRecorder) Dropped() uint64 { return r.dropped.Load() }

// Failed returns how many inserts returned an error.
func (r *RunRecorder) Failed() uint64 { return r.failed.Load() }

// Close flushes queued events, stamps the run's end time and stops the
// writer. A second Close returns an error.
func (r *RunRecorder) Close(ended time.Time) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errRecorderClosed
	}
	r.closed = true
	close(r.events)
	r.mu.Unlock()

	<-r.done
	monitoring.Logf("[recorder] run %s closed: written=%d dropped=%d failed=%d",
		r.runID, r.Written(), r.Dropped(), r.Failed())
	return r.store.EndRun(r.runID, ended)
}
