package tracks

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/banshee-data/trackcorr/internal/monitoring"
	"github.com/banshee-data/trackcorr/internal/timeutil"
)

// Manager is the track manager orchestrator. It owns a Table and a
// ReportQueue and runs one correlation and prediction pass per Process call.
//
// NewReport and Snapshot may be called from any goroutine at any time. The
// mutators (Process, AddTrack, Reset, ClearTracksAndQueues, Reconfigure)
// are serialised against each other but never hold the table or queue lock
// while correlating.
type Manager struct {
	// passMu serialises mutators. The frame pass holds it for its
	// duration; Snapshot and NewReport never take it.
	passMu sync.Mutex

	cfg        atomic.Pointer[Config]
	table      *Table
	queue      *ReportQueue
	predictor  *Predictor
	correlator Correlator

	ownship  Ownship
	recorder Recorder
	debug    DebugCollector
	clock    timeutil.Clock

	nextID  int
	frameID uint64

	// Scratch buffers reused between frames; only touched under passMu.
	work  []Track
	batch []QueuedReport

	frames          atomic.Uint64
	skippedFrames   atomic.Uint64
	reportsAccepted atomic.Uint64
	reportsDropped  atomic.Uint64
	reportsFiltered atomic.Uint64
	spawns          atomic.Uint64
	spawnsDropped   atomic.Uint64
	associations    atomic.Uint64
	evictions       atomic.Uint64
}

// Option configures optional collaborators on NewManager.
type Option func(*Manager)

// WithOwnship sets the owning entity state source.
func WithOwnship(o Ownship) Option { return func(m *Manager) { m.ownship = o } }

// WithRecorder sets the data recorder used when LogUpdates is enabled.
func WithRecorder(r Recorder) Option { return func(m *Manager) { m.recorder = r } }

// WithDebugCollector attaches per-frame instrumentation.
func WithDebugCollector(d DebugCollector) Option { return func(m *Manager) { m.debug = d } }

// WithClock overrides the clock used to timestamp recorder events.
func WithClock(c timeutil.Clock) Option { return func(m *Manager) { m.clock = c } }

// NewManager validates cfg and builds a Manager.
func NewManager(cfg Config, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	corr, err := NewCorrelator(cfg.Correlator, cfg.TargetFilter, cfg.GateDistance)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	m := &Manager{
		table:      NewTable(cfg.MaxTracks),
		queue:      NewReportQueue(cfg.MaxReports),
		predictor:  NewPredictor(cfg.Alpha, cfg.Beta, cfg.Gamma, cfg.GammaEnabled),
		correlator: corr,
		clock:      timeutil.RealClock{},
		nextID:     cfg.FirstTrackID,
		work:       make([]Track, 0, cfg.MaxTracks),
		batch:      make([]QueuedReport, 0, cfg.MaxReports),
	}
	m.cfg.Store(&cfg)
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Config returns a copy of the active configuration.
func (m *Manager) Config() Config {
	return *m.cfg.Load()
}

// Correlator returns the name of the active association strategy.
func (m *Manager) Correlator() string {
	m.passMu.Lock()
	defer m.passMu.Unlock()
	return m.correlator.Name()
}

// SetOwnship replaces the owning entity state source. A nil Ownship makes
// every following frame a no-op.
func (m *Manager) SetOwnship(o Ownship) {
	m.passMu.Lock()
	defer m.passMu.Unlock()
	m.ownship = o
}

// SetRecorder replaces the data recorder.
func (m *Manager) SetRecorder(r Recorder) {
	m.passMu.Lock()
	defer m.passMu.Unlock()
	m.recorder = r
}

// SetDebugCollector replaces the debug collector.
func (m *Manager) SetDebugCollector(d DebugCollector) {
	m.passMu.Lock()
	defer m.passMu.Unlock()
	m.debug = d
}

// NewReport queues a sensor detection for the next frame. It never blocks;
// when the queue is full the report is dropped and false is returned.
func (m *Manager) NewReport(r Report, signalLevel float64) bool {
	if !m.queue.Push(r, signalLevel) {
		n := m.reportsDropped.Add(1)
		monitoring.Logf("[tracks] report queue full (%d), dropped report target=%q sensor=%q (total dropped %d)",
			m.queue.Cap(), r.Target.ID, r.SensorID, n)
		return false
	}
	m.reportsAccepted.Add(1)
	return true
}

// Process runs one frame: age, drain, correlate, predict, spawn, evict.
// A frame with no ownship state or a non-positive dt does nothing.
func (m *Manager) Process(dt time.Duration) {
	m.passMu.Lock()
	defer m.passMu.Unlock()

	if m.ownship == nil || dt <= 0 {
		m.skippedFrames.Add(1)
		return
	}
	own, ok := m.ownship.OwnshipState()
	if !ok {
		m.skippedFrames.Add(1)
		return
	}

	cfg := m.cfg.Load()
	m.frameID++
	frame := Frame{ID: m.frameID, Dt: dt, Ownship: own}
	debugOn := m.debug != nil && m.debug.IsEnabled()
	if debugOn {
		m.debug.BeginFrame(frame.ID, dt)
		defer m.debug.EndFrame()
	}

	m.work = m.table.checkout(m.work)
	for i := range m.work {
		m.work[i].Age += dt
	}

	m.drain()

	matches := m.correlator.Match(m.batch, m.work, frame, m.debug)

	m.predictor.SetDt(dt)
	for i := range m.work {
		trk := &m.work[i]
		r := matches.TrackReport[i]
		if r < 0 {
			m.predictor.Coast(trk)
			trk.State = StateCoasting
		} else {
			qr := &m.batch[r]
			innov := m.predictor.Correct(trk, qr.Report.Position, trk.Age)
			trk.Age = 0
			trk.State = StateAssociated
			trk.Hits++
			trk.SignalQuality = qr.SignalLevel
			trk.LastReport = qr.Report
			trk.Type |= TypeOnboardSensor
			m.associations.Add(1)
			if debugOn {
				m.debug.RecordInnovation(trk.ID, qr.Report.Position.Sub(innov), qr.Report.Position, innov.Norm())
			}
			if cfg.LogUpdates {
				m.emit(EventUpdated, frame.ID, *trk)
			}
		}
		if debugOn {
			m.debug.RecordPrediction(trk.ID, trk.Position, trk.Velocity)
		}
	}

	m.spawn(cfg, frame, matches)
	m.evict(cfg, frame.ID)

	m.table.commit(m.work)
	clear(m.batch)
	m.batch = m.batch[:0]
	m.frames.Add(1)
}

// drain pops at most one queue's worth of reports into m.batch, releasing
// any the correlator does not accept. The bound keeps a frame finite while
// producers keep pushing.
func (m *Manager) drain() {
	m.batch = m.batch[:0]
	limit := m.queue.Cap()
	for i := 0; i < limit; i++ {
		qr, ok := m.queue.DrainOne()
		if !ok {
			return
		}
		if !m.correlator.Accepts(qr.Report.Target) {
			m.reportsFiltered.Add(1)
			continue
		}
		m.batch = append(m.batch, qr)
	}
}

// spawn creates one track per report that matched nothing, while capacity
// allows.
func (m *Manager) spawn(cfg *Config, frame Frame, matches Matches) {
	for r := range m.batch {
		if matches.ReportMatched[r] {
			continue
		}
		qr := &m.batch[r]
		id := qr.Report.Target.ID

		trk := seedTrack(qr, frame.Ownship)
		if len(m.work) >= cfg.MaxTracks {
			m.spawnsDropped.Add(1)
			monitoring.Logf("[tracks] track table full (%d), dropped spawn for target=%q", cfg.MaxTracks, id)
			if cfg.LogUpdates {
				m.emit(EventSpawnDropped, frame.ID, trk)
			}
			continue
		}
		trk.ID = m.nextID
		m.nextID++
		m.work = append(m.work, trk)
		m.spawns.Add(1)
		if cfg.LogUpdates {
			m.emit(EventCreated, frame.ID, trk)
		}
	}
}

// seedTrack builds a new track from an unmatched report. The target is
// assumed stationary in the earth frame, so its ownship-relative velocity
// and acceleration are the negated ownship dynamics.
func seedTrack(qr *QueuedReport, own OwnshipState) Track {
	return Track{
		Target:        qr.Report.Target,
		Type:          typeForKind(qr.Report.Target.Kind) | TypeOnboardSensor,
		State:         StateUnassociated,
		Position:      qr.Report.Position,
		Velocity:      own.Velocity.Mul(-1),
		Acceleration:  own.Acceleration.Mul(-1),
		Hits:          1,
		SignalQuality: qr.SignalLevel,
		LastReport:    qr.Report,
	}
}

// evict removes every track whose age reached MaxTrackAge, compacting in
// place so the survivors keep their order.
func (m *Manager) evict(cfg *Config, frameID uint64) {
	for i := 0; i < len(m.work); {
		if m.work[i].Age < cfg.MaxTrackAge {
			i++
			continue
		}
		gone := m.work[i]
		m.work = removeAt(m.work, i)
		m.evictions.Add(1)
		monitoring.Logf("[tracks] removed track %d target=%q age=%s hits=%d", gone.ID, gone.Target.ID, gone.Age, gone.Hits)
		if cfg.LogUpdates {
			m.emit(EventRemoved, frameID, gone)
		}
	}
}

// AddTrack inserts trk directly, bypassing correlation. The manager assigns
// the ID. It returns false when the table is full.
func (m *Manager) AddTrack(trk Track) (int, bool) {
	m.passMu.Lock()
	defer m.passMu.Unlock()

	cfg := m.cfg.Load()
	trk.ID = m.nextID
	trk.Type |= TypeExternal
	if !m.table.Add(trk) {
		m.spawnsDropped.Add(1)
		monitoring.Logf("[tracks] track table full (%d), dropped external track target=%q", cfg.MaxTracks, trk.Target.ID)
		if cfg.LogUpdates {
			m.emit(EventSpawnDropped, m.frameID, trk)
		}
		return 0, false
	}
	m.nextID++
	m.spawns.Add(1)
	if cfg.LogUpdates {
		m.emit(EventCreated, m.frameID, trk)
	}
	return trk.ID, true
}

// Snapshot returns copies of up to max live tracks. max <= 0 returns all.
// The result does not follow later frames.
func (m *Manager) Snapshot(max int) []Track {
	return m.table.Snapshot(max)
}

// Lookup returns a copy of the live track with the given ID.
func (m *Manager) Lookup(id int) (Track, bool) {
	return m.table.Lookup(id)
}

// ClearTracksAndQueues drops every track and queued report. It is safe to
// call repeatedly.
func (m *Manager) ClearTracksAndQueues() {
	m.passMu.Lock()
	defer m.passMu.Unlock()
	m.clearLocked()
}

func (m *Manager) clearLocked() {
	cfg := m.cfg.Load()
	removed := m.table.Clear()
	queued := m.queue.Clear()
	if len(removed) > 0 || queued > 0 {
		monitoring.Logf("[tracks] cleared %d tracks and %d queued reports", len(removed), queued)
	}
	if cfg.LogUpdates {
		for _, trk := range removed {
			m.emit(EventRemoved, m.frameID, trk)
		}
	}
}

// Reset clears tracks and queues and restarts track IDs at FirstTrackID.
// Counters start over.
func (m *Manager) Reset() {
	m.passMu.Lock()
	defer m.passMu.Unlock()
	m.clearLocked()
	m.nextID = m.cfg.Load().FirstTrackID
	m.frameID = 0
	m.resetStats()
}

// Killed is the owning entity's kill notification. Unlike Reset it does not
// restart track IDs.
func (m *Manager) Killed() {
	m.ClearTracksAndQueues()
}

// Reconfigure validates cfg and, on success, swaps it in, resizes the table
// and queue, and restarts track IDs. On error the previous config stays.
func (m *Manager) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		monitoring.Logf("[tracks] rejected reconfiguration: %v", err)
		return err
	}
	corr, err := NewCorrelator(cfg.Correlator, cfg.TargetFilter, cfg.GateDistance)
	if err != nil {
		monitoring.Logf("[tracks] rejected reconfiguration: %v", err)
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	m.passMu.Lock()
	defer m.passMu.Unlock()
	m.clearLocked()
	m.cfg.Store(&cfg)
	m.table.resize(cfg.MaxTracks)
	m.queue.resize(cfg.MaxReports)
	m.predictor = NewPredictor(cfg.Alpha, cfg.Beta, cfg.Gamma, cfg.GammaEnabled)
	m.correlator = corr
	m.nextID = cfg.FirstTrackID
	monitoring.Logf("[tracks] reconfigured: max_tracks=%d max_reports=%d max_track_age=%s correlator=%s",
		cfg.MaxTracks, cfg.MaxReports, cfg.MaxTrackAge, corr.Name())
	return nil
}

// Stats returns the current counters.
func (m *Manager) Stats() Stats {
	return Stats{
		Frames:          m.frames.Load(),
		SkippedFrames:   m.skippedFrames.Load(),
		ReportsAccepted: m.reportsAccepted.Load(),
		ReportsDropped:  m.reportsDropped.Load(),
		ReportsFiltered: m.reportsFiltered.Load(),
		Spawns:          m.spawns.Load(),
		SpawnsDropped:   m.spawnsDropped.Load(),
		Associations:    m.associations.Load(),
		Evictions:       m.evictions.Load(),
		LiveTracks:      m.table.Len(),
		QueuedReports:   m.queue.Len(),
	}
}

func (m *Manager) resetStats() {
	for _, c := range []*atomic.Uint64{
		&m.frames, &m.skippedFrames, &m.reportsAccepted, &m.reportsDropped,
		&m.reportsFiltered, &m.spawns, &m.spawnsDropped, &m.associations, &m.evictions,
	} {
		c.Store(0)
	}
}

func (m *Manager) emit(kind EventKind, frameID uint64, trk Track) {
	if m.recorder == nil {
		return
	}
	m.recorder.RecordTrackEvent(TrackEvent{
		Kind:    kind,
		OwnerID: m.cfg.Load().OwnerID,
		Frame:   frameID,
		Time:    m.clock.Now(),
		Track:   trk,
	})
}
