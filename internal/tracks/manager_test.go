package tracks

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/trackcorr/internal/config"
	"github.com/banshee-data/trackcorr/internal/timeutil"
)

type eventLog struct {
	mu     sync.Mutex
	events []TrackEvent
}

func (l *eventLog) RecordTrackEvent(ev TrackEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) kinds() []EventKind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]EventKind, len(l.events))
	for i, ev := range l.events {
		out[i] = ev.Kind
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.TargetFilter = KindAny
	return cfg
}

func newTestManager(t *testing.T, cfg Config, opts ...Option) *Manager {
	t.Helper()
	opts = append([]Option{WithOwnship(StaticOwnship{})}, opts...)
	m, err := NewManager(cfg, opts...)
	require.NoError(t, err)
	return m
}

func groundReport(id string, x, y, z float64) Report {
	return Report{
		Target:   Target{ID: TargetID(id), Kind: KindGround},
		SensorID: "gmti-1",
		Position: r3.Vector{X: x, Y: y, Z: z},
	}
}

func TestManager_ConcreteScenario(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxTracks = 2
	cfg.MaxTrackAge = 3 * time.Second
	cfg.Alpha = 1.0
	cfg.Beta = 0
	m := newTestManager(t, cfg)

	require.True(t, m.NewReport(groundReport("A", 100, 0, 0), 1))
	m.Process(time.Second)

	snap := m.Snapshot(0)
	require.Len(t, snap, 1)
	assert.Equal(t, TargetID("A"), snap[0].Target.ID)
	assert.Equal(t, time.Duration(0), snap[0].Age)
	assertVec(t, r3.Vector{X: 100}, snap[0].Position)
	assert.Equal(t, StateUnassociated, snap[0].State)

	for frame, wantAge := range []time.Duration{time.Second, 2 * time.Second} {
		m.Process(time.Second)
		snap = m.Snapshot(0)
		require.Len(t, snap, 1, "frame %d", frame+2)
		assert.Equal(t, wantAge, snap[0].Age, "frame %d", frame+2)
		assert.Equal(t, StateCoasting, snap[0].State)
	}

	// Frame 4 takes age to 3s, which reaches MaxTrackAge.
	m.Process(time.Second)
	assert.Empty(t, m.Snapshot(0))
	assert.Equal(t, uint64(1), m.Stats().Evictions)
}

func TestManager_SpawnFromUnseenIdentity(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, testConfig())
	m.NewReport(groundReport("X", 10, 20, 0), 7.5)
	m.Process(100 * time.Millisecond)

	snap := m.Snapshot(0)
	require.Len(t, snap, 1)
	trk := snap[0]
	assert.Equal(t, TargetID("X"), trk.Target.ID)
	assert.Equal(t, time.Duration(0), trk.Age)
	assert.Equal(t, 1000, trk.ID)
	assert.Equal(t, 1, trk.Hits)
	assert.Equal(t, 7.5, trk.SignalQuality)
	assert.Equal(t, "gmti-1", trk.LastReport.SensorID)
	assert.True(t, trk.Type.Has(TypeGround|TypeOnboardSensor))
}

func TestManager_SpawnSeedsFromOwnshipDynamics(t *testing.T) {
	t.Parallel()

	own := StaticOwnship{
		Velocity:     r3.Vector{X: 10, Y: -2},
		Acceleration: r3.Vector{Z: 1},
	}
	m := newTestManager(t, testConfig(), WithOwnship(own))
	m.NewReport(groundReport("S", 500, 0, 0), 1)
	m.Process(time.Second)

	snap := m.Snapshot(0)
	require.Len(t, snap, 1)
	assertVec(t, r3.Vector{X: 500}, snap[0].Position, "not predicted in its spawn frame")
	assertVec(t, r3.Vector{X: -10, Y: 2}, snap[0].Velocity)
	assertVec(t, r3.Vector{Z: -1}, snap[0].Acceleration)
}

func TestManager_AssociationResetsAgeAndCorrects(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Alpha = 0.5
	cfg.Beta = 0.2
	m := newTestManager(t, cfg)

	m.NewReport(groundReport("A", 100, 0, 0), 1)
	m.Process(time.Second)

	m.NewReport(groundReport("A", 110, 0, 0), 3)
	m.Process(time.Second)

	snap := m.Snapshot(0)
	require.Len(t, snap, 1)
	trk := snap[0]
	assert.Equal(t, time.Duration(0), trk.Age)
	assert.Equal(t, StateAssociated, trk.State)
	assert.Equal(t, 2, trk.Hits)
	assert.Equal(t, 3.0, trk.SignalQuality)
	// Coast-only would leave X at 100; the innovation pulls it half way.
	assertVec(t, r3.Vector{X: 105}, trk.Position)
	assertVec(t, r3.Vector{X: 2}, trk.Velocity)
	assert.Equal(t, uint64(1), m.Stats().Associations)
}

func TestManager_LastMatchingReportWins(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Alpha = 1
	cfg.Beta = 0
	m := newTestManager(t, cfg)

	m.NewReport(groundReport("A", 100, 0, 0), 1)
	m.Process(time.Second)

	m.NewReport(groundReport("A", 110, 0, 0), 1)
	m.NewReport(groundReport("A", 120, 0, 0), 2)
	m.Process(time.Second)

	snap := m.Snapshot(0)
	require.Len(t, snap, 1, "matched reports never spawn")
	assertVec(t, r3.Vector{X: 120}, snap[0].Position)
	assert.Equal(t, 2.0, snap[0].SignalQuality)
}

func TestManager_UnmatchedReportsEachSpawnATrack(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.LogUpdates = true
	rec := &eventLog{}
	m := newTestManager(t, cfg, WithRecorder(rec))

	m.NewReport(groundReport("B", 50, 0, 0), 1)
	m.NewReport(groundReport("B", 60, 0, 0), 1)
	m.Process(time.Second)

	snap := m.Snapshot(0)
	require.Len(t, snap, 2)
	assert.Equal(t, []int{1000, 1001}, trackIDs(snap))
	assertVec(t, r3.Vector{X: 50}, snap[0].Position)
	assertVec(t, r3.Vector{X: 60}, snap[1].Position)
	for _, trk := range snap {
		assert.Equal(t, 1, trk.Hits)
	}
	assert.Equal(t, uint64(2), m.Stats().Spawns)

	// One report for the shared identity now updates both tracks.
	m.NewReport(groundReport("B", 70, 0, 0), 1)
	m.Process(time.Second)

	snap = m.Snapshot(0)
	require.Len(t, snap, 2)
	assert.Equal(t, []int{1000, 1001}, trackIDs(snap))
	for _, trk := range snap {
		assert.Equal(t, StateAssociated, trk.State)
		assert.Equal(t, 2, trk.Hits)
		assertVec(t, r3.Vector{X: 70}, trk.LastReport.Position)
	}
	assert.Equal(t, uint64(2), m.Stats().Spawns)
	assert.Equal(t, []EventKind{EventCreated, EventCreated, EventUpdated, EventUpdated}, rec.kinds())
}

func TestManager_SnapshotBound(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, testConfig())
	for _, id := range []string{"A", "B", "C"} {
		m.NewReport(groundReport(id, 0, 0, 0), 1)
	}
	m.Process(time.Second)

	assert.Equal(t, []int{1000, 1001}, trackIDs(m.Snapshot(2)))
	assert.Len(t, m.Snapshot(0), 3, "zero is unbounded")
	assert.Len(t, m.Snapshot(-1), 3, "negative is unbounded")
}

func TestManager_NoOpFrames(t *testing.T) {
	t.Parallel()

	t.Run("dt zero", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(t, testConfig())
		m.NewReport(groundReport("A", 1, 2, 3), 1)
		m.Process(time.Second)
		before := m.Snapshot(0)

		m.NewReport(groundReport("B", 0, 0, 0), 1)
		for i := 0; i < 5; i++ {
			m.Process(0)
		}

		if diff := cmp.Diff(before, m.Snapshot(0)); diff != "" {
			t.Errorf("dt=0 changed tracks (-before +after):\n%s", diff)
		}
		assert.Equal(t, 1, m.Stats().QueuedReports, "queue is not drained")
		assert.Equal(t, uint64(5), m.Stats().SkippedFrames)
	})

	t.Run("no ownship", func(t *testing.T) {
		t.Parallel()
		m := newTestManager(t, testConfig())
		m.NewReport(groundReport("A", 1, 2, 3), 1)
		m.Process(time.Second)

		m.SetOwnship(OwnshipFunc(func() (OwnshipState, bool) { return OwnshipState{}, false }))
		m.Process(time.Second)
		m.Process(time.Second)
		snap := m.Snapshot(0)
		require.Len(t, snap, 1)
		assert.Equal(t, time.Duration(0), snap[0].Age, "tracks are not aged")

		m.SetOwnship(nil)
		m.Process(time.Second)
		assert.Equal(t, time.Duration(0), m.Snapshot(0)[0].Age)
	})
}

func TestManager_Backpressure(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxReports = 5
	cfg.MaxTracks = 10
	m := newTestManager(t, cfg)

	accepted := 0
	for i := 0; i < cfg.MaxReports+1; i++ {
		if m.NewReport(groundReport(fmt.Sprintf("T%d", i), float64(i), 0, 0), 1) {
			accepted++
		}
	}
	assert.Equal(t, cfg.MaxReports, accepted)
	st := m.Stats()
	assert.Equal(t, uint64(1), st.ReportsDropped)
	assert.Equal(t, cfg.MaxReports, st.QueuedReports)

	m.Process(time.Second)
	assert.Len(t, m.Snapshot(0), cfg.MaxReports)
}

func TestManager_CapacityInvariant(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxTracks = 2
	cfg.LogUpdates = true
	rec := &eventLog{}
	m := newTestManager(t, cfg, WithRecorder(rec))

	for _, id := range []string{"A", "B", "C"} {
		m.NewReport(groundReport(id, 0, 0, 0), 1)
	}
	m.Process(time.Second)

	assert.Len(t, m.Snapshot(0), 2)
	_, ok := m.AddTrack(Track{Target: Target{ID: "D"}})
	assert.False(t, ok, "AddTrack obeys the same capacity")

	st := m.Stats()
	assert.Equal(t, uint64(2), st.Spawns)
	assert.Equal(t, uint64(2), st.SpawnsDropped)
	assert.Equal(t, []EventKind{EventCreated, EventCreated, EventSpawnDropped, EventSpawnDropped}, rec.kinds())
}

func TestManager_IDsMonotonicAndResetRestarts(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.FirstTrackID = 1000
	m := newTestManager(t, cfg)

	m.NewReport(groundReport("A", 0, 0, 0), 1)
	m.NewReport(groundReport("B", 0, 0, 0), 1)
	m.Process(time.Second)
	id, ok := m.AddTrack(Track{Target: Target{ID: "ext"}})
	require.True(t, ok)
	assert.Equal(t, 1002, id)
	m.NewReport(groundReport("C", 0, 0, 0), 1)
	m.Process(time.Second)

	assert.Equal(t, []int{1000, 1001, 1002, 1003}, trackIDs(m.Snapshot(0)))

	m.Reset()
	assert.Empty(t, m.Snapshot(0))
	assert.Equal(t, Stats{}, m.Stats())

	m.NewReport(groundReport("Z", 0, 0, 0), 1)
	m.Process(time.Second)
	assert.Equal(t, []int{1000}, trackIDs(m.Snapshot(0)))
}

func TestManager_EvictionKeepsOrder(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxTrackAge = 2 * time.Second
	m := newTestManager(t, cfg)

	for _, id := range []string{"A", "B", "C"} {
		m.NewReport(groundReport(id, 0, 0, 0), 1)
	}
	m.Process(time.Second)
	ids := trackIDs(m.Snapshot(0))
	require.Len(t, ids, 3)

	for i := 0; i < 2; i++ {
		m.NewReport(groundReport("A", 0, 0, 0), 1)
		m.NewReport(groundReport("C", 0, 0, 0), 1)
		m.Process(time.Second)
	}

	assert.Equal(t, []int{ids[0], ids[2]}, trackIDs(m.Snapshot(0)))
	assert.Equal(t, uint64(1), m.Stats().Evictions)
}

func TestManager_FilteredReportsNeverMatch(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig() // ground only
	m := newTestManager(t, cfg)

	air := Report{Target: Target{ID: "jet", Kind: KindAir}}
	require.True(t, m.NewReport(air, 1), "filtering happens at drain time")
	m.Process(time.Second)

	assert.Empty(t, m.Snapshot(0))
	assert.Equal(t, uint64(1), m.Stats().ReportsFiltered)
	assert.Equal(t, 0, m.Stats().QueuedReports)
}

func TestManager_RecorderEvents(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.LogUpdates = true
	cfg.MaxTrackAge = time.Second
	cfg.OwnerID = "blue-1"
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	rec := &eventLog{}
	m := newTestManager(t, cfg, WithRecorder(rec), WithClock(clock))

	m.NewReport(groundReport("A", 0, 0, 0), 1)
	m.Process(500 * time.Millisecond)
	m.NewReport(groundReport("A", 1, 0, 0), 1)
	m.Process(500 * time.Millisecond)
	m.Process(time.Second)

	assert.Equal(t, []EventKind{EventCreated, EventUpdated, EventRemoved}, rec.kinds())
	for _, ev := range rec.events {
		assert.Equal(t, "blue-1", ev.OwnerID)
		assert.Equal(t, clock.Now(), ev.Time)
		assert.Equal(t, TargetID("A"), ev.Track.Target.ID)
	}
	assert.Equal(t, uint64(3), rec.events[2].Frame)
}

func TestManager_RecorderSilentWithoutLogUpdates(t *testing.T) {
	t.Parallel()

	rec := &eventLog{}
	m := newTestManager(t, testConfig(), WithRecorder(rec))
	m.NewReport(groundReport("A", 0, 0, 0), 1)
	m.Process(time.Second)
	m.Reset()

	assert.Empty(t, rec.kinds())
}

func TestManager_KilledAndClearAreIdempotent(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, testConfig())
	m.NewReport(groundReport("A", 0, 0, 0), 1)
	m.Process(time.Second)
	m.NewReport(groundReport("B", 0, 0, 0), 1)

	m.Killed()
	assert.Empty(t, m.Snapshot(0))
	assert.Equal(t, 0, m.Stats().QueuedReports)

	m.ClearTracksAndQueues()
	m.Killed()
	assert.Empty(t, m.Snapshot(0))

	// Kill does not restart IDs; Reset does.
	m.NewReport(groundReport("C", 0, 0, 0), 1)
	m.Process(time.Second)
	assert.Equal(t, []int{1001}, trackIDs(m.Snapshot(0)))
}

func TestManager_Reconfigure(t *testing.T) {
	t.Parallel()

	m := newTestManager(t, testConfig())
	m.NewReport(groundReport("A", 0, 0, 0), 1)
	m.Process(time.Second)

	t.Run("invalid keeps previous", func(t *testing.T) {
		bad := testConfig()
		bad.MaxTrackAge = 0
		err := m.Reconfigure(bad)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidConfig))
		assert.Equal(t, testConfig(), m.Config())
		assert.Len(t, m.Snapshot(0), 1, "rejected reconfiguration leaves tracks alone")
	})

	t.Run("valid clears and resizes", func(t *testing.T) {
		next := testConfig()
		next.MaxTracks = 1
		next.MaxReports = 1
		next.FirstTrackID = 7
		next.Correlator = CorrelatorGated
		require.NoError(t, m.Reconfigure(next))

		assert.Empty(t, m.Snapshot(0))
		assert.Equal(t, CorrelatorGated, m.Correlator())
		assert.True(t, m.NewReport(groundReport("B", 0, 0, 0), 1))
		assert.False(t, m.NewReport(groundReport("C", 0, 0, 0), 1))
		m.Process(time.Second)
		assert.Equal(t, []int{7}, trackIDs(m.Snapshot(0)))
	})
}

func TestManager_GatedAssociatesAnonymousReports(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Correlator = CorrelatorGated
	cfg.GateDistance = 50
	cfg.Alpha = 1
	cfg.Beta = 0
	m := newTestManager(t, cfg)

	id, ok := m.AddTrack(Track{Position: r3.Vector{X: 100}, Velocity: r3.Vector{X: 10}})
	require.True(t, ok)

	anon := func(x float64) Report {
		return Report{Target: Target{Kind: KindAir}, Position: r3.Vector{X: x}}
	}
	m.NewReport(anon(112), 1)
	m.NewReport(anon(900), 1)
	m.Process(time.Second)

	snap := m.Snapshot(0)
	require.Len(t, snap, 2)
	assert.Equal(t, id, snap[0].ID)
	assertVec(t, r3.Vector{X: 112}, snap[0].Position)
	assert.True(t, snap[0].Type.Has(TypeExternal|TypeOnboardSensor))
	assertVec(t, r3.Vector{X: 900}, snap[1].Position)
}

func TestManager_DebugCollectorHooks(t *testing.T) {
	t.Parallel()

	dbg := &countingCollector{enabled: true}
	m := newTestManager(t, testConfig(), WithDebugCollector(dbg))
	m.NewReport(groundReport("A", 0, 0, 0), 1)
	m.Process(time.Second)
	m.NewReport(groundReport("A", 1, 0, 0), 1)
	m.Process(time.Second)

	assert.Equal(t, 2, dbg.frames)
	assert.Equal(t, 2, dbg.ended)
	assert.Equal(t, 1, dbg.associations)
	assert.Equal(t, 1, dbg.innovations)
	assert.Equal(t, 1, dbg.predictions, "spawned tracks are not predicted in their first frame")
}

type countingCollector struct {
	enabled                                                    bool
	frames, ended, associations, gates, innovations, predictions int
}

func (c *countingCollector) IsEnabled() bool                    { return c.enabled }
func (c *countingCollector) BeginFrame(uint64, time.Duration)   { c.frames++ }
func (c *countingCollector) EndFrame()                          { c.ended++ }
func (c *countingCollector) RecordGate(int, r3.Vector, float64) { c.gates++ }
func (c *countingCollector) RecordAssociation(int, string, int, float64, bool) {
	c.associations++
}
func (c *countingCollector) RecordInnovation(int, r3.Vector, r3.Vector, float64) {
	c.innovations++
}
func (c *countingCollector) RecordPrediction(int, r3.Vector, r3.Vector) { c.predictions++ }

func TestManager_ConcurrentProducersAndReaders(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.MaxTracks = 20
	cfg.MaxReports = 32
	m := newTestManager(t, cfg)

	const producers, perProducer = 4, 200
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				m.NewReport(groundReport(fmt.Sprintf("p%d-%d", p, i%30), float64(i), 0, 0), 1)
			}
		}(p)
	}

	var readerErr error
	var readerWG sync.WaitGroup
	readerWG.Add(1)
	go func() {
		defer readerWG.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if n := len(m.Snapshot(0)); n > cfg.MaxTracks {
				readerErr = fmt.Errorf("snapshot has %d tracks, max %d", n, cfg.MaxTracks)
				return
			}
			_ = m.Stats()
		}
	}()

	for i := 0; i < 200; i++ {
		m.Process(10 * time.Millisecond)
	}
	wg.Wait()
	m.Process(10 * time.Millisecond)
	close(stop)
	readerWG.Wait()

	require.NoError(t, readerErr)
	st := m.Stats()
	assert.LessOrEqual(t, st.LiveTracks, cfg.MaxTracks)
	assert.Equal(t, uint64(producers*perProducer), st.ReportsAccepted+st.ReportsDropped)
	assert.Equal(t, 0, st.QueuedReports)

	seen := map[int]bool{}
	for _, trk := range m.Snapshot(0) {
		assert.False(t, seen[trk.ID], "duplicate ID %d", trk.ID)
		seen[trk.ID] = true
	}
}

func TestConfigFromTuning(t *testing.T) {
	t.Parallel()

	tc := config.MustLoadDefaultConfig()
	cfg, err := ConfigFromTuning(tc)
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("defaults file and DefaultConfig disagree (-want +got):\n%s", diff)
	}

	bad := config.DefaultTuningConfig()
	bad.TargetFilter = []string{"submarine"}
	_, err = ConfigFromTuning(bad)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"max tracks", func(c *Config) { c.MaxTracks = 0 }},
		{"max reports", func(c *Config) { c.MaxReports = -1 }},
		{"max track age", func(c *Config) { c.MaxTrackAge = 0 }},
		{"first id", func(c *Config) { c.FirstTrackID = -5 }},
		{"alpha", func(c *Config) { c.Alpha = 2.1 }},
		{"beta", func(c *Config) { c.Beta = -0.1 }},
		{"gamma", func(c *Config) { c.Gamma = 5 }},
		{"gate", func(c *Config) { c.GateDistance = -1 }},
		{"correlator", func(c *Config) { c.Correlator = "psychic" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
			_, err := NewManager(cfg)
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
	assert.NoError(t, DefaultConfig().Validate())
}
