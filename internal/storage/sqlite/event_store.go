package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/golang/geo/r3"
	"github.com/google/uuid"

	"github.com/banshee-data/trackcorr/internal/tracks"
)

// Run is one recorded manager session.
type Run struct {
	RunID        string `json:"run_id"`
	OwnerID      string `json:"owner_id"`
	Correlator   string `json:"correlator"`
	ConfigJSON   string `json:"config_json,omitempty"`
	StartedNanos int64  `json:"started_unix_nanos"`
	EndedNanos   *int64 `json:"ended_unix_nanos,omitempty"`
}

// EventRecord is a persisted tracks.TrackEvent.
type EventRecord struct {
	EventID       string           `json:"event_id"`
	RunID         string           `json:"run_id"`
	Kind          tracks.EventKind `json:"kind"`
	Frame         uint64           `json:"frame"`
	OwnerID       string           `json:"owner_id"`
	TrackID       int              `json:"track_id"`
	TargetID      string           `json:"target_id"`
	TargetKind    tracks.TargetKind `json:"target_kind"`
	TypeFlags     tracks.TypeFlags  `json:"type_flags"`
	State         string        `json:"state"`
	Position      r3.Vector     `json:"position"`
	Velocity      r3.Vector     `json:"velocity"`
	Acceleration  r3.Vector     `json:"acceleration"`
	Age           time.Duration `json:"age"`
	Hits          int           `json:"hits"`
	SignalQuality float64       `json:"signal_quality"`
	RecordedNanos int64         `json:"recorded_unix_nanos"`
}

// TrajectoryPoint is one position sample of a track within a run.
type TrajectoryPoint struct {
	Frame    uint64
	Position r3.Vector
}

// EventStore provides persistence for runs and track events.
type EventStore struct {
	db *sql.DB
}

// NewEventStore creates a new EventStore over a migrated database.
func NewEventStore(db *sql.DB) *EventStore {
	return &EventStore{db: db}
}

// CreateRun inserts a run row and returns its new UUID. cfg is stored as
// JSON for later inspection; it may be nil.
func (s *EventStore) CreateRun(ownerID, correlator string, cfg any, started time.Time) (string, error) {
	var cfgJSON sql.NullString
	if cfg != nil {
		b, err := json.Marshal(cfg)
		if err != nil {
			return "", fmt.Errorf("marshal run config: %w", err)
		}
		cfgJSON = sql.NullString{String: string(b), Valid: true}
	}

	runID := uuid.New().String()
	_, err := s.db.Exec(`
		INSERT INTO runs (run_id, owner_id, correlator, config_json, started_unix_nanos)
		VALUES (?, ?, ?, ?, ?)
	`, runID, ownerID, correlator, cfgJSON, started.UnixNano())
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return runID, nil
}

// EndRun stamps the run's end time.
func (s *EventStore) EndRun(runID string, ended time.Time) error {
	res, err := s.db.Exec(`UPDATE runs SET ended_unix_nanos = ? WHERE run_id = ?`, ended.UnixNano(), runID)
	if err != nil {
		return fmt.Errorf("end run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("end run: %w", sql.ErrNoRows)
	}
	return nil
}

// InsertEvent persists one event under runID.
func (s *EventStore) InsertEvent(runID string, ev tracks.TrackEvent) error {
	t := ev.Track
	_, err := s.db.Exec(`
		INSERT INTO track_events (
			event_id, run_id, kind, frame, owner_id,
			track_id, target_id, target_kind, type_flags, state,
			pos_x, pos_y, pos_z, vel_x, vel_y, vel_z, acc_x, acc_y, acc_z,
			age_nanos, hits, signal_quality, recorded_unix_nanos
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		uuid.New().String(), runID, string(ev.Kind), int64(ev.Frame), ev.OwnerID,
		t.ID, string(t.Target.ID), int64(t.Target.Kind), int64(t.Type), t.State.String(),
		t.Position.X, t.Position.Y, t.Position.Z,
		t.Velocity.X, t.Velocity.Y, t.Velocity.Z,
		t.Acceleration.X, t.Acceleration.Y, t.Acceleration.Z,
		int64(t.Age), t.Hits, t.SignalQuality, ev.Time.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("insert track event: %w", err)
	}
	return nil
}

// ListByRun returns the events of a run in frame order. limit <= 0 returns
// all of them.
func (s *EventStore) ListByRun(runID string, limit int) ([]*EventRecord, error) {
	query := `
		SELECT event_id, run_id, kind, frame, owner_id,
		       track_id, target_id, target_kind, type_flags, state,
		       pos_x, pos_y, pos_z, vel_x, vel_y, vel_z, acc_x, acc_y, acc_z,
		       age_nanos, hits, signal_quality, recorded_unix_nanos
		FROM track_events
		WHERE run_id = ?
		ORDER BY frame, recorded_unix_nanos, rowid
	`
	args := []any{runID}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list track events: %w", err)
	}
	defer rows.Close()

	var events []*EventRecord
	for rows.Next() {
		e := &EventRecord{}
		var kind string
		var frame, targetKind, typeFlags, ageNanos int64
		err := rows.Scan(
			&e.EventID, &e.RunID, &kind, &frame, &e.OwnerID,
			&e.TrackID, &e.TargetID, &targetKind, &typeFlags, &e.State,
			&e.Position.X, &e.Position.Y, &e.Position.Z,
			&e.Velocity.X, &e.Velocity.Y, &e.Velocity.Z,
			&e.Acceleration.X, &e.Acceleration.Y, &e.Acceleration.Z,
			&ageNanos, &e.Hits, &e.SignalQuality, &e.RecordedNanos,
		)
		if err != nil {
			return nil, fmt.Errorf("scan track event: %w", err)
		}
		e.Kind = tracks.EventKind(kind)
		e.Frame = uint64(frame)
		e.TargetKind = tracks.TargetKind(targetKind)
		e.TypeFlags = tracks.TypeFlags(typeFlags)
		e.Age = time.Duration(ageNanos)
		events = append(events, e)
	}
	return events, rows.Err()
}

// CountByKind tallies a run's events by kind.
func (s *EventStore) CountByKind(runID string) (map[tracks.EventKind]int, error) {
	rows, err := s.db.Query(`
		SELECT kind, COUNT(*) FROM track_events WHERE run_id = ? GROUP BY kind
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("count track events: %w", err)
	}
	defer rows.Close()

	counts := make(map[tracks.EventKind]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, fmt.Errorf("scan event count: %w", err)
		}
		counts[tracks.EventKind(kind)] = n
	}
	return counts, rows.Err()
}

// Runs lists recorded runs, newest first.
func (s *EventStore) Runs() ([]*Run, error) {
	rows, err := s.db.Query(`
		SELECT run_id, owner_id, correlator, config_json, started_unix_nanos, ended_unix_nanos
		FROM runs
		ORDER BY started_unix_nanos DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var cfg sql.NullString
		var ended sql.NullInt64
		if err := rows.Scan(&r.RunID, &r.OwnerID, &r.Correlator, &cfg, &r.StartedNanos, &ended); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if cfg.Valid {
			r.ConfigJSON = cfg.String
		}
		if ended.Valid {
			r.EndedNanos = &ended.Int64
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Trajectories returns the recorded positions of every track in a run,
// keyed by track ID, in frame order.
func (s *EventStore) Trajectories(runID string) (map[int][]TrajectoryPoint, error) {
	rows, err := s.db.Query(`
		SELECT track_id, frame, pos_x, pos_y, pos_z
		FROM track_events
		WHERE run_id = ? AND kind != ?
		ORDER BY track_id, frame, rowid
	`, runID, string(tracks.EventSpawnDropped))
	if err != nil {
		return nil, fmt.Errorf("query trajectories: %w", err)
	}
	defer rows.Close()

	out := make(map[int][]TrajectoryPoint)
	for rows.Next() {
		var id int
		var frame int64
		var p r3.Vector
		if err := rows.Scan(&id, &frame, &p.X, &p.Y, &p.Z); err != nil {
			return nil, fmt.Errorf("scan trajectory point: %w", err)
		}
		out[id] = append(out[id], TrajectoryPoint{Frame: uint64(frame), Position: p})
	}
	return out, rows.Err()
}
