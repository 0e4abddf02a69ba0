// Package monitor serves the track manager's live state over HTTP: JSON
// snapshots and counters, the last debug frame, recorded runs, and a
// go-echarts scatter of the current tracks.
package monitor

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"

	"github.com/banshee-data/trackcorr/internal/httputil"
	sqlite "github.com/banshee-data/trackcorr/internal/storage/sqlite"
	"github.com/banshee-data/trackcorr/internal/tracks"
	"github.com/banshee-data/trackcorr/internal/tracks/debug"
	"github.com/banshee-data/trackcorr/internal/units"
)

// TrackSource is the part of *tracks.Manager the API reads and controls.
type TrackSource interface {
	Snapshot(max int) []tracks.Track
	Lookup(id int) (tracks.Track, bool)
	Stats() tracks.Stats
	Config() tracks.Config
	Correlator() string
	ClearTracksAndQueues()
	Reset()
}

// FrameSource returns the most recent completed debug frame, or nil.
type FrameSource interface {
	Last() *debug.Frame
}

// API provides HTTP handlers for track-related endpoints.
type API struct {
	src    TrackSource
	frames FrameSource
	store  *sqlite.EventStore
	runID  func() string
}

// Option configures optional API backends.
type Option func(*API)

// WithDebugFrames exposes the debug collector at /api/debug/trackframe.
func WithDebugFrames(f FrameSource) Option { return func(a *API) { a.frames = f } }

// WithEventStore exposes recorded runs. current, if non-nil, names the run
// being recorded now.
func WithEventStore(s *sqlite.EventStore, current func() string) Option {
	return func(a *API) {
		a.store = s
		a.runID = current
	}
}

// NewAPI creates a new API over src.
func NewAPI(src TrackSource, opts ...Option) *API {
	a := &API{src: src}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// RegisterRoutes registers the API routes on mux.
func (a *API) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/api/tracks", a.handleTracks)
	mux.HandleFunc("/api/tracks/", a.handleTrackByID)
	mux.HandleFunc("/api/tracks/clear", a.handleClear)
	mux.HandleFunc("/api/reset", a.handleReset)
	mux.HandleFunc("/api/stats", a.handleStats)
	mux.HandleFunc("/api/config", a.handleConfig)
	mux.HandleFunc("/api/debug/trackframe", a.handleDebugFrame)
	mux.HandleFunc("/api/runs", a.handleRuns)
	mux.HandleFunc("/api/runs/events", a.handleRunEvents)
	mux.HandleFunc("/debug/tracks", a.handleTrackScatter)
}

// Vector is a JSON 3-vector.
type Vector struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

func vec(v r3.Vector) Vector { return Vector{X: v.X, Y: v.Y, Z: v.Z} }

// TrackResponse represents a track in JSON API responses.
type TrackResponse struct {
	TrackID       int     `json:"track_id"`
	TargetID      string  `json:"target_id,omitempty"`
	TargetKind    string  `json:"target_kind"`
	TypeFlags     uint32  `json:"type_flags"`
	External      bool    `json:"external"`
	State         string  `json:"state"`
	Position      Vector  `json:"position"`
	Velocity      Vector  `json:"velocity"`
	Acceleration  Vector  `json:"acceleration"`
	RangeM        float64 `json:"range_m"`
	SpeedMps      float64 `json:"speed_mps"`
	Range         float64 `json:"range"`
	RangeUnits    string  `json:"range_units"`
	Speed         float64 `json:"speed"`
	SpeedUnits    string  `json:"speed_units"`
	AgeSeconds    float64 `json:"age_seconds"`
	Hits          int     `json:"hits"`
	SignalQuality float64 `json:"signal_quality"`
	SensorID      string  `json:"sensor_id,omitempty"`
}

// displayUnits are the units a request asked for.
type displayUnits struct {
	speed, distance string
}

func parseDisplayUnits(r *http.Request) (displayUnits, error) {
	q := r.URL.Query()
	speed, err := units.ParseSpeedUnit(q.Get("speed_units"))
	if err != nil {
		return displayUnits{}, err
	}
	dist, err := units.ParseDistanceUnit(q.Get("range_units"))
	if err != nil {
		return displayUnits{}, err
	}
	return displayUnits{speed: speed, distance: dist}, nil
}

func trackToResponse(t tracks.Track, u displayUnits) TrackResponse {
	rng, speed := t.Range(), t.Speed()
	return TrackResponse{
		TrackID:       t.ID,
		TargetID:      string(t.Target.ID),
		TargetKind:    t.Target.Kind.String(),
		TypeFlags:     uint32(t.Type),
		External:      t.Type.Has(tracks.TypeExternal),
		State:         t.State.String(),
		Position:      vec(t.Position),
		Velocity:      vec(t.Velocity),
		Acceleration:  vec(t.Acceleration),
		RangeM:        rng,
		SpeedMps:      speed,
		Range:         units.ConvertDistance(rng, u.distance),
		RangeUnits:    u.distance,
		Speed:         units.ConvertSpeed(speed, u.speed),
		SpeedUnits:    u.speed,
		AgeSeconds:    t.Age.Seconds(),
		Hits:          t.Hits,
		SignalQuality: t.SignalQuality,
		SensorID:      t.LastReport.SensorID,
	}
}

// TracksResponse is the body of GET /api/tracks.
type TracksResponse struct {
	Correlator string          `json:"correlator"`
	Count      int             `json:"count"`
	Tracks     []TrackResponse `json:"tracks"`
}

func (a *API) handleTracks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	limit := 0
	if s := r.URL.Query().Get("max"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v < 0 {
			httputil.BadRequest(w, "invalid max")
			return
		}
		limit = v
	}
	u, err := parseDisplayUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}

	snap := a.src.Snapshot(limit)
	resp := TracksResponse{
		Correlator: a.src.Correlator(),
		Count:      len(snap),
		Tracks:     make([]TrackResponse, 0, len(snap)),
	}
	for _, t := range snap {
		resp.Tracks = append(resp.Tracks, trackToResponse(t, u))
	}
	httputil.WriteJSONOK(w, resp)
}

func (a *API) handleTrackByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		httputil.MethodNotAllowed(w)
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, "/api/tracks/")
	id, err := strconv.Atoi(idStr)
	if err != nil {
		httputil.BadRequest(w, "invalid track id")
		return
	}
	u, err := parseDisplayUnits(r)
	if err != nil {
		httputil.BadRequest(w, err.Error())
		return
	}
	t, ok := a.src.Lookup(id)
	if !ok {
		httputil.NotFound(w, "track not found")
		return
	}
	httputil.WriteJSONOK(w, trackToResponse(t, u))
}

func (a *API) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	a.src.ClearTracksAndQueues()
	httputil.WriteJSONOK(w, map[string]string{"status": "cleared"})
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		httputil.MethodNotAllowed(w)
		return
	}
	a.src.Reset()
	httputil.WriteJSONOK(w, map[string]string{"status": "reset"})
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, a.src.Stats())
}

// ConfigResponse is the body of GET /api/config.
type ConfigResponse struct {
	MaxTracks     int     `json:"max_tracks"`
	MaxReports    int     `json:"max_reports"`
	MaxTrackAge   string  `json:"max_track_age"`
	FirstTrackID  int     `json:"first_track_id"`
	Alpha         float64 `json:"alpha"`
	Beta          float64 `json:"beta"`
	Gamma         float64 `json:"gamma"`
	GammaEnabled  bool    `json:"gamma_enabled"`
	LogUpdates    bool    `json:"log_updates"`
	TargetFilter  string  `json:"target_filter"`
	Correlator    string  `json:"correlator"`
	GateDistanceM float64 `json:"gate_distance_m"`
	OwnerID       string  `json:"owner_id"`
}

func (a *API) handleConfig(w http.ResponseWriter, r *http.Request) {
	c := a.src.Config()
	httputil.WriteJSONOK(w, ConfigResponse{
		MaxTracks:     c.MaxTracks,
		MaxReports:    c.MaxReports,
		MaxTrackAge:   c.MaxTrackAge.String(),
		FirstTrackID:  c.FirstTrackID,
		Alpha:         c.Alpha,
		Beta:          c.Beta,
		Gamma:         c.Gamma,
		GammaEnabled:  c.GammaEnabled,
		LogUpdates:    c.LogUpdates,
		TargetFilter:  c.TargetFilter.String(),
		Correlator:    c.Correlator,
		GateDistanceM: c.GateDistance,
		OwnerID:       c.OwnerID,
	})
}

func (a *API) handleDebugFrame(w http.ResponseWriter, r *http.Request) {
	if a.frames == nil {
		httputil.NotFound(w, "debug collector not attached")
		return
	}
	f := a.frames.Last()
	if f == nil {
		httputil.NotFound(w, "no debug frame recorded yet")
		return
	}
	httputil.WriteJSONOK(w, f)
}

// RunsResponse is the body of GET /api/runs.
type RunsResponse struct {
	Current string        `json:"current,omitempty"`
	Runs    []*sqlite.Run `json:"runs"`
}

func (a *API) handleRuns(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		httputil.NotFound(w, "no event store attached")
		return
	}
	runs, err := a.store.Runs()
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	resp := RunsResponse{Runs: runs}
	if a.runID != nil {
		resp.Current = a.runID()
	}
	if resp.Runs == nil {
		resp.Runs = []*sqlite.Run{}
	}
	httputil.WriteJSONOK(w, resp)
}

// RunEventsResponse is the body of GET /api/runs/events.
type RunEventsResponse struct {
	RunID  string                   `json:"run_id"`
	Counts map[tracks.EventKind]int `json:"counts"`
	Events []*sqlite.EventRecord    `json:"events"`
}

func (a *API) handleRunEvents(w http.ResponseWriter, r *http.Request) {
	if a.store == nil {
		httputil.NotFound(w, "no event store attached")
		return
	}
	runID := r.URL.Query().Get("run_id")
	if runID == "" && a.runID != nil {
		runID = a.runID()
	}
	if runID == "" {
		httputil.BadRequest(w, "run_id is required")
		return
	}
	limit := 500
	if s := r.URL.Query().Get("limit"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			httputil.BadRequest(w, "invalid limit")
			return
		}
		limit = v
	}

	events, err := a.store.ListByRun(runID, limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	counts, err := a.store.CountByKind(runID)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	if events == nil {
		events = []*sqlite.EventRecord{}
	}
	httputil.WriteJSONOK(w, RunEventsResponse{RunID: runID, Counts: counts, Events: events})
}
