package tracks

import (
	"fmt"
	"time"
)

// Frame is the per-pass context handed to a Correlator.
type Frame struct {
	ID      uint64
	Dt      time.Duration
	Ownship OwnshipState
}

// Matches is the outcome of one association pass over a drained batch.
type Matches struct {
	// TrackReport[t] is the index of the report associated with track t, or
	// -1 when the track coasts this frame.
	TrackReport []int

	// ReportMatched[r] is true when report r associated with any track.
	// Unmatched reports are spawn candidates.
	ReportMatched []bool

	// ReportCounts[r] and TrackCounts[t] count matrix hits per row/column.
	ReportCounts []int
	TrackCounts  []int
}

func newMatches(nReports, nTracks int) Matches {
	m := Matches{
		TrackReport:   make([]int, nTracks),
		ReportMatched: make([]bool, nReports),
		ReportCounts:  make([]int, nReports),
		TrackCounts:   make([]int, nTracks),
	}
	for i := range m.TrackReport {
		m.TrackReport[i] = -1
	}
	return m
}

// Associated returns the number of tracks that received a report.
func (m Matches) Associated() int {
	n := 0
	for _, r := range m.TrackReport {
		if r >= 0 {
			n++
		}
	}
	return n
}

// Correlator is one association strategy. Accepts filters reports before
// they enter the match; Match decides report/track pairs for one frame.
// Implementations must not retain the slices they are given.
type Correlator interface {
	Name() string
	Accepts(t Target) bool
	Match(reports []QueuedReport, tracks []Track, f Frame, dbg DebugCollector) Matches
}

const (
	CorrelatorIdentity = "identity"
	CorrelatorGated    = "gated"
)

// NewCorrelator returns the strategy registered under name.
func NewCorrelator(name string, filter TargetKind, gateDistance float64) (Correlator, error) {
	switch name {
	case "", CorrelatorIdentity:
		return &IdentityCorrelator{Filter: filter}, nil
	case CorrelatorGated:
		return &GatedCorrelator{Filter: filter, GateDistance: gateDistance}, nil
	default:
		return nil, fmt.Errorf("unknown correlator %q", name)
	}
}

// IdentityCorrelator associates by exact target identity, the ground moving
// target indication (GMTI) strategy. When several reports match the same
// track the last matching report in drain order wins; a report matching
// several tracks updates all of them.
type IdentityCorrelator struct {
	// Filter limits accepted targets by kind. KindAny accepts everything.
	Filter TargetKind
}

func (c *IdentityCorrelator) Name() string { return CorrelatorIdentity }

func (c *IdentityCorrelator) Accepts(t Target) bool {
	return acceptsKind(c.Filter, t.Kind)
}

func (c *IdentityCorrelator) Match(reports []QueuedReport, tracks []Track, f Frame, dbg DebugCollector) Matches {
	m := newMatches(len(reports), len(tracks))
	identityPass(&m, reports, tracks, false, dbg)
	return m
}

// identityPass fills the report x track identity matrix into m. With
// skipAnonymous set, reports and tracks with an empty TargetID never match.
func identityPass(m *Matches, reports []QueuedReport, tracks []Track, skipAnonymous bool, dbg DebugCollector) {
	debugOn := dbg != nil && dbg.IsEnabled()
	for t := range tracks {
		id := tracks[t].Target.ID
		if skipAnonymous && id == "" {
			continue
		}
		for r := range reports {
			if reports[r].Report.Target.ID != id {
				continue
			}
			m.ReportCounts[r]++
			m.TrackCounts[t]++
			m.ReportMatched[r] = true
			m.TrackReport[t] = r
			if debugOn {
				dbg.RecordAssociation(r, string(id), tracks[t].ID, 0, true)
			}
		}
	}
}

// GatedCorrelator is the plain RF strategy. Reports first associate by
// identity; anonymous reports left over are assigned to anonymous or still
// unmatched tracks by distance to the coast-predicted position, solved
// globally and limited to GateDistance metres.
type GatedCorrelator struct {
	Filter       TargetKind
	GateDistance float64
}

func (c *GatedCorrelator) Name() string { return CorrelatorGated }

func (c *GatedCorrelator) Accepts(t Target) bool {
	return acceptsKind(c.Filter, t.Kind)
}

func (c *GatedCorrelator) Match(reports []QueuedReport, tracks []Track, f Frame, dbg DebugCollector) Matches {
	m := newMatches(len(reports), len(tracks))
	identityPass(&m, reports, tracks, true, dbg)

	var rows, cols []int
	for r := range reports {
		if !m.ReportMatched[r] && reports[r].Report.Target.ID == "" {
			rows = append(rows, r)
		}
	}
	for t := range tracks {
		if m.TrackCounts[t] == 0 {
			cols = append(cols, t)
		}
	}
	if len(rows) == 0 || len(cols) == 0 {
		return m
	}

	debugOn := dbg != nil && dbg.IsEnabled()
	predicted := make([]Track, len(cols))
	for j, t := range cols {
		predicted[j] = tracks[t]
		predicted[j].Position = coastPosition(&tracks[t], f.Dt)
		if debugOn {
			dbg.RecordGate(tracks[t].ID, predicted[j].Position, c.GateDistance)
		}
	}

	cost := make([][]float64, len(rows))
	for i, r := range rows {
		cost[i] = make([]float64, len(cols))
		obs := reports[r].Report.Position
		for j := range cols {
			d := obs.Sub(predicted[j].Position).Norm()
			if d > c.GateDistance {
				cost[i][j] = gateForbidden
				if debugOn {
					dbg.RecordAssociation(r, "", tracks[cols[j]].ID, d, false)
				}
				continue
			}
			cost[i][j] = d
		}
	}

	assigned := AssignMinCost(cost)
	for i, j := range assigned {
		if j < 0 {
			continue
		}
		r, t := rows[i], cols[j]
		m.ReportCounts[r]++
		m.TrackCounts[t]++
		m.ReportMatched[r] = true
		m.TrackReport[t] = r
		if debugOn {
			dbg.RecordAssociation(r, "", tracks[t].ID, cost[i][j], true)
		}
	}
	return m
}

func acceptsKind(filter, k TargetKind) bool {
	return filter == KindAny || filter&k != 0
}
