package monitor

import (
	"bytes"
	"fmt"
	"math"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/trackcorr/internal/httputil"
	"github.com/banshee-data/trackcorr/internal/tracks"
)

// handleTrackScatter renders the live tracks as an ownship-centred XY
// scatter, one series per track state. Debugging only; no auth.
func (a *API) handleTrackScatter(w http.ResponseWriter, r *http.Request) {
	snap := a.src.Snapshot(0)
	scatter := trackScatter(snap, a.src.Correlator())

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

func trackScatter(snap []tracks.Track, correlator string) *charts.Scatter {
	series := map[tracks.TrackState][]opts.ScatterData{}
	maxAbs := 0.0
	for _, t := range snap {
		maxAbs = math.Max(maxAbs, math.Max(math.Abs(t.Position.X), math.Abs(t.Position.Y)))
		series[t.State] = append(series[t.State], opts.ScatterData{
			Name:  fmt.Sprintf("%d %s", t.ID, t.Target.ID),
			Value: []interface{}{t.Position.X, t.Position.Y, t.ID},
		})
	}

	// Square, symmetric axes keep the ownship at the centre.
	pad := maxAbs * 1.05
	if pad == 0 {
		pad = 1000
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Tracks", Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: "Live tracks (ownship-relative)", Subtitle: fmt.Sprintf("correlator=%s tracks=%d", correlator, len(snap))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Min: -pad, Max: pad, Name: "East (m)", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Min: -pad, Max: pad, Name: "North (m)", NameLocation: "middle", NameGap: 30}),
	)

	// Ownship marker.
	scatter.AddSeries("ownship", []opts.ScatterData{{Name: "ownship", Value: []interface{}{0.0, 0.0}}},
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 14}))
	for _, st := range []tracks.TrackState{tracks.StateUnassociated, tracks.StateAssociated, tracks.StateCoasting} {
		if len(series[st]) == 0 {
			continue
		}
		scatter.AddSeries(st.String(), series[st], charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}))
	}
	return scatter
}
