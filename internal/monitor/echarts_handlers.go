package monitor

import (
	"bytes"
	"fmt"
	"net/http"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/tldetector/internal/httputil"
	"github.com/banshee-data/tldetector/internal/perception"
)

// colorLevel maps a colour onto the chart's y axis so that red plots
// highest.
func colorLevel(c perception.Color) int {
	switch c {
	case perception.Red:
		return 3
	case perception.Yellow:
		return 2
	case perception.Green:
		return 1
	default:
		return 0
	}
}

// handleDecisionChart renders the recent decision timeline (HTML) using
// go-echarts: published waypoint, raw waypoint and the raw/confirmed
// colour levels per frame. This is a debugging-only endpoint.
// Query params:
//   - limit (optional; default 500)
func (ws *WebServer) handleDecisionChart(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r, 500)
	if !ok {
		return
	}
	decisions := ws.history.Recent(limit)
	if len(decisions) == 0 {
		httputil.NotFound(w, "no decisions recorded yet")
		return
	}

	seqs := make([]uint64, len(decisions))
	published := make([]opts.LineData, len(decisions))
	raw := make([]opts.LineData, len(decisions))
	rawColor := make([]opts.LineData, len(decisions))
	confirmed := make([]opts.LineData, len(decisions))
	throttled := 0
	for i, d := range decisions {
		seqs[i] = d.Seq
		published[i] = opts.LineData{Value: d.Waypoint}
		raw[i] = opts.LineData{Value: d.RawWaypoint}
		rawColor[i] = opts.LineData{Value: colorLevel(d.RawColor)}
		confirmed[i] = opts.LineData{Value: colorLevel(d.Confirmed)}
		if d.Throttled {
			throttled++
		}
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Stop Waypoint Decisions", Theme: "dark", Width: "1200px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{
			Title:    "Stop waypoint decisions",
			Subtitle: fmt.Sprintf("frames=%d seq=%d..%d throttled=%d", len(decisions), seqs[0], seqs[len(seqs)-1], throttled),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "30px"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Frame seq", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Waypoint", Min: -1}),
		charts.WithDataZoomOpts(opts.DataZoom{Type: "slider"}),
	)
	line.ExtendYAxis(opts.YAxis{Name: "Colour (0 unknown, 1 green, 2 yellow, 3 red)", Min: 0, Max: 3})

	line.SetXAxis(seqs).
		AddSeries("published", published, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})).
		AddSeries("raw", raw, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false)})).
		AddSeries("raw colour", rawColor, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), YAxisIndex: 1})).
		AddSeries("confirmed colour", confirmed, charts.WithLineChartOpts(opts.LineChart{ShowSymbol: opts.Bool(false), YAxisIndex: 1}))

	var buf bytes.Buffer
	if err := line.Render(&buf); err != nil {
		httputil.InternalServerError(w, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
