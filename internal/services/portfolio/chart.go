package portfolio

import (
	"bytes"
	"fmt"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

// weeklyChartThreshold is the point count above which daily histories are
// drawn one point per week.
const weeklyChartThreshold = 400

// RenderHistoryChart renders a PNG line chart of a portfolio history.
// Two series: portfolio % change (blue solid) and benchmark % change (gray
// dashed). The benchmark is omitted when it has fewer than two points.
// Returns raw PNG bytes.
func RenderHistoryChart(h *models.PortfolioHistory) ([]byte, error) {
	points := h.Points
	if !h.Range.Intraday() && len(points) > weeklyChartThreshold {
		points = DownsampleToWeekly(points)
	}
	if len(points) < 2 {
		return nil, fmt.Errorf("%w: need at least 2 data points, got %d", models.ErrInsufficientHistory, len(points))
	}

	xValues := make([]time.Time, len(points))
	changeY := make([]float64, len(points))
	for i, p := range points {
		xValues[i] = p.Time
		changeY[i] = p.ChangePct
	}

	series := []chart.Series{
		chart.TimeSeries{
			Name: "Portfolio",
			Style: chart.Style{
				StrokeColor: drawing.ColorFromHex("2563eb"), // blue-600
				StrokeWidth: 2.5,
			},
			XValues: xValues,
			YValues: changeY,
		},
	}

	if len(h.BenchmarkPoints) >= 2 {
		benchX := make([]time.Time, len(h.BenchmarkPoints))
		benchY := make([]float64, len(h.BenchmarkPoints))
		for i, p := range h.BenchmarkPoints {
			benchX[i] = p.Time
			benchY[i] = p.ChangePct
		}
		series = append(series, chart.TimeSeries{
			Name: h.Benchmark,
			Style: chart.Style{
				StrokeColor:     drawing.ColorFromHex("9ca3af"), // gray-400
				StrokeWidth:     1.5,
				StrokeDashArray: []float64{5.0, 3.0},
			},
			XValues: benchX,
			YValues: benchY,
		})
	}

	timeFormat := "Jan 06"
	if h.Range.Intraday() {
		timeFormat = "Jan 2 15:04"
	} else if h.Range == models.Range1M {
		timeFormat = "Jan 2"
	}

	graph := chart.Chart{
		Title:  "Portfolio vs " + h.Benchmark,
		Width:  900,
		Height: 400,
		Background: chart.Style{
			Padding: chart.Box{Top: 40, Left: 10, Right: 20, Bottom: 10},
		},
		XAxis: chart.XAxis{
			TickPosition: chart.TickPositionBetweenTicks,
			ValueFormatter: func(v interface{}) string {
				if t, ok := v.(float64); ok {
					return chart.TimeFromFloat64(t).Format(timeFormat)
				}
				return ""
			},
		},
		YAxis: chart.YAxis{
			ValueFormatter: func(v interface{}) string {
				if f, ok := v.(float64); ok {
					return fmt.Sprintf("%.1f%%", f)
				}
				return ""
			},
		},
		Series: series,
	}

	graph.Elements = []chart.Renderable{
		chart.LegendLeft(&graph),
	}

	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("chart render failed: %w", err)
	}

	return buf.Bytes(), nil
}
