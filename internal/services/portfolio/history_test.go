package portfolio

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

func testDay(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// dailySeries builds consecutive daily closes starting at start
func dailySeries(start time.Time, prices ...float64) []models.PricePoint {
	pts := make([]models.PricePoint, len(prices))
	for i, p := range prices {
		pts[i] = models.PricePoint{Time: start.AddDate(0, 0, i), Price: p}
	}
	return pts
}

func TestBuildHistory_AllRangeValues(t *testing.T) {
	start := testDay(2024, 1, 1)
	in := HistoryInput{
		Portfolio: models.Portfolio{ID: "p1"},
		Holdings: []models.Holding{
			{Ticker: "AAA", Quantity: 2, AvgCost: 10, PurchaseDate: start},
			{Ticker: "BBB", Quantity: 1, AvgCost: 100, PurchaseDate: start.AddDate(0, 0, 2)},
		},
		Prices: map[string][]models.PricePoint{
			"AAA": dailySeries(start, 10, 11, 12, 13),
			"BBB": dailySeries(start, 100, 100, 100, 110),
		},
		Benchmark:       dailySeries(start, 4000, 4040, 4080, 3960),
		BenchmarkSymbol: "^GSPC",
		Range:           models.RangeAll,
		Now:             start.AddDate(0, 0, 10),
	}

	h := BuildHistory(in)

	require.Len(t, h.Points, 4)
	// BBB is not held until day 3
	assert.Equal(t, []float64{20, 22, 124, 136}, pointValues(h.Points))
	assert.Equal(t, 0.0, h.Points[0].ChangePct)
	assert.InDelta(t, 10.0, h.Points[1].ChangePct, 1e-9)
	assert.InDelta(t, 520.0, h.Points[2].ChangePct, 1e-9)

	require.Len(t, h.BenchmarkPoints, 4)
	assert.Equal(t, 0.0, h.BenchmarkPoints[0].ChangePct)
	assert.InDelta(t, 1.0, h.BenchmarkPoints[1].ChangePct, 1e-9)
	assert.InDelta(t, -1.0, h.BenchmarkPoints[3].ChangePct, 1e-9)

	assert.Equal(t, "^GSPC", h.Benchmark)
	assert.Equal(t, models.RangeAll, h.Range)
	assert.Equal(t, "p1", h.PortfolioID)
}

func TestBuildHistory_BaselineIsFirstNonEmptySample(t *testing.T) {
	start := testDay(2024, 5, 1)
	in := HistoryInput{
		Holdings: []models.Holding{
			{Ticker: "AAA", Quantity: 1, AvgCost: 50, PurchaseDate: start.AddDate(0, 0, 2)},
		},
		Prices: map[string][]models.PricePoint{"AAA": dailySeries(start, 40, 45, 50, 55)},
		Range:  models.RangeAll,
		Now:    start.AddDate(0, 0, 5),
	}

	h := BuildHistory(in)

	require.Len(t, h.Points, 4)
	assert.Equal(t, []float64{0, 0, 50, 55}, pointValues(h.Points))
	assert.Equal(t, 0.0, h.Points[0].ChangePct)
	assert.Equal(t, 0.0, h.Points[1].ChangePct)
	assert.Equal(t, 0.0, h.Points[2].ChangePct)
	assert.InDelta(t, 10.0, h.Points[3].ChangePct, 1e-9)
}

func TestBuildHistory_BenchmarkKeepsNativeLength(t *testing.T) {
	start := testDay(2024, 3, 1)
	prices := make([]float64, 10)
	for i := range prices {
		prices[i] = 100 + float64(i)
	}
	portfolioSeries := dailySeries(start, prices...)

	// Benchmark closed on days 4 and 5
	var bench []models.PricePoint
	for i := 0; i < 10; i++ {
		if i == 4 || i == 5 {
			continue
		}
		bench = append(bench, models.PricePoint{Time: start.AddDate(0, 0, i), Price: 5000 + float64(i*10)})
	}

	h := BuildHistory(HistoryInput{
		Holdings:  []models.Holding{{Ticker: "AAA", Quantity: 1, PurchaseDate: start}},
		Prices:    map[string][]models.PricePoint{"AAA": portfolioSeries},
		Benchmark: bench,
		Range:     models.RangeAll,
		Now:       start.AddDate(0, 0, 20),
	})

	assert.Len(t, h.Points, 10)
	require.Len(t, h.BenchmarkPoints, 8)
	for _, bp := range h.BenchmarkPoints {
		assert.NotEqual(t, start.AddDate(0, 0, 4), bp.Time)
		assert.NotEqual(t, start.AddDate(0, 0, 5), bp.Time)
	}
	assert.Equal(t, start.AddDate(0, 0, 6), h.BenchmarkPoints[4].Time)
}

func TestBuildHistory_BenchmarkBoundedToTimeline(t *testing.T) {
	start := testDay(2024, 3, 1)
	h := BuildHistory(HistoryInput{
		Holdings:  []models.Holding{{Ticker: "AAA", Quantity: 1, PurchaseDate: start}},
		Prices:    map[string][]models.PricePoint{"AAA": dailySeries(start.AddDate(0, 0, 2), 1, 2, 3)},
		Benchmark: dailySeries(start, 100, 200, 300, 330, 360, 390),
		Range:     models.RangeAll,
		Now:       start.AddDate(0, 0, 30),
	})

	require.Len(t, h.BenchmarkPoints, 3)
	assert.Equal(t, start.AddDate(0, 0, 2), h.BenchmarkPoints[0].Time)
	assert.Equal(t, 0.0, h.BenchmarkPoints[0].ChangePct)
	assert.InDelta(t, 20.0, h.BenchmarkPoints[2].ChangePct, 1e-9)
}

func TestBuildHistory_MissingTickerContributesZero(t *testing.T) {
	start := testDay(2024, 6, 3)
	h := BuildHistory(HistoryInput{
		Holdings: []models.Holding{
			{Ticker: "AAA", Quantity: 1, PurchaseDate: start},
			{Ticker: "DELISTED", Quantity: 100, PurchaseDate: start},
		},
		Prices: map[string][]models.PricePoint{"AAA": dailySeries(start, 10, 20)},
		Range:  models.RangeAll,
		Now:    start.AddDate(0, 0, 3),
	})

	assert.Equal(t, []float64{10, 20}, pointValues(h.Points))
}

func TestBuildHistory_InvalidSamplesIgnored(t *testing.T) {
	start := testDay(2024, 6, 3)
	h := BuildHistory(HistoryInput{
		Holdings: []models.Holding{
			{Ticker: "AAA", Quantity: 1, PurchaseDate: start},
			{Ticker: "BAD", Quantity: 1, PurchaseDate: start},
			{Ticker: "LATE", Quantity: 1, PurchaseDate: start},
		},
		Prices: map[string][]models.PricePoint{
			"AAA":  dailySeries(start, 10, 10, 10),
			"BAD":  dailySeries(start, 5, -50, math.NaN()),
			"LATE": dailySeries(start, math.Inf(1), -1, 7),
		},
		Benchmark: dailySeries(start, 100, math.NaN(), 110),
		Range:     models.RangeAll,
		Now:       start.AddDate(0, 0, 3),
	})

	// BAD keeps its last valid close; LATE has no valid close until day 3
	assert.Equal(t, []float64{15, 15, 22}, pointValues(h.Points))
	for _, p := range h.Points {
		assert.False(t, math.IsNaN(p.ChangePct) || math.IsInf(p.ChangePct, 0))
	}
	assert.InDelta(t, 46.666666, h.Points[2].ChangePct, 1e-4)

	require.Len(t, h.BenchmarkPoints, 2)
	assert.InDelta(t, 10.0, h.BenchmarkPoints[1].ChangePct, 1e-9)

	_, err := json.Marshal(h)
	require.NoError(t, err)
}

func TestBuildHistory_PriceAsOfCarriesForward(t *testing.T) {
	start := testDay(2024, 1, 1)
	h := BuildHistory(HistoryInput{
		Holdings: []models.Holding{
			{Ticker: "WEEKDAY", Quantity: 1, PurchaseDate: start},
			{Ticker: "BTC-USD", Quantity: 1, PurchaseDate: start},
		},
		Prices: map[string][]models.PricePoint{
			// trades Mon/Tue only
			"WEEKDAY": dailySeries(start, 100, 110),
			"BTC-USD": dailySeries(start, 1000, 1000, 1000, 1000),
		},
		Range: models.RangeAll,
		Now:   start.AddDate(0, 0, 5),
	})

	// the last WEEKDAY close is carried into days without a sample
	assert.Equal(t, []float64{1100, 1110, 1110, 1110}, pointValues(h.Points))
}

func TestBuildHistory_DailyNormalisesToMidnight(t *testing.T) {
	start := testDay(2024, 2, 5)
	h := BuildHistory(HistoryInput{
		Holdings: []models.Holding{{Ticker: "AAA", Quantity: 1, PurchaseDate: start.Add(15 * time.Hour)}},
		Prices: map[string][]models.PricePoint{"AAA": {
			{Time: start.Add(14*time.Hour + 30*time.Minute), Price: 10},
			{Time: start.Add(21 * time.Hour), Price: 12},
			{Time: start.AddDate(0, 0, 1).Add(21 * time.Hour), Price: 13},
		}},
		Range: models.RangeAll,
		Now:   start.AddDate(0, 0, 3),
	})

	require.Len(t, h.Points, 2)
	assert.Equal(t, start, h.Points[0].Time)
	// last sample of the day wins, and an intraday purchase counts for that day
	assert.Equal(t, 12.0, h.Points[0].Value)
	assert.Equal(t, 13.0, h.Points[1].Value)
}

func TestBuildHistory_OneDayBoundedToLatestSession(t *testing.T) {
	yesterday := testDay(2024, 7, 8)
	now := yesterday.AddDate(0, 0, 1).Add(2 * time.Hour) // before today's open

	var pts []models.PricePoint
	// two days of 5-minute bars, the second day ending at 20:00
	for d := -1; d <= 0; d++ {
		open := yesterday.AddDate(0, 0, d).Add(14*time.Hour + 30*time.Minute)
		for i := 0; i < 6; i++ {
			pts = append(pts, models.PricePoint{Time: open.Add(time.Duration(i) * 5 * time.Minute), Price: float64(100 + i)})
		}
	}

	h := BuildHistory(HistoryInput{
		Holdings:  []models.Holding{{Ticker: "AAA", Quantity: 1, PurchaseDate: testDay(2024, 1, 1)}},
		Prices:    map[string][]models.PricePoint{"AAA": pts},
		Benchmark: pts,
		Range:     models.Range1D,
		Now:       now,
	})

	require.Len(t, h.Points, 6)
	for _, p := range h.Points {
		assert.Equal(t, yesterday.Day(), p.Time.Day())
	}
	assert.InDelta(t, 5.0, h.Points[5].ChangePct, 1e-9)
	assert.Len(t, h.BenchmarkPoints, 6)
}

func TestBuildHistory_LookbackWindow(t *testing.T) {
	now := testDay(2024, 12, 31)
	start := now.AddDate(0, -3, 0)
	var prices []float64
	for d := start; !d.After(now); d = d.AddDate(0, 0, 1) {
		prices = append(prices, 1)
	}

	h := BuildHistory(HistoryInput{
		Holdings: []models.Holding{{Ticker: "AAA", Quantity: 1, PurchaseDate: start}},
		Prices:   map[string][]models.PricePoint{"AAA": dailySeries(start, prices...)},
		Range:    models.Range1M,
		Now:      now,
	})

	require.NotEmpty(t, h.Points)
	assert.False(t, h.Points[0].Time.Before(now.Add(-models.Range1M.Lookback()).Truncate(24*time.Hour)))
	assert.Equal(t, now, h.Points[len(h.Points)-1].Time)
}

func TestBuildHistory_IgnoresFutureSamples(t *testing.T) {
	start := testDay(2024, 1, 1)
	h := BuildHistory(HistoryInput{
		Holdings: []models.Holding{{Ticker: "AAA", Quantity: 1, PurchaseDate: start}},
		Prices:   map[string][]models.PricePoint{"AAA": dailySeries(start, 1, 2, 3, 4)},
		Range:    models.RangeAll,
		Now:      start.AddDate(0, 0, 1).Add(12 * time.Hour),
	})

	assert.Len(t, h.Points, 2)
}

func TestBuildHistory_NoHoldings(t *testing.T) {
	h := BuildHistory(HistoryInput{
		Portfolio: models.Portfolio{ID: "empty"},
		Benchmark: dailySeries(testDay(2024, 1, 1), 1, 2),
		Range:     models.RangeAll,
		Now:       testDay(2024, 2, 1),
	})

	assert.NotNil(t, h.Points)
	assert.Empty(t, h.Points)
	assert.Len(t, h.BenchmarkPoints, 2)
}

func TestBuildHistory_Deterministic(t *testing.T) {
	start := testDay(2024, 1, 1)
	in := HistoryInput{
		Holdings: []models.Holding{
			{Ticker: "AAA", Quantity: 1.5, PurchaseDate: start},
			{Ticker: "BBB", Quantity: 3, PurchaseDate: start},
		},
		Prices: map[string][]models.PricePoint{
			"AAA": dailySeries(start, 1.1, 1.2, 1.3),
			"BBB": dailySeries(start.AddDate(0, 0, 1), 7.7, 7.8),
		},
		Benchmark: dailySeries(start, 10, 11, 12),
		Range:     models.RangeAll,
		Now:       start.AddDate(0, 0, 4),
	}

	assert.Equal(t, BuildHistory(in), BuildHistory(in))
}

func TestDownsampleToWeekly(t *testing.T) {
	start := testDay(2024, 1, 1) // Monday
	var points []models.HistoryPoint
	for i := 0; i < 15; i++ {
		points = append(points, models.HistoryPoint{Time: start.AddDate(0, 0, i), Value: float64(i)})
	}

	weekly := DownsampleToWeekly(points)

	require.Len(t, weekly, 3)
	assert.Equal(t, 6.0, weekly[0].Value)
	assert.Equal(t, 13.0, weekly[1].Value)
	assert.Equal(t, 14.0, weekly[2].Value)
	assert.Nil(t, DownsampleToWeekly(nil))
}

func TestRenderHistoryChart(t *testing.T) {
	start := testDay(2024, 1, 1)
	h := BuildHistory(HistoryInput{
		Holdings:        []models.Holding{{Ticker: "AAA", Quantity: 1, PurchaseDate: start}},
		Prices:          map[string][]models.PricePoint{"AAA": dailySeries(start, 10, 11, 9, 12)},
		Benchmark:       dailySeries(start, 100, 101, 102, 103),
		BenchmarkSymbol: "^GSPC",
		Range:           models.RangeAll,
		Now:             start.AddDate(0, 0, 5),
	})

	png, err := RenderHistoryChart(&h)
	require.NoError(t, err)
	assert.Equal(t, []byte("\x89PNG"), png[:4])

	_, err = RenderHistoryChart(&models.PortfolioHistory{Points: h.Points[:1]})
	assert.ErrorIs(t, err, models.ErrInsufficientHistory)
}

func pointValues(points []models.HistoryPoint) []float64 {
	out := make([]float64, len(points))
	for i, p := range points {
		out[i] = p.Value
	}
	return out
}
