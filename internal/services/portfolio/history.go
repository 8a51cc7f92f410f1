package portfolio

import (
	"sort"
	"time"

	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

// HistoryInput carries everything BuildHistory needs. Prices is keyed by
// ticker; a ticker with no entry (or an empty series) contributes 0.
type HistoryInput struct {
	Portfolio       models.Portfolio
	Holdings        []models.Holding
	Prices          map[string][]models.PricePoint
	Benchmark       []models.PricePoint
	BenchmarkSymbol string
	Range           models.Range
	Now             time.Time
}

// BuildHistory produces the portfolio value series and the benchmark's
// percentage change series for a range.
//
// The timeline is the union of sample timestamps across the holdings' price
// series within the range window. Daily ranges normalise samples to UTC
// midnight. At each sample a holding contributes quantity × the latest price
// at or before the sample, provided it was purchased by then. The benchmark
// keeps its own samples between the first and last timeline timestamps; the
// two series are never interpolated onto each other.
func BuildHistory(in HistoryInput) models.PortfolioHistory {
	out := models.PortfolioHistory{
		PortfolioID:     in.Portfolio.ID,
		Range:           in.Range,
		Benchmark:       in.BenchmarkSymbol,
		Points:          []models.HistoryPoint{},
		BenchmarkPoints: []models.BenchmarkPoint{},
	}

	daily := !in.Range.Intraday()

	series := make(map[string][]models.PricePoint, len(in.Prices))
	for _, h := range in.Holdings {
		if _, ok := series[h.Ticker]; ok {
			continue
		}
		series[h.Ticker] = normaliseSeries(in.Prices[h.Ticker], daily)
	}

	from, to := historyWindow(in.Range, in.Now, series, daily)

	timeline := buildTimeline(series, from, to)
	if len(timeline) > 0 {
		out.Points = valueTimeline(timeline, in.Holdings, series, daily)
	}

	benchFrom, benchTo := from, to
	if len(timeline) > 0 {
		benchFrom, benchTo = timeline[0], timeline[len(timeline)-1]
	}
	out.BenchmarkPoints = benchmarkSeries(normaliseSeries(in.Benchmark, daily), benchFrom, benchTo)

	return out
}

// historyWindow returns the inclusive [from, to] bounds for a range. A zero
// from means unbounded. For 1d the window is the calendar day of the latest
// sample not after now, so a closed market still shows its last session.
func historyWindow(rng models.Range, now time.Time, series map[string][]models.PricePoint, daily bool) (time.Time, time.Time) {
	to := now
	if daily {
		to = truncateDay(now)
	}

	switch {
	case rng == models.Range1D:
		var latest time.Time
		for _, pts := range series {
			idx := searchAsOf(pts, now)
			if idx >= 0 && pts[idx].Time.After(latest) {
				latest = pts[idx].Time
			}
		}
		if latest.IsZero() {
			return truncateDay(now), now
		}
		return truncateDay(latest), now
	case rng.Lookback() > 0:
		from := now.Add(-rng.Lookback())
		if daily {
			from = truncateDay(from)
		}
		return from, to
	default:
		return time.Time{}, to
	}
}

// normaliseSeries returns an ascending copy of pts without samples whose
// price is negative, NaN or infinite. For daily series each timestamp is
// truncated to UTC midnight and the last sample of a day wins.
func normaliseSeries(pts []models.PricePoint, daily bool) []models.PricePoint {
	sorted := make([]models.PricePoint, 0, len(pts))
	for _, p := range pts {
		if !validPrice(p.Price) {
			continue
		}
		p.Time = p.Time.UTC()
		if daily {
			p.Time = truncateDay(p.Time)
		}
		sorted = append(sorted, p)
	}
	if len(sorted) == 0 {
		return nil
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Time.Before(sorted[j].Time)
	})

	out := sorted[:0]
	for _, p := range sorted {
		if n := len(out); n > 0 && out[n-1].Time.Equal(p.Time) {
			out[n-1] = p
			continue
		}
		out = append(out, p)
	}
	return out
}

func buildTimeline(series map[string][]models.PricePoint, from, to time.Time) []time.Time {
	seen := make(map[int64]struct{})
	var timeline []time.Time

	for _, pts := range series {
		for _, p := range pts {
			if (!from.IsZero() && p.Time.Before(from)) || p.Time.After(to) {
				continue
			}
			key := p.Time.UnixNano()
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			timeline = append(timeline, p.Time)
		}
	}

	sort.Slice(timeline, func(i, j int) bool {
		return timeline[i].Before(timeline[j])
	})
	return timeline
}

func valueTimeline(timeline []time.Time, holdings []models.Holding, series map[string][]models.PricePoint, daily bool) []models.HistoryPoint {
	points := make([]models.HistoryPoint, len(timeline))
	baseline := 0.0

	for i, t := range timeline {
		value := 0.0
		for _, h := range holdings {
			if !heldAt(h, t, daily) {
				continue
			}
			if price, ok := priceAsOf(series[h.Ticker], t); ok {
				value += h.Quantity * price
			}
		}

		points[i] = models.HistoryPoint{Time: t, Value: value}
		if baseline == 0 && value > 0 {
			baseline = value
		}
		if baseline > 0 {
			points[i].ChangePct = (value - baseline) / baseline * 100
		}
	}

	return points
}

func benchmarkSeries(pts []models.PricePoint, from, to time.Time) []models.BenchmarkPoint {
	out := []models.BenchmarkPoint{}
	var base float64
	first := true

	for _, p := range pts {
		if (!from.IsZero() && p.Time.Before(from)) || p.Time.After(to) {
			continue
		}
		if first {
			base = p.Price
			first = false
		}
		bp := models.BenchmarkPoint{Time: p.Time}
		if base > 0 {
			bp.ChangePct = (p.Price - base) / base * 100
		}
		out = append(out, bp)
	}
	return out
}

// heldAt reports whether h had been purchased by t. Daily timelines compare
// calendar days so a purchase during a day counts for that day's close.
func heldAt(h models.Holding, t time.Time, daily bool) bool {
	if h.PurchaseDate.IsZero() {
		return true
	}
	purchased := h.PurchaseDate.UTC()
	if daily {
		purchased = truncateDay(purchased)
	}
	return !purchased.After(t)
}

// priceAsOf returns the latest price at or before t in an ascending series.
func priceAsOf(pts []models.PricePoint, t time.Time) (float64, bool) {
	idx := searchAsOf(pts, t)
	if idx < 0 {
		return 0, false
	}
	return pts[idx].Price, true
}

// searchAsOf returns the index of the last sample at or before t, or -1.
func searchAsOf(pts []models.PricePoint, t time.Time) int {
	idx := sort.Search(len(pts), func(i int) bool {
		return pts[i].Time.After(t)
	})
	return idx - 1
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DownsampleToWeekly keeps the last point per ISO week.
func DownsampleToWeekly(points []models.HistoryPoint) []models.HistoryPoint {
	if len(points) == 0 {
		return nil
	}

	weekly := make([]models.HistoryPoint, 0)
	for i, p := range points {
		if i == len(points)-1 {
			weekly = append(weekly, p)
			continue
		}
		y1, w1 := p.Time.ISOWeek()
		y2, w2 := points[i+1].Time.ISOWeek()
		if w1 != w2 || y1 != y2 {
			weekly = append(weekly, p)
		}
	}

	return weekly
}
