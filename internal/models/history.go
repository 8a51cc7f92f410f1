package models

import "time"

// HistoryPoint is one sample of portfolio value
type HistoryPoint struct {
	Time      time.Time `json:"time"`
	Value     float64   `json:"value"`
	ChangePct float64   `json:"change_pct"`
}

// BenchmarkPoint is one sample of the benchmark's relative change
type BenchmarkPoint struct {
	Time      time.Time `json:"time"`
	ChangePct float64   `json:"change_pct"`
}

// PortfolioHistory is a portfolio value series alongside a benchmark series.
// The two series are sampled independently and may differ in length.
type PortfolioHistory struct {
	PortfolioID     string           `json:"portfolio_id"`
	Range           Range            `json:"range"`
	Benchmark       string           `json:"benchmark"`
	Points          []HistoryPoint   `json:"points"`
	BenchmarkPoints []BenchmarkPoint `json:"benchmark_points"`
}
