package server

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

// pctPlaces is the precision of percentages in API responses. Valuation
// keeps full precision; only the response copy is rounded.
const pctPlaces = 2

func roundPct(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(pctPlaces).InexactFloat64()
}

func presentValuedHolding(vh models.ValuedHolding) models.ValuedHolding {
	vh.UnrealisedGainPct = roundPct(vh.UnrealisedGainPct)
	vh.WeightPct = roundPct(vh.WeightPct)
	return vh
}

// presentSummary returns a copy of s with percentages rounded for display
func presentSummary(s *models.PortfolioSummary) *models.PortfolioSummary {
	out := *s
	out.TotalUnrealisedGainPct = roundPct(s.TotalUnrealisedGainPct)

	out.Holdings = make([]models.ValuedHolding, len(s.Holdings))
	for i, vh := range s.Holdings {
		out.Holdings[i] = presentValuedHolding(vh)
	}
	if s.BestPerformer != nil {
		best := presentValuedHolding(*s.BestPerformer)
		out.BestPerformer = &best
	}
	if s.WorstPerformer != nil {
		worst := presentValuedHolding(*s.WorstPerformer)
		out.WorstPerformer = &worst
	}
	if out.Allocation == nil {
		out.Allocation = []models.AllocationEntry{}
	}
	return &out
}

// presentHistory returns a copy of h with change percentages rounded
func presentHistory(h *models.PortfolioHistory) *models.PortfolioHistory {
	out := *h
	out.Points = make([]models.HistoryPoint, len(h.Points))
	for i, p := range h.Points {
		p.ChangePct = roundPct(p.ChangePct)
		out.Points[i] = p
	}
	out.BenchmarkPoints = make([]models.BenchmarkPoint, len(h.BenchmarkPoints))
	for i, p := range h.BenchmarkPoints {
		p.ChangePct = roundPct(p.ChangePct)
		out.BenchmarkPoints[i] = p
	}
	return &out
}
