package models

import "time"

// ValuedHolding is a holding priced at a point in time
type ValuedHolding struct {
	Holding
	CurrentPrice      float64 `json:"current_price"`
	PositionValue     float64 `json:"position_value"`
	CostBasis         float64 `json:"cost_basis"`
	UnrealisedGain    float64 `json:"unrealised_gain"`
	UnrealisedGainPct float64 `json:"unrealised_gain_pct"`
	WeightPct         float64 `json:"weight_pct"`
}

// AllocationEntry is the share of portfolio value held in one ticker
type AllocationEntry struct {
	Name  string    `json:"name"`
	Label string    `json:"label"`
	Value float64   `json:"value"`
	Type  AssetType `json:"type"`
}

// PortfolioSummary is the aggregate valuation of a portfolio
type PortfolioSummary struct {
	PortfolioID            string            `json:"portfolio_id"`
	PortfolioName          string            `json:"portfolio_name"`
	TotalValue             float64           `json:"total_value"`
	TotalCostBasis         float64           `json:"total_cost_basis"`
	TotalUnrealisedGain    float64           `json:"total_unrealised_gain"`
	TotalUnrealisedGainPct float64           `json:"total_unrealised_gain_pct"`
	Holdings               []ValuedHolding   `json:"holdings"`
	Allocation             []AllocationEntry `json:"allocation"`
	BestPerformer          *ValuedHolding    `json:"best_performer,omitempty"`
	WorstPerformer         *ValuedHolding    `json:"worst_performer,omitempty"`
	PricedAt               time.Time         `json:"priced_at"`
}
