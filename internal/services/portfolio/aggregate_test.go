package portfolio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

func valueAll(t *testing.T, holdings []models.Holding, prices map[string]float64) []models.ValuedHolding {
	t.Helper()
	out := make([]models.ValuedHolding, 0, len(holdings))
	for _, h := range holdings {
		vh, err := ValueHolding(h, prices[h.Ticker])
		require.NoError(t, err)
		out = append(out, vh)
	}
	return out
}

func scenarioHoldings() []models.Holding {
	return []models.Holding{
		{ID: "h1", Ticker: "BTC-USD", AssetType: models.AssetTypeCrypto, Quantity: 2, AvgCost: 20000},
		{ID: "h2", Ticker: "AAPL", AssetType: models.AssetTypeStock, Quantity: 10, AvgCost: 150},
	}
}

func TestSummarize_Scenario(t *testing.T) {
	valued := valueAll(t, scenarioHoldings(), map[string]float64{"BTC-USD": 25000, "AAPL": 140})
	p := models.Portfolio{ID: "p1", Name: "Main"}

	s := Summarize(p, valued, nil)

	assert.Equal(t, "p1", s.PortfolioID)
	assert.Equal(t, "Main", s.PortfolioName)
	assert.Equal(t, 51400.0, s.TotalValue)
	assert.Equal(t, 41500.0, s.TotalCostBasis)
	assert.Equal(t, 9900.0, s.TotalUnrealisedGain)
	if !approxEqual(s.TotalUnrealisedGainPct, 23.855, 0.01) {
		t.Errorf("TotalUnrealisedGainPct = %.3f, want ~23.86", s.TotalUnrealisedGainPct)
	}

	require.Len(t, s.Allocation, 2)
	assert.Equal(t, "BTC-USD", s.Allocation[0].Name)
	assert.Equal(t, 50000.0, s.Allocation[0].Value)
	assert.Equal(t, models.AssetTypeCrypto, s.Allocation[0].Type)
	assert.Equal(t, "AAPL", s.Allocation[1].Name)
	assert.Equal(t, 1400.0, s.Allocation[1].Value)

	require.NotNil(t, s.BestPerformer)
	require.NotNil(t, s.WorstPerformer)
	assert.Equal(t, "BTC-USD", s.BestPerformer.Ticker)
	assert.Equal(t, "AAPL", s.WorstPerformer.Ticker)

	if !approxEqual(s.Holdings[0].WeightPct, 50000.0/51400*100, 1e-9) {
		t.Errorf("BTC weight = %.4f", s.Holdings[0].WeightPct)
	}
}

func TestSummarize_EmptyPortfolio(t *testing.T) {
	s := Summarize(models.Portfolio{ID: "empty"}, nil, nil)

	assert.Equal(t, 0.0, s.TotalValue)
	assert.Equal(t, 0.0, s.TotalCostBasis)
	assert.Equal(t, 0.0, s.TotalUnrealisedGain)
	assert.Equal(t, 0.0, s.TotalUnrealisedGainPct)
	assert.NotNil(t, s.Allocation)
	assert.Empty(t, s.Allocation)
	assert.Nil(t, s.BestPerformer)
	assert.Nil(t, s.WorstPerformer)
}

func TestSummarize_AllocationGroupsLotsByTicker(t *testing.T) {
	holdings := []models.Holding{
		{ID: "a", Ticker: "MSFT", AssetType: models.AssetTypeStock, Quantity: 1, AvgCost: 300},
		{ID: "b", Ticker: "GLD", AssetType: models.AssetTypeUnknown, Quantity: 5, AvgCost: 180},
		{ID: "c", Ticker: "MSFT", AssetType: models.AssetTypeStock, Quantity: 2, AvgCost: 350},
		{ID: "d", Ticker: "SPY", AssetType: models.AssetTypeETF, Quantity: 2, AvgCost: 400},
	}
	valued := valueAll(t, holdings, map[string]float64{"MSFT": 400, "GLD": 200, "SPY": 500})
	dir := models.NewTickerDirectory([]models.TickerInfo{
		{Symbol: "GLD", Name: "SPDR Gold Shares", Type: models.AssetTypeCommodity},
	})

	s := Summarize(models.Portfolio{ID: "p"}, valued, dir)

	require.Len(t, s.Allocation, 3)
	// MSFT 1200, GLD 1000, SPY 1000: tie broken by ticker
	assert.Equal(t, []string{"MSFT", "GLD", "SPY"}, []string{s.Allocation[0].Name, s.Allocation[1].Name, s.Allocation[2].Name})
	assert.Equal(t, 1200.0, s.Allocation[0].Value)
	assert.Equal(t, models.AssetTypeCommodity, s.Allocation[1].Type)
	assert.Equal(t, "SPDR Gold Shares", s.Allocation[1].Label)
	assert.Equal(t, "SPY", s.Allocation[2].Label)
	assert.Len(t, s.Holdings, 4)
}

func TestSummarize_AllocationSumsToTotal(t *testing.T) {
	holdings := []models.Holding{
		{Ticker: "A", AssetType: models.AssetTypeStock, Quantity: 0.1, AvgCost: 1},
		{Ticker: "B", AssetType: models.AssetTypeStock, Quantity: 0.2, AvgCost: 1},
		{Ticker: "A", AssetType: models.AssetTypeStock, Quantity: 0.3, AvgCost: 1},
		{Ticker: "C", AssetType: models.AssetTypeStock, Quantity: 1e7, AvgCost: 1},
		{Ticker: "B", AssetType: models.AssetTypeStock, Quantity: 3.3333, AvgCost: 1},
	}
	valued := valueAll(t, holdings, map[string]float64{"A": 0.7, "B": 1234.5678, "C": 0.0001})

	s := Summarize(models.Portfolio{}, valued, nil)

	sum := 0.0
	for _, a := range s.Allocation {
		sum += a.Value
	}
	assert.LessOrEqual(t, math.Abs(sum-s.TotalValue), 1e-6*math.Abs(s.TotalValue))
}

func TestSummarize_PerformerTieKeepsFirst(t *testing.T) {
	holdings := []models.Holding{
		{ID: "first", Ticker: "X", AssetType: models.AssetTypeStock, Quantity: 1, AvgCost: 10},
		{ID: "second", Ticker: "Y", AssetType: models.AssetTypeStock, Quantity: 1, AvgCost: 10},
	}
	valued := valueAll(t, holdings, map[string]float64{"X": 15, "Y": 15})

	s := Summarize(models.Portfolio{}, valued, nil)

	assert.Equal(t, "first", s.BestPerformer.ID)
	assert.Equal(t, "first", s.WorstPerformer.ID)
}

func TestSummarize_PerformerUsesAbsoluteGain(t *testing.T) {
	holdings := []models.Holding{
		// +100% on a small position
		{ID: "small", Ticker: "S", AssetType: models.AssetTypeStock, Quantity: 1, AvgCost: 10},
		// +10% on a large position
		{ID: "large", Ticker: "L", AssetType: models.AssetTypeStock, Quantity: 100, AvgCost: 100},
	}
	valued := valueAll(t, holdings, map[string]float64{"S": 20, "L": 110})

	s := Summarize(models.Portfolio{}, valued, nil)

	assert.Equal(t, "large", s.BestPerformer.ID)
	assert.Equal(t, "small", s.WorstPerformer.ID)
}

func TestSummarize_Deterministic(t *testing.T) {
	valued := valueAll(t, scenarioHoldings(), map[string]float64{"BTC-USD": 25000.123, "AAPL": 140.77})
	p := models.Portfolio{ID: "p1", Name: "Main"}

	first := Summarize(p, valued, nil)
	second := Summarize(p, valued, nil)

	assert.Equal(t, first, second)
	assert.Equal(t, math.Float64bits(first.TotalUnrealisedGainPct), math.Float64bits(second.TotalUnrealisedGainPct))
}

func TestSummarize_DoesNotMutateInput(t *testing.T) {
	valued := valueAll(t, scenarioHoldings(), map[string]float64{"BTC-USD": 25000, "AAPL": 140})

	_ = Summarize(models.Portfolio{}, valued, nil)

	assert.Equal(t, 0.0, valued[0].WeightPct)
}
