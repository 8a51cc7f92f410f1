package portfolio

import (
	"sort"

	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

// Summarize rolls valued holdings up into portfolio totals, a per-ticker
// allocation and best/worst performers. dir supplies display names and a
// fallback asset type; a nil directory is valid. The result depends only on
// the arguments and the order of valued.
func Summarize(p models.Portfolio, valued []models.ValuedHolding, dir models.TickerDirectory) models.PortfolioSummary {
	summary := models.PortfolioSummary{
		PortfolioID:   p.ID,
		PortfolioName: p.Name,
		Holdings:      make([]models.ValuedHolding, len(valued)),
		Allocation:    []models.AllocationEntry{},
	}
	copy(summary.Holdings, valued)

	for _, vh := range valued {
		summary.TotalValue += vh.PositionValue
		summary.TotalCostBasis += vh.CostBasis
	}
	summary.TotalUnrealisedGain = summary.TotalValue - summary.TotalCostBasis
	summary.TotalUnrealisedGainPct = percentOf(summary.TotalUnrealisedGain, summary.TotalCostBasis)

	for i := range summary.Holdings {
		summary.Holdings[i].WeightPct = percentOf(summary.Holdings[i].PositionValue, summary.TotalValue)
	}

	summary.Allocation = allocate(summary.Holdings, dir)

	if len(summary.Holdings) > 0 {
		best, worst := 0, 0
		for i, vh := range summary.Holdings {
			if vh.UnrealisedGain > summary.Holdings[best].UnrealisedGain {
				best = i
			}
			if vh.UnrealisedGain < summary.Holdings[worst].UnrealisedGain {
				worst = i
			}
		}
		b := summary.Holdings[best]
		w := summary.Holdings[worst]
		summary.BestPerformer = &b
		summary.WorstPerformer = &w
	}

	return summary
}

// allocate groups holdings by ticker. Entries are ordered by value
// descending, then ticker ascending.
func allocate(holdings []models.ValuedHolding, dir models.TickerDirectory) []models.AllocationEntry {
	entries := []models.AllocationEntry{}
	index := make(map[string]int)

	for _, vh := range holdings {
		if i, ok := index[vh.Ticker]; ok {
			entries[i].Value += vh.PositionValue
			continue
		}

		info := dir.Lookup(vh.Ticker)
		assetType := vh.AssetType
		if assetType == "" || assetType == models.AssetTypeUnknown {
			assetType = info.Type
		}
		label := info.Name
		if vh.Name != "" && label == vh.Ticker {
			label = vh.Name
		}

		index[vh.Ticker] = len(entries)
		entries = append(entries, models.AllocationEntry{
			Name:  vh.Ticker,
			Label: label,
			Value: vh.PositionValue,
			Type:  assetType,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Value != entries[j].Value {
			return entries[i].Value > entries[j].Value
		}
		return entries[i].Name < entries[j].Name
	})

	return entries
}
