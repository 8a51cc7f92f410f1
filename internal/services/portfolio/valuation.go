package portfolio

import (
	"math"

	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

// ValueHolding prices a holding at currentPrice. The price must be a finite
// non-negative number. A zero cost basis yields a gain percentage of 0.
func ValueHolding(h models.Holding, currentPrice float64) (models.ValuedHolding, error) {
	if !validPrice(currentPrice) {
		return models.ValuedHolding{}, &models.InvalidPriceError{Ticker: h.Ticker, Price: currentPrice}
	}

	costBasis := h.Quantity * h.AvgCost
	value := h.Quantity * currentPrice
	gain := value - costBasis

	return models.ValuedHolding{
		Holding:           h,
		CurrentPrice:      currentPrice,
		PositionValue:     value,
		CostBasis:         costBasis,
		UnrealisedGain:    gain,
		UnrealisedGainPct: percentOf(gain, costBasis),
	}, nil
}

// PercentageChange is the return of a single unit bought at startingPrice.
func PercentageChange(startingPrice, currentPrice float64) (float64, error) {
	if !validPrice(startingPrice) || startingPrice == 0 {
		return 0, &models.InvalidPriceError{Price: startingPrice}
	}
	if !validPrice(currentPrice) {
		return 0, &models.InvalidPriceError{Price: currentPrice}
	}
	return (currentPrice - startingPrice) / startingPrice * 100, nil
}

func validPrice(p float64) bool {
	return p >= 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}

// percentOf returns part/whole as a percentage, or 0 when whole is not positive.
func percentOf(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return part / whole * 100
}
