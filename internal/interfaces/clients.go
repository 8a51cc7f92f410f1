// Package interfaces defines service contracts for the portfolio tracker
package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

// MarketDataClient provides access to the chart endpoint of the market data provider
type MarketDataClient interface {
	// GetChart retrieves instrument metadata, the latest price and a close series
	GetChart(ctx context.Context, symbol string, opts ...ChartOption) (*models.Chart, error)
}

// ChartOption configures chart requests
type ChartOption func(*ChartParams)

// ChartParams holds chart query parameters. From/To take precedence over Range.
type ChartParams struct {
	Interval string // 5m, 30m, 1d
	Range    string // 1d, 5d, 1mo, 1y, max
	From     time.Time
	To       time.Time
}

// WithInterval sets the sampling interval
func WithInterval(interval string) ChartOption {
	return func(p *ChartParams) {
		p.Interval = interval
	}
}

// WithRange sets a provider range keyword
func WithRange(r string) ChartOption {
	return func(p *ChartParams) {
		p.Range = r
	}
}

// WithPeriod sets an explicit time window
func WithPeriod(from, to time.Time) ChartOption {
	return func(p *ChartParams) {
		p.From = from
		p.To = to
	}
}
