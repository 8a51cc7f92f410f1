package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

// StorageManager coordinates the persistence backend
type StorageManager interface {
	PortfolioStore() PortfolioStore
	HoldingStore() HoldingStore
	PriceCacheStore() PriceCacheStore

	// Backend names the active implementation ("sqlite", "surrealdb")
	Backend() string

	// Lifecycle
	Close() error
}

// PortfolioStore persists portfolios
type PortfolioStore interface {
	// GetPortfolio returns models.ErrPortfolioNotFound when id does not exist
	GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error)
	ListPortfolios(ctx context.Context) ([]*models.Portfolio, error)
	SavePortfolio(ctx context.Context, p *models.Portfolio) error
	// DeletePortfolio removes the portfolio and all of its holdings
	DeletePortfolio(ctx context.Context, id string) error
}

// HoldingStore persists holdings
type HoldingStore interface {
	ListHoldings(ctx context.Context, portfolioID string) ([]*models.Holding, error)
	// ListAllHoldings returns holdings across every portfolio
	ListAllHoldings(ctx context.Context) ([]*models.Holding, error)
	// GetHolding returns models.ErrHoldingNotFound when id does not exist
	GetHolding(ctx context.Context, id string) (*models.Holding, error)
	SaveHolding(ctx context.Context, h *models.Holding) error
	DeleteHolding(ctx context.Context, id string) error
	// TouchHoldings sets LastUpdated on every holding of ticker. Returns the
	// number of holdings updated.
	TouchHoldings(ctx context.Context, ticker string, at time.Time) (int, error)
}

// CachedPrice is a stored daily close
type CachedPrice struct {
	Ticker    string
	Date      time.Time // UTC midnight
	Close     float64
	FetchedAt time.Time
}

// PriceCacheStore persists daily closes keyed by (ticker, date)
type PriceCacheStore interface {
	// GetPriceRange returns closes with from <= date <= to, ascending by date
	GetPriceRange(ctx context.Context, ticker string, from, to time.Time) ([]CachedPrice, error)
	// SavePrices upserts closes; an existing (ticker, date) is overwritten
	SavePrices(ctx context.Context, prices []CachedPrice) error
	// PurgeBefore deletes entries fetched before cutoff and returns the count
	PurgeBefore(ctx context.Context, cutoff time.Time) (int, error)
	// Invalidate deletes every entry for ticker
	Invalidate(ctx context.Context, ticker string) error
}
