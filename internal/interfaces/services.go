package interfaces

import (
	"context"
	"time"

	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

// PriceSource supplies current and historical prices to the valuation core
type PriceSource interface {
	// GetCurrentPrice returns the latest price. Failures are reported as
	// *models.PriceUnavailableError.
	GetCurrentPrice(ctx context.Context, ticker string) (models.PriceQuote, error)

	// GetPriceHistory returns an ascending series sampled for rng, starting no
	// earlier than since (zero means the provider's full history).
	GetPriceHistory(ctx context.Context, ticker string, rng models.Range, since time.Time) ([]models.PricePoint, error)

	// GetBenchmarkHistory is GetPriceHistory for the configured benchmark
	GetBenchmarkHistory(ctx context.Context, rng models.Range, since time.Time) ([]models.PricePoint, error)

	// BenchmarkSymbol names the benchmark used for comparison
	BenchmarkSymbol() string

	// LookupTicker validates a symbol and returns its display metadata.
	// Unknown symbols yield models.ErrUnknownTicker.
	LookupTicker(ctx context.Context, ticker string) (models.TickerInfo, error)
}

// HoldingInput is the write-side form of a holding. Either Quantity/AvgCost
// or StartingPrice is supplied; StartingPrice implies a quantity of one.
type HoldingInput struct {
	Ticker        string    `json:"ticker"`
	AssetType     string    `json:"asset_type,omitempty"`
	Quantity      float64   `json:"quantity,omitempty"`
	AvgCost       float64   `json:"avg_cost,omitempty"`
	StartingPrice float64   `json:"starting_price,omitempty"`
	PurchaseDate  time.Time `json:"purchase_date"`
}

// PortfolioDetail is a portfolio with its stored holdings
type PortfolioDetail struct {
	models.Portfolio
	Holdings []*models.Holding `json:"holdings"`
}

// PortfolioService values portfolios and manages their holdings
type PortfolioService interface {
	GetSummary(ctx context.Context, portfolioID string) (*models.PortfolioSummary, error)
	GetHistory(ctx context.Context, portfolioID string, rng models.Range) (*models.PortfolioHistory, error)
	RenderHistoryChart(ctx context.Context, portfolioID string, rng models.Range) ([]byte, error)

	ListPortfolios(ctx context.Context) ([]*models.Portfolio, error)
	GetPortfolio(ctx context.Context, portfolioID string) (*PortfolioDetail, error)
	CreatePortfolio(ctx context.Context, name string) (*models.Portfolio, error)
	RenamePortfolio(ctx context.Context, portfolioID, name string) (*models.Portfolio, error)
	DeletePortfolio(ctx context.Context, portfolioID string) error
	AddHolding(ctx context.Context, portfolioID string, in HoldingInput) (*models.Holding, error)
	DeleteHolding(ctx context.Context, portfolioID, holdingID string) error
}

// PriceUpdate is pushed to subscribers when a fresh price is obtained
type PriceUpdate struct {
	Ticker string    `json:"ticker"`
	Price  float64   `json:"price"`
	AsOf   time.Time `json:"as_of"`
}

// PriceBroadcaster fans price updates out to connected subscribers
type PriceBroadcaster interface {
	Broadcast(update PriceUpdate)
}
