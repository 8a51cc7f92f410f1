// Package portfolio provides portfolio valuation, aggregation and history services
package portfolio

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

// maxConcurrentFetches bounds in-flight price source calls per request
const maxConcurrentFetches = 8

// Service implements PortfolioService
type Service struct {
	storage interfaces.StorageManager
	prices  interfaces.PriceSource
	tickers models.TickerDirectory
	logger  *common.Logger
	now     func() time.Time
}

// NewService creates a new portfolio service
func NewService(
	storage interfaces.StorageManager,
	prices interfaces.PriceSource,
	tickers models.TickerDirectory,
	logger *common.Logger,
) *Service {
	return &Service{
		storage: storage,
		prices:  prices,
		tickers: tickers,
		logger:  logger,
		now:     time.Now,
	}
}

// GetSummary values every holding at its current price and aggregates the
// result. A single unpriceable ticker fails the whole summary.
func (s *Service) GetSummary(ctx context.Context, portfolioID string) (*models.PortfolioSummary, error) {
	p, holdings, err := s.loadPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	tickers := distinctTickers(holdings)
	prices, err := s.fetchCurrentPrices(ctx, tickers)
	if err != nil {
		s.logger.Warn().Err(err).Str("portfolio", portfolioID).Msg("Summary aborted: price unavailable")
		return nil, err
	}

	valued := make([]models.ValuedHolding, 0, len(holdings))
	for _, h := range holdings {
		vh, err := ValueHolding(h, prices[h.Ticker])
		if err != nil {
			return nil, &models.PriceUnavailableError{Ticker: h.Ticker, Err: err}
		}
		valued = append(valued, vh)
	}

	summary := Summarize(*p, valued, s.tickers)
	summary.PricedAt = s.now()

	s.logger.Debug().
		Str("portfolio", portfolioID).
		Int("holdings", len(holdings)).
		Float64("total_value", summary.TotalValue).
		Msg("Portfolio summary computed")

	return &summary, nil
}

// GetHistory builds the value series for rng. Tickers whose history cannot
// be fetched contribute nothing; a missing benchmark yields an empty
// benchmark series.
func (s *Service) GetHistory(ctx context.Context, portfolioID string, rng models.Range) (*models.PortfolioHistory, error) {
	p, holdings, err := s.loadPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}

	var since time.Time
	if rng == models.RangeAll {
		since = earliestPurchase(holdings)
	}

	tickers := distinctTickers(holdings)
	series := make([][]models.PricePoint, len(tickers))
	var benchmark []models.PricePoint

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)

	for i, ticker := range tickers {
		g.Go(func() error {
			pts, err := s.prices.GetPriceHistory(ctx, ticker, rng, since)
			if err != nil {
				s.logger.Warn().Err(err).Str("ticker", ticker).Str("range", string(rng)).
					Msg("Price history unavailable, ticker contributes zero")
				return nil
			}
			series[i] = pts
			return nil
		})
	}
	if len(tickers) > 0 {
		g.Go(func() error {
			pts, err := s.prices.GetBenchmarkHistory(ctx, rng, since)
			if err != nil {
				s.logger.Warn().Err(err).Str("benchmark", s.prices.BenchmarkSymbol()).
					Msg("Benchmark history unavailable")
				return nil
			}
			benchmark = pts
			return nil
		})
	}
	_ = g.Wait()

	prices := make(map[string][]models.PricePoint, len(tickers))
	for i, ticker := range tickers {
		if series[i] != nil {
			prices[ticker] = series[i]
		}
	}

	history := BuildHistory(HistoryInput{
		Portfolio:       *p,
		Holdings:        holdings,
		Prices:          prices,
		Benchmark:       benchmark,
		BenchmarkSymbol: s.prices.BenchmarkSymbol(),
		Range:           rng,
		Now:             s.now(),
	})

	return &history, nil
}

// RenderHistoryChart renders the history for rng as a PNG
func (s *Service) RenderHistoryChart(ctx context.Context, portfolioID string, rng models.Range) ([]byte, error) {
	history, err := s.GetHistory(ctx, portfolioID, rng)
	if err != nil {
		return nil, err
	}
	return RenderHistoryChart(history)
}

// loadPortfolio reads a portfolio and its holdings, re-checking each holding
// against its stored invariants.
func (s *Service) loadPortfolio(ctx context.Context, portfolioID string) (*models.Portfolio, []models.Holding, error) {
	p, err := s.storage.PortfolioStore().GetPortfolio(ctx, portfolioID)
	if err != nil {
		if errors.Is(err, models.ErrPortfolioNotFound) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("failed to load portfolio %s: %w", portfolioID, err)
	}

	stored, err := s.storage.HoldingStore().ListHoldings(ctx, portfolioID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list holdings for %s: %w", portfolioID, err)
	}

	holdings := make([]models.Holding, 0, len(stored))
	for _, h := range stored {
		if err := h.Validate(); err != nil {
			return nil, nil, err
		}
		holdings = append(holdings, *h)
	}

	return p, holdings, nil
}

// fetchCurrentPrices prices each ticker once, concurrently. Every fetch runs
// to completion before any failure is reported, and the reported failure is
// the first failing ticker in sorted order.
func (s *Service) fetchCurrentPrices(ctx context.Context, tickers []string) (map[string]float64, error) {
	quotes := make([]models.PriceQuote, len(tickers))
	errs := make([]error, len(tickers))

	var g errgroup.Group
	g.SetLimit(maxConcurrentFetches)

	for i, ticker := range tickers {
		g.Go(func() error {
			quote, err := s.prices.GetCurrentPrice(ctx, ticker)
			if err == nil && !validPrice(quote.Price) {
				err = &models.InvalidPriceError{Ticker: ticker, Price: quote.Price}
			}
			quotes[i], errs[i] = quote, err
			return nil
		})
	}
	_ = g.Wait()

	prices := make(map[string]float64, len(tickers))
	for i, ticker := range tickers {
		if err := errs[i]; err != nil {
			var pue *models.PriceUnavailableError
			if errors.As(err, &pue) {
				return nil, pue
			}
			return nil, &models.PriceUnavailableError{Ticker: ticker, Err: err}
		}
		prices[ticker] = quotes[i].Price
	}

	return prices, nil
}

// ListPortfolios returns all portfolios ordered by name
func (s *Service) ListPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	portfolios, err := s.storage.PortfolioStore().ListPortfolios(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}
	sort.SliceStable(portfolios, func(i, j int) bool {
		return strings.ToLower(portfolios[i].Name) < strings.ToLower(portfolios[j].Name)
	})
	return portfolios, nil
}

// GetPortfolio returns a portfolio with its stored holdings
func (s *Service) GetPortfolio(ctx context.Context, portfolioID string) (*interfaces.PortfolioDetail, error) {
	p, err := s.storage.PortfolioStore().GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	holdings, err := s.storage.HoldingStore().ListHoldings(ctx, portfolioID)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings for %s: %w", portfolioID, err)
	}
	if holdings == nil {
		holdings = []*models.Holding{}
	}
	return &interfaces.PortfolioDetail{Portfolio: *p, Holdings: holdings}, nil
}

// CreatePortfolio stores a new empty portfolio
func (s *Service) CreatePortfolio(ctx context.Context, name string) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.ErrInvalidPortfolioName
	}

	now := s.now().UTC()
	p := &models.Portfolio{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.storage.PortfolioStore().SavePortfolio(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save portfolio: %w", err)
	}

	s.logger.Info().Str("portfolio", p.ID).Str("name", name).Msg("Portfolio created")
	return p, nil
}

// RenamePortfolio changes a portfolio's display name
func (s *Service) RenamePortfolio(ctx context.Context, portfolioID, name string) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, models.ErrInvalidPortfolioName
	}

	p, err := s.storage.PortfolioStore().GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	p.Name = name
	p.UpdatedAt = s.now().UTC()
	if err := s.storage.PortfolioStore().SavePortfolio(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to save portfolio: %w", err)
	}
	return p, nil
}

// DeletePortfolio removes a portfolio and its holdings
func (s *Service) DeletePortfolio(ctx context.Context, portfolioID string) error {
	if _, err := s.storage.PortfolioStore().GetPortfolio(ctx, portfolioID); err != nil {
		return err
	}
	if err := s.storage.PortfolioStore().DeletePortfolio(ctx, portfolioID); err != nil {
		return fmt.Errorf("failed to delete portfolio %s: %w", portfolioID, err)
	}
	s.logger.Info().Str("portfolio", portfolioID).Msg("Portfolio deleted")
	return nil
}

// AddHolding validates and stores a new holding. When no asset type is given
// the price source is asked to identify the ticker; a ticker it does not
// recognise is rejected.
func (s *Service) AddHolding(ctx context.Context, portfolioID string, in interfaces.HoldingInput) (*models.Holding, error) {
	if _, err := s.storage.PortfolioStore().GetPortfolio(ctx, portfolioID); err != nil {
		return nil, err
	}

	assetType, ok := models.ParseAssetType(in.AssetType)
	if !ok {
		return nil, &models.HoldingValidationError{Field: "asset_type", Reason: "unknown asset type " + in.AssetType}
	}

	now := s.now().UTC()
	purchased := in.PurchaseDate
	if purchased.IsZero() {
		purchased = truncateDay(now)
	}
	if purchased.After(now) {
		return nil, &models.HoldingValidationError{Field: "purchase_date", Reason: "must not be in the future"}
	}

	if !validPrice(in.StartingPrice) {
		return nil, &models.HoldingValidationError{Field: "starting_price", Reason: "must be a finite non-negative price"}
	}
	if in.StartingPrice > 0 && (in.Quantity != 0 || in.AvgCost != 0) {
		return nil, &models.HoldingValidationError{Field: "starting_price", Reason: "cannot be combined with quantity or avg_cost"}
	}

	var h models.Holding
	if in.StartingPrice > 0 {
		h = models.NewStartingPriceHolding(portfolioID, in.Ticker, assetType, in.StartingPrice, purchased)
	} else {
		h = models.Holding{
			PortfolioID:  portfolioID,
			Ticker:       models.NormalizeTicker(in.Ticker),
			AssetType:    assetType,
			Quantity:     in.Quantity,
			AvgCost:      in.AvgCost,
			PurchaseDate: purchased,
		}
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	if h.Quantity <= 0 {
		return nil, &models.HoldingValidationError{Field: "quantity", Reason: "must be greater than zero"}
	}

	info := s.tickers.Lookup(h.Ticker)
	h.Name = info.Name
	if h.AssetType == models.AssetTypeUnknown {
		h.AssetType = info.Type
	}
	if h.AssetType == models.AssetTypeUnknown || h.Name == h.Ticker {
		looked, err := s.prices.LookupTicker(ctx, h.Ticker)
		switch {
		case errors.Is(err, models.ErrUnknownTicker):
			return nil, &models.HoldingValidationError{Field: "ticker", Reason: "not recognised by the price source: " + h.Ticker}
		case err != nil:
			s.logger.Warn().Err(err).Str("ticker", h.Ticker).Msg("Ticker lookup failed, storing without metadata")
		default:
			if h.AssetType == models.AssetTypeUnknown {
				h.AssetType = looked.Type
			}
			if h.Name == h.Ticker && looked.Name != "" {
				h.Name = looked.Name
			}
		}
	}

	h.ID = uuid.New().String()
	h.CreatedAt = now
	h.LastUpdated = now

	if err := s.storage.HoldingStore().SaveHolding(ctx, &h); err != nil {
		return nil, fmt.Errorf("failed to save holding: %w", err)
	}

	// Cached closes may predate the purchase window; drop them so the next
	// history read fetches the full series.
	if err := s.storage.PriceCacheStore().Invalidate(ctx, h.Ticker); err != nil {
		s.logger.Warn().Err(err).Str("ticker", h.Ticker).Msg("Failed to invalidate price cache")
	}

	s.logger.Info().
		Str("portfolio", portfolioID).
		Str("ticker", h.Ticker).
		Float64("quantity", h.Quantity).
		Msg("Holding added")

	return &h, nil
}

// DeleteHolding removes a holding that belongs to portfolioID
func (s *Service) DeleteHolding(ctx context.Context, portfolioID, holdingID string) error {
	h, err := s.storage.HoldingStore().GetHolding(ctx, holdingID)
	if err != nil {
		return err
	}
	if h.PortfolioID != portfolioID {
		return fmt.Errorf("%w: %s in portfolio %s", models.ErrHoldingNotFound, holdingID, portfolioID)
	}
	if err := s.storage.HoldingStore().DeleteHolding(ctx, holdingID); err != nil {
		return fmt.Errorf("failed to delete holding %s: %w", holdingID, err)
	}
	s.logger.Info().Str("portfolio", portfolioID).Str("holding", holdingID).Msg("Holding deleted")
	return nil
}

// distinctTickers returns each ticker once, sorted
func distinctTickers(holdings []models.Holding) []string {
	seen := make(map[string]struct{}, len(holdings))
	var tickers []string
	for _, h := range holdings {
		if _, ok := seen[h.Ticker]; ok {
			continue
		}
		seen[h.Ticker] = struct{}{}
		tickers = append(tickers, h.Ticker)
	}
	sort.Strings(tickers)
	return tickers
}

func earliestPurchase(holdings []models.Holding) time.Time {
	var earliest time.Time
	for _, h := range holdings {
		if h.PurchaseDate.IsZero() {
			continue
		}
		if earliest.IsZero() || h.PurchaseDate.Before(earliest) {
			earliest = h.PurchaseDate
		}
	}
	return earliest
}
