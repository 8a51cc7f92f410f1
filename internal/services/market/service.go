// Package market provides the price source used to value portfolios
package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

// Service implements PriceSource over a market data client, a persistent
// cache of daily closes and short-lived in-memory caches for quotes and the
// benchmark.
type Service struct {
	client    interfaces.MarketDataClient
	cache     interfaces.PriceCacheStore
	logger    *common.Logger
	benchmark string
	config    common.MarketConfig
	now       func() time.Time

	mu         sync.Mutex
	quotes     map[string]models.PriceQuote
	quotedAt   map[string]time.Time
	benchCache map[string]benchmarkEntry
}

type benchmarkEntry struct {
	points    []models.PricePoint
	fetchedAt time.Time
}

// NewService creates a new market service
func NewService(client interfaces.MarketDataClient, cache interfaces.PriceCacheStore, config common.MarketConfig, logger *common.Logger) *Service {
	benchmark := config.Benchmark
	if benchmark == "" {
		benchmark = "^GSPC"
	}
	return &Service{
		client:     client,
		cache:      cache,
		logger:     logger,
		benchmark:  benchmark,
		config:     config,
		now:        time.Now,
		quotes:     make(map[string]models.PriceQuote),
		quotedAt:   make(map[string]time.Time),
		benchCache: make(map[string]benchmarkEntry),
	}
}

// BenchmarkSymbol names the benchmark used for comparison
func (s *Service) BenchmarkSymbol() string {
	return s.benchmark
}

// GetCurrentPrice returns the latest regular market price for ticker.
// Quotes are reused for FreshnessQuote.
func (s *Service) GetCurrentPrice(ctx context.Context, ticker string) (models.PriceQuote, error) {
	ticker = models.NormalizeTicker(ticker)
	now := s.now()

	s.mu.Lock()
	if q, ok := s.quotes[ticker]; ok && common.IsFreshAt(s.quotedAt[ticker], common.FreshnessQuote, now) {
		s.mu.Unlock()
		return q, nil
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.config.GetQuoteTimeout())
	defer cancel()

	chart, err := s.client.GetChart(ctx, ticker, interfaces.WithInterval("1d"), interfaces.WithRange("5d"))
	if err != nil {
		return models.PriceQuote{}, &models.PriceUnavailableError{Ticker: ticker, Err: err}
	}
	if chart.RegularMarketPrice <= 0 {
		return models.PriceQuote{}, &models.PriceUnavailableError{
			Ticker: ticker,
			Err:    &models.InvalidPriceError{Ticker: ticker, Price: chart.RegularMarketPrice},
		}
	}

	quote := models.PriceQuote{Ticker: ticker, Price: chart.RegularMarketPrice, AsOf: chart.RegularMarketTime}
	if quote.AsOf.IsZero() {
		quote.AsOf = now
	}

	s.mu.Lock()
	s.quotes[ticker] = quote
	s.quotedAt[ticker] = now
	s.mu.Unlock()

	return quote, nil
}

// GetPriceHistory returns an ascending price series for rng. Daily series are
// read through the persistent cache and fall back to it when the provider
// fails. Intraday series always come from the provider.
func (s *Service) GetPriceHistory(ctx context.Context, ticker string, rng models.Range, since time.Time) ([]models.PricePoint, error) {
	ticker = models.NormalizeTicker(ticker)

	if rng.Intraday() {
		chart, err := s.client.GetChart(ctx, ticker, chartOptions(rng, time.Time{}, time.Time{})...)
		if err != nil {
			return nil, &models.PriceUnavailableError{Ticker: ticker, Err: err}
		}
		return chart.Points, nil
	}

	now := s.now().UTC()
	from := dailyFrom(rng, since, now)

	cached, cacheErr := s.readCache(ctx, ticker, from, now)
	if cacheErr == nil && s.cacheCovers(cached, from, now) {
		return toPoints(cached), nil
	}

	chart, err := s.client.GetChart(ctx, ticker, chartOptions(rng, from, now)...)
	if err != nil {
		if len(cached) > 0 {
			s.logger.Warn().Err(err).Str("ticker", ticker).Int("cached", len(cached)).
				Msg("Provider history failed, serving cached closes")
			return toPoints(cached), nil
		}
		return nil, &models.PriceUnavailableError{Ticker: ticker, Err: err}
	}

	s.writeCache(ctx, ticker, chart.Points, now)
	return chart.Points, nil
}

// GetBenchmarkHistory returns the benchmark series for rng, reusing a
// fetched series for the configured TTL.
func (s *Service) GetBenchmarkHistory(ctx context.Context, rng models.Range, since time.Time) ([]models.PricePoint, error) {
	key := string(rng)
	if !since.IsZero() {
		key += ":" + since.UTC().Format("2006-01-02")
	}
	now := s.now()

	s.mu.Lock()
	if e, ok := s.benchCache[key]; ok && common.IsFreshAt(e.fetchedAt, s.config.GetBenchmarkCacheTTL(), now) {
		s.mu.Unlock()
		return e.points, nil
	}
	s.mu.Unlock()

	points, err := s.GetPriceHistory(ctx, s.benchmark, rng, since)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.benchCache[key] = benchmarkEntry{points: points, fetchedAt: now}
	s.mu.Unlock()

	return points, nil
}

// LookupTicker validates ticker against the provider and returns its name
// and inferred asset type.
func (s *Service) LookupTicker(ctx context.Context, ticker string) (models.TickerInfo, error) {
	ticker = models.NormalizeTicker(ticker)
	chart, err := s.client.GetChart(ctx, ticker, interfaces.WithInterval("1d"), interfaces.WithRange("5d"))
	if err != nil {
		return models.TickerInfo{}, err
	}
	if chart.RegularMarketPrice <= 0 && len(chart.Points) == 0 {
		return models.TickerInfo{}, fmt.Errorf("%w: %s has no price data", models.ErrUnknownTicker, ticker)
	}

	name := chart.Name
	if name == "" {
		name = ticker
	}
	return models.TickerInfo{Symbol: ticker, Name: name, Type: chart.AssetType()}, nil
}

// PurgeCache deletes cached closes older than the retention window
func (s *Service) PurgeCache(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.config.GetRetention())
	n, err := s.cache.PurgeBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to purge price cache: %w", err)
	}
	s.logger.Info().Int("deleted", n).Time("cutoff", cutoff).Msg("Price cache purged")
	return n, nil
}

func (s *Service) readCache(ctx context.Context, ticker string, from, to time.Time) ([]interfaces.CachedPrice, error) {
	if s.cache == nil {
		return nil, errors.New("no price cache configured")
	}
	cached, err := s.cache.GetPriceRange(ctx, ticker, from, to)
	if err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Price cache read failed")
		return nil, err
	}
	return cached, nil
}

// cacheCovers reports whether cached closes can answer a request without the
// provider: the first close is within a week of from (weekends and holidays
// leave gaps) and the newest entry was fetched recently.
func (s *Service) cacheCovers(cached []interfaces.CachedPrice, from, now time.Time) bool {
	if len(cached) == 0 {
		return false
	}
	if !from.IsZero() && cached[0].Date.After(from.AddDate(0, 0, 7)) {
		return false
	}
	newest := cached[0].FetchedAt
	for _, c := range cached[1:] {
		if c.FetchedAt.After(newest) {
			newest = c.FetchedAt
		}
	}
	return common.IsFreshAt(newest, common.FreshnessDailyBar, now)
}

func (s *Service) writeCache(ctx context.Context, ticker string, points []models.PricePoint, fetchedAt time.Time) {
	if s.cache == nil || len(points) == 0 {
		return
	}
	prices := make([]interfaces.CachedPrice, 0, len(points))
	for _, p := range points {
		t := p.Time.UTC()
		prices = append(prices, interfaces.CachedPrice{
			Ticker:    ticker,
			Date:      time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC),
			Close:     p.Price,
			FetchedAt: fetchedAt,
		})
	}
	if err := s.cache.SavePrices(ctx, prices); err != nil {
		s.logger.Warn().Err(err).Str("ticker", ticker).Msg("Price cache write failed")
	}
}

func toPoints(cached []interfaces.CachedPrice) []models.PricePoint {
	points := make([]models.PricePoint, len(cached))
	for i, c := range cached {
		points[i] = models.PricePoint{Time: c.Date, Price: c.Close}
	}
	return points
}

// dailyFrom resolves the first day a daily range needs. A zero result means
// the full available history.
func dailyFrom(rng models.Range, since, now time.Time) time.Time {
	var from time.Time
	if lb := rng.Lookback(); lb > 0 {
		from = now.Add(-lb)
	} else if !since.IsZero() {
		from = since.UTC()
	}
	if from.IsZero() {
		return from
	}
	return time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
}

// chartOptions maps a range onto provider query parameters
func chartOptions(rng models.Range, from, to time.Time) []interfaces.ChartOption {
	switch rng {
	case models.Range1D:
		return []interfaces.ChartOption{interfaces.WithInterval("5m"), interfaces.WithRange("1d")}
	case models.Range1W:
		return []interfaces.ChartOption{interfaces.WithInterval("30m"), interfaces.WithRange("5d")}
	}
	if from.IsZero() {
		return []interfaces.ChartOption{interfaces.WithInterval("1d"), interfaces.WithRange("max")}
	}
	return []interfaces.ChartOption{interfaces.WithInterval("1d"), interfaces.WithPeriod(from, to.Add(24*time.Hour))}
}
