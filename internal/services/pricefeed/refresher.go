package pricefeed

import (
	"context"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

const refreshConcurrency = 4

// RefreshResult summarises one refresh pass
type RefreshResult struct {
	Tickers int      `json:"tickers"`
	Updated int      `json:"updated"`
	Failed  []string `json:"failed,omitempty"`
}

// Refresher fetches current prices for every held ticker, stamps the
// holdings and broadcasts the new prices.
type Refresher struct {
	holdings    interfaces.HoldingStore
	prices      interfaces.PriceSource
	broadcaster interfaces.PriceBroadcaster
	logger      *common.Logger
	now         func() time.Time
}

// NewRefresher creates a Refresher. broadcaster may be nil.
func NewRefresher(holdings interfaces.HoldingStore, prices interfaces.PriceSource, broadcaster interfaces.PriceBroadcaster, logger *common.Logger) *Refresher {
	return &Refresher{
		holdings:    holdings,
		prices:      prices,
		broadcaster: broadcaster,
		logger:      logger,
		now:         time.Now,
	}
}

// Refresh runs one pass. Tickers without a usable price are logged and
// skipped; only a failure to list holdings is returned as an error.
func (r *Refresher) Refresh(ctx context.Context) (*RefreshResult, error) {
	holdings, err := r.holdings.ListAllHoldings(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var tickers []string
	for _, h := range holdings {
		if !seen[h.Ticker] {
			seen[h.Ticker] = true
			tickers = append(tickers, h.Ticker)
		}
	}
	sort.Strings(tickers)

	result := &RefreshResult{Tickers: len(tickers)}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(refreshConcurrency)
	for _, ticker := range tickers {
		g.Go(func() error {
			ok := r.refreshTicker(gctx, ticker)
			mu.Lock()
			if ok {
				result.Updated++
			} else {
				result.Failed = append(result.Failed, ticker)
			}
			mu.Unlock()
			return nil
		})
	}
	g.Wait()

	sort.Strings(result.Failed)

	r.logger.Info().
		Int("tickers", result.Tickers).
		Int("updated", result.Updated).
		Int("failed", len(result.Failed)).
		Msg("Price refresh complete")

	return result, nil
}

func (r *Refresher) refreshTicker(ctx context.Context, ticker string) bool {
	quote, err := r.prices.GetCurrentPrice(ctx, ticker)
	if err != nil {
		r.logger.Warn().Err(err).Str("ticker", ticker).Msg("Price refresh skipped ticker")
		return false
	}
	if quote.Price <= 0 {
		r.logger.Warn().Err(&models.InvalidPriceError{Ticker: ticker, Price: quote.Price}).Str("ticker", ticker).Msg("Price refresh skipped ticker")
		return false
	}

	at := quote.AsOf
	if at.IsZero() {
		at = r.now()
	}

	n, err := r.holdings.TouchHoldings(ctx, ticker, at)
	if err != nil {
		r.logger.Warn().Err(err).Str("ticker", ticker).Msg("Failed to stamp holdings")
		return false
	}
	r.logger.Debug().Str("ticker", ticker).Float64("price", quote.Price).Int("holdings", n).Msg("Price refreshed")

	if r.broadcaster != nil {
		r.broadcaster.Broadcast(interfaces.PriceUpdate{Ticker: ticker, Price: quote.Price, AsOf: at})
	}
	return true
}
