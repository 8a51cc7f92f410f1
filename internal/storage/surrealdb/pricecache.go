package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
)

const dateLayout = "2006-01-02"

// priceRecord stores the date as YYYY-MM-DD so range filters compare lexically
type priceRecord struct {
	Ticker    string    `json:"ticker"`
	Date      string    `json:"date"`
	Close     float64   `json:"close_price"`
	FetchedAt time.Time `json:"fetched_at"`
}

func priceRecordID(ticker string, date time.Time) string {
	return tickerToID(ticker) + "_" + date.UTC().Format("20060102")
}

type PriceCacheStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewPriceCacheStore(db *surrealdb.DB, logger *common.Logger) *PriceCacheStore {
	return &PriceCacheStore{db: db, logger: logger}
}

func (s *PriceCacheStore) GetPriceRange(ctx context.Context, ticker string, from, to time.Time) ([]interfaces.CachedPrice, error) {
	sql := "SELECT * FROM price_cache WHERE ticker = $ticker AND date >= $from AND date <= $to ORDER BY date ASC"
	vars := map[string]any{
		"ticker": ticker,
		"from":   from.UTC().Format(dateLayout),
		"to":     to.UTC().Format(dateLayout),
	}

	results, err := surrealdb.Query[[]priceRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to read cached prices for %s: %w", ticker, err)
	}

	rows := firstResult(results)
	out := make([]interfaces.CachedPrice, 0, len(rows))
	for _, r := range rows {
		date, err := time.Parse(dateLayout, r.Date)
		if err != nil {
			s.logger.Warn().Str("ticker", ticker).Str("date", r.Date).Msg("Skipping cached price with invalid date")
			continue
		}
		out = append(out, interfaces.CachedPrice{
			Ticker:    r.Ticker,
			Date:      date,
			Close:     r.Close,
			FetchedAt: r.FetchedAt,
		})
	}
	return out, nil
}

func (s *PriceCacheStore) SavePrices(ctx context.Context, prices []interfaces.CachedPrice) error {
	for _, p := range prices {
		vars := map[string]any{
			"rid": surrealmodels.NewRecordID(priceCacheTable, priceRecordID(p.Ticker, p.Date)),
			"price": priceRecord{
				Ticker:    p.Ticker,
				Date:      p.Date.UTC().Format(dateLayout),
				Close:     p.Close,
				FetchedAt: p.FetchedAt.UTC(),
			},
		}
		if _, err := surrealdb.Query[[]priceRecord](ctx, s.db, "UPSERT $rid CONTENT $price", vars); err != nil {
			return fmt.Errorf("failed to cache price %s %s: %w", p.Ticker, p.Date.Format(dateLayout), err)
		}
	}
	return nil
}

func (s *PriceCacheStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	results, err := surrealdb.Query[[]priceRecord](ctx, s.db,
		"DELETE price_cache WHERE fetched_at < $cutoff RETURN BEFORE",
		map[string]any{"cutoff": cutoff.UTC()})
	if err != nil {
		return 0, fmt.Errorf("failed to purge price cache: %w", err)
	}
	return len(firstResult(results)), nil
}

func (s *PriceCacheStore) Invalidate(ctx context.Context, ticker string) error {
	if _, err := surrealdb.Query[any](ctx, s.db, "DELETE price_cache WHERE ticker = $ticker",
		map[string]any{"ticker": ticker}); err != nil {
		return fmt.Errorf("failed to invalidate cached prices for %s: %w", ticker, err)
	}
	return nil
}

// Compile-time check
var _ interfaces.PriceCacheStore = (*PriceCacheStore)(nil)
