package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
)

// PriceCacheStore keeps daily closes, one row per (ticker, date).
type PriceCacheStore struct {
	db     *sql.DB
	logger *common.Logger
}

func NewPriceCacheStore(db *sql.DB, logger *common.Logger) *PriceCacheStore {
	return &PriceCacheStore{db: db, logger: logger}
}

func (s *PriceCacheStore) GetPriceRange(ctx context.Context, ticker string, from, to time.Time) ([]interfaces.CachedPrice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, date, close_price, fetched_at FROM price_cache
		WHERE ticker = ? AND date >= ? AND date <= ?
		ORDER BY date`,
		ticker, from.UTC().Format(dateLayout), to.UTC().Format(dateLayout))
	if err != nil {
		return nil, fmt.Errorf("failed to read cached prices for %s: %w", ticker, err)
	}
	defer rows.Close()

	var out []interfaces.CachedPrice
	for rows.Next() {
		var cp interfaces.CachedPrice
		var date, fetched string
		if err := rows.Scan(&cp.Ticker, &date, &cp.Close, &fetched); err != nil {
			return nil, fmt.Errorf("failed to scan cached price: %w", err)
		}
		if cp.Date, err = time.Parse(dateLayout, date); err != nil {
			return nil, fmt.Errorf("invalid cached date %q: %w", date, err)
		}
		if cp.FetchedAt, err = parseTime(fetched); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

func (s *PriceCacheStore) SavePrices(ctx context.Context, prices []interfaces.CachedPrice) error {
	if len(prices) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO price_cache (ticker, date, close_price, fetched_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET
			close_price = excluded.close_price,
			fetched_at = excluded.fetched_at`)
	if err != nil {
		return fmt.Errorf("failed to prepare price insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range prices {
		if _, err := stmt.ExecContext(ctx, p.Ticker, p.Date.UTC().Format(dateLayout), p.Close, formatTime(p.FetchedAt)); err != nil {
			return fmt.Errorf("failed to cache price %s %s: %w", p.Ticker, p.Date.Format(dateLayout), err)
		}
	}

	return tx.Commit()
}

func (s *PriceCacheStore) PurgeBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM price_cache WHERE fetched_at < ?`, formatTime(cutoff))
	if err != nil {
		return 0, fmt.Errorf("failed to purge price cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *PriceCacheStore) Invalidate(ctx context.Context, ticker string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM price_cache WHERE ticker = ?`, ticker); err != nil {
		return fmt.Errorf("failed to invalidate cached prices for %s: %w", ticker, err)
	}
	return nil
}

// Compile-time check
var _ interfaces.PriceCacheStore = (*PriceCacheStore)(nil)
