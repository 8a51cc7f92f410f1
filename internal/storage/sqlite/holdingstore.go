package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

const holdingColumns = `id, portfolio_id, ticker, name, asset_type, quantity, avg_cost, purchase_date, last_updated, created_at`

type HoldingStore struct {
	db     *sql.DB
	logger *common.Logger
}

func NewHoldingStore(db *sql.DB, logger *common.Logger) *HoldingStore {
	return &HoldingStore{db: db, logger: logger}
}

func (s *HoldingStore) ListHoldings(ctx context.Context, portfolioID string) ([]*models.Holding, error) {
	return s.query(ctx,
		`SELECT `+holdingColumns+` FROM holdings WHERE portfolio_id = ? ORDER BY created_at, id`, portfolioID)
}

func (s *HoldingStore) ListAllHoldings(ctx context.Context) ([]*models.Holding, error) {
	return s.query(ctx, `SELECT `+holdingColumns+` FROM holdings ORDER BY portfolio_id, created_at, id`)
}

func (s *HoldingStore) GetHolding(ctx context.Context, id string) (*models.Holding, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+holdingColumns+` FROM holdings WHERE id = ?`, id)
	h, err := scanHolding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrHoldingNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get holding %s: %w", id, err)
	}
	return h, nil
}

func (s *HoldingStore) SaveHolding(ctx context.Context, h *models.Holding) error {
	if err := h.Validate(); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holdings (`+holdingColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			ticker = excluded.ticker,
			name = excluded.name,
			asset_type = excluded.asset_type,
			quantity = excluded.quantity,
			avg_cost = excluded.avg_cost,
			purchase_date = excluded.purchase_date,
			last_updated = excluded.last_updated`,
		h.ID, h.PortfolioID, h.Ticker, h.Name, string(h.AssetType), h.Quantity, h.AvgCost,
		formatTime(h.PurchaseDate), formatTime(h.LastUpdated), formatTime(h.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return models.ErrPortfolioNotFound
		}
		return fmt.Errorf("failed to save holding %s: %w", h.ID, err)
	}
	return nil
}

func (s *HoldingStore) DeleteHolding(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM holdings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete holding %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrHoldingNotFound
	}
	return nil
}

func (s *HoldingStore) TouchHoldings(ctx context.Context, ticker string, at time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE holdings SET last_updated = ? WHERE ticker = ?`, formatTime(at), models.NormalizeTicker(ticker))
	if err != nil {
		return 0, fmt.Errorf("failed to touch holdings for %s: %w", ticker, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *HoldingStore) query(ctx context.Context, query string, args ...any) ([]*models.Holding, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}
	defer rows.Close()

	var out []*models.Holding
	for rows.Next() {
		h, err := scanHolding(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func scanHolding(row rowScanner) (*models.Holding, error) {
	var h models.Holding
	var assetType, purchased, updated, created string
	if err := row.Scan(&h.ID, &h.PortfolioID, &h.Ticker, &h.Name, &assetType,
		&h.Quantity, &h.AvgCost, &purchased, &updated, &created); err != nil {
		return nil, err
	}
	h.AssetType = models.AssetType(assetType)

	var err error
	if h.PurchaseDate, err = parseTime(purchased); err != nil {
		return nil, err
	}
	if h.LastUpdated, err = parseTime(updated); err != nil {
		return nil, err
	}
	if h.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &h, nil
}

// Compile-time check
var _ interfaces.HoldingStore = (*HoldingStore)(nil)
