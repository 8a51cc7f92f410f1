package surrealdb

import (
	"context"
	"fmt"
	"time"

	"github.com/surrealdb/surrealdb.go"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

type holdingRecord struct {
	HoldingID    string    `json:"holding_id"`
	PortfolioID  string    `json:"portfolio_id"`
	Ticker       string    `json:"ticker"`
	Name         string    `json:"name"`
	AssetType    string    `json:"asset_type"`
	Quantity     float64   `json:"quantity"`
	AvgCost      float64   `json:"avg_cost"`
	PurchaseDate time.Time `json:"purchase_date"`
	LastUpdated  time.Time `json:"last_updated"`
	CreatedAt    time.Time `json:"created_at"`
}

func newHoldingRecord(h *models.Holding) holdingRecord {
	return holdingRecord{
		HoldingID:    h.ID,
		PortfolioID:  h.PortfolioID,
		Ticker:       h.Ticker,
		Name:         h.Name,
		AssetType:    string(h.AssetType),
		Quantity:     h.Quantity,
		AvgCost:      h.AvgCost,
		PurchaseDate: h.PurchaseDate.UTC(),
		LastUpdated:  h.LastUpdated.UTC(),
		CreatedAt:    h.CreatedAt.UTC(),
	}
}

func (r holdingRecord) toModel() *models.Holding {
	return &models.Holding{
		ID:           r.HoldingID,
		PortfolioID:  r.PortfolioID,
		Ticker:       r.Ticker,
		Name:         r.Name,
		AssetType:    models.AssetType(r.AssetType),
		Quantity:     r.Quantity,
		AvgCost:      r.AvgCost,
		PurchaseDate: r.PurchaseDate,
		LastUpdated:  r.LastUpdated,
		CreatedAt:    r.CreatedAt,
	}
}

type HoldingStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewHoldingStore(db *surrealdb.DB, logger *common.Logger) *HoldingStore {
	return &HoldingStore{db: db, logger: logger}
}

func (s *HoldingStore) ListHoldings(ctx context.Context, portfolioID string) ([]*models.Holding, error) {
	sql := "SELECT * FROM holding WHERE portfolio_id = $portfolio_id ORDER BY created_at ASC"
	return s.query(ctx, sql, map[string]any{"portfolio_id": portfolioID})
}

func (s *HoldingStore) ListAllHoldings(ctx context.Context) ([]*models.Holding, error) {
	return s.query(ctx, "SELECT * FROM holding ORDER BY portfolio_id ASC, created_at ASC", nil)
}

func (s *HoldingStore) GetHolding(ctx context.Context, id string) (*models.Holding, error) {
	record, err := surrealdb.Select[holdingRecord](ctx, s.db, surrealmodels.NewRecordID(holdingTable, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.ErrHoldingNotFound
		}
		return nil, fmt.Errorf("failed to select holding %s: %w", id, err)
	}
	if record == nil || record.HoldingID == "" {
		return nil, models.ErrHoldingNotFound
	}
	return record.toModel(), nil
}

// SaveHolding validates and upserts h. The owning portfolio must exist.
func (s *HoldingStore) SaveHolding(ctx context.Context, h *models.Holding) error {
	if err := h.Validate(); err != nil {
		return err
	}

	owner, err := surrealdb.Select[portfolioRecord](ctx, s.db, surrealmodels.NewRecordID(portfolioTable, h.PortfolioID))
	if (err != nil && isNotFoundError(err)) || (err == nil && (owner == nil || owner.PortfolioID == "")) {
		return models.ErrPortfolioNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to check portfolio %s: %w", h.PortfolioID, err)
	}

	sql := "UPSERT $rid CONTENT $holding"
	vars := map[string]any{
		"rid":     surrealmodels.NewRecordID(holdingTable, h.ID),
		"holding": newHoldingRecord(h),
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[[]holdingRecord](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to save holding after retries: %w", lastErr)
}

func (s *HoldingStore) DeleteHolding(ctx context.Context, id string) error {
	results, err := surrealdb.Query[[]holdingRecord](ctx, s.db, "DELETE $rid RETURN BEFORE", map[string]any{
		"rid": surrealmodels.NewRecordID(holdingTable, id),
	})
	if err != nil {
		return fmt.Errorf("failed to delete holding %s: %w", id, err)
	}
	if len(firstResult(results)) == 0 {
		return models.ErrHoldingNotFound
	}
	return nil
}

func (s *HoldingStore) TouchHoldings(ctx context.Context, ticker string, at time.Time) (int, error) {
	sql := "UPDATE holding SET last_updated = $at WHERE ticker = $ticker RETURN AFTER"
	vars := map[string]any{
		"at":     at.UTC(),
		"ticker": models.NormalizeTicker(ticker),
	}
	results, err := surrealdb.Query[[]holdingRecord](ctx, s.db, sql, vars)
	if err != nil {
		return 0, fmt.Errorf("failed to touch holdings for %s: %w", ticker, err)
	}
	return len(firstResult(results)), nil
}

func (s *HoldingStore) query(ctx context.Context, sql string, vars map[string]any) ([]*models.Holding, error) {
	results, err := surrealdb.Query[[]holdingRecord](ctx, s.db, sql, vars)
	if err != nil {
		return nil, fmt.Errorf("failed to list holdings: %w", err)
	}

	var out []*models.Holding
	for _, r := range firstResult(results) {
		out = append(out, r.toModel())
	}
	return out, nil
}

// Compile-time check
var _ interfaces.HoldingStore = (*HoldingStore)(nil)
