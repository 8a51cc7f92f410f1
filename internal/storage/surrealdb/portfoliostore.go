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

// portfolioRecord is the stored shape. The record id lives in the table key,
// the domain id is repeated in portfolio_id.
type portfolioRecord struct {
	PortfolioID string    `json:"portfolio_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (r portfolioRecord) toModel() *models.Portfolio {
	return &models.Portfolio{
		ID:        r.PortfolioID,
		Name:      r.Name,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
}

type PortfolioStore struct {
	db     *surrealdb.DB
	logger *common.Logger
}

func NewPortfolioStore(db *surrealdb.DB, logger *common.Logger) *PortfolioStore {
	return &PortfolioStore{db: db, logger: logger}
}

func (s *PortfolioStore) GetPortfolio(ctx context.Context, id string) (*models.Portfolio, error) {
	record, err := surrealdb.Select[portfolioRecord](ctx, s.db, surrealmodels.NewRecordID(portfolioTable, id))
	if err != nil {
		if isNotFoundError(err) {
			return nil, models.ErrPortfolioNotFound
		}
		return nil, fmt.Errorf("failed to select portfolio %s: %w", id, err)
	}
	if record == nil || record.PortfolioID == "" {
		return nil, models.ErrPortfolioNotFound
	}
	return record.toModel(), nil
}

func (s *PortfolioStore) ListPortfolios(ctx context.Context) ([]*models.Portfolio, error) {
	results, err := surrealdb.Query[[]portfolioRecord](ctx, s.db, "SELECT * FROM portfolio ORDER BY created_at ASC", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list portfolios: %w", err)
	}

	var out []*models.Portfolio
	for _, r := range firstResult(results) {
		out = append(out, r.toModel())
	}
	return out, nil
}

// SavePortfolio upserts p. An existing record keeps its created_at.
func (s *PortfolioStore) SavePortfolio(ctx context.Context, p *models.Portfolio) error {
	sql := `UPSERT $rid SET
		portfolio_id = $id, name = $name,
		created_at = created_at ?? $created_at, updated_at = $updated_at`
	vars := map[string]any{
		"rid":        surrealmodels.NewRecordID(portfolioTable, p.ID),
		"id":         p.ID,
		"name":       p.Name,
		"created_at": p.CreatedAt.UTC(),
		"updated_at": p.UpdatedAt.UTC(),
	}

	var lastErr error
	for attempt := 1; attempt <= 3; attempt++ {
		_, err := surrealdb.Query[any](ctx, s.db, sql, vars)
		if err == nil {
			return nil
		}
		lastErr = err
	}
	return fmt.Errorf("failed to save portfolio after retries: %w", lastErr)
}

// DeletePortfolio removes the portfolio and its holdings in one transaction.
func (s *PortfolioStore) DeletePortfolio(ctx context.Context, id string) error {
	if _, err := s.GetPortfolio(ctx, id); err != nil {
		return err
	}

	sql := `BEGIN TRANSACTION;
		DELETE holding WHERE portfolio_id = $id;
		DELETE $rid;
		COMMIT TRANSACTION;`
	vars := map[string]any{
		"id":  id,
		"rid": surrealmodels.NewRecordID(portfolioTable, id),
	}
	if _, err := surrealdb.Query[any](ctx, s.db, sql, vars); err != nil {
		return fmt.Errorf("failed to delete portfolio %s: %w", id, err)
	}
	return nil
}

// Compile-time check
var _ interfaces.PortfolioStore = (*PortfolioStore)(nil)
