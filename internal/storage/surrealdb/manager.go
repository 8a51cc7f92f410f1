// Package surrealdb implements the storage interfaces on SurrealDB.
package surrealdb

import (
	"context"
	"fmt"
	"strings"

	"github.com/surrealdb/surrealdb.go"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
)

const (
	portfolioTable  = "portfolio"
	holdingTable    = "holding"
	priceCacheTable = "price_cache"
)

// Manager implements interfaces.StorageManager using SurrealDB.
type Manager struct {
	db     *surrealdb.DB
	logger *common.Logger

	portfolioStore  *PortfolioStore
	holdingStore    *HoldingStore
	priceCacheStore *PriceCacheStore
}

// NewManager creates a new StorageManager connected to SurrealDB.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	ctx := context.Background()
	cfg := config.Storage.SurrealDB

	// Connect to SurrealDB
	db, err := surrealdb.New(cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to SurrealDB: %w", err)
	}

	// Sign in
	if _, err := db.SignIn(ctx, map[string]interface{}{
		"user": cfg.Username,
		"pass": cfg.Password,
	}); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to sign in to SurrealDB: %w", err)
	}

	// Select namespace and database
	if err := db.Use(ctx, cfg.Namespace, cfg.Database); err != nil {
		db.Close(ctx)
		return nil, fmt.Errorf("failed to select namespace/database: %w", err)
	}

	if err := defineTables(ctx, db); err != nil {
		db.Close(ctx)
		return nil, err
	}

	m := &Manager{
		db:     db,
		logger: logger,
	}

	m.portfolioStore = NewPortfolioStore(db, logger)
	m.holdingStore = NewHoldingStore(db, logger)
	m.priceCacheStore = NewPriceCacheStore(db, logger)

	logger.Info().
		Str("address", cfg.Address).
		Str("namespace", cfg.Namespace).
		Str("database", cfg.Database).
		Msg("SurrealDB storage manager initialized")

	return m, nil
}

// defineTables ensures every table exists (SurrealDB v3 errors on querying
// non-existent tables).
func defineTables(ctx context.Context, db *surrealdb.DB) error {
	for _, table := range []string{portfolioTable, holdingTable, priceCacheTable} {
		sql := fmt.Sprintf("DEFINE TABLE IF NOT EXISTS %s SCHEMALESS", table)
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define table %s: %w", table, err)
		}
	}
	indexes := []string{
		"DEFINE INDEX IF NOT EXISTS holding_portfolio ON holding FIELDS portfolio_id",
		"DEFINE INDEX IF NOT EXISTS holding_ticker ON holding FIELDS ticker",
		"DEFINE INDEX IF NOT EXISTS price_cache_ticker_date ON price_cache FIELDS ticker, date UNIQUE",
	}
	for _, sql := range indexes {
		if _, err := surrealdb.Query[any](ctx, db, sql, nil); err != nil {
			return fmt.Errorf("failed to define index: %w", err)
		}
	}
	return nil
}

func (m *Manager) PortfolioStore() interfaces.PortfolioStore {
	return m.portfolioStore
}

func (m *Manager) HoldingStore() interfaces.HoldingStore {
	return m.holdingStore
}

func (m *Manager) PriceCacheStore() interfaces.PriceCacheStore {
	return m.priceCacheStore
}

func (m *Manager) Backend() string {
	return "surrealdb"
}

func (m *Manager) Close() error {
	return m.db.Close(context.Background())
}

// isNotFoundError reports whether err is SurrealDB's missing-record error
func isNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not found") || strings.Contains(msg, "does not exist")
}

// tickerToID converts a ticker like "BHP.AX" to a safe record ID "BHP_AX".
func tickerToID(ticker string) string {
	return strings.NewReplacer(".", "_", "-", "_", "^", "_", "=", "_").Replace(ticker)
}

// firstResult unwraps the first statement's rows from a Query response
func firstResult[T any](results *[]surrealdb.QueryResult[[]T]) []T {
	if results == nil || len(*results) == 0 {
		return nil
	}
	return (*results)[0].Result
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
