// Package sqlite implements the storage interfaces on an embedded SQLite
// database (modernc.org/sqlite, no cgo).
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
)

const memoryPath = ":memory:"

// timeLayout is fixed-width so stored timestamps compare lexically
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// dateLayout keys the price cache
const dateLayout = "2006-01-02"

var schema = []string{
	`CREATE TABLE IF NOT EXISTS portfolios (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS holdings (
		id TEXT PRIMARY KEY,
		portfolio_id TEXT NOT NULL REFERENCES portfolios(id) ON DELETE CASCADE,
		ticker TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		asset_type TEXT NOT NULL DEFAULT 'unknown',
		quantity REAL NOT NULL CHECK (quantity >= 0),
		avg_cost REAL NOT NULL CHECK (avg_cost >= 0),
		purchase_date TEXT NOT NULL,
		last_updated TEXT NOT NULL,
		created_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_holdings_portfolio ON holdings(portfolio_id)`,
	`CREATE INDEX IF NOT EXISTS idx_holdings_ticker ON holdings(ticker)`,
	`CREATE TABLE IF NOT EXISTS price_cache (
		ticker TEXT NOT NULL,
		date TEXT NOT NULL,
		close_price REAL NOT NULL,
		fetched_at TEXT NOT NULL,
		PRIMARY KEY (ticker, date)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_price_cache_fetched ON price_cache(fetched_at)`,
}

// Manager implements interfaces.StorageManager using SQLite.
type Manager struct {
	db     *sql.DB
	logger *common.Logger
	path   string

	portfolioStore  *PortfolioStore
	holdingStore    *HoldingStore
	priceCacheStore *PriceCacheStore
}

// NewManager opens (creating if needed) the database at config.Storage.SQLite.Path
// and applies the schema.
func NewManager(logger *common.Logger, config *common.Config) (*Manager, error) {
	path := config.Storage.SQLite.Path
	if path == "" {
		path = "data/tracker.db"
	}

	if path != memoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if path == memoryPath {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	m := &Manager{
		db:     db,
		logger: logger,
		path:   path,
	}
	m.portfolioStore = NewPortfolioStore(db, logger)
	m.holdingStore = NewHoldingStore(db, logger)
	m.priceCacheStore = NewPriceCacheStore(db, logger)

	logger.Info().Str("path", path).Msg("SQLite storage manager initialized")

	return m, nil
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
	return "sqlite"
}

// Path returns the database file location
func (m *Manager) Path() string {
	return m.path
}

func (m *Manager) Close() error {
	return m.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored timestamp %q: %w", s, err)
	}
	return t, nil
}

// Compile-time check
var _ interfaces.StorageManager = (*Manager)(nil)
