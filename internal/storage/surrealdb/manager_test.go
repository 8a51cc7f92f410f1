package surrealdb

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
	"github.com/bobmcallan/portfolio-tracker/internal/models"
	tcommon "github.com/bobmcallan/portfolio-tracker/tests/common"
)

func testConfig(t *testing.T) *common.Config {
	t.Helper()
	sc := tcommon.StartSurrealDB(t)

	cfg := common.NewDefaultConfig()
	cfg.Environment = "test"
	cfg.Storage.Backend = "surrealdb"
	cfg.Storage.SurrealDB = common.SurrealDBConfig{
		Address:   sc.Address(),
		Namespace: "tracker_test",
		Database:  fmt.Sprintf("mgr_%s_%d", strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()), time.Now().UnixNano()%100000),
		Username:  "root",
		Password:  "root",
	}
	return cfg
}

var t0 = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func TestNewManager(t *testing.T) {
	cfg := testConfig(t)

	mgr, err := NewManager(common.NewSilentLogger(), cfg)
	require.NoError(t, err)
	defer mgr.Close()

	assert.Equal(t, "surrealdb", mgr.Backend())
	assert.NotNil(t, mgr.PortfolioStore())
	assert.NotNil(t, mgr.HoldingStore())
	assert.NotNil(t, mgr.PriceCacheStore())
}

func TestNewManager_BadAddress(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.SurrealDB.Address = "ws://127.0.0.1:1/rpc"

	_, err := NewManager(common.NewSilentLogger(), cfg)
	assert.Error(t, err)
}

func TestPortfolioStore_CRUD(t *testing.T) {
	db := testDB(t)
	store := NewPortfolioStore(db, testLogger())
	ctx := context.Background()

	_, err := store.GetPortfolio(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrPortfolioNotFound)

	require.NoError(t, store.SavePortfolio(ctx, &models.Portfolio{ID: "p1", Name: "Growth", CreatedAt: t0, UpdatedAt: t0}))
	later := t0.Add(time.Hour)
	require.NoError(t, store.SavePortfolio(ctx, &models.Portfolio{ID: "p1", Name: "Growth II", CreatedAt: later, UpdatedAt: later}))

	got, err := store.GetPortfolio(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, "Growth II", got.Name)
	assert.True(t, got.CreatedAt.Equal(t0), "created_at preserved on update")
	assert.True(t, got.UpdatedAt.Equal(later))

	require.NoError(t, store.SavePortfolio(ctx, &models.Portfolio{ID: "p2", Name: "Income", CreatedAt: later, UpdatedAt: later}))
	list, err := store.ListPortfolios(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p1", list[0].ID)

	require.NoError(t, store.DeletePortfolio(ctx, "p2"))
	assert.ErrorIs(t, store.DeletePortfolio(ctx, "p2"), models.ErrPortfolioNotFound)
}

func newHolding(id, portfolioID, ticker string) *models.Holding {
	return &models.Holding{
		ID:           id,
		PortfolioID:  portfolioID,
		Ticker:       ticker,
		AssetType:    models.AssetTypeStock,
		Quantity:     10,
		AvgCost:      100,
		PurchaseDate: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		LastUpdated:  t0,
		CreatedAt:    t0,
	}
}

func TestHoldingStore_CRUDAndCascade(t *testing.T) {
	db := testDB(t)
	portfolios := NewPortfolioStore(db, testLogger())
	holdings := NewHoldingStore(db, testLogger())
	ctx := context.Background()

	assert.ErrorIs(t, holdings.SaveHolding(ctx, newHolding("h0", "nope", "AAPL")), models.ErrPortfolioNotFound)

	require.NoError(t, portfolios.SavePortfolio(ctx, &models.Portfolio{ID: "p1", Name: "Main", CreatedAt: t0, UpdatedAt: t0}))
	require.NoError(t, portfolios.SavePortfolio(ctx, &models.Portfolio{ID: "p2", Name: "Other", CreatedAt: t0, UpdatedAt: t0}))
	require.NoError(t, holdings.SaveHolding(ctx, newHolding("h1", "p1", "BHP.AX")))
	require.NoError(t, holdings.SaveHolding(ctx, newHolding("h2", "p1", "AAPL")))
	require.NoError(t, holdings.SaveHolding(ctx, newHolding("h3", "p2", "AAPL")))

	got, err := holdings.GetHolding(ctx, "h1")
	require.NoError(t, err)
	assert.Equal(t, "BHP.AX", got.Ticker)
	assert.Equal(t, "p1", got.PortfolioID)

	list, err := holdings.ListHoldings(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	n, err := holdings.TouchHoldings(ctx, "AAPL", t0.Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	require.NoError(t, holdings.DeleteHolding(ctx, "h2"))
	assert.ErrorIs(t, holdings.DeleteHolding(ctx, "h2"), models.ErrHoldingNotFound)

	require.NoError(t, portfolios.DeletePortfolio(ctx, "p1"))
	all, err := holdings.ListAllHoldings(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "h3", all[0].ID)
}

func TestPriceCacheStore(t *testing.T) {
	db := testDB(t)
	cache := NewPriceCacheStore(db, testLogger())
	ctx := context.Background()
	day := func(d int) time.Time { return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC) }

	require.NoError(t, cache.SavePrices(ctx, []interfaces.CachedPrice{
		{Ticker: "BHP.AX", Date: day(2), Close: 45.1, FetchedAt: t0},
		{Ticker: "BHP.AX", Date: day(1), Close: 45.0, FetchedAt: t0.AddDate(0, 0, -100)},
		{Ticker: "BHP.AX", Date: day(3), Close: 45.2, FetchedAt: t0},
	}))
	require.NoError(t, cache.SavePrices(ctx, []interfaces.CachedPrice{
		{Ticker: "BHP.AX", Date: day(3), Close: 46, FetchedAt: t0},
	}))

	got, err := cache.GetPriceRange(ctx, "BHP.AX", day(1), day(3))
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.True(t, got[0].Date.Equal(day(1)))
	assert.Equal(t, 46.0, got[2].Close)

	n, err := cache.PurgeBefore(ctx, t0.AddDate(0, 0, -90))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, cache.Invalidate(ctx, "BHP.AX"))
	got, err = cache.GetPriceRange(ctx, "BHP.AX", day(1), day(3))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestTickerToID(t *testing.T) {
	assert.Equal(t, "BHP_AX", tickerToID("BHP.AX"))
	assert.Equal(t, "BTC_USD", tickerToID("BTC-USD"))
	assert.Equal(t, "_GSPC", tickerToID("^GSPC"))
}
