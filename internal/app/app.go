// Package app wires configuration, storage, market data and services into a
// running application.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bobmcallan/portfolio-tracker/internal/clients/yahoo"
	"github.com/bobmcallan/portfolio-tracker/internal/common"
	"github.com/bobmcallan/portfolio-tracker/internal/interfaces"
	"github.com/bobmcallan/portfolio-tracker/internal/services/market"
	"github.com/bobmcallan/portfolio-tracker/internal/services/portfolio"
	"github.com/bobmcallan/portfolio-tracker/internal/services/pricefeed"
	"github.com/bobmcallan/portfolio-tracker/internal/storage"
)

// App holds all initialized services, clients and background workers.
type App struct {
	Config           *common.Config
	Logger           *common.Logger
	Storage          interfaces.StorageManager
	MarketClient     interfaces.MarketDataClient
	MarketService    *market.Service
	PortfolioService interfaces.PortfolioService
	PriceHub         *pricefeed.Hub
	Refresher        *pricefeed.Refresher
	StartupTime      time.Time

	scheduler *Scheduler
	logCloser io.Closer
}

// getBinaryDir returns the directory containing the executable.
func getBinaryDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	return filepath.Dir(exe)
}

// ResolveConfigPath returns configPath, or TRACKER_CONFIG, or tracker.toml
// next to the binary, falling back to config/tracker.toml.
func ResolveConfigPath(configPath string) string {
	if configPath == "" {
		configPath = os.Getenv("TRACKER_CONFIG")
	}
	if configPath == "" {
		configPath = filepath.Join(getBinaryDir(), "tracker.toml")
		if _, err := os.Stat(configPath); os.IsNotExist(err) {
			configPath = "config/tracker.toml" // fallback for development
		}
	}
	return configPath
}

// NewApp loads configuration and initializes the application.
// configPath may be empty, in which case ResolveConfigPath applies.
func NewApp(configPath string) (*App, error) {
	// Load version from .version file (fallback if ldflags not set)
	common.LoadVersionFromFile()

	config, err := common.LoadConfig(ResolveConfigPath(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	binDir := getBinaryDir()

	// Resolve relative paths to the binary directory
	if p := config.Storage.SQLite.Path; p != "" && p != ":memory:" && !filepath.IsAbs(p) {
		config.Storage.SQLite.Path = filepath.Join(binDir, p)
	}
	if config.Logging.FilePath != "" && !filepath.IsAbs(config.Logging.FilePath) {
		config.Logging.FilePath = filepath.Join(binDir, config.Logging.FilePath)
	}

	logger, closer, err := common.NewLoggerFromConfig(config.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a, err := NewAppWithConfig(config, logger)
	if err != nil {
		closer.Close()
		return nil, err
	}
	a.logCloser = closer
	return a, nil
}

// NewAppWithConfig initializes the application from an already loaded config.
func NewAppWithConfig(config *common.Config, logger *common.Logger) (*App, error) {
	startupStart := time.Now()

	for _, missing := range config.ValidateRequired() {
		if config.IsProduction() {
			return nil, fmt.Errorf("missing required configuration: %s", missing)
		}
		logger.Warn().Str("setting", missing).Msg("Configuration value not set, using development default")
	}

	storageManager, err := storage.NewStorageManager(logger, config)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	yc := config.Clients.Yahoo
	client := yahoo.NewClient(
		yahoo.WithBaseURL(yc.BaseURL),
		yahoo.WithLogger(logger.WithComponent("yahoo")),
		yahoo.WithRateLimit(yc.RateLimit),
		yahoo.WithTimeout(yc.GetTimeout()),
		yahoo.WithRetry(yc.MaxRetries, yc.GetRetryDelay()),
	)

	marketService := market.NewService(client, storageManager.PriceCacheStore(), config.Market, logger.WithComponent("market"))
	portfolioService := portfolio.NewService(storageManager, marketService, config.TickerDirectory(), logger.WithComponent("portfolio"))

	hub := pricefeed.NewHub(logger.WithComponent("pricefeed"), originChecker(config.Server.AllowedOrigins))
	refresher := pricefeed.NewRefresher(storageManager.HoldingStore(), marketService, hub, logger.WithComponent("pricefeed"))

	a := &App{
		Config:           config,
		Logger:           logger,
		Storage:          storageManager,
		MarketClient:     client,
		MarketService:    marketService,
		PortfolioService: portfolioService,
		PriceHub:         hub,
		Refresher:        refresher,
		StartupTime:      startupStart,
	}

	go hub.Run()

	logger.Info().
		Str("storage", storageManager.Backend()).
		Int("tickers", len(config.Tickers)).
		Dur("startup", time.Since(startupStart)).
		Msg("App initialized")

	return a, nil
}

// StartScheduler registers the price refresh and cache cleanup jobs, starts
// the cron runner and kicks off one price refresh straight away.
func (a *App) StartScheduler() error {
	s := NewScheduler(a.Logger)

	refresh := func(ctx context.Context) error {
		_, err := a.Refresher.Refresh(ctx)
		return err
	}
	if spec := a.Config.Scheduler.PriceRefresh; spec != "" {
		if err := s.AddJob(spec, "price_refresh", refresh); err != nil {
			return fmt.Errorf("invalid price_refresh schedule %q: %w", spec, err)
		}
	}

	if spec := a.Config.Scheduler.CacheCleanup; spec != "" {
		if err := s.AddJob(spec, "cache_cleanup", func(ctx context.Context) error {
			_, err := a.MarketService.PurgeCache(ctx)
			return err
		}); err != nil {
			return fmt.Errorf("invalid cache_cleanup schedule %q: %w", spec, err)
		}
	}

	s.Start()
	a.scheduler = s

	// Prime holdings and subscribers without waiting for the first tick
	if a.Config.Scheduler.PriceRefresh != "" {
		go s.RunNow("price_refresh", refresh)
	}
	return nil
}

// Close releases all resources held by the App.
// Shutdown order: stop scheduler, stop price hub, close storage, close log file.
func (a *App) Close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
		a.scheduler = nil
	}
	if a.PriceHub != nil {
		a.PriceHub.Stop()
	}
	if a.Storage != nil {
		if err := a.Storage.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
		a.Storage = nil
	}
	if a.logCloser != nil {
		a.logCloser.Close()
		a.logCloser = nil
	}
}

// originChecker allows WebSocket upgrades from the configured origins. An
// empty list or "*" allows every origin.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		if o == "*" {
			return nil
		}
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		return origin == "" || set[origin]
	}
}
