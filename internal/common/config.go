// Package common provides shared utilities for the portfolio tracker
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"github.com/bobmcallan/portfolio-tracker/internal/models"
)

// Config holds all configuration for the tracker
type Config struct {
	Environment string              `toml:"environment"`
	Server      ServerConfig        `toml:"server"`
	Storage     StorageConfig       `toml:"storage"`
	Clients     ClientsConfig       `toml:"clients"`
	Market      MarketConfig        `toml:"market"`
	Scheduler   SchedulerConfig     `toml:"scheduler"`
	Auth        AuthConfig          `toml:"auth"`
	Logging     LoggingConfig       `toml:"logging"`
	Tickers     []models.TickerInfo `toml:"tickers"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host           string   `toml:"host"`
	Port           int      `toml:"port"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// StorageConfig selects and configures the persistence backend
type StorageConfig struct {
	Backend   string          `toml:"backend"` // "sqlite" (default) or "surrealdb"
	SQLite    SQLiteConfig    `toml:"sqlite"`
	SurrealDB SurrealDBConfig `toml:"surrealdb"`
}

// SQLiteConfig holds the embedded database location
type SQLiteConfig struct {
	Path string `toml:"path"` // ":memory:" for a throwaway database
}

// SurrealDBConfig holds SurrealDB connection settings
type SurrealDBConfig struct {
	Address   string `toml:"address"`
	Username  string `toml:"username"`
	Password  string `toml:"password"`
	Namespace string `toml:"namespace"`
	Database  string `toml:"database"`
}

// ClientsConfig holds API client configurations
type ClientsConfig struct {
	Yahoo YahooConfig `toml:"yahoo"`
}

// YahooConfig holds market data API configuration
type YahooConfig struct {
	BaseURL    string `toml:"base_url"`
	RateLimit  int    `toml:"rate_limit"` // requests per second
	Timeout    string `toml:"timeout"`
	MaxRetries int    `toml:"max_retries"`
	RetryDelay string `toml:"retry_delay"` // base delay, doubled per attempt
}

// GetTimeout parses and returns the timeout duration
func (c *YahooConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetRetryDelay parses and returns the base retry delay
func (c *YahooConfig) GetRetryDelay() time.Duration {
	d, err := time.ParseDuration(c.RetryDelay)
	if err != nil {
		return time.Second
	}
	return d
}

// MarketConfig holds price source settings
type MarketConfig struct {
	Benchmark               string `toml:"benchmark"`
	BenchmarkCacheTTL       string `toml:"benchmark_cache_ttl"`
	PriceCacheRetentionDays int    `toml:"price_cache_retention_days"`
	QuoteTimeout            string `toml:"quote_timeout"`
}

// GetBenchmarkCacheTTL parses and returns how long benchmark series are reused
func (c *MarketConfig) GetBenchmarkCacheTTL() time.Duration {
	d, err := time.ParseDuration(c.BenchmarkCacheTTL)
	if err != nil {
		return time.Hour
	}
	return d
}

// GetQuoteTimeout parses and returns the per-ticker current price deadline
func (c *MarketConfig) GetQuoteTimeout() time.Duration {
	d, err := time.ParseDuration(c.QuoteTimeout)
	if err != nil {
		return 15 * time.Second
	}
	return d
}

// GetRetention returns how long cached daily closes are kept
func (c *MarketConfig) GetRetention() time.Duration {
	days := c.PriceCacheRetentionDays
	if days <= 0 {
		days = 90
	}
	return time.Duration(days) * 24 * time.Hour
}

// SchedulerConfig holds cron specs for background jobs. Specs use the
// six-field form with seconds. An empty spec disables the job.
type SchedulerConfig struct {
	PriceRefresh string `toml:"price_refresh"`
	CacheCleanup string `toml:"cache_cleanup"`
}

// AuthConfig holds admin authentication configuration
type AuthConfig struct {
	JWTSecret         string `toml:"jwt_secret"`
	TokenExpiry       string `toml:"token_expiry"` // duration string, default "30m"
	AdminUsername     string `toml:"admin_username"`
	AdminPassword     string `toml:"admin_password"`
	AdminPasswordHash string `toml:"admin_password_hash"` // bcrypt, preferred over AdminPassword
}

// GetTokenExpiry parses and returns the token expiry duration.
func (c *AuthConfig) GetTokenExpiry() time.Duration {
	d, err := time.ParseDuration(c.TokenExpiry)
	if err != nil {
		return 30 * time.Minute
	}
	return d
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level    string   `toml:"level"`
	Format   string   `toml:"format"` // "json" or "text"
	Outputs  []string `toml:"outputs"`
	FilePath string   `toml:"file_path"`
}

const defaultJWTSecret = "dev-jwt-secret-change-in-production"

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host:           "0.0.0.0",
			Port:           8080,
			AllowedOrigins: []string{"*"},
		},
		Storage: StorageConfig{
			Backend: "sqlite",
			SQLite:  SQLiteConfig{Path: "data/tracker.db"},
			SurrealDB: SurrealDBConfig{
				Address:   "ws://localhost:8000/rpc",
				Username:  "root",
				Password:  "root",
				Namespace: "tracker",
				Database:  "tracker",
			},
		},
		Clients: ClientsConfig{
			Yahoo: YahooConfig{
				BaseURL:    "https://query2.finance.yahoo.com",
				RateLimit:  5,
				Timeout:    "30s",
				MaxRetries: 3,
				RetryDelay: "1s",
			},
		},
		Market: MarketConfig{
			Benchmark:               "^GSPC",
			BenchmarkCacheTTL:       "1h",
			PriceCacheRetentionDays: 90,
			QuoteTimeout:            "15s",
		},
		Scheduler: SchedulerConfig{
			PriceRefresh: "0 */5 * * * *",
			CacheCleanup: "0 30 3 * * *",
		},
		Auth: AuthConfig{
			JWTSecret:     defaultJWTSecret,
			TokenExpiry:   "30m",
			AdminUsername: "admin",
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "text",
			Outputs:  []string{"console"},
			FilePath: "./logs/tracker.log",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// A .env file in the working directory is read first; variables already set
// in the process environment take precedence over it.
func LoadConfig(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	config := NewDefaultConfig()

	// Later files override earlier ones
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("TRACKER_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("TRACKER_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("TRACKER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if origins := os.Getenv("TRACKER_ALLOWED_ORIGINS"); origins != "" {
		config.Server.AllowedOrigins = splitList(origins)
	}

	if level := os.Getenv("TRACKER_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	// Storage overrides
	if v := os.Getenv("TRACKER_STORAGE_BACKEND"); v != "" {
		config.Storage.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("TRACKER_SQLITE_PATH"); v != "" {
		config.Storage.SQLite.Path = v
	}
	if v := os.Getenv("TRACKER_SURREALDB_ADDRESS"); v != "" {
		config.Storage.SurrealDB.Address = v
	}
	if v := os.Getenv("TRACKER_SURREALDB_USERNAME"); v != "" {
		config.Storage.SurrealDB.Username = v
	}
	if v := os.Getenv("TRACKER_SURREALDB_PASSWORD"); v != "" {
		config.Storage.SurrealDB.Password = v
	}

	if v := os.Getenv("TRACKER_BENCHMARK"); v != "" {
		config.Market.Benchmark = v
	}
	if v := os.Getenv("TRACKER_YAHOO_BASE_URL"); v != "" {
		config.Clients.Yahoo.BaseURL = v
	}

	// Auth overrides
	if v := os.Getenv("TRACKER_AUTH_JWT_SECRET"); v != "" {
		config.Auth.JWTSecret = v
	}
	if v := os.Getenv("TRACKER_AUTH_TOKEN_EXPIRY"); v != "" {
		config.Auth.TokenExpiry = v
	}
	if v := os.Getenv("TRACKER_ADMIN_USERNAME"); v != "" {
		config.Auth.AdminUsername = v
	}
	if v := os.Getenv("TRACKER_ADMIN_PASSWORD"); v != "" {
		config.Auth.AdminPassword = v
	}
	if v := os.Getenv("TRACKER_ADMIN_PASSWORD_HASH"); v != "" {
		config.Auth.AdminPasswordHash = v
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// ValidateRequired returns the names of settings that must be changed before
// the server is safe to run in production.
func (c *Config) ValidateRequired() []string {
	var missing []string
	if c.Auth.JWTSecret == "" || c.Auth.JWTSecret == defaultJWTSecret {
		missing = append(missing, "auth.jwt_secret")
	}
	if c.Auth.AdminPassword == "" && c.Auth.AdminPasswordHash == "" {
		missing = append(missing, "auth.admin_password")
	}
	return missing
}

// TickerDirectory returns the configured ticker metadata as a lookup table
func (c *Config) TickerDirectory() models.TickerDirectory {
	return models.NewTickerDirectory(c.Tickers)
}
