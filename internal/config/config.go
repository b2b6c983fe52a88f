// Package config loads and validates environment variables at startup.
// Fail-fast: if a variable is malformed, the process exits.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends accepted by STORE_BACKEND.
const (
	BackendFile     = "file"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config holds all runtime configuration for the internship service.
type Config struct {
	DiscordToken  string
	CommandPrefix string
	HealthPort    string
	LogLevel      slog.Level

	ListingsURL       string
	ContainerSelector string
	LockMarkers       []string
	ScrapeInterval    time.Duration
	FetchMaxRetries   int
	FetchRetryDelay   time.Duration
	FetchTimeout      time.Duration

	StoreBackend      string
	ChannelConfigPath string
	SQLitePath        string
	DatabaseURL       string
	RedisURL          string

	DispatchRate  float64 // messages per second
	DispatchBurst int
}

// Load reads a .env file when present, then the environment, and returns a
// validated Config. The Discord token is not checked here; commands that
// need it call RequireDiscordToken.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := &Config{
		DiscordToken:      os.Getenv("DISCORD_BOT_TOKEN"),
		CommandPrefix:     envOr("COMMAND_PREFIX", "!"),
		HealthPort:        envOr("HEALTH_PORT", "8083"),
		ListingsURL:       envOr("LISTINGS_URL", "https://github.com/SimplifyJobs/Summer2025-Internships"),
		ContainerSelector: envOr("CONTAINER_SELECTOR", "article.markdown-body"),
		LockMarkers:       splitList(envOr("LOCK_MARKERS", "🔒")),
		StoreBackend:      strings.ToLower(envOr("STORE_BACKEND", BackendFile)),
		ChannelConfigPath: envOr("CHANNEL_CONFIG_PATH", "channel_config.json"),
		SQLitePath:        envOr("SQLITE_PATH", "internships.sqlite"),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		RedisURL:          os.Getenv("REDIS_URL"),
	}

	var err error
	if cfg.LogLevel, err = parseLevel(envOr("LOG_LEVEL", "info")); err != nil {
		return nil, err
	}

	minutes, err := positiveInt("SCRAPE_INTERVAL_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	cfg.ScrapeInterval = time.Duration(minutes) * time.Minute

	if cfg.FetchMaxRetries, err = positiveInt("FETCH_MAX_RETRIES", 5); err != nil {
		return nil, err
	}

	delay, err := nonNegativeInt("FETCH_RETRY_DELAY_SECONDS", 5)
	if err != nil {
		return nil, err
	}
	cfg.FetchRetryDelay = time.Duration(delay) * time.Second

	timeout, err := positiveInt("FETCH_TIMEOUT_SECONDS", 10)
	if err != nil {
		return nil, err
	}
	cfg.FetchTimeout = time.Duration(timeout) * time.Second

	cfg.DispatchRate = 1
	if s := os.Getenv("DISPATCH_RATE_PER_SECOND"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return nil, fmt.Errorf("DISPATCH_RATE_PER_SECOND must be a positive number, got %q", s)
		}
		cfg.DispatchRate = v
	}
	if cfg.DispatchBurst, err = positiveInt("DISPATCH_BURST", 5); err != nil {
		return nil, err
	}

	if len(cfg.LockMarkers) == 0 {
		return nil, fmt.Errorf("LOCK_MARKERS must name at least one marker")
	}

	switch cfg.StoreBackend {
	case BackendFile, BackendSQLite:
	case BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	case BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required for the redis store")
		}
	default:
		return nil, fmt.Errorf("STORE_BACKEND must be one of file, sqlite, postgres, redis; got %q", cfg.StoreBackend)
	}

	return cfg, nil
}

// RequireDiscordToken fails when the bot token is missing.
func (c *Config) RequireDiscordToken() error {
	if c.DiscordToken == "" {
		return fmt.Errorf("DISCORD_BOT_TOKEN is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
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

func positiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", key, s)
	}
	return v, nil
}

func nonNegativeInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer, got %q", key, s)
	}
	return v, nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", s)
	}
	return level, nil
}
