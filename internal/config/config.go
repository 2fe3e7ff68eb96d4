// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// SourceConfig holds upstream market-data source configuration.
type SourceConfig struct {
	BaseURL     string        // source API base URL
	Token       string        // source API token
	RateLimit   int           // max calls per minute (default: 120)
	MaxRetries  int           // bounded retries for transient fetch errors (default: 3)
	HTTPTimeout time.Duration // per-request timeout (default: 30s)
}

// Validate checks that the source configuration is usable for ingestion.
func (s *SourceConfig) Validate() error {
	if s.BaseURL == "" {
		return fmt.Errorf("SOURCE_BASE_URL must be set")
	}
	if s.Token == "" {
		return fmt.Errorf("SOURCE_TOKEN must be set")
	}
	return nil
}

// GuardConfig holds idempotency-guard defaults for wrapped pipeline runs.
type GuardConfig struct {
	Retries    int           // retry count after the first attempt (default: 2)
	RetryDelay time.Duration // delay between attempts (default: 1m)
	Timeout    time.Duration // hard per-attempt timeout (default: 2h)
}

// Config holds configuration for the pipeline engine. Constructed once at
// process start and injected into every component — nothing else reads the
// environment directly.
type Config struct {
	ControlDBPath   string // path to the SQLite control-plane file
	WarehouseDBPath string // path to the DuckDB warehouse file
	LayersFile      string // YAML layer/table registry for the health audit
	ListenAddr      string // ops HTTP listen address (default ":8086")
	LogLevel        string // log level: debug, info, warn, error (default "info")
	LogFormat       string // "text" (default) or "json"

	// Runner tuning.
	BatchThreshold int // unit count above which a run switches to one batch transaction (default 30)
	ChunkSize      int // units per backfill chunk (default 250)
	ChunkWorkers   int // concurrent backfill chunk subprocesses (default 4)

	// ReaperAge is the age after which RUNNING ledger/guard rows are
	// considered zombies (default 6h).
	ReaperAge time.Duration

	// ScheduleCron triggers the daily pipeline when set (standard 5-field
	// cron expression). Empty disables the scheduler.
	ScheduleCron string

	Source SourceConfig
	Guard  GuardConfig

	// Warnings collects non-fatal warnings generated during loading, logged
	// by the caller once the logger exists.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the process logger from the config.
func (c *Config) NewLogger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// LoadFromEnv loads configuration from environment variables. Source
// variables are optional at load time — ingestion commands validate them
// before use.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		ControlDBPath:   os.Getenv("CONTROL_DB_PATH"),
		WarehouseDBPath: os.Getenv("WAREHOUSE_DB_PATH"),
		LayersFile:      os.Getenv("LAYERS_FILE"),
		ListenAddr:      os.Getenv("LISTEN_ADDR"),
		LogLevel:        os.Getenv("LOG_LEVEL"),
		LogFormat:       os.Getenv("LOG_FORMAT"),
		ScheduleCron:    os.Getenv("SCHEDULE_CRON"),
		BatchThreshold:  intEnv("BATCH_THRESHOLD", 30),
		ChunkSize:       intEnv("CHUNK_SIZE", 250),
		ChunkWorkers:    intEnv("CHUNK_WORKERS", 4),
		ReaperAge:       durationEnv("REAPER_AGE", 6*time.Hour),
		Source: SourceConfig{
			BaseURL:     os.Getenv("SOURCE_BASE_URL"),
			Token:       os.Getenv("SOURCE_TOKEN"),
			RateLimit:   intEnv("SOURCE_RATE_LIMIT", 120),
			MaxRetries:  intEnv("SOURCE_MAX_RETRIES", 3),
			HTTPTimeout: durationEnv("SOURCE_HTTP_TIMEOUT", 30*time.Second),
		},
		Guard: GuardConfig{
			Retries:    intEnv("GUARD_RETRIES", 2),
			RetryDelay: durationEnv("GUARD_RETRY_DELAY", time.Minute),
			Timeout:    durationEnv("GUARD_TIMEOUT", 2*time.Hour),
		},
	}

	// Defaults
	if cfg.ControlDBPath == "" {
		cfg.ControlDBPath = "tidemark_meta.sqlite"
	}
	if cfg.WarehouseDBPath == "" {
		cfg.WarehouseDBPath = "tidemark.duckdb"
	}
	if cfg.LayersFile == "" {
		cfg.LayersFile = "layers.yaml"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8086"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}

	if cfg.BatchThreshold < 1 {
		return nil, fmt.Errorf("BATCH_THRESHOLD must be >= 1")
	}
	if cfg.ChunkSize < 1 {
		return nil, fmt.Errorf("CHUNK_SIZE must be >= 1")
	}
	if cfg.ChunkWorkers < 1 {
		return nil, fmt.Errorf("CHUNK_WORKERS must be >= 1")
	}
	if cfg.Source.Token == "" {
		cfg.Warnings = append(cfg.Warnings, "SOURCE_TOKEN not set — ingestion commands will fail until configured")
	}

	return cfg, nil
}

func intEnv(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func durationEnv(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}

// LoadDotEnv reads a .env file and sets any variables not already in the
// environment. Lines must be in KEY=VALUE format. Comments (#) and blank
// lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = stripQuotes(strings.TrimSpace(value))
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
