package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration
type Config struct {
	Environment string            `toml:"environment"` // "development" or "production" - controls test URL validation
	Server      ServerConfig      `toml:"server"`
	Storage     StorageConfig     `toml:"storage"`
	Queue       QueueConfig       `toml:"queue"`
	Workers     WorkersConfig     `toml:"workers"`
	Scraper     ScraperConfig     `toml:"scraper"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Ingest      IngestConfig      `toml:"ingest"`
	Logging     LoggingConfig     `toml:"logging"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type QueueConfig struct {
	Name         string `toml:"name"`          // Queue name prefix in Badger
	PollTimeout  string `toml:"poll_timeout"`  // e.g. "5s" - how long a worker blocks waiting for a task
	PollInterval string `toml:"poll_interval"` // e.g. "250ms" - fallback poll cadence when no notification arrives
}

type WorkersConfig struct {
	Concurrency  int    `toml:"concurrency"`   // Number of concurrent fetch workers
	MaxRetries   int    `toml:"max_retries"`   // Retries before a task is dead-lettered
	BackoffBase  string `toml:"backoff_base"`  // Base delay for exponential backoff, e.g. "2s"
	FetchTimeout string `toml:"fetch_timeout"` // Per-fetch context timeout
}

// ScraperConfig contains HTML fetching and extraction configuration
type ScraperConfig struct {
	UserAgent      string        `toml:"user_agent"`      // User agent string for outbound requests
	RequestTimeout time.Duration `toml:"request_timeout"` // HTTP request timeout
	MaxBodySize    int           `toml:"max_body_size"`   // Maximum response body size in bytes
	RateLimit      string        `toml:"rate_limit"`      // Minimum interval between outbound requests, e.g. "500ms"
	RateBurst      int           `toml:"rate_burst"`      // Token bucket burst size
}

// MaintenanceConfig controls the stale-fetch recovery job
type MaintenanceConfig struct {
	Enabled    bool   `toml:"enabled"`
	Schedule   string `toml:"schedule"`    // Cron schedule format
	StaleAfter string `toml:"stale_after"` // Age before an in-flight fetch is considered abandoned, e.g. "10m"
}

// IngestConfig contains configuration for seed batch files loaded at startup
type IngestConfig struct {
	SeedDir string `toml:"seed_dir"` // Directory containing seed batch files (YAML)
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Format string   `toml:"format"` // "json" or "text"
	Output []string `toml:"output"` // "stdout", "file"
}

// NewDefaultConfig creates a configuration with default values
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in colligo.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Queue: QueueConfig{
			Name:         "colligo_tasks",
			PollTimeout:  "5s",
			PollInterval: "250ms",
		},
		Workers: WorkersConfig{
			Concurrency:  4,
			MaxRetries:   3,
			BackoffBase:  "2s",
			FetchTimeout: "10s",
		},
		Scraper: ScraperConfig{
			UserAgent:      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
			RequestTimeout: 30 * time.Second,
			MaxBodySize:    10 * 1024 * 1024, // 10MB
			RateLimit:      "500ms",
			RateBurst:      2,
		},
		Maintenance: MaintenanceConfig{
			Enabled:    true,
			Schedule:   "*/5 * * * *", // Every 5 minutes
			StaleAfter: "10m",
		},
		Ingest: IngestConfig{
			SeedDir: "./seeds",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: []string{"stdout", "file"},
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env -> CLI. Later files override earlier files.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		err = toml.Unmarshal(data, config)
		if err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("COLLIGO_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("COLLIGO_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("COLLIGO_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Storage configuration
	if badgerPath := os.Getenv("COLLIGO_BADGER_PATH"); badgerPath != "" {
		config.Storage.Badger.Path = badgerPath
	}

	// Queue configuration
	if name := os.Getenv("COLLIGO_QUEUE_NAME"); name != "" {
		config.Queue.Name = name
	}
	if pollTimeout := os.Getenv("COLLIGO_QUEUE_POLL_TIMEOUT"); pollTimeout != "" {
		if _, err := time.ParseDuration(pollTimeout); err == nil {
			config.Queue.PollTimeout = pollTimeout
		}
	}
	if pollInterval := os.Getenv("COLLIGO_QUEUE_POLL_INTERVAL"); pollInterval != "" {
		if _, err := time.ParseDuration(pollInterval); err == nil {
			config.Queue.PollInterval = pollInterval
		}
	}

	// Workers configuration
	if concurrency := os.Getenv("COLLIGO_WORKERS_CONCURRENCY"); concurrency != "" {
		if c, err := strconv.Atoi(concurrency); err == nil {
			config.Workers.Concurrency = c
		}
	}
	if maxRetries := os.Getenv("COLLIGO_WORKERS_MAX_RETRIES"); maxRetries != "" {
		if mr, err := strconv.Atoi(maxRetries); err == nil {
			config.Workers.MaxRetries = mr
		}
	}
	if backoffBase := os.Getenv("COLLIGO_WORKERS_BACKOFF_BASE"); backoffBase != "" {
		if _, err := time.ParseDuration(backoffBase); err == nil {
			config.Workers.BackoffBase = backoffBase
		}
	}
	if fetchTimeout := os.Getenv("COLLIGO_WORKERS_FETCH_TIMEOUT"); fetchTimeout != "" {
		if _, err := time.ParseDuration(fetchTimeout); err == nil {
			config.Workers.FetchTimeout = fetchTimeout
		}
	}

	// Scraper configuration
	if userAgent := os.Getenv("COLLIGO_SCRAPER_USER_AGENT"); userAgent != "" {
		config.Scraper.UserAgent = userAgent
	}
	if requestTimeout := os.Getenv("COLLIGO_SCRAPER_REQUEST_TIMEOUT"); requestTimeout != "" {
		if rt, err := time.ParseDuration(requestTimeout); err == nil {
			config.Scraper.RequestTimeout = rt
		}
	}
	if maxBodySize := os.Getenv("COLLIGO_SCRAPER_MAX_BODY_SIZE"); maxBodySize != "" {
		if mbs, err := strconv.Atoi(maxBodySize); err == nil {
			config.Scraper.MaxBodySize = mbs
		}
	}
	if rateLimit := os.Getenv("COLLIGO_SCRAPER_RATE_LIMIT"); rateLimit != "" {
		if _, err := time.ParseDuration(rateLimit); err == nil {
			config.Scraper.RateLimit = rateLimit
		}
	}

	// Maintenance configuration
	if enabled := os.Getenv("COLLIGO_MAINTENANCE_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Maintenance.Enabled = e
		}
	}
	if schedule := os.Getenv("COLLIGO_MAINTENANCE_SCHEDULE"); schedule != "" {
		config.Maintenance.Schedule = schedule
	}
	if staleAfter := os.Getenv("COLLIGO_MAINTENANCE_STALE_AFTER"); staleAfter != "" {
		if _, err := time.ParseDuration(staleAfter); err == nil {
			config.Maintenance.StaleAfter = staleAfter
		}
	}

	// Ingest configuration
	if seedDir := os.Getenv("COLLIGO_INGEST_SEED_DIR"); seedDir != "" {
		config.Ingest.SeedDir = seedDir
	}

	// Logging configuration
	if level := os.Getenv("COLLIGO_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if format := os.Getenv("COLLIGO_LOG_FORMAT"); format != "" {
		config.Logging.Format = format
	}
	if output := os.Getenv("COLLIGO_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			trimmed := strings.TrimSpace(o)
			if trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ValidateMaintenanceSchedule validates a cron schedule expression
func ValidateMaintenanceSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	_, err := parser.Parse(schedule)
	if err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}
	return nil
}

// PollTimeout returns the parsed queue poll timeout, defaulting to 5s.
func (c *Config) PollTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Queue.PollTimeout); err == nil && d > 0 {
		return d
	}
	return 5 * time.Second
}

// QueuePollInterval returns the parsed queue poll interval, defaulting to 250ms.
func (c *Config) QueuePollInterval() time.Duration {
	if d, err := time.ParseDuration(c.Queue.PollInterval); err == nil && d > 0 {
		return d
	}
	return 250 * time.Millisecond
}

// BackoffBase returns the parsed worker backoff base, defaulting to 2s.
func (c *Config) BackoffBase() time.Duration {
	if d, err := time.ParseDuration(c.Workers.BackoffBase); err == nil && d > 0 {
		return d
	}
	return 2 * time.Second
}

// FetchTimeout returns the parsed per-fetch timeout, defaulting to 10s.
func (c *Config) FetchTimeout() time.Duration {
	if d, err := time.ParseDuration(c.Workers.FetchTimeout); err == nil && d > 0 {
		return d
	}
	return 10 * time.Second
}

// StaleAfter returns the parsed maintenance stale threshold, defaulting to 10m.
func (c *Config) StaleAfter() time.Duration {
	if d, err := time.ParseDuration(c.Maintenance.StaleAfter); err == nil && d > 0 {
		return d
	}
	return 10 * time.Minute
}

// ScrapeRateLimit returns the parsed scraper rate limit interval, defaulting to 500ms.
func (c *Config) ScrapeRateLimit() time.Duration {
	if d, err := time.ParseDuration(c.Scraper.RateLimit); err == nil && d > 0 {
		return d
	}
	return 500 * time.Millisecond
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}

// AllowTestURLs returns true if test URLs (localhost, 127.0.0.1, etc.) are allowed
// Test URLs are only allowed in development mode
func (c *Config) AllowTestURLs() bool {
	return !c.IsProduction()
}
