// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config holds all application configuration loaded from defaults, an optional
// YAML file, and environment variables.
//
// Loading order (koanf v2): defaults -> config file -> environment variables,
// with later layers overriding earlier ones.
//
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	Catalog  CatalogConfig  `koanf:"catalog"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Ratings  RatingsConfig  `koanf:"ratings"`
	Pipeline PipelineConfig `koanf:"pipeline"`
	Database DatabaseConfig `koanf:"database"`
	Jobs     JobsConfig     `koanf:"jobs"`
	Server   ServerConfig   `koanf:"server"`
	API      APIConfig      `koanf:"api"`
	Security SecurityConfig `koanf:"security"`
	Logging  LoggingConfig  `koanf:"logging"`
}

// CatalogConfig holds connection settings for the marketplace catalog search API.
//
// Environment variables:
//   - CATALOG_BASE_URL: Search API base URL (required)
//   - CATALOG_PAGE_TIMEOUT: Per-page request timeout (default: 30s)
//   - CATALOG_RATE_LIMIT: Politeness limit in requests per second (default: 4)
//   - CATALOG_RATE_BURST: Rate limiter burst size (default: 2)
type CatalogConfig struct {
	BaseURL     string        `koanf:"base_url" validate:"required,url"`
	PageTimeout time.Duration `koanf:"page_timeout"`
	RateLimit   float64       `koanf:"rate_limit"`
	RateBurst   int           `koanf:"rate_burst"`
}

// MetricsConfig holds connection settings for the usage metrics API.
// The macaroon is a pre-exchanged capability credential sent verbatim in the
// Authorization header; rotation is an operator action.
//
// Environment variables:
//   - METRICS_BASE_URL: Metrics API base URL (required)
//   - METRICS_MACAROON: Authorization credential (required)
//   - METRICS_BATCH_SIZE: Items per metrics request (default: 15)
//   - METRICS_TIMEOUT: Per-request timeout (default: 30s)
//   - METRICS_RETRY_ATTEMPTS: Transient-error retry attempts (default: 3)
//   - METRICS_RETRY_DELAY: Initial retry backoff delay (default: 2s)
type MetricsConfig struct {
	BaseURL       string        `koanf:"base_url" validate:"required,url"`
	Macaroon      string        `koanf:"macaroon" validate:"required"`
	BatchSize     int           `koanf:"batch_size" validate:"gt=0"`
	Timeout       time.Duration `koanf:"timeout"`
	RetryAttempts int           `koanf:"retry_attempts"`
	RetryDelay    time.Duration `koanf:"retry_delay"`
}

// RatingsConfig holds connection settings for the ratings service.
// Authentication is a per-run token exchange: the client id derived from the
// app name plus the shared secret are traded for a short-lived bearer token.
//
// Environment variables:
//   - RATINGS_BASE_URL: Ratings service base URL (required)
//   - RATINGS_APP_NAME: Application name used to derive the client id (default: storepulse)
//   - RATINGS_SECRET: Shared secret for the token exchange (required)
//   - RATINGS_BATCH_SIZE: Items per bulk ratings request (default: 20)
//   - RATINGS_TIMEOUT: Per-request timeout (default: 30s)
type RatingsConfig struct {
	BaseURL   string        `koanf:"base_url" validate:"required,url"`
	AppName   string        `koanf:"app_name" validate:"required"`
	Secret    string        `koanf:"secret" validate:"required"`
	BatchSize int           `koanf:"batch_size" validate:"gt=0"`
	Timeout   time.Duration `koanf:"timeout"`
}

// PipelineConfig holds scheduling and policy settings for the recommendation
// pipeline.
//
// Environment variables:
//   - PIPELINE_SCHEDULE_INTERVAL: Full-run cadence (default: 168h)
//   - PIPELINE_STARTUP_DELAY: Delay before the first scheduled run (default: 1m)
//   - PIPELINE_ABORT_ON_FAILURE: Stop the run on the first failed stage (default: true)
//   - PIPELINE_ACTIVITY_WINDOW_DAYS: Max age of last_updated for eligibility (default: 180)
//   - PIPELINE_HISTORY_RETENTION_DAYS: Score history retention (default: 90)
type PipelineConfig struct {
	ScheduleInterval     time.Duration `koanf:"schedule_interval"`
	StartupDelay         time.Duration `koanf:"startup_delay"`
	AbortOnFailure       bool          `koanf:"abort_on_failure"`
	ActivityWindowDays   int           `koanf:"activity_window_days" validate:"gt=0"`
	HistoryRetentionDays int           `koanf:"history_retention_days" validate:"gt=0"`
}

// DatabaseConfig holds DuckDB settings.
//
// Environment variables:
//   - DATABASE_PATH: DuckDB file path (default: /data/storepulse.duckdb)
//   - DATABASE_MAX_MEMORY: DuckDB memory limit (default: 1GB)
//   - DATABASE_THREADS: DuckDB thread count, 0 = all cores (default: 0)
type DatabaseConfig struct {
	Path      string `koanf:"path" validate:"required"`
	MaxMemory string `koanf:"max_memory"`
	Threads   int    `koanf:"threads" validate:"gte=0"`
}

// JobsConfig holds settings for the in-process job queue that backs manual
// pipeline triggers from the API.
//
// Environment variables:
//   - JOBS_RETRY_COUNT: Handler retry attempts (default: 2)
//   - JOBS_RETRY_INTERVAL: Initial handler retry interval (default: 5s)
//   - JOBS_CLOSE_TIMEOUT: Router shutdown grace period (default: 30s)
type JobsConfig struct {
	RetryCount    int           `koanf:"retry_count" validate:"gte=0"`
	RetryInterval time.Duration `koanf:"retry_interval"`
	CloseTimeout  time.Duration `koanf:"close_timeout"`
}

// ServerConfig holds HTTP server settings.
//
// Environment variables:
//   - HTTP_HOST: Bind address (default: 0.0.0.0)
//   - HTTP_PORT: Listen port (default: 8004)
//   - HTTP_TIMEOUT: Read/write timeout (default: 30s)
type ServerConfig struct {
	Host    string        `koanf:"host" validate:"required"`
	Port    int           `koanf:"port" validate:"gt=0,lte=65535"`
	Timeout time.Duration `koanf:"timeout"`
}

// APIConfig holds response shaping settings for the public API.
//
// Environment variables:
//   - API_DEFAULT_LIMIT: Default top-N size for category rankings (default: 20)
//   - API_MAX_LIMIT: Upper bound on requested limits (default: 100)
type APIConfig struct {
	DefaultLimit int `koanf:"default_limit" validate:"gt=0"`
	MaxLimit     int `koanf:"max_limit" validate:"gt=0"`
}

// SecurityConfig holds authentication and rate limiting settings.
// Admin endpoints require a bearer JWT signed with JWTSecret (HS256).
//
// Environment variables:
//   - JWT_SECRET: HMAC signing secret, min 32 bytes (required)
//   - RATE_LIMIT_REQS: Requests allowed per window per IP (default: 100)
//   - RATE_LIMIT_WINDOW: Rate limit window (default: 1m)
//   - RATE_LIMIT_DISABLED: Disable rate limiting entirely (default: false)
//   - CORS_ORIGINS: Comma-separated allowed origins (default: *)
type SecurityConfig struct {
	JWTSecret         string        `koanf:"jwt_secret" validate:"required,min=32"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"gt=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds logging settings.
//
// Environment variables:
//   - LOG_LEVEL: trace, debug, info, warn, error, fatal (default: info)
//   - LOG_FORMAT: json or console (default: json)
//   - LOG_CALLER: Include caller file:line (default: false)
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error fatal disabled"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// Validate checks the configuration for structural and cross-field errors.
// Struct tags cover per-field constraints; the checks below cover relations
// the tags cannot express.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("config validation: %w", err)
	}

	for _, raw := range []struct {
		name  string
		value string
	}{
		{"catalog.base_url", c.Catalog.BaseURL},
		{"metrics.base_url", c.Metrics.BaseURL},
		{"ratings.base_url", c.Ratings.BaseURL},
	} {
		u, err := url.Parse(raw.value)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s: not an absolute URL: %q", raw.name, raw.value)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("%s: unsupported scheme %q", raw.name, u.Scheme)
		}
	}

	if c.Pipeline.ScheduleInterval < time.Minute {
		return fmt.Errorf("pipeline.schedule_interval: must be at least 1m, got %s", c.Pipeline.ScheduleInterval)
	}
	if c.API.DefaultLimit > c.API.MaxLimit {
		return fmt.Errorf("api.default_limit (%d) exceeds api.max_limit (%d)", c.API.DefaultLimit, c.API.MaxLimit)
	}
	if c.Catalog.RateLimit <= 0 {
		return fmt.Errorf("catalog.rate_limit: must be positive, got %v", c.Catalog.RateLimit)
	}

	return nil
}

// ListenAddr returns the host:port the HTTP server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
