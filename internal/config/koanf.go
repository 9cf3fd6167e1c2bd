// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in order
// of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/storepulse/config.yaml",
	"/etc/storepulse/config.yml",
}

// ConfigPathEnvVar overrides the config file search when set.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults applied. These are loaded
// first and overridden by the config file and environment variables.
func defaultConfig() *Config {
	return &Config{
		Catalog: CatalogConfig{
			BaseURL:     "",
			PageTimeout: 30 * time.Second,
			RateLimit:   4,
			RateBurst:   2,
		},
		Metrics: MetricsConfig{
			BaseURL:       "",
			Macaroon:      "",
			BatchSize:     15,
			Timeout:       30 * time.Second,
			RetryAttempts: 3,
			RetryDelay:    2 * time.Second,
		},
		Ratings: RatingsConfig{
			BaseURL:   "",
			AppName:   "storepulse",
			Secret:    "",
			BatchSize: 20,
			Timeout:   30 * time.Second,
		},
		Pipeline: PipelineConfig{
			ScheduleInterval:     7 * 24 * time.Hour,
			StartupDelay:         time.Minute,
			AbortOnFailure:       true,
			ActivityWindowDays:   180,
			HistoryRetentionDays: 90,
		},
		Database: DatabaseConfig{
			Path:      "/data/storepulse.duckdb",
			MaxMemory: "1GB",
			Threads:   0, // 0 = use runtime.NumCPU()
		},
		Jobs: JobsConfig{
			RetryCount:    2,
			RetryInterval: 5 * time.Second,
			CloseTimeout:  30 * time.Second,
		},
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8004,
			Timeout: 30 * time.Second,
		},
		API: APIConfig{
			DefaultLimit: 20,
			MaxLimit:     100,
		},
		Security: SecurityConfig{
			JWTSecret:         "",
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from layered sources:
//  1. Defaults from defaultConfig()
//  2. Optional YAML config file
//  3. Environment variables (highest priority)
//
// The result is validated before being returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	// CATALOG_BASE_URL -> catalog.base_url, JWT_SECRET -> security.jwt_secret
	if err := k.Load(env.Provider("", ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, preferring the
// CONFIG_PATH environment variable over the default search paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// they arrive as strings from environment variables.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

// processSliceFields converts comma-separated string values into slices for
// the known slice fields. YAML-sourced slices are left untouched.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envMappings maps flat environment variable names (lowercased) to nested
// config paths. Variables not listed here are ignored, which keeps unrelated
// environment noise out of the config tree.
var envMappings = map[string]string{
	"catalog_base_url":     "catalog.base_url",
	"catalog_page_timeout": "catalog.page_timeout",
	"catalog_rate_limit":   "catalog.rate_limit",
	"catalog_rate_burst":   "catalog.rate_burst",

	"metrics_base_url":       "metrics.base_url",
	"metrics_macaroon":       "metrics.macaroon",
	"metrics_batch_size":     "metrics.batch_size",
	"metrics_timeout":        "metrics.timeout",
	"metrics_retry_attempts": "metrics.retry_attempts",
	"metrics_retry_delay":    "metrics.retry_delay",

	"ratings_base_url":   "ratings.base_url",
	"ratings_app_name":   "ratings.app_name",
	"ratings_secret":     "ratings.secret",
	"ratings_batch_size": "ratings.batch_size",
	"ratings_timeout":    "ratings.timeout",

	"pipeline_schedule_interval":      "pipeline.schedule_interval",
	"pipeline_startup_delay":          "pipeline.startup_delay",
	"pipeline_abort_on_failure":       "pipeline.abort_on_failure",
	"pipeline_activity_window_days":   "pipeline.activity_window_days",
	"pipeline_history_retention_days": "pipeline.history_retention_days",

	"database_path":       "database.path",
	"database_max_memory": "database.max_memory",
	"database_threads":    "database.threads",

	"jobs_retry_count":    "jobs.retry_count",
	"jobs_retry_interval": "jobs.retry_interval",
	"jobs_close_timeout":  "jobs.close_timeout",

	"http_host":    "server.host",
	"http_port":    "server.port",
	"http_timeout": "server.timeout",

	"api_default_limit": "api.default_limit",
	"api_max_limit":     "api.max_limit",

	"jwt_secret":          "security.jwt_secret",
	"rate_limit_reqs":     "security.rate_limit_reqs",
	"rate_limit_window":   "security.rate_limit_window",
	"rate_limit_disabled": "security.rate_limit_disabled",
	"cors_origins":        "security.cors_origins",

	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransform maps an environment variable name to its koanf path, or ""
// to skip the variable.
func envTransform(key string) string {
	return envMappings[strings.ToLower(key)]
}
