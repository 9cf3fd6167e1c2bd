// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setRequiredEnv sets the minimum environment for Load to succeed.
func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("CATALOG_BASE_URL", "https://catalog.example.com/api/v1")
	t.Setenv("METRICS_BASE_URL", "https://metrics.example.com")
	t.Setenv("METRICS_MACAROON", "test-macaroon")
	t.Setenv("RATINGS_BASE_URL", "https://ratings.example.com")
	t.Setenv("RATINGS_SECRET", "test-ratings-secret")
	t.Setenv("JWT_SECRET", "0123456789abcdef0123456789abcdef")
}

func TestLoadDefaults(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 15, cfg.Metrics.BatchSize)
	assert.Equal(t, 20, cfg.Ratings.BatchSize)
	assert.Equal(t, 7*24*time.Hour, cfg.Pipeline.ScheduleInterval)
	assert.True(t, cfg.Pipeline.AbortOnFailure)
	assert.Equal(t, 180, cfg.Pipeline.ActivityWindowDays)
	assert.Equal(t, 90, cfg.Pipeline.HistoryRetentionDays)
	assert.Equal(t, "/data/storepulse.duckdb", cfg.Database.Path)
	assert.Equal(t, 8004, cfg.Server.Port)
	assert.Equal(t, 20, cfg.API.DefaultLimit)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, []string{"*"}, cfg.Security.CORSOrigins)
}

func TestLoadEnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("CONFIG_PATH", "/nonexistent/config.yaml")
	t.Setenv("METRICS_BATCH_SIZE", "25")
	t.Setenv("PIPELINE_ABORT_ON_FAILURE", "false")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("CORS_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 25, cfg.Metrics.BatchSize)
	assert.False(t, cfg.Pipeline.AbortOnFailure)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Security.CORSOrigins)
}

func TestLoadConfigFile(t *testing.T) {
	setRequiredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yaml := `
pipeline:
  schedule_interval: 24h
  activity_window_days: 90
server:
  port: 8080
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o600))
	t.Setenv("CONFIG_PATH", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 24*time.Hour, cfg.Pipeline.ScheduleInterval)
	assert.Equal(t, 90, cfg.Pipeline.ActivityWindowDays)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestLoadEnvBeatsFile(t *testing.T) {
	setRequiredEnv(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o600))
	t.Setenv("CONFIG_PATH", path)
	t.Setenv("HTTP_PORT", "9999")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing catalog url", func(c *Config) { c.Catalog.BaseURL = "" }},
		{"relative catalog url", func(c *Config) { c.Catalog.BaseURL = "/no-scheme" }},
		{"bad url scheme", func(c *Config) { c.Metrics.BaseURL = "ftp://metrics.example.com" }},
		{"short jwt secret", func(c *Config) { c.Security.JWTSecret = "short" }},
		{"zero batch size", func(c *Config) { c.Metrics.BatchSize = 0 }},
		{"interval too small", func(c *Config) { c.Pipeline.ScheduleInterval = time.Second }},
		{"default limit above max", func(c *Config) { c.API.DefaultLimit = 500 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "verbose" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestValidateOK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestListenAddr(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Host = "127.0.0.1"
	cfg.Server.Port = 8004
	assert.Equal(t, "127.0.0.1:8004", cfg.ListenAddr())
}

// validConfig returns defaults with the required fields filled in.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Catalog.BaseURL = "https://catalog.example.com/api/v1"
	cfg.Metrics.BaseURL = "https://metrics.example.com"
	cfg.Metrics.Macaroon = "macaroon"
	cfg.Ratings.BaseURL = "https://ratings.example.com"
	cfg.Ratings.Secret = "secret"
	cfg.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
	return cfg
}
