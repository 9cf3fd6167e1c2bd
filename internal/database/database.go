// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

// Package database provides the DuckDB persistence layer for the catalog,
// score, pipeline log, editorial and settings tables. All SQL is hand
// written; statements that must be atomic run inside explicit transactions.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	_ "github.com/duckdb/duckdb-go/v2" // DuckDB database/sql driver
	"github.com/rs/zerolog"

	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/logging"
)

// defaultQueryTimeout bounds operations whose callers pass a context without
// a deadline.
const defaultQueryTimeout = 30 * time.Second

// DB wraps the DuckDB connection pool and exposes the typed CRUD operations
// used by the pipeline and the API. Safe for concurrent use; DuckDB handles
// write serialization internally.
type DB struct {
	conn   *sql.DB
	cfg    *config.DatabaseConfig
	logger zerolog.Logger

	// jsonAvailable tracks whether the json extension loaded. The filter
	// stage depends on json_array_length and json_extract.
	jsonAvailable bool
}

// New opens the DuckDB database at cfg.Path, configures the connection pool,
// loads the json extension and initializes the schema.
func New(cfg *config.DatabaseConfig) (*DB, error) {
	threads := cfg.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}

	if dir := filepath.Dir(cfg.Path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory %s: %w", dir, err)
		}
	}

	connStr := fmt.Sprintf("%s?access_mode=read_write&threads=%d&max_memory=%s",
		cfg.Path, threads, cfg.MaxMemory)

	conn, err := sql.Open("duckdb", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	conn.SetMaxOpenConns(runtime.NumCPU())
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(time.Hour)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	db := &DB{
		conn:   conn,
		cfg:    cfg,
		logger: logging.With().Str("component", "database").Logger(),
	}

	db.loadJSONExtension(ctx)

	if err := db.initSchema(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	db.logger.Info().
		Str("path", cfg.Path).
		Int("threads", threads).
		Bool("json_extension", db.jsonAvailable).
		Msg("database ready")

	return db, nil
}

// loadJSONExtension installs and loads the DuckDB json extension. A failure
// is logged, not fatal; the filter stage will report a clear error instead.
func (db *DB) loadJSONExtension(ctx context.Context) {
	for _, stmt := range []string{"INSTALL json", "LOAD json"} {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			db.logger.Warn().Err(err).Str("statement", stmt).Msg("json extension unavailable")
			return
		}
	}
	db.jsonAvailable = true
}

// JSONAvailable reports whether the json extension loaded at startup.
func (db *DB) JSONAvailable() bool {
	return db.jsonAvailable
}

// Ping verifies the connection is alive.
func (db *DB) Ping(ctx context.Context) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()
	return db.conn.PingContext(ctx)
}

// Close closes the underlying connection pool.
func (db *DB) Close() error {
	db.logger.Debug().Msg("closing database")
	return db.conn.Close()
}

// ensureContext attaches the default query timeout when the caller's context
// has no deadline.
func (db *DB) ensureContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, defaultQueryTimeout)
}

// withTx runs fn inside a transaction, rolling back on error.
func (db *DB) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
