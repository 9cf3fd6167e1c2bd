// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package database

import (
	"context"
	"fmt"
)

// schemaStatements creates all tables. Statements are idempotent so schema
// init is safe on every startup. Links and media are stored as JSON text in
// VARCHAR columns; the json extension reads them in the filter stage.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id                    VARCHAR PRIMARY KEY,
		name                  VARCHAR NOT NULL,
		title                 VARCHAR DEFAULT '',
		summary               VARCHAR DEFAULT '',
		description           VARCHAR DEFAULT '',
		version               VARCHAR DEFAULT '',
		publisher             VARCHAR DEFAULT '',
		revision              INTEGER DEFAULT 0,
		icon                  VARCHAR,
		website               VARCHAR,
		contact               VARCHAR,
		links                 VARCHAR DEFAULT '{}',
		media                 VARCHAR DEFAULT '[]',
		developer_validation  VARCHAR DEFAULT '',
		license               VARCHAR DEFAULT '',
		last_updated          TIMESTAMP,
		active_devices        BIGINT DEFAULT 0,
		raw_rating            DOUBLE,
		total_votes           BIGINT DEFAULT 0,
		reaches_min_threshold BOOLEAN DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS categories (
		id          VARCHAR PRIMARY KEY,
		name        VARCHAR NOT NULL,
		description VARCHAR DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS scores (
		item_id    VARCHAR NOT NULL,
		category   VARCHAR NOT NULL,
		score      DOUBLE NOT NULL,
		exclude    BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (item_id, category)
	)`,

	`CREATE TABLE IF NOT EXISTS score_history (
		item_id    VARCHAR NOT NULL,
		category   VARCHAR NOT NULL,
		score      DOUBLE NOT NULL,
		exclude    BOOLEAN DEFAULT FALSE,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (item_id, category, created_at)
	)`,

	`CREATE SEQUENCE IF NOT EXISTS pipeline_step_log_id_seq`,

	`CREATE TABLE IF NOT EXISTS pipeline_step_log (
		id         BIGINT PRIMARY KEY DEFAULT nextval('pipeline_step_log_id_seq'),
		step       VARCHAR NOT NULL,
		success    BOOLEAN NOT NULL,
		message    VARCHAR DEFAULT '',
		created_at TIMESTAMP DEFAULT current_timestamp
	)`,

	`CREATE TABLE IF NOT EXISTS editorial_slices (
		id          VARCHAR PRIMARY KEY,
		name        VARCHAR NOT NULL,
		description VARCHAR DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS editorial_slice_items (
		slice_id   VARCHAR NOT NULL,
		item_id    VARCHAR NOT NULL,
		created_at TIMESTAMP DEFAULT current_timestamp,
		PRIMARY KEY (slice_id, item_id)
	)`,

	`CREATE TABLE IF NOT EXISTS settings (
		key   VARCHAR PRIMARY KEY,
		value VARCHAR
	)`,
}

// seedCategories holds the reference rows for the category table. Existing
// rows are left untouched so operators can edit names and descriptions.
var seedCategories = []struct {
	id, name, description string
}{
	{"popular", "Popular", "Most installed packages, weighted by usage"},
	{"recent", "Recent", "Recently updated packages with solid metadata"},
	{"trending", "Trending", "Packages gaining usage and freshly updated"},
	{"top_rated", "Top rated", "Highest community-rated packages"},
}

// initSchema creates all tables and seeds the category reference data.
func (db *DB) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement failed: %w", err)
		}
	}

	for _, c := range seedCategories {
		_, err := db.conn.ExecContext(ctx,
			`INSERT INTO categories (id, name, description) VALUES (?, ?, ?)
			 ON CONFLICT (id) DO NOTHING`,
			c.id, c.name, c.description)
		if err != nil {
			return fmt.Errorf("failed to seed category %s: %w", c.id, err)
		}
	}

	return nil
}
