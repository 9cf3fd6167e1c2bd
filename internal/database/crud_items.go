// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	json "github.com/goccy/go-json"

	"github.com/storepulse/storepulse/internal/models"
)

// ErrNotFound is returned by single-row lookups when no row matches.
var ErrNotFound = errors.New("not found")

// itemColumns is the select list shared by all item queries, in scanItem order.
const itemColumns = `id, name, title, summary, description, version, publisher, revision,
	icon, website, contact, links, media, developer_validation, license, last_updated,
	active_devices, raw_rating, total_votes, reaches_min_threshold`

// UpsertItems bulk-upserts one collector page in a single transaction.
// Conflicts on the item id overwrite every catalog-owned field with the
// incoming value; the enrichment columns and the eligibility flag are left
// untouched so a collect run never erases enrichment state.
func (db *DB) UpsertItems(ctx context.Context, items []models.Item) error {
	if len(items) == 0 {
		return nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	placeholders := make([]string, 0, len(items))
	args := make([]any, 0, len(items)*16)
	for i := range items {
		it := &items[i]
		linksJSON, err := json.Marshal(it.Links)
		if err != nil {
			return fmt.Errorf("failed to marshal links for %s: %w", it.ID, err)
		}
		mediaJSON, err := json.Marshal(it.Media)
		if err != nil {
			return fmt.Errorf("failed to marshal media for %s: %w", it.ID, err)
		}
		placeholders = append(placeholders, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			it.ID, it.Name, it.Title, it.Summary, it.Description, it.Version,
			it.Publisher, it.Revision,
			nullString(it.Icon), nullString(it.Website), nullString(it.Contact),
			string(linksJSON), string(mediaJSON),
			it.DeveloperValidation, it.License, it.LastUpdated,
		)
	}

	query := `INSERT INTO items (
		id, name, title, summary, description, version, publisher, revision,
		icon, website, contact, links, media, developer_validation, license, last_updated
	) VALUES ` + strings.Join(placeholders, ", ") + `
	ON CONFLICT (id) DO UPDATE SET
		name = excluded.name,
		title = excluded.title,
		summary = excluded.summary,
		description = excluded.description,
		version = excluded.version,
		publisher = excluded.publisher,
		revision = excluded.revision,
		icon = excluded.icon,
		website = excluded.website,
		contact = excluded.contact,
		links = excluded.links,
		media = excluded.media,
		developer_validation = excluded.developer_validation,
		license = excluded.license,
		last_updated = excluded.last_updated`

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("bulk upsert of %d items failed: %w", len(items), err)
		}
		return nil
	})
}

// GetItemByID returns one item by its identifier.
func (db *DB) GetItemByID(ctx context.Context, id string) (*models.Item, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE id = ?`, id)
	return scanItem(row)
}

// GetItemByName returns one item by its package name.
func (db *DB) GetItemByName(ctx context.Context, name string) (*models.Item, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE name = ? LIMIT 1`, name)
	return scanItem(row)
}

// ListEligibleItems returns every item whose eligibility flag is set, ordered
// by id for deterministic downstream processing.
func (db *DB) ListEligibleItems(ctx context.Context) ([]models.Item, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM items WHERE reaches_min_threshold ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query eligible items: %w", err)
	}
	defer rows.Close()

	return scanItems(rows)
}

// CountItems returns the total number of catalog rows.
func (db *DB) CountItems(ctx context.Context) (int64, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var n int64
	if err := db.conn.QueryRowContext(ctx, `SELECT count(*) FROM items`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count items: %w", err)
	}
	return n, nil
}

// ApplyEligibilityFilter runs the two-phase eligibility update in one
// transaction: reset every flag to false, then set it true where the
// conjunctive predicate holds. Returns the eligible count.
//
// Predicate: has an icon, at least one media entry, a description longer
// than minDescriptionLen, a non-empty issues or contact link, and a
// last_updated newer than cutoff.
func (db *DB) ApplyEligibilityFilter(ctx context.Context, minDescriptionLen int, cutoff time.Time) (int64, error) {
	if !db.jsonAvailable {
		return 0, errors.New("json extension not loaded; eligibility predicate unavailable")
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var eligible int64
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`UPDATE items SET reaches_min_threshold = FALSE`); err != nil {
			return fmt.Errorf("failed to reset eligibility flags: %w", err)
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE items SET reaches_min_threshold = TRUE
			WHERE icon IS NOT NULL AND icon <> ''
			  AND coalesce(json_array_length(media), 0) >= 1
			  AND description IS NOT NULL AND length(description) > ?
			  AND (coalesce(json_array_length(json_extract(links, '$.issues')), 0) > 0
			    OR coalesce(json_array_length(json_extract(links, '$.contact')), 0) > 0)
			  AND last_updated > ?`,
			minDescriptionLen, cutoff)
		if err != nil {
			return fmt.Errorf("failed to set eligibility flags: %w", err)
		}
		eligible, err = res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected row count: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return eligible, nil
}

// UpdateActiveDevices writes active-device counts for one enrichment batch
// in a single transaction.
func (db *DB) UpdateActiveDevices(ctx context.Context, counts map[string]int64) error {
	if len(counts) == 0 {
		return nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		for id, n := range counts {
			if _, err := tx.ExecContext(ctx,
				`UPDATE items SET active_devices = ? WHERE id = ?`, n, id); err != nil {
				return fmt.Errorf("failed to update active devices for %s: %w", id, err)
			}
		}
		return nil
	})
}

// Rating is a raw community rating for one item. RawRating is in [0,1];
// nil means the upstream reported no rating.
type Rating struct {
	RawRating  *float64
	TotalVotes int64
}

// UpdateRatings writes rating fields for the full run in one transaction.
func (db *DB) UpdateRatings(ctx context.Context, ratings map[string]Rating) error {
	if len(ratings) == 0 {
		return nil
	}
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		for id, r := range ratings {
			if _, err := tx.ExecContext(ctx,
				`UPDATE items SET raw_rating = ?, total_votes = ? WHERE id = ?`,
				r.RawRating, r.TotalVotes, id); err != nil {
				return fmt.Errorf("failed to update rating for %s: %w", id, err)
			}
		}
		return nil
	})
}

// nullString maps the empty string to NULL for nullable columns.
func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem scans one item row, decoding the JSON columns.
func scanItem(row rowScanner) (*models.Item, error) {
	var (
		it                   models.Item
		icon, website        sql.NullString
		contact              sql.NullString
		linksJSON, mediaJSON string
		lastUpdated          sql.NullTime
		rawRating            sql.NullFloat64
	)

	err := row.Scan(
		&it.ID, &it.Name, &it.Title, &it.Summary, &it.Description, &it.Version,
		&it.Publisher, &it.Revision,
		&icon, &website, &contact, &linksJSON, &mediaJSON,
		&it.DeveloperValidation, &it.License, &lastUpdated,
		&it.ActiveDevices, &rawRating, &it.TotalVotes, &it.ReachesMinThreshold,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan item row: %w", err)
	}

	it.Icon = icon.String
	it.Website = website.String
	it.Contact = contact.String
	if lastUpdated.Valid {
		it.LastUpdated = lastUpdated.Time
	}
	if rawRating.Valid {
		v := rawRating.Float64
		it.RawRating = &v
	}
	if linksJSON != "" {
		if err := json.Unmarshal([]byte(linksJSON), &it.Links); err != nil {
			return nil, fmt.Errorf("failed to decode links for %s: %w", it.ID, err)
		}
	}
	if mediaJSON != "" {
		if err := json.Unmarshal([]byte(mediaJSON), &it.Media); err != nil {
			return nil, fmt.Errorf("failed to decode media for %s: %w", it.ID, err)
		}
	}

	return &it, nil
}

// scanItems drains a multi-row item result set.
func scanItems(rows *sql.Rows) ([]models.Item, error) {
	var items []models.Item
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("item row iteration failed: %w", err)
	}
	return items, nil
}
