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
	"time"

	"github.com/storepulse/storepulse/internal/models"
)

// ErrSliceExists is returned when creating a slice whose id is taken.
var ErrSliceExists = errors.New("editorial slice already exists")

// ListEditorialSlices returns all slices with their member counts.
func (db *DB) ListEditorialSlices(ctx context.Context) ([]models.EditorialSlice, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.id, s.name, s.description, count(m.item_id)
		FROM editorial_slices s
		LEFT JOIN editorial_slice_items m ON m.slice_id = s.id
		GROUP BY s.id, s.name, s.description
		ORDER BY s.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query editorial slices: %w", err)
	}
	defer rows.Close()

	var slices []models.EditorialSlice
	for rows.Next() {
		var s models.EditorialSlice
		if err := rows.Scan(&s.ID, &s.Name, &s.Description, &s.ItemCount); err != nil {
			return nil, fmt.Errorf("failed to scan slice row: %w", err)
		}
		slices = append(slices, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("slice row iteration failed: %w", err)
	}
	return slices, nil
}

// GetEditorialSlice returns one slice by id.
func (db *DB) GetEditorialSlice(ctx context.Context, id string) (*models.EditorialSlice, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var s models.EditorialSlice
	err := db.conn.QueryRowContext(ctx, `
		SELECT s.id, s.name, s.description, count(m.item_id)
		FROM editorial_slices s
		LEFT JOIN editorial_slice_items m ON m.slice_id = s.id
		WHERE s.id = ?
		GROUP BY s.id, s.name, s.description`, id).
		Scan(&s.ID, &s.Name, &s.Description, &s.ItemCount)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query slice %s: %w", id, err)
	}
	return &s, nil
}

// CreateEditorialSlice inserts a new slice.
func (db *DB) CreateEditorialSlice(ctx context.Context, id, name, description string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`INSERT INTO editorial_slices (id, name, description) VALUES (?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id, name, description)
	if err != nil {
		return fmt.Errorf("failed to create slice %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected row count: %w", err)
	}
	if n == 0 {
		return ErrSliceExists
	}
	return nil
}

// UpdateEditorialSlice updates a slice's name and description.
func (db *DB) UpdateEditorialSlice(ctx context.Context, id, name, description string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE editorial_slices SET name = ?, description = ? WHERE id = ?`,
		name, description, id)
	if err != nil {
		return fmt.Errorf("failed to update slice %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected row count: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteEditorialSlice removes a slice and its memberships.
func (db *DB) DeleteEditorialSlice(ctx context.Context, id string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM editorial_slice_items WHERE slice_id = ?`, id); err != nil {
			return fmt.Errorf("failed to delete slice members for %s: %w", id, err)
		}
		res, err := tx.ExecContext(ctx,
			`DELETE FROM editorial_slices WHERE id = ?`, id)
		if err != nil {
			return fmt.Errorf("failed to delete slice %s: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected row count: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// AddItemToSlice adds an item to a slice. Adding an existing member is a
// no-op.
func (db *DB) AddItemToSlice(ctx context.Context, sliceID, itemID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO editorial_slice_items (slice_id, item_id, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (slice_id, item_id) DO NOTHING`,
		sliceID, itemID, time.Now())
	if err != nil {
		return fmt.Errorf("failed to add item %s to slice %s: %w", itemID, sliceID, err)
	}
	return nil
}

// RemoveItemFromSlice removes an item from a slice.
func (db *DB) RemoveItemFromSlice(ctx context.Context, sliceID, itemID string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`DELETE FROM editorial_slice_items WHERE slice_id = ? AND item_id = ?`,
		sliceID, itemID)
	if err != nil {
		return fmt.Errorf("failed to remove item %s from slice %s: %w", itemID, sliceID, err)
	}
	return nil
}

// SliceItems returns the items belonging to a slice, oldest membership first.
func (db *DB) SliceItems(ctx context.Context, sliceID string) ([]models.Item, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT `+prefixedItemColumns("i")+`
		FROM items i
		JOIN editorial_slice_items m ON m.item_id = i.id
		WHERE m.slice_id = ?
		ORDER BY m.created_at, i.id`, sliceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query slice items for %s: %w", sliceID, err)
	}
	defer rows.Close()

	return scanItems(rows)
}
