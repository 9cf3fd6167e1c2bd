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

	"github.com/storepulse/storepulse/internal/models"
)

// ReplaceScores atomically swaps the current score set for a new assignment.
// In one transaction it archives every current row into score_history
// (insert-or-ignore, so re-running after a crash is harmless), prunes history
// rows older than the retention window, carries manual exclude flags over to
// the matching new rows, clears the current set, and bulk-inserts the new
// assignment stamped with runTime.
//
// All-or-nothing: a partial swap would leave items assigned to more than one
// category, so any failure rolls the whole run back.
func (db *DB) ReplaceScores(ctx context.Context, assignment []models.Score, runTime time.Time, retentionDays int) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO score_history (item_id, category, score, exclude, created_at)
			SELECT item_id, category, score, exclude, created_at FROM scores
			ON CONFLICT (item_id, category, created_at) DO NOTHING`); err != nil {
			return fmt.Errorf("failed to archive current scores: %w", err)
		}

		cutoff := runTime.AddDate(0, 0, -retentionDays)
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM score_history WHERE created_at < ?`, cutoff); err != nil {
			return fmt.Errorf("failed to prune score history: %w", err)
		}

		excluded, err := excludedPairs(ctx, tx)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM scores`); err != nil {
			return fmt.Errorf("failed to clear current scores: %w", err)
		}

		if len(assignment) == 0 {
			return nil
		}

		placeholders := make([]string, 0, len(assignment))
		args := make([]any, 0, len(assignment)*5)
		for _, s := range assignment {
			key := s.ItemID + "\x00" + string(s.Category)
			placeholders = append(placeholders, "(?, ?, ?, ?, ?)")
			args = append(args, s.ItemID, string(s.Category), s.Score, excluded[key], runTime)
		}

		query := `INSERT INTO scores (item_id, category, score, exclude, created_at) VALUES ` +
			strings.Join(placeholders, ", ")
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert %d score rows: %w", len(assignment), err)
		}
		return nil
	})
}

// excludedPairs returns the (item, category) pairs currently excluded, keyed
// by itemID + NUL + category.
func excludedPairs(ctx context.Context, tx *sql.Tx) (map[string]bool, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT item_id, category FROM scores WHERE exclude`)
	if err != nil {
		return nil, fmt.Errorf("failed to read exclude flags: %w", err)
	}
	defer rows.Close()

	excluded := make(map[string]bool)
	for rows.Next() {
		var itemID, category string
		if err := rows.Scan(&itemID, &category); err != nil {
			return nil, fmt.Errorf("failed to scan exclude row: %w", err)
		}
		excluded[itemID+"\x00"+category] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("exclude row iteration failed: %w", err)
	}
	return excluded, nil
}

// CategoryTopItems returns the highest-scored eligible, non-excluded items
// for a category, with full item details, ranked from 1.
func (db *DB) CategoryTopItems(ctx context.Context, category models.Category, limit int) ([]models.RankedItem, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.score, `+prefixedItemColumns("i")+`
		FROM items i
		JOIN scores s ON s.item_id = i.id
		WHERE i.reaches_min_threshold
		  AND s.category = ?
		  AND NOT s.exclude
		ORDER BY s.score DESC, i.id
		LIMIT ?`, string(category), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query top items for %s: %w", category, err)
	}
	defer rows.Close()

	return scanRankedItems(rows)
}

// CategoryExcludedItems returns the manually excluded items for a category,
// highest score first.
func (db *DB) CategoryExcludedItems(ctx context.Context, category models.Category) ([]models.RankedItem, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT s.score, `+prefixedItemColumns("i")+`
		FROM items i
		JOIN scores s ON s.item_id = i.id
		WHERE s.category = ?
		  AND s.exclude
		ORDER BY s.score DESC, i.id`, string(category))
	if err != nil {
		return nil, fmt.Errorf("failed to query excluded items for %s: %w", category, err)
	}
	defer rows.Close()

	return scanRankedItems(rows)
}

// SetScoreExclude flips the manual exclude flag on one score row. Returns
// false when no score row exists for the pair.
func (db *DB) SetScoreExclude(ctx context.Context, category models.Category, itemID string, exclude bool) (bool, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	res, err := db.conn.ExecContext(ctx,
		`UPDATE scores SET exclude = ? WHERE item_id = ? AND category = ?`,
		exclude, itemID, string(category))
	if err != nil {
		return false, fmt.Errorf("failed to set exclude flag: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected row count: %w", err)
	}
	return n > 0, nil
}

// CurrentScores returns every current score row ordered by item then category.
func (db *DB) CurrentScores(ctx context.Context) ([]models.Score, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT item_id, category, score, exclude, created_at
		 FROM scores ORDER BY item_id, category`)
	if err != nil {
		return nil, fmt.Errorf("failed to query current scores: %w", err)
	}
	defer rows.Close()

	var scores []models.Score
	for rows.Next() {
		var s models.Score
		var category string
		if err := rows.Scan(&s.ItemID, &category, &s.Score, &s.Exclude, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan score row: %w", err)
		}
		s.Category = models.Category(category)
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("score row iteration failed: %w", err)
	}
	return scores, nil
}

// ScoreHistoryForItem returns archived rows for one item, newest first.
func (db *DB) ScoreHistoryForItem(ctx context.Context, itemID string) ([]models.ScoreHistory, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT item_id, category, score, exclude, created_at
		 FROM score_history WHERE item_id = ? ORDER BY created_at DESC, category`, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to query score history: %w", err)
	}
	defer rows.Close()

	var history []models.ScoreHistory
	for rows.Next() {
		var h models.ScoreHistory
		var category string
		if err := rows.Scan(&h.ItemID, &category, &h.Score, &h.Exclude, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		h.Category = models.Category(category)
		history = append(history, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history row iteration failed: %w", err)
	}
	return history, nil
}

// ListCategories returns the category reference rows ordered by id.
func (db *DB) ListCategories(ctx context.Context) ([]models.CategoryInfo, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, name, description FROM categories ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []models.CategoryInfo
	for rows.Next() {
		var c models.CategoryInfo
		if err := rows.Scan(&c.ID, &c.Name, &c.Description); err != nil {
			return nil, fmt.Errorf("failed to scan category row: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("category row iteration failed: %w", err)
	}
	return categories, nil
}

// GetCategory returns one category reference row.
func (db *DB) GetCategory(ctx context.Context, id string) (*models.CategoryInfo, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	var c models.CategoryInfo
	err := db.conn.QueryRowContext(ctx,
		`SELECT id, name, description FROM categories WHERE id = ?`, id).
		Scan(&c.ID, &c.Name, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query category %s: %w", id, err)
	}
	return &c, nil
}

// prefixedItemColumns returns itemColumns with every column qualified by the
// given table alias.
func prefixedItemColumns(alias string) string {
	cols := strings.Split(itemColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// scanRankedItems drains a (score, item...) result set into ranked items.
func scanRankedItems(rows *sql.Rows) ([]models.RankedItem, error) {
	var ranked []models.RankedItem
	for rows.Next() {
		var score float64
		it, err := scanScorePrefixedItem(rows, &score)
		if err != nil {
			return nil, err
		}
		ranked = append(ranked, models.RankedItem{
			ItemID:  it.ID,
			Rank:    len(ranked) + 1,
			Score:   score,
			Details: it,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ranked item iteration failed: %w", err)
	}
	return ranked, nil
}

// scanScorePrefixedItem scans a row shaped as (score, <item columns>).
func scanScorePrefixedItem(rows *sql.Rows, score *float64) (*models.Item, error) {
	return scanItem(prefixScanner{rows: rows, first: score})
}

// prefixScanner prepends a fixed destination before the item columns.
type prefixScanner struct {
	rows  *sql.Rows
	first any
}

func (p prefixScanner) Scan(dest ...any) error {
	all := make([]any, 0, len(dest)+1)
	all = append(all, p.first)
	all = append(all, dest...)
	return p.rows.Scan(all...)
}
