// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package models

import "time"

// Category identifies one recommendation category. The set is a closed enum;
// adding a category means adding a constant, a weight vector, and a seed row.
type Category string

const (
	CategoryPopular  Category = "popular"
	CategoryRecent   Category = "recent"
	CategoryTrending Category = "trending"
	CategoryTopRated Category = "top_rated"
)

// AllCategories lists every category in a stable order. Iteration order
// matters for deterministic scoring runs.
func AllCategories() []Category {
	return []Category{CategoryPopular, CategoryRecent, CategoryTrending, CategoryTopRated}
}

// ValidCategory reports whether s names a known category.
func ValidCategory(s string) bool {
	switch Category(s) {
	case CategoryPopular, CategoryRecent, CategoryTrending, CategoryTopRated:
		return true
	}
	return false
}

// CategoryInfo is the reference-data row backing a category (seeded at schema
// init, exposed by the categories endpoint).
type CategoryInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Score is one current recommendation score row. At most one row exists per
// (item, category), and each scoring run assigns every eligible item to
// exactly one category.
type Score struct {
	ItemID    string    `json:"item_id"`
	Category  Category  `json:"category"`
	Score     float64   `json:"score"`
	Exclude   bool      `json:"exclude"`
	CreatedAt time.Time `json:"created_at"`
}

// ScoreHistory is an archived score row. The created_at timestamp joins the
// primary key so re-archiving the same run is a no-op.
type ScoreHistory struct {
	ItemID    string    `json:"item_id"`
	Category  Category  `json:"category"`
	Score     float64   `json:"score"`
	Exclude   bool      `json:"exclude"`
	CreatedAt time.Time `json:"created_at"`
}

// RankedItem pairs an item with its rank and score inside a category ranking.
type RankedItem struct {
	ItemID  string  `json:"item_id"`
	Rank    int     `json:"rank"`
	Score   float64 `json:"score"`
	Details *Item   `json:"details"`
}
