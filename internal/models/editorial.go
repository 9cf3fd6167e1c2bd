// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package models

import "time"

// EditorialSlice is a hand-picked, named collection of items curated outside
// the scoring pipeline.
type EditorialSlice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	ItemCount   int    `json:"item_count"`
}

// EditorialSliceItem is the membership row linking an item to a slice.
type EditorialSliceItem struct {
	SliceID   string    `json:"slice_id"`
	ItemID    string    `json:"item_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Setting is one site-wide key/value setting. Values are stored as JSON text.
type Setting struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
