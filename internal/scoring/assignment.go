// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package scoring

import (
	"container/heap"
	"errors"

	"github.com/storepulse/storepulse/internal/models"
)

// Candidate is one item's per-category utilities entering the assignment.
type Candidate struct {
	ItemID    string
	Utilities map[models.Category]float64
}

// Assignment is one item placed in its assigned category.
type Assignment struct {
	ItemID   string
	Category models.Category
	Utility  float64
}

// Assign places every candidate into exactly one category so that no
// category receives more than ceil(N/C) items. Greedy selection: repeatedly
// take the unassigned item whose best still-open category has the highest
// utility and assign it there; a category that reaches capacity closes for
// all remaining items.
//
// The heap caches each item's best open category. Entries are revalidated
// lazily: a popped entry pointing at a closed category is re-keyed against
// the remaining open categories and pushed back.
//
// Ties on utility break by item id ascending, and ties across categories by
// the fixed category order, so runs are deterministic.
func Assign(candidates []Candidate, categories []models.Category) ([]Assignment, error) {
	if len(categories) == 0 {
		return nil, errors.New("no categories to assign into")
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	capacity := (len(candidates) + len(categories) - 1) / len(categories)

	open := make(map[models.Category]bool, len(categories))
	counts := make(map[models.Category]int, len(categories))
	for _, c := range categories {
		open[c] = true
	}

	h := &candidateHeap{}
	for i := range candidates {
		cat, util, ok := bestOpenCategory(&candidates[i], categories, open)
		if !ok {
			return nil, errors.New("candidate has no utility for any category")
		}
		h.entries = append(h.entries, &heapEntry{
			candidate: &candidates[i],
			bestCat:   cat,
			bestUtil:  util,
		})
	}
	heap.Init(h)

	assignments := make([]Assignment, 0, len(candidates))
	for h.Len() > 0 {
		entry := heap.Pop(h).(*heapEntry)

		if !open[entry.bestCat] {
			cat, util, ok := bestOpenCategory(entry.candidate, categories, open)
			if !ok {
				// C*ceil(N/C) >= N guarantees an open category remains.
				return nil, errors.New("all categories closed with items remaining")
			}
			entry.bestCat = cat
			entry.bestUtil = util
			heap.Push(h, entry)
			continue
		}

		assignments = append(assignments, Assignment{
			ItemID:   entry.candidate.ItemID,
			Category: entry.bestCat,
			Utility:  entry.bestUtil,
		})
		counts[entry.bestCat]++
		if counts[entry.bestCat] >= capacity {
			open[entry.bestCat] = false
		}
	}

	return assignments, nil
}

// bestOpenCategory returns the open category with the highest utility for
// the candidate, preferring earlier categories on equal utility.
func bestOpenCategory(c *Candidate, categories []models.Category, open map[models.Category]bool) (models.Category, float64, bool) {
	var (
		bestCat  models.Category
		bestUtil float64
		found    bool
	)
	for _, cat := range categories {
		if !open[cat] {
			continue
		}
		util, ok := c.Utilities[cat]
		if !ok {
			continue
		}
		if !found || util > bestUtil {
			bestCat, bestUtil, found = cat, util, true
		}
	}
	return bestCat, bestUtil, found
}

// heapEntry caches a candidate's current best open category.
type heapEntry struct {
	candidate *Candidate
	bestCat   models.Category
	bestUtil  float64
}

// candidateHeap is a max-heap on bestUtil with item id ascending as the
// tie-break.
type candidateHeap struct {
	entries []*heapEntry
}

func (h *candidateHeap) Len() int { return len(h.entries) }

func (h *candidateHeap) Less(i, j int) bool {
	a, b := h.entries[i], h.entries[j]
	if a.bestUtil != b.bestUtil {
		return a.bestUtil > b.bestUtil
	}
	return a.candidate.ItemID < b.candidate.ItemID
}

func (h *candidateHeap) Swap(i, j int) {
	h.entries[i], h.entries[j] = h.entries[j], h.entries[i]
}

func (h *candidateHeap) Push(x any) {
	h.entries = append(h.entries, x.(*heapEntry))
}

func (h *candidateHeap) Pop() any {
	old := h.entries
	n := len(old)
	entry := old[n-1]
	old[n-1] = nil
	h.entries = old[:n-1]
	return entry
}
