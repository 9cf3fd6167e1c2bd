// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package scoring

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepulse/storepulse/internal/models"
)

// assignmentByItem indexes assignments for assertion convenience.
func assignmentByItem(assignments []Assignment) map[string]models.Category {
	m := make(map[string]models.Category, len(assignments))
	for _, a := range assignments {
		m[a.ItemID] = a.Category
	}
	return m
}

func TestAssignGolden(t *testing.T) {
	// Four items across two categories with capacity ceil(4/2)=2.
	// Greedy order: A (0.9, cat1), B (0.8, cat1, cat1 closes),
	// C re-keys to cat2 (0.6), D re-keys to cat2 (0.5).
	cat1, cat2 := models.CategoryPopular, models.CategoryRecent
	candidates := []Candidate{
		{ItemID: "A", Utilities: map[models.Category]float64{cat1: 0.9, cat2: 0.1}},
		{ItemID: "B", Utilities: map[models.Category]float64{cat1: 0.8, cat2: 0.7}},
		{ItemID: "C", Utilities: map[models.Category]float64{cat1: 0.3, cat2: 0.6}},
		{ItemID: "D", Utilities: map[models.Category]float64{cat1: 0.2, cat2: 0.5}},
	}

	assignments, err := Assign(candidates, []models.Category{cat1, cat2})
	require.NoError(t, err)
	require.Len(t, assignments, 4)

	got := assignmentByItem(assignments)
	assert.Equal(t, cat1, got["A"])
	assert.Equal(t, cat1, got["B"])
	assert.Equal(t, cat2, got["C"])
	assert.Equal(t, cat2, got["D"])
}

func TestAssignEveryItemExactlyOnce(t *testing.T) {
	categories := models.AllCategories()
	rng := rand.New(rand.NewSource(7))

	candidates := make([]Candidate, 0, 25)
	for i := 0; i < 25; i++ {
		utilities := make(map[models.Category]float64, len(categories))
		for _, cat := range categories {
			utilities[cat] = rng.Float64()
		}
		candidates = append(candidates, Candidate{
			ItemID:    fmt.Sprintf("item-%02d", i),
			Utilities: utilities,
		})
	}

	assignments, err := Assign(candidates, categories)
	require.NoError(t, err)
	require.Len(t, assignments, len(candidates))

	seen := make(map[string]int)
	counts := make(map[models.Category]int)
	for _, a := range assignments {
		seen[a.ItemID]++
		counts[a.Category]++
	}

	capacity := (len(candidates) + len(categories) - 1) / len(categories) // ceil(25/4)=7
	for id, n := range seen {
		assert.Equal(t, 1, n, "item %s assigned %d times", id, n)
	}
	for cat, n := range counts {
		assert.LessOrEqual(t, n, capacity, "category %s over capacity", cat)
	}
}

func TestAssignDeterministic(t *testing.T) {
	categories := models.AllCategories()
	rng := rand.New(rand.NewSource(42))

	candidates := make([]Candidate, 0, 40)
	for i := 0; i < 40; i++ {
		utilities := make(map[models.Category]float64, len(categories))
		for _, cat := range categories {
			utilities[cat] = rng.Float64()
		}
		candidates = append(candidates, Candidate{
			ItemID:    fmt.Sprintf("item-%02d", i),
			Utilities: utilities,
		})
	}

	first, err := Assign(candidates, categories)
	require.NoError(t, err)
	second, err := Assign(candidates, categories)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAssignTieBreakByItemID(t *testing.T) {
	// Both items prefer cat1 with equal utility and capacity 1 per category;
	// the lower item id must win the contested slot.
	cat1, cat2 := models.CategoryPopular, models.CategoryRecent
	candidates := []Candidate{
		{ItemID: "b", Utilities: map[models.Category]float64{cat1: 0.9, cat2: 0.2}},
		{ItemID: "a", Utilities: map[models.Category]float64{cat1: 0.9, cat2: 0.1}},
	}

	assignments, err := Assign(candidates, []models.Category{cat1, cat2})
	require.NoError(t, err)

	got := assignmentByItem(assignments)
	assert.Equal(t, cat1, got["a"])
	assert.Equal(t, cat2, got["b"])
}

func TestAssignFewerItemsThanCategories(t *testing.T) {
	categories := models.AllCategories()
	candidates := []Candidate{
		{ItemID: "only", Utilities: map[models.Category]float64{
			models.CategoryPopular:  0.2,
			models.CategoryRecent:   0.8,
			models.CategoryTrending: 0.5,
			models.CategoryTopRated: 0.1,
		}},
	}

	assignments, err := Assign(candidates, categories)
	require.NoError(t, err)
	require.Len(t, assignments, 1)
	assert.Equal(t, models.CategoryRecent, assignments[0].Category)
}

func TestAssignEmptyInput(t *testing.T) {
	assignments, err := Assign(nil, models.AllCategories())
	require.NoError(t, err)
	assert.Empty(t, assignments)

	_, err = Assign([]Candidate{{ItemID: "x"}}, nil)
	assert.Error(t, err)
}
