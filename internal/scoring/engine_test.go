// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package scoring

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepulse/storepulse/internal/models"
)

// fakeStore records the score swap handed to it.
type fakeStore struct {
	items []models.Item

	replaced      []models.Score
	runTime       time.Time
	retentionDays int
	replaceErr    error
	listErr       error
}

func (f *fakeStore) ListEligibleItems(_ context.Context) ([]models.Item, error) {
	return f.items, f.listErr
}

func (f *fakeStore) ReplaceScores(_ context.Context, assignment []models.Score, runTime time.Time, retentionDays int) error {
	if f.replaceErr != nil {
		return f.replaceErr
	}
	f.replaced = assignment
	f.runTime = runTime
	f.retentionDays = retentionDays
	return nil
}

// eligibleItem builds an item with enough variety to spread across categories.
func eligibleItem(i int) models.Item {
	rating := float64(i%5) / 5.0
	return models.Item{
		ID:            fmt.Sprintf("item-%02d", i),
		Name:          fmt.Sprintf("pkg-%02d", i),
		License:       "MIT",
		ActiveDevices: int64(i * 1000),
		LastUpdated:   time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -i*3),
		RawRating:     &rating,
		Links: map[string][]string{
			"website": {"https://example.com"},
			"issues":  {"https://bugs.example.com"},
		},
		Media: []models.MediaEntry{
			{Type: "icon"}, {Type: "screenshot"},
		},
		DeveloperValidation: map[bool]string{true: "verified", false: "unproven"}[i%2 == 0],
		ReachesMinThreshold: true,
	}
}

func TestEngineBalancedAssignment(t *testing.T) {
	// Six eligible items into four categories: capacity ceil(6/4)=2.
	store := &fakeStore{}
	for i := 0; i < 6; i++ {
		store.items = append(store.items, eligibleItem(i))
	}

	engine := NewEngine(store, 90)
	fixed := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)
	engine.now = func() time.Time { return fixed }

	require.NoError(t, engine.Score(context.Background()))
	require.Len(t, store.replaced, 6)
	assert.Equal(t, fixed, store.runTime)
	assert.Equal(t, 90, store.retentionDays)

	counts := make(map[models.Category]int)
	seen := make(map[string]int)
	for _, s := range store.replaced {
		counts[s.Category]++
		seen[s.ItemID]++
	}
	for id, n := range seen {
		assert.Equal(t, 1, n, "item %s must appear exactly once", id)
	}
	for cat, n := range counts {
		assert.LessOrEqual(t, n, 2, "category %s exceeds capacity", cat)
	}
}

func TestEngineEmptyPopulationClearsScores(t *testing.T) {
	store := &fakeStore{}
	engine := NewEngine(store, 90)

	require.NoError(t, engine.Score(context.Background()))
	assert.Empty(t, store.replaced)
}

func TestEngineListFailurePropagates(t *testing.T) {
	store := &fakeStore{listErr: errors.New("db down")}
	engine := NewEngine(store, 90)
	assert.Error(t, engine.Score(context.Background()))
}

func TestEngineReplaceFailurePropagates(t *testing.T) {
	store := &fakeStore{items: []models.Item{eligibleItem(0)}, replaceErr: errors.New("conflict")}
	engine := NewEngine(store, 90)
	assert.Error(t, engine.Score(context.Background()))
}

func TestEngineUtilityUsesRawRating(t *testing.T) {
	high := 0.95
	items := []models.Item{
		{
			ID: "rated", License: "MIT", RawRating: &high,
			ActiveDevices: 10, LastUpdated: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			ID:            "unrated",
			ActiveDevices: 10, LastUpdated: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		},
	}
	engine := NewEngine(&fakeStore{}, 90)
	candidates := engine.buildCandidates(items)

	require.Len(t, candidates, 2)
	assert.Greater(t,
		candidates[0].Utilities[models.CategoryTopRated],
		candidates[1].Utilities[models.CategoryTopRated])
}
