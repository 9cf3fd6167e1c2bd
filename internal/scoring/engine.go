// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package scoring

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/models"
)

// Store is the persistence surface the engine needs.
type Store interface {
	ListEligibleItems(ctx context.Context) ([]models.Item, error)
	ReplaceScores(ctx context.Context, assignment []models.Score, runTime time.Time, retentionDays int) error
}

// Engine runs one scoring pass: normalize signals over the eligible
// population, compute per-category utilities, solve the balanced assignment,
// and swap the current score set atomically.
type Engine struct {
	store         Store
	retentionDays int
	logger        zerolog.Logger

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewEngine creates a scoring engine with the given history retention.
func NewEngine(store Store, retentionDays int) *Engine {
	return &Engine{
		store:         store,
		retentionDays: retentionDays,
		logger:        logging.With().Str("component", "scoring").Logger(),
		now:           time.Now,
	}
}

// Score runs the full scoring stage. All-or-nothing: any failure leaves the
// previous score set untouched.
func (e *Engine) Score(ctx context.Context) error {
	items, err := e.store.ListEligibleItems(ctx)
	if err != nil {
		return fmt.Errorf("failed to load eligible items: %w", err)
	}
	if len(items) == 0 {
		e.logger.Warn().Msg("no eligible items; clearing current scores")
		return e.store.ReplaceScores(ctx, nil, e.now(), e.retentionDays)
	}

	candidates := e.buildCandidates(items)

	assignments, err := Assign(candidates, models.AllCategories())
	if err != nil {
		return fmt.Errorf("assignment failed: %w", err)
	}

	scores := make([]models.Score, 0, len(assignments))
	for _, a := range assignments {
		scores = append(scores, models.Score{
			ItemID:   a.ItemID,
			Category: a.Category,
			Score:    a.Utility,
		})
	}

	runTime := e.now()
	if err := e.store.ReplaceScores(ctx, scores, runTime, e.retentionDays); err != nil {
		return fmt.Errorf("failed to persist scores: %w", err)
	}

	e.logger.Info().
		Int("items", len(items)).
		Int("assignments", len(assignments)).
		Time("run_time", runTime).
		Msg("scoring run complete")
	return nil
}

// buildCandidates normalizes the population and computes every item's
// utility in every category.
func (e *Engine) buildCandidates(items []models.Item) []Candidate {
	minDevices, maxDevices := deviceBounds(items)
	minUpdated, maxUpdated := updatedBounds(items)

	candidates := make([]Candidate, 0, len(items))
	for i := range items {
		item := &items[i]

		in := Inputs{
			Usage:    LogScale(float64(item.ActiveDevices), minDevices, maxDevices),
			Recency:  RecencyFraction(item.LastUpdated, minUpdated, maxUpdated),
			Metadata: MetadataScore(item),
			Dev:      DevScore(item),
		}
		if item.RawRating != nil {
			in.Rating = *item.RawRating
		}

		utilities := make(map[models.Category]float64, len(categoryWeights))
		for cat, w := range categoryWeights {
			utilities[cat] = w.Utility(in)
		}
		candidates = append(candidates, Candidate{ItemID: item.ID, Utilities: utilities})
	}
	return candidates
}

// deviceBounds returns the min and max active-device counts.
func deviceBounds(items []models.Item) (float64, float64) {
	min, max := float64(items[0].ActiveDevices), float64(items[0].ActiveDevices)
	for _, it := range items[1:] {
		v := float64(it.ActiveDevices)
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// updatedBounds returns the earliest and latest last_updated timestamps.
func updatedBounds(items []models.Item) (time.Time, time.Time) {
	min, max := items[0].LastUpdated, items[0].LastUpdated
	for _, it := range items[1:] {
		if it.LastUpdated.Before(min) {
			min = it.LastUpdated
		}
		if it.LastUpdated.After(max) {
			max = it.LastUpdated
		}
	}
	return min, max
}
