// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package pipeline

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/metrics"
)

// minDescriptionLength is the eligibility threshold for item descriptions.
const minDescriptionLength = 50

// eligibilityStore is the slice of the database layer the filter needs.
type eligibilityStore interface {
	ApplyEligibilityFilter(ctx context.Context, minDescriptionLen int, cutoff time.Time) (int64, error)
}

// Filter recomputes the eligibility flag for the whole catalog. The heavy
// lifting is a batch SQL update in the database layer; this stage supplies
// the recency cutoff and records the resulting population size.
type Filter struct {
	store      eligibilityStore
	windowDays int
	logger     zerolog.Logger

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewFilter creates the filter stage with the given activity window.
func NewFilter(store eligibilityStore, windowDays int) *Filter {
	return &Filter{
		store:      store,
		windowDays: windowDays,
		logger:     logging.With().Str("component", "filter").Logger(),
		now:        time.Now,
	}
}

// Filter applies the eligibility criteria and returns the eligible count.
func (f *Filter) Filter(ctx context.Context) (int64, error) {
	cutoff := f.now().UTC().AddDate(0, 0, -f.windowDays)

	eligible, err := f.store.ApplyEligibilityFilter(ctx, minDescriptionLength, cutoff)
	if err != nil {
		return 0, err
	}

	metrics.PipelineItemsEligible.Set(float64(eligible))
	f.logger.Info().Int64("eligible", eligible).Time("cutoff", cutoff).Msg("eligibility filter applied")
	return eligible, nil
}
