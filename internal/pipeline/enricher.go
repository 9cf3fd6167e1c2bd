// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/database"
	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/metrics"
	"github.com/storepulse/storepulse/internal/models"
)

// usageFetcher is the slice of the metrics client the enricher needs.
type usageFetcher interface {
	FetchUsage(ctx context.Context, itemIDs []string, start, end string) (*UsageMetricsResponse, error)
}

// ratingsFetcher is the slice of the ratings client the enricher needs.
type ratingsFetcher interface {
	Authenticate(ctx context.Context) (string, error)
	GetBulkRatings(ctx context.Context, token string, itemIDs []string) (map[string]database.Rating, error)
}

// enrichmentStore is the slice of the database layer the enricher needs.
type enrichmentStore interface {
	ListEligibleItems(ctx context.Context) ([]models.Item, error)
	UpdateActiveDevices(ctx context.Context, counts map[string]int64) error
	UpdateRatings(ctx context.Context, ratings map[string]database.Rating) error
}

// Enricher augments eligible items with usage metrics and community
// ratings. Usage counts commit per batch; ratings accumulate across batches
// and commit once. A failed batch is skipped and the remaining batches
// still run, but the stage reports failure if any batch failed.
type Enricher struct {
	usage        usageFetcher
	ratings      ratingsFetcher
	store        enrichmentStore
	usageBatch   int
	ratingsBatch int
	logger       zerolog.Logger

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewEnricher creates the enrich stage.
func NewEnricher(usage usageFetcher, ratings ratingsFetcher, store enrichmentStore, cfg *config.Config) *Enricher {
	return &Enricher{
		usage:        usage,
		ratings:      ratings,
		store:        store,
		usageBatch:   cfg.Metrics.BatchSize,
		ratingsBatch: cfg.Ratings.BatchSize,
		logger:       logging.With().Str("component", "enricher").Logger(),
		now:          time.Now,
	}
}

// Enrich runs both enrichment flows over the eligible population. A
// credential rotation signal from the usage upstream aborts immediately;
// any other flow failure is reported after both flows have had their turn.
func (e *Enricher) Enrich(ctx context.Context) error {
	items, err := e.store.ListEligibleItems(ctx)
	if err != nil {
		return fmt.Errorf("failed to load eligible items: %w", err)
	}
	if len(items) == 0 {
		e.logger.Warn().Msg("no eligible items to enrich")
		return nil
	}
	e.logger.Info().Int("items", len(items)).Msg("starting enrichment")

	usageErr := e.enrichUsage(ctx, items)
	if errors.Is(usageErr, ErrCredentialRotation) {
		return usageErr
	}

	ratingsErr := e.enrichRatings(ctx, items)

	return errors.Join(usageErr, ratingsErr)
}

// enrichUsage fetches usage metrics in batches and writes the reduced
// active-device count per item, committing after every batch.
func (e *Enricher) enrichUsage(ctx context.Context, items []models.Item) error {
	start, end := MetricsWindow(e.now())

	var failed, total int
	for _, batch := range batchItems(items, e.usageBatch) {
		total++

		ids := make([]string, 0, len(batch))
		for _, item := range batch {
			ids = append(ids, item.ID)
		}

		resp, err := e.usage.FetchUsage(ctx, ids, start, end)
		if err != nil {
			if errors.Is(err, ErrCredentialRotation) {
				metrics.EnricherBatchesTotal.WithLabelValues("usage", "failure").Inc()
				return err
			}
			failed++
			metrics.EnricherBatchesTotal.WithLabelValues("usage", "failure").Inc()
			e.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("usage batch failed, skipping")
			continue
		}

		// Metrics come back in request order; a short response only
		// covers the items it reaches.
		counts := make(map[string]int64, len(batch))
		for i := range batch {
			if i >= len(resp.Metrics) {
				break
			}
			counts[batch[i].ID] = resp.Metrics[i].LatestActiveDevices()
		}

		if err := e.store.UpdateActiveDevices(ctx, counts); err != nil {
			failed++
			metrics.EnricherBatchesTotal.WithLabelValues("usage", "failure").Inc()
			e.logger.Error().Err(err).Msg("usage batch write failed, skipping")
			continue
		}
		metrics.EnricherBatchesTotal.WithLabelValues("usage", "success").Inc()
	}

	if failed > 0 {
		return fmt.Errorf("usage enrichment: %d of %d batches failed", failed, total)
	}
	e.logger.Info().Int("batches", total).Msg("usage enrichment complete")
	return nil
}

// enrichRatings authenticates once, fetches ratings in batches, and writes
// the accumulated result in a single transaction.
func (e *Enricher) enrichRatings(ctx context.Context, items []models.Item) error {
	token, err := e.ratings.Authenticate(ctx)
	if err != nil {
		return fmt.Errorf("ratings enrichment: %w", err)
	}

	collected := make(map[string]database.Rating)
	var failed, total int
	for _, batch := range batchItems(items, e.ratingsBatch) {
		total++

		ids := make([]string, 0, len(batch))
		for _, item := range batch {
			ids = append(ids, item.ID)
		}

		ratings, err := e.ratings.GetBulkRatings(ctx, token, ids)
		if err != nil {
			failed++
			metrics.EnricherBatchesTotal.WithLabelValues("ratings", "failure").Inc()
			e.logger.Error().Err(err).Int("batch_size", len(batch)).Msg("ratings batch failed, skipping")
			continue
		}
		for id, r := range ratings {
			collected[id] = r
		}
		metrics.EnricherBatchesTotal.WithLabelValues("ratings", "success").Inc()
	}

	if err := e.store.UpdateRatings(ctx, collected); err != nil {
		return fmt.Errorf("ratings enrichment: write failed: %w", err)
	}

	if failed > 0 {
		return fmt.Errorf("ratings enrichment: %d of %d batches failed", failed, total)
	}
	e.logger.Info().Int("batches", total).Int("rated", len(collected)).Msg("ratings enrichment complete")
	return nil
}

// batchItems splits items into consecutive chunks of at most size.
func batchItems(items []models.Item, size int) [][]models.Item {
	if size <= 0 {
		return [][]models.Item{items}
	}
	batches := make([][]models.Item, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		batches = append(batches, items[start:end])
	}
	return batches
}
