// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/database"
	"github.com/storepulse/storepulse/internal/models"
)

type fakeUsageFetcher struct {
	batches [][]string
	// failBatch is the 1-based index of a batch to fail; 0 disables.
	failBatch int
	failErr   error
}

func (f *fakeUsageFetcher) FetchUsage(_ context.Context, itemIDs []string, _, _ string) (*UsageMetricsResponse, error) {
	f.batches = append(f.batches, itemIDs)
	if f.failBatch == len(f.batches) {
		return nil, f.failErr
	}

	resp := &UsageMetricsResponse{}
	for i := range itemIDs {
		count := int64((i + 1) * 10)
		resp.Metrics = append(resp.Metrics, UsageMetric{
			Buckets: []string{"d1"},
			Series:  []UsageSeries{{Name: "1.0", Values: []*int64{&count}}},
		})
	}
	return resp, nil
}

type fakeRatingsFetcher struct {
	authErr  error
	batchErr error
	batches  [][]string
}

func (f *fakeRatingsFetcher) Authenticate(_ context.Context) (string, error) {
	if f.authErr != nil {
		return "", f.authErr
	}
	return "token", nil
}

func (f *fakeRatingsFetcher) GetBulkRatings(_ context.Context, token string, itemIDs []string) (map[string]database.Rating, error) {
	if token != "token" {
		return nil, errors.New("bad token")
	}
	f.batches = append(f.batches, itemIDs)
	if f.batchErr != nil {
		return nil, f.batchErr
	}

	out := make(map[string]database.Rating, len(itemIDs))
	for _, id := range itemIDs {
		raw := 0.5
		out[id] = database.Rating{RawRating: &raw, TotalVotes: 10}
	}
	return out, nil
}

type fakeEnrichmentStore struct {
	items []models.Item

	deviceWrites []map[string]int64
	ratingWrites []map[string]database.Rating
	listErr      error
	writeErr     error
}

func (f *fakeEnrichmentStore) ListEligibleItems(_ context.Context) ([]models.Item, error) {
	return f.items, f.listErr
}

func (f *fakeEnrichmentStore) UpdateActiveDevices(_ context.Context, counts map[string]int64) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.deviceWrites = append(f.deviceWrites, counts)
	return nil
}

func (f *fakeEnrichmentStore) UpdateRatings(_ context.Context, ratings map[string]database.Rating) error {
	f.ratingWrites = append(f.ratingWrites, ratings)
	return nil
}

func enricherConfig() *config.Config {
	return &config.Config{
		Metrics: config.MetricsConfig{BatchSize: 15},
		Ratings: config.RatingsConfig{BatchSize: 20},
	}
}

func storeWithItems(n int) *fakeEnrichmentStore {
	store := &fakeEnrichmentStore{}
	for i := 0; i < n; i++ {
		store.items = append(store.items, models.Item{ID: fmt.Sprintf("id-%02d", i)})
	}
	return store
}

func TestEnricherBatchesUsageRequests(t *testing.T) {
	usage := &fakeUsageFetcher{}
	ratings := &fakeRatingsFetcher{}
	store := storeWithItems(35)

	enricher := NewEnricher(usage, ratings, store, enricherConfig())
	require.NoError(t, enricher.Enrich(context.Background()))

	// 35 items in usage batches of 15: 15 + 15 + 5
	require.Len(t, usage.batches, 3)
	assert.Len(t, usage.batches[0], 15)
	assert.Len(t, usage.batches[2], 5)

	// one device-count commit per batch
	require.Len(t, store.deviceWrites, 3)

	// 35 items in ratings batches of 20, one accumulated write
	require.Len(t, ratings.batches, 2)
	require.Len(t, store.ratingWrites, 1)
	assert.Len(t, store.ratingWrites[0], 35)
}

func TestEnricherUsageWindow(t *testing.T) {
	usage := &capturingUsageFetcher{}
	store := storeWithItems(1)

	enricher := NewEnricher(usage, &fakeRatingsFetcher{}, store, enricherConfig())
	enricher.now = func() time.Time {
		return time.Date(2026, 8, 28, 9, 0, 0, 0, time.UTC)
	}

	require.NoError(t, enricher.Enrich(context.Background()))
	assert.Equal(t, "2026-08-26", usage.start)
	assert.Equal(t, "2026-08-27", usage.end)
}

type capturingUsageFetcher struct {
	start, end string
}

func (c *capturingUsageFetcher) FetchUsage(_ context.Context, itemIDs []string, start, end string) (*UsageMetricsResponse, error) {
	c.start, c.end = start, end
	resp := &UsageMetricsResponse{}
	for range itemIDs {
		resp.Metrics = append(resp.Metrics, UsageMetric{})
	}
	return resp, nil
}

func TestEnricherSkipsFailedUsageBatch(t *testing.T) {
	usage := &fakeUsageFetcher{failBatch: 2, failErr: errors.New("timeout")}
	store := storeWithItems(35)

	enricher := NewEnricher(usage, &fakeRatingsFetcher{}, store, enricherConfig())
	err := enricher.Enrich(context.Background())

	// stage reports failure, but all three batches were attempted and the
	// two healthy ones committed
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 3 batches failed")
	assert.Len(t, usage.batches, 3)
	assert.Len(t, store.deviceWrites, 2)

	// ratings flow still ran to completion
	assert.Len(t, store.ratingWrites, 1)
}

func TestEnricherCredentialRotationAborts(t *testing.T) {
	usage := &fakeUsageFetcher{failBatch: 1, failErr: fmt.Errorf("%w: expired", ErrCredentialRotation)}
	ratings := &fakeRatingsFetcher{}
	store := storeWithItems(35)

	enricher := NewEnricher(usage, ratings, store, enricherConfig())
	err := enricher.Enrich(context.Background())

	require.ErrorIs(t, err, ErrCredentialRotation)
	assert.Len(t, usage.batches, 1, "remaining usage batches must not run")
	assert.Empty(t, ratings.batches, "ratings flow must not run after credential rotation")
}

func TestEnricherRatingsAuthFailure(t *testing.T) {
	ratings := &fakeRatingsFetcher{authErr: errors.New("service down")}
	store := storeWithItems(5)

	enricher := NewEnricher(&fakeUsageFetcher{}, ratings, store, enricherConfig())
	err := enricher.Enrich(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "service down")
	// usage results are kept even when ratings cannot authenticate
	assert.Len(t, store.deviceWrites, 1)
	assert.Empty(t, store.ratingWrites)
}

func TestEnricherEmptyPopulation(t *testing.T) {
	usage := &fakeUsageFetcher{}
	store := &fakeEnrichmentStore{}

	enricher := NewEnricher(usage, &fakeRatingsFetcher{}, store, enricherConfig())
	require.NoError(t, enricher.Enrich(context.Background()))
	assert.Empty(t, usage.batches)
}

func TestBatchItems(t *testing.T) {
	items := storeWithItems(7).items

	batches := batchItems(items, 3)
	require.Len(t, batches, 3)
	assert.Len(t, batches[0], 3)
	assert.Len(t, batches[2], 1)

	assert.Len(t, batchItems(nil, 3), 0)
	assert.Len(t, batchItems(items, 0), 1)
}
