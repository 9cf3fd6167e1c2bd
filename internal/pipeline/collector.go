// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/metrics"
	"github.com/storepulse/storepulse/internal/models"
)

// pageFetcher is the slice of the catalog client the collector needs.
type pageFetcher interface {
	FetchPage(ctx context.Context, page int) ([]catalogRecord, bool, error)
}

// itemUpserter is the slice of the database layer the collector needs.
type itemUpserter interface {
	UpsertItems(ctx context.Context, items []models.Item) error
}

// Collector walks the catalog search API and upserts every page of packages.
// Each page commits independently, so a failed page never corrupts pages
// already written; the failure itself aborts the run and propagates.
type Collector struct {
	catalog pageFetcher
	store   itemUpserter
	logger  zerolog.Logger
}

// NewCollector creates the collect stage.
func NewCollector(catalog pageFetcher, store itemUpserter) *Collector {
	return &Collector{
		catalog: catalog,
		store:   store,
		logger:  logging.With().Str("component", "collector").Logger(),
	}
}

// Collect ingests the full catalog and returns the number of items written.
func (c *Collector) Collect(ctx context.Context) (int, error) {
	c.logger.Info().Msg("starting catalog collection")

	page := 1
	total := 0
	for {
		records, hasNext, err := c.catalog.FetchPage(ctx, page)
		if err != nil {
			return total, fmt.Errorf("collection aborted on page %d: %w", page, err)
		}

		items, err := normalizeRecords(records)
		if err != nil {
			return total, fmt.Errorf("collection aborted on page %d: %w", page, err)
		}

		if err := c.store.UpsertItems(ctx, items); err != nil {
			return total, fmt.Errorf("upsert failed on page %d: %w", page, err)
		}

		total += len(items)
		metrics.CollectorPagesTotal.Inc()
		metrics.CollectorItemsTotal.Add(float64(len(items)))
		c.logger.Info().Int("page", page).Int("items", len(items)).Msg("page processed")

		if !hasNext {
			break
		}
		page++
	}

	c.logger.Info().Int("total", total).Msg("catalog collection complete")
	return total, nil
}

// normalizeRecords converts raw search records into the Item shape.
func normalizeRecords(records []catalogRecord) ([]models.Item, error) {
	items := make([]models.Item, 0, len(records))
	for _, rec := range records {
		item, err := normalizeRecord(rec)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

// normalizeRecord flattens one raw record: first website/contact URL out of
// the list-valued link fields, the icon URL from the media entry typed
// "icon", and the last-updated timestamp parsed into a time.Time.
func normalizeRecord(rec catalogRecord) (models.Item, error) {
	lastUpdated, err := time.Parse(time.RFC3339, rec.LastUpdated)
	if err != nil {
		return models.Item{}, fmt.Errorf("item %s: bad last_updated %q: %w", rec.ID, rec.LastUpdated, err)
	}

	item := models.Item{
		ID:                  rec.ID,
		Name:                rec.PackageName,
		Title:               rec.Title,
		Summary:             rec.Summary,
		Description:         rec.Description,
		Version:             rec.Version,
		Publisher:           rec.Publisher,
		Revision:            rec.Revision,
		Links:               rec.Links,
		Media:               rec.Media,
		DeveloperValidation: rec.DeveloperValidation,
		License:             rec.License,
		LastUpdated:         lastUpdated.UTC(),
	}

	if urls := rec.Links["website"]; len(urls) > 0 {
		item.Website = urls[0]
	}
	if urls := rec.Links["contact"]; len(urls) > 0 {
		item.Contact = urls[0]
	}
	for _, m := range rec.Media {
		if m.Type == "icon" {
			item.Icon = m.URL
			break
		}
	}
	return item, nil
}
