// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package pipeline

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/metrics"
	"github.com/storepulse/storepulse/internal/models"
)

// maxErrorBodySize limits how much of an upstream error response is read
// for error reporting, preventing unbounded allocation on large bodies.
const maxErrorBodySize = 64 * 1024 // 64KB

// catalogFields selects the catalog search output. Requesting only what the
// pipeline stores keeps page payloads small.
const catalogFields = "id,package_name,last_updated,summary,description," +
	"title,version,publisher,revision,links,media,developer_validation,license"

// readBodyForError reads a bounded prefix of the response body so upstream
// error messages can be attached to the returned error.
func readBodyForError(r io.Reader) []byte {
	body, err := io.ReadAll(io.LimitReader(r, maxErrorBodySize))
	if err != nil {
		return []byte("(failed to read response body)")
	}
	if len(body) == maxErrorBodySize {
		return append(body, []byte("... (truncated)")...)
	}
	return body
}

// catalogRecord is one raw package entry from the catalog search API.
type catalogRecord struct {
	ID                  string               `json:"id"`
	PackageName         string               `json:"package_name"`
	Title               string               `json:"title"`
	Summary             string               `json:"summary"`
	Description         string               `json:"description"`
	Version             string               `json:"version"`
	Publisher           string               `json:"publisher"`
	Revision            int                  `json:"revision"`
	Links               map[string][]string  `json:"links"`
	Media               []models.MediaEntry  `json:"media"`
	DeveloperValidation string               `json:"developer_validation"`
	License             string               `json:"license"`
	LastUpdated         string               `json:"last_updated"`
}

// catalogPage is the HAL-style envelope the search endpoint returns: the
// package list under _embedded and pagination links under _links.
type catalogPage struct {
	Embedded struct {
		Packages []catalogRecord `json:"packages"`
	} `json:"_embedded"`
	Links map[string]struct {
		Href string `json:"href"`
	} `json:"_links"`
}

// CatalogClient pages through the catalog search API. Requests are rate
// limited client-side so a full catalog walk stays polite to the upstream.
type CatalogClient struct {
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewCatalogClient creates a catalog search client from configuration.
func NewCatalogClient(cfg *config.CatalogConfig) *CatalogClient {
	return &CatalogClient{
		baseURL: cfg.BaseURL,
		client:  &http.Client{Timeout: cfg.PageTimeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst),
		logger:  logging.With().Str("component", "catalog_client").Logger(),
	}
}

// FetchPage retrieves one page of the catalog search. It returns the page's
// records and whether the response advertises a further page.
func (c *CatalogClient) FetchPage(ctx context.Context, page int) ([]catalogRecord, bool, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, false, err
	}

	reqURL := fmt.Sprintf("%s/api/v1/packages/search?fields=%s&confinement=strict,classic&page=%d",
		c.baseURL, catalogFields, page)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create catalog request: %w", err)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("catalog").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestErrors.WithLabelValues("catalog").Inc()
		return nil, false, fmt.Errorf("catalog page %d request failed: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequestErrors.WithLabelValues("catalog").Inc()
		body := readBodyForError(resp.Body)
		return nil, false, fmt.Errorf("catalog page %d returned status %d: %s", page, resp.StatusCode, string(body))
	}

	var parsed catalogPage
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, false, fmt.Errorf("failed to decode catalog page %d: %w", page, err)
	}

	_, hasNext := parsed.Links["next"]
	c.logger.Debug().Int("page", page).Int("records", len(parsed.Embedded.Packages)).Bool("has_next", hasNext).
		Msg("catalog page fetched")
	return parsed.Embedded.Packages, hasNext, nil
}
