// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/metrics"
)

// usageMetricName is the only metric the enricher consumes: the number of
// devices with the package installed, bucketed per version per week.
const usageMetricName = "weekly_installed_base_by_version"

// usageFilter selects one item's series over a date window.
type usageFilter struct {
	Start      string `json:"start"`
	End        string `json:"end"`
	MetricName string `json:"metric_name"`
	ItemID     string `json:"item_id"`
}

type usageRequest struct {
	Filters []usageFilter `json:"filters"`
}

// UsageSeries is one per-version series of device counts. Missing
// measurements come back as JSON null.
type UsageSeries struct {
	Name   string   `json:"name"`
	Values []*int64 `json:"values"`
}

// UsageMetric is the series set returned for a single item.
type UsageMetric struct {
	Buckets []string      `json:"buckets"`
	Series  []UsageSeries `json:"series"`
}

// UsageMetricsResponse holds one UsageMetric per requested item, in
// request order.
type UsageMetricsResponse struct {
	Metrics []UsageMetric `json:"metrics"`
}

// LatestActiveDevices reduces the series set to a single device count:
// for every version series that covers all buckets, take the most recent
// nonzero measurement, then sum across versions. Nulls count as zero.
func (m *UsageMetric) LatestActiveDevices() int64 {
	var total int64
	for _, s := range m.Series {
		if len(s.Values) != len(m.Buckets) {
			continue
		}
		for i := len(s.Values) - 1; i >= 0; i-- {
			var v int64
			if s.Values[i] != nil {
				v = *s.Values[i]
			}
			if v != 0 {
				total += v
				break
			}
		}
	}
	return total
}

// MetricsWindow returns the [start, end] date window for a usage query:
// the two days ending yesterday, since today's bucket is still filling.
func MetricsWindow(now time.Time) (start, end string) {
	yesterday := now.AddDate(0, 0, -1)
	return yesterday.AddDate(0, 0, -1).Format("2006-01-02"), yesterday.Format("2006-01-02")
}

// MetricsClient fetches usage metrics batches from the store dashboard API.
// Transient failures are retried with exponential backoff behind a circuit
// breaker; an HTTP 401 means the macaroon has expired and is never retried.
type MetricsClient struct {
	baseURL       string
	macaroon      string
	client        *http.Client
	cb            *gobreaker.CircuitBreaker[*UsageMetricsResponse]
	retryAttempts int
	retryDelay    time.Duration
	logger        zerolog.Logger
}

// NewMetricsClient creates a usage metrics client from configuration.
// Circuit breaker settings: 3 requests allowed half-open, 1 minute closed
// measurement window, 2 minute open period, trips at a 60% failure rate
// over at least 10 requests.
func NewMetricsClient(cfg *config.MetricsConfig) *MetricsClient {
	const cbName = "metrics-api"
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	cb := gobreaker.NewCircuitBreaker[*UsageMetricsResponse](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("circuit breaker state change")
			metrics.RecordBreakerState(name, to.String())
		},
	})

	return &MetricsClient{
		baseURL:       cfg.BaseURL,
		macaroon:      cfg.Macaroon,
		client:        &http.Client{Timeout: cfg.Timeout},
		cb:            cb,
		retryAttempts: cfg.RetryAttempts,
		retryDelay:    cfg.RetryDelay,
		logger:        logging.With().Str("component", "metrics_client").Logger(),
	}
}

// FetchUsage retrieves usage metrics for one batch of item IDs over the
// given date window. Returns ErrCredentialRotation on HTTP 401.
func (c *MetricsClient) FetchUsage(ctx context.Context, itemIDs []string, start, end string) (*UsageMetricsResponse, error) {
	var result *UsageMetricsResponse

	operation := func() error {
		resp, err := c.cb.Execute(func() (*UsageMetricsResponse, error) {
			return c.fetchOnce(ctx, itemIDs, start, end)
		})
		if err != nil {
			// Retrying cannot help a rejected credential, and hammering an
			// open breaker defeats its purpose.
			if errors.Is(err, ErrCredentialRotation) ||
				errors.Is(err, gobreaker.ErrOpenState) ||
				errors.Is(err, gobreaker.ErrTooManyRequests) {
				return backoff.Permanent(err)
			}
			c.logger.Warn().Err(err).Int("batch_size", len(itemIDs)).Msg("usage metrics request failed, retrying")
			return err
		}
		result = resp
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.retryDelay
	if err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(c.retryAttempts)), ctx)); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *MetricsClient) fetchOnce(ctx context.Context, itemIDs []string, start, end string) (*UsageMetricsResponse, error) {
	reqBody := usageRequest{Filters: make([]usageFilter, 0, len(itemIDs))}
	for _, id := range itemIDs {
		reqBody.Filters = append(reqBody.Filters, usageFilter{
			Start:      start,
			End:        end,
			MetricName: usageMetricName,
			ItemID:     id,
		})
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode usage request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/metrics", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create usage request: %w", err)
	}
	req.Header.Set("Authorization", "Macaroon "+c.macaroon)
	req.Header.Set("Content-Type", "application/json")

	startedAt := time.Now()
	resp, err := c.client.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("metrics").Observe(time.Since(startedAt).Seconds())
	if err != nil {
		metrics.UpstreamRequestErrors.WithLabelValues("metrics").Inc()
		return nil, fmt.Errorf("usage metrics request failed: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		metrics.UpstreamRequestErrors.WithLabelValues("metrics").Inc()
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("%w: %s", ErrCredentialRotation, string(body))
	case resp.StatusCode != http.StatusOK:
		metrics.UpstreamRequestErrors.WithLabelValues("metrics").Inc()
		body := readBodyForError(resp.Body)
		return nil, fmt.Errorf("usage metrics returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed UsageMetricsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode usage metrics response: %w", err)
	}
	return &parsed, nil
}
