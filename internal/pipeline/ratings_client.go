// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package pipeline

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/database"
	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/metrics"
)

// RatingsClient talks to the community ratings service. A session starts
// with an authenticate call that exchanges the client identity for a bearer
// token; ratings are then fetched in bulk.
type RatingsClient struct {
	baseURL string
	appName string
	secret  string
	client  *http.Client
	logger  zerolog.Logger
}

// NewRatingsClient creates a ratings service client from configuration.
func NewRatingsClient(cfg *config.RatingsConfig) *RatingsClient {
	return &RatingsClient{
		baseURL: cfg.BaseURL,
		appName: cfg.AppName,
		secret:  cfg.Secret,
		client:  &http.Client{Timeout: cfg.Timeout},
		logger:  logging.With().Str("component", "ratings_client").Logger(),
	}
}

// clientID derives the stable client identity the ratings service expects:
// the hex SHA-256 of the application name.
func (c *RatingsClient) clientID() string {
	sum := sha256.Sum256([]byte(c.appName))
	return hex.EncodeToString(sum[:])
}

type authenticateRequest struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
}

type authenticateResponse struct {
	Token string `json:"token"`
}

// Authenticate exchanges the client identity for a bearer token.
func (c *RatingsClient) Authenticate(ctx context.Context) (string, error) {
	body := authenticateRequest{ID: c.clientID(), Secret: c.secret}

	var parsed authenticateResponse
	if err := c.post(ctx, "/v1/user/authenticate", "", body, &parsed); err != nil {
		return "", fmt.Errorf("ratings authentication failed: %w", err)
	}
	if parsed.Token == "" {
		return "", fmt.Errorf("ratings authentication returned no token")
	}

	c.logger.Info().Msg("authenticated with ratings service")
	return parsed.Token, nil
}

type bulkRatingsRequest struct {
	ItemIDs []string `json:"item_ids"`
}

type bulkRatingsResponse struct {
	Ratings []struct {
		ItemID     string  `json:"item_id"`
		RawRating  float64 `json:"raw_rating"`
		TotalVotes int64   `json:"total_votes"`
	} `json:"ratings"`
}

// GetBulkRatings fetches ratings for a batch of item IDs. Items the service
// has never seen are simply absent from the result.
func (c *RatingsClient) GetBulkRatings(ctx context.Context, token string, itemIDs []string) (map[string]database.Rating, error) {
	if len(itemIDs) == 0 {
		return map[string]database.Rating{}, nil
	}

	var parsed bulkRatingsResponse
	if err := c.post(ctx, "/v1/app/bulk-ratings", token, bulkRatingsRequest{ItemIDs: itemIDs}, &parsed); err != nil {
		return nil, fmt.Errorf("bulk ratings fetch failed: %w", err)
	}

	ratings := make(map[string]database.Rating, len(parsed.Ratings))
	for _, r := range parsed.Ratings {
		if r.ItemID == "" {
			continue
		}
		raw := r.RawRating
		ratings[r.ItemID] = database.Rating{RawRating: &raw, TotalVotes: r.TotalVotes}
	}
	return ratings, nil
}

// post sends a JSON request to the ratings service and decodes the reply.
func (c *RatingsClient) post(ctx context.Context, path, token string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	metrics.UpstreamRequestDuration.WithLabelValues("ratings").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.UpstreamRequestErrors.WithLabelValues("ratings").Inc()
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.UpstreamRequestErrors.WithLabelValues("ratings").Inc()
		errBody := readBodyForError(resp.Body)
		return fmt.Errorf("status %d: %s", resp.StatusCode, string(errBody))
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
