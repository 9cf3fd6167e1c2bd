// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/goccy/go-json"
)

// maxRequestBodySize caps admin request bodies. The largest legitimate
// payload is an editorial slice description.
const maxRequestBodySize = 1 << 20

// limitParam reads the limit query parameter, applying the configured
// default and clamping to the configured maximum.
func (h *Handler) limitParam(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return h.cfg.DefaultLimit, nil
	}

	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("limit must be a positive integer, got %q", raw)
	}
	if limit > h.cfg.MaxLimit {
		limit = h.cfg.MaxLimit
	}
	return limit, nil
}

// decodeBody decodes a JSON request body into dst, rejecting unknown fields
// and oversized payloads.
func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
