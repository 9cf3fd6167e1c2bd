// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package api

import "net/http"

// healthResponse reports the state of the service and its database.
type healthResponse struct {
	Status        string `json:"status"`
	Database      string `json:"database"`
	JSONExtension bool   `json:"json_extension"`
}

// Health reports overall service health including the database connection.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	resp := healthResponse{
		Status:        "ok",
		Database:      "ok",
		JSONExtension: h.db.JSONAvailable(),
	}
	if err := h.db.Ping(r.Context()); err != nil {
		h.logger.Error().Err(err).Msg("health check database ping failed")
		resp.Status = "degraded"
		resp.Database = "unavailable"
		rw.Error(http.StatusServiceUnavailable, ErrCodeUnavailable, "database unavailable")
		return
	}

	rw.Success(resp)
}

// HealthLive always succeeds while the process is serving requests.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}

// HealthReady succeeds once the database answers a ping.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	if err := h.db.Ping(r.Context()); err != nil {
		rw.ServiceUnavailable("database not ready")
		return
	}
	rw.Success(map[string]string{"status": "ready"})
}
