// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/storepulse/storepulse/internal/models"
)

// PipelineStatus returns the most recent per-stage outcome summary.
func (h *Handler) PipelineStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	status, err := h.db.MostRecentStatus(r.Context())
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.Success(status)
}

// PipelineLog returns recent step log entries for one stage, newest first.
func (h *Handler) PipelineLog(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	step := chi.URLParam(r, "step")
	if !models.ValidStep(step) {
		rw.NotFound("unknown pipeline step: " + step)
		return
	}

	limit, err := h.limitParam(r)
	if err != nil {
		rw.BadRequest(err.Error())
		return
	}

	entries, err := h.db.StepLogEntries(r.Context(), models.Step(step), limit)
	if err != nil {
		rw.DatabaseError(err)
		return
	}

	rw.SuccessWithMeta(entries, &APIMeta{Count: len(entries), Limit: limit})
}

// RunStep enqueues a manual trigger for one pipeline stage. A stage that is
// already in flight is rejected with 409 rather than queued behind itself.
func (h *Handler) RunStep(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	step := chi.URLParam(r, "step")
	if !models.ValidStep(step) {
		rw.NotFound("unknown pipeline step: " + step)
		return
	}

	if h.runner.Running(models.Step(step)) {
		rw.Conflict("step is already running: " + step)
		return
	}

	jobID, err := h.queue.Enqueue(r.Context(), models.Step(step))
	if err != nil {
		h.logger.Error().Err(err).Str("step", step).Msg("failed to enqueue step")
		rw.InternalError("failed to enqueue step")
		return
	}

	h.logger.Info().
		Str("subject", SubjectFromContext(r.Context())).
		Str("step", step).
		Str("job_id", jobID).
		Msg("pipeline step triggered")

	rw.Accepted(map[string]string{
		"job_id": jobID,
		"step":   step,
	})
}

// JobStatus returns the state of a previously enqueued stage trigger.
func (h *Handler) JobStatus(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	jobID := chi.URLParam(r, "id")
	job, ok := h.queue.Status(jobID)
	if !ok {
		rw.NotFound("no job with id " + jobID)
		return
	}

	rw.Success(job)
}
