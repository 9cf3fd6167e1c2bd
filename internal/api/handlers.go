// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package api

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/database"
	"github.com/storepulse/storepulse/internal/jobs"
	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/models"
)

// jobQueue is the slice of the job queue the handlers need.
type jobQueue interface {
	Enqueue(ctx context.Context, step models.Step) (string, error)
	Status(jobID string) (jobs.Job, bool)
}

// stageRunner answers whether a stage is currently in flight, so a manual
// trigger for a busy stage can be rejected before it is enqueued.
type stageRunner interface {
	Running(step models.Step) bool
}

// Handler holds the dependencies shared by all HTTP handlers.
type Handler struct {
	db     *database.DB
	queue  jobQueue
	runner stageRunner
	cfg    *config.APIConfig
	logger zerolog.Logger
}

// NewHandler creates the handler set.
func NewHandler(db *database.DB, queue jobQueue, runner stageRunner, cfg *config.APIConfig) *Handler {
	return &Handler{
		db:     db,
		queue:  queue,
		runner: runner,
		cfg:    cfg,
		logger: logging.With().Str("component", "api").Logger(),
	}
}
