// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package services

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/storepulse/storepulse/internal/logging"
)

// pipelineRunner is the slice of the pipeline runner the scheduler needs.
type pipelineRunner interface {
	RunAll(ctx context.Context) error
}

// SchedulerService triggers full pipeline runs on a fixed interval. The
// first run waits for the startup delay so the HTTP server is already
// answering health checks before the pipeline starts pulling data.
type SchedulerService struct {
	runner       pipelineRunner
	startupDelay time.Duration
	interval     time.Duration
	logger       zerolog.Logger
}

// NewSchedulerService creates the scheduler.
func NewSchedulerService(runner pipelineRunner, startupDelay, interval time.Duration) *SchedulerService {
	return &SchedulerService{
		runner:       runner,
		startupDelay: startupDelay,
		interval:     interval,
		logger:       logging.With().Str("component", "scheduler").Logger(),
	}
}

// Serve implements suture.Service. A failed run is logged and the schedule
// keeps ticking; the step log already records the failure for operators.
func (s *SchedulerService) Serve(ctx context.Context) error {
	startup := time.NewTimer(s.startupDelay)
	defer startup.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-startup.C:
	}

	s.runOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *SchedulerService) runOnce(ctx context.Context) {
	if err := s.runner.RunAll(ctx); err != nil {
		s.logger.Error().Err(err).Msg("scheduled pipeline run failed")
	}
}

// String implements fmt.Stringer for suture's log messages.
func (s *SchedulerService) String() string {
	return "pipeline-scheduler"
}
