// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package services

import (
	"context"
	"errors"
	"fmt"
)

// jobRouter is the slice of the job queue the wrapper needs.
type jobRouter interface {
	Run(ctx context.Context) error
}

// JobsService runs the job-queue router under supervision so manual stage
// triggers keep being processed for the lifetime of the process.
type JobsService struct {
	queue jobRouter
}

// NewJobsService wraps the job queue.
func NewJobsService(queue jobRouter) *JobsService {
	return &JobsService{queue: queue}
}

// Serve implements suture.Service.
func (j *JobsService) Serve(ctx context.Context) error {
	if err := j.queue.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("job router failed: %w", err)
	}
	return ctx.Err()
}

// String implements fmt.Stringer for suture's log messages.
func (j *JobsService) String() string {
	return "job-queue"
}
