// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package jobs

import (
	"sync"
	"time"

	"github.com/storepulse/storepulse/internal/models"
)

// Status is the lifecycle state of a queued stage trigger.
type Status string

const (
	StatusQueued    Status = "queued"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Job is one manual stage trigger moving through the queue.
type Job struct {
	ID         string      `json:"id"`
	Step       models.Step `json:"step"`
	Status     Status      `json:"status"`
	Message    string      `json:"message,omitempty"`
	EnqueuedAt time.Time   `json:"enqueued_at"`
	StartedAt  *time.Time  `json:"started_at,omitempty"`
	FinishedAt *time.Time  `json:"finished_at,omitempty"`
}

// maxTrackedJobs bounds the registry; the oldest finished jobs are evicted
// once the limit is reached.
const maxTrackedJobs = 256

// registry tracks job state in memory. Job history does not survive a
// restart; the durable record of stage outcomes is the pipeline step log.
type registry struct {
	mu    sync.RWMutex
	jobs  map[string]*Job
	order []string
}

func newRegistry() *registry {
	return &registry{jobs: make(map[string]*Job)}
}

func (r *registry) add(id string, step models.Step, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.evictLocked()
	r.jobs[id] = &Job{ID: id, Step: step, Status: StatusQueued, EnqueuedAt: now}
	r.order = append(r.order, id)
}

func (r *registry) markRunning(id string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Status = StatusRunning
		job.Message = ""
		job.StartedAt = &now
		job.FinishedAt = nil
	}
}

func (r *registry) markFinished(id string, status Status, message string, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if job, ok := r.jobs[id]; ok {
		job.Status = status
		job.Message = message
		job.FinishedAt = &now
	}
}

// get returns a copy of the job so callers never observe partial updates.
func (r *registry) get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// evictLocked drops the oldest finished jobs while the registry is full.
func (r *registry) evictLocked() {
	for len(r.jobs) >= maxTrackedJobs {
		evicted := false
		for i, id := range r.order {
			job := r.jobs[id]
			if job == nil || job.Status == StatusSucceeded || job.Status == StatusFailed {
				delete(r.jobs, id)
				r.order = append(r.order[:i], r.order[i+1:]...)
				evicted = true
				break
			}
		}
		if !evicted {
			return
		}
	}
}
