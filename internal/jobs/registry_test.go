// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package jobs

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepulse/storepulse/internal/models"
)

func TestRegistryLifecycle(t *testing.T) {
	r := newRegistry()
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	r.add("job-1", models.StepCollect, now)
	job, ok := r.get("job-1")
	require.True(t, ok)
	assert.Equal(t, StatusQueued, job.Status)
	assert.Nil(t, job.StartedAt)

	r.markRunning("job-1", now.Add(time.Second))
	job, _ = r.get("job-1")
	assert.Equal(t, StatusRunning, job.Status)
	require.NotNil(t, job.StartedAt)

	r.markFinished("job-1", StatusSucceeded, "", now.Add(2*time.Second))
	job, _ = r.get("job-1")
	assert.Equal(t, StatusSucceeded, job.Status)
	require.NotNil(t, job.FinishedAt)
}

func TestRegistryEvictsOldestFinished(t *testing.T) {
	r := newRegistry()
	now := time.Now()

	for i := 0; i < maxTrackedJobs; i++ {
		id := fmt.Sprintf("job-%03d", i)
		r.add(id, models.StepCollect, now)
		r.markFinished(id, StatusSucceeded, "", now)
	}

	r.add("job-new", models.StepScore, now)

	_, ok := r.get("job-000")
	assert.False(t, ok, "oldest finished job must be evicted")
	_, ok = r.get("job-new")
	assert.True(t, ok)
}

func TestRegistryKeepsUnfinishedJobsUnderPressure(t *testing.T) {
	r := newRegistry()
	now := time.Now()

	for i := 0; i < maxTrackedJobs; i++ {
		r.add(fmt.Sprintf("job-%03d", i), models.StepCollect, now)
	}
	r.add("job-new", models.StepScore, now)

	// nothing is finished, so nothing was evicted
	_, ok := r.get("job-000")
	assert.True(t, ok)
}
