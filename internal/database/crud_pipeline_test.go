// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package database

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/storepulse/storepulse/internal/models"
)

func TestMostRecentStatusEmpty(t *testing.T) {
	db := newTestDB(t)

	statuses, err := db.MostRecentStatus(context.Background())
	require.NoError(t, err)
	require.Len(t, statuses, 4)

	for _, s := range statuses {
		assert.Nil(t, s.Success)
		assert.Nil(t, s.Message)
		assert.Nil(t, s.LastSuccessfulRun)
		assert.Nil(t, s.LastFailedRun)
	}
}

func TestMostRecentStatusTracksOutcomesIndependently(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.AppendStepLog(ctx, models.StepCollect, true, ""))
	require.NoError(t, db.AppendStepLog(ctx, models.StepCollect, false, "page 3 fetch failed"))

	statuses, err := db.MostRecentStatus(ctx)
	require.NoError(t, err)

	var collect models.StepStatus
	for _, s := range statuses {
		if s.ID == string(models.StepCollect) {
			collect = s
		}
	}

	// Latest run failed; both timestamps are populated independently.
	require.NotNil(t, collect.Success)
	assert.False(t, *collect.Success)
	require.NotNil(t, collect.Message)
	assert.Equal(t, "page 3 fetch failed", *collect.Message)
	require.NotNil(t, collect.LastSuccessfulRun)
	require.NotNil(t, collect.LastFailedRun)
	assert.True(t, collect.LastFailedRun.After(*collect.LastSuccessfulRun) ||
		collect.LastFailedRun.Equal(*collect.LastSuccessfulRun))
}

func TestMostRecentStatusLatestWins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.AppendStepLog(ctx, models.StepScore, false, "boom"))
	require.NoError(t, db.AppendStepLog(ctx, models.StepScore, true, ""))

	statuses, err := db.MostRecentStatus(ctx)
	require.NoError(t, err)

	for _, s := range statuses {
		if s.ID != string(models.StepScore) {
			continue
		}
		require.NotNil(t, s.Success)
		assert.True(t, *s.Success)
		require.NotNil(t, s.Message)
		assert.Empty(t, *s.Message)
	}
}

func TestStepLogEntriesNewestFirst(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.AppendStepLog(ctx, models.StepFilter, true, "first"))
	require.NoError(t, db.AppendStepLog(ctx, models.StepFilter, true, "second"))
	require.NoError(t, db.AppendStepLog(ctx, models.StepFilter, true, "third"))

	entries, err := db.StepLogEntries(ctx, models.StepFilter, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "third", entries[0].Message)
	assert.Equal(t, "second", entries[1].Message)
}
