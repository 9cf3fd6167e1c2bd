// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/storepulse/storepulse/internal/models"
)

// AppendStepLog appends one pipeline log row. The log is append-only; rows
// are never updated or deleted.
func (db *DB) AppendStepLog(ctx context.Context, step models.Step, success bool, message string) error {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO pipeline_step_log (step, success, message, created_at) VALUES (?, ?, ?, ?)`,
		string(step), success, message, time.Now())
	if err != nil {
		return fmt.Errorf("failed to append step log for %s: %w", step, err)
	}
	return nil
}

// MostRecentStatus summarizes the log per stage: the latest run's outcome
// and message, plus the independent last-successful and last-failed
// timestamps. Stages that never ran appear with nil fields so the API always
// reports all four stages.
func (db *DB) MostRecentStatus(ctx context.Context) ([]models.StepStatus, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	statuses := make([]models.StepStatus, 0, len(models.AllSteps()))
	for _, step := range models.AllSteps() {
		status := models.StepStatus{
			ID:   string(step),
			Name: models.StepDisplayName(step),
		}

		var success bool
		var message string
		err := db.conn.QueryRowContext(ctx,
			`SELECT success, message FROM pipeline_step_log
			 WHERE step = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
			string(step)).Scan(&success, &message)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// Stage never ran; leave fields nil.
		case err != nil:
			return nil, fmt.Errorf("failed to query latest run for %s: %w", step, err)
		default:
			status.Success = &success
			status.Message = &message
		}

		lastSuccess, err := db.latestStepRun(ctx, step, true)
		if err != nil {
			return nil, err
		}
		status.LastSuccessfulRun = lastSuccess

		lastFailure, err := db.latestStepRun(ctx, step, false)
		if err != nil {
			return nil, err
		}
		status.LastFailedRun = lastFailure

		statuses = append(statuses, status)
	}
	return statuses, nil
}

// latestStepRun returns the timestamp of the most recent run of a stage with
// the given outcome, or nil when none exists.
func (db *DB) latestStepRun(ctx context.Context, step models.Step, success bool) (*time.Time, error) {
	var ts time.Time
	err := db.conn.QueryRowContext(ctx,
		`SELECT created_at FROM pipeline_step_log
		 WHERE step = ? AND success = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		string(step), success).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query %s runs for %s: %w",
			map[bool]string{true: "successful", false: "failed"}[success], step, err)
	}
	return &ts, nil
}

// StepLogEntries returns the most recent log rows for one stage, newest
// first, capped at limit.
func (db *DB) StepLogEntries(ctx context.Context, step models.Step, limit int) ([]models.StepLog, error) {
	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, step, success, message, created_at FROM pipeline_step_log
		 WHERE step = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		string(step), limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query step log for %s: %w", step, err)
	}
	defer rows.Close()

	var entries []models.StepLog
	for rows.Next() {
		var e models.StepLog
		var stepName string
		if err := rows.Scan(&e.ID, &stepName, &e.Success, &e.Message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan step log row: %w", err)
		}
		e.Step = models.Step(stepName)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("step log iteration failed: %w", err)
	}
	return entries, nil
}
