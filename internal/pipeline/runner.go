// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/metrics"
	"github.com/storepulse/storepulse/internal/models"
)

// scorer is the slice of the scoring engine the runner needs.
type scorer interface {
	Score(ctx context.Context) error
}

// stepLogStore is the slice of the database layer the runner needs.
type stepLogStore interface {
	AppendStepLog(ctx context.Context, step models.Step, success bool, message string) error
	SetSetting(ctx context.Context, key, value string) error
}

// lastUpdatedKey is the settings key recording when a full run last finished.
const lastUpdatedKey = "last_updated"

// stepFunc runs one stage and returns a human-readable success message.
type stepFunc func(ctx context.Context) (string, error)

// Runner executes pipeline stages under the single-flight guard and records
// every outcome in the step log. Filter failures never abort a full run;
// for the data-integrity stages abort-on-failure is a configurable policy.
type Runner struct {
	store          stepLogStore
	guard          *stageGuard
	abortOnFailure bool
	steps          map[models.Step]stepFunc
	logger         zerolog.Logger
}

// NewRunner wires the four stages into a runner.
func NewRunner(store stepLogStore, collector *Collector, filter *Filter, enricher *Enricher, engine scorer, cfg *config.PipelineConfig) *Runner {
	steps := map[models.Step]stepFunc{
		models.StepCollect: func(ctx context.Context) (string, error) {
			count, err := collector.Collect(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("collected %d items", count), nil
		},
		models.StepFilter: func(ctx context.Context) (string, error) {
			eligible, err := filter.Filter(ctx)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d items eligible", eligible), nil
		},
		models.StepEnrich: func(ctx context.Context) (string, error) {
			if err := enricher.Enrich(ctx); err != nil {
				return "", err
			}
			return "enrichment complete", nil
		},
		models.StepScore: func(ctx context.Context) (string, error) {
			if err := engine.Score(ctx); err != nil {
				return "", err
			}
			return "scoring complete", nil
		},
	}

	return &Runner{
		store:          store,
		guard:          newStageGuard(),
		abortOnFailure: cfg.AbortOnFailure,
		steps:          steps,
		logger:         logging.With().Str("component", "runner").Logger(),
	}
}

// RunStep executes a single stage. The outcome is appended to the step log
// and recorded in the stage metrics whether the stage succeeded or not.
// Returns ErrStageRunning if the same stage is already in flight.
func (r *Runner) RunStep(ctx context.Context, step models.Step) error {
	fn, ok := r.steps[step]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStep, step)
	}

	if err := r.guard.acquire(step); err != nil {
		return err
	}
	defer r.guard.release(step)

	r.logger.Info().Str("step", string(step)).Msg("stage starting")
	start := time.Now()
	message, err := fn(ctx)
	elapsed := time.Since(start)

	success := err == nil
	if err != nil {
		message = err.Error()
	}
	metrics.RecordStageRun(string(step), success, elapsed)

	if logErr := r.store.AppendStepLog(ctx, step, success, message); logErr != nil {
		r.logger.Error().Err(logErr).Str("step", string(step)).Msg("failed to append step log")
	}

	if err != nil {
		r.logger.Error().Err(err).Str("step", string(step)).Dur("elapsed", elapsed).Msg("stage failed")
		return err
	}
	r.logger.Info().Str("step", string(step)).Str("result", message).Dur("elapsed", elapsed).Msg("stage complete")
	return nil
}

// Running reports whether a stage is currently in flight. The answer is
// advisory; RunStep still enforces the guard at execution time.
func (r *Runner) Running(step models.Step) bool {
	return r.guard.active(step)
}

// RunAll executes the stages in order. A stage that is already in flight
// aborts the whole run regardless of policy, since a concurrent invocation
// is already working on the same data.
func (r *Runner) RunAll(ctx context.Context) error {
	r.logger.Info().Msg("starting pipeline run")

	for _, step := range models.AllSteps() {
		err := r.RunStep(ctx, step)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrStageRunning) {
			return err
		}
		// A filter failure leaves the previous eligibility flags in place,
		// which downstream stages can still work with.
		if step == models.StepFilter {
			r.logger.Warn().Err(err).Msg("filter failed, continuing with previous eligibility set")
			continue
		}
		if r.abortOnFailure {
			return fmt.Errorf("pipeline aborted at %s: %w", step, err)
		}
		r.logger.Error().Err(err).Str("step", string(step)).Msg("stage failed, continuing per policy")
	}

	if err := r.store.SetSetting(ctx, lastUpdatedKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		r.logger.Error().Err(err).Msg("failed to record last_updated setting")
	}

	r.logger.Info().Msg("pipeline run finished")
	return nil
}
