// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/metrics"
	"github.com/storepulse/storepulse/internal/models"
)

const (
	stepTopic   = "pipeline.steps"
	poisonTopic = "pipeline.steps.failed"
)

// stepRunner is the slice of the pipeline runner the queue needs.
type stepRunner interface {
	RunStep(ctx context.Context, step models.Step) error
}

// jobPayload is the wire form of a queued stage trigger.
type jobPayload struct {
	JobID string      `json:"job_id"`
	Step  models.Step `json:"step"`
}

// Queue runs manual stage triggers through an in-process pub/sub channel.
// Handlers retry transient failures with backoff; a trigger that exhausts
// its retries lands on a poison topic and is marked failed. Queue state is
// in-memory only: triggers are cheap to re-issue and the step log keeps
// the durable outcome record.
type Queue struct {
	pubSub   *gochannel.GoChannel
	router   *message.Router
	runner   stepRunner
	registry *registry
	logger   zerolog.Logger

	// now is injectable for deterministic tests.
	now func() time.Time
}

// NewQueue builds the queue, its router, and the step handlers.
func NewQueue(runner stepRunner, cfg *config.JobsConfig) (*Queue, error) {
	wmLogger := newWatermillLogger()

	pubSub := gochannel.NewGoChannel(gochannel.Config{
		OutputChannelBuffer: 16,
	}, wmLogger)

	router, err := message.NewRouter(message.RouterConfig{
		CloseTimeout: cfg.CloseTimeout,
	}, wmLogger)
	if err != nil {
		return nil, fmt.Errorf("failed to create job router: %w", err)
	}

	q := &Queue{
		pubSub:   pubSub,
		router:   router,
		runner:   runner,
		registry: newRegistry(),
		logger:   logging.With().Str("component", "jobs").Logger(),
		now:      time.Now,
	}

	// Later-added middleware sits closer to the handler, so Retry is added
	// after PoisonQueue: retry wraps the handler, and the poison topic only
	// sees errors that survived the retry budget.
	router.AddMiddleware(middleware.Recoverer)

	poison, err := middleware.PoisonQueue(pubSub, poisonTopic)
	if err != nil {
		return nil, fmt.Errorf("failed to create poison queue: %w", err)
	}
	router.AddMiddleware(poison)

	router.AddMiddleware(middleware.Retry{
		MaxRetries:      cfg.RetryCount,
		InitialInterval: cfg.RetryInterval,
		Logger:          wmLogger,
	}.Middleware)

	router.AddNoPublisherHandler("pipeline-step-runner", stepTopic, pubSub, q.handleStep)
	router.AddNoPublisherHandler("pipeline-step-poison", poisonTopic, pubSub, q.handlePoisoned)

	return q, nil
}

// Enqueue publishes a stage trigger and returns its job ID.
func (q *Queue) Enqueue(_ context.Context, step models.Step) (string, error) {
	if !models.ValidStep(string(step)) {
		return "", fmt.Errorf("cannot enqueue unknown step %q", step)
	}

	jobID := uuid.NewString()
	payload, err := json.Marshal(jobPayload{JobID: jobID, Step: step})
	if err != nil {
		return "", fmt.Errorf("failed to encode job payload: %w", err)
	}

	q.registry.add(jobID, step, q.now())
	if err := q.pubSub.Publish(stepTopic, message.NewMessage(jobID, payload)); err != nil {
		q.registry.markFinished(jobID, StatusFailed, "publish failed: "+err.Error(), q.now())
		return "", fmt.Errorf("failed to publish job: %w", err)
	}

	metrics.JobsPublished.WithLabelValues(string(step)).Inc()
	q.logger.Info().Str("job_id", jobID).Str("step", string(step)).Msg("job enqueued")
	return jobID, nil
}

// Status returns a snapshot of the job with the given ID.
func (q *Queue) Status(jobID string) (Job, bool) {
	return q.registry.get(jobID)
}

// Run processes jobs until the context is canceled.
func (q *Queue) Run(ctx context.Context) error {
	return q.router.Run(ctx)
}

// Running is closed once the router is accepting messages.
func (q *Queue) Running() chan struct{} {
	return q.router.Running()
}

// Close shuts the router and the channel down.
func (q *Queue) Close() error {
	if err := q.router.Close(); err != nil {
		return err
	}
	return q.pubSub.Close()
}

// handleStep executes one queued stage trigger. Errors propagate so the
// retry middleware can reschedule the message.
func (q *Queue) handleStep(msg *message.Message) error {
	var payload jobPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		// Undecodable payloads can never succeed; send them straight to
		// the poison topic by failing without retry value.
		return fmt.Errorf("invalid job payload: %w", err)
	}

	q.registry.markRunning(payload.JobID, q.now())

	if err := q.runner.RunStep(msg.Context(), payload.Step); err != nil {
		q.registry.markFinished(payload.JobID, StatusFailed, err.Error(), q.now())
		metrics.JobsCompleted.WithLabelValues(string(payload.Step), "failure").Inc()
		return err
	}

	q.registry.markFinished(payload.JobID, StatusSucceeded, "", q.now())
	metrics.JobsCompleted.WithLabelValues(string(payload.Step), "success").Inc()
	return nil
}

// handlePoisoned records the terminal failure of a trigger that exhausted
// its retries.
func (q *Queue) handlePoisoned(msg *message.Message) error {
	var payload jobPayload
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		q.logger.Error().Err(err).Msg("poisoned message with undecodable payload")
		return nil
	}

	reason := msg.Metadata.Get(middleware.ReasonForPoisonedKey)
	q.registry.markFinished(payload.JobID, StatusFailed, "retries exhausted: "+reason, q.now())
	q.logger.Error().Str("job_id", payload.JobID).Str("step", string(payload.Step)).Str("reason", reason).
		Msg("job failed permanently")
	return nil
}
