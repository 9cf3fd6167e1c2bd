// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

// Package main is the entry point for the Storepulse server.
//
// Storepulse ingests a software marketplace catalog, filters it by quality
// thresholds, enriches it with usage and rating signals, and solves a
// capacitated balanced assignment that places every eligible item into
// exactly one recommendation category. The results are served over a REST
// API alongside admin controls for curation and pipeline operation.
//
// The server initializes components in the following order:
//
//  1. Configuration: Koanf v2 layered defaults, YAML file, environment
//  2. Database: DuckDB storage for items, scores, history, and the step log
//  3. Pipeline: upstream clients, stage implementations, and the runner
//  4. Jobs: in-process queue for manual stage triggers
//  5. HTTP server: chi REST API with JWT-protected admin endpoints
//  6. Supervisor tree: scheduler, job router, and HTTP server under suture
//
// The server handles graceful shutdown on SIGINT and SIGTERM: it stops
// accepting connections, drains in-flight requests within the configured
// timeout, and closes the job router and database.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/storepulse/storepulse/internal/api"
	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/database"
	"github.com/storepulse/storepulse/internal/jobs"
	"github.com/storepulse/storepulse/internal/logging"
	"github.com/storepulse/storepulse/internal/pipeline"
	"github.com/storepulse/storepulse/internal/scoring"
	"github.com/storepulse/storepulse/internal/supervisor"
	"github.com/storepulse/storepulse/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("database", cfg.Database.Path).Msg("starting storepulse")

	db, err := database.New(&cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to open database")
	}
	defer func() {
		if err := db.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close database")
		}
	}()

	// Pipeline stages and upstream clients.
	collector := pipeline.NewCollector(pipeline.NewCatalogClient(&cfg.Catalog), db)
	filter := pipeline.NewFilter(db, cfg.Pipeline.ActivityWindowDays)
	enricher := pipeline.NewEnricher(
		pipeline.NewMetricsClient(&cfg.Metrics),
		pipeline.NewRatingsClient(&cfg.Ratings),
		db,
		cfg,
	)
	engine := scoring.NewEngine(db, cfg.Pipeline.HistoryRetentionDays)
	runner := pipeline.NewRunner(db, collector, filter, enricher, engine, &cfg.Pipeline)

	queue, err := jobs.NewQueue(runner, &cfg.Jobs)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to create job queue")
	}
	defer func() {
		if err := queue.Close(); err != nil {
			logging.Error().Err(err).Msg("failed to close job queue")
		}
	}()

	router := api.NewRouter(db, queue, runner, cfg)
	server := &http.Server{
		Addr:         cfg.ListenAddr(),
		Handler:      router.Setup(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	tree.AddPipelineService(services.NewJobsService(queue))
	tree.AddPipelineService(services.NewSchedulerService(
		runner,
		cfg.Pipeline.StartupDelay,
		cfg.Pipeline.ScheduleInterval,
	))
	tree.AddAPIService(services.NewHTTPService(server, cfg.Server.Timeout))
	logging.Info().Str("addr", server.Addr).Msg("supervisor tree assembled")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("service failed to stop within timeout")
	}

	logging.Info().Msg("storepulse stopped")
}
