// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

// Package metrics exposes the Prometheus instrumentation for Storepulse:
// pipeline stage outcomes, upstream client health, job queue throughput,
// and API latency. All collectors are registered on the default registry
// via promauto and served from /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Pipeline stage metrics
	PipelineStageRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pipeline_stage_runs_total",
			Help: "Total pipeline stage runs by outcome",
		},
		[]string{"stage", "status"}, // status: "success", "failure", "rejected"
	)

	PipelineStageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pipeline_stage_duration_seconds",
			Help:    "Pipeline stage run duration in seconds",
			Buckets: []float64{0.5, 1, 5, 15, 30, 60, 120, 300, 600, 1800},
		},
		[]string{"stage"},
	)

	PipelineItemsEligible = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pipeline_items_eligible",
			Help: "Items marked eligible by the most recent filter run",
		},
	)

	// Collector metrics
	CollectorPagesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_pages_total",
			Help: "Total catalog pages fetched and upserted",
		},
	)

	CollectorItemsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "collector_items_total",
			Help: "Total catalog items upserted across all runs",
		},
	)

	// Enricher metrics
	EnricherBatchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_batches_total",
			Help: "Total enrichment batches by flow and outcome",
		},
		[]string{"flow", "status"}, // flow: "usage", "ratings"
	)

	// Upstream client metrics
	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Outbound request duration by upstream service",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"upstream"}, // "catalog", "metrics", "ratings"
	)

	UpstreamRequestErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_request_errors_total",
			Help: "Total outbound request errors by upstream service",
		},
		[]string{"upstream"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTrips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_trips_total",
			Help: "Total circuit breaker open transitions",
		},
		[]string{"name"},
	)

	// Job queue metrics
	JobsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_published_total",
			Help: "Total jobs published to the in-process queue",
		},
		[]string{"stage"},
	)

	JobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_completed_total",
			Help: "Total jobs completed by outcome",
		},
		[]string{"stage", "status"},
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)
)

// RecordStageRun records one stage run outcome with its duration.
func RecordStageRun(stage string, success bool, elapsed time.Duration) {
	status := "success"
	if !success {
		status = "failure"
	}
	PipelineStageRuns.WithLabelValues(stage, status).Inc()
	PipelineStageDuration.WithLabelValues(stage).Observe(elapsed.Seconds())
}

// RecordAPIRequest records one served API request.
func RecordAPIRequest(method, endpoint string, statusCode int, elapsed time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(elapsed.Seconds())
}

// RecordBreakerState maps a gobreaker state name onto the state gauge.
func RecordBreakerState(name, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	CircuitBreakerState.WithLabelValues(name).Set(v)
	if state == "open" {
		CircuitBreakerTrips.WithLabelValues(name).Inc()
	}
}
