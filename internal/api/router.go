// Storepulse - Software Marketplace Recommendation Pipeline
// Copyright 2026 Storepulse Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/storepulse/storepulse

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/storepulse/storepulse/internal/config"
	"github.com/storepulse/storepulse/internal/database"
	"github.com/storepulse/storepulse/internal/middleware"
)

// Router assembles the HTTP routes from the handler set and middleware.
type Router struct {
	handler  *Handler
	mw       *ChiMiddleware
	security *config.SecurityConfig
}

// NewRouter wires handlers and middleware for the API surface.
func NewRouter(db *database.DB, queue jobQueue, runner stageRunner, cfg *config.Config) *Router {
	return &Router{
		handler:  NewHandler(db, queue, runner, &cfg.API),
		mw:       NewChiMiddleware(&cfg.Security),
		security: &cfg.Security,
	}
}

// Setup builds the chi router with all routes and middleware attached.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global middleware, applied to every route in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	// CORS is global so OPTIONS preflight is answered before routing.
	r.Use(router.mw.CORS())

	// Health endpoints get a permissive limiter so monitoring probes are
	// never throttled by the general API limit.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(router.mw.RateLimitHealth())
		r.Get("/", router.handler.Health)
		r.Get("/live", router.handler.HealthLive)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Public catalog endpoints.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.mw.RateLimit())
		r.Use(middleware.Prometheus)

		r.Get("/categories", router.handler.Categories)
		r.Get("/category/{id}", router.handler.Category)
		r.Get("/items", router.handler.Items)
		r.Get("/items/{name}", router.handler.ItemByName)
		r.Get("/items/{name}/history", router.handler.ItemScoreHistory)
	})

	// Admin endpoints require a bearer JWT.
	r.Route("/api/v1/admin", func(r chi.Router) {
		r.Use(router.mw.RateLimit())
		r.Use(middleware.Prometheus)
		r.Use(RequireJWT(router.security.JWTSecret))

		r.Get("/category/{id}/excluded", router.handler.CategoryExcluded)
		r.Post("/category/{id}/items/{itemID}/exclude", router.handler.ExcludeItem)
		r.Post("/category/{id}/items/{itemID}/include", router.handler.IncludeItem)

		r.Get("/pipeline/status", router.handler.PipelineStatus)
		r.Get("/pipeline/log/{step}", router.handler.PipelineLog)
		r.Post("/pipeline/run/{step}", router.handler.RunStep)
		r.Get("/pipeline/jobs/{id}", router.handler.JobStatus)

		r.Route("/slices", func(r chi.Router) {
			r.Get("/", router.handler.SliceList)
			r.Post("/", router.handler.SliceCreate)
			r.Get("/{id}", router.handler.SliceGet)
			r.Put("/{id}", router.handler.SliceUpdate)
			r.Delete("/{id}", router.handler.SliceDelete)
			r.Get("/{id}/items", router.handler.SliceItems)
			r.Post("/{id}/items/{itemID}", router.handler.SliceAddItem)
			r.Delete("/{id}/items/{itemID}", router.handler.SliceRemoveItem)
		})

		r.Get("/settings/{key}", router.handler.SettingGet)
		r.Put("/settings/{key}", router.handler.SettingPut)
	})

	// Prometheus scrape endpoint.
	r.Handle("/metrics", promhttp.Handler())

	return r
}
