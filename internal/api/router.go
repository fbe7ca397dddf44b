// Leasing Velocity Backend - Leasing Analytics Sync and Dashboard Service
// Copyright 2026 Stoa Group Engineering
// SPDX-License-Identifier: MIT

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/stoagroup/leasing-backend/internal/config"
)

// Router wires the handlers into a Chi route tree.
func Router(h *Handler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(corsHandler(h.cfg.Security.CORSOrigins))

	// Dashboard read path: open, cached, rate limited generously so a
	// fleet of dashboard clients can poll with conditional requests.
	r.Route("/api/leasing/dashboard", func(r chi.Router) {
		r.Use(rateLimit(h.cfg, 4))
		r.Get("/", h.Dashboard)
	})

	// Sync control plane: shared secret required on every route.
	r.Route("/api/leasing", func(r chi.Router) {
		r.Use(rateLimit(h.cfg, 1))
		r.Use(requireSecret(h.cfg.Security.SyncSecret))

		r.Post("/sync", h.PushSync)
		r.Post("/sync-from-domo", h.SyncFromDomo)
		r.Get("/sync-check", h.SyncCheck)
		r.Get("/sync-status", h.SyncStatus)
		r.Post("/rebuild-snapshot", h.RebuildSnapshot)
		r.Post("/wipe", h.Wipe)
		r.Get("/diagnostics/columns", h.DiagnosticsColumns)
	})

	// Webhook carries its own HMAC verification instead of the secret
	// header; Domo's webhook sender cannot set custom auth headers.
	r.With(rateLimit(h.cfg, 1)).Post("/api/leasing/webhook", h.Webhook)

	r.Route("/api/v1/health", func(r chi.Router) {
		r.Get("/live", h.HealthLive)
		r.Get("/ready", h.HealthReady)
		r.Get("/", h.Health)
	})

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "If-None-Match", "Authorization", secretHeader},
		ExposedHeaders: []string{"ETag", "X-Snapshot-Built-At"},
		MaxAge:         300,
	})
}

// rateLimit builds an IP-keyed limiter at a multiple of the configured
// base rate. Read-heavy routes get a higher multiple than the sync
// control plane.
func rateLimit(cfg *config.Config, multiplier int) func(http.Handler) http.Handler {
	if cfg.Security.RateLimitDisabled {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		cfg.Security.RateLimitRequests*multiplier,
		cfg.Security.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
	)
}
