// Agentfleet - Agent Process Supervisor
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/agentfleet

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/agentfleet/internal/config"
	"github.com/tomtom215/agentfleet/internal/middleware"
	"github.com/tomtom215/agentfleet/internal/models"
)

// StatusSource is the read side of a running supervisor.
type StatusSource interface {
	Status() models.FleetStatus
	Worker(name string) (models.WorkerStatus, bool)
}

// Router serves the status API.
type Router struct {
	handler *Handler
	cfg     config.StatusConfig
}

// NewRouter creates a router over source.
func NewRouter(source StatusSource, cfg config.StatusConfig) *Router {
	return &Router{
		handler: NewHandler(source),
		cfg:     cfg,
	}
}

// Handler builds the chi route tree.
func (router *Router) Handler() http.Handler {
	r := chi.NewRouter()

	// ========================
	// Global Middleware Stack
	// ========================
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.PrometheusMetrics)

	r.Get("/health", router.handler.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// ========================
	// Fleet Status Endpoints
	// ========================
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(router.corsMiddleware())
		r.Use(router.rateLimit())
		r.Use(apiSecurityHeaders)

		r.Get("/fleet", router.handler.Fleet)
		r.Get("/workers", router.handler.Workers)
		r.Get("/workers/{name}", router.handler.Worker)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusNotFound, "NOT_FOUND", "No such endpoint")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		respondError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed")
	})

	return r
}

func (router *Router) corsMiddleware() func(http.Handler) http.Handler {
	return cors.Handler(cors.Options{
		AllowedOrigins: router.cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         int((24 * time.Hour).Seconds()),
	})
}

func (router *Router) rateLimit() func(http.Handler) http.Handler {
	if router.cfg.RateLimitRequests <= 0 || router.cfg.RateLimitWindow <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		router.cfg.RateLimitRequests,
		router.cfg.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, _ *http.Request) {
			respondError(w, http.StatusTooManyRequests, "RATE_LIMITED", "Too many requests")
		}),
	)
}

// apiSecurityHeaders adds the headers every JSON response carries.
func apiSecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "no-referrer")
		next.ServeHTTP(w, r)
	})
}
