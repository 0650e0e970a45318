// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

// Package api exposes the discovery pipeline over HTTP: profile refresh
// and status, lane retrieval, JWT login, health probes, Prometheus
// metrics, and the Swagger UI. Routing is Chi with middleware from the
// Chi ecosystem rather than hand-rolled equivalents.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger/v2"

	"github.com/dankeller/lanewise/internal/auth"
	"github.com/dankeller/lanewise/internal/config"
)

// NewRouter assembles the full route tree. jwtManager and creds are nil
// when auth_mode is "none"; protected routes then serve without tokens
// and the login endpoint returns a validation error.
func NewRouter(cfg *config.Config, engine DiscoveryEngine, jwtManager *auth.JWTManager, creds *auth.CredentialChecker, version string) http.Handler {
	handlers := NewHandlers(engine, jwtManager, creds, version)
	mw := NewMiddleware(&cfg.Security, jwtManager)

	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(mw.CORS())
	r.Use(RequestMetrics)

	r.Get("/health", handlers.Health)
	r.Get("/health/live", handlers.Liveness)
	r.Get("/health/ready", handlers.Readiness)

	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mw.RateLimit())

		// Alias for clients that only talk to the /api/v1 prefix.
		r.Get("/health", handlers.Health)

		r.With(mw.RateLimitLogin()).Post("/auth/login", handlers.Login)

		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate)

			r.Route("/profiles/{profileID}", func(r chi.Router) {
				r.Post("/refresh", handlers.RefreshProfile)
				r.Get("/", handlers.ProfileStatus)
				r.Get("/lanes", handlers.ListLanes)
				r.Get("/lanes/{laneKey}", handlers.GetLane)
			})
		})
	})

	return r
}
