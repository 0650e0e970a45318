// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/google/uuid"

	"github.com/dankeller/lanewise/internal/auth"
	"github.com/dankeller/lanewise/internal/config"
	"github.com/dankeller/lanewise/internal/logging"
	"github.com/dankeller/lanewise/internal/metrics"
)

type contextKey string

const usernameKey contextKey = "username"

// loginRateLimit is the dedicated login throttle, much stricter than the
// global limit so brute-force attempts exhaust it long before the API
// limit matters.
var loginRateLimit = struct {
	requests int
	window   time.Duration
}{requests: 5, window: 5 * time.Minute}

// Middleware bundles the Chi-compatible middleware the router mounts.
// CORS and rate limits come from SecurityConfig; an empty origin list
// means no cross-origin access rather than a wildcard.
type Middleware struct {
	security *config.SecurityConfig
	cors     func(http.Handler) http.Handler
	jwt      *auth.JWTManager
}

// NewMiddleware builds the middleware set. jwtManager may be nil when
// auth is disabled; Authenticate then passes everything through.
func NewMiddleware(security *config.SecurityConfig, jwtManager *auth.JWTManager) *Middleware {
	corsHandler := cors.Handler(cors.Options{
		AllowedOrigins:   security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "If-None-Match"},
		ExposedHeaders:   []string{"ETag"},
		AllowCredentials: false,
		MaxAge:           86400,
	})

	return &Middleware{
		security: security,
		cors:     corsHandler,
		jwt:      jwtManager,
	}
}

// CORS returns the go-chi/cors handler configured from SecurityConfig.
func (m *Middleware) CORS() func(http.Handler) http.Handler {
	return m.cors
}

// RateLimit returns the global per-IP limiter, or a no-op when disabled.
func (m *Middleware) RateLimit() func(http.Handler) http.Handler {
	if m.security.RateLimitDisabled {
		return passthrough
	}

	return httprate.Limit(
		m.security.RateLimitReqs,
		m.security.RateLimitWindow,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

// RateLimitLogin returns the stricter limiter for the login endpoint.
func (m *Middleware) RateLimitLogin() func(http.Handler) http.Handler {
	if m.security.RateLimitDisabled {
		return passthrough
	}

	return httprate.Limit(
		loginRateLimit.requests,
		loginRateLimit.window,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

// Authenticate enforces a Bearer token on the wrapped routes. It is a
// no-op when auth_mode is "none" (m.jwt nil), matching the config
// default for single-user home deployments.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	if m.jwt == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "missing bearer token")
			return
		}

		claims, err := m.jwt.ValidateToken(token)
		if err != nil {
			logging.Warn().
				Str("path", sanitizeLogValue(r.URL.Path)).
				Str("remote_addr", r.RemoteAddr).
				Msg("Rejected invalid token")
			respondError(w, http.StatusUnauthorized, "AUTHENTICATION_ERROR", "invalid or expired token")
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, claims.Username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestID tags every request with an ID for log correlation, reusing
// the caller's X-Request-ID when present.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", requestID)
		ctx := context.WithValue(r.Context(), chimiddleware.RequestIDKey, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestMetrics records per-request Prometheus metrics and an access
// log line. The route pattern, not the raw path, keys the metrics so
// profile IDs do not explode label cardinality.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		metrics.TrackActiveRequest(true)
		defer metrics.TrackActiveRequest(false)

		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		pattern := chi.RouteContext(r.Context()).RoutePattern()
		if pattern == "" {
			pattern = "unmatched"
		}

		duration := time.Since(started)
		metrics.RecordAPIRequest(r.Method, pattern, strconv.Itoa(ww.Status()), duration)

		logging.Debug().
			Str("method", r.Method).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Int("status", ww.Status()).
			Dur("duration", duration).
			Msg("Request handled")
	})
}

// SecurityHeaders adds the standard hardening headers to API responses.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		next.ServeHTTP(w, r)
	})
}

func passthrough(next http.Handler) http.Handler {
	return next
}

func rateLimitExceeded(w http.ResponseWriter, _ *http.Request) {
	respondError(w, http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "too many requests")
}
