// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

// Package main is the entry point for the Lanewise server.
//
// Lanewise builds personalized discovery lanes from a user's watch
// history. The server initializes components in the following order:
//
//  1. Configuration: environment variables and config file (Koanf v2)
//  2. Store: BadgerDB for lane results and refresh bookkeeping
//  3. History client: media backend with circuit breaker
//  4. Metadata resolver: optional catalog enrichment service
//  5. Discovery engine: the generation pipeline
//  6. Authentication: JWT or no-auth mode
//  7. HTTP server: REST API with Swagger documentation
//
// # Configuration
//
// Configuration is loaded via Koanf v2 with layered sources (highest
// priority wins): environment variables, config file (config.yaml),
// built-in defaults. HISTORY_URL is the only required setting.
//
// # Signal Handling
//
// The server shuts down gracefully on SIGINT and SIGTERM: the refresh
// scheduler stops, in-flight requests get a 10s drain window, and the
// store closes cleanly.
//
// # Example Usage
//
// Development without authentication:
//
//	export HISTORY_URL=https://api.trakt.tv
//	export HISTORY_API_KEY=your-client-id
//	export AUTH_MODE=none
//	./lanewise
//
// Production with JWT:
//
//	export HISTORY_URL=https://api.trakt.tv
//	export HISTORY_API_KEY=your-client-id
//	export JWT_SECRET=$(openssl rand -base64 32)
//	export ADMIN_USERNAME=admin
//	export ADMIN_PASSWORD=secure-password
//	./lanewise
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	_ "github.com/dankeller/lanewise/docs" // Import generated swagger docs
	"github.com/dankeller/lanewise/internal/api"
	"github.com/dankeller/lanewise/internal/auth"
	"github.com/dankeller/lanewise/internal/config"
	"github.com/dankeller/lanewise/internal/discovery"
	"github.com/dankeller/lanewise/internal/history"
	"github.com/dankeller/lanewise/internal/logging"
	"github.com/dankeller/lanewise/internal/metadata"
	"github.com/dankeller/lanewise/internal/metrics"
	"github.com/dankeller/lanewise/internal/store"
	"github.com/dankeller/lanewise/internal/supervisor"
	"github.com/dankeller/lanewise/internal/supervisor/services"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		// Config is not available yet, so this uses the default logger.
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().Str("version", version).Msg("Starting Lanewise")
	logging.Info().
		Str("history_url", cfg.History.URL).
		Str("generation_mode", cfg.Generation.Mode).
		Str("auth_mode", cfg.Security.AuthMode).
		Str("store_path", cfg.Store.Path).
		Msg("Configuration loaded")

	metrics.SetAppInfo(version, time.Now().UTC().Format(time.RFC3339), runtime.Version())
	startedAt := time.Now()

	st, err := store.Open(&cfg.Store)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := st.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing store")
		}
	}()
	logging.Info().Msg("Store opened")

	// The circuit breaker keeps a flapping history backend from
	// stalling every refresh cycle.
	histClient := history.NewBreakerClient(&cfg.History)
	if err := histClient.Ping(context.Background()); err != nil {
		logging.Warn().Err(err).Msg("History backend unreachable (will retry)")
	} else {
		logging.Info().Msg("Connected to history backend")
	}

	resolver := metadata.NewResolver(&cfg.Metadata)
	if resolver == nil {
		logging.Info().Msg("Metadata enrichment disabled (METADATA_URL not set)")
	}

	engine := discovery.New(cfg, st, histClient, resolver)

	var jwtManager *auth.JWTManager
	var creds *auth.CredentialChecker
	switch cfg.Security.AuthMode {
	case "jwt":
		jwtManager, err = auth.NewJWTManager(&cfg.Security)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize JWT manager")
		}
		creds, err = auth.NewCredentialChecker(cfg.Security.AdminUsername, cfg.Security.AdminPassword)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to initialize credential checker")
		}
		logging.Info().Msg("JWT authentication enabled")
	default:
		logging.Warn().Msg("Authentication is DISABLED (AUTH_MODE=none)")
		logging.Warn().Msg("All endpoints are publicly accessible. Use only on trusted networks.")
	}

	if cfg.Security.RateLimitDisabled {
		logging.Warn().Msg("Rate limiting is DISABLED (DISABLE_RATE_LIMIT=true)")
	}

	router := api.NewRouter(cfg, engine, jwtManager, creds, version)

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())

	// Pipeline layer: background refresh scheduling and store GC.
	tree.AddPipelineService(services.NewRefreshSchedulerService(engine, cfg.Refresh.PollInterval))
	tree.AddPipelineService(services.NewStoreGCService(st, 10*time.Minute))

	// API layer: the HTTP server restarts independently of the pipeline.
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")

	// Uptime gauge refresh, outside the tree since it can never fail.
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				metrics.UpdateUptime(startedAt)
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Application stopped gracefully")
}
