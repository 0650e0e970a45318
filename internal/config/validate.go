// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package config

import (
	"fmt"
	"net/url"
	"time"
)

// Tuning limits. Values outside these ranges are rejected at load rather
// than silently clamped, so a typo in an environment variable fails fast.
const (
	minRefreshInterval = time.Hour
	minResponseCache   = 5 * time.Minute
	minPollInterval    = 5 * time.Second

	maxLaneItemCount   = 100
	maxRetryLimit      = 10
	maxFanout          = 32
	maxConcurrency     = 64
	maxRelaxationSteps = 8

	minJWTSecretLen = 32
)

// Validate checks that the configuration is complete and internally
// consistent. Error messages name the environment variable to fix.
func (c *Config) Validate() error {
	validators := []func() error{
		c.validateServer,
		c.validateHistory,
		c.validateGeneration,
		c.validateLanes,
		c.validateRefresh,
		c.validateTaste,
		c.validateMetadata,
		c.validateSecurity,
		c.validateLogging,
	}
	for _, v := range validators {
		if err := v(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateHistory() error {
	if c.History.URL == "" {
		return fmt.Errorf("HISTORY_URL is required")
	}
	if err := validateBaseURL(c.History.URL, "HISTORY_URL", false); err != nil {
		return err
	}
	if c.History.PageLimit < 1 || c.History.PageLimit > 1000 {
		return fmt.Errorf("HISTORY_PAGE_LIMIT must be between 1 and 1000, got %d", c.History.PageLimit)
	}
	if c.History.Limit < 0 {
		return fmt.Errorf("HISTORY_LIMIT must be 0 (all) or positive, got %d", c.History.Limit)
	}
	if c.History.Timeout <= 0 {
		return fmt.Errorf("HISTORY_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateGeneration() error {
	switch c.Generation.Mode {
	case "local", "remote":
	default:
		return fmt.Errorf("GENERATION_MODE must be 'local' or 'remote', got %q", c.Generation.Mode)
	}
	if c.Generation.Mode == "remote" {
		if c.Generation.URL == "" {
			return fmt.Errorf("GENERATION_URL is required when GENERATION_MODE=remote")
		}
		// Chat-completions base URLs commonly carry a path (e.g. /api/v1)
		if err := validateBaseURL(c.Generation.URL, "GENERATION_URL", true); err != nil {
			return err
		}
		if c.Generation.Model == "" {
			return fmt.Errorf("GENERATION_MODEL is required when GENERATION_MODE=remote")
		}
	}
	if c.Generation.RetryLimit < 0 || c.Generation.RetryLimit > maxRetryLimit {
		return fmt.Errorf("GENERATION_RETRY_LIMIT must be between 0 and %d, got %d", maxRetryLimit, c.Generation.RetryLimit)
	}
	if c.Generation.Fanout < 1 || c.Generation.Fanout > maxFanout {
		return fmt.Errorf("GENERATION_FANOUT must be between 1 and %d, got %d", maxFanout, c.Generation.Fanout)
	}
	if c.Generation.RatePerMinute < 0 {
		return fmt.Errorf("GENERATION_RATE_PER_MINUTE must be 0 (unlimited) or positive, got %d", c.Generation.RatePerMinute)
	}
	if c.Generation.Timeout <= 0 {
		return fmt.Errorf("GENERATION_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateLanes() error {
	if c.Lanes.ItemCount < 1 || c.Lanes.ItemCount > maxLaneItemCount {
		return fmt.Errorf("LANE_ITEM_COUNT must be between 1 and %d, got %d", maxLaneItemCount, c.Lanes.ItemCount)
	}
	for key, ov := range c.Lanes.Overrides {
		if ov.ItemCount < 0 || ov.ItemCount > maxLaneItemCount {
			return fmt.Errorf("lanes.overrides.%s.item_count must be between 0 (inherit) and %d, got %d", key, maxLaneItemCount, ov.ItemCount)
		}
	}
	return nil
}

func (c *Config) validateRefresh() error {
	if c.Refresh.Interval < minRefreshInterval {
		return fmt.Errorf("REFRESH_INTERVAL must be at least %s, got %s", minRefreshInterval, c.Refresh.Interval)
	}
	if c.Refresh.ResponseCacheTTL < minResponseCache {
		return fmt.Errorf("RESPONSE_CACHE_TTL must be at least %s, got %s", minResponseCache, c.Refresh.ResponseCacheTTL)
	}
	if c.Refresh.PollInterval < minPollInterval {
		return fmt.Errorf("REFRESH_POLL_INTERVAL must be at least %s, got %s", minPollInterval, c.Refresh.PollInterval)
	}
	return nil
}

func (c *Config) validateTaste() error {
	if c.Taste.DecayHalfLife <= 0 {
		return fmt.Errorf("TASTE_DECAY_HALF_LIFE must be positive")
	}
	if c.Taste.DecayFloor < 0 || c.Taste.DecayFloor > 1 {
		return fmt.Errorf("TASTE_DECAY_FLOOR must be between 0 and 1, got %g", c.Taste.DecayFloor)
	}
	if c.Taste.Highlights < 1 || c.Taste.Highlights > 100 {
		return fmt.Errorf("TASTE_HIGHLIGHTS must be between 1 and 100, got %d", c.Taste.Highlights)
	}
	if c.Taste.RelaxationSteps < 0 || c.Taste.RelaxationSteps > maxRelaxationSteps {
		return fmt.Errorf("TASTE_RELAXATION_STEPS must be between 0 and %d, got %d", maxRelaxationSteps, c.Taste.RelaxationSteps)
	}
	return nil
}

func (c *Config) validateMetadata() error {
	if c.Metadata.URL != "" {
		if err := validateBaseURL(c.Metadata.URL, "METADATA_URL", false); err != nil {
			return err
		}
	}
	if c.Metadata.Concurrency < 1 || c.Metadata.Concurrency > maxConcurrency {
		return fmt.Errorf("METADATA_CONCURRENCY must be between 1 and %d, got %d", maxConcurrency, c.Metadata.Concurrency)
	}
	if c.Metadata.Timeout <= 0 {
		return fmt.Errorf("METADATA_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateSecurity() error {
	switch c.Security.AuthMode {
	case "none":
	case "jwt":
		if c.Security.AdminUsername == "" {
			return fmt.Errorf("ADMIN_USERNAME is required when AUTH_MODE=jwt")
		}
		if c.Security.AdminPassword == "" {
			return fmt.Errorf("ADMIN_PASSWORD is required when AUTH_MODE=jwt")
		}
		if len(c.Security.JWTSecret) < minJWTSecretLen {
			return fmt.Errorf("JWT_SECRET must be at least %d characters when AUTH_MODE=jwt", minJWTSecretLen)
		}
		if c.Security.SessionTimeout <= 0 {
			return fmt.Errorf("SESSION_TIMEOUT must be positive")
		}
	default:
		return fmt.Errorf("AUTH_MODE must be 'none' or 'jwt', got %q", c.Security.AuthMode)
	}
	if !c.Security.RateLimitDisabled {
		if c.Security.RateLimitReqs < 1 {
			return fmt.Errorf("RATE_LIMIT_REQUESTS must be positive, got %d", c.Security.RateLimitReqs)
		}
		if c.Security.RateLimitWindow <= 0 {
			return fmt.Errorf("RATE_LIMIT_WINDOW must be positive")
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Level {
	case "trace", "debug", "info", "warn", "warning", "error", "fatal":
	default:
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal; got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got %q", c.Logging.Format)
	}
	return nil
}

// validateBaseURL checks scheme and host. allowPath permits backends whose
// base URL includes a path prefix; otherwise only "" and "/" are accepted.
func validateBaseURL(rawURL, fieldName string, allowPath bool) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%s failed to parse: %w", fieldName, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s scheme must be http or https, got: %s", fieldName, parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s host is required", fieldName)
	}
	if !allowPath && parsed.Path != "" && parsed.Path != "/" {
		return fmt.Errorf("%s should be base URL only, remove path: %s", fieldName, parsed.Path)
	}
	if parsed.RawQuery != "" {
		return fmt.Errorf("%s should not contain query parameters, remove: ?%s", fieldName, parsed.RawQuery)
	}
	return nil
}
