// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/lanewise/config.yaml",
	"/etc/lanewise/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with every default applied. Defaults load
// first, then the config file, then environment variables.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    7470,
			Timeout: 30 * time.Second,
		},
		History: HistoryConfig{
			URL:       "",
			APIKey:    "",
			PageLimit: 100,
			Limit:     0, // fetch the full history
			Timeout:   30 * time.Second,
		},
		Generation: GenerationConfig{
			Mode:          "local",
			URL:           "",
			APIKey:        "",
			Model:         "",
			Timeout:       120 * time.Second,
			RetryLimit:    3,
			Fanout:        4,
			RatePerMinute: 0, // unlimited
			SeedOverride:  "",
		},
		Lanes: LanesConfig{
			ItemCount: 8,
			Overrides: map[string]LaneOverride{},
		},
		Refresh: RefreshConfig{
			Interval:         12 * time.Hour,
			ResponseCacheTTL: 30 * time.Minute,
			PollInterval:     time.Minute,
		},
		Taste: TasteConfig{
			DecayHalfLife:   180 * 24 * time.Hour,
			DecayFloor:      0.1,
			Highlights:      12,
			RelaxationSteps: 4,
		},
		Metadata: MetadataConfig{
			URL:         "https://v3-cinemeta.strem.io",
			Concurrency: 8,
			Timeout:     15 * time.Second,
		},
		Store: StoreConfig{
			Path:     "/data/lanewise",
			InMemory: false,
		},
		Security: SecurityConfig{
			AuthMode:          "none",
			AdminUsername:     "",
			AdminPassword:     "",
			JWTSecret:         "",
			SessionTimeout:    24 * time.Hour,
			RateLimitReqs:     100,
			RateLimitWindow:   time.Minute,
			RateLimitDisabled: false,
			CORSOrigins:       []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values
//  2. Config File: optional YAML file (if present)
//  3. Environment Variables: highest priority
//
// The returned Config has passed Validate.
func Load() (*Config, error) {
	k := koanf.New(".")

	// Layer 1: defaults from struct
	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// Layer 2: optional config file
	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Layer 3: environment variables
	// HISTORY_URL -> history.url, LANE_ITEM_COUNT -> lanes.item_count
	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	// Comma-separated env values become slices for known slice fields
	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile returns the first config file that exists, checking the
// CONFIG_PATH override before the default search paths.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// they arrive as strings from the environment.
var sliceConfigPaths = []string{
	"security.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from YAML), leave it alone
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("failed to set %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
// Unknown variables map to "" and are skipped, which keeps unrelated
// environment noise out of the config tree.
//
// Examples:
//   - HISTORY_URL -> history.url
//   - GENERATION_RETRY_LIMIT -> generation.retry_limit
//   - LANE_ITEM_COUNT -> lanes.item_count
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",

		// History backend
		"history_url":          "history.url",
		"history_api_key":      "history.api_key",
		"history_access_token": "history.access_token",
		"history_page_limit":   "history.page_limit",
		"history_limit":        "history.limit",
		"history_timeout":      "history.timeout",

		// Generation backend
		"generation_mode":            "generation.mode",
		"generation_url":             "generation.url",
		"generation_api_key":         "generation.api_key",
		"generation_model":           "generation.model",
		"generation_timeout":         "generation.timeout",
		"generation_retry_limit":     "generation.retry_limit",
		"generation_fanout":          "generation.fanout",
		"generation_rate_per_minute": "generation.rate_per_minute",
		"generation_seed":            "generation.seed",

		// Lanes
		"lane_item_count": "lanes.item_count",

		// Refresh lifecycle
		"refresh_interval":      "refresh.interval",
		"response_cache_ttl":    "refresh.response_cache_ttl",
		"refresh_poll_interval": "refresh.poll_interval",

		// Taste profiling
		"taste_decay_half_life":  "taste.decay_half_life",
		"taste_decay_floor":      "taste.decay_floor",
		"taste_highlights":       "taste.highlights",
		"taste_relaxation_steps": "taste.relaxation_steps",

		// Metadata enrichment
		"metadata_url":         "metadata.url",
		"metadata_concurrency": "metadata.concurrency",
		"metadata_timeout":     "metadata.timeout",

		// Store
		"store_path":      "store.path",
		"store_in_memory": "store.in_memory",

		// Security
		"auth_mode":           "security.auth_mode",
		"admin_username":      "security.admin_username",
		"admin_password":      "security.admin_password",
		"jwt_secret":          "security.jwt_secret",
		"session_timeout":     "security.session_timeout",
		"rate_limit_requests": "security.rate_limit_reqs",
		"rate_limit_window":   "security.rate_limit_window",
		"disable_rate_limit":  "security.rate_limit_disabled",
		"cors_origins":        "security.cors_origins",

		// Logging
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
