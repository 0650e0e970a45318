// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package config

import (
	"time"
)

// Config holds all application configuration, loaded from defaults, an
// optional YAML file, and environment variables.
//
// Configuration Loading Order (Koanf v2):
//  1. Defaults: built-in values for every optional setting
//  2. Config File: optional YAML file (config.yaml) for persistent settings
//  3. Environment Variables: override any setting
//
// Configuration Categories:
//
//  1. Upstream services:
//     - History: the media backend serving watch history and listings
//     - Generation: the remote generation backend (optional; local mode works without it)
//     - Metadata: the catalog metadata service used for enrichment
//
//  2. Pipeline tuning:
//     - Lanes: lane item counts and per-lane overrides
//     - Refresh: refresh cadence, response cache TTL, scheduler poll interval
//     - Taste: recency decay and highlight selection
//
//  3. Infrastructure:
//     - Server: HTTP listener
//     - Store: badger cache directory
//     - Security: authentication, rate limiting, CORS
//     - Logging: level and format
//
// Thread Safety:
// Config is immutable after Load() and safe for concurrent reads.
type Config struct {
	Server     ServerConfig     `koanf:"server"`
	History    HistoryConfig    `koanf:"history"`
	Generation GenerationConfig `koanf:"generation"`
	Lanes      LanesConfig      `koanf:"lanes"`
	Refresh    RefreshConfig    `koanf:"refresh"`
	Taste      TasteConfig      `koanf:"taste"`
	Metadata   MetadataConfig   `koanf:"metadata"`
	Store      StoreConfig      `koanf:"store"`
	Security   SecurityConfig   `koanf:"security"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ServerConfig holds the HTTP listener settings.
//
// Environment Variables:
//   - HTTP_HOST: bind address. Default: 0.0.0.0
//   - HTTP_PORT: listen port. Default: 7470
//   - HTTP_TIMEOUT: read/write timeout. Default: 30s
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// HistoryConfig holds the connection settings for the media backend that
// serves watch history and catalog listings. History is the primary taste
// signal; when it is unreachable the pipeline degrades to listing-free
// fallback generation rather than failing.
//
// Environment Variables:
//   - HISTORY_URL: backend base URL (e.g. https://api.trakt.tv). Required.
//   - HISTORY_API_KEY: API key sent with every request
//   - HISTORY_ACCESS_TOKEN: optional per-user bearer token
//   - HISTORY_PAGE_LIMIT: records per page when fetching history. Default: 100
//   - HISTORY_LIMIT: total history records per content type, 0 = all. Default: 0
//   - HISTORY_TIMEOUT: per-request timeout. Default: 30s
type HistoryConfig struct {
	URL         string        `koanf:"url"`
	APIKey      string        `koanf:"api_key"`
	AccessToken string        `koanf:"access_token"`
	PageLimit   int           `koanf:"page_limit"`
	Limit       int           `koanf:"limit"` // 0 = fetch everything
	Timeout     time.Duration `koanf:"timeout"`
}

// GenerationConfig controls which generator produces lane candidates and
// how hard it tries.
//
// Mode selects the primary path: "remote" calls the configured
// chat-completions backend per lane, "local" ranks the history provider's
// listings heuristically. Remote mode silently behaves like local mode for
// a cycle when the backend is exhausted; the fallback order never changes.
//
// Environment Variables:
//   - GENERATION_MODE: "local" or "remote". Default: local
//   - GENERATION_URL: chat-completions endpoint base URL (required for remote)
//   - GENERATION_API_KEY: bearer token for the backend
//   - GENERATION_MODEL: model identifier sent with each request
//   - GENERATION_TIMEOUT: per-call timeout; a timed-out call consumes a retry. Default: 120s
//   - GENERATION_RETRY_LIMIT: attempts per lane per cycle. Default: 3
//   - GENERATION_FANOUT: lanes generated concurrently per cycle. Default: 4
//   - GENERATION_RATE_PER_MINUTE: request budget toward the backend, 0 = unlimited. Default: 0
//   - GENERATION_SEED: fixed seed override; empty derives a fresh seed per cycle
type GenerationConfig struct {
	Mode          string        `koanf:"mode"`
	URL           string        `koanf:"url"`
	APIKey        string        `koanf:"api_key"`
	Model         string        `koanf:"model"`
	Timeout       time.Duration `koanf:"timeout"`
	RetryLimit    int           `koanf:"retry_limit"`
	Fanout        int           `koanf:"fanout"`
	RatePerMinute int           `koanf:"rate_per_minute"`
	SeedOverride  string        `koanf:"seed"`
}

// LaneOverride adjusts one lane of the built-in catalog. Overrides derive a
// copy of the shared definition; the catalog itself is immutable for the
// process lifetime.
type LaneOverride struct {
	Title       string `koanf:"title"`
	Description string `koanf:"description"`
	ItemCount   int    `koanf:"item_count"`
	Disabled    bool   `koanf:"disabled"`
}

// LanesConfig holds lane sizing and per-lane overrides.
//
// Overrides are keyed by lane key and only settable via the YAML config
// file; environment variables cannot express the nested map.
//
// Environment Variables:
//   - LANE_ITEM_COUNT: target items per lane, 1 to 100. Default: 8
type LanesConfig struct {
	ItemCount int                     `koanf:"item_count"`
	Overrides map[string]LaneOverride `koanf:"overrides"`
}

// RefreshConfig controls the refresh lifecycle.
//
// Environment Variables:
//   - REFRESH_INTERVAL: time between scheduled refreshes per profile, minimum 1h. Default: 12h
//   - RESPONSE_CACHE_TTL: freshness window inside which prepare is a no-op, minimum 5m. Default: 30m
//   - REFRESH_POLL_INTERVAL: how often the background scheduler scans for due profiles. Default: 60s
type RefreshConfig struct {
	Interval         time.Duration `koanf:"interval"`
	ResponseCacheTTL time.Duration `koanf:"response_cache_ttl"`
	PollInterval     time.Duration `koanf:"poll_interval"`
}

// TasteConfig tunes taste-profile construction. Half-life decay keeps the
// profile tracking what the user watches now rather than what they watched
// years ago; the floor prevents very old watches from vanishing entirely.
//
// Environment Variables:
//   - TASTE_DECAY_HALF_LIFE: age at which a watch counts half. Default: 4320h (180 days)
//   - TASTE_DECAY_FLOOR: minimum weight for any watch, 0 to 1. Default: 0.1
//   - TASTE_HIGHLIGHTS: recent titles kept as highlights. Default: 12
//   - TASTE_RELAXATION_STEPS: predicate relaxation rounds in the local generator. Default: 4
type TasteConfig struct {
	DecayHalfLife   time.Duration `koanf:"decay_half_life"`
	DecayFloor      float64       `koanf:"decay_floor"`
	Highlights      int           `koanf:"highlights"`
	RelaxationSteps int           `koanf:"relaxation_steps"`
}

// MetadataConfig holds the catalog metadata service settings used to
// enrich generated candidates with artwork and identifiers.
//
// Environment Variables:
//   - METADATA_URL: metadata service base URL, empty disables enrichment. Default: https://v3-cinemeta.strem.io
//   - METADATA_CONCURRENCY: concurrent lookups per cycle. Default: 8
//   - METADATA_TIMEOUT: per-lookup timeout. Default: 15s
type MetadataConfig struct {
	URL         string        `koanf:"url"`
	Concurrency int           `koanf:"concurrency"`
	Timeout     time.Duration `koanf:"timeout"`
}

// StoreConfig holds the badger cache settings.
//
// Environment Variables:
//   - STORE_PATH: directory for the badger database. Default: /data/lanewise
//   - STORE_IN_MEMORY: keep the store in memory, for tests and ephemeral runs. Default: false
type StoreConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// SecurityConfig holds authentication and request-limiting settings.
//
// AuthMode "none" leaves the read API open, which matches the typical
// single-user deployment behind a private network. AuthMode "jwt" protects
// the mutating endpoints with bearer tokens issued by the login endpoint.
//
// Environment Variables:
//   - AUTH_MODE: "none" or "jwt". Default: none
//   - ADMIN_USERNAME: admin login name (required for jwt mode)
//   - ADMIN_PASSWORD: admin password, plain or bcrypt hash (required for jwt mode)
//   - JWT_SECRET: HMAC signing secret, 32+ characters (required for jwt mode)
//   - SESSION_TIMEOUT: token lifetime. Default: 24h
//   - RATE_LIMIT_REQUESTS: requests allowed per window per IP. Default: 100
//   - RATE_LIMIT_WINDOW: rate limit window. Default: 1m
//   - DISABLE_RATE_LIMIT: disable rate limiting entirely. Default: false
//   - CORS_ORIGINS: comma-separated allowed origins. Default: *
type SecurityConfig struct {
	AuthMode          string        `koanf:"auth_mode"`
	AdminUsername     string        `koanf:"admin_username"`
	AdminPassword     string        `koanf:"admin_password"`
	JWTSecret         string        `koanf:"jwt_secret"`
	SessionTimeout    time.Duration `koanf:"session_timeout"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
	CORSOrigins       []string      `koanf:"cors_origins"`
}

// LoggingConfig holds log output settings.
//
// Environment Variables:
//   - LOG_LEVEL: trace, debug, info, warn, error. Default: info
//   - LOG_FORMAT: json or console. Default: json
//   - LOG_CALLER: include caller file:line. Default: false
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}
