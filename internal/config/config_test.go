// Lanewise - Personalized Discovery Lanes for Media Catalogs
// Copyright 2026 Dan K. (dankeller)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/dankeller/lanewise

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 7470 {
		t.Errorf("Server.Port = %d, want 7470", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}

	// History defaults (URL empty - required field)
	if cfg.History.URL != "" {
		t.Errorf("History.URL should be empty by default, got %q", cfg.History.URL)
	}
	if cfg.History.PageLimit != 100 {
		t.Errorf("History.PageLimit = %d, want 100", cfg.History.PageLimit)
	}
	if cfg.History.Limit != 0 {
		t.Errorf("History.Limit = %d, want 0 (all)", cfg.History.Limit)
	}

	// Generation defaults (local mode)
	if cfg.Generation.Mode != "local" {
		t.Errorf("Generation.Mode = %q, want local", cfg.Generation.Mode)
	}
	if cfg.Generation.RetryLimit != 3 {
		t.Errorf("Generation.RetryLimit = %d, want 3", cfg.Generation.RetryLimit)
	}
	if cfg.Generation.Fanout != 4 {
		t.Errorf("Generation.Fanout = %d, want 4", cfg.Generation.Fanout)
	}

	if cfg.Lanes.ItemCount != 8 {
		t.Errorf("Lanes.ItemCount = %d, want 8", cfg.Lanes.ItemCount)
	}

	// Refresh defaults
	if cfg.Refresh.Interval != 12*time.Hour {
		t.Errorf("Refresh.Interval = %v, want 12h", cfg.Refresh.Interval)
	}
	if cfg.Refresh.ResponseCacheTTL != 30*time.Minute {
		t.Errorf("Refresh.ResponseCacheTTL = %v, want 30m", cfg.Refresh.ResponseCacheTTL)
	}
	if cfg.Refresh.PollInterval != time.Minute {
		t.Errorf("Refresh.PollInterval = %v, want 1m", cfg.Refresh.PollInterval)
	}

	// Taste defaults
	if cfg.Taste.DecayHalfLife != 180*24*time.Hour {
		t.Errorf("Taste.DecayHalfLife = %v, want 4320h", cfg.Taste.DecayHalfLife)
	}
	if cfg.Taste.Highlights != 12 {
		t.Errorf("Taste.Highlights = %d, want 12", cfg.Taste.Highlights)
	}
	if cfg.Taste.RelaxationSteps != 4 {
		t.Errorf("Taste.RelaxationSteps = %d, want 4", cfg.Taste.RelaxationSteps)
	}

	// Metadata defaults
	if cfg.Metadata.URL != "https://v3-cinemeta.strem.io" {
		t.Errorf("Metadata.URL = %q, want cinemeta default", cfg.Metadata.URL)
	}
	if cfg.Metadata.Concurrency != 8 {
		t.Errorf("Metadata.Concurrency = %d, want 8", cfg.Metadata.Concurrency)
	}

	// Security defaults (open by default for single-user deployments)
	if cfg.Security.AuthMode != "none" {
		t.Errorf("Security.AuthMode = %q, want none", cfg.Security.AuthMode)
	}
	if cfg.Security.RateLimitReqs != 100 {
		t.Errorf("Security.RateLimitReqs = %d, want 100", cfg.Security.RateLimitReqs)
	}

	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want info", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HISTORY_URL", "history.url"},
		{"HISTORY_API_KEY", "history.api_key"},
		{"GENERATION_MODE", "generation.mode"},
		{"GENERATION_RETRY_LIMIT", "generation.retry_limit"},
		{"LANE_ITEM_COUNT", "lanes.item_count"},
		{"REFRESH_INTERVAL", "refresh.interval"},
		{"RESPONSE_CACHE_TTL", "refresh.response_cache_ttl"},
		{"TASTE_DECAY_HALF_LIFE", "taste.decay_half_life"},
		{"METADATA_URL", "metadata.url"},
		{"STORE_PATH", "store.path"},
		{"AUTH_MODE", "security.auth_mode"},
		{"LOG_LEVEL", "logging.level"},
		{"HTTP_PORT", "server.port"},
		{"PATH", ""},             // unrelated env vars are skipped
		{"RANDOM_VARIABLE", ""},  // unknown keys map to nothing
		{"history_url", "history.url"}, // case-insensitive
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadEnvVars(t *testing.T) {
	os.Clearenv()

	os.Setenv("HISTORY_URL", "http://media.local:8080")
	os.Setenv("HISTORY_API_KEY", "test_api_key_12345")
	os.Setenv("HTTP_PORT", "9000")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("LANE_ITEM_COUNT", "12")
	os.Setenv("GENERATION_FANOUT", "2")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.History.URL != "http://media.local:8080" {
		t.Errorf("History.URL = %q, want http://media.local:8080", cfg.History.URL)
	}
	if cfg.History.APIKey != "test_api_key_12345" {
		t.Errorf("History.APIKey = %q, want test_api_key_12345", cfg.History.APIKey)
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Lanes.ItemCount != 12 {
		t.Errorf("Lanes.ItemCount = %d, want 12", cfg.Lanes.ItemCount)
	}
	if cfg.Generation.Fanout != 2 {
		t.Errorf("Generation.Fanout = %d, want 2", cfg.Generation.Fanout)
	}

	// Defaults still apply for unset values
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
	if cfg.Refresh.Interval != 12*time.Hour {
		t.Errorf("Refresh.Interval = %v, want 12h (default)", cfg.Refresh.Interval)
	}
}

func TestLoadConfigFile(t *testing.T) {
	os.Clearenv()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := `
history:
  url: http://file.local:8080
  api_key: file_key
lanes:
  item_count: 10
  overrides:
    movies-for-you:
      item_count: 20
    background-watching:
      disabled: true
refresh:
  interval: 6h
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	os.Setenv("CONFIG_PATH", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.History.URL != "http://file.local:8080" {
		t.Errorf("History.URL = %q, want http://file.local:8080", cfg.History.URL)
	}
	if cfg.Lanes.ItemCount != 10 {
		t.Errorf("Lanes.ItemCount = %d, want 10", cfg.Lanes.ItemCount)
	}
	if ov, ok := cfg.Lanes.Overrides["movies-for-you"]; !ok || ov.ItemCount != 20 {
		t.Errorf("Overrides[movies-for-you].ItemCount = %+v, want 20", ov)
	}
	if ov, ok := cfg.Lanes.Overrides["background-watching"]; !ok || !ov.Disabled {
		t.Errorf("Overrides[background-watching].Disabled = %+v, want true", ov)
	}
	if cfg.Refresh.Interval != 6*time.Hour {
		t.Errorf("Refresh.Interval = %v, want 6h", cfg.Refresh.Interval)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	os.Clearenv()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	configContent := `
history:
  url: http://file.local:8080
server:
  port: 8000
`
	if err := os.WriteFile(configPath, []byte(configContent), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	os.Setenv("CONFIG_PATH", configPath)
	os.Setenv("HTTP_PORT", "9999")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999 (env wins over file)", cfg.Server.Port)
	}
	if cfg.History.URL != "http://file.local:8080" {
		t.Errorf("History.URL = %q, want value from file", cfg.History.URL)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg := defaultConfig()
		cfg.History.URL = "http://media.local:8080"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid defaults", func(c *Config) {}, false},
		{"missing history url", func(c *Config) { c.History.URL = "" }, true},
		{"history url with path", func(c *Config) { c.History.URL = "http://x.local/api" }, true},
		{"bad scheme", func(c *Config) { c.History.URL = "ftp://x.local" }, true},
		{"port too high", func(c *Config) { c.Server.Port = 70000 }, true},
		{"port zero", func(c *Config) { c.Server.Port = 0 }, true},
		{"bad generation mode", func(c *Config) { c.Generation.Mode = "hybrid" }, true},
		{"remote without url", func(c *Config) { c.Generation.Mode = "remote" }, true},
		{"remote with url and model", func(c *Config) {
			c.Generation.Mode = "remote"
			c.Generation.URL = "https://api.backend.test/v1"
			c.Generation.Model = "test-model"
		}, false},
		{"remote without model", func(c *Config) {
			c.Generation.Mode = "remote"
			c.Generation.URL = "https://api.backend.test/v1"
		}, true},
		{"retry limit negative", func(c *Config) { c.Generation.RetryLimit = -1 }, true},
		{"fanout zero", func(c *Config) { c.Generation.Fanout = 0 }, true},
		{"item count zero", func(c *Config) { c.Lanes.ItemCount = 0 }, true},
		{"item count too high", func(c *Config) { c.Lanes.ItemCount = 101 }, true},
		{"override item count too high", func(c *Config) {
			c.Lanes.Overrides = map[string]LaneOverride{"movies-for-you": {ItemCount: 500}}
		}, true},
		{"refresh below floor", func(c *Config) { c.Refresh.Interval = 30 * time.Minute }, true},
		{"response cache below floor", func(c *Config) { c.Refresh.ResponseCacheTTL = time.Minute }, true},
		{"decay floor above one", func(c *Config) { c.Taste.DecayFloor = 1.5 }, true},
		{"relaxation steps too high", func(c *Config) { c.Taste.RelaxationSteps = 99 }, true},
		{"metadata url empty is fine", func(c *Config) { c.Metadata.URL = "" }, false},
		{"metadata concurrency zero", func(c *Config) { c.Metadata.Concurrency = 0 }, true},
		{"jwt without credentials", func(c *Config) { c.Security.AuthMode = "jwt" }, true},
		{"jwt with short secret", func(c *Config) {
			c.Security.AuthMode = "jwt"
			c.Security.AdminUsername = "admin"
			c.Security.AdminPassword = "password"
			c.Security.JWTSecret = "short"
		}, true},
		{"jwt fully configured", func(c *Config) {
			c.Security.AuthMode = "jwt"
			c.Security.AdminUsername = "admin"
			c.Security.AdminPassword = "password"
			c.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
		}, false},
		{"bad auth mode", func(c *Config) { c.Security.AuthMode = "oauth" }, true},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestFindConfigFile(t *testing.T) {
	os.Clearenv()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "custom.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  port: 7470\n"), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	os.Setenv("CONFIG_PATH", configPath)
	if got := findConfigFile(); got != configPath {
		t.Errorf("findConfigFile() = %q, want %q", got, configPath)
	}

	os.Setenv("CONFIG_PATH", filepath.Join(tmpDir, "missing.yaml"))
	got := findConfigFile()
	if got == filepath.Join(tmpDir, "missing.yaml") {
		t.Error("findConfigFile() returned a path that does not exist")
	}
}
