// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// validConfig returns defaults plus the settings that have no default.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Container.APIURL = "https://portainer.example.org/api/endpoints/1/docker"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8480 {
		t.Errorf("Server.Port = %d, want 8480", cfg.Server.Port)
	}
	if cfg.Container.SleepIntervalSeconds != 5 {
		t.Errorf("Container.SleepIntervalSeconds = %d, want 5", cfg.Container.SleepIntervalSeconds)
	}
	if cfg.Audit.GracePeriod != 10*time.Minute {
		t.Errorf("Audit.GracePeriod = %v, want 10m", cfg.Audit.GracePeriod)
	}
	if cfg.Dump.ServiceKeyPattern != "%s_db_password" {
		t.Errorf("Dump.ServiceKeyPattern = %q", cfg.Dump.ServiceKeyPattern)
	}
	if cfg.Storage.SnapshotSubpath != "snapshots" {
		t.Errorf("Storage.SnapshotSubpath = %q, want snapshots", cfg.Storage.SnapshotSubpath)
	}
	if err := validConfig().Validate(); err != nil {
		t.Errorf("defaults plus API URL should validate: %v", err)
	}
}

func TestLoadRequiresContainerAPI(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("CONTAINER_API_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected validation error without CONTAINER_API_URL")
	}
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv(ConfigPathEnvVar, "")
	t.Setenv("CONTAINER_API_URL", "http://docker.internal:2375")
	t.Setenv("HTTP_PORT", "9000")
	t.Setenv("AUDIT_GRACE_PERIOD", "90s")
	t.Setenv("CORS_ORIGINS", "https://a.example.org, https://b.example.org,")
	t.Setenv("CACHE_CLEAR_COMMAND", "drush,cr")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("DISABLE_RATE_LIMIT", "true")
	t.Setenv("UNRELATED_VARIABLE", "ignored")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Audit.GracePeriod != 90*time.Second {
		t.Errorf("Audit.GracePeriod = %v, want 90s", cfg.Audit.GracePeriod)
	}
	if got := strings.Join(cfg.Server.CORSOrigins, "|"); got != "https://a.example.org|https://b.example.org" {
		t.Errorf("Server.CORSOrigins = %v", cfg.Server.CORSOrigins)
	}
	if got := strings.Join(cfg.Dump.CacheClear, " "); got != "drush cr" {
		t.Errorf("Dump.CacheClear = %v", cfg.Dump.CacheClear)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if !cfg.Server.RateLimitDisabled {
		t.Error("Server.RateLimitDisabled should be true")
	}
	if cfg.Storage.PrivateRoot != "/data/private" {
		t.Errorf("unset values keep defaults, got PrivateRoot %q", cfg.Storage.PrivateRoot)
	}
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stacksnap.yaml")
	yaml := `
container:
  api_url: http://docker.internal:2375
  sleep_interval: 2
storage:
  private_root: /srv/private
  snapshot_subpath: backups/snapshots
audit:
  grace_period: 5m
  pseudo_patterns:
    - "^scratch"
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv(ConfigPathEnvVar, path)
	t.Setenv("PRIVATE_ROOT", "/srv/override")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Container.SleepIntervalSeconds != 2 {
		t.Errorf("SleepIntervalSeconds = %d, want 2", cfg.Container.SleepIntervalSeconds)
	}
	if cfg.Storage.SnapshotSubpath != "backups/snapshots" {
		t.Errorf("SnapshotSubpath = %q", cfg.Storage.SnapshotSubpath)
	}
	if cfg.Storage.PrivateRoot != "/srv/override" {
		t.Errorf("environment should win over file, got %q", cfg.Storage.PrivateRoot)
	}
	if cfg.Audit.GracePeriod != 5*time.Minute {
		t.Errorf("GracePeriod = %v, want 5m", cfg.Audit.GracePeriod)
	}
	if len(cfg.Audit.PseudoPatterns) != 1 || cfg.Audit.PseudoPatterns[0] != "^scratch" {
		t.Errorf("PseudoPatterns = %v", cfg.Audit.PseudoPatterns)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "Port"},
		{"bad api url", func(c *Config) { c.Container.APIURL = "not a url" }, "APIURL"},
		{"relative private root", func(c *Config) { c.Storage.PrivateRoot = "data" }, "PRIVATE_ROOT"},
		{"absolute subpath", func(c *Config) { c.Storage.SnapshotSubpath = "/snapshots" }, "SNAPSHOT_SUBPATH"},
		{"escaping subpath", func(c *Config) { c.Storage.SnapshotSubpath = "../elsewhere" }, "SNAPSHOT_SUBPATH"},
		{"half credentials", func(c *Config) { c.Triplestore.Username = "admin" }, "TRIPLESTORE_PASSWORD"},
		{"credentials without url", func(c *Config) {
			c.Triplestore.Username, c.Triplestore.Password = "admin", "secret"
		}, "TRIPLESTORE_URL"},
		{"bad pattern", func(c *Config) { c.Audit.PseudoPatterns = []string{"("} }, "AUDIT_PSEUDO_PATTERNS"},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }, "Level"},
		{"service key pattern without verb", func(c *Config) { c.Dump.ServiceKeyPattern = "db_password" }, "ServiceKeyPattern"},
		{"negative sleep", func(c *Config) { c.Container.SleepIntervalSeconds = -1 }, "SleepIntervalSeconds"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := map[string]string{
		"CONTAINER_API_URL":  "container.api_url",
		"log_format":         "logging.format",
		"AUDIT_GRACE_PERIOD": "audit.grace_period",
		"PATH":               "",
	}
	for in, want := range tests {
		if got := envTransformFunc(in); got != want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestServerAddr(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: 8480}
	if got := s.Addr(); got != "127.0.0.1:8480" {
		t.Errorf("Addr() = %q", got)
	}
}
