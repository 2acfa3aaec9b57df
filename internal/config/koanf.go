// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

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

// DefaultConfigPaths lists the paths where config files are searched in order of priority.
// The first file found will be used.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/stacksnap/config.yaml",
	"/etc/stacksnap/config.yml",
}

// ConfigPathEnvVar is the environment variable that can override the config file path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config struct with all default values.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:              "0.0.0.0",
			Port:              8480,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      0, // snapshot creation can outlast any fixed write timeout
			ShutdownTimeout:   30 * time.Second,
			CORSOrigins:       []string{},
			RateLimitReqs:     100,
			MutationLimitReqs: 10,
			RateLimitWindow:   time.Minute,
		},
		Container: ContainerConfig{
			Timeout:              30 * time.Second,
			RequestsPerSecond:    10,
			Burst:                5,
			SleepIntervalSeconds: 5,
			HelperImage:          "alpine:3.20",
			FileOwner:            "www-data",
		},
		Triplestore: TriplestoreConfig{
			Timeout: 10 * time.Minute,
		},
		Storage: StorageConfig{
			PrivateRoot:     "/data/private",
			PublicRoot:      "/data/public",
			TemporaryRoot:   "/tmp/stacksnap",
			SnapshotSubpath: "snapshots",
			StorePath:       "/data/stacksnap/store",
			DownloadTimeout: 10 * time.Minute,
		},
		Dump: DumpConfig{
			Tool:              "mysqldump",
			RestoreTool:       "mysql",
			Compressor:        "gzip",
			Shell:             "bash",
			ServiceKeyPattern: "%s_db_password",
		},
		Audit: AuditConfig{
			GracePeriod: 10 * time.Minute,
			Interval:    time.Hour,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load loads configuration using Koanf v2 with layered sources:
//  1. Defaults
//  2. Config file (optional, YAML)
//  3. Environment variables
//
// The result is validated before it is returned.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if configPath := findConfigFile(); configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	if err := k.Load(env.Provider("", ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

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

// findConfigFile returns the first existing config file, or "".
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

// sliceConfigPaths are parsed from comma-separated strings when set by env.
var sliceConfigPaths = []string{
	"server.cors_origins",
	"dump.cache_clear",
	"audit.pseudo_patterns",
}

// processSliceFields converts comma-separated string values to slices for known slice fields.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
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
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// envMappings maps lower-cased environment variable names to koanf paths.
var envMappings = map[string]string{
	// Server
	"http_host":               "server.host",
	"http_port":               "server.port",
	"http_read_timeout":       "server.read_timeout",
	"http_write_timeout":      "server.write_timeout",
	"http_shutdown_timeout":   "server.shutdown_timeout",
	"request_ceiling_seconds": "server.request_ceiling_seconds",
	"cors_origins":            "server.cors_origins",
	"rate_limit_requests":     "server.rate_limit_reqs",
	"mutation_limit_requests": "server.mutation_limit_reqs",
	"rate_limit_window":       "server.rate_limit_window",
	"disable_rate_limit":      "server.rate_limit_disabled",

	// Container management API
	"container_api_url":             "container.api_url",
	"container_api_key":             "container.api_key",
	"container_api_timeout":         "container.timeout",
	"container_requests_per_second": "container.requests_per_second",
	"container_burst":               "container.burst",
	"container_sleep_interval":      "container.sleep_interval",
	"default_container":             "container.default_container",
	"helper_image":                  "container.helper_image",
	"helper_user":                   "container.helper_user",
	"file_owner":                    "container.file_owner",

	// Triple store
	"triplestore_url":      "triplestore.url",
	"triplestore_username": "triplestore.username",
	"triplestore_password": "triplestore.password",
	"triplestore_timeout":  "triplestore.timeout",

	// Storage
	"private_root":           "storage.private_root",
	"public_root":            "storage.public_root",
	"temporary_root":         "storage.temporary_root",
	"snapshot_subpath":       "storage.snapshot_subpath",
	"public_url_base":        "storage.public_url_base",
	"host_private_root":      "storage.host_private_root",
	"container_private_root": "storage.container_private_root",
	"store_path":             "storage.store_path",
	"restore_temp_dir":       "storage.restore_temp_dir",
	"download_timeout":       "storage.download_timeout",

	// Dumps
	"dump_tool":           "dump.tool",
	"restore_tool":        "dump.restore_tool",
	"dump_compressor":     "dump.compressor",
	"dump_shell":          "dump.shell",
	"service_key_pattern": "dump.service_key_pattern",
	"cache_clear_command": "dump.cache_clear",

	// Audit
	"audit_grace_period":    "audit.grace_period",
	"audit_pseudo_patterns": "audit.pseudo_patterns",
	"audit_interval":        "audit.interval",

	// Logging
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"log_caller": "logging.caller",
}

// envTransformFunc maps an environment variable name to its koanf path.
// Unmapped names return "" so koanf skips them.
func envTransformFunc(key string) string {
	return envMappings[strings.ToLower(key)]
}
