// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package config

import (
	"net"
	"strconv"
	"time"
)

// Config is the complete service configuration.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Container   ContainerConfig   `koanf:"container"`
	Triplestore TriplestoreConfig `koanf:"triplestore"`
	Storage     StorageConfig     `koanf:"storage"`
	Dump        DumpConfig        `koanf:"dump"`
	Audit       AuditConfig       `koanf:"audit"`
	Logging     LoggingConfig     `koanf:"logging"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"min=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"min=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`

	// RequestCeilingSeconds bounds how long one request may wait on
	// containers. 0 means unlimited.
	RequestCeilingSeconds int `koanf:"request_ceiling_seconds" validate:"min=0"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitReqs     int           `koanf:"rate_limit_reqs" validate:"min=0"`
	MutationLimitReqs int           `koanf:"mutation_limit_reqs" validate:"min=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// Addr is host:port for net.Listen.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// ContainerConfig holds container management API settings
type ContainerConfig struct {
	APIURL            string        `koanf:"api_url" validate:"required,url"`
	APIKey            string        `koanf:"api_key"`
	Timeout           time.Duration `koanf:"timeout" validate:"min=0"`
	RequestsPerSecond float64       `koanf:"requests_per_second" validate:"min=0"`
	Burst             int           `koanf:"burst" validate:"min=0"`

	// SleepIntervalSeconds between container state polls. 0 selects the default.
	SleepIntervalSeconds int `koanf:"sleep_interval" validate:"min=0,max=3600"`

	DefaultContainer string `koanf:"default_container"`
	HelperImage      string `koanf:"helper_image"`
	HelperUser       string `koanf:"helper_user"`

	// FileOwner runs dump pipelines inside application containers.
	FileOwner string `koanf:"file_owner"`
}

// TriplestoreConfig holds RDF4J server settings
type TriplestoreConfig struct {
	URL      string        `koanf:"url" validate:"omitempty,url"`
	Username string        `koanf:"username"`
	Password string        `koanf:"password"`
	Timeout  time.Duration `koanf:"timeout" validate:"min=0"`
}

// StorageConfig holds filesystem layout and entity store settings
type StorageConfig struct {
	PrivateRoot          string        `koanf:"private_root" validate:"required"`
	PublicRoot           string        `koanf:"public_root"`
	TemporaryRoot        string        `koanf:"temporary_root"`
	SnapshotSubpath      string        `koanf:"snapshot_subpath" validate:"required"`
	PublicURLBase        string        `koanf:"public_url_base" validate:"omitempty,url"`
	HostPrivateRoot      string        `koanf:"host_private_root"`
	ContainerPrivateRoot string        `koanf:"container_private_root"`
	StorePath            string        `koanf:"store_path" validate:"required"`
	RestoreTempDir       string        `koanf:"restore_temp_dir"`
	DownloadTimeout      time.Duration `koanf:"download_timeout" validate:"min=0"`
}

// DumpConfig holds database dump tooling settings
type DumpConfig struct {
	Tool              string   `koanf:"tool" validate:"required"`
	RestoreTool       string   `koanf:"restore_tool" validate:"required"`
	Compressor        string   `koanf:"compressor" validate:"required"`
	Shell             string   `koanf:"shell" validate:"required"`
	ServiceKeyPattern string   `koanf:"service_key_pattern" validate:"required,contains=%s"`
	CacheClear        []string `koanf:"cache_clear"`
}

// AuditConfig holds integrity audit settings
type AuditConfig struct {
	GracePeriod    time.Duration `koanf:"grace_period" validate:"min=0"`
	PseudoPatterns []string      `koanf:"pseudo_patterns"`

	// Interval between scheduled audit passes. 0 disables scheduling.
	Interval time.Duration `koanf:"interval" validate:"min=0"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn error fatal panic"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}
