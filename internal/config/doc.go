// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
Package config provides layered configuration for stacksnap.

# Configuration Sources

Load reads three layers, later layers winning:

 1. Built-in defaults (defaultConfig)
 2. An optional YAML file: $CONFIG_PATH, then config.yaml, then
    /etc/stacksnap/config.yaml
 3. Environment variables listed in envMappings

Unmapped environment variables are ignored.

# Environment Variables

Server:
  - HTTP_HOST, HTTP_PORT: listen address (default 0.0.0.0:8480)
  - HTTP_READ_TIMEOUT, HTTP_WRITE_TIMEOUT, HTTP_SHUTDOWN_TIMEOUT
  - REQUEST_CEILING_SECONDS: execution ceiling per request, 0 = unlimited
  - CORS_ORIGINS: comma-separated allowed origins
  - RATE_LIMIT_REQUESTS, RATE_LIMIT_WINDOW, DISABLE_RATE_LIMIT

Container management API:
  - CONTAINER_API_URL (required), CONTAINER_API_KEY
  - CONTAINER_SLEEP_INTERVAL: seconds between polls (default 5)
  - DEFAULT_CONTAINER: container used for dumps when a stack has no application
  - HELPER_IMAGE, HELPER_USER: bag helper image and uid:gid

Triple store:
  - TRIPLESTORE_URL, TRIPLESTORE_USERNAME, TRIPLESTORE_PASSWORD

Storage:
  - PRIVATE_ROOT (required), PUBLIC_ROOT, TEMPORARY_ROOT
  - SNAPSHOT_SUBPATH (default snapshots), PUBLIC_URL_BASE
  - HOST_PRIVATE_ROOT, CONTAINER_PRIVATE_ROOT
  - STORE_PATH: BadgerDB directory for entity records

Dumps:
  - DUMP_TOOL, RESTORE_TOOL, DUMP_COMPRESSOR, DUMP_SHELL
  - SERVICE_KEY_PATTERN (default %s_db_password)
  - CACHE_CLEAR_COMMAND: comma-separated argv run after a restore

Audit:
  - AUDIT_GRACE_PERIOD (default 10m)
  - AUDIT_PSEUDO_PATTERNS: comma-separated regular expressions
  - AUDIT_INTERVAL: scheduled audit interval (default 1h, 0 disables)

Logging:
  - LOG_LEVEL, LOG_FORMAT, LOG_CALLER

# Validation

Validate applies validator/v10 struct tags and then cross-field checks.
A configuration error aborts startup.
*/
package config
