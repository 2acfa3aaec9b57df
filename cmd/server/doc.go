// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
Package main is the entry point for the Stacksnap server.

Stacksnap captures and restores point-in-time snapshots of application
stacks: database dumps, triple store exports and the bags of files that
bundle them, all produced by short-lived containers driven through a
Docker Engine compatible management API.

# Application Architecture

The server runs under a Suture v4 supervisor tree:

	RootSupervisor ("stacksnap")
	├── MaintenanceSupervisor ("maintenance-layer")
	│   └── Audit scheduler (optional, AUDIT_INTERVAL > 0)
	└── APISupervisor ("api-layer")
	    └── HTTP Server (/api/v1, /healthz, /metrics)

Component initialization order:

 1. Configuration: Koanf v2 with defaults, config file and environment
 2. Logging: zerolog, bridged to slog for the supervisor
 3. Entity store: BadgerDB
 4. Container API client and orchestrator
 5. Triple store client and exporter
 6. Database dump coordinator and bag assembler
 7. Restore coordinator with one handler per bundle
 8. Auditor and snapshot workflow
 9. HTTP router and supervisor tree

# Configuration

Required:
  - CONTAINER_API_URL: Docker Engine API root

Common:
  - HTTP_PORT (default 8480)
  - PRIVATE_ROOT, PUBLIC_ROOT, SNAPSHOT_SUBPATH
  - TRIPLESTORE_URL, TRIPLESTORE_USERNAME, TRIPLESTORE_PASSWORD
  - AUDIT_INTERVAL (default 1h, 0 disables the scheduler)

See internal/config for the full list.

# Signal Handling

SIGINT and SIGTERM cancel the root context. The HTTP server drains
in-flight requests for HTTP_SHUTDOWN_TIMEOUT before the tree reports any
service that failed to stop.

# Example Usage

	export CONTAINER_API_URL=https://portainer.internal/api/endpoints/1/docker
	export CONTAINER_API_KEY=ptr_xxx
	export PRIVATE_ROOT=/data/private
	export TRIPLESTORE_URL=http://rdf4j:8080/rdf4j-server
	./stacksnap
*/
package main
