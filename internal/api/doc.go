// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
Package api provides the operator HTTP surface built on the Chi router.

Routes:

	GET  /healthz                         liveness and entity store check
	GET  /metrics                         Prometheus metrics
	POST /api/v1/snapshots                create a snapshot of a stack or component
	GET  /api/v1/snapshots                list snapshot records
	GET  /api/v1/snapshots/{id}           fetch one snapshot record
	POST /api/v1/snapshots/{id}/verify    verify the bag checksum
	POST /api/v1/snapshots/{id}/restore   restore; body must be {"confirm": true}
	POST /api/v1/restore/bag              restore a component from a bag URI or URL
	GET  /api/v1/audit                    run the integrity audit
	POST /api/v1/audit/cleanup            bulk or safe cleanup, dry-run aware

Every response uses the models.APIResponse envelope. Failed operation
results map to HTTP status codes by failure kind, see statusForKind.

The operator on whose behalf a request runs is taken from the
X-Operator header and recorded in the request context for logging and
ownership checks. It also names the owner directory of new snapshots, so
values that are not a single path segment are dropped.
*/
package api
