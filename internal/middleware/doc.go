// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
Package middleware provides HTTP middleware for the operator API.

Key Components:

  - RequestID: request and correlation ID tracking for log tracing
  - Operator: records the X-Operator header as the acting operator
  - PrometheusMetrics: request count and latency instrumentation

The functions take and return http.HandlerFunc. The api package adapts
them to Chi's func(http.Handler) http.Handler form.

Usage Example:

	handler := middleware.RequestID(
	    middleware.Operator(
	        middleware.PrometheusMetrics(h.ListSnapshots),
	    ),
	)

Metrics are labelled with the Chi route pattern when one is available so
that snapshot IDs in paths do not create a series per snapshot.
*/
package middleware
