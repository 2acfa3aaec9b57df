// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

// Package metrics holds the Prometheus instrumentation for stacksnap:
// container polling, snapshot creation and restore, SQL and N-Quads dumps,
// integrity audits, circuit breakers and the operator HTTP API.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Container Orchestration Metrics
	ContainerPollAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacksnap_container_poll_attempts_total",
			Help: "Total number of container/exec inspect polls",
		},
		[]string{"kind"}, // "container", "exec"
	)

	ContainerOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacksnap_container_outcomes_total",
			Help: "Terminal outcomes of waited containers",
		},
		[]string{"outcome"}, // "exited", "failed", "removed", "timeout", "error"
	)

	ContainerAPIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacksnap_container_api_requests_total",
			Help: "Requests sent to the container management API",
		},
		[]string{"operation", "status_code"},
	)

	ContainerAPIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stacksnap_container_api_duration_seconds",
			Help:    "Latency of container management API requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// Snapshot Metrics
	SnapshotDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stacksnap_snapshot_duration_seconds",
			Help:    "End-to-end duration of snapshot creation",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"status"}, // "completed", "failed"
	)

	DumpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacksnap_dumps_total",
			Help: "Component dumps produced",
		},
		[]string{"type_tag", "result"},
	)

	DumpBytes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stacksnap_dump_bytes",
			Help:    "Size of written dump files",
			Buckets: prometheus.ExponentialBuckets(1024, 4, 12),
		},
		[]string{"type_tag"},
	)

	RestoresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacksnap_restores_total",
			Help: "Restore attempts by outcome",
		},
		[]string{"result", "kind"},
	)

	ChecksumVerifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacksnap_checksum_verifications_total",
			Help: "Bag checksum verifications",
		},
		[]string{"result"}, // "match", "mismatch", "absent", "error"
	)

	// Audit Metrics
	AuditFindings = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "stacksnap_audit_findings",
			Help: "Findings of the most recent integrity audit",
		},
		[]string{"category"}, // "dangling", "pseudo", "orphaned_file"
	)

	AuditDeletions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stacksnap_audit_deletions_total",
			Help: "Snapshot records and files removed by cleanup",
		},
		[]string{"target", "mode"}, // target: "snapshot", "file"; mode: "bulk", "safe", "dry_run"
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: "success", "failure", "rejected"
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "Duration of API requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)
)

// RecordContainerAPI records one container management API round-trip.
func RecordContainerAPI(operation string, statusCode int, duration time.Duration) {
	ContainerAPIRequests.WithLabelValues(operation, strconv.Itoa(statusCode)).Inc()
	ContainerAPIDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordDump records a produced dump file.
func RecordDump(typeTag string, size int64, err error) {
	if err != nil {
		DumpsTotal.WithLabelValues(typeTag, "failure").Inc()
		return
	}
	DumpsTotal.WithLabelValues(typeTag, "success").Inc()
	DumpBytes.WithLabelValues(typeTag).Observe(float64(size))
}

// RecordSnapshot records the duration of one snapshot creation.
func RecordSnapshot(status string, duration time.Duration) {
	SnapshotDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordRestore records a restore attempt. kind is empty on success.
func RecordRestore(success bool, kind string) {
	if success {
		RestoresTotal.WithLabelValues("success", "").Inc()
		return
	}
	RestoresTotal.WithLabelValues("failure", kind).Inc()
}

// SetAuditFindings publishes the counts of the most recent audit.
func SetAuditFindings(dangling, pseudo, orphanedFiles int) {
	AuditFindings.WithLabelValues("dangling").Set(float64(dangling))
	AuditFindings.WithLabelValues("pseudo").Set(float64(pseudo))
	AuditFindings.WithLabelValues("orphaned_file").Set(float64(orphanedFiles))
}

// RecordAPIRequest records an operator API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
