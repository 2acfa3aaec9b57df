// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package api

import (
	"net/http"
	"time"
)

// HealthStatus is the data of GET /healthz.
type HealthStatus struct {
	Status         string  `json:"status"`
	StoreReachable bool    `json:"store_reachable"`
	UptimeSeconds  float64 `json:"uptime_seconds"`
}

// Health reports liveness and whether the entity store answers.
// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	_, err := h.snapshots.Snapshots(r.Context())
	status := HealthStatus{
		Status:         "healthy",
		StoreReachable: err == nil,
		UptimeSeconds:  time.Since(h.startTime).Seconds(),
	}

	code := http.StatusOK
	if err != nil {
		status.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	respondSuccess(w, r, code, status)
}
