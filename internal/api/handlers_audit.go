// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package api

import (
	"net/http"
	"time"

	"github.com/tomtom215/stacksnap/internal/audit"
	"github.com/tomtom215/stacksnap/internal/result"
)

// Cleanup modes.
const (
	CleanupSnapshots = "snapshots"
	CleanupFiles     = "files"
	CleanupSafe      = "safe"
)

// CleanupRequest is the body of POST /api/v1/audit/cleanup.
//
// DryRun defaults to true; deleting requires an explicit false.
type CleanupRequest struct {
	Mode               string   `json:"mode" validate:"required,oneof=snapshots files safe"`
	IDs                []string `json:"ids" validate:"omitempty,max=1000,dive,required"`
	DryRun             *bool    `json:"dry_run"`
	NewSnapshotID      string   `json:"new_snapshot_id"`
	GracePeriodSeconds int      `json:"grace_period_seconds" validate:"min=0,max=2592000"`
}

func (c CleanupRequest) dryRun() bool {
	return c.DryRun == nil || *c.DryRun
}

// Audit runs all detectors.
// GET /api/v1/audit
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	report, res := h.auditor.Audit(r.Context())
	respondResult(w, r, res, report)
}

// Cleanup runs a bulk or safe cleanup.
// POST /api/v1/audit/cleanup
func (h *Handler) Cleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if !decodeBody(w, r, &req, false) || !validateRequest(w, r, &req) {
		return
	}

	var (
		data interface{}
		res  result.Result
	)
	switch req.Mode {
	case CleanupSnapshots, CleanupFiles:
		if len(req.IDs) == 0 {
			respondError(w, r, http.StatusBadRequest, "VALIDATION_ERROR", "ids is required for "+req.Mode+" cleanup", nil)
			return
		}
		var out *audit.CleanupResult
		if req.Mode == CleanupSnapshots {
			out, res = h.auditor.CleanupOrphanedSnapshots(r.Context(), req.IDs, req.dryRun())
		} else {
			out, res = h.auditor.CleanupOrphanedFiles(r.Context(), req.IDs, req.dryRun())
		}
		data = out
	case CleanupSafe:
		op, ok := operator(w, r)
		if !ok {
			return
		}
		data, res = h.auditor.SafeCleanupAfterSnapshotCreation(r.Context(), audit.SafeCleanupRequest{
			OperatorID:    op,
			NewSnapshotID: req.NewSnapshotID,
			GracePeriod:   time.Duration(req.GracePeriodSeconds) * time.Second,
			DryRun:        req.dryRun(),
		})
	}
	respondResult(w, r, res, data)
}
