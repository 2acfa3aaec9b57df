// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package api

import (
	"errors"
	"net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/middleware"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/workflow"
)

// CreateSnapshotRequest is the body of POST /api/v1/snapshots.
type CreateSnapshotRequest struct {
	StackID     string `json:"stack_id" validate:"required_without=ComponentID,excluded_with=ComponentID"`
	ComponentID string `json:"component_id" validate:"required_without=StackID"`
	Label       string `json:"label" validate:"required,max=255"`
	MachineName string `json:"machine_name" validate:"omitempty,max=128,machine_name"`
	SkipCleanup bool   `json:"skip_cleanup"`
}

// RestoreSnapshotRequest is the body of POST /api/v1/snapshots/{id}/restore.
type RestoreSnapshotRequest struct {
	Confirm bool `json:"confirm"`
}

// ListSnapshotsRequest holds the query parameters of GET /api/v1/snapshots.
type ListSnapshotsRequest struct {
	Owner  string `validate:"omitempty,max=255"`
	Status string `validate:"omitempty,oneof=pending completed failed"`
	Limit  int    `validate:"min=1,max=1000"`
}

// SnapshotList is the data of a snapshot listing.
type SnapshotList struct {
	Snapshots []*models.SnapshotRecord `json:"snapshots"`
	Total     int                      `json:"total"`
}

// operator returns the requesting operator or writes a 400.
func operator(w http.ResponseWriter, r *http.Request) (string, bool) {
	op := logging.OperatorFromContext(r.Context())
	if op == "" {
		respondError(w, r, http.StatusBadRequest, "OPERATOR_REQUIRED", "The "+middleware.OperatorHeader+" header is required", nil)
		return "", false
	}
	return op, true
}

// CreateSnapshot creates a snapshot owned by the requesting operator.
// POST /api/v1/snapshots
func (h *Handler) CreateSnapshot(w http.ResponseWriter, r *http.Request) {
	owner, ok := operator(w, r)
	if !ok {
		return
	}

	var req CreateSnapshotRequest
	if !decodeBody(w, r, &req, false) || !validateRequest(w, r, &req) {
		return
	}

	record, res := h.creator.CreateSnapshot(r.Context(), workflow.CreateRequest{
		StackID:     req.StackID,
		ComponentID: req.ComponentID,
		Label:       req.Label,
		MachineName: req.MachineName,
		Owner:       owner,
		SkipCleanup: req.SkipCleanup,
	})
	if res.Failed() {
		respondResult(w, r, res, nil)
		return
	}

	respondSuccess(w, r, http.StatusCreated, map[string]interface{}{
		"snapshot": record,
		"details":  res.Data,
	})
}

// ListSnapshots lists snapshot records, newest first.
// GET /api/v1/snapshots?owner=&status=&limit=
func (h *Handler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := ListSnapshotsRequest{
		Owner:  q.Get("owner"),
		Status: q.Get("status"),
		Limit:  getIntParam(r, "limit", 100),
	}
	if !validateRequest(w, r, &req) {
		return
	}

	all, err := h.snapshots.Snapshots(r.Context())
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "STORE_ERROR", "Failed to list snapshots", err)
		return
	}

	out := make([]*models.SnapshotRecord, 0, len(all))
	for _, s := range all {
		if req.Owner != "" && s.Owner != req.Owner {
			continue
		}
		if req.Status != "" && string(s.Status) != req.Status {
			continue
		}
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *models.SnapshotRecord) int {
		if c := b.Created.Compare(a.Created); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})

	total := len(out)
	if len(out) > req.Limit {
		out = out[:req.Limit]
	}
	respondSuccess(w, r, http.StatusOK, SnapshotList{Snapshots: out, Total: total})
}

// GetSnapshot returns one snapshot record.
// GET /api/v1/snapshots/{id}
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	record, err := h.snapshots.Snapshot(r.Context(), id)
	if errors.Is(err, models.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Snapshot not found", nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "STORE_ERROR", "Failed to load snapshot", err)
		return
	}
	respondSuccess(w, r, http.StatusOK, record)
}

// VerifySnapshot checks the bag archive against its checksum file.
// POST /api/v1/snapshots/{id}/verify
func (h *Handler) VerifySnapshot(w http.ResponseWriter, r *http.Request) {
	res := h.restorer.ValidateSnapshotChecksum(r.Context(), chi.URLParam(r, "id"))
	respondResult(w, r, res, res.Data)
}

// RestoreSnapshot restores a snapshot once the operator confirms.
// POST /api/v1/snapshots/{id}/restore
func (h *Handler) RestoreSnapshot(w http.ResponseWriter, r *http.Request) {
	if _, ok := operator(w, r); !ok {
		return
	}
	var req RestoreSnapshotRequest
	if !decodeBody(w, r, &req, true) {
		return
	}
	res := h.restorer.Restore(r.Context(), chi.URLParam(r, "id"), req.Confirm)
	respondResult(w, r, res, res.Data)
}

// getIntParam extracts an integer query parameter with a default value.
func getIntParam(r *http.Request, key string, defaultValue int) int {
	value := r.URL.Query().Get(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}
