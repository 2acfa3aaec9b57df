// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/snapshot"
)

// RestoreBagRequest is the body of POST /api/v1/restore/bag.
type RestoreBagRequest struct {
	// Bag and Checksum are storage URIs (private://, public://,
	// temporary://) or http(s) URLs. Bare filesystem paths are refused.
	Bag         string `json:"bag" validate:"required,max=2048"`
	Checksum    string `json:"checksum" validate:"omitempty,max=2048"`
	ComponentID string `json:"component_id" validate:"required,max=255"`
	Confirm     bool   `json:"confirm"`
}

// bagSourceAllowed reports whether src names a bag the API may fetch.
func bagSourceAllowed(src string) bool {
	if snapshot.IsRemote(src) {
		return true
	}
	scheme, _, ok := strings.Cut(src, "://")
	if !ok {
		return false
	}
	switch scheme {
	case models.SchemePrivate, models.SchemePublic, models.SchemeTemporary:
		return true
	}
	return false
}

// RestoreFromBag restores one component from a bag archive that has no
// snapshot record, such as a bag copied in from another host.
// POST /api/v1/restore/bag
func (h *Handler) RestoreFromBag(w http.ResponseWriter, r *http.Request) {
	if _, ok := operator(w, r); !ok {
		return
	}

	var req RestoreBagRequest
	if !decodeBody(w, r, &req, false) || !validateRequest(w, r, &req) {
		return
	}
	for _, src := range []string{req.Bag, req.Checksum} {
		if src != "" && !bagSourceAllowed(src) {
			respondError(w, r, http.StatusBadRequest, "INVALID_SOURCE",
				"Bag sources must be storage URIs or http(s) URLs", nil)
			return
		}
	}

	component, err := h.snapshots.Component(r.Context(), req.ComponentID)
	if errors.Is(err, models.ErrNotFound) {
		respondError(w, r, http.StatusNotFound, "NOT_FOUND", "Component not found", nil)
		return
	}
	if err != nil {
		respondError(w, r, http.StatusInternalServerError, "STORE_ERROR", "Failed to load component", err)
		return
	}

	res := h.restorer.RestoreFromBag(r.Context(), req.Bag, req.Checksum, component, req.Confirm)
	respondResult(w, r, res, res.Data)
}
