// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

// Package validation wraps go-playground/validator v10 with a shared
// validator instance and messages suited to API error bodies.
//
// Besides the built-in tags it registers machine_name, which accepts
// lowercase letters, digits and underscores.
//
//	type CreateSnapshotRequest struct {
//	    Label       string `validate:"required,max=255"`
//	    MachineName string `validate:"omitempty,machine_name"`
//	}
//
//	if verr := validation.ValidateStruct(&req); verr != nil {
//	    apiErr := verr.ToAPIError()
//	    ...
//	}
package validation
