// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package api

import (
	"context"
	"time"

	"github.com/tomtom215/stacksnap/internal/audit"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/result"
	"github.com/tomtom215/stacksnap/internal/workflow"
)

// SnapshotCreator runs the create snapshot workflow.
type SnapshotCreator interface {
	CreateSnapshot(ctx context.Context, req workflow.CreateRequest) (*models.SnapshotRecord, result.Result)
}

// SnapshotRestorer restores and verifies snapshots.
type SnapshotRestorer interface {
	Restore(ctx context.Context, snapshotID string, confirmed bool) result.Result
	RestoreFromBag(ctx context.Context, bagSrc, checksumSrc string, component *models.Component, confirmed bool) result.Result
	ValidateSnapshotChecksum(ctx context.Context, snapshotID string) result.Result
}

// SnapshotAuditor runs integrity checks and cleanups.
type SnapshotAuditor interface {
	Audit(ctx context.Context) (*audit.Report, result.Result)
	CleanupOrphanedSnapshots(ctx context.Context, ids []string, dryRun bool) (*audit.CleanupResult, result.Result)
	CleanupOrphanedFiles(ctx context.Context, ids []string, dryRun bool) (*audit.CleanupResult, result.Result)
	SafeCleanupAfterSnapshotCreation(ctx context.Context, req audit.SafeCleanupRequest) (*audit.SafeCleanupResult, result.Result)
}

// SnapshotReader reads snapshot records and the components they restore.
type SnapshotReader interface {
	Snapshot(ctx context.Context, id string) (*models.SnapshotRecord, error)
	Snapshots(ctx context.Context) ([]*models.SnapshotRecord, error)
	Component(ctx context.Context, id string) (*models.Component, error)
}

// Handler contains dependencies for API handlers.
type Handler struct {
	creator   SnapshotCreator
	restorer  SnapshotRestorer
	auditor   SnapshotAuditor
	snapshots SnapshotReader
	startTime time.Time
}

// NewHandler creates a Handler.
func NewHandler(creator SnapshotCreator, restorer SnapshotRestorer, auditor SnapshotAuditor, snapshots SnapshotReader) *Handler {
	return &Handler{
		creator:   creator,
		restorer:  restorer,
		auditor:   auditor,
		snapshots: snapshots,
		startTime: time.Now(),
	}
}
