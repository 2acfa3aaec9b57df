// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package audit

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/metrics"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/result"
)

// Reasons a snapshot qualifies for safe cleanup.
const (
	ReasonPseudo          = "pseudo_snapshot"
	ReasonBrokenReference = "broken_reference"
	ReasonMissingField    = "missing_field"
)

// Reasons a snapshot was kept by safe cleanup.
const (
	ProtectedJustCreated = "just_created"
	ProtectedRecentOwn   = "recent_own"
	ProtectedReferenced  = "referenced"
)

// ItemFailure is one ID a bulk cleanup could not delete.
type ItemFailure struct {
	ID    string `json:"id"`
	Error string `json:"error"`
}

// CleanupResult reports a bulk cleanup. In dry-run mode Deleted lists
// what would have been deleted.
type CleanupResult struct {
	DryRun   bool          `json:"dry_run"`
	Deleted  []string      `json:"deleted"`
	Failures []ItemFailure `json:"failures,omitempty"`
}

// CleanupOrphanedSnapshots deletes the given snapshot records.
func (a *Auditor) CleanupOrphanedSnapshots(ctx context.Context, ids []string, dryRun bool) (*CleanupResult, result.Result) {
	out := a.bulkDelete(ctx, "snapshot", ids, dryRun, a.inv.DeleteSnapshot)
	return out, a.bulkOutcome(ctx, "cleanup_snapshots", out)
}

// CleanupOrphanedFiles deletes the given file entities and their files
// on disk. A file already gone from disk does not fail the item.
func (a *Auditor) CleanupOrphanedFiles(ctx context.Context, ids []string, dryRun bool) (*CleanupResult, result.Result) {
	var files map[string]*models.FileEntity
	if !dryRun {
		all, err := a.inv.Files(ctx)
		if err != nil {
			return nil, logging.Outcome(ctx, "audit", "cleanup_files", result.Fail(result.KindTransport, "failed to load files", err))
		}
		files = make(map[string]*models.FileEntity, len(all))
		for _, f := range all {
			files[f.ID] = f
		}
	}

	out := a.bulkDelete(ctx, "file", ids, dryRun, func(ctx context.Context, id string) error {
		if f, ok := files[id]; ok {
			a.removeFromDisk(ctx, f)
		}
		return a.inv.DeleteFile(ctx, id)
	})
	return out, a.bulkOutcome(ctx, "cleanup_files", out)
}

func (a *Auditor) removeFromDisk(ctx context.Context, f *models.FileEntity) {
	local, err := a.storage.RealPath(f.URI)
	if err != nil {
		return
	}
	if err := a.fs.Remove(local); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logging.Ctx(ctx).Warn().Err(err).Str("uri", f.URI).Msg("Failed to remove file from disk")
	}
}

func (a *Auditor) bulkDelete(ctx context.Context, target string, ids []string, dryRun bool, del func(context.Context, string) error) *CleanupResult {
	out := &CleanupResult{DryRun: dryRun, Deleted: []string{}}
	mode := "bulk"
	if dryRun {
		mode = "dry_run"
	}

	for _, id := range ids {
		if dryRun {
			out.Deleted = append(out.Deleted, id)
			metrics.AuditDeletions.WithLabelValues(target, mode).Inc()
			continue
		}
		if err := del(ctx, id); err != nil {
			out.Failures = append(out.Failures, ItemFailure{ID: id, Error: err.Error()})
			continue
		}
		out.Deleted = append(out.Deleted, id)
		metrics.AuditDeletions.WithLabelValues(target, mode).Inc()
	}
	return out
}

func (a *Auditor) bulkOutcome(ctx context.Context, op string, out *CleanupResult) result.Result {
	res := result.OK(fmt.Sprintf("%d deleted, %d failed", len(out.Deleted), len(out.Failures)), nil)
	if len(out.Failures) > 0 && len(out.Deleted) == 0 {
		res = result.Failf(result.KindState, "all %d deletions failed", len(out.Failures))
	}
	return logging.Outcome(ctx, "audit", op, res.
		With("dry_run", out.DryRun).
		With("deleted", out.Deleted).
		With("failures", out.Failures))
}

// SafeCleanupRequest identifies who just created which snapshot.
type SafeCleanupRequest struct {
	OperatorID    string
	NewSnapshotID string

	// GracePeriod overrides the configured grace period when positive.
	GracePeriod time.Duration
	DryRun      bool
}

// Candidate is a snapshot selected by safe cleanup and why.
type Candidate struct {
	SnapshotID string   `json:"snapshot_id"`
	Label      string   `json:"label"`
	Reasons    []string `json:"reasons"`
	Issues     []string `json:"issues"`
}

// SafeCleanupResult lists selected candidates and the protections that
// kept other snapshots.
type SafeCleanupResult struct {
	DryRun     bool                `json:"dry_run"`
	Candidates []Candidate         `json:"candidates"`
	Deleted    []string            `json:"deleted"`
	Protected  map[string][]string `json:"protected"`
	Failures   []ItemFailure       `json:"failures,omitempty"`
}

// SafeCleanupAfterSnapshotCreation deletes clearly broken snapshots that
// are not the new snapshot, not the operator's recent work and not
// referenced by any stack or component.
func (a *Auditor) SafeCleanupAfterSnapshotCreation(ctx context.Context, req SafeCleanupRequest) (*SafeCleanupResult, result.Result) {
	grace := req.GracePeriod
	if grace <= 0 {
		grace = a.grace
	}

	idx, err := loadIndex(ctx, a.inv)
	if err != nil {
		return nil, logging.Outcome(ctx, "audit", "safe_cleanup", result.Fail(result.KindTransport, "failed to load inventory", err))
	}

	out := &SafeCleanupResult{
		DryRun:     req.DryRun,
		Candidates: []Candidate{},
		Deleted:    []string{},
		Protected:  map[string][]string{},
	}
	now := a.now()

	for _, s := range idx.snapshots {
		if protection := a.protection(idx, s, req, grace, now); protection != "" {
			out.Protected[protection] = append(out.Protected[protection], s.ID)
			continue
		}

		c := a.candidate(idx, s)
		if len(c.Reasons) == 0 {
			continue
		}
		out.Candidates = append(out.Candidates, c)

		if req.DryRun {
			metrics.AuditDeletions.WithLabelValues("snapshot", "dry_run").Inc()
			continue
		}
		if err := a.inv.DeleteSnapshot(ctx, s.ID); err != nil {
			out.Failures = append(out.Failures, ItemFailure{ID: s.ID, Error: err.Error()})
			continue
		}
		out.Deleted = append(out.Deleted, s.ID)
		metrics.AuditDeletions.WithLabelValues("snapshot", "safe").Inc()
	}

	logging.Ctx(ctx).Info().
		Str("operator", req.OperatorID).
		Str("new_snapshot", req.NewSnapshotID).
		Bool("dry_run", req.DryRun).
		Int("candidates", len(out.Candidates)).
		Int("deleted", len(out.Deleted)).
		Msg("Safe cleanup finished")

	return out, result.OK("safe cleanup complete", nil).
		With("candidates", len(out.Candidates)).
		With("deleted", len(out.Deleted)).
		With("failures", len(out.Failures))
}

// protection returns the first rule that keeps s, or "".
func (a *Auditor) protection(idx *snapshotIndex, s *models.SnapshotRecord, req SafeCleanupRequest, grace time.Duration, now time.Time) string {
	if s.ID == req.NewSnapshotID {
		return ProtectedJustCreated
	}
	if req.OperatorID != "" && s.Owner == req.OperatorID && isRecent(s, grace, now) {
		return ProtectedRecentOwn
	}
	if idx.referenced(s.ID) {
		return ProtectedReferenced
	}
	return ""
}

// isRecent treats a snapshot with no known age as recent.
func isRecent(s *models.SnapshotRecord, grace time.Duration, now time.Time) bool {
	created := s.Created
	if created.IsZero() && s.Timestamp > 0 {
		created = time.Unix(s.Timestamp, 0)
	}
	if created.IsZero() {
		return true
	}
	return now.Sub(created) < grace
}

func (a *Auditor) candidate(idx *snapshotIndex, s *models.SnapshotRecord) Candidate {
	c := Candidate{SnapshotID: s.ID, Label: s.Label, Reasons: []string{}, Issues: []string{}}

	if issues := append(a.namePatternIssues(s), a.fileIssues(idx, s)...); len(issues) > 0 {
		c.Reasons = append(c.Reasons, ReasonPseudo)
		c.Issues = append(c.Issues, issues...)
	}
	if issues := brokenReferences(idx, s); len(issues) > 0 {
		c.Reasons = append(c.Reasons, ReasonBrokenReference)
		c.Issues = append(c.Issues, issues...)
	}
	if issues := missingFields(s); len(issues) > 0 {
		c.Reasons = append(c.Reasons, ReasonMissingField)
		c.Issues = append(c.Issues, issues...)
	}
	return c
}
