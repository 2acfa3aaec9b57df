// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package services

import (
	"context"
	"time"

	"github.com/tomtom215/stacksnap/internal/audit"
	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/result"
)

// Auditor runs one integrity audit pass.
type Auditor interface {
	Audit(ctx context.Context) (*audit.Report, result.Result)
}

// AuditService runs the integrity audit on a fixed interval so the audit
// finding gauges stay current between operator requests. It never deletes.
type AuditService struct {
	auditor  Auditor
	interval time.Duration
}

// NewAuditService creates the periodic audit service. Intervals below one
// minute are raised to one minute.
func NewAuditService(auditor Auditor, interval time.Duration) *AuditService {
	if interval < time.Minute {
		interval = time.Minute
	}
	return &AuditService{auditor: auditor, interval: interval}
}

// Serve implements suture.Service. The first pass runs immediately.
func (a *AuditService) Serve(ctx context.Context) error {
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		a.runOnce(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (a *AuditService) runOnce(ctx context.Context) {
	ctx = logging.ContextWithNewCorrelationID(ctx)
	report, res := a.auditor.Audit(ctx)
	if res.Failed() || report == nil {
		// Audit already logged the failure; the next tick retries.
		return
	}
	logging.Ctx(ctx).Info().
		Int("checked", report.Checked).
		Int("dangling", len(report.Dangling)).
		Int("pseudo", len(report.Pseudo)).
		Int("orphaned_files", len(report.OrphanedFiles)).
		Msg("Scheduled audit complete")
}

// String names the service in supervisor events.
func (a *AuditService) String() string {
	return "audit-scheduler"
}
