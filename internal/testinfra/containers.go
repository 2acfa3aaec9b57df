// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

//go:build integration

package testinfra

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
)

// readyPollInterval is how often WaitForReady re-runs its check.
const readyPollInterval = 500 * time.Millisecond

// SkipIfNoDocker skips t when testcontainers cannot reach a healthy
// container provider.
func SkipIfNoDocker(t *testing.T) {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
}

// WaitForReady runs check until it reports true, ctx ends or timeout passes.
func WaitForReady(ctx context.Context, check func(context.Context) bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()
	for {
		if check(ctx) {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// CleanupContainer terminates c, logging instead of failing the test.
// A nil container is ignored.
func CleanupContainer(t *testing.T, _ context.Context, c testcontainers.Container) {
	t.Helper()
	if err := testcontainers.TerminateContainer(c); err != nil {
		t.Logf("terminate container: %v", err)
	}
}
