// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package triplestore

import (
	"context"
	"os"

	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/result"
	"github.com/tomtom215/stacksnap/internal/snapshot"
)

// RestoreHandler uploads an extracted N-Quads export into the component's
// repository.
type RestoreHandler struct {
	Store Store
}

// Restore implements snapshot.Handler.
func (h RestoreHandler) Restore(ctx context.Context, req snapshot.RestoreRequest) result.Result {
	repo := req.Component.RepositoryID
	if repo == "" {
		return result.Failf(result.KindConfiguration, "component %s has no repository id", req.Component.MachineName)
	}

	f, err := os.Open(req.DumpPath) //nolint:gosec // G304: path inside the restore work directory
	if err != nil {
		return result.Fail(result.KindIntegrity, "cannot open N-Quads dump", err)
	}
	defer f.Close() //nolint:errcheck // Best effort cleanup

	if err := h.Store.AddStatements(ctx, repo, ContentTypeNQuads, f); err != nil {
		return logging.Outcome(ctx, "triplestore", "restore",
			result.Fail(result.KindTransport, "failed to upload statements", err).With("repository", repo))
	}
	return result.OK("repository restored", nil).With("repository", repo)
}
