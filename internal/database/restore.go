// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package database

import (
	"context"
	"fmt"
	"path"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/tomtom215/stacksnap/internal/container"
	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/result"
	"github.com/tomtom215/stacksnap/internal/snapshot"
)

// restoreStagingDir is created under the snapshot subpath for the duration
// of one restore.
const restoreStagingDir = ".restore"

// RestoreHandler loads an extracted SQL dump back into the database.
type RestoreHandler struct {
	c *Coordinator
}

// RestoreHandler returns the snapshot restore handler for database bundles.
func (c *Coordinator) RestoreHandler() RestoreHandler {
	return RestoreHandler{c: c}
}

// Restore implements snapshot.Handler.
func (h RestoreHandler) Restore(ctx context.Context, req snapshot.RestoreRequest) result.Result {
	c := h.c
	pair, r := c.ResolveContext(ctx, ComponentSubject(req.Component))
	if r.Failed() {
		return r
	}
	db := pair.Database
	containerName := c.execContainer(pair)
	if containerName == "" {
		return result.Failf(result.KindConfiguration, "no container available to restore %s", db.MachineName)
	}

	password, r := c.password(ctx, db)
	if r.Failed() {
		return logging.Outcome(ctx, "database", "restore", r)
	}

	// The extracted bag lives in a private temp dir the container cannot
	// see, so the dump is staged into the shared storage tree first.
	stage := filepath.Join(c.storage.PrivateRoot, filepath.FromSlash(c.storage.SnapshotSubpath), restoreStagingDir, uuid.New().String())
	if err := c.fs.MkdirAll(stage, 0o750); err != nil {
		return logging.Outcome(ctx, "database", "restore", result.Fail(result.KindState, "failed to create staging directory", err))
	}
	defer func() {
		if err := snapshot.RemoveTree(c.fs, stage); err != nil {
			logging.Ctx(ctx).Warn().Err(err).Str("dir", stage).Msg("Failed to remove restore staging directory")
		}
	}()

	staged := filepath.Join(stage, filepath.Base(req.DumpPath))
	if err := snapshot.CopyFile(c.fs, req.DumpPath, staged); err != nil {
		return logging.Outcome(ctx, "database", "restore", result.Fail(result.KindState, "failed to stage dump", err))
	}

	script := fmt.Sprintf("gunzip -c %s | %s%s -u %s %s",
		quote(c.inContainer(filepath.ToSlash(staged))),
		c.cfg.RestoreTool,
		hostFlag(db.DatabaseHost),
		quote(db.DatabaseUser),
		quote(db.DatabaseName))

	ran := c.orch.RunExec(ctx, containerName, container.ExecRequest{
		Cmd:  c.shell(script),
		User: c.cfg.User,
		Env:  []string{"MYSQL_PWD=" + password},
	})
	if ran.Failed() {
		return logging.Outcome(ctx, "database", "restore",
			result.Fail(ran.Kind, fmt.Sprintf("restore of %s failed", db.MachineName), fmt.Errorf("%s", ran.Error)).
				With("container", containerName))
	}

	out := result.OK(fmt.Sprintf("database %s restored from %s", db.MachineName, path.Base(req.DumpPath)), nil).
		With("container", containerName)

	if pair.Application == nil || len(c.cfg.CacheClear) == 0 {
		return out.With("cache_cleared", false)
	}
	cleared := c.orch.RunExec(ctx, pair.Application.ContainerName, container.ExecRequest{
		Cmd:  c.cfg.CacheClear,
		User: c.cfg.User,
	})
	if cleared.Failed() {
		logging.Ctx(ctx).Warn().
			Str("application", pair.Application.MachineName).
			Str("error", cleared.Error).
			Msg("Cache clear after restore failed")
		return out.With("cache_cleared", false)
	}
	return out.With("cache_cleared", true)
}
