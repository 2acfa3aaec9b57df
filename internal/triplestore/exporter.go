// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package triplestore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/metrics"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/result"
	"github.com/tomtom215/stacksnap/internal/snapshot"
)

// Exporter writes N-Quads exports of repositories into the snapshot tree.
type Exporter struct {
	store   Store
	storage snapshot.Storage
}

// NewExporter creates an Exporter.
func NewExporter(store Store, storage snapshot.Storage) *Exporter {
	return &Exporter{store: store, storage: storage}
}

// ExportFileName is <component machine name>--<ts>.nq.
func ExportFileName(machineName string, ts int64) string {
	return machineName + "--" + strconv.FormatInt(ts, 10) + models.LookupBundle(models.BundleTriplestore).Extension
}

// Export dumps the repository of a triple store component.
func (e *Exporter) Export(ctx context.Context, component *models.Component, target snapshot.Target) (*snapshot.Dump, result.Result) {
	if component.RepositoryID == "" {
		return nil, logging.Outcome(ctx, "triplestore", "export",
			result.Failf(result.KindConfiguration, "component %s has no repository id", component.MachineName))
	}

	payload, err := e.store.Select(ctx, component.RepositoryID, ExportQuery)
	if err != nil {
		return nil, logging.Outcome(ctx, "triplestore", "export",
			result.Fail(result.KindTransport, "SPARQL export query failed", err).With("repository", component.RepositoryID))
	}

	nquads, stats, err := ConvertToNQuads(payload)
	if err != nil {
		return nil, logging.Outcome(ctx, "triplestore", "export",
			result.Fail(result.KindData, "triple store returned an unusable result set", err).With("repository", component.RepositoryID))
	}

	p, err := e.storage.SafePlan(target.Owner, target.SnapshotMachineName, target.Timestamp, models.BundleTriplestore)
	if err != nil {
		return nil, logging.Outcome(ctx, "triplestore", "export", result.Fail(result.KindData, "refusing to plan export paths", err))
	}
	if !models.IsPathSegment(component.MachineName) {
		return nil, logging.Outcome(ctx, "triplestore", "export",
			result.Fail(result.KindData, "refusing to plan export paths",
				fmt.Errorf("%w: machine name %q", snapshot.ErrUnsafePath, component.MachineName)))
	}
	name := ExportFileName(component.MachineName, target.Timestamp)
	outPath := filepath.Join(p.ContentDir, name)

	// Nothing is written for an empty repository so no zero-byte export
	// is left behind for the bag to pick up.
	if stats.Statements == 0 {
		metrics.RecordDump(p.TypeTag, 0, errors.New("empty export"))
		return nil, logging.Outcome(ctx, "triplestore", "export",
			result.Failf(result.KindData, "N-Quads export of %s is empty", component.RepositoryID).
				With("path", outPath).
				With("skipped", stats.Skipped))
	}

	size, err := WriteExclusive(outPath, []byte(nquads))
	if err != nil {
		metrics.RecordDump(p.TypeTag, 0, err)
		return nil, logging.Outcome(ctx, "triplestore", "export",
			result.Fail(result.KindState, "failed to write N-Quads export", err).With("path", outPath))
	}

	sum := sha256.Sum256([]byte(nquads))
	sumName := name + snapshot.ChecksumSuffix
	if _, err := WriteExclusive(filepath.Join(p.ContentDir, sumName), []byte(snapshot.ChecksumLine(hex.EncodeToString(sum[:]), name))); err != nil {
		return nil, logging.Outcome(ctx, "triplestore", "export",
			result.Fail(result.KindState, "failed to write export checksum", err))
	}
	metrics.RecordDump(p.TypeTag, size, nil)

	logging.Ctx(ctx).Info().
		Str("repository", component.RepositoryID).
		Int("statements", stats.Statements).
		Int("skipped", stats.Skipped).
		Int64("bytes", size).
		Msg("Triple store exported")

	dump := &snapshot.Dump{
		Bundle:       component.Bundle,
		EntityID:     component.ID,
		MachineName:  component.MachineName,
		TypeTag:      p.TypeTag,
		DumpFile:     name,
		ChecksumFile: sumName,
	}
	return dump, result.OK("triple store exported", nil).
		With("dump_file", name).
		With("dump_path", outPath).
		With("statements", stats.Statements).
		With("skipped", stats.Skipped).
		With("bytes", size)
}

// WriteExclusive creates parent directories, writes data under an exclusive
// file lock and returns the size of the file on disk afterwards.
//
//nolint:gosec // G304: path comes from the snapshot layout
func WriteExclusive(path string, data []byte) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	defer f.Close() //nolint:errcheck // Best effort cleanup

	if err := lockFile(f); err != nil {
		return 0, fmt.Errorf("lock %s: %w", path, err)
	}
	defer unlockFile(f) //nolint:errcheck // Released on close anyway

	// Truncate only once the lock is held.
	if err := f.Truncate(0); err != nil {
		return 0, err
	}
	if _, err := f.Write(data); err != nil {
		return 0, err
	}
	if err := f.Sync(); err != nil {
		return 0, err
	}

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
