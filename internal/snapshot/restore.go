// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
restore.go - Snapshot Restore Coordinator

Restore runs a fixed pre-flight before any data is touched:

 1. the snapshot record must be completed
 2. the operator must confirm the overwrite
 3. the bag archive must exist on disk
 4. when a checksum file exists, the archive digest must occur in it
 5. the target must be a single component (stack restore is refused)

The bag is then extracted into a private temporary directory, its manifest
validated, and the component's dump handed to the handler registered for
its type tag. The temporary directory is removed on every path.
*/

//nolint:staticcheck // File documentation, not package doc
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/metrics"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/result"
)

// Records is the read side of the entity layer used during restore.
type Records interface {
	Snapshot(ctx context.Context, id string) (*models.SnapshotRecord, error)
	Component(ctx context.Context, id string) (*models.Component, error)
	File(ctx context.Context, id string) (*models.FileEntity, error)
}

// RestoreRequest is what a handler receives once pre-flight has passed.
type RestoreRequest struct {
	Snapshot  *models.SnapshotRecord
	Component *models.Component
	Manifest  *Manifest
	Entry     MappingEntry

	// WorkDir holds the extracted bag and is removed after the handler returns.
	WorkDir      string
	DumpPath     string
	ChecksumPath string
}

// Handler restores one component from its extracted dump.
type Handler interface {
	Restore(ctx context.Context, req RestoreRequest) result.Result
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, req RestoreRequest) result.Result

// Restore calls f.
func (f HandlerFunc) Restore(ctx context.Context, req RestoreRequest) result.Result {
	return f(ctx, req)
}

// RestoreConfig configures a Coordinator.
type RestoreConfig struct {
	// TempDir is the parent of per-restore work directories. Empty selects
	// the system temp root.
	TempDir string

	// DownloadTimeout bounds one remote bag or checksum download.
	DownloadTimeout time.Duration
}

// Coordinator restores snapshots.
type Coordinator struct {
	records  Records
	storage  Storage
	fs       FS
	handlers map[string]Handler
	http     *http.Client
	cfg      RestoreConfig
}

// NewCoordinator creates a Coordinator with no handlers registered.
func NewCoordinator(records Records, storage Storage, fsys FS, cfg RestoreConfig) *Coordinator {
	if fsys == nil {
		fsys = OSFS{}
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 10 * time.Minute
	}
	return &Coordinator{
		records:  records,
		storage:  storage,
		fs:       fsys,
		handlers: make(map[string]Handler),
		http:     &http.Client{Timeout: cfg.DownloadTimeout},
		cfg:      cfg,
	}
}

// Register installs the handler for a bundle, keyed by its type tag.
func (c *Coordinator) Register(bundle models.Bundle, h Handler) {
	c.handlers[models.TypeTag(bundle)] = h
}

// SetHTTPClient replaces the client used for remote bag downloads.
func (c *Coordinator) SetHTTPClient(client *http.Client) {
	c.http = client
}

// Restore restores the component referenced by a snapshot record.
func (c *Coordinator) Restore(ctx context.Context, snapshotID string, confirmed bool) result.Result {
	r := result.Guard("restore", func() result.Result {
		return c.restore(ctx, snapshotID, confirmed)
	})
	metrics.RecordRestore(r.Success, string(r.Kind))
	return logging.Outcome(ctx, "snapshot", "restore", r.With("snapshot_id", snapshotID))
}

func (c *Coordinator) restore(ctx context.Context, snapshotID string, confirmed bool) result.Result {
	record, err := c.records.Snapshot(ctx, snapshotID)
	if err != nil {
		return result.Fail(result.KindResolution, "snapshot not found", err)
	}
	if record.Status != models.SnapshotCompleted {
		return result.Failf(result.KindState,
			"snapshot %s has status %q; only completed snapshots can be restored", record.ID, record.Status)
	}
	if !confirmed {
		return result.Failf(result.KindData,
			"restoring snapshot %s overwrites current data and must be confirmed", record.ID)
	}

	archive, r := c.resolveFile(ctx, record.BagFileID, "bag archive")
	if r.Failed() {
		return r
	}
	if !exists(c.fs, archive) {
		return result.Failf(result.KindIntegrity, "bag archive %s does not exist", archive)
	}

	verified, r := c.verifyRecordChecksum(ctx, record, archive)
	if r.Failed() {
		return r
	}

	switch record.Targets() {
	case "stack":
		return result.Failf(result.KindNotImplemented,
			"restoring whole stacks is not implemented; restore snapshot %s per component", record.ID)
	case "component":
	default:
		return result.Failf(result.KindResolution, "snapshot %s references neither a stack nor a component", record.ID)
	}

	component, err := c.records.Component(ctx, record.ComponentID)
	if err != nil {
		return result.Fail(result.KindResolution, "snapshot component not found", err).With("component_id", record.ComponentID)
	}

	return c.restoreArchive(ctx, record, component, archive).With("checksum_verified", verified)
}

// RestoreFromBag restores a component directly from a bag archive given as a
// local path, a storage URI or an http(s) URL. checksumSrc may be empty.
// Like Restore, it refuses to run unless the overwrite is confirmed.
func (c *Coordinator) RestoreFromBag(ctx context.Context, bagSrc, checksumSrc string, component *models.Component, confirmed bool) result.Result {
	r := result.Guard("restore_from_bag", func() result.Result {
		return c.restoreFromBag(ctx, bagSrc, checksumSrc, component, confirmed)
	})
	metrics.RecordRestore(r.Success, string(r.Kind))
	return logging.Outcome(ctx, "snapshot", "restore_from_bag", r.With("bag", bagSrc))
}

func (c *Coordinator) restoreFromBag(ctx context.Context, bagSrc, checksumSrc string, component *models.Component, confirmed bool) result.Result {
	if component == nil {
		return result.Failf(result.KindResolution, "restore from bag needs a target component")
	}
	if !confirmed {
		return result.Failf(result.KindData,
			"restoring component %s from a bag overwrites current data and must be confirmed", component.MachineName)
	}

	downloads, err := c.fs.MkdirTemp(c.cfg.TempDir, "stacksnap-download-*")
	if err != nil {
		return result.Fail(result.KindState, "failed to create download directory", err)
	}
	defer c.removeWorkDir(ctx, downloads)

	archive, r := c.fetch(ctx, bagSrc, downloads)
	if r.Failed() {
		return r
	}
	if !exists(c.fs, archive) {
		return result.Failf(result.KindIntegrity, "bag archive %s does not exist", archive)
	}

	verified := false
	if checksumSrc != "" {
		sumFile, r := c.fetch(ctx, checksumSrc, downloads)
		if r.Failed() {
			return r
		}
		if r := c.verify(archive, sumFile); r.Failed() {
			return r
		}
		verified = true
	}

	return c.restoreArchive(ctx, nil, component, archive).With("checksum_verified", verified)
}

// ValidateSnapshotChecksum recomputes the bag digest of a snapshot and checks
// it against the recorded checksum file. A snapshot without a checksum file
// passes with checksum_present=false.
func (c *Coordinator) ValidateSnapshotChecksum(ctx context.Context, snapshotID string) result.Result {
	r := result.Guard("validate_checksum", func() result.Result {
		record, err := c.records.Snapshot(ctx, snapshotID)
		if err != nil {
			return result.Fail(result.KindResolution, "snapshot not found", err)
		}
		archive, r := c.resolveFile(ctx, record.BagFileID, "bag archive")
		if r.Failed() {
			return r
		}
		if !exists(c.fs, archive) {
			return result.Failf(result.KindIntegrity, "bag archive %s does not exist", archive)
		}
		verified, r := c.verifyRecordChecksum(ctx, record, archive)
		if r.Failed() {
			return r
		}
		if !verified {
			return result.OK("snapshot has no checksum file", nil).With("checksum_present", false)
		}
		return result.OK("checksum matches", nil).With("checksum_present", true)
	})
	return logging.Outcome(ctx, "snapshot", "validate_checksum", r.With("snapshot_id", snapshotID))
}

// verifyRecordChecksum checks the archive when the record has a checksum
// file on disk. It reports whether a verification took place.
func (c *Coordinator) verifyRecordChecksum(ctx context.Context, record *models.SnapshotRecord, archive string) (bool, result.Result) {
	if record.ChecksumFileID == "" {
		metrics.ChecksumVerifications.WithLabelValues("absent").Inc()
		return false, result.OK("no checksum recorded", nil)
	}
	sumFile, r := c.resolveFile(ctx, record.ChecksumFileID, "checksum file")
	if r.Failed() {
		return false, r
	}
	if !exists(c.fs, sumFile) {
		metrics.ChecksumVerifications.WithLabelValues("absent").Inc()
		return false, result.OK("checksum file missing on disk", nil)
	}
	if r := c.verify(archive, sumFile); r.Failed() {
		return false, r
	}
	return true, result.OK("checksum matches", nil)
}

func (c *Coordinator) verify(archive, sumFile string) result.Result {
	digest, err := VerifyFile(c.fs, archive, sumFile)
	switch {
	case errors.Is(err, ErrChecksumMismatch):
		metrics.ChecksumVerifications.WithLabelValues("mismatch").Inc()
		return result.Fail(result.KindIntegrity, "bag checksum does not match", err).With("digest", digest)
	case err != nil:
		metrics.ChecksumVerifications.WithLabelValues("error").Inc()
		return result.Fail(result.KindIntegrity, "bag checksum could not be verified", err)
	}
	metrics.ChecksumVerifications.WithLabelValues("match").Inc()
	return result.OK("checksum matches", nil).With("digest", digest)
}

// resolveFile maps a FileEntity ID to a local path.
func (c *Coordinator) resolveFile(ctx context.Context, fileID, what string) (string, result.Result) {
	if fileID == "" {
		return "", result.Failf(result.KindData, "snapshot has no %s", what)
	}
	f, err := c.records.File(ctx, fileID)
	if err != nil {
		return "", result.Fail(result.KindIntegrity, what+" entity not found", err).With("file_id", fileID)
	}
	local, err := c.storage.RealPath(f.URI)
	if err != nil {
		return "", result.Fail(result.KindData, "cannot resolve "+what+" path", err).With("uri", f.URI)
	}
	return local, result.OK("resolved", nil)
}

// restoreArchive extracts a verified bag and dispatches to the handler.
func (c *Coordinator) restoreArchive(ctx context.Context, record *models.SnapshotRecord, component *models.Component, archive string) result.Result {
	workDir, err := c.fs.MkdirTemp(c.cfg.TempDir, "stacksnap-restore-*")
	if err != nil {
		return result.Fail(result.KindState, "failed to create restore directory", err)
	}
	defer c.removeWorkDir(ctx, workDir)

	if _, err := ExtractArchive(c.fs, archive, workDir); err != nil {
		return result.Fail(result.KindData, "failed to extract bag archive", err)
	}

	raw, err := c.fs.ReadFile(filepath.Join(workDir, ManifestFileName))
	if err != nil {
		return result.Fail(result.KindData, "bag has no manifest", err)
	}
	manifest, err := ParseAndValidateManifest(raw)
	if err != nil {
		return result.Fail(result.KindData, "bag manifest failed validation", err)
	}

	entry, ok := manifest.FindEntry(component.ID, string(component.Bundle))
	if !ok {
		return result.Failf(result.KindResolution,
			"bag %s has no dump for component %s", manifest.SnapshotMachineName, component.MachineName)
	}

	tag := entry.TypeTag()
	handler, ok := c.handlers[tag]
	if !ok {
		return result.Failf(result.KindNotImplemented, "no restore handler for type %q", tag)
	}

	req := RestoreRequest{
		Snapshot:  record,
		Component: component,
		Manifest:  manifest,
		Entry:     entry,
		WorkDir:   workDir,
		DumpPath:  filepath.Join(workDir, tag, entry.DumpFile),
	}
	if !exists(c.fs, req.DumpPath) {
		return result.Failf(result.KindIntegrity, "dump %s missing from bag", path.Join(tag, entry.DumpFile))
	}
	if entry.ChecksumFile != "" {
		req.ChecksumPath = filepath.Join(workDir, tag, entry.ChecksumFile)
		if exists(c.fs, req.ChecksumPath) {
			if r := c.verify(req.DumpPath, req.ChecksumPath); r.Failed() {
				return r.With("dump_file", entry.DumpFile)
			}
		}
	}

	logging.Ctx(ctx).Info().
		Str("component", component.MachineName).
		Str("type_tag", tag).
		Str("dump_file", entry.DumpFile).
		Msg("Dispatching restore")

	return handler.Restore(ctx, req).
		With("component_id", component.ID).
		With("type_tag", tag)
}

func (c *Coordinator) removeWorkDir(ctx context.Context, dir string) {
	if err := RemoveTree(c.fs, dir); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("dir", dir).Msg("Failed to remove restore directory")
	}
}

// IsRemote reports whether src is an http(s) URL.
func IsRemote(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}

// fetch makes src available as a local file, downloading remote sources
// into dir.
func (c *Coordinator) fetch(ctx context.Context, src, dir string) (string, result.Result) {
	if !IsRemote(src) {
		local, err := c.storage.RealPath(src)
		if err != nil {
			return "", result.Fail(result.KindData, "cannot resolve bag source", err)
		}
		return local, result.OK("local", nil)
	}

	u, err := url.Parse(src)
	if err != nil {
		return "", result.Fail(result.KindData, "invalid bag URL", err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", result.Failf(result.KindData, "bag URL %s has no file name", src)
	}
	dest := filepath.Join(dir, name)

	if err := c.download(ctx, src, dest); err != nil {
		return "", result.Fail(result.KindTransport, "failed to download "+name, err)
	}
	return dest, result.OK("downloaded", nil)
}

func (c *Coordinator) download(ctx context.Context, src, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, http.NoBody)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort cleanup

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: status %d", src, resp.StatusCode)
	}

	out, err := c.fs.Create(dest)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, io.LimitReader(resp.Body, MaxEntrySize))
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	return err
}

// StagingHandler restores application and file dumps by copying them to
// Root/<component machine name>/ for the application to pick up.
type StagingHandler struct {
	FS   FS
	Root string
}

// Restore implements Handler.
func (h StagingHandler) Restore(ctx context.Context, req RestoreRequest) result.Result {
	fsys := h.FS
	if fsys == nil {
		fsys = OSFS{}
	}
	dir := filepath.Join(h.Root, req.Component.MachineName)
	if err := fsys.MkdirAll(dir, 0o750); err != nil {
		return result.Fail(result.KindState, "failed to create staging directory", err)
	}
	dest := filepath.Join(dir, filepath.Base(req.DumpPath))
	if err := CopyFile(fsys, req.DumpPath, dest); err != nil {
		return result.Fail(result.KindState, "failed to stage dump", err)
	}
	logging.Ctx(ctx).Info().Str("staged", dest).Msg("Dump staged for restore")
	return result.OK("dump staged", nil).With("staged_path", dest)
}
