// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package audit

import (
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/metrics"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/result"
	"github.com/tomtom215/stacksnap/internal/snapshot"
)

// DefaultGracePeriod protects an operator's own recent snapshots.
const DefaultGracePeriod = 600 * time.Second

// DefaultPseudoPatterns match placeholder labels and machine names.
var DefaultPseudoPatterns = []string{
	`(?i)\b(pseudo|placeholder|dummy)\b`,
	`(?i)^(test|tmp|temp)[-_ ]`,
	`(?i)^untitled`,
}

// Config configures an Auditor.
type Config struct {
	GracePeriod    time.Duration
	PseudoPatterns []string

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Finding is one snapshot record with the issues found for it.
type Finding struct {
	SnapshotID  string   `json:"snapshot_id"`
	Label       string   `json:"label"`
	MachineName string   `json:"machine_name"`
	Owner       string   `json:"owner"`
	Issues      []string `json:"issues"`
}

// FileFinding is one managed file flagged by the orphan detector.
type FileFinding struct {
	FileID string `json:"file_id"`
	URI    string `json:"uri"`
	Issue  string `json:"issue"`
}

// Report is the outcome of a full audit.
type Report struct {
	Dangling      []Finding     `json:"dangling"`
	Pseudo        []Finding     `json:"pseudo"`
	OrphanedFiles []FileFinding `json:"orphaned_files"`
	Checked       int           `json:"checked"`
	Timestamp     time.Time     `json:"timestamp"`
}

// Auditor runs integrity checks and cleanups.
type Auditor struct {
	inv      Inventory
	storage  snapshot.Storage
	fs       snapshot.FS
	grace    time.Duration
	patterns []*regexp.Regexp
	now      func() time.Time
}

// New creates an Auditor. Invalid patterns are a configuration error.
func New(inv Inventory, storage snapshot.Storage, fsys snapshot.FS, cfg Config) (*Auditor, error) {
	if cfg.GracePeriod <= 0 {
		cfg.GracePeriod = DefaultGracePeriod
	}
	if cfg.PseudoPatterns == nil {
		cfg.PseudoPatterns = DefaultPseudoPatterns
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if fsys == nil {
		fsys = snapshot.OSFS{}
	}

	patterns := make([]*regexp.Regexp, 0, len(cfg.PseudoPatterns))
	for _, p := range cfg.PseudoPatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("invalid pseudo snapshot pattern %q: %w", p, err)
		}
		patterns = append(patterns, re)
	}

	return &Auditor{
		inv:      inv,
		storage:  storage,
		fs:       fsys,
		grace:    cfg.GracePeriod,
		patterns: patterns,
		now:      cfg.Now,
	}, nil
}

// Audit runs every detector over one load of the inventory.
func (a *Auditor) Audit(ctx context.Context) (*Report, result.Result) {
	idx, err := loadIndex(ctx, a.inv)
	if err != nil {
		return nil, logging.Outcome(ctx, "audit", "audit", result.Fail(result.KindTransport, "failed to load inventory", err))
	}

	rep := &Report{
		Dangling:      a.dangling(idx),
		Pseudo:        a.pseudo(idx),
		OrphanedFiles: a.orphanedFiles(idx),
		Checked:       len(idx.snapshots),
		Timestamp:     a.now().UTC(),
	}
	metrics.SetAuditFindings(len(rep.Dangling), len(rep.Pseudo), len(rep.OrphanedFiles))

	logging.Ctx(ctx).Info().
		Int("checked", rep.Checked).
		Int("dangling", len(rep.Dangling)).
		Int("pseudo", len(rep.Pseudo)).
		Int("orphaned_files", len(rep.OrphanedFiles)).
		Msg("Snapshot integrity audit complete")

	return rep, result.OK("audit complete", nil).
		With("dangling", len(rep.Dangling)).
		With("pseudo", len(rep.Pseudo)).
		With("orphaned_files", len(rep.OrphanedFiles))
}

// FindDanglingSnapshots reports records with broken or missing references.
func (a *Auditor) FindDanglingSnapshots(ctx context.Context) ([]Finding, error) {
	idx, err := loadIndex(ctx, a.inv)
	if err != nil {
		return nil, err
	}
	return a.dangling(idx), nil
}

// FindPseudoSnapshots reports placeholder and broken-file records.
func (a *Auditor) FindPseudoSnapshots(ctx context.Context) ([]Finding, error) {
	idx, err := loadIndex(ctx, a.inv)
	if err != nil {
		return nil, err
	}
	return a.pseudo(idx), nil
}

// FindOrphanedFiles reports unreferenced snapshot files and referenced
// files missing on disk.
func (a *Auditor) FindOrphanedFiles(ctx context.Context) ([]FileFinding, error) {
	idx, err := loadIndex(ctx, a.inv)
	if err != nil {
		return nil, err
	}
	return a.orphanedFiles(idx), nil
}

func finding(s *models.SnapshotRecord, issues []string) Finding {
	return Finding{SnapshotID: s.ID, Label: s.Label, MachineName: s.MachineName, Owner: s.Owner, Issues: issues}
}

func (a *Auditor) dangling(idx *snapshotIndex) []Finding {
	var out []Finding
	for _, s := range idx.snapshots {
		if issues := referenceIssues(idx, s); len(issues) > 0 {
			out = append(out, finding(s, issues))
		}
	}
	return out
}

// brokenReferences lists targets the record points at that no longer exist.
func brokenReferences(idx *snapshotIndex, s *models.SnapshotRecord) []string {
	var issues []string
	if s.StackID != "" {
		if _, ok := idx.stacks[s.StackID]; !ok {
			issues = append(issues, fmt.Sprintf("references missing stack %s", s.StackID))
		}
	}
	if s.ComponentID != "" {
		if _, ok := idx.components[s.ComponentID]; !ok {
			issues = append(issues, fmt.Sprintf("references missing component %s", s.ComponentID))
		}
	}
	return issues
}

func referenceIssues(idx *snapshotIndex, s *models.SnapshotRecord) []string {
	issues := brokenReferences(idx, s)
	if s.StackID == "" && s.ComponentID == "" {
		issues = append(issues, "points at neither a stack nor a component")
	}

	stackRefs := idx.stackRefs[s.ID]
	componentRefs := idx.componentRefs[s.ID]
	if len(stackRefs) == 0 && len(componentRefs) == 0 {
		issues = append(issues, "not referenced by any stack or component")
	}
	for _, ref := range stackRefs {
		if s.StackID != ref {
			issues = append(issues, fmt.Sprintf("referenced by stack %s but points at %s", ref, target(s)))
		}
	}
	for _, ref := range componentRefs {
		if s.ComponentID != ref {
			issues = append(issues, fmt.Sprintf("referenced by component %s but points at %s", ref, target(s)))
		}
	}
	return issues
}

func target(s *models.SnapshotRecord) string {
	switch {
	case s.StackID != "":
		return "stack " + s.StackID
	case s.ComponentID != "":
		return "component " + s.ComponentID
	default:
		return "nothing"
	}
}

func (a *Auditor) pseudo(idx *snapshotIndex) []Finding {
	var out []Finding
	for _, s := range idx.snapshots {
		issues := a.namePatternIssues(s)
		issues = append(issues, a.fileIssues(idx, s)...)
		issues = append(issues, missingFields(s)...)
		if len(issues) > 0 {
			out = append(out, finding(s, issues))
		}
	}
	return out
}

func (a *Auditor) namePatternIssues(s *models.SnapshotRecord) []string {
	var issues []string
	for _, re := range a.patterns {
		if re.MatchString(s.Label) || re.MatchString(s.MachineName) {
			issues = append(issues, fmt.Sprintf("name matches placeholder pattern %s", re))
		}
	}
	return issues
}

// fileIssues checks the bag and checksum file entities of a record.
func (a *Auditor) fileIssues(idx *snapshotIndex, s *models.SnapshotRecord) []string {
	var issues []string
	for _, ref := range []struct{ role, id string }{{"bag file", s.BagFileID}, {"checksum file", s.ChecksumFileID}} {
		if ref.id == "" {
			continue
		}
		f, ok := idx.files[ref.id]
		if !ok {
			issues = append(issues, fmt.Sprintf("%s entity %s no longer exists", ref.role, ref.id))
			continue
		}
		if f.Scheme() == models.SchemeTemporary {
			issues = append(issues, fmt.Sprintf("%s lives in temporary storage", ref.role))
		}
		if !a.onDisk(f) {
			issues = append(issues, fmt.Sprintf("%s %s missing on disk", ref.role, f.URI))
		}
	}
	return issues
}

func missingFields(s *models.SnapshotRecord) []string {
	var issues []string
	if s.Directory == "" {
		issues = append(issues, "missing directory")
	}
	if s.BagFileID == "" {
		issues = append(issues, "missing bag file")
	}
	if s.ChecksumFileID == "" {
		issues = append(issues, "missing checksum file")
	}
	return issues
}

func (a *Auditor) onDisk(f *models.FileEntity) bool {
	local, err := a.storage.RealPath(f.URI)
	if err != nil {
		return false
	}
	_, err = a.fs.Stat(local)
	return err == nil
}

// looksLikeSnapshotFile matches bag archives, checksums and anything under
// the snapshot storage tree.
func (a *Auditor) looksLikeSnapshotFile(f *models.FileEntity) bool {
	uri := f.URI
	return strings.HasSuffix(uri, snapshot.BagSuffix) ||
		strings.HasSuffix(uri, snapshot.ChecksumSuffix) ||
		strings.HasSuffix(uri, ".tar.gz") ||
		a.storage.IsSnapshotPath(uri)
}

func (a *Auditor) orphanedFiles(idx *snapshotIndex) []FileFinding {
	refs := idx.fileRefs()

	ids := make([]string, 0, len(idx.files))
	for id := range idx.files {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var out []FileFinding
	for _, id := range ids {
		f := idx.files[id]
		_, referenced := refs[id]
		switch {
		case referenced && !a.onDisk(f):
			out = append(out, FileFinding{FileID: id, URI: f.URI, Issue: "referenced by a snapshot but missing on disk"})
		case !referenced && a.looksLikeSnapshotFile(f):
			out = append(out, FileFinding{FileID: id, URI: f.URI, Issue: "not referenced by any snapshot"})
		}
	}
	return out
}
