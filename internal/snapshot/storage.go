// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package snapshot

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/tomtom215/stacksnap/internal/models"
)

// Storage maps managed-file URIs to local paths and carries the snapshot
// layout settings.
type Storage struct {
	PrivateRoot   string
	PublicRoot    string
	TemporaryRoot string

	// SnapshotSubpath is the directory under PrivateRoot holding snapshots.
	SnapshotSubpath string

	// PublicURLBase prefixes public download paths for bags.
	PublicURLBase string

	// HostPrivateRoot is PrivateRoot as seen by the container engine host.
	// Empty means the same path.
	HostPrivateRoot string
}

// ErrUnsafePath is returned when an owner or machine name would place
// snapshot files outside the snapshot tree.
var ErrUnsafePath = errors.New("snapshot path escapes the snapshot tree")

// Plan computes the paths of one snapshot component. It trusts its inputs;
// anything that writes to the planned paths goes through SafePlan.
func (s Storage) Plan(owner, machineName string, ts int64, bundle models.Bundle) Paths {
	return PlanPaths(s.PrivateRoot, s.SnapshotSubpath, s.PublicURLBase, owner, machineName, ts, bundle)
}

// SafePlan is Plan for paths about to be written. Owner and machine name
// must each be a single path segment and the backup directory must stay
// below the snapshot tree.
func (s Storage) SafePlan(owner, machineName string, ts int64, bundle models.Bundle) (Paths, error) {
	if !models.IsPathSegment(owner) {
		return Paths{}, fmt.Errorf("%w: owner %q", ErrUnsafePath, owner)
	}
	if !models.IsPathSegment(machineName) {
		return Paths{}, fmt.Errorf("%w: machine name %q", ErrUnsafePath, machineName)
	}

	p := s.Plan(owner, machineName, ts, bundle)
	if !s.InSnapshotTree(p.BackupDir) {
		return Paths{}, fmt.Errorf("%w: %s", ErrUnsafePath, p.BackupDir)
	}
	return p, nil
}

// InSnapshotTree reports whether the local path dir lies strictly below
// PrivateRoot/SnapshotSubpath once cleaned.
func (s Storage) InSnapshotTree(dir string) bool {
	tree := path.Clean(strings.TrimRight(s.PrivateRoot, "/") + "/" + strings.Trim(s.SnapshotSubpath, "/"))
	prefix := tree
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return strings.HasPrefix(path.Clean(dir), prefix)
}

// RealPath resolves a scheme URI to an absolute local path. Plain paths are
// returned unchanged.
func (s Storage) RealPath(uri string) (string, error) {
	scheme, target, ok := strings.Cut(uri, "://")
	if !ok {
		return uri, nil
	}

	var root string
	switch scheme {
	case models.SchemePrivate:
		root = s.PrivateRoot
	case models.SchemePublic:
		root = s.PublicRoot
	case models.SchemeTemporary:
		root = s.TemporaryRoot
	default:
		return "", fmt.Errorf("unsupported file scheme %q", scheme)
	}
	if root == "" {
		return "", fmt.Errorf("no storage root configured for scheme %q", scheme)
	}

	clean := filepath.Join(root, filepath.FromSlash(target))
	if clean != filepath.Clean(root) && !strings.HasPrefix(clean, filepath.Clean(root)+string(filepath.Separator)) {
		return "", fmt.Errorf("uri %q escapes its storage root", uri)
	}
	return clean, nil
}

// PrivateURI builds the private:// URI of a path relative to PrivateRoot.
func (s Storage) PrivateURI(relative string) string {
	return models.FileURI(models.SchemePrivate, relative)
}

// HostPath translates a local path under PrivateRoot to the engine host path.
func (s Storage) HostPath(local string) string {
	if s.HostPrivateRoot == "" {
		return local
	}
	root := strings.TrimRight(s.PrivateRoot, "/")
	if rest, ok := strings.CutPrefix(local, root); ok {
		return strings.TrimRight(s.HostPrivateRoot, "/") + rest
	}
	return local
}

// IsSnapshotPath reports whether a URI lies in the snapshot storage tree.
func (s Storage) IsSnapshotPath(uri string) bool {
	scheme, target, ok := strings.Cut(uri, "://")
	if !ok || scheme != models.SchemePrivate {
		return false
	}
	sub := strings.Trim(s.SnapshotSubpath, "/")
	return sub != "" && (target == sub || strings.HasPrefix(target, sub+"/"))
}
