// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package models

import (
	"errors"
	"slices"
	"strings"
	"time"
)

// ErrNotFound is returned by entity lookups when the entity does not exist.
var ErrNotFound = errors.New("entity not found")

// Stack groups the components of one hosted application.
type Stack struct {
	ID           string    `json:"id"`
	Label        string    `json:"label"`
	MachineName  string    `json:"machine_name"`
	Owner        string    `json:"owner"`
	ComponentIDs []string  `json:"component_ids"`
	SnapshotIDs  []string  `json:"snapshot_ids,omitempty"`
	Created      time.Time `json:"created"`
}

// Component is one service of a stack running in a managed container.
type Component struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	MachineName string `json:"machine_name"`
	Owner       string `json:"owner"`
	Bundle      Bundle `json:"bundle"`

	// ContainerName is the name of the container hosting the service.
	ContainerName string `json:"container_name,omitempty"`

	// Database settings, used when Bundle is a database.
	DatabaseName string `json:"database_name,omitempty"`
	DatabaseUser string `json:"database_user,omitempty"`
	DatabaseHost string `json:"database_host,omitempty"`

	// ServiceKey names the credential in the key store.
	ServiceKey string `json:"service_key,omitempty"`

	// RepositoryID is the triple store repository, used when Bundle is a triple store.
	RepositoryID string `json:"repository_id,omitempty"`

	// ConnectedIDs lists components this one is linked with (e.g. app <-> db).
	ConnectedIDs []string  `json:"connected_ids,omitempty"`
	SnapshotIDs  []string  `json:"snapshot_ids,omitempty"`
	Created      time.Time `json:"created"`
}

// SnapshotStatus is the lifecycle state of a snapshot record.
type SnapshotStatus string

const (
	SnapshotPending   SnapshotStatus = "pending"
	SnapshotCompleted SnapshotStatus = "completed"
	SnapshotFailed    SnapshotStatus = "failed"
)

// SnapshotRecord is a persisted backup record. It points at either a stack
// or a single component, never both.
type SnapshotRecord struct {
	ID          string         `json:"id"`
	Label       string         `json:"label"`
	MachineName string         `json:"machine_name"`
	Owner       string         `json:"owner"`
	Status      SnapshotStatus `json:"status"`
	Created     time.Time      `json:"created"`

	StackID     string `json:"stack_id,omitempty"`
	ComponentID string `json:"component_id,omitempty"`

	// Directory is the absolute backup directory of the snapshot.
	Directory string `json:"directory,omitempty"`

	// BagFileID and ChecksumFileID reference FileEntity records.
	BagFileID      string `json:"bag_file_id,omitempty"`
	ChecksumFileID string `json:"checksum_file_id,omitempty"`

	// Timestamp is the epoch second used in every path of the snapshot.
	Timestamp int64 `json:"timestamp"`
}

// Targets reports the bundle class of the snapshot subject.
func (s *SnapshotRecord) Targets() string {
	switch {
	case s.StackID != "":
		return "stack"
	case s.ComponentID != "":
		return "component"
	default:
		return ""
	}
}

// ReferencedBy reports whether ids contains the snapshot.
func (s *SnapshotRecord) ReferencedBy(ids []string) bool {
	return slices.Contains(ids, s.ID)
}

// URI schemes of managed files.
const (
	SchemePrivate   = "private"
	SchemePublic    = "public"
	SchemeTemporary = "temporary"
)

// FileEntity is a managed file addressed by a scheme URI such as
// private://snapshots/alice/....
type FileEntity struct {
	ID      string    `json:"id"`
	URI     string    `json:"uri"`
	Size    int64     `json:"size"`
	Owner   string    `json:"owner,omitempty"`
	Created time.Time `json:"created"`
}

// Scheme returns the URI scheme, or "" when the URI has none.
func (f *FileEntity) Scheme() string {
	scheme, _, ok := strings.Cut(f.URI, "://")
	if !ok {
		return ""
	}
	return scheme
}

// Target returns the path part of the URI.
func (f *FileEntity) Target() string {
	_, target, ok := strings.Cut(f.URI, "://")
	if !ok {
		return f.URI
	}
	return target
}

// FileURI builds a scheme URI from a relative target path.
func FileURI(scheme, target string) string {
	return scheme + "://" + strings.TrimPrefix(target, "/")
}

// IsPathSegment reports whether s is usable as a single directory name in
// the storage tree. Separators, control characters, ".." and a leading dot
// are rejected.
func IsPathSegment(s string) bool {
	if s == "" || strings.HasPrefix(s, ".") || strings.Contains(s, "..") || strings.ContainsAny(s, `/\`) {
		return false
	}
	for _, c := range s {
		if c < 0x20 || c == 0x7f {
			return false
		}
	}
	return true
}
