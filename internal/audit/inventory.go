// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package audit

import (
	"context"

	"github.com/tomtom215/stacksnap/internal/models"
)

// Inventory is the entity layer view the auditor works on.
type Inventory interface {
	Snapshots(ctx context.Context) ([]*models.SnapshotRecord, error)
	Stacks(ctx context.Context) ([]*models.Stack, error)
	Components(ctx context.Context) ([]*models.Component, error)
	Files(ctx context.Context) ([]*models.FileEntity, error)

	DeleteSnapshot(ctx context.Context, id string) error
	DeleteFile(ctx context.Context, id string) error
}

// snapshotIndex is one consistent load of the inventory.
type snapshotIndex struct {
	snapshots  []*models.SnapshotRecord
	stacks     map[string]*models.Stack
	components map[string]*models.Component
	files      map[string]*models.FileEntity

	// referrers maps a snapshot ID to the stacks and components listing it.
	stackRefs     map[string][]string
	componentRefs map[string][]string
}

func loadIndex(ctx context.Context, inv Inventory) (*snapshotIndex, error) {
	snaps, err := inv.Snapshots(ctx)
	if err != nil {
		return nil, err
	}
	stacks, err := inv.Stacks(ctx)
	if err != nil {
		return nil, err
	}
	components, err := inv.Components(ctx)
	if err != nil {
		return nil, err
	}
	files, err := inv.Files(ctx)
	if err != nil {
		return nil, err
	}

	idx := &snapshotIndex{
		snapshots:     snaps,
		stacks:        make(map[string]*models.Stack, len(stacks)),
		components:    make(map[string]*models.Component, len(components)),
		files:         make(map[string]*models.FileEntity, len(files)),
		stackRefs:     make(map[string][]string),
		componentRefs: make(map[string][]string),
	}
	for _, s := range stacks {
		idx.stacks[s.ID] = s
		for _, id := range s.SnapshotIDs {
			idx.stackRefs[id] = append(idx.stackRefs[id], s.ID)
		}
	}
	for _, c := range components {
		idx.components[c.ID] = c
		for _, id := range c.SnapshotIDs {
			idx.componentRefs[id] = append(idx.componentRefs[id], c.ID)
		}
	}
	for _, f := range files {
		idx.files[f.ID] = f
	}
	return idx, nil
}

func (idx *snapshotIndex) referenced(snapshotID string) bool {
	return len(idx.stackRefs[snapshotID]) > 0 || len(idx.componentRefs[snapshotID]) > 0
}

// fileRefs maps file IDs to the snapshots referencing them.
func (idx *snapshotIndex) fileRefs() map[string][]string {
	refs := make(map[string][]string)
	for _, s := range idx.snapshots {
		if s.BagFileID != "" {
			refs[s.BagFileID] = append(refs[s.BagFileID], s.ID)
		}
		if s.ChecksumFileID != "" {
			refs[s.ChecksumFileID] = append(refs[s.ChecksumFileID], s.ID)
		}
	}
	return refs
}
