// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
creator.go - Create Snapshot Workflow

Runs one snapshot end to end for a stack or a single component:

 1. Dump every dumpable member (database pair and triple store repositories)
 2. Start the bag container over the produced dumps
 3. Wait for the bag container and remove it when it finishes
 4. Persist the snapshot record and its file entities
 5. Run safe cleanup for the operator

A failed snapshot is still persisted with status "failed" but is not
attached to its target, so later cleanups are free to remove it once the
operator's grace period has passed.
*/

//nolint:staticcheck // File documentation, not package doc
package workflow

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/stacksnap/internal/audit"
	"github.com/tomtom215/stacksnap/internal/database"
	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/metrics"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/result"
	"github.com/tomtom215/stacksnap/internal/snapshot"
	"github.com/tomtom215/stacksnap/internal/validation"
)

// DatabaseDumper produces database dumps.
type DatabaseDumper interface {
	DumpDatabase(ctx context.Context, subject database.Subject, target snapshot.Target) (*snapshot.Dump, result.Result)
}

// TriplestoreExporter produces N-Quads exports.
type TriplestoreExporter interface {
	Export(ctx context.Context, component *models.Component, target snapshot.Target) (*snapshot.Dump, result.Result)
}

// BagBuilder starts bag assembly.
type BagBuilder interface {
	CreateBagOfFiles(ctx context.Context, req snapshot.BagRequest) (*snapshot.Bag, result.Result)
}

// ContainerWaiter blocks until a container finishes.
type ContainerWaiter interface {
	WaitForContainer(ctx context.Context, id string, deleteOnFinish bool) result.Result
}

// Cleaner runs the post-creation cleanup.
type Cleaner interface {
	SafeCleanupAfterSnapshotCreation(ctx context.Context, req audit.SafeCleanupRequest) (*audit.SafeCleanupResult, result.Result)
}

// Records is the entity layer the workflow reads and writes.
type Records interface {
	Stack(ctx context.Context, id string) (*models.Stack, error)
	Component(ctx context.Context, id string) (*models.Component, error)
	PutSnapshot(ctx context.Context, snap *models.SnapshotRecord) error
	AttachSnapshot(ctx context.Context, snap *models.SnapshotRecord) error
	PutFile(ctx context.Context, f *models.FileEntity) error
}

// Deps are the collaborators of a Creator.
type Deps struct {
	Records   Records
	Databases DatabaseDumper
	Exports   TriplestoreExporter
	Bags      BagBuilder
	Waiter    ContainerWaiter
	Cleaner   Cleaner
	Storage   snapshot.Storage
	FS        snapshot.FS

	// Now overrides the clock in tests.
	Now func() time.Time
}

// Creator runs the create snapshot workflow.
type Creator struct {
	deps Deps
}

// NewCreator creates a Creator.
func NewCreator(deps Deps) *Creator {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.FS == nil {
		deps.FS = snapshot.OSFS{}
	}
	return &Creator{deps: deps}
}

// CreateRequest names the snapshot subject. Exactly one of StackID and
// ComponentID is set.
type CreateRequest struct {
	StackID     string `json:"stack_id,omitempty"`
	ComponentID string `json:"component_id,omitempty"`
	Label       string `json:"label" validate:"required,max=255"`

	// MachineName defaults to a normalised Label.
	MachineName string `json:"machine_name,omitempty" validate:"omitempty,max=128,path_segment"`

	// Owner names a directory level of the snapshot tree.
	Owner string `json:"owner" validate:"required,max=128,path_segment"`

	// SkipCleanup disables the post-creation safe cleanup.
	SkipCleanup bool `json:"skip_cleanup,omitempty"`
}

var nonMachine = regexp.MustCompile(`[^a-z0-9]+`)

// MachineNameOf normalises a label into a machine name.
func MachineNameOf(label string) string {
	return strings.Trim(nonMachine.ReplaceAllString(strings.ToLower(label), "_"), "_")
}

type subject struct {
	stack     *models.Stack
	component *models.Component
	members   []*models.Component
}

// CreateSnapshot runs the full workflow and returns the persisted record.
func (c *Creator) CreateSnapshot(ctx context.Context, req CreateRequest) (*models.SnapshotRecord, result.Result) {
	start := c.deps.Now()
	var record *models.SnapshotRecord

	r := result.Guard("create_snapshot", func() result.Result {
		var r result.Result
		record, r = c.create(ctx, req)
		return r
	})

	status := string(models.SnapshotCompleted)
	if r.Failed() {
		status = string(models.SnapshotFailed)
	}
	metrics.RecordSnapshot(status, c.deps.Now().Sub(start))

	if record != nil {
		r = r.With("snapshot_id", record.ID)
	}
	return record, logging.Outcome(ctx, "workflow", "create_snapshot", r)
}

func (c *Creator) create(ctx context.Context, req CreateRequest) (*models.SnapshotRecord, result.Result) {
	if verr := validation.ValidateStruct(&req); verr != nil {
		return nil, result.Fail(result.KindData, "invalid snapshot request", verr)
	}
	subj, r := c.resolve(ctx, req)
	if r.Failed() {
		return nil, r
	}

	machineName := req.MachineName
	if machineName == "" {
		machineName = MachineNameOf(req.Label)
	}
	if machineName == "" {
		return nil, result.Failf(result.KindData, "label %q does not yield a machine name", req.Label)
	}

	ts := c.deps.Now().Unix()
	target := snapshot.Target{Owner: req.Owner, SnapshotMachineName: machineName, Timestamp: ts}
	p, err := c.deps.Storage.SafePlan(req.Owner, machineName, ts, models.BundleStack)
	if err != nil {
		return nil, result.Fail(result.KindData, "refusing to plan snapshot paths", err)
	}

	record := &models.SnapshotRecord{
		ID:          uuid.New().String(),
		Label:       req.Label,
		MachineName: machineName,
		Owner:       req.Owner,
		Status:      models.SnapshotPending,
		Created:     c.deps.Now().UTC(),
		StackID:     req.StackID,
		ComponentID: req.ComponentID,
		Directory:   p.BackupDir,
		Timestamp:   ts,
	}
	log := logging.Ctx(ctx).With().
		Str("snapshot_id", record.ID).
		Str("machine_name", machineName).
		Int64("timestamp", ts).
		Logger()
	log.Info().Int("members", len(subj.members)).Msg("Creating snapshot")

	dumps, r := c.dumpAll(ctx, subj, target)
	if r.Failed() {
		return c.fail(ctx, record, r)
	}

	bag, r := c.deps.Bags.CreateBagOfFiles(ctx, snapshot.BagRequest{
		Owner:       req.Owner,
		MachineName: machineName,
		Timestamp:   ts,
		Dumps:       dumps,
	})
	if r.Failed() {
		return c.fail(ctx, record, r)
	}

	if r := c.deps.Waiter.WaitForContainer(ctx, bag.ContainerID, true); r.Failed() {
		return c.fail(ctx, record, r.With("container_id", bag.ContainerID))
	}

	bagFile, r := c.registerFile(ctx, bag.BagFile, req.Owner)
	if r.Failed() {
		return c.fail(ctx, record, r)
	}
	sumFile, r := c.registerFile(ctx, bag.ChecksumFile, req.Owner)
	if r.Failed() {
		return c.fail(ctx, record, r)
	}

	record.BagFileID = bagFile.ID
	record.ChecksumFileID = sumFile.ID
	record.Status = models.SnapshotCompleted
	if err := c.deps.Records.AttachSnapshot(ctx, record); err != nil {
		return record, result.Fail(result.KindState, "failed to persist snapshot record", err)
	}
	log.Info().Str("bag", bag.BagFile).Int("dumps", len(dumps)).Msg("Snapshot completed")

	out := result.OK("snapshot created", nil).
		With("bag_file", bag.BagFile).
		With("checksum_file", bag.ChecksumFile).
		With("public_url", bag.Paths.PublicBagURL).
		With("dumps", len(dumps))

	if !req.SkipCleanup && c.deps.Cleaner != nil {
		cleaned, cr := c.deps.Cleaner.SafeCleanupAfterSnapshotCreation(ctx, audit.SafeCleanupRequest{
			OperatorID:    req.Owner,
			NewSnapshotID: record.ID,
		})
		if cr.Failed() {
			log.Warn().Str("error", cr.Error).Msg("Safe cleanup after snapshot creation failed")
			out = out.With("cleanup_error", cr.Error)
		} else {
			out = out.With("cleaned_up", cleaned.Deleted)
		}
	}
	return record, out
}

func (c *Creator) resolve(ctx context.Context, req CreateRequest) (subject, result.Result) {
	switch {
	case req.StackID != "" && req.ComponentID != "":
		return subject{}, result.Failf(result.KindData, "a snapshot targets a stack or a component, not both")
	case req.StackID != "":
		st, err := c.deps.Records.Stack(ctx, req.StackID)
		if err != nil {
			return subject{}, result.Fail(result.KindResolution, "stack not found", err).With("stack_id", req.StackID)
		}
		members := make([]*models.Component, 0, len(st.ComponentIDs))
		for _, id := range st.ComponentIDs {
			comp, err := c.deps.Records.Component(ctx, id)
			if err != nil {
				return subject{}, result.Fail(result.KindResolution, "stack member not found", err).With("component_id", id)
			}
			members = append(members, comp)
		}
		return subject{stack: st, members: members}, result.OK("resolved", nil)
	case req.ComponentID != "":
		comp, err := c.deps.Records.Component(ctx, req.ComponentID)
		if err != nil {
			return subject{}, result.Fail(result.KindResolution, "component not found", err).With("component_id", req.ComponentID)
		}
		return subject{component: comp, members: []*models.Component{comp}}, result.OK("resolved", nil)
	default:
		return subject{}, result.Failf(result.KindData, "a snapshot needs a stack or a component")
	}
}

// dumpAll produces one database dump for the subject's database pair and
// one export per triple store member. Any failing dump fails the snapshot.
func (c *Creator) dumpAll(ctx context.Context, subj subject, target snapshot.Target) ([]snapshot.Dump, result.Result) {
	var dumps []snapshot.Dump
	databaseDone := false

	for _, m := range subj.members {
		switch m.Bundle.Category() {
		case models.CategoryDatabase, models.CategoryApplication:
			if databaseDone {
				continue
			}
			databaseDone = true

			s := database.ComponentSubject(m)
			if subj.stack != nil {
				s = database.StackSubject(subj.stack)
			}
			d, r := c.deps.Databases.DumpDatabase(ctx, s, target)
			if r.Failed() {
				return nil, r
			}
			dumps = append(dumps, *d)
		case models.CategoryTriplestore:
			d, r := c.deps.Exports.Export(ctx, m, target)
			if r.Failed() {
				return nil, r
			}
			dumps = append(dumps, *d)
		default:
			logging.Ctx(ctx).Debug().
				Str("component", m.MachineName).
				Str("bundle", string(m.Bundle)).
				Msg("Skipping component without a dump strategy")
		}
	}

	if len(dumps) == 0 {
		return nil, result.Failf(result.KindData, "nothing to snapshot: no member has a database or triple store")
	}
	return dumps, result.OK("dumped", nil)
}

func (c *Creator) registerFile(ctx context.Context, relative, owner string) (*models.FileEntity, result.Result) {
	uri := c.deps.Storage.PrivateURI(relative)
	local, err := c.deps.Storage.RealPath(uri)
	if err != nil {
		return nil, result.Fail(result.KindConfiguration, "cannot resolve snapshot file", err).With("uri", uri)
	}
	info, err := c.deps.FS.Stat(local)
	if err != nil {
		return nil, result.Fail(result.KindIntegrity, "bag container finished without producing "+relative, err)
	}

	f := &models.FileEntity{
		ID:      uuid.New().String(),
		URI:     uri,
		Size:    info.Size(),
		Owner:   owner,
		Created: c.deps.Now().UTC(),
	}
	if err := c.deps.Records.PutFile(ctx, f); err != nil {
		return nil, result.Fail(result.KindState, "failed to persist file entity", err).With("uri", uri)
	}
	return f, result.OK("file registered", nil)
}

// fail persists the record with status failed and returns the original
// failure. A persistence error is logged and does not mask the cause.
func (c *Creator) fail(ctx context.Context, record *models.SnapshotRecord, cause result.Result) (*models.SnapshotRecord, result.Result) {
	record.Status = models.SnapshotFailed
	if err := c.deps.Records.PutSnapshot(context.WithoutCancel(ctx), record); err != nil {
		logging.Ctx(ctx).Error().Err(err).Str("snapshot_id", record.ID).Msg("Failed to persist failed snapshot record")
		return record, cause.With("persist_error", err.Error())
	}
	return record, cause.With("status", string(record.Status))
}
