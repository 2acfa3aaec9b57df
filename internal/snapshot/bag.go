// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
bag.go - Bag Assembler

A bag is one tar.gz holding manifest.json plus every component dump of a
snapshot, with a sibling .sha256 file. Assembly runs in an ephemeral helper
container mounted on the snapshot backup directory:

	<backupDir>/
	  sql/<machine>--<ts>--sql.sql.gz
	  nq/<machine>--<ts>.nq
	  bag/manifest.json
	  bag/<snapshot>--<ts>.contents.tar.gz
	  bag/<snapshot>--<ts>.contents.tar.gz.sha256

The container is started and not awaited. Callers that need the archive
wait for the returned container ID through the orchestrator.
*/

//nolint:staticcheck // File documentation, not package doc
package snapshot

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/tomtom215/stacksnap/internal/container"
	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/result"
)

// Content file roles inside a manifest contentFiles entry.
const (
	RoleDump     = "dump"
	RoleChecksum = "checksum"
)

// Dump describes one component dump produced into the snapshot content tree.
type Dump struct {
	Bundle      models.Bundle `json:"bundle"`
	EntityID    string        `json:"entity_id"`
	MachineName string        `json:"machine_name"`
	TypeTag     string        `json:"type_tag"`

	// DumpFile and ChecksumFile are names inside <backupDir>/<typeTag>/.
	DumpFile     string `json:"dump_file"`
	ChecksumFile string `json:"checksum_file,omitempty"`
}

func (d Dump) roles() map[string]string {
	roles := map[string]string{RoleDump: d.DumpFile}
	if d.ChecksumFile != "" {
		roles[RoleChecksum] = d.ChecksumFile
	}
	return roles
}

// mergeRoles adds the files of d under tag. The first dump of a tag keeps
// the bare role names; later dumps sharing the tag qualify each role as
// role@machine so no file is dropped from the listing.
func mergeRoles(content map[string]map[string]string, tag string, d Dump) {
	entry, ok := content[tag]
	if !ok {
		content[tag] = d.roles()
		return
	}
	owner := d.MachineName
	if owner == "" {
		owner = d.EntityID
	}
	for role, file := range d.roles() {
		key := role + "@" + owner
		for n := 2; ; n++ {
			if _, taken := entry[key]; !taken {
				break
			}
			key = fmt.Sprintf("%s@%s#%d", role, owner, n)
		}
		entry[key] = file
	}
}

// BagRequest identifies the snapshot whose dumps are packaged.
type BagRequest struct {
	Owner       string
	MachineName string
	Timestamp   int64
	Dumps       []Dump
}

// Bag is the outcome of a started assembly.
type Bag struct {
	ContainerID string    `json:"container_id"`
	Paths       Paths     `json:"-"`
	Manifest    *Manifest `json:"manifest"`

	// Relative to the private root.
	BagFile      string `json:"bag_file"`
	ChecksumFile string `json:"checksum_file"`
	ManifestFile string `json:"manifest_file"`
}

// AssemblerConfig configures the helper container.
type AssemblerConfig struct {
	// Image is a minimal image with sh, tar, gzip and sha256sum.
	Image string

	// User runs the helper, typically the uid:gid owning the backup tree.
	User string

	// Mount is where the backup directory appears inside the helper.
	Mount string
}

// Assembler builds bags.
type Assembler struct {
	api     container.API
	storage Storage
	fs      FS
	cfg     AssemblerConfig
}

// NewAssembler creates an Assembler.
func NewAssembler(api container.API, storage Storage, fsys FS, cfg AssemblerConfig) *Assembler {
	if cfg.Image == "" {
		cfg.Image = "alpine:3.20"
	}
	if cfg.Mount == "" {
		cfg.Mount = "/backup"
	}
	if fsys == nil {
		fsys = OSFS{}
	}
	return &Assembler{api: api, storage: storage, fs: fsys, cfg: cfg}
}

// BuildManifest assembles the manifest document for a bag request.
func BuildManifest(req BagRequest, p Paths) *Manifest {
	content := make(map[string]map[string]string, len(req.Dumps))
	mapping := make([]MappingEntry, 0, len(req.Dumps))
	for _, d := range req.Dumps {
		tag := d.TypeTag
		if tag == "" {
			tag = models.TypeTag(d.Bundle)
		}
		mergeRoles(content, tag, d)
		mapping = append(mapping, MappingEntry{
			Bundle:       string(d.Bundle),
			EntityID:     d.EntityID,
			MachineName:  d.MachineName,
			DumpFile:     d.DumpFile,
			ChecksumFile: d.ChecksumFile,
		})
	}

	return &Manifest{
		Version:             ManifestVersion,
		Algorithm:           ManifestAlgorithm,
		Created:             req.Timestamp,
		SnapshotMachineName: req.MachineName,
		Files: ManifestFiles{
			ContentFiles: content,
			BagFiles: BagFiles{
				BagFile:      p.RelativeBagFile,
				ChecksumFile: p.RelativeBagSumFile,
				Manifest:     ManifestFileName,
			},
		},
		Mapping: mapping,
	}
}

// CreateBagOfFiles writes the manifest and starts the helper container that
// tars and checksums the bag.
func (a *Assembler) CreateBagOfFiles(ctx context.Context, req BagRequest) (*Bag, result.Result) {
	if req.MachineName == "" || req.Owner == "" || req.Timestamp <= 0 {
		return nil, result.Failf(result.KindData, "bag request needs owner, machine name and timestamp")
	}
	if len(req.Dumps) == 0 {
		return nil, result.Failf(result.KindData, "bag request for %s has no dump files", req.MachineName)
	}

	p, err := a.storage.SafePlan(req.Owner, req.MachineName, req.Timestamp, models.BundleStack)
	if err != nil {
		return nil, logging.Outcome(ctx, "snapshot", "create_bag", result.Fail(result.KindData, "refusing to plan bag paths", err))
	}
	manifest := BuildManifest(req, p)

	if err := a.fs.MkdirAll(p.BagDir, 0o755); err != nil {
		return nil, logging.Outcome(ctx, "snapshot", "create_bag",
			result.Fail(result.KindState, "failed to create bag directory", err).With("bag_dir", p.BagDir))
	}

	data, err := manifest.Encode()
	if err != nil {
		return nil, logging.Outcome(ctx, "snapshot", "create_bag", result.Fail(result.KindData, "failed to encode manifest", err))
	}
	if err := a.fs.WriteFile(p.ManifestPath, data, 0o644); err != nil {
		return nil, logging.Outcome(ctx, "snapshot", "create_bag",
			result.Fail(result.KindState, "failed to write manifest", err).With("manifest", p.ManifestPath))
	}

	script := bagScript(req.Dumps, p)
	create := container.CreateRequest{
		Name:       fmt.Sprintf("stacksnap-bag-%s-%d-%s", req.MachineName, req.Timestamp, uuid.New().String()[:8]),
		Image:      a.cfg.Image,
		Cmd:        []string{"sh", "-c", script},
		User:       a.cfg.User,
		WorkingDir: a.cfg.Mount + "/" + BagDirName,
		Binds:      []string{a.storage.HostPath(p.BackupDir) + ":" + a.cfg.Mount},
	}

	created := a.api.CreateContainer(ctx, create)
	if !created.Success {
		a.discardManifest(p)
		return nil, logging.Outcome(ctx, "snapshot", "create_bag",
			result.Fail(result.KindTransport, "failed to create bag container", fmt.Errorf("%s", created.Error)).
				With("status_code", created.StatusCode))
	}
	id, err := container.ParseID(created.Data)
	if err != nil {
		a.discardManifest(p)
		return nil, logging.Outcome(ctx, "snapshot", "create_bag", result.Fail(result.KindData, "unreadable create response", err))
	}

	started := a.api.StartContainer(ctx, id)
	if !started.Success {
		a.api.RemoveContainer(context.WithoutCancel(ctx), id)
		a.discardManifest(p)
		return nil, logging.Outcome(ctx, "snapshot", "create_bag",
			result.Fail(result.KindTransport, "failed to start bag container", fmt.Errorf("%s", started.Error)).
				With("container_id", id))
	}

	bag := &Bag{
		ContainerID:  id,
		Paths:        p,
		Manifest:     manifest,
		BagFile:      p.RelativeBagFile,
		ChecksumFile: p.RelativeBagSumFile,
		ManifestFile: p.RelativeBagDir + "/" + ManifestFileName,
	}
	logging.Ctx(ctx).Info().
		Str("container_id", id).
		Str("bag", p.RelativeBagFile).
		Int("files", len(req.Dumps)).
		Msg("Bag container started")

	return bag, result.OK("bag container started", nil).
		With("container_id", id).
		With("bag_file", bag.BagFile).
		With("checksum_file", bag.ChecksumFile).
		With("manifest_file", bag.ManifestFile).
		With("public_url", p.PublicBagURL)
}

func (a *Assembler) discardManifest(p Paths) {
	a.fs.Remove(p.ManifestPath) //nolint:errcheck // Best effort cleanup
}

// fileList returns the bag member list relative to the bag directory.
func fileList(dumps []Dump) []string {
	files := []string{ManifestFileName}
	for _, d := range dumps {
		tag := d.TypeTag
		if tag == "" {
			tag = models.TypeTag(d.Bundle)
		}
		files = append(files, ContentRef(tag, d.DumpFile))
		if d.ChecksumFile != "" {
			files = append(files, ContentRef(tag, d.ChecksumFile))
		}
	}
	return files
}

func bagScript(dumps []Dump, p Paths) string {
	quoted := make([]string, 0, len(dumps)+1)
	for _, f := range fileList(dumps) {
		quoted = append(quoted, shellQuote(f))
	}
	return fmt.Sprintf("tar -czf %s %s && sha256sum %s > %s",
		shellQuote(p.BagFile),
		strings.Join(quoted, " "),
		shellQuote(p.BagFile),
		shellQuote(p.BagChecksumFile))
}

// shellQuote single-quotes s for sh.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
