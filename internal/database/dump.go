// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package database

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/stacksnap/internal/container"
	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/metrics"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/result"
	"github.com/tomtom215/stacksnap/internal/snapshot"
)

// Config controls how dumps are produced.
type Config struct {
	// DefaultContainer runs the dump when the subject has no application container.
	DefaultContainer string

	// User is the unprivileged file owner the pipeline runs as.
	User string

	// Shell runs the pipeline. It must understand -o pipefail.
	Shell string

	DumpTool    string
	RestoreTool string
	Compressor  string

	// ServiceKeyPattern builds the key name from the database machine name
	// when the component carries no explicit ServiceKey.
	ServiceKeyPattern string

	// ContainerRoot is the private storage root as mounted inside the
	// application containers. Empty means the same path as locally.
	ContainerRoot string

	// CacheClear runs in the application container after a restore. Empty skips it.
	CacheClear []string
}

// DefaultConfig returns defaults for MariaDB-backed stacks.
func DefaultConfig() Config {
	return Config{
		User:              "www-data",
		Shell:             "bash",
		DumpTool:          "mysqldump",
		RestoreTool:       "mysql",
		Compressor:        "gzip",
		ServiceKeyPattern: "%s_db_password",
	}
}

// Coordinator resolves dump subjects and runs dumps in containers.
type Coordinator struct {
	inventory Inventory
	keys      KeyStore
	orch      *container.Orchestrator
	storage   snapshot.Storage
	fs        snapshot.FS
	cfg       Config
}

// NewCoordinator creates a Coordinator.
func NewCoordinator(inv Inventory, keys KeyStore, orch *container.Orchestrator, storage snapshot.Storage, fsys snapshot.FS, cfg Config) *Coordinator {
	def := DefaultConfig()
	if cfg.Shell == "" {
		cfg.Shell = def.Shell
	}
	if cfg.DumpTool == "" {
		cfg.DumpTool = def.DumpTool
	}
	if cfg.RestoreTool == "" {
		cfg.RestoreTool = def.RestoreTool
	}
	if cfg.Compressor == "" {
		cfg.Compressor = def.Compressor
	}
	if cfg.ServiceKeyPattern == "" {
		cfg.ServiceKeyPattern = def.ServiceKeyPattern
	}
	if fsys == nil {
		fsys = snapshot.OSFS{}
	}
	return &Coordinator{inventory: inv, keys: keys, orch: orch, storage: storage, fs: fsys, cfg: cfg}
}

// ResolveContext resolves the database/application pair of a subject.
func (c *Coordinator) ResolveContext(ctx context.Context, subject Subject) (Pair, result.Result) {
	pair, r := ResolvePair(ctx, c.inventory, subject)
	if r.Failed() {
		return pair, logging.Outcome(ctx, "database", "resolve_context", r)
	}
	return pair, r
}

// execContainer picks the container that runs commands for a pair.
func (c *Coordinator) execContainer(pair Pair) string {
	if pair.Application != nil && pair.Application.ContainerName != "" {
		return pair.Application.ContainerName
	}
	if c.cfg.DefaultContainer != "" {
		return c.cfg.DefaultContainer
	}
	return pair.Database.ContainerName
}

// inContainer maps a local path under the private root to the container view.
func (c *Coordinator) inContainer(local string) string {
	if c.cfg.ContainerRoot == "" {
		return local
	}
	root := strings.TrimRight(c.storage.PrivateRoot, "/")
	if rest, ok := strings.CutPrefix(local, root); ok {
		return strings.TrimRight(c.cfg.ContainerRoot, "/") + rest
	}
	return local
}

func (c *Coordinator) password(ctx context.Context, db *models.Component) (string, result.Result) {
	name := db.ServiceKey
	if name == "" {
		name = fmt.Sprintf(c.cfg.ServiceKeyPattern, db.MachineName)
	}
	key, err := c.keys.ServiceKey(ctx, name)
	if errors.Is(err, models.ErrNotFound) || (err == nil && key == "") {
		return "", result.Failf(result.KindConfiguration, "service key %q for database %s not found", name, db.MachineName).
			With("service_key", name)
	}
	if err != nil {
		return "", result.Fail(result.KindTransport, "failed to read service key", err).With("service_key", name)
	}
	return key, result.OK("service key resolved", nil)
}

func (c *Coordinator) shell(script string) []string {
	return []string{c.cfg.Shell, "-o", "pipefail", "-c", script}
}

// DumpDatabase dumps the database of subject into the snapshot content tree
// and returns the dump description for the bag manifest.
func (c *Coordinator) DumpDatabase(ctx context.Context, subject Subject, target snapshot.Target) (*snapshot.Dump, result.Result) {
	pair, r := c.ResolveContext(ctx, subject)
	if r.Failed() {
		return nil, r
	}
	db := pair.Database
	containerName := c.execContainer(pair)
	if containerName == "" {
		return nil, logging.Outcome(ctx, "database", "dump",
			result.Failf(result.KindConfiguration, "no container available to dump %s", db.MachineName))
	}

	p, err := c.storage.SafePlan(target.Owner, target.SnapshotMachineName, target.Timestamp, db.Bundle)
	if err != nil {
		return nil, logging.Outcome(ctx, "database", "dump", result.Fail(result.KindData, "refusing to plan dump paths", err))
	}
	contentDir := c.inContainer(p.ContentDir)
	outFile := contentDir + "/" + p.DumpFile

	mkdir := c.orch.RunExec(ctx, containerName, container.ExecRequest{
		Cmd:  []string{"mkdir", "-p", contentDir},
		User: c.cfg.User,
	})
	if mkdir.Failed() {
		return nil, logging.Outcome(ctx, "database", "dump",
			result.Fail(result.KindState, "failed to create backup directory in "+containerName, fmt.Errorf("%s", mkdir.Error)).
				With("directory", contentDir))
	}

	password, r := c.password(ctx, db)
	if r.Failed() {
		return nil, logging.Outcome(ctx, "database", "dump", r)
	}

	script := fmt.Sprintf("%s --single-transaction --quick --routines%s -u %s %s | %s > %s && cd %s && sha256sum %s > %s",
		c.cfg.DumpTool,
		hostFlag(db.DatabaseHost),
		quote(db.DatabaseUser),
		quote(db.DatabaseName),
		c.cfg.Compressor,
		quote(outFile),
		quote(contentDir),
		quote(p.DumpFile),
		quote(p.DumpFile+snapshot.ChecksumSuffix))

	ran := c.orch.RunExec(ctx, containerName, container.ExecRequest{
		Cmd:  c.shell(script),
		User: c.cfg.User,
		Env:  []string{"MYSQL_PWD=" + password},
	})
	if ran.Failed() {
		metrics.RecordDump(p.TypeTag, 0, errors.New(ran.Error))
		return nil, logging.Outcome(ctx, "database", "dump",
			result.Fail(ran.Kind, fmt.Sprintf("database dump of %s failed", db.MachineName), fmt.Errorf("%s", ran.Error)).
				With("container", containerName).
				With("exit_code", ran.Data["exit_code"]))
	}

	var size int64
	if info, err := c.fs.Stat(p.ContentDir + "/" + p.DumpFile); err == nil {
		size = info.Size()
	}
	metrics.RecordDump(p.TypeTag, size, nil)

	dump := &snapshot.Dump{
		Bundle:       db.Bundle,
		EntityID:     db.ID,
		MachineName:  db.MachineName,
		TypeTag:      p.TypeTag,
		DumpFile:     p.DumpFile,
		ChecksumFile: p.DumpFile + snapshot.ChecksumSuffix,
	}
	logging.Ctx(ctx).Info().
		Str("database", db.MachineName).
		Str("container", containerName).
		Str("dump_file", p.DumpFile).
		Int64("bytes", size).
		Msg("Database dumped")

	return dump, result.OK("database dumped", nil).
		With("dump_file", p.DumpFile).
		With("dump_path", p.ContentDir+"/"+p.DumpFile).
		With("container", containerName).
		With("bytes", size)
}

func hostFlag(host string) string {
	if host == "" {
		return ""
	}
	return " -h " + quote(host)
}

// quote single-quotes s for sh.
func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
