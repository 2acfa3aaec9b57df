// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/tomtom215/stacksnap/internal/container"
	ct "github.com/tomtom215/stacksnap/internal/container/containertest"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/result"
	"github.com/tomtom215/stacksnap/internal/snapshot"
)

type fakeInventory struct {
	stacks     map[string]*models.Stack
	components map[string]*models.Component
	links      map[string][]string
	err        error
}

func (f *fakeInventory) Stack(_ context.Context, id string) (*models.Stack, error) {
	if s, ok := f.stacks[id]; ok {
		return s, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeInventory) Component(_ context.Context, id string) (*models.Component, error) {
	if f.err != nil {
		return nil, f.err
	}
	if c, ok := f.components[id]; ok {
		return c, nil
	}
	return nil, models.ErrNotFound
}

func (f *fakeInventory) Connected(_ context.Context, id string) ([]*models.Component, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []*models.Component
	for _, peer := range f.links[id] {
		if c, ok := f.components[peer]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeKeys map[string]string

func (k fakeKeys) ServiceKey(_ context.Context, name string) (string, error) {
	if v, ok := k[name]; ok {
		return v, nil
	}
	return "", models.ErrNotFound
}

func newInventory() *fakeInventory {
	return &fakeInventory{
		stacks: map[string]*models.Stack{
			"s1": {ID: "s1", MachineName: "wisski", ComponentIDs: []string{"app", "db", "ts"}},
		},
		components: map[string]*models.Component{
			"app": {ID: "app", MachineName: "wisski_app", Bundle: models.BundleDrupal, ContainerName: "wisski-drupal"},
			"db": {
				ID: "db", MachineName: "wisski_db", Bundle: models.BundleMariaDB, ContainerName: "wisski-mariadb",
				DatabaseName: "drupal", DatabaseUser: "drupal", DatabaseHost: "mariadb",
			},
			"lonely_db":  {ID: "lonely_db", MachineName: "lonely", Bundle: models.BundleMariaDB, DatabaseName: "x", DatabaseUser: "x"},
			"lonely_app": {ID: "lonely_app", MachineName: "lonely_app", Bundle: models.BundleDrupal},
			"ts":         {ID: "ts", MachineName: "wisski_ts", Bundle: models.BundleTriplestore},
		},
		links: map[string][]string{
			"app": {"ts", "db"},
			"db":  {"app"},
		},
	}
}

func TestResolvePair(t *testing.T) {
	inv := newInventory()
	ctx := context.Background()

	tests := []struct {
		name     string
		subject  Subject
		wantDB   string
		wantApp  string
		wantKind result.Kind
	}{
		{name: "stack", subject: StackSubject(inv.stacks["s1"]), wantDB: "db", wantApp: "app"},
		{name: "database component", subject: ComponentSubject(inv.components["db"]), wantDB: "db", wantApp: "app"},
		{name: "database without app", subject: ComponentSubject(inv.components["lonely_db"]), wantDB: "lonely_db"},
		{name: "application component", subject: ComponentSubject(inv.components["app"]), wantDB: "db", wantApp: "app"},
		{name: "application without db", subject: ComponentSubject(inv.components["lonely_app"]), wantKind: result.KindResolution},
		{name: "unsupported bundle", subject: ComponentSubject(inv.components["ts"]), wantKind: result.KindResolution},
		{name: "stack without db", subject: StackSubject(&models.Stack{MachineName: "x", ComponentIDs: []string{"app"}}), wantKind: result.KindResolution},
		{name: "stack without app", subject: StackSubject(&models.Stack{MachineName: "x", ComponentIDs: []string{"db", "gone"}}), wantKind: result.KindResolution},
		{name: "empty", subject: Subject{}, wantKind: result.KindResolution},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pair, r := ResolvePair(ctx, inv, tt.subject)
			if tt.wantKind != "" {
				if r.Success || r.Kind != tt.wantKind {
					t.Fatalf("result = %s, want %s failure", r, tt.wantKind)
				}
				return
			}
			if r.Failed() {
				t.Fatalf("ResolvePair failed: %s", r)
			}
			if pair.Database == nil || pair.Database.ID != tt.wantDB {
				t.Errorf("database = %+v, want %s", pair.Database, tt.wantDB)
			}
			gotApp := ""
			if pair.Application != nil {
				gotApp = pair.Application.ID
			}
			if gotApp != tt.wantApp {
				t.Errorf("application = %q, want %q", gotApp, tt.wantApp)
			}
		})
	}
}

func TestResolvePairLookupError(t *testing.T) {
	inv := newInventory()
	inv.err = errors.New("store offline")
	_, r := ResolvePair(context.Background(), inv, ComponentSubject(inv.components["db"]))
	if r.Success || !strings.Contains(r.Error, "store offline") {
		t.Errorf("result = %s", r)
	}
}

type fixture struct {
	coord *Coordinator
	api   *ct.FakeAPI
	inv   *fakeInventory
	root  string
}

func newFixture(t *testing.T, keys fakeKeys) *fixture {
	t.Helper()
	root := t.TempDir()
	api := ct.NewFakeAPI()
	api.ExecInspects["exec-1"] = []container.Response{ct.ExecJSON(false, 0)}
	orch := container.NewOrchestrator(api, ct.NewClock(time.Unix(1772366400, 0)), container.Config{SleepIntervalSeconds: 1})
	storage := snapshot.Storage{PrivateRoot: root, SnapshotSubpath: "snapshots"}
	cfg := DefaultConfig()
	cfg.ContainerRoot = "/var/www/private"
	cfg.CacheClear = []string{"drush", "cr"}
	inv := newInventory()
	return &fixture{
		coord: NewCoordinator(inv, keys, orch, storage, snapshot.OSFS{}, cfg),
		api:   api,
		inv:   inv,
		root:  root,
	}
}

var testTarget = snapshot.Target{Owner: "alice", SnapshotMachineName: "snap", Timestamp: 1772366400}

func TestDumpDatabase(t *testing.T) {
	fx := newFixture(t, fakeKeys{"wisski_db_db_password": "s3cret"})

	dump, r := fx.coord.DumpDatabase(context.Background(), StackSubject(fx.inv.stacks["s1"]), testTarget)
	if r.Failed() {
		t.Fatalf("DumpDatabase failed: %s", r)
	}

	if dump.EntityID != "db" || dump.Bundle != models.BundleMariaDB || dump.TypeTag != "sql" {
		t.Errorf("dump = %+v", dump)
	}
	if dump.DumpFile != "snap--1772366400--sql.sql.gz" || dump.ChecksumFile != "snap--1772366400--sql.sql.gz.sha256" {
		t.Errorf("dump files = %q, %q", dump.DumpFile, dump.ChecksumFile)
	}

	if len(fx.api.Execs) != 2 {
		t.Fatalf("execs = %d, want mkdir and dump", len(fx.api.Execs))
	}
	contentDir := "/var/www/private/snapshots/alice/snap/2026-03-01/1772366400/sql"

	mkdir := fx.api.Execs[0]
	if mkdir.ContainerID != "wisski-drupal" || !slices.Equal(mkdir.Request.Cmd, []string{"mkdir", "-p", contentDir}) {
		t.Errorf("mkdir exec = %+v", mkdir)
	}

	run := fx.api.Execs[1]
	if run.ContainerID != "wisski-drupal" || run.Request.User != "www-data" {
		t.Errorf("dump exec = %+v", run)
	}
	if !slices.Equal(run.Request.Env, []string{"MYSQL_PWD=s3cret"}) {
		t.Errorf("env = %v", run.Request.Env)
	}
	if !slices.Equal(run.Request.Cmd[:4], []string{"bash", "-o", "pipefail", "-c"}) {
		t.Errorf("shell = %v", run.Request.Cmd)
	}
	script := run.Request.Cmd[4]
	for _, want := range []string{
		"mysqldump --single-transaction",
		"-h 'mariadb' -u 'drupal' 'drupal'",
		"| gzip > '" + contentDir + "/snap--1772366400--sql.sql.gz'",
		"sha256sum 'snap--1772366400--sql.sql.gz' > 'snap--1772366400--sql.sql.gz.sha256'",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script %q lacks %q", script, want)
		}
	}
	if strings.Contains(script, "s3cret") {
		t.Error("password leaked into the command line")
	}
}

func TestDumpDatabaseFailures(t *testing.T) {
	t.Run("missing service key", func(t *testing.T) {
		fx := newFixture(t, fakeKeys{})
		_, r := fx.coord.DumpDatabase(context.Background(), ComponentSubject(fx.inv.components["db"]), testTarget)
		if r.Success || r.Kind != result.KindConfiguration {
			t.Errorf("result = %s", r)
		}
		if len(fx.api.Execs) != 1 {
			t.Errorf("execs = %d, want only mkdir", len(fx.api.Execs))
		}
	})

	t.Run("explicit service key", func(t *testing.T) {
		fx := newFixture(t, fakeKeys{"custom": "pw"})
		fx.inv.components["db"].ServiceKey = "custom"
		if _, r := fx.coord.DumpDatabase(context.Background(), ComponentSubject(fx.inv.components["db"]), testTarget); r.Failed() {
			t.Errorf("result = %s", r)
		}
	})

	t.Run("dump exits non-zero", func(t *testing.T) {
		fx := newFixture(t, fakeKeys{"wisski_db_db_password": "pw"})
		fx.api.ExecInspects["exec-1"] = []container.Response{ct.ExecJSON(false, 2)}
		_, r := fx.coord.DumpDatabase(context.Background(), ComponentSubject(fx.inv.components["db"]), testTarget)
		if r.Success || r.Kind != result.KindState {
			t.Errorf("result = %s", r)
		}
	})

	t.Run("exec create fails", func(t *testing.T) {
		fx := newFixture(t, fakeKeys{"wisski_db_db_password": "pw"})
		fx.api.ExecCreateResp = ct.Status(500)
		_, r := fx.coord.DumpDatabase(context.Background(), ComponentSubject(fx.inv.components["db"]), testTarget)
		if r.Success {
			t.Error("expected failure")
		}
	})

	t.Run("owner escapes snapshot tree", func(t *testing.T) {
		fx := newFixture(t, fakeKeys{"wisski_db_db_password": "pw"})
		target := testTarget
		target.Owner = "../../../etc"
		_, r := fx.coord.DumpDatabase(context.Background(), ComponentSubject(fx.inv.components["db"]), target)
		if r.Success || r.Kind != result.KindData || len(fx.api.Execs) != 0 {
			t.Errorf("result = %s, execs = %d", r, len(fx.api.Execs))
		}
	})

	t.Run("unresolvable subject", func(t *testing.T) {
		fx := newFixture(t, fakeKeys{})
		_, r := fx.coord.DumpDatabase(context.Background(), ComponentSubject(fx.inv.components["lonely_app"]), testTarget)
		if r.Success || r.Kind != result.KindResolution || len(fx.api.Execs) != 0 {
			t.Errorf("result = %s, execs = %d", r, len(fx.api.Execs))
		}
	})
}

func TestExecContainerFallback(t *testing.T) {
	fx := newFixture(t, fakeKeys{"lonely_db_password": "pw"})

	_, r := fx.coord.DumpDatabase(context.Background(), ComponentSubject(fx.inv.components["lonely_db"]), testTarget)
	if r.Success || r.Kind != result.KindConfiguration {
		t.Fatalf("no container result = %s", r)
	}

	fx.coord.cfg.DefaultContainer = "wisski-default"
	if _, r := fx.coord.DumpDatabase(context.Background(), ComponentSubject(fx.inv.components["lonely_db"]), testTarget); r.Failed() {
		t.Fatalf("DumpDatabase failed: %s", r)
	}
	if fx.api.Execs[0].ContainerID != "wisski-default" {
		t.Errorf("container = %s", fx.api.Execs[0].ContainerID)
	}
}

func TestRestoreHandler(t *testing.T) {
	fx := newFixture(t, fakeKeys{"wisski_db_db_password": "pw"})
	work := t.TempDir()
	dump := filepath.Join(work, "snap--1772366400--sql.sql.gz")
	if err := os.WriteFile(dump, []byte("gz"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := fx.coord.RestoreHandler().Restore(context.Background(), snapshot.RestoreRequest{
		Component: fx.inv.components["db"],
		DumpPath:  dump,
	})
	if r.Failed() {
		t.Fatalf("Restore failed: %s", r)
	}
	if len(fx.api.Execs) != 2 {
		t.Fatalf("execs = %d, want restore and cache clear", len(fx.api.Execs))
	}
	script := fx.api.Execs[0].Request.Cmd[4]
	if !strings.HasPrefix(script, "gunzip -c '/var/www/private/snapshots/.restore/") ||
		!strings.HasSuffix(script, "| mysql -h 'mariadb' -u 'drupal' 'drupal'") {
		t.Errorf("restore script = %q", script)
	}
	if !slices.Equal(fx.api.Execs[1].Request.Cmd, []string{"drush", "cr"}) || r.Data["cache_cleared"] != true {
		t.Errorf("cache clear = %+v, data = %v", fx.api.Execs[1], r.Data)
	}

	entries, err := os.ReadDir(filepath.Join(fx.root, "snapshots", ".restore"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging directory left behind")
	}
}

func TestRestoreHandlerFailure(t *testing.T) {
	fx := newFixture(t, fakeKeys{"wisski_db_db_password": "pw"})
	fx.api.ExecInspects["exec-1"] = []container.Response{ct.ExecJSON(false, 1)}
	dump := filepath.Join(t.TempDir(), "d.sql.gz")
	if err := os.WriteFile(dump, []byte("gz"), 0o644); err != nil {
		t.Fatal(err)
	}

	r := fx.coord.RestoreHandler().Restore(context.Background(), snapshot.RestoreRequest{
		Component: fx.inv.components["db"],
		DumpPath:  dump,
	})
	if r.Success || r.Kind != result.KindState {
		t.Errorf("result = %s", r)
	}
	if len(fx.api.Execs) != 1 {
		t.Errorf("cache clear ran after failed restore")
	}
}
