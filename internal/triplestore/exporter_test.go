// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package triplestore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/result"
	"github.com/tomtom215/stacksnap/internal/snapshot"
)

type fakeStore struct {
	payload   []byte
	err       error
	queries   []string
	uploaded  string
	uploadTo  string
	uploadErr error
}

func (f *fakeStore) Select(_ context.Context, repo, query string) ([]byte, error) {
	f.queries = append(f.queries, repo+": "+query)
	return f.payload, f.err
}

func (f *fakeStore) AddStatements(_ context.Context, repo, contentType string, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	f.uploaded, f.uploadTo = string(data), repo+" "+contentType
	return f.uploadErr
}

var exportTarget = snapshot.Target{Owner: "alice", SnapshotMachineName: "snap", Timestamp: 1772366400}

func tsComponent() *models.Component {
	return &models.Component{ID: "ts-1", MachineName: "my_ts", Bundle: models.BundleTriplestore, RepositoryID: "wisski"}
}

func TestExport(t *testing.T) {
	root := t.TempDir()
	store := &fakeStore{payload: []byte(sampleResults)}
	e := NewExporter(store, snapshot.Storage{PrivateRoot: root, SnapshotSubpath: "snapshots"})

	dump, r := e.Export(context.Background(), tsComponent(), exportTarget)
	if r.Failed() {
		t.Fatalf("Export failed: %s", r)
	}
	if dump.DumpFile != "my_ts--1772366400.nq" || dump.ChecksumFile != "my_ts--1772366400.nq.sha256" || dump.TypeTag != "nq" {
		t.Errorf("dump = %+v", dump)
	}
	if len(store.queries) != 1 || store.queries[0] != "wisski: "+ExportQuery {
		t.Errorf("queries = %v", store.queries)
	}

	dir := filepath.Join(root, "snapshots", "alice", "snap", "2026-03-01", "1772366400", "nq")
	data, err := os.ReadFile(filepath.Join(dir, dump.DumpFile))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(string(data), "\n") != 2 {
		t.Errorf("export = %q", data)
	}
	digest, err := snapshot.VerifyFile(snapshot.OSFS{}, filepath.Join(dir, dump.DumpFile), filepath.Join(dir, dump.ChecksumFile))
	if err != nil {
		t.Errorf("checksum sidecar does not verify: %v", err)
	}
	if r.Data["statements"] != 2 || r.Data["skipped"] != 2 || digest == "" {
		t.Errorf("data = %v", r.Data)
	}
}

func TestExportFailures(t *testing.T) {
	tests := []struct {
		name      string
		store     *fakeStore
		component func(*models.Component)
		wantKind  result.Kind
	}{
		{"no repository", &fakeStore{}, func(c *models.Component) { c.RepositoryID = "" }, result.KindConfiguration},
		{"query fails", &fakeStore{err: errors.New("connection refused")}, nil, result.KindTransport},
		{"invalid json", &fakeStore{payload: []byte("<html>502</html>")}, nil, result.KindData},
		{"empty export", &fakeStore{payload: []byte(`{"results":{"bindings":[]}}`)}, nil, result.KindData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewExporter(tt.store, snapshot.Storage{PrivateRoot: t.TempDir(), SnapshotSubpath: "s"})
			c := tsComponent()
			if tt.component != nil {
				tt.component(c)
			}
			dump, r := e.Export(context.Background(), c, exportTarget)
			if r.Success || dump != nil {
				t.Fatalf("expected failure, got %s", r)
			}
			if r.Kind != tt.wantKind {
				t.Errorf("kind = %s, want %s", r.Kind, tt.wantKind)
			}
		})
	}
}

func TestExportLeavesNoFileWhenRejected(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		target    snapshot.Target
		component func(*models.Component)
	}{
		{"empty repository", `{"results":{"bindings":[]}}`, exportTarget, nil},
		{"only skipped rows", `{"results":{"bindings":[{"s":{"type":"uri","value":"http://ex/s"}}]}}`, exportTarget, nil},
		{"owner traversal", sampleResults, snapshot.Target{Owner: "../../../etc", SnapshotMachineName: "snap", Timestamp: 1772366400}, nil},
		{"component traversal", sampleResults, exportTarget, func(c *models.Component) { c.MachineName = "../../escape" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			e := NewExporter(&fakeStore{payload: []byte(tt.payload)}, snapshot.Storage{PrivateRoot: root, SnapshotSubpath: "snapshots"})
			c := tsComponent()
			if tt.component != nil {
				tt.component(c)
			}
			dump, r := e.Export(context.Background(), c, tt.target)
			if !r.Failed() || dump != nil || r.Kind != result.KindData {
				t.Fatalf("result = %s, want data failure", r)
			}

			var written []string
			err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && strings.HasSuffix(path, ".nq") {
					written = append(written, path)
				}
				return nil
			})
			if err != nil {
				t.Fatal(err)
			}
			if len(written) != 0 {
				t.Errorf("export files left behind: %v", written)
			}
		})
	}
}

func TestWriteExclusive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.nq")

	size, err := WriteExclusive(path, []byte("first version\n"))
	if err != nil || size != 14 {
		t.Fatalf("first write = %d, %v", size, err)
	}
	size, err = WriteExclusive(path, []byte("v2\n"))
	if err != nil || size != 3 {
		t.Fatalf("second write = %d, %v", size, err)
	}
	data, err := os.ReadFile(path)
	if err != nil || string(data) != "v2\n" {
		t.Errorf("content = %q, %v", data, err)
	}
}

func TestRestoreHandler(t *testing.T) {
	dump := filepath.Join(t.TempDir(), "my_ts--1.nq")
	if err := os.WriteFile(dump, []byte("<a> <b> <c> <g> .\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := &fakeStore{}
	h := RestoreHandler{Store: store}

	r := h.Restore(context.Background(), snapshot.RestoreRequest{Component: tsComponent(), DumpPath: dump})
	if r.Failed() {
		t.Fatalf("Restore: %s", r)
	}
	if store.uploadTo != "wisski "+ContentTypeNQuads || store.uploaded != "<a> <b> <c> <g> .\n" {
		t.Errorf("upload = %q to %q", store.uploaded, store.uploadTo)
	}

	store.uploadErr = errors.New("503")
	if r := h.Restore(context.Background(), snapshot.RestoreRequest{Component: tsComponent(), DumpPath: dump}); r.Kind != result.KindTransport {
		t.Errorf("failed upload = %s", r)
	}
	if r := h.Restore(context.Background(), snapshot.RestoreRequest{Component: tsComponent(), DumpPath: dump + ".missing"}); r.Kind != result.KindIntegrity {
		t.Errorf("missing dump = %s", r)
	}
}
