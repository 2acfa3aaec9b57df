// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stacksnap/internal/audit"
	"github.com/tomtom215/stacksnap/internal/middleware"
	"github.com/tomtom215/stacksnap/internal/models"
	"github.com/tomtom215/stacksnap/internal/result"
	"github.com/tomtom215/stacksnap/internal/workflow"
)

type fakeCreator struct {
	got workflow.CreateRequest
	res result.Result
}

func (f *fakeCreator) CreateSnapshot(_ context.Context, req workflow.CreateRequest) (*models.SnapshotRecord, result.Result) {
	f.got = req
	if f.res.Failed() {
		return nil, f.res
	}
	return &models.SnapshotRecord{ID: "snap-1", Label: req.Label, Owner: req.Owner, Status: models.SnapshotCompleted}, f.res
}

type fakeRestorer struct {
	confirmed bool
	id        string
	restore   result.Result
	verify    result.Result

	bag       string
	checksum  string
	component *models.Component
}

func (f *fakeRestorer) Restore(_ context.Context, id string, confirmed bool) result.Result {
	f.id, f.confirmed = id, confirmed
	return f.restore
}

func (f *fakeRestorer) RestoreFromBag(_ context.Context, bagSrc, checksumSrc string, component *models.Component, confirmed bool) result.Result {
	f.bag, f.checksum, f.component, f.confirmed = bagSrc, checksumSrc, component, confirmed
	return f.restore
}

func (f *fakeRestorer) ValidateSnapshotChecksum(_ context.Context, id string) result.Result {
	f.id = id
	return f.verify
}

type fakeAuditor struct {
	ids    []string
	dryRun bool
	safe   audit.SafeCleanupRequest
	mode   string
}

func (f *fakeAuditor) Audit(context.Context) (*audit.Report, result.Result) {
	return &audit.Report{Checked: 3}, result.OK("audit complete", nil)
}

func (f *fakeAuditor) CleanupOrphanedSnapshots(_ context.Context, ids []string, dryRun bool) (*audit.CleanupResult, result.Result) {
	f.mode, f.ids, f.dryRun = "snapshots", ids, dryRun
	return &audit.CleanupResult{DryRun: dryRun, Deleted: ids}, result.OK("cleaned", nil)
}

func (f *fakeAuditor) CleanupOrphanedFiles(_ context.Context, ids []string, dryRun bool) (*audit.CleanupResult, result.Result) {
	f.mode, f.ids, f.dryRun = "files", ids, dryRun
	return &audit.CleanupResult{DryRun: dryRun, Deleted: ids}, result.OK("cleaned", nil)
}

func (f *fakeAuditor) SafeCleanupAfterSnapshotCreation(_ context.Context, req audit.SafeCleanupRequest) (*audit.SafeCleanupResult, result.Result) {
	f.mode, f.safe = "safe", req
	return &audit.SafeCleanupResult{DryRun: req.DryRun}, result.OK("cleaned", nil)
}

type fakeReader struct {
	records    []*models.SnapshotRecord
	components map[string]*models.Component
	err        error
}

func (f *fakeReader) Snapshot(_ context.Context, id string) (*models.SnapshotRecord, error) {
	for _, s := range f.records {
		if s.ID == id {
			return s, nil
		}
	}
	return nil, models.ErrNotFound
}

func (f *fakeReader) Snapshots(context.Context) ([]*models.SnapshotRecord, error) {
	return f.records, f.err
}

func (f *fakeReader) Component(_ context.Context, id string) (*models.Component, error) {
	if c, ok := f.components[id]; ok {
		return c, nil
	}
	return nil, models.ErrNotFound
}

type fixture struct {
	creator  *fakeCreator
	restorer *fakeRestorer
	auditor  *fakeAuditor
	reader   *fakeReader
	router   http.Handler
}

func newFixture() *fixture {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	f := &fixture{
		creator:  &fakeCreator{res: result.OK("snapshot created", map[string]any{"cleaned_up": 0})},
		restorer: &fakeRestorer{restore: result.OK("restored", nil), verify: result.OK("checksum matches", map[string]any{"checksum_verified": true})},
		auditor:  &fakeAuditor{},
		reader: &fakeReader{
			records: []*models.SnapshotRecord{
				{ID: "old", Owner: "alice", Status: models.SnapshotCompleted, Created: base},
				{ID: "new", Owner: "alice", Status: models.SnapshotFailed, Created: base.Add(time.Hour)},
				{ID: "bob", Owner: "bob", Status: models.SnapshotCompleted, Created: base.Add(30 * time.Minute)},
			},
			components: map[string]*models.Component{"db": {ID: "db", MachineName: "wisski_db", Bundle: models.BundleMariaDB}},
		},
	}
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitDisabled = true
	h := NewHandler(f.creator, f.restorer, f.auditor, f.reader)
	f.router = NewRouter(h, NewChiMiddleware(cfg)).Setup()
	return f
}

func (f *fixture) do(t *testing.T, method, path, operator, body string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader([]byte(body)))
	if operator != "" {
		req.Header.Set(middleware.OperatorHeader, operator)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("response is not JSON: %v: %s", err, rec.Body.String())
	}
	return rec, resp
}

func TestCreateSnapshot(t *testing.T) {
	f := newFixture()
	rec, resp := f.do(t, http.MethodPost, "/api/v1/snapshots", "alice", `{"stack_id":"s1","label":"Weekly backup"}`)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Status != "success" {
		t.Errorf("expected success status, got %s", resp.Status)
	}
	if f.creator.got.Owner != "alice" || f.creator.got.StackID != "s1" || f.creator.got.Label != "Weekly backup" {
		t.Errorf("unexpected request passed to creator: %+v", f.creator.got)
	}
	if resp.Metadata.CorrelationID == "" {
		t.Error("expected correlation ID in response metadata")
	}
}

func TestCreateSnapshotRequestErrors(t *testing.T) {
	tests := []struct {
		name     string
		operator string
		body     string
		status   int
		code     string
	}{
		{"missing operator", "", `{"stack_id":"s1","label":"x"}`, http.StatusBadRequest, "OPERATOR_REQUIRED"},
		{"invalid json", "alice", `{"stack_id":`, http.StatusBadRequest, "INVALID_JSON"},
		{"empty body", "alice", ``, http.StatusBadRequest, "INVALID_JSON"},
		{"missing label", "alice", `{"stack_id":"s1"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"no subject", "alice", `{"label":"x"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"both subjects", "alice", `{"stack_id":"s1","component_id":"c1","label":"x"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad machine name", "alice", `{"stack_id":"s1","label":"x","machine_name":"Not Valid"}`, http.StatusBadRequest, "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rec, resp := f.do(t, http.MethodPost, "/api/v1/snapshots", tt.operator, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if resp.Error == nil || resp.Error.Code != tt.code {
				t.Errorf("expected error code %s, got %+v", tt.code, resp.Error)
			}
		})
	}
}

func TestCreateSnapshotFailureMapsKind(t *testing.T) {
	tests := []struct {
		kind   result.Kind
		status int
	}{
		{result.KindResolution, http.StatusNotFound},
		{result.KindData, http.StatusBadRequest},
		{result.KindTimeout, http.StatusGatewayTimeout},
		{result.KindTransport, http.StatusBadGateway},
		{result.KindIntegrity, http.StatusUnprocessableEntity},
		{result.KindUnexpected, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			f := newFixture()
			f.creator.res = result.Fail(tt.kind, "snapshot failed", errors.New("boom"))
			rec, resp := f.do(t, http.MethodPost, "/api/v1/snapshots", "alice", `{"component_id":"c1","label":"x"}`)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d", tt.status, rec.Code)
			}
			if resp.Error == nil || resp.Error.Code != strings.ToUpper(string(tt.kind)) {
				t.Errorf("unexpected error body: %+v", resp.Error)
			}
		})
	}
}

func TestListSnapshots(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  []string
		code  int
	}{
		{"all newest first", "", []string{"new", "bob", "old"}, http.StatusOK},
		{"by owner", "?owner=alice", []string{"new", "old"}, http.StatusOK},
		{"by status", "?status=completed", []string{"bob", "old"}, http.StatusOK},
		{"limited", "?limit=1", []string{"new"}, http.StatusOK},
		{"invalid status", "?status=bogus", nil, http.StatusBadRequest},
		{"limit too large", "?limit=5000", nil, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rec, resp := f.do(t, http.MethodGet, "/api/v1/snapshots"+tt.query, "", "")
			if rec.Code != tt.code {
				t.Fatalf("expected %d, got %d: %s", tt.code, rec.Code, rec.Body.String())
			}
			if tt.code != http.StatusOK {
				return
			}
			raw, _ := json.Marshal(resp.Data)
			var list SnapshotList
			if err := json.Unmarshal(raw, &list); err != nil {
				t.Fatal(err)
			}
			var got []string
			for _, s := range list.Snapshots {
				got = append(got, s.ID)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGetSnapshot(t *testing.T) {
	f := newFixture()
	if rec, _ := f.do(t, http.MethodGet, "/api/v1/snapshots/old", "", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}
	rec, resp := f.do(t, http.MethodGet, "/api/v1/snapshots/missing", "", "")
	if rec.Code != http.StatusNotFound || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("expected 404 NOT_FOUND, got %d %+v", rec.Code, resp.Error)
	}
}

func TestVerifySnapshot(t *testing.T) {
	f := newFixture()
	rec, _ := f.do(t, http.MethodPost, "/api/v1/snapshots/old/verify", "", "")
	if rec.Code != http.StatusOK || f.restorer.id != "old" {
		t.Errorf("expected 200 for old, got %d for %q", rec.Code, f.restorer.id)
	}

	f.restorer.verify = result.Failf(result.KindIntegrity, "checksum mismatch")
	rec, _ = f.do(t, http.MethodPost, "/api/v1/snapshots/old/verify", "", "")
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d", rec.Code)
	}
}

func TestRestoreSnapshot(t *testing.T) {
	f := newFixture()
	rec, _ := f.do(t, http.MethodPost, "/api/v1/snapshots/old/restore", "alice", `{"confirm":true}`)
	if rec.Code != http.StatusOK || !f.restorer.confirmed {
		t.Errorf("expected confirmed restore, got %d confirmed=%v", rec.Code, f.restorer.confirmed)
	}

	f.restorer.restore = result.Failf(result.KindState, "restore not confirmed")
	rec, _ = f.do(t, http.MethodPost, "/api/v1/snapshots/old/restore", "alice", "")
	if rec.Code != http.StatusConflict || f.restorer.confirmed {
		t.Errorf("expected unconfirmed 409, got %d confirmed=%v", rec.Code, f.restorer.confirmed)
	}

	if rec, _ := f.do(t, http.MethodPost, "/api/v1/snapshots/old/restore", "", `{"confirm":true}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without operator, got %d", rec.Code)
	}
}

func TestRestoreFromBag(t *testing.T) {
	tests := []struct {
		name      string
		operator  string
		body      string
		status    int
		restored  bool
		confirmed bool
	}{
		{"storage uri", "alice", `{"bag":"private://snapshots/a/b.contents.tar.gz","checksum":"private://snapshots/a/b.contents.tar.gz.sha256","component_id":"db","confirm":true}`, http.StatusOK, true, true},
		{"remote url", "alice", `{"bag":"https://mirror.example.org/b.contents.tar.gz","component_id":"db","confirm":true}`, http.StatusOK, true, true},
		{"unconfirmed passes through", "alice", `{"bag":"private://b.tar.gz","component_id":"db"}`, http.StatusOK, true, false},
		{"bare path refused", "alice", `{"bag":"/etc/shadow","component_id":"db","confirm":true}`, http.StatusBadRequest, false, false},
		{"bare checksum path refused", "alice", `{"bag":"private://b.tar.gz","checksum":"../b.sha256","component_id":"db","confirm":true}`, http.StatusBadRequest, false, false},
		{"unknown scheme refused", "alice", `{"bag":"file:///etc/shadow","component_id":"db","confirm":true}`, http.StatusBadRequest, false, false},
		{"missing bag", "alice", `{"component_id":"db","confirm":true}`, http.StatusBadRequest, false, false},
		{"missing component id", "alice", `{"bag":"private://b.tar.gz","confirm":true}`, http.StatusBadRequest, false, false},
		{"unknown component", "alice", `{"bag":"private://b.tar.gz","component_id":"nope","confirm":true}`, http.StatusNotFound, false, false},
		{"no operator", "", `{"bag":"private://b.tar.gz","component_id":"db","confirm":true}`, http.StatusBadRequest, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rec, _ := f.do(t, http.MethodPost, "/api/v1/restore/bag", tt.operator, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if restored := f.restorer.component != nil; restored != tt.restored {
				t.Fatalf("restorer called = %v, want %v", restored, tt.restored)
			}
			if tt.restored && (f.restorer.component.ID != "db" || f.restorer.confirmed != tt.confirmed) {
				t.Errorf("restored %+v confirmed=%v", f.restorer.component, f.restorer.confirmed)
			}
		})
	}

	f := newFixture()
	f.restorer.restore = result.Failf(result.KindIntegrity, "checksum mismatch")
	rec, _ := f.do(t, http.MethodPost, "/api/v1/restore/bag", "alice", `{"bag":"private://b.tar.gz","component_id":"db","confirm":true}`)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422 for integrity failure, got %d", rec.Code)
	}
}

func TestAudit(t *testing.T) {
	f := newFixture()
	rec, resp := f.do(t, http.MethodGet, "/api/v1/audit", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	data, ok := resp.Data.(map[string]interface{})
	if !ok || data["checked"] != float64(3) {
		t.Errorf("unexpected report: %#v", resp.Data)
	}
}

func TestCleanup(t *testing.T) {
	tests := []struct {
		name     string
		operator string
		body     string
		status   int
		mode     string
		dryRun   bool
	}{
		{"snapshots default dry run", "", `{"mode":"snapshots","ids":["a"]}`, http.StatusOK, "snapshots", true},
		{"files delete", "", `{"mode":"files","ids":["f1"],"dry_run":false}`, http.StatusOK, "files", false},
		{"safe", "alice", `{"mode":"safe","new_snapshot_id":"n1","grace_period_seconds":60}`, http.StatusOK, "safe", true},
		{"safe without operator", "", `{"mode":"safe"}`, http.StatusBadRequest, "", false},
		{"missing ids", "", `{"mode":"snapshots"}`, http.StatusBadRequest, "", false},
		{"bad mode", "", `{"mode":"everything"}`, http.StatusBadRequest, "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			rec, _ := f.do(t, http.MethodPost, "/api/v1/audit/cleanup", tt.operator, tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if f.auditor.mode != tt.mode {
				t.Errorf("mode = %q, want %q", f.auditor.mode, tt.mode)
			}
			if tt.mode == "safe" {
				if f.auditor.safe.OperatorID != "alice" || f.auditor.safe.NewSnapshotID != "n1" ||
					f.auditor.safe.GracePeriod != time.Minute || !f.auditor.safe.DryRun {
					t.Errorf("unexpected safe request: %+v", f.auditor.safe)
				}
			} else if tt.mode != "" && f.auditor.dryRun != tt.dryRun {
				t.Errorf("dryRun = %v, want %v", f.auditor.dryRun, tt.dryRun)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	f := newFixture()
	if rec, _ := f.do(t, http.MethodGet, "/healthz", "", ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", rec.Code)
	}

	f.reader.err = errors.New("store closed")
	rec, resp := f.do(t, http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503, got %d", rec.Code)
	}
	if data, _ := resp.Data.(map[string]interface{}); data["status"] != "degraded" {
		t.Errorf("expected degraded status, got %#v", resp.Data)
	}
}

func TestUnknownRoute(t *testing.T) {
	f := newFixture()
	rec, resp := f.do(t, http.MethodGet, "/api/v1/nope", "", "")
	if rec.Code != http.StatusNotFound || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("expected 404 NOT_FOUND, got %d %+v", rec.Code, resp.Error)
	}
}

func TestRateLimitUsesEnvelope(t *testing.T) {
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 1
	f := newFixture()
	router := NewRouter(NewHandler(f.creator, f.restorer, f.auditor, f.reader), NewChiMiddleware(cfg)).Setup()

	var last *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		last = httptest.NewRecorder()
		router.ServeHTTP(last, httptest.NewRequest(http.MethodGet, "/api/v1/audit", nil))
	}
	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", last.Code)
	}
	if !strings.Contains(last.Body.String(), "RATE_LIMITED") {
		t.Errorf("expected RATE_LIMITED body, got %s", last.Body.String())
	}
}
