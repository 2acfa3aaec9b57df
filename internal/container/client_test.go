// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package container

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stacksnap/internal/breaker"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(ClientConfig{BaseURL: srv.URL + "/", APIKey: "secret"})
}

func TestCreateContainerPayload(t *testing.T) {
	var gotPath, gotKey string
	var payload map[string]any
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.RequestURI()
		gotKey = r.Header.Get("X-API-Key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"Id":"abc123","Warnings":[]}`))
	})

	resp := client.CreateContainer(context.Background(), CreateRequest{
		Name:  "bag-1",
		Image: "alpine:3",
		Cmd:   []string{"sh", "-c", "true"},
		User:  "33:33",
		Binds: []string{"/srv/backup:/backup"},
	})

	if !resp.Success || resp.StatusCode != http.StatusCreated {
		t.Fatalf("expected 201 success, got %+v", resp)
	}
	if id, err := ParseID(resp.Data); err != nil || id != "abc123" {
		t.Errorf("expected id abc123, got %q (%v)", id, err)
	}
	if gotPath != "/containers/create?name=bag-1" {
		t.Errorf("unexpected path %s", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("expected api key header, got %q", gotKey)
	}
	if payload["Image"] != "alpine:3" || payload["User"] != "33:33" {
		t.Errorf("unexpected config payload %v", payload)
	}
	host, _ := payload["HostConfig"].(map[string]any)
	binds, _ := host["Binds"].([]any)
	if len(binds) != 1 || binds[0] != "/srv/backup:/backup" {
		t.Errorf("unexpected binds %v", host["Binds"])
	}
}

func TestInspectNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message":"No such container: gone"}`))
	})

	resp := client.InspectContainer(context.Background(), "gone")
	if resp.Success {
		t.Fatal("expected unsuccessful response")
	}
	if !resp.NotFound() {
		t.Errorf("expected 404, got %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Error, "No such container") {
		t.Errorf("expected docker message in error, got %q", resp.Error)
	}
}

func TestExecRoutes(t *testing.T) {
	var paths []string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch {
		case strings.HasSuffix(r.URL.Path, "/exec"):
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"Id":"e1"}`))
		case strings.HasSuffix(r.URL.Path, "/start"):
			w.WriteHeader(http.StatusOK)
		default:
			_, _ = w.Write([]byte(`{"ID":"e1","Running":false,"ExitCode":0}`))
		}
	})

	ctx := context.Background()
	if r := client.ExecCreate(ctx, "app", ExecRequest{Cmd: []string{"ls"}}); !r.Success {
		t.Fatalf("exec create failed: %+v", r)
	}
	if r := client.ExecStart(ctx, "e1"); !r.Success {
		t.Fatalf("exec start failed: %+v", r)
	}
	r := client.ExecInspect(ctx, "e1")
	st, err := ParseState(r.Data)
	if err != nil || st.Status != StateExited {
		t.Fatalf("unexpected exec state %+v (%v)", st, err)
	}

	want := []string{"POST /containers/app/exec", "POST /exec/e1/start", "GET /exec/e1/json"}
	if strings.Join(paths, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, paths)
	}
}

func TestListVolumesEncodesFilters(t *testing.T) {
	var filters string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		filters = r.URL.Query().Get("filters")
		_, _ = w.Write([]byte(`{"Volumes":[]}`))
	})

	resp := client.ListVolumes(context.Background(), map[string][]string{"label": {"stack=abc"}})
	if !resp.Success {
		t.Fatalf("expected success, got %+v", resp)
	}
	if filters != `{"label":["stack=abc"]}` {
		t.Errorf("unexpected filters %q", filters)
	}
}

func TestTransportErrorHasNoStatus(t *testing.T) {
	client := NewHTTPClient(ClientConfig{BaseURL: "http://127.0.0.1:1"})
	resp := client.StartContainer(context.Background(), "x")
	if resp.Success || resp.StatusCode != 0 || resp.Error == "" {
		t.Fatalf("expected transport error, got %+v", resp)
	}
}

func TestBreakerRejectsAfterServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	t.Cleanup(srv.Close)

	client := NewHTTPClient(ClientConfig{
		BaseURL: srv.URL,
		Breaker: breaker.Settings{MinRequests: 3, FailureRatio: 0.5},
	})
	for i := 0; i < 3; i++ {
		_ = client.InspectContainer(context.Background(), "x")
	}
	resp := client.InspectContainer(context.Background(), "x")

	if calls.Load() != 3 {
		t.Errorf("expected breaker to stop the 4th call, server saw %d", calls.Load())
	}
	if resp.Success || resp.StatusCode != 0 {
		t.Errorf("expected rejected response, got %+v", resp)
	}
}
