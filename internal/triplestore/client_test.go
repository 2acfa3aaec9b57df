// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package triplestore

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/tomtom215/stacksnap/internal/breaker"
)

func TestClientSelect(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/repositories/my%20repo" && r.URL.Path != "/repositories/my repo" {
			t.Errorf("request = %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Accept"); got != "application/sparql-results+json" {
			t.Errorf("Accept = %q", got)
		}
		user, pass, ok := r.BasicAuth()
		if !ok || user != "admin" || pass != "pw" {
			t.Errorf("basic auth = %q %q %v", user, pass, ok)
		}
		if err := r.ParseForm(); err != nil {
			t.Fatal(err)
		}
		if r.PostForm.Get("query") != ExportQuery {
			t.Errorf("query = %q", r.PostForm.Get("query"))
		}
		w.Write([]byte(`{"results":{"bindings":[]}}`)) //nolint:errcheck // test server
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL + "/", Username: "admin", Password: "pw"})
	data, err := c.Select(context.Background(), "my repo", ExportQuery)
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if string(data) != `{"results":{"bindings":[]}}` {
		t.Errorf("data = %s", data)
	}
}

func TestClientAddStatements(t *testing.T) {
	var gotBody, gotType, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotBody, gotType, gotPath = string(body), r.Header.Get("Content-Type"), r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL})
	err := c.AddStatements(context.Background(), "repo", ContentTypeNQuads, strings.NewReader("<a> <b> <c> <g> .\n"))
	if err != nil {
		t.Fatalf("AddStatements: %v", err)
	}
	if gotPath != "/repositories/repo/statements" || gotType != ContentTypeNQuads || gotBody != "<a> <b> <c> <g> .\n" {
		t.Errorf("path=%q type=%q body=%q", gotPath, gotType, gotBody)
	}
}

func TestClientStatusErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		http.Error(w, "MALFORMED QUERY", http.StatusBadRequest)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Breaker: breaker.Settings{MinRequests: 2, FailureRatio: 0.5}})
	for i := 0; i < 5; i++ {
		_, err := c.Select(context.Background(), "repo", "bad")
		var se *StatusError
		if !errors.As(err, &se) || se.StatusCode != http.StatusBadRequest {
			t.Fatalf("call %d error = %v", i, err)
		}
		if !strings.Contains(se.Body, "MALFORMED QUERY") {
			t.Errorf("body = %q", se.Body)
		}
	}
	if calls != 5 {
		t.Errorf("client errors tripped the breaker: %d calls reached the server", calls)
	}
}

func TestClientServerErrorsTripBreaker(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{BaseURL: srv.URL, Breaker: breaker.Settings{MinRequests: 3, FailureRatio: 0.5}})
	var last error
	for i := 0; i < 5; i++ {
		_, last = c.Select(context.Background(), "repo", ExportQuery)
	}
	if calls != 3 {
		t.Errorf("server calls = %d, want 3 before the breaker opened", calls)
	}
	if !breaker.IsRejected(last) {
		t.Errorf("last error = %v, want breaker rejection", last)
	}
}
