// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package triplestore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/tomtom215/stacksnap/internal/breaker"
)

const breakerName = "triplestore"

// maxResultSize caps a SPARQL response body.
const maxResultSize int64 = 4 << 30

// ContentTypeNQuads is the media type of N-Quads uploads.
const ContentTypeNQuads = "application/n-quads"

// ExportQuery selects every statement of every named graph.
const ExportQuery = "SELECT ?s ?p ?o ?g WHERE { GRAPH ?g { ?s ?p ?o } }"

// Store is the triple store surface used by export and restore.
type Store interface {
	Select(ctx context.Context, repositoryID, query string) ([]byte, error)
	AddStatements(ctx context.Context, repositoryID, contentType string, body io.Reader) error
}

// ClientConfig configures Client.
type ClientConfig struct {
	BaseURL  string
	Username string
	Password string
	Timeout  time.Duration
	Breaker  breaker.Settings
}

// Client talks to an RDF4J REST API (/repositories/{id}).
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	cb       *gobreaker.CircuitBreaker[[]byte]
}

// StatusError is a non-2xx triple store response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("triple store returned status %d: %s", e.StatusCode, e.Body)
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Minute
	}
	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: timeout},
		cb:       breaker.New[[]byte](breakerName, cfg.Breaker),
	}
}

// Select runs a SPARQL SELECT and returns the raw JSON result set.
func (c *Client) Select(ctx context.Context, repositoryID, query string) ([]byte, error) {
	form := url.Values{"query": {query}}
	endpoint := c.baseURL + "/repositories/" + url.PathEscape(repositoryID)

	return c.execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/sparql-results+json")
		return c.send(req)
	})
}

// AddStatements uploads RDF into a repository.
func (c *Client) AddStatements(ctx context.Context, repositoryID, contentType string, body io.Reader) error {
	endpoint := c.baseURL + "/repositories/" + url.PathEscape(repositoryID) + "/statements"

	_, err := c.execute(func() ([]byte, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return c.send(req)
	})
	return err
}

// execute runs fn through the breaker. 4xx responses are returned to the
// caller without counting as breaker failures.
func (c *Client) execute(fn func() ([]byte, error)) ([]byte, error) {
	var clientErr error
	data, err := c.cb.Execute(func() ([]byte, error) {
		data, err := fn()
		var se *StatusError
		if errors.As(err, &se) && se.StatusCode < http.StatusInternalServerError {
			clientErr = err
			return nil, nil
		}
		return data, err
	})
	breaker.Record(breakerName, err)
	if err != nil {
		return nil, err
	}
	if clientErr != nil {
		return nil, clientErr
	}
	return data, nil
}

func (c *Client) send(req *http.Request) ([]byte, error) {
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // Best effort cleanup

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResultSize))
	if err != nil {
		return nil, fmt.Errorf("read triple store response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: prefix(data)}
	}
	return data, nil
}
