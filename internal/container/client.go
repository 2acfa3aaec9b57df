// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
client.go - Container Management API Client

HTTPClient speaks the Docker Engine API, either directly or through a
management proxy that forwards /containers, /exec and /volumes requests
(for example a Portainer endpoint URL). Every call returns a Response
envelope instead of an error so that orchestration code can branch on the
status code (404 means removed).

Resilience Mechanisms:
  - Rate limiting: x/time/rate token bucket shared by all calls
  - Circuit breaker: transport errors and 5xx responses count as failures,
    4xx responses do not
  - Context: all methods accept context for cancellation
*/

//nolint:staticcheck // File documentation, not package doc
package container

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/stacksnap/internal/breaker"
	"github.com/tomtom215/stacksnap/internal/metrics"
)

// maxBodySize caps how much of a response body is kept.
const maxBodySize = 16 * 1024 * 1024

const breakerName = "container-api"

// ClientConfig configures HTTPClient.
type ClientConfig struct {
	// BaseURL is the Docker Engine API root, e.g. https://portainer/api/endpoints/1/docker
	BaseURL string

	// APIKey is sent as X-API-Key when non-empty.
	APIKey string

	Timeout time.Duration

	// RequestsPerSecond paces outgoing calls. 0 disables pacing.
	RequestsPerSecond float64
	Burst             int

	Breaker breaker.Settings
}

// HTTPClient implements API over HTTP.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[Response]
}

// errServer marks a 5xx response so the breaker counts it.
var errServer = errors.New("container API server error")

// NewHTTPClient creates a client for the configured endpoint.
func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
		cb:      breaker.New[Response](breakerName, cfg.Breaker),
	}
}

// CreateContainer creates (but does not start) a container.
func (c *HTTPClient) CreateContainer(ctx context.Context, req CreateRequest) Response {
	body := dockercontainer.CreateRequest{
		Config: &dockercontainer.Config{
			Image:      req.Image,
			Cmd:        req.Cmd,
			Entrypoint: req.Entrypoint,
			User:       req.User,
			Env:        req.Env,
			WorkingDir: req.WorkingDir,
		},
		HostConfig: &dockercontainer.HostConfig{
			Binds: req.Binds,
		},
	}

	path := "/containers/create"
	if req.Name != "" {
		path += "?name=" + url.QueryEscape(req.Name)
	}
	return c.do(ctx, "create", http.MethodPost, path, body)
}

// StartContainer starts a created container.
func (c *HTTPClient) StartContainer(ctx context.Context, id string) Response {
	return c.do(ctx, "start", http.MethodPost, "/containers/"+url.PathEscape(id)+"/start", nil)
}

// InspectContainer returns the container JSON document.
func (c *HTTPClient) InspectContainer(ctx context.Context, id string) Response {
	return c.do(ctx, "inspect", http.MethodGet, "/containers/"+url.PathEscape(id)+"/json", nil)
}

// RemoveContainer force-removes a container and its anonymous volumes.
func (c *HTTPClient) RemoveContainer(ctx context.Context, id string) Response {
	return c.do(ctx, "remove", http.MethodDelete, "/containers/"+url.PathEscape(id)+"?force=true&v=true", nil)
}

// ExecCreate prepares a command inside a running container.
func (c *HTTPClient) ExecCreate(ctx context.Context, containerID string, req ExecRequest) Response {
	body := dockercontainer.ExecOptions{
		User:         req.User,
		Env:          req.Env,
		WorkingDir:   req.WorkingDir,
		Cmd:          req.Cmd,
		AttachStdout: true,
		AttachStderr: true,
	}
	return c.do(ctx, "exec_create", http.MethodPost, "/containers/"+url.PathEscape(containerID)+"/exec", body)
}

// ExecStart starts a prepared exec detached.
func (c *HTTPClient) ExecStart(ctx context.Context, execID string) Response {
	body := dockercontainer.ExecStartOptions{Detach: true}
	return c.do(ctx, "exec_start", http.MethodPost, "/exec/"+url.PathEscape(execID)+"/start", body)
}

// ExecInspect returns the exec JSON document.
func (c *HTTPClient) ExecInspect(ctx context.Context, execID string) Response {
	return c.do(ctx, "exec_inspect", http.MethodGet, "/exec/"+url.PathEscape(execID)+"/json", nil)
}

// ListVolumes lists volumes matching the Docker filter map.
func (c *HTTPClient) ListVolumes(ctx context.Context, filters map[string][]string) Response {
	path := "/volumes"
	if len(filters) > 0 {
		encoded, err := json.Marshal(filters)
		if err != nil {
			return Response{Error: fmt.Sprintf("encode volume filters: %v", err)}
		}
		path += "?filters=" + url.QueryEscape(string(encoded))
	}
	return c.do(ctx, "volume_list", http.MethodGet, path, nil)
}

// DeleteVolume removes a named volume.
func (c *HTTPClient) DeleteVolume(ctx context.Context, name string) Response {
	return c.do(ctx, "volume_delete", http.MethodDelete, "/volumes/"+url.PathEscape(name), nil)
}

// do performs one paced, breaker-guarded request.
func (c *HTTPClient) do(ctx context.Context, operation, method, path string, payload any) Response {
	if err := c.limiter.Wait(ctx); err != nil {
		return Response{Error: fmt.Sprintf("%s: rate limiter: %v", operation, err)}
	}

	var body []byte
	if payload != nil {
		var err error
		body, err = json.Marshal(payload)
		if err != nil {
			return Response{Error: fmt.Sprintf("%s: encode payload: %v", operation, err)}
		}
	}

	start := time.Now()
	resp, err := c.cb.Execute(func() (Response, error) {
		r := c.roundTrip(ctx, method, path, body)
		if r.StatusCode == 0 {
			return r, errors.New(r.Error)
		}
		if r.StatusCode >= http.StatusInternalServerError {
			return r, errServer
		}
		return r, nil
	})
	breaker.Record(breakerName, err)
	metrics.RecordContainerAPI(operation, resp.StatusCode, time.Since(start))

	if err != nil && breaker.IsRejected(err) {
		return Response{Error: fmt.Sprintf("%s: %v", operation, err)}
	}
	if !resp.Success && resp.Error != "" && !strings.HasPrefix(resp.Error, operation) {
		resp.Error = operation + ": " + resp.Error
	}
	return resp
}

func (c *HTTPClient) roundTrip(ctx context.Context, method, path string, body []byte) Response {
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return Response{Error: fmt.Sprintf("failed to create request: %v", err)}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Response{Error: fmt.Sprintf("HTTP request failed: %v", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return Response{StatusCode: resp.StatusCode, Error: fmt.Sprintf("read body: %v", err)}
	}

	out := Response{
		Success:    resp.StatusCode >= 200 && resp.StatusCode < 300,
		Data:       data,
		StatusCode: resp.StatusCode,
	}
	if !out.Success {
		out.Error = fmt.Sprintf("status %d: %s", resp.StatusCode, errorMessage(data))
	}
	return out
}

// errorMessage extracts the Docker {"message": "..."} error text.
func errorMessage(data []byte) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &body); err == nil && body.Message != "" {
		return body.Message
	}
	text := strings.TrimSpace(string(data))
	if len(text) > 256 {
		text = text[:256] + "... (truncated)"
	}
	return text
}
