// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package container

import (
	"context"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
)

// Desired and observed container states.
const (
	StateCreated = "created"
	StateRunning = "running"
	StateExited  = "exited"
	StateDead    = "dead"
	StateRemoved = "removed"
)

// Response is the uniform envelope of every container management call.
type Response struct {
	Success    bool   `json:"success"`
	Data       []byte `json:"-"`
	Error      string `json:"error,omitempty"`
	StatusCode int    `json:"status_code"`
}

// NotFound reports whether the API answered 404.
func (r Response) NotFound() bool {
	return r.StatusCode == http.StatusNotFound
}

// Decode unmarshals the response body into v.
func (r Response) Decode(v any) error {
	if len(r.Data) == 0 {
		return fmt.Errorf("empty response body (status %d)", r.StatusCode)
	}
	return json.Unmarshal(r.Data, v)
}

// CreateRequest describes an ephemeral container.
type CreateRequest struct {
	Name       string
	Image      string
	Cmd        []string
	Entrypoint []string
	User       string
	Env        []string
	WorkingDir string

	// Binds are host:container[:mode] volume mounts.
	Binds []string
}

// ExecRequest describes a command run inside an existing container.
type ExecRequest struct {
	Cmd        []string
	User       string
	Env        []string
	WorkingDir string
}

// API is the container management surface consumed by the orchestrator.
type API interface {
	CreateContainer(ctx context.Context, req CreateRequest) Response
	StartContainer(ctx context.Context, id string) Response
	InspectContainer(ctx context.Context, id string) Response
	RemoveContainer(ctx context.Context, id string) Response

	ExecCreate(ctx context.Context, containerID string, req ExecRequest) Response
	ExecStart(ctx context.Context, execID string) Response
	ExecInspect(ctx context.Context, execID string) Response

	ListVolumes(ctx context.Context, filters map[string][]string) Response
	DeleteVolume(ctx context.Context, name string) Response
}

// State is the observed state of a container or exec.
type State struct {
	Status   string `json:"status"`
	Running  bool   `json:"running"`
	ExitCode int    `json:"exit_code"`
}

// Terminal reports whether no further transition is expected.
func (s State) Terminal() bool {
	return s.Status == StateExited || s.Status == StateDead || s.Status == StateRemoved
}

type inspectBody struct {
	ID    string `json:"Id"`
	State *struct {
		Status   string `json:"Status"`
		Running  bool   `json:"Running"`
		ExitCode int    `json:"ExitCode"`
	} `json:"State"`

	// Exec inspect reports these at the top level.
	Running  *bool `json:"Running"`
	ExitCode *int  `json:"ExitCode"`
}

// ParseState extracts the state from a container or exec inspect body.
// Container bodies carry State.Status; exec bodies carry only Running and
// ExitCode, from which the status is derived. An exec that is neither
// running nor carries an exit code is reported as created.
func ParseState(data []byte) (State, error) {
	var body inspectBody
	if err := json.Unmarshal(data, &body); err != nil {
		return State{}, fmt.Errorf("decode inspect body: %w", err)
	}

	if body.State != nil && body.State.Status != "" {
		return State{
			Status:   body.State.Status,
			Running:  body.State.Running,
			ExitCode: body.State.ExitCode,
		}, nil
	}

	if body.Running == nil {
		return State{}, fmt.Errorf("inspect body carries no state")
	}
	st := State{Running: *body.Running}
	switch {
	case st.Running:
		st.Status = StateRunning
	case body.ExitCode == nil:
		// Not started yet; the engine reports a null exit code until the
		// process has run.
		st.Status = StateCreated
	default:
		st.Status = StateExited
		st.ExitCode = *body.ExitCode
	}
	return st, nil
}

// ParseID extracts the identifier from a create response body.
func ParseID(data []byte) (string, error) {
	var body struct {
		ID string `json:"Id"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		return "", fmt.Errorf("decode create body: %w", err)
	}
	if body.ID == "" {
		return "", fmt.Errorf("create body carries no Id")
	}
	return body.ID, nil
}
