// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

// Package containertest provides scripted fakes of the container management
// API and the clock for tests of packages that orchestrate containers.
package containertest

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tomtom215/stacksnap/internal/container"
)

// ContainerJSON builds a successful container inspect response.
func ContainerJSON(status string, exitCode int) container.Response {
	running := status == container.StateRunning
	body := fmt.Sprintf(`{"Id":"x","State":{"Status":%q,"Running":%t,"ExitCode":%d}}`, status, running, exitCode)
	return container.Response{Success: true, StatusCode: http.StatusOK, Data: []byte(body)}
}

// ExecJSON builds a successful exec inspect response.
func ExecJSON(running bool, exitCode int) container.Response {
	body := fmt.Sprintf(`{"ID":"e","Running":%t,"ExitCode":%d}`, running, exitCode)
	return container.Response{Success: true, StatusCode: http.StatusOK, Data: []byte(body)}
}

// ExecNotStarted is an exec inspect body for an exec the engine has not
// started yet: not running and a null exit code.
func ExecNotStarted() container.Response {
	return container.Response{Success: true, StatusCode: http.StatusOK, Data: []byte(`{"ID":"e","Running":false,"ExitCode":null}`)}
}

// Status builds an unsuccessful response with the given code.
func Status(code int) container.Response {
	return container.Response{StatusCode: code, Error: fmt.Sprintf("status %d", code)}
}

// Created builds a successful create response carrying id.
func Created(id string) container.Response {
	return container.Response{Success: true, StatusCode: http.StatusCreated, Data: []byte(fmt.Sprintf(`{"Id":%q}`, id))}
}

// NoContent is a bare 204.
func NoContent() container.Response {
	return container.Response{Success: true, StatusCode: http.StatusNoContent}
}

// FakeAPI is a scripted container.API. Inspect scripts are consumed one
// response per call; the last response repeats once the script runs out.
type FakeAPI struct {
	mu sync.Mutex

	Inspect      map[string][]container.Response
	ExecInspects map[string][]container.Response
	Remove       map[string]container.Response

	CreateResponse    container.Response
	StartResponse     container.Response
	ExecCreateResp    container.Response
	ExecStartResp     container.Response
	VolumesResponse   container.Response
	DeleteVolumeResps map[string]container.Response

	Created        []container.CreateRequest
	Started        []string
	Removed        []string
	Execs          []ExecCall
	DeletedVolumes []string
	InspectCalls   map[string]int
}

// ExecCall records one ExecCreate.
type ExecCall struct {
	ContainerID string
	Request     container.ExecRequest
}

// NewFakeAPI returns a fake whose create/start/exec calls succeed.
func NewFakeAPI() *FakeAPI {
	return &FakeAPI{
		Inspect:           make(map[string][]container.Response),
		ExecInspects:      make(map[string][]container.Response),
		Remove:            make(map[string]container.Response),
		DeleteVolumeResps: make(map[string]container.Response),
		CreateResponse:    Created("bag-container"),
		StartResponse:     NoContent(),
		ExecCreateResp:    Created("exec-1"),
		ExecStartResp:     container.Response{Success: true, StatusCode: http.StatusOK},
		VolumesResponse:   container.Response{Success: true, StatusCode: http.StatusOK, Data: []byte(`{"Volumes":[]}`)},
		InspectCalls:      make(map[string]int),
	}
}

func next(script map[string][]container.Response, id string) container.Response {
	seq := script[id]
	if len(seq) == 0 {
		return Status(http.StatusNotFound)
	}
	r := seq[0]
	if len(seq) > 1 {
		script[id] = seq[1:]
	}
	return r
}

func (f *FakeAPI) CreateContainer(_ context.Context, req container.CreateRequest) container.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Created = append(f.Created, req)
	return f.CreateResponse
}

func (f *FakeAPI) StartContainer(_ context.Context, id string) container.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Started = append(f.Started, id)
	return f.StartResponse
}

func (f *FakeAPI) InspectContainer(_ context.Context, id string) container.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InspectCalls[id]++
	return next(f.Inspect, id)
}

func (f *FakeAPI) RemoveContainer(_ context.Context, id string) container.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Removed = append(f.Removed, id)
	if r, ok := f.Remove[id]; ok {
		return r
	}
	return NoContent()
}

func (f *FakeAPI) ExecCreate(_ context.Context, containerID string, req container.ExecRequest) container.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Execs = append(f.Execs, ExecCall{ContainerID: containerID, Request: req})
	return f.ExecCreateResp
}

func (f *FakeAPI) ExecStart(_ context.Context, _ string) container.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ExecStartResp
}

func (f *FakeAPI) ExecInspect(_ context.Context, execID string) container.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	return next(f.ExecInspects, execID)
}

func (f *FakeAPI) ListVolumes(_ context.Context, _ map[string][]string) container.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.VolumesResponse
}

func (f *FakeAPI) DeleteVolume(_ context.Context, name string) container.Response {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.DeletedVolumes = append(f.DeletedVolumes, name)
	if r, ok := f.DeleteVolumeResps[name]; ok {
		return r
	}
	return NoContent()
}

// RemovedCount returns how many times id was removed.
func (f *FakeAPI) RemovedCount(id string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.Removed {
		if r == id {
			n++
		}
	}
	return n
}

// Clock is a fake clock whose Sleep advances time instantly.
type Clock struct {
	mu     sync.Mutex
	now    time.Time
	Sleeps []time.Duration
}

// NewClock returns a clock fixed at now.
func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

// Now returns the fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Sleep records d and advances the clock.
func (c *Clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Sleeps = append(c.Sleeps, d)
	c.now = c.now.Add(d)
	return nil
}
