// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
orchestrator.go - Container Lifecycle Orchestrator

The orchestrator drives containers and execs to a desired state by polling
inspect with a fixed sleep between attempts. The attempt count comes from a
Budget computed once per call.

Per-container state machine:

	unknown -> running -> exited(0)    success, removed if deletion requested
	                   -> exited(!=0)  failure, removed first if deletion requested
	                   -> removed      success (inspect answered 404)

Any other unsuccessful inspect is a hard failure for that container. Budget
exhaustion while a container is still running is a timeout; with deletion
requested every tracked container is removed before returning.

Bulk waits inspect the tracked containers one after another inside a round
and share a single attempt counter. The first failing container aborts the
whole batch after it has been cleaned up.
*/

//nolint:staticcheck // File documentation, not package doc
package container

import (
	"context"
	"fmt"
	"time"

	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/metrics"
	"github.com/tomtom215/stacksnap/internal/result"
)

// Config holds polling settings.
type Config struct {
	// CeilingSeconds is the execution-time ceiling of one request. 0 = unlimited.
	CeilingSeconds int

	// SleepIntervalSeconds between polls. 0 selects the default.
	SleepIntervalSeconds int
}

// Orchestrator waits for containers and execs.
type Orchestrator struct {
	api   API
	clock Clock
	cfg   Config
}

// NewOrchestrator creates an orchestrator. clock may be nil for the system clock.
func NewOrchestrator(api API, clock Clock, cfg Config) *Orchestrator {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Orchestrator{api: api, clock: clock, cfg: cfg}
}

// API returns the underlying client.
func (o *Orchestrator) API() API {
	return o.api
}

// Budget computes the attempt budget for the request carried by ctx.
func (o *Orchestrator) Budget(ctx context.Context) (Budget, error) {
	return BudgetFor(ctx, o.clock.Now(), o.cfg.CeilingSeconds, o.cfg.SleepIntervalSeconds)
}

type phase int

const (
	phaseUnknown phase = iota
	phaseRunning
	phaseExited
	phaseFailed
	phaseRemoved
)

func (p phase) String() string {
	switch p {
	case phaseRunning:
		return StateRunning
	case phaseExited:
		return StateExited
	case phaseFailed:
		return "failed"
	case phaseRemoved:
		return StateRemoved
	default:
		return "unknown"
	}
}

// ContainerStatus is the per-container record reported in result data.
type ContainerStatus struct {
	ID       string `json:"id"`
	State    string `json:"state"`
	ExitCode int    `json:"exit_code"`
	Removed  bool   `json:"removed"`
}

type tracked struct {
	id       string
	phase    phase
	state    State
	removed  bool
	attempts int
}

func (t *tracked) done() bool {
	return t.phase == phaseExited || t.phase == phaseRemoved || t.phase == phaseFailed
}

func (t *tracked) status() ContainerStatus {
	st := t.state.Status
	if t.phase == phaseRemoved {
		st = StateRemoved
	}
	if st == "" {
		st = t.phase.String()
	}
	return ContainerStatus{ID: t.id, State: st, ExitCode: t.state.ExitCode, Removed: t.removed || t.phase == phaseRemoved}
}

// step inspects the container once and advances its state machine.
// A non-nil failure aborts the wait.
func (o *Orchestrator) step(ctx context.Context, t *tracked) *result.Result {
	t.attempts++
	metrics.ContainerPollAttempts.WithLabelValues("container").Inc()

	resp := o.api.InspectContainer(ctx, t.id)
	if resp.NotFound() {
		t.phase = phaseRemoved
		metrics.ContainerOutcomes.WithLabelValues("removed").Inc()
		return nil
	}
	if !resp.Success {
		metrics.ContainerOutcomes.WithLabelValues("error").Inc()
		r := result.Fail(result.KindTransport, fmt.Sprintf("failed to inspect container %s", t.id), fmt.Errorf("%s", resp.Error)).
			With("container_id", t.id).
			With("status_code", resp.StatusCode)
		return &r
	}

	st, err := ParseState(resp.Data)
	if err != nil {
		metrics.ContainerOutcomes.WithLabelValues("error").Inc()
		r := result.Fail(result.KindData, fmt.Sprintf("unreadable inspect response for container %s", t.id), err).
			With("container_id", t.id)
		return &r
	}
	t.state = st

	switch st.Status {
	case StateExited, StateDead:
		if st.Status == StateExited && st.ExitCode == 0 {
			t.phase = phaseExited
			metrics.ContainerOutcomes.WithLabelValues("exited").Inc()
			return nil
		}
		t.phase = phaseFailed
		metrics.ContainerOutcomes.WithLabelValues("failed").Inc()
		r := result.Fail(result.KindState,
			fmt.Sprintf("container %s finished with exit code %d", t.id, st.ExitCode), nil).
			With("container_id", t.id).
			With("exit_code", st.ExitCode).
			With("state", st.Status)
		return &r
	default:
		t.phase = phaseRunning
		return nil
	}
}

// WaitForContainer waits until one container has exited. See WaitForContainers.
func (o *Orchestrator) WaitForContainer(ctx context.Context, id string, deleteOnFinish bool) result.Result {
	r := o.WaitForContainers(ctx, []string{id}, deleteOnFinish)
	if r.Success {
		if statuses, ok := r.Data["containers"].([]ContainerStatus); ok && len(statuses) == 1 {
			r = r.With("container_id", statuses[0].ID).
				With("state", statuses[0].State).
				With("exit_code", statuses[0].ExitCode).
				With("removed", statuses[0].Removed)
		}
	}
	return r
}

// WaitForContainers waits until every container has exited with code 0 or
// is gone. With deleteOnFinish, exited containers are removed and marked
// removed=true; a failing container is removed before the failure is
// returned; on timeout every tracked container is removed.
func (o *Orchestrator) WaitForContainers(ctx context.Context, ids []string, deleteOnFinish bool) result.Result {
	budget, err := o.Budget(ctx)
	if err != nil {
		return logging.Outcome(ctx, "container", "wait", result.Fail(result.KindConfiguration, "cannot compute polling budget", err))
	}

	containers := make([]*tracked, 0, len(ids))
	for _, id := range ids {
		containers = append(containers, &tracked{id: id})
	}

	for attempt := 1; attempt <= budget.MaxAttempts; attempt++ {
		allDone := true
		for _, t := range containers {
			if t.done() {
				continue
			}
			if failure := o.step(ctx, t); failure != nil {
				if deleteOnFinish {
					if rm := o.remove(ctx, t); !rm.Success {
						*failure = failure.With("cleanup_error", rm.Error)
					}
				}
				*failure = failure.With("containers", statuses(containers))
				return logging.Outcome(ctx, "container", "wait", *failure)
			}
			if t.phase == phaseExited && deleteOnFinish {
				if rm := o.remove(ctx, t); !rm.Success {
					return logging.Outcome(ctx, "container", "wait",
						rm.With("cleanup_error", rm.Error).With("containers", statuses(containers)))
				}
			}
			if !t.done() {
				allDone = false
			}
		}

		if allDone {
			return result.OK(fmt.Sprintf("%d container(s) finished", len(containers)), nil).
				With("containers", statuses(containers)).
				With("attempts", attempt)
		}
		if attempt == budget.MaxAttempts {
			break
		}
		if err := o.clock.Sleep(ctx, budget.SleepInterval()); err != nil {
			break
		}
	}

	metrics.ContainerOutcomes.WithLabelValues("timeout").Inc()
	timeout := result.Fail(result.KindTimeout,
		fmt.Sprintf("containers still running after %d attempts", budget.MaxAttempts), ctx.Err()).
		With("max_attempts", budget.MaxAttempts)
	if deleteOnFinish {
		cleanupCtx := context.WithoutCancel(ctx)
		for _, t := range containers {
			if t.phase == phaseRemoved || t.removed {
				continue
			}
			if rm := o.remove(cleanupCtx, t); !rm.Success {
				logging.Ctx(ctx).Warn().Str("container_id", t.id).Str("error", rm.Error).Msg("Cleanup after timeout failed")
			}
		}
	}
	return logging.Outcome(ctx, "container", "wait", timeout.With("containers", statuses(containers)))
}

func (o *Orchestrator) remove(ctx context.Context, t *tracked) result.Result {
	resp := o.api.RemoveContainer(ctx, t.id)
	if resp.Success || resp.NotFound() {
		t.removed = true
		return result.OK("container removed", nil)
	}
	return result.Fail(result.KindTransport, fmt.Sprintf("failed to remove container %s", t.id), fmt.Errorf("%s", resp.Error)).
		With("container_id", t.id)
}

func statuses(ts []*tracked) []ContainerStatus {
	out := make([]ContainerStatus, 0, len(ts))
	for _, t := range ts {
		out = append(out, t.status())
	}
	return out
}

// WaitForContainerState polls a container until its status equals desired.
// A 404 ends the wait successfully with state=removed.
func (o *Orchestrator) WaitForContainerState(ctx context.Context, id, desired string) result.Result {
	return o.waitState(ctx, "container", id, desired, o.api.InspectContainer)
}

// WaitForContainerExecState polls an exec until its status equals desired.
// A 404 ends the wait successfully with state=removed.
func (o *Orchestrator) WaitForContainerExecState(ctx context.Context, execID, desired string) result.Result {
	return o.waitState(ctx, "exec", execID, desired, o.api.ExecInspect)
}

func (o *Orchestrator) waitState(ctx context.Context, kind, id, desired string, inspect func(context.Context, string) Response) result.Result {
	op := "wait_" + kind + "_state"
	budget, err := o.Budget(ctx)
	if err != nil {
		return logging.Outcome(ctx, "container", op, result.Fail(result.KindConfiguration, "cannot compute polling budget", err))
	}

	var last State
	for attempt := 1; attempt <= budget.MaxAttempts; attempt++ {
		metrics.ContainerPollAttempts.WithLabelValues(kind).Inc()

		resp := inspect(ctx, id)
		if resp.NotFound() {
			return result.OK(fmt.Sprintf("%s %s is gone", kind, id), nil).
				With("id", id).
				With("state", StateRemoved).
				With("attempts", attempt)
		}
		if !resp.Success {
			return logging.Outcome(ctx, "container", op,
				result.Fail(result.KindTransport, fmt.Sprintf("failed to inspect %s %s", kind, id), fmt.Errorf("%s", resp.Error)).
					With("id", id).
					With("status_code", resp.StatusCode))
		}

		st, err := ParseState(resp.Data)
		if err != nil {
			return logging.Outcome(ctx, "container", op,
				result.Fail(result.KindData, fmt.Sprintf("unreadable inspect response for %s %s", kind, id), err).With("id", id))
		}
		last = st

		if st.Status == desired {
			return result.OK(fmt.Sprintf("%s %s reached %s", kind, id, desired), nil).
				With("id", id).
				With("state", st.Status).
				With("exit_code", st.ExitCode).
				With("attempts", attempt)
		}
		if attempt == budget.MaxAttempts {
			break
		}
		if err := o.clock.Sleep(ctx, budget.SleepInterval()); err != nil {
			break
		}
	}

	return logging.Outcome(ctx, "container", op,
		result.Fail(result.KindTimeout,
			fmt.Sprintf("%s %s did not reach %s after %d attempts", kind, id, desired, budget.MaxAttempts), ctx.Err()).
			With("id", id).
			With("state", last.Status).
			With("max_attempts", budget.MaxAttempts))
}

// DeleteContainers removes each container in order and stops at the first
// failure. Containers that are already gone count as removed.
func (o *Orchestrator) DeleteContainers(ctx context.Context, ids []string) result.Result {
	removed := make([]string, 0, len(ids))
	for _, id := range ids {
		resp := o.api.RemoveContainer(ctx, id)
		if !resp.Success && !resp.NotFound() {
			return logging.Outcome(ctx, "container", "delete_containers",
				result.Fail(result.KindTransport, fmt.Sprintf("failed to delete container %s", id), fmt.Errorf("%s", resp.Error)).
					With("container_id", id).
					With("removed", removed))
		}
		removed = append(removed, id)
	}
	return result.OK(fmt.Sprintf("deleted %d container(s)", len(removed)), nil).With("removed", removed)
}

// Volume is the subset of a Docker volume listing used here.
type Volume struct {
	Name   string            `json:"Name"`
	Labels map[string]string `json:"Labels"`
}

// ListVolumes returns the volumes matching filters.
func (o *Orchestrator) ListVolumes(ctx context.Context, filters map[string][]string) ([]Volume, result.Result) {
	resp := o.api.ListVolumes(ctx, filters)
	if !resp.Success {
		return nil, result.Fail(result.KindTransport, "failed to list volumes", fmt.Errorf("%s", resp.Error))
	}
	var body struct {
		Volumes []Volume `json:"Volumes"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, result.Fail(result.KindData, "unreadable volume listing", err)
	}
	return body.Volumes, result.OK(fmt.Sprintf("%d volume(s)", len(body.Volumes)), nil)
}

// DeleteVolumes removes each named volume and stops at the first failure.
func (o *Orchestrator) DeleteVolumes(ctx context.Context, names []string) result.Result {
	removed := make([]string, 0, len(names))
	for _, name := range names {
		resp := o.api.DeleteVolume(ctx, name)
		if !resp.Success && !resp.NotFound() {
			return logging.Outcome(ctx, "container", "delete_volumes",
				result.Fail(result.KindTransport, fmt.Sprintf("failed to delete volume %s", name), fmt.Errorf("%s", resp.Error)).
					With("volume", name).
					With("removed", removed))
		}
		removed = append(removed, name)
	}
	return result.OK(fmt.Sprintf("deleted %d volume(s)", len(removed)), nil).With("removed", removed)
}

// RunExec runs a command inside a container and waits for it to exit.
// A non-zero exit code is a state failure.
func (o *Orchestrator) RunExec(ctx context.Context, containerID string, req ExecRequest) result.Result {
	created := o.api.ExecCreate(ctx, containerID, req)
	if !created.Success {
		return logging.Outcome(ctx, "container", "exec",
			result.Fail(result.KindTransport, fmt.Sprintf("failed to create exec in %s", containerID), fmt.Errorf("%s", created.Error)).
				With("container_id", containerID).
				With("status_code", created.StatusCode))
	}
	execID, err := ParseID(created.Data)
	if err != nil {
		return logging.Outcome(ctx, "container", "exec", result.Fail(result.KindData, "unreadable exec create response", err))
	}

	started := o.api.ExecStart(ctx, execID)
	if !started.Success {
		return logging.Outcome(ctx, "container", "exec",
			result.Fail(result.KindTransport, fmt.Sprintf("failed to start exec %s", execID), fmt.Errorf("%s", started.Error)).
				With("exec_id", execID))
	}

	begin := time.Now()
	waited := o.WaitForContainerExecState(ctx, execID, StateExited)
	if !waited.Success {
		return waited.With("exec_id", execID)
	}
	if waited.Data["state"] == StateRemoved {
		return logging.Outcome(ctx, "container", "exec",
			result.Fail(result.KindState, fmt.Sprintf("exec %s vanished before reporting an exit code", execID), nil).
				With("exec_id", execID))
	}
	if code, _ := waited.Data["exit_code"].(int); code != 0 {
		return logging.Outcome(ctx, "container", "exec",
			result.Fail(result.KindState, fmt.Sprintf("command in %s exited with code %d", containerID, code), nil).
				With("exec_id", execID).
				With("exit_code", code))
	}
	return result.OK("command completed", nil).
		With("exec_id", execID).
		With("container_id", containerID).
		With("duration_ms", time.Since(begin).Milliseconds())
}
