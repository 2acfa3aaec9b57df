// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package container

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"
)

const (
	// DefaultSleepIntervalSeconds is the pause between two inspect polls.
	DefaultSleepIntervalSeconds = 5

	// UnlimitedAttempts is the attempt count used when the execution
	// ceiling is 0 (no limit).
	UnlimitedAttempts = 18
)

// ErrBudgetUnrepresentable is returned when the ceiling is shorter than one
// sleep interval, so not even a single poll fits.
var ErrBudgetUnrepresentable = errors.New("execution ceiling shorter than sleep interval")

// Budget is the maximum number of poll attempts for one request.
type Budget struct {
	SleepIntervalSeconds int `json:"sleep_interval_seconds"`
	MaxAttempts          int `json:"max_attempts"`
}

// SleepInterval returns the interval as a duration.
func (b Budget) SleepInterval() time.Duration {
	return time.Duration(b.SleepIntervalSeconds) * time.Second
}

// ComputeBudget converts an execution-time ceiling into an attempt count.
// A ceiling of 0 means unlimited and yields UnlimitedAttempts. A sleep
// interval of 0 or less selects DefaultSleepIntervalSeconds.
func ComputeBudget(ceilingSeconds, sleepSeconds int) (Budget, error) {
	if sleepSeconds <= 0 {
		sleepSeconds = DefaultSleepIntervalSeconds
	}
	if ceilingSeconds == 0 {
		return Budget{SleepIntervalSeconds: sleepSeconds, MaxAttempts: UnlimitedAttempts}, nil
	}
	if ceilingSeconds < sleepSeconds {
		return Budget{}, fmt.Errorf("%w: ceiling %ds, interval %ds", ErrBudgetUnrepresentable, ceilingSeconds, sleepSeconds)
	}
	return Budget{SleepIntervalSeconds: sleepSeconds, MaxAttempts: ceilingSeconds / sleepSeconds}, nil
}

// BudgetFor computes the budget for the request carried by ctx. When ctx
// has a deadline the ceiling is the smaller of the configured ceiling and
// the whole seconds remaining. It must be called once per request.
func BudgetFor(ctx context.Context, now time.Time, ceilingSeconds, sleepSeconds int) (Budget, error) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return ComputeBudget(ceilingSeconds, sleepSeconds)
	}

	remaining := int(math.Floor(deadline.Sub(now).Seconds()))
	if remaining <= 0 {
		return Budget{}, fmt.Errorf("%w: request deadline already passed", ErrBudgetUnrepresentable)
	}
	if ceilingSeconds == 0 || remaining < ceilingSeconds {
		ceilingSeconds = remaining
	}
	return ComputeBudget(ceilingSeconds, sleepSeconds)
}
