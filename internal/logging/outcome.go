// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package logging

import (
	"context"

	"github.com/tomtom215/stacksnap/internal/result"
)

// fatalKinds abort the whole request and are logged at error level.
var fatalKinds = map[result.Kind]bool{
	result.KindTimeout:       true,
	result.KindIntegrity:     true,
	result.KindData:          true,
	result.KindConfiguration: true,
	result.KindUnexpected:    true,
}

// Outcome emits a structured entry for an operation result and returns it
// unchanged, so callers can write `return logging.Outcome(ctx, ...)`.
//
//nolint:gocritic // result.Result is a small value type
func Outcome(ctx context.Context, component, operation string, r result.Result) result.Result {
	l := Ctx(ctx)
	if r.Success {
		l.Debug().
			Str("component", component).
			Str("operation", operation).
			Msg(r.Message)
		return r
	}

	ev := l.Warn()
	if fatalKinds[r.Kind] {
		ev = l.Error()
	}
	ev.Str("component", component).
		Str("operation", operation).
		Str("kind", string(r.Kind)).
		Str("error", r.Error).
		Msg(r.Message)
	return r
}
