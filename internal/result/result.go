// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

// Package result provides the uniform success/failure envelope returned by
// every snapshot and orchestration operation.
//
// Components never let faults cross an orchestration boundary. Expected
// negative outcomes (missing key, unsupported bundle, checksum mismatch) are
// returned as a failure Result carrying a Kind from the error taxonomy.
// Genuinely unexpected faults (panics) are converted by Guard at the
// outermost call.
package result

import (
	"errors"
	"fmt"
	"maps"
)

// Kind classifies a failure.
type Kind string

const (
	// KindTransport indicates a remote call failed at the network/HTTP level.
	KindTransport Kind = "transport"

	// KindState indicates a resource reached an unexpected or failing state.
	KindState Kind = "state"

	// KindTimeout indicates the polling budget was exhausted.
	KindTimeout Kind = "timeout"

	// KindData indicates malformed input, schema violations or missing fields.
	KindData Kind = "data"

	// KindIntegrity indicates a checksum mismatch or a file missing on disk.
	KindIntegrity Kind = "integrity"

	// KindResolution indicates the target entity pair could not be determined.
	KindResolution Kind = "resolution"

	// KindConfiguration indicates a required setting is absent.
	KindConfiguration Kind = "configuration"

	// KindUnexpected indicates a runtime fault caught at the outermost call.
	KindUnexpected Kind = "unexpected"

	// KindNotImplemented indicates a recognised but unsupported request.
	KindNotImplemented Kind = "not_implemented"
)

// Result is the success/failure envelope.
type Result struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Kind    Kind           `json:"kind,omitempty"`
	Error   string         `json:"error,omitempty"`
	Data    map[string]any `json:"data,omitempty"`
}

// OK builds a success result. data may be nil.
func OK(message string, data map[string]any) Result {
	if data == nil {
		data = make(map[string]any)
	}
	return Result{Success: true, Message: message, Data: data}
}

// Fail builds a failure result. err may be nil, in which case the message
// doubles as the error text.
func Fail(kind Kind, message string, err error) Result {
	r := Result{Success: false, Kind: kind, Message: message, Data: make(map[string]any)}
	if err != nil {
		r.Error = err.Error()
	} else {
		r.Error = message
	}
	return r
}

// Failf builds a failure result with a formatted message and no wrapped error.
func Failf(kind Kind, format string, args ...any) Result {
	return Fail(kind, fmt.Sprintf(format, args...), nil)
}

// With returns a copy of r with key set in Data.
func (r Result) With(key string, value any) Result {
	data := make(map[string]any, len(r.Data)+1)
	maps.Copy(data, r.Data)
	data[key] = value
	r.Data = data
	return r
}

// Failed reports whether r is a failure.
func (r Result) Failed() bool {
	return !r.Success
}

// Err converts a failure into an error value. It returns nil on success.
func (r Result) Err() error {
	if r.Success {
		return nil
	}
	return &Error{Kind: r.Kind, Message: r.Message, Cause: r.Error}
}

// String implements fmt.Stringer.
func (r Result) String() string {
	if r.Success {
		return "ok: " + r.Message
	}
	return fmt.Sprintf("%s failure: %s (%s)", r.Kind, r.Message, r.Error)
}

// Error is the error form of a failure Result.
type Error struct {
	Kind    Kind
	Message string
	Cause   string
}

func (e *Error) Error() string {
	if e.Cause == "" || e.Cause == e.Message {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Message, e.Cause)
}

// KindOf returns the Kind carried by err, or KindUnexpected.
func KindOf(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	return KindUnexpected
}

// Guard runs fn and converts a panic into a KindUnexpected failure that
// preserves the panic value as the error text.
func Guard(operation string, fn func() Result) (r Result) {
	defer func() {
		if rec := recover(); rec != nil {
			r = Fail(KindUnexpected, operation+" failed unexpectedly", fmt.Errorf("%v", rec))
		}
	}()
	return fn()
}
