// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package result

import (
	"errors"
	"strings"
	"testing"
)

func TestOKInitializesData(t *testing.T) {
	r := OK("done", nil)
	if !r.Success || r.Data == nil {
		t.Fatalf("expected success with non-nil data, got %+v", r)
	}
	if r.Err() != nil {
		t.Errorf("expected nil error for success, got %v", r.Err())
	}
}

func TestFailUsesMessageWhenErrorNil(t *testing.T) {
	r := Fail(KindData, "bad manifest", nil)
	if r.Success {
		t.Fatal("expected failure")
	}
	if r.Error != "bad manifest" {
		t.Errorf("expected error text to mirror message, got %q", r.Error)
	}
	if r.Kind != KindData {
		t.Errorf("expected kind data, got %s", r.Kind)
	}
}

func TestWithDoesNotMutateOriginal(t *testing.T) {
	base := OK("x", map[string]any{"a": 1})
	next := base.With("b", 2)

	if _, ok := base.Data["b"]; ok {
		t.Error("With mutated the original result")
	}
	if next.Data["a"] != 1 || next.Data["b"] != 2 {
		t.Errorf("unexpected data: %v", next.Data)
	}
}

func TestErrCarriesKind(t *testing.T) {
	err := Fail(KindTimeout, "waited too long", errors.New("budget exhausted")).Err()
	if err == nil {
		t.Fatal("expected error")
	}
	if KindOf(err) != KindTimeout {
		t.Errorf("expected timeout kind, got %s", KindOf(err))
	}
	if !strings.Contains(err.Error(), "budget exhausted") {
		t.Errorf("expected cause in error text, got %q", err.Error())
	}
}

func TestKindOfForeignError(t *testing.T) {
	if KindOf(errors.New("boom")) != KindUnexpected {
		t.Error("expected unexpected kind for plain error")
	}
}

func TestGuardRecoversPanic(t *testing.T) {
	r := Guard("restore", func() Result {
		panic("nil map write")
	})
	if r.Success {
		t.Fatal("expected failure after panic")
	}
	if r.Kind != KindUnexpected {
		t.Errorf("expected unexpected kind, got %s", r.Kind)
	}
	if r.Error != "nil map write" {
		t.Errorf("expected panic message preserved, got %q", r.Error)
	}
}

func TestGuardPassesThrough(t *testing.T) {
	r := Guard("noop", func() Result { return OK("fine", nil) })
	if !r.Success {
		t.Fatalf("expected success, got %v", r)
	}
}
