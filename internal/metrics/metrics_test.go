// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordContainerAPI(t *testing.T) {
	before := testutil.ToFloat64(ContainerAPIRequests.WithLabelValues("inspect", "404"))
	RecordContainerAPI("inspect", 404, 15*time.Millisecond)
	after := testutil.ToFloat64(ContainerAPIRequests.WithLabelValues("inspect", "404"))

	if after-before != 1 {
		t.Errorf("expected counter to increase by 1, got %f", after-before)
	}
}

func TestRecordDump(t *testing.T) {
	okBefore := testutil.ToFloat64(DumpsTotal.WithLabelValues("sql", "success"))
	failBefore := testutil.ToFloat64(DumpsTotal.WithLabelValues("sql", "failure"))

	RecordDump("sql", 4096, nil)
	RecordDump("sql", 0, errors.New("mysqldump exited 2"))

	if got := testutil.ToFloat64(DumpsTotal.WithLabelValues("sql", "success")) - okBefore; got != 1 {
		t.Errorf("expected 1 success, got %f", got)
	}
	if got := testutil.ToFloat64(DumpsTotal.WithLabelValues("sql", "failure")) - failBefore; got != 1 {
		t.Errorf("expected 1 failure, got %f", got)
	}
}

func TestRecordRestore(t *testing.T) {
	before := testutil.ToFloat64(RestoresTotal.WithLabelValues("failure", "integrity"))
	RecordRestore(false, "integrity")
	RecordRestore(true, "")
	if got := testutil.ToFloat64(RestoresTotal.WithLabelValues("failure", "integrity")) - before; got != 1 {
		t.Errorf("expected 1 integrity failure, got %f", got)
	}
}

func TestSetAuditFindings(t *testing.T) {
	SetAuditFindings(3, 1, 7)

	tests := map[string]float64{"dangling": 3, "pseudo": 1, "orphaned_file": 7}
	for category, want := range tests {
		if got := testutil.ToFloat64(AuditFindings.WithLabelValues(category)); got != want {
			t.Errorf("%s: expected %f, got %f", category, want, got)
		}
	}
}

func TestRecordAPIRequest(t *testing.T) {
	before := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/audit", "200"))
	RecordAPIRequest("GET", "/api/v1/audit", "200", time.Millisecond)
	if got := testutil.ToFloat64(APIRequestsTotal.WithLabelValues("GET", "/api/v1/audit", "200")) - before; got != 1 {
		t.Errorf("expected counter +1, got %f", got)
	}
}
