// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

// Package testinfra provides test infrastructure for integration testing with containers.
//
// This package uses testcontainers-go to run real services behind the
// `integration` build tag:
//
//	go test -tags integration ./internal/testinfra/...
//
// # RDF4J Container
//
// RDF4JContainer runs an RDF4J server so the triple store client and
// exporter are exercised against the real REST protocol:
//
//	rdf4j, err := testinfra.NewRDF4JContainer(ctx)
//	if err != nil {
//	    t.Fatal(err)
//	}
//	defer testinfra.CleanupContainer(t, ctx, rdf4j.Container)
//
//	if err := rdf4j.CreateMemoryRepository(ctx, "wisski"); err != nil {
//	    t.Fatal(err)
//	}
//	client := triplestore.NewClient(triplestore.ClientConfig{BaseURL: rdf4j.ServerURL})
//
// Tests are skipped when Docker is unavailable. The first run downloads the
// image.
package testinfra
