// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

// Package main is snapctl, an offline debug CLI for Stacksnap operators.
//
// snapctl exercises the pure parts of the engine without a container API:
// attempt budgets, N-Quads conversion of saved SPARQL results, manifest
// validation, checksum verification, snapshot path planning, and a
// read-only audit of an entity store.
//
//	snapctl budget --ceiling 300 --interval 5
//	snapctl nquads results.json > export.nq
//	snapctl manifest validate manifest.json
//	snapctl checksum verify bag.tar.gz bag.tar.gz.sha256
//	snapctl plan --owner alice --machine site1 --bundle sql
//	snapctl audit --store /data/stacksnap/store
package main

import (
	"os"

	"github.com/tomtom215/stacksnap/internal/logging"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	logging.Init(logging.Config{
		Level:  "warn",
		Format: "console",
		Output: os.Stderr,
	})
}
