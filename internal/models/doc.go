// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
Package models defines the data structures shared by every stacksnap package.

Key Components:

  - Stack: a bundle of related components (web application, database, triple store)
  - Component: one hosted service running in an externally managed container
  - SnapshotRecord: a point-in-time backup record pointing at a bag archive and checksum
  - FileEntity: a managed file addressed by a scheme URI (private://, public://, temporary://)
  - Bundle registry: the single bundle to type-tag lookup used by the path planner,
    the bag assembler and restore dispatch
  - APIResponse: standard HTTP response wrapper

Records are owned by the entity layer (see internal/store). Orchestration code reads
them through narrow interfaces and never mutates them directly.
*/
package models
