// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

// Package database dumps and restores the relational database of a stack.
//
// A dump subject is either a stack or a single component. ResolvePair maps
// it to the database component and, when one exists, the application
// component linked with it. Dumps run as a shell pipeline inside the
// application container through the container management exec API, so the
// engine never needs direct network access to the database.
package database
