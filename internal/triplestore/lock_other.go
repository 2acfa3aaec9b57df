// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

//go:build !unix

package triplestore

import "os"

func lockFile(*os.File) error { return nil }

func unlockFile(*os.File) error { return nil }
