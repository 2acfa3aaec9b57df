// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
Package audit finds snapshot records and files that no longer form a
consistent whole, and removes them.

Three detectors share one pass over the inventory:

  - Dangling: records pointing at a missing stack or component, records no
    stack or component references, and cross-reference mismatches.
  - Pseudo: placeholder records recognised by name patterns, records whose
    files live in temporary storage or are gone, and records missing their
    checksum, bag or directory fields.
  - Orphaned files: snapshot-looking files no record references, and
    referenced files missing on disk.

# Safe Cleanup

SafeCleanupAfterSnapshotCreation runs after every successful snapshot. A
record is deleted only when all of the following hold:

 1. it is not the snapshot just created
 2. it is not the operator's own record younger than the grace period
 3. no stack or component references it
 4. it is clearly broken: pseudo, broken reference, or missing field

Bulk cleanup deletes caller-chosen IDs. Both honour dry-run.
*/
package audit
