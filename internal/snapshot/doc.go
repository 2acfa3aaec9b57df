// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
Package snapshot plans the on-disk layout of snapshots, assembles bags and
restores components from them.

# Layout

Every path is derived from owner, snapshot machine name, bundle and epoch
timestamp by PlanPaths, with no filesystem access:

	<privateRoot>/<subpath>/<owner>/<machine>/<YYYY-MM-DD>/<ts>/<typeTag>/<machine>--<ts>--<typeTag>.tar.gz
	<privateRoot>/<subpath>/<owner>/<machine>/<YYYY-MM-DD>/<ts>/bag/<machine>--<ts>.contents.tar.gz

The bundle to type tag mapping comes from the models bundle registry, the
same table used by bag assembly and restore dispatch.

# Bags

Assembler.CreateBagOfFiles writes manifest.json and starts a helper
container that tars the manifest with every referenced dump and writes the
archive's SHA-256 next to it.

# Restore

Coordinator.Restore validates the snapshot record, the confirmation, the
archive checksum and the manifest before handing the extracted dump to the
Handler registered for the component's type tag.
*/
package snapshot
