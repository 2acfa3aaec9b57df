// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
Package triplestore exports and restores RDF repositories of an
RDF4J/GraphDB-compatible triple store.

Export runs one SPARQL SELECT over every named graph and converts the JSON
result set into N-Quads, one statement per line:

	<http://ex/s> <http://ex/p> "line one\nline two"@en <http://ex/g> .

Bindings without a graph term are dropped, so triples in the default graph
are not part of an export.

Restore posts the N-Quads file back to the repository statements endpoint.
*/
package triplestore
