// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package models

import "strings"

// Bundle identifies the kind of a component or stack.
type Bundle string

const (
	// BundleFilesystem is a plain file tree.
	BundleFilesystem Bundle = "filesystem"

	// BundleDrupal is the web application (CMS) container.
	BundleDrupal Bundle = "drupal"

	// BundleMariaDB is the relational database.
	BundleMariaDB Bundle = "mariadb"

	// BundleTriplestore is the RDF repository.
	BundleTriplestore Bundle = "triplestore"

	// BundleStack is a full multi-component stack.
	BundleStack Bundle = "stack"
)

// Category groups bundles by the role they play during dump and restore.
type Category int

const (
	CategoryOther Category = iota
	CategoryDatabase
	CategoryApplication
	CategoryTriplestore
	CategoryFiles
	CategoryStack
)

// BundleInfo is one registry entry.
type BundleInfo struct {
	Bundle   Bundle
	TypeTag  string
	Category Category

	// Extension is appended to dump file names of this bundle, including the dot.
	Extension string
}

var bundleRegistry = map[Bundle]BundleInfo{
	BundleFilesystem:  {Bundle: BundleFilesystem, TypeTag: "files", Category: CategoryFiles, Extension: ".tar.gz"},
	BundleDrupal:      {Bundle: BundleDrupal, TypeTag: "drupal-data", Category: CategoryApplication, Extension: ".tar.gz"},
	BundleMariaDB:     {Bundle: BundleMariaDB, TypeTag: "sql", Category: CategoryDatabase, Extension: ".sql.gz"},
	BundleTriplestore: {Bundle: BundleTriplestore, TypeTag: "nq", Category: CategoryTriplestore, Extension: ".nq"},
	BundleStack:       {Bundle: BundleStack, TypeTag: "wisski-stack", Category: CategoryStack, Extension: ".tar.gz"},
}

var bundleAliases = map[string]Bundle{
	"files":        BundleFilesystem,
	"webapp":       BundleDrupal,
	"app":          BundleDrupal,
	"mysql":        BundleMariaDB,
	"database":     BundleMariaDB,
	"graphdb":      BundleTriplestore,
	"rdf4j":        BundleTriplestore,
	"wisski_stack": BundleStack,
}

// ParseBundle normalizes a bundle name, resolving known aliases.
// Unknown names are returned as-is.
func ParseBundle(name string) Bundle {
	n := strings.ToLower(strings.TrimSpace(name))
	if b, ok := bundleAliases[n]; ok {
		return b
	}
	return Bundle(n)
}

// LookupBundle returns the registry entry for b. Unregistered bundles get an
// entry whose type tag is the bundle name itself.
func LookupBundle(b Bundle) BundleInfo {
	if info, ok := bundleRegistry[b]; ok {
		return info
	}
	return BundleInfo{Bundle: b, TypeTag: string(b), Category: CategoryOther, Extension: ".tar.gz"}
}

// TypeTag returns the storage type tag for b.
func TypeTag(b Bundle) string {
	return LookupBundle(b).TypeTag
}

// BundleForTypeTag reverses TypeTag for registered bundles.
func BundleForTypeTag(tag string) (Bundle, bool) {
	for b, info := range bundleRegistry {
		if info.TypeTag == tag {
			return b, true
		}
	}
	return "", false
}

// IsRegistered reports whether b has a dedicated registry entry.
func (b Bundle) IsRegistered() bool {
	_, ok := bundleRegistry[b]
	return ok
}

// Category returns the role category of b.
func (b Bundle) Category() Category {
	return LookupBundle(b).Category
}

func (b Bundle) String() string { return string(b) }
