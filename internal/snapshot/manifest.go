// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

/*
manifest.go - Bag Manifest Document

Every bag carries a manifest.json describing its content:

	{
	  "version": "1.0",
	  "algorithm": "sha256",
	  "created": 1772366400,
	  "snapshotMachineName": "my_stack",
	  "files": {
	    "contentFiles": {"sql": {"dump": "my_db--1772366400--sql.sql.gz"}},
	    "bagFiles": {"bagFile": "...", "checksumFile": "...", "manifest": "manifest.json"}
	  },
	  "mapping": [{"bundle": "mariadb", "entityId": "c1", "machineName": "my_db",
	               "dumpFile": "...", "checksumFile": "..."}]
	}

The top-level key set is fixed and version/algorithm are pinned. Anything
else fails validation before restore begins.
*/

//nolint:staticcheck // File documentation, not package doc
package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/goccy/go-json"

	"github.com/tomtom215/stacksnap/internal/models"
)

const (
	ManifestVersion   = "1.0"
	ManifestAlgorithm = "sha256"
)

// ErrManifestInvalid wraps every manifest validation failure.
var ErrManifestInvalid = errors.New("invalid manifest")

var manifestKeys = []string{"algorithm", "created", "files", "mapping", "snapshotMachineName", "version"}

// Manifest is the bag manifest document.
type Manifest struct {
	Version             string         `json:"version"`
	Algorithm           string         `json:"algorithm"`
	Created             int64          `json:"created"`
	SnapshotMachineName string         `json:"snapshotMachineName"`
	Files               ManifestFiles  `json:"files"`
	Mapping             []MappingEntry `json:"mapping"`
}

// ManifestFiles lists the content and bag-level files.
type ManifestFiles struct {
	// ContentFiles maps type tag to role to file name. When several dumps
	// share a type tag, the roles of all but the first are keyed
	// role@machine.
	ContentFiles map[string]map[string]string `json:"contentFiles"`
	BagFiles     BagFiles                     `json:"bagFiles"`
}

// BagFiles names the bag archive, its checksum and the manifest.
type BagFiles struct {
	BagFile      string `json:"bagFile"`
	ChecksumFile string `json:"checksumFile"`
	Manifest     string `json:"manifest"`
}

// MappingEntry ties a source entity to its dump file.
type MappingEntry struct {
	Bundle       string `json:"bundle"`
	EntityID     string `json:"entityId"`
	MachineName  string `json:"machineName"`
	DumpFile     string `json:"dumpFile"`
	ChecksumFile string `json:"checksumFile"`
}

// TypeTag returns the content type tag of the entry's bundle.
func (e MappingEntry) TypeTag() string {
	return models.TypeTag(models.ParseBundle(e.Bundle))
}

// Encode serializes the manifest as indented JSON without HTML escaping.
func (m *Manifest) Encode() ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(m); err != nil {
		return nil, fmt.Errorf("encode manifest: %w", err)
	}
	return buf.Bytes(), nil
}

// ParseAndValidateManifest decodes data and enforces the manifest schema.
func ParseAndValidateManifest(data []byte) (*Manifest, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: not a JSON object: %v", ErrManifestInvalid, err)
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if !slices.Equal(keys, manifestKeys) {
		return nil, fmt.Errorf("%w: expected keys [%s], got [%s]",
			ErrManifestInvalid, strings.Join(manifestKeys, ", "), strings.Join(keys, ", "))
	}

	var m Manifest
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrManifestInvalid, err)
	}

	if m.Version != ManifestVersion {
		return nil, fmt.Errorf("%w: unsupported version %q", ErrManifestInvalid, m.Version)
	}
	if m.Algorithm != ManifestAlgorithm {
		return nil, fmt.Errorf("%w: unsupported algorithm %q", ErrManifestInvalid, m.Algorithm)
	}
	if m.Created <= 0 {
		return nil, fmt.Errorf("%w: created must be a positive epoch", ErrManifestInvalid)
	}
	if m.SnapshotMachineName == "" {
		return nil, fmt.Errorf("%w: snapshotMachineName is empty", ErrManifestInvalid)
	}
	if m.Files.BagFiles.BagFile == "" || m.Files.BagFiles.Manifest == "" {
		return nil, fmt.Errorf("%w: bagFiles incomplete", ErrManifestInvalid)
	}
	for i, e := range m.Mapping {
		if e.Bundle == "" || e.DumpFile == "" {
			return nil, fmt.Errorf("%w: mapping[%d] lacks bundle or dumpFile", ErrManifestInvalid, i)
		}
	}
	return &m, nil
}

// FindEntry returns the mapping entry for an entity, falling back to the
// first entry of the same bundle.
func (m *Manifest) FindEntry(entityID string, bundle string) (MappingEntry, bool) {
	for _, e := range m.Mapping {
		if e.EntityID == entityID {
			return e, true
		}
	}
	for _, e := range m.Mapping {
		if e.Bundle == bundle {
			return e, true
		}
	}
	return MappingEntry{}, false
}
