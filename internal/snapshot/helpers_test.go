// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package snapshot

import (
	"archive/tar"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/tomtom215/stacksnap/internal/models"
)

type member struct {
	name string
	body string
}

// writeTarGz writes members into a tar.gz at path.
func writeTarGz(t *testing.T, path string, members []member) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	tw := tar.NewWriter(gz)
	for _, m := range members {
		hdr := &tar.Header{Name: m.name, Mode: 0o644, Size: int64(len(m.body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(m.body)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

// writeChecksum writes a sha256sum-style checksum file for path.
func writeChecksum(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])
	if err := os.WriteFile(path+ChecksumSuffix, []byte(ChecksumLine(digest, filepath.Base(path))), 0o644); err != nil {
		t.Fatal(err)
	}
	return digest
}

func testDumps() []Dump {
	return []Dump{
		{
			Bundle:       models.BundleMariaDB,
			EntityID:     "db-1",
			MachineName:  "my_db",
			TypeTag:      "sql",
			DumpFile:     "my_db--1772366400--sql.sql.gz",
			ChecksumFile: "my_db--1772366400--sql.sql.gz.sha256",
		},
		{
			Bundle:      models.BundleTriplestore,
			EntityID:    "ts-1",
			MachineName: "my_ts",
			TypeTag:     "nq",
			DumpFile:    "my_ts--1772366400.nq",
		},
	}
}
