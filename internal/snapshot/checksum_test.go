// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package snapshot

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const helloDigest = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

func TestChecksumMatches(t *testing.T) {
	tests := []struct {
		name    string
		digest  string
		content string
		want    bool
	}{
		{"bare digest", helloDigest, helloDigest, true},
		{"trailing newline", helloDigest, helloDigest + "\n", true},
		{"sha256sum line", helloDigest, helloDigest + "  bag.tar.gz\n", true},
		{"uppercase file", helloDigest, "2CF24DBA5FB0A30E26E83B2AC5B9E29E1B161E5C1FA7425E73043362938B9824", true},
		{"different digest", helloDigest, "0000000000000000000000000000000000000000000000000000000000000000", false},
		{"empty file", helloDigest, "", false},
		{"empty digest", "", helloDigest, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ChecksumMatches(tt.digest, tt.content); got != tt.want {
				t.Errorf("ChecksumMatches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestFileSHA256(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hello")
	if err := os.WriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := FileSHA256(OSFS{}, path)
	if err != nil {
		t.Fatal(err)
	}
	if got != helloDigest {
		t.Errorf("FileSHA256 = %s", got)
	}
}

func TestVerifyFileTamper(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "bag.contents.tar.gz")
	writeTarGz(t, archive, []member{{name: "manifest.json", body: "{}"}})
	writeChecksum(t, archive)

	if _, err := VerifyFile(OSFS{}, archive, archive+ChecksumSuffix); err != nil {
		t.Fatalf("VerifyFile on intact archive: %v", err)
	}

	data, err := os.ReadFile(archive)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)/2] ^= 0xff
	if err := os.WriteFile(archive, data, 0o644); err != nil {
		t.Fatal(err)
	}

	_, err = VerifyFile(OSFS{}, archive, archive+ChecksumSuffix)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("VerifyFile after tamper error = %v, want ErrChecksumMismatch", err)
	}
}

func TestVerifyFileMissing(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "a")
	if err := os.WriteFile(archive, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := VerifyFile(OSFS{}, archive, filepath.Join(dir, "missing.sha256"))
	if err == nil || errors.Is(err, ErrChecksumMismatch) {
		t.Errorf("error = %v, want read error", err)
	}
}
