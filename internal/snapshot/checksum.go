// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package snapshot

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// ErrChecksumMismatch is returned when an archive digest is not found in
// its checksum file.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// FileSHA256 calculates the hex SHA-256 of a file.
func FileSHA256(fsys FS, name string) (string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		return "", err
	}
	defer f.Close() //nolint:errcheck // Best effort cleanup

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ChecksumMatches reports whether digest occurs in the trimmed checksum file
// content. Substring containment accepts both a bare digest and
// sha256sum-style "digest  filename" lines.
func ChecksumMatches(digest, checksumContent string) bool {
	digest = strings.ToLower(strings.TrimSpace(digest))
	if digest == "" {
		return false
	}
	return strings.Contains(strings.ToLower(strings.TrimSpace(checksumContent)), digest)
}

// ChecksumLine formats a sha256sum-compatible line.
func ChecksumLine(digest, fileName string) string {
	return digest + "  " + fileName + "\n"
}

// VerifyFile recomputes the digest of archive and checks it against the
// checksum file. It returns the computed digest.
func VerifyFile(fsys FS, archive, checksumFile string) (string, error) {
	digest, err := FileSHA256(fsys, archive)
	if err != nil {
		return "", fmt.Errorf("hash %s: %w", archive, err)
	}
	content, err := fsys.ReadFile(checksumFile)
	if err != nil {
		return digest, fmt.Errorf("read %s: %w", checksumFile, err)
	}
	if !ChecksumMatches(digest, string(content)) {
		return digest, fmt.Errorf("%w: %s not found in %s", ErrChecksumMismatch, digest, checksumFile)
	}
	return digest, nil
}
