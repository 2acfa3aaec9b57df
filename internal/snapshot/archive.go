// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package snapshot

import (
	"archive/tar"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// MaxEntrySize caps a single extracted archive member.
const MaxEntrySize int64 = 16 << 30

// openArchiveReader opens a tar or tar.gz archive.
func openArchiveReader(fsys FS, filePath string) (*tar.Reader, []io.Closer, error) {
	file, err := fsys.Open(filePath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open archive: %w", err)
	}

	closers := []io.Closer{file}
	var reader io.Reader = file

	if strings.HasSuffix(filePath, ".gz") {
		gzReader, err := gzip.NewReader(file)
		if err != nil {
			file.Close() //nolint:errcheck // Best effort cleanup on error
			return nil, nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		closers = append(closers, gzReader)
		reader = gzReader
	}

	return tar.NewReader(reader), closers, nil
}

// closeAll closes all closers in reverse order
func closeAll(closers []io.Closer) {
	for i := len(closers) - 1; i >= 0; i-- {
		closers[i].Close() //nolint:errcheck // Best effort cleanup
	}
}

// ExtractArchive unpacks a bag into destDir and returns the extracted
// member names relative to it. Bag members are stored relative to the bag
// directory, so leading "../" and "./" segments are dropped.
//
//nolint:gosec // G305: Path traversal is validated after filepath.Join
func ExtractArchive(fsys FS, archivePath, destDir string) ([]string, error) {
	tarReader, closers, err := openArchiveReader(fsys, archivePath)
	if err != nil {
		return nil, err
	}
	defer closeAll(closers)

	var names []string
	for {
		header, err := tarReader.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return names, fmt.Errorf("failed to read tar entry: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}

		name := memberName(header.Name)
		if name == "" {
			continue
		}
		if err := extractTarEntry(fsys, tarReader, destDir, name, header.Size); err != nil {
			return names, err
		}
		names = append(names, name)
	}
	return names, nil
}

// memberName normalizes an archive member path.
func memberName(name string) string {
	name = filepath.ToSlash(name)
	for {
		switch {
		case strings.HasPrefix(name, "../"):
			name = name[3:]
		case strings.HasPrefix(name, "./"):
			name = name[2:]
		default:
			return name
		}
	}
}

func extractTarEntry(fsys FS, reader io.Reader, destDir, name string, size int64) error {
	destPath, err := validateAndBuildDestPath(destDir, name)
	if err != nil {
		return err
	}
	if err := fsys.MkdirAll(filepath.Dir(destPath), 0o750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", name, err)
	}
	if err := extractFile(fsys, reader, destPath, size); err != nil {
		return fmt.Errorf("failed to extract %s: %w", name, err)
	}
	return nil
}

// validateAndBuildDestPath validates and builds the destination path for extraction
func validateAndBuildDestPath(destDir, fileName string) (string, error) {
	destPath := filepath.Join(destDir, filepath.FromSlash(fileName))
	if !strings.HasPrefix(destPath, filepath.Clean(destDir)+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid file path in archive: %s", fileName)
	}
	return destPath, nil
}

func extractFile(fsys FS, reader io.Reader, destPath string, size int64) error {
	if size > MaxEntrySize {
		return fmt.Errorf("file too large: %d bytes (max %d)", size, MaxEntrySize)
	}

	outFile, err := fsys.Create(destPath)
	if err != nil {
		return err
	}

	_, err = io.Copy(outFile, io.LimitReader(reader, size+1))
	closeErr := outFile.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		fsys.Remove(destPath) //nolint:errcheck // Best effort cleanup on error
		return err
	}
	return nil
}

// CopyFile copies src to dst through fsys.
func CopyFile(fsys FS, src, dst string) error {
	in, err := fsys.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // Best effort cleanup

	out, err := fsys.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(out, in)
	closeErr := out.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		fsys.Remove(dst) //nolint:errcheck // Best effort cleanup on error
	}
	return err
}
