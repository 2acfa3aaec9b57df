// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

package snapshot

import (
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// FS is the filesystem surface used by the bag assembler and restore.
type FS interface {
	MkdirAll(path string, perm fs.FileMode) error
	MkdirTemp(dir, pattern string) (string, error)
	WriteFile(name string, data []byte, perm fs.FileMode) error
	ReadFile(name string) ([]byte, error)
	Open(name string) (io.ReadCloser, error)
	Create(name string) (io.WriteCloser, error)
	Stat(name string) (fs.FileInfo, error)
	ReadDir(name string) ([]fs.DirEntry, error)
	Remove(name string) error
}

// OSFS implements FS on the local disk.
type OSFS struct{}

func (OSFS) MkdirAll(path string, perm fs.FileMode) error { return os.MkdirAll(path, perm) }

func (OSFS) MkdirTemp(dir, pattern string) (string, error) { return os.MkdirTemp(dir, pattern) }

//nolint:gosec // G306: snapshot files are shared with the application containers
func (OSFS) WriteFile(name string, data []byte, perm fs.FileMode) error {
	return os.WriteFile(name, data, perm)
}

//nolint:gosec // G304: paths come from the snapshot layout
func (OSFS) ReadFile(name string) ([]byte, error) { return os.ReadFile(name) }

//nolint:gosec // G304: paths come from the snapshot layout
func (OSFS) Open(name string) (io.ReadCloser, error) { return os.Open(name) }

//nolint:gosec // G304: paths are validated by the caller
func (OSFS) Create(name string) (io.WriteCloser, error) { return os.Create(name) }

func (OSFS) Stat(name string) (fs.FileInfo, error) { return os.Stat(name) }

func (OSFS) ReadDir(name string) ([]fs.DirEntry, error) { return os.ReadDir(name) }

func (OSFS) Remove(name string) error { return os.Remove(name) }

// exists reports whether name can be stat'ed.
func exists(fsys FS, name string) bool {
	_, err := fsys.Stat(name)
	return err == nil
}

// RemoveTree deletes dir recursively, children before their parent.
func RemoveTree(fsys FS, dir string) error {
	entries, err := fsys.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}

	var errs []error
	for _, e := range entries {
		child := filepath.Join(dir, e.Name())
		if e.IsDir() {
			if err := RemoveTree(fsys, child); err != nil {
				errs = append(errs, err)
			}
			continue
		}
		if err := fsys.Remove(child); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	if err := fsys.Remove(dir); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
