// Stacksnap - Snapshot Lifecycle and Container Orchestration Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/stacksnap

// Package store persists stacks, components, snapshot records, managed
// files and service keys in BadgerDB.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/stacksnap/internal/logging"
	"github.com/tomtom215/stacksnap/internal/models"
)

// Key prefixes for BadgerDB storage
const (
	stackPrefix     = "stack:"
	componentPrefix = "component:"
	snapshotPrefix  = "snapshot:"
	filePrefix      = "file:"
	keyPrefix       = "servicekey:"
)

// Config configures the BadgerDB backing the store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is set.
	Path       string
	InMemory   bool
	SyncWrites bool
}

// Store is the entity layer. It satisfies the record, inventory and key
// store interfaces of the snapshot, database and audit packages.
type Store struct {
	db *badger.DB
}

// Open opens (or creates) the database.
func Open(cfg Config) (*Store, error) {
	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else if cfg.Path == "" {
		return nil, errors.New("store path is required unless in-memory")
	}
	opts.SyncWrites = cfg.SyncWrites
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Msg("Entity store opened")

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func getJSON[T any](txn *badger.Txn, key string) (*T, error) {
	item, err := txn.Get([]byte(key))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	var v T
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &v)
	}); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", key, err)
	}
	return &v, nil
}

func setJSON(txn *badger.Txn, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return txn.Set([]byte(key), data)
}

func listJSON[T any](txn *badger.Txn, prefix string) ([]*T, error) {
	opts := badger.DefaultIteratorOptions
	opts.PrefetchValues = true
	opts.Prefix = []byte(prefix)
	it := txn.NewIterator(opts)
	defer it.Close()

	var out []*T
	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		var v T
		if err := item.Value(func(val []byte) error {
			return json.Unmarshal(val, &v)
		}); err != nil {
			return nil, fmt.Errorf("unmarshal %s: %w", item.Key(), err)
		}
		out = append(out, &v)
	}
	return out, nil
}

func get[T any](s *Store, key string) (*T, error) {
	var v *T
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		v, err = getJSON[T](txn, key)
		return err
	})
	return v, err
}

func list[T any](s *Store, prefix string) ([]*T, error) {
	var out []*T
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		out, err = listJSON[T](txn, prefix)
		return err
	})
	return out, err
}

func (s *Store) put(key string, v any) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return setJSON(txn, key, v)
	})
}

// PutStack creates or replaces a stack.
func (s *Store) PutStack(_ context.Context, st *models.Stack) error {
	return s.put(stackPrefix+st.ID, st)
}

// Stack returns a stack or models.ErrNotFound.
func (s *Store) Stack(_ context.Context, id string) (*models.Stack, error) {
	return get[models.Stack](s, stackPrefix+id)
}

// Stacks returns all stacks.
func (s *Store) Stacks(_ context.Context) ([]*models.Stack, error) {
	return list[models.Stack](s, stackPrefix)
}

// PutComponent creates or replaces a component.
func (s *Store) PutComponent(_ context.Context, c *models.Component) error {
	return s.put(componentPrefix+c.ID, c)
}

// Component returns a component or models.ErrNotFound.
func (s *Store) Component(_ context.Context, id string) (*models.Component, error) {
	return get[models.Component](s, componentPrefix+id)
}

// Components returns all components.
func (s *Store) Components(_ context.Context) ([]*models.Component, error) {
	return list[models.Component](s, componentPrefix)
}

// Connected returns the components linked with componentID. Links that
// point at missing components are skipped.
func (s *Store) Connected(_ context.Context, componentID string) ([]*models.Component, error) {
	var out []*models.Component
	err := s.db.View(func(txn *badger.Txn) error {
		c, err := getJSON[models.Component](txn, componentPrefix+componentID)
		if err != nil {
			return err
		}
		for _, id := range c.ConnectedIDs {
			linked, err := getJSON[models.Component](txn, componentPrefix+id)
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			if err != nil {
				return err
			}
			out = append(out, linked)
		}
		return nil
	})
	return out, err
}

// PutSnapshot creates or replaces a snapshot record without touching
// its target's back references.
func (s *Store) PutSnapshot(_ context.Context, snap *models.SnapshotRecord) error {
	return s.put(snapshotPrefix+snap.ID, snap)
}

// AttachSnapshot stores a snapshot record and adds it to the snapshot
// list of its stack or component in one transaction.
func (s *Store) AttachSnapshot(_ context.Context, snap *models.SnapshotRecord) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if err := setJSON(txn, snapshotPrefix+snap.ID, snap); err != nil {
			return err
		}

		switch {
		case snap.StackID != "":
			st, err := getJSON[models.Stack](txn, stackPrefix+snap.StackID)
			if err != nil {
				return fmt.Errorf("attach to stack %s: %w", snap.StackID, err)
			}
			if !slices.Contains(st.SnapshotIDs, snap.ID) {
				st.SnapshotIDs = append(st.SnapshotIDs, snap.ID)
			}
			return setJSON(txn, stackPrefix+st.ID, st)
		case snap.ComponentID != "":
			c, err := getJSON[models.Component](txn, componentPrefix+snap.ComponentID)
			if err != nil {
				return fmt.Errorf("attach to component %s: %w", snap.ComponentID, err)
			}
			if !slices.Contains(c.SnapshotIDs, snap.ID) {
				c.SnapshotIDs = append(c.SnapshotIDs, snap.ID)
			}
			return setJSON(txn, componentPrefix+c.ID, c)
		default:
			return errors.New("snapshot has no stack or component")
		}
	})
}

// Snapshot returns a snapshot record or models.ErrNotFound.
func (s *Store) Snapshot(_ context.Context, id string) (*models.SnapshotRecord, error) {
	return get[models.SnapshotRecord](s, snapshotPrefix+id)
}

// Snapshots returns all snapshot records.
func (s *Store) Snapshots(_ context.Context) ([]*models.SnapshotRecord, error) {
	return list[models.SnapshotRecord](s, snapshotPrefix)
}

// DeleteSnapshot removes a snapshot record and every back reference to
// it. Deleting a missing record returns models.ErrNotFound.
func (s *Store) DeleteSnapshot(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := getJSON[models.SnapshotRecord](txn, snapshotPrefix+id); err != nil {
			return err
		}

		stacks, err := listJSON[models.Stack](txn, stackPrefix)
		if err != nil {
			return err
		}
		for _, st := range stacks {
			if i := slices.Index(st.SnapshotIDs, id); i >= 0 {
				st.SnapshotIDs = slices.Delete(st.SnapshotIDs, i, i+1)
				if err := setJSON(txn, stackPrefix+st.ID, st); err != nil {
					return err
				}
			}
		}

		components, err := listJSON[models.Component](txn, componentPrefix)
		if err != nil {
			return err
		}
		for _, c := range components {
			if i := slices.Index(c.SnapshotIDs, id); i >= 0 {
				c.SnapshotIDs = slices.Delete(c.SnapshotIDs, i, i+1)
				if err := setJSON(txn, componentPrefix+c.ID, c); err != nil {
					return err
				}
			}
		}

		return txn.Delete([]byte(snapshotPrefix + id))
	})
}

// PutFile creates or replaces a managed file entity.
func (s *Store) PutFile(_ context.Context, f *models.FileEntity) error {
	return s.put(filePrefix+f.ID, f)
}

// File returns a file entity or models.ErrNotFound.
func (s *Store) File(_ context.Context, id string) (*models.FileEntity, error) {
	return get[models.FileEntity](s, filePrefix+id)
}

// Files returns all file entities.
func (s *Store) Files(_ context.Context) ([]*models.FileEntity, error) {
	return list[models.FileEntity](s, filePrefix)
}

// DeleteFile removes a file entity. Deleting a missing entity returns
// models.ErrNotFound.
func (s *Store) DeleteFile(_ context.Context, id string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(filePrefix + id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return models.ErrNotFound
			}
			return err
		}
		return txn.Delete(key)
	})
}

// SetServiceKey stores a service credential.
func (s *Store) SetServiceKey(_ context.Context, name, value string) error {
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keyPrefix+name), []byte(value))
	})
}

// ServiceKey returns a service credential or models.ErrNotFound.
func (s *Store) ServiceKey(_ context.Context, name string) (string, error) {
	var value string
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + name))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return models.ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get service key: %w", err)
		}
		val, err := item.ValueCopy(nil)
		value = string(val)
		return err
	})
	return value, err
}
