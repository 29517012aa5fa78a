// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
store_badger.go - BadgerDB Metadata Store

Records are stored one per key so that a write touches only the record it
changes. Every mutation runs in a single read-write transaction, and a
process-wide mutex keeps writers from conflicting with each other.

Key Layout:
  - backup/<id>       JSON-encoded Backup
  - schedule/config   JSON-encoded ScheduleConfig
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"errors"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

const (
	prefixBackup = "backup/"
	keySchedule  = "schedule/config"
)

// BadgerStore implements Store on an embedded BadgerDB.
type BadgerStore struct {
	db      *badger.DB
	writeMu sync.Mutex
}

// OpenBadgerStore opens (or creates) the store in dir. An empty dir opens
// an in-memory store, used by tests.
func OpenBadgerStore(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir)
	if dir == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = true
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// SaveBackup inserts or replaces b.
func (s *BadgerStore) SaveBackup(b *Backup) error {
	data, err := json.Marshal(b)
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefixBackup + b.ID)

		item, err := txn.Get(key)
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return fmt.Errorf("read backup %s: %w", b.ID, err)
		default:
			var existing Backup
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &existing)
			}); err != nil {
				return fmt.Errorf("decode backup %s: %w", b.ID, err)
			}
			if existing.Status != StatusInProgress {
				return fmt.Errorf("%w: %s is %s", ErrImmutableRecord, b.ID, existing.Status)
			}
		}

		return txn.Set(key, data)
	})
}

// GetBackup returns the record for id or ErrNotFound.
func (s *BadgerStore) GetBackup(id string) (*Backup, error) {
	var b Backup
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefixBackup + id))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &b)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get backup %s: %w", id, err)
	}
	return &b, nil
}

// DeleteBackup removes the record for id or returns ErrNotFound.
func (s *BadgerStore) DeleteBackup(id string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		key := []byte(prefixBackup + id)
		if _, err := txn.Get(key); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %s", ErrNotFound, id)
			}
			return err
		}
		return txn.Delete(key)
	})
}

// ListBackups returns every stored record.
func (s *BadgerStore) ListBackups() ([]*Backup, error) {
	backups := make([]*Backup, 0)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = true
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(prefixBackup)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var b Backup
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &b)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			backups = append(backups, &b)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list backups: %w", err)
	}
	return backups, nil
}

// GetSchedule returns the saved schedule or ErrNotFound.
func (s *BadgerStore) GetSchedule() (*ScheduleConfig, error) {
	var cfg ScheduleConfig
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keySchedule))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &cfg)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get schedule: %w", err)
	}
	return &cfg, nil
}

// SaveSchedule replaces the schedule.
func (s *BadgerStore) SaveSchedule(cfg ScheduleConfig) error {
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(keySchedule), data)
	})
}

// Close closes the underlying database.
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
