// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
manager.go - Core Backup Manager

This file contains the Manager struct, its construction, and the small
amount of shared state the backup and restore paths coordinate on.

Manager Responsibilities:
  - Backup creation orchestration (manager_crud.go, manager_archive.go)
  - Validation and restore (manager_validation.go, restore.go)
  - Schedule persistence and retention (manager_schedule.go, retention.go)
  - Lifecycle events and metrics

Metadata Storage:
Records live in a Store (BadgerDB in production). The Store serializes
writes, so concurrent callers cannot lose each other's updates.

Concurrency:
Only one backup or restore runs at a time. A second request while one is
active fails fast with ErrBackupInProgress instead of queueing.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/archive"
	"github.com/Kurisu21/webeenthere-sub006/internal/dump"
	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// interruptedError is written to records left in_progress by a crash.
const interruptedError = "interrupted: process stopped before completion"

// DatabaseDumper is the part of dump.Dumper the manager needs.
type DatabaseDumper interface {
	Dump(ctx context.Context, outPath string) (*dump.Result, error)
	DumpIncremental(ctx context.Context, outPath string, since time.Time) (*dump.Result, error)
	Restore(ctx context.Context, scriptPath string) (*dump.RestoreResult, error)
}

// Manager handles backup and restore operations
type Manager struct {
	cfg      Config
	store    Store
	db       DatabaseDumper
	archiver *archive.Builder
	events   EventSink
	now      func() time.Time

	activeMu sync.Mutex
	active   bool

	scheduleMu      sync.Mutex
	scheduleChanged chan struct{}
}

// Option customizes a Manager.
type Option func(*Manager)

// WithEventSink routes lifecycle events to sink.
func WithEventSink(sink EventSink) Option {
	return func(m *Manager) {
		if sink != nil {
			m.events = sink
		}
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a backup manager. Records left in_progress by a
// previous process are marked failed before it returns.
func NewManager(cfg Config, store Store, db DatabaseDumper, opts ...Option) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("metadata store is required")
	}
	if db == nil {
		return nil, fmt.Errorf("database dumper is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("backup configuration validation failed: %w", err)
	}
	if err := cfg.EnsureBackupDir(); err != nil {
		return nil, err
	}
	if cfg.IncrementalFallback <= 0 {
		cfg.IncrementalFallback = 24 * time.Hour
	}

	m := &Manager{
		cfg:      cfg,
		store:    store,
		db:       db,
		archiver: cfg.archiveBuilder(),
		events:   nopSink{},
		now:      time.Now,

		scheduleChanged: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}

	if err := m.recoverInterrupted(); err != nil {
		return nil, err
	}
	return m, nil
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// recoverInterrupted fails every record still marked in_progress. Nothing
// can be running yet, so those attempts died with a previous process.
func (m *Manager) recoverInterrupted() error {
	backups, err := m.store.ListBackups()
	if err != nil {
		return fmt.Errorf("failed to load backup records: %w", err)
	}

	for _, b := range backups {
		if b.Status != StatusInProgress {
			continue
		}
		b.Status = StatusFailed
		b.Error = interruptedError
		b.Size = 0
		b.IntegrityHash = ""
		if err := m.store.SaveBackup(b); err != nil {
			return fmt.Errorf("failed to mark interrupted backup %s: %w", b.ID, err)
		}
		logging.Warn().Str("backup_id", b.ID).Str("type", string(b.Type)).
			Msg("Marked interrupted backup as failed")
	}
	return nil
}

// acquire claims the single backup/restore slot.
func (m *Manager) acquire() bool {
	m.activeMu.Lock()
	defer m.activeMu.Unlock()
	if m.active {
		return false
	}
	m.active = true
	return true
}

func (m *Manager) release() {
	m.activeMu.Lock()
	m.active = false
	m.activeMu.Unlock()
}

// publish sends an event and logs a failure to do so.
func (m *Manager) publish(ctx context.Context, event Event) {
	if event.Time.IsZero() {
		event.Time = m.now()
	}
	if err := m.events.Publish(ctx, event); err != nil {
		logging.Ctx(ctx).Warn().Err(err).Str("event", string(event.Type)).Msg("Failed to publish backup event")
	}
}

// withDeadline applies the configured overall timeout to ctx.
func (m *Manager) withDeadline(ctx context.Context, op string) (context.Context, context.CancelFunc) {
	return context.WithTimeoutCause(ctx, m.cfg.Timeout,
		fmt.Errorf("%w: %s exceeded %s", ErrTimeout, op, m.cfg.Timeout))
}
