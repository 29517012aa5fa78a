// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

// Package backup produces, tracks, verifies and restores point-in-time
// copies of the application's database and file assets.
//
// # Overview
//
// The package implements:
//   - Full, database-only, files-only and incremental backups
//   - A metadata record for every attempt, including failed ones
//   - SHA-256 integrity hashes frozen at creation and rechecked on validate
//     and restore
//   - Optional age encryption with a password-derived scrypt key
//   - Restore with a pre-restore safety backup and path-traversal-safe
//     extraction
//   - A persisted schedule and an age-based retention pass
//
// # Architecture
//
//	┌──────────────┐     ┌─────────────────┐     ┌──────────────────┐
//	│  Scheduler   │────▶│     Manager     │────▶│ Store (BadgerDB) │
//	└──────────────┘     └─────────────────┘     └──────────────────┘
//	                        │           │
//	                        ▼           ▼
//	              ┌──────────────┐  ┌──────────────────┐
//	              │ dump.Dumper  │  │ archive.Builder  │
//	              │ (SQL script) │  │ (tar + gzip/zstd)│
//	              └──────────────┘  └──────────────────┘
//
// # Backup Types
//
//	TypeFull        - database/backup.sql plus data/, uploads/, config/
//	TypeDatabase    - SQL script only
//	TypeFiles       - data/, uploads/, config/
//	TypeIncremental - rows and files changed since the last completed backup
//
// Artifacts live at <BackupDir>/<YYYY-MM-DD>/<fileName>.
//
// # Consistency
//
// A backup is consistent with its sources only at the instant each step ran.
// A full backup dumps the database and then walks the filesystem, so the
// files it captures may be slightly newer than the rows. There is no
// snapshot spanning both steps.
//
// Incremental backups only see tables that have at least one timestamp
// column. Other tables are skipped and logged.
//
// # Usage
//
//	store, err := backup.OpenBadgerStore(cfg.MetadataDir)
//	if err != nil {
//		return err
//	}
//	manager, err := backup.NewManager(backupCfg, store, dumper)
//	if err != nil {
//		return err
//	}
//
//	b, err := manager.CreateBackup(ctx, backup.TypeFull, backup.CreateOptions{
//		Description: "before upgrade",
//	})
//	if err != nil {
//		// b is the persisted failed record
//	}
//
//	result, err := manager.ValidateBackup(ctx, b.ID)
//
// # Errors
//
// Every exported operation returns errors wrapping one of ErrValidation,
// ErrNotFound, ErrIntegrity, ErrIO, ErrConnection, ErrPartialFailure,
// ErrTimeout or ErrBackupInProgress.
package backup
