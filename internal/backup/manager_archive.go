// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
manager_archive.go - Artifact Production

This file produces the artifact for each backup type.

Artifact Contents:
  - database:    SQL script from the Database Dumper (.sql)
  - files:       archive of data/, uploads/ and config/<file>
  - full:        files contents plus database/backup.sql
  - incremental: rows and files changed since the watermark; when nothing
    changed the archive holds only the NO_CHANGES marker

The database dump is written to a hidden temporary file next to the
artifact and removed once it has been copied into the archive.

Consistency:
The dump and the file walk run one after another, so a full backup may
see the filesystem slightly later than the database. There is no
snapshot spanning both.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/archive"
	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// dumpEntryName is where full and incremental archives carry the SQL script.
const dumpEntryName = "database/backup.sql"

// produceArtifact writes the artifact for backup at path and reports
// whether it carries changes (meaningful for incremental backups only).
func (m *Manager) produceArtifact(ctx context.Context, backup *Backup, path string) (bool, error) {
	switch backup.Type {
	case TypeDatabase:
		res, err := m.db.Dump(ctx, path)
		if err != nil {
			return false, fmt.Errorf("database dump failed: %w", err)
		}
		logging.Ctx(ctx).Debug().Int("tables", res.Tables).Int64("rows", res.Rows).Msg("Database dumped")
		return true, nil

	case TypeFiles:
		res, err := m.archiver.Build(ctx, path, m.cfg.fileSources())
		if err != nil {
			return false, fmt.Errorf("archive build failed: %w", err)
		}
		logging.Ctx(ctx).Debug().Int("entries", res.EntryCount).Strs("skipped", res.Skipped).Msg("Files archived")
		return true, nil

	case TypeFull:
		return true, m.createFullArchive(ctx, backup, path)

	case TypeIncremental:
		return m.createIncrementalArchive(ctx, backup, path)
	}
	return false, fmt.Errorf("%w: unsupported backup type %q", ErrValidation, backup.Type)
}

func (m *Manager) createFullArchive(ctx context.Context, backup *Backup, path string) error {
	tmp := m.tempDumpPath(backup, path)
	defer os.Remove(tmp) //nolint:errcheck // temporary dump

	if _, err := m.db.Dump(ctx, tmp); err != nil {
		return fmt.Errorf("database dump failed: %w", err)
	}

	sources := append([]archive.Source{{Path: tmp, Name: dumpEntryName}}, m.cfg.fileSources()...)
	res, err := m.archiver.Build(ctx, path, sources)
	if err != nil {
		return fmt.Errorf("archive build failed: %w", err)
	}
	logging.Ctx(ctx).Debug().Int("entries", res.EntryCount).Strs("skipped", res.Skipped).Msg("Full archive written")
	return nil
}

func (m *Manager) createIncrementalArchive(ctx context.Context, backup *Backup, path string) (bool, error) {
	since, err := m.watermark()
	if err != nil {
		return false, err
	}
	logging.Ctx(ctx).Info().Time("since", since).Msg("Incremental watermark resolved")

	tmp := m.tempDumpPath(backup, path)
	defer os.Remove(tmp) //nolint:errcheck // temporary dump

	dumpRes, err := m.db.DumpIncremental(ctx, tmp, since)
	if err != nil {
		return false, fmt.Errorf("incremental database dump failed: %w", err)
	}

	sources := m.cfg.fileSources()
	if dumpRes.HasChanges {
		sources = append([]archive.Source{{Path: tmp, Name: dumpEntryName, Always: true}}, sources...)
	}

	res, err := m.archiver.BuildIncremental(ctx, path, sources, since)
	if err != nil {
		return false, fmt.Errorf("archive build failed: %w", err)
	}

	hasChanges := dumpRes.HasChanges || res.HasChanges
	logging.Ctx(ctx).Debug().
		Int64("rows", dumpRes.Rows).
		Int("entries", res.EntryCount).
		Strs("skipped_tables", dumpRes.SkippedTables).
		Bool("has_changes", hasChanges).
		Msg("Incremental archive written")
	return hasChanges, nil
}

// watermark is the created time of the newest completed backup of any type,
// or now minus the fallback window when there is none.
func (m *Manager) watermark() (time.Time, error) {
	backups, err := m.store.ListBackups()
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to load backups for watermark: %w", err)
	}

	var latest time.Time
	for _, b := range backups {
		if b.Status == StatusCompleted && b.Created.After(latest) {
			latest = b.Created
		}
	}
	if latest.IsZero() {
		return m.now().Add(-m.cfg.IncrementalFallback), nil
	}
	return latest, nil
}

func (m *Manager) tempDumpPath(backup *Backup, artifact string) string {
	return filepath.Join(filepath.Dir(artifact), "."+backup.ID+".sql.tmp")
}
