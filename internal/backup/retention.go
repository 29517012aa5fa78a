// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package backup

import (
	"context"
	"errors"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
	"github.com/Kurisu21/webeenthere-sub006/internal/metrics"
)

// ApplyRetention deletes finished backups older than the schedule's
// retentionDays. The newest completed backup and every in_progress record
// are always kept.
func (m *Manager) ApplyRetention(ctx context.Context) (*RetentionResult, error) {
	return m.retention(ctx, false)
}

// PreviewRetention reports what ApplyRetention would delete without
// deleting anything.
func (m *Manager) PreviewRetention(ctx context.Context) (*RetentionResult, error) {
	return m.retention(ctx, true)
}

func (m *Manager) retention(ctx context.Context, dryRun bool) (*RetentionResult, error) {
	schedule, err := m.GetSchedule()
	if err != nil {
		return nil, err
	}
	backups, err := m.store.ListBackups()
	if err != nil {
		return nil, classify(err)
	}

	toDelete := planRetention(backups, schedule.RetentionDays, m.now())
	result := &RetentionResult{Deleted: make([]string, 0, len(toDelete))}
	if dryRun {
		for _, b := range toDelete {
			result.Deleted = append(result.Deleted, b.ID)
		}
		result.Kept = len(backups) - len(toDelete)
		return result, nil
	}

	var deletedSize int64
	for _, b := range toDelete {
		if err := m.DeleteBackup(ctx, b.ID); err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			logging.Ctx(ctx).Warn().Err(err).Str("backup_id", b.ID).Msg("Retention failed to delete backup")
			continue
		}
		result.Deleted = append(result.Deleted, b.ID)
		deletedSize += b.Size
	}
	result.Kept = len(backups) - len(result.Deleted)

	metrics.RecordRetentionDeleted(len(result.Deleted))
	if len(result.Deleted) > 0 {
		logging.Ctx(ctx).Info().
			Int("deleted_count", len(result.Deleted)).
			Int64("deleted_size", deletedSize).
			Int("retention_days", schedule.RetentionDays).
			Msg("Retention policy applied")
	}
	return result, nil
}

// planRetention returns the records older than retentionDays that may be
// deleted, oldest first.
func planRetention(backups []*Backup, retentionDays int, now time.Time) []*Backup {
	keepSet := make(map[string]bool)
	addNewestCompletedToKeepSet(keepSet, backups)
	addInProgressToKeepSet(keepSet, backups)

	cutoff := now.AddDate(0, 0, -retentionDays)
	var toDelete []*Backup
	for _, b := range backups {
		if keepSet[b.ID] {
			continue
		}
		if b.Created.Before(cutoff) {
			toDelete = append(toDelete, b)
		}
	}

	sortNewestFirst(toDelete)
	for i, j := 0, len(toDelete)-1; i < j; i, j = i+1, j-1 {
		toDelete[i], toDelete[j] = toDelete[j], toDelete[i]
	}
	return toDelete
}

// addNewestCompletedToKeepSet keeps the single newest completed backup.
func addNewestCompletedToKeepSet(keepSet map[string]bool, backups []*Backup) {
	var newest *Backup
	for _, b := range backups {
		if b.Status == StatusCompleted && (newest == nil || b.Created.After(newest.Created)) {
			newest = b
		}
	}
	if newest != nil {
		keepSet[newest.ID] = true
	}
}

func addInProgressToKeepSet(keepSet map[string]bool, backups []*Backup) {
	for _, b := range backups {
		if b.Status == StatusInProgress {
			keepSet[b.ID] = true
		}
	}
}
