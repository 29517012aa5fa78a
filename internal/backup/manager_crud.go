// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
manager_crud.go - Backup CRUD Operations

This file provides create, list, get and delete for backups.

Backup Creation Flow:
 1. Validate the request (type, password when encrypting)
 2. Persist an in_progress record with a fresh UUID and date folder
 3. Produce the artifact for the type (manager_archive.go)
 4. Encrypt it with age when requested
 5. Stat the artifact for its size and hash it with SHA-256
 6. Persist the completed record and publish backup.completed

Any failure in steps 3 to 5 persists a failed record (size 0, error set,
no hash) and publishes backup.failed, so the store is a full audit trail.

Listing:
  - Filter by type, status, and created date range
  - Newest first
  - 1-based pages, default 20 per page, at most 100
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
	"github.com/Kurisu21/webeenthere-sub006/internal/metrics"
)

// dateFolderLayout groups artifacts by calendar day.
const dateFolderLayout = "2006-01-02"

// CreateBackup creates a new backup. On failure the returned record is the
// persisted failed record and err explains why.
func (m *Manager) CreateBackup(ctx context.Context, backupType BackupType, opts CreateOptions) (*Backup, error) {
	if err := validateCreate(backupType, opts); err != nil {
		return nil, err
	}
	if opts.Trigger == "" {
		opts.Trigger = TriggerManual
	}

	if !m.acquire() {
		return nil, ErrBackupInProgress
	}
	defer m.release()

	return m.runBackup(ctx, backupType, opts)
}

func validateCreate(backupType BackupType, opts CreateOptions) error {
	if !backupType.Valid() {
		return fmt.Errorf("%w: type must be one of: full, database, files, incremental", ErrValidation)
	}
	if opts.Encrypt && opts.Password == "" {
		return fmt.Errorf("%w: password is required when encrypt is set", ErrValidation)
	}
	if len(opts.Description) > 500 {
		return fmt.Errorf("%w: description must be at most 500 characters", ErrValidation)
	}
	return nil
}

// runBackup does the work of CreateBackup. The caller holds the slot.
func (m *Manager) runBackup(ctx context.Context, backupType BackupType, opts CreateOptions) (*Backup, error) {
	startTime := m.now()
	backup := m.initializeBackupRecord(backupType, opts, startTime)

	if err := m.store.SaveBackup(backup); err != nil {
		return nil, classify(fmt.Errorf("failed to record backup start: %w", err))
	}

	ctx = logging.ContextWithBackupID(ctx, backup.ID)
	ctx, cancel := m.withDeadline(ctx, "backup")
	defer cancel()

	metrics.SetBackupInProgress(true)
	defer metrics.SetBackupInProgress(false)

	logging.Ctx(ctx).Info().Str("type", string(backupType)).Str("trigger", string(backup.Trigger)).
		Msg("Backup started")

	dir := filepath.Join(m.cfg.BackupDir, backup.DateFolder)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return m.handleBackupError(ctx, backup, startTime, fmt.Errorf("failed to create date folder: %w", err))
	}

	artifact := filepath.Join(dir, backup.FileName)
	hasChanges, err := m.produceArtifact(ctx, backup, artifact)
	if err != nil {
		return m.handleBackupError(ctx, backup, startTime, err)
	}
	if backupType == TypeIncremental {
		backup.HasChanges = &hasChanges
	}

	if opts.Encrypt {
		encrypted := artifact + EncryptedExt
		if err := encryptFile(artifact, encrypted, opts.Password, m.cfg.ScryptWorkFactor); err != nil {
			os.Remove(artifact) //nolint:errcheck // Best effort cleanup on error
			return m.handleBackupError(ctx, backup, startTime, fmt.Errorf("failed to encrypt artifact: %w", err))
		}
		if err := os.Remove(artifact); err != nil {
			os.Remove(encrypted) //nolint:errcheck // Best effort cleanup on error
			return m.handleBackupError(ctx, backup, startTime, fmt.Errorf("failed to remove plaintext artifact: %w", err))
		}
		artifact = encrypted
		backup.FileName += EncryptedExt
	}

	if err := m.finalizeArtifact(backup, artifact); err != nil {
		os.Remove(artifact) //nolint:errcheck // Best effort cleanup on error
		return m.handleBackupError(ctx, backup, startTime, err)
	}

	backup.Status = StatusCompleted
	backup.Duration = m.now().Sub(startTime).Milliseconds()
	if err := m.store.SaveBackup(backup); err != nil {
		os.Remove(artifact) //nolint:errcheck // an artifact without a record is an orphan
		return m.handleBackupError(ctx, backup, startTime, fmt.Errorf("failed to record completed backup: %w", err))
	}

	metrics.RecordBackup(string(backupType), string(StatusCompleted), m.now().Sub(startTime), backup.Size)
	logging.Ctx(ctx).Info().
		Str("type", string(backupType)).
		Str("trigger", string(backup.Trigger)).
		Int64("size", backup.Size).
		Int64("duration_ms", backup.Duration).
		Msg("Backup completed")
	m.publish(ctx, Event{Type: EventBackupCompleted, BackupID: backup.ID, Backup: backup.clone()})

	return backup, nil
}

// finalizeArtifact fills Size and IntegrityHash from the file on disk.
func (m *Manager) finalizeArtifact(backup *Backup, artifact string) error {
	info, err := os.Stat(artifact)
	if err != nil {
		return fmt.Errorf("failed to stat backup file: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("%w: backup file is empty", ErrIO)
	}

	hash, err := HashFile(artifact)
	if err != nil {
		return fmt.Errorf("failed to calculate checksum: %w", err)
	}

	backup.Size = info.Size()
	backup.IntegrityHash = hash
	return nil
}

// initializeBackupRecord creates a new backup record with initial values
func (m *Manager) initializeBackupRecord(backupType BackupType, opts CreateOptions, startTime time.Time) *Backup {
	id := uuid.New().String()
	return &Backup{
		ID:          id,
		Type:        backupType,
		FileName:    m.generateFileName(backupType, startTime, id),
		DateFolder:  startTime.Format(dateFolderLayout),
		Created:     startTime,
		Description: opts.Description,
		IsEncrypted: opts.Encrypt,
		Status:      StatusInProgress,
		Trigger:     opts.Trigger,
	}
}

// generateFileName names the unencrypted artifact. The id prefix keeps two
// backups in the same second apart.
func (m *Manager) generateFileName(backupType BackupType, startTime time.Time, backupID string) string {
	ext := m.archiver.Extension()
	if backupType == TypeDatabase {
		ext = ".sql"
	}
	return fmt.Sprintf("backup-%s-%s-%s%s", backupType, startTime.Format("20060102-150405"), backupID[:8], ext)
}

// handleBackupError marks a backup as failed and saves it
func (m *Manager) handleBackupError(ctx context.Context, backup *Backup, startTime time.Time, cause error) (*Backup, error) {
	err := classify(cause)

	backup.Status = StatusFailed
	backup.Error = err.Error()
	backup.Size = 0
	backup.IntegrityHash = ""
	backup.HasChanges = nil
	backup.Duration = m.now().Sub(startTime).Milliseconds()

	if saveErr := m.store.SaveBackup(backup); saveErr != nil {
		logging.Ctx(ctx).Error().Err(saveErr).Msg("Failed to record failed backup")
	}

	metrics.RecordBackup(string(backup.Type), string(StatusFailed), m.now().Sub(startTime), 0)
	logging.Ctx(ctx).Error().Err(err).
		Str("type", string(backup.Type)).
		Str("trigger", string(backup.Trigger)).
		Int64("duration_ms", backup.Duration).
		Msg("Backup failed")
	m.publish(ctx, Event{Type: EventBackupFailed, BackupID: backup.ID, Backup: backup.clone(), Error: backup.Error})

	return backup, err
}

// ListBackups returns one page of backups matching opts, newest first.
func (m *Manager) ListBackups(opts ListOptions) (*ListResult, error) {
	if opts.Type != nil && !opts.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown type %q", ErrValidation, *opts.Type)
	}
	if opts.Status != nil && !opts.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, *opts.Status)
	}

	all, err := m.store.ListBackups()
	if err != nil {
		return nil, classify(err)
	}

	filtered := filterBackups(all, opts)
	sortNewestFirst(filtered)

	page, limit := normalizePage(opts.Page, opts.Limit)
	total := len(filtered)
	return &ListResult{
		Backups: applyPagination(filtered, page, limit),
		Pagination: Pagination{
			Page:       page,
			Limit:      limit,
			Total:      total,
			TotalPages: (total + limit - 1) / limit,
		},
	}, nil
}

// filterBackups filters backups based on the provided options
func filterBackups(backups []*Backup, opts ListOptions) []*Backup {
	filtered := make([]*Backup, 0, len(backups))
	for _, b := range backups {
		if matchesFilter(b, opts) {
			filtered = append(filtered, b)
		}
	}
	return filtered
}

// matchesFilter checks if a backup matches the filter options
func matchesFilter(b *Backup, opts ListOptions) bool {
	if opts.Type != nil && b.Type != *opts.Type {
		return false
	}
	if opts.Status != nil && b.Status != *opts.Status {
		return false
	}
	if opts.StartDate != nil && b.Created.Before(*opts.StartDate) {
		return false
	}
	if opts.EndDate != nil && b.Created.After(*opts.EndDate) {
		return false
	}
	return true
}

func sortNewestFirst(backups []*Backup) {
	sort.SliceStable(backups, func(i, j int) bool {
		return backups[i].Created.After(backups[j].Created)
	})
}

func normalizePage(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return page, limit
}

// applyPagination returns the requested page of filtered
func applyPagination(filtered []*Backup, page, limit int) []*Backup {
	offset := (page - 1) * limit
	if offset >= len(filtered) {
		return []*Backup{}
	}
	end := offset + limit
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[offset:end]
}

// GetBackup returns a specific backup by ID
func (m *Manager) GetBackup(backupID string) (*Backup, error) {
	b, err := m.store.GetBackup(backupID)
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

// DeleteBackup removes the artifact and then the record. A date folder left
// empty is removed as well.
func (m *Manager) DeleteBackup(ctx context.Context, backupID string) error {
	b, err := m.store.GetBackup(backupID)
	if err != nil {
		return classify(err)
	}
	if b.Status == StatusInProgress {
		return fmt.Errorf("%w: %s has not finished", ErrBackupInProgress, b.ID)
	}

	if b.FileName != "" {
		if err := os.Remove(m.artifactPath(b)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return classify(fmt.Errorf("failed to delete backup file: %w", err))
		}
	}
	if err := m.store.DeleteBackup(backupID); err != nil {
		return classify(err)
	}
	m.removeEmptyDateFolder(b.DateFolder)

	logging.Ctx(ctx).Info().Str("backup_id", b.ID).Str("type", string(b.Type)).Msg("Backup deleted")
	m.publish(ctx, Event{Type: EventBackupDeleted, BackupID: b.ID, Backup: b})
	return nil
}

func (m *Manager) removeEmptyDateFolder(dateFolder string) {
	if dateFolder == "" {
		return
	}
	dir := filepath.Join(m.cfg.BackupDir, dateFolder)
	entries, err := os.ReadDir(dir)
	if err != nil || len(entries) > 0 {
		return
	}
	os.Remove(dir) //nolint:errcheck // a concurrent backup may have just used it
}

// OpenArtifact opens a completed backup's artifact for download. The
// caller closes the reader; size is the recorded artifact size.
func (m *Manager) OpenArtifact(backupID string) (io.ReadCloser, *Backup, error) {
	b, err := m.store.GetBackup(backupID)
	if err != nil {
		return nil, nil, classify(err)
	}
	if b.Status != StatusCompleted {
		return nil, nil, fmt.Errorf("%w: backup %s is %s", ErrValidation, b.ID, b.Status)
	}

	f, err := os.Open(m.artifactPath(b))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil, fmt.Errorf("%w: artifact for %s is missing", ErrIntegrity, b.ID)
		}
		return nil, nil, classify(err)
	}
	return f, b, nil
}

// artifactPath resolves the on-disk location of b's artifact.
func (m *Manager) artifactPath(b *Backup) string {
	return filepath.Join(m.cfg.BackupDir, b.DateFolder, b.FileName)
}
