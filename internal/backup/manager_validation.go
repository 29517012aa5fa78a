// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
manager_validation.go - Backup Validation and Integrity Checking

Validation Steps:
 1. Status: only completed backups can be valid
 2. File Existence: the artifact exists at <dateFolder>/<fileName>
 3. Size: the artifact size equals the recorded size
 4. Checksum: the SHA-256 of the artifact equals the recorded hash
 5. Archive Readability: unencrypted archives are walked end to end

Error Handling:
Validation failures are recorded in the result rather than returned as
errors. Only an unknown id or a store failure returns an error.
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
	"github.com/Kurisu21/webeenthere-sub006/internal/metrics"
)

// ValidateBackup re-verifies a backup's artifact against its record.
func (m *Manager) ValidateBackup(ctx context.Context, backupID string) (*ValidationResult, error) {
	backup, err := m.GetBackup(backupID)
	if err != nil {
		return nil, err
	}

	result := m.verifyArtifact(backup)
	if result.Valid && !backup.IsEncrypted && backup.Type != TypeDatabase {
		if err := m.archiver.Walk(ctx, m.artifactPath(backup), func(*tar.Header, io.Reader) error { return nil }); err != nil {
			result.Valid = false
			result.Error = fmt.Sprintf("archive is not readable: %v", err)
		}
	}

	metrics.RecordValidation(result.Valid)
	event := logging.Ctx(ctx).Info()
	if !result.Valid {
		event = logging.Ctx(ctx).Warn().Str("error", result.Error)
	}
	event.Str("backup_id", backup.ID).Bool("valid", result.Valid).Msg("Backup validated")

	return result, nil
}

// verifyArtifact checks existence, size and hash of backup's artifact.
func (m *Manager) verifyArtifact(backup *Backup) *ValidationResult {
	result := &ValidationResult{
		BackupID:     backup.ID,
		ExpectedHash: backup.IntegrityHash,
		ExpectedSize: backup.Size,
	}

	if backup.Status != StatusCompleted {
		result.Error = fmt.Sprintf("backup status is %s, not completed", backup.Status)
		return result
	}

	path := m.artifactPath(backup)
	info, err := os.Stat(path)
	if errors.Is(err, fs.ErrNotExist) {
		result.Error = "backup file does not exist"
		return result
	}
	if err != nil {
		result.Error = fmt.Sprintf("failed to stat backup file: %v", err)
		return result
	}
	result.ActualSize = info.Size()

	hash, err := HashFile(path)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	result.ActualHash = hash

	switch {
	case result.ActualSize != result.ExpectedSize:
		result.Error = fmt.Sprintf("size mismatch: expected %d bytes, found %d", result.ExpectedSize, result.ActualSize)
	case hash != backup.IntegrityHash:
		result.Error = "checksum mismatch: artifact has been modified or corrupted"
	default:
		result.Valid = true
	}
	return result
}

// verifyForRestore is verifyArtifact as an error.
func (m *Manager) verifyForRestore(backup *Backup) error {
	if result := m.verifyArtifact(backup); !result.Valid {
		return fmt.Errorf("%w: %s", ErrIntegrity, result.Error)
	}
	return nil
}
