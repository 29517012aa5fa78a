// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
restore.go - Restore Orchestration

Restore Flow:
 1. Check the request: confirm flag, known id, completed status, password
    for encrypted backups
 2. Verify the artifact's size and SHA-256 against the record
 3. Take a pre-restore safety backup when configured
 4. Decrypt into a private work directory when the backup is encrypted
 5. Replay the SQL script and copy data/, uploads/ and config/ back

A script that fails part way leaves the database holding whatever the
applied statements produced. That is reported as ErrPartialFailure and is
never retried or rolled back here.
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

	"github.com/Kurisu21/webeenthere-sub006/internal/archive"
	"github.com/Kurisu21/webeenthere-sub006/internal/dump"
	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
	"github.com/Kurisu21/webeenthere-sub006/internal/metrics"
)

// RestoreBackup restores live data from a completed backup. On failure the
// returned result describes what was applied before the error.
func (m *Manager) RestoreBackup(ctx context.Context, backupID string, opts RestoreOptions) (*RestoreResult, error) {
	backup, err := m.checkRestoreRequest(backupID, opts)
	if err != nil {
		return nil, err
	}

	if !m.acquire() {
		return nil, ErrBackupInProgress
	}
	defer m.release()

	startTime := m.now()
	ctx = logging.ContextWithBackupID(ctx, backup.ID)
	ctx, cancel := m.withDeadline(ctx, "restore")
	defer cancel()

	result := &RestoreResult{BackupID: backup.ID}
	fail := func(cause error) (*RestoreResult, error) {
		err := classify(cause)
		result.Duration = m.now().Sub(startTime).Milliseconds()
		metrics.RecordRestore(false)
		logging.Ctx(ctx).Error().Err(err).
			Int("statements_executed", result.StatementsExecuted).
			Int("files_restored", result.FilesRestored).
			Msg("Restore failed")
		m.publish(ctx, Event{Type: EventRestoreFailed, BackupID: backup.ID, Restore: result, Error: err.Error()})
		return result, err
	}

	if err := m.verifyForRestore(backup); err != nil {
		return fail(err)
	}

	logging.Ctx(ctx).Info().Str("type", string(backup.Type)).Msg("Restore started")

	if m.cfg.PreRestoreBackup {
		safety, err := m.runBackup(ctx, TypeFull, CreateOptions{
			Description: "Pre-restore safety backup for " + backup.ID,
			Trigger:     TriggerPreRestore,
		})
		if err != nil {
			logging.Ctx(ctx).Warn().Err(err).Msg("Pre-restore safety backup failed, continuing with restore")
		} else {
			result.SafetyBackupID = safety.ID
		}
	}

	workDir, err := os.MkdirTemp(m.cfg.BackupDir, ".restore-*")
	if err != nil {
		return fail(fmt.Errorf("failed to create restore work directory: %w", err))
	}
	defer os.RemoveAll(workDir) //nolint:errcheck // Best effort cleanup

	artifact := m.artifactPath(backup)
	if backup.IsEncrypted {
		plain := filepath.Join(workDir, "artifact")
		if err := decryptFile(artifact, plain, opts.Password); err != nil {
			return fail(err)
		}
		artifact = plain
	}

	if backup.Type == TypeDatabase {
		if !opts.SkipDatabase {
			if err := m.replayScript(ctx, artifact, result); err != nil {
				return fail(err)
			}
		}
	} else if err := m.restoreArchive(ctx, artifact, workDir, opts, result); err != nil {
		return fail(err)
	}

	result.Duration = m.now().Sub(startTime).Milliseconds()
	metrics.RecordRestore(true)
	logging.Ctx(ctx).Info().
		Bool("database_restored", result.DatabaseRestored).
		Int("statements_executed", result.StatementsExecuted).
		Int("files_restored", result.FilesRestored).
		Int64("duration_ms", result.Duration).
		Msg("Restore completed")
	m.publish(ctx, Event{Type: EventRestoreCompleted, BackupID: backup.ID, Restore: result})
	return result, nil
}

// checkRestoreRequest rejects requests that must not reach the restore path.
func (m *Manager) checkRestoreRequest(backupID string, opts RestoreOptions) (*Backup, error) {
	if !opts.Confirm {
		return nil, fmt.Errorf("%w: restore requires confirm=true", ErrValidation)
	}
	backup, err := m.GetBackup(backupID)
	if err != nil {
		return nil, err
	}
	if backup.Status != StatusCompleted {
		return nil, fmt.Errorf("%w: backup %s is %s, only completed backups can be restored", ErrValidation, backup.ID, backup.Status)
	}
	if backup.IsEncrypted && opts.Password == "" {
		return nil, fmt.Errorf("%w: password is required to restore an encrypted backup", ErrValidation)
	}
	return backup, nil
}

// replayScript runs script against the database.
func (m *Manager) replayScript(ctx context.Context, script string, result *RestoreResult) error {
	res, err := m.db.Restore(ctx, script)
	if res != nil {
		result.StatementsExecuted = res.Statements
	}
	if errors.Is(err, dump.ErrStatement) {
		return fmt.Errorf("%w: the database may be left in an inconsistent state, re-run the restore from a known-good backup: %w",
			ErrPartialFailure, err)
	}
	if err != nil {
		return fmt.Errorf("database restore failed: %w", err)
	}
	result.DatabaseRestored = true
	return nil
}

// restoreArchive unpacks an archive artifact and applies its parts.
func (m *Manager) restoreArchive(ctx context.Context, artifact, workDir string, opts RestoreOptions, result *RestoreResult) error {
	extractDir := filepath.Join(workDir, "extract")
	if err := os.Mkdir(extractDir, 0o700); err != nil {
		return fmt.Errorf("failed to create extract directory: %w", err)
	}

	unpacked, err := m.archiver.Unpack(ctx, artifact, extractDir)
	if err != nil {
		return fmt.Errorf("failed to unpack archive: %w", err)
	}
	logging.Ctx(ctx).Debug().Int("files", unpacked.Files).Int("dirs", unpacked.Dirs).Msg("Archive unpacked")

	script := filepath.Join(extractDir, filepath.FromSlash(dumpEntryName))
	if !opts.SkipDatabase && fileExists(script) {
		if err := m.replayScript(ctx, script, result); err != nil {
			return err
		}
	}

	if opts.SkipFiles {
		return nil
	}
	for _, target := range m.restoreTargets() {
		n, err := copyTree(ctx, filepath.Join(extractDir, target.name), target.dest)
		result.FilesRestored += n
		if err != nil {
			return fmt.Errorf("failed to restore %s: %w", target.name, err)
		}
	}
	return nil
}

type restoreTarget struct {
	name string
	dest string
}

// restoreTargets maps archive prefixes back to their configured locations.
func (m *Manager) restoreTargets() []restoreTarget {
	var targets []restoreTarget
	if m.cfg.DataDir != "" {
		targets = append(targets, restoreTarget{name: "data", dest: m.cfg.DataDir})
	}
	if m.cfg.UploadsDir != "" {
		targets = append(targets, restoreTarget{name: "uploads", dest: m.cfg.UploadsDir})
	}
	for _, f := range m.cfg.ConfigFiles {
		targets = append(targets, restoreTarget{name: filepath.Join("config", filepath.Base(f)), dest: f})
	}
	return targets
}

// copyTree copies src (a file or a directory) onto dest and returns the
// number of files written. A missing src is not an error; incremental
// archives only carry what changed.
func copyTree(ctx context.Context, src, dest string) (int, error) {
	info, err := os.Stat(src)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if !info.IsDir() {
		if err := copyFile(src, dest, info.Mode().Perm()); err != nil {
			return 0, err
		}
		return 1, nil
	}

	count := 0
	err = filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return context.Cause(ctx)
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target, err := archive.SafeJoin(dest, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		if d.IsDir() {
			return os.MkdirAll(target, 0o750)
		}
		if !d.Type().IsRegular() {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return err
		}
		if err := copyFile(p, target, fi.Mode().Perm()); err != nil {
			return err
		}
		count++
		return nil
	})
	return count, err
}

//nolint:gosec // G304: paths come from the restore work directory and configuration
func copyFile(src, dest string, perm fs.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0o750); err != nil {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // read-only

	out, err := os.OpenFile(dest, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck // already failing
		return err
	}
	return out.Close()
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
