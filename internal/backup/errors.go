// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kurisu21/webeenthere-sub006/internal/archive"
	"github.com/Kurisu21/webeenthere-sub006/internal/dump"
)

// Error taxonomy. Callers match with errors.Is; the HTTP layer maps each
// sentinel to a status code.
var (
	// ErrValidation is a caller error: bad type, frequency, retention or a
	// missing or wrong password
	ErrValidation = errors.New("validation failed")

	// ErrNotFound is returned for an unknown backup id
	ErrNotFound = errors.New("backup not found")

	// ErrIntegrity is a hash or size mismatch, or an archive entry that
	// escapes its destination
	ErrIntegrity = errors.New("integrity check failed")

	// ErrIO is a disk or stream failure
	ErrIO = errors.New("i/o failure")

	// ErrConnection means the database could not be reached
	ErrConnection = errors.New("database connection failed")

	// ErrPartialFailure means a restore aborted part way through
	ErrPartialFailure = errors.New("restore partially applied")

	// ErrTimeout means the operation deadline expired
	ErrTimeout = errors.New("operation timed out")

	// ErrBackupInProgress rejects a second concurrent backup
	ErrBackupInProgress = errors.New("a backup is already in progress")

	// ErrImmutableRecord rejects rewriting a completed or failed record
	ErrImmutableRecord = errors.New("backup record is immutable once finished")
)

// classify wraps err with the taxonomy sentinel that fits it. The original
// error stays in the chain so lower-level sentinels still match.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrValidation), errors.Is(err, ErrNotFound), errors.Is(err, ErrIntegrity),
		errors.Is(err, ErrIO), errors.Is(err, ErrConnection), errors.Is(err, ErrPartialFailure),
		errors.Is(err, ErrTimeout), errors.Is(err, ErrBackupInProgress):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, dump.ErrConnection):
		return fmt.Errorf("%w: %w", ErrConnection, err)
	case errors.Is(err, dump.ErrStatement):
		return fmt.Errorf("%w: %w", ErrPartialFailure, err)
	case errors.Is(err, archive.ErrUnsafePath), errors.Is(err, archive.ErrEntryTooLarge):
		return fmt.Errorf("%w: %w", ErrIntegrity, err)
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}
