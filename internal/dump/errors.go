// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package dump

import (
	"errors"
	"fmt"
)

var (
	// ErrConnection means no usable connection could be obtained.
	ErrConnection = errors.New("database connection failed")

	// ErrConnectTimeout is the cause attached to a connection attempt that ran
	// past Config.ConnectTimeout.
	ErrConnectTimeout = errors.New("database connection timed out")

	// ErrEmptyOutput means the dump produced a zero-length file.
	ErrEmptyOutput = errors.New("dump produced empty output")

	// ErrStatement matches any *StatementError.
	ErrStatement = errors.New("script statement failed")

	// ErrUnknownDriver is returned by Open for unsupported drivers.
	ErrUnknownDriver = errors.New("unsupported database driver")
)

// StatementError reports the statement that stopped a restore.
type StatementError struct {
	// Index is the zero-based position of the statement in the script.
	Index     int
	Statement string
	Err       error
}

func (e *StatementError) Error() string {
	return fmt.Sprintf("statement %d failed: %v (%s)", e.Index, e.Err, truncate(e.Statement, 120))
}

func (e *StatementError) Unwrap() error { return e.Err }

func (e *StatementError) Is(target error) bool { return target == ErrStatement }

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
