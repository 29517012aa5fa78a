// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package backup

// Store is the durable home of backup records and the schedule. It is the
// single source of truth; an artifact with no record is an orphan.
//
// Implementations serialize writes. SaveBackup inserts or replaces a
// record wholesale, except that a record already in a terminal status
// cannot be replaced (ErrImmutableRecord).
type Store interface {
	SaveBackup(b *Backup) error
	GetBackup(id string) (*Backup, error)
	DeleteBackup(id string) error

	// ListBackups returns every record in no particular order
	ListBackups() ([]*Backup, error)

	// GetSchedule returns ErrNotFound when no schedule was saved
	GetSchedule() (*ScheduleConfig, error)
	SaveSchedule(cfg ScheduleConfig) error

	Close() error
}
