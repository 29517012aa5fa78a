// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package backup

import (
	"time"
)

// BackupType defines the type of backup to create
type BackupType string

const (
	// TypeFull creates one archive holding a database dump, the data and
	// uploads trees, and the allow-listed config files
	TypeFull BackupType = "full"

	// TypeDatabase creates a SQL script of the database only
	TypeDatabase BackupType = "database"

	// TypeFiles creates an archive of the data and uploads trees plus config files
	TypeFiles BackupType = "files"

	// TypeIncremental archives rows and files changed since the last completed backup
	TypeIncremental BackupType = "incremental"
)

// Valid reports whether t is a known backup type.
func (t BackupType) Valid() bool {
	switch t {
	case TypeFull, TypeDatabase, TypeFiles, TypeIncremental:
		return true
	}
	return false
}

// BackupStatus represents the current state of a backup
type BackupStatus string

const (
	// StatusInProgress indicates the backup is currently running
	StatusInProgress BackupStatus = "in_progress"

	// StatusCompleted indicates the backup finished successfully
	StatusCompleted BackupStatus = "completed"

	// StatusFailed indicates the backup failed
	StatusFailed BackupStatus = "failed"
)

// Valid reports whether s is a known status.
func (s BackupStatus) Valid() bool {
	return s == StatusInProgress || s == StatusCompleted || s == StatusFailed
}

// BackupTrigger indicates what initiated the backup
type BackupTrigger string

const (
	// TriggerManual indicates the backup was triggered by user request
	TriggerManual BackupTrigger = "manual"

	// TriggerScheduled indicates the backup was triggered by the scheduler
	TriggerScheduled BackupTrigger = "scheduled"

	// TriggerPreRestore indicates the safety backup taken before a restore
	TriggerPreRestore BackupTrigger = "pre_restore"
)

// Backup is the metadata record of one backup attempt.
//
// A completed record always carries a non-empty IntegrityHash and Size > 0.
// Records are immutable once terminal; the only allowed transition is
// in_progress to completed or failed.
type Backup struct {
	ID         string     `json:"id"`
	Type       BackupType `json:"type"`
	FileName   string     `json:"fileName"`
	DateFolder string     `json:"dateFolder"`

	// Size of the artifact in bytes, 0 when the attempt failed
	Size int64 `json:"size"`

	// Created is when the attempt started
	Created     time.Time     `json:"created"`
	Description string        `json:"description"`
	IsEncrypted bool          `json:"isEncrypted"`
	Status      BackupStatus  `json:"status"`
	Trigger     BackupTrigger `json:"trigger"`

	// IntegrityHash is the hex SHA-256 of the artifact on disk
	IntegrityHash string `json:"integrityHash,omitempty"`

	// Duration of the attempt in milliseconds
	Duration int64 `json:"duration"`

	Error string `json:"error,omitempty"`

	// HasChanges is set for incremental backups only
	HasChanges *bool `json:"hasChanges,omitempty"`
}

// clone returns a copy that callers may modify freely.
func (b *Backup) clone() *Backup {
	c := *b
	if b.HasChanges != nil {
		v := *b.HasChanges
		c.HasChanges = &v
	}
	return &c
}

// CreateOptions are the caller-supplied options of a backup request.
type CreateOptions struct {
	Description string        `json:"description" validate:"max=500"`
	Encrypt     bool          `json:"encrypt"`
	Password    string        `json:"password" validate:"required_if=Encrypt true"`
	Trigger     BackupTrigger `json:"-"`
}

// ListOptions filters and pages ListBackups.
type ListOptions struct {
	Type      *BackupType
	Status    *BackupStatus
	StartDate *time.Time
	EndDate   *time.Time

	// Page is 1-based
	Page  int
	Limit int
}

// Pagination limits
const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Pagination describes one page of a listing.
type Pagination struct {
	Page       int `json:"page"`
	Limit      int `json:"limit"`
	Total      int `json:"total"`
	TotalPages int `json:"totalPages"`
}

// ListResult is one page of backups, newest first.
type ListResult struct {
	Backups    []*Backup  `json:"backups"`
	Pagination Pagination `json:"pagination"`
}

// Stats is derived from the metadata store.
type Stats struct {
	// TotalBackups counts completed backups
	TotalBackups int `json:"totalBackups"`

	// TotalSize sums the size of completed backups
	TotalSize int64 `json:"totalSize"`

	// LastBackupDate is the newest completed backup, nil when there is none
	LastBackupDate *time.Time `json:"lastBackupDate"`

	BackupsByType map[BackupType]int `json:"backupsByType"`

	// SuccessRate is completed / (completed + failed) as a percentage
	SuccessRate float64 `json:"successRate"`

	FailedBackups int `json:"failedBackups"`
}

// ValidationResult is the outcome of re-verifying an artifact.
type ValidationResult struct {
	BackupID     string `json:"backupId"`
	Valid        bool   `json:"valid"`
	Error        string `json:"error,omitempty"`
	ExpectedHash string `json:"expectedHash,omitempty"`
	ActualHash   string `json:"actualHash,omitempty"`
	ExpectedSize int64  `json:"expectedSize"`
	ActualSize   int64  `json:"actualSize"`
}

// RestoreOptions configures a restore.
type RestoreOptions struct {
	// Confirm must be true; a restore overwrites live data
	Confirm bool `json:"confirm"`

	// Password is required for encrypted backups
	Password string `json:"password"`

	SkipDatabase bool `json:"skipDatabase"`
	SkipFiles    bool `json:"skipFiles"`
}

// RestoreResult describes a finished restore.
type RestoreResult struct {
	BackupID           string `json:"backupId"`
	DatabaseRestored   bool   `json:"databaseRestored"`
	FilesRestored      int    `json:"filesRestored"`
	StatementsExecuted int    `json:"statementsExecuted"`
	SafetyBackupID     string `json:"safetyBackupId,omitempty"`

	// Duration in milliseconds
	Duration int64 `json:"duration"`
}

// RetentionResult is the outcome of one retention pass.
type RetentionResult struct {
	Deleted []string `json:"deleted"`
	Kept    int      `json:"kept"`
}
