// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package api

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/goccy/go-json"

	"github.com/Kurisu21/webeenthere-sub006/internal/backup"
	"github.com/Kurisu21/webeenthere-sub006/internal/validation"
)

// BackupManager is the interface for backup operations
type BackupManager interface {
	CreateBackup(ctx context.Context, backupType backup.BackupType, opts backup.CreateOptions) (*backup.Backup, error)
	ListBackups(opts backup.ListOptions) (*backup.ListResult, error)
	GetBackup(backupID string) (*backup.Backup, error)
	DeleteBackup(ctx context.Context, backupID string) error
	ValidateBackup(ctx context.Context, backupID string) (*backup.ValidationResult, error)
	RestoreBackup(ctx context.Context, backupID string, opts backup.RestoreOptions) (*backup.RestoreResult, error)
	OpenArtifact(backupID string) (io.ReadCloser, *backup.Backup, error)
	GetStats() (*backup.Stats, error)

	GetSchedule() (backup.ScheduleConfig, error)
	UpdateSchedule(ctx context.Context, patch backup.SchedulePatch) (backup.ScheduleConfig, error)
	ApplyRetention(ctx context.Context) (*backup.RetentionResult, error)
	PreviewRetention(ctx context.Context) (*backup.RetentionResult, error)
}

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 1 << 20

// Handler serves the backup API.
type Handler struct {
	backupManager BackupManager
	startTime     time.Time
	version       string
}

// NewHandler creates a Handler. A nil manager answers every backup route
// with 503.
func NewHandler(bm BackupManager, version string) *Handler {
	return &Handler{
		backupManager: bm,
		startTime:     time.Now(),
		version:       version,
	}
}

// checkBackupManagerAvailable checks if backup manager is available
func (h *Handler) checkBackupManagerAvailable(w http.ResponseWriter, r *http.Request) bool {
	if h.backupManager == nil {
		NewResponseWriter(w, r).ServiceUnavailable("Backup functionality is not enabled")
		return false
	}
	return true
}

// decodeJSONBody decodes an optional JSON body into dst and validates it.
// An empty body leaves dst at its zero value.
func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if r.Body != nil && r.ContentLength != 0 {
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		dec.DisallowUnknownFields()
		if err := dec.Decode(dst); err != nil && err != io.EOF {
			WriteBadRequest(w, r, "Invalid request body: "+err.Error())
			return false
		}
	}

	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		NewResponseWriter(w, r).ValidationError(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}
