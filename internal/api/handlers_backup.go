// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package api

import (
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Kurisu21/webeenthere-sub006/internal/backup"
	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// HandleCreateBackup creates a new backup
// POST /api/v1/backups
func (h *Handler) HandleCreateBackup(w http.ResponseWriter, r *http.Request) {
	if !h.checkBackupManagerAvailable(w, r) {
		return
	}

	var req CreateBackupRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	b, err := h.backupManager.CreateBackup(r.Context(), backup.BackupType(req.Type), backup.CreateOptions{
		Description: req.Description,
		Encrypt:     req.Encrypt,
		Password:    req.Password,
	})
	if err != nil {
		if b != nil {
			// The attempt ran and left a failed record behind.
			logging.Ctx(r.Context()).Error().Err(err).Str("backup_id", b.ID).Msg("Backup request failed")
			NewResponseWriter(w, r).ErrorWithData(http.StatusInternalServerError, ErrCodeBackupFailed, err.Error(), nil, b)
			return
		}
		respondManagerError(w, r, err, nil)
		return
	}

	NewResponseWriter(w, r).Created(b)
}

// HandleListBackups lists backups with optional filtering
// GET /api/v1/backups
func (h *Handler) HandleListBackups(w http.ResponseWriter, r *http.Request) {
	if !h.checkBackupManagerAvailable(w, r) {
		return
	}

	opts, err := parseListOptions(r)
	if err != nil {
		NewResponseWriter(w, r).ValidationError(err.Error(), nil)
		return
	}

	result, err := h.backupManager.ListBackups(opts)
	if err != nil {
		respondManagerError(w, r, err, nil)
		return
	}

	WriteSuccess(w, r, result)
}

// HandleBackupStats returns aggregate statistics
// GET /api/v1/backups/stats
func (h *Handler) HandleBackupStats(w http.ResponseWriter, r *http.Request) {
	if !h.checkBackupManagerAvailable(w, r) {
		return
	}

	stats, err := h.backupManager.GetStats()
	if err != nil {
		respondManagerError(w, r, err, nil)
		return
	}

	WriteSuccess(w, r, stats)
}

// HandleGetBackup gets a specific backup by ID
// GET /api/v1/backups/{id}
func (h *Handler) HandleGetBackup(w http.ResponseWriter, r *http.Request) {
	if !h.checkBackupManagerAvailable(w, r) {
		return
	}

	b, err := h.backupManager.GetBackup(chi.URLParam(r, "id"))
	if err != nil {
		respondManagerError(w, r, err, nil)
		return
	}

	WriteSuccess(w, r, b)
}

// HandleDeleteBackup deletes a backup and its artifact
// DELETE /api/v1/backups/{id}
func (h *Handler) HandleDeleteBackup(w http.ResponseWriter, r *http.Request) {
	if !h.checkBackupManagerAvailable(w, r) {
		return
	}

	backupID := chi.URLParam(r, "id")
	if err := h.backupManager.DeleteBackup(r.Context(), backupID); err != nil {
		respondManagerError(w, r, err, nil)
		return
	}

	WriteSuccess(w, r, map[string]string{
		"id":      backupID,
		"message": "Backup deleted successfully",
	})
}

// HandleValidateBackup checks a backup's artifact against its record
// POST /api/v1/backups/{id}/validate
func (h *Handler) HandleValidateBackup(w http.ResponseWriter, r *http.Request) {
	if !h.checkBackupManagerAvailable(w, r) {
		return
	}

	result, err := h.backupManager.ValidateBackup(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondManagerError(w, r, err, nil)
		return
	}

	WriteSuccess(w, r, result)
}

// HandleRestoreBackup restores live data from a backup
// POST /api/v1/backups/{id}/restore
func (h *Handler) HandleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	if !h.checkBackupManagerAvailable(w, r) {
		return
	}

	var req RestoreBackupRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	result, err := h.backupManager.RestoreBackup(r.Context(), chi.URLParam(r, "id"), backup.RestoreOptions{
		Confirm:      req.Confirm,
		Password:     req.Password,
		SkipDatabase: req.SkipDatabase,
		SkipFiles:    req.SkipFiles,
	})
	if err != nil {
		// result describes what was applied before the failure
		var details interface{}
		if result != nil {
			details = result
		}
		respondManagerError(w, r, err, details)
		return
	}

	WriteSuccess(w, r, result)
}

// HandleDownloadBackup streams a backup artifact
// GET /api/v1/backups/{id}/download
func (h *Handler) HandleDownloadBackup(w http.ResponseWriter, r *http.Request) {
	if !h.checkBackupManagerAvailable(w, r) {
		return
	}

	reader, b, err := h.backupManager.OpenArtifact(chi.URLParam(r, "id"))
	if err != nil {
		respondManagerError(w, r, err, nil)
		return
	}
	defer reader.Close()

	setDownloadHeaders(w, b)
	w.WriteHeader(http.StatusOK)

	//nolint:errcheck // headers are sent, a copy error can only be logged by the client
	io.Copy(w, reader)
}

// setDownloadHeaders sets HTTP headers for backup file download
func setDownloadHeaders(w http.ResponseWriter, b *backup.Backup) {
	contentType := "application/octet-stream"
	switch {
	case b.IsEncrypted:
		contentType = "application/age"
	case b.Type == backup.TypeDatabase:
		contentType = "application/sql"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", b.FileName))
	w.Header().Set("Content-Length", strconv.FormatInt(b.Size, 10))
	w.Header().Set("X-Backup-ID", b.ID)
	w.Header().Set("X-Backup-Type", string(b.Type))
	w.Header().Set("X-Backup-Checksum", b.IntegrityHash)
}
