// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package api

import (
	"net/http"
)

// HandleGetSchedule returns the backup schedule
// GET /api/v1/backup/schedule
func (h *Handler) HandleGetSchedule(w http.ResponseWriter, r *http.Request) {
	if !h.checkBackupManagerAvailable(w, r) {
		return
	}

	cfg, err := h.backupManager.GetSchedule()
	if err != nil {
		respondManagerError(w, r, err, nil)
		return
	}

	WriteSuccess(w, r, cfg)
}

// HandleUpdateSchedule applies a partial schedule update
// PUT /api/v1/backup/schedule
func (h *Handler) HandleUpdateSchedule(w http.ResponseWriter, r *http.Request) {
	if !h.checkBackupManagerAvailable(w, r) {
		return
	}

	var req UpdateScheduleRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	cfg, err := h.backupManager.UpdateSchedule(r.Context(), req.patch())
	if err != nil {
		respondManagerError(w, r, err, nil)
		return
	}

	WriteSuccess(w, r, cfg)
}

// HandleApplyRetention deletes backups older than the retention window
// POST /api/v1/backup/retention/apply
func (h *Handler) HandleApplyRetention(w http.ResponseWriter, r *http.Request) {
	if !h.checkBackupManagerAvailable(w, r) {
		return
	}

	result, err := h.backupManager.ApplyRetention(r.Context())
	if err != nil {
		respondManagerError(w, r, err, nil)
		return
	}

	WriteSuccess(w, r, result)
}

// HandleRetentionPreview reports what retention would delete
// GET /api/v1/backup/retention/preview
func (h *Handler) HandleRetentionPreview(w http.ResponseWriter, r *http.Request) {
	if !h.checkBackupManagerAvailable(w, r) {
		return
	}

	result, err := h.backupManager.PreviewRetention(r.Context())
	if err != nil {
		respondManagerError(w, r, err, nil)
		return
	}

	WriteSuccess(w, r, result)
}
