// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package api

import (
	"errors"
	"net/http"

	"github.com/Kurisu21/webeenthere-sub006/internal/backup"
	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// errorStatus maps a manager error onto an HTTP status and error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, backup.ErrValidation):
		return http.StatusBadRequest, ErrCodeValidationFailed
	case errors.Is(err, backup.ErrNotFound):
		return http.StatusNotFound, ErrCodeNotFound
	case errors.Is(err, backup.ErrBackupInProgress):
		return http.StatusConflict, ErrCodeBackupInProgress
	case errors.Is(err, backup.ErrIntegrity):
		return http.StatusUnprocessableEntity, ErrCodeIntegrity
	case errors.Is(err, backup.ErrTimeout):
		return http.StatusGatewayTimeout, ErrCodeTimeout
	case errors.Is(err, backup.ErrPartialFailure):
		return http.StatusInternalServerError, ErrCodePartialFailure
	default:
		return http.StatusInternalServerError, ErrCodeInternalError
	}
}

// respondManagerError writes err using the status mapping. Server-side
// failures are logged; client errors are not.
func respondManagerError(w http.ResponseWriter, r *http.Request, err error, details interface{}) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().Err(err).Str("path", r.URL.Path).Msg("Backup API request failed")
	}
	NewResponseWriter(w, r).ErrorWithDetails(status, code, err.Error(), details)
}
