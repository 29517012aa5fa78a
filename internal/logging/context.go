// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type contextKey string

const (
	requestIDKey contextKey = "request_id"
	backupIDKey  contextKey = "backup_id"
)

// GenerateRequestID creates a new unique request ID.
func GenerateRequestID() string {
	return uuid.New().String()
}

// ContextWithRequestID returns a new context carrying the given request ID.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the request ID, or "" if not present.
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey).(string); ok {
		return id
	}
	return ""
}

// ContextWithBackupID tags a context with the backup being worked on so that
// every log line emitted below it carries backup_id.
func ContextWithBackupID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, backupIDKey, id)
}

// BackupIDFromContext returns the backup ID, or "" if not present.
func BackupIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(backupIDKey).(string); ok {
		return id
	}
	return ""
}

// Ctx returns a logger with request_id and backup_id added from ctx.
//
//	logging.Ctx(ctx).Info().Msg("Archive written")
func Ctx(ctx context.Context) *zerolog.Logger {
	logCtx := Logger().With()
	if id := RequestIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("request_id", id)
	}
	if id := BackupIDFromContext(ctx); id != "" {
		logCtx = logCtx.Str("backup_id", id)
	}
	l := logCtx.Logger()
	return &l
}

// WithComponent creates a child logger with a component field.
func WithComponent(component string) zerolog.Logger {
	return With().Str("component", component).Logger()
}
