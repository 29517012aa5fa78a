// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

// Package logging provides the process-wide zerolog logger for the backup
// service and its CLI.
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("backup_id", id).Msg("Backup completed")
//	logging.Ctx(ctx).Warn().Str("path", dir).Msg("Source missing, skipped")
//
// # Adapters
//
// Two adapters route third-party logging into the same stream:
//
//	NewSlogLogger        - *slog.Logger for sutureslog supervision events
//	NewWatermillAdapter  - watermill.LoggerAdapter for the event bus
//
// Always terminate log chains with .Msg() or .Send(); an unterminated event
// is never written.
package logging
