// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package backup

import (
	"context"
	"time"
)

// EventType names a backup lifecycle event. The value doubles as the topic
// it is published on.
type EventType string

const (
	EventBackupCompleted  EventType = "backup.completed"
	EventBackupFailed     EventType = "backup.failed"
	EventBackupDeleted    EventType = "backup.deleted"
	EventRestoreCompleted EventType = "restore.completed"
	EventRestoreFailed    EventType = "restore.failed"
)

// Event is emitted after each lifecycle step.
type Event struct {
	Type     EventType      `json:"type"`
	BackupID string         `json:"backupId"`
	Backup   *Backup        `json:"backup,omitempty"`
	Restore  *RestoreResult `json:"restore,omitempty"`
	Error    string         `json:"error,omitempty"`
	Time     time.Time      `json:"time"`
}

// EventSink receives lifecycle events. Publish failures are logged and
// never fail the operation that produced the event.
type EventSink interface {
	Publish(ctx context.Context, event Event) error
}

type nopSink struct{}

func (nopSink) Publish(context.Context, Event) error { return nil }
