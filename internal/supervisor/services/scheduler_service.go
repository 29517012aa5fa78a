// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package services

import (
	"context"
	"fmt"
)

// BackupScheduler runs the schedule loop until ctx is canceled.
//
// Satisfied by *backup.Manager.
type BackupScheduler interface {
	RunScheduler(ctx context.Context) error
}

// BackupSchedulerService wraps the backup schedule loop as a supervised
// service. The loop already blocks on ctx, so Serve only translates its
// exit: cancellation is a clean stop, anything else a failure for suture
// to restart.
type BackupSchedulerService struct {
	scheduler BackupScheduler
	name      string
}

// NewBackupSchedulerService creates a new scheduler service wrapper.
func NewBackupSchedulerService(scheduler BackupScheduler) *BackupSchedulerService {
	return &BackupSchedulerService{
		scheduler: scheduler,
		name:      "backup-scheduler",
	}
}

// Serve implements suture.Service.
func (s *BackupSchedulerService) Serve(ctx context.Context) error {
	err := s.scheduler.RunScheduler(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		return fmt.Errorf("backup scheduler exited unexpectedly")
	}
	return fmt.Errorf("backup scheduler failed: %w", err)
}

// String implements fmt.Stringer for logging.
func (s *BackupSchedulerService) String() string {
	return s.name
}
