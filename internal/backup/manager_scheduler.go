// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
manager_scheduler.go - Scheduled Backups

The scheduler loop reads the stored ScheduleConfig, sleeps until NextRun,
creates a full backup with the scheduled trigger and then applies
retention when autoDelete is set.

Scheduling Behavior:
  - A disabled schedule parks the loop until the schedule changes
  - UpdateSchedule wakes the loop, which recomputes the next run
  - A run that finds another backup in progress is skipped, not queued
*/

//nolint:staticcheck // File documentation, not package doc
package backup

import (
	"context"
	"errors"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// RunScheduler runs the schedule loop until ctx is canceled.
func (m *Manager) RunScheduler(ctx context.Context) error {
	log := logging.Ctx(ctx).With().Str("component", "backup-scheduler").Logger()

	for {
		cfg, err := m.GetSchedule()
		if err != nil {
			return err
		}

		var fire <-chan time.Time
		var timer *time.Timer
		if cfg.Enabled {
			now := m.now()
			next, err := NextRun(cfg, now)
			if err != nil {
				return err
			}
			timer = time.NewTimer(next.Sub(now))
			fire = timer.C
			log.Info().Time("next_run", next).Str("frequency", string(cfg.Frequency)).Msg("Next scheduled backup")
		} else {
			log.Debug().Msg("Backup schedule disabled")
		}

		select {
		case <-ctx.Done():
			stopTimer(timer)
			return ctx.Err()
		case <-m.scheduleChanged:
			stopTimer(timer)
		case <-fire:
			m.runScheduled(ctx, cfg)
		}
	}
}

func stopTimer(t *time.Timer) {
	if t != nil {
		t.Stop()
	}
}

// runScheduled performs one scheduled backup and the retention pass.
func (m *Manager) runScheduled(ctx context.Context, cfg ScheduleConfig) {
	backup, err := m.CreateBackup(ctx, TypeFull, CreateOptions{
		Description: "Scheduled backup",
		Trigger:     TriggerScheduled,
	})
	switch {
	case errors.Is(err, ErrBackupInProgress):
		logging.Warn().Msg("Scheduled backup skipped, another backup is in progress")
		return
	case err != nil:
		logging.Error().Err(err).Msg("Scheduled backup failed")
	default:
		logging.Info().Str("backup_id", backup.ID).Msg("Scheduled backup completed")
	}

	if cfg.AutoDelete {
		if _, err := m.ApplyRetention(ctx); err != nil {
			logging.Error().Err(err).Msg("Retention policy application failed")
		}
	}
}
