// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// GetSchedule returns the stored schedule, or the default when none has
// been saved.
func (m *Manager) GetSchedule() (ScheduleConfig, error) {
	cfg, err := m.store.GetSchedule()
	if errors.Is(err, ErrNotFound) {
		return DefaultSchedule(), nil
	}
	if err != nil {
		return ScheduleConfig{}, classify(err)
	}
	return *cfg, nil
}

// UpdateSchedule merges patch over the current schedule, validates the
// result as a whole and persists it. The scheduler picks the change up
// immediately.
func (m *Manager) UpdateSchedule(ctx context.Context, patch SchedulePatch) (ScheduleConfig, error) {
	m.scheduleMu.Lock()
	defer m.scheduleMu.Unlock()

	current, err := m.GetSchedule()
	if err != nil {
		return ScheduleConfig{}, err
	}

	next := patch.Apply(current)
	if err := next.Validate(); err != nil {
		return ScheduleConfig{}, err
	}

	if err := m.store.SaveSchedule(next); err != nil {
		return ScheduleConfig{}, classify(fmt.Errorf("failed to save schedule config: %w", err))
	}

	select {
	case m.scheduleChanged <- struct{}{}:
	default:
	}

	logging.Ctx(ctx).Info().
		Bool("enabled", next.Enabled).
		Str("frequency", string(next.Frequency)).
		Str("time", next.Time).
		Int("retention_days", next.RetentionDays).
		Msg("Backup schedule updated")
	return next, nil
}

// ScheduleChanged signals after each successful UpdateSchedule.
func (m *Manager) ScheduleChanged() <-chan struct{} {
	return m.scheduleChanged
}
