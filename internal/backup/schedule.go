// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package backup

import (
	"fmt"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/validation"
)

// Frequency is how often scheduled backups run.
type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
)

// ScheduleConfig is the persisted singleton schedule.
type ScheduleConfig struct {
	Enabled   bool      `json:"enabled"`
	Frequency Frequency `json:"frequency" validate:"required,oneof=daily weekly monthly"`

	// Time of day in HH:MM, local time
	Time string `json:"time" validate:"required,hhmm"`

	// DayOfWeek (0 = Sunday) applies to weekly schedules only
	DayOfWeek *int `json:"dayOfWeek,omitempty" validate:"omitempty,min=0,max=6"`

	// DayOfMonth applies to monthly schedules only. Capped at 28 so every
	// month has the day.
	DayOfMonth *int `json:"dayOfMonth,omitempty" validate:"omitempty,min=1,max=28"`

	RetentionDays int  `json:"retentionDays" validate:"min=1,max=365"`
	AutoDelete    bool `json:"autoDelete"`
}

// DefaultSchedule is returned when no schedule has been stored.
func DefaultSchedule() ScheduleConfig {
	return ScheduleConfig{
		Enabled:       false,
		Frequency:     FrequencyDaily,
		Time:          "02:00",
		RetentionDays: 30,
		AutoDelete:    true,
	}
}

// Validate checks field ranges and the frequency/day pairing.
func (c ScheduleConfig) Validate() error {
	if verr := validation.ValidateStruct(c); verr != nil {
		return fmt.Errorf("%w: %w", ErrValidation, verr)
	}

	switch c.Frequency {
	case FrequencyWeekly:
		if c.DayOfWeek == nil {
			return fmt.Errorf("%w: dayOfWeek is required for weekly schedules", ErrValidation)
		}
	default:
		if c.DayOfWeek != nil {
			return fmt.Errorf("%w: dayOfWeek is only valid for weekly schedules", ErrValidation)
		}
	}

	switch c.Frequency {
	case FrequencyMonthly:
		if c.DayOfMonth == nil {
			return fmt.Errorf("%w: dayOfMonth is required for monthly schedules", ErrValidation)
		}
	default:
		if c.DayOfMonth != nil {
			return fmt.Errorf("%w: dayOfMonth is only valid for monthly schedules", ErrValidation)
		}
	}
	return nil
}

// SchedulePatch is a partial update; nil fields keep their current value.
type SchedulePatch struct {
	Enabled       *bool      `json:"enabled,omitempty"`
	Frequency     *Frequency `json:"frequency,omitempty"`
	Time          *string    `json:"time,omitempty"`
	DayOfWeek     *int       `json:"dayOfWeek,omitempty"`
	DayOfMonth    *int       `json:"dayOfMonth,omitempty"`
	RetentionDays *int       `json:"retentionDays,omitempty"`
	AutoDelete    *bool      `json:"autoDelete,omitempty"`
}

// Apply merges p over cur. When the frequency changes, day fields that no
// longer apply are cleared unless p sets them.
func (p SchedulePatch) Apply(cur ScheduleConfig) ScheduleConfig {
	next := cur
	if p.Enabled != nil {
		next.Enabled = *p.Enabled
	}
	if p.Frequency != nil && *p.Frequency != cur.Frequency {
		next.Frequency = *p.Frequency
		if next.Frequency != FrequencyWeekly {
			next.DayOfWeek = nil
		}
		if next.Frequency != FrequencyMonthly {
			next.DayOfMonth = nil
		}
	}
	if p.Time != nil {
		next.Time = *p.Time
	}
	if p.DayOfWeek != nil {
		v := *p.DayOfWeek
		next.DayOfWeek = &v
	}
	if p.DayOfMonth != nil {
		v := *p.DayOfMonth
		next.DayOfMonth = &v
	}
	if p.RetentionDays != nil {
		next.RetentionDays = *p.RetentionDays
	}
	if p.AutoDelete != nil {
		next.AutoDelete = *p.AutoDelete
	}
	return next
}

// NextRun returns the first fire time of cfg strictly after now, in now's
// location.
func NextRun(cfg ScheduleConfig, now time.Time) (time.Time, error) {
	clock, err := time.Parse("15:04", cfg.Time)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: invalid schedule time %q", ErrValidation, cfg.Time)
	}
	at := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, clock.Hour(), clock.Minute(), 0, 0, now.Location())
	}

	switch cfg.Frequency {
	case FrequencyDaily:
		next := at(now.Year(), now.Month(), now.Day())
		if !next.After(now) {
			next = at(now.Year(), now.Month(), now.Day()+1)
		}
		return next, nil

	case FrequencyWeekly:
		if cfg.DayOfWeek == nil {
			return time.Time{}, fmt.Errorf("%w: dayOfWeek is required for weekly schedules", ErrValidation)
		}
		ahead := (*cfg.DayOfWeek - int(now.Weekday()) + 7) % 7
		next := at(now.Year(), now.Month(), now.Day()+ahead)
		if !next.After(now) {
			next = at(now.Year(), now.Month(), now.Day()+ahead+7)
		}
		return next, nil

	case FrequencyMonthly:
		if cfg.DayOfMonth == nil {
			return time.Time{}, fmt.Errorf("%w: dayOfMonth is required for monthly schedules", ErrValidation)
		}
		next := at(now.Year(), now.Month(), *cfg.DayOfMonth)
		if !next.After(now) {
			next = at(now.Year(), now.Month()+1, *cfg.DayOfMonth)
		}
		return next, nil
	}
	return time.Time{}, fmt.Errorf("%w: unknown frequency %q", ErrValidation, cfg.Frequency)
}
