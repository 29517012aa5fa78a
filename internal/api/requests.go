// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/backup"
)

// CreateBackupRequest is the request body for creating a backup
type CreateBackupRequest struct {
	Type        string `json:"type" validate:"required,oneof=full database files incremental"`
	Description string `json:"description" validate:"max=500"`
	Encrypt     bool   `json:"encrypt"`
	Password    string `json:"password" validate:"required_if=Encrypt true"`
}

// RestoreBackupRequest is the request body for restoring a backup
type RestoreBackupRequest struct {
	Confirm      bool   `json:"confirm"`
	Password     string `json:"password"`
	SkipDatabase bool   `json:"skipDatabase"`
	SkipFiles    bool   `json:"skipFiles"`
}

// UpdateScheduleRequest is the partial schedule update. Only fields that
// are present change.
type UpdateScheduleRequest struct {
	Enabled       *bool   `json:"enabled"`
	Frequency     *string `json:"frequency" validate:"omitempty,oneof=daily weekly monthly"`
	Time          *string `json:"time" validate:"omitempty,hhmm"`
	DayOfWeek     *int    `json:"dayOfWeek" validate:"omitempty,min=0,max=6"`
	DayOfMonth    *int    `json:"dayOfMonth" validate:"omitempty,min=1,max=28"`
	RetentionDays *int    `json:"retentionDays" validate:"omitempty,min=1,max=365"`
	AutoDelete    *bool   `json:"autoDelete"`
}

func (req UpdateScheduleRequest) patch() backup.SchedulePatch {
	p := backup.SchedulePatch{
		Enabled:       req.Enabled,
		Time:          req.Time,
		DayOfWeek:     req.DayOfWeek,
		DayOfMonth:    req.DayOfMonth,
		RetentionDays: req.RetentionDays,
		AutoDelete:    req.AutoDelete,
	}
	if req.Frequency != nil {
		f := backup.Frequency(*req.Frequency)
		p.Frequency = &f
	}
	return p
}

// parseListOptions extracts the list filters and page from the query.
func parseListOptions(r *http.Request) (backup.ListOptions, error) {
	var opts backup.ListOptions
	query := r.URL.Query()

	if v := query.Get("type"); v != "" {
		t := backup.BackupType(v)
		opts.Type = &t
	}
	if v := query.Get("status"); v != "" {
		s := backup.BackupStatus(v)
		opts.Status = &s
	}

	var err error
	if opts.StartDate, err = parseDateParam(query.Get("start_date"), false); err != nil {
		return opts, fmt.Errorf("start_date: %w", err)
	}
	if opts.EndDate, err = parseDateParam(query.Get("end_date"), true); err != nil {
		return opts, fmt.Errorf("end_date: %w", err)
	}
	if opts.Page, err = parseIntParam(query.Get("page")); err != nil {
		return opts, fmt.Errorf("page: %w", err)
	}
	if opts.Limit, err = parseIntParam(query.Get("limit")); err != nil {
		return opts, fmt.Errorf("limit: %w", err)
	}
	return opts, nil
}

// parseDateParam accepts RFC 3339 or a bare YYYY-MM-DD. A bare end date
// covers the whole day.
func parseDateParam(value string, endOfDay bool) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, time.Local)
	if err != nil {
		return nil, fmt.Errorf("expected RFC 3339 or YYYY-MM-DD, got %q", value)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseIntParam(value string) (int, error) {
	if value == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("must be a positive integer, got %q", value)
	}
	return n, nil
}
