// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"

	"github.com/Kurisu21/webeenthere-sub006/internal/backup"
	"github.com/Kurisu21/webeenthere-sub006/internal/config"
)

// fakeService records the arguments of the last call.
type fakeService struct {
	createType backup.BackupType
	createOpts backup.CreateOptions
	createErr  error
	listOpts   backup.ListOptions
	restoreOpt backup.RestoreOptions
	patch      backup.SchedulePatch
	deleted    string
	closed     bool
}

func (f *fakeService) CreateBackup(_ context.Context, t backup.BackupType, opts backup.CreateOptions) (*backup.Backup, error) {
	f.createType, f.createOpts = t, opts
	b := &backup.Backup{ID: "b-1", Type: t, Status: backup.StatusCompleted}
	if f.createErr != nil {
		b.Status = backup.StatusFailed
		b.Error = f.createErr.Error()
	}
	return b, f.createErr
}

func (f *fakeService) ListBackups(opts backup.ListOptions) (*backup.ListResult, error) {
	f.listOpts = opts
	return &backup.ListResult{Backups: []*backup.Backup{}, Pagination: backup.Pagination{Page: opts.Page, Limit: opts.Limit}}, nil
}

func (f *fakeService) GetBackup(id string) (*backup.Backup, error) {
	if id != "b-1" {
		return nil, fmt.Errorf("%w: %s", backup.ErrNotFound, id)
	}
	return &backup.Backup{ID: id}, nil
}

func (f *fakeService) DeleteBackup(_ context.Context, id string) error {
	f.deleted = id
	return nil
}

func (f *fakeService) ValidateBackup(_ context.Context, id string) (*backup.ValidationResult, error) {
	return &backup.ValidationResult{BackupID: id, Valid: true}, nil
}

func (f *fakeService) RestoreBackup(_ context.Context, id string, opts backup.RestoreOptions) (*backup.RestoreResult, error) {
	f.restoreOpt = opts
	return &backup.RestoreResult{BackupID: id, DatabaseRestored: true}, nil
}

func (f *fakeService) GetStats() (*backup.Stats, error) {
	return &backup.Stats{TotalBackups: 3}, nil
}

func (f *fakeService) GetSchedule() (backup.ScheduleConfig, error) {
	return backup.DefaultSchedule(), nil
}

func (f *fakeService) UpdateSchedule(_ context.Context, patch backup.SchedulePatch) (backup.ScheduleConfig, error) {
	f.patch = patch
	return patch.Apply(backup.DefaultSchedule()), nil
}

func (f *fakeService) ApplyRetention(context.Context) (*backup.RetentionResult, error) {
	return &backup.RetentionResult{Deleted: []string{"old"}, Kept: 2}, nil
}

// runFake executes args against fake and returns stdout.
func runFake(t *testing.T, fake *fakeService, args ...string) (string, error) {
	t.Helper()
	d := deps{
		loadConfig: func() (*config.Config, error) { return &config.Config{}, nil },
		open: func(*config.Config) (backupService, func() error, error) {
			return fake, func() error { fake.closed = true; return nil }, nil
		},
	}
	var out bytes.Buffer
	cmd := newRootCmd(d, &out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCreateCommand(t *testing.T) {
	fake := &fakeService{}
	out, err := runFake(t, fake, "create", "--type", "files", "--description", "nightly", "--encrypt", "--password", "pw")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if fake.createType != backup.TypeFiles {
		t.Errorf("type = %s, want files", fake.createType)
	}
	if fake.createOpts.Description != "nightly" || !fake.createOpts.Encrypt || fake.createOpts.Password != "pw" {
		t.Errorf("opts = %+v", fake.createOpts)
	}
	if !fake.closed {
		t.Error("stores were not closed")
	}

	var b backup.Backup
	if err := json.Unmarshal([]byte(out), &b); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out)
	}
	if b.ID != "b-1" {
		t.Errorf("ID = %q", b.ID)
	}
}

func TestCreateCommand_DefaultsToFull(t *testing.T) {
	fake := &fakeService{}
	if _, err := runFake(t, fake, "create"); err != nil {
		t.Fatal(err)
	}
	if fake.createType != backup.TypeFull {
		t.Errorf("type = %s, want full", fake.createType)
	}
}

func TestCreateCommand_FailurePrintsRecord(t *testing.T) {
	fake := &fakeService{createErr: backup.ErrIO}
	out, err := runFake(t, fake, "create")
	if !errors.Is(err, backup.ErrIO) {
		t.Fatalf("err = %v, want ErrIO", err)
	}
	if !strings.Contains(out, `"status": "failed"`) {
		t.Errorf("failed record not printed:\n%s", out)
	}
}

func TestListCommand(t *testing.T) {
	fake := &fakeService{}
	if _, err := runFake(t, fake, "list", "--type", "database", "--status", "completed", "--page", "2", "--limit", "5"); err != nil {
		t.Fatal(err)
	}
	o := fake.listOpts
	if o.Type == nil || *o.Type != backup.TypeDatabase {
		t.Errorf("Type = %v", o.Type)
	}
	if o.Status == nil || *o.Status != backup.StatusCompleted {
		t.Errorf("Status = %v", o.Status)
	}
	if o.Page != 2 || o.Limit != 5 {
		t.Errorf("page/limit = %d/%d", o.Page, o.Limit)
	}

	if _, err := runFake(t, fake, "list"); err != nil {
		t.Fatal(err)
	}
	if fake.listOpts.Type != nil || fake.listOpts.Status != nil {
		t.Error("unset filters should stay nil")
	}
}

func TestGetCommand_NotFound(t *testing.T) {
	_, err := runFake(t, &fakeService{}, "get", "missing")
	if !errors.Is(err, backup.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestArgsAreChecked(t *testing.T) {
	for _, args := range [][]string{{"get"}, {"validate"}, {"restore"}, {"delete", "a", "b"}, {"stats", "extra"}} {
		if _, err := runFake(t, &fakeService{}, args...); err == nil {
			t.Errorf("%v: expected argument error", args)
		}
	}
}

func TestRestoreCommand(t *testing.T) {
	fake := &fakeService{}
	out, err := runFake(t, fake, "restore", "b-1", "--confirm", "--password", "pw", "--skip-files")
	if err != nil {
		t.Fatal(err)
	}
	want := backup.RestoreOptions{Confirm: true, Password: "pw", SkipFiles: true}
	if fake.restoreOpt != want {
		t.Errorf("opts = %+v, want %+v", fake.restoreOpt, want)
	}
	if !strings.Contains(out, `"databaseRestored": true`) {
		t.Errorf("output = %s", out)
	}
}

func TestDeleteAndStatsAndRetention(t *testing.T) {
	fake := &fakeService{}
	out, err := runFake(t, fake, "delete", "b-1")
	if err != nil || fake.deleted != "b-1" || !strings.Contains(out, `"deleted": "b-1"`) {
		t.Errorf("delete: err=%v deleted=%q out=%s", err, fake.deleted, out)
	}

	out, err = runFake(t, fake, "stats")
	if err != nil || !strings.Contains(out, `"totalBackups": 3`) {
		t.Errorf("stats: err=%v out=%s", err, out)
	}

	out, err = runFake(t, fake, "retention", "apply")
	if err != nil || !strings.Contains(out, `"kept": 2`) {
		t.Errorf("retention: err=%v out=%s", err, out)
	}
}

func TestScheduleSet_OnlyChangedFlags(t *testing.T) {
	fake := &fakeService{}
	out, err := runFake(t, fake, "schedule", "set", "--enabled", "--frequency", "weekly", "--day-of-week", "0")
	if err != nil {
		t.Fatal(err)
	}
	p := fake.patch
	if p.Enabled == nil || !*p.Enabled {
		t.Error("Enabled should be set to true")
	}
	if p.Frequency == nil || *p.Frequency != backup.FrequencyWeekly {
		t.Errorf("Frequency = %v", p.Frequency)
	}
	if p.DayOfWeek == nil || *p.DayOfWeek != 0 {
		t.Errorf("DayOfWeek = %v", p.DayOfWeek)
	}
	if p.Time != nil || p.DayOfMonth != nil || p.RetentionDays != nil || p.AutoDelete != nil {
		t.Errorf("unset flags leaked into patch: %+v", p)
	}

	var sc backup.ScheduleConfig
	if err := json.Unmarshal([]byte(out), &sc); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if sc.Frequency != backup.FrequencyWeekly {
		t.Errorf("Frequency = %s", sc.Frequency)
	}
}

func TestLoadConfigError(t *testing.T) {
	d := deps{
		loadConfig: func() (*config.Config, error) { return nil, errors.New("bad config") },
		open: func(*config.Config) (backupService, func() error, error) {
			t.Fatal("open must not be called")
			return nil, nil, nil
		},
	}
	cmd := newRootCmd(d, io.Discard)
	cmd.SetErr(io.Discard)
	cmd.SetArgs([]string{"stats"})
	if err := cmd.Execute(); err == nil || !strings.Contains(err.Error(), "bad config") {
		t.Errorf("err = %v", err)
	}
}

// TestEndToEnd runs the real loader, stores and manager against a temporary
// layout configured through the environment.
func TestEndToEnd(t *testing.T) {
	root := t.TempDir()
	t.Chdir(root)
	t.Setenv(config.ConfigPathEnvVar, "")

	dataDir := filepath.Join(root, "data")
	dbPath := filepath.Join(root, "app.db")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		t.Fatal(err)
	}
	notes := filepath.Join(dataDir, "notes.txt")
	if err := os.WriteFile(notes, []byte("v1"), 0o644); err != nil {
		t.Fatal(err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`CREATE TABLE items (id INTEGER PRIMARY KEY, name TEXT); INSERT INTO items (name) VALUES ('a'), ('b')`); err != nil {
		t.Fatal(err)
	}
	db.Close()

	t.Setenv("DB_PATH", dbPath)
	t.Setenv("BACKUP_DIR", filepath.Join(root, "backups"))
	t.Setenv("BACKUP_DATA_DIR", dataDir)
	t.Setenv("BACKUP_UPLOADS_DIR", filepath.Join(root, "uploads"))
	t.Setenv("METADATA_DIR", filepath.Join(root, "meta"))
	t.Setenv("BACKUP_PRE_RESTORE", "false")

	run := func(args ...string) string {
		t.Helper()
		var out bytes.Buffer
		cmd := newRootCmd(defaultDeps(), &out)
		cmd.SetErr(io.Discard)
		cmd.SetArgs(args)
		if err := cmd.Execute(); err != nil {
			t.Fatalf("%v: %v", args, err)
		}
		return out.String()
	}

	var created backup.Backup
	if err := json.Unmarshal([]byte(run("create", "--type", "full")), &created); err != nil {
		t.Fatal(err)
	}
	if created.Status != backup.StatusCompleted || created.IntegrityHash == "" {
		t.Fatalf("created = %+v", created)
	}

	var vr backup.ValidationResult
	if err := json.Unmarshal([]byte(run("validate", created.ID)), &vr); err != nil {
		t.Fatal(err)
	}
	if !vr.Valid {
		t.Errorf("validate = %+v", vr)
	}

	if err := os.WriteFile(notes, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}

	var rr backup.RestoreResult
	if err := json.Unmarshal([]byte(run("restore", created.ID, "--confirm")), &rr); err != nil {
		t.Fatal(err)
	}
	if !rr.DatabaseRestored {
		t.Errorf("restore = %+v", rr)
	}
	got, err := os.ReadFile(notes)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "v1" {
		t.Errorf("notes.txt = %q after restore, want v1", got)
	}

	var list backup.ListResult
	if err := json.Unmarshal([]byte(run("list")), &list); err != nil {
		t.Fatal(err)
	}
	if list.Pagination.Total != 1 {
		t.Errorf("total = %d, want 1", list.Pagination.Total)
	}

	run("delete", created.ID)
	if err := json.Unmarshal([]byte(run("list")), &list); err != nil {
		t.Fatal(err)
	}
	if list.Pagination.Total != 0 {
		t.Errorf("total after delete = %d, want 0", list.Pagination.Total)
	}
}
