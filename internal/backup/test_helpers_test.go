// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package backup

import (
	"archive/tar"
	"context"
	"database/sql"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/archive"
	"github.com/Kurisu21/webeenthere-sub006/internal/dump"
)

// testEnv holds the common test environment setup
type testEnv struct {
	root       string
	backupDir  string
	dataDir    string
	uploadsDir string
	configFile string
	dbPath     string
	store      *BadgerStore
}

// newTestEnv creates source trees and a SQLite database whose rows and
// files are all an hour old.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	root := t.TempDir()
	e := &testEnv{
		root:       root,
		backupDir:  filepath.Join(root, "backups"),
		dataDir:    filepath.Join(root, "data"),
		uploadsDir: filepath.Join(root, "uploads"),
		configFile: filepath.Join(root, "app.yaml"),
		dbPath:     filepath.Join(root, "app.db"),
	}

	hourAgo := time.Now().Add(-time.Hour)
	writeAged(t, filepath.Join(e.dataDir, "notes.txt"), "original notes", hourAgo)
	writeAged(t, filepath.Join(e.dataDir, "nested", "state.json"), `{"v":1}`, hourAgo)
	writeAged(t, filepath.Join(e.uploadsDir, "avatar.png"), "PNG", hourAgo)
	writeAged(t, e.configFile, "listen: :8080\n", hourAgo)

	db, err := sql.Open("sqlite3", e.dbPath)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	defer db.Close()

	ts := hourAgo.UTC().Format("2006-01-02 15:04:05")
	for _, stmt := range []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, created_at DATETIME)`,
		`CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT)`,
		`INSERT INTO users VALUES (1, 'ada', '` + ts + `')`,
		`INSERT INTO users VALUES (2, 'grace', '` + ts + `')`,
		`INSERT INTO settings VALUES ('theme', 'dark')`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}

	store, err := OpenBadgerStore("")
	if err != nil {
		t.Fatalf("OpenBadgerStore() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })
	e.store = store

	return e
}

func writeAged(t *testing.T, path, content string, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatal(err)
	}
	// Keep the parent directory from looking freshly modified.
	os.Chtimes(filepath.Dir(path), mtime, mtime) //nolint:errcheck
}

// config returns a test configuration with a cheap scrypt cost
func (e *testEnv) config() Config {
	cfg := DefaultConfig()
	cfg.BackupDir = e.backupDir
	cfg.DataDir = e.dataDir
	cfg.UploadsDir = e.uploadsDir
	cfg.ConfigFiles = []string{e.configFile}
	cfg.ScryptWorkFactor = 10
	cfg.PreRestoreBackup = false
	return cfg
}

func (e *testEnv) sqliteDumper(t *testing.T) *dump.Dumper {
	t.Helper()
	cfg := dump.DefaultConfig(e.dbPath)
	cfg.ConnectTimeout = 2 * time.Second
	d, err := dump.Open(cfg)
	if err != nil {
		t.Fatalf("dump.Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func (e *testEnv) newManager(t *testing.T, db DatabaseDumper, cfg Config, opts ...Option) *Manager {
	t.Helper()
	m, err := NewManager(cfg, e.store, db, opts...)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	return m
}

func (e *testEnv) countUsers(t *testing.T) int {
	t.Helper()
	db, err := sql.Open("sqlite3", e.dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		t.Fatalf("count users: %v", err)
	}
	return n
}

// archiveEntries lists the entry names of an archive artifact
func archiveEntries(t *testing.T, path string) []string {
	t.Helper()
	var names []string
	err := (&archive.Builder{}).Walk(context.Background(), path, func(hdr *tar.Header, _ io.Reader) error {
		names = append(names, hdr.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("Walk(%s) error = %v", path, err)
	}
	return names
}

// fakeDumper is a DatabaseDumper with scripted behavior
type fakeDumper struct {
	mu sync.Mutex

	dumpErr    error
	restoreErr error
	statements int

	// started is closed when a dump begins; release unblocks it
	started chan struct{}
	release chan struct{}

	restored []string
}

func (f *fakeDumper) Dump(ctx context.Context, outPath string) (*dump.Result, error) {
	if f.started != nil {
		close(f.started)
	}
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, context.Cause(ctx)
		}
	}
	if f.dumpErr != nil {
		return nil, f.dumpErr
	}
	if err := os.WriteFile(outPath, []byte("-- fake dump\nSELECT 1;\n"), 0o640); err != nil {
		return nil, err
	}
	return &dump.Result{Tables: 1, Rows: 1, HasChanges: true}, nil
}

func (f *fakeDumper) DumpIncremental(_ context.Context, outPath string, since time.Time) (*dump.Result, error) {
	if f.dumpErr != nil {
		return nil, f.dumpErr
	}
	body := dump.NoChangesMarker + since.UTC().Format(time.RFC3339) + "\n"
	if err := os.WriteFile(outPath, []byte(body), 0o640); err != nil {
		return nil, err
	}
	return &dump.Result{}, nil
}

func (f *fakeDumper) Restore(_ context.Context, scriptPath string) (*dump.RestoreResult, error) {
	data, err := os.ReadFile(scriptPath)
	if err != nil {
		return nil, err
	}
	f.mu.Lock()
	f.restored = append(f.restored, string(data))
	f.mu.Unlock()
	return &dump.RestoreResult{Statements: f.statements}, f.restoreErr
}

// recordingSink captures published events
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(_ context.Context, e Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, e)
	return nil
}

func (s *recordingSink) types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventType, len(s.events))
	for i, e := range s.events {
		out[i] = e.Type
	}
	return out
}

func intPtr(v int) *int { return &v }
