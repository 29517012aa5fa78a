// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package dump

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// newTestDB creates a SQLite database file with a small related schema and
// returns its path. Row timestamps are an hour old.
func newTestDB(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "app.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	hourAgo := time.Now().Add(-time.Hour).UTC().Format("2006-01-02 15:04:05")
	stmts := []string{
		`CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, avatar BLOB, created_at DATETIME)`,
		`CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER REFERENCES users(id), body TEXT, updated_at TIMESTAMP)`,
		`CREATE INDEX idx_posts_user ON posts(user_id)`,
		`CREATE TABLE settings (key TEXT PRIMARY KEY, value TEXT)`,
		`INSERT INTO users VALUES (1, 'O''Brien', X'CAFE', '` + hourAgo + `')`,
		`INSERT INTO users VALUES (2, 'NULL', NULL, '` + hourAgo + `')`,
		`INSERT INTO posts VALUES (1, 1, 'hello; world', '` + hourAgo + `')`,
		`INSERT INTO settings VALUES ('theme', 'dark')`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			t.Fatalf("exec %q: %v", s, err)
		}
	}
	return path
}

func openTestDumper(t *testing.T, path string) *Dumper {
	t.Helper()
	cfg := DefaultConfig(path)
	cfg.ConnectTimeout = 2 * time.Second
	d, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestDump_FullRoundTrip(t *testing.T) {
	path := newTestDB(t)
	d := openTestDumper(t, path)
	ctx := context.Background()

	out := filepath.Join(t.TempDir(), "full.sql")
	res, err := d.Dump(ctx, out)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if res.Tables != 3 || res.Rows != 4 {
		t.Errorf("Tables = %d, Rows = %d, want 3 and 4", res.Tables, res.Rows)
	}
	if res.Size == 0 {
		t.Error("Size = 0")
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	script := string(data)
	for _, want := range []string{
		"PRAGMA foreign_keys = OFF;",
		`DROP TABLE IF EXISTS "users";`,
		"CREATE INDEX idx_posts_user",
		"'O''Brien'",
		"X'CAFE'",
		"'NULL', NULL",
		"PRAGMA foreign_keys = ON;",
	} {
		if !strings.Contains(script, want) {
			t.Errorf("script missing %q", want)
		}
	}
	if strings.Index(script, "foreign_keys = OFF") > strings.Index(script, "DROP TABLE") {
		t.Error("foreign keys must be disabled before tables are dropped")
	}

	// Mutate the database, then restore and check the original data is back.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	if _, err := db.Exec(`DELETE FROM users WHERE id = 2`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`UPDATE settings SET value = 'light'`); err != nil {
		t.Fatal(err)
	}

	rres, err := d.Restore(ctx, out)
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if rres.Statements == 0 {
		t.Error("no statements executed")
	}

	var name string
	var avatar []byte
	if err := db.QueryRow(`SELECT name, avatar FROM users WHERE id = 2`).Scan(&name, &avatar); err != nil {
		t.Fatalf("restored row missing: %v", err)
	}
	if name != "NULL" || avatar != nil {
		t.Errorf("row 2 = %q, %v; want the string NULL and a real NULL", name, avatar)
	}
	var value string
	if err := db.QueryRow(`SELECT value FROM settings WHERE key = 'theme'`).Scan(&value); err != nil {
		t.Fatal(err)
	}
	if value != "dark" {
		t.Errorf("settings.theme = %q, want dark", value)
	}
	var body string
	if err := db.QueryRow(`SELECT body FROM posts WHERE id = 1`).Scan(&body); err != nil {
		t.Fatal(err)
	}
	if body != "hello; world" {
		t.Errorf("posts.body = %q", body)
	}
}

// typedSnapshot reads every value of cols as "column=storage class:literal",
// row by row.
func typedSnapshot(t *testing.T, db *sql.DB, table string, cols []string) []string {
	t.Helper()

	var out []string
	for _, c := range cols {
		q := fmt.Sprintf(`SELECT typeof(%[1]s) || ':' || quote(%[1]s) FROM %[2]s ORDER BY rowid`, QuoteIdent(c), QuoteIdent(table))
		rows, err := db.Query(q)
		if err != nil {
			t.Fatalf("snapshot %s: %v", c, err)
		}
		for rows.Next() {
			var v string
			if err := rows.Scan(&v); err != nil {
				rows.Close()
				t.Fatalf("scan %s: %v", c, err)
			}
			out = append(out, c+"="+v)
		}
		if err := rows.Close(); err != nil {
			t.Fatal(err)
		}
	}
	return out
}

func TestDump_PreservesStoredValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typed.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	for _, stmt := range []string{
		`CREATE TABLE t (id INTEGER PRIMARY KEY, a, b NUMERIC, c DATETIME, d BOOLEAN, e DATETIME, f REAL, g BLOB, h TEXT)`,
		`INSERT INTO t VALUES (1, 'x', 'abc', 1700000000, 2, 'not a date', 0.1, X'00FF', '2024-03-01 10:30:00')`,
		`INSERT INTO t VALUES (2, 42, 3.5, '2024-03-01T10:30:00Z', 0, NULL, 1e300, 'text in blob', 7)`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}

	cols := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
	before := typedSnapshot(t, db, "t", cols)

	d := openTestDumper(t, path)
	ctx := context.Background()
	out := filepath.Join(t.TempDir(), "typed.sql")
	if _, err := d.Dump(ctx, out); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if _, err := db.Exec(`DELETE FROM t`); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Restore(ctx, out); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	after := typedSnapshot(t, db, "t", cols)
	if len(after) != len(before) {
		t.Fatalf("restored %d values, want %d", len(after), len(before))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Errorf("value changed by dump and restore: before %q, after %q", before[i], after[i])
		}
	}
}

func TestDump_ViewsAndTriggers(t *testing.T) {
	src := newTestDB(t)
	db, err := sql.Open("sqlite3", src)
	if err != nil {
		t.Fatal(err)
	}
	for _, stmt := range []string{
		`CREATE TABLE audit (user_id INTEGER, note TEXT)`,
		`CREATE VIEW named_users AS SELECT id, name FROM users`,
		`CREATE TRIGGER users_audit AFTER UPDATE ON users BEGIN INSERT INTO audit VALUES (NEW.id, 'updated; again'); END`,
	} {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}
	db.Close()

	d := openTestDumper(t, src)
	out := filepath.Join(t.TempDir(), "full.sql")
	res, err := d.Dump(context.Background(), out)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if res.Objects != 2 {
		t.Errorf("Objects = %d, want 2", res.Objects)
	}

	fresh := filepath.Join(t.TempDir(), "new", "app.db")
	if _, err := openTestDumper(t, fresh).Restore(context.Background(), out); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	rdb, err := sql.Open("sqlite3", fresh)
	if err != nil {
		t.Fatal(err)
	}
	defer rdb.Close()

	var n int
	if err := rdb.QueryRow(`SELECT COUNT(*) FROM named_users`).Scan(&n); err != nil || n != 2 {
		t.Errorf("named_users count = %d, %v", n, err)
	}
	if _, err := rdb.Exec(`UPDATE users SET name = 'ada' WHERE id = 1`); err != nil {
		t.Fatal(err)
	}
	var note string
	if err := rdb.QueryRow(`SELECT note FROM audit WHERE user_id = 1`).Scan(&note); err != nil {
		t.Fatalf("trigger did not fire after restore: %v", err)
	}
	if note != "updated; again" {
		t.Errorf("audit note = %q", note)
	}
}

func TestDumpIncremental_SubSecondWatermark(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.db")
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	written := time.Date(2024, 3, 1, 12, 0, 0, 300*int(time.Millisecond), time.UTC)
	if _, err := db.Exec(`CREATE TABLE events (id INTEGER PRIMARY KEY, at DATETIME)`); err != nil {
		t.Fatal(err)
	}
	if _, err := db.Exec(`INSERT INTO events VALUES (1, ?)`, written); err != nil {
		t.Fatal(err)
	}

	d := openTestDumper(t, path)
	tests := []struct {
		name      string
		watermark time.Time
		wantRows  int64
	}{
		{"later in the same second", written.Add(400 * time.Millisecond), 0},
		{"exactly at the row", written, 1},
		{"earlier in the same second", written.Add(-100 * time.Millisecond), 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "inc.sql")
			res, err := d.DumpIncremental(context.Background(), out, tt.watermark)
			if err != nil {
				t.Fatalf("DumpIncremental() error = %v", err)
			}
			if res.Rows != tt.wantRows || res.HasChanges != (tt.wantRows > 0) {
				t.Errorf("Rows = %d, HasChanges = %v, want %d rows", res.Rows, res.HasChanges, tt.wantRows)
			}
		})
	}
}

func TestDumpIncremental(t *testing.T) {
	path := newTestDB(t)
	d := openTestDumper(t, path)
	ctx := context.Background()

	t.Run("rows after watermark", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "inc.sql")
		res, err := d.DumpIncremental(ctx, out, time.Now().Add(-24*time.Hour))
		if err != nil {
			t.Fatalf("DumpIncremental() error = %v", err)
		}
		if !res.HasChanges || res.Rows != 3 {
			t.Errorf("HasChanges = %v, Rows = %d, want true and 3", res.HasChanges, res.Rows)
		}
		if len(res.SkippedTables) != 1 || res.SkippedTables[0] != "settings" {
			t.Errorf("SkippedTables = %v, want [settings]", res.SkippedTables)
		}

		data, _ := os.ReadFile(out)
		script := string(data)
		if strings.Contains(script, "DROP TABLE") || strings.Contains(script, "CREATE TABLE") {
			t.Error("incremental script must not recreate tables")
		}
		if !strings.Contains(script, `INSERT OR REPLACE INTO "users"`) {
			t.Error("expected upserts into users")
		}
	})

	t.Run("nothing after watermark", func(t *testing.T) {
		out := filepath.Join(t.TempDir(), "inc.sql")
		res, err := d.DumpIncremental(ctx, out, time.Now())
		if err != nil {
			t.Fatalf("DumpIncremental() error = %v", err)
		}
		if res.HasChanges || res.Rows != 0 {
			t.Errorf("HasChanges = %v, Rows = %d", res.HasChanges, res.Rows)
		}
		data, _ := os.ReadFile(out)
		if !strings.Contains(string(data), NoChangesMarker) {
			t.Errorf("missing marker in %s", data)
		}
		if _, err := d.Restore(ctx, out); err != nil {
			t.Errorf("replaying a no-op script failed: %v", err)
		}
	})
}

func TestDump_BatchSize(t *testing.T) {
	path := newTestDB(t)
	cfg := DefaultConfig(path)
	cfg.BatchSize = 1
	d, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	out := filepath.Join(t.TempDir(), "batched.sql")
	if _, err := d.Dump(context.Background(), out); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	data, _ := os.ReadFile(out)
	if n := strings.Count(string(data), `INSERT INTO "users"`); n != 2 {
		t.Errorf("expected 2 insert statements for users, got %d", n)
	}
}

func TestDump_ConnectionFailure(t *testing.T) {
	d := openTestDumper(t, filepath.Join(t.TempDir(), "missing-dir", "app.db"))

	out := filepath.Join(t.TempDir(), "never.sql")
	_, err := d.Dump(context.Background(), out)
	if !errors.Is(err, ErrConnection) {
		t.Fatalf("Dump() error = %v, want ErrConnection", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("no output file should be left behind")
	}
}

func TestDump_BreakerOpens(t *testing.T) {
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "nope", "app.db"))
	cfg.BreakerThreshold = 2
	cfg.BreakerTimeout = time.Minute
	d, err := Open(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := d.Ping(ctx); !errors.Is(err, ErrConnection) {
			t.Fatalf("Ping() #%d error = %v", i, err)
		}
	}
	err = d.Ping(ctx)
	if !errors.Is(err, ErrConnection) || !strings.Contains(err.Error(), "circuit breaker is open") {
		t.Errorf("Ping() with open breaker error = %v", err)
	}
}

func TestRestore_PartialFailure(t *testing.T) {
	path := newTestDB(t)
	d := openTestDumper(t, path)

	script := filepath.Join(t.TempDir(), "bad.sql")
	content := "INSERT INTO settings VALUES ('a', '1');\nINSERT INTO no_such_table VALUES (1);\nINSERT INTO settings VALUES ('b', '2');\n"
	if err := os.WriteFile(script, []byte(content), 0o640); err != nil {
		t.Fatal(err)
	}

	res, err := d.Restore(context.Background(), script)
	var se *StatementError
	if !errors.As(err, &se) {
		t.Fatalf("Restore() error = %v, want *StatementError", err)
	}
	if se.Index != 1 {
		t.Errorf("failed statement index = %d, want 1", se.Index)
	}
	if res == nil || res.Statements != 1 {
		t.Errorf("applied statements = %+v, want 1", res)
	}

	db, _ := sql.Open("sqlite3", path)
	defer db.Close()
	var n int
	db.QueryRow(`SELECT COUNT(*) FROM settings WHERE key IN ('a', 'b')`).Scan(&n)
	if n != 1 {
		t.Errorf("expected only the statement before the failure to apply, found %d rows", n)
	}
}

func TestRestore_CreatesMissingDatabase(t *testing.T) {
	src := newTestDB(t)
	d := openTestDumper(t, src)

	out := filepath.Join(t.TempDir(), "full.sql")
	if _, err := d.Dump(context.Background(), out); err != nil {
		t.Fatal(err)
	}

	fresh := filepath.Join(t.TempDir(), "new", "app.db")
	target := openTestDumper(t, fresh)
	if _, err := target.Restore(context.Background(), out); err != nil {
		t.Fatalf("Restore() into a new file error = %v", err)
	}

	db, _ := sql.Open("sqlite3", fresh)
	defer db.Close()
	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM users`).Scan(&n); err != nil || n != 2 {
		t.Errorf("users count = %d, %v", n, err)
	}
}
