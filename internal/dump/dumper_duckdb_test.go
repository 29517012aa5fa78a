// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package dump

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"
)

func openDuckDBDumper(t *testing.T) *Dumper {
	t.Helper()
	cfg := DefaultConfig(filepath.Join(t.TempDir(), "app.duckdb"))
	cfg.Driver = "duckdb"
	cfg.ConnectTimeout = 5 * time.Second
	d, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

// duckdbValues reads v of every row as DuckDB's own text rendering.
func duckdbValues(t *testing.T, db *sql.DB) []sql.NullString {
	t.Helper()

	rows, err := db.Query(`SELECT CAST(v AS VARCHAR) FROM t ORDER BY id`)
	if err != nil {
		t.Fatalf("read values: %v", err)
	}
	defer rows.Close()

	var out []sql.NullString
	for rows.Next() {
		var v sql.NullString
		if err := rows.Scan(&v); err != nil {
			t.Fatalf("scan: %v", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		t.Fatal(err)
	}
	return out
}

func TestDuckDB_RoundTripTypes(t *testing.T) {
	tests := []struct {
		name  string
		decl  string
		value string
	}{
		{"uuid", "UUID", `'6f1c4a2e-8d3b-4c5a-9e7f-0a1b2c3d4e5f'`},
		{"json", "JSON", `'{"a":1,"b":[true,null]}'`},
		{"list", "INTEGER[]", `[1, 2, 3]`},
		{"string list", "VARCHAR[]", `['a', 'b']`},
		{"struct", "STRUCT(a INTEGER, b VARCHAR)", `{'a': 1, 'b': 'x'}`},
		{"decimal", "DECIMAL(12,3)", `123456789.125`},
		{"time", "TIME", `'13:45:30.25'`},
		{"timestamp", "TIMESTAMP", `'2024-03-01 10:30:00.123456'`},
		{"timestamptz", "TIMESTAMPTZ", `'2024-03-01 10:30:00.5+02'`},
		{"date", "DATE", `'2024-03-01'`},
		{"interval", "INTERVAL", `INTERVAL 3 DAY`},
		{"hugeint", "HUGEINT", `170141183460469231731687303715884105727`},
		{"blob", "BLOB", `'\xCA\xFE'::BLOB`},
		{"double", "DOUBLE", `0.1`},
		{"boolean", "BOOLEAN", `true`},
		{"varchar", "VARCHAR", `'it''s'`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := openDuckDBDumper(t)
			ctx := context.Background()

			for _, stmt := range []string{
				`CREATE TABLE t (id INTEGER, v ` + tt.decl + `)`,
				`INSERT INTO t VALUES (1, ` + tt.value + `), (2, NULL)`,
			} {
				if _, err := d.db.ExecContext(ctx, stmt); err != nil {
					t.Fatalf("exec %q: %v", stmt, err)
				}
			}
			before := duckdbValues(t, d.db)

			out := filepath.Join(t.TempDir(), "full.sql")
			if _, err := d.Dump(ctx, out); err != nil {
				t.Fatalf("Dump() error = %v", err)
			}
			if _, err := d.db.ExecContext(ctx, `DELETE FROM t`); err != nil {
				t.Fatal(err)
			}
			if _, err := d.Restore(ctx, out); err != nil {
				t.Fatalf("Restore() error = %v", err)
			}

			after := duckdbValues(t, d.db)
			if len(after) != len(before) {
				t.Fatalf("restored %d rows, want %d", len(after), len(before))
			}
			for i := range before {
				if before[i] != after[i] {
					t.Errorf("row %d: before %+v, after %+v", i+1, before[i], after[i])
				}
			}
		})
	}
}

func TestDuckDB_Views(t *testing.T) {
	d := openDuckDBDumper(t)
	ctx := context.Background()

	for _, stmt := range []string{
		`CREATE TABLE t (id INTEGER, v VARCHAR)`,
		`INSERT INTO t VALUES (1, 'a'), (2, 'b')`,
		`CREATE VIEW first_rows AS SELECT * FROM t WHERE id = 1`,
	} {
		if _, err := d.db.ExecContext(ctx, stmt); err != nil {
			t.Fatalf("exec %q: %v", stmt, err)
		}
	}

	out := filepath.Join(t.TempDir(), "full.sql")
	res, err := d.Dump(ctx, out)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if res.Objects != 1 {
		t.Errorf("Objects = %d, want 1", res.Objects)
	}

	if _, err := d.db.ExecContext(ctx, `DROP VIEW first_rows`); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Restore(ctx, out); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	var v string
	if err := d.db.QueryRowContext(ctx, `SELECT v FROM first_rows`).Scan(&v); err != nil || v != "a" {
		t.Errorf("view after restore = %q, %v", v, err)
	}
}
