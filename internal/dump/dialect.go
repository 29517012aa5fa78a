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
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Dialect isolates the engine specific parts of dumping and restoring.
type Dialect interface {
	// Name is the configuration name of the dialect.
	Name() string
	// Driver is the database/sql driver name.
	Driver() string
	// DSN builds a data source name for a database file.
	DSN(path string) string
	// EnsureTarget prepares the database location before a restore.
	EnsureTarget(path string) error
	// ListTables introspects user tables ordered by name.
	ListTables(ctx context.Context, conn *sql.Conn) ([]Table, error)
	// ListObjects introspects views and triggers in creation order. A full
	// dump recreates them after every table has its rows back.
	ListObjects(ctx context.Context, conn *sql.Conn) ([]Object, error)
	// ForeignKeys returns the statement toggling enforcement, or "" when the
	// engine has no such switch.
	ForeignKeys(enabled bool) string
	// InsertVerb opens an INSERT; upsert selects replace-on-conflict.
	InsertVerb(upsert bool) string
	// SelectColumn is the select-list expression that reads col for a dump.
	SelectColumn(col Column) string
	// Literal renders one value read through SelectColumn as a SQL literal.
	Literal(col Column, v any) string
	// SincePredicate compares one timestamp column against a bound watermark.
	SincePredicate(quotedColumn string) string
	// SinceArg converts the watermark into the bound argument.
	SinceArg(t time.Time) any
}

// DialectFor returns the dialect registered under name.
func DialectFor(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite{}, nil
	case "duckdb":
		return DuckDB{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, name)
	}
}

// QuoteIdent double-quotes an identifier.
func QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteString single-quotes a string literal, doubling embedded quotes.
func QuoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func normalizeDDL(stmt string) string {
	return strings.TrimSuffix(strings.TrimSpace(stmt), ";")
}

// SQLite is the mattn/go-sqlite3 dialect.
type SQLite struct{}

func (SQLite) Name() string   { return "sqlite" }
func (SQLite) Driver() string { return "sqlite3" }

// DSN opens the file read-write without creating it, so a mistyped path
// surfaces as a connection error instead of an empty dump.
func (SQLite) DSN(path string) string {
	return "file:" + (&url.URL{Path: path}).EscapedPath() + "?mode=rw&_busy_timeout=5000"
}

// EnsureTarget creates an empty database file so a restore can run on a
// host that has never had one.
func (SQLite) EnsureTarget(path string) error {
	if _, err := os.Stat(path); !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	//nolint:gosec // G304: path comes from configuration
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY, 0o640)
	if err != nil {
		return err
	}
	return f.Close()
}

func (SQLite) ListTables(ctx context.Context, conn *sql.Conn) ([]Table, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT name, sql FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' AND sql IS NOT NULL ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Name, &t.CreateSQL); err != nil {
			rows.Close() //nolint:errcheck // returning scan error
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		t.CreateSQL = normalizeDDL(t.CreateSQL)
		tables = append(tables, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tables {
		cols, err := sqliteColumns(ctx, conn, tables[i].Name)
		if err != nil {
			return nil, err
		}
		tables[i].Columns = cols

		idx, err := queryStrings(ctx, conn,
			`SELECT sql FROM sqlite_master WHERE type = 'index' AND tbl_name = ? AND sql IS NOT NULL ORDER BY name`, tables[i].Name)
		if err != nil {
			return nil, fmt.Errorf("failed to list indexes of %s: %w", tables[i].Name, err)
		}
		tables[i].Indexes = idx
	}
	return tables, nil
}

func sqliteColumns(ctx context.Context, conn *sql.Conn, table string) ([]Column, error) {
	rows, err := conn.QueryContext(ctx, "SELECT name, type FROM pragma_table_info(?) ORDER BY cid", table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DeclType); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		c.Kind = Classify(c.DeclType)
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (SQLite) ForeignKeys(enabled bool) string {
	if enabled {
		return "PRAGMA foreign_keys = ON"
	}
	return "PRAGMA foreign_keys = OFF"
}

func (SQLite) InsertVerb(upsert bool) string {
	if upsert {
		return "INSERT OR REPLACE INTO"
	}
	return "INSERT INTO"
}

// SelectColumn has SQLite render each stored value as a literal itself.
// Reading through the driver would convert values by declared type: an
// integer in a DATETIME column comes back as a time, a BOOLEAN 2 as true,
// and unparseable date text as the zero time.
func (SQLite) SelectColumn(col Column) string {
	return "quote(" + QuoteIdent(col.Name) + ")"
}

// Literal writes the output of quote() unchanged. quote() hands integers
// back as integers and everything else as literal text.
func (SQLite) Literal(_ Column, v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case string:
		return x
	case []byte:
		return string(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x, 64)
	default:
		return fmt.Sprint(x)
	}
}

// SincePredicate compares through julianday(), which keeps milliseconds
// and accepts every text layout SQLite understands as a time.
func (SQLite) SincePredicate(quotedColumn string) string {
	return "julianday(" + quotedColumn + ") >= julianday(?)"
}

func (SQLite) SinceArg(t time.Time) any {
	return t.UTC().Format("2006-01-02 15:04:05.000")
}

func (SQLite) ListObjects(ctx context.Context, conn *sql.Conn) ([]Object, error) {
	return queryObjects(ctx, conn,
		`SELECT type, name, sql FROM sqlite_master WHERE type IN ('view', 'trigger') AND sql IS NOT NULL ORDER BY rowid`)
}

// DuckDB is the duckdb-go dialect. DuckDB has no switch for foreign key
// enforcement, so scripts for it rely on table order.
type DuckDB struct{}

func (DuckDB) Name() string              { return "duckdb" }
func (DuckDB) Driver() string            { return "duckdb" }
func (DuckDB) DSN(path string) string    { return path }
func (DuckDB) EnsureTarget(string) error { return nil }

func (DuckDB) ListTables(ctx context.Context, conn *sql.Conn) ([]Table, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT table_name, sql FROM duckdb_tables() WHERE schema_name = 'main' AND NOT internal AND NOT temporary ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	var tables []Table
	for rows.Next() {
		var t Table
		if err := rows.Scan(&t.Name, &t.CreateSQL); err != nil {
			rows.Close() //nolint:errcheck // returning scan error
			return nil, fmt.Errorf("failed to scan table: %w", err)
		}
		t.CreateSQL = normalizeDDL(t.CreateSQL)
		tables = append(tables, t)
	}
	if err := rows.Close(); err != nil {
		return nil, err
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range tables {
		cols, err := duckdbColumns(ctx, conn, tables[i].Name)
		if err != nil {
			return nil, err
		}
		tables[i].Columns = cols

		idx, err := queryStrings(ctx, conn,
			`SELECT sql FROM duckdb_indexes() WHERE schema_name = 'main' AND table_name = ? AND sql IS NOT NULL ORDER BY index_name`, tables[i].Name)
		if err != nil {
			return nil, fmt.Errorf("failed to list indexes of %s: %w", tables[i].Name, err)
		}
		for j := range idx {
			idx[j] = normalizeDDL(idx[j])
		}
		tables[i].Indexes = idx
	}
	return tables, nil
}

func duckdbColumns(ctx context.Context, conn *sql.Conn, table string) ([]Column, error) {
	rows, err := conn.QueryContext(ctx,
		`SELECT column_name, data_type FROM duckdb_columns() WHERE schema_name = 'main' AND table_name = ? ORDER BY column_index`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var cols []Column
	for rows.Next() {
		var c Column
		if err := rows.Scan(&c.Name, &c.DeclType); err != nil {
			return nil, fmt.Errorf("failed to scan column of %s: %w", table, err)
		}
		c.Kind = Classify(c.DeclType)
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (DuckDB) ForeignKeys(bool) string { return "" }

// InsertVerb ignores upsert: DuckDB's INSERT OR REPLACE needs a conflict
// target, which arbitrary tables lack.
func (DuckDB) InsertVerb(bool) string { return "INSERT INTO" }

// duckdbNative lists the types whose Go values map one to one onto a SQL
// literal. Every other type is read as its VARCHAR rendering and cast back
// to the declared type on restore.
var duckdbNative = map[string]bool{
	"BOOLEAN": true, "TINYINT": true, "SMALLINT": true, "INTEGER": true, "BIGINT": true,
	"UTINYINT": true, "USMALLINT": true, "UINTEGER": true, "UBIGINT": true,
	"FLOAT": true, "DOUBLE": true, "VARCHAR": true, "BLOB": true,
}

func duckdbViaText(col Column) bool {
	return !duckdbNative[strings.ToUpper(strings.TrimSpace(col.DeclType))]
}

func (DuckDB) SelectColumn(col Column) string {
	if duckdbViaText(col) {
		return "CAST(" + QuoteIdent(col.Name) + " AS VARCHAR)"
	}
	return QuoteIdent(col.Name)
}

func (DuckDB) Literal(col Column, v any) string {
	if v != nil && duckdbViaText(col) {
		return QuoteString(textOf(v)) + "::" + col.DeclType
	}
	return FormatValue(col, v)
}

func (DuckDB) SincePredicate(quotedColumn string) string {
	return quotedColumn + " >= ?"
}

func (DuckDB) SinceArg(t time.Time) any { return t.UTC() }

func (DuckDB) ListObjects(ctx context.Context, conn *sql.Conn) ([]Object, error) {
	return queryObjects(ctx, conn,
		`SELECT 'view', view_name, sql FROM duckdb_views() WHERE schema_name = 'main' AND NOT internal AND NOT temporary ORDER BY view_oid`)
}

func queryObjects(ctx context.Context, conn *sql.Conn, query string) ([]Object, error) {
	rows, err := conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list views and triggers: %w", err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []Object
	for rows.Next() {
		var o Object
		if err := rows.Scan(&o.Type, &o.Name, &o.CreateSQL); err != nil {
			return nil, fmt.Errorf("failed to scan schema object: %w", err)
		}
		o.CreateSQL = normalizeDDL(o.CreateSQL)
		out = append(out, o)
	}
	return out, rows.Err()
}

func queryStrings(ctx context.Context, conn *sql.Conn, query string, args ...any) ([]string, error) {
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close() //nolint:errcheck // read-only

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
