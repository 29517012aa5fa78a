// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package dump

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// NoChangesMarker prefixes the comment written by an incremental dump that
// found no qualifying rows.
const NoChangesMarker = "-- NO CHANGES since "

// Result describes a written script.
type Result struct {
	Size          int64    `json:"size"`
	Tables        int      `json:"tables"`
	Rows          int64    `json:"rows"`
	Objects       int      `json:"objects,omitempty"`
	HasChanges    bool     `json:"hasChanges"`
	SkippedTables []string `json:"skippedTables,omitempty"`
}

// Dump writes a full script of every table to outPath.
func (d *Dumper) Dump(ctx context.Context, outPath string) (*Result, error) {
	return d.writeScript(ctx, outPath, func(ctx context.Context, conn *sql.Conn, w *bufio.Writer, res *Result) error {
		tables, err := d.dialect.ListTables(ctx, conn)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "-- Full dump, %d tables\n\n", len(tables))
		d.writeForeignKeys(w, false)

		for _, t := range tables {
			fmt.Fprintf(w, "DROP TABLE IF EXISTS %s;\n", QuoteIdent(t.Name))
			fmt.Fprintf(w, "%s;\n", t.CreateSQL)
			for _, idx := range t.Indexes {
				fmt.Fprintf(w, "%s;\n", idx)
			}

			n, err := d.writeRows(ctx, conn, w, t, d.dialect.InsertVerb(false), "", nil)
			if err != nil {
				return err
			}
			w.WriteString("\n") //nolint:errcheck // surfaced by Flush
			res.Tables++
			res.Rows += n
		}

		objects, err := d.dialect.ListObjects(ctx, conn)
		if err != nil {
			return err
		}
		for _, o := range objects {
			fmt.Fprintf(w, "DROP %s IF EXISTS %s;\n", strings.ToUpper(o.Type), QuoteIdent(o.Name))
			fmt.Fprintf(w, "%s;\n", o.CreateSQL)
			res.Objects++
		}

		d.writeForeignKeys(w, true)
		res.HasChanges = true
		return nil
	})
}

// DumpIncremental writes upserts for rows whose timestamp columns are at or
// after since. Tables without a timestamp column are skipped.
func (d *Dumper) DumpIncremental(ctx context.Context, outPath string, since time.Time) (*Result, error) {
	return d.writeScript(ctx, outPath, func(ctx context.Context, conn *sql.Conn, w *bufio.Writer, res *Result) error {
		tables, err := d.dialect.ListTables(ctx, conn)
		if err != nil {
			return err
		}

		fmt.Fprintf(w, "-- Incremental dump since %s\n\n", since.UTC().Format(time.RFC3339))
		d.writeForeignKeys(w, false)

		for _, t := range tables {
			plan := PlanIncremental(t)
			if plan.Action == ActionSkip {
				logging.Ctx(ctx).Debug().Str("table", t.Name).Str("reason", plan.Reason).
					Msg("Table skipped by incremental dump")
				res.SkippedTables = append(res.SkippedTables, t.Name)
				continue
			}

			preds := make([]string, len(plan.TimestampColumns))
			args := make([]any, len(plan.TimestampColumns))
			for i, col := range plan.TimestampColumns {
				preds[i] = d.dialect.SincePredicate(QuoteIdent(col))
				args[i] = d.dialect.SinceArg(since)
			}

			n, err := d.writeRows(ctx, conn, w, t, d.dialect.InsertVerb(true), strings.Join(preds, " OR "), args)
			if err != nil {
				return err
			}
			res.Tables++
			res.Rows += n
		}

		if len(res.SkippedTables) > 0 {
			logging.Ctx(ctx).Info().Strs("tables", res.SkippedTables).
				Msg("Tables without timestamp columns are not covered by incremental dumps")
		}

		res.HasChanges = res.Rows > 0
		if !res.HasChanges {
			fmt.Fprintf(w, "%s%s\n", NoChangesMarker, since.UTC().Format(time.RFC3339))
		}
		d.writeForeignKeys(w, true)
		return nil
	})
}

type scriptBody func(ctx context.Context, conn *sql.Conn, w *bufio.Writer, res *Result) error

// writeScript handles the file and connection lifecycle shared by both dump
// modes. A failed or empty script is removed.
//
//nolint:gosec // G304: outPath is built by the backup manager
func (d *Dumper) writeScript(ctx context.Context, outPath string, body scriptBody) (res *Result, err error) {
	conn, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close() //nolint:errcheck // returned to pool

	f, err := os.OpenFile(outPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, fmt.Errorf("failed to create dump file: %w", err)
	}
	defer func() {
		if err != nil {
			os.Remove(outPath) //nolint:errcheck // Best effort cleanup on error
		}
	}()

	w := bufio.NewWriterSize(f, 256<<10)
	fmt.Fprintf(w, "-- Database backup (%s)\n-- Generated %s\n", d.dialect.Name(), d.now().UTC().Format(time.RFC3339))

	res = &Result{}
	if err := body(ctx, conn, w, res); err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, err
	}
	if err := w.Flush(); err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to write dump: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("failed to sync dump: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close dump: %w", err)
	}

	info, err := os.Stat(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat dump: %w", err)
	}
	if info.Size() == 0 {
		return nil, ErrEmptyOutput
	}
	res.Size = info.Size()
	return res, nil
}

func (d *Dumper) writeForeignKeys(w io.StringWriter, enabled bool) {
	if stmt := d.dialect.ForeignKeys(enabled); stmt != "" {
		w.WriteString(stmt + ";\n") //nolint:errcheck // surfaced by Flush
	}
}

// writeRows streams the selected rows of t as INSERT statements, starting a
// new statement every BatchSize rows when set.
func (d *Dumper) writeRows(ctx context.Context, conn *sql.Conn, w *bufio.Writer, t Table, verb, where string, args []any) (int64, error) {
	colNames := make([]string, len(t.Columns))
	selects := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		colNames[i] = QuoteIdent(c.Name)
		selects[i] = d.dialect.SelectColumn(c)
	}
	columnList := strings.Join(colNames, ", ")

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selects, ", "), QuoteIdent(t.Name))
	if where != "" {
		query += " WHERE " + where
	}

	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to read table %s: %w", t.Name, err)
	}
	defer rows.Close() //nolint:errcheck // read-only

	values := make([]any, len(t.Columns))
	ptrs := make([]any, len(t.Columns))
	for i := range values {
		ptrs[i] = &values[i]
	}

	header := fmt.Sprintf("%s %s (%s) VALUES\n", verb, QuoteIdent(t.Name), columnList)
	var count, inBatch int64
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, fmt.Errorf("failed to scan row of %s: %w", t.Name, err)
		}

		if inBatch == 0 {
			w.WriteString(header) //nolint:errcheck // surfaced by Flush
		} else {
			w.WriteString(",\n") //nolint:errcheck // surfaced by Flush
		}

		w.WriteByte('(') //nolint:errcheck // surfaced by Flush
		for i, v := range values {
			if i > 0 {
				w.WriteString(", ") //nolint:errcheck // surfaced by Flush
			}
			w.WriteString(d.dialect.Literal(t.Columns[i], v)) //nolint:errcheck // surfaced by Flush
		}
		w.WriteByte(')') //nolint:errcheck // surfaced by Flush

		count++
		inBatch++
		if d.cfg.BatchSize > 0 && inBatch >= int64(d.cfg.BatchSize) {
			w.WriteString(";\n") //nolint:errcheck // surfaced by Flush
			inBatch = 0
		}
	}
	if err := rows.Err(); err != nil {
		return count, fmt.Errorf("failed to read table %s: %w", t.Name, err)
	}
	if inBatch > 0 {
		w.WriteString(";\n") //nolint:errcheck // surfaced by Flush
	}
	return count, nil
}
