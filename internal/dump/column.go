// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package dump

import "strings"

// ColumnKind is the coarse type class of a column, derived from its
// declared type.
type ColumnKind int

const (
	KindOther ColumnKind = iota
	KindText
	KindNumeric
	KindBlob
	KindTimestamp
	KindBool
)

func (k ColumnKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindNumeric:
		return "numeric"
	case KindBlob:
		return "blob"
	case KindTimestamp:
		return "timestamp"
	case KindBool:
		return "bool"
	default:
		return "other"
	}
}

// Classify maps a declared column type to a ColumnKind. Matching is by
// substring, in the spirit of SQLite type affinity, and covers the DuckDB
// type names as well. Timestamp detection runs first so DATETIME is not
// mistaken for anything else; a bare TIME (time of day) is not a timestamp.
func Classify(declType string) ColumnKind {
	t := strings.ToUpper(strings.TrimSpace(declType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = strings.TrimSpace(t[:i])
	}

	switch {
	case t == "":
		return KindOther
	case strings.Contains(t, "TIMESTAMP"), strings.Contains(t, "DATETIME"), t == "DATE":
		return KindTimestamp
	case strings.HasPrefix(t, "BOOL"):
		return KindBool
	case strings.HasPrefix(t, "INTERVAL"):
		return KindOther
	case strings.Contains(t, "INT"):
		return KindNumeric
	case containsAny(t, "CHAR", "CLOB", "TEXT", "STRING", "UUID", "JSON"):
		return KindText
	case containsAny(t, "BLOB", "BYTEA", "BINARY"):
		return KindBlob
	case containsAny(t, "REAL", "FLOA", "DOUB", "NUMERIC", "DECIMAL"):
		return KindNumeric
	default:
		return KindOther
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Column describes one table column.
type Column struct {
	Name     string
	DeclType string
	Kind     ColumnKind
}

// Table is the introspected definition of one table.
type Table struct {
	Name      string
	CreateSQL string
	Columns   []Column
	Indexes   []string
}

// TimestampColumns returns the names of the table's timestamp columns.
func (t Table) TimestampColumns() []string {
	var cols []string
	for _, c := range t.Columns {
		if c.Kind == KindTimestamp {
			cols = append(cols, c.Name)
		}
	}
	return cols
}

// Object is a view or trigger, recreated after all tables by a full dump.
type Object struct {
	Type      string
	Name      string
	CreateSQL string
}

// Action is the incremental decision for a table.
type Action int

const (
	ActionSkip Action = iota
	ActionInclude
)

func (a Action) String() string {
	if a == ActionInclude {
		return "include"
	}
	return "skip"
}

// TablePlan is the incremental plan for one table.
type TablePlan struct {
	Table            Table
	Action           Action
	TimestampColumns []string
	Reason           string
}

// PlanIncremental decides whether a table can take part in an incremental
// dump. Only tables with a timestamp column can be filtered by watermark.
func PlanIncremental(t Table) TablePlan {
	cols := t.TimestampColumns()
	if len(cols) == 0 {
		return TablePlan{Table: t, Action: ActionSkip, Reason: "no timestamp column"}
	}
	return TablePlan{Table: t, Action: ActionInclude, TimestampColumns: cols}
}
