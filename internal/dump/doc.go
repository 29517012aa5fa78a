// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

/*
Package dump serializes a relational database into a replayable SQL script
and replays such scripts.

# Script Layout

A full dump is laid out as:

	-- header comments
	PRAGMA foreign_keys = OFF;           (dialects that support it)
	DROP TABLE IF EXISTS "t";
	CREATE TABLE "t" (...);
	CREATE INDEX ...;
	INSERT INTO "t" ("a", "b") VALUES
	(...),
	(...);
	...
	DROP VIEW IF EXISTS "v";
	CREATE VIEW "v" AS ...;
	DROP TRIGGER IF EXISTS "tr";
	CREATE TRIGGER "tr" ... BEGIN ...; END;
	PRAGMA foreign_keys = ON;

Each table gets one multi-row INSERT unless Config.BatchSize splits it.
Views and triggers follow the data, so triggers do not fire while rows are
replayed.

# Literals

SQLite renders every value itself through quote(), so a value keeps its
storage class and bytes whatever the column's declared type says. DuckDB
values of plain scalar types are formatted from their Go values; every
other type (DECIMAL, temporal types, UUID, JSON, nested types) is read as
DuckDB's own VARCHAR rendering and written back as a cast to the declared
type.

# Incremental Dumps

DumpIncremental plans every table before reading it. A table's columns are
classified into ColumnKind values; tables with at least one KindTimestamp
column are included and filtered to rows where any timestamp column is at
or after the watermark, compared with millisecond precision. Tables
without one are skipped and reported in Result.SkippedTables. Skipped
tables are a known coverage gap: they are never silently upgraded to a
full dump. Included rows are written as upserts without table
re-creation. When no row qualifies the script holds a "-- NO CHANGES
since" marker and Result.HasChanges is false.

# Connections

Every operation runs on a single pooled connection so that connection
scoped settings such as foreign_keys apply to the whole script.
Acquisition is bounded by Config.ConnectTimeout and guarded by a circuit
breaker, so an unreachable database fails fast with ErrConnection instead
of stalling a backup.

# Restore

Restore splits the script into statements with a quote and comment aware
scanner and executes them strictly in order. The first failing statement
aborts the replay; the returned *StatementError carries its index, and
statements before it remain applied.
*/
package dump
