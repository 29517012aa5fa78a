// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package dump

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// FormatValue renders a scanned DuckDB scalar as a SQL literal for col.
// Types outside the native scalar set never reach it; they are read as text
// and cast back (see DuckDB.Literal).
func FormatValue(col Column, v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		if col.Kind == KindText {
			return QuoteString(string(x))
		}
		return formatDuckDBBlob(x)
	case string:
		return QuoteString(x)
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int16:
		return strconv.FormatInt(int64(x), 10)
	case int8:
		return strconv.FormatInt(int64(x), 10)
	case int:
		return strconv.Itoa(x)
	case uint64:
		return strconv.FormatUint(x, 10)
	case uint32:
		return strconv.FormatUint(uint64(x), 10)
	case uint16:
		return strconv.FormatUint(uint64(x), 10)
	case uint8:
		return strconv.FormatUint(uint64(x), 10)
	case float64:
		return formatFloat(x, 64)
	case float32:
		return formatFloat(float64(x), 32)
	default:
		return QuoteString(textOf(x))
	}
}

func formatDuckDBBlob(b []byte) string {
	var sb strings.Builder
	sb.Grow(len(b)*4 + 10)
	sb.WriteByte('\'')
	for _, c := range b {
		fmt.Fprintf(&sb, `\x%02X`, c)
	}
	sb.WriteString("'::BLOB")
	return sb.String()
}

func textOf(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "'NaN'"
	case math.IsInf(f, 1):
		return "'Infinity'"
	case math.IsInf(f, -1):
		return "'-Infinity'"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}
