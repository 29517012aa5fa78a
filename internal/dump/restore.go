// backupd - Database and File Backup Service
// Copyright 2026 The webeenthere Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/Kurisu21/webeenthere-sub006

package dump

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// RestoreResult reports how much of a script was applied.
type RestoreResult struct {
	Statements int `json:"statements"`
}

// Restore replays the script at scriptPath in order on one connection. On a
// statement failure the returned error is a *StatementError and the result
// counts the statements that were applied before it.
//
//nolint:gosec // G304: scriptPath is an extracted artifact path
func (d *Dumper) Restore(ctx context.Context, scriptPath string) (*RestoreResult, error) {
	f, err := os.Open(scriptPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open script: %w", err)
	}
	defer f.Close() //nolint:errcheck // read-only

	if err := d.dialect.EnsureTarget(d.cfg.Path); err != nil {
		return nil, fmt.Errorf("failed to prepare database file: %w", err)
	}

	conn, err := d.conn(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Close() //nolint:errcheck // returned to pool

	// A script that aborts midway never reaches its own re-enable statement,
	// and the setting would otherwise stick to the pooled connection.
	if stmt := d.dialect.ForeignKeys(true); stmt != "" {
		defer func() {
			if _, err := conn.ExecContext(context.WithoutCancel(ctx), stmt); err != nil {
				logging.Warn().Err(err).Msg("Failed to re-enable foreign keys after restore")
			}
		}()
	}

	res := &RestoreResult{}
	sc := NewStatementScanner(f)
	for {
		stmt, err := sc.Next()
		if errors.Is(err, io.EOF) {
			return res, nil
		}
		if err != nil {
			return res, fmt.Errorf("failed to read script: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return res, &StatementError{Index: res.Statements, Statement: stmt, Err: context.Cause(ctx)}
		}
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			return res, &StatementError{Index: res.Statements, Statement: stmt, Err: err}
		}
		res.Statements++
	}
}

// StatementScanner splits a SQL script into statements on semicolons that
// are outside quotes and comments. Comments are dropped from the output.
// Inside CREATE TRIGGER only a semicolon following END closes the
// statement, the same rule sqlite3_complete applies.
type StatementScanner struct {
	r   *bufio.Reader
	buf strings.Builder

	word strings.Builder
	head []string // first keywords of the current statement
	last string   // last keyword, cleared by any other token
}

// NewStatementScanner reads statements from r.
func NewStatementScanner(r io.Reader) *StatementScanner {
	return &StatementScanner{r: bufio.NewReaderSize(r, 64<<10)}
}

type scanState int

const (
	stateCode scanState = iota
	stateSingle
	stateDouble
	stateLineComment
	stateBlockComment
)

// Next returns the next non-empty statement without its terminating
// semicolon, or io.EOF when the script is exhausted. A trailing statement
// without a semicolon is returned as well.
func (s *StatementScanner) Next() (string, error) {
	s.reset()
	state := stateCode

	for {
		c, err := s.r.ReadByte()
		if errors.Is(err, io.EOF) {
			if state == stateSingle || state == stateDouble {
				return "", fmt.Errorf("unterminated quoted literal at end of script")
			}
			if stmt := strings.TrimSpace(s.buf.String()); stmt != "" {
				return stmt, nil
			}
			return "", io.EOF
		}
		if err != nil {
			return "", err
		}

		switch state {
		case stateCode:
			if isWordByte(c) {
				s.word.WriteByte(c)
				s.buf.WriteByte(c)
				continue
			}
			s.endWord()

			if c == ';' {
				if s.inTrigger() && s.last != "END" {
					s.buf.WriteByte(c)
					s.last = ""
					continue
				}
				if stmt := strings.TrimSpace(s.buf.String()); stmt != "" {
					return stmt, nil
				}
				s.reset()
				continue
			}

			switch c {
			case '\'':
				state = stateSingle
			case '"':
				state = stateDouble
			case '-':
				if s.peek('-') {
					s.r.ReadByte() //nolint:errcheck // peeked
					state = stateLineComment
					continue
				}
			case '/':
				if s.peek('*') {
					s.r.ReadByte() //nolint:errcheck // peeked
					state = stateBlockComment
					continue
				}
			}
			if !isSpace(c) {
				s.last = ""
			}
			s.buf.WriteByte(c)

		case stateSingle, stateDouble:
			s.buf.WriteByte(c)
			quote := byte('\'')
			if state == stateDouble {
				quote = '"'
			}
			if c == quote {
				// A doubled quote is an escaped quote and keeps us inside.
				if s.peek(quote) {
					s.r.ReadByte() //nolint:errcheck // peeked
					s.buf.WriteByte(quote)
					continue
				}
				state = stateCode
			}

		case stateLineComment:
			if c == '\n' {
				s.buf.WriteByte('\n')
				state = stateCode
			}

		case stateBlockComment:
			if c == '*' && s.peek('/') {
				s.r.ReadByte() //nolint:errcheck // peeked
				s.buf.WriteByte(' ')
				state = stateCode
			}
		}
	}
}

func (s *StatementScanner) reset() {
	s.buf.Reset()
	s.word.Reset()
	s.head = s.head[:0]
	s.last = ""
}

func (s *StatementScanner) endWord() {
	if s.word.Len() == 0 {
		return
	}
	w := strings.ToUpper(s.word.String())
	s.word.Reset()
	if len(s.head) < 3 {
		s.head = append(s.head, w)
	}
	s.last = w
}

// inTrigger reports whether the statement opened with
// CREATE [TEMP|TEMPORARY] TRIGGER.
func (s *StatementScanner) inTrigger() bool {
	if len(s.head) < 2 || s.head[0] != "CREATE" {
		return false
	}
	if s.head[1] == "TRIGGER" {
		return true
	}
	return (s.head[1] == "TEMP" || s.head[1] == "TEMPORARY") && len(s.head) == 3 && s.head[2] == "TRIGGER"
}

func isWordByte(c byte) bool {
	return c == '_' || c == '$' || c >= 0x80 ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v'
}

func (s *StatementScanner) peek(want byte) bool {
	b, err := s.r.Peek(1)
	return err == nil && b[0] == want
}
