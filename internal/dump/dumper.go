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
	"time"

	// Registered drivers for the two supported dialects.
	_ "github.com/duckdb/duckdb-go/v2"
	_ "github.com/mattn/go-sqlite3"
	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/Kurisu21/webeenthere-sub006/internal/logging"
)

// Config configures a Dumper.
type Config struct {
	// Driver selects the dialect: sqlite or duckdb.
	Driver string
	// Path is the database file.
	Path string
	// ConnectTimeout bounds acquiring and pinging a connection.
	ConnectTimeout time.Duration
	// BatchSize splits a table's INSERT every N rows; 0 keeps one statement
	// per table.
	BatchSize int
	// BreakerThreshold is the number of consecutive connection failures
	// that opens the circuit breaker.
	BreakerThreshold uint32
	// BreakerTimeout is how long the breaker stays open.
	BreakerTimeout time.Duration
}

// DefaultConfig returns defaults for a SQLite database at path.
func DefaultConfig(path string) Config {
	return Config{
		Driver:           "sqlite",
		Path:             path,
		ConnectTimeout:   10 * time.Second,
		BreakerThreshold: 3,
		BreakerTimeout:   30 * time.Second,
	}
}

// Dumper dumps and restores one database.
type Dumper struct {
	cfg     Config
	dialect Dialect
	db      *sql.DB
	breaker *gobreaker.CircuitBreaker[*sql.Conn]
	now     func() time.Time
}

// Open creates a Dumper for cfg. The database is not contacted until the
// first operation.
func Open(cfg Config) (*Dumper, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(dialect.Driver(), dialect.DSN(cfg.Path))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return New(db, dialect, cfg), nil
}

// New wraps an existing handle.
func New(db *sql.DB, dialect Dialect, cfg Config) *Dumper {
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 3
	}
	if cfg.BreakerTimeout <= 0 {
		cfg.BreakerTimeout = 30 * time.Second
	}

	d := &Dumper{cfg: cfg, dialect: dialect, db: db, now: time.Now}
	d.breaker = gobreaker.NewCircuitBreaker[*sql.Conn](gobreaker.Settings{
		Name:        "dump-" + dialect.Name(),
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Database circuit breaker state changed")
		},
	})
	return d
}

// Dialect returns the dialect in use.
func (d *Dumper) Dialect() Dialect { return d.dialect }

// Path returns the database file the Dumper targets.
func (d *Dumper) Path() string { return d.cfg.Path }

// Close releases the underlying handle.
func (d *Dumper) Close() error {
	return d.db.Close()
}

// Ping checks that a connection can be obtained.
func (d *Dumper) Ping(ctx context.Context) error {
	conn, err := d.conn(ctx)
	if err != nil {
		return err
	}
	return conn.Close()
}

// conn acquires a dedicated connection, bounded by ConnectTimeout and
// guarded by the breaker.
func (d *Dumper) conn(ctx context.Context) (*sql.Conn, error) {
	conn, err := d.breaker.Execute(func() (*sql.Conn, error) {
		pingCtx, cancel := context.WithTimeoutCause(ctx, d.cfg.ConnectTimeout, ErrConnectTimeout)
		defer cancel()

		c, err := d.db.Conn(pingCtx)
		if err != nil {
			return nil, connErr(pingCtx, err)
		}
		if err := c.PingContext(pingCtx); err != nil {
			c.Close() //nolint:errcheck // discarding a broken connection
			return nil, connErr(pingCtx, err)
		}
		return c, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %w", ErrConnection, err)
		}
		return nil, err
	}
	return conn, nil
}

func connErr(ctx context.Context, err error) error {
	if cause := context.Cause(ctx); errors.Is(cause, ErrConnectTimeout) {
		return fmt.Errorf("%w: %w", ErrConnection, cause)
	}
	return fmt.Errorf("%w: %w", ErrConnection, err)
}
