package querylog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // SQLite driver for database/sql

	"github.com/angeloszaimis/ormlog/internal/eventlog"
)

// DriverName is the database/sql driver registered by modernc.org/sqlite.
const DriverName = "sqlite"

// DB runs statements against a *sql.DB and reports each one to an event
// logger. A failure to log fails the statement.
type DB struct {
	db            *sql.DB
	log           eventlog.Logger
	slowThreshold time.Duration
}

// New wraps db. Statements running longer than slowThreshold are reported as
// slow queries; a zero threshold disables slow query reporting.
func New(db *sql.DB, log eventlog.Logger, slowThreshold time.Duration) *DB {
	return &DB{
		db:            db,
		log:           log,
		slowThreshold: slowThreshold,
	}
}

// Open connects to a SQLite database and verifies the connection.
func Open(ctx context.Context, dsn string, log eventlog.Logger, slowThreshold time.Duration) (*DB, error) {
	db, err := sql.Open(DriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	if err := log.Log(ctx, eventlog.LevelInfo, "connected to "+dsn); err != nil {
		_ = db.Close()
		return nil, err
	}

	return New(db, log, slowThreshold), nil
}

func (d *DB) SQL() *sql.DB {
	return d.db
}

func (d *DB) Logger() eventlog.Logger {
	return d.log
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := d.run(ctx, query, args, func() error {
		var err error
		res, err = d.db.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		return nil, err
	}

	return res, nil
}

// QueryContext reports the time until the driver returned the first result
// set. The caller owns the returned rows.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	var rows *sql.Rows
	err := d.run(ctx, query, args, func() error {
		var err error
		rows, err = d.db.QueryContext(ctx, query, args...)
		return err
	})
	if err != nil {
		if rows != nil {
			_ = rows.Close()
		}
		return nil, err
	}

	return rows, nil
}

func (d *DB) run(ctx context.Context, query string, args []any, exec func() error) error {
	if err := d.log.LogQuery(ctx, query, args); err != nil {
		return err
	}

	start := time.Now()
	execErr := exec()
	elapsed := time.Since(start)

	if execErr != nil {
		if err := d.log.LogQueryError(ctx, execErr.Error(), query, args); err != nil {
			return errors.Join(execErr, err)
		}
		return execErr
	}

	if d.slowThreshold > 0 && elapsed > d.slowThreshold {
		if err := d.log.LogQuerySlow(ctx, elapsed, query, args); err != nil {
			return err
		}
	}

	return nil
}
