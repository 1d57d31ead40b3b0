// Package sqlite adapts a modernc SQLite database to the retrying query
// methods the repositories use with dbpg.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/wb-go/wbf/retry"
	_ "modernc.org/sqlite"
)

type DB struct {
	db *sql.DB
}

func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma %q: %w", pragma, err)
		}
	}

	// One writer at a time; SQLite serialises writes anyway.
	db.SetMaxOpenConns(1)

	return &DB{db: db}, nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

func (d *DB) DB() *sql.DB {
	return d.db
}

func (d *DB) ExecWithRetry(ctx context.Context, strategy retry.Strategy, query string, args ...interface{}) (sql.Result, error) {
	var result sql.Result
	err := retry.Do(func() error {
		var err error
		result, err = d.db.ExecContext(ctx, query, args...)
		return err
	}, strategy)
	return result, err
}

func (d *DB) QueryRowWithRetry(ctx context.Context, strategy retry.Strategy, query string, args ...interface{}) (*sql.Row, error) {
	var row *sql.Row
	err := retry.Do(func() error {
		row = d.db.QueryRowContext(ctx, query, args...)
		return row.Err()
	}, strategy)
	return row, err
}

func (d *DB) QueryWithRetry(ctx context.Context, strategy retry.Strategy, query string, args ...interface{}) (*sql.Rows, error) {
	var rows *sql.Rows
	err := retry.Do(func() error {
		var err error
		rows, err = d.db.QueryContext(ctx, query, args...)
		return err
	}, strategy)
	return rows, err
}
