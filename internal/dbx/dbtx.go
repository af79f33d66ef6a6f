// Package dbx provides tiny DB abstractions shared by repositories:
// a minimal interface (DBTX) implemented by both *sql.DB and *sql.Tx,
// a helper to run functions inside a transaction, and bounded pool setup.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DBTX is the subset of database/sql used by our repos.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx begins a transaction, runs fn with a transactional handle, and then
// commits on success or rolls back on error/panic. Panics are rethrown.
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    return m.Users(tx).Deactivate(ctx, id, now)
//	})
func WithTx(ctx context.Context, db *sql.DB, opts *sql.TxOptions, fn func(ctx context.Context, tx DBTX) error) (err error) {
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
			return
		}
		err = tx.Commit()
	}()

	err = fn(ctx, tx)
	return err
}

// PoolConfig bounds the connection pool. Callers that find the pool saturated
// block inside database/sql until a connection frees up or their context
// expires.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Open opens a database handle with the given driver and applies pool limits.
// It does not ping; use PingContext when a live connection is required.
func Open(driver, dsn string, pc PoolConfig) (*sql.DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	Configure(db, pc)
	return db, nil
}

// Configure applies pool limits to an existing handle.
func Configure(db *sql.DB, pc PoolConfig) {
	if pc.MaxOpenConns > 0 {
		db.SetMaxOpenConns(pc.MaxOpenConns)
	}
	if pc.MaxIdleConns > 0 {
		db.SetMaxIdleConns(pc.MaxIdleConns)
	}
	if pc.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(pc.ConnMaxLifetime)
	}
}
