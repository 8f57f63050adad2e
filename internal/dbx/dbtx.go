// Package dbx holds the little database/sql glue the Postgres repositories
// share. Repositories take a DBTX so the same code runs on a pool or inside
// a transaction.
package dbx

import (
	"context"
	"database/sql"
	"fmt"
)

// DBTX is satisfied by *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// WithTx runs fn inside a transaction. fn's error or panic rolls it back;
// a panic is re-raised after the rollback. The returned error is fn's
// error or the commit error.
//
// Task transitions lock the row before checking its state:
//
//	err := dbx.WithTx(ctx, db, nil, func(ctx context.Context, tx dbx.DBTX) error {
//	    var state string
//	    if err := tx.QueryRowContext(ctx, lockTask, id).Scan(&state); err != nil {
//	        return err
//	    }
//	    res, err := tx.ExecContext(ctx, finishTask, id, state)
//	    ...
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

	return fn(ctx, tx)
}

// AffectedRows returns res.RowsAffected, wrapping the driver error. A
// conditional UPDATE that matched nothing yields 0.
func AffectedRows(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected error: %w", err)
	}
	return n, nil
}
