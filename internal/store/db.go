package store

import (
	"context"
	"database/sql"
)

// DBTX abstracts the database access layer. It is implemented by both
// *sql.DB and *sql.Tx, allowing store code to work with either a connection
// pool or a transaction.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// TxRunner runs a function inside a database transaction. Services depend on
// this interface rather than *sql.DB directly so tests can substitute a fake
// that invokes the function without a real database.
type TxRunner interface {
	RunInTransaction(ctx context.Context, fn TxFn) error
}

// dbTxRunner is the production TxRunner backed by a *sql.DB.
type dbTxRunner struct {
	db *sql.DB
}

// NewTxRunner wraps db in a TxRunner.
func NewTxRunner(db *sql.DB) TxRunner {
	return &dbTxRunner{db: db}
}

func (r *dbTxRunner) RunInTransaction(ctx context.Context, fn TxFn) error {
	return RunInTransaction(ctx, r.db, fn)
}
