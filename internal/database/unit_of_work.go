package database

import (
	"context"
	"database/sql"

	"github.com/uptrace/bun"
)

type txKey struct{}

// UnitOfWork runs a function inside a single database transaction.
type UnitOfWork struct {
	db *bun.DB
}

// NewUnitOfWork builds a unit of work on the writer connection.
func NewUnitOfWork(conns *Connections) *UnitOfWork {
	return &UnitOfWork{db: conns.Writer}
}

// RunInTx begins a transaction, exposes it through the context passed to fn, and commits
// when fn returns nil. Any error or panic rolls the transaction back. Nested calls reuse
// the outer transaction.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return fn(ctx)
	}
	return u.db.RunInTx(ctx, &sql.TxOptions{}, func(ctx context.Context, tx bun.Tx) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// Executor returns the transaction carried by ctx, or db when there is none.
func Executor(ctx context.Context, db *bun.DB) bun.IDB {
	if tx, ok := ctx.Value(txKey{}).(bun.Tx); ok {
		return tx
	}
	return db
}

// InTx reports whether ctx carries a transaction opened by RunInTx.
func InTx(ctx context.Context) bool {
	_, ok := ctx.Value(txKey{}).(bun.Tx)
	return ok
}
