// Package dbctx carries an in-flight pgx transaction through context.Context
// so every store (outbox, idempotency, DLQ, ledger repositories) resolves
// to the same transaction a service's TxManager opened, instead of each
// package needing its own private key type and silently missing each
// other's transactions.
package dbctx

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type txKey struct{}

// WithTx returns a copy of ctx carrying tx.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

// Tx returns the transaction carried by ctx, or nil if none.
func Tx(ctx context.Context) pgx.Tx {
	tx, _ := ctx.Value(txKey{}).(pgx.Tx)
	return tx
}

// HasTx reports whether ctx carries a transaction.
func HasTx(ctx context.Context) bool {
	return Tx(ctx) != nil
}
