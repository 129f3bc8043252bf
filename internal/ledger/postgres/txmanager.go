package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TxManager runs a function inside a single pgx transaction, injecting it
// into the context so every repository called from fn picks it up via
// extractTx instead of hitting the pool directly. Nested calls (a service
// calling another service that also opens a TxManager.Execute) reuse the
// already-open transaction rather than attempting a true nested one, which
// pgx does not support.
type TxManager struct {
	pool *pgxpool.Pool
	opts pgx.TxOptions
}

// NewTxManager returns a manager running at the default ReadCommitted
// isolation level.
func NewTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
}

// NewSerializableTxManager returns a manager at Serializable isolation, for
// the period-close engine's pre-flight-then-seal transaction.
func NewSerializableTxManager(pool *pgxpool.Pool) *TxManager {
	return &TxManager{pool: pool, opts: pgx.TxOptions{IsoLevel: pgx.Serializable}}
}

// Execute runs fn inside a transaction: commit on nil error, rollback on
// error or panic (re-panicking after rollback).
func (m *TxManager) Execute(ctx context.Context, fn func(context.Context) error) error {
	if hasTx(ctx) {
		return fn(ctx)
	}

	tx, err := m.pool.BeginTx(ctx, m.opts)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback(ctx)
			panic(r)
		}
	}()

	txCtx := injectTx(ctx, tx)

	if err := fn(txCtx); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// ExecuteWithResult is Execute plus a typed return value, for services
// that need to hand back an entity built inside the transaction.
func ExecuteWithResult[T any](ctx context.Context, m *TxManager, fn func(context.Context) (T, error)) (T, error) {
	var result T
	err := m.Execute(ctx, func(txCtx context.Context) error {
		var fnErr error
		result, fnErr = fn(txCtx)
		return fnErr
	})
	return result, err
}

// ExecuteWithRetry retries Execute on serialization/deadlock failures,
// the only failures it is safe to blindly re-run a whole transaction for.
func (m *TxManager) ExecuteWithRetry(ctx context.Context, maxRetries int, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := m.Execute(ctx, fn)
		if err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return err
		}
		lastErr = err
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}
