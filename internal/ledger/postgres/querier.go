// Package postgres implements every ledger repository port against
// PostgreSQL via pgx, plus the transaction manager the services run their
// multi-statement work through.
package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/ledgerflow/internal/platform/dbctx"
)

// psql is the shared squirrel statement builder for every repository in
// this package, all against PostgreSQL's $N placeholder style.
var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// querier is the subset of pgxpool.Pool / pgx.Tx every repository needs;
// repositories take ctx and resolve to whichever is live via dbctx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func injectTx(ctx context.Context, tx pgx.Tx) context.Context { return dbctx.WithTx(ctx, tx) }

func extractTx(ctx context.Context) pgx.Tx { return dbctx.Tx(ctx) }

func hasTx(ctx context.Context) bool { return dbctx.HasTx(ctx) }

func querierFrom(ctx context.Context, pool *pgxpool.Pool) querier {
	if tx := extractTx(ctx); tx != nil {
		return tx
	}
	return pool
}

// Postgres error codes relevant to conflict and retry classification.
const (
	pgUniqueViolation      = "23505"
	pgForeignKeyViolation  = "23503"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

func isPgError(err error, code string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == code
}

// isUniqueViolation reports whether err is a unique-constraint violation,
// optionally narrowed to a constraint name, used to tell "this event_id
// was already posted" apart from an unrelated unique conflict.
func isUniqueViolation(err error, constraintName string) bool {
	pgErr, ok := err.(*pgconn.PgError)
	if !ok || pgErr.Code != pgUniqueViolation {
		return false
	}
	if constraintName == "" {
		return true
	}
	return strings.Contains(pgErr.ConstraintName, constraintName)
}

func isSerializationFailure(err error) bool {
	return isPgError(err, pgSerializationFailure) || isPgError(err, pgDeadlockDetected)
}

// isRetryableError classifies connection and serialization failures as
// safe to retry; anything else is left to its caller's own judgment.
func isRetryableError(err error) bool {
	if isSerializationFailure(err) {
		return true
	}
	if pgErr, ok := err.(*pgconn.PgError); ok {
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return false
}
