package dlq

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/ledgerflow/internal/platform/dbctx"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// PostgresStore implements Store over the failed_events table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) exec(ctx context.Context, sql string, args ...any) error {
	if tx := dbctx.Tx(ctx); tx != nil {
		_, err := tx.Exec(ctx, sql, args...)
		return err
	}
	_, err := s.pool.Exec(ctx, sql, args...)
	return err
}

func (s *PostgresStore) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := dbctx.Tx(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.pool.QueryRow(ctx, sql, args...)
}

// Record upserts a failed_events row keyed by event_id: the first failure
// inserts with retry_count 1, every subsequent one bumps retry_count and
// overwrites error/failed_at in place, matching the original's
// insert-or-bump DLQ semantics across its ar/gl/payments services.
func (s *PostgresStore) Record(ctx context.Context, row Row) error {
	query, args, err := psql.Insert("failed_events").
		Columns("event_id", "subject", "tenant_id", "envelope_json", "error", "reason_code", "retry_count", "failed_at").
		Values(row.EventID, row.Subject, row.TenantID, row.EnvelopeJSON, row.Error, row.ReasonCode, 1, row.FailedAt).
		Suffix(`ON CONFLICT (event_id) DO UPDATE SET
			error = EXCLUDED.error,
			reason_code = EXCLUDED.reason_code,
			retry_count = failed_events.retry_count + 1,
			failed_at = EXCLUDED.failed_at`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build dlq upsert: %w", err)
	}
	if err := s.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("record dlq row for event %s: %w", row.EventID, err)
	}
	return nil
}

// Unresolved reports whether any DLQ row for tenantID still carries an
// envelope whose payload posting_date falls within [from, to]. The check
// is deliberately conservative: it matches on the envelope's JSON payload
// rather than joining against journal_entries, since a DLQ'd posting event
// by definition never made it into the ledger.
func (s *PostgresStore) Unresolved(ctx context.Context, tenantID string, from, to time.Time) (bool, error) {
	query, args, err := psql.Select("1").
		From("failed_events").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where("(envelope_json->'payload'->>'posting_date')::date BETWEEN ? AND ?", from, to).
		Limit(1).
		ToSql()
	if err != nil {
		return false, fmt.Errorf("build dlq unresolved check: %w", err)
	}

	var found int
	err = s.queryRow(ctx, query, args...).Scan(&found)
	if err == pgx.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check dlq unresolved rows: %w", err)
	}
	return true, nil
}

var _ Store = (*PostgresStore)(nil)
