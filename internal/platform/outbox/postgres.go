package outbox

import (
	"context"
	"fmt"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/ledgerflow/internal/platform/dbctx"
	"github.com/Haleralex/ledgerflow/internal/platform/events"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

// PostgresStore implements Store over the events_outbox table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore builds a store over pool. Append is only transactionally
// safe when ctx carries the same transaction the caller's domain mutation
// used, pass a context produced by the ledger package's TxManager.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) exec(ctx context.Context, sql string, args ...any) (int64, error) {
	if tx := dbctx.Tx(ctx); tx != nil {
		tag, err := tx.Exec(ctx, sql, args...)
		return tag.RowsAffected(), err
	}
	tag, err := s.pool.Exec(ctx, sql, args...)
	return tag.RowsAffected(), err
}

func (s *PostgresStore) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := dbctx.Tx(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return s.pool.Query(ctx, sql, args...)
}

// Append inserts env as a new events_outbox row. Must be called inside the
// same transaction as the domain change it describes, that atomicity is
// the outbox pattern's whole point.
func (s *PostgresStore) Append(ctx context.Context, env events.Envelope) error {
	causationID := ""
	if env.CausationID != nil {
		causationID = env.CausationID.String()
	}

	query, args, err := psql.Insert("events_outbox").
		Columns(
			"event_id", "event_type", "schema_version", "occurred_at", "producer",
			"tenant_id", "aggregate_type", "aggregate_id", "correlation_id", "trace_id",
			"causation_id", "payload_json",
		).
		Values(
			env.EventID, env.EventType, env.SchemaVersion, env.OccurredAt, env.Producer,
			env.TenantID, env.AggregateType, env.AggregateID, env.CorrelationID, env.TraceID,
			nullableString(causationID), env.Payload,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build outbox insert: %w", err)
	}

	if _, err := s.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("append outbox row for event %s: %w", env.EventID, err)
	}
	return nil
}

// FetchUnpublished returns up to limit unpublished rows, locked FOR UPDATE
// SKIP LOCKED so multiple publisher instances can run without contending
// on the same rows. Must be called from inside the transaction the
// publisher's tick owns, so MarkPublished commits (or abandons) the whole
// batch atomically with the lock's lifetime.
func (s *PostgresStore) FetchUnpublished(ctx context.Context, limit int) ([]Row, error) {
	query, args, err := psql.Select(
		"seq", "event_id", "event_type", "schema_version", "occurred_at", "producer",
		"tenant_id", "aggregate_type", "aggregate_id", "correlation_id", "trace_id",
		"causation_id", "payload_json", "published_at",
	).
		From("events_outbox").
		Where(squirrel.Eq{"published_at": nil}).
		OrderBy("occurred_at ASC", "seq ASC").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build outbox fetch: %w", err)
	}

	rows, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("fetch unpublished outbox rows: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var (
			r             Row
			eventType     string
			producer      string
			tenantID      string
			aggregateType string
			aggregateID   string
			correlationID string
			traceID       string
			causationID   *string
			payload       []byte
		)
		if err := rows.Scan(
			&r.Seq, &r.EventID, &eventType, &r.Envelope.SchemaVersion, &r.OccurredAt, &producer,
			&tenantID, &aggregateType, &aggregateID, &correlationID, &traceID,
			&causationID, &payload, &r.PublishedAt,
		); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		r.EventType = eventType
		r.AggregateType = aggregateType
		r.AggregateID = aggregateID
		r.PayloadJSON = payload

		r.Envelope.EventID = r.EventID
		r.Envelope.EventType = eventType
		r.Envelope.Producer = producer
		r.Envelope.TenantID = tenantID
		r.Envelope.AggregateType = aggregateType
		r.Envelope.AggregateID = aggregateID
		r.Envelope.CorrelationID = correlationID
		r.Envelope.TraceID = traceID
		r.Envelope.OccurredAt = r.OccurredAt
		r.Envelope.Payload = payload
		if causationID != nil && *causationID != "" {
			if id, err := uuid.Parse(*causationID); err == nil {
				r.Envelope.CausationID = &id
			}
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox rows: %w", err)
	}
	return out, nil
}

// MarkPublished flips published_at from null to non-null for eventID. A
// crash between Publish and this call simply means the row is retried
// next tick, harmless because consumers dedupe on event_id.
func (s *PostgresStore) MarkPublished(ctx context.Context, eventID uuid.UUID) error {
	query, args, err := psql.Update("events_outbox").
		Set("published_at", time.Now().UTC()).
		Where(squirrel.Eq{"event_id": eventID, "published_at": nil}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build outbox mark-published: %w", err)
	}
	if _, err := s.exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark outbox row %s published: %w", eventID, err)
	}
	return nil
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

var _ Store = (*PostgresStore)(nil)
