package idempotency

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/ledgerflow/internal/platform/dbctx"
)

// PostgresStore implements Store over the processed_events table.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := dbctx.Tx(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return s.pool.QueryRow(ctx, sql, args...)
}

// Get returns (nil, nil) when no row exists, absence is not an error.
func (s *PostgresStore) Get(ctx context.Context, eventID uuid.UUID, consumerName string) (*Entry, error) {
	var e Entry
	err := s.queryRow(ctx, `
		SELECT event_id, consumer_name, event_type, processed_at
		FROM processed_events
		WHERE event_id = $1 AND consumer_name = $2
	`, eventID, consumerName).Scan(&e.EventID, &e.ConsumerName, &e.EventType, &e.ProcessedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// SetIfAbsent uses a CTE to attempt the insert and return the winning row
// in a single round trip: the insert's ON CONFLICT DO NOTHING means a
// racing second writer's insert affects zero rows, and the trailing SELECT
// picks up whichever row actually landed, its own if it won the race, the
// other worker's if it lost. That is the tie-break semantics require.
func (s *PostgresStore) SetIfAbsent(ctx context.Context, entry Entry) (bool, *Entry, error) {
	var winner Entry
	var won bool
	err := s.queryRow(ctx, `
		WITH inserted AS (
			INSERT INTO processed_events (event_id, consumer_name, event_type, processed_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (event_id, consumer_name) DO NOTHING
			RETURNING event_id, consumer_name, event_type, processed_at
		)
		SELECT event_id, consumer_name, event_type, processed_at, true AS won FROM inserted
		UNION ALL
		SELECT event_id, consumer_name, event_type, processed_at, false AS won
		FROM processed_events
		WHERE event_id = $1 AND consumer_name = $2
		AND NOT EXISTS (SELECT 1 FROM inserted)
	`, entry.EventID, entry.ConsumerName, entry.EventType, entry.ProcessedAt).
		Scan(&winner.EventID, &winner.ConsumerName, &winner.EventType, &winner.ProcessedAt, &won)

	if err != nil {
		return false, nil, err
	}

	return won, &winner, nil
}

var _ Store = (*PostgresStore)(nil)
