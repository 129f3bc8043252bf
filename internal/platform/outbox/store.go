// Package outbox implements the transactional outbox: the only
// supported way a service emits an event, and the drain loop that
// publishes unpublished rows to the bus.
package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/ledgerflow/internal/platform/events"
)

// Row is one outbox entry: seq is a monotone local integer so
// rows can be ordered without relying on clock precision; event_id is
// globally unique and doubles as the idempotency key downstream.
type Row struct {
	Seq           int64
	EventID       uuid.UUID
	EventType     string
	AggregateType string
	AggregateID   string
	PayloadJSON   []byte
	OccurredAt    time.Time
	PublishedAt   *time.Time
	Envelope      events.Envelope
}

// Store is the port every producer writes through and the drain loop
// reads from. Append must be called with a context carrying the same
// database transaction as the domain change it describes, that
// atomicity is the whole point of the pattern.
type Store interface {
	// Append inserts env as a new outbox row. Must run inside the
	// caller's own transaction.
	Append(ctx context.Context, env events.Envelope) error
	// FetchUnpublished returns up to limit rows with published_at IS NULL,
	// ordered by occurred_at ascending then seq, locking them FOR UPDATE
	// SKIP LOCKED so multiple publisher instances never double-publish.
	FetchUnpublished(ctx context.Context, limit int) ([]Row, error)
	// MarkPublished flips published_at from null to non-null for the
	// given event id. Called once per row, never undone.
	MarkPublished(ctx context.Context, eventID uuid.UUID) error
}
