// Package idempotency implements the Processed-Events Store: the
// per-consumer ledger that turns the outbox's at-least-once delivery into
// exactly-once effect.
package idempotency

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Entry is one processed-events row: presence means the handler for
// ConsumerName completed successfully for EventID; absence means it never
// has.
type Entry struct {
	EventID     uuid.UUID
	ConsumerName string
	EventType   string
	ProcessedAt time.Time
}

// Store is the port the consumer runner checks before and records into
// after running a handler.
type Store interface {
	// Get returns the entry for (eventID, consumerName), or (nil, nil) if
	// absent, absence is a normal outcome, not an error.
	Get(ctx context.Context, eventID uuid.UUID, consumerName string) (*Entry, error)
	// SetIfAbsent atomically inserts the entry unless one already exists
	// for (eventID, consumerName); inserted reports which happened. This
	// is the tie-break primitive exactly-once processing needs: when two
	// deliveries of the same event race two workers of the same consumer,
	// exactly one SetIfAbsent call observes inserted=true.
	SetIfAbsent(ctx context.Context, entry Entry) (inserted bool, existing *Entry, err error)
}
