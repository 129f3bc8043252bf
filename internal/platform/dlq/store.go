// Package dlq implements the Dead-Letter Queue: the terminal record
// for an event a consumer gave up on. It is an operator surface, not a
// replay mechanism, nothing in this package automatically retries a DLQ
// row.
package dlq

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Row is one failed_events record. EventID is unique; a second Record call
// for the same event updates Error, RetryCount, and FailedAt in place
// rather than creating a duplicate row.
type Row struct {
	EventID      uuid.UUID
	Subject      string
	TenantID     string
	EnvelopeJSON []byte
	Error        string
	ReasonCode   string // domain.Kind.String(), e.g. "validation", "governance", "transient"
	RetryCount   int
	FailedAt     time.Time
}

// Store is the port the consumer runner writes to when it exhausts retry
// or classifies an error as non-recoverable.
type Store interface {
	// Record upserts a DLQ row for eventID: insert on first failure, bump
	// RetryCount and overwrite Error/FailedAt on every subsequent one.
	Record(ctx context.Context, row Row) error
	// Unresolved reports whether any DLQ row's envelope carries a
	// posting_date within [from, to] for tenantID, used by the period
	// close engine's pre-flight check ("no posting-request events for
	// dates in this period remain unprocessed in the DLQ").
	Unresolved(ctx context.Context, tenantID string, from, to time.Time) (bool, error)
}
