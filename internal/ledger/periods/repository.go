// Package periods implements Period Governance and the Period Close
// Engine: finding the period that covers a posting date, rejecting
// postings into a closed period, and the atomic, idempotent close command
// itself.
package periods

import (
	"context"
	"time"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

// Repository is the port over the accounting_periods table.
type Repository interface {
	// FindByDate returns the period covering date for tenantID, or
	// domain.ErrNoPeriodForDate.
	FindByDate(ctx context.Context, tenantID string, date time.Time) (*domain.Period, error)
	// Get returns the period row without locking, for read-only status
	// queries outside of the close transaction.
	Get(ctx context.Context, periodID string) (*domain.Period, error)
	// LockForClose returns the period row locked FOR UPDATE, for use inside
	// the close transaction only.
	LockForClose(ctx context.Context, periodID string) (*domain.Period, error)
	// CurrencySnapshots computes, for every currency with committed entries
	// in periodID, the aggregate counts and totals the close hash folds in.
	CurrencySnapshots(ctx context.Context, periodID string) ([]domain.CurrencySnapshot, error)
	// InsertSnapshots persists the per-currency period_summary_snapshot rows,
	// keyed by (tenant_id, period_id, currency).
	InsertSnapshots(ctx context.Context, tenantID, periodID string, snapshots []domain.CurrencySnapshot) error
	// MarkClosed sets the close-lifecycle fields on periodID.
	MarkClosed(ctx context.Context, periodID, closedBy, closeReason, closeHash string, closedAt time.Time) error
	// UnbalancedEntries returns the ids of any journal entry in periodID
	// whose lines do not balance per currency, should never be non-empty
	// if posting's invariant held, checked again defensively at close time.
	UnbalancedEntries(ctx context.Context, periodID string) ([]string, error)
}
