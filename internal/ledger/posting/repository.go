package posting

import (
	"context"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

// JournalRepository is the port over journal_entries/journal_lines.
type JournalRepository interface {
	// InsertEntry inserts entry, failing with a recognizable conflict error
	// if source_event_id collides with an existing row (concurrent
	// duplicate delivery of the same posting-request event).
	InsertEntry(ctx context.Context, entry domain.JournalEntry) error
	// InsertLines bulk-inserts lines, already carrying 1-based LineNo.
	InsertLines(ctx context.Context, lines []domain.JournalLine) error
	// Get loads an entry by id, for the reversal service's original-entry
	// lookup.
	Get(ctx context.Context, entryID string) (*domain.JournalEntry, error)
	// Lines loads every line belonging to entryID, ordered by line_no.
	Lines(ctx context.Context, entryID string) ([]domain.JournalLine, error)
}

// BalanceRepository is the port over account_balances.
type BalanceRepository interface {
	// UpsertRollup applies delta's debit/credit to the
	// (tenantID, periodID, delta.AccountRef, currency) row in one
	// statement, creating it on first contribution.
	UpsertRollup(ctx context.Context, tenantID, periodID string, currency domain.Currency, delta domain.LineDelta, journalEntryID string) error
}
