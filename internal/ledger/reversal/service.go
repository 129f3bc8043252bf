// Package reversal implements the Reversal Service: given an
// original journal entry, produces its inverse entry posted into the
// currently open period under the reversal's own "now" date.
package reversal

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
	"github.com/Haleralex/ledgerflow/internal/ledger/periods"
	"github.com/Haleralex/ledgerflow/internal/ledger/posting"
	"github.com/Haleralex/ledgerflow/internal/platform/events"
	"github.com/Haleralex/ledgerflow/internal/platform/outbox"
)

// Service implements Reverse. As with posting.Service, duplicate detection
// against processed-events ("gl-reversal") happens one layer up in the
// consumer runner.
type Service struct {
	journals   posting.JournalRepository
	balances   posting.BalanceRepository
	governance *periods.Governance
	outbox     outbox.Store
	producer   string
}

func NewService(journals posting.JournalRepository, balances posting.BalanceRepository, governance *periods.Governance, outboxStore outbox.Store, producer string) *Service {
	return &Service{journals: journals, balances: balances, governance: governance, outbox: outboxStore, producer: producer}
}

// Reverse creates the inverse entry for req.OriginalEntryID, posting at
// now. correlationID ties the emitted gl.entry.reversed event back to the
// reversal-request event that triggered it.
func (s *Service) Reverse(ctx context.Context, tenantID, reversalEventID, correlationID string, req domain.ReversalRequest, now time.Time) (*domain.JournalEntry, error) {
	original, err := s.journals.Get(ctx, req.OriginalEntryID)
	if err != nil {
		return nil, err
	}
	if original.ReversesEntryID != nil {
		return nil, domain.NewReversalError(domain.ErrIsAReversal)
	}

	originalLines, err := s.journals.Lines(ctx, original.ID)
	if err != nil {
		return nil, fmt.Errorf("load lines for entry %s: %w", original.ID, err)
	}

	// The reversal books into whatever period is open *now*, never
	// retroactively into the original's (possibly since-closed) period.
	period, err := s.governance.ValidatePostingDate(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	reversalID := uuid.NewString()
	reversalEntry := domain.JournalEntry{
		ID:              reversalID,
		TenantID:        tenantID,
		PeriodID:        period.ID,
		SourceModule:    original.SourceModule,
		SourceEventID:   reversalEventID,
		SourceSubject:   "REVERSAL: " + original.SourceSubject,
		PostedAt:        now,
		Currency:        original.Currency,
		Description:     fmt.Sprintf("Reversal of journal entry %s", original.ID),
		ReferenceType:   original.ReferenceType,
		ReferenceID:     original.ReferenceID,
		ReversesEntryID: &original.ID,
	}
	if err := s.journals.InsertEntry(ctx, reversalEntry); err != nil {
		return nil, fmt.Errorf("insert reversal entry: %w", err)
	}

	reversalLines := make([]domain.JournalLine, len(originalLines))
	for i, line := range originalLines {
		memo := line.Memo
		if memo != "" {
			memo = "REVERSAL: " + memo
		}
		reversalLines[i] = domain.JournalLine{
			ID:             uuid.NewString(),
			JournalEntryID: reversalID,
			LineNo:         line.LineNo,
			AccountRef:     line.AccountRef,
			DebitMinor:     line.CreditMinor,
			CreditMinor:    line.DebitMinor,
			Memo:           memo,
		}
	}
	if err := s.journals.InsertLines(ctx, reversalLines); err != nil {
		return nil, fmt.Errorf("insert reversal lines: %w", err)
	}

	for _, delta := range domain.GroupLinesByAccount(reversalLines) {
		if err := s.balances.UpsertRollup(ctx, tenantID, period.ID, original.Currency, delta, reversalID); err != nil {
			return nil, fmt.Errorf("upsert reversal balance roll-up for %s: %w", delta.AccountRef, err)
		}
	}

	reversed := domain.EntryReversed{
		OriginalEntryID: original.ID,
		ReversalEntryID: reversalID,
		Currency:        original.Currency,
		PostedAt:        now,
	}
	env, err := events.New(domain.EventTypeEntryReversed, s.producer, tenantID, "journal_entry", reversalID, correlationID, reversed)
	if err != nil {
		return nil, fmt.Errorf("build gl.entry.reversed envelope: %w", err)
	}
	if err := s.outbox.Append(ctx, env); err != nil {
		return nil, fmt.Errorf("append gl.entry.reversed to outbox: %w", err)
	}

	return &reversalEntry, nil
}
