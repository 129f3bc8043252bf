package posting

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/Haleralex/ledgerflow/internal/ledger/coa"
	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
	"github.com/Haleralex/ledgerflow/internal/ledger/periods"
)

// Service implements the transactional phase of Journal Posting and
// drives the Balance Roll-up that follows it. Duplicate detection
// against processed-events happens one layer up, in the consumer runner;
// by the time Post runs, the caller has already confirmed this event_id is
// new for consumer "gl-posting".
type Service struct {
	journals   JournalRepository
	balances   BalanceRepository
	governance *periods.Governance
	coa        coa.Validator
}

func NewService(journals JournalRepository, balances BalanceRepository, governance *periods.Governance, validator coa.Validator) *Service {
	return &Service{journals: journals, balances: balances, governance: governance, coa: validator}
}

// Post runs the transactional phase of posting (processed-events
// recording happens one layer up, in the consumer runner).
// Callers must invoke Post inside the same transaction the consumer runner
// opened, so a failure here rolls back cleanly alongside the dedup record.
func (s *Service) Post(ctx context.Context, tenantID, sourceModule, sourceEventID, sourceSubject string, req domain.PostingRequest) (*domain.JournalEntry, error) {
	prepared, err := validateAndScale(req)
	if err != nil {
		return nil, err
	}

	period, err := s.governance.ValidatePostingDate(ctx, tenantID, req.PostingDate)
	if err != nil {
		return nil, err
	}

	if err := s.assertAccountsActive(ctx, tenantID, prepared); err != nil {
		return nil, err
	}

	entry := domain.JournalEntry{
		ID:            uuid.NewString(),
		TenantID:      tenantID,
		PeriodID:      period.ID,
		SourceModule:  sourceModule,
		SourceEventID: sourceEventID,
		SourceSubject: sourceSubject,
		PostedAt:      req.PostingDate,
		Currency:      req.Currency,
		Description:   req.Description,
		ReferenceType: string(req.SourceDocType),
		ReferenceID:   req.SourceDocID,
	}
	if err := s.journals.InsertEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("insert journal entry: %w", err)
	}

	lines := make([]domain.JournalLine, len(prepared))
	for i, p := range prepared {
		lines[i] = domain.JournalLine{
			ID:             uuid.NewString(),
			JournalEntryID: entry.ID,
			LineNo:         i + 1,
			AccountRef:     p.AccountRef,
			DebitMinor:     p.DebitMinor,
			CreditMinor:    p.CreditMinor,
			Memo:           p.Memo,
		}
	}
	if err := s.journals.InsertLines(ctx, lines); err != nil {
		return nil, fmt.Errorf("insert journal lines: %w", err)
	}

	if err := s.applyBalanceDeltas(ctx, tenantID, period.ID, entry.ID, req.Currency, lines); err != nil {
		return nil, err
	}

	return &entry, nil
}

// assertAccountsActive deduplicates the lookup set so a posting with five
// lines against two distinct accounts only checks each account once.
func (s *Service) assertAccountsActive(ctx context.Context, tenantID string, lines []preparedLine) error {
	seen := make(map[string]bool, len(lines))
	for _, line := range lines {
		if seen[line.AccountRef] {
			continue
		}
		seen[line.AccountRef] = true
		if err := s.coa.AssertActive(ctx, tenantID, line.AccountRef); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) applyBalanceDeltas(ctx context.Context, tenantID, periodID, entryID string, currency domain.Currency, lines []domain.JournalLine) error {
	for _, delta := range domain.GroupLinesByAccount(lines) {
		if err := s.balances.UpsertRollup(ctx, tenantID, periodID, currency, delta, entryID); err != nil {
			return fmt.Errorf("upsert balance roll-up for account %s: %w", delta.AccountRef, err)
		}
	}
	return nil
}
