// Package ledgertest collects in-memory fakes for the ledger domain's
// storage ports. They back both the package-level unit tests and the
// behavior-level scenarios under features/, standing in for Postgres so
// posting, reversal, and period close can be exercised without a database.
// The transactional-race and lock behaviors those fakes cannot model
// (concurrent dedup, FOR UPDATE, the balance upsert) are covered instead
// by the testcontainers-backed suites in internal/platform/consumer and
// internal/ledger/postgres.
package ledgertest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Haleralex/ledgerflow/internal/ledger/coa"
	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
	"github.com/Haleralex/ledgerflow/internal/ledger/periods"
	"github.com/Haleralex/ledgerflow/internal/ledger/posting"
	"github.com/Haleralex/ledgerflow/internal/platform/events"
	"github.com/Haleralex/ledgerflow/internal/platform/outbox"
)

var (
	_ posting.JournalRepository = (*JournalStore)(nil)
	_ posting.BalanceRepository = (*BalanceStore)(nil)
	_ periods.Repository        = (*PeriodStore)(nil)
	_ periods.DLQChecker        = (*DLQChecker)(nil)
	_ coa.Validator             = (*AccountValidator)(nil)
	_ outbox.Store              = (*OutboxStore)(nil)
)

// JournalStore is an in-memory stand-in for posting.JournalRepository.
type JournalStore struct {
	mu       sync.Mutex
	entries  map[string]domain.JournalEntry
	lines    map[string][]domain.JournalLine
	bySource map[string]string // sourceEventID -> entryID, mirrors the unique index on source_event_id
}

func NewJournalStore() *JournalStore {
	return &JournalStore{
		entries:  make(map[string]domain.JournalEntry),
		lines:    make(map[string][]domain.JournalLine),
		bySource: make(map[string]string),
	}
}

func (s *JournalStore) InsertEntry(ctx context.Context, entry domain.JournalEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.bySource[entry.SourceEventID]; ok {
		return &domain.DuplicateEvent{EventID: existing}
	}
	s.entries[entry.ID] = entry
	s.bySource[entry.SourceEventID] = entry.ID
	return nil
}

func (s *JournalStore) InsertLines(ctx context.Context, lines []domain.JournalLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(lines) == 0 {
		return nil
	}
	entryID := lines[0].JournalEntryID
	s.lines[entryID] = append(s.lines[entryID], lines...)
	return nil
}

func (s *JournalStore) Get(ctx context.Context, entryID string) (*domain.JournalEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[entryID]
	if !ok {
		return nil, domain.NewReversalError(domain.ErrEntryNotFound)
	}
	return &e, nil
}

func (s *JournalStore) Lines(ctx context.Context, entryID string) ([]domain.JournalLine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.JournalLine, len(s.lines[entryID]))
	copy(out, s.lines[entryID])
	return out, nil
}

// EntryCount reports how many entries have been committed, for assertions
// that a replay produced no new row.
func (s *JournalStore) EntryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// EntryReversing returns the entry whose ReversesEntryID points at
// originalID, and false if none does yet.
func (s *JournalStore) EntryReversing(originalID string) (domain.JournalEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.entries {
		if e.ReversesEntryID != nil && *e.ReversesEntryID == originalID {
			return e, true
		}
	}
	return domain.JournalEntry{}, false
}

// BalanceStore is an in-memory stand-in for posting.BalanceRepository.
type BalanceStore struct {
	mu   sync.Mutex
	rows map[string]*domain.AccountBalance // key: tenantID|periodID|accountCode|currency
}

func NewBalanceStore() *BalanceStore {
	return &BalanceStore{rows: make(map[string]*domain.AccountBalance)}
}

func balanceKey(tenantID, periodID, accountCode string, currency domain.Currency) string {
	return tenantID + "|" + periodID + "|" + accountCode + "|" + string(currency)
}

func (s *BalanceStore) UpsertRollup(ctx context.Context, tenantID, periodID string, currency domain.Currency, delta domain.LineDelta, journalEntryID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := balanceKey(tenantID, periodID, delta.AccountRef, currency)
	row, ok := s.rows[key]
	if !ok {
		row = &domain.AccountBalance{TenantID: tenantID, PeriodID: periodID, AccountCode: delta.AccountRef, Currency: currency}
		s.rows[key] = row
	}
	row.DebitTotalMinor += delta.DebitMinor
	row.CreditTotalMinor += delta.CreditMinor
	row.NetBalanceMinor = row.DebitTotalMinor - row.CreditTotalMinor
	row.LastJournalEntryID = journalEntryID
	row.UpdatedAt = time.Now().UTC()
	return nil
}

// Get returns the roll-up row for (periodID, accountCode, currency) within
// tenantID, or nil if no posting has touched it yet.
func (s *BalanceStore) Get(tenantID, periodID, accountCode string, currency domain.Currency) *domain.AccountBalance {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.rows[balanceKey(tenantID, periodID, accountCode, currency)]
	if !ok {
		return nil
	}
	cp := *row
	return &cp
}

// PeriodStore is an in-memory stand-in for periods.Repository.
type PeriodStore struct {
	mu      sync.Mutex
	periods map[string]*domain.Period
	// entries/lines feed CurrencySnapshots and UnbalancedEntries the same
	// way a real query over journal_entries/journal_lines would.
	entries map[string][]domain.JournalEntry
	lines   map[string][]domain.JournalLine
}

func NewPeriodStore() *PeriodStore {
	return &PeriodStore{
		periods: make(map[string]*domain.Period),
		entries: make(map[string][]domain.JournalEntry),
		lines:   make(map[string][]domain.JournalLine),
	}
}

// AddPeriod registers a period and returns it for convenience in table-driven setup.
func (s *PeriodStore) AddPeriod(p domain.Period) *domain.Period {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := p
	s.periods[p.ID] = &cp
	return &cp
}

// RecordPosting feeds one committed entry and its lines into the period's
// snapshot/unbalanced-entry bookkeeping, mirroring what committing through
// JournalStore against the real schema would make visible to a close query.
func (s *PeriodStore) RecordPosting(periodID string, entry domain.JournalEntry, lines []domain.JournalLine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[periodID] = append(s.entries[periodID], entry)
	s.lines[periodID] = append(s.lines[periodID], lines...)
}

func (s *PeriodStore) FindByDate(ctx context.Context, tenantID string, date time.Time) (*domain.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.periods {
		if p.TenantID == tenantID && p.Contains(date) {
			cp := *p
			return &cp, nil
		}
	}
	return nil, domain.NewGovernanceError(domain.ErrNoPeriodForDate, date.Format("2006-01-02"))
}

func (s *PeriodStore) Get(ctx context.Context, periodID string) (*domain.Period, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.periods[periodID]
	if !ok {
		return nil, domain.NewGovernanceError(domain.ErrPeriodNotFound, periodID)
	}
	cp := *p
	return &cp, nil
}

func (s *PeriodStore) LockForClose(ctx context.Context, periodID string) (*domain.Period, error) {
	return s.Get(ctx, periodID)
}

func (s *PeriodStore) CurrencySnapshots(ctx context.Context, periodID string) ([]domain.CurrencySnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byCurrency := make(map[domain.Currency]*domain.CurrencySnapshot)
	entryIDs := make(map[domain.Currency]map[string]bool)
	for _, e := range s.entries[periodID] {
		snap, ok := byCurrency[e.Currency]
		if !ok {
			snap = &domain.CurrencySnapshot{Currency: e.Currency}
			byCurrency[e.Currency] = snap
			entryIDs[e.Currency] = make(map[string]bool)
		}
		if !entryIDs[e.Currency][e.ID] {
			entryIDs[e.Currency][e.ID] = true
			snap.JournalCount++
		}
	}
	entryCurrency := make(map[string]domain.Currency)
	for _, e := range s.entries[periodID] {
		entryCurrency[e.ID] = e.Currency
	}
	for _, l := range s.lines[periodID] {
		currency := entryCurrency[l.JournalEntryID]
		snap := byCurrency[currency]
		if snap == nil {
			continue
		}
		snap.LineCount++
		snap.TotalDebitsMinor += l.DebitMinor
		snap.TotalCreditsMinor += l.CreditMinor
	}

	out := make([]domain.CurrencySnapshot, 0, len(byCurrency))
	for _, snap := range byCurrency {
		out = append(out, *snap)
	}
	return out, nil
}

func (s *PeriodStore) InsertSnapshots(ctx context.Context, tenantID, periodID string, snapshots []domain.CurrencySnapshot) error {
	return nil
}

func (s *PeriodStore) MarkClosed(ctx context.Context, periodID, closedBy, closeReason, closeHash string, closedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.periods[periodID]
	if !ok {
		return domain.NewGovernanceError(domain.ErrPeriodNotFound, periodID)
	}
	at := closedAt
	p.ClosedAt = &at
	p.ClosedBy = closedBy
	p.CloseReason = closeReason
	p.CloseHash = closeHash
	return nil
}

func (s *PeriodStore) UnbalancedEntries(ctx context.Context, periodID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	totals := make(map[string][2]int64) // entryID -> [debit, credit]
	for _, l := range s.lines[periodID] {
		t := totals[l.JournalEntryID]
		t[0] += l.DebitMinor
		t[1] += l.CreditMinor
		totals[l.JournalEntryID] = t
	}
	var bad []string
	for id, t := range totals {
		if t[0] != t[1] {
			bad = append(bad, id)
		}
	}
	return bad, nil
}

// AccountValidator is an in-memory stand-in for coa.Validator.
type AccountValidator struct {
	mu       sync.Mutex
	accounts map[string]domain.Account // key: tenantID/code
}

func NewAccountValidator() *AccountValidator {
	return &AccountValidator{accounts: make(map[string]domain.Account)}
}

func (v *AccountValidator) AddAccount(a domain.Account) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.accounts[a.TenantID+"/"+a.Code] = a
}

func (v *AccountValidator) AssertActive(ctx context.Context, tenantID, code string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	a, ok := v.accounts[tenantID+"/"+code]
	if !ok {
		return domain.NewGovernanceError(domain.ErrAccountNotFound, tenantID+"/"+code)
	}
	if !a.IsActive {
		return domain.NewGovernanceError(domain.ErrAccountInactive, tenantID+"/"+code)
	}
	return nil
}

// OutboxStore is an in-memory stand-in for outbox.Store.
type OutboxStore struct {
	mu   sync.Mutex
	rows []outboxRow
	seq  int64
}

type outboxRow struct {
	env         events.Envelope
	publishedAt *time.Time
}

func NewOutboxStore() *OutboxStore {
	return &OutboxStore{}
}

func (s *OutboxStore) Append(ctx context.Context, env events.Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.rows = append(s.rows, outboxRow{env: env})
	return nil
}

// FetchUnpublished returns up to limit unpublished rows, satisfying
// outbox.Store for callers that exercise the drain loop against this fake
// instead of a live Postgres.
func (s *OutboxStore) FetchUnpublished(ctx context.Context, limit int) ([]outbox.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []outbox.Row
	for i, r := range s.rows {
		if r.publishedAt != nil {
			continue
		}
		out = append(out, outbox.Row{
			Seq:           int64(i + 1),
			EventID:       r.env.EventID,
			EventType:     r.env.EventType,
			AggregateType: r.env.AggregateType,
			AggregateID:   r.env.AggregateID,
			PayloadJSON:   r.env.Payload,
			OccurredAt:    r.env.OccurredAt,
			Envelope:      r.env,
		})
		if len(out) == limit {
			break
		}
	}
	return out, nil
}

// MarkPublished flips the row for eventID to published.
func (s *OutboxStore) MarkPublished(ctx context.Context, eventID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, r := range s.rows {
		if r.env.EventID == eventID {
			now := time.Now().UTC()
			s.rows[i].publishedAt = &now
			return nil
		}
	}
	return nil
}

// Unpublished returns the envelopes of every row not yet marked published,
// for assertions that don't need the full outbox.Row shape.
func (s *OutboxStore) Unpublished() []events.Envelope {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []events.Envelope
	for _, r := range s.rows {
		if r.publishedAt == nil {
			out = append(out, r.env)
		}
	}
	return out
}

// DLQChecker is an in-memory stand-in for periods.DLQChecker.
type DLQChecker struct {
	mu         sync.Mutex
	unresolved bool
}

func NewDLQChecker() *DLQChecker { return &DLQChecker{} }

func (c *DLQChecker) SetUnresolved(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unresolved = v
}

func (c *DLQChecker) Unresolved(ctx context.Context, tenantID string, from, to time.Time) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unresolved, nil
}
