package posting

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
	"github.com/Haleralex/ledgerflow/internal/ledger/periods"
	"github.com/Haleralex/ledgerflow/internal/ledgertest"
)

const testTenant = "tenant-acme"

func openFebruaryPeriod(t *testing.T, store *ledgertest.PeriodStore) *domain.Period {
	t.Helper()
	return store.AddPeriod(domain.Period{
		ID:          "period-2024-02",
		TenantID:    testTenant,
		PeriodStart: mustDate(t, "2024-02-01"),
		PeriodEnd:   mustDate(t, "2024-02-29"),
	})
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func cashAndRevenueAccounts() *ledgertest.AccountValidator {
	v := ledgertest.NewAccountValidator()
	v.AddAccount(domain.Account{TenantID: testTenant, Code: "1100", Type: domain.AccountTypeAsset, NormalBalance: domain.NormalBalanceDebit, IsActive: true})
	v.AddAccount(domain.Account{TenantID: testTenant, Code: "4000", Type: domain.AccountTypeRevenue, NormalBalance: domain.NormalBalanceCredit, IsActive: true})
	return v
}

func newTestService(t *testing.T) (*Service, *ledgertest.JournalStore, *ledgertest.BalanceStore, *ledgertest.PeriodStore) {
	t.Helper()
	periodStore := ledgertest.NewPeriodStore()
	openFebruaryPeriod(t, periodStore)
	journals := ledgertest.NewJournalStore()
	balances := ledgertest.NewBalanceStore()
	governance := periods.NewGovernance(periodStore)
	svc := NewService(journals, balances, governance, cashAndRevenueAccounts())
	return svc, journals, balances, periodStore
}

// S1: post a balanced two-line entry, then replay the same source event id.
func TestPost_ThenReplay_OneEntryOnly(t *testing.T) {
	svc, journals, balances, periodStore := newTestService(t)
	req := domain.PostingRequest{
		PostingDate:   mustDate(t, "2024-02-15"),
		Currency:      "USD",
		SourceDocType: domain.SourceDocARInvoice,
		SourceDocID:   "inv-1",
		Lines: []domain.PostingLineInput{
			{AccountRef: "1100", Debit: "100.00"},
			{AccountRef: "4000", Credit: "100.00"},
		},
	}

	entry, err := svc.Post(context.Background(), testTenant, "ar", "event-1", "corr-1", req)
	require.NoError(t, err)
	require.NotNil(t, entry)

	lines, err := journals.Lines(context.Background(), entry.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)

	periodStore.RecordPosting(entry.PeriodID, *entry, lines)

	cash := balances.Get(testTenant, entry.PeriodID, "1100", "USD")
	require.NotNil(t, cash)
	assert.Equal(t, int64(10000), cash.DebitTotalMinor)
	assert.Equal(t, int64(0), cash.CreditTotalMinor)

	revenue := balances.Get(testTenant, entry.PeriodID, "4000", "USD")
	require.NotNil(t, revenue)
	assert.Equal(t, int64(10000), revenue.CreditTotalMinor)

	// Replaying the same source_event_id is exactly the duplicate-insert
	// path the consumer runner's idempotency check is meant to prevent
	// from ever reaching Post twice for real; InsertEntry's own unique
	// constraint on source_event_id is the second line of defense.
	_, err = svc.Post(context.Background(), testTenant, "ar", "event-1", "corr-1", req)
	require.Error(t, err)
	var dup *domain.DuplicateEvent
	assert.ErrorAs(t, err, &dup)
	assert.Equal(t, 1, journals.EntryCount(), "a replayed event must not produce a second entry")
}

// S2: an unbalanced entry is rejected before any row is written.
func TestPost_RejectsUnbalancedEntry(t *testing.T) {
	svc, journals, _, _ := newTestService(t)
	req := domain.PostingRequest{
		PostingDate:   mustDate(t, "2024-02-15"),
		Currency:      "USD",
		SourceDocType: domain.SourceDocARInvoice,
		SourceDocID:   "inv-2",
		Lines: []domain.PostingLineInput{
			{AccountRef: "1100", Debit: "100.00"},
			{AccountRef: "4000", Credit: "99.99"},
		},
	}

	_, err := svc.Post(context.Background(), testTenant, "ar", "event-2", "corr-2", req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not balance")
	assert.Equal(t, 0, journals.EntryCount())
}

// S3: posting into a closed period is rejected.
func TestPost_RejectsPostingIntoClosedPeriod(t *testing.T) {
	svc, journals, _, periodStore := newTestService(t)
	closedAt := time.Now().UTC()
	period := periodStore.AddPeriod(domain.Period{
		ID: "period-2024-02", TenantID: testTenant,
		PeriodStart: mustDate(t, "2024-02-01"), PeriodEnd: mustDate(t, "2024-02-29"),
		ClosedAt: &closedAt, CloseHash: "H",
	})
	require.True(t, period.IsClosed())

	req := domain.PostingRequest{
		PostingDate:   mustDate(t, "2024-02-15"),
		Currency:      "USD",
		SourceDocType: domain.SourceDocARInvoice,
		SourceDocID:   "inv-3",
		Lines: []domain.PostingLineInput{
			{AccountRef: "1100", Debit: "100.00"},
			{AccountRef: "4000", Credit: "100.00"},
		},
	}

	_, err := svc.Post(context.Background(), testTenant, "ar", "event-3", "corr-3", req)
	require.Error(t, err)
	var gerr *domain.GovernanceError
	require.ErrorAs(t, err, &gerr)
	assert.ErrorIs(t, gerr.Reason, domain.ErrPeriodClosed)
	assert.Equal(t, 0, journals.EntryCount())
}

func TestPost_RejectsInactiveAccount(t *testing.T) {
	periodStore := ledgertest.NewPeriodStore()
	openFebruaryPeriod(t, periodStore)
	validator := ledgertest.NewAccountValidator()
	validator.AddAccount(domain.Account{TenantID: testTenant, Code: "1100", IsActive: false})
	validator.AddAccount(domain.Account{TenantID: testTenant, Code: "4000", IsActive: true})
	svc := NewService(ledgertest.NewJournalStore(), ledgertest.NewBalanceStore(), periods.NewGovernance(periodStore), validator)

	req := domain.PostingRequest{
		PostingDate:   mustDate(t, "2024-02-15"),
		Currency:      "USD",
		SourceDocType: domain.SourceDocARInvoice,
		SourceDocID:   "inv-4",
		Lines: []domain.PostingLineInput{
			{AccountRef: "1100", Debit: "100.00"},
			{AccountRef: "4000", Credit: "100.00"},
		},
	}

	_, err := svc.Post(context.Background(), testTenant, "ar", "event-4", "corr-4", req)
	require.Error(t, err)
	var gerr *domain.GovernanceError
	require.ErrorAs(t, err, &gerr)
	assert.ErrorIs(t, gerr.Reason, domain.ErrAccountInactive)
}
