package reversal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
	"github.com/Haleralex/ledgerflow/internal/ledger/periods"
	"github.com/Haleralex/ledgerflow/internal/ledger/posting"
	"github.com/Haleralex/ledgerflow/internal/ledgertest"
)

const testTenant = "tenant-acme"

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

// S4: reversing a posted entry inverts its lines, nets the balances back
// to zero, and emits a gl.entry.reversed envelope to the outbox.
func TestReverse_InvertsLinesAndZeroesBalances(t *testing.T) {
	periodStore := ledgertest.NewPeriodStore()
	period := periodStore.AddPeriod(domain.Period{
		ID: "period-2024-02", TenantID: testTenant,
		PeriodStart: mustDate(t, "2024-02-01"), PeriodEnd: mustDate(t, "2024-02-29"),
	})

	journals := ledgertest.NewJournalStore()
	balances := ledgertest.NewBalanceStore()
	validator := ledgertest.NewAccountValidator()
	validator.AddAccount(domain.Account{TenantID: testTenant, Code: "1100", IsActive: true})
	validator.AddAccount(domain.Account{TenantID: testTenant, Code: "4000", IsActive: true})
	governance := periods.NewGovernance(periodStore)

	postingSvc := posting.NewService(journals, balances, governance, validator)
	original, err := postingSvc.Post(context.Background(), testTenant, "ar", "event-1", "corr-1", domain.PostingRequest{
		PostingDate:   mustDate(t, "2024-02-15"),
		Currency:      "USD",
		SourceDocType: domain.SourceDocARInvoice,
		SourceDocID:   "inv-1",
		Lines: []domain.PostingLineInput{
			{AccountRef: "1100", Debit: "100.00"},
			{AccountRef: "4000", Credit: "100.00"},
		},
	})
	require.NoError(t, err)

	outboxStore := ledgertest.NewOutboxStore()
	reversalSvc := NewService(journals, balances, governance, outboxStore, "gl")

	reversalReq := domain.ReversalRequest{OriginalEntryID: original.ID, Reason: "customer refund"}
	now := mustDate(t, "2024-02-20")
	reversed, err := reversalSvc.Reverse(context.Background(), testTenant, "event-2", "corr-2", reversalReq, now)
	require.NoError(t, err)
	require.NotNil(t, reversed.ReversesEntryID)
	assert.Equal(t, original.ID, *reversed.ReversesEntryID)

	lines, err := journals.Lines(context.Background(), reversed.ID)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	for _, l := range lines {
		switch l.AccountRef {
		case "1100":
			assert.Equal(t, int64(0), l.DebitMinor)
			assert.Equal(t, int64(10000), l.CreditMinor)
		case "4000":
			assert.Equal(t, int64(10000), l.DebitMinor)
			assert.Equal(t, int64(0), l.CreditMinor)
		}
	}

	cash := balances.Get(testTenant, period.ID, "1100", "USD")
	require.NotNil(t, cash)
	assert.Equal(t, cash.DebitTotalMinor, cash.CreditTotalMinor, "cash's net balance must return to zero")
	assert.Equal(t, int64(0), cash.NetBalanceMinor)

	revenue := balances.Get(testTenant, period.ID, "4000", "USD")
	require.NotNil(t, revenue)
	assert.Equal(t, int64(0), revenue.NetBalanceMinor)

	unpublished := outboxStore.Unpublished()
	require.Len(t, unpublished, 1)
	var payload domain.EntryReversed
	require.NoError(t, unpublished[0].Decode(&payload))
	assert.Equal(t, original.ID, payload.OriginalEntryID)
	assert.Equal(t, reversed.ID, payload.ReversalEntryID)
}

func TestReverse_RejectsReversingAReversal(t *testing.T) {
	periodStore := ledgertest.NewPeriodStore()
	periodStore.AddPeriod(domain.Period{
		ID: "period-2024-02", TenantID: testTenant,
		PeriodStart: mustDate(t, "2024-02-01"), PeriodEnd: mustDate(t, "2024-02-29"),
	})
	journals := ledgertest.NewJournalStore()
	original := "original-entry"
	require.NoError(t, journals.InsertEntry(context.Background(), domain.JournalEntry{ID: "already-a-reversal", SourceEventID: "se-1", ReversesEntryID: &original}))

	governance := periods.NewGovernance(periodStore)
	svc := NewService(journals, ledgertest.NewBalanceStore(), governance, ledgertest.NewOutboxStore(), "gl")

	_, err := svc.Reverse(context.Background(), testTenant, "event-x", "corr-x",
		domain.ReversalRequest{OriginalEntryID: "already-a-reversal"}, mustDate(t, "2024-02-20"))
	require.Error(t, err)
	var rerr *domain.ReversalError
	require.ErrorAs(t, err, &rerr)
	assert.ErrorIs(t, rerr.Reason, domain.ErrIsAReversal)
}
