package periods

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

func TestCloseHash_PinnedByteSequence(t *testing.T) {
	period := &domain.Period{
		ID:          "11111111-1111-1111-1111-111111111111",
		TenantID:    "tenant-acme",
		PeriodStart: mustDate(t, "2026-01-01"),
		PeriodEnd:   mustDate(t, "2026-01-31"),
	}
	snapshots := []domain.CurrencySnapshot{
		{Currency: "USD", JournalCount: 12, LineCount: 30, TotalDebitsMinor: 500000, TotalCreditsMinor: 500000},
		{Currency: "EUR", JournalCount: 3, LineCount: 6, TotalDebitsMinor: 12000, TotalCreditsMinor: 12000},
	}

	got := CloseHash(period, snapshots)

	// Pinned against the canonical form: ascending-by-currency (EUR before
	// USD), "tenant_id|period_id|period_start|period_end|" prefix, then
	// "currency|journal_count|line_count|total_debits_minor|total_credits_minor|"
	// per currency, SHA-256 over the whole string, lower-hex.
	const expected = "tenant-acme|11111111-1111-1111-1111-111111111111|2026-01-01|2026-01-31|EUR|3|6|12000|12000|USD|12|30|500000|500000|"
	want := sha256Hex(expected)

	assert.Equal(t, want, got)
	assert.Len(t, got, 64, "sha256 lower-hex digest is always 64 characters")
}

func TestCloseHash_OrderIndependentInput(t *testing.T) {
	period := &domain.Period{
		ID:          "p1",
		TenantID:    "tenant-acme",
		PeriodStart: mustDate(t, "2026-01-01"),
		PeriodEnd:   mustDate(t, "2026-01-31"),
	}
	a := []domain.CurrencySnapshot{
		{Currency: "USD", JournalCount: 1, LineCount: 2, TotalDebitsMinor: 100, TotalCreditsMinor: 100},
		{Currency: "EUR", JournalCount: 1, LineCount: 2, TotalDebitsMinor: 200, TotalCreditsMinor: 200},
	}
	b := []domain.CurrencySnapshot{
		{Currency: "EUR", JournalCount: 1, LineCount: 2, TotalDebitsMinor: 200, TotalCreditsMinor: 200},
		{Currency: "USD", JournalCount: 1, LineCount: 2, TotalDebitsMinor: 100, TotalCreditsMinor: 100},
	}

	require.Equal(t, CloseHash(period, a), CloseHash(period, b),
		"the hash must not depend on the caller's snapshot ordering")
}

func mustDate(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", s)
	require.NoError(t, err)
	return d
}

func sha256Hex(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}
