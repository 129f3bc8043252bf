package domain

import "time"

// AccountBalance is the per-(tenant, period, account, currency) roll-up
// row, updated inside the same transaction as the journal entry that
// contributed to it.
type AccountBalance struct {
	TenantID           string
	PeriodID           string
	AccountCode        string
	Currency           Currency
	DebitTotalMinor    int64
	CreditTotalMinor   int64
	NetBalanceMinor    int64
	LastJournalEntryID string
	UpdatedAt          time.Time
}

// LineDelta is the aggregated debit/credit contribution of one account's
// lines within a single journal entry, grouped before the roll-up upsert.
type LineDelta struct {
	AccountRef  string
	DebitMinor  int64
	CreditMinor int64
}

// GroupLinesByAccount sums each account's lines within an entry so the
// roll-up upsert issues one statement per account instead of one per line.
func GroupLinesByAccount(lines []JournalLine) []LineDelta {
	order := make([]string, 0, len(lines))
	byAccount := make(map[string]*LineDelta, len(lines))
	for _, l := range lines {
		d, ok := byAccount[l.AccountRef]
		if !ok {
			d = &LineDelta{AccountRef: l.AccountRef}
			byAccount[l.AccountRef] = d
			order = append(order, l.AccountRef)
		}
		d.DebitMinor += l.DebitMinor
		d.CreditMinor += l.CreditMinor
	}
	deltas := make([]LineDelta, 0, len(order))
	for _, ref := range order {
		deltas = append(deltas, *byAccount[ref])
	}
	return deltas
}
