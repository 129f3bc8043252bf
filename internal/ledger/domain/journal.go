package domain

import "time"

// SourceDocType enumerates the upstream document kinds a posting request
// can carry.
type SourceDocType string

const (
	SourceDocARInvoice        SourceDocType = "ar_invoice"
	SourceDocARPayment        SourceDocType = "ar_payment"
	SourceDocARCreditMemo     SourceDocType = "ar_credit_memo"
	SourceDocARAdjustment     SourceDocType = "ar_adjustment"
	SourceDocAPBill           SourceDocType = "ap_bill"
	SourceDocAPPayment        SourceDocType = "ap_payment"
	SourceDocInventoryReceipt SourceDocType = "inventory_receipt"
	SourceDocInventoryIssue   SourceDocType = "inventory_issue"
	SourceDocPayrollRun       SourceDocType = "payroll_run"
)

// ValidSourceDocType reports whether t is one of the enumerated kinds.
func ValidSourceDocType(t SourceDocType) bool {
	switch t {
	case SourceDocARInvoice, SourceDocARPayment, SourceDocARCreditMemo, SourceDocARAdjustment,
		SourceDocAPBill, SourceDocAPPayment, SourceDocInventoryReceipt, SourceDocInventoryIssue, SourceDocPayrollRun:
		return true
	}
	return false
}

// JournalEntry is a double-entry posting header.
type JournalEntry struct {
	ID       string
	TenantID string
	// PeriodID pins the entry to the accounting period ValidatePostingDate
	// resolved at posting time, so the close engine's per-currency
	// aggregation doesn't need to re-derive period membership from dates.
	PeriodID        string
	SourceModule    string
	SourceEventID   string
	SourceSubject   string
	PostedAt        time.Time
	Currency        Currency
	Description     string
	ReferenceType   string
	ReferenceID     string
	ReversesEntryID *string
}

// JournalLine is one leg of a journal entry. Exactly one of DebitMinor and
// CreditMinor is nonzero.
type JournalLine struct {
	ID             string
	JournalEntryID string
	LineNo         int
	AccountRef     string
	DebitMinor     int64
	CreditMinor    int64
	Memo           string
}

// PostingLineInput is a single line of an incoming posting-request payload,
// before validation has scaled its decimal amounts to minor units.
type PostingLineInput struct {
	AccountRef string
	Debit      string
	Credit     string
	Memo       string
	Dimensions map[string]string
}

// PostingRequest is the payload carried by a gl.posting.requested envelope.
type PostingRequest struct {
	PostingDate   time.Time
	Currency      Currency
	SourceDocType SourceDocType
	SourceDocID   string
	Description   string
	Lines         []PostingLineInput
}

// ReversalRequest is the payload carried by a gl.entry.reverse.requested
// envelope.
type ReversalRequest struct {
	OriginalEntryID string
	Reason          string
}

// EntryReversed is the payload of the gl.entry.reversed event emitted by
// the reversal service in the same transaction as the reversal itself.
type EntryReversed struct {
	OriginalEntryID string    `json:"original_entry_id"`
	ReversalEntryID string    `json:"reversal_entry_id"`
	Currency        Currency  `json:"currency"`
	PostedAt        time.Time `json:"posted_at"`
}
