// Package posting implements Journal Posting and the Balance Roll-up
// it drives: validating a posting-request payload, running the
// transactional phase, and upserting per-account balance totals.
package posting

import (
	"fmt"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

// preparedLine is one line after decimal amounts have been scaled to minor
// units and validated.
type preparedLine struct {
	AccountRef  string
	DebitMinor  int64
	CreditMinor int64
	Memo        string
}

// validateAndScale runs the pre-transaction validation phase:
// line count, exactly-one-of-debit/credit per line, the balanced-entry
// invariant, and currency syntax. It is pure and runs before any database
// work, so a malformed payload never opens a transaction at all.
func validateAndScale(req domain.PostingRequest) ([]preparedLine, error) {
	if len(req.Lines) < 2 {
		return nil, domain.NewValidationError("lines", "a posting request must carry at least two lines")
	}
	if !req.Currency.Valid() {
		return nil, domain.NewValidationError("currency", fmt.Sprintf("%q is not a valid 3-letter currency code", req.Currency))
	}
	if !domain.ValidSourceDocType(req.SourceDocType) {
		return nil, domain.NewValidationError("source_doc_type", fmt.Sprintf("%q is not a recognized source document type", req.SourceDocType))
	}

	prepared := make([]preparedLine, 0, len(req.Lines))
	var totalDebit, totalCredit int64

	for i, line := range req.Lines {
		debit, err := scaleAmount(line.Debit)
		if err != nil {
			return nil, domain.NewValidationError("lines", fmt.Sprintf("line %d: invalid debit amount: %v", i+1, err))
		}
		credit, err := scaleAmount(line.Credit)
		if err != nil {
			return nil, domain.NewValidationError("lines", fmt.Sprintf("line %d: invalid credit amount: %v", i+1, err))
		}
		if (debit > 0) == (credit > 0) {
			return nil, domain.NewValidationError("lines", fmt.Sprintf("line %d: exactly one of debit/credit must be positive", i+1))
		}
		if debit < 0 || credit < 0 {
			return nil, domain.NewValidationError("lines", fmt.Sprintf("line %d: debit/credit cannot be negative", i+1))
		}

		prepared = append(prepared, preparedLine{
			AccountRef:  line.AccountRef,
			DebitMinor:  debit,
			CreditMinor: credit,
			Memo:        line.Memo,
		})
		totalDebit += debit
		totalCredit += credit
	}

	if totalDebit != totalCredit {
		return nil, domain.NewValidationError("lines", fmt.Sprintf("entry does not balance: total debit %d != total credit %d", totalDebit, totalCredit))
	}

	return prepared, nil
}

// scaleAmount converts a decimal-with-cents string to signed minor units.
// An empty string means "this side of the line is zero".
func scaleAmount(s string) (int64, error) {
	if s == "" {
		return 0, nil
	}
	return domain.MinorUnits(s)
}
