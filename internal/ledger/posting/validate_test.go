package posting

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

func validPostingRequest() domain.PostingRequest {
	return domain.PostingRequest{
		Currency:      "USD",
		SourceDocType: domain.SourceDocARInvoice,
		SourceDocID:   "inv-1",
		Description:   "test invoice",
		Lines: []domain.PostingLineInput{
			{AccountRef: "1000", Debit: "100.00"},
			{AccountRef: "4000", Credit: "100.00"},
		},
	}
}

func TestValidateAndScale_HappyPath(t *testing.T) {
	lines, err := validateAndScale(validPostingRequest())
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, int64(10000), lines[0].DebitMinor)
	assert.Equal(t, int64(10000), lines[1].CreditMinor)
}

func TestValidateAndScale_RejectsFewerThanTwoLines(t *testing.T) {
	req := validPostingRequest()
	req.Lines = req.Lines[:1]

	_, err := validateAndScale(req)
	require.Error(t, err)
	var verr *domain.ValidationError
	assert.ErrorAs(t, err, &verr)
}

func TestValidateAndScale_RejectsUnbalancedEntry(t *testing.T) {
	req := validPostingRequest()
	req.Lines[1].Credit = "99.99"

	_, err := validateAndScale(req)
	require.Error(t, err)
}

func TestValidateAndScale_RejectsBothDebitAndCreditOnOneLine(t *testing.T) {
	req := validPostingRequest()
	req.Lines[0].Credit = "100.00"

	_, err := validateAndScale(req)
	require.Error(t, err)
}

func TestValidateAndScale_RejectsInvalidCurrency(t *testing.T) {
	req := validPostingRequest()
	req.Currency = "US"

	_, err := validateAndScale(req)
	require.Error(t, err)
}

func TestValidateAndScale_RejectsUnknownSourceDocType(t *testing.T) {
	req := validPostingRequest()
	req.SourceDocType = "made_up_doc_type"

	_, err := validateAndScale(req)
	require.Error(t, err)
}

func TestValidateAndScale_BankersRoundingOnScale(t *testing.T) {
	req := validPostingRequest()
	// 100.005 rounds to 100.00 under half-to-even (0 is the even neighbor),
	// not 100.01 as half-away-from-zero would give.
	req.Lines[0].Debit = "100.005"
	req.Lines[1].Credit = "100.00"

	lines, err := validateAndScale(req)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), lines[0].DebitMinor)
}
