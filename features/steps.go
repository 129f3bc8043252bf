package features

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cucumber/godog"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
	"github.com/Haleralex/ledgerflow/internal/ledger/periods"
	"github.com/Haleralex/ledgerflow/internal/ledger/posting"
	"github.com/Haleralex/ledgerflow/internal/ledger/reversal"
	"github.com/Haleralex/ledgerflow/internal/ledgertest"
)

const glTestCurrency domain.Currency = "USD"

// glState holds the in-memory stores and services one scenario runs
// against, plus whatever the last step produced for the next step to
// assert on. Every scenario gets a fresh instance, so state never leaks
// across scenarios in the suite.
type glState struct {
	periodStore *ledgertest.PeriodStore
	journals    *ledgertest.JournalStore
	balances    *ledgertest.BalanceStore
	validator   *ledgertest.AccountValidator
	outboxStore *ledgertest.OutboxStore
	dlq         *ledgertest.DLQChecker

	governance  *periods.Governance
	postingSvc  *posting.Service
	reversalSvc *reversal.Service
	closeEngine *periods.CloseEngine

	periodIDs map[string]string // label -> period id

	lastEntry    *domain.JournalEntry
	lastReversal *domain.JournalEntry
	lastErr      error

	firstClose  *domain.CloseStatus
	secondClose *domain.CloseStatus
}

func newGLState() *glState {
	s := &glState{
		periodStore: ledgertest.NewPeriodStore(),
		journals:    ledgertest.NewJournalStore(),
		balances:    ledgertest.NewBalanceStore(),
		validator:   ledgertest.NewAccountValidator(),
		outboxStore: ledgertest.NewOutboxStore(),
		dlq:         ledgertest.NewDLQChecker(),
		periodIDs:   make(map[string]string),
	}
	s.governance = periods.NewGovernance(s.periodStore)
	s.postingSvc = posting.NewService(s.journals, s.balances, s.governance, s.validator)
	s.reversalSvc = reversal.NewService(s.journals, s.balances, s.governance, s.outboxStore, "gl")
	s.closeEngine = periods.NewCloseEngine(s.periodStore, s.dlq)
	return s
}

func InitializeScenario(ctx *godog.ScenarioContext) {
	var s *glState

	ctx.Before(func(c context.Context, sc *godog.Scenario) (context.Context, error) {
		s = newGLState()
		return c, nil
	})

	ctx.Step(`^tenant "([^"]*)" has an open period "([^"]*)" from "([^"]*)" to "([^"]*)"$`, func(tenantID, label, from, to string) error {
		start, err := time.Parse("2006-01-02", from)
		if err != nil {
			return err
		}
		end, err := time.Parse("2006-01-02", to)
		if err != nil {
			return err
		}
		periodID := tenantID + "/" + label
		s.periodStore.AddPeriod(domain.Period{ID: periodID, TenantID: tenantID, PeriodStart: start, PeriodEnd: end})
		s.periodIDs[label] = periodID
		return nil
	})

	ctx.Step(`^tenant "([^"]*)" has an active account "([^"]*)" of type "([^"]*)"$`, func(tenantID, code, accountType string) error {
		s.validator.AddAccount(domain.Account{TenantID: tenantID, Code: code, Type: domain.AccountType(accountType), IsActive: true})
		return nil
	})

	ctx.Step(`^tenant "([^"]*)" has closed period "([^"]*)"$`, func(tenantID, label string) error {
		periodID := s.periodIDs[label]
		_, err := s.closeEngine.Close(context.Background(), periodID, "operator", "pre-closed fixture", time.Now().UTC())
		return err
	})

	ctx.Step(`^I post an? (?:un)?balanced entry for tenant "([^"]*)" dated "([^"]*)" with event id "([^"]*)"$`, func(tenantID, dated, eventID string, table *godog.Table) error {
		postingDate, err := time.Parse("2006-01-02", dated)
		if err != nil {
			return err
		}
		lines, err := linesFromTable(table)
		if err != nil {
			return err
		}
		req := domain.PostingRequest{
			PostingDate:   postingDate,
			Currency:      glTestCurrency,
			SourceDocType: domain.SourceDocARInvoice,
			SourceDocID:   eventID,
			Lines:         lines,
		}
		entry, err := s.postingSvc.Post(context.Background(), tenantID, "ar", eventID, eventID, req)
		s.lastEntry, s.lastErr = entry, err
		return nil
	})

	ctx.Step(`^I replay event id "([^"]*)" with the same posting$`, func(eventID string) error {
		if s.lastEntry == nil {
			return fmt.Errorf("no prior posting to replay")
		}
		req := domain.PostingRequest{
			PostingDate:   s.lastEntry.PostedAt,
			Currency:      glTestCurrency,
			SourceDocType: domain.SourceDocARInvoice,
			SourceDocID:   eventID,
			Lines: []domain.PostingLineInput{
				{AccountRef: "1100", Debit: "100.00"},
				{AccountRef: "4000", Credit: "100.00"},
			},
		}
		_, err := s.postingSvc.Post(context.Background(), s.lastEntry.TenantID, "ar", eventID, eventID, req)
		s.lastErr = err
		return nil
	})

	ctx.Step(`^the posting succeeds$`, func() error {
		return s.lastErr
	})

	ctx.Step(`^the posting is rejected as a duplicate$`, func() error {
		if !domain.IsDuplicate(s.lastErr) {
			return fmt.Errorf("expected a duplicate-event error, got %v", s.lastErr)
		}
		return nil
	})

	ctx.Step(`^the posting is rejected with an error containing "([^"]*)"$`, func(substr string) error {
		if s.lastErr == nil {
			return fmt.Errorf("expected the posting to fail, it succeeded")
		}
		if !strings.Contains(s.lastErr.Error(), substr) {
			return fmt.Errorf("expected error to contain %q, got %q", substr, s.lastErr.Error())
		}
		return nil
	})

	ctx.Step(`^tenant "([^"]*)" has exactly (\d+) journal entries?$`, func(tenantID string, count int) error {
		if got := s.journals.EntryCount(); got != count {
			return fmt.Errorf("expected %d journal entries, got %d", count, got)
		}
		return nil
	})

	ctx.Step(`^account "([^"]*)" in period "([^"]*)" has debit total "([^"]*)" and credit total "([^"]*)"$`, func(code, label, debit, credit string) error {
		row := s.balances.Get(s.lastEntry.TenantID, s.periodIDs[label], code, glTestCurrency)
		if row == nil {
			return fmt.Errorf("no balance row for account %s in period %s", code, label)
		}
		if got := domain.FormatMinorUnits(row.DebitTotalMinor); got != debit {
			return fmt.Errorf("debit total %s != expected %s", got, debit)
		}
		if got := domain.FormatMinorUnits(row.CreditTotalMinor); got != credit {
			return fmt.Errorf("credit total %s != expected %s", got, credit)
		}
		return nil
	})

	ctx.Step(`^account "([^"]*)" in period "([^"]*)" has net balance "([^"]*)"$`, func(code, label, net string) error {
		row := s.balances.Get(s.lastEntry.TenantID, s.periodIDs[label], code, glTestCurrency)
		if row == nil {
			return fmt.Errorf("no balance row for account %s in period %s", code, label)
		}
		if got := domain.FormatMinorUnits(row.NetBalanceMinor); got != net {
			return fmt.Errorf("net balance %s != expected %s", got, net)
		}
		return nil
	})

	ctx.Step(`^I reverse that entry on "([^"]*)" with event id "([^"]*)"$`, func(on, eventID string) error {
		now, err := time.Parse("2006-01-02", on)
		if err != nil {
			return err
		}
		req := domain.ReversalRequest{OriginalEntryID: s.lastEntry.ID, Reason: "feature test"}
		reversed, err := s.reversalSvc.Reverse(context.Background(), s.lastEntry.TenantID, eventID, eventID, req, now)
		s.lastReversal, s.lastErr = reversed, err
		return nil
	})

	ctx.Step(`^the reversal succeeds$`, func() error {
		return s.lastErr
	})

	ctx.Step(`^a "([^"]*)" event is appended to the outbox referencing both entries$`, func(eventType string) error {
		for _, env := range s.outboxStore.Unpublished() {
			if env.EventType != eventType {
				continue
			}
			var payload domain.EntryReversed
			if err := env.Decode(&payload); err != nil {
				return err
			}
			if payload.OriginalEntryID != s.lastEntry.ID {
				return fmt.Errorf("outbox event references original entry %s, want %s", payload.OriginalEntryID, s.lastEntry.ID)
			}
			if payload.ReversalEntryID != s.lastReversal.ID {
				return fmt.Errorf("outbox event references reversal entry %s, want %s", payload.ReversalEntryID, s.lastReversal.ID)
			}
			return nil
		}
		return fmt.Errorf("no unpublished %s event found in the outbox", eventType)
	})

	ctx.Step(`^I close period "([^"]*)" for tenant "([^"]*)"$`, func(label, tenantID string) error {
		status, err := s.closeEngine.Close(context.Background(), s.periodIDs[label], "operator", "month end", time.Now().UTC())
		if err != nil {
			return err
		}
		s.firstClose = status
		return nil
	})

	ctx.Step(`^I close period "([^"]*)" for tenant "([^"]*)" again$`, func(label, tenantID string) error {
		status, err := s.closeEngine.Close(context.Background(), s.periodIDs[label], "operator", "month end", time.Now().UTC())
		if err != nil {
			return err
		}
		s.secondClose = status
		return nil
	})

	ctx.Step(`^both close calls report the same close hash$`, func() error {
		if s.firstClose.CloseHash != s.secondClose.CloseHash {
			return fmt.Errorf("close hash changed between calls: %s != %s", s.firstClose.CloseHash, s.secondClose.CloseHash)
		}
		return nil
	})

	ctx.Step(`^the second close call reports the original closed-at time$`, func() error {
		if !s.secondClose.AlreadyClosed {
			return fmt.Errorf("second close call did not observe an already-closed period")
		}
		if !s.secondClose.ClosedAt.Equal(s.firstClose.ClosedAt) {
			return fmt.Errorf("closed_at changed between calls: %s != %s", s.firstClose.ClosedAt, s.secondClose.ClosedAt)
		}
		return nil
	})
}

func linesFromTable(table *godog.Table) ([]domain.PostingLineInput, error) {
	if len(table.Rows) < 2 {
		return nil, fmt.Errorf("posting table needs a header row and at least one data row")
	}
	header := table.Rows[0]
	col := make(map[string]int, len(header.Cells))
	for i, cell := range header.Cells {
		col[cell.Value] = i
	}

	lines := make([]domain.PostingLineInput, 0, len(table.Rows)-1)
	for _, row := range table.Rows[1:] {
		lines = append(lines, domain.PostingLineInput{
			AccountRef: row.Cells[col["account"]].Value,
			Debit:      row.Cells[col["debit"]].Value,
			Credit:     row.Cells[col["credit"]].Value,
		})
	}
	return lines, nil
}
