package periods

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
	"github.com/Haleralex/ledgerflow/internal/platform/tracing"
)

// DLQChecker is the narrow slice of the DLQ store the close engine's
// pre-flight validation needs: "are there still unresolved posting
// failures for this period's date range".
type DLQChecker interface {
	Unresolved(ctx context.Context, tenantID string, from, to time.Time) (bool, error)
}

// CloseEngine implements the Period Close Engine: pre-flight
// validation, the atomic close command, and the deterministic close hash.
type CloseEngine struct {
	repo Repository
	dlq  DLQChecker
}

func NewCloseEngine(repo Repository, dlq DLQChecker) *CloseEngine {
	return &CloseEngine{repo: repo, dlq: dlq}
}

// ValidateCanClose runs every mandatory pre-close check, returning a
// report rather than an error so warning- and info-level findings can
// surface without blocking.
func (e *CloseEngine) ValidateCanClose(ctx context.Context, period *domain.Period) (*domain.CloseValidationReport, error) {
	report := &domain.CloseValidationReport{PeriodID: period.ID}

	if period.IsClosed() {
		report.Issues = append(report.Issues, domain.CloseIssue{
			Severity: domain.IssueError,
			Code:     "PERIOD_ALREADY_CLOSED",
			Message:  "period is already closed",
		})
		return report, nil
	}

	unbalanced, err := e.repo.UnbalancedEntries(ctx, period.ID)
	if err != nil {
		return nil, fmt.Errorf("check unbalanced entries: %w", err)
	}
	for _, entryID := range unbalanced {
		report.Issues = append(report.Issues, domain.CloseIssue{
			Severity: domain.IssueError,
			Code:     "ENTRY_NOT_BALANCED",
			Message:  fmt.Sprintf("journal entry %s does not balance", entryID),
		})
	}

	if e.dlq != nil {
		unresolved, err := e.dlq.Unresolved(ctx, period.TenantID, period.PeriodStart, period.PeriodEnd)
		if err != nil {
			return nil, fmt.Errorf("check dlq backlog: %w", err)
		}
		if unresolved {
			report.Issues = append(report.Issues, domain.CloseIssue{
				Severity: domain.IssueError,
				Code:     "DLQ_BACKLOG",
				Message:  "unresolved posting-request failures remain in the dead-letter queue for this period",
			})
		}
	}

	return report, nil
}

// Close implements the period-close command. Callers must run this inside
// a Serializable transaction; the row lock from Repository.LockForClose is
// what makes the read-validate-write sequence atomic against a concurrent
// posting or a concurrent second close call.
func (e *CloseEngine) Close(ctx context.Context, periodID, actor, reason string, now time.Time) (status *domain.CloseStatus, err error) {
	ctx, span := tracing.Tracer().Start(ctx, "periods.CloseEngine.Close")
	span.SetAttributes(attribute.String("period.id", periodID), attribute.String("actor", actor))
	defer func() { tracing.End(span, err) }()

	period, err := e.repo.LockForClose(ctx, periodID)
	if err != nil {
		return nil, err
	}

	if period.IsClosed() {
		return &domain.CloseStatus{
			PeriodID:      period.ID,
			ClosedAt:      *period.ClosedAt,
			ClosedBy:      period.ClosedBy,
			CloseReason:   period.CloseReason,
			CloseHash:     period.CloseHash,
			AlreadyClosed: true,
		}, nil
	}

	report, err := e.ValidateCanClose(ctx, period)
	if err != nil {
		return nil, err
	}
	if report.Blocking() {
		return nil, domain.NewGovernanceError(domain.ErrPeriodClosed, "VALIDATION_FAILED: "+report.Issues[0].Message)
	}

	snapshots, err := e.repo.CurrencySnapshots(ctx, period.ID)
	if err != nil {
		return nil, fmt.Errorf("compute currency snapshots: %w", err)
	}

	hash := CloseHash(period, snapshots)

	if err := e.repo.InsertSnapshots(ctx, period.TenantID, period.ID, snapshots); err != nil {
		return nil, fmt.Errorf("insert period snapshots: %w", err)
	}

	if err := e.repo.MarkClosed(ctx, period.ID, actor, reason, hash, now); err != nil {
		return nil, fmt.Errorf("mark period closed: %w", err)
	}

	return &domain.CloseStatus{
		PeriodID:      period.ID,
		ClosedAt:      now,
		ClosedBy:      actor,
		CloseReason:   reason,
		CloseHash:     hash,
		AlreadyClosed: false,
	}, nil
}

// CloseHash computes the close engine's deterministic digest:
// ascending-by-currency concatenation of
// "currency|journal_count|line_count|total_debits_minor|total_credits_minor|"
// prefixed with "tenant_id|period_id|period_start|period_end|", SHA-256,
// lower-hex. Every field, delimiter, and the date format are fixed here,
// none of this may drift between callers or releases.
func CloseHash(period *domain.Period, snapshots []domain.CurrencySnapshot) string {
	sorted := make([]domain.CurrencySnapshot, len(snapshots))
	copy(sorted, snapshots)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Currency < sorted[j].Currency })

	buf := fmt.Sprintf("%s|%s|%s|%s|",
		period.TenantID,
		period.ID,
		period.PeriodStart.Format("2006-01-02"),
		period.PeriodEnd.Format("2006-01-02"),
	)
	for _, s := range sorted {
		buf += fmt.Sprintf("%s|%d|%d|%d|%d|",
			s.Currency, s.JournalCount, s.LineCount, s.TotalDebitsMinor, s.TotalCreditsMinor)
	}

	sum := sha256.Sum256([]byte(buf))
	return hex.EncodeToString(sum[:])
}
