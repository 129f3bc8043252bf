package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

// PeriodRepository implements periods.Repository over accounting_periods,
// journal_entries/journal_lines, and period_summary_snapshots.
type PeriodRepository struct {
	pool *pgxpool.Pool
}

func NewPeriodRepository(pool *pgxpool.Pool) *PeriodRepository {
	return &PeriodRepository{pool: pool}
}

func scanPeriod(row pgx.Row) (*domain.Period, error) {
	var p domain.Period
	err := row.Scan(&p.ID, &p.TenantID, &p.PeriodStart, &p.PeriodEnd,
		&p.CloseRequestedAt, &p.ClosedAt, &p.ClosedBy, &p.CloseReason, &p.CloseHash)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

const periodColumns = "id, tenant_id, period_start, period_end, close_requested_at, closed_at, closed_by, close_reason, close_hash"

func (r *PeriodRepository) FindByDate(ctx context.Context, tenantID string, date time.Time) (*domain.Period, error) {
	q := querierFrom(ctx, r.pool)

	query, args, err := psql.Select(splitColumns(periodColumns)...).
		From("accounting_periods").
		Where(squirrel.Eq{"tenant_id": tenantID}).
		Where("period_start <= ?", date).
		Where("period_end >= ?", date).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build period find-by-date: %w", err)
	}

	p, err := scanPeriod(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewGovernanceError(domain.ErrNoPeriodForDate, tenantID)
	}
	if err != nil {
		return nil, fmt.Errorf("find period covering %s for tenant %s: %w", date.Format("2006-01-02"), tenantID, err)
	}
	return p, nil
}

func (r *PeriodRepository) Get(ctx context.Context, periodID string) (*domain.Period, error) {
	q := querierFrom(ctx, r.pool)

	query, args, err := psql.Select(splitColumns(periodColumns)...).
		From("accounting_periods").
		Where(squirrel.Eq{"id": periodID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build period get: %w", err)
	}

	p, err := scanPeriod(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewGovernanceError(domain.ErrPeriodNotFound, periodID)
	}
	if err != nil {
		return nil, fmt.Errorf("get period %s: %w", periodID, err)
	}
	return p, nil
}

func (r *PeriodRepository) LockForClose(ctx context.Context, periodID string) (*domain.Period, error) {
	q := querierFrom(ctx, r.pool)

	query, args, err := psql.Select(splitColumns(periodColumns)...).
		From("accounting_periods").
		Where(squirrel.Eq{"id": periodID}).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build period lock: %w", err)
	}

	p, err := scanPeriod(q.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewGovernanceError(domain.ErrPeriodNotFound, periodID)
	}
	if err != nil {
		return nil, fmt.Errorf("lock period %s for close: %w", periodID, err)
	}
	return p, nil
}

func (r *PeriodRepository) CurrencySnapshots(ctx context.Context, periodID string) ([]domain.CurrencySnapshot, error) {
	q := querierFrom(ctx, r.pool)

	query, args, err := psql.Select(
		"je.currency",
		"COUNT(DISTINCT je.id)",
		"COUNT(jl.id)",
		"COALESCE(SUM(jl.debit_minor), 0)",
		"COALESCE(SUM(jl.credit_minor), 0)",
	).
		From("journal_entries je").
		Join("journal_lines jl ON jl.journal_entry_id = je.id").
		Where(squirrel.Eq{"je.period_id": periodID}).
		GroupBy("je.currency").
		OrderBy("je.currency ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build currency snapshots query: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("compute currency snapshots for period %s: %w", periodID, err)
	}
	defer rows.Close()

	var out []domain.CurrencySnapshot
	for rows.Next() {
		var s domain.CurrencySnapshot
		if err := rows.Scan(&s.Currency, &s.JournalCount, &s.LineCount, &s.TotalDebitsMinor, &s.TotalCreditsMinor); err != nil {
			return nil, fmt.Errorf("scan currency snapshot: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *PeriodRepository) InsertSnapshots(ctx context.Context, tenantID, periodID string, snapshots []domain.CurrencySnapshot) error {
	if len(snapshots) == 0 {
		return nil
	}
	q := querierFrom(ctx, r.pool)

	builder := psql.Insert("period_summary_snapshots").
		Columns("tenant_id", "period_id", "currency", "journal_count", "line_count", "total_debits_minor", "total_credits_minor")
	for _, s := range snapshots {
		builder = builder.Values(tenantID, periodID, s.Currency, s.JournalCount, s.LineCount, s.TotalDebitsMinor, s.TotalCreditsMinor)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build snapshot insert: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert snapshots for period %s: %w", periodID, err)
	}
	return nil
}

func (r *PeriodRepository) MarkClosed(ctx context.Context, periodID, closedBy, closeReason, closeHash string, closedAt time.Time) error {
	q := querierFrom(ctx, r.pool)

	query, args, err := psql.Update("accounting_periods").
		Set("closed_at", closedAt).
		Set("closed_by", closedBy).
		Set("close_reason", nullableString(closeReason)).
		Set("close_hash", closeHash).
		Where(squirrel.Eq{"id": periodID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build mark-closed update: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("mark period %s closed: %w", periodID, err)
	}
	return nil
}

// UnbalancedEntries defends against a bug upstream of close ever letting an
// unbalanced entry commit; posting's own validation should make this always
// return empty, but close re-checks it anyway before sealing.
func (r *PeriodRepository) UnbalancedEntries(ctx context.Context, periodID string) ([]string, error) {
	q := querierFrom(ctx, r.pool)

	query, args, err := psql.Select("je.id").
		From("journal_entries je").
		Join("journal_lines jl ON jl.journal_entry_id = je.id").
		Where(squirrel.Eq{"je.period_id": periodID}).
		GroupBy("je.id").
		Having("SUM(jl.debit_minor) <> SUM(jl.credit_minor)").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build unbalanced-entries query: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("find unbalanced entries for period %s: %w", periodID, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan unbalanced entry id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func splitColumns(cols string) []string {
	parts := strings.Split(cols, ",")
	out := make([]string, len(parts))
	for i, p := range parts {
		out[i] = strings.TrimSpace(p)
	}
	return out
}
