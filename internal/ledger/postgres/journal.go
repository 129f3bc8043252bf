package postgres

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

// JournalRepository implements posting.JournalRepository over
// journal_entries and journal_lines.
type JournalRepository struct {
	pool *pgxpool.Pool
}

func NewJournalRepository(pool *pgxpool.Pool) *JournalRepository {
	return &JournalRepository{pool: pool}
}

func (r *JournalRepository) InsertEntry(ctx context.Context, entry domain.JournalEntry) error {
	q := querierFrom(ctx, r.pool)

	query, args, err := psql.Insert("journal_entries").
		Columns("id", "tenant_id", "period_id", "source_module", "source_event_id", "source_subject",
			"posted_at", "currency", "description", "reference_type", "reference_id", "reverses_entry_id").
		Values(entry.ID, entry.TenantID, entry.PeriodID, entry.SourceModule, entry.SourceEventID, entry.SourceSubject,
			entry.PostedAt, entry.Currency, entry.Description, entry.ReferenceType, entry.ReferenceID, entry.ReversesEntryID).
		ToSql()
	if err != nil {
		return fmt.Errorf("build journal entry insert: %w", err)
	}

	if _, err := q.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err, "source_event_id") {
			return &domain.DuplicateEvent{EventID: entry.SourceEventID}
		}
		return fmt.Errorf("insert journal entry %s: %w", entry.ID, err)
	}
	return nil
}

func (r *JournalRepository) InsertLines(ctx context.Context, lines []domain.JournalLine) error {
	if len(lines) == 0 {
		return nil
	}
	q := querierFrom(ctx, r.pool)

	builder := psql.Insert("journal_lines").
		Columns("id", "journal_entry_id", "line_no", "account_ref", "debit_minor", "credit_minor", "memo")
	for _, l := range lines {
		builder = builder.Values(l.ID, l.JournalEntryID, l.LineNo, l.AccountRef, l.DebitMinor, l.CreditMinor, l.Memo)
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build journal lines insert: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert journal lines for entry %s: %w", lines[0].JournalEntryID, err)
	}
	return nil
}

func (r *JournalRepository) Get(ctx context.Context, entryID string) (*domain.JournalEntry, error) {
	q := querierFrom(ctx, r.pool)

	query, args, err := psql.Select("id", "tenant_id", "period_id", "source_module", "source_event_id", "source_subject",
		"posted_at", "currency", "description", "reference_type", "reference_id", "reverses_entry_id").
		From("journal_entries").
		Where(squirrel.Eq{"id": entryID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build journal entry get: %w", err)
	}

	var e domain.JournalEntry
	err = q.QueryRow(ctx, query, args...).Scan(&e.ID, &e.TenantID, &e.PeriodID, &e.SourceModule, &e.SourceEventID, &e.SourceSubject,
		&e.PostedAt, &e.Currency, &e.Description, &e.ReferenceType, &e.ReferenceID, &e.ReversesEntryID)
	if err == pgx.ErrNoRows {
		return nil, domain.NewReversalError(domain.ErrEntryNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get journal entry %s: %w", entryID, err)
	}
	return &e, nil
}

func (r *JournalRepository) Lines(ctx context.Context, entryID string) ([]domain.JournalLine, error) {
	q := querierFrom(ctx, r.pool)

	query, args, err := psql.Select("id", "journal_entry_id", "line_no", "account_ref", "debit_minor", "credit_minor", "memo").
		From("journal_lines").
		Where(squirrel.Eq{"journal_entry_id": entryID}).
		OrderBy("line_no ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build journal lines query: %w", err)
	}

	rows, err := q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list journal lines for entry %s: %w", entryID, err)
	}
	defer rows.Close()

	var lines []domain.JournalLine
	for rows.Next() {
		var l domain.JournalLine
		if err := rows.Scan(&l.ID, &l.JournalEntryID, &l.LineNo, &l.AccountRef, &l.DebitMinor, &l.CreditMinor, &l.Memo); err != nil {
			return nil, fmt.Errorf("scan journal line: %w", err)
		}
		lines = append(lines, l)
	}
	return lines, rows.Err()
}
