package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

// BalanceRepository implements posting.BalanceRepository over
// account_balances. The upsert is hand-written SQL rather than
// squirrel-built: squirrel has no native ON CONFLICT ... DO UPDATE SET
// col = table.col + EXCLUDED.col helper, and the statement is short enough
// that spelling it out is clearer than fighting the builder for it.
type BalanceRepository struct {
	pool *pgxpool.Pool
}

func NewBalanceRepository(pool *pgxpool.Pool) *BalanceRepository {
	return &BalanceRepository{pool: pool}
}

const upsertRollupSQL = `
	INSERT INTO account_balances
		(tenant_id, period_id, account_code, currency, debit_total_minor, credit_total_minor, net_balance_minor, last_journal_entry_id, updated_at)
	VALUES
		($1, $2, $3, $4, $5, $6, $5 - $6, $7, now())
	ON CONFLICT (tenant_id, period_id, account_code, currency) DO UPDATE SET
		debit_total_minor = account_balances.debit_total_minor + EXCLUDED.debit_total_minor,
		credit_total_minor = account_balances.credit_total_minor + EXCLUDED.credit_total_minor,
		net_balance_minor = (account_balances.debit_total_minor + EXCLUDED.debit_total_minor)
			- (account_balances.credit_total_minor + EXCLUDED.credit_total_minor),
		last_journal_entry_id = EXCLUDED.last_journal_entry_id,
		updated_at = now()
`

// UpsertRollup is the single statement the balance roll-up needs: no
// read-modify-write, so two concurrent postings against the same account
// in the same period never race each other's increments.
func (r *BalanceRepository) UpsertRollup(ctx context.Context, tenantID, periodID string, currency domain.Currency, delta domain.LineDelta, journalEntryID string) error {
	q := querierFrom(ctx, r.pool)

	if _, err := q.Exec(ctx, upsertRollupSQL,
		tenantID, periodID, delta.AccountRef, currency, delta.DebitMinor, delta.CreditMinor, journalEntryID,
	); err != nil {
		return fmt.Errorf("upsert balance roll-up for %s/%s/%s/%s: %w", tenantID, periodID, delta.AccountRef, currency, err)
	}
	return nil
}
