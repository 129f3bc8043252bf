package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

// AccountRepository implements coa.Repository over the accounts table.
type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(pool *pgxpool.Pool) *AccountRepository {
	return &AccountRepository{pool: pool}
}

func (r *AccountRepository) Get(ctx context.Context, tenantID, code string) (*domain.Account, error) {
	q := querierFrom(ctx, r.pool)

	query, args, err := psql.Select("tenant_id", "code", "name", "type", "normal_balance", "is_active").
		From("accounts").
		Where(squirrel.Eq{"tenant_id": tenantID, "code": code}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build account get: %w", err)
	}

	var a domain.Account
	err = q.QueryRow(ctx, query, args...).Scan(&a.TenantID, &a.Code, &a.Name, &a.Type, &a.NormalBalance, &a.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NewGovernanceError(domain.ErrAccountNotFound, tenantID+"/"+code)
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s/%s: %w", tenantID, code, err)
	}
	return &a, nil
}

func (r *AccountRepository) Create(ctx context.Context, account domain.Account) error {
	q := querierFrom(ctx, r.pool)

	query, args, err := psql.Insert("accounts").
		Columns("tenant_id", "code", "name", "type", "normal_balance", "is_active").
		Values(account.TenantID, account.Code, account.Name, account.Type, account.NormalBalance, account.IsActive).
		ToSql()
	if err != nil {
		return fmt.Errorf("build account insert: %w", err)
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err, "accounts") {
			return domain.NewValidationError("code", fmt.Sprintf("account %s already exists for tenant %s", account.Code, account.TenantID))
		}
		return fmt.Errorf("create account %s/%s: %w", account.TenantID, account.Code, err)
	}
	return nil
}

func (r *AccountRepository) Deactivate(ctx context.Context, tenantID, code string) error {
	q := querierFrom(ctx, r.pool)

	query, args, err := psql.Update("accounts").
		Set("is_active", false).
		Where(squirrel.Eq{"tenant_id": tenantID, "code": code}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build account deactivate: %w", err)
	}
	tag, err := q.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deactivate account %s/%s: %w", tenantID, code, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewGovernanceError(domain.ErrAccountNotFound, tenantID+"/"+code)
	}
	return nil
}
