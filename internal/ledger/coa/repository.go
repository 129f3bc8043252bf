// Package coa implements the Chart-of-Accounts Validator: tenant+code
// lookup and active/inactive gating for every account reference a journal
// line names.
package coa

import (
	"context"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

// Repository is the source-of-truth port over the accounts table.
type Repository interface {
	// Get returns the account for (tenantID, code), or domain.ErrAccountNotFound.
	Get(ctx context.Context, tenantID, code string) (*domain.Account, error)
	// Create inserts a new chart-of-accounts entry.
	Create(ctx context.Context, account domain.Account) error
	// Deactivate flips is_active to false for (tenantID, code).
	Deactivate(ctx context.Context, tenantID, code string) error
}

// Validator is what posting depends on: just the one assertion, so a
// cache can sit in front of it without exposing the rest of Repository's
// write surface to the hot path. reversal.Service takes no Validator and
// does not check the account status of the lines it reverses.
type Validator interface {
	// AssertActive fails with domain.ErrAccountNotFound or
	// domain.ErrAccountInactive, wrapped in a *domain.GovernanceError.
	AssertActive(ctx context.Context, tenantID, code string) error
}

// assertActive is the shared Postgres-backed check both Repository-direct
// and cache-wrapped validators bottom out in.
func assertActive(ctx context.Context, repo Repository, tenantID, code string) error {
	account, err := repo.Get(ctx, tenantID, code)
	if err != nil {
		return err
	}
	if !account.IsActive {
		return domain.NewGovernanceError(domain.ErrAccountInactive, tenantID+"/"+code)
	}
	return nil
}

// directValidator calls Repository.Get on every assertion with no caching.
// Posting uses this form: AssertActive must observe the
// transaction's own read consistency, since a deactivation committing
// concurrently must never let a stale "active" answer through mid-posting.
type directValidator struct {
	repo Repository
}

// NewValidator returns the uncached, transaction-consistent validator.
func NewValidator(repo Repository) Validator {
	return &directValidator{repo: repo}
}

func (v *directValidator) AssertActive(ctx context.Context, tenantID, code string) error {
	return assertActive(ctx, v.repo, tenantID, code)
}
