package coa

import (
	"context"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

// Service is the write-side surface over the chart of accounts: creating
// entries and deactivating them, keeping the read-through cache in sync
// with Deactivate so AssertActive's cached callers see the change promptly
// rather than waiting out the full TTL.
type Service struct {
	repo  Repository
	cache *CachedValidator // nil when no cache is configured
}

func NewService(repo Repository, cache *CachedValidator) *Service {
	return &Service{repo: repo, cache: cache}
}

func (s *Service) Create(ctx context.Context, account domain.Account) error {
	return s.repo.Create(ctx, account)
}

func (s *Service) Deactivate(ctx context.Context, tenantID, code string) error {
	if err := s.repo.Deactivate(ctx, tenantID, code); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, tenantID, code)
	}
	return nil
}
