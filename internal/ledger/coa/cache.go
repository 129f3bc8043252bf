package coa

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

// cacheTTL bounds how stale a cached "active" answer can be. Short enough
// that the window between a deactivation and its cache invalidation
// landing is not operationally interesting, long enough to absorb repeat
// lookups of the same handful of accounts within one posting burst.
const cacheTTL = 5 * time.Second

type cachedEntry struct {
	IsActive      bool                 `json:"is_active"`
	Type          domain.AccountType   `json:"type"`
	NormalBalance domain.NormalBalance `json:"normal_balance"`
}

// CachedValidator is a Redis read-through cache in front of Repository.Get.
// It is deliberately NOT what posting calls inside its posting
// transaction, AssertActive there uses the direct,
// transaction-consistent validator, because correctness requires a
// concurrent deactivation to be visible to every posting that starts
// after it commits. CachedValidator instead serves read-mostly,
// non-transactional callers (the HTTP account-status surface) where a
// few seconds of staleness is an acceptable trade for cutting Postgres
// round-trips on the hottest lookup in the system.
type CachedValidator struct {
	repo   Repository
	client *redis.Client
	ttl    time.Duration
}

// NewCachedValidator wraps repo with a Redis read-through cache.
func NewCachedValidator(repo Repository, client *redis.Client) *CachedValidator {
	return &CachedValidator{repo: repo, client: client, ttl: cacheTTL}
}

func cacheKey(tenantID, code string) string {
	return "coa:" + tenantID + ":" + code
}

func (v *CachedValidator) AssertActive(ctx context.Context, tenantID, code string) error {
	key := cacheKey(tenantID, code)

	raw, err := v.client.Get(ctx, key).Bytes()
	if err == nil {
		var entry cachedEntry
		if jsonErr := json.Unmarshal(raw, &entry); jsonErr == nil {
			if !entry.IsActive {
				return domain.NewGovernanceError(domain.ErrAccountInactive, tenantID+"/"+code)
			}
			return nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// Redis unavailable: fall through to Postgres rather than fail the
		// lookup on a cache outage.
	}

	account, err := v.repo.Get(ctx, tenantID, code)
	if err != nil {
		return err
	}

	entry := cachedEntry{IsActive: account.IsActive, Type: account.Type, NormalBalance: account.NormalBalance}
	if body, marshalErr := json.Marshal(entry); marshalErr == nil {
		_ = v.client.Set(ctx, key, body, v.ttl).Err()
	}

	if !account.IsActive {
		return domain.NewGovernanceError(domain.ErrAccountInactive, tenantID+"/"+code)
	}
	return nil
}

// Status returns the cached-or-fetched account, for read-mostly callers
// that need more than the active/inactive boolean AssertActive reports
// (the HTTP account-status surface).
func (v *CachedValidator) Status(ctx context.Context, tenantID, code string) (*domain.Account, error) {
	key := cacheKey(tenantID, code)

	raw, err := v.client.Get(ctx, key).Bytes()
	if err == nil {
		var entry cachedEntry
		if jsonErr := json.Unmarshal(raw, &entry); jsonErr == nil {
			return &domain.Account{
				TenantID:      tenantID,
				Code:          code,
				Type:          entry.Type,
				NormalBalance: entry.NormalBalance,
				IsActive:      entry.IsActive,
			}, nil
		}
	}

	account, err := v.repo.Get(ctx, tenantID, code)
	if err != nil {
		return nil, err
	}
	entry := cachedEntry{IsActive: account.IsActive, Type: account.Type, NormalBalance: account.NormalBalance}
	if body, marshalErr := json.Marshal(entry); marshalErr == nil {
		_ = v.client.Set(ctx, key, body, v.ttl).Err()
	}
	return account, nil
}

// Invalidate drops the cached entry for (tenantID, code), called after a
// Deactivate commits so the cache's staleness window starts from zero
// rather than running the full TTL.
func (v *CachedValidator) Invalidate(ctx context.Context, tenantID, code string) error {
	return v.client.Del(ctx, cacheKey(tenantID, code)).Err()
}

var _ Validator = (*CachedValidator)(nil)
