package periods

import (
	"context"
	"time"

	"github.com/Haleralex/ledgerflow/internal/ledger/domain"
)

// Governance is what posting and reversal depend on.
type Governance struct {
	repo Repository
}

func NewGovernance(repo Repository) *Governance {
	return &Governance{repo: repo}
}

// ValidatePostingDate finds the unique period covering date and rejects a
// closed one. Must be called inside the caller's posting transaction: the
// period row is read under that transaction's isolation level, so a
// concurrent close either commits entirely before this read or entirely
// after it, never mid-way.
func (g *Governance) ValidatePostingDate(ctx context.Context, tenantID string, date time.Time) (*domain.Period, error) {
	period, err := g.repo.FindByDate(ctx, tenantID, date)
	if err != nil {
		return nil, err
	}
	if period.IsClosed() {
		return nil, domain.NewGovernanceError(domain.ErrPeriodClosed, period.ID)
	}
	return period, nil
}
