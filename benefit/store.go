package benefit

import (
	"context"

	"github.com/xraph/membership/id"
)

// Store persists benefit grants. Grants are never deleted.
type Store interface {
	// CreateBenefit assigns b.Index as the next position for the account.
	CreateBenefit(ctx context.Context, b *Benefit) error
	GetBenefit(ctx context.Context, accountID id.AccountID, index int) (*Benefit, error)
	UpdateBenefit(ctx context.Context, b *Benefit) error
	// ListBenefits returns grants ordered by Index.
	ListBenefits(ctx context.Context, accountID id.AccountID) ([]*Benefit, error)
}
