package merchant

import "context"

// Store persists merchant authorization.
type Store interface {
	// PutMerchant inserts or replaces the status for m.Address.
	PutMerchant(ctx context.Context, m *Merchant) error
	GetMerchant(ctx context.Context, address string) (*Merchant, error)
	// ListMerchants returns merchants ordered by address.
	ListMerchants(ctx context.Context, authorizedOnly bool) ([]*Merchant, error)
}
