package membership

import (
	"context"
	"errors"

	"github.com/xraph/membership/merchant"
	"github.com/xraph/membership/notification"
)

// AuthorizeMerchant allows address to take payments and redeem merchant
// allowances. Authorizing an authorized merchant is a no-op.
func (l *Ledger) AuthorizeMerchant(ctx context.Context, address string) error {
	return l.setMerchant(ctx, "authorize_merchant", address, true)
}

// RevokeMerchant withdraws merchant authorization. Revoking an unknown or
// already revoked address is a no-op.
func (l *Ledger) RevokeMerchant(ctx context.Context, address string) error {
	return l.setMerchant(ctx, "revoke_merchant", address, false)
}

func (l *Ledger) setMerchant(ctx context.Context, op, address string, authorized bool) error {
	address = NormalizeAddress(address)
	return l.mutate(ctx, op, func(t *txn) error {
		if err := t.require(capAdmin, ""); err != nil {
			return err
		}
		if address == "" {
			return invalid("address", "must not be empty")
		}

		current, err := t.store.GetMerchant(t.ctx, address)
		switch {
		case errors.Is(err, ErrNotFound):
			if !authorized {
				return nil
			}
		case err != nil:
			return err
		case current.Authorized == authorized:
			return nil
		}

		if err := t.store.PutMerchant(t.ctx, &merchant.Merchant{
			Address:    address,
			Authorized: authorized,
			UpdatedAt:  t.now,
		}); err != nil {
			return err
		}

		kind := notification.KindMerchantAuthorized
		if !authorized {
			kind = notification.KindMerchantRevoked
		}
		return t.emit(kind, notification.MerchantChanged{Address: address})
	})
}

// IsAuthorizedMerchant reports whether address is currently authorized.
func (l *Ledger) IsAuthorizedMerchant(ctx context.Context, address string) (bool, error) {
	return l.view(ctx).isMerchant(NormalizeAddress(address))
}

// ListMerchants returns every known merchant ordered by address.
func (l *Ledger) ListMerchants(ctx context.Context, authorizedOnly bool) ([]*merchant.Merchant, error) {
	return l.store.ListMerchants(ctx, authorizedOnly)
}
