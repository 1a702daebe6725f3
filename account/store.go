package account

import (
	"context"

	"github.com/xraph/membership/id"
	"github.com/xraph/membership/types"
)

// Store persists accounts, their transaction logs, and currency state.
type Store interface {
	CreateAccount(ctx context.Context, a *Account) error
	GetAccount(ctx context.Context, accountID id.AccountID) (*Account, error)
	UpdateAccount(ctx context.Context, a *Account) error
	ListAccountsByOwner(ctx context.Context, owner string) ([]*Account, error)

	// AppendTransaction assigns tx.Seq and appends it to the account log.
	AppendTransaction(ctx context.Context, tx *Transaction) error
	// ListTransactions returns entries in Seq order.
	ListTransactions(ctx context.Context, accountID id.AccountID, q HistoryQuery) ([]*Transaction, error)

	PutAllowance(ctx context.Context, a *Allowance) error
	// GetAllowance returns zero for an owner that never approved.
	GetAllowance(ctx context.Context, owner string, currency types.Currency) (int64, error)

	PutCurrency(ctx context.Context, c *SupportedCurrency) error
	DeleteCurrency(ctx context.Context, currency types.Currency) error
	IsCurrencySupported(ctx context.Context, currency types.Currency) (bool, error)
	ListCurrencies(ctx context.Context) ([]*SupportedCurrency, error)
}
