package membership

import (
	"context"
	"fmt"

	"github.com/xraph/membership/account"
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/types"
)

// MintFromTemplate creates an account for owner seeded with the template's
// base balance. The caller must be an admin or the owner itself.
func (l *Ledger) MintFromTemplate(ctx context.Context, templateID id.TemplateID, owner string) (*account.Account, error) {
	var out *account.Account
	err := l.mutate(ctx, "mint", func(t *txn) error {
		var err error
		out, err = t.mint(templateID, owner)
		return err
	})
	return out, err
}

func (t *txn) mint(templateID id.TemplateID, owner string) (*account.Account, error) {
	owner = NormalizeAddress(owner)

	tmpl, err := t.store.GetTemplate(t.ctx, templateID)
	if err != nil {
		return nil, err
	}
	if err := t.require(capAdmin|capOwner, owner); err != nil {
		return nil, err
	}
	if owner == "" {
		return nil, invalid("owner", "must not be empty")
	}
	if !tmpl.Active {
		return nil, ErrTemplateInactive
	}

	acct := &account.Account{
		Entity:     types.NewEntity(t.now),
		ID:         id.NewAccountID(),
		Owner:      owner,
		Balance:    tmpl.BaseBalance,
		TemplateID: tmpl.ID,
	}
	if err := t.store.CreateAccount(t.ctx, acct); err != nil {
		return nil, err
	}

	return acct, t.emit(notification.KindAccountMinted, notification.AccountMinted{
		AccountID:      acct.ID,
		TemplateID:     tmpl.ID,
		Owner:          owner,
		InitialBalance: acct.Balance,
	})
}

// TopUp credits amount to an account. Non-native currencies must be
// registered and are drawn from the caller's approved allowance, converted
// 1:1 into balance.
func (l *Ledger) TopUp(ctx context.Context, accountID id.AccountID, amount int64, currency types.Currency) (*account.Account, error) {
	var out *account.Account
	err := l.mutate(ctx, "top_up", func(t *txn) error {
		var err error
		out, err = t.topUp(accountID, amount, currency)
		return err
	})
	return out, err
}

func (t *txn) topUp(accountID id.AccountID, amount int64, currency types.Currency) (*account.Account, error) {
	acct, err := t.store.GetAccount(t.ctx, accountID)
	if err != nil {
		return nil, err
	}
	if t.caller == "" {
		return nil, ErrNoCaller
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: top-up amount must be > 0, got %d", ErrInvalidAmount, amount)
	}

	currency, err = types.ParseCurrency(string(currency))
	if err != nil {
		return nil, invalid("currency", "%v", err)
	}
	if !currency.IsNative() {
		if err := t.consumeAllowance(currency, amount); err != nil {
			return nil, err
		}
	}

	if _, err := t.apply(acct, account.TxTopUp, amount, currency, t.caller, ""); err != nil {
		return nil, err
	}
	return acct, nil
}

func (t *txn) consumeAllowance(currency types.Currency, amount int64) error {
	ok, err := t.store.IsCurrencySupported(t.ctx, currency)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedCurrency, currency)
	}

	approved, err := t.store.GetAllowance(t.ctx, t.caller, currency)
	if err != nil {
		return err
	}
	if approved < amount {
		return fmt.Errorf("%w: %s approved %d of %s, need %d",
			ErrInsufficientAllowance, t.caller, approved, currency, amount)
	}

	return t.store.PutAllowance(t.ctx, &account.Allowance{
		Owner:    t.caller,
		Currency: currency,
		Amount:   approved - amount,
	})
}

// ProcessPayment debits amount from an account on behalf of the calling
// merchant and records the payment.
func (l *Ledger) ProcessPayment(ctx context.Context, accountID id.AccountID, amount int64, metadata string) (*account.Transaction, error) {
	var out *account.Transaction
	err := l.mutate(ctx, "process_payment", func(t *txn) error {
		var err error
		out, err = t.pay(accountID, amount, metadata)
		return err
	})
	return out, err
}

func (t *txn) pay(accountID id.AccountID, amount int64, metadata string) (*account.Transaction, error) {
	acct, err := t.store.GetAccount(t.ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := t.require(capMerchant, ""); err != nil {
		return nil, err
	}
	if amount <= 0 {
		return nil, fmt.Errorf("%w: payment amount must be > 0, got %d", ErrInvalidAmount, amount)
	}
	return t.apply(acct, account.TxPayment, amount, types.Native, t.caller, metadata)
}

// apply moves acct's balance by amount in the direction of typ, appends the
// transaction and emits BalanceUpdated and TransactionRecorded.
func (t *txn) apply(acct *account.Account, typ account.TxType, amount int64, currency types.Currency, counterparty, metadata string) (*account.Transaction, error) {
	if typ.IsDebit() {
		if acct.Balance < amount {
			return nil, fmt.Errorf("%w: balance %d, need %d", ErrInsufficientBalance, acct.Balance, amount)
		}
		acct.Balance -= amount
	} else {
		next, ok := types.AddAmount(acct.Balance, amount)
		if !ok {
			return nil, fmt.Errorf("%w: balance would overflow", ErrInvalidAmount)
		}
		acct.Balance = next
	}
	acct.Touch(t.now)

	if err := t.store.UpdateAccount(t.ctx, acct); err != nil {
		return nil, err
	}

	tx := &account.Transaction{
		ID:           id.NewTransactionID(),
		AccountID:    acct.ID,
		Type:         typ,
		Amount:       amount,
		Currency:     currency,
		Counterparty: counterparty,
		Metadata:     metadata,
		BalanceAfter: acct.Balance,
		Timestamp:    t.now,
	}
	if err := t.store.AppendTransaction(t.ctx, tx); err != nil {
		return nil, err
	}

	if err := t.emit(notification.KindBalanceUpdated, notification.BalanceUpdated{
		AccountID:  acct.ID,
		NewBalance: acct.Balance,
		UpdateType: typ,
	}); err != nil {
		return nil, err
	}
	return tx, t.emit(notification.KindTransactionRecorded, notification.TransactionRecorded{
		AccountID:     acct.ID,
		TransactionID: tx.ID,
		Amount:        amount,
		Type:          typ,
		Counterparty:  counterparty,
		Metadata:      metadata,
		Timestamp:     t.now,
	})
}

// GetAccount retrieves an account by ID.
func (l *Ledger) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	return l.store.GetAccount(ctx, accountID)
}

// GetBalance returns an account's current balance.
func (l *Ledger) GetBalance(ctx context.Context, accountID id.AccountID) (int64, error) {
	acct, err := l.store.GetAccount(ctx, accountID)
	if err != nil {
		return 0, err
	}
	return acct.Balance, nil
}

// ListAccountsByOwner returns the accounts held by owner.
func (l *Ledger) ListAccountsByOwner(ctx context.Context, owner string) ([]*account.Account, error) {
	return l.store.ListAccountsByOwner(ctx, NormalizeAddress(owner))
}

// GetTransactionHistory returns an account's transactions in the order
// they were recorded.
func (l *Ledger) GetTransactionHistory(ctx context.Context, accountID id.AccountID, q account.HistoryQuery) ([]*account.Transaction, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return l.store.ListTransactions(ctx, accountID, q)
}

// TransactionStats aggregates an account's full transaction history.
func (l *Ledger) TransactionStats(ctx context.Context, accountID id.AccountID) (account.Stats, error) {
	txs, err := l.GetTransactionHistory(ctx, accountID, account.HistoryQuery{})
	if err != nil {
		return account.Stats{}, err
	}
	return account.Summarize(txs), nil
}

// ──────────────────────────────────────────────────
// Currencies and allowances
// ──────────────────────────────────────────────────

// RegisterCurrency accepts a token for top-ups.
func (l *Ledger) RegisterCurrency(ctx context.Context, currency types.Currency) error {
	return l.setCurrency(ctx, currency, true)
}

// UnregisterCurrency stops accepting a token for top-ups.
func (l *Ledger) UnregisterCurrency(ctx context.Context, currency types.Currency) error {
	return l.setCurrency(ctx, currency, false)
}

func (l *Ledger) setCurrency(ctx context.Context, currency types.Currency, supported bool) error {
	return l.mutate(ctx, "set_currency", func(t *txn) error {
		if err := t.require(capAdmin, ""); err != nil {
			return err
		}
		c, err := types.ParseCurrency(string(currency))
		if err != nil {
			return invalid("currency", "%v", err)
		}
		if c.IsNative() {
			return invalid("currency", "the native currency is always supported")
		}

		current, err := t.store.IsCurrencySupported(t.ctx, c)
		if err != nil {
			return err
		}
		if current == supported {
			return nil
		}

		if supported {
			err = t.store.PutCurrency(t.ctx, &account.SupportedCurrency{Currency: c, RegisteredAt: t.now})
		} else {
			err = t.store.DeleteCurrency(t.ctx, c)
		}
		if err != nil {
			return err
		}
		return t.emit(notification.KindCurrencyRegistered, notification.CurrencyRegistered{
			Currency:  c.String(),
			Supported: supported,
		})
	})
}

// IsCurrencySupported reports whether top-ups in currency are accepted.
func (l *Ledger) IsCurrencySupported(ctx context.Context, currency types.Currency) (bool, error) {
	c, err := types.ParseCurrency(string(currency))
	if err != nil {
		return false, invalid("currency", "%v", err)
	}
	if c.IsNative() {
		return true, nil
	}
	return l.store.IsCurrencySupported(ctx, c)
}

// ListCurrencies returns every registered token.
func (l *Ledger) ListCurrencies(ctx context.Context) ([]*account.SupportedCurrency, error) {
	return l.store.ListCurrencies(ctx)
}

// ApproveAllowance sets how much of currency the caller lets top-ups draw.
// It replaces any previous approval.
func (l *Ledger) ApproveAllowance(ctx context.Context, currency types.Currency, amount int64) error {
	return l.mutate(ctx, "approve_allowance", func(t *txn) error {
		if t.caller == "" {
			return ErrNoCaller
		}
		c, err := types.ParseCurrency(string(currency))
		if err != nil {
			return invalid("currency", "%v", err)
		}
		if c.IsNative() {
			return invalid("currency", "native top-ups need no allowance")
		}
		if amount < 0 {
			return fmt.Errorf("%w: allowance must be >= 0, got %d", ErrInvalidAmount, amount)
		}
		return t.store.PutAllowance(t.ctx, &account.Allowance{Owner: t.caller, Currency: c, Amount: amount})
	})
}

// Allowance returns what owner has approved for currency.
func (l *Ledger) Allowance(ctx context.Context, owner string, currency types.Currency) (int64, error) {
	c, err := types.ParseCurrency(string(currency))
	if err != nil {
		return 0, invalid("currency", "%v", err)
	}
	return l.store.GetAllowance(ctx, NormalizeAddress(owner), c)
}
