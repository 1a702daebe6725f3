// Package account defines minted membership accounts, their append-only
// transaction log, and the currency allowances used for token top-ups.
package account

import (
	"time"

	"github.com/xraph/membership/id"
	"github.com/xraph/membership/types"
)

// Account holds a stored-value balance in minor units. TemplateID is
// fixed at mint.
type Account struct {
	types.Entity
	ID         id.AccountID  `json:"id"`
	Owner      string        `json:"owner"`
	Balance    int64         `json:"balance"`
	TemplateID id.TemplateID `json:"template_id"`
}

// TxType classifies a transaction log entry.
type TxType string

const (
	TxTopUp        TxType = "TOPUP"
	TxPayment      TxType = "PAYMENT"
	TxBookingDebit TxType = "BOOKING_DEBIT"
)

// Valid reports whether t is a known transaction type.
func (t TxType) Valid() bool {
	switch t {
	case TxTopUp, TxPayment, TxBookingDebit:
		return true
	default:
		return false
	}
}

// IsDebit reports whether entries of this type decrease the balance.
func (t TxType) IsDebit() bool {
	return t == TxPayment || t == TxBookingDebit
}

// Transaction is one entry in an account's log. Seq starts at 1 and
// increases by one per entry within the account.
type Transaction struct {
	ID           id.TransactionID `json:"id"`
	AccountID    id.AccountID     `json:"account_id"`
	Seq          int64            `json:"seq"`
	Type         TxType           `json:"type"`
	Amount       int64            `json:"amount"`
	Currency     types.Currency   `json:"currency"`
	Counterparty string           `json:"counterparty,omitempty"`
	Metadata     string           `json:"metadata,omitempty"`
	BalanceAfter int64            `json:"balance_after"`
	Timestamp    time.Time        `json:"timestamp"`
}

// HistoryQuery filters a transaction log read. Zero values disable the
// corresponding filter.
type HistoryQuery struct {
	Type   TxType
	Since  time.Time
	Until  time.Time
	Limit  int
	Offset int
}

// Matches reports whether tx passes the type and time filters.
func (q HistoryQuery) Matches(tx *Transaction) bool {
	if q.Type != "" && tx.Type != q.Type {
		return false
	}
	if !q.Since.IsZero() && tx.Timestamp.Before(q.Since) {
		return false
	}
	if !q.Until.IsZero() && tx.Timestamp.After(q.Until) {
		return false
	}
	return true
}

// Stats aggregates an account's transaction log.
type Stats struct {
	Count        int              `json:"count"`
	TotalTopUp   int64            `json:"total_top_up"`
	TotalPayment int64            `json:"total_payment"`
	TotalBooking int64            `json:"total_booking"`
	ByMerchant   map[string]int64 `json:"by_merchant,omitempty"`
	First        time.Time        `json:"first,omitempty"`
	Last         time.Time        `json:"last,omitempty"`
}

// Summarize folds txs into Stats.
func Summarize(txs []*Transaction) Stats {
	s := Stats{ByMerchant: make(map[string]int64)}
	for _, tx := range txs {
		s.Count++
		switch tx.Type {
		case TxTopUp:
			s.TotalTopUp += tx.Amount
		case TxPayment:
			s.TotalPayment += tx.Amount
			s.ByMerchant[tx.Counterparty] += tx.Amount
		case TxBookingDebit:
			s.TotalBooking += tx.Amount
		}
		if s.First.IsZero() || tx.Timestamp.Before(s.First) {
			s.First = tx.Timestamp
		}
		if tx.Timestamp.After(s.Last) {
			s.Last = tx.Timestamp
		}
	}
	return s
}

// Allowance is the amount of a token currency an owner has pre-authorized
// the ledger to pull during top-ups.
type Allowance struct {
	Owner    string         `json:"owner"`
	Currency types.Currency `json:"currency"`
	Amount   int64          `json:"amount"`
}

// SupportedCurrency is a registered token currency.
type SupportedCurrency struct {
	Currency     types.Currency `json:"currency"`
	RegisteredAt time.Time      `json:"registered_at"`
}
