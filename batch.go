package membership

import (
	"context"

	"github.com/xraph/membership/benefit"
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/types"
)

// TopUpItem is one entry of BatchTopUp.
type TopUpItem struct {
	AccountID id.AccountID
	Amount    int64
	Currency  types.Currency
}

// PaymentItem is one entry of BatchProcessPayment.
type PaymentItem struct {
	AccountID id.AccountID
	Amount    int64
	Metadata  string
}

// BenefitGrant is one entry of BatchAddBenefit.
type BenefitGrant struct {
	AccountID    id.AccountID
	Type         benefit.Type
	Value        int64
	DurationDays int
}

// BatchItemResult is the outcome of one batch item.
type BatchItemResult struct {
	Index  int    `json:"index"`
	Key    string `json:"key"`
	Amount int64  `json:"amount"`
	Err    error  `json:"-"`
	Kind   Kind   `json:"kind,omitempty"`
}

// OK reports whether the item succeeded.
func (r BatchItemResult) OK() bool { return r.Err == nil }

// BatchResult collects per-item outcomes. A failed item never affects its
// siblings.
type BatchResult struct {
	Items       []BatchItemResult `json:"items"`
	Succeeded   int               `json:"succeeded"`
	Failed      int               `json:"failed"`
	TotalAmount int64             `json:"total_amount"`
}

func (r *BatchResult) record(index int, key string, amount int64, err error) {
	item := BatchItemResult{Index: index, Key: key, Amount: amount, Err: err, Kind: KindOf(err)}
	if err != nil {
		r.Failed++
	} else {
		r.Succeeded++
		r.TotalAmount += amount
	}
	r.Items = append(r.Items, item)
}

// Errors returns the errors of the failed items.
func (r *BatchResult) Errors() MultiError {
	var m MultiError
	for _, item := range r.Items {
		m.Add(item.Err)
	}
	return m
}

// BatchTopUp applies each top-up in its own transaction.
func (l *Ledger) BatchTopUp(ctx context.Context, items []TopUpItem) *BatchResult {
	res := &BatchResult{Items: make([]BatchItemResult, 0, len(items))}
	for i, item := range items {
		_, err := l.TopUp(ctx, item.AccountID, item.Amount, item.Currency)
		res.record(i, item.AccountID.String(), item.Amount, err)
	}
	return res
}

// BatchProcessPayment applies each payment in its own transaction.
func (l *Ledger) BatchProcessPayment(ctx context.Context, items []PaymentItem) *BatchResult {
	res := &BatchResult{Items: make([]BatchItemResult, 0, len(items))}
	for i, item := range items {
		_, err := l.ProcessPayment(ctx, item.AccountID, item.Amount, item.Metadata)
		res.record(i, item.AccountID.String(), item.Amount, err)
	}
	return res
}

// BatchMint mints one account per owner from the same template. Each
// succeeded item's Key is the new account ID and its Amount the seeded
// balance.
func (l *Ledger) BatchMint(ctx context.Context, templateID id.TemplateID, owners []string) *BatchResult {
	res := &BatchResult{Items: make([]BatchItemResult, 0, len(owners))}
	for i, owner := range owners {
		acct, err := l.MintFromTemplate(ctx, templateID, owner)
		if err != nil {
			res.record(i, NormalizeAddress(owner), 0, err)
			continue
		}
		res.record(i, acct.ID.String(), acct.Balance, nil)
	}
	return res
}

// BatchAddBenefit grants each benefit in its own transaction.
func (l *Ledger) BatchAddBenefit(ctx context.Context, grants []BenefitGrant) *BatchResult {
	res := &BatchResult{Items: make([]BatchItemResult, 0, len(grants))}
	for i, g := range grants {
		_, err := l.AddBenefit(ctx, g.AccountID, g.Type, g.Value, g.DurationDays)
		res.record(i, g.AccountID.String(), g.Value, err)
	}
	return res
}

// BatchBookEntrance books one entrance on eventID for each account. Amount
// is the price debited.
func (l *Ledger) BatchBookEntrance(ctx context.Context, eventID id.EventID, accountIDs []id.AccountID) *BatchResult {
	res := &BatchResult{Items: make([]BatchItemResult, 0, len(accountIDs))}
	for i, accountID := range accountIDs {
		b, err := l.BookEntrance(ctx, accountID, eventID)
		var paid int64
		if b != nil {
			paid = b.PricePaid
		}
		res.record(i, accountID.String(), paid, err)
	}
	return res
}
