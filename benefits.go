package membership

import (
	"context"
	"fmt"

	"github.com/xraph/membership/benefit"
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/notification"
)

// RedeemResult is the state of a benefit after redemption.
type RedeemResult struct {
	RemainingValue int64            `json:"remaining_value"`
	IsRedeemed     bool             `json:"is_redeemed"`
	Benefit        *benefit.Benefit `json:"benefit"`
}

// ValidityReport lists the validity of every benefit on one account.
type ValidityReport struct {
	AccountID id.AccountID       `json:"account_id"`
	Benefits  []benefit.Validity `json:"benefits"`
	Err       error              `json:"-"`
}

func checkBenefitBounds(typ benefit.Type, value int64, durationDays int) error {
	rules, ok := typ.Rules()
	if !ok {
		return invalid("type", "unknown benefit type %q", typ)
	}
	if !rules.ValueInRange(value) {
		return invalid("value", "%s value must be within [%d,%d], got %d",
			typ, rules.MinValue, rules.MaxValue, value)
	}
	if !rules.DaysInRange(durationDays) {
		return invalid("duration_days", "%s duration must be within [%d,%d] days, got %d",
			typ, rules.MinDays, rules.MaxDays, durationDays)
	}
	return nil
}

// AddBenefit grants a time-limited benefit to an account.
func (l *Ledger) AddBenefit(ctx context.Context, accountID id.AccountID, typ benefit.Type, value int64, durationDays int) (*benefit.Benefit, error) {
	var out *benefit.Benefit
	err := l.mutate(ctx, "add_benefit", func(t *txn) error {
		var err error
		out, err = t.addBenefit(accountID, typ, value, durationDays)
		return err
	})
	return out, err
}

func (t *txn) addBenefit(accountID id.AccountID, typ benefit.Type, value int64, durationDays int) (*benefit.Benefit, error) {
	if _, err := t.store.GetAccount(t.ctx, accountID); err != nil {
		return nil, err
	}
	if err := t.require(capAdmin, ""); err != nil {
		return nil, err
	}
	if err := checkBenefitBounds(typ, value, durationDays); err != nil {
		return nil, err
	}

	b := &benefit.Benefit{
		ID:             id.NewBenefitID(),
		AccountID:      accountID,
		Type:           typ,
		Value:          value,
		RemainingValue: value,
		ExpiresAt:      benefit.Expiry(t.now, durationDays),
		GrantedAt:      t.now,
		UpdatedAt:      t.now,
	}
	if err := t.store.CreateBenefit(t.ctx, b); err != nil {
		return nil, err
	}

	return b, t.emit(notification.KindBenefitGranted, notification.BenefitGranted{
		AccountID:      accountID,
		Index:          b.Index,
		Type:           typ,
		Value:          value,
		ExpirationTime: b.ExpiresAt,
	})
}

// ModifyBenefit replaces the value and duration of a benefit that has never
// been redeemed against. The expiry is recomputed from now.
func (l *Ledger) ModifyBenefit(ctx context.Context, accountID id.AccountID, index int, newValue int64, newDurationDays int) (*benefit.Benefit, error) {
	var out *benefit.Benefit
	err := l.mutate(ctx, "modify_benefit", func(t *txn) error {
		if _, err := t.store.GetAccount(t.ctx, accountID); err != nil {
			return err
		}
		b, err := t.store.GetBenefit(t.ctx, accountID, index)
		if err != nil {
			return err
		}
		if err := t.require(capAdmin, ""); err != nil {
			return err
		}
		if !b.IsUntouched() {
			return fmt.Errorf("%w: benefit %d has %d of %d remaining",
				ErrAlreadyRedeemed, index, b.RemainingValue, b.Value)
		}
		if err := checkBenefitBounds(b.Type, newValue, newDurationDays); err != nil {
			return err
		}

		b.Value = newValue
		b.RemainingValue = newValue
		b.ExpiresAt = benefit.Expiry(t.now, newDurationDays)
		b.UpdatedAt = t.now
		if err := t.store.UpdateBenefit(t.ctx, b); err != nil {
			return err
		}
		out = b
		return t.emit(notification.KindBenefitModified, notification.BenefitGranted{
			AccountID:      accountID,
			Index:          index,
			Type:           b.Type,
			Value:          newValue,
			ExpirationTime: b.ExpiresAt,
		})
	})
	return out, err
}

// RedeemBenefit consumes a benefit. Merchant allowances are redeemed
// partially by an authorized merchant; yacht and discount benefits are
// consumed whole by the owner, an admin or a merchant regardless of amount.
func (l *Ledger) RedeemBenefit(ctx context.Context, accountID id.AccountID, index int, amount int64) (*RedeemResult, error) {
	return l.RedeemBenefitFor(ctx, accountID, index, amount, "")
}

// RedeemBenefitFor is RedeemBenefit tagged with source, a caller-chosen key
// for the occasion of the redemption (for example one check-in). The tag is
// stored on the benefit in the same transaction. If any benefit of the
// account already carries source the call fails with ErrAlreadyRedeemed
// and nothing is consumed, so replaying the same source is harmless.
func (l *Ledger) RedeemBenefitFor(ctx context.Context, accountID id.AccountID, index int, amount int64, source string) (*RedeemResult, error) {
	var out *RedeemResult
	err := l.mutate(ctx, "redeem_benefit", func(t *txn) error {
		var err error
		out, err = t.redeem(accountID, index, amount, source)
		return err
	})
	return out, err
}

func (t *txn) redeem(accountID id.AccountID, index int, amount int64, source string) (*RedeemResult, error) {
	acct, err := t.store.GetAccount(t.ctx, accountID)
	if err != nil {
		return nil, err
	}
	b, err := t.store.GetBenefit(t.ctx, accountID, index)
	if err != nil {
		return nil, err
	}
	rules, ok := b.Type.Rules()
	if !ok {
		return nil, invalid("type", "unknown benefit type %q", b.Type)
	}
	if err := t.require(redeemers(rules), acct.Owner); err != nil {
		return nil, err
	}
	if b.IsExpired(t.now) {
		return nil, fmt.Errorf("%w: benefit %d expired at %s", ErrExpired, index, b.ExpiresAt)
	}
	if b.IsRedeemed() {
		return nil, fmt.Errorf("%w: benefit %d", ErrAlreadyRedeemed, index)
	}
	if source != "" {
		if err := t.unusedSource(accountID, source); err != nil {
			return nil, err
		}
	}

	consumed, err := consume(rules.Mode, b, amount)
	if err != nil {
		return nil, err
	}
	if source != "" {
		b.RedeemedFor = source
	}
	b.UpdatedAt = t.now
	if err := t.store.UpdateBenefit(t.ctx, b); err != nil {
		return nil, err
	}

	res := &RedeemResult{RemainingValue: b.RemainingValue, IsRedeemed: b.IsRedeemed(), Benefit: b}
	return res, t.emit(notification.KindBenefitRedeemed, notification.BenefitRedeemed{
		AccountID:      accountID,
		Index:          index,
		Type:           b.Type,
		Amount:         consumed,
		RemainingValue: b.RemainingValue,
		Redeemer:       t.caller,
		Source:         source,
	})
}

// unusedSource fails when a benefit of the account was already redeemed
// for source.
func (t *txn) unusedSource(accountID id.AccountID, source string) error {
	benefits, err := t.store.ListBenefits(t.ctx, accountID)
	if err != nil {
		return err
	}
	for _, b := range benefits {
		if b.RedeemedFor == source {
			return fmt.Errorf("%w: benefit %d already redeemed for %s", ErrAlreadyRedeemed, b.Index, source)
		}
	}
	return nil
}

func redeemers(r benefit.Rules) capability {
	if r.MerchantGated {
		return capMerchant
	}
	return capOwner | capAdmin | capMerchant
}

// consume applies a redemption of amount to b and returns what was taken.
func consume(mode benefit.Mode, b *benefit.Benefit, amount int64) (int64, error) {
	switch mode {
	case benefit.ModePartial:
		if amount <= 0 {
			return 0, fmt.Errorf("%w: redemption amount must be > 0, got %d", ErrInvalidAmount, amount)
		}
		if amount > b.RemainingValue {
			return 0, fmt.Errorf("%w: %d remaining, requested %d",
				ErrInsufficientAllowance, b.RemainingValue, amount)
		}
		b.RemainingValue -= amount
		return amount, nil
	case benefit.ModeAtomic:
		consumed := b.RemainingValue
		b.RemainingValue = 0
		return consumed, nil
	default:
		return 0, invalid("mode", "unknown redemption mode %s", mode)
	}
}

// GetBenefits returns an account's benefits in grant order.
func (l *Ledger) GetBenefits(ctx context.Context, accountID id.AccountID) ([]*benefit.Benefit, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return l.store.ListBenefits(ctx, accountID)
}

// GetBenefit returns one benefit by its position on the account.
func (l *Ledger) GetBenefit(ctx context.Context, accountID id.AccountID, index int) (*benefit.Benefit, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return l.store.GetBenefit(ctx, accountID, index)
}

// BatchCheckValidity reports benefit validity for each account without
// modifying anything. Unknown accounts are reported with their error.
func (l *Ledger) BatchCheckValidity(ctx context.Context, accountIDs []id.AccountID) []ValidityReport {
	now := l.Now()
	reports := make([]ValidityReport, 0, len(accountIDs))
	for _, accountID := range accountIDs {
		r := ValidityReport{AccountID: accountID}
		list, err := l.GetBenefits(ctx, accountID)
		if err != nil {
			r.Err = err
		} else {
			r.Benefits = make([]benefit.Validity, 0, len(list))
			for _, b := range list {
				r.Benefits = append(r.Benefits, benefit.Check(b, now))
			}
		}
		reports = append(reports, r)
	}
	return reports
}

// ValidBenefit returns the first currently valid benefit of typ on the
// account, or nil if there is none.
func (l *Ledger) ValidBenefit(ctx context.Context, accountID id.AccountID, typ benefit.Type) (*benefit.Benefit, error) {
	list, err := l.GetBenefits(ctx, accountID)
	if err != nil {
		return nil, err
	}
	now := l.Now()
	for _, b := range list {
		if b.Type == typ && b.IsValid(now) {
			return b, nil
		}
	}
	return nil, nil
}
