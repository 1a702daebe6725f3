// Package benefit defines typed, time-bounded entitlement grants.
package benefit

import (
	"time"

	"github.com/xraph/membership/id"
)

// Type is the closed set of benefit kinds.
type Type string

const (
	TypeMerchantAllowance Type = "MERCHANT_ALLOWANCE"
	TypeYachtEvent        Type = "YACHT_EVENT"
	TypeDiscount          Type = "DISCOUNT"
)

// Types lists every benefit type.
func Types() []Type {
	return []Type{TypeMerchantAllowance, TypeYachtEvent, TypeDiscount}
}

// Mode is how a benefit is consumed.
type Mode int

const (
	// ModePartial allows repeated redemptions until the value is exhausted.
	ModePartial Mode = iota + 1
	// ModeAtomic consumes the whole value on the first redemption.
	ModeAtomic
)

func (m Mode) String() string {
	switch m {
	case ModePartial:
		return "partial"
	case ModeAtomic:
		return "atomic"
	default:
		return "unknown"
	}
}

// Rules are the grant bounds and redemption behavior of a Type.
type Rules struct {
	MinValue int64
	MaxValue int64
	MinDays  int
	MaxDays  int
	Mode     Mode
	// MerchantGated requires an authorized merchant to redeem.
	MerchantGated bool
}

// Rules returns the rules for t; ok is false for unknown types.
func (t Type) Rules() (r Rules, ok bool) {
	switch t {
	case TypeMerchantAllowance:
		return Rules{MinValue: 1, MaxValue: 10000, MinDays: 1, MaxDays: 365, Mode: ModePartial, MerchantGated: true}, true
	case TypeYachtEvent:
		return Rules{MinValue: 1, MaxValue: 10, MinDays: 1, MaxDays: 180, Mode: ModeAtomic}, true
	case TypeDiscount:
		return Rules{MinValue: 1, MaxValue: 100, MinDays: 1, MaxDays: 365, Mode: ModeAtomic}, true
	default:
		return Rules{}, false
	}
}

// Valid reports whether t is a known type.
func (t Type) Valid() bool {
	_, ok := t.Rules()
	return ok
}

// ValueInRange reports whether value is inside the type's bounds.
func (r Rules) ValueInRange(value int64) bool {
	return value >= r.MinValue && value <= r.MaxValue
}

// DaysInRange reports whether days is inside the type's bounds.
func (r Rules) DaysInRange(days int) bool {
	return days >= r.MinDays && days <= r.MaxDays
}

// Benefit is one grant on an account. Index is the zero-based position in
// the account's grant list and never changes. RedeemedFor is the source
// key of the latest tagged redemption, empty if there was none.
type Benefit struct {
	ID             id.BenefitID `json:"id"`
	AccountID      id.AccountID `json:"account_id"`
	Index          int          `json:"index"`
	Type           Type         `json:"type"`
	Value          int64        `json:"value"`
	RemainingValue int64        `json:"remaining_value"`
	RedeemedFor    string       `json:"redeemed_for,omitempty"`
	ExpiresAt      time.Time    `json:"expires_at"`
	GrantedAt      time.Time    `json:"granted_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// IsRedeemed reports whether nothing remains.
func (b *Benefit) IsRedeemed() bool { return b.RemainingValue == 0 }

// IsUntouched reports whether no redemption has happened yet.
func (b *Benefit) IsUntouched() bool { return b.RemainingValue == b.Value }

// IsExpired reports whether now is past the expiration time.
func (b *Benefit) IsExpired(now time.Time) bool { return now.After(b.ExpiresAt) }

// IsValid reports whether the benefit can still be redeemed at now.
func (b *Benefit) IsValid(now time.Time) bool {
	return !b.IsExpired(now) && !b.IsRedeemed()
}

// Expiry returns the expiration for a grant of days starting at now.
func Expiry(now time.Time, days int) time.Time {
	return now.Add(time.Duration(days) * 24 * time.Hour)
}

// Validity is a read-only status line for one benefit.
type Validity struct {
	Index          int       `json:"index"`
	Type           Type      `json:"type"`
	RemainingValue int64     `json:"remaining_value"`
	ExpiresAt      time.Time `json:"expires_at"`
	Expired        bool      `json:"expired"`
	Redeemed       bool      `json:"redeemed"`
	Valid          bool      `json:"valid"`
}

// Check reports the validity of b at now.
func Check(b *Benefit, now time.Time) Validity {
	return Validity{
		Index:          b.Index,
		Type:           b.Type,
		RemainingValue: b.RemainingValue,
		ExpiresAt:      b.ExpiresAt,
		Expired:        b.IsExpired(now),
		Redeemed:       b.IsRedeemed(),
		Valid:          b.IsValid(now),
	}
}
