// Package template defines membership tiers accounts are minted from.
package template

import (
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/types"
)

// MaxDiscountPercent is the upper bound for DiscountPercent.
const MaxDiscountPercent = 100

// Template is a membership tier blueprint. Templates are never deleted;
// Active flips false on deactivation and already minted accounts keep
// their origin template.
type Template struct {
	types.Entity
	ID              id.TemplateID `json:"id"`
	Name            string        `json:"name"`
	BaseBalance     int64         `json:"base_balance"`
	MintPrice       int64         `json:"mint_price"`
	DiscountPercent int           `json:"discount_percent"`
	IsVIP           bool          `json:"is_vip"`
	MetadataRef     string        `json:"metadata_ref,omitempty"`
	Active          bool          `json:"active"`
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name            *string `json:"name,omitempty"`
	BaseBalance     *int64  `json:"base_balance,omitempty"`
	MintPrice       *int64  `json:"mint_price,omitempty"`
	DiscountPercent *int    `json:"discount_percent,omitempty"`
	IsVIP           *bool   `json:"is_vip,omitempty"`
	MetadataRef     *string `json:"metadata_ref,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.BaseBalance == nil && p.MintPrice == nil &&
		p.DiscountPercent == nil && p.IsVIP == nil && p.MetadataRef == nil
}

// Apply writes the non-nil fields of p onto t.
func (p Patch) Apply(t *Template) {
	if p.Name != nil {
		t.Name = *p.Name
	}
	if p.BaseBalance != nil {
		t.BaseBalance = *p.BaseBalance
	}
	if p.MintPrice != nil {
		t.MintPrice = *p.MintPrice
	}
	if p.DiscountPercent != nil {
		t.DiscountPercent = *p.DiscountPercent
	}
	if p.IsVIP != nil {
		t.IsVIP = *p.IsVIP
	}
	if p.MetadataRef != nil {
		t.MetadataRef = *p.MetadataRef
	}
}
