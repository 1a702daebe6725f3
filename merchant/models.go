// Package merchant tracks which addresses may debit balances or redeem
// merchant-scoped benefits.
package merchant

import "time"

// Merchant is the authorization status of one address. Rows are kept
// after revocation so the last change stays visible.
type Merchant struct {
	Address    string    `json:"address"`
	Authorized bool      `json:"authorized"`
	UpdatedAt  time.Time `json:"updated_at"`
}
