package membership

import "github.com/xraph/membership/types"

// Re-export common types for convenience so users don't have to import types package.

// Currency is re-exported from types package.
type Currency = types.Currency

// Entity is re-exported from types package.
type Entity = types.Entity

// Native is the ledger's own unit of account.
const Native = types.Native

// Re-export constructors
var (
	ParseCurrency = types.ParseCurrency
	MustCurrency  = types.MustCurrency
	NewEntity     = types.NewEntity
)
