package types

import (
	"fmt"
	"math"
	"strings"
)

// Currency identifies the unit a top-up is paid in. The native currency
// is always accepted; any other value is a token identifier that must be
// registered before use.
type Currency string

// Native is the built-in currency of the ledger.
const Native Currency = "NATIVE"

// ParseCurrency normalizes s into a Currency. An empty string or any
// casing of "native" yields Native; token identifiers are lowercased.
func ParseCurrency(s string) (Currency, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, string(Native)) {
		return Native, nil
	}
	if strings.ContainsAny(s, " \t\n") {
		return "", fmt.Errorf("types: invalid currency %q", s)
	}
	return Currency(strings.ToLower(s)), nil
}

// MustCurrency is like ParseCurrency but panics on error.
func MustCurrency(s string) Currency {
	c, err := ParseCurrency(s)
	if err != nil {
		panic(err)
	}
	return c
}

// IsNative reports whether c is the native currency.
func (c Currency) IsNative() bool {
	return c == "" || c == Native
}

// Normalize returns Native for the zero value and c otherwise.
func (c Currency) Normalize() Currency {
	if c == "" {
		return Native
	}
	return c
}

func (c Currency) String() string { return string(c.Normalize()) }

// AddAmount adds two minor-unit amounts and reports false on int64 overflow.
func AddAmount(a, b int64) (int64, bool) {
	if b > 0 && a > math.MaxInt64-b {
		return 0, false
	}
	if b < 0 && a < math.MinInt64-b {
		return 0, false
	}
	return a + b, true
}
