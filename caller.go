package membership

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type callerKey struct{}

// WithCaller returns a context carrying the identity of the party invoking
// an operation. The embedding service is responsible for authenticating it.
func WithCaller(ctx context.Context, address string) context.Context {
	return context.WithValue(ctx, callerKey{}, NormalizeAddress(address))
}

// CallerFrom returns the caller identity carried by ctx, or "".
func CallerFrom(ctx context.Context) string {
	if v, ok := ctx.Value(callerKey{}).(string); ok {
		return v
	}
	return ""
}

// NormalizeAddress canonicalizes an address for comparison.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// capability is a set of roles an operation accepts.
type capability uint8

const (
	capAdmin capability = 1 << iota
	capMerchant
	capOwner
)

func (c capability) String() string {
	var names []string
	if c&capAdmin != 0 {
		names = append(names, "admin")
	}
	if c&capMerchant != 0 {
		names = append(names, "merchant")
	}
	if c&capOwner != 0 {
		names = append(names, "owner")
	}
	return strings.Join(names, "|")
}

// require checks that the caller holds one of the allowed roles. owner is
// the owning address of the target, used only when capOwner is allowed.
func (t *txn) require(allowed capability, owner string) error {
	if t.caller == "" {
		return ErrNoCaller
	}
	if allowed&capAdmin != 0 && t.l.IsAdmin(t.caller) {
		return nil
	}
	if allowed&capOwner != 0 && owner != "" && t.caller == owner {
		return nil
	}
	if allowed&capMerchant != 0 {
		ok, err := t.isMerchant(t.caller)
		if err != nil {
			return err
		}
		if ok {
			return nil
		}
	}
	return fmt.Errorf("%w: %s requires %s", ErrUnauthorized, t.caller, allowed)
}

func (t *txn) isMerchant(address string) (bool, error) {
	m, err := t.store.GetMerchant(t.ctx, address)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Authorized, nil
}
