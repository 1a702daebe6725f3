// Package yachthook redeems a member's yacht benefit when they check in to
// a yacht event.
package yachthook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/xraph/membership"
	"github.com/xraph/membership/benefit"
	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin      = (*Hook)(nil)
	_ plugin.OnInit      = (*Hook)(nil)
	_ plugin.OnCheckedIn = (*Hook)(nil)
)

// Hook is a plugin reacting to check-ins. It redeems on behalf of operator,
// which must hold the admin capability on the ledger.
//
// Each redemption is tagged with its check-in key through
// Ledger.RedeemBenefitFor, so a redelivered check-in is recognised by the
// store and never consumes a second benefit, even across restarts.
type Hook struct {
	operator string
	logger   *slog.Logger

	mu     sync.Mutex
	ledger *membership.Ledger
}

// Option configures a Hook.
type Option func(*Hook)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Hook) { h.logger = logger }
}

// WithLedger binds the hook to l without waiting for OnInit.
func WithLedger(l *membership.Ledger) Option {
	return func(h *Hook) { h.ledger = l }
}

// New creates a Hook redeeming as operator.
func New(operator string, opts ...Option) *Hook {
	h := &Hook{
		operator: operator,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements plugin.Plugin.
func (h *Hook) Name() string { return "yacht-hook" }

// OnInit implements plugin.OnInit.
func (h *Hook) OnInit(_ context.Context, l any) error {
	led, ok := l.(*membership.Ledger)
	if !ok {
		return fmt.Errorf("yachthook: unexpected ledger type %T", l)
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ledger = led
	return nil
}

// CheckInKey is the redemption source recorded for a check-in.
func CheckInKey(e *notification.BookingChanged) string {
	return fmt.Sprintf("checkin/%s/%s/%d", e.AccountID, e.EventID, e.EntranceIndex)
}

// OnCheckedIn implements plugin.OnCheckedIn.
func (h *Hook) OnCheckedIn(ctx context.Context, e *notification.BookingChanged) error {
	h.mu.Lock()
	l := h.ledger
	h.mu.Unlock()

	if l == nil {
		return errors.New("yachthook: ledger not bound")
	}

	ev, err := l.GetEvent(ctx, e.EventID)
	if err != nil {
		return err
	}
	if !ev.IsYacht() {
		return nil
	}

	b, err := l.ValidBenefit(ctx, e.AccountID, benefit.TypeYachtEvent)
	if err != nil {
		return err
	}
	if b == nil {
		h.logger.Info("yachthook: no yacht benefit to redeem",
			"account_id", e.AccountID.String(),
			"event_id", e.EventID.String(),
		)
		return nil
	}

	key := CheckInKey(e)
	res, err := l.RedeemBenefitFor(membership.WithCaller(ctx, h.operator), e.AccountID, b.Index, 1, key)
	switch {
	case err == nil:
	case errors.Is(err, membership.ErrAlreadyRedeemed), errors.Is(err, membership.ErrExpired):
		h.logger.Info("yachthook: yacht benefit not redeemed",
			"account_id", e.AccountID.String(),
			"index", b.Index,
			"check_in", key,
			"error", err,
		)
		return nil
	default:
		return fmt.Errorf("yachthook: redeem benefit %d: %w", b.Index, err)
	}

	h.logger.Info("yachthook: yacht benefit redeemed",
		"account_id", e.AccountID.String(),
		"event_id", e.EventID.String(),
		"index", b.Index,
		"remaining", res.RemainingValue,
	)
	return nil
}
