// Package plugin provides an extensible plugin system for the membership
// ledger. Plugins observe committed notifications through typed hooks.
package plugin

import (
	"context"

	"github.com/xraph/membership/notification"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the ledger starts. l is the *membership.Ledger.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, l any) error
}

// OnShutdown is called when the ledger is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Generic hook
// ──────────────────────────────────────────────────

// OnNotification receives every notification before the typed hooks.
type OnNotification interface {
	Plugin
	OnNotification(ctx context.Context, n *notification.Notification) error
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountMinted is called when an account is minted from a template.
type OnAccountMinted interface {
	Plugin
	OnAccountMinted(ctx context.Context, e *notification.AccountMinted) error
}

// OnBalanceUpdated is called when an account balance changes.
type OnBalanceUpdated interface {
	Plugin
	OnBalanceUpdated(ctx context.Context, e *notification.BalanceUpdated) error
}

// OnTransactionRecorded is called when a transaction is appended.
type OnTransactionRecorded interface {
	Plugin
	OnTransactionRecorded(ctx context.Context, e *notification.TransactionRecorded) error
}

// ──────────────────────────────────────────────────
// Benefit hooks
// ──────────────────────────────────────────────────

// OnBenefitGranted is called when a benefit is granted.
type OnBenefitGranted interface {
	Plugin
	OnBenefitGranted(ctx context.Context, e *notification.BenefitGranted) error
}

// OnBenefitRedeemed is called when a benefit is redeemed.
type OnBenefitRedeemed interface {
	Plugin
	OnBenefitRedeemed(ctx context.Context, e *notification.BenefitRedeemed) error
}

// ──────────────────────────────────────────────────
// Event hooks
// ──────────────────────────────────────────────────

// OnEventCreated is called when an event is scheduled.
type OnEventCreated interface {
	Plugin
	OnEventCreated(ctx context.Context, e *notification.EventChanged) error
}

// OnEventUpdated is called when an event is modified.
type OnEventUpdated interface {
	Plugin
	OnEventUpdated(ctx context.Context, e *notification.EventChanged) error
}

// OnEventExpired is called when an event is deactivated.
type OnEventExpired interface {
	Plugin
	OnEventExpired(ctx context.Context, e *notification.EventChanged) error
}

// ──────────────────────────────────────────────────
// Booking hooks
// ──────────────────────────────────────────────────

// OnBookingCreated is called when an entrance is booked.
type OnBookingCreated interface {
	Plugin
	OnBookingCreated(ctx context.Context, e *notification.BookingChanged) error
}

// OnBookingCancelled is called when a booking is cancelled.
type OnBookingCancelled interface {
	Plugin
	OnBookingCancelled(ctx context.Context, e *notification.BookingChanged) error
}

// OnCheckedIn is called when a booking is checked in.
type OnCheckedIn interface {
	Plugin
	OnCheckedIn(ctx context.Context, e *notification.BookingChanged) error
}
