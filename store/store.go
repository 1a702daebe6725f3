// Package store defines the unified persistence contract for the
// membership ledger.
package store

import (
	"context"

	"github.com/xraph/membership/account"
	"github.com/xraph/membership/benefit"
	"github.com/xraph/membership/booking"
	"github.com/xraph/membership/event"
	"github.com/xraph/membership/merchant"
	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/template"
)

// Store is the unified storage interface for all membership entities.
//
// Lookups of missing rows return an error wrapping membership.ErrNotFound
// (or a more specific sentinel that does).
type Store interface {
	template.Store
	merchant.Store
	account.Store
	benefit.Store
	event.Store
	booking.Store
	notification.Store

	// Atomic runs fn inside a transaction. Every write fn performs through
	// tx is applied if fn returns nil and discarded otherwise. Calling
	// Atomic on a tx runs fn in the enclosing transaction.
	Atomic(ctx context.Context, fn func(tx Store) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
