package booking

import (
	"context"

	"github.com/xraph/membership/id"
)

// Store persists bookings and account/event pairs. Bookings are never
// deleted.
type Store interface {
	CreateBooking(ctx context.Context, b *Booking) error
	GetBooking(ctx context.Context, accountID id.AccountID, eventID id.EventID, entrance int) (*Booking, error)
	UpdateBooking(ctx context.Context, b *Booking) error
	// ListBookingsByAccount returns bookings in creation order.
	ListBookingsByAccount(ctx context.Context, accountID id.AccountID) ([]*Booking, error)
	// ListBookingsByEvent returns bookings in creation order.
	ListBookingsByEvent(ctx context.Context, eventID id.EventID) ([]*Booking, error)

	// GetPair returns a not-found error for a pair that was never stored.
	GetPair(ctx context.Context, accountID id.AccountID, eventID id.EventID) (*Pair, error)
	PutPair(ctx context.Context, p *Pair) error
}
