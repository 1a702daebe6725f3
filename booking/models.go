// Package booking defines an account's claims on event entrance slots.
package booking

import (
	"time"

	"github.com/xraph/membership/id"
)

// DefaultAllowance is the number of simultaneously active bookings an
// account may hold for one event unless an admin grants more.
const DefaultAllowance = 1

// State is the lifecycle of one entrance slot: BOOKED, then exactly one
// of CANCELLED or CHECKED_IN.
type State string

const (
	StateBooked    State = "BOOKED"
	StateCancelled State = "CANCELLED"
	StateCheckedIn State = "CHECKED_IN"
)

// IsTerminal reports whether no further transition is possible.
func (s State) IsTerminal() bool {
	return s == StateCancelled || s == StateCheckedIn
}

// CanTransition reports whether s may move to next.
func (s State) CanTransition(next State) bool {
	return s == StateBooked && next.IsTerminal()
}

// Booking is one entrance slot. EntranceNumber is a zero-based sequence
// within the (account, event) pair and is never reused.
type Booking struct {
	ID             id.BookingID `json:"id"`
	AccountID      id.AccountID `json:"account_id"`
	EventID        id.EventID   `json:"event_id"`
	EntranceNumber int          `json:"entrance_number"`
	State          State        `json:"state"`
	PricePaid      int64        `json:"price_paid"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// IsActive reports whether the booking still holds capacity.
func (b *Booking) IsActive() bool { return b.State == StateBooked }

// Pair is the relation between one account and one event. It carries the
// entrance allowance, the running count of active bookings, the next
// entrance number, and how many bookings were cancelled.
type Pair struct {
	AccountID     id.AccountID `json:"account_id"`
	EventID       id.EventID   `json:"event_id"`
	Allowance     int          `json:"allowance"`
	Active        int          `json:"active"`
	NextEntrance  int          `json:"next_entrance"`
	Cancellations int          `json:"cancellations"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NewPair returns the default relation for an account and event that
// have never interacted.
func NewPair(accountID id.AccountID, eventID id.EventID) *Pair {
	return &Pair{
		AccountID: accountID,
		EventID:   eventID,
		Allowance: DefaultAllowance,
	}
}

// Available returns how many more bookings the pair may open.
func (p *Pair) Available() int {
	if n := p.Allowance - p.Active; n > 0 {
		return n
	}
	return 0
}
