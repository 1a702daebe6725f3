package membership

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/membership/account"
	"github.com/xraph/membership/booking"
	"github.com/xraph/membership/event"
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/types"
)

// pair loads the account/event relation, or a fresh one with the default
// allowance if none has been stored yet.
func (t *txn) pair(accountID id.AccountID, eventID id.EventID) (*booking.Pair, error) {
	p, err := t.store.GetPair(t.ctx, accountID, eventID)
	if errors.Is(err, ErrNotFound) {
		return booking.NewPair(accountID, eventID), nil
	}
	return p, err
}

// BookEntrance books the next entrance on an event for the caller's
// account, debiting the event price.
func (l *Ledger) BookEntrance(ctx context.Context, accountID id.AccountID, eventID id.EventID) (*booking.Booking, error) {
	var out *booking.Booking
	err := l.mutate(ctx, "book_entrance", func(t *txn) error {
		var err error
		out, err = t.book(accountID, eventID)
		return err
	})
	return out, err
}

func (t *txn) book(accountID id.AccountID, eventID id.EventID) (*booking.Booking, error) {
	acct, err := t.store.GetAccount(t.ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := t.require(capOwner, acct.Owner); err != nil {
		return nil, err
	}
	e, err := t.store.GetEvent(t.ctx, eventID)
	if err != nil {
		return nil, err
	}
	if !e.Active {
		return nil, ErrEventInactive
	}
	if e.Remaining() <= 0 {
		return nil, fmt.Errorf("%w: %d of %d booked", ErrCapacityExceeded, e.BookedCount, e.MaxCapacity)
	}

	p, err := t.pair(accountID, eventID)
	if err != nil {
		return nil, err
	}
	if p.Available() == 0 {
		return nil, fmt.Errorf("%w: %d of %d entrances active", ErrAlreadyBooked, p.Active, p.Allowance)
	}

	if e.Price > 0 {
		if _, err := t.apply(acct, account.TxBookingDebit, e.Price, types.Native, e.ID.String(), e.Name); err != nil {
			return nil, err
		}
	}

	b := &booking.Booking{
		ID:             id.NewBookingID(),
		AccountID:      accountID,
		EventID:        eventID,
		EntranceNumber: p.NextEntrance,
		State:          booking.StateBooked,
		PricePaid:      e.Price,
		CreatedAt:      t.now,
		UpdatedAt:      t.now,
	}
	if err := t.store.CreateBooking(t.ctx, b); err != nil {
		return nil, err
	}

	p.NextEntrance++
	p.Active++
	p.UpdatedAt = t.now
	if err := t.store.PutPair(t.ctx, p); err != nil {
		return nil, err
	}

	e.BookedCount++
	e.Touch(t.now)
	if err := t.store.UpdateEvent(t.ctx, e); err != nil {
		return nil, err
	}

	return b, t.emit(notification.KindBookingCreated, notification.BookingChanged{
		AccountID:     accountID,
		EventID:       eventID,
		EntranceIndex: b.EntranceNumber,
	})
}

// lookupBooking resolves an event and one of its bookings.
func (t *txn) lookupBooking(accountID id.AccountID, eventID id.EventID, entrance int) (*booking.Booking, *event.Event, error) {
	e, err := t.store.GetEvent(t.ctx, eventID)
	if err != nil {
		return nil, nil, err
	}
	b, err := t.store.GetBooking(t.ctx, accountID, eventID, entrance)
	if err != nil {
		return nil, nil, err
	}
	return b, e, nil
}

// release moves an active booking into a terminal state and releases its
// place on the event and the pair.
func (t *txn) release(b *booking.Booking, e *event.Event, next booking.State) (*booking.Pair, error) {
	b.State = next
	b.UpdatedAt = t.now
	if err := t.store.UpdateBooking(t.ctx, b); err != nil {
		return nil, err
	}

	p, err := t.pair(b.AccountID, b.EventID)
	if err != nil {
		return nil, err
	}
	if p.Active > 0 {
		p.Active--
	}
	p.UpdatedAt = t.now

	e.BookedCount--
	if next == booking.StateCheckedIn {
		e.CheckedInCount++
	}
	e.Touch(t.now)
	if err := t.store.UpdateEvent(t.ctx, e); err != nil {
		return nil, err
	}
	return p, nil
}

// CancelBooking cancels an active booking while the event is still more
// than the cancellation window away. The price is not refunded.
func (l *Ledger) CancelBooking(ctx context.Context, accountID id.AccountID, eventID id.EventID, entrance int) error {
	return l.mutate(ctx, "cancel_booking", func(t *txn) error {
		acct, err := t.store.GetAccount(t.ctx, accountID)
		if err != nil {
			return err
		}
		b, e, err := t.lookupBooking(accountID, eventID, entrance)
		if err != nil {
			return err
		}
		if err := t.require(capOwner|capAdmin, acct.Owner); err != nil {
			return err
		}
		if !b.IsActive() {
			return fmt.Errorf("%w: entrance %d is %s", ErrBookingNotFound, entrance, b.State)
		}
		if deadline := e.ScheduledAt.Add(-t.l.cancelWindow); t.now.After(deadline) {
			return fmt.Errorf("%w: cancellations closed at %s", ErrWindowClosed, deadline)
		}

		p, err := t.release(b, e, booking.StateCancelled)
		if err != nil {
			return err
		}
		p.Cancellations++
		if err := t.store.PutPair(t.ctx, p); err != nil {
			return err
		}

		return t.emit(notification.KindBookingCancelled, notification.BookingChanged{
			AccountID:     accountID,
			EventID:       eventID,
			EntranceIndex: entrance,
		})
	})
}

// CheckIn admits an active booking once the event has started.
func (l *Ledger) CheckIn(ctx context.Context, accountID id.AccountID, eventID id.EventID, entrance int) error {
	return l.mutate(ctx, "check_in", func(t *txn) error {
		b, e, err := t.lookupBooking(accountID, eventID, entrance)
		if err != nil {
			return err
		}
		if err := t.require(capAdmin, ""); err != nil {
			return err
		}
		switch b.State {
		case booking.StateCheckedIn:
			return fmt.Errorf("%w: entrance %d", ErrAlreadyCheckedIn, entrance)
		case booking.StateCancelled:
			return fmt.Errorf("%w: entrance %d is %s", ErrNotActive, entrance, b.State)
		}
		if t.now.Before(e.ScheduledAt) {
			return fmt.Errorf("%w: event starts at %s", ErrTooEarly, e.ScheduledAt)
		}

		p, err := t.release(b, e, booking.StateCheckedIn)
		if err != nil {
			return err
		}
		if err := t.store.PutPair(t.ctx, p); err != nil {
			return err
		}

		return t.emit(notification.KindCheckedIn, notification.BookingChanged{
			AccountID:     accountID,
			EventID:       eventID,
			EntranceIndex: entrance,
		})
	})
}

// SetEntranceAllowance sets how many entrances an account may hold on an
// event at the same time.
func (l *Ledger) SetEntranceAllowance(ctx context.Context, accountID id.AccountID, eventID id.EventID, allowance int) error {
	return l.mutate(ctx, "set_entrance_allowance", func(t *txn) error {
		if _, err := t.store.GetAccount(t.ctx, accountID); err != nil {
			return err
		}
		if _, err := t.store.GetEvent(t.ctx, eventID); err != nil {
			return err
		}
		if err := t.require(capAdmin, ""); err != nil {
			return err
		}
		if allowance < 1 {
			return invalid("allowance", "must be >= 1, got %d", allowance)
		}

		p, err := t.pair(accountID, eventID)
		if err != nil {
			return err
		}
		if allowance < p.Active {
			return fmt.Errorf("%w: allowance %d is below %d active entrances",
				ErrCapacityConflict, allowance, p.Active)
		}
		if p.Allowance == allowance {
			return nil
		}

		p.Allowance = allowance
		p.UpdatedAt = t.now
		if err := t.store.PutPair(t.ctx, p); err != nil {
			return err
		}
		return t.emit(notification.KindEntranceAllowance, notification.EntranceAllowanceSet{
			AccountID: accountID,
			EventID:   eventID,
			Allowance: allowance,
		})
	})
}

// EntranceStatus summarizes an account's entrances on an event.
type EntranceStatus struct {
	Allowance     int `json:"allowance"`
	Active        int `json:"active"`
	Available     int `json:"available"`
	Cancellations int `json:"cancellations"`
}

// AvailableEntrances reports how many more entrances an account may book
// on an event.
func (l *Ledger) AvailableEntrances(ctx context.Context, accountID id.AccountID, eventID id.EventID) (EntranceStatus, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return EntranceStatus{}, err
	}
	if _, err := l.store.GetEvent(ctx, eventID); err != nil {
		return EntranceStatus{}, err
	}
	p, err := l.view(ctx).pair(accountID, eventID)
	if err != nil {
		return EntranceStatus{}, err
	}
	return EntranceStatus{
		Allowance:     p.Allowance,
		Active:        p.Active,
		Available:     p.Available(),
		Cancellations: p.Cancellations,
	}, nil
}

// GetBookings returns an account's bookings in creation order.
func (l *Ledger) GetBookings(ctx context.Context, accountID id.AccountID) ([]*booking.Booking, error) {
	if _, err := l.store.GetAccount(ctx, accountID); err != nil {
		return nil, err
	}
	return l.store.ListBookingsByAccount(ctx, accountID)
}

// GetEventBookings returns an event's bookings in creation order.
func (l *Ledger) GetEventBookings(ctx context.Context, eventID id.EventID) ([]*booking.Booking, error) {
	if _, err := l.store.GetEvent(ctx, eventID); err != nil {
		return nil, err
	}
	return l.store.ListBookingsByEvent(ctx, eventID)
}
