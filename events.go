package membership

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xraph/membership/event"
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/types"
)

// EventInput describes an event to schedule.
type EventInput struct {
	Name        string
	Location    string
	ScheduledAt time.Time
	MaxCapacity int
	Price       int64
	EventType   string
}

func validateEvent(e *event.Event) error {
	switch {
	case strings.TrimSpace(e.Name) == "":
		return invalid("name", "must not be empty")
	case e.MaxCapacity <= 0:
		return invalid("max_capacity", "must be > 0, got %d", e.MaxCapacity)
	case e.Price < 0:
		return invalid("price", "must be >= 0, got %d", e.Price)
	}
	return nil
}

// CreateEvent schedules a new active event in the future.
func (l *Ledger) CreateEvent(ctx context.Context, in EventInput) (*event.Event, error) {
	var out *event.Event
	err := l.mutate(ctx, "create_event", func(t *txn) error {
		if err := t.require(capAdmin, ""); err != nil {
			return err
		}

		e := &event.Event{
			Entity:      types.NewEntity(t.now),
			ID:          id.NewEventID(),
			Name:        in.Name,
			Location:    in.Location,
			ScheduledAt: in.ScheduledAt.UTC(),
			MaxCapacity: in.MaxCapacity,
			Price:       in.Price,
			EventType:   in.EventType,
			Active:      true,
		}
		if err := validateEvent(e); err != nil {
			return err
		}
		if !e.ScheduledAt.After(t.now) {
			return invalid("scheduled_at", "must be in the future, got %s", e.ScheduledAt)
		}

		if err := t.store.CreateEvent(t.ctx, e); err != nil {
			return err
		}
		out = e
		return t.emit(notification.KindEventCreated, notification.EventChanged{EventID: e.ID})
	})
	return out, err
}

// UpdateEvent applies a partial update. Capacity may not fall below the
// number of active bookings.
func (l *Ledger) UpdateEvent(ctx context.Context, eventID id.EventID, patch event.Patch) (*event.Event, error) {
	var out *event.Event
	err := l.mutate(ctx, "update_event", func(t *txn) error {
		e, err := t.store.GetEvent(t.ctx, eventID)
		if err != nil {
			return err
		}
		if err := t.require(capAdmin, ""); err != nil {
			return err
		}

		scheduled := e.ScheduledAt
		patch.Apply(e)
		if err := validateEvent(e); err != nil {
			return err
		}
		if e.MaxCapacity < e.BookedCount {
			return fmt.Errorf("%w: capacity %d is below %d active bookings",
				ErrCapacityConflict, e.MaxCapacity, e.BookedCount)
		}
		if !e.ScheduledAt.Equal(scheduled) && !e.ScheduledAt.After(t.now) {
			return invalid("scheduled_at", "must be in the future, got %s", e.ScheduledAt)
		}
		e.Touch(t.now)

		if err := t.store.UpdateEvent(t.ctx, e); err != nil {
			return err
		}
		out = e
		return t.emit(notification.KindEventUpdated, notification.EventChanged{EventID: e.ID})
	})
	return out, err
}

// ExpireEvent deactivates an event permanently. Existing bookings stay as
// they are; new bookings are refused.
func (l *Ledger) ExpireEvent(ctx context.Context, eventID id.EventID) error {
	return l.mutate(ctx, "expire_event", func(t *txn) error {
		return t.expire(eventID)
	})
}

func (t *txn) expire(eventID id.EventID) error {
	e, err := t.store.GetEvent(t.ctx, eventID)
	if err != nil {
		return err
	}
	if err := t.require(capAdmin, ""); err != nil {
		return err
	}
	if !e.Active {
		return ErrEventInactive
	}

	e.Active = false
	e.Touch(t.now)
	if err := t.store.UpdateEvent(t.ctx, e); err != nil {
		return err
	}
	return t.emit(notification.KindEventExpired, notification.EventChanged{EventID: e.ID})
}

// ExpirePastEvents expires every active event scheduled more than grace
// ago. Each event is expired in its own transaction; the IDs expired are
// returned along with any failures.
func (l *Ledger) ExpirePastEvents(ctx context.Context, grace time.Duration) ([]id.EventID, error) {
	if err := l.view(ctx).require(capAdmin, ""); err != nil {
		return nil, err
	}

	cutoff := l.Now().Add(-grace)
	stale, err := l.store.ListEvents(ctx, event.ListOpts{ActiveOnly: true, ScheduledBefore: cutoff})
	if err != nil {
		return nil, err
	}

	var (
		expired []id.EventID
		errs    MultiError
	)
	for _, e := range stale {
		if err := l.ExpireEvent(ctx, e.ID); err != nil {
			errs.Add(fmt.Errorf("expire %s: %w", e.ID, err))
			continue
		}
		expired = append(expired, e.ID)
	}

	if len(expired) > 0 {
		l.logger.Info("expired past events", "count", len(expired), "cutoff", cutoff)
	}
	return expired, errs.ErrOrNil()
}

// GetEvent retrieves an event by ID.
func (l *Ledger) GetEvent(ctx context.Context, eventID id.EventID) (*event.Event, error) {
	return l.store.GetEvent(ctx, eventID)
}

// RemainingCapacity returns how many more bookings an event accepts.
func (l *Ledger) RemainingCapacity(ctx context.Context, eventID id.EventID) (int, error) {
	e, err := l.store.GetEvent(ctx, eventID)
	if err != nil {
		return 0, err
	}
	return e.Remaining(), nil
}

// EventStatus returns AVAILABLE, SOLD_OUT or INACTIVE.
func (l *Ledger) EventStatus(ctx context.Context, eventID id.EventID) (event.Status, error) {
	e, err := l.store.GetEvent(ctx, eventID)
	if err != nil {
		return "", err
	}
	return e.Status(), nil
}

// ListEvents returns events ordered by schedule.
func (l *Ledger) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	return l.store.ListEvents(ctx, opts)
}
