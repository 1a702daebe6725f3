package event

import (
	"context"

	"github.com/xraph/membership/id"
)

// Store persists events.
type Store interface {
	CreateEvent(ctx context.Context, e *Event) error
	GetEvent(ctx context.Context, eventID id.EventID) (*Event, error)
	UpdateEvent(ctx context.Context, e *Event) error
	// ListEvents returns events ordered by schedule, then ID.
	ListEvents(ctx context.Context, opts ListOpts) ([]*Event, error)
}
