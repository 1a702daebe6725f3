// Package event defines the catalog of capacity-bounded bookable events.
package event

import (
	"strings"
	"time"

	"github.com/xraph/membership/id"
	"github.com/xraph/membership/types"
)

// TypeYacht marks yacht events; check-ins on them consume a YACHT_EVENT
// benefit.
const TypeYacht = "yacht"

// Status is the derived booking availability of an event.
type Status string

const (
	StatusAvailable Status = "AVAILABLE"
	StatusSoldOut   Status = "SOLD_OUT"
	StatusInactive  Status = "INACTIVE"
)

// Event is a scheduled activity. BookedCount always equals the number of
// active bookings; Active only ever goes from true to false.
type Event struct {
	types.Entity
	ID             id.EventID `json:"id"`
	Name           string     `json:"name"`
	Location       string     `json:"location"`
	ScheduledAt    time.Time  `json:"scheduled_at"`
	MaxCapacity    int        `json:"max_capacity"`
	BookedCount    int        `json:"booked_count"`
	CheckedInCount int        `json:"checked_in_count"`
	Price          int64      `json:"price"`
	EventType      string     `json:"event_type"`
	Active         bool       `json:"active"`
}

// Remaining returns MaxCapacity - BookedCount.
func (e *Event) Remaining() int {
	return e.MaxCapacity - e.BookedCount
}

// Status derives availability.
func (e *Event) Status() Status {
	switch {
	case !e.Active:
		return StatusInactive
	case e.Remaining() <= 0:
		return StatusSoldOut
	default:
		return StatusAvailable
	}
}

// IsYacht reports whether the event is a yacht event, either by type or
// by a name mentioning a yacht.
func (e *Event) IsYacht() bool {
	return strings.EqualFold(e.EventType, TypeYacht) ||
		strings.Contains(strings.ToLower(e.Name), TypeYacht)
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Name        *string    `json:"name,omitempty"`
	Location    *string    `json:"location,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	MaxCapacity *int       `json:"max_capacity,omitempty"`
	Price       *int64     `json:"price,omitempty"`
	EventType   *string    `json:"event_type,omitempty"`
}

// IsEmpty reports whether the patch would change nothing.
func (p Patch) IsEmpty() bool {
	return p.Name == nil && p.Location == nil && p.ScheduledAt == nil &&
		p.MaxCapacity == nil && p.Price == nil && p.EventType == nil
}

// Apply writes the non-nil fields of p onto e.
func (p Patch) Apply(e *Event) {
	if p.Name != nil {
		e.Name = *p.Name
	}
	if p.Location != nil {
		e.Location = *p.Location
	}
	if p.ScheduledAt != nil {
		e.ScheduledAt = p.ScheduledAt.UTC()
	}
	if p.MaxCapacity != nil {
		e.MaxCapacity = *p.MaxCapacity
	}
	if p.Price != nil {
		e.Price = *p.Price
	}
	if p.EventType != nil {
		e.EventType = *p.EventType
	}
}

// ListOpts filters ListEvents.
type ListOpts struct {
	ActiveOnly bool
	// ScheduledBefore keeps events scheduled strictly before the time.
	ScheduledBefore time.Time
	EventType       string
	Limit           int
	Offset          int
}

// Matches reports whether e passes the filters.
func (o ListOpts) Matches(e *Event) bool {
	if o.ActiveOnly && !e.Active {
		return false
	}
	if !o.ScheduledBefore.IsZero() && !e.ScheduledAt.Before(o.ScheduledBefore) {
		return false
	}
	if o.EventType != "" && !strings.EqualFold(o.EventType, e.EventType) {
		return false
	}
	return true
}
