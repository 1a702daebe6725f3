package event_test

import (
	"testing"
	"time"

	"github.com/xraph/membership/event"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		evt  event.Event
		want event.Status
	}{
		{"available", event.Event{Active: true, MaxCapacity: 2, BookedCount: 1}, event.StatusAvailable},
		{"sold out", event.Event{Active: true, MaxCapacity: 2, BookedCount: 2}, event.StatusSoldOut},
		{"inactive wins", event.Event{Active: false, MaxCapacity: 2, BookedCount: 2}, event.StatusInactive},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.evt.Status(); got != tt.want {
				t.Errorf("Status: got %s, want %s", got, tt.want)
			}
		})
	}
}

func TestIsYacht(t *testing.T) {
	tests := []struct {
		name string
		evt  event.Event
		want bool
	}{
		{"by type", event.Event{EventType: "YACHT"}, true},
		{"by name", event.Event{Name: "Sunset Yacht Party", EventType: "party"}, true},
		{"neither", event.Event{Name: "Gala Dinner", EventType: "dinner"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.evt.IsYacht(); got != tt.want {
				t.Errorf("IsYacht: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPatchApply(t *testing.T) {
	at := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	capacity := 50
	e := &event.Event{Name: "Gala", Location: "Harbor", MaxCapacity: 10, Price: 100}

	p := event.Patch{ScheduledAt: &at, MaxCapacity: &capacity}
	p.Apply(e)

	if !e.ScheduledAt.Equal(at) {
		t.Errorf("ScheduledAt: got %v, want %v", e.ScheduledAt, at)
	}
	if e.MaxCapacity != 50 {
		t.Errorf("MaxCapacity: got %d, want 50", e.MaxCapacity)
	}
	if e.Name != "Gala" || e.Location != "Harbor" || e.Price != 100 {
		t.Errorf("unspecified fields changed: %+v", e)
	}
}

func TestListOptsMatches(t *testing.T) {
	at := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	e := &event.Event{Active: true, ScheduledAt: at, EventType: "yacht"}

	if !(event.ListOpts{ActiveOnly: true}).Matches(e) {
		t.Error("active event should match ActiveOnly")
	}
	if (event.ListOpts{ScheduledBefore: at}).Matches(e) {
		t.Error("ScheduledBefore is exclusive")
	}
	if !(event.ListOpts{EventType: "YACHT"}).Matches(e) {
		t.Error("event type match is case-insensitive")
	}
}
