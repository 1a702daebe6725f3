package yachthook_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/membership"
	"github.com/xraph/membership/account"
	"github.com/xraph/membership/benefit"
	"github.com/xraph/membership/event"
	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/store/memory"
	"github.com/xraph/membership/yachthook"
)

const (
	admin = "0xadmin"
	alice = "0xalice"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type env struct {
	t     *testing.T
	l     *membership.Ledger
	hook  *yachthook.Hook
	clock *clock
	admin context.Context
	alice context.Context
	acct  *account.Account
}

func setup(t *testing.T) *env {
	t.Helper()
	clk := &clock{now: time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)}
	logger := slog.New(slog.DiscardHandler)
	hook := yachthook.New(admin, yachthook.WithLogger(logger))
	l := membership.New(memory.New(),
		membership.WithAdmins(admin),
		membership.WithClock(clk.Now),
		membership.WithLogger(logger),
		membership.WithPlugin(hook),
	)
	e := &env{
		t:     t,
		l:     l,
		hook:  hook,
		clock: clk,
		admin: membership.WithCaller(context.Background(), admin),
		alice: membership.WithCaller(context.Background(), alice),
	}

	if err := hook.OnInit(context.Background(), l); err != nil {
		t.Fatal(err)
	}
	tpl, err := l.CreateTemplate(e.admin, membership.TemplateInput{Name: "Gold"})
	if err != nil {
		t.Fatal(err)
	}
	if e.acct, err = l.MintFromTemplate(e.admin, tpl.ID, alice); err != nil {
		t.Fatal(err)
	}
	return e
}

func (e *env) grant() *benefit.Benefit {
	e.t.Helper()
	b, err := e.l.AddBenefit(e.admin, e.acct.ID, benefit.TypeYachtEvent, 1, 30)
	if err != nil {
		e.t.Fatal(err)
	}
	return b
}

func (e *env) attend(name, typ string) *event.Event {
	e.t.Helper()
	ev, err := e.l.CreateEvent(e.admin, membership.EventInput{
		Name:        name,
		ScheduledAt: e.clock.Now().Add(72 * time.Hour),
		MaxCapacity: 10,
		EventType:   typ,
	})
	if err != nil {
		e.t.Fatal(err)
	}
	if _, err := e.l.BookEntrance(e.alice, e.acct.ID, ev.ID); err != nil {
		e.t.Fatal(err)
	}
	e.clock.Advance(72 * time.Hour)
	if err := e.l.CheckIn(e.admin, e.acct.ID, ev.ID, 0); err != nil {
		e.t.Fatal(err)
	}
	if _, err := e.l.Flush(context.Background()); err != nil {
		e.t.Fatalf("flush: %v", err)
	}
	return ev
}

func (e *env) remaining(index int) int64 {
	e.t.Helper()
	b, err := e.l.GetBenefit(context.Background(), e.acct.ID, index)
	if err != nil {
		e.t.Fatal(err)
	}
	return b.RemainingValue
}

func TestCheckInRedeemsYachtBenefit(t *testing.T) {
	tests := []struct {
		name     string
		event    string
		typ      string
		redeemed bool
	}{
		{"by event type", "Sunset Cruise", "YACHT", true},
		{"by name", "Annual Yacht Day", "social", true},
		{"other event", "Gala Dinner", "social", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := setup(t)
			b := e.grant()
			e.attend(tt.event, tt.typ)

			if got := e.remaining(b.Index) == 0; got != tt.redeemed {
				t.Errorf("redeemed: got %v, want %v", got, tt.redeemed)
			}
		})
	}
}

func TestCheckInWithoutBenefit(t *testing.T) {
	e := setup(t)
	e.attend("Yacht Regatta", "")

	pending, err := e.l.PendingNotifications(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 0 {
		t.Errorf("relay left %d notifications pending", len(pending))
	}
}

func TestRedeliveryConsumesOneBenefit(t *testing.T) {
	e := setup(t)
	first := e.grant()
	second := e.grant()
	ev := e.attend("Yacht Regatta", "")

	checkIn := &notification.BookingChanged{AccountID: e.acct.ID, EventID: ev.ID, EntranceIndex: 0}
	if err := e.hook.OnCheckedIn(context.Background(), checkIn); err != nil {
		t.Fatal(err)
	}

	if e.remaining(first.Index) != 0 {
		t.Error("first yacht benefit not redeemed")
	}
	if e.remaining(second.Index) != 1 {
		t.Error("redelivered check-in consumed a second benefit")
	}
}

func TestUnboundHook(t *testing.T) {
	h := yachthook.New(admin)
	if err := h.OnCheckedIn(context.Background(), &notification.BookingChanged{}); err == nil {
		t.Error("expected an error from a hook with no ledger")
	}
	if err := h.OnInit(context.Background(), "not a ledger"); err == nil {
		t.Error("expected OnInit to reject a foreign value")
	}
}

func (e *env) redeemedCount() int {
	e.t.Helper()
	list, err := e.l.GetBenefits(context.Background(), e.acct.ID)
	if err != nil {
		e.t.Fatal(err)
	}
	n := 0
	for _, b := range list {
		if b.IsRedeemed() {
			n++
		}
	}
	return n
}

func TestRedeliveryToFreshHookConsumesOneBenefit(t *testing.T) {
	e := setup(t)
	first := e.grant()
	e.grant()
	ev := e.attend("Yacht Regatta", "")

	// A restarted process has a new hook with no memory of the first delivery.
	restarted := yachthook.New(admin,
		yachthook.WithLedger(e.l),
		yachthook.WithLogger(slog.New(slog.DiscardHandler)),
	)
	checkIn := &notification.BookingChanged{AccountID: e.acct.ID, EventID: ev.ID, EntranceIndex: 0}
	if err := restarted.OnCheckedIn(context.Background(), checkIn); err != nil {
		t.Fatal(err)
	}

	if got := e.redeemedCount(); got != 1 {
		t.Fatalf("redeemed %d of 2 yacht benefits, want 1", got)
	}
	b, err := e.l.GetBenefit(context.Background(), e.acct.ID, first.Index)
	if err != nil {
		t.Fatal(err)
	}
	if b.RedeemedFor != yachthook.CheckInKey(checkIn) {
		t.Errorf("redeemed for %q, want %q", b.RedeemedFor, yachthook.CheckInKey(checkIn))
	}
}

func TestSeparateCheckInsRedeemSeparateBenefits(t *testing.T) {
	e := setup(t)
	e.grant()
	e.grant()
	e.attend("Yacht Regatta", "")
	e.attend("Sunset Cruise", "yacht")

	if got := e.redeemedCount(); got != 2 {
		t.Errorf("redeemed %d yacht benefits, want 2", got)
	}
}
