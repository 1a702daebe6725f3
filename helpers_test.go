package membership_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/xraph/membership"
	"github.com/xraph/membership/account"
	"github.com/xraph/membership/event"
	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/store/memory"
	"github.com/xraph/membership/template"
)

const (
	adminAddr    = "0xadmin"
	merchantAddr = "0xmerchant"
	aliceAddr    = "0xalice"
	bobAddr      = "0xbob"
	carolAddr    = "0xcarol"
)

var epoch = time.Date(2026, time.March, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func (c *fakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

type fixture struct {
	t     *testing.T
	l     *membership.Ledger
	store *memory.Store
	clock *fakeClock

	anon     context.Context
	admin    context.Context
	merchant context.Context
	alice    context.Context
	bob      context.Context
}

func newFixture(t *testing.T, opts ...membership.Option) *fixture {
	t.Helper()

	s := memory.New()
	clk := &fakeClock{now: epoch}
	base := []membership.Option{
		membership.WithAdmins(adminAddr),
		membership.WithClock(clk.Now),
		membership.WithLogger(slog.New(slog.DiscardHandler)),
	}
	l := membership.New(s, append(base, opts...)...)

	ctx := context.Background()
	f := &fixture{
		t:        t,
		l:        l,
		store:    s,
		clock:    clk,
		anon:     ctx,
		admin:    membership.WithCaller(ctx, adminAddr),
		merchant: membership.WithCaller(ctx, merchantAddr),
		alice:    membership.WithCaller(ctx, aliceAddr),
		bob:      membership.WithCaller(ctx, bobAddr),
	}

	if err := l.AuthorizeMerchant(f.admin, merchantAddr); err != nil {
		t.Fatalf("authorize merchant: %v", err)
	}
	return f
}

func (f *fixture) as(address string) context.Context {
	return membership.WithCaller(context.Background(), address)
}

func (f *fixture) template(baseBalance int64) *template.Template {
	f.t.Helper()
	tmpl, err := f.l.CreateTemplate(f.admin, membership.TemplateInput{
		Name:        "Gold",
		BaseBalance: baseBalance,
		MintPrice:   100,
	})
	if err != nil {
		f.t.Fatalf("create template: %v", err)
	}
	return tmpl
}

func (f *fixture) mint(owner string, baseBalance int64) *account.Account {
	f.t.Helper()
	tmpl := f.template(baseBalance)
	acct, err := f.l.MintFromTemplate(f.admin, tmpl.ID, owner)
	if err != nil {
		f.t.Fatalf("mint: %v", err)
	}
	return acct
}

func (f *fixture) event(capacity int, price int64, in time.Duration) *event.Event {
	f.t.Helper()
	e, err := f.l.CreateEvent(f.admin, membership.EventInput{
		Name:        "Harbour Night",
		Location:    "Pier 4",
		ScheduledAt: f.clock.Now().Add(in),
		MaxCapacity: capacity,
		Price:       price,
		EventType:   "social",
	})
	if err != nil {
		f.t.Fatalf("create event: %v", err)
	}
	return e
}

func (f *fixture) balance(acct *account.Account) int64 {
	f.t.Helper()
	b, err := f.l.GetBalance(context.Background(), acct.ID)
	if err != nil {
		f.t.Fatalf("get balance: %v", err)
	}
	return b
}

// pending returns the kinds of undelivered notifications in order.
func (f *fixture) pending() []notification.Kind {
	f.t.Helper()
	list, err := f.l.PendingNotifications(context.Background(), 0)
	if err != nil {
		f.t.Fatalf("pending notifications: %v", err)
	}
	kinds := make([]notification.Kind, 0, len(list))
	for _, n := range list {
		kinds = append(kinds, n.Kind)
	}
	return kinds
}

func wantKind(t *testing.T, err error, want membership.Kind) {
	t.Helper()
	if got := membership.KindOf(err); got != want {
		t.Fatalf("expected kind %q, got %q (err=%v)", want, got, err)
	}
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}
