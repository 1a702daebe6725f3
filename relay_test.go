package membership_test

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/xraph/membership"
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/notification"
)

type recorder struct {
	mu       sync.Mutex
	kinds    []notification.Kind
	seqs     []int64
	bookings []*notification.BookingChanged
	failures int
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnNotification(_ context.Context, n *notification.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failures > 0 {
		r.failures--
		return errors.New("sink unavailable")
	}
	r.kinds = append(r.kinds, n.Kind)
	r.seqs = append(r.seqs, n.Seq)
	return nil
}

func (r *recorder) OnBookingCreated(_ context.Context, e *notification.BookingChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bookings = append(r.bookings, e)
	return nil
}

func (r *recorder) seen() []notification.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.kinds)
}

func TestRelayDeliversInCommitOrder(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, membership.WithPlugin(rec))
	ctx := context.Background()

	acct := f.mint(aliceAddr, 0)
	e := f.event(5, 0, 72*time.Hour)
	if _, err := f.l.BookEntrance(f.alice, acct.ID, e.ID); err != nil {
		t.Fatal(err)
	}

	want := []notification.Kind{
		notification.KindMerchantAuthorized,
		notification.KindTemplateCreated,
		notification.KindAccountMinted,
		notification.KindEventCreated,
		notification.KindBookingCreated,
	}
	if got := f.pending(); !slices.Equal(got, want) {
		t.Fatalf("pending: got %v, want %v", got, want)
	}

	n, err := f.l.Flush(ctx)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n != len(want) {
		t.Errorf("delivered %d, want %d", n, len(want))
	}
	if got := rec.seen(); !slices.Equal(got, want) {
		t.Errorf("delivered kinds: got %v, want %v", got, want)
	}
	if !slices.IsSorted(rec.seqs) {
		t.Errorf("sequence numbers out of order: %v", rec.seqs)
	}
	if len(rec.bookings) != 1 || rec.bookings[0].EntranceIndex != 0 {
		t.Errorf("typed booking hook: %+v", rec.bookings)
	}
	if len(f.pending()) != 0 {
		t.Error("delivered notifications still pending")
	}

	if n, _ := f.l.Flush(ctx); n != 0 {
		t.Errorf("second flush redelivered %d notifications", n)
	}
}

func TestRelayPaymentNotifications(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 100)
	if _, err := f.l.Flush(context.Background()); err != nil {
		t.Fatal(err)
	}

	if _, err := f.l.ProcessPayment(f.merchant, acct.ID, 40, "lunch"); err != nil {
		t.Fatal(err)
	}
	want := []notification.Kind{notification.KindBalanceUpdated, notification.KindTransactionRecorded}
	if got := f.pending(); !slices.Equal(got, want) {
		t.Fatalf("pending: got %v, want %v", got, want)
	}

	list, _ := f.l.PendingNotifications(context.Background(), 0)
	p, err := list[0].Decode()
	if err != nil {
		t.Fatal(err)
	}
	if u := p.(*notification.BalanceUpdated); u.NewBalance != 60 {
		t.Errorf("new balance: %d", u.NewBalance)
	}
}

func TestRejectedOperationEmitsNothing(t *testing.T) {
	f := newFixture(t)
	acct := f.mint(aliceAddr, 10)
	e := f.event(5, 50, 72*time.Hour)
	before := len(f.pending())

	if _, err := f.l.ProcessPayment(f.merchant, acct.ID, 11, ""); err == nil {
		t.Fatal("expected payment to fail")
	}
	if _, err := f.l.BookEntrance(f.alice, acct.ID, e.ID); err == nil {
		t.Fatal("expected booking to fail")
	}
	if err := f.l.AuthorizeMerchant(f.admin, merchantAddr); err != nil {
		t.Fatal(err)
	}

	if got := len(f.pending()); got != before {
		t.Errorf("rejected or no-op operations emitted %d notifications", got-before)
	}
}

func TestRelayRetriesThenHolds(t *testing.T) {
	rec := &recorder{failures: 3}
	f := newFixture(t,
		membership.WithPlugin(rec),
		membership.WithRelayRetry(1, time.Millisecond),
	)
	ctx := context.Background()
	f.template(0)

	// The first attempt and its single retry both fail.
	n, err := f.l.Flush(ctx)
	if err == nil {
		t.Fatal("expected flush to stop on the failing notification")
	}
	if n != 0 {
		t.Errorf("delivered %d before the failure", n)
	}
	if got := len(f.pending()); got != 2 {
		t.Errorf("expected both notifications to stay pending, got %d", got)
	}

	// One more failure is absorbed by the retry.
	n, err = f.l.Flush(ctx)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n != 2 {
		t.Errorf("delivered %d, want 2", n)
	}
	want := []notification.Kind{notification.KindMerchantAuthorized, notification.KindTemplateCreated}
	if got := rec.seen(); !slices.Equal(got, want) {
		t.Errorf("delivered kinds: got %v, want %v", got, want)
	}
}

type tally struct {
	mu    sync.Mutex
	calls int
}

func (c *tally) Name() string { return "tally" }

func (c *tally) OnNotification(context.Context, *notification.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	return nil
}

func TestRelayRetryDoesNotRepeatSucceededHooks(t *testing.T) {
	counts := &tally{}
	rec := &recorder{failures: 1}
	f := newFixture(t,
		membership.WithPlugin(counts),
		membership.WithPlugin(rec),
		membership.WithRelayRetry(2, time.Millisecond),
	)
	f.template(0)

	n, err := f.l.Flush(context.Background())
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n != 2 {
		t.Errorf("delivered %d, want 2", n)
	}
	counts.mu.Lock()
	defer counts.mu.Unlock()
	if counts.calls != 2 {
		t.Errorf("healthy plugin saw %d calls for 2 notifications", counts.calls)
	}
}

func TestRelaySkipsUndecodable(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t, membership.WithPlugin(rec))
	ctx := context.Background()

	bogus := &notification.Notification{
		ID:         id.NewNotificationID(),
		Kind:       notification.Kind("Bogus"),
		OccurredAt: epoch,
		Data:       json.RawMessage(`{}`),
	}
	if err := f.store.AppendNotification(ctx, bogus); err != nil {
		t.Fatal(err)
	}
	f.template(0)

	n, err := f.l.Flush(ctx)
	if err != nil {
		t.Fatalf("flush: %v", err)
	}
	if n != 3 {
		t.Errorf("delivered %d, want 3", n)
	}
	want := []notification.Kind{notification.KindMerchantAuthorized, notification.KindTemplateCreated}
	if got := rec.seen(); !slices.Equal(got, want) {
		t.Errorf("delivered kinds: got %v, want %v", got, want)
	}
}

func TestPurgeDeliveredNotifications(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.template(0)

	if _, err := f.l.Flush(ctx); err != nil {
		t.Fatal(err)
	}
	f.template(0)

	_, err := f.l.PurgeDeliveredNotifications(f.alice, epoch.Add(time.Hour))
	wantKind(t, err, membership.KindUnauthorized)

	removed, err := f.l.PurgeDeliveredNotifications(f.admin, epoch.Add(time.Hour))
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 2 {
		t.Errorf("removed %d, want 2", removed)
	}
	if got := f.pending(); len(got) != 1 || got[0] != notification.KindTemplateCreated {
		t.Errorf("pending notifications touched by purge: %v", got)
	}
}

func TestStartStopDrainsOutbox(t *testing.T) {
	rec := &recorder{}
	f := newFixture(t,
		membership.WithPlugin(rec),
		membership.WithRelayConfig(10, time.Hour),
	)
	if err := f.l.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.template(0)

	if err := f.l.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
	want := []notification.Kind{notification.KindMerchantAuthorized, notification.KindTemplateCreated}
	if got := rec.seen(); !slices.Equal(got, want) {
		t.Errorf("delivered kinds: got %v, want %v", got, want)
	}
}
