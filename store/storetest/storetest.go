// Package storetest is a conformance suite run against every store.Store
// backend.
package storetest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	membership "github.com/xraph/membership"
	"github.com/xraph/membership/account"
	"github.com/xraph/membership/benefit"
	"github.com/xraph/membership/booking"
	"github.com/xraph/membership/event"
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/merchant"
	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/store"
	"github.com/xraph/membership/template"
	"github.com/xraph/membership/types"
)

// Epoch is the base instant used for stored timestamps. It has no
// sub-microsecond part so every backend round-trips it exactly.
var Epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// Factory returns a fresh, migrated store. It should register cleanup on t.
type Factory func(t *testing.T) store.Store

// Run executes the conformance suite.
func Run(t *testing.T, newStore Factory) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s store.Store)
	}{
		{"Templates", testTemplates},
		{"Merchants", testMerchants},
		{"Accounts", testAccounts},
		{"Transactions", testTransactions},
		{"AllowancesAndCurrencies", testAllowancesAndCurrencies},
		{"Benefits", testBenefits},
		{"Events", testEvents},
		{"Bookings", testBookings},
		{"Notifications", testNotifications},
		{"AtomicRollback", testAtomicRollback},
		{"AtomicNested", testAtomicNested},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.fn(t, newStore(t))
		})
	}
}

func newTemplate(name string) *template.Template {
	return &template.Template{
		Entity:          types.NewEntity(Epoch),
		ID:              id.NewTemplateID(),
		Name:            name,
		BaseBalance:     100,
		MintPrice:       10,
		DiscountPercent: 15,
		IsVIP:           true,
		MetadataRef:     "ipfs://gold",
		Active:          true,
	}
}

func seedAccount(t *testing.T, s store.Store, owner string) *account.Account {
	t.Helper()
	ctx := context.Background()

	tpl := newTemplate("tier-" + owner)
	if err := s.CreateTemplate(ctx, tpl); err != nil {
		t.Fatalf("create template: %v", err)
	}
	a := &account.Account{
		Entity:     types.NewEntity(Epoch),
		ID:         id.NewAccountID(),
		Owner:      owner,
		Balance:    100,
		TemplateID: tpl.ID,
	}
	if err := s.CreateAccount(ctx, a); err != nil {
		t.Fatalf("create account: %v", err)
	}
	return a
}

func seedEvent(t *testing.T, s store.Store, at time.Time, eventType string) *event.Event {
	t.Helper()
	e := &event.Event{
		Entity:      types.NewEntity(Epoch),
		ID:          id.NewEventID(),
		Name:        "Harbour cruise",
		Location:    "Pier 4",
		ScheduledAt: at,
		MaxCapacity: 10,
		Price:       25,
		EventType:   eventType,
		Active:      true,
	}
	if err := s.CreateEvent(context.Background(), e); err != nil {
		t.Fatalf("create event: %v", err)
	}
	return e
}

func wantErr(t *testing.T, err, target error) {
	t.Helper()
	if !errors.Is(err, target) {
		t.Fatalf("expected %v, got %v", target, err)
	}
}

func testTemplates(t *testing.T, s store.Store) {
	ctx := context.Background()
	tpl := newTemplate("gold")

	if err := s.CreateTemplate(ctx, tpl); err != nil {
		t.Fatalf("create: %v", err)
	}
	wantErr(t, s.CreateTemplate(ctx, tpl), membership.ErrTemplateExists)

	got, err := s.GetTemplate(ctx, tpl.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "gold" || got.DiscountPercent != 15 || !got.IsVIP || !got.Active || got.MetadataRef != "ipfs://gold" {
		t.Errorf("unexpected template: %+v", got)
	}
	if !got.CreatedAt.Equal(Epoch) {
		t.Errorf("created at: %v", got.CreatedAt)
	}

	got.Active = false
	got.MintPrice = 20
	got.Touch(Epoch.Add(time.Hour))
	if err := s.UpdateTemplate(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	again, _ := s.GetTemplate(ctx, tpl.ID)
	if again.Active || again.MintPrice != 20 || !again.UpdatedAt.Equal(Epoch.Add(time.Hour)) {
		t.Errorf("update not applied: %+v", again)
	}

	_, err = s.GetTemplate(ctx, id.NewTemplateID())
	wantErr(t, err, membership.ErrNotFound)
	wantErr(t, s.UpdateTemplate(ctx, newTemplate("ghost")), membership.ErrTemplateNotFound)

	second := newTemplate("silver")
	if err := s.CreateTemplate(ctx, second); err != nil {
		t.Fatal(err)
	}
	list, err := s.ListTemplates(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID.Compare(list[1].ID) >= 0 {
		t.Errorf("templates not ordered by id: %v", list)
	}
}

func testMerchants(t *testing.T, s store.Store) {
	ctx := context.Background()

	_, err := s.GetMerchant(ctx, "0xshop")
	wantErr(t, err, membership.ErrMerchantNotFound)

	for _, m := range []*merchant.Merchant{
		{Address: "0xshop", Authorized: true, UpdatedAt: Epoch},
		{Address: "0xcafe", Authorized: true, UpdatedAt: Epoch},
		{Address: "0xshop", Authorized: false, UpdatedAt: Epoch.Add(time.Minute)},
	} {
		if err := s.PutMerchant(ctx, m); err != nil {
			t.Fatalf("put %s: %v", m.Address, err)
		}
	}

	got, err := s.GetMerchant(ctx, "0xshop")
	if err != nil {
		t.Fatal(err)
	}
	if got.Authorized || !got.UpdatedAt.Equal(Epoch.Add(time.Minute)) {
		t.Errorf("put did not replace: %+v", got)
	}

	all, _ := s.ListMerchants(ctx, false)
	if len(all) != 2 || all[0].Address != "0xcafe" || all[1].Address != "0xshop" {
		t.Errorf("all merchants: %+v", all)
	}
	authorized, _ := s.ListMerchants(ctx, true)
	if len(authorized) != 1 || authorized[0].Address != "0xcafe" {
		t.Errorf("authorized merchants: %+v", authorized)
	}
}

func testAccounts(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s, "0xalice")
	wantErr(t, s.CreateAccount(ctx, a), membership.ErrInvalidRange)

	got, err := s.GetAccount(ctx, a.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Owner != "0xalice" || got.Balance != 100 || got.TemplateID.String() != a.TemplateID.String() {
		t.Errorf("unexpected account: %+v", got)
	}

	got.Balance = 40
	got.Owner = "0xbob"
	if err := s.UpdateAccount(ctx, got); err != nil {
		t.Fatalf("update: %v", err)
	}
	if again, _ := s.GetAccount(ctx, a.ID); again.Balance != 40 || again.Owner != "0xbob" {
		t.Errorf("update not applied: %+v", again)
	}

	_, err = s.GetAccount(ctx, id.NewAccountID())
	wantErr(t, err, membership.ErrAccountNotFound)
	wantErr(t, s.UpdateAccount(ctx, &account.Account{ID: id.NewAccountID()}), membership.ErrAccountNotFound)

	seedAccount(t, s, "0xbob")
	owned, err := s.ListAccountsByOwner(ctx, "0xbob")
	if err != nil {
		t.Fatal(err)
	}
	if len(owned) != 2 || owned[0].ID.Compare(owned[1].ID) >= 0 {
		t.Errorf("accounts by owner: %+v", owned)
	}
	if none, _ := s.ListAccountsByOwner(ctx, "0xalice"); len(none) != 0 {
		t.Errorf("stale owner index: %+v", none)
	}
}

func testTransactions(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s, "0xalice")

	entries := []struct {
		typ    account.TxType
		amount int64
		at     time.Duration
	}{
		{account.TxTopUp, 50, 0},
		{account.TxPayment, 20, time.Hour},
		{account.TxTopUp, 5, 2 * time.Hour},
		{account.TxBookingDebit, 30, 3 * time.Hour},
	}
	for i, e := range entries {
		tx := &account.Transaction{
			ID:           id.NewTransactionID(),
			AccountID:    a.ID,
			Type:         e.typ,
			Amount:       e.amount,
			Currency:     types.Native,
			Counterparty: "0xshop",
			Metadata:     "note",
			BalanceAfter: int64(100 + i),
			Timestamp:    Epoch.Add(e.at),
		}
		if err := s.AppendTransaction(ctx, tx); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		if tx.Seq != int64(i+1) {
			t.Errorf("seq %d: got %d", i, tx.Seq)
		}
	}

	orphan := &account.Transaction{ID: id.NewTransactionID(), AccountID: id.NewAccountID(), Type: account.TxTopUp, Timestamp: Epoch}
	wantErr(t, s.AppendTransaction(ctx, orphan), membership.ErrAccountNotFound)

	tests := []struct {
		name string
		q    account.HistoryQuery
		seqs []int64
	}{
		{"all", account.HistoryQuery{}, []int64{1, 2, 3, 4}},
		{"by type", account.HistoryQuery{Type: account.TxTopUp}, []int64{1, 3}},
		{"since inclusive", account.HistoryQuery{Since: Epoch.Add(time.Hour)}, []int64{2, 3, 4}},
		{"until inclusive", account.HistoryQuery{Until: Epoch.Add(time.Hour)}, []int64{1, 2}},
		{"window", account.HistoryQuery{Since: Epoch.Add(time.Hour), Until: Epoch.Add(2 * time.Hour)}, []int64{2, 3}},
		{"limit", account.HistoryQuery{Limit: 2}, []int64{1, 2}},
		{"offset", account.HistoryQuery{Offset: 3}, []int64{4}},
		{"page", account.HistoryQuery{Offset: 1, Limit: 2}, []int64{2, 3}},
		{"past the end", account.HistoryQuery{Offset: 9}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListTransactions(ctx, a.ID, tt.q)
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != len(tt.seqs) {
				t.Fatalf("got %d entries, want %d", len(list), len(tt.seqs))
			}
			for i, tx := range list {
				if tx.Seq != tt.seqs[i] {
					t.Errorf("entry %d: seq %d, want %d", i, tx.Seq, tt.seqs[i])
				}
			}
		})
	}

	list, _ := s.ListTransactions(ctx, a.ID, account.HistoryQuery{Limit: 1})
	tx := list[0]
	if tx.Counterparty != "0xshop" || tx.Metadata != "note" || tx.Currency != types.Native || !tx.Timestamp.Equal(Epoch) {
		t.Errorf("fields not round-tripped: %+v", tx)
	}
}

func testAllowancesAndCurrencies(t *testing.T, s store.Store) {
	ctx := context.Background()
	usdc := types.MustCurrency("USDC")

	if got, err := s.GetAllowance(ctx, "0xalice", usdc); err != nil || got != 0 {
		t.Fatalf("missing allowance: %d, %v", got, err)
	}
	for _, amount := range []int64{500, 120} {
		if err := s.PutAllowance(ctx, &account.Allowance{Owner: "0xalice", Currency: usdc, Amount: amount}); err != nil {
			t.Fatal(err)
		}
	}
	if got, _ := s.GetAllowance(ctx, "0xalice", usdc); got != 120 {
		t.Errorf("allowance: %d", got)
	}

	if ok, _ := s.IsCurrencySupported(ctx, usdc); ok {
		t.Error("unregistered currency reported supported")
	}
	for _, c := range []types.Currency{usdc, types.MustCurrency("EURC")} {
		if err := s.PutCurrency(ctx, &account.SupportedCurrency{Currency: c, RegisteredAt: Epoch}); err != nil {
			t.Fatal(err)
		}
	}
	if ok, _ := s.IsCurrencySupported(ctx, usdc); !ok {
		t.Error("registered currency not supported")
	}
	list, _ := s.ListCurrencies(ctx)
	if len(list) != 2 || list[0].Currency != types.MustCurrency("EURC") || !list[0].RegisteredAt.Equal(Epoch) {
		t.Errorf("currencies: %+v", list)
	}

	if err := s.DeleteCurrency(ctx, usdc); err != nil {
		t.Fatal(err)
	}
	if ok, _ := s.IsCurrencySupported(ctx, usdc); ok {
		t.Error("deleted currency still supported")
	}
	if err := s.DeleteCurrency(ctx, usdc); err != nil {
		t.Errorf("deleting a missing currency: %v", err)
	}
}

func testBenefits(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s, "0xalice")

	for i, typ := range benefit.Types() {
		b := &benefit.Benefit{
			ID:             id.NewBenefitID(),
			AccountID:      a.ID,
			Type:           typ,
			Value:          int64(10 * (i + 1)),
			RemainingValue: int64(10 * (i + 1)),
			ExpiresAt:      benefit.Expiry(Epoch, 30),
			GrantedAt:      Epoch,
			UpdatedAt:      Epoch,
		}
		if err := s.CreateBenefit(ctx, b); err != nil {
			t.Fatalf("create %s: %v", typ, err)
		}
		if b.Index != i {
			t.Errorf("%s: index %d, want %d", typ, b.Index, i)
		}
	}

	orphan := &benefit.Benefit{ID: id.NewBenefitID(), AccountID: id.NewAccountID(), Type: benefit.TypeDiscount}
	wantErr(t, s.CreateBenefit(ctx, orphan), membership.ErrAccountNotFound)

	got, err := s.GetBenefit(ctx, a.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	if got.Type != benefit.TypeYachtEvent || got.Value != 20 || !got.ExpiresAt.Equal(benefit.Expiry(Epoch, 30)) {
		t.Errorf("unexpected benefit: %+v", got)
	}

	if got.RedeemedFor != "" {
		t.Errorf("fresh benefit tagged %q", got.RedeemedFor)
	}

	got.RemainingValue = 0
	got.RedeemedFor = "checkin/1"
	got.UpdatedAt = Epoch.Add(time.Hour)
	if err := s.UpdateBenefit(ctx, got); err != nil {
		t.Fatal(err)
	}
	if again, _ := s.GetBenefit(ctx, a.ID, 1); !again.IsRedeemed() || again.RedeemedFor != "checkin/1" {
		t.Errorf("update not applied: %+v", again)
	}

	_, err = s.GetBenefit(ctx, a.ID, 3)
	wantErr(t, err, membership.ErrIndexOutOfRange)
	got.Index = 7
	wantErr(t, s.UpdateBenefit(ctx, got), membership.ErrBenefitNotFound)

	list, _ := s.ListBenefits(ctx, a.ID)
	if len(list) != 3 {
		t.Fatalf("benefits: %d", len(list))
	}
	for i, b := range list {
		if b.Index != i {
			t.Errorf("benefit %d out of order: index %d", i, b.Index)
		}
	}
}

func testEvents(t *testing.T, s store.Store) {
	ctx := context.Background()
	late := seedEvent(t, s, Epoch.Add(3*time.Hour), "Yacht")
	early := seedEvent(t, s, Epoch.Add(time.Hour), "gala")
	mid := seedEvent(t, s, Epoch.Add(2*time.Hour), "yacht")

	mid.Active = false
	mid.BookedCount = 2
	mid.Touch(Epoch.Add(time.Minute))
	if err := s.UpdateEvent(ctx, mid); err != nil {
		t.Fatal(err)
	}
	got, err := s.GetEvent(ctx, mid.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Active || got.BookedCount != 2 || got.Location != "Pier 4" || !got.ScheduledAt.Equal(Epoch.Add(2*time.Hour)) {
		t.Errorf("unexpected event: %+v", got)
	}

	_, err = s.GetEvent(ctx, id.NewEventID())
	wantErr(t, err, membership.ErrEventNotFound)
	wantErr(t, s.UpdateEvent(ctx, &event.Event{ID: id.NewEventID()}), membership.ErrEventNotFound)

	tests := []struct {
		name string
		opts event.ListOpts
		want []*event.Event
	}{
		{"all by schedule", event.ListOpts{}, []*event.Event{early, mid, late}},
		{"active only", event.ListOpts{ActiveOnly: true}, []*event.Event{early, late}},
		{"before is strict", event.ListOpts{ScheduledBefore: Epoch.Add(2 * time.Hour)}, []*event.Event{early}},
		{"type ignores case", event.ListOpts{EventType: "YACHT"}, []*event.Event{mid, late}},
		{"page", event.ListOpts{Offset: 1, Limit: 1}, []*event.Event{mid}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := s.ListEvents(ctx, tt.opts)
			if err != nil {
				t.Fatal(err)
			}
			if len(list) != len(tt.want) {
				t.Fatalf("got %d events, want %d", len(list), len(tt.want))
			}
			for i, e := range list {
				if e.ID.String() != tt.want[i].ID.String() {
					t.Errorf("event %d: got %s, want %s", i, e.ID, tt.want[i].ID)
				}
			}
		})
	}
}

func testBookings(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s, "0xalice")
	e := seedEvent(t, s, Epoch.Add(72*time.Hour), "")

	_, err := s.GetPair(ctx, a.ID, e.ID)
	wantErr(t, err, membership.ErrPairNotFound)

	for n := 0; n < 3; n++ {
		b := &booking.Booking{
			ID:             id.NewBookingID(),
			AccountID:      a.ID,
			EventID:        e.ID,
			EntranceNumber: n,
			State:          booking.StateBooked,
			PricePaid:      25,
			CreatedAt:      Epoch,
			UpdatedAt:      Epoch,
		}
		if err := s.CreateBooking(ctx, b); err != nil {
			t.Fatalf("create %d: %v", n, err)
		}
	}
	dup := &booking.Booking{ID: id.NewBookingID(), AccountID: a.ID, EventID: e.ID, EntranceNumber: 1, State: booking.StateBooked}
	wantErr(t, s.CreateBooking(ctx, dup), membership.ErrInvalidRange)

	got, err := s.GetBooking(ctx, a.ID, e.ID, 1)
	if err != nil {
		t.Fatal(err)
	}
	got.State = booking.StateCancelled
	got.UpdatedAt = Epoch.Add(time.Hour)
	if err := s.UpdateBooking(ctx, got); err != nil {
		t.Fatal(err)
	}
	if again, _ := s.GetBooking(ctx, a.ID, e.ID, 1); again.State != booking.StateCancelled || again.PricePaid != 25 {
		t.Errorf("update not applied: %+v", again)
	}

	_, err = s.GetBooking(ctx, a.ID, e.ID, 5)
	wantErr(t, err, membership.ErrBookingNotFound)
	got.EntranceNumber = 5
	wantErr(t, s.UpdateBooking(ctx, got), membership.ErrBookingNotFound)

	for _, list := range [][]*booking.Booking{
		must(s.ListBookingsByAccount(ctx, a.ID)),
		must(s.ListBookingsByEvent(ctx, e.ID)),
	} {
		if len(list) != 3 {
			t.Fatalf("bookings: %d", len(list))
		}
		for i, b := range list {
			if b.EntranceNumber != i {
				t.Errorf("booking %d out of creation order: entrance %d", i, b.EntranceNumber)
			}
		}
	}

	p := booking.NewPair(a.ID, e.ID)
	p.Allowance = 3
	p.Active = 2
	p.NextEntrance = 3
	p.Cancellations = 1
	p.UpdatedAt = Epoch
	if err := s.PutPair(ctx, p); err != nil {
		t.Fatal(err)
	}
	p.Active = 1
	if err := s.PutPair(ctx, p); err != nil {
		t.Fatal(err)
	}
	pair, err := s.GetPair(ctx, a.ID, e.ID)
	if err != nil {
		t.Fatal(err)
	}
	if pair.Allowance != 3 || pair.Active != 1 || pair.NextEntrance != 3 || pair.Cancellations != 1 {
		t.Errorf("unexpected pair: %+v", pair)
	}
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func appendNotification(t *testing.T, s store.Store, kind notification.Kind) *notification.Notification {
	t.Helper()
	n := &notification.Notification{
		ID:         id.NewNotificationID(),
		Kind:       kind,
		OccurredAt: Epoch,
		Data:       json.RawMessage(`{"address":"0xshop"}`),
	}
	if err := s.AppendNotification(context.Background(), n); err != nil {
		t.Fatalf("append: %v", err)
	}
	return n
}

func testNotifications(t *testing.T, s store.Store) {
	ctx := context.Background()

	var appended []*notification.Notification
	for i := 0; i < 4; i++ {
		n := appendNotification(t, s, notification.KindMerchantAuthorized)
		if i > 0 && n.Seq <= appended[i-1].Seq {
			t.Errorf("seq not increasing: %d after %d", n.Seq, appended[i-1].Seq)
		}
		appended = append(appended, n)
	}

	pending, err := s.PendingNotifications(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 4 {
		t.Fatalf("pending: %d", len(pending))
	}
	first := pending[0]
	if first.Kind != notification.KindMerchantAuthorized || !first.OccurredAt.Equal(Epoch) || first.DeliveredAt != nil {
		t.Errorf("unexpected notification: %+v", first)
	}
	var payload map[string]string
	if err := json.Unmarshal(first.Data, &payload); err != nil || payload["address"] != "0xshop" {
		t.Errorf("payload: %s, %v", first.Data, err)
	}

	if limited, _ := s.PendingNotifications(ctx, 2); len(limited) != 2 || limited[1].Seq != appended[1].Seq {
		t.Errorf("limited pending: %+v", limited)
	}

	for i, at := range []time.Duration{time.Minute, 2 * time.Hour} {
		if err := s.MarkDelivered(ctx, appended[i].ID, Epoch.Add(at)); err != nil {
			t.Fatalf("mark %d: %v", i, err)
		}
	}
	wantErr(t, s.MarkDelivered(ctx, id.NewNotificationID(), Epoch), membership.ErrNotificationNotFound)

	pending, _ = s.PendingNotifications(ctx, 0)
	if len(pending) != 2 || pending[0].Seq != appended[2].Seq {
		t.Errorf("pending after delivery: %+v", pending)
	}

	removed, err := s.PurgeDelivered(ctx, Epoch.Add(time.Hour))
	if err != nil {
		t.Fatal(err)
	}
	if removed != 1 {
		t.Errorf("purged %d, want 1", removed)
	}
	if removed, _ := s.PurgeDelivered(ctx, Epoch.Add(24*time.Hour)); removed != 1 {
		t.Errorf("second purge removed %d, want 1", removed)
	}
	if pending, _ := s.PendingNotifications(ctx, 0); len(pending) != 2 {
		t.Errorf("purge touched pending notifications: %d left", len(pending))
	}
}

func testAtomicRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	a := seedAccount(t, s, "0xalice")
	before := must(s.PendingNotifications(ctx, 0))
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(tx store.Store) error {
		got, err := tx.GetAccount(ctx, a.ID)
		if err != nil {
			return err
		}
		got.Balance = 0
		if err := tx.UpdateAccount(ctx, got); err != nil {
			return err
		}
		if err := tx.AppendTransaction(ctx, &account.Transaction{
			ID: id.NewTransactionID(), AccountID: a.ID, Type: account.TxPayment,
			Amount: 100, Currency: types.Native, Timestamp: Epoch,
		}); err != nil {
			return err
		}
		if err := tx.PutMerchant(ctx, &merchant.Merchant{Address: "0xshop", Authorized: true, UpdatedAt: Epoch}); err != nil {
			return err
		}
		appendNotification(t, tx, notification.KindBalanceUpdated)

		if seen, _ := tx.GetAccount(ctx, a.ID); seen.Balance != 0 {
			t.Errorf("write not visible inside the transaction: %d", seen.Balance)
		}
		return boom
	})
	wantErr(t, err, boom)

	if got, _ := s.GetAccount(ctx, a.ID); got.Balance != 100 {
		t.Errorf("balance not rolled back: %d", got.Balance)
	}
	if txs, _ := s.ListTransactions(ctx, a.ID, account.HistoryQuery{}); len(txs) != 0 {
		t.Errorf("transaction log not rolled back: %d entries", len(txs))
	}
	_, err = s.GetMerchant(ctx, "0xshop")
	wantErr(t, err, membership.ErrMerchantNotFound)
	if after := must(s.PendingNotifications(ctx, 0)); len(after) != len(before) {
		t.Errorf("outbox not rolled back: %d notifications", len(after))
	}

	err = s.Atomic(ctx, func(tx store.Store) error {
		got, err := tx.GetAccount(ctx, a.ID)
		if err != nil {
			return err
		}
		got.Balance = 70
		return tx.UpdateAccount(ctx, got)
	})
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if got, _ := s.GetAccount(ctx, a.ID); got.Balance != 70 {
		t.Errorf("commit not applied: %d", got.Balance)
	}
}

func testAtomicNested(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Atomic(ctx, func(tx store.Store) error {
		if err := tx.PutMerchant(ctx, &merchant.Merchant{Address: "0xouter", Authorized: true, UpdatedAt: Epoch}); err != nil {
			return err
		}
		if err := tx.Atomic(ctx, func(inner store.Store) error {
			return inner.PutMerchant(ctx, &merchant.Merchant{Address: "0xinner", Authorized: true, UpdatedAt: Epoch})
		}); err != nil {
			return err
		}
		return boom
	})
	wantErr(t, err, boom)

	if list, _ := s.ListMerchants(ctx, false); len(list) != 0 {
		t.Errorf("nested writes escaped the rolled back transaction: %+v", list)
	}
}
