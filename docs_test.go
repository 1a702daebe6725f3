package membership_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/membership"
	"github.com/xraph/membership/benefit"
	"github.com/xraph/membership/store/memory"
	"github.com/xraph/membership/types"
)

// TestDocumentationExamples verifies that the package documentation examples work.
func TestDocumentationExamples(t *testing.T) {
	t.Run("QuickStartExample", func(t *testing.T) {
		ctx := context.Background()

		l := membership.New(memory.New(),
			membership.WithAdmins("0xadmin"),
			membership.WithLogger(slog.New(slog.DiscardHandler)),
		)
		if err := l.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer l.Stop()

		admin := membership.WithCaller(ctx, "0xadmin")
		tmpl, err := l.CreateTemplate(admin, membership.TemplateInput{
			Name:        "Gold",
			BaseBalance: 1000,
		})
		if err != nil {
			t.Fatal(err)
		}

		acct, err := l.MintFromTemplate(admin, tmpl.ID, "0xalice")
		if err != nil {
			t.Fatal(err)
		}

		alice := membership.WithCaller(ctx, "0xalice")
		if _, err := l.TopUp(alice, acct.ID, 500, types.Native); err != nil {
			t.Fatal(err)
		}

		if err := l.AuthorizeMerchant(admin, "0xshop"); err != nil {
			t.Fatal(err)
		}
		shop := membership.WithCaller(ctx, "0xshop")
		if _, err := l.ProcessPayment(shop, acct.ID, 200, "coffee"); err != nil {
			t.Fatal(err)
		}

		if _, err := l.AddBenefit(admin, acct.ID, benefit.TypeDiscount, 10, 30); err != nil {
			t.Fatal(err)
		}

		gala, err := l.CreateEvent(admin, membership.EventInput{
			Name:        "Summer Gala",
			Location:    "Marina",
			ScheduledAt: l.Now().Add(7 * 24 * time.Hour),
			MaxCapacity: 50,
			Price:       100,
		})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := l.BookEntrance(alice, acct.ID, gala.ID); err != nil {
			t.Fatal(err)
		}

		balance, err := l.GetBalance(ctx, acct.ID)
		if err != nil {
			t.Fatal(err)
		}
		if balance != 1200 {
			t.Errorf("balance = %d, want 1200", balance)
		}

		if _, err := l.Flush(ctx); err != nil {
			t.Fatal(err)
		}
		pending, err := l.PendingNotifications(ctx, 0)
		if err != nil {
			t.Fatal(err)
		}
		if len(pending) != 0 {
			t.Errorf("%d notifications still pending after flush", len(pending))
		}
	})

	t.Run("ErrorKinds", func(t *testing.T) {
		l := membership.New(memory.New(), membership.WithLogger(slog.New(slog.DiscardHandler)))

		_, err := l.CreateTemplate(context.Background(), membership.TemplateInput{Name: "Gold"})
		if got := membership.KindOf(err); got != membership.KindUnauthorized {
			t.Errorf("KindOf = %q, want %q", got, membership.KindUnauthorized)
		}
	})
}
