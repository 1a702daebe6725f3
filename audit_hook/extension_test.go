package audithook_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	audithook "github.com/xraph/membership/audit_hook"
	"github.com/xraph/membership/benefit"
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/notification"
)

var at = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

type memRecorder struct {
	mu     sync.Mutex
	events []*audithook.AuditEvent
	err    error
}

func (r *memRecorder) Record(_ context.Context, e *audithook.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.events = append(r.events, e)
	return nil
}

func mustNotification(t *testing.T, kind notification.Kind, payload any) *notification.Notification {
	t.Helper()
	n, err := notification.New(kind, at, payload)
	if err != nil {
		t.Fatal(err)
	}
	n.Seq = 7
	return n
}

func TestActionMapping(t *testing.T) {
	accountID := id.NewAccountID()
	eventID := id.NewEventID()

	tests := []struct {
		name       string
		kind       notification.Kind
		payload    any
		action     string
		resource   string
		resourceID string
		severity   string
	}{
		{"template created", notification.KindTemplateCreated, notification.TemplateChanged{TemplateID: id.NewTemplateID()},
			audithook.ActionTemplateCreated, audithook.ResourceTemplate, "", audithook.SeverityInfo},
		{"merchant revoked", notification.KindMerchantRevoked, notification.MerchantChanged{Address: "0xshop"},
			audithook.ActionMerchantRevoked, audithook.ResourceMerchant, "0xshop", audithook.SeverityWarning},
		{"account minted", notification.KindAccountMinted, notification.AccountMinted{AccountID: accountID, Owner: "0xalice"},
			audithook.ActionAccountMinted, audithook.ResourceAccount, accountID.String(), audithook.SeverityInfo},
		{"benefit modified", notification.KindBenefitModified, notification.BenefitGranted{AccountID: accountID, Index: 2, Type: benefit.TypeDiscount},
			audithook.ActionBenefitModified, audithook.ResourceBenefit, accountID.String() + "/2", audithook.SeverityInfo},
		{"event expired", notification.KindEventExpired, notification.EventChanged{EventID: eventID},
			audithook.ActionEventExpired, audithook.ResourceEvent, eventID.String(), audithook.SeverityInfo},
		{"checked in", notification.KindCheckedIn, notification.BookingChanged{AccountID: accountID, EventID: eventID},
			audithook.ActionCheckedIn, audithook.ResourceBooking, accountID.String(), audithook.SeverityInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &memRecorder{}
			ext := audithook.New(rec)
			n := mustNotification(t, tt.kind, tt.payload)

			if err := ext.OnNotification(context.Background(), n); err != nil {
				t.Fatal(err)
			}
			if len(rec.events) != 1 {
				t.Fatalf("recorded %d events", len(rec.events))
			}
			e := rec.events[0]
			if e.Action != tt.action || e.Resource != tt.resource || e.Severity != tt.severity {
				t.Errorf("unexpected event: %+v", e)
			}
			if tt.resourceID != "" && e.ResourceID != tt.resourceID {
				t.Errorf("resource id: got %q, want %q", e.ResourceID, tt.resourceID)
			}
			if e.NotificationID != n.ID.String() || e.Seq != 7 || !e.OccurredAt.Equal(at) {
				t.Errorf("envelope not carried over: %+v", e)
			}
		})
	}
}

func TestBalanceUpdatesAreNotAudited(t *testing.T) {
	rec := &memRecorder{}
	ext := audithook.New(rec)
	n := mustNotification(t, notification.KindBalanceUpdated, notification.BalanceUpdated{AccountID: id.NewAccountID()})

	if err := ext.OnNotification(context.Background(), n); err != nil {
		t.Fatal(err)
	}
	if len(rec.events) != 0 {
		t.Errorf("recorded %d events", len(rec.events))
	}
}

func TestEnabledActions(t *testing.T) {
	rec := &memRecorder{}
	ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionEventCreated))
	ctx := context.Background()

	_ = ext.OnNotification(ctx, mustNotification(t, notification.KindEventCreated, notification.EventChanged{EventID: id.NewEventID()}))
	_ = ext.OnNotification(ctx, mustNotification(t, notification.KindEventUpdated, notification.EventChanged{EventID: id.NewEventID()}))

	if len(rec.events) != 1 || rec.events[0].Action != audithook.ActionEventUpdated {
		t.Errorf("unexpected events: %+v", rec.events)
	}
}

func TestRecorderFailureDoesNotBlockRelay(t *testing.T) {
	rec := &memRecorder{err: errors.New("unavailable")}
	ext := audithook.New(rec)
	n := mustNotification(t, notification.KindEventCreated, notification.EventChanged{EventID: id.NewEventID()})

	if err := ext.OnNotification(context.Background(), n); err != nil {
		t.Errorf("recorder failure surfaced: %v", err)
	}
}

func TestUndecodablePayload(t *testing.T) {
	ext := audithook.New(&memRecorder{})
	n := &notification.Notification{ID: id.NewNotificationID(), Kind: "Bogus", Data: []byte(`{}`)}
	if err := ext.OnNotification(context.Background(), n); err == nil {
		t.Error("expected decode error")
	}
}

// MongoRecorder runs against a live server named by MEMBERSHIP_MONGO_URI.
func TestMongoRecorder(t *testing.T) {
	uri := os.Getenv("MEMBERSHIP_MONGO_URI")
	if uri == "" {
		t.Skip("MEMBERSHIP_MONGO_URI not set")
	}
	ctx := context.Background()

	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = client.Disconnect(ctx) })

	db := client.Database("membership_test")
	t.Cleanup(func() { _ = db.Drop(ctx) })

	rec := audithook.NewMongoRecorder(db, "")
	if err := rec.EnsureIndexes(ctx); err != nil {
		t.Fatal(err)
	}

	eventID := id.NewEventID()
	n := mustNotification(t, notification.KindEventCreated, notification.EventChanged{EventID: eventID})
	ext := audithook.New(rec)
	for i := 0; i < 2; i++ {
		if err := ext.OnNotification(ctx, n); err != nil {
			t.Fatal(err)
		}
	}

	events, err := rec.Find(ctx, audithook.ResourceEvent, eventID.String())
	if err != nil {
		t.Fatal(err)
	}
	if len(events) != 1 || events[0].NotificationID != n.ID.String() {
		t.Errorf("redelivery was not deduplicated: %+v", events)
	}
}
