package postgres_test

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/membership/store"
	"github.com/xraph/membership/store/postgres"
	"github.com/xraph/membership/store/storetest"
)

// The suite runs against a live server named by MEMBERSHIP_POSTGRES_DSN.
// Tables are truncated before every subtest.
func TestConformance(t *testing.T) {
	dsn := os.Getenv("MEMBERSHIP_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("MEMBERSHIP_POSTGRES_DSN not set")
	}
	ctx := context.Background()

	s, err := postgres.Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	pg := pgdriver.Unwrap(s.DB())
	storetest.Run(t, func(t *testing.T) store.Store {
		if _, err := pg.Exec(ctx, `TRUNCATE membership_notifications, membership_pairs,
			membership_bookings, membership_events, membership_benefits, membership_currencies,
			membership_allowances, membership_transactions, membership_accounts,
			membership_merchants, membership_templates RESTART IDENTITY CASCADE`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return s
	})
}

func TestMigrations(t *testing.T) {
	ms := postgres.Migrations.Migrations()
	if len(ms) == 0 {
		t.Fatal("no migrations registered")
	}
	if got := postgres.Migrations.Name(); got != "membership" {
		t.Errorf("group = %q, want membership", got)
	}

	seen := make(map[string]bool)
	for _, m := range ms {
		if seen[m.Version] {
			t.Errorf("duplicate version %s", m.Version)
		}
		seen[m.Version] = true
		if !strings.HasPrefix(m.Name, "create_membership_") {
			t.Errorf("migration %s: unexpected name %q", m.Version, m.Name)
		}
		if m.Up == nil || m.Down == nil {
			t.Errorf("migration %s: missing up or down", m.Name)
		}
	}
}
