package sqlite_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/xraph/membership/store"
	"github.com/xraph/membership/store/sqlite"
	"github.com/xraph/membership/store/storetest"
)

func open(t *testing.T, path string) *sqlite.Store {
	t.Helper()
	ctx := context.Background()

	s, err := sqlite.Open(ctx, path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return s
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return open(t, filepath.Join(t.TempDir(), "membership.db"))
	})
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := open(t, ":memory:")
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestMigrationVersionsAreOrdered(t *testing.T) {
	ms := sqlite.Migrations.Migrations()
	if len(ms) == 0 {
		t.Fatal("no migrations registered")
	}
	for i := 1; i < len(ms); i++ {
		if ms[i-1].Version >= ms[i].Version {
			t.Errorf("migration %s (%s) not after %s (%s)", ms[i].Name, ms[i].Version, ms[i-1].Name, ms[i-1].Version)
		}
	}
}
