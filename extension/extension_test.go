package extension

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/xraph/membership"
	"github.com/xraph/membership/store/memory"
	"github.com/xraph/membership/store/sqlite"
)

func TestMergeWithDefaults(t *testing.T) {
	got := mergeWithDefaults(Config{RelayBatchSize: 10})
	want := DefaultConfig()
	want.RelayBatchSize = 10

	if got.Driver != want.Driver ||
		got.RelayBatchSize != 10 ||
		got.RelayInterval != want.RelayInterval ||
		got.CancellationWindow != want.CancellationWindow ||
		got.SweepSchedule != want.SweepSchedule ||
		got.SweepGrace != want.SweepGrace ||
		got.NotificationRetention != want.NotificationRetention {
		t.Errorf("merged config = %+v, want %+v", got, want)
	}
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{
		Driver:        DriverSQLite,
		DSN:           "/var/lib/membership.db",
		RelayInterval: 5 * time.Second,
	}
	programmatic := Config{
		Driver:         DriverPostgres,
		DSN:            "postgres://ignored",
		Admins:         []string{"0xadmin"},
		RelayInterval:  time.Minute,
		SweepGrace:     2 * time.Hour,
		DisableSweeper: true,
	}

	got := mergeConfigurations(yaml, programmatic)

	tests := []struct {
		name string
		ok   bool
	}{
		{"yaml driver wins", got.Driver == DriverSQLite},
		{"yaml dsn wins", got.DSN == "/var/lib/membership.db"},
		{"yaml interval wins", got.RelayInterval == 5*time.Second},
		{"programmatic admins fill gap", len(got.Admins) == 1 && got.Admins[0] == "0xadmin"},
		{"programmatic grace fills gap", got.SweepGrace == 2*time.Hour},
		{"programmatic flag overrides", got.DisableSweeper},
		{"defaults fill the rest", got.RelayBatchSize == DefaultConfig().RelayBatchSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.ok {
				t.Errorf("merged config = %+v", got)
			}
		})
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		s, err := openStore(ctx, Config{Driver: DriverMemory})
		if err != nil {
			t.Fatal(err)
		}
		if _, ok := s.(*memory.Store); !ok {
			t.Errorf("got %T", s)
		}
	})

	t.Run("sqlite", func(t *testing.T) {
		s, err := openStore(ctx, Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "m.db")})
		if err != nil {
			t.Fatal(err)
		}
		defer s.Close()
		if _, ok := s.(*sqlite.Store); !ok {
			t.Errorf("got %T", s)
		}
		if err := s.Ping(ctx); err != nil {
			t.Errorf("ping: %v", err)
		}
	})

	for _, cfg := range []Config{
		{Driver: DriverSQLite},
		{Driver: DriverPostgres},
		{Driver: DriverMongo},
		{Driver: "oracle", DSN: "x"},
	} {
		if _, err := openStore(ctx, cfg); err == nil {
			t.Errorf("openStore(%+v): expected error", cfg)
		}
	}
}

func TestBuildLedgerOpts(t *testing.T) {
	e := New(
		WithConfig(mergeWithDefaults(Config{})),
		WithAdmins("0xAdmin"),
		WithDisableMigrate(),
	)

	l := membership.New(memory.New(), e.buildLedgerOpts()...)
	if !l.IsAdmin("0xadmin") {
		t.Error("configured admin should hold the admin capability")
	}
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := l.Stop(); err != nil {
		t.Fatalf("stop: %v", err)
	}
}
