package extension

import (
	"time"

	"github.com/xraph/membership"
	"github.com/xraph/membership/sweeper"
)

// Store drivers accepted in Config.Driver.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Config holds the membership extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.membership" or "membership" keys).
type Config struct {
	// Driver selects the store backend: memory, sqlite, postgres or mongo
	// (default: memory). Ignored when a store is set with WithStore.
	Driver string `json:"driver" mapstructure:"driver" yaml:"driver"`

	// DSN is the database file path (sqlite), connection string (postgres)
	// or connection URI including the database name (mongo).
	DSN string `json:"dsn" mapstructure:"dsn" yaml:"dsn"`

	// Admins are the addresses holding the admin capability. The first one
	// is the operator the sweeper acts as.
	Admins []string `json:"admins" mapstructure:"admins" yaml:"admins"`

	// CancellationWindow is how long before an event bookings can no
	// longer be cancelled (default: 24h).
	CancellationWindow time.Duration `json:"cancellation_window" mapstructure:"cancellation_window" yaml:"cancellation_window"`

	// RelayBatchSize is how many notifications one relay pass delivers
	// (default: 100).
	RelayBatchSize int `json:"relay_batch_size" mapstructure:"relay_batch_size" yaml:"relay_batch_size"`

	// RelayInterval is how often the relay polls the outbox even without
	// new writes (default: 1s).
	RelayInterval time.Duration `json:"relay_interval" mapstructure:"relay_interval" yaml:"relay_interval"`

	// SweepSchedule is the cron spec for expiring past events
	// (default: "@every 15m").
	SweepSchedule string `json:"sweep_schedule" mapstructure:"sweep_schedule" yaml:"sweep_schedule"`

	// SweepGrace is how long after its scheduled time an event is expired
	// (default: 1h).
	SweepGrace time.Duration `json:"sweep_grace" mapstructure:"sweep_grace" yaml:"sweep_grace"`

	// NotificationRetention is how long delivered notifications are kept
	// (default: 168h).
	NotificationRetention time.Duration `json:"notification_retention" mapstructure:"notification_retention" yaml:"notification_retention"`

	// DisableSweeper prevents the periodic sweeper from running.
	DisableSweeper bool `json:"disable_sweeper" mapstructure:"disable_sweeper" yaml:"disable_sweeper"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Driver:                DriverMemory,
		CancellationWindow:    membership.DefaultCancellationWindow,
		RelayBatchSize:        100,
		RelayInterval:         time.Second,
		SweepSchedule:         sweeper.DefaultSchedule,
		SweepGrace:            sweeper.DefaultGrace,
		NotificationRetention: sweeper.DefaultRetention,
	}
}
