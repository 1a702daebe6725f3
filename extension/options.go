package extension

import (
	"time"

	"github.com/xraph/membership"
	"github.com/xraph/membership/plugin"
	"github.com/xraph/membership/store"
)

// Option configures the membership Forge extension.
type Option func(*Extension)

// WithStore sets the store for the ledger engine. It takes precedence over
// Config.Driver.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedgerOption passes a membership.Option through to the underlying engine.
func WithLedgerOption(opt membership.Option) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, opt)
	}
}

// WithPlugin registers a ledger plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.ledgerOpts = append(e.ledgerOpts, membership.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDriver selects the store backend and its DSN.
func WithDriver(driver, dsn string) Option {
	return func(e *Extension) {
		e.config.Driver = driver
		e.config.DSN = dsn
	}
}

// WithAdmins grants the admin capability to the given addresses.
func WithAdmins(addresses ...string) Option {
	return func(e *Extension) { e.config.Admins = append(e.config.Admins, addresses...) }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithDisableSweeper prevents the periodic sweeper from running.
func WithDisableSweeper() Option {
	return func(e *Extension) { e.config.DisableSweeper = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithRelayConfig sets the relay batch size and poll interval.
func WithRelayConfig(batchSize int, interval time.Duration) Option {
	return func(e *Extension) {
		e.config.RelayBatchSize = batchSize
		e.config.RelayInterval = interval
	}
}

// WithSweepSchedule sets the sweeper cron spec and event grace period.
func WithSweepSchedule(spec string, grace time.Duration) Option {
	return func(e *Extension) {
		e.config.SweepSchedule = spec
		e.config.SweepGrace = grace
	}
}

// WithCancellationWindow sets the booking cancellation cut-off.
func WithCancellationWindow(d time.Duration) Option {
	return func(e *Extension) { e.config.CancellationWindow = d }
}
