// Package extension provides the Forge extension adapter for the membership
// ledger.
//
// It implements the forge.Extension interface to integrate the ledger
// into a Forge application with store construction, DI registration,
// the event sweeper and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.membership" or
// "membership" keys.
package extension

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/forge"
	"github.com/xraph/vessel"

	"github.com/xraph/membership"
	"github.com/xraph/membership/store"
	"github.com/xraph/membership/store/memory"
	"github.com/xraph/membership/store/mongo"
	"github.com/xraph/membership/store/postgres"
	"github.com/xraph/membership/store/sqlite"
	"github.com/xraph/membership/sweeper"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "membership"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Membership accounts, benefits and event bookings"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts the membership ledger as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config     Config
	engine     *membership.Ledger
	store      store.Store
	sweeper    *sweeper.Sweeper
	ledgerOpts []membership.Option
}

// New creates a new membership Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Ledger instance.
// This is nil until Register is called.
func (e *Extension) Engine() *membership.Ledger { return e.engine }

// Register implements [forge.Extension]. It loads configuration, opens the
// store, initializes the ledger engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil {
		s, err := openStore(context.Background(), e.config)
		if err != nil {
			return err
		}
		e.store = s
	}

	e.engine = membership.New(e.store, e.buildLedgerOpts()...)
	e.sweeper = e.buildSweeper()

	return vessel.Provide(fapp.Container(), func() (*membership.Ledger, error) {
		return e.engine, nil
	})
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("membership: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	if e.sweeper != nil {
		if err := e.sweeper.Start(ctx); err != nil {
			return errors.Join(err, e.engine.Stop())
		}
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	if e.sweeper != nil {
		e.sweeper.Stop()
	}
	if e.engine != nil {
		if err := e.engine.Stop(); err != nil {
			e.MarkStopped()
			return err
		}
	}
	e.MarkStopped()
	return nil
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("membership: store not initialized")
	}
	return e.store.Ping(ctx)
}

// openStore constructs the store backend named by cfg.Driver.
func openStore(ctx context.Context, cfg Config) (store.Store, error) {
	switch cfg.Driver {
	case "", DriverMemory:
		return memory.New(), nil
	case DriverSQLite:
		if cfg.DSN == "" {
			return nil, errors.New("membership: sqlite driver requires a dsn")
		}
		return sqlite.Open(ctx, cfg.DSN)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.New("membership: postgres driver requires a dsn")
		}
		return postgres.Open(ctx, cfg.DSN)
	case DriverMongo:
		if cfg.DSN == "" {
			return nil, errors.New("membership: mongo driver requires a uri")
		}
		return mongo.Open(ctx, cfg.DSN)
	default:
		return nil, fmt.Errorf("membership: unknown store driver %q", cfg.Driver)
	}
}

// buildLedgerOpts constructs membership.Option values from the resolved config.
func (e *Extension) buildLedgerOpts() []membership.Option {
	opts := make([]membership.Option, 0, len(e.ledgerOpts)+4)

	if len(e.config.Admins) > 0 {
		opts = append(opts, membership.WithAdmins(e.config.Admins...))
	}
	opts = append(opts,
		membership.WithCancellationWindow(e.config.CancellationWindow),
		membership.WithRelayConfig(e.config.RelayBatchSize, e.config.RelayInterval),
	)
	if e.config.DisableMigrate {
		opts = append(opts, membership.WithoutMigrate())
	}

	// Pass-through options apply last so they win.
	opts = append(opts, e.ledgerOpts...)

	return opts
}

// buildSweeper returns nil when the sweeper is disabled or no admin is
// configured to run it as.
func (e *Extension) buildSweeper() *sweeper.Sweeper {
	if e.config.DisableSweeper {
		return nil
	}
	if len(e.config.Admins) == 0 {
		e.Logger().Warn("membership: sweeper disabled, no admin configured")
		return nil
	}
	return sweeper.New(e.engine, e.config.Admins[0],
		sweeper.WithSchedule(e.config.SweepSchedule),
		sweeper.WithGrace(e.config.SweepGrace),
		sweeper.WithRetention(e.config.NotificationRetention),
	)
}

// --- Config Loading ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("membership: configuration is required but not found in config files; " +
				"ensure 'extensions.membership' or 'membership' key exists in your config")
		}
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	e.Logger().Debug("membership: configuration loaded",
		forge.F("driver", e.config.Driver),
		forge.F("admins", len(e.config.Admins)),
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("disable_sweeper", e.config.DisableSweeper),
		forge.F("relay_batch_size", e.config.RelayBatchSize),
		forge.F("relay_interval", e.config.RelayInterval),
		forge.F("sweep_schedule", e.config.SweepSchedule),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()

	for _, key := range []string{"extensions.membership", "membership"} {
		if !cm.IsSet(key) {
			continue
		}
		var cfg Config
		if err := cm.Bind(key, &cfg); err != nil {
			e.Logger().Warn("membership: failed to bind config",
				forge.F("key", key),
				forge.F("error", err.Error()),
			)
			continue
		}
		e.Logger().Debug("membership: loaded config from file", forge.F("key", key))
		return cfg, true
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Driver == "" {
		cfg.Driver = defaults.Driver
	}
	if cfg.CancellationWindow == 0 {
		cfg.CancellationWindow = defaults.CancellationWindow
	}
	if cfg.RelayBatchSize == 0 {
		cfg.RelayBatchSize = defaults.RelayBatchSize
	}
	if cfg.RelayInterval == 0 {
		cfg.RelayInterval = defaults.RelayInterval
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = defaults.SweepSchedule
	}
	if cfg.SweepGrace == 0 {
		cfg.SweepGrace = defaults.SweepGrace
	}
	if cfg.NotificationRetention == 0 {
		cfg.NotificationRetention = defaults.NotificationRetention
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence; programmatic values fill gaps and
// programmatic bool flags override when true.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}
	if programmaticConfig.DisableSweeper {
		yamlConfig.DisableSweeper = true
	}

	if yamlConfig.Driver == "" {
		yamlConfig.Driver = programmaticConfig.Driver
	}
	if yamlConfig.DSN == "" {
		yamlConfig.DSN = programmaticConfig.DSN
	}
	if len(yamlConfig.Admins) == 0 {
		yamlConfig.Admins = programmaticConfig.Admins
	}
	if yamlConfig.SweepSchedule == "" {
		yamlConfig.SweepSchedule = programmaticConfig.SweepSchedule
	}

	if yamlConfig.CancellationWindow == 0 {
		yamlConfig.CancellationWindow = programmaticConfig.CancellationWindow
	}
	if yamlConfig.RelayBatchSize == 0 {
		yamlConfig.RelayBatchSize = programmaticConfig.RelayBatchSize
	}
	if yamlConfig.RelayInterval == 0 {
		yamlConfig.RelayInterval = programmaticConfig.RelayInterval
	}
	if yamlConfig.SweepGrace == 0 {
		yamlConfig.SweepGrace = programmaticConfig.SweepGrace
	}
	if yamlConfig.NotificationRetention == 0 {
		yamlConfig.NotificationRetention = programmaticConfig.NotificationRetention
	}

	return mergeWithDefaults(yamlConfig)
}
