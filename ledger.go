package membership

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/plugin"
	"github.com/xraph/membership/store"
)

// DefaultCancellationWindow is how long before an event starts bookings
// stop being cancellable.
const DefaultCancellationWindow = 48 * time.Hour

// Ledger is the membership entitlement engine.
type Ledger struct {
	store   store.Store
	plugins *plugin.Registry
	logger  *slog.Logger
	clock   func() time.Time

	// mu serializes every mutating operation.
	mu     sync.Mutex
	admins map[string]struct{}

	cancelWindow time.Duration
	skipMigrate  bool

	// Relay worker
	relayMu            sync.Mutex
	wake               chan struct{}
	stopChan           chan struct{}
	stopOnce           sync.Once
	wg                 sync.WaitGroup
	relayBatchSize     int
	relayInterval      time.Duration
	relayMaxRetries    uint64
	relayRetryInterval time.Duration
}

// New creates a new Ledger instance.
func New(s store.Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:              s,
		plugins:            plugin.NewRegistry(),
		logger:             slog.Default(),
		clock:              time.Now,
		admins:             make(map[string]struct{}),
		cancelWindow:       DefaultCancellationWindow,
		wake:               make(chan struct{}, 1),
		stopChan:           make(chan struct{}),
		relayBatchSize:     100,
		relayInterval:      time.Second,
		relayMaxRetries:    5,
		relayRetryInterval: 100 * time.Millisecond,
	}

	for _, opt := range opts {
		opt(l)
	}

	return l
}

// Option configures a Ledger instance.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
		l.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(l *Ledger) {
		_ = l.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithAdmins grants the admin capability to the given addresses.
func WithAdmins(addresses ...string) Option {
	return func(l *Ledger) {
		for _, a := range addresses {
			if a = NormalizeAddress(a); a != "" {
				l.admins[a] = struct{}{}
			}
		}
	}
}

// WithClock replaces the wall clock. Every operation reads it exactly once.
func WithClock(clock func() time.Time) Option {
	return func(l *Ledger) {
		l.clock = clock
	}
}

// WithCancellationWindow sets the cancellation cut-off before an event.
func WithCancellationWindow(d time.Duration) Option {
	return func(l *Ledger) {
		l.cancelWindow = d
	}
}

// WithoutMigrate makes Start skip store migration.
func WithoutMigrate() Option {
	return func(l *Ledger) {
		l.skipMigrate = true
	}
}

// WithRelayConfig configures notification delivery.
func WithRelayConfig(batchSize int, interval time.Duration) Option {
	return func(l *Ledger) {
		if batchSize > 0 {
			l.relayBatchSize = batchSize
		}
		if interval > 0 {
			l.relayInterval = interval
		}
	}
}

// WithRelayRetry configures how often a failed delivery is retried before
// the relay gives up until its next pass.
func WithRelayRetry(maxRetries uint64, initialInterval time.Duration) Option {
	return func(l *Ledger) {
		l.relayMaxRetries = maxRetries
		if initialInterval > 0 {
			l.relayRetryInterval = initialInterval
		}
	}
}

// Store returns the underlying store.
func (l *Ledger) Store() store.Store { return l.store }

// Plugins returns the plugin registry.
func (l *Ledger) Plugins() *plugin.Registry { return l.plugins }

// Now returns the engine clock reading.
func (l *Ledger) Now() time.Time { return l.clock().UTC() }

// IsAdmin reports whether address holds the admin capability.
func (l *Ledger) IsAdmin(address string) bool {
	_, ok := l.admins[NormalizeAddress(address)]
	return ok
}

// Start migrates the store unless WithoutMigrate was given, initializes plugins and begins the relay.
func (l *Ledger) Start(ctx context.Context) error {
	if !l.skipMigrate {
		if err := l.store.Migrate(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
		}
	}

	l.plugins.EmitInit(ctx, l)

	l.wg.Add(1)
	go l.relayWorker(context.WithoutCancel(ctx))

	l.logger.Info("membership ledger started",
		"admins", len(l.admins),
		"plugins", l.plugins.Count(),
		"relay_batch_size", l.relayBatchSize,
		"relay_interval", l.relayInterval,
		"cancellation_window", l.cancelWindow,
	)

	return nil
}

// Stop shuts down the Ledger after a final relay pass.
func (l *Ledger) Stop() error {
	l.stopOnce.Do(func() { close(l.stopChan) })
	l.wg.Wait()

	ctx := context.Background()
	l.plugins.EmitShutdown(ctx)

	return l.store.Close()
}

// ──────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────

// txn is the state of one mutating operation.
type txn struct {
	ctx    context.Context
	store  store.Store
	now    time.Time
	caller string
	l      *Ledger
}

// emit appends a notification to the outbox within the transaction.
func (t *txn) emit(kind notification.Kind, payload any) error {
	n, err := notification.New(kind, t.now, payload)
	if err != nil {
		return err
	}
	return t.store.AppendNotification(t.ctx, n)
}

// mutate runs fn as one serialized all-or-nothing operation.
func (l *Ledger) mutate(ctx context.Context, op string, fn func(t *txn) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	caller := CallerFrom(ctx)
	now := l.Now()

	err := l.store.Atomic(ctx, func(tx store.Store) error {
		return fn(&txn{
			ctx:    ctx,
			store:  tx,
			now:    now,
			caller: caller,
			l:      l,
		})
	})
	if err != nil {
		l.logger.Debug("operation rejected",
			"op", op,
			"caller", caller,
			"kind", KindOf(err),
			"error", err,
		)
		return err
	}

	l.logger.Debug("operation committed", "op", op, "caller", caller)
	l.notifyRelay()
	return nil
}

// view returns read-only state for a non-mutating call.
func (l *Ledger) view(ctx context.Context) *txn {
	caller := CallerFrom(ctx)
	return &txn{ctx: ctx, store: l.store, now: l.Now(), caller: caller, l: l}
}
