package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/membership/notification"
)

// ErrUndecodable is returned by Dispatch when a notification payload
// cannot be decoded. Retrying will not help.
var ErrUndecodable = errors.New("plugin: undecodable notification")

// DefaultTimeout bounds every hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                []OnInit
	onShutdown            []OnShutdown
	onNotification        []OnNotification
	onAccountMinted       []OnAccountMinted
	onBalanceUpdated      []OnBalanceUpdated
	onTransactionRecorded []OnTransactionRecorded
	onBenefitGranted      []OnBenefitGranted
	onBenefitRedeemed     []OnBenefitRedeemed
	onEventCreated        []OnEventCreated
	onEventUpdated        []OnEventUpdated
	onEventExpired        []OnEventExpired
	onBookingCreated      []OnBookingCreated
	onBookingCancelled    []OnBookingCancelled
	onCheckedIn           []OnCheckedIn
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	r.timeout = d
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnNotification); ok {
		r.onNotification = append(r.onNotification, v)
	}
	if v, ok := p.(OnAccountMinted); ok {
		r.onAccountMinted = append(r.onAccountMinted, v)
	}
	if v, ok := p.(OnBalanceUpdated); ok {
		r.onBalanceUpdated = append(r.onBalanceUpdated, v)
	}
	if v, ok := p.(OnTransactionRecorded); ok {
		r.onTransactionRecorded = append(r.onTransactionRecorded, v)
	}
	if v, ok := p.(OnBenefitGranted); ok {
		r.onBenefitGranted = append(r.onBenefitGranted, v)
	}
	if v, ok := p.(OnBenefitRedeemed); ok {
		r.onBenefitRedeemed = append(r.onBenefitRedeemed, v)
	}
	if v, ok := p.(OnEventCreated); ok {
		r.onEventCreated = append(r.onEventCreated, v)
	}
	if v, ok := p.(OnEventUpdated); ok {
		r.onEventUpdated = append(r.onEventUpdated, v)
	}
	if v, ok := p.(OnEventExpired); ok {
		r.onEventExpired = append(r.onEventExpired, v)
	}
	if v, ok := p.(OnBookingCreated); ok {
		r.onBookingCreated = append(r.onBookingCreated, v)
	}
	if v, ok := p.(OnBookingCancelled); ok {
		r.onBookingCancelled = append(r.onBookingCancelled, v)
	}
	if v, ok := p.(OnCheckedIn); ok {
		r.onCheckedIn = append(r.onCheckedIn, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", r.getImplementedInterfaces(p),
	)

	return nil
}

// getImplementedInterfaces returns a list of interfaces implemented by the plugin.
func (r *Registry) getImplementedInterfaces(p Plugin) []string {
	var interfaces []string
	v := reflect.TypeOf(p)

	checkInterface := func(iface reflect.Type, name string) {
		if v.Implements(iface) {
			interfaces = append(interfaces, name)
		}
	}

	checkInterface(reflect.TypeOf((*OnInit)(nil)).Elem(), "OnInit")
	checkInterface(reflect.TypeOf((*OnShutdown)(nil)).Elem(), "OnShutdown")
	checkInterface(reflect.TypeOf((*OnNotification)(nil)).Elem(), "OnNotification")
	checkInterface(reflect.TypeOf((*OnAccountMinted)(nil)).Elem(), "OnAccountMinted")
	checkInterface(reflect.TypeOf((*OnBalanceUpdated)(nil)).Elem(), "OnBalanceUpdated")
	checkInterface(reflect.TypeOf((*OnTransactionRecorded)(nil)).Elem(), "OnTransactionRecorded")
	checkInterface(reflect.TypeOf((*OnBenefitGranted)(nil)).Elem(), "OnBenefitGranted")
	checkInterface(reflect.TypeOf((*OnBenefitRedeemed)(nil)).Elem(), "OnBenefitRedeemed")
	checkInterface(reflect.TypeOf((*OnEventCreated)(nil)).Elem(), "OnEventCreated")
	checkInterface(reflect.TypeOf((*OnEventUpdated)(nil)).Elem(), "OnEventUpdated")
	checkInterface(reflect.TypeOf((*OnEventExpired)(nil)).Elem(), "OnEventExpired")
	checkInterface(reflect.TypeOf((*OnBookingCreated)(nil)).Elem(), "OnBookingCreated")
	checkInterface(reflect.TypeOf((*OnBookingCancelled)(nil)).Elem(), "OnBookingCancelled")
	checkInterface(reflect.TypeOf((*OnCheckedIn)(nil)).Elem(), "OnCheckedIn")

	return interfaces
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Lifecycle emission
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, ledger any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, ledger)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// ──────────────────────────────────────────────────
// Notification dispatch
// ──────────────────────────────────────────────────

// Dispatch delivers one notification to every interested plugin: first the
// generic OnNotification hooks, then the typed hook for its kind. Every hook
// runs even if an earlier one fails; the failures are joined.
func (r *Registry) Dispatch(ctx context.Context, n *notification.Notification) error {
	return r.NewDelivery(n).Attempt(ctx)
}

// Delivery tracks one notification across dispatch attempts. Hooks that
// succeeded on an earlier attempt are not called again, so retrying after a
// partial failure reaches only the hooks that failed. A Delivery is not safe
// for concurrent use.
type Delivery struct {
	r    *Registry
	n    *notification.Notification
	done map[hookKey]bool
}

// hookKey names one hook of one plugin; typed is false for OnNotification.
type hookKey struct {
	plugin string
	typed  bool
}

// NewDelivery starts tracking n.
func (r *Registry) NewDelivery(n *notification.Notification) *Delivery {
	return &Delivery{r: r, n: n, done: make(map[hookKey]bool)}
}

// Attempt calls every hook that has not succeeded yet and joins the
// failures.
func (d *Delivery) Attempt(ctx context.Context) error {
	n := d.n
	payload, err := n.Decode()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUndecodable, err)
	}

	r := d.r
	r.mu.RLock()
	defer r.mu.RUnlock()

	var errs []error
	call := func(name string, typed bool, fn func() error) {
		key := hookKey{name, typed}
		if d.done[key] {
			return
		}
		if err := r.callWithTimeout(ctx, name, fn); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			return
		}
		d.done[key] = true
	}

	for _, p := range r.onNotification {
		call(p.Name(), false, func() error { return p.OnNotification(ctx, n) })
	}

	switch n.Kind {
	case notification.KindAccountMinted:
		e := payload.(*notification.AccountMinted)
		for _, p := range r.onAccountMinted {
			call(p.Name(), true, func() error { return p.OnAccountMinted(ctx, e) })
		}
	case notification.KindBalanceUpdated:
		e := payload.(*notification.BalanceUpdated)
		for _, p := range r.onBalanceUpdated {
			call(p.Name(), true, func() error { return p.OnBalanceUpdated(ctx, e) })
		}
	case notification.KindTransactionRecorded:
		e := payload.(*notification.TransactionRecorded)
		for _, p := range r.onTransactionRecorded {
			call(p.Name(), true, func() error { return p.OnTransactionRecorded(ctx, e) })
		}
	case notification.KindBenefitGranted:
		e := payload.(*notification.BenefitGranted)
		for _, p := range r.onBenefitGranted {
			call(p.Name(), true, func() error { return p.OnBenefitGranted(ctx, e) })
		}
	case notification.KindBenefitRedeemed:
		e := payload.(*notification.BenefitRedeemed)
		for _, p := range r.onBenefitRedeemed {
			call(p.Name(), true, func() error { return p.OnBenefitRedeemed(ctx, e) })
		}
	case notification.KindEventCreated:
		e := payload.(*notification.EventChanged)
		for _, p := range r.onEventCreated {
			call(p.Name(), true, func() error { return p.OnEventCreated(ctx, e) })
		}
	case notification.KindEventUpdated:
		e := payload.(*notification.EventChanged)
		for _, p := range r.onEventUpdated {
			call(p.Name(), true, func() error { return p.OnEventUpdated(ctx, e) })
		}
	case notification.KindEventExpired:
		e := payload.(*notification.EventChanged)
		for _, p := range r.onEventExpired {
			call(p.Name(), true, func() error { return p.OnEventExpired(ctx, e) })
		}
	case notification.KindBookingCreated:
		e := payload.(*notification.BookingChanged)
		for _, p := range r.onBookingCreated {
			call(p.Name(), true, func() error { return p.OnBookingCreated(ctx, e) })
		}
	case notification.KindBookingCancelled:
		e := payload.(*notification.BookingChanged)
		for _, p := range r.onBookingCancelled {
			call(p.Name(), true, func() error { return p.OnBookingCancelled(ctx, e) })
		}
	case notification.KindCheckedIn:
		e := payload.(*notification.BookingChanged)
		for _, p := range r.onCheckedIn {
			call(p.Name(), true, func() error { return p.OnCheckedIn(ctx, e) })
		}
	}

	return errors.Join(errs...)
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the notification relay.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
