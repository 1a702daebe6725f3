// Package observability provides a metrics extension for the membership
// ledger that records notification counts through a MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/membership/account"
	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                = (*MetricsExtension)(nil)
	_ plugin.OnNotification        = (*MetricsExtension)(nil)
	_ plugin.OnAccountMinted       = (*MetricsExtension)(nil)
	_ plugin.OnTransactionRecorded = (*MetricsExtension)(nil)
	_ plugin.OnBenefitGranted      = (*MetricsExtension)(nil)
	_ plugin.OnBenefitRedeemed     = (*MetricsExtension)(nil)
	_ plugin.OnEventCreated        = (*MetricsExtension)(nil)
	_ plugin.OnEventExpired        = (*MetricsExtension)(nil)
	_ plugin.OnBookingCreated      = (*MetricsExtension)(nil)
	_ plugin.OnBookingCancelled    = (*MetricsExtension)(nil)
	_ plugin.OnCheckedIn           = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide membership metrics.
// Register it as a ledger plugin to track activity.
type MetricsExtension struct {
	factory MetricFactory

	// Relay metrics
	NotificationsDelivered Counter
	DeliveryLag            Histogram

	// Account metrics
	AccountsMinted Counter
	TopUps         Counter
	Payments       Counter
	BookingDebits  Counter
	PaymentAmount  Histogram
	TopUpAmount    Histogram

	// Benefit metrics
	BenefitsGranted  Counter
	BenefitsRedeemed Counter
	RedeemedAmount   Histogram

	// Event metrics
	EventsCreated Counter
	EventsExpired Counter

	// Booking metrics
	BookingsCreated   Counter
	BookingsCancelled Counter
	CheckIns          Counter
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		NotificationsDelivered: factory.Counter("membership.notifications.delivered"),
		DeliveryLag:            factory.Histogram("membership.notifications.lag_ms"),

		AccountsMinted: factory.Counter("membership.account.minted"),
		TopUps:         factory.Counter("membership.account.topups"),
		Payments:       factory.Counter("membership.account.payments"),
		BookingDebits:  factory.Counter("membership.account.booking_debits"),
		PaymentAmount:  factory.Histogram("membership.account.payment_amount"),
		TopUpAmount:    factory.Histogram("membership.account.topup_amount"),

		BenefitsGranted:  factory.Counter("membership.benefit.granted"),
		BenefitsRedeemed: factory.Counter("membership.benefit.redeemed"),
		RedeemedAmount:   factory.Histogram("membership.benefit.redeemed_amount"),

		EventsCreated: factory.Counter("membership.event.created"),
		EventsExpired: factory.Counter("membership.event.expired"),

		BookingsCreated:   factory.Counter("membership.booking.created"),
		BookingsCancelled: factory.Counter("membership.booking.cancelled"),
		CheckIns:          factory.Counter("membership.booking.checked_in"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnNotification implements plugin.OnNotification.
func (m *MetricsExtension) OnNotification(_ context.Context, n *notification.Notification) error {
	m.NotificationsDelivered.Inc()
	if lag := time.Since(n.OccurredAt); lag > 0 {
		m.DeliveryLag.Observe(float64(lag.Milliseconds()))
	}
	return nil
}

// ──────────────────────────────────────────────────
// Account hooks
// ──────────────────────────────────────────────────

// OnAccountMinted implements plugin.OnAccountMinted.
func (m *MetricsExtension) OnAccountMinted(_ context.Context, _ *notification.AccountMinted) error {
	m.AccountsMinted.Inc()
	return nil
}

// OnTransactionRecorded implements plugin.OnTransactionRecorded.
func (m *MetricsExtension) OnTransactionRecorded(_ context.Context, e *notification.TransactionRecorded) error {
	switch e.Type {
	case account.TxTopUp:
		m.TopUps.Inc()
		m.TopUpAmount.Observe(float64(e.Amount))
	case account.TxPayment:
		m.Payments.Inc()
		m.PaymentAmount.Observe(float64(e.Amount))
	case account.TxBookingDebit:
		m.BookingDebits.Inc()
	}
	return nil
}

// ──────────────────────────────────────────────────
// Benefit hooks
// ──────────────────────────────────────────────────

// OnBenefitGranted implements plugin.OnBenefitGranted.
func (m *MetricsExtension) OnBenefitGranted(_ context.Context, _ *notification.BenefitGranted) error {
	m.BenefitsGranted.Inc()
	return nil
}

// OnBenefitRedeemed implements plugin.OnBenefitRedeemed.
func (m *MetricsExtension) OnBenefitRedeemed(_ context.Context, e *notification.BenefitRedeemed) error {
	m.BenefitsRedeemed.Inc()
	m.RedeemedAmount.Observe(float64(e.Amount))
	return nil
}

// ──────────────────────────────────────────────────
// Event and booking hooks
// ──────────────────────────────────────────────────

// OnEventCreated implements plugin.OnEventCreated.
func (m *MetricsExtension) OnEventCreated(_ context.Context, _ *notification.EventChanged) error {
	m.EventsCreated.Inc()
	return nil
}

// OnEventExpired implements plugin.OnEventExpired.
func (m *MetricsExtension) OnEventExpired(_ context.Context, _ *notification.EventChanged) error {
	m.EventsExpired.Inc()
	return nil
}

// OnBookingCreated implements plugin.OnBookingCreated.
func (m *MetricsExtension) OnBookingCreated(_ context.Context, _ *notification.BookingChanged) error {
	m.BookingsCreated.Inc()
	return nil
}

// OnBookingCancelled implements plugin.OnBookingCancelled.
func (m *MetricsExtension) OnBookingCancelled(_ context.Context, _ *notification.BookingChanged) error {
	m.BookingsCancelled.Inc()
	return nil
}

// OnCheckedIn implements plugin.OnCheckedIn.
func (m *MetricsExtension) OnCheckedIn(_ context.Context, _ *notification.BookingChanged) error {
	m.CheckIns.Inc()
	return nil
}
