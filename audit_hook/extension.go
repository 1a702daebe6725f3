// Package audithook bridges membership notifications to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend on
// a particular audit system. MongoRecorder stores events in a MongoDB
// collection; RecorderFunc adapts anything else at wiring time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin         = (*Extension)(nil)
	_ plugin.OnNotification = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry. NotificationID is the idempotency
// key of the notification it was derived from.
type AuditEvent struct {
	NotificationID string         `json:"notification_id" bson:"notification_id"`
	Seq            int64          `json:"seq" bson:"seq"`
	OccurredAt     time.Time      `json:"occurred_at" bson:"occurred_at"`
	Action         string         `json:"action" bson:"action"`
	Resource       string         `json:"resource" bson:"resource"`
	Category       string         `json:"category" bson:"category"`
	ResourceID     string         `json:"resource_id,omitempty" bson:"resource_id,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty" bson:"metadata,omitempty"`
	Outcome        string         `json:"outcome" bson:"outcome"`
	Severity       string         `json:"severity" bson:"severity"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges membership notifications to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnNotification implements plugin.OnNotification.
func (e *Extension) OnNotification(ctx context.Context, n *notification.Notification) error {
	payload, err := n.Decode()
	if err != nil {
		return err
	}

	switch p := payload.(type) {
	case *notification.TemplateChanged:
		action := ActionTemplateCreated
		switch n.Kind {
		case notification.KindTemplateModified:
			action = ActionTemplateModified
		case notification.KindTemplateDeactivated:
			action = ActionTemplateDeactivated
		}
		return e.record(ctx, n, action, SeverityInfo,
			ResourceTemplate, p.TemplateID.String(), CategoryAdministration)

	case *notification.MerchantChanged:
		action, severity := ActionMerchantAuthorized, SeverityInfo
		if n.Kind == notification.KindMerchantRevoked {
			action, severity = ActionMerchantRevoked, SeverityWarning
		}
		return e.record(ctx, n, action, severity,
			ResourceMerchant, p.Address, CategoryAccess)

	case *notification.AccountMinted:
		return e.record(ctx, n, ActionAccountMinted, SeverityInfo,
			ResourceAccount, p.AccountID.String(), CategoryPayment,
			"owner", p.Owner,
			"template_id", p.TemplateID.String(),
			"initial_balance", p.InitialBalance,
		)

	case *notification.TransactionRecorded:
		return e.record(ctx, n, ActionTransactionRecorded, SeverityInfo,
			ResourceAccount, p.AccountID.String(), CategoryPayment,
			"transaction_id", p.TransactionID.String(),
			"type", string(p.Type),
			"amount", p.Amount,
			"counterparty", p.Counterparty,
		)

	case *notification.CurrencyRegistered:
		return e.record(ctx, n, ActionCurrencyRegistered, SeverityInfo,
			ResourceCurrency, p.Currency, CategoryAdministration,
			"supported", p.Supported,
		)

	case *notification.BenefitGranted:
		action := ActionBenefitGranted
		if n.Kind == notification.KindBenefitModified {
			action = ActionBenefitModified
		}
		return e.record(ctx, n, action, SeverityInfo,
			ResourceBenefit, benefitRef(p.AccountID.String(), p.Index), CategoryEntitlement,
			"type", string(p.Type),
			"value", p.Value,
			"expires_at", p.ExpirationTime,
		)

	case *notification.BenefitRedeemed:
		return e.record(ctx, n, ActionBenefitRedeemed, SeverityInfo,
			ResourceBenefit, benefitRef(p.AccountID.String(), p.Index), CategoryEntitlement,
			"type", string(p.Type),
			"amount", p.Amount,
			"remaining_value", p.RemainingValue,
			"redeemer", p.Redeemer,
		)

	case *notification.EventChanged:
		action := ActionEventCreated
		switch n.Kind {
		case notification.KindEventUpdated:
			action = ActionEventUpdated
		case notification.KindEventExpired:
			action = ActionEventExpired
		}
		return e.record(ctx, n, action, SeverityInfo,
			ResourceEvent, p.EventID.String(), CategoryScheduling)

	case *notification.BookingChanged:
		action := ActionBookingCreated
		switch n.Kind {
		case notification.KindBookingCancelled:
			action = ActionBookingCancelled
		case notification.KindCheckedIn:
			action = ActionCheckedIn
		}
		return e.record(ctx, n, action, SeverityInfo,
			ResourceBooking, p.AccountID.String(), CategoryScheduling,
			"event_id", p.EventID.String(),
			"entrance", p.EntranceIndex,
		)

	case *notification.EntranceAllowanceSet:
		return e.record(ctx, n, ActionEntranceAllowance, SeverityInfo,
			ResourceBooking, p.AccountID.String(), CategoryAdministration,
			"event_id", p.EventID.String(),
			"allowance", p.Allowance,
		)
	}

	// Balance updates duplicate the transaction entry.
	return nil
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

func benefitRef(accountID string, index int) string {
	return fmt.Sprintf("%s/%d", accountID, index)
}

// record builds and sends an audit event if the action is enabled.
// Recorder failures are logged and never block the relay.
func (e *Extension) record(
	ctx context.Context,
	n *notification.Notification,
	action, severity string,
	resource, resourceID, category string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		NotificationID: n.ID.String(),
		Seq:            n.Seq,
		OccurredAt:     n.OccurredAt,
		Action:         action,
		Resource:       resource,
		Category:       category,
		ResourceID:     resourceID,
		Metadata:       meta,
		Outcome:        OutcomeSuccess,
		Severity:       severity,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"notification_id", evt.NotificationID,
			"error", recErr,
		)
	}
	return nil
}
