// Package notification defines the records emitted by committed
// operations and the outbox they are relayed from.
//
// Each notification carries a TypeID used by consumers as an idempotency
// key and a sequence number assigned in commit order.
package notification

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/xraph/membership/account"
	"github.com/xraph/membership/benefit"
	"github.com/xraph/membership/id"
)

// Kind names a notification type.
type Kind string

const (
	KindAccountMinted       Kind = "AccountMinted"
	KindBalanceUpdated      Kind = "BalanceUpdated"
	KindTransactionRecorded Kind = "TransactionRecorded"
	KindBenefitGranted      Kind = "BenefitGranted"
	KindBenefitModified     Kind = "BenefitModified"
	KindBenefitRedeemed     Kind = "BenefitRedeemed"
	KindEventCreated        Kind = "EventCreated"
	KindEventUpdated        Kind = "EventUpdated"
	KindEventExpired        Kind = "EventExpired"
	KindBookingCreated      Kind = "BookingCreated"
	KindBookingCancelled    Kind = "BookingCancelled"
	KindCheckedIn           Kind = "CheckedIn"
	KindTemplateCreated     Kind = "TemplateCreated"
	KindTemplateModified    Kind = "TemplateModified"
	KindTemplateDeactivated Kind = "TemplateDeactivated"
	KindMerchantAuthorized  Kind = "MerchantAuthorized"
	KindMerchantRevoked     Kind = "MerchantRevoked"
	KindCurrencyRegistered  Kind = "CurrencyRegistered"
	KindEntranceAllowance   Kind = "EntranceAllowanceSet"
)

// Notification is one outbox record.
type Notification struct {
	ID          id.NotificationID `json:"id"`
	Seq         int64             `json:"seq"`
	Kind        Kind              `json:"kind"`
	OccurredAt  time.Time         `json:"occurred_at"`
	Data        json.RawMessage   `json:"data"`
	DeliveredAt *time.Time        `json:"delivered_at,omitempty"`
}

// New encodes payload into a fresh notification. Seq is assigned by the
// store on append.
func New(kind Kind, at time.Time, payload any) (*Notification, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("notification: encode %s: %w", kind, err)
	}
	return &Notification{
		ID:         id.NewNotificationID(),
		Kind:       kind,
		OccurredAt: at.UTC(),
		Data:       data,
	}, nil
}

// Decode returns the typed payload for n.Kind as a pointer to one of the
// payload structs in this package.
func (n *Notification) Decode() (any, error) {
	var p any
	switch n.Kind {
	case KindAccountMinted:
		p = new(AccountMinted)
	case KindBalanceUpdated:
		p = new(BalanceUpdated)
	case KindTransactionRecorded:
		p = new(TransactionRecorded)
	case KindBenefitGranted, KindBenefitModified:
		p = new(BenefitGranted)
	case KindBenefitRedeemed:
		p = new(BenefitRedeemed)
	case KindEventCreated, KindEventUpdated, KindEventExpired:
		p = new(EventChanged)
	case KindBookingCreated, KindBookingCancelled, KindCheckedIn:
		p = new(BookingChanged)
	case KindTemplateCreated, KindTemplateModified, KindTemplateDeactivated:
		p = new(TemplateChanged)
	case KindMerchantAuthorized, KindMerchantRevoked:
		p = new(MerchantChanged)
	case KindCurrencyRegistered:
		p = new(CurrencyRegistered)
	case KindEntranceAllowance:
		p = new(EntranceAllowanceSet)
	default:
		return nil, fmt.Errorf("notification: unknown kind %q", n.Kind)
	}
	if err := json.Unmarshal(n.Data, p); err != nil {
		return nil, fmt.Errorf("notification: decode %s: %w", n.Kind, err)
	}
	return p, nil
}

// IsDelivered reports whether the relay has handed n to every plugin.
func (n *Notification) IsDelivered() bool { return n.DeliveredAt != nil }

// ──────────────────────────────────────────────────
// Payloads
// ──────────────────────────────────────────────────

type AccountMinted struct {
	AccountID      id.AccountID  `json:"account_id"`
	TemplateID     id.TemplateID `json:"template_id"`
	Owner          string        `json:"owner"`
	InitialBalance int64         `json:"initial_balance"`
}

type BalanceUpdated struct {
	AccountID  id.AccountID   `json:"account_id"`
	NewBalance int64          `json:"new_balance"`
	UpdateType account.TxType `json:"update_type"`
}

type TransactionRecorded struct {
	AccountID     id.AccountID     `json:"account_id"`
	TransactionID id.TransactionID `json:"transaction_id"`
	Amount        int64            `json:"amount"`
	Type          account.TxType   `json:"type"`
	Counterparty  string           `json:"counterparty,omitempty"`
	Metadata      string           `json:"metadata,omitempty"`
	Timestamp     time.Time        `json:"timestamp"`
}

// BenefitGranted is used for both grants and modifications.
type BenefitGranted struct {
	AccountID      id.AccountID `json:"account_id"`
	Index          int          `json:"index"`
	Type           benefit.Type `json:"type"`
	Value          int64        `json:"value"`
	ExpirationTime time.Time    `json:"expiration_time"`
}

type BenefitRedeemed struct {
	AccountID      id.AccountID `json:"account_id"`
	Index          int          `json:"index"`
	Type           benefit.Type `json:"type"`
	Amount         int64        `json:"amount"`
	RemainingValue int64        `json:"remaining_value"`
	Redeemer       string       `json:"redeemer"`
	Source         string       `json:"source,omitempty"`
}

type EventChanged struct {
	EventID id.EventID `json:"event_id"`
}

type BookingChanged struct {
	AccountID     id.AccountID `json:"account_id"`
	EventID       id.EventID   `json:"event_id"`
	EntranceIndex int          `json:"entrance_index"`
}

type TemplateChanged struct {
	TemplateID id.TemplateID `json:"template_id"`
}

type MerchantChanged struct {
	Address string `json:"address"`
}

type CurrencyRegistered struct {
	Currency  string `json:"currency"`
	Supported bool   `json:"supported"`
}

type EntranceAllowanceSet struct {
	AccountID id.AccountID `json:"account_id"`
	EventID   id.EventID   `json:"event_id"`
	Allowance int          `json:"allowance"`
}
