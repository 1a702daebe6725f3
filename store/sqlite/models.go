package sqlite

import (
	"encoding/json"
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/membership/account"
	"github.com/xraph/membership/benefit"
	"github.com/xraph/membership/booking"
	"github.com/xraph/membership/event"
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/merchant"
	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/template"
	"github.com/xraph/membership/types"
)

// Timestamps are stored as UTC Unix nanoseconds so ordering and range
// filters are plain integer comparisons.

// ==================== Template models ====================

type templateModel struct {
	grove.BaseModel `grove:"table:membership_templates"`

	ID              string    `grove:"id,pk"`
	Name            string    `grove:"name"`
	BaseBalance     int64     `grove:"base_balance"`
	MintPrice       int64     `grove:"mint_price"`
	DiscountPercent int       `grove:"discount_percent"`
	IsVIP           bool      `grove:"is_vip"`
	MetadataRef     string    `grove:"metadata_ref"`
	Active          bool      `grove:"active"`
	CreatedAt       int64     `grove:"created_at"`
	UpdatedAt       int64     `grove:"updated_at"`
}

func toTemplateModel(t *template.Template) *templateModel {
	return &templateModel{
		ID:              t.ID.String(),
		Name:            t.Name,
		BaseBalance:     t.BaseBalance,
		MintPrice:       t.MintPrice,
		DiscountPercent: t.DiscountPercent,
		IsVIP:           t.IsVIP,
		MetadataRef:     t.MetadataRef,
		Active:          t.Active,
		CreatedAt:       ts(t.CreatedAt),
		UpdatedAt:       ts(t.UpdatedAt),
	}
}

func fromTemplateModel(m *templateModel) (*template.Template, error) {
	templateID, err := id.ParseTemplateID(m.ID)
	if err != nil {
		return nil, err
	}
	return &template.Template{
		Entity:          entity(m.CreatedAt, m.UpdatedAt),
		ID:              templateID,
		Name:            m.Name,
		BaseBalance:     m.BaseBalance,
		MintPrice:       m.MintPrice,
		DiscountPercent: m.DiscountPercent,
		IsVIP:           m.IsVIP,
		MetadataRef:     m.MetadataRef,
		Active:          m.Active,
	}, nil
}

// ==================== Merchant models ====================

type merchantModel struct {
	grove.BaseModel `grove:"table:membership_merchants"`

	Address    string    `grove:"address,pk"`
	Authorized bool      `grove:"authorized"`
	UpdatedAt  int64     `grove:"updated_at"`
}

func toMerchantModel(m *merchant.Merchant) *merchantModel {
	return &merchantModel{
		Address:    m.Address,
		Authorized: m.Authorized,
		UpdatedAt:  ts(m.UpdatedAt),
	}
}

func fromMerchantModel(m *merchantModel) *merchant.Merchant {
	return &merchant.Merchant{
		Address:    m.Address,
		Authorized: m.Authorized,
		UpdatedAt:  fromTS(m.UpdatedAt),
	}
}

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:membership_accounts"`

	ID         string    `grove:"id,pk"`
	Owner      string    `grove:"owner"`
	Balance    int64     `grove:"balance"`
	TemplateID string    `grove:"template_id"`
	CreatedAt  int64     `grove:"created_at"`
	UpdatedAt  int64     `grove:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:         a.ID.String(),
		Owner:      a.Owner,
		Balance:    a.Balance,
		TemplateID: a.TemplateID.String(),
		CreatedAt:  ts(a.CreatedAt),
		UpdatedAt:  ts(a.UpdatedAt),
	}
}

func fromAccountModel(m *accountModel) (*account.Account, error) {
	accountID, err := id.ParseAccountID(m.ID)
	if err != nil {
		return nil, err
	}
	templateID, err := id.ParseTemplateID(m.TemplateID)
	if err != nil {
		return nil, err
	}
	return &account.Account{
		Entity:     entity(m.CreatedAt, m.UpdatedAt),
		ID:         accountID,
		Owner:      m.Owner,
		Balance:    m.Balance,
		TemplateID: templateID,
	}, nil
}

type transactionModel struct {
	grove.BaseModel `grove:"table:membership_transactions"`

	ID           string    `grove:"id,pk"`
	AccountID    string    `grove:"account_id"`
	Seq          int64     `grove:"seq"`
	Type         string    `grove:"type"`
	Amount       int64     `grove:"amount"`
	Currency     string    `grove:"currency"`
	Counterparty string    `grove:"counterparty"`
	Metadata     string    `grove:"metadata"`
	BalanceAfter int64     `grove:"balance_after"`
	OccurredAt   int64     `grove:"occurred_at"`
}

func toTransactionModel(tx *account.Transaction) *transactionModel {
	return &transactionModel{
		ID:           tx.ID.String(),
		AccountID:    tx.AccountID.String(),
		Seq:          tx.Seq,
		Type:         string(tx.Type),
		Amount:       tx.Amount,
		Currency:     string(tx.Currency.Normalize()),
		Counterparty: tx.Counterparty,
		Metadata:     tx.Metadata,
		BalanceAfter: tx.BalanceAfter,
		OccurredAt:   ts(tx.Timestamp),
	}
}

func fromTransactionModel(m *transactionModel) (*account.Transaction, error) {
	txID, err := id.ParseTransactionID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}
	return &account.Transaction{
		ID:           txID,
		AccountID:    accountID,
		Seq:          m.Seq,
		Type:         account.TxType(m.Type),
		Amount:       m.Amount,
		Currency:     types.Currency(m.Currency),
		Counterparty: m.Counterparty,
		Metadata:     m.Metadata,
		BalanceAfter: m.BalanceAfter,
		Timestamp:    fromTS(m.OccurredAt),
	}, nil
}

type allowanceModel struct {
	grove.BaseModel `grove:"table:membership_allowances"`

	Owner    string `grove:"owner,pk"`
	Currency string `grove:"currency,pk"`
	Amount   int64  `grove:"amount"`
}

type currencyModel struct {
	grove.BaseModel `grove:"table:membership_currencies"`

	Currency     string    `grove:"currency,pk"`
	RegisteredAt int64     `grove:"registered_at"`
}

// ==================== Benefit models ====================

type benefitModel struct {
	grove.BaseModel `grove:"table:membership_benefits"`

	ID             string    `grove:"id,pk"`
	AccountID      string    `grove:"account_id"`
	Index          int       `grove:"idx"`
	Type           string    `grove:"type"`
	Value          int64     `grove:"value"`
	RemainingValue int64     `grove:"remaining_value"`
	RedeemedFor    string    `grove:"redeemed_for"`
	ExpiresAt      int64     `grove:"expires_at"`
	GrantedAt      int64     `grove:"granted_at"`
	UpdatedAt      int64     `grove:"updated_at"`
}

func toBenefitModel(b *benefit.Benefit) *benefitModel {
	return &benefitModel{
		ID:             b.ID.String(),
		AccountID:      b.AccountID.String(),
		Index:          b.Index,
		Type:           string(b.Type),
		Value:          b.Value,
		RemainingValue: b.RemainingValue,
		RedeemedFor:    b.RedeemedFor,
		ExpiresAt:      ts(b.ExpiresAt),
		GrantedAt:      ts(b.GrantedAt),
		UpdatedAt:      ts(b.UpdatedAt),
	}
}

func fromBenefitModel(m *benefitModel) (*benefit.Benefit, error) {
	benefitID, err := id.ParseBenefitID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}
	return &benefit.Benefit{
		ID:             benefitID,
		AccountID:      accountID,
		Index:          m.Index,
		Type:           benefit.Type(m.Type),
		Value:          m.Value,
		RemainingValue: m.RemainingValue,
		RedeemedFor:    m.RedeemedFor,
		ExpiresAt:      fromTS(m.ExpiresAt),
		GrantedAt:      fromTS(m.GrantedAt),
		UpdatedAt:      fromTS(m.UpdatedAt),
	}, nil
}

// ==================== Event models ====================

type eventModel struct {
	grove.BaseModel `grove:"table:membership_events"`

	ID             string    `grove:"id,pk"`
	Name           string    `grove:"name"`
	Location       string    `grove:"location"`
	ScheduledAt    int64     `grove:"scheduled_at"`
	MaxCapacity    int       `grove:"max_capacity"`
	BookedCount    int       `grove:"booked_count"`
	CheckedInCount int       `grove:"checked_in_count"`
	Price          int64     `grove:"price"`
	EventType      string    `grove:"event_type"`
	Active         bool      `grove:"active"`
	CreatedAt      int64     `grove:"created_at"`
	UpdatedAt      int64     `grove:"updated_at"`
}

func toEventModel(e *event.Event) *eventModel {
	return &eventModel{
		ID:             e.ID.String(),
		Name:           e.Name,
		Location:       e.Location,
		ScheduledAt:    ts(e.ScheduledAt),
		MaxCapacity:    e.MaxCapacity,
		BookedCount:    e.BookedCount,
		CheckedInCount: e.CheckedInCount,
		Price:          e.Price,
		EventType:      e.EventType,
		Active:         e.Active,
		CreatedAt:      ts(e.CreatedAt),
		UpdatedAt:      ts(e.UpdatedAt),
	}
}

func fromEventModel(m *eventModel) (*event.Event, error) {
	eventID, err := id.ParseEventID(m.ID)
	if err != nil {
		return nil, err
	}
	return &event.Event{
		Entity:         entity(m.CreatedAt, m.UpdatedAt),
		ID:             eventID,
		Name:           m.Name,
		Location:       m.Location,
		ScheduledAt:    fromTS(m.ScheduledAt),
		MaxCapacity:    m.MaxCapacity,
		BookedCount:    m.BookedCount,
		CheckedInCount: m.CheckedInCount,
		Price:          m.Price,
		EventType:      m.EventType,
		Active:         m.Active,
	}, nil
}

// ==================== Booking models ====================

type bookingModel struct {
	grove.BaseModel `grove:"table:membership_bookings"`

	Pos            int64     `grove:"pos,pk,autoincrement"`
	ID             string    `grove:"id"`
	AccountID      string    `grove:"account_id"`
	EventID        string    `grove:"event_id"`
	EntranceNumber int       `grove:"entrance_number"`
	State          string    `grove:"state"`
	PricePaid      int64     `grove:"price_paid"`
	CreatedAt      int64     `grove:"created_at"`
	UpdatedAt      int64     `grove:"updated_at"`
}

func toBookingModel(b *booking.Booking) *bookingModel {
	return &bookingModel{
		ID:             b.ID.String(),
		AccountID:      b.AccountID.String(),
		EventID:        b.EventID.String(),
		EntranceNumber: b.EntranceNumber,
		State:          string(b.State),
		PricePaid:      b.PricePaid,
		CreatedAt:      ts(b.CreatedAt),
		UpdatedAt:      ts(b.UpdatedAt),
	}
}

func fromBookingModel(m *bookingModel) (*booking.Booking, error) {
	bookingID, err := id.ParseBookingID(m.ID)
	if err != nil {
		return nil, err
	}
	accountID, err := id.ParseAccountID(m.AccountID)
	if err != nil {
		return nil, err
	}
	eventID, err := id.ParseEventID(m.EventID)
	if err != nil {
		return nil, err
	}
	return &booking.Booking{
		ID:             bookingID,
		AccountID:      accountID,
		EventID:        eventID,
		EntranceNumber: m.EntranceNumber,
		State:          booking.State(m.State),
		PricePaid:      m.PricePaid,
		CreatedAt:      fromTS(m.CreatedAt),
		UpdatedAt:      fromTS(m.UpdatedAt),
	}, nil
}

type pairModel struct {
	grove.BaseModel `grove:"table:membership_pairs"`

	AccountID     string    `grove:"account_id,pk"`
	EventID       string    `grove:"event_id,pk"`
	Allowance     int       `grove:"allowance"`
	Active        int       `grove:"active"`
	NextEntrance  int       `grove:"next_entrance"`
	Cancellations int       `grove:"cancellations"`
	UpdatedAt     int64     `grove:"updated_at"`
}

func toPairModel(p *booking.Pair) *pairModel {
	return &pairModel{
		AccountID:     p.AccountID.String(),
		EventID:       p.EventID.String(),
		Allowance:     p.Allowance,
		Active:        p.Active,
		NextEntrance:  p.NextEntrance,
		Cancellations: p.Cancellations,
		UpdatedAt:     ts(p.UpdatedAt),
	}
}

// ==================== Notification models ====================

type notificationModel struct {
	grove.BaseModel `grove:"table:membership_notifications"`

	Seq         int64           `grove:"seq,pk,autoincrement"`
	ID          string          `grove:"id"`
	Kind        string          `grove:"kind"`
	OccurredAt  int64           `grove:"occurred_at"`
	Data        json.RawMessage `grove:"data"`
	DeliveredAt *int64          `grove:"delivered_at"`
}

func toNotificationModel(n *notification.Notification) *notificationModel {
	return &notificationModel{
		ID:         n.ID.String(),
		Kind:       string(n.Kind),
		OccurredAt: ts(n.OccurredAt),
		Data:       n.Data,
	}
}

func fromNotificationModel(m *notificationModel) (*notification.Notification, error) {
	notificationID, err := id.ParseNotificationID(m.ID)
	if err != nil {
		return nil, err
	}
	n := &notification.Notification{
		ID:         notificationID,
		Seq:        m.Seq,
		Kind:       notification.Kind(m.Kind),
		OccurredAt: fromTS(m.OccurredAt),
		Data:       m.Data,
	}
	if m.DeliveredAt != nil {
		at := fromTS(*m.DeliveredAt)
		n.DeliveredAt = &at
	}
	return n, nil
}

func entity(created, updated int64) types.Entity {
	return types.Entity{CreatedAt: fromTS(created), UpdatedAt: fromTS(updated)}
}

func ts(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixNano()
}

func fromTS(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
