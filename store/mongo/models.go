package mongo

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

// Documents are keyed by the entity ID where one exists. Merchants,
// allowances, currencies and pairs keep their natural keys as plain
// fields under unique indexes.

// ==================== Template models ====================

type templateModel struct {
	grove.BaseModel `grove:"table:membership_templates"`

	ID              string    `grove:"id,pk" bson:"_id"`
	Name            string    `grove:"name" bson:"name"`
	BaseBalance     int64     `grove:"base_balance" bson:"base_balance"`
	MintPrice       int64     `grove:"mint_price" bson:"mint_price"`
	DiscountPercent int       `grove:"discount_percent" bson:"discount_percent"`
	IsVIP           bool      `grove:"is_vip" bson:"is_vip"`
	MetadataRef     string    `grove:"metadata_ref" bson:"metadata_ref"`
	Active          bool      `grove:"active" bson:"active"`
	CreatedAt       time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at" bson:"updated_at"`
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
		CreatedAt:       t.CreatedAt.UTC(),
		UpdatedAt:       t.UpdatedAt.UTC(),
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

	Address    string    `grove:"address,pk" bson:"address"`
	Authorized bool      `grove:"authorized" bson:"authorized"`
	UpdatedAt  time.Time `grove:"updated_at" bson:"updated_at"`
}

func toMerchantModel(m *merchant.Merchant) *merchantModel {
	return &merchantModel{
		Address:    m.Address,
		Authorized: m.Authorized,
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

func fromMerchantModel(m *merchantModel) *merchant.Merchant {
	return &merchant.Merchant{
		Address:    m.Address,
		Authorized: m.Authorized,
		UpdatedAt:  m.UpdatedAt.UTC(),
	}
}

// ==================== Account models ====================

type accountModel struct {
	grove.BaseModel `grove:"table:membership_accounts"`

	ID         string    `grove:"id,pk" bson:"_id"`
	Owner      string    `grove:"owner" bson:"owner"`
	Balance    int64     `grove:"balance" bson:"balance"`
	TemplateID string    `grove:"template_id" bson:"template_id"`
	CreatedAt  time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at" bson:"updated_at"`
}

func toAccountModel(a *account.Account) *accountModel {
	return &accountModel{
		ID:         a.ID.String(),
		Owner:      a.Owner,
		Balance:    a.Balance,
		TemplateID: a.TemplateID.String(),
		CreatedAt:  a.CreatedAt.UTC(),
		UpdatedAt:  a.UpdatedAt.UTC(),
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

	ID           string    `grove:"id,pk" bson:"_id"`
	AccountID    string    `grove:"account_id" bson:"account_id"`
	Seq          int64     `grove:"seq" bson:"seq"`
	Type         string    `grove:"type" bson:"type"`
	Amount       int64     `grove:"amount" bson:"amount"`
	Currency     string    `grove:"currency" bson:"currency"`
	Counterparty string    `grove:"counterparty" bson:"counterparty"`
	Metadata     string    `grove:"metadata" bson:"metadata"`
	BalanceAfter int64     `grove:"balance_after" bson:"balance_after"`
	OccurredAt   time.Time `grove:"occurred_at" bson:"occurred_at"`
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
		OccurredAt:   tx.Timestamp.UTC(),
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
		Timestamp:    m.OccurredAt.UTC(),
	}, nil
}

type allowanceModel struct {
	grove.BaseModel `grove:"table:membership_allowances"`

	Owner    string `grove:"owner,pk" bson:"owner"`
	Currency string `grove:"currency,pk" bson:"currency"`
	Amount   int64  `grove:"amount" bson:"amount"`
}

type currencyModel struct {
	grove.BaseModel `grove:"table:membership_currencies"`

	Currency     string    `grove:"currency,pk" bson:"currency"`
	RegisteredAt time.Time `grove:"registered_at" bson:"registered_at"`
}

// ==================== Benefit models ====================

type benefitModel struct {
	grove.BaseModel `grove:"table:membership_benefits"`

	ID             string    `grove:"id,pk" bson:"_id"`
	AccountID      string    `grove:"account_id" bson:"account_id"`
	Index          int       `grove:"idx" bson:"idx"`
	Type           string    `grove:"type" bson:"type"`
	Value          int64     `grove:"value" bson:"value"`
	RemainingValue int64     `grove:"remaining_value" bson:"remaining_value"`
	RedeemedFor    string    `grove:"redeemed_for" bson:"redeemed_for"`
	ExpiresAt      time.Time `grove:"expires_at" bson:"expires_at"`
	GrantedAt      time.Time `grove:"granted_at" bson:"granted_at"`
	UpdatedAt      time.Time `grove:"updated_at" bson:"updated_at"`
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
		ExpiresAt:      b.ExpiresAt.UTC(),
		GrantedAt:      b.GrantedAt.UTC(),
		UpdatedAt:      b.UpdatedAt.UTC(),
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
		ExpiresAt:      m.ExpiresAt.UTC(),
		GrantedAt:      m.GrantedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}, nil
}

// ==================== Event models ====================

type eventModel struct {
	grove.BaseModel `grove:"table:membership_events"`

	ID             string    `grove:"id,pk" bson:"_id"`
	Name           string    `grove:"name" bson:"name"`
	Location       string    `grove:"location" bson:"location"`
	ScheduledAt    time.Time `grove:"scheduled_at" bson:"scheduled_at"`
	MaxCapacity    int       `grove:"max_capacity" bson:"max_capacity"`
	BookedCount    int       `grove:"booked_count" bson:"booked_count"`
	CheckedInCount int       `grove:"checked_in_count" bson:"checked_in_count"`
	Price          int64     `grove:"price" bson:"price"`
	EventType      string    `grove:"event_type" bson:"event_type"`
	Active         bool      `grove:"active" bson:"active"`
	CreatedAt      time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at" bson:"updated_at"`
}

func toEventModel(e *event.Event) *eventModel {
	return &eventModel{
		ID:             e.ID.String(),
		Name:           e.Name,
		Location:       e.Location,
		ScheduledAt:    e.ScheduledAt.UTC(),
		MaxCapacity:    e.MaxCapacity,
		BookedCount:    e.BookedCount,
		CheckedInCount: e.CheckedInCount,
		Price:          e.Price,
		EventType:      e.EventType,
		Active:         e.Active,
		CreatedAt:      e.CreatedAt.UTC(),
		UpdatedAt:      e.UpdatedAt.UTC(),
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
		ScheduledAt:    m.ScheduledAt.UTC(),
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

	ID             string    `grove:"id,pk" bson:"_id"`
	Pos            int64     `grove:"pos" bson:"pos"`
	AccountID      string    `grove:"account_id" bson:"account_id"`
	EventID        string    `grove:"event_id" bson:"event_id"`
	EntranceNumber int       `grove:"entrance_number" bson:"entrance_number"`
	State          string    `grove:"state" bson:"state"`
	PricePaid      int64     `grove:"price_paid" bson:"price_paid"`
	CreatedAt      time.Time `grove:"created_at" bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at" bson:"updated_at"`
}

func toBookingModel(b *booking.Booking) *bookingModel {
	return &bookingModel{
		ID:             b.ID.String(),
		AccountID:      b.AccountID.String(),
		EventID:        b.EventID.String(),
		EntranceNumber: b.EntranceNumber,
		State:          string(b.State),
		PricePaid:      b.PricePaid,
		CreatedAt:      b.CreatedAt.UTC(),
		UpdatedAt:      b.UpdatedAt.UTC(),
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
		CreatedAt:      m.CreatedAt.UTC(),
		UpdatedAt:      m.UpdatedAt.UTC(),
	}, nil
}

type pairModel struct {
	grove.BaseModel `grove:"table:membership_pairs"`

	AccountID     string    `grove:"account_id,pk" bson:"account_id"`
	EventID       string    `grove:"event_id,pk" bson:"event_id"`
	Allowance     int       `grove:"allowance" bson:"allowance"`
	Active        int       `grove:"active" bson:"active"`
	NextEntrance  int       `grove:"next_entrance" bson:"next_entrance"`
	Cancellations int       `grove:"cancellations" bson:"cancellations"`
	UpdatedAt     time.Time `grove:"updated_at" bson:"updated_at"`
}

func toPairModel(p *booking.Pair) *pairModel {
	return &pairModel{
		AccountID:     p.AccountID.String(),
		EventID:       p.EventID.String(),
		Allowance:     p.Allowance,
		Active:        p.Active,
		NextEntrance:  p.NextEntrance,
		Cancellations: p.Cancellations,
		UpdatedAt:     p.UpdatedAt.UTC(),
	}
}

// ==================== Notification models ====================

type notificationModel struct {
	grove.BaseModel `grove:"table:membership_notifications"`

	ID          string          `grove:"id,pk" bson:"_id"`
	Seq         int64           `grove:"seq" bson:"seq"`
	Kind        string          `grove:"kind" bson:"kind"`
	OccurredAt  time.Time       `grove:"occurred_at" bson:"occurred_at"`
	Data        json.RawMessage `grove:"data" bson:"data"`
	DeliveredAt *time.Time      `grove:"delivered_at" bson:"delivered_at"`
}

func toNotificationModel(n *notification.Notification) *notificationModel {
	return &notificationModel{
		ID:         n.ID.String(),
		Kind:       string(n.Kind),
		OccurredAt: n.OccurredAt.UTC(),
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
		OccurredAt: m.OccurredAt.UTC(),
		Data:       m.Data,
	}
	if m.DeliveredAt != nil {
		at := m.DeliveredAt.UTC()
		n.DeliveredAt = &at
	}
	return n, nil
}

func entity(created, updated time.Time) types.Entity {
	return types.Entity{CreatedAt: created.UTC(), UpdatedAt: updated.UTC()}
}

// ==================== Counter models ====================

// counterModel holds a monotonically increasing sequence, such as the
// notification seq or an account's transaction seq.
type counterModel struct {
	grove.BaseModel `grove:"table:membership_counters"`

	ID    string `grove:"id,pk" bson:"_id"`
	Value int64  `grove:"value" bson:"value"`
}
