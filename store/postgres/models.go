package postgres

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
	CreatedAt       time.Time `grove:"created_at"`
	UpdatedAt       time.Time `grove:"updated_at"`
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

	Address    string    `grove:"address,pk"`
	Authorized bool      `grove:"authorized"`
	UpdatedAt  time.Time `grove:"updated_at"`
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

	ID         string    `grove:"id,pk"`
	Owner      string    `grove:"owner"`
	Balance    int64     `grove:"balance"`
	TemplateID string    `grove:"template_id"`
	CreatedAt  time.Time `grove:"created_at"`
	UpdatedAt  time.Time `grove:"updated_at"`
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

	ID           string    `grove:"id,pk"`
	AccountID    string    `grove:"account_id"`
	Seq          int64     `grove:"seq"`
	Type         string    `grove:"type"`
	Amount       int64     `grove:"amount"`
	Currency     string    `grove:"currency"`
	Counterparty string    `grove:"counterparty"`
	Metadata     string    `grove:"metadata"`
	BalanceAfter int64     `grove:"balance_after"`
	OccurredAt   time.Time `grove:"occurred_at"`
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

	Owner    string `grove:"owner,pk"`
	Currency string `grove:"currency,pk"`
	Amount   int64  `grove:"amount"`
}

type currencyModel struct {
	grove.BaseModel `grove:"table:membership_currencies"`

	Currency     string    `grove:"currency,pk"`
	RegisteredAt time.Time `grove:"registered_at"`
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
	ExpiresAt      time.Time `grove:"expires_at"`
	GrantedAt      time.Time `grove:"granted_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
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

	ID             string    `grove:"id,pk"`
	Name           string    `grove:"name"`
	Location       string    `grove:"location"`
	ScheduledAt    time.Time `grove:"scheduled_at"`
	MaxCapacity    int       `grove:"max_capacity"`
	BookedCount    int       `grove:"booked_count"`
	CheckedInCount int       `grove:"checked_in_count"`
	Price          int64     `grove:"price"`
	EventType      string    `grove:"event_type"`
	Active         bool      `grove:"active"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
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

	Pos            int64     `grove:"pos,pk,autoincrement"`
	ID             string    `grove:"id"`
	AccountID      string    `grove:"account_id"`
	EventID        string    `grove:"event_id"`
	EntranceNumber int       `grove:"entrance_number"`
	State          string    `grove:"state"`
	PricePaid      int64     `grove:"price_paid"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
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

	AccountID     string    `grove:"account_id,pk"`
	EventID       string    `grove:"event_id,pk"`
	Allowance     int       `grove:"allowance"`
	Active        int       `grove:"active"`
	NextEntrance  int       `grove:"next_entrance"`
	Cancellations int       `grove:"cancellations"`
	UpdatedAt     time.Time `grove:"updated_at"`
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

	Seq         int64           `grove:"seq,pk,autoincrement"`
	ID          string          `grove:"id"`
	Kind        string          `grove:"kind"`
	OccurredAt  time.Time       `grove:"occurred_at"`
	Data        json.RawMessage `grove:"data,type:jsonb"`
	DeliveredAt *time.Time      `grove:"delivered_at"`
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
