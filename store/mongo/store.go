// Package mongo implements store.Store on MongoDB via Grove ORM.
//
// Atomic maps onto a multi-document transaction, so the server must run
// as a replica set. Sequences (transaction seq, booking order,
// notification seq) are drawn from a counters collection.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	membership "github.com/xraph/membership"
	"github.com/xraph/membership/account"
	"github.com/xraph/membership/benefit"
	"github.com/xraph/membership/booking"
	"github.com/xraph/membership/event"
	"github.com/xraph/membership/id"
	"github.com/xraph/membership/merchant"
	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/store"
	"github.com/xraph/membership/template"
	"github.com/xraph/membership/types"
)

// Collection name constants.
const (
	colTemplates     = "membership_templates"
	colMerchants     = "membership_merchants"
	colAccounts      = "membership_accounts"
	colTransactions  = "membership_transactions"
	colAllowances    = "membership_allowances"
	colCurrencies    = "membership_currencies"
	colBenefits      = "membership_benefits"
	colEvents        = "membership_events"
	colBookings      = "membership_bookings"
	colPairs         = "membership_pairs"
	colNotifications = "membership_notifications"
	colCounters      = "membership_counters"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// queryer is satisfied by both *mongodriver.MongoDB and *mongodriver.MongoTx.
type queryer interface {
	NewFind(model ...any) *mongodriver.FindQuery
	NewInsert(model any) *mongodriver.InsertQuery
	NewUpdate(model any) *mongodriver.UpdateQuery
	NewDelete(model any) *mongodriver.DeleteQuery
}

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
	q   queryer
	tx  *mongodriver.MongoTx
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	mdb := mongodriver.Unwrap(db)
	return &Store{db: db, mdb: mdb, q: mdb}
}

// Open connects to uri through the grove mongo driver. The database name
// is taken from the URI path.
func Open(ctx context.Context, uri string, opts ...mongodriver.MongoOption) (*Store, error) {
	mdb := mongodriver.New()
	if err := mdb.Open(ctx, uri, opts...); err != nil {
		return nil, fmt.Errorf("membership/mongo: open: %w", err)
	}
	db, err := grove.Open(mdb)
	if err != nil {
		_ = mdb.Close()
		return nil, fmt.Errorf("membership/mongo: grove: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all membership collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("membership/mongo: migrate %s indexes: %w", col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Atomic implements store.Store.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}

	gtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("membership/mongo: begin: %w", err)
	}
	mtx, ok := gtx.Raw().(*mongodriver.MongoTx)
	if !ok {
		_ = gtx.Rollback()
		return fmt.Errorf("membership/mongo: unexpected transaction type %T", gtx.Raw())
	}

	committed := false
	defer func() {
		if !committed {
			_ = mtx.Rollback()
		}
	}()

	if err := fn(&Store{db: s.db, mdb: s.mdb, q: mtx, tx: mtx}); err != nil {
		return err
	}
	committed = true
	if err := mtx.Commit(); err != nil {
		return fmt.Errorf("membership/mongo: commit: %w", err)
	}
	return nil
}

// next increments and returns the counter named key.
func (s *Store) next(ctx context.Context, key string) (int64, error) {
	if s.tx != nil {
		ctx = s.tx.SessionContext(ctx)
	}
	var c counterModel
	err := s.mdb.Collection(colCounters).FindOneAndUpdate(ctx,
		bson.M{"_id": key},
		bson.M{"$inc": bson.M{"value": int64(1)}},
		options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After),
	).Decode(&c)
	if err != nil {
		return 0, fmt.Errorf("membership/mongo: next %s: %w", key, err)
	}
	return c.Value, nil
}

// ==================== Template Store ====================

func (s *Store) CreateTemplate(ctx context.Context, t *template.Template) error {
	_, err := s.q.NewInsert(toTemplateModel(t)).Exec(ctx)
	if mongo.IsDuplicateKeyError(err) {
		return membership.ErrTemplateExists
	}
	if err != nil {
		return fmt.Errorf("membership/mongo: create template: %w", err)
	}
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, templateID id.TemplateID) (*template.Template, error) {
	var m templateModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"_id": templateID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, membership.ErrTemplateNotFound
		}
		return nil, fmt.Errorf("membership/mongo: get template: %w", err)
	}
	return fromTemplateModel(&m)
}

func (s *Store) UpdateTemplate(ctx context.Context, t *template.Template) error {
	m := toTemplateModel(t)
	res, err := s.q.NewUpdate((*templateModel)(nil)).
		Filter(bson.M{"_id": m.ID}).
		Set("name", m.Name).
		Set("base_balance", m.BaseBalance).
		Set("mint_price", m.MintPrice).
		Set("discount_percent", m.DiscountPercent).
		Set("is_vip", m.IsVIP).
		Set("metadata_ref", m.MetadataRef).
		Set("active", m.Active).
		Set("updated_at", m.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("membership/mongo: update template: %w", err)
	}
	if res.MatchedCount() == 0 {
		return membership.ErrTemplateNotFound
	}
	return nil
}

func (s *Store) ListTemplates(ctx context.Context) ([]*template.Template, error) {
	var models []templateModel
	err := s.q.NewFind(&models).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("membership/mongo: list templates: %w", err)
	}
	return convert(models, fromTemplateModel)
}

// ==================== Merchant Store ====================

func (s *Store) PutMerchant(ctx context.Context, m *merchant.Merchant) error {
	_, err := s.q.NewUpdate(toMerchantModel(m)).
		Filter(bson.M{"address": m.Address}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("membership/mongo: put merchant: %w", err)
	}
	return nil
}

func (s *Store) GetMerchant(ctx context.Context, address string) (*merchant.Merchant, error) {
	var m merchantModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"address": address}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, membership.ErrMerchantNotFound
		}
		return nil, fmt.Errorf("membership/mongo: get merchant: %w", err)
	}
	return fromMerchantModel(&m), nil
}

func (s *Store) ListMerchants(ctx context.Context, authorizedOnly bool) ([]*merchant.Merchant, error) {
	var models []merchantModel

	filter := bson.M{}
	if authorizedOnly {
		filter["authorized"] = true
	}

	err := s.q.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "address", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("membership/mongo: list merchants: %w", err)
	}

	result := make([]*merchant.Merchant, len(models))
	for i := range models {
		result[i] = fromMerchantModel(&models[i])
	}
	return result, nil
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	_, err := s.q.NewInsert(toAccountModel(a)).Exec(ctx)
	if mongo.IsDuplicateKeyError(err) {
		return membership.ValidationError{Field: "id", Message: "account already exists"}
	}
	if err != nil {
		return fmt.Errorf("membership/mongo: create account: %w", err)
	}
	return nil
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	var m accountModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"_id": accountID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, membership.ErrAccountNotFound
		}
		return nil, fmt.Errorf("membership/mongo: get account: %w", err)
	}
	return fromAccountModel(&m)
}

func (s *Store) UpdateAccount(ctx context.Context, a *account.Account) error {
	res, err := s.q.NewUpdate((*accountModel)(nil)).
		Filter(bson.M{"_id": a.ID.String()}).
		Set("owner", a.Owner).
		Set("balance", a.Balance).
		Set("updated_at", a.UpdatedAt.UTC()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("membership/mongo: update account: %w", err)
	}
	if res.MatchedCount() == 0 {
		return membership.ErrAccountNotFound
	}
	return nil
}

func (s *Store) ListAccountsByOwner(ctx context.Context, owner string) ([]*account.Account, error) {
	var models []accountModel
	err := s.q.NewFind(&models).
		Filter(bson.M{"owner": owner}).
		Sort(bson.D{{Key: "_id", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("membership/mongo: list accounts: %w", err)
	}
	return convert(models, fromAccountModel)
}

// accountExists reports a missing account as ErrAccountNotFound.
func (s *Store) accountExists(ctx context.Context, accountID id.AccountID) error {
	n, err := s.q.NewFind((*accountModel)(nil)).
		Filter(bson.M{"_id": accountID.String()}).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("membership/mongo: count accounts: %w", err)
	}
	if n == 0 {
		return membership.ErrAccountNotFound
	}
	return nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx *account.Transaction) error {
	if err := s.accountExists(ctx, tx.AccountID); err != nil {
		return err
	}

	seq, err := s.next(ctx, "transactions/"+tx.AccountID.String())
	if err != nil {
		return err
	}

	m := toTransactionModel(tx)
	m.Seq = seq
	if _, err := s.q.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("membership/mongo: append transaction: %w", err)
	}
	tx.Seq = seq
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID id.AccountID, opts account.HistoryQuery) ([]*account.Transaction, error) {
	var models []transactionModel

	filter := bson.M{"account_id": accountID.String()}
	if opts.Type != "" {
		filter["type"] = string(opts.Type)
	}
	window := bson.M{}
	if !opts.Since.IsZero() {
		window["$gte"] = opts.Since.UTC()
	}
	if !opts.Until.IsZero() {
		window["$lte"] = opts.Until.UTC()
	}
	if len(window) > 0 {
		filter["occurred_at"] = window
	}

	q := s.q.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "seq", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("membership/mongo: list transactions: %w", err)
	}
	return convert(models, fromTransactionModel)
}

func (s *Store) PutAllowance(ctx context.Context, a *account.Allowance) error {
	_, err := s.q.NewUpdate((*allowanceModel)(nil)).
		Filter(bson.M{"owner": a.Owner, "currency": string(a.Currency)}).
		Set("amount", a.Amount).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("membership/mongo: put allowance: %w", err)
	}
	return nil
}

func (s *Store) GetAllowance(ctx context.Context, owner string, currency types.Currency) (int64, error) {
	var m allowanceModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"owner": owner, "currency": string(currency)}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("membership/mongo: get allowance: %w", err)
	}
	return m.Amount, nil
}

func (s *Store) PutCurrency(ctx context.Context, c *account.SupportedCurrency) error {
	_, err := s.q.NewUpdate((*currencyModel)(nil)).
		Filter(bson.M{"currency": string(c.Currency)}).
		Set("registered_at", c.RegisteredAt.UTC()).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("membership/mongo: put currency: %w", err)
	}
	return nil
}

func (s *Store) DeleteCurrency(ctx context.Context, currency types.Currency) error {
	_, err := s.q.NewDelete((*currencyModel)(nil)).
		Filter(bson.M{"currency": string(currency)}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("membership/mongo: delete currency: %w", err)
	}
	return nil
}

func (s *Store) IsCurrencySupported(ctx context.Context, currency types.Currency) (bool, error) {
	n, err := s.q.NewFind((*currencyModel)(nil)).
		Filter(bson.M{"currency": string(currency)}).
		Count(ctx)
	if err != nil {
		return false, fmt.Errorf("membership/mongo: count currencies: %w", err)
	}
	return n > 0, nil
}

func (s *Store) ListCurrencies(ctx context.Context) ([]*account.SupportedCurrency, error) {
	var models []currencyModel
	err := s.q.NewFind(&models).
		Sort(bson.D{{Key: "currency", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("membership/mongo: list currencies: %w", err)
	}
	result := make([]*account.SupportedCurrency, len(models))
	for i, m := range models {
		result[i] = &account.SupportedCurrency{
			Currency:     types.Currency(m.Currency),
			RegisteredAt: m.RegisteredAt.UTC(),
		}
	}
	return result, nil
}

// ==================== Benefit Store ====================

func (s *Store) CreateBenefit(ctx context.Context, b *benefit.Benefit) error {
	if err := s.accountExists(ctx, b.AccountID); err != nil {
		return err
	}

	n, err := s.q.NewFind((*benefitModel)(nil)).
		Filter(bson.M{"account_id": b.AccountID.String()}).
		Count(ctx)
	if err != nil {
		return fmt.Errorf("membership/mongo: count benefits: %w", err)
	}

	m := toBenefitModel(b)
	m.Index = int(n)
	if _, err := s.q.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("membership/mongo: create benefit: %w", err)
	}
	b.Index = m.Index
	return nil
}

func (s *Store) GetBenefit(ctx context.Context, accountID id.AccountID, index int) (*benefit.Benefit, error) {
	var m benefitModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"account_id": accountID.String(), "idx": index}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, membership.ErrBenefitNotFound
		}
		return nil, fmt.Errorf("membership/mongo: get benefit: %w", err)
	}
	return fromBenefitModel(&m)
}

func (s *Store) UpdateBenefit(ctx context.Context, b *benefit.Benefit) error {
	res, err := s.q.NewUpdate((*benefitModel)(nil)).
		Filter(bson.M{"account_id": b.AccountID.String(), "idx": b.Index}).
		Set("value", b.Value).
		Set("remaining_value", b.RemainingValue).
		Set("redeemed_for", b.RedeemedFor).
		Set("expires_at", b.ExpiresAt.UTC()).
		Set("updated_at", b.UpdatedAt.UTC()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("membership/mongo: update benefit: %w", err)
	}
	if res.MatchedCount() == 0 {
		return membership.ErrBenefitNotFound
	}
	return nil
}

func (s *Store) ListBenefits(ctx context.Context, accountID id.AccountID) ([]*benefit.Benefit, error) {
	var models []benefitModel
	err := s.q.NewFind(&models).
		Filter(bson.M{"account_id": accountID.String()}).
		Sort(bson.D{{Key: "idx", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("membership/mongo: list benefits: %w", err)
	}
	return convert(models, fromBenefitModel)
}

// ==================== Event Store ====================

func (s *Store) CreateEvent(ctx context.Context, e *event.Event) error {
	_, err := s.q.NewInsert(toEventModel(e)).Exec(ctx)
	if mongo.IsDuplicateKeyError(err) {
		return membership.ValidationError{Field: "id", Message: "event already exists"}
	}
	if err != nil {
		return fmt.Errorf("membership/mongo: create event: %w", err)
	}
	return nil
}

func (s *Store) GetEvent(ctx context.Context, eventID id.EventID) (*event.Event, error) {
	var m eventModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"_id": eventID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, membership.ErrEventNotFound
		}
		return nil, fmt.Errorf("membership/mongo: get event: %w", err)
	}
	return fromEventModel(&m)
}

func (s *Store) UpdateEvent(ctx context.Context, e *event.Event) error {
	m := toEventModel(e)
	res, err := s.q.NewUpdate((*eventModel)(nil)).
		Filter(bson.M{"_id": m.ID}).
		Set("name", m.Name).
		Set("location", m.Location).
		Set("scheduled_at", m.ScheduledAt).
		Set("max_capacity", m.MaxCapacity).
		Set("booked_count", m.BookedCount).
		Set("checked_in_count", m.CheckedInCount).
		Set("price", m.Price).
		Set("event_type", m.EventType).
		Set("active", m.Active).
		Set("updated_at", m.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("membership/mongo: update event: %w", err)
	}
	if res.MatchedCount() == 0 {
		return membership.ErrEventNotFound
	}
	return nil
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel

	filter := bson.M{}
	if opts.ActiveOnly {
		filter["active"] = true
	}
	if !opts.ScheduledBefore.IsZero() {
		filter["scheduled_at"] = bson.M{"$lt": opts.ScheduledBefore.UTC()}
	}
	if opts.EventType != "" {
		filter["event_type"] = bson.Regex{Pattern: "^" + regexp.QuoteMeta(opts.EventType) + "$", Options: "i"}
	}

	q := s.q.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "scheduled_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("membership/mongo: list events: %w", err)
	}
	return convert(models, fromEventModel)
}

// ==================== Booking Store ====================

func (s *Store) CreateBooking(ctx context.Context, b *booking.Booking) error {
	pos, err := s.next(ctx, "bookings")
	if err != nil {
		return err
	}

	m := toBookingModel(b)
	m.Pos = pos
	_, err = s.q.NewInsert(m).Exec(ctx)
	if mongo.IsDuplicateKeyError(err) {
		return membership.ValidationError{Field: "entrance_number", Message: "entrance already booked"}
	}
	if err != nil {
		return fmt.Errorf("membership/mongo: create booking: %w", err)
	}
	return nil
}

func (s *Store) GetBooking(ctx context.Context, accountID id.AccountID, eventID id.EventID, entrance int) (*booking.Booking, error) {
	var m bookingModel
	err := s.q.NewFind(&m).
		Filter(bson.M{
			"account_id":      accountID.String(),
			"event_id":        eventID.String(),
			"entrance_number": entrance,
		}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, membership.ErrBookingNotFound
		}
		return nil, fmt.Errorf("membership/mongo: get booking: %w", err)
	}
	return fromBookingModel(&m)
}

func (s *Store) UpdateBooking(ctx context.Context, b *booking.Booking) error {
	res, err := s.q.NewUpdate((*bookingModel)(nil)).
		Filter(bson.M{
			"account_id":      b.AccountID.String(),
			"event_id":        b.EventID.String(),
			"entrance_number": b.EntranceNumber,
		}).
		Set("state", string(b.State)).
		Set("price_paid", b.PricePaid).
		Set("updated_at", b.UpdatedAt.UTC()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("membership/mongo: update booking: %w", err)
	}
	if res.MatchedCount() == 0 {
		return membership.ErrBookingNotFound
	}
	return nil
}

func (s *Store) ListBookingsByAccount(ctx context.Context, accountID id.AccountID) ([]*booking.Booking, error) {
	return s.listBookings(ctx, bson.M{"account_id": accountID.String()})
}

func (s *Store) ListBookingsByEvent(ctx context.Context, eventID id.EventID) ([]*booking.Booking, error) {
	return s.listBookings(ctx, bson.M{"event_id": eventID.String()})
}

func (s *Store) listBookings(ctx context.Context, filter bson.M) ([]*booking.Booking, error) {
	var models []bookingModel
	err := s.q.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "pos", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("membership/mongo: list bookings: %w", err)
	}
	return convert(models, fromBookingModel)
}

func (s *Store) GetPair(ctx context.Context, accountID id.AccountID, eventID id.EventID) (*booking.Pair, error) {
	var m pairModel
	err := s.q.NewFind(&m).
		Filter(bson.M{"account_id": accountID.String(), "event_id": eventID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, membership.ErrPairNotFound
		}
		return nil, fmt.Errorf("membership/mongo: get pair: %w", err)
	}
	return &booking.Pair{
		AccountID:     accountID,
		EventID:       eventID,
		Allowance:     m.Allowance,
		Active:        m.Active,
		NextEntrance:  m.NextEntrance,
		Cancellations: m.Cancellations,
		UpdatedAt:     m.UpdatedAt.UTC(),
	}, nil
}

func (s *Store) PutPair(ctx context.Context, p *booking.Pair) error {
	_, err := s.q.NewUpdate(toPairModel(p)).
		Filter(bson.M{"account_id": p.AccountID.String(), "event_id": p.EventID.String()}).
		Upsert().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("membership/mongo: put pair: %w", err)
	}
	return nil
}

// ==================== Notification Store ====================

func (s *Store) AppendNotification(ctx context.Context, n *notification.Notification) error {
	seq, err := s.next(ctx, "notifications")
	if err != nil {
		return err
	}

	m := toNotificationModel(n)
	m.Seq = seq
	if _, err := s.q.NewInsert(m).Exec(ctx); err != nil {
		return fmt.Errorf("membership/mongo: append notification: %w", err)
	}
	n.Seq = seq
	return nil
}

func (s *Store) PendingNotifications(ctx context.Context, limit int) ([]*notification.Notification, error) {
	var models []notificationModel
	q := s.q.NewFind(&models).
		Filter(bson.M{"delivered_at": nil}).
		Sort(bson.D{{Key: "seq", Value: 1}})
	if limit > 0 {
		q = q.Limit(int64(limit))
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("membership/mongo: pending notifications: %w", err)
	}
	return convert(models, fromNotificationModel)
}

func (s *Store) MarkDelivered(ctx context.Context, notificationID id.NotificationID, at time.Time) error {
	res, err := s.q.NewUpdate((*notificationModel)(nil)).
		Filter(bson.M{"_id": notificationID.String()}).
		Set("delivered_at", at.UTC()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("membership/mongo: mark delivered: %w", err)
	}
	if res.MatchedCount() == 0 {
		return membership.ErrNotificationNotFound
	}
	return nil
}

func (s *Store) PurgeDelivered(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.q.NewDelete((*notificationModel)(nil)).
		Filter(bson.M{"delivered_at": bson.M{"$lt": before.UTC()}}).
		Many().
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("membership/mongo: purge delivered: %w", err)
	}
	return res.DeletedCount(), nil
}

// ==================== Helpers ====================

func convert[M, T any](models []M, from func(*M) (*T, error)) ([]*T, error) {
	result := make([]*T, len(models))
	for i := range models {
		v, err := from(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = v
	}
	return result, nil
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all membership collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	unique := options.Index().SetUnique(true)
	return map[string][]mongo.IndexModel{
		colMerchants: {
			{Keys: bson.D{{Key: "address", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "authorized", Value: 1}}},
		},
		colAccounts: {
			{Keys: bson.D{{Key: "owner", Value: 1}}},
		},
		colTransactions: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "seq", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "occurred_at", Value: 1}}},
		},
		colAllowances: {
			{Keys: bson.D{{Key: "owner", Value: 1}, {Key: "currency", Value: 1}}, Options: unique},
		},
		colCurrencies: {
			{Keys: bson.D{{Key: "currency", Value: 1}}, Options: unique},
		},
		colBenefits: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "idx", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "redeemed_for", Value: 1}}},
		},
		colEvents: {
			{Keys: bson.D{{Key: "active", Value: 1}, {Key: "scheduled_at", Value: 1}}},
		},
		colBookings: {
			{
				Keys:    bson.D{{Key: "account_id", Value: 1}, {Key: "event_id", Value: 1}, {Key: "entrance_number", Value: 1}},
				Options: unique,
			},
			{Keys: bson.D{{Key: "event_id", Value: 1}, {Key: "pos", Value: 1}}},
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "pos", Value: 1}}},
		},
		colPairs: {
			{Keys: bson.D{{Key: "account_id", Value: 1}, {Key: "event_id", Value: 1}}, Options: unique},
		},
		colNotifications: {
			{Keys: bson.D{{Key: "seq", Value: 1}}, Options: unique},
			{Keys: bson.D{{Key: "delivered_at", Value: 1}, {Key: "seq", Value: 1}}},
		},
	}
}
