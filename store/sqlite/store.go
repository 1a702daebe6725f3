// Package sqlite implements store.Store on an embedded SQLite database via
// Grove ORM and the pure-Go modernc driver. The store uses a single
// connection; Atomic maps onto a database transaction.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate" // registers the sqlite migration executor
	"github.com/xraph/grove/migrate"

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

// compile-time interface check
var _ store.Store = (*Store)(nil)

// queryer is satisfied by both *sqlitedriver.SqliteDB and *sqlitedriver.SqliteTx.
type queryer interface {
	NewSelect(model ...any) *sqlitedriver.SelectQuery
	NewInsert(model any) *sqlitedriver.InsertQuery
	NewUpdate(model any) *sqlitedriver.UpdateQuery
	NewDelete(model any) *sqlitedriver.DeleteQuery
	NewRaw(query string, args ...any) *sqlitedriver.RawQuery
}

// Store implements store.Store using SQLite via Grove ORM.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
	q   queryer
	tx  *sqlitedriver.SqliteTx
}

// New creates a new SQLite store backed by Grove ORM. The store owns
// db and closes it on Close.
func New(db *grove.DB) *Store {
	sdb := sqlitedriver.Unwrap(db)
	return &Store{db: db, sdb: sdb, q: sdb}
}

// Open opens the SQLite database at path. Use ":memory:" for a private
// in-memory database.
func Open(ctx context.Context, path string) (*Store, error) {
	sdb := sqlitedriver.New()
	// One connection keeps an in-memory database alive and serializes
	// writers.
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if err := sdb.Open(ctx, dsn, driver.WithPoolSize(1)); err != nil {
		return nil, fmt.Errorf("membership/sqlite: open: %w", err)
	}
	db, err := grove.Open(sdb)
	if err != nil {
		_ = sdb.Close()
		return nil, fmt.Errorf("membership/sqlite: grove: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("membership/sqlite: ping: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("membership/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("membership/sqlite: migration failed: %w", err)
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

	tx, err := s.sdb.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("membership/sqlite: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&Store{db: s.db, sdb: s.sdb, q: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("membership/sqlite: commit: %w", err)
	}
	return nil
}

// ==================== Template Store ====================

func (s *Store) CreateTemplate(ctx context.Context, t *template.Template) error {
	taken, err := exists(ctx, s.q.NewSelect((*templateModel)(nil)).Where("id = ?", t.ID.String()))
	if err != nil {
		return err
	}
	if taken {
		return membership.ErrTemplateExists
	}
	_, err = s.q.NewInsert(toTemplateModel(t)).Exec(ctx)
	return err
}

func (s *Store) GetTemplate(ctx context.Context, templateID id.TemplateID) (*template.Template, error) {
	m := new(templateModel)
	err := s.q.NewSelect(m).
		Where("id = ?", templateID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, membership.ErrTemplateNotFound
		}
		return nil, err
	}
	return fromTemplateModel(m)
}

func (s *Store) UpdateTemplate(ctx context.Context, t *template.Template) error {
	res, err := s.q.NewUpdate(toTemplateModel(t)).
		Column("name", "base_balance", "mint_price", "discount_percent",
			"is_vip", "metadata_ref", "active", "updated_at").
		WherePK().
		Exec(ctx)
	return affected(res, err, membership.ErrTemplateNotFound)
}

func (s *Store) ListTemplates(ctx context.Context) ([]*template.Template, error) {
	var models []templateModel
	if err := s.q.NewSelect(&models).OrderExpr("id ASC").Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromTemplateModel)
}

// ==================== Merchant Store ====================

func (s *Store) PutMerchant(ctx context.Context, m *merchant.Merchant) error {
	_, err := s.q.NewInsert(toMerchantModel(m)).
		OnConflict("(address) DO UPDATE").
		Set("authorized = EXCLUDED.authorized").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

func (s *Store) GetMerchant(ctx context.Context, address string) (*merchant.Merchant, error) {
	m := new(merchantModel)
	err := s.q.NewSelect(m).Where("address = ?", address).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, membership.ErrMerchantNotFound
		}
		return nil, err
	}
	return fromMerchantModel(m), nil
}

func (s *Store) ListMerchants(ctx context.Context, authorizedOnly bool) ([]*merchant.Merchant, error) {
	var models []merchantModel
	q := s.q.NewSelect(&models)
	if authorizedOnly {
		q = q.Where("authorized = 1")
	}
	if err := q.OrderExpr("address ASC").Scan(ctx); err != nil {
		return nil, err
	}
	result := make([]*merchant.Merchant, len(models))
	for i := range models {
		result[i] = fromMerchantModel(&models[i])
	}
	return result, nil
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(ctx context.Context, a *account.Account) error {
	taken, err := exists(ctx, s.q.NewSelect((*accountModel)(nil)).Where("id = ?", a.ID.String()))
	if err != nil {
		return err
	}
	if taken {
		return membership.ValidationError{Field: "id", Message: "account already exists"}
	}
	_, err = s.q.NewInsert(toAccountModel(a)).Exec(ctx)
	return err
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	m := new(accountModel)
	err := s.q.NewSelect(m).Where("id = ?", accountID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, membership.ErrAccountNotFound
		}
		return nil, err
	}
	return fromAccountModel(m)
}

func (s *Store) UpdateAccount(ctx context.Context, a *account.Account) error {
	res, err := s.q.NewUpdate(toAccountModel(a)).
		Column("owner", "balance", "updated_at").
		WherePK().
		Exec(ctx)
	return affected(res, err, membership.ErrAccountNotFound)
}

func (s *Store) ListAccountsByOwner(ctx context.Context, owner string) ([]*account.Account, error) {
	var models []accountModel
	err := s.q.NewSelect(&models).
		Where("owner = ?", owner).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return convert(models, fromAccountModel)
}

// accountExists reports a missing account as ErrAccountNotFound.
func (s *Store) accountExists(ctx context.Context, accountID id.AccountID) error {
	ok, err := exists(ctx, s.q.NewSelect((*accountModel)(nil)).Where("id = ?", accountID.String()))
	if err != nil {
		return err
	}
	if !ok {
		return membership.ErrAccountNotFound
	}
	return nil
}

func (s *Store) AppendTransaction(ctx context.Context, tx *account.Transaction) error {
	if err := s.accountExists(ctx, tx.AccountID); err != nil {
		return err
	}

	var seq int64
	err := s.q.NewRaw(`SELECT COALESCE(MAX(seq), 0) + 1 FROM membership_transactions WHERE account_id = ?`,
		tx.AccountID.String()).Scan(ctx, &seq)
	if err != nil {
		return err
	}

	m := toTransactionModel(tx)
	m.Seq = seq
	if _, err := s.q.NewInsert(m).Exec(ctx); err != nil {
		return err
	}
	tx.Seq = seq
	return nil
}

func (s *Store) ListTransactions(ctx context.Context, accountID id.AccountID, opts account.HistoryQuery) ([]*account.Transaction, error) {
	var models []transactionModel
	q := s.q.NewSelect(&models).Where("account_id = ?", accountID.String())

	if opts.Type != "" {
		q = q.Where("type = ?", string(opts.Type))
	}
	if !opts.Since.IsZero() {
		q = q.Where("occurred_at >= ?", ts(opts.Since))
	}
	if !opts.Until.IsZero() {
		q = q.Where("occurred_at <= ?", ts(opts.Until))
	}
	q = paginate(q.OrderExpr("seq ASC"), opts.Offset, opts.Limit)

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromTransactionModel)
}

func (s *Store) PutAllowance(ctx context.Context, a *account.Allowance) error {
	_, err := s.q.NewInsert(&allowanceModel{
		Owner:    a.Owner,
		Currency: string(a.Currency),
		Amount:   a.Amount,
	}).
		OnConflict("(owner, currency) DO UPDATE").
		Set("amount = EXCLUDED.amount").
		Exec(ctx)
	return err
}

func (s *Store) GetAllowance(ctx context.Context, owner string, currency types.Currency) (int64, error) {
	m := new(allowanceModel)
	err := s.q.NewSelect(m).
		Where("owner = ?", owner).
		Where("currency = ?", string(currency)).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return 0, nil
		}
		return 0, err
	}
	return m.Amount, nil
}

func (s *Store) PutCurrency(ctx context.Context, c *account.SupportedCurrency) error {
	_, err := s.q.NewInsert(&currencyModel{
		Currency:     string(c.Currency),
		RegisteredAt: ts(c.RegisteredAt),
	}).
		OnConflict("(currency) DO UPDATE").
		Set("registered_at = EXCLUDED.registered_at").
		Exec(ctx)
	return err
}

func (s *Store) DeleteCurrency(ctx context.Context, currency types.Currency) error {
	_, err := s.q.NewDelete((*currencyModel)(nil)).
		Where("currency = ?", string(currency)).
		Exec(ctx)
	return err
}

func (s *Store) IsCurrencySupported(ctx context.Context, currency types.Currency) (bool, error) {
	return exists(ctx, s.q.NewSelect((*currencyModel)(nil)).Where("currency = ?", string(currency)))
}

func (s *Store) ListCurrencies(ctx context.Context) ([]*account.SupportedCurrency, error) {
	var models []currencyModel
	if err := s.q.NewSelect(&models).OrderExpr("currency ASC").Scan(ctx); err != nil {
		return nil, err
	}
	result := make([]*account.SupportedCurrency, len(models))
	for i, m := range models {
		result[i] = &account.SupportedCurrency{
			Currency:     types.Currency(m.Currency),
			RegisteredAt: fromTS(m.RegisteredAt),
		}
	}
	return result, nil
}

// ==================== Benefit Store ====================

func (s *Store) CreateBenefit(ctx context.Context, b *benefit.Benefit) error {
	if err := s.accountExists(ctx, b.AccountID); err != nil {
		return err
	}

	n, err := s.q.NewSelect((*benefitModel)(nil)).
		Where("account_id = ?", b.AccountID.String()).
		Count(ctx)
	if err != nil {
		return err
	}

	m := toBenefitModel(b)
	m.Index = int(n)
	if _, err := s.q.NewInsert(m).Exec(ctx); err != nil {
		return err
	}
	b.Index = m.Index
	return nil
}

func (s *Store) GetBenefit(ctx context.Context, accountID id.AccountID, index int) (*benefit.Benefit, error) {
	m := new(benefitModel)
	err := s.q.NewSelect(m).
		Where("account_id = ?", accountID.String()).
		Where("idx = ?", index).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, membership.ErrBenefitNotFound
		}
		return nil, err
	}
	return fromBenefitModel(m)
}

func (s *Store) UpdateBenefit(ctx context.Context, b *benefit.Benefit) error {
	res, err := s.q.NewUpdate((*benefitModel)(nil)).
		Set("value = ?", b.Value).
		Set("remaining_value = ?", b.RemainingValue).
		Set("redeemed_for = ?", b.RedeemedFor).
		Set("expires_at = ?", ts(b.ExpiresAt)).
		Set("updated_at = ?", ts(b.UpdatedAt)).
		Where("account_id = ?", b.AccountID.String()).
		Where("idx = ?", b.Index).
		Exec(ctx)
	return affected(res, err, membership.ErrBenefitNotFound)
}

func (s *Store) ListBenefits(ctx context.Context, accountID id.AccountID) ([]*benefit.Benefit, error) {
	var models []benefitModel
	err := s.q.NewSelect(&models).
		Where("account_id = ?", accountID.String()).
		OrderExpr("idx ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return convert(models, fromBenefitModel)
}

// ==================== Event Store ====================

func (s *Store) CreateEvent(ctx context.Context, e *event.Event) error {
	taken, err := exists(ctx, s.q.NewSelect((*eventModel)(nil)).Where("id = ?", e.ID.String()))
	if err != nil {
		return err
	}
	if taken {
		return membership.ValidationError{Field: "id", Message: "event already exists"}
	}
	_, err = s.q.NewInsert(toEventModel(e)).Exec(ctx)
	return err
}

func (s *Store) GetEvent(ctx context.Context, eventID id.EventID) (*event.Event, error) {
	m := new(eventModel)
	err := s.q.NewSelect(m).Where("id = ?", eventID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, membership.ErrEventNotFound
		}
		return nil, err
	}
	return fromEventModel(m)
}

func (s *Store) UpdateEvent(ctx context.Context, e *event.Event) error {
	res, err := s.q.NewUpdate(toEventModel(e)).
		Column("name", "location", "scheduled_at", "max_capacity", "booked_count",
			"checked_in_count", "price", "event_type", "active", "updated_at").
		WherePK().
		Exec(ctx)
	return affected(res, err, membership.ErrEventNotFound)
}

func (s *Store) ListEvents(ctx context.Context, opts event.ListOpts) ([]*event.Event, error) {
	var models []eventModel
	q := s.q.NewSelect(&models)

	if opts.ActiveOnly {
		q = q.Where("active = 1")
	}
	if !opts.ScheduledBefore.IsZero() {
		q = q.Where("scheduled_at < ?", ts(opts.ScheduledBefore))
	}
	if opts.EventType != "" {
		q = q.Where("LOWER(event_type) = LOWER(?)", opts.EventType)
	}
	q = paginate(q.OrderExpr("scheduled_at ASC, id ASC"), opts.Offset, opts.Limit)

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromEventModel)
}

// ==================== Booking Store ====================

func (s *Store) CreateBooking(ctx context.Context, b *booking.Booking) error {
	taken, err := exists(ctx, s.q.NewSelect((*bookingModel)(nil)).
		Where("account_id = ?", b.AccountID.String()).
		Where("event_id = ?", b.EventID.String()).
		Where("entrance_number = ?", b.EntranceNumber))
	if err != nil {
		return err
	}
	if taken {
		return membership.ValidationError{Field: "entrance_number", Message: "entrance already booked"}
	}
	_, err = s.q.NewInsert(toBookingModel(b)).Exec(ctx)
	return err
}

func (s *Store) GetBooking(ctx context.Context, accountID id.AccountID, eventID id.EventID, entrance int) (*booking.Booking, error) {
	m := new(bookingModel)
	err := s.q.NewSelect(m).
		Where("account_id = ?", accountID.String()).
		Where("event_id = ?", eventID.String()).
		Where("entrance_number = ?", entrance).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, membership.ErrBookingNotFound
		}
		return nil, err
	}
	return fromBookingModel(m)
}

func (s *Store) UpdateBooking(ctx context.Context, b *booking.Booking) error {
	res, err := s.q.NewUpdate((*bookingModel)(nil)).
		Set("state = ?", string(b.State)).
		Set("price_paid = ?", b.PricePaid).
		Set("updated_at = ?", ts(b.UpdatedAt)).
		Where("account_id = ?", b.AccountID.String()).
		Where("event_id = ?", b.EventID.String()).
		Where("entrance_number = ?", b.EntranceNumber).
		Exec(ctx)
	return affected(res, err, membership.ErrBookingNotFound)
}

func (s *Store) ListBookingsByAccount(ctx context.Context, accountID id.AccountID) ([]*booking.Booking, error) {
	var models []bookingModel
	err := s.q.NewSelect(&models).
		Where("account_id = ?", accountID.String()).
		OrderExpr("pos ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return convert(models, fromBookingModel)
}

func (s *Store) ListBookingsByEvent(ctx context.Context, eventID id.EventID) ([]*booking.Booking, error) {
	var models []bookingModel
	err := s.q.NewSelect(&models).
		Where("event_id = ?", eventID.String()).
		OrderExpr("pos ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return convert(models, fromBookingModel)
}

func (s *Store) GetPair(ctx context.Context, accountID id.AccountID, eventID id.EventID) (*booking.Pair, error) {
	m := new(pairModel)
	err := s.q.NewSelect(m).
		Where("account_id = ?", accountID.String()).
		Where("event_id = ?", eventID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, membership.ErrPairNotFound
		}
		return nil, err
	}
	return &booking.Pair{
		AccountID:     accountID,
		EventID:       eventID,
		Allowance:     m.Allowance,
		Active:        m.Active,
		NextEntrance:  m.NextEntrance,
		Cancellations: m.Cancellations,
		UpdatedAt:     fromTS(m.UpdatedAt),
	}, nil
}

func (s *Store) PutPair(ctx context.Context, p *booking.Pair) error {
	_, err := s.q.NewInsert(toPairModel(p)).
		OnConflict("(account_id, event_id) DO UPDATE").
		Set("allowance = EXCLUDED.allowance").
		Set("active = EXCLUDED.active").
		Set("next_entrance = EXCLUDED.next_entrance").
		Set("cancellations = EXCLUDED.cancellations").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	return err
}

// ==================== Notification Store ====================

func (s *Store) AppendNotification(ctx context.Context, n *notification.Notification) error {
	m := toNotificationModel(n)
	if err := s.q.NewInsert(m).Returning("seq").Scan(ctx, &m.Seq); err != nil {
		return err
	}
	n.Seq = m.Seq
	return nil
}

func (s *Store) PendingNotifications(ctx context.Context, limit int) ([]*notification.Notification, error) {
	var models []notificationModel
	q := s.q.NewSelect(&models).
		Where("delivered_at IS NULL").
		OrderExpr("seq ASC")
	if err := paginate(q, 0, limit).Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromNotificationModel)
}

func (s *Store) MarkDelivered(ctx context.Context, notificationID id.NotificationID, at time.Time) error {
	res, err := s.q.NewUpdate((*notificationModel)(nil)).
		Set("delivered_at = ?", ts(at)).
		Where("id = ?", notificationID.String()).
		Exec(ctx)
	return affected(res, err, membership.ErrNotificationNotFound)
}

func (s *Store) PurgeDelivered(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.q.NewDelete((*notificationModel)(nil)).
		Where("delivered_at IS NOT NULL").
		Where("delivered_at < ?", ts(before)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
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

func affected(res driver.Result, err, notFound error) error {
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

func exists(ctx context.Context, q *sqlitedriver.SelectQuery) (bool, error) {
	n, err := q.Count(ctx)
	return n > 0, err
}

// paginate applies LIMIT and OFFSET. SQLite rejects an OFFSET without a
// LIMIT, so an offset alone is paired with an unbounded limit.
func paginate(q *sqlitedriver.SelectQuery, offset, limit int) *sqlitedriver.SelectQuery {
	if offset > 0 && limit <= 0 {
		limit = math.MaxInt
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	return q
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
