// Package postgres implements store.Store on PostgreSQL via Grove ORM.
// Atomic maps onto a database transaction.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the pg migration executor
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

// queryer is satisfied by both *pgdriver.PgDB and *pgdriver.PgTx.
type queryer interface {
	NewSelect(model ...any) *pgdriver.SelectQuery
	NewInsert(model any) *pgdriver.InsertQuery
	NewUpdate(model any) *pgdriver.UpdateQuery
	NewDelete(model any) *pgdriver.DeleteQuery
	NewRaw(query string, args ...any) *pgdriver.RawQuery
}

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
	q  queryer
	tx *pgdriver.PgTx
}

// New creates a new PostgreSQL store backed by Grove ORM. The store owns
// db and closes it on Close.
func New(db *grove.DB) *Store {
	pg := pgdriver.Unwrap(db)
	return &Store{db: db, pg: pg, q: pg}
}

// Open connects to dsn through the grove pg driver and verifies the
// database is reachable.
func Open(ctx context.Context, dsn string, opts ...driver.Option) (*Store, error) {
	pg := pgdriver.New()
	if err := pg.Open(ctx, dsn, opts...); err != nil {
		return nil, fmt.Errorf("membership/postgres: open: %w", err)
	}
	db, err := grove.Open(pg)
	if err != nil {
		_ = pg.Close()
		return nil, fmt.Errorf("membership/postgres: grove: %w", err)
	}
	if err := db.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("membership/postgres: ping: %w", err)
	}
	return New(db), nil
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("membership/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("membership/postgres: migration failed: %w", err)
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

	tx, err := s.pg.BeginTxQuery(ctx, nil)
	if err != nil {
		return fmt.Errorf("membership/postgres: begin: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := fn(&Store{db: s.db, pg: s.pg, q: tx, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("membership/postgres: commit: %w", err)
	}
	return nil
}

// ==================== Template Store ====================

func (s *Store) CreateTemplate(ctx context.Context, t *template.Template) error {
	_, err := s.q.NewInsert(toTemplateModel(t)).Exec(ctx)
	if isUniqueViolation(err) {
		return membership.ErrTemplateExists
	}
	return err
}

func (s *Store) GetTemplate(ctx context.Context, templateID id.TemplateID) (*template.Template, error) {
	m := new(templateModel)
	err := s.q.NewSelect(m).
		Where("id = $1", templateID.String()).
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
	err := s.q.NewSelect(m).Where("address = $1", address).Scan(ctx)
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
		q = q.Where("authorized = $1", true)
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
	_, err := s.q.NewInsert(toAccountModel(a)).Exec(ctx)
	if isUniqueViolation(err) {
		return membership.ValidationError{Field: "id", Message: "account already exists"}
	}
	return err
}

func (s *Store) GetAccount(ctx context.Context, accountID id.AccountID) (*account.Account, error) {
	m := new(accountModel)
	err := s.q.NewSelect(m).Where("id = $1", accountID.String()).Scan(ctx)
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
		Where("owner = $1", owner).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return convert(models, fromAccountModel)
}

// accountExists reports a missing account as ErrAccountNotFound.
func (s *Store) accountExists(ctx context.Context, accountID id.AccountID) error {
	n, err := s.q.NewSelect((*accountModel)(nil)).
		Where("id = $1", accountID.String()).
		Count(ctx)
	if err != nil {
		return err
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

	var seq int64
	err := s.q.NewRaw(`SELECT COALESCE(MAX(seq), 0) + 1 FROM membership_transactions WHERE account_id = $1`,
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
	q := s.q.NewSelect(&models).Where("account_id = $1", accountID.String())

	argIdx := 1
	if opts.Type != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("type = $%d", argIdx), string(opts.Type))
	}
	if !opts.Since.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("occurred_at >= $%d", argIdx), opts.Since.UTC())
	}
	if !opts.Until.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("occurred_at <= $%d", argIdx), opts.Until.UTC())
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("seq ASC")

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
		Where("owner = $1", owner).
		Where("currency = $2", string(currency)).
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
		RegisteredAt: c.RegisteredAt.UTC(),
	}).
		OnConflict("(currency) DO UPDATE").
		Set("registered_at = EXCLUDED.registered_at").
		Exec(ctx)
	return err
}

func (s *Store) DeleteCurrency(ctx context.Context, currency types.Currency) error {
	_, err := s.q.NewDelete((*currencyModel)(nil)).
		Where("currency = $1", string(currency)).
		Exec(ctx)
	return err
}

func (s *Store) IsCurrencySupported(ctx context.Context, currency types.Currency) (bool, error) {
	n, err := s.q.NewSelect((*currencyModel)(nil)).
		Where("currency = $1", string(currency)).
		Count(ctx)
	return n > 0, err
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

	n, err := s.q.NewSelect((*benefitModel)(nil)).
		Where("account_id = $1", b.AccountID.String()).
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
		Where("account_id = $1", accountID.String()).
		Where("idx = $2", index).
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
		Set("value = $1", b.Value).
		Set("remaining_value = $2", b.RemainingValue).
		Set("redeemed_for = $3", b.RedeemedFor).
		Set("expires_at = $4", b.ExpiresAt.UTC()).
		Set("updated_at = $5", b.UpdatedAt.UTC()).
		Where("account_id = $6", b.AccountID.String()).
		Where("idx = $7", b.Index).
		Exec(ctx)
	return affected(res, err, membership.ErrBenefitNotFound)
}

func (s *Store) ListBenefits(ctx context.Context, accountID id.AccountID) ([]*benefit.Benefit, error) {
	var models []benefitModel
	err := s.q.NewSelect(&models).
		Where("account_id = $1", accountID.String()).
		OrderExpr("idx ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return convert(models, fromBenefitModel)
}

// ==================== Event Store ====================

func (s *Store) CreateEvent(ctx context.Context, e *event.Event) error {
	_, err := s.q.NewInsert(toEventModel(e)).Exec(ctx)
	if isUniqueViolation(err) {
		return membership.ValidationError{Field: "id", Message: "event already exists"}
	}
	return err
}

func (s *Store) GetEvent(ctx context.Context, eventID id.EventID) (*event.Event, error) {
	m := new(eventModel)
	err := s.q.NewSelect(m).Where("id = $1", eventID.String()).Scan(ctx)
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

	argIdx := 0
	if opts.ActiveOnly {
		q = q.Where("active")
	}
	if !opts.ScheduledBefore.IsZero() {
		argIdx++
		q = q.Where(fmt.Sprintf("scheduled_at < $%d", argIdx), opts.ScheduledBefore.UTC())
	}
	if opts.EventType != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("LOWER(event_type) = LOWER($%d)", argIdx), opts.EventType)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("scheduled_at ASC, id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromEventModel)
}

// ==================== Booking Store ====================

func (s *Store) CreateBooking(ctx context.Context, b *booking.Booking) error {
	_, err := s.q.NewInsert(toBookingModel(b)).Exec(ctx)
	if isUniqueViolation(err) {
		return membership.ValidationError{Field: "entrance_number", Message: "entrance already booked"}
	}
	return err
}

func (s *Store) GetBooking(ctx context.Context, accountID id.AccountID, eventID id.EventID, entrance int) (*booking.Booking, error) {
	m := new(bookingModel)
	err := s.q.NewSelect(m).
		Where("account_id = $1", accountID.String()).
		Where("event_id = $2", eventID.String()).
		Where("entrance_number = $3", entrance).
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
		Set("state = $1", string(b.State)).
		Set("price_paid = $2", b.PricePaid).
		Set("updated_at = $3", b.UpdatedAt.UTC()).
		Where("account_id = $4", b.AccountID.String()).
		Where("event_id = $5", b.EventID.String()).
		Where("entrance_number = $6", b.EntranceNumber).
		Exec(ctx)
	return affected(res, err, membership.ErrBookingNotFound)
}

func (s *Store) ListBookingsByAccount(ctx context.Context, accountID id.AccountID) ([]*booking.Booking, error) {
	var models []bookingModel
	err := s.q.NewSelect(&models).
		Where("account_id = $1", accountID.String()).
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
		Where("event_id = $1", eventID.String()).
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
		Where("account_id = $1", accountID.String()).
		Where("event_id = $2", eventID.String()).
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
		UpdatedAt:     m.UpdatedAt.UTC(),
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
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return convert(models, fromNotificationModel)
}

func (s *Store) MarkDelivered(ctx context.Context, notificationID id.NotificationID, at time.Time) error {
	res, err := s.q.NewUpdate((*notificationModel)(nil)).
		Set("delivered_at = $1", at.UTC()).
		Where("id = $2", notificationID.String()).
		Exec(ctx)
	return affected(res, err, membership.ErrNotificationNotFound)
}

func (s *Store) PurgeDelivered(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.q.NewDelete((*notificationModel)(nil)).
		Where("delivered_at IS NOT NULL").
		Where("delivered_at < $1", before.UTC()).
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

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
