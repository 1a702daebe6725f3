// Package memory provides an in-process store.Store.
//
// Rows are stored by value and copied on every read and write, so callers
// never alias stored state. Atomic holds the write lock for the whole
// transaction and journals an undo step for every write.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

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

type tables struct {
	templates  map[string]template.Template
	merchants  map[string]merchant.Merchant
	accounts   map[string]account.Account
	txs        map[string][]account.Transaction
	allowances map[allowanceKey]int64
	currencies map[types.Currency]account.SupportedCurrency
	benefits   map[string][]benefit.Benefit
	events     map[string]event.Event

	bookings     []booking.Booking
	bookingIndex map[slotKey]int
	pairs        map[pairKey]booking.Pair

	notifications []notification.Notification
	notifySeq     int64
}

type allowanceKey struct {
	owner    string
	currency types.Currency
}

type pairKey struct {
	account string
	event   string
}

type slotKey struct {
	pairKey
	entrance int
}

// Store is an in-memory store.Store.
type Store struct {
	mu *sync.RWMutex
	t  *tables

	// undo is non-nil inside Atomic; the write lock is already held.
	undo *[]func()
}

// New creates an empty store.
func New() *Store {
	return &Store{
		mu: &sync.RWMutex{},
		t: &tables{
			templates:    make(map[string]template.Template),
			merchants:    make(map[string]merchant.Merchant),
			accounts:     make(map[string]account.Account),
			txs:          make(map[string][]account.Transaction),
			allowances:   make(map[allowanceKey]int64),
			currencies:   make(map[types.Currency]account.SupportedCurrency),
			benefits:     make(map[string][]benefit.Benefit),
			events:       make(map[string]event.Event),
			bookingIndex: make(map[slotKey]int),
			pairs:        make(map[pairKey]booking.Pair),
		},
	}
}

func (s *Store) read() func() {
	if s.undo != nil {
		return func() {}
	}
	s.mu.RLock()
	return s.mu.RUnlock
}

func (s *Store) write() func() {
	if s.undo != nil {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Store) journal(undo func()) {
	if s.undo != nil {
		*s.undo = append(*s.undo, undo)
	}
}

// Atomic implements store.Store.
func (s *Store) Atomic(ctx context.Context, fn func(tx store.Store) error) error {
	if s.undo != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var undo []func()
	rollback := func() {
		for i := len(undo) - 1; i >= 0; i-- {
			undo[i]()
		}
	}
	defer func() {
		if r := recover(); r != nil {
			rollback()
			panic(r)
		}
	}()

	tx := &Store{mu: s.mu, t: s.t, undo: &undo}
	if err := fn(tx); err != nil {
		rollback()
		return err
	}
	return nil
}

// Migrate is a no-op for the memory store.
func (s *Store) Migrate(_ context.Context) error { return nil }

// Ping always succeeds.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op for the memory store.
func (s *Store) Close() error { return nil }

// ==================== Template Store ====================

func (s *Store) CreateTemplate(_ context.Context, t *template.Template) error {
	defer s.write()()

	key := t.ID.String()
	if _, exists := s.t.templates[key]; exists {
		return membership.ErrTemplateExists
	}
	s.t.templates[key] = *t
	s.journal(func() { delete(s.t.templates, key) })
	return nil
}

func (s *Store) GetTemplate(_ context.Context, templateID id.TemplateID) (*template.Template, error) {
	defer s.read()()

	t, ok := s.t.templates[templateID.String()]
	if !ok {
		return nil, membership.ErrTemplateNotFound
	}
	return &t, nil
}

func (s *Store) UpdateTemplate(_ context.Context, t *template.Template) error {
	defer s.write()()

	key := t.ID.String()
	prev, ok := s.t.templates[key]
	if !ok {
		return membership.ErrTemplateNotFound
	}
	s.t.templates[key] = *t
	s.journal(func() { s.t.templates[key] = prev })
	return nil
}

func (s *Store) ListTemplates(_ context.Context) ([]*template.Template, error) {
	defer s.read()()

	result := make([]*template.Template, 0, len(s.t.templates))
	for _, t := range s.t.templates {
		t := t
		result = append(result, &t)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.Compare(result[j].ID) < 0 })
	return result, nil
}

// ==================== Merchant Store ====================

func (s *Store) PutMerchant(_ context.Context, m *merchant.Merchant) error {
	defer s.write()()

	prev, existed := s.t.merchants[m.Address]
	s.t.merchants[m.Address] = *m
	s.journal(func() {
		if existed {
			s.t.merchants[m.Address] = prev
		} else {
			delete(s.t.merchants, m.Address)
		}
	})
	return nil
}

func (s *Store) GetMerchant(_ context.Context, address string) (*merchant.Merchant, error) {
	defer s.read()()

	m, ok := s.t.merchants[address]
	if !ok {
		return nil, membership.ErrMerchantNotFound
	}
	return &m, nil
}

func (s *Store) ListMerchants(_ context.Context, authorizedOnly bool) ([]*merchant.Merchant, error) {
	defer s.read()()

	result := make([]*merchant.Merchant, 0, len(s.t.merchants))
	for _, m := range s.t.merchants {
		if authorizedOnly && !m.Authorized {
			continue
		}
		m := m
		result = append(result, &m)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Address < result[j].Address })
	return result, nil
}

// ==================== Account Store ====================

func (s *Store) CreateAccount(_ context.Context, a *account.Account) error {
	defer s.write()()

	key := a.ID.String()
	if _, exists := s.t.accounts[key]; exists {
		return membership.ValidationError{Field: "id", Message: "account already exists"}
	}
	s.t.accounts[key] = *a
	s.journal(func() { delete(s.t.accounts, key) })
	return nil
}

func (s *Store) GetAccount(_ context.Context, accountID id.AccountID) (*account.Account, error) {
	defer s.read()()

	a, ok := s.t.accounts[accountID.String()]
	if !ok {
		return nil, membership.ErrAccountNotFound
	}
	return &a, nil
}

func (s *Store) UpdateAccount(_ context.Context, a *account.Account) error {
	defer s.write()()

	key := a.ID.String()
	prev, ok := s.t.accounts[key]
	if !ok {
		return membership.ErrAccountNotFound
	}
	s.t.accounts[key] = *a
	s.journal(func() { s.t.accounts[key] = prev })
	return nil
}

func (s *Store) ListAccountsByOwner(_ context.Context, owner string) ([]*account.Account, error) {
	defer s.read()()

	result := make([]*account.Account, 0)
	for _, a := range s.t.accounts {
		if a.Owner == owner {
			a := a
			result = append(result, &a)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.Compare(result[j].ID) < 0 })
	return result, nil
}

func (s *Store) AppendTransaction(_ context.Context, tx *account.Transaction) error {
	defer s.write()()

	key := tx.AccountID.String()
	if _, ok := s.t.accounts[key]; !ok {
		return membership.ErrAccountNotFound
	}
	log := s.t.txs[key]
	tx.Seq = int64(len(log)) + 1
	s.t.txs[key] = append(log, *tx)
	s.journal(func() { s.t.txs[key] = s.t.txs[key][:len(log)] })
	return nil
}

func (s *Store) ListTransactions(_ context.Context, accountID id.AccountID, q account.HistoryQuery) ([]*account.Transaction, error) {
	defer s.read()()

	result := make([]*account.Transaction, 0)
	for _, tx := range s.t.txs[accountID.String()] {
		if q.Matches(&tx) {
			tx := tx
			result = append(result, &tx)
		}
	}
	return paginate(result, q.Offset, q.Limit), nil
}

func (s *Store) PutAllowance(_ context.Context, a *account.Allowance) error {
	defer s.write()()

	key := allowanceKey{owner: a.Owner, currency: a.Currency}
	prev, existed := s.t.allowances[key]
	s.t.allowances[key] = a.Amount
	s.journal(func() {
		if existed {
			s.t.allowances[key] = prev
		} else {
			delete(s.t.allowances, key)
		}
	})
	return nil
}

func (s *Store) GetAllowance(_ context.Context, owner string, currency types.Currency) (int64, error) {
	defer s.read()()

	return s.t.allowances[allowanceKey{owner: owner, currency: currency}], nil
}

func (s *Store) PutCurrency(_ context.Context, c *account.SupportedCurrency) error {
	defer s.write()()

	prev, existed := s.t.currencies[c.Currency]
	s.t.currencies[c.Currency] = *c
	s.journal(func() {
		if existed {
			s.t.currencies[c.Currency] = prev
		} else {
			delete(s.t.currencies, c.Currency)
		}
	})
	return nil
}

func (s *Store) DeleteCurrency(_ context.Context, currency types.Currency) error {
	defer s.write()()

	prev, existed := s.t.currencies[currency]
	if !existed {
		return nil
	}
	delete(s.t.currencies, currency)
	s.journal(func() { s.t.currencies[currency] = prev })
	return nil
}

func (s *Store) IsCurrencySupported(_ context.Context, currency types.Currency) (bool, error) {
	defer s.read()()

	_, ok := s.t.currencies[currency]
	return ok, nil
}

func (s *Store) ListCurrencies(_ context.Context) ([]*account.SupportedCurrency, error) {
	defer s.read()()

	result := make([]*account.SupportedCurrency, 0, len(s.t.currencies))
	for _, c := range s.t.currencies {
		c := c
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Currency < result[j].Currency })
	return result, nil
}

// ==================== Benefit Store ====================

func (s *Store) CreateBenefit(_ context.Context, b *benefit.Benefit) error {
	defer s.write()()

	key := b.AccountID.String()
	if _, ok := s.t.accounts[key]; !ok {
		return membership.ErrAccountNotFound
	}
	list := s.t.benefits[key]
	b.Index = len(list)
	s.t.benefits[key] = append(list, *b)
	s.journal(func() { s.t.benefits[key] = s.t.benefits[key][:len(list)] })
	return nil
}

func (s *Store) GetBenefit(_ context.Context, accountID id.AccountID, index int) (*benefit.Benefit, error) {
	defer s.read()()

	list := s.t.benefits[accountID.String()]
	if index < 0 || index >= len(list) {
		return nil, membership.ErrBenefitNotFound
	}
	b := list[index]
	return &b, nil
}

func (s *Store) UpdateBenefit(_ context.Context, b *benefit.Benefit) error {
	defer s.write()()

	key := b.AccountID.String()
	list := s.t.benefits[key]
	if b.Index < 0 || b.Index >= len(list) {
		return membership.ErrBenefitNotFound
	}
	prev := list[b.Index]
	list[b.Index] = *b
	s.journal(func() { s.t.benefits[key][prev.Index] = prev })
	return nil
}

func (s *Store) ListBenefits(_ context.Context, accountID id.AccountID) ([]*benefit.Benefit, error) {
	defer s.read()()

	list := s.t.benefits[accountID.String()]
	result := make([]*benefit.Benefit, 0, len(list))
	for _, b := range list {
		b := b
		result = append(result, &b)
	}
	return result, nil
}

// ==================== Event Store ====================

func (s *Store) CreateEvent(_ context.Context, e *event.Event) error {
	defer s.write()()

	key := e.ID.String()
	if _, exists := s.t.events[key]; exists {
		return membership.ValidationError{Field: "id", Message: "event already exists"}
	}
	s.t.events[key] = *e
	s.journal(func() { delete(s.t.events, key) })
	return nil
}

func (s *Store) GetEvent(_ context.Context, eventID id.EventID) (*event.Event, error) {
	defer s.read()()

	e, ok := s.t.events[eventID.String()]
	if !ok {
		return nil, membership.ErrEventNotFound
	}
	return &e, nil
}

func (s *Store) UpdateEvent(_ context.Context, e *event.Event) error {
	defer s.write()()

	key := e.ID.String()
	prev, ok := s.t.events[key]
	if !ok {
		return membership.ErrEventNotFound
	}
	s.t.events[key] = *e
	s.journal(func() { s.t.events[key] = prev })
	return nil
}

func (s *Store) ListEvents(_ context.Context, opts event.ListOpts) ([]*event.Event, error) {
	defer s.read()()

	result := make([]*event.Event, 0)
	for _, e := range s.t.events {
		if opts.Matches(&e) {
			e := e
			result = append(result, &e)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].ScheduledAt.Equal(result[j].ScheduledAt) {
			return result[i].ScheduledAt.Before(result[j].ScheduledAt)
		}
		return result[i].ID.Compare(result[j].ID) < 0
	})
	return paginate(result, opts.Offset, opts.Limit), nil
}

// ==================== Booking Store ====================

func slotOf(accountID id.AccountID, eventID id.EventID, entrance int) slotKey {
	return slotKey{pairKey: pairKey{account: accountID.String(), event: eventID.String()}, entrance: entrance}
}

func (s *Store) CreateBooking(_ context.Context, b *booking.Booking) error {
	defer s.write()()

	key := slotOf(b.AccountID, b.EventID, b.EntranceNumber)
	if _, exists := s.t.bookingIndex[key]; exists {
		return membership.ValidationError{Field: "entrance_number", Message: "entrance already booked"}
	}
	n := len(s.t.bookings)
	s.t.bookings = append(s.t.bookings, *b)
	s.t.bookingIndex[key] = n
	s.journal(func() {
		s.t.bookings = s.t.bookings[:n]
		delete(s.t.bookingIndex, key)
	})
	return nil
}

func (s *Store) GetBooking(_ context.Context, accountID id.AccountID, eventID id.EventID, entrance int) (*booking.Booking, error) {
	defer s.read()()

	pos, ok := s.t.bookingIndex[slotOf(accountID, eventID, entrance)]
	if !ok {
		return nil, membership.ErrBookingNotFound
	}
	b := s.t.bookings[pos]
	return &b, nil
}

func (s *Store) UpdateBooking(_ context.Context, b *booking.Booking) error {
	defer s.write()()

	pos, ok := s.t.bookingIndex[slotOf(b.AccountID, b.EventID, b.EntranceNumber)]
	if !ok {
		return membership.ErrBookingNotFound
	}
	prev := s.t.bookings[pos]
	s.t.bookings[pos] = *b
	s.journal(func() { s.t.bookings[pos] = prev })
	return nil
}

func (s *Store) ListBookingsByAccount(_ context.Context, accountID id.AccountID) ([]*booking.Booking, error) {
	defer s.read()()

	key := accountID.String()
	result := make([]*booking.Booking, 0)
	for _, b := range s.t.bookings {
		if b.AccountID.String() == key {
			b := b
			result = append(result, &b)
		}
	}
	return result, nil
}

func (s *Store) ListBookingsByEvent(_ context.Context, eventID id.EventID) ([]*booking.Booking, error) {
	defer s.read()()

	key := eventID.String()
	result := make([]*booking.Booking, 0)
	for _, b := range s.t.bookings {
		if b.EventID.String() == key {
			b := b
			result = append(result, &b)
		}
	}
	return result, nil
}

func (s *Store) GetPair(_ context.Context, accountID id.AccountID, eventID id.EventID) (*booking.Pair, error) {
	defer s.read()()

	p, ok := s.t.pairs[pairKey{account: accountID.String(), event: eventID.String()}]
	if !ok {
		return nil, membership.ErrPairNotFound
	}
	return &p, nil
}

func (s *Store) PutPair(_ context.Context, p *booking.Pair) error {
	defer s.write()()

	key := pairKey{account: p.AccountID.String(), event: p.EventID.String()}
	prev, existed := s.t.pairs[key]
	s.t.pairs[key] = *p
	s.journal(func() {
		if existed {
			s.t.pairs[key] = prev
		} else {
			delete(s.t.pairs, key)
		}
	})
	return nil
}

// ==================== Notification Store ====================

func (s *Store) AppendNotification(_ context.Context, n *notification.Notification) error {
	defer s.write()()

	prevSeq := s.t.notifySeq
	prevLen := len(s.t.notifications)
	s.t.notifySeq++
	n.Seq = s.t.notifySeq
	s.t.notifications = append(s.t.notifications, *n)
	s.journal(func() {
		s.t.notifySeq = prevSeq
		s.t.notifications = s.t.notifications[:prevLen]
	})
	return nil
}

func (s *Store) PendingNotifications(_ context.Context, limit int) ([]*notification.Notification, error) {
	defer s.read()()

	result := make([]*notification.Notification, 0)
	for _, n := range s.t.notifications {
		if n.DeliveredAt != nil {
			continue
		}
		n := n
		result = append(result, &n)
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

func (s *Store) MarkDelivered(_ context.Context, notificationID id.NotificationID, at time.Time) error {
	defer s.write()()

	key := notificationID.String()
	for i := range s.t.notifications {
		if s.t.notifications[i].ID.String() != key {
			continue
		}
		prev := s.t.notifications[i].DeliveredAt
		at := at.UTC()
		s.t.notifications[i].DeliveredAt = &at
		s.journal(func() { s.t.notifications[i].DeliveredAt = prev })
		return nil
	}
	return membership.ErrNotificationNotFound
}

func (s *Store) PurgeDelivered(_ context.Context, before time.Time) (int64, error) {
	defer s.write()()

	prev := s.t.notifications
	kept := make([]notification.Notification, 0, len(prev))
	for _, n := range prev {
		if n.DeliveredAt != nil && n.DeliveredAt.Before(before) {
			continue
		}
		kept = append(kept, n)
	}
	s.t.notifications = kept
	s.journal(func() { s.t.notifications = prev })
	return int64(len(prev) - len(kept)), nil
}

func paginate[T any](items []T, offset, limit int) []T {
	start := offset
	if start > len(items) {
		start = len(items)
	}
	if start < 0 {
		start = 0
	}
	end := start + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
