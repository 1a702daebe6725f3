// Package sweeper runs periodic maintenance against a membership ledger:
// it expires events whose schedule has passed and purges delivered
// notifications past their retention.
package sweeper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xraph/membership"
	"github.com/xraph/membership/id"
)

// Defaults.
const (
	DefaultSchedule  = "@every 15m"
	DefaultGrace     = time.Hour
	DefaultRetention = 7 * 24 * time.Hour
)

// Ledger is the part of *membership.Ledger the sweeper drives.
type Ledger interface {
	Now() time.Time
	ExpirePastEvents(ctx context.Context, grace time.Duration) ([]id.EventID, error)
	PurgeDeliveredNotifications(ctx context.Context, before time.Time) (int64, error)
}

var _ Ledger = (*membership.Ledger)(nil)

// Result reports one sweep.
type Result struct {
	Expired []id.EventID
	Purged  int64
}

// Sweeper schedules sweeps with cron. It acts as operator, which must hold
// the admin capability.
type Sweeper struct {
	ledger    Ledger
	operator  string
	schedule  string
	grace     time.Duration
	retention time.Duration
	logger    *slog.Logger

	cron *cron.Cron
}

// Option configures a Sweeper.
type Option func(*Sweeper)

// WithSchedule sets the cron spec (standard five fields or descriptors
// such as "@hourly").
func WithSchedule(spec string) Option {
	return func(s *Sweeper) { s.schedule = spec }
}

// WithGrace sets how long after its scheduled time an event is expired.
func WithGrace(d time.Duration) Option {
	return func(s *Sweeper) { s.grace = d }
}

// WithRetention sets how long delivered notifications are kept. Zero
// disables purging.
func WithRetention(d time.Duration) Option {
	return func(s *Sweeper) { s.retention = d }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sweeper) { s.logger = logger }
}

// New creates a Sweeper for l.
func New(l Ledger, operator string, opts ...Option) *Sweeper {
	s := &Sweeper{
		ledger:    l,
		operator:  operator,
		schedule:  DefaultSchedule,
		grace:     DefaultGrace,
		retention: DefaultRetention,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunOnce performs a single sweep.
func (s *Sweeper) RunOnce(ctx context.Context) (Result, error) {
	ctx = membership.WithCaller(ctx, s.operator)

	var (
		res  Result
		errs []error
	)

	expired, err := s.ledger.ExpirePastEvents(ctx, s.grace)
	res.Expired = expired
	if err != nil {
		errs = append(errs, fmt.Errorf("sweeper: expire events: %w", err))
	}

	if s.retention > 0 {
		purged, err := s.ledger.PurgeDeliveredNotifications(ctx, s.ledger.Now().Add(-s.retention))
		res.Purged = purged
		if err != nil {
			errs = append(errs, fmt.Errorf("sweeper: purge notifications: %w", err))
		}
	}

	return res, errors.Join(errs...)
}

// Start schedules sweeps. It returns an error for an invalid schedule.
func (s *Sweeper) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.schedule, func() {
		res, err := s.RunOnce(ctx)
		if err != nil {
			s.logger.Error("sweep failed", "error", err)
		}
		if len(res.Expired) > 0 || res.Purged > 0 {
			s.logger.Info("sweep finished",
				"expired_events", len(res.Expired),
				"purged_notifications", res.Purged,
			)
		}
	}); err != nil {
		return fmt.Errorf("sweeper: schedule %q: %w", s.schedule, err)
	}

	s.cron = c
	c.Start()
	s.logger.Info("sweeper started", "schedule", s.schedule, "grace", s.grace, "retention", s.retention)
	return nil
}

// Stop stops scheduling and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("sweeper stopped")
}
