package membership

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xraph/membership/notification"
	"github.com/xraph/membership/plugin"
)

// notifyRelay wakes the relay worker without blocking.
func (l *Ledger) notifyRelay() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// relayWorker delivers committed notifications to plugins.
func (l *Ledger) relayWorker(ctx context.Context) {
	defer l.wg.Done()

	ticker := time.NewTicker(l.relayInterval)
	defer ticker.Stop()

	for {
		select {
		case <-l.stopChan:
			// Final flush
			if _, err := l.Flush(ctx); err != nil {
				l.logger.Warn("final notification flush failed", "error", err)
			}
			return
		case <-l.wake:
		case <-ticker.C:
		}

		if _, err := l.Flush(ctx); err != nil {
			l.logger.Warn("notification flush stopped", "error", err)
		}
	}
}

// Flush delivers pending notifications in commit order and returns how
// many were delivered. It stops at the first notification that cannot be
// delivered after retries; that one and everything after it stay pending.
func (l *Ledger) Flush(ctx context.Context) (int, error) {
	l.relayMu.Lock()
	defer l.relayMu.Unlock()

	delivered := 0
	for {
		pending, err := l.store.PendingNotifications(ctx, l.relayBatchSize)
		if err != nil {
			return delivered, err
		}
		if len(pending) == 0 {
			return delivered, nil
		}

		for _, n := range pending {
			if err := l.deliver(ctx, n); err != nil {
				return delivered, fmt.Errorf("deliver %s #%d: %w", n.Kind, n.Seq, err)
			}
			if err := l.store.MarkDelivered(ctx, n.ID, l.Now()); err != nil {
				return delivered, err
			}
			delivered++
		}
	}
}

// deliver dispatches n with retries. A retry reaches only the hooks that
// failed before. A notification left pending by a failed Flush is
// dispatched to every hook again on the next pass.
func (l *Ledger) deliver(ctx context.Context, n *notification.Notification) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = l.relayRetryInterval

	d := l.plugins.NewDelivery(n)
	attempt := 0
	op := func() error {
		attempt++
		err := d.Attempt(ctx)
		if errors.Is(err, plugin.ErrUndecodable) {
			return backoff.Permanent(err)
		}
		if err != nil {
			l.logger.Warn("notification delivery failed",
				"notification_id", n.ID.String(),
				"kind", n.Kind,
				"seq", n.Seq,
				"attempt", attempt,
				"error", err,
			)
		}
		return err
	}

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(b, l.relayMaxRetries), ctx))
	if errors.Is(err, plugin.ErrUndecodable) {
		// Skip it so the rest of the outbox can drain.
		l.logger.Error("dropping undecodable notification",
			"notification_id", n.ID.String(),
			"kind", n.Kind,
			"seq", n.Seq,
			"error", err,
		)
		return nil
	}
	return err
}

// PendingNotifications returns up to limit undelivered notifications in
// commit order.
func (l *Ledger) PendingNotifications(ctx context.Context, limit int) ([]*notification.Notification, error) {
	return l.store.PendingNotifications(ctx, limit)
}

// PurgeDeliveredNotifications deletes notifications delivered before the
// given time and returns how many were removed.
func (l *Ledger) PurgeDeliveredNotifications(ctx context.Context, before time.Time) (int64, error) {
	if err := l.view(ctx).require(capAdmin, ""); err != nil {
		return 0, err
	}
	l.relayMu.Lock()
	defer l.relayMu.Unlock()

	n, err := l.store.PurgeDelivered(ctx, before)
	if err != nil {
		return 0, err
	}
	l.logger.Info("purged delivered notifications", "count", n, "before", before)
	return n, nil
}
