package notification

import (
	"context"
	"time"

	"github.com/xraph/membership/id"
)

// Store is the transactional outbox.
type Store interface {
	// AppendNotification assigns n.Seq as the next global sequence number.
	AppendNotification(ctx context.Context, n *Notification) error
	// PendingNotifications returns undelivered notifications in Seq order.
	PendingNotifications(ctx context.Context, limit int) ([]*Notification, error)
	MarkDelivered(ctx context.Context, notificationID id.NotificationID, at time.Time) error
	// PurgeDelivered removes delivered notifications older than before and
	// returns how many were removed.
	PurgeDelivered(ctx context.Context, before time.Time) (int64, error)
}
