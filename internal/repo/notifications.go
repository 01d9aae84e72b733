package repo

import (
	"context"

	"github.com/PascalHesselink/PassieUptimeRobot/internal/domain"
)

type NotificationStore interface {
	// SubscribersFor lists users linked to the target through an
	// enabled subscription.
	SubscribersFor(ctx context.Context, targetID int64) ([]domain.User, error)

	// InsertNotification is the dedup primitive: insert-if-absent on
	// (user, target, change_type, change_key). It reports whether a row
	// was created; false means the notification was already recorded.
	InsertNotification(ctx context.Context, n *domain.Notification) (bool, error)

	// RecentNotifications returns up to limit rows, newest first.
	RecentNotifications(ctx context.Context, limit int) ([]domain.Notification, error)

	ListUsers(ctx context.Context) ([]domain.User, error)
}
