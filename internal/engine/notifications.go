package engine

import (
	"context"
	"errors"
	"time"

	"taskdash/internal/domain"
	"taskdash/internal/repo"
)

const maxNotificationPage = 200

func (e Engine) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if limit <= 0 || limit > maxNotificationPage {
		limit = maxNotificationPage
	}
	return e.Repo.ListNotifications(ctx, userID, unreadOnly, limit)
}

func (e Engine) UnreadCount(ctx context.Context, userID int64) (int, error) {
	return e.Repo.CountUnreadNotifications(ctx, userID)
}

// MarkNotificationRead returns false when the notification does not exist or
// belongs to someone else.
func (e Engine) MarkNotificationRead(ctx context.Context, notificationID, userID int64) (bool, error) {
	err := e.Repo.MarkNotificationRead(ctx, notificationID, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (e Engine) MarkAllNotificationsRead(ctx context.Context, userID int64) (int, error) {
	return e.Repo.MarkAllNotificationsRead(ctx, userID)
}

// PruneNotifications deletes read notifications older than maxAge.
func (e Engine) PruneNotifications(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, invalid("max_age", "must be positive")
	}
	return e.Repo.DeleteReadNotificationsBefore(ctx, e.now().Add(-maxAge))
}
