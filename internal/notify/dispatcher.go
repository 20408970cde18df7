package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskdash/internal/domain"
	"taskdash/internal/repo"
)

// Dispatcher records notifications for users. It writes directly and does
// not share a transaction with the caller's preceding write.
type Dispatcher struct {
	Repo repo.Repo
	Now  func() time.Time
}

func (d Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now().UTC()
	}
	return time.Now().UTC()
}

// Create validates n, stamps it unread with the current time and stores it.
func (d Dispatcher) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	if n.UserID == 0 {
		return domain.Notification{}, errors.New("notification user_id required")
	}
	if strings.TrimSpace(n.Title) == "" || strings.TrimSpace(n.Message) == "" {
		return domain.Notification{}, errors.New("notification title and message required")
	}
	if n.Type == "" {
		n.Type = domain.NotificationSystemAnnouncement
	}
	if n.Priority == "" {
		n.Priority = domain.NotificationInformational
	}
	n.IsRead = false
	n.CreatedAt = d.now()
	id, err := d.Repo.InsertNotification(ctx, nil, n)
	if err != nil {
		return domain.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	n.ID = id
	return n, nil
}
