package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"taskdash/internal/repo"
)

const (
	defaultRelayInterval = 2 * time.Second
	defaultRelayBatch    = 100
)

// Relay polls the notifications table and pushes new rows to the hub. It
// keeps a cursor on the highest id delivered, starting from the newest row
// present when Start runs.
type Relay struct {
	Repo     repo.Repo
	Hub      *Hub
	Interval time.Duration
	Batch    int
	Logger   *slog.Logger

	cursor int64
}

func (r *Relay) logger() *slog.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return slog.Default()
}

func (r *Relay) batch() int {
	if r.Batch > 0 {
		return r.Batch
	}
	return defaultRelayBatch
}

// Start positions the cursor after the newest existing notification.
func (r *Relay) Start(ctx context.Context) error {
	cur, err := r.Repo.MaxNotificationID(ctx)
	if err != nil {
		return fmt.Errorf("relay: init cursor: %w", err)
	}
	r.cursor = cur
	return nil
}

// Poll delivers every notification past the cursor and returns how many
// were pushed.
func (r *Relay) Poll(ctx context.Context) (int, error) {
	sent := 0
	for {
		items, err := r.Repo.ListNotificationsAfter(ctx, r.cursor, r.batch())
		if err != nil {
			return sent, err
		}
		for _, n := range items {
			if err := r.Hub.PushNotification(n); err != nil {
				return sent, err
			}
			r.cursor = n.ID
			sent++
		}
		if len(items) < r.batch() {
			return sent, nil
		}
	}
}

// Run starts the relay and polls on a ticker until ctx is done.
func (r *Relay) Run(ctx context.Context) error {
	if err := r.Start(ctx); err != nil {
		return err
	}
	interval := r.Interval
	if interval <= 0 {
		interval = defaultRelayInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := r.Poll(ctx); err != nil && ctx.Err() == nil {
				r.logger().Error("relay: poll notifications failed", "error", err)
			}
		}
	}
}
