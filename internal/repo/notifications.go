package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taskdash/internal/domain"
)

const notificationColumns = `id,user_id,title,message,type,priority,is_read,created_at`

func scanNotification(s scanner) (domain.Notification, error) {
	var (
		n         domain.Notification
		createdAt string
	)
	if err := s.Scan(&n.ID, &n.UserID, &n.Title, &n.Message, &n.Type, &n.Priority, &n.IsRead, &createdAt); err != nil {
		return n, err
	}
	var err error
	n.CreatedAt, err = parseTime(createdAt)
	return n, err
}

func (r Repo) InsertNotification(ctx context.Context, tx *sql.Tx, n domain.Notification) (int64, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO notifications(user_id,title,message,type,priority,is_read,created_at) VALUES (?,?,?,?,?,?,?)`,
		n.UserID, n.Title, n.Message, n.Type, n.Priority, n.IsRead, FormatTime(n.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetNotification(ctx context.Context, id int64) (domain.Notification, error) {
	n, err := scanNotification(r.DB.QueryRowContext(ctx, `SELECT `+notificationColumns+` FROM notifications WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return n, ErrNotFound
	}
	return n, err
}

// ListNotifications returns a user's notifications newest first.
func (r Repo) ListNotifications(ctx context.Context, userID int64, unreadOnly bool, limit int) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE user_id=?`
	args := []any{userID}
	if unreadOnly {
		query += ` AND is_read=0`
	}
	query += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryNotifications(ctx, query, args...)
}

// ListNotificationsAfter returns notifications with id greater than afterID in
// id order. The relay uses it as a cursor.
func (r Repo) ListNotificationsAfter(ctx context.Context, afterID int64, limit int) ([]domain.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id>? ORDER BY id ASC`
	args := []any{afterID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return r.queryNotifications(ctx, query, args...)
}

func (r Repo) queryNotifications(ctx context.Context, query string, args ...any) ([]domain.Notification, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, n)
	}
	return res, rows.Err()
}

func (r Repo) MaxNotificationID(ctx context.Context) (int64, error) {
	var id sql.NullInt64
	if err := r.DB.QueryRowContext(ctx, `SELECT MAX(id) FROM notifications`).Scan(&id); err != nil {
		return 0, err
	}
	return id.Int64, nil
}

func (r Repo) CountUnreadNotifications(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM notifications WHERE user_id=? AND is_read=0`, userID).Scan(&n)
	return n, err
}

// MarkNotificationRead flags one notification owned by userID as read. It
// returns ErrNotFound when the id does not exist for that user.
func (r Repo) MarkNotificationRead(ctx context.Context, id, userID int64) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE id=? AND user_id=?`, id, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) MarkAllNotificationsRead(ctx context.Context, userID int64) (int, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE notifications SET is_read=1 WHERE user_id=? AND is_read=0`, userID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// DeleteReadNotificationsBefore prunes read notifications older than cutoff.
func (r Repo) DeleteReadNotificationsBefore(ctx context.Context, cutoff time.Time) (int, error) {
	res, err := r.DB.ExecContext(ctx, `DELETE FROM notifications WHERE is_read=1 AND created_at < ?`, FormatTime(cutoff))
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	return int(n), err
}
