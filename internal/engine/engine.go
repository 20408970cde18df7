package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"taskdash/internal/domain"
	"taskdash/internal/notify"
	"taskdash/internal/repo"
)

// Notifier records a notification for a user.
type Notifier interface {
	Create(ctx context.Context, n domain.Notification) (domain.Notification, error)
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Notify Notifier
	Logger *slog.Logger
	Now    func() time.Time
}

func New(db *sql.DB, logger *slog.Logger) Engine {
	r := repo.Repo{DB: db}
	return Engine{
		DB:     db,
		Repo:   r,
		Notify: notify.Dispatcher{Repo: r},
		Logger: logger,
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) log() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

// ValidationError reports input rejected before anything was written.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func invalid(field, format string, args ...any) error {
	return ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
