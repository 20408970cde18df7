package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskdash/internal/domain"
	"taskdash/internal/repo"
)

// GetUserTasks returns the tasks assigned to userID, highest priority first
// and soonest due within a priority.
func (e Engine) GetUserTasks(ctx context.Context, userID int64) ([]domain.Task, error) {
	return e.Repo.ListTasks(ctx, repo.TaskFilters{AssigneeID: userID})
}

// TaskQuery holds the optional exact-match filters of GetFilteredTasks.
type TaskQuery struct {
	Status    *domain.TaskStatus
	Priority  *domain.TaskPriority
	ProjectID *int64
}

func (e Engine) GetFilteredTasks(ctx context.Context, userID int64, q TaskQuery) ([]domain.Task, error) {
	return e.Repo.ListTasks(ctx, repo.TaskFilters{
		AssigneeID: userID,
		Status:     q.Status,
		Priority:   q.Priority,
		ProjectID:  q.ProjectID,
	})
}

// loadAccessible returns repo.ErrNotFound both when the task is missing and
// when requesterID may not access it.
func (e Engine) loadAccessible(ctx context.Context, taskID, requesterID int64) (domain.TaskAggregate, error) {
	agg, err := e.Repo.GetTaskAggregate(ctx, taskID)
	if err != nil {
		return domain.TaskAggregate{}, err
	}
	if !CanAccessTask(agg, requesterID) {
		e.log().Debug("task access denied", "task_id", taskID, "user_id", requesterID)
		return domain.TaskAggregate{}, repo.ErrNotFound
	}
	return agg, nil
}

// GetTaskByID loads the task with its project, members and comments.
func (e Engine) GetTaskByID(ctx context.Context, taskID, requesterID int64) (domain.TaskAggregate, error) {
	return e.loadAccessible(ctx, taskID, requesterID)
}

type TaskCreateOptions struct {
	Title          string
	Description    string
	Status         domain.TaskStatus
	Priority       domain.TaskPriority
	DueDate        *time.Time
	EstimatedHours *float64
	AssignedUserID int64
	CreatedByID    int64
	ProjectID      *int64
}

func (e Engine) validateTask(ctx context.Context, opts *TaskCreateOptions) error {
	opts.Title = strings.TrimSpace(opts.Title)
	if opts.Title == "" {
		return invalid("title", "title is required")
	}
	if opts.Status == "" {
		opts.Status = domain.StatusNotStarted
	}
	if !opts.Status.Valid() {
		return invalid("status", "unknown status %q", opts.Status)
	}
	if !opts.Priority.Valid() {
		return invalid("priority", "unknown priority %d", int(opts.Priority))
	}
	if opts.EstimatedHours != nil && *opts.EstimatedHours < 0 {
		return invalid("estimated_hours", "must not be negative")
	}
	if opts.AssignedUserID == 0 {
		return invalid("assigned_user_id", "assignee is required")
	}
	if opts.CreatedByID == 0 {
		return invalid("created_by_user_id", "creator is required")
	}
	if err := e.requireUser(ctx, "assigned_user_id", opts.AssignedUserID); err != nil {
		return err
	}
	if err := e.requireUser(ctx, "created_by_user_id", opts.CreatedByID); err != nil {
		return err
	}
	if opts.ProjectID != nil {
		if _, err := e.Repo.GetProject(ctx, *opts.ProjectID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return invalid("project_id", "project %d not found", *opts.ProjectID)
			}
			return err
		}
	}
	return nil
}

// CreateTask persists a new task and notifies its assignee.
func (e Engine) CreateTask(ctx context.Context, opts TaskCreateOptions) (domain.Task, error) {
	if err := e.validateTask(ctx, &opts); err != nil {
		return domain.Task{}, err
	}
	now := e.now()
	t := domain.Task{
		Title:          opts.Title,
		Description:    opts.Description,
		Status:         opts.Status,
		Priority:       opts.Priority,
		DueDate:        opts.DueDate,
		EstimatedHours: opts.EstimatedHours,
		AssignedUserID: opts.AssignedUserID,
		CreatedByID:    opts.CreatedByID,
		ProjectID:      opts.ProjectID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Task{}, err
	}
	defer tx.Rollback()

	id, err := e.Repo.InsertTask(ctx, tx, t)
	if err != nil {
		return domain.Task{}, fmt.Errorf("insert task: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Task{}, err
	}
	t.ID = id

	priority := domain.NotificationImportant
	if t.Priority == domain.PriorityCritical {
		priority = domain.NotificationUrgent
	}
	if _, err := e.Notify.Create(ctx, domain.Notification{
		UserID:   t.AssignedUserID,
		Title:    "New Task Assigned",
		Message:  fmt.Sprintf("You have been assigned a new task: %s", t.Title),
		Type:     domain.NotificationTaskAssignment,
		Priority: priority,
	}); err != nil {
		return t, fmt.Errorf("notify assignee: %w", err)
	}
	e.log().Info("task created", "task_id", t.ID, "assignee", t.AssignedUserID, "priority", t.Priority.String())
	return t, nil
}

// UpdateTaskStatus overwrites the task's status. It returns false when the
// task does not exist or requesterID may not access it. Any status may move
// to any other; completing a task always notifies its creator.
func (e Engine) UpdateTaskStatus(ctx context.Context, taskID, requesterID int64, status domain.TaskStatus) (bool, error) {
	if !status.Valid() {
		return false, invalid("status", "unknown status %q", status)
	}
	agg, err := e.loadAccessible(ctx, taskID, requesterID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	now := e.now()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	if err := e.Repo.UpdateTaskStatus(ctx, tx, taskID, status, now); err != nil {
		return false, fmt.Errorf("update task status: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	e.log().Debug("task status changed", "task_id", taskID, "from", agg.Status, "to", status, "user_id", requesterID)

	if status == domain.StatusCompleted {
		if _, err := e.Notify.Create(ctx, domain.Notification{
			UserID:   agg.CreatedByID,
			Title:    "Task Completed",
			Message:  fmt.Sprintf("Task '%s' has been completed", agg.Title),
			Type:     domain.NotificationTaskCompleted,
			Priority: domain.NotificationInformational,
		}); err != nil {
			return true, fmt.Errorf("notify creator: %w", err)
		}
	}
	return true, nil
}

// AddTaskComment appends a comment from userID. It returns false only when
// the task does not exist; access to the task is not checked.
func (e Engine) AddTaskComment(ctx context.Context, taskID, userID int64, text string) (bool, error) {
	if strings.TrimSpace(text) == "" {
		return false, invalid("text", "comment text is required")
	}
	t, err := e.Repo.GetTask(ctx, taskID)
	if errors.Is(err, repo.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()
	if _, err := e.Repo.InsertComment(ctx, tx, domain.TaskComment{
		TaskID:    taskID,
		UserID:    userID,
		Text:      text,
		CreatedAt: e.now(),
	}); err != nil {
		return false, fmt.Errorf("insert comment: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	if userID != t.AssignedUserID {
		if _, err := e.Notify.Create(ctx, domain.Notification{
			UserID:   t.AssignedUserID,
			Title:    "New Comment on Task",
			Message:  fmt.Sprintf("A comment was added to task: %s", t.Title),
			Type:     domain.NotificationTaskComment,
			Priority: domain.NotificationInformational,
		}); err != nil {
			return true, fmt.Errorf("notify assignee: %w", err)
		}
	}
	return true, nil
}

// GetTaskComments returns the comments oldest first, or an empty list when
// the task is missing or requesterID may not access it.
func (e Engine) GetTaskComments(ctx context.Context, taskID, requesterID int64) ([]domain.TaskComment, error) {
	agg, err := e.loadAccessible(ctx, taskID, requesterID)
	if errors.Is(err, repo.ErrNotFound) {
		return []domain.TaskComment{}, nil
	}
	if err != nil {
		return nil, err
	}
	return agg.Comments, nil
}
