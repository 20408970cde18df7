package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskdash/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// TimeLayout is fixed width so stored timestamps compare correctly as text.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func (r Repo) conn(tx *sql.Tx) dbtx {
	if tx != nil {
		return tx
	}
	return r.DB
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return FormatTime(*t)
}

func nullableInt(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

const taskColumns = `t.id,t.title,COALESCE(t.description,''),t.status,t.priority,t.due_date,t.estimated_hours,
t.assigned_user_id,t.created_by_user_id,t.project_id,COALESCE(p.name,''),t.created_at,t.updated_at`

const taskFrom = ` FROM tasks t LEFT JOIN projects p ON p.id=t.project_id`

// TaskOrder is the canonical listing order. SQLite sorts NULL due dates
// first under ASC.
const TaskOrder = ` ORDER BY t.priority DESC, t.due_date ASC, t.id ASC`

func scanTask(s scanner) (domain.Task, error) {
	var (
		t                    domain.Task
		due                  sql.NullString
		est                  sql.NullFloat64
		projectID            sql.NullInt64
		createdAt, updatedAt string
	)
	if err := s.Scan(&t.ID, &t.Title, &t.Description, &t.Status, &t.Priority, &due, &est,
		&t.AssignedUserID, &t.CreatedByID, &projectID, &t.ProjectName, &createdAt, &updatedAt); err != nil {
		return t, err
	}
	var err error
	if t.DueDate, err = parseNullTime(due); err != nil {
		return t, err
	}
	if est.Valid {
		v := est.Float64
		t.EstimatedHours = &v
	}
	if projectID.Valid {
		v := projectID.Int64
		t.ProjectID = &v
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return t, err
	}
	return t, nil
}

// InsertTask stores t and returns its generated id.
func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) (int64, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO tasks(title,description,status,priority,due_date,estimated_hours,
assigned_user_id,created_by_user_id,project_id,created_at,updated_at) VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		t.Title, nullable(t.Description), t.Status, int(t.Priority), nullableTime(t.DueDate), nullableFloat(t.EstimatedHours),
		t.AssignedUserID, t.CreatedByID, nullableInt(t.ProjectID), FormatTime(t.CreatedAt), FormatTime(t.UpdatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetTask(ctx context.Context, id int64) (domain.Task, error) {
	t, err := scanTask(r.DB.QueryRowContext(ctx, `SELECT `+taskColumns+taskFrom+` WHERE t.id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) UpdateTaskStatus(ctx context.Context, tx *sql.Tx, id int64, status domain.TaskStatus, updatedAt time.Time) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE tasks SET status=?, updated_at=? WHERE id=?`, status, FormatTime(updatedAt), id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type TaskFilters struct {
	AssigneeID   int64
	Status       *domain.TaskStatus
	Priority     *domain.TaskPriority
	ProjectID    *int64
	// DueFrom switches to soonest-due ordering; tasks without a due date
	// never match.
	DueFrom      *time.Time
	ExcludeState domain.TaskStatus
	Limit        int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var (
		clauses []string
		args    []any
	)
	if f.AssigneeID != 0 {
		clauses = append(clauses, "t.assigned_user_id=?")
		args = append(args, f.AssigneeID)
	}
	if f.Status != nil {
		clauses = append(clauses, "t.status=?")
		args = append(args, *f.Status)
	}
	if f.Priority != nil {
		clauses = append(clauses, "t.priority=?")
		args = append(args, int(*f.Priority))
	}
	if f.ProjectID != nil {
		clauses = append(clauses, "t.project_id=?")
		args = append(args, *f.ProjectID)
	}
	if f.DueFrom != nil {
		clauses = append(clauses, "t.due_date IS NOT NULL AND t.due_date >= ?")
		args = append(args, FormatTime(*f.DueFrom))
	}
	if f.ExcludeState != "" {
		clauses = append(clauses, "t.status<>?")
		args = append(args, f.ExcludeState)
	}
	query := `SELECT ` + taskColumns + taskFrom
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if f.DueFrom != nil {
		query += ` ORDER BY t.due_date ASC, t.priority DESC, t.id ASC`
	} else {
		query += TaskOrder
	}
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// CountTasksByStatus counts tasks assigned to userID, keyed by status. Every
// known status is present in the result.
func (r Repo) CountTasksByStatus(ctx context.Context, userID int64) (map[domain.TaskStatus]int, error) {
	counts := make(map[domain.TaskStatus]int, len(domain.TaskStatuses))
	for _, st := range domain.TaskStatuses {
		counts[st] = 0
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT status, COUNT(*) FROM tasks WHERE assigned_user_id=? GROUP BY status`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var (
			st domain.TaskStatus
			n  int
		)
		if err := rows.Scan(&st, &n); err != nil {
			return nil, err
		}
		counts[st] = n
	}
	return counts, rows.Err()
}

// CountOverdueTasks counts incomplete tasks assigned to userID due before now.
func (r Repo) CountOverdueTasks(ctx context.Context, userID int64, now time.Time) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM tasks WHERE assigned_user_id=? AND due_date IS NOT NULL AND due_date < ? AND status<>?`,
		userID, FormatTime(now), domain.StatusCompleted).Scan(&n)
	return n, err
}

// GetTaskAggregate loads a task with its project, the project's members and
// the comments with their authors.
func (r Repo) GetTaskAggregate(ctx context.Context, id int64) (domain.TaskAggregate, error) {
	t, err := r.GetTask(ctx, id)
	if err != nil {
		return domain.TaskAggregate{}, err
	}
	agg := domain.TaskAggregate{Task: t}
	if t.ProjectID != nil {
		p, err := r.GetProject(ctx, *t.ProjectID)
		if err != nil && !errors.Is(err, ErrNotFound) {
			return domain.TaskAggregate{}, fmt.Errorf("load project %d: %w", *t.ProjectID, err)
		}
		if err == nil {
			agg.Project = &p
		}
	}
	comments, err := r.ListComments(ctx, id)
	if err != nil {
		return domain.TaskAggregate{}, fmt.Errorf("load comments: %w", err)
	}
	agg.Comments = comments
	return agg, nil
}
