package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdash/internal/db"
	"taskdash/internal/domain"
	"taskdash/internal/migrate"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newRepo(t *testing.T) Repo {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(ctx, conn))
	return Repo{DB: conn}
}

func mustUser(t *testing.T, r Repo, email string, role domain.Role) int64 {
	t.Helper()
	id, err := r.InsertUser(context.Background(), nil, domain.User{Email: email, DisplayName: email, Role: role, CreatedAt: base})
	require.NoError(t, err)
	return id
}

func mustTask(t *testing.T, r Repo, task domain.Task) int64 {
	t.Helper()
	if task.Status == "" {
		task.Status = domain.StatusNotStarted
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt, task.UpdatedAt = base, base
	}
	id, err := r.InsertTask(context.Background(), nil, task)
	require.NoError(t, err)
	return id
}

func ptr[T any](v T) *T { return &v }

func TestTaskRoundTrip(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	u := mustUser(t, r, "a@example.com", domain.RoleEmployee)
	pid, err := r.InsertProject(ctx, nil, domain.Project{Name: "Apollo", ProjectManagerID: u, Status: domain.ProjectActive, CreatedAt: base, UpdatedAt: base})
	require.NoError(t, err)

	due := base.Add(48 * time.Hour)
	id := mustTask(t, r, domain.Task{
		Title: "write docs", Description: "all of them", Priority: domain.PriorityHigh,
		DueDate: &due, EstimatedHours: ptr(2.5), AssignedUserID: u, CreatedByID: u, ProjectID: &pid,
	})

	got, err := r.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "write docs", got.Title)
	assert.Equal(t, domain.PriorityHigh, got.Priority)
	assert.Equal(t, "Apollo", got.ProjectName)
	require.NotNil(t, got.DueDate)
	assert.True(t, due.Equal(*got.DueDate))
	require.NotNil(t, got.EstimatedHours)
	assert.Equal(t, 2.5, *got.EstimatedHours)
	assert.True(t, base.Equal(got.CreatedAt))

	_, err = r.GetTask(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListTasksOrdering(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	u := mustUser(t, r, "a@example.com", domain.RoleEmployee)
	other := mustUser(t, r, "b@example.com", domain.RoleEmployee)

	early := base.Add(24 * time.Hour)
	late := base.Add(72 * time.Hour)
	lowLate := mustTask(t, r, domain.Task{Title: "low late", Priority: domain.PriorityLow, DueDate: &late, AssignedUserID: u, CreatedByID: u})
	critLate := mustTask(t, r, domain.Task{Title: "crit late", Priority: domain.PriorityCritical, DueDate: &late, AssignedUserID: u, CreatedByID: u})
	critEarly := mustTask(t, r, domain.Task{Title: "crit early", Priority: domain.PriorityCritical, DueDate: &early, AssignedUserID: u, CreatedByID: u})
	critNoDue := mustTask(t, r, domain.Task{Title: "crit none", Priority: domain.PriorityCritical, AssignedUserID: u, CreatedByID: u})
	mustTask(t, r, domain.Task{Title: "not mine", Priority: domain.PriorityCritical, AssignedUserID: other, CreatedByID: u})

	tasks, err := r.ListTasks(ctx, TaskFilters{AssigneeID: u})
	require.NoError(t, err)
	var ids []int64
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	assert.Equal(t, []int64{critNoDue, critEarly, critLate, lowLate}, ids)
}

func TestListTasksFilters(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	u := mustUser(t, r, "a@example.com", domain.RoleEmployee)
	pid, err := r.InsertProject(ctx, nil, domain.Project{Name: "P", ProjectManagerID: u, Status: domain.ProjectActive, CreatedAt: base, UpdatedAt: base})
	require.NoError(t, err)

	inProject := mustTask(t, r, domain.Task{Title: "a", Priority: domain.PriorityHigh, Status: domain.StatusInProgress, AssignedUserID: u, CreatedByID: u, ProjectID: &pid})
	mustTask(t, r, domain.Task{Title: "b", Priority: domain.PriorityLow, AssignedUserID: u, CreatedByID: u})

	tests := []struct {
		name string
		f    TaskFilters
		want int
	}{
		{"status", TaskFilters{AssigneeID: u, Status: ptr(domain.StatusInProgress)}, 1},
		{"priority", TaskFilters{AssigneeID: u, Priority: ptr(domain.PriorityLow)}, 1},
		{"project", TaskFilters{AssigneeID: u, ProjectID: &pid}, 1},
		{"combined miss", TaskFilters{AssigneeID: u, ProjectID: &pid, Priority: ptr(domain.PriorityLow)}, 0},
		{"none", TaskFilters{AssigneeID: u}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tasks, err := r.ListTasks(ctx, tt.f)
			require.NoError(t, err)
			assert.Len(t, tasks, tt.want)
		})
	}

	tasks, err := r.ListTasks(ctx, TaskFilters{AssigneeID: u, ProjectID: &pid})
	require.NoError(t, err)
	assert.Equal(t, inProject, tasks[0].ID)
}

func TestUpdateTaskStatus(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	u := mustUser(t, r, "a@example.com", domain.RoleEmployee)
	id := mustTask(t, r, domain.Task{Title: "x", AssignedUserID: u, CreatedByID: u})

	later := base.Add(time.Hour)
	require.NoError(t, r.UpdateTaskStatus(ctx, nil, id, domain.StatusBlocked, later))
	got, err := r.GetTask(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusBlocked, got.Status)
	assert.True(t, later.Equal(got.UpdatedAt))
	assert.True(t, base.Equal(got.CreatedAt))

	assert.ErrorIs(t, r.UpdateTaskStatus(ctx, nil, 404, domain.StatusBlocked, later), ErrNotFound)
}

func TestGetTaskAggregate(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	mgr := mustUser(t, r, "mgr@example.com", domain.RoleProjectManager)
	member := mustUser(t, r, "member@example.com", domain.RoleEmployee)
	pid, err := r.InsertProject(ctx, nil, domain.Project{Name: "P", ProjectManagerID: mgr, Status: domain.ProjectActive, CreatedAt: base, UpdatedAt: base})
	require.NoError(t, err)
	require.NoError(t, r.AddProjectMember(ctx, nil, domain.ProjectMember{ProjectID: pid, UserID: member, Role: "Developer", AddedAt: base}))

	id := mustTask(t, r, domain.Task{Title: "x", AssignedUserID: member, CreatedByID: mgr, ProjectID: &pid})
	_, err = r.InsertComment(ctx, nil, domain.TaskComment{TaskID: id, UserID: mgr, Text: "second", CreatedAt: base.Add(time.Minute)})
	require.NoError(t, err)
	_, err = r.InsertComment(ctx, nil, domain.TaskComment{TaskID: id, UserID: member, Text: "first", CreatedAt: base})
	require.NoError(t, err)

	agg, err := r.GetTaskAggregate(ctx, id)
	require.NoError(t, err)
	require.NotNil(t, agg.Project)
	assert.Equal(t, mgr, agg.Project.ProjectManagerID)
	require.Len(t, agg.Project.Members, 1)
	assert.Equal(t, member, agg.Project.Members[0].UserID)
	require.NotNil(t, agg.Project.Members[0].User)
	assert.Equal(t, "member@example.com", agg.Project.Members[0].User.Email)

	require.Len(t, agg.Comments, 2)
	assert.Equal(t, "first", agg.Comments[0].Text)
	require.NotNil(t, agg.Comments[0].Author)
	assert.Equal(t, member, agg.Comments[0].Author.ID)

	noProject := mustTask(t, r, domain.Task{Title: "y", AssignedUserID: member, CreatedByID: member})
	agg, err = r.GetTaskAggregate(ctx, noProject)
	require.NoError(t, err)
	assert.Nil(t, agg.Project)
	assert.Empty(t, agg.Comments)
}

func TestDashboardCounts(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	u := mustUser(t, r, "a@example.com", domain.RoleEmployee)
	past := base.Add(-time.Hour)
	mustTask(t, r, domain.Task{Title: "late", DueDate: &past, Status: domain.StatusInProgress, AssignedUserID: u, CreatedByID: u})
	mustTask(t, r, domain.Task{Title: "late but done", DueDate: &past, Status: domain.StatusCompleted, AssignedUserID: u, CreatedByID: u})
	mustTask(t, r, domain.Task{Title: "open", AssignedUserID: u, CreatedByID: u})

	counts, err := r.CountTasksByStatus(ctx, u)
	require.NoError(t, err)
	assert.Equal(t, 1, counts[domain.StatusInProgress])
	assert.Equal(t, 1, counts[domain.StatusCompleted])
	assert.Equal(t, 1, counts[domain.StatusNotStarted])
	assert.Equal(t, 0, counts[domain.StatusBlocked])

	overdue, err := r.CountOverdueTasks(ctx, u, base)
	require.NoError(t, err)
	assert.Equal(t, 1, overdue)
}
