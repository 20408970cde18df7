package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdash/internal/db"
	"taskdash/internal/domain"
	"taskdash/internal/engine"
	"taskdash/internal/migrate"
	"taskdash/internal/notify"
	"taskdash/internal/repo"
)

var fixedNow = time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	Engine engine.Engine
	Ctx    context.Context
}

func newTestEnv(t *testing.T) testEnv {
	t.Helper()
	ctx := context.Background()
	conn, err := db.Open(ctx, db.Config{Workspace: t.TempDir()})
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, migrate.Migrate(ctx, conn))

	clock := func() time.Time { return fixedNow }
	eng := engine.New(conn, nil)
	eng.Now = clock
	eng.Notify = notify.Dispatcher{Repo: eng.Repo, Now: clock}
	return testEnv{Engine: eng, Ctx: ctx}
}

func (env testEnv) user(t *testing.T, email string, role domain.Role) int64 {
	t.Helper()
	u, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{Email: email, Role: role})
	require.NoError(t, err)
	return u.ID
}

func (env testEnv) notifications(t *testing.T, userID int64) []domain.Notification {
	t.Helper()
	list, err := env.Engine.ListNotifications(env.Ctx, userID, false, 0)
	require.NoError(t, err)
	return list
}

// scenario seeds task T1 assigned to U2 and created by U1 inside project P
// managed by U3 with member U4. U5 is unrelated.
type scenario struct {
	testEnv
	U1, U2, U3, U4, U5 int64
	Project            domain.Project
	Task               domain.Task
}

func newScenario(t *testing.T) scenario {
	t.Helper()
	env := newTestEnv(t)
	s := scenario{testEnv: env}
	s.U1 = env.user(t, "u1@example.com", domain.RoleTeamLead)
	s.U2 = env.user(t, "u2@example.com", domain.RoleEmployee)
	s.U3 = env.user(t, "u3@example.com", domain.RoleProjectManager)
	s.U4 = env.user(t, "u4@example.com", domain.RoleEmployee)
	s.U5 = env.user(t, "u5@example.com", domain.RoleEmployee)

	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Name: "P", ManagerID: s.U3, Status: domain.ProjectActive})
	require.NoError(t, err)
	_, err = env.Engine.AddProjectMember(env.Ctx, p.ID, s.U3, s.U4, "Developer")
	require.NoError(t, err)
	s.Project = p

	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
		Title:          "T1",
		Priority:       domain.PriorityMedium,
		AssignedUserID: s.U2,
		CreatedByID:    s.U1,
		ProjectID:      &p.ID,
	})
	require.NoError(t, err)
	s.Task = task
	return s
}

func TestGetTaskByIDAccess(t *testing.T) {
	s := newScenario(t)
	tests := []struct {
		name    string
		userID  int64
		allowed bool
	}{
		{"creator", s.U1, true},
		{"assignee", s.U2, true},
		{"manager", s.U3, true},
		{"member", s.U4, true},
		{"unrelated", s.U5, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, err := s.Engine.GetTaskByID(s.Ctx, s.Task.ID, tt.userID)
			if !tt.allowed {
				assert.ErrorIs(t, err, repo.ErrNotFound)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, s.Task.ID, agg.ID)
			require.NotNil(t, agg.Project)
			assert.Equal(t, s.U3, agg.Project.ProjectManagerID)
		})
	}

	_, err := s.Engine.GetTaskByID(s.Ctx, 9999, s.U1)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestUpdateStatusDeniedLeavesTaskUnchanged(t *testing.T) {
	s := newScenario(t)
	ok, err := s.Engine.UpdateTaskStatus(s.Ctx, s.Task.ID, s.U5, domain.StatusCompleted)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := s.Engine.Repo.GetTask(s.Ctx, s.Task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusNotStarted, got.Status)
	assert.Empty(t, s.notifications(t, s.U1))

	ok, err = s.Engine.UpdateTaskStatus(s.Ctx, 9999, s.U1, domain.StatusCompleted)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCreateTaskNotifiesAssignee(t *testing.T) {
	tests := []struct {
		priority domain.TaskPriority
		want     domain.NotificationPriority
	}{
		{domain.PriorityLow, domain.NotificationImportant},
		{domain.PriorityMedium, domain.NotificationImportant},
		{domain.PriorityHigh, domain.NotificationImportant},
		{domain.PriorityCritical, domain.NotificationUrgent},
	}
	for _, tt := range tests {
		t.Run(tt.priority.String(), func(t *testing.T) {
			env := newTestEnv(t)
			creator := env.user(t, "lead@example.com", domain.RoleTeamLead)
			assignee := env.user(t, "dev@example.com", domain.RoleEmployee)

			task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{
				Title: "Ship it", Priority: tt.priority, AssignedUserID: assignee, CreatedByID: creator,
			})
			require.NoError(t, err)
			assert.NotZero(t, task.ID)
			assert.Equal(t, domain.StatusNotStarted, task.Status)
			assert.True(t, task.CreatedAt.Equal(task.UpdatedAt))
			assert.True(t, fixedNow.Equal(task.CreatedAt))

			notes := env.notifications(t, assignee)
			require.Len(t, notes, 1)
			assert.Equal(t, "New Task Assigned", notes[0].Title)
			assert.Equal(t, "You have been assigned a new task: Ship it", notes[0].Message)
			assert.Equal(t, domain.NotificationTaskAssignment, notes[0].Type)
			assert.Equal(t, tt.want, notes[0].Priority)
			assert.False(t, notes[0].IsRead)
			assert.Empty(t, env.notifications(t, creator))
		})
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "a@example.com", domain.RoleTeamLead)
	missingProject := int64(77)
	tests := []struct {
		name  string
		opts  engine.TaskCreateOptions
		field string
	}{
		{"title", engine.TaskCreateOptions{Title: "  ", AssignedUserID: u, CreatedByID: u}, "title"},
		{"status", engine.TaskCreateOptions{Title: "x", Status: "Done", AssignedUserID: u, CreatedByID: u}, "status"},
		{"priority", engine.TaskCreateOptions{Title: "x", Priority: 7, AssignedUserID: u, CreatedByID: u}, "priority"},
		{"assignee missing", engine.TaskCreateOptions{Title: "x", CreatedByID: u}, "assigned_user_id"},
		{"assignee unknown", engine.TaskCreateOptions{Title: "x", AssignedUserID: 404, CreatedByID: u}, "assigned_user_id"},
		{"project unknown", engine.TaskCreateOptions{Title: "x", AssignedUserID: u, CreatedByID: u, ProjectID: &missingProject}, "project_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.Engine.CreateTask(env.Ctx, tt.opts)
			var ve engine.ValidationError
			require.True(t, errors.As(err, &ve), "got %v", err)
			assert.Equal(t, tt.field, ve.Field)
		})
	}
	tasks, err := env.Engine.GetUserTasks(env.Ctx, u)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Empty(t, env.notifications(t, u))
}

func TestCompletionAlwaysNotifiesCreator(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "solo@example.com", domain.RoleTeamLead)
	task, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "Self", AssignedUserID: u, CreatedByID: u})
	require.NoError(t, err)

	later := fixedNow.Add(time.Hour)
	env.Engine.Now = func() time.Time { return later }

	for i := 0; i < 2; i++ {
		ok, err := env.Engine.UpdateTaskStatus(env.Ctx, task.ID, u, domain.StatusCompleted)
		require.NoError(t, err)
		assert.True(t, ok)
	}

	var completed []domain.Notification
	for _, n := range env.notifications(t, u) {
		if n.Type == domain.NotificationTaskCompleted {
			completed = append(completed, n)
		}
	}
	require.Len(t, completed, 2, "self-completion and Completed to Completed both notify")
	assert.Equal(t, "Task Completed", completed[0].Title)
	assert.Equal(t, "Task 'Self' has been completed", completed[0].Message)
	assert.Equal(t, domain.NotificationInformational, completed[0].Priority)

	got, err := env.Engine.Repo.GetTask(env.Ctx, task.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, got.Status)
	assert.True(t, later.Equal(got.UpdatedAt))
	assert.True(t, fixedNow.Equal(got.CreatedAt))
}

func TestNonCompletedTransitionsDoNotNotify(t *testing.T) {
	s := newScenario(t)
	before := len(s.notifications(t, s.U1))
	for _, st := range []domain.TaskStatus{domain.StatusInProgress, domain.StatusBlocked, domain.StatusNotStarted} {
		ok, err := s.Engine.UpdateTaskStatus(s.Ctx, s.Task.ID, s.U4, st)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Len(t, s.notifications(t, s.U1), before)

	_, err := s.Engine.UpdateTaskStatus(s.Ctx, s.Task.ID, s.U4, "Archived")
	var ve engine.ValidationError
	assert.True(t, errors.As(err, &ve))
}

func TestAddTaskComment(t *testing.T) {
	s := newScenario(t)
	base := len(s.notifications(t, s.U2))

	ok, err := s.Engine.AddTaskComment(s.Ctx, s.Task.ID, s.U2, "working on it")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Len(t, s.notifications(t, s.U2), base, "assignee commenting notifies nobody")

	// The commenter's access to the task is not checked.
	ok, err = s.Engine.AddTaskComment(s.Ctx, s.Task.ID, s.U5, "drive-by")
	require.NoError(t, err)
	assert.True(t, ok)
	notes := s.notifications(t, s.U2)
	require.Len(t, notes, base+1)
	assert.Equal(t, "New Comment on Task", notes[0].Title)
	assert.Equal(t, "A comment was added to task: T1", notes[0].Message)
	assert.Equal(t, domain.NotificationTaskComment, notes[0].Type)

	ok, err = s.Engine.AddTaskComment(s.Ctx, 9999, s.U1, "nope")
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = s.Engine.AddTaskComment(s.Ctx, s.Task.ID, s.U1, " ")
	assert.Error(t, err)
}

func TestGetTaskComments(t *testing.T) {
	s := newScenario(t)
	_, err := s.Engine.AddTaskComment(s.Ctx, s.Task.ID, s.U1, "first")
	require.NoError(t, err)
	_, err = s.Engine.AddTaskComment(s.Ctx, s.Task.ID, s.U3, "second")
	require.NoError(t, err)

	comments, err := s.Engine.GetTaskComments(s.Ctx, s.Task.ID, s.U4)
	require.NoError(t, err)
	require.Len(t, comments, 2)
	assert.Equal(t, "first", comments[0].Text)
	assert.Equal(t, "second", comments[1].Text)
	require.NotNil(t, comments[1].Author)
	assert.Equal(t, "u3@example.com", comments[1].Author.Email)

	denied, err := s.Engine.GetTaskComments(s.Ctx, s.Task.ID, s.U5)
	require.NoError(t, err)
	assert.NotNil(t, denied)
	assert.Empty(t, denied)

	missing, err := s.Engine.GetTaskComments(s.Ctx, 9999, s.U1)
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestGetFilteredTasks(t *testing.T) {
	s := newScenario(t)
	other, err := s.Engine.CreateTask(s.Ctx, engine.TaskCreateOptions{
		Title: "loose", Priority: domain.PriorityCritical, AssignedUserID: s.U2, CreatedByID: s.U1,
	})
	require.NoError(t, err)

	all, err := s.Engine.GetUserTasks(s.Ctx, s.U2)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, other.ID, all[0].ID, "critical first")
	assert.Equal(t, "P", all[1].ProjectName)

	critical := domain.PriorityCritical
	got, err := s.Engine.GetFilteredTasks(s.Ctx, s.U2, engine.TaskQuery{Priority: &critical})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, other.ID, got[0].ID)

	got, err = s.Engine.GetFilteredTasks(s.Ctx, s.U2, engine.TaskQuery{ProjectID: &s.Project.ID})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, s.Task.ID, got[0].ID)

	none, err := s.Engine.GetUserTasks(s.Ctx, s.U5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

type failingNotifier struct{}

func (failingNotifier) Create(context.Context, domain.Notification) (domain.Notification, error) {
	return domain.Notification{}, errors.New("notification store down")
}

func TestNotificationFailurePropagatesAfterWrite(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "a@example.com", domain.RoleTeamLead)
	env.Engine.Notify = failingNotifier{}

	_, err := env.Engine.CreateTask(env.Ctx, engine.TaskCreateOptions{Title: "x", AssignedUserID: u, CreatedByID: u})
	assert.ErrorContains(t, err, "notification store down")

	tasks, err := env.Engine.GetUserTasks(env.Ctx, u)
	require.NoError(t, err)
	assert.Len(t, tasks, 1, "task write is not rolled back")
}
