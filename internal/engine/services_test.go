package engine_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdash/internal/domain"
	"taskdash/internal/engine"
	"taskdash/internal/engine/auth"
	"taskdash/internal/repo"
)

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)
	u, err := env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{Email: " ada@example.com ", Department: "Eng"})
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", u.Email)
	assert.Equal(t, "ada@example.com", u.DisplayName)
	assert.Equal(t, domain.RoleEmployee, u.Role)

	_, err = env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{Email: "ADA@example.com"})
	var ve engine.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "email", ve.Field)

	_, err = env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{Email: "no-at-sign"})
	assert.True(t, errors.As(err, &ve))
	_, err = env.Engine.CreateUser(env.Ctx, engine.UserCreateOptions{Email: "b@example.com", Role: "Root"})
	assert.True(t, errors.As(err, &ve))
}

func TestUpdateUserRoleRequiresAdministrator(t *testing.T) {
	env := newTestEnv(t)
	admin := env.user(t, "admin@example.com", domain.RoleAdministrator)
	lead := env.user(t, "lead@example.com", domain.RoleTeamLead)
	dev := env.user(t, "dev@example.com", domain.RoleEmployee)

	_, err := env.Engine.UpdateUserRole(env.Ctx, lead, dev, domain.RoleTeamLead)
	var fe auth.ForbiddenError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, "Administrator", fe.Policy)

	u, err := env.Engine.UpdateUserRole(env.Ctx, admin, dev, domain.RoleTeamLead)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleTeamLead, u.Role)

	_, err = env.Engine.UpdateUserRole(env.Ctx, admin, 999, domain.RoleTeamLead)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestAPIKeys(t *testing.T) {
	env := newTestEnv(t)
	u := env.user(t, "bot@example.com", domain.RoleEmployee)

	plain, key, err := env.Engine.CreateAPIKey(env.Ctx, u, "ci")
	require.NoError(t, err)
	assert.NotEqual(t, plain, key.KeyHash)

	owner, err := env.Engine.UserForAPIKey(env.Ctx, plain)
	require.NoError(t, err)
	assert.Equal(t, u, owner.ID)

	require.NoError(t, env.Engine.RevokeAPIKey(env.Ctx, key.ID))
	_, err = env.Engine.UserForAPIKey(env.Ctx, plain)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestProjectMembership(t *testing.T) {
	s := newScenario(t)
	admin := s.user(t, "admin@example.com", domain.RoleAdministrator)

	notes := s.notifications(t, s.U4)
	require.Len(t, notes, 1)
	assert.Equal(t, domain.NotificationProjectUpdate, notes[0].Type)
	assert.Equal(t, "You have been added to project: P", notes[0].Message)

	_, err := s.Engine.AddProjectMember(s.Ctx, s.Project.ID, s.U4, s.U5, "")
	var fe auth.ForbiddenError
	require.True(t, errors.As(err, &fe), "members cannot add members")

	p, err := s.Engine.AddProjectMember(s.Ctx, s.Project.ID, admin, s.U5, "QA")
	require.NoError(t, err)
	assert.True(t, p.HasMember(s.U5))

	// Membership grants access to project tasks.
	_, err = s.Engine.GetTaskByID(s.Ctx, s.Task.ID, s.U5)
	require.NoError(t, err)

	require.NoError(t, s.Engine.RemoveProjectMember(s.Ctx, s.Project.ID, s.U3, s.U5))
	_, err = s.Engine.GetTaskByID(s.Ctx, s.Task.ID, s.U5)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	err = s.Engine.RemoveProjectMember(s.Ctx, s.Project.ID, s.U3, s.U5)
	assert.ErrorIs(t, err, repo.ErrNotFound)
}

func TestGetProjectVisibility(t *testing.T) {
	s := newScenario(t)
	admin := s.user(t, "admin@example.com", domain.RoleAdministrator)

	for _, id := range []int64{s.U3, s.U4, admin} {
		p, err := s.Engine.GetProject(s.Ctx, s.Project.ID, id)
		require.NoError(t, err)
		assert.Equal(t, "P", p.Name)
	}
	_, err := s.Engine.GetProject(s.Ctx, s.Project.ID, s.U5)
	assert.ErrorIs(t, err, repo.ErrNotFound)

	projects, err := s.Engine.ListUserProjects(s.Ctx, s.U4)
	require.NoError(t, err)
	require.Len(t, projects, 1)
}

func TestCreateProjectValidation(t *testing.T) {
	env := newTestEnv(t)
	mgr := env.user(t, "pm@example.com", domain.RoleProjectManager)
	start := fixedNow
	end := fixedNow.Add(-time.Hour)

	var ve engine.ValidationError
	_, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Name: "", ManagerID: mgr})
	assert.True(t, errors.As(err, &ve))
	_, err = env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Name: "x", ManagerID: 404})
	assert.True(t, errors.As(err, &ve))
	_, err = env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Name: "x", ManagerID: mgr, StartDate: &start, TargetEndDate: &end})
	assert.True(t, errors.As(err, &ve))

	p, err := env.Engine.CreateProject(env.Ctx, engine.ProjectCreateOptions{Name: "x", ManagerID: mgr})
	require.NoError(t, err)
	assert.Equal(t, domain.ProjectPlanning, p.Status)
}

func TestNotificationReadState(t *testing.T) {
	s := newScenario(t)
	notes := s.notifications(t, s.U2)
	require.NotEmpty(t, notes)

	ok, err := s.Engine.MarkNotificationRead(s.Ctx, notes[0].ID, s.U5)
	require.NoError(t, err)
	assert.False(t, ok, "only the owner may mark read")

	ok, err = s.Engine.MarkNotificationRead(s.Ctx, notes[0].ID, s.U2)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.Engine.AddTaskComment(s.Ctx, s.Task.ID, s.U1, "ping")
	require.NoError(t, err)
	n, err := s.Engine.UnreadCount(s.Ctx, s.U2)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	changed, err := s.Engine.MarkAllNotificationsRead(s.Ctx, s.U2)
	require.NoError(t, err)
	assert.Equal(t, 1, changed)

	s.Engine.Now = func() time.Time { return fixedNow.Add(48 * time.Hour) }
	pruned, err := s.Engine.PruneNotifications(s.Ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, pruned)
}

func TestDashboardSummary(t *testing.T) {
	s := newScenario(t)
	past := fixedNow.Add(-24 * time.Hour)
	soon := fixedNow.Add(24 * time.Hour)
	later := fixedNow.Add(72 * time.Hour)

	for _, opts := range []engine.TaskCreateOptions{
		{Title: "late", DueDate: &past, Status: domain.StatusInProgress},
		{Title: "late done", DueDate: &past, Status: domain.StatusCompleted},
		{Title: "soon", DueDate: &soon},
		{Title: "later", DueDate: &later, Priority: domain.PriorityCritical},
		{Title: "done soon", DueDate: &soon, Status: domain.StatusCompleted},
	} {
		opts.AssignedUserID, opts.CreatedByID = s.U2, s.U1
		_, err := s.Engine.CreateTask(s.Ctx, opts)
		require.NoError(t, err)
	}

	sum, err := s.Engine.DashboardSummary(s.Ctx, s.U2)
	require.NoError(t, err)
	assert.Equal(t, 6, sum.TotalTasks)
	assert.Equal(t, 3, sum.TasksByStatus[domain.StatusNotStarted])
	assert.Equal(t, 2, sum.TasksByStatus[domain.StatusCompleted])
	assert.Equal(t, 1, sum.OverdueTasks)
	require.Len(t, sum.UpcomingTasks, 2)
	assert.Equal(t, "soon", sum.UpcomingTasks[0].Title)
	assert.Equal(t, "later", sum.UpcomingTasks[1].Title)
	assert.Equal(t, 6, sum.UnreadNotifications)
	assert.Equal(t, 0, sum.ActiveProjects)

	mgr, err := s.Engine.DashboardSummary(s.Ctx, s.U3)
	require.NoError(t, err)
	assert.Equal(t, 1, mgr.ActiveProjects)
}
