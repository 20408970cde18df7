package repo

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"taskdash/internal/domain"
)

func TestUsers(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	id := mustUser(t, r, "Ada@Example.com", domain.RoleTeamLead)
	mustUser(t, r, "bob@example.com", domain.RoleEmployee)

	u, err := r.GetUserByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, u.ID)
	assert.Equal(t, domain.RoleTeamLead, u.Role)

	_, err = r.InsertUser(ctx, nil, domain.User{Email: "ADA@example.com", DisplayName: "dup", Role: domain.RoleEmployee, CreatedAt: base})
	assert.Error(t, err, "email is unique regardless of case")

	require.NoError(t, r.UpdateUserRole(ctx, nil, id, domain.RoleAdministrator))
	u, err = r.GetUser(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdministrator, u.Role)
	assert.ErrorIs(t, r.UpdateUserRole(ctx, nil, 999, domain.RoleEmployee), ErrNotFound)

	all, err := r.ListUsers(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	employees, err := r.ListUsers(ctx, domain.RoleEmployee)
	require.NoError(t, err)
	require.Len(t, employees, 1)
	assert.Equal(t, "bob@example.com", employees[0].Email)

	_, err = r.GetUser(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProjectsAndMembers(t *testing.T) {
	ctx := context.Background()
	r := newRepo(t)
	mgr := mustUser(t, r, "mgr@example.com", domain.RoleProjectManager)
	dev := mustUser(t, r, "dev@example.com", domain.RoleEmployee)
	outsider := mustUser(t, r, "out@example.com", domain.RoleEmployee)

	zeta, err := r.InsertProject(ctx, nil, domain.Project{Name: "Zeta", ProjectManagerID: mgr, Status: domain.ProjectActive, CreatedAt: base, UpdatedAt: base})
	require.NoError(t, err)
	alpha, err := r.InsertProject(ctx, nil, domain.Project{Name: "Alpha", ProjectManagerID: mgr, Status: domain.ProjectPlanning, CreatedAt: base, UpdatedAt: base})
	require.NoError(t, err)

	require.NoError(t, r.AddProjectMember(ctx, nil, domain.ProjectMember{ProjectID: zeta, UserID: dev, Role: "Dev", AddedAt: base}))
	require.NoError(t, r.AddProjectMember(ctx, nil, domain.ProjectMember{ProjectID: zeta, UserID: dev, Role: "Lead dev", AddedAt: base}))

	members, err := r.ListProjectMembers(ctx, zeta)
	require.NoError(t, err)
	require.Len(t, members, 1)
	assert.Equal(t, "Lead dev", members[0].Role)

	mine, err := r.ListUserProjects(ctx, mgr)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, alpha, mine[0].ID)

	devProjects, err := r.ListUserProjects(ctx, dev)
	require.NoError(t, err)
	require.Len(t, devProjects, 1)
	assert.Equal(t, zeta, devProjects[0].ID)

	none, err := r.ListUserProjects(ctx, outsider)
	require.NoError(t, err)
	assert.Empty(t, none)

	active, err := r.CountActiveProjects(ctx, mgr)
	require.NoError(t, err)
	assert.Equal(t, 1, active)

	require.NoError(t, r.RemoveProjectMember(ctx, nil, zeta, dev))
	assert.ErrorIs(t, r.RemoveProjectMember(ctx, nil, zeta, dev), ErrNotFound)

	_, err = r.GetProject(ctx, 999)
	assert.ErrorIs(t, err, ErrNotFound)
}
