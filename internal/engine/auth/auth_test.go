package auth

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"taskdash/internal/domain"
)

func TestPolicyAllows(t *testing.T) {
	tests := []struct {
		policy Policy
		role   domain.Role
		want   bool
	}{
		{Employee, domain.RoleEmployee, true},
		{Employee, domain.RoleAdministrator, true},
		{TeamLead, domain.RoleEmployee, false},
		{TeamLead, domain.RoleTeamLead, true},
		{TeamLead, domain.RoleProjectManager, true},
		{ProjectManager, domain.RoleTeamLead, false},
		{ProjectManager, domain.RoleAdministrator, true},
		{Administrator, domain.RoleProjectManager, false},
		{Administrator, domain.RoleAdministrator, true},
		{Employee, domain.Role("Guest"), false},
	}
	for _, tt := range tests {
		t.Run(tt.policy.Name+"/"+string(tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Allows(tt.role))
		})
	}
}

func TestRequire(t *testing.T) {
	assert.NoError(t, TeamLead.Require(domain.RoleAdministrator))

	err := Administrator.Require(domain.RoleTeamLead)
	var fe ForbiddenError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, "Administrator", fe.Policy)
	assert.Equal(t, "policy Administrator required", err.Error())
}

func TestPolicyByName(t *testing.T) {
	p, ok := PolicyByName("ProjectManager")
	assert.True(t, ok)
	assert.True(t, p.Allows(domain.RoleAdministrator))
	_, ok = PolicyByName("Owner")
	assert.False(t, ok)
}
