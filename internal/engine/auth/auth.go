package auth

import (
	"fmt"

	"taskdash/internal/domain"
)

// Policy is a named set of roles allowed through a route or command.
type Policy struct {
	Name  string
	roles []domain.Role
}

var (
	Employee       = Policy{Name: "Employee", roles: []domain.Role{domain.RoleEmployee, domain.RoleTeamLead, domain.RoleProjectManager, domain.RoleAdministrator}}
	TeamLead       = Policy{Name: "TeamLead", roles: []domain.Role{domain.RoleTeamLead, domain.RoleProjectManager, domain.RoleAdministrator}}
	ProjectManager = Policy{Name: "ProjectManager", roles: []domain.Role{domain.RoleProjectManager, domain.RoleAdministrator}}
	Administrator  = Policy{Name: "Administrator", roles: []domain.Role{domain.RoleAdministrator}}
)

// Policies lists every policy from least to most privileged.
var Policies = []Policy{Employee, TeamLead, ProjectManager, Administrator}

func (p Policy) Allows(role domain.Role) bool {
	for _, r := range p.roles {
		if r == role {
			return true
		}
	}
	return false
}

// Require returns a ForbiddenError when role does not satisfy p.
func (p Policy) Require(role domain.Role) error {
	if p.Allows(role) {
		return nil
	}
	return ForbiddenError{Policy: p.Name}
}

// PolicyByName looks a policy up by its name.
func PolicyByName(name string) (Policy, bool) {
	for _, p := range Policies {
		if p.Name == name {
			return p, true
		}
	}
	return Policy{}, false
}

// ForbiddenError indicates the caller's role does not satisfy a policy.
type ForbiddenError struct {
	Policy string
}

func (e ForbiddenError) Error() string {
	return fmt.Sprintf("policy %s required", e.Policy)
}
