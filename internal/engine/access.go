package engine

import "taskdash/internal/domain"

// CanAccessTask reports whether requesterID may see or change the task: the
// assignee, the creator, a member of the task's project or that project's
// manager. The aggregate must be fully loaded.
func CanAccessTask(t domain.TaskAggregate, requesterID int64) bool {
	if t.AssignedUserID == requesterID || t.CreatedByID == requesterID {
		return true
	}
	if t.Project == nil {
		return false
	}
	return t.Project.ProjectManagerID == requesterID || t.Project.HasMember(requesterID)
}
