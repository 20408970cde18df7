package engine

import (
	"context"

	"taskdash/internal/domain"
	"taskdash/internal/repo"
)

const upcomingTaskLimit = 5

// DashboardSummary aggregates the landing page figures for userID.
func (e Engine) DashboardSummary(ctx context.Context, userID int64) (domain.DashboardSummary, error) {
	now := e.now()
	counts, err := e.Repo.CountTasksByStatus(ctx, userID)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	overdue, err := e.Repo.CountOverdueTasks(ctx, userID, now)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	upcoming, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
		AssigneeID:   userID,
		DueFrom:      &now,
		ExcludeState: domain.StatusCompleted,
		Limit:        upcomingTaskLimit,
	})
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	if upcoming == nil {
		upcoming = []domain.Task{}
	}
	unread, err := e.Repo.CountUnreadNotifications(ctx, userID)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	active, err := e.Repo.CountActiveProjects(ctx, userID)
	if err != nil {
		return domain.DashboardSummary{}, err
	}
	return domain.DashboardSummary{
		UserID:              userID,
		TotalTasks:          total,
		TasksByStatus:       counts,
		OverdueTasks:        overdue,
		UpcomingTasks:       upcoming,
		UnreadNotifications: unread,
		ActiveProjects:      active,
	}, nil
}
