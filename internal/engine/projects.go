package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskdash/internal/domain"
	"taskdash/internal/engine/auth"
	"taskdash/internal/repo"
)

type ProjectCreateOptions struct {
	Name          string
	Description   string
	ManagerID     int64
	Status        domain.ProjectStatus
	StartDate     *time.Time
	TargetEndDate *time.Time
}

func (e Engine) CreateProject(ctx context.Context, opts ProjectCreateOptions) (domain.Project, error) {
	name := strings.TrimSpace(opts.Name)
	if name == "" {
		return domain.Project{}, invalid("name", "name is required")
	}
	if opts.Status == "" {
		opts.Status = domain.ProjectPlanning
	}
	if _, err := domain.ParseProjectStatus(string(opts.Status)); err != nil {
		return domain.Project{}, invalid("status", "unknown status %q", opts.Status)
	}
	if opts.StartDate != nil && opts.TargetEndDate != nil && opts.TargetEndDate.Before(*opts.StartDate) {
		return domain.Project{}, invalid("target_end_date", "must not be before start_date")
	}
	if opts.ManagerID == 0 {
		return domain.Project{}, invalid("project_manager_id", "manager is required")
	}
	if err := e.requireUser(ctx, "project_manager_id", opts.ManagerID); err != nil {
		return domain.Project{}, err
	}
	now := e.now()
	p := domain.Project{
		Name:             name,
		Description:      opts.Description,
		ProjectManagerID: opts.ManagerID,
		Status:           opts.Status,
		StartDate:        opts.StartDate,
		TargetEndDate:    opts.TargetEndDate,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	id, err := e.Repo.InsertProject(ctx, nil, p)
	if err != nil {
		return domain.Project{}, fmt.Errorf("insert project: %w", err)
	}
	p.ID = id
	e.log().Info("project created", "project_id", id, "manager", opts.ManagerID)
	return p, nil
}

// GetProject returns the project with its members. Managers, members and
// Administrators may see it; everyone else gets repo.ErrNotFound.
func (e Engine) GetProject(ctx context.Context, projectID, requesterID int64) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if p.ProjectManagerID == requesterID || p.HasMember(requesterID) {
		return p, nil
	}
	u, err := e.Repo.GetUser(ctx, requesterID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return domain.Project{}, repo.ErrNotFound
		}
		return domain.Project{}, err
	}
	if auth.Administrator.Allows(u.Role) {
		return p, nil
	}
	return domain.Project{}, repo.ErrNotFound
}

func (e Engine) ListUserProjects(ctx context.Context, userID int64) ([]domain.Project, error) {
	return e.Repo.ListUserProjects(ctx, userID)
}

// canManageProject loads the project and checks actorID is its manager or
// an Administrator.
func (e Engine) canManageProject(ctx context.Context, projectID, actorID int64) (domain.Project, error) {
	p, err := e.Repo.GetProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, err
	}
	if p.ProjectManagerID == actorID {
		return p, nil
	}
	actor, err := e.Repo.GetUser(ctx, actorID)
	if err != nil {
		return domain.Project{}, err
	}
	if !auth.Administrator.Allows(actor.Role) {
		return domain.Project{}, auth.ForbiddenError{Policy: "ProjectManager"}
	}
	return p, nil
}

// AddProjectMember adds userID to the project and notifies them.
func (e Engine) AddProjectMember(ctx context.Context, projectID, actorID, userID int64, role string) (domain.Project, error) {
	p, err := e.canManageProject(ctx, projectID, actorID)
	if err != nil {
		return domain.Project{}, err
	}
	if err := e.requireUser(ctx, "user_id", userID); err != nil {
		return domain.Project{}, err
	}
	now := e.now()
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Project{}, err
	}
	defer tx.Rollback()
	if err := e.Repo.AddProjectMember(ctx, tx, domain.ProjectMember{
		ProjectID: projectID,
		UserID:    userID,
		Role:      strings.TrimSpace(role),
		AddedAt:   now,
	}); err != nil {
		return domain.Project{}, fmt.Errorf("add member: %w", err)
	}
	if err := e.Repo.TouchProject(ctx, tx, projectID, now); err != nil {
		return domain.Project{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Project{}, err
	}
	if _, err := e.Notify.Create(ctx, domain.Notification{
		UserID:   userID,
		Title:    "Added to Project",
		Message:  fmt.Sprintf("You have been added to project: %s", p.Name),
		Type:     domain.NotificationProjectUpdate,
		Priority: domain.NotificationInformational,
	}); err != nil {
		return domain.Project{}, fmt.Errorf("notify member: %w", err)
	}
	return e.Repo.GetProject(ctx, projectID)
}

func (e Engine) RemoveProjectMember(ctx context.Context, projectID, actorID, userID int64) error {
	if _, err := e.canManageProject(ctx, projectID, actorID); err != nil {
		return err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if err := e.Repo.RemoveProjectMember(ctx, tx, projectID, userID); err != nil {
		return err
	}
	if err := e.Repo.TouchProject(ctx, tx, projectID, e.now()); err != nil {
		return err
	}
	return tx.Commit()
}
