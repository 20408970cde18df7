package repo

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taskdash/internal/domain"
)

const projectColumns = `id,name,COALESCE(description,''),project_manager_id,status,start_date,target_end_date,created_at,updated_at`

func scanProject(s scanner) (domain.Project, error) {
	var (
		p                    domain.Project
		start, end           sql.NullString
		createdAt, updatedAt string
	)
	if err := s.Scan(&p.ID, &p.Name, &p.Description, &p.ProjectManagerID, &p.Status, &start, &end, &createdAt, &updatedAt); err != nil {
		return p, err
	}
	var err error
	if p.StartDate, err = parseNullTime(start); err != nil {
		return p, err
	}
	if p.TargetEndDate, err = parseNullTime(end); err != nil {
		return p, err
	}
	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return p, err
	}
	p.UpdatedAt, err = parseTime(updatedAt)
	return p, err
}

func (r Repo) InsertProject(ctx context.Context, tx *sql.Tx, p domain.Project) (int64, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO projects(name,description,project_manager_id,status,start_date,target_end_date,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?)`,
		p.Name, nullable(p.Description), p.ProjectManagerID, p.Status, nullableTime(p.StartDate), nullableTime(p.TargetEndDate),
		FormatTime(p.CreatedAt), FormatTime(p.UpdatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// GetProject loads a project with its members (and each member's user).
func (r Repo) GetProject(ctx context.Context, id int64) (domain.Project, error) {
	p, err := scanProject(r.DB.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return p, ErrNotFound
	}
	if err != nil {
		return p, err
	}
	p.Members, err = r.ListProjectMembers(ctx, id)
	return p, err
}

// ListUserProjects returns projects the user manages or belongs to, by name.
// Members are not loaded.
func (r Repo) ListUserProjects(ctx context.Context, userID int64) ([]domain.Project, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects
WHERE project_manager_id=? OR id IN (SELECT project_id FROM project_members WHERE user_id=?)
ORDER BY name, id`, userID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, p)
	}
	return res, rows.Err()
}

func (r Repo) ListProjectMembers(ctx context.Context, projectID int64) ([]domain.ProjectMember, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT project_id,user_id,COALESCE(role,''),added_at FROM project_members WHERE project_id=? ORDER BY added_at, user_id`, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var (
		members []domain.ProjectMember
		ids     []int64
	)
	for rows.Next() {
		var (
			m       domain.ProjectMember
			addedAt string
		)
		if err := rows.Scan(&m.ProjectID, &m.UserID, &m.Role, &addedAt); err != nil {
			return nil, err
		}
		if m.AddedAt, err = parseTime(addedAt); err != nil {
			return nil, err
		}
		members = append(members, m)
		ids = append(ids, m.UserID)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	users, err := r.usersByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range members {
		if u, ok := users[members[i].UserID]; ok {
			members[i].User = &u
		}
	}
	return members, nil
}

// AddProjectMember is idempotent; re-adding updates the role label only.
func (r Repo) AddProjectMember(ctx context.Context, tx *sql.Tx, m domain.ProjectMember) error {
	_, err := r.conn(tx).ExecContext(ctx, `INSERT INTO project_members(project_id,user_id,role,added_at) VALUES (?,?,?,?)
ON CONFLICT(project_id,user_id) DO UPDATE SET role=excluded.role`,
		m.ProjectID, m.UserID, nullable(m.Role), FormatTime(m.AddedAt))
	return err
}

func (r Repo) RemoveProjectMember(ctx context.Context, tx *sql.Tx, projectID, userID int64) error {
	res, err := r.conn(tx).ExecContext(ctx, `DELETE FROM project_members WHERE project_id=? AND user_id=?`, projectID, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) TouchProject(ctx context.Context, tx *sql.Tx, id int64, now time.Time) error {
	_, err := r.conn(tx).ExecContext(ctx, `UPDATE projects SET updated_at=? WHERE id=?`, FormatTime(now), id)
	return err
}

// CountActiveProjects counts Active projects the user manages or belongs to.
func (r Repo) CountActiveProjects(ctx context.Context, userID int64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM projects
WHERE status=? AND (project_manager_id=? OR id IN (SELECT project_id FROM project_members WHERE user_id=?))`,
		domain.ProjectActive, userID, userID).Scan(&n)
	return n, err
}
