package repo

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"taskdash/internal/domain"
)

const userColumns = `id,email,display_name,role,COALESCE(department,''),created_at`

func scanUser(s scanner) (domain.User, error) {
	var (
		u         domain.User
		createdAt string
	)
	if err := s.Scan(&u.ID, &u.Email, &u.DisplayName, &u.Role, &u.Department, &createdAt); err != nil {
		return u, err
	}
	var err error
	u.CreatedAt, err = parseTime(createdAt)
	return u, err
}

func (r Repo) InsertUser(ctx context.Context, tx *sql.Tx, u domain.User) (int64, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO users(email,display_name,role,department,created_at) VALUES (?,?,?,?,?)`,
		strings.TrimSpace(u.Email), u.DisplayName, u.Role, nullable(u.Department), FormatTime(u.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (r Repo) GetUser(ctx context.Context, id int64) (domain.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

// GetUserByEmail matches case-insensitively.
func (r Repo) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	u, err := scanUser(r.DB.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email=? COLLATE NOCASE`, strings.TrimSpace(email)))
	if errors.Is(err, sql.ErrNoRows) {
		return u, ErrNotFound
	}
	return u, err
}

func (r Repo) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users`
	var args []any
	if role != "" {
		query += ` WHERE role=?`
		args = append(args, role)
	}
	query += ` ORDER BY display_name, id`
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var users []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r Repo) UpdateUserRole(ctx context.Context, tx *sql.Tx, id int64, role domain.Role) error {
	res, err := r.conn(tx).ExecContext(ctx, `UPDATE users SET role=? WHERE id=?`, role, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// usersByID loads the given users keyed by id; unknown ids are skipped.
func (r Repo) usersByID(ctx context.Context, ids []int64) (map[int64]domain.User, error) {
	out := make(map[int64]domain.User, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}
