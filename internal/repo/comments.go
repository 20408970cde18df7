package repo

import (
	"context"
	"database/sql"

	"taskdash/internal/domain"
)

func (r Repo) InsertComment(ctx context.Context, tx *sql.Tx, c domain.TaskComment) (int64, error) {
	res, err := r.conn(tx).ExecContext(ctx, `INSERT INTO task_comments(task_id,user_id,comment_text,created_at) VALUES (?,?,?,?)`,
		c.TaskID, c.UserID, c.Text, FormatTime(c.CreatedAt))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListComments returns a task's comments oldest first, each with its author.
func (r Repo) ListComments(ctx context.Context, taskID int64) ([]domain.TaskComment, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT c.id,c.task_id,c.user_id,c.comment_text,c.created_at,
u.id,u.email,u.display_name,u.role,u.department,u.created_at
FROM task_comments c LEFT JOIN users u ON u.id=c.user_id
WHERE c.task_id=? ORDER BY c.created_at ASC, c.id ASC`, taskID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	comments := []domain.TaskComment{}
	for rows.Next() {
		var (
			c                   domain.TaskComment
			createdAt           string
			uid                 sql.NullInt64
			email, name, role   sql.NullString
			dept, userCreatedAt sql.NullString
		)
		if err := rows.Scan(&c.ID, &c.TaskID, &c.UserID, &c.Text, &createdAt, &uid, &email, &name, &role, &dept, &userCreatedAt); err != nil {
			return nil, err
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		if uid.Valid {
			author := domain.User{ID: uid.Int64, Email: email.String, DisplayName: name.String, Role: domain.Role(role.String), Department: dept.String}
			if userCreatedAt.Valid {
				if author.CreatedAt, err = parseTime(userCreatedAt.String); err != nil {
					return nil, err
				}
			}
			c.Author = &author
		}
		comments = append(comments, c)
	}
	return comments, rows.Err()
}
