package server

import (
	"time"

	"taskdash/internal/domain"
)

// Request payloads

type LoginRequest struct {
	Email string `json:"email" minLength:"1" example:"alice@example.com"`
}

type CreateTaskRequest struct {
	Title          string     `json:"title" minLength:"1"`
	Description    *string    `json:"description,omitempty"`
	Status         *string    `json:"status,omitempty" enum:"NotStarted,InProgress,Blocked,Completed"`
	Priority       *string    `json:"priority,omitempty" enum:"Low,Medium,High,Critical"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	AssignedUserID int64      `json:"assigned_user_id"`
	ProjectID      *int64     `json:"project_id,omitempty"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status" enum:"NotStarted,InProgress,Blocked,Completed"`
}

type AddCommentRequest struct {
	Text string `json:"text"`
}

type CreateProjectRequest struct {
	Name          string     `json:"name" minLength:"1"`
	Description   *string    `json:"description,omitempty"`
	Status        *string    `json:"status,omitempty" enum:"Planning,Active,OnHold,Completed,Cancelled"`
	StartDate     *time.Time `json:"start_date,omitempty"`
	TargetEndDate *time.Time `json:"target_end_date,omitempty"`
	// ManagerID defaults to the caller.
	ManagerID *int64 `json:"project_manager_id,omitempty"`
}

type AddMemberRequest struct {
	UserID int64  `json:"user_id"`
	Role   string `json:"role,omitempty"`
}

type CreateUserRequest struct {
	Email       string  `json:"email" minLength:"3"`
	DisplayName string  `json:"display_name" minLength:"1"`
	Role        *string `json:"role,omitempty" enum:"Employee,TeamLead,ProjectManager,Administrator"`
	Department  *string `json:"department,omitempty"`
}

type UpdateRoleRequest struct {
	Role string `json:"role" enum:"Employee,TeamLead,ProjectManager,Administrator"`
}

// Response payloads

type LoginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      domain.User `json:"user"`
}

type MeResponse struct {
	User   domain.User `json:"user"`
	Source string      `json:"source" enum:"session,bearer,api_key"`
}

type TaskResponse struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status" enum:"NotStarted,InProgress,Blocked,Completed"`
	Priority       string     `json:"priority" enum:"Low,Medium,High,Critical"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	Overdue        bool       `json:"overdue"`
	AssignedUserID int64      `json:"assigned_user_id"`
	CreatedByID    int64      `json:"created_by_user_id"`
	ProjectID      *int64     `json:"project_id,omitempty"`
	ProjectName    string     `json:"project_name,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

type TaskDetailResponse struct {
	TaskResponse
	Project  *domain.Project      `json:"project,omitempty"`
	Comments []domain.TaskComment `json:"comments"`
}

type TaskListResponse struct {
	Items []TaskResponse `json:"items"`
}

type CommentListResponse struct {
	Items []domain.TaskComment `json:"items"`
}

type CommentAddedResponse struct {
	Added bool `json:"added"`
}

type NotificationListResponse struct {
	Items  []domain.Notification `json:"items"`
	Unread int                   `json:"unread"`
}

type CountResponse struct {
	Count int `json:"count"`
}

type ProjectListResponse struct {
	Items []domain.Project `json:"items"`
}

type UserListResponse struct {
	Items []domain.User `json:"items"`
}

type DashboardResponse struct {
	UserID              int64          `json:"user_id"`
	TotalTasks          int            `json:"total_tasks"`
	TasksByStatus       map[string]int `json:"tasks_by_status"`
	OverdueTasks        int            `json:"overdue_tasks"`
	UpcomingTasks       []TaskResponse `json:"upcoming_tasks"`
	UnreadNotifications int            `json:"unread_notifications"`
	ActiveProjects      int            `json:"active_projects"`
}

// Conversion helpers

func taskResponse(t domain.Task, now time.Time) TaskResponse {
	return TaskResponse{
		ID:             t.ID,
		Title:          t.Title,
		Description:    t.Description,
		Status:         string(t.Status),
		Priority:       t.Priority.String(),
		DueDate:        t.DueDate,
		EstimatedHours: t.EstimatedHours,
		Overdue:        t.Overdue(now),
		AssignedUserID: t.AssignedUserID,
		CreatedByID:    t.CreatedByID,
		ProjectID:      t.ProjectID,
		ProjectName:    t.ProjectName,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}

func mapTasks(items []domain.Task, now time.Time) []TaskResponse {
	out := make([]TaskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskResponse(t, now))
	}
	return out
}

func taskDetailResponse(agg domain.TaskAggregate, now time.Time) TaskDetailResponse {
	return TaskDetailResponse{
		TaskResponse: taskResponse(agg.Task, now),
		Project:      agg.Project,
		Comments:     nonNilSlice(agg.Comments),
	}
}

func dashboardResponse(s domain.DashboardSummary, now time.Time) DashboardResponse {
	byStatus := make(map[string]int, len(s.TasksByStatus))
	for st, n := range s.TasksByStatus {
		byStatus[string(st)] = n
	}
	return DashboardResponse{
		UserID:              s.UserID,
		TotalTasks:          s.TotalTasks,
		TasksByStatus:       byStatus,
		OverdueTasks:        s.OverdueTasks,
		UpcomingTasks:       mapTasks(s.UpcomingTasks, now),
		UnreadNotifications: s.UnreadNotifications,
		ActiveProjects:      s.ActiveProjects,
	}
}

func nonNilSlice[T any](in []T) []T {
	if in == nil {
		return []T{}
	}
	return in
}

func stringOrEmpty(ptr *string) string {
	if ptr == nil {
		return ""
	}
	return *ptr
}
