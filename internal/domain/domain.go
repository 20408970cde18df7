package domain

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleEmployee       Role = "Employee"
	RoleTeamLead       Role = "TeamLead"
	RoleProjectManager Role = "ProjectManager"
	RoleAdministrator  Role = "Administrator"
)

var roles = []Role{RoleEmployee, RoleTeamLead, RoleProjectManager, RoleAdministrator}

func ParseRole(s string) (Role, error) {
	for _, r := range roles {
		if strings.EqualFold(string(r), strings.TrimSpace(s)) {
			return r, nil
		}
	}
	return "", fmt.Errorf("invalid role %q", s)
}

func (r Role) Valid() bool {
	for _, known := range roles {
		if r == known {
			return true
		}
	}
	return false
}

type TaskStatus string

const (
	StatusNotStarted TaskStatus = "NotStarted"
	StatusInProgress TaskStatus = "InProgress"
	StatusBlocked    TaskStatus = "Blocked"
	StatusCompleted  TaskStatus = "Completed"
)

// TaskStatuses lists every status in display order.
var TaskStatuses = []TaskStatus{StatusNotStarted, StatusInProgress, StatusBlocked, StatusCompleted}

func ParseTaskStatus(s string) (TaskStatus, error) {
	for _, st := range TaskStatuses {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid task status %q", s)
}

func (s TaskStatus) Valid() bool {
	for _, st := range TaskStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// TaskPriority is stored as an integer so that ordering by priority is numeric.
type TaskPriority int

const (
	PriorityLow TaskPriority = iota
	PriorityMedium
	PriorityHigh
	PriorityCritical
)

var priorityNames = map[TaskPriority]string{
	PriorityLow:      "Low",
	PriorityMedium:   "Medium",
	PriorityHigh:     "High",
	PriorityCritical: "Critical",
}

// TaskPriorities lists every priority from lowest to highest.
var TaskPriorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

func (p TaskPriority) String() string {
	if name, ok := priorityNames[p]; ok {
		return name
	}
	return fmt.Sprintf("TaskPriority(%d)", int(p))
}

func (p TaskPriority) Valid() bool {
	_, ok := priorityNames[p]
	return ok
}

func ParseTaskPriority(s string) (TaskPriority, error) {
	for p, name := range priorityNames {
		if strings.EqualFold(name, strings.TrimSpace(s)) {
			return p, nil
		}
	}
	return 0, fmt.Errorf("invalid task priority %q", s)
}

type NotificationType string

const (
	NotificationTaskAssignment     NotificationType = "TaskAssignment"
	NotificationTaskCompleted      NotificationType = "TaskCompleted"
	NotificationTaskComment        NotificationType = "TaskComment"
	NotificationProjectUpdate      NotificationType = "ProjectUpdate"
	NotificationSystemAnnouncement NotificationType = "SystemAnnouncement"
)

type NotificationPriority string

const (
	NotificationInformational NotificationPriority = "Informational"
	NotificationImportant     NotificationPriority = "Important"
	NotificationUrgent        NotificationPriority = "Urgent"
)

type ProjectStatus string

const (
	ProjectPlanning  ProjectStatus = "Planning"
	ProjectActive    ProjectStatus = "Active"
	ProjectOnHold    ProjectStatus = "OnHold"
	ProjectCompleted ProjectStatus = "Completed"
	ProjectCancelled ProjectStatus = "Cancelled"
)

func ParseProjectStatus(s string) (ProjectStatus, error) {
	for _, st := range []ProjectStatus{ProjectPlanning, ProjectActive, ProjectOnHold, ProjectCompleted, ProjectCancelled} {
		if strings.EqualFold(string(st), strings.TrimSpace(s)) {
			return st, nil
		}
	}
	return "", fmt.Errorf("invalid project status %q", s)
}

type User struct {
	ID          int64     `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        Role      `json:"role" enum:"Employee,TeamLead,ProjectManager,Administrator"`
	Department  string    `json:"department,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Project struct {
	ID               int64           `json:"id"`
	Name             string          `json:"name"`
	Description      string          `json:"description,omitempty"`
	ProjectManagerID int64           `json:"project_manager_id"`
	Status           ProjectStatus   `json:"status" enum:"Planning,Active,OnHold,Completed,Cancelled"`
	StartDate        *time.Time      `json:"start_date,omitempty"`
	TargetEndDate    *time.Time      `json:"target_end_date,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Members          []ProjectMember `json:"members,omitempty"`
}

// HasMember reports whether userID appears in the loaded member set.
func (p Project) HasMember(userID int64) bool {
	for _, m := range p.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}

type ProjectMember struct {
	ProjectID int64     `json:"project_id"`
	UserID    int64     `json:"user_id"`
	Role      string    `json:"role,omitempty"`
	AddedAt   time.Time `json:"added_at"`
	User      *User     `json:"user,omitempty"`
}

type Task struct {
	ID             int64        `json:"id"`
	Title          string       `json:"title"`
	Description    string       `json:"description,omitempty"`
	Status         TaskStatus   `json:"status" enum:"NotStarted,InProgress,Blocked,Completed"`
	Priority       TaskPriority `json:"priority"`
	DueDate        *time.Time   `json:"due_date,omitempty"`
	EstimatedHours *float64     `json:"estimated_hours,omitempty"`
	AssignedUserID int64        `json:"assigned_user_id"`
	CreatedByID    int64        `json:"created_by_user_id"`
	ProjectID      *int64       `json:"project_id,omitempty"`
	ProjectName    string       `json:"project_name,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

// Overdue reports whether the task is past due and not completed at now.
func (t Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && t.Status != StatusCompleted
}

// TaskAggregate is a task together with every related record the access
// check and the detail view need.
type TaskAggregate struct {
	Task
	Project  *Project      `json:"project,omitempty"`
	Comments []TaskComment `json:"comments"`
}

type TaskComment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
	Author    *User     `json:"author,omitempty"`
}

type Notification struct {
	ID        int64                `json:"id"`
	UserID    int64                `json:"user_id"`
	Title     string               `json:"title"`
	Message   string               `json:"message"`
	Type      NotificationType     `json:"type" enum:"TaskAssignment,TaskCompleted,TaskComment,ProjectUpdate,SystemAnnouncement"`
	Priority  NotificationPriority `json:"priority" enum:"Informational,Important,Urgent"`
	IsRead    bool                 `json:"is_read"`
	CreatedAt time.Time            `json:"created_at"`
}

type APIKey struct {
	ID        string    `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name,omitempty"`
	KeyHash   string    `json:"key_hash"`
	CreatedAt time.Time `json:"created_at"`
}

type DashboardSummary struct {
	UserID              int64              `json:"user_id"`
	TotalTasks          int                `json:"total_tasks"`
	TasksByStatus       map[TaskStatus]int `json:"tasks_by_status"`
	OverdueTasks        int                `json:"overdue_tasks"`
	UpcomingTasks       []Task             `json:"upcoming_tasks"`
	UnreadNotifications int                `json:"unread_notifications"`
	ActiveProjects      int                `json:"active_projects"`
}
