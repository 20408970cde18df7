package taskdashsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal taskdash JSON API client. BaseURL includes the API
// base path, e.g. http://localhost:8080/api.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

type User struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
	Department  string `json:"department,omitempty"`
}

// Task is the API task model. Priority is one of Low, Medium, High, Critical.
type Task struct {
	ID             int64      `json:"id"`
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
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

type Comment struct {
	ID        int64     `json:"id"`
	TaskID    int64     `json:"task_id"`
	UserID    int64     `json:"user_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskDetail is a task with its comments.
type TaskDetail struct {
	Task
	Comments []Comment `json:"comments"`
}

type Notification struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Title     string    `json:"title"`
	Message   string    `json:"message"`
	Type      string    `json:"type"`
	Priority  string    `json:"priority"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type Dashboard struct {
	TotalTasks          int            `json:"total_tasks"`
	TasksByStatus       map[string]int `json:"tasks_by_status"`
	OverdueTasks        int            `json:"overdue_tasks"`
	UpcomingTasks       []Task         `json:"upcoming_tasks"`
	UnreadNotifications int            `json:"unread_notifications"`
	ActiveProjects      int            `json:"active_projects"`
}

// CreateTaskInput mirrors POST /tasks. Zero values are omitted.
type CreateTaskInput struct {
	Title          string     `json:"title"`
	Description    string     `json:"description,omitempty"`
	Status         string     `json:"status,omitempty"`
	Priority       string     `json:"priority,omitempty"`
	DueDate        *time.Time `json:"due_date,omitempty"`
	EstimatedHours *float64   `json:"estimated_hours,omitempty"`
	AssignedUserID int64      `json:"assigned_user_id"`
	ProjectID      *int64     `json:"project_id,omitempty"`
}

// TaskFilter narrows ListTasks.
type TaskFilter struct {
	Status    string
	Priority  string
	ProjectID int64
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Login exchanges an email for a session token and keeps it for later calls.
func (c *Client) Login(ctx context.Context, email string) (User, error) {
	var resp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
		User      User      `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/login", map[string]string{"email": email}, &resp); err != nil {
		return User{}, err
	}
	c.BearerToken = resp.Token
	return resp.User, nil
}

// Logout revokes the current token.
func (c *Client) Logout(ctx context.Context) error {
	if err := c.do(ctx, http.MethodPost, "auth/logout", nil, nil); err != nil {
		return err
	}
	c.BearerToken = ""
	return nil
}

func (c *Client) Me(ctx context.Context) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodGet, "me", nil, &resp)
	return resp.User, err
}

// ListTasks returns the caller's tasks.
func (c *Client) ListTasks(ctx context.Context, f TaskFilter) ([]Task, error) {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status", f.Status)
	}
	if f.Priority != "" {
		q.Set("priority", f.Priority)
	}
	if f.ProjectID > 0 {
		q.Set("project_id", fmt.Sprint(f.ProjectID))
	}
	endpoint := "tasks"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items []Task `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func (c *Client) CreateTask(ctx context.Context, in CreateTaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", in, &resp)
	return resp, err
}

func (c *Client) GetTask(ctx context.Context, id int64) (TaskDetail, error) {
	var resp TaskDetail
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("tasks/%d", id), nil, &resp)
	return resp, err
}

func (c *Client) UpdateTaskStatus(ctx context.Context, id int64, status string) (TaskDetail, error) {
	var resp TaskDetail
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("tasks/%d/status", id), map[string]string{"status": status}, &resp)
	return resp, err
}

func (c *Client) AddComment(ctx context.Context, taskID int64, text string) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("tasks/%d/comments", taskID), map[string]string{"text": text}, nil)
}

func (c *Client) Comments(ctx context.Context, taskID int64) ([]Comment, error) {
	var resp struct {
		Items []Comment `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("tasks/%d/comments", taskID), nil, &resp)
	return resp.Items, err
}

// Notifications lists the caller's notifications, newest first, along with
// the unread count.
func (c *Client) Notifications(ctx context.Context, unreadOnly bool, limit int) ([]Notification, int, error) {
	q := url.Values{}
	if unreadOnly {
		q.Set("unread_only", "true")
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	endpoint := "notifications"
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}
	var resp struct {
		Items  []Notification `json:"items"`
		Unread int            `json:"unread"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, resp.Unread, err
}

func (c *Client) UnreadCount(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, http.MethodGet, "notifications/unread-count", nil, &resp)
	return resp.Count, err
}

func (c *Client) MarkNotificationRead(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodPost, fmt.Sprintf("notifications/%d/read", id), nil, nil)
}

// MarkAllNotificationsRead returns how many notifications changed.
func (c *Client) MarkAllNotificationsRead(ctx context.Context) (int, error) {
	var resp struct {
		Count int `json:"count"`
	}
	err := c.do(ctx, http.MethodPost, "notifications/read-all", nil, &resp)
	return resp.Count, err
}

func (c *Client) Dashboard(ctx context.Context) (Dashboard, error) {
	var resp Dashboard
	err := c.do(ctx, http.MethodGet, "dashboard", nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code = env.Error.Code
			apiErr.Message = env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
