package server

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"taskdash/internal/domain"
	"taskdash/internal/engine"
	"taskdash/internal/engine/auth"
)

func (h handlers) now() time.Time {
	if h.engine.Now != nil {
		return h.engine.Now().UTC()
	}
	return time.Now().UTC()
}

type taskPath struct {
	ID int64 `path:"id"`
}

func (h handlers) registerTasks(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-tasks",
		Method:      http.MethodGet,
		Path:        "/tasks",
		Summary:     "List the caller's tasks",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Status    string `query:"status" enum:"NotStarted,InProgress,Blocked,Completed"`
		Priority  string `query:"priority" enum:"Low,Medium,High,Critical"`
		ProjectID int64  `query:"project_id"`
	}) (*struct {
		Body TaskListResponse `json:"body"`
	}, error) {
		principal, authErr := requirePolicy(ctx, auth.Employee)
		if authErr != nil {
			return nil, authErr
		}
		var q engine.TaskQuery
		filtered := false
		if input.Status != "" {
			st, err := domain.ParseTaskStatus(input.Status)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": "status"})
			}
			q.Status = &st
			filtered = true
		}
		if input.Priority != "" {
			p, err := domain.ParseTaskPriority(input.Priority)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": "priority"})
			}
			q.Priority = &p
			filtered = true
		}
		if input.ProjectID > 0 {
			q.ProjectID = &input.ProjectID
			filtered = true
		}
		var (
			tasks []domain.Task
			err   error
		)
		if filtered {
			tasks, err = h.engine.GetFilteredTasks(ctx, principal.User.ID, q)
		} else {
			tasks, err = h.engine.GetUserTasks(ctx, principal.User.ID)
		}
		if err != nil {
			return nil, h.fail(ctx, "list-tasks", err)
		}
		return &struct {
			Body TaskListResponse `json:"body"`
		}{Body: TaskListResponse{Items: mapTasks(tasks, h.now())}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-task",
		Method:        http.MethodPost,
		Path:          "/tasks",
		Summary:       "Create and assign a task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateTaskRequest `json:"body"`
	}) (*struct {
		Body TaskResponse `json:"body"`
	}, error) {
		principal, authErr := requirePolicy(ctx, auth.TeamLead)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.TaskCreateOptions{
			Title:          input.Body.Title,
			Description:    stringOrEmpty(input.Body.Description),
			DueDate:        input.Body.DueDate,
			EstimatedHours: input.Body.EstimatedHours,
			AssignedUserID: input.Body.AssignedUserID,
			CreatedByID:    principal.User.ID,
			ProjectID:      input.Body.ProjectID,
		}
		if input.Body.Status != nil {
			st, err := domain.ParseTaskStatus(*input.Body.Status)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": "status"})
			}
			opts.Status = st
		}
		if input.Body.Priority != nil {
			p, err := domain.ParseTaskPriority(*input.Body.Priority)
			if err != nil {
				return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": "priority"})
			}
			opts.Priority = p
		}
		t, err := h.engine.CreateTask(ctx, opts)
		if err != nil {
			return nil, h.fail(ctx, "create-task", err)
		}
		return &struct {
			Body TaskResponse `json:"body"`
		}{Body: taskResponse(t, h.now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}",
		Summary:     "Get a task with its project and comments",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body TaskDetailResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		agg, err := h.engine.GetTaskByID(ctx, input.ID, principal.User.ID)
		if err != nil {
			return nil, h.fail(ctx, "get-task", err)
		}
		return &struct {
			Body TaskDetailResponse `json:"body"`
		}{Body: taskDetailResponse(agg, h.now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task-status",
		Method:      http.MethodPatch,
		Path:        "/tasks/{id}/status",
		Summary:     "Change a task's status",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64                   `path:"id"`
		Body UpdateTaskStatusRequest `json:"body"`
	}) (*struct {
		Body TaskDetailResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		status, err := domain.ParseTaskStatus(input.Body.Status)
		if err != nil {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", err.Error(), map[string]any{"field": "status"})
		}
		ok, err := h.engine.UpdateTaskStatus(ctx, input.ID, principal.User.ID, status)
		if err != nil {
			return nil, h.fail(ctx, "update-task-status", err)
		}
		if !ok {
			return nil, notFound()
		}
		agg, err := h.engine.GetTaskByID(ctx, input.ID, principal.User.ID)
		if err != nil {
			return nil, h.fail(ctx, "update-task-status", err)
		}
		return &struct {
			Body TaskDetailResponse `json:"body"`
		}{Body: taskDetailResponse(agg, h.now())}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-task-comments",
		Method:      http.MethodGet,
		Path:        "/tasks/{id}/comments",
		Summary:     "List a task's comments, oldest first",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *taskPath) (*struct {
		Body CommentListResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		// GetTaskByID distinguishes a missing task from one without comments.
		if _, err := h.engine.GetTaskByID(ctx, input.ID, principal.User.ID); err != nil {
			return nil, h.fail(ctx, "list-task-comments", err)
		}
		comments, err := h.engine.GetTaskComments(ctx, input.ID, principal.User.ID)
		if err != nil {
			return nil, h.fail(ctx, "list-task-comments", err)
		}
		return &struct {
			Body CommentListResponse `json:"body"`
		}{Body: CommentListResponse{Items: nonNilSlice(comments)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "add-task-comment",
		Method:        http.MethodPost,
		Path:          "/tasks/{id}/comments",
		Summary:       "Comment on a task",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64             `path:"id"`
		Body AddCommentRequest `json:"body"`
	}) (*struct {
		Body CommentAddedResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ok, err := h.engine.AddTaskComment(ctx, input.ID, principal.User.ID, input.Body.Text)
		if err != nil {
			return nil, h.fail(ctx, "add-task-comment", err)
		}
		if !ok {
			return nil, notFound()
		}
		return &struct {
			Body CommentAddedResponse `json:"body"`
		}{Body: CommentAddedResponse{Added: true}}, nil
	})
}
