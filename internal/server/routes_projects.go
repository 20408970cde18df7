package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"taskdash/internal/domain"
	"taskdash/internal/engine"
	"taskdash/internal/engine/auth"
)

func (h handlers) registerProjects(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-projects",
		Method:      http.MethodGet,
		Path:        "/projects",
		Summary:     "List projects the caller manages or belongs to",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body ProjectListResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		projects, err := h.engine.ListUserProjects(ctx, principal.User.ID)
		if err != nil {
			return nil, h.fail(ctx, "list-projects", err)
		}
		return &struct {
			Body ProjectListResponse `json:"body"`
		}{Body: ProjectListResponse{Items: nonNilSlice(projects)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-project",
		Method:        http.MethodPost,
		Path:          "/projects",
		Summary:       "Create project",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateProjectRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		principal, authErr := requirePolicy(ctx, auth.ProjectManager)
		if authErr != nil {
			return nil, authErr
		}
		opts := engine.ProjectCreateOptions{
			Name:          input.Body.Name,
			Description:   stringOrEmpty(input.Body.Description),
			ManagerID:     principal.User.ID,
			StartDate:     input.Body.StartDate,
			TargetEndDate: input.Body.TargetEndDate,
		}
		if input.Body.ManagerID != nil {
			opts.ManagerID = *input.Body.ManagerID
		}
		if input.Body.Status != nil {
			opts.Status = domain.ProjectStatus(*input.Body.Status)
		}
		p, err := h.engine.CreateProject(ctx, opts)
		if err != nil {
			return nil, h.fail(ctx, "create-project", err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-project",
		Method:      http.MethodGet,
		Path:        "/projects/{id}",
		Summary:     "Get project with members",
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := h.engine.GetProject(ctx, input.ID, principal.User.ID)
		if err != nil {
			return nil, h.fail(ctx, "get-project", err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "add-project-member",
		Method:      http.MethodPost,
		Path:        "/projects/{id}/members",
		Summary:     "Add or update a project member",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64            `path:"id"`
		Body AddMemberRequest `json:"body"`
	}) (*struct {
		Body domain.Project `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		p, err := h.engine.AddProjectMember(ctx, input.ID, principal.User.ID, input.Body.UserID, input.Body.Role)
		if err != nil {
			return nil, h.fail(ctx, "add-project-member", err)
		}
		return &struct {
			Body domain.Project `json:"body"`
		}{Body: p}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "remove-project-member",
		Method:        http.MethodDelete,
		Path:          "/projects/{id}/members/{user_id}",
		Summary:       "Remove a project member",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID     int64 `path:"id"`
		UserID int64 `path:"user_id"`
	}) (*struct{}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.engine.RemoveProjectMember(ctx, input.ID, principal.User.ID, input.UserID); err != nil {
			return nil, h.fail(ctx, "remove-project-member", err)
		}
		return &struct{}{}, nil
	})
}
