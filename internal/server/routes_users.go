package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"taskdash/internal/domain"
	"taskdash/internal/engine"
	"taskdash/internal/engine/auth"
)

func (h handlers) registerUsers(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-users",
		Method:      http.MethodGet,
		Path:        "/users",
		Summary:     "List users",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Role string `query:"role" enum:"Employee,TeamLead,ProjectManager,Administrator"`
	}) (*struct {
		Body UserListResponse `json:"body"`
	}, error) {
		if _, authErr := requirePolicy(ctx, auth.TeamLead); authErr != nil {
			return nil, authErr
		}
		users, err := h.engine.ListUsers(ctx, domain.Role(input.Role))
		if err != nil {
			return nil, h.fail(ctx, "list-users", err)
		}
		return &struct {
			Body UserListResponse `json:"body"`
		}{Body: UserListResponse{Items: nonNilSlice(users)}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "create-user",
		Method:        http.MethodPost,
		Path:          "/users",
		Summary:       "Create user",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateUserRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		if _, authErr := requirePolicy(ctx, auth.Administrator); authErr != nil {
			return nil, authErr
		}
		opts := engine.UserCreateOptions{
			Email:       input.Body.Email,
			DisplayName: input.Body.DisplayName,
			Department:  stringOrEmpty(input.Body.Department),
		}
		if input.Body.Role != nil {
			opts.Role = domain.Role(*input.Body.Role)
		}
		u, err := h.engine.CreateUser(ctx, opts)
		if err != nil {
			return nil, h.fail(ctx, "create-user", err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-user-role",
		Method:      http.MethodPatch,
		Path:        "/users/{id}/role",
		Summary:     "Change a user's role",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
			http.StatusForbidden,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID   int64             `path:"id"`
		Body UpdateRoleRequest `json:"body"`
	}) (*struct {
		Body domain.User `json:"body"`
	}, error) {
		principal, authErr := requirePolicy(ctx, auth.Administrator)
		if authErr != nil {
			return nil, authErr
		}
		u, err := h.engine.UpdateUserRole(ctx, principal.User.ID, input.ID, domain.Role(input.Body.Role))
		if err != nil {
			return nil, h.fail(ctx, "update-user-role", err)
		}
		return &struct {
			Body domain.User `json:"body"`
		}{Body: u}, nil
	})
}
