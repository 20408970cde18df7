package server

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
)

func (h handlers) registerNotifications(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-notifications",
		Method:      http.MethodGet,
		Path:        "/notifications",
		Summary:     "List the caller's notifications, newest first",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, input *struct {
		UnreadOnly bool `query:"unread_only"`
		Limit      int  `query:"limit" minimum:"0" maximum:"200"`
	}) (*struct {
		Body NotificationListResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		items, err := h.engine.ListNotifications(ctx, principal.User.ID, input.UnreadOnly, input.Limit)
		if err != nil {
			return nil, h.fail(ctx, "list-notifications", err)
		}
		unread, err := h.engine.UnreadCount(ctx, principal.User.ID)
		if err != nil {
			return nil, h.fail(ctx, "list-notifications", err)
		}
		return &struct {
			Body NotificationListResponse `json:"body"`
		}{Body: NotificationListResponse{Items: nonNilSlice(items), Unread: unread}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "unread-notification-count",
		Method:      http.MethodGet,
		Path:        "/notifications/unread-count",
		Summary:     "Count unread notifications",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CountResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := h.engine.UnreadCount(ctx, principal.User.ID)
		if err != nil {
			return nil, h.fail(ctx, "unread-notification-count", err)
		}
		return &struct {
			Body CountResponse `json:"body"`
		}{Body: CountResponse{Count: n}}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "mark-notification-read",
		Method:        http.MethodPost,
		Path:          "/notifications/{id}/read",
		Summary:       "Mark one notification read",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusUnauthorized,
			http.StatusNotFound,
		},
	}, func(ctx context.Context, input *struct {
		ID int64 `path:"id"`
	}) (*struct{}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		ok, err := h.engine.MarkNotificationRead(ctx, input.ID, principal.User.ID)
		if err != nil {
			return nil, h.fail(ctx, "mark-notification-read", err)
		}
		if !ok {
			return nil, notFound()
		}
		return &struct{}{}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "mark-all-notifications-read",
		Method:      http.MethodPost,
		Path:        "/notifications/read-all",
		Summary:     "Mark every notification read",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body CountResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		n, err := h.engine.MarkAllNotificationsRead(ctx, principal.User.ID)
		if err != nil {
			return nil, h.fail(ctx, "mark-all-notifications-read", err)
		}
		return &struct {
			Body CountResponse `json:"body"`
		}{Body: CountResponse{Count: n}}, nil
	})
}

func (h handlers) registerDashboard(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "dashboard",
		Method:      http.MethodGet,
		Path:        "/dashboard",
		Summary:     "Dashboard summary for the caller",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body DashboardResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		s, err := h.engine.DashboardSummary(ctx, principal.User.ID)
		if err != nil {
			return nil, h.fail(ctx, "dashboard", err)
		}
		return &struct {
			Body DashboardResponse `json:"body"`
		}{Body: dashboardResponse(s, h.now())}, nil
	})
}
