package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"taskdash/internal/domain"
	"taskdash/internal/engine"
	"taskdash/internal/repo"
	"taskdash/internal/session"
)

// AuthConfig controls how requests are authenticated.
type AuthConfig struct {
	Codec         session.Codec
	Store         session.Store
	SecureCookies bool
	// Sliding re-issues the session cookie once half its lifetime is used.
	Sliding bool
}

// Principal is the authenticated caller.
type Principal struct {
	User   domain.User
	Source string
	// Claims is set for session and bearer tokens.
	Claims *session.Claims
}

const (
	sourceSession = "session"
	sourceBearer  = "bearer"
	sourceAPIKey  = "api_key"
)

var (
	errNoCredentials      = errors.New("authentication required")
	errInvalidCredentials = errors.New("invalid credentials")
)

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

func principalFromRequest(ctx context.Context) (Principal, huma.StatusError) {
	if p, ok := principalFromContext(ctx); ok && p.User.ID > 0 {
		return p, nil
	}
	return Principal{}, newAPIError(http.StatusUnauthorized, "unauthorized", "authentication required", nil)
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

type authenticator struct {
	cfg    AuthConfig
	engine engine.Engine
}

// authenticate resolves the caller from, in order, a bearer token, an API
// key or the session cookie.
func (a authenticator) authenticate(r *http.Request) (Principal, error) {
	ctx := r.Context()
	if authz := strings.TrimSpace(r.Header.Get("Authorization")); authz != "" {
		token, ok := bearerToken(authz)
		if !ok {
			return Principal{}, errInvalidCredentials
		}
		return a.fromToken(ctx, token, sourceBearer)
	}
	if key := strings.TrimSpace(r.Header.Get("X-Api-Key")); key != "" {
		u, err := a.engine.UserForAPIKey(ctx, key)
		if errors.Is(err, repo.ErrNotFound) {
			return Principal{}, errInvalidCredentials
		}
		if err != nil {
			return Principal{}, err
		}
		return Principal{User: u, Source: sourceAPIKey}, nil
	}
	if raw := session.FromRequest(r); raw != "" {
		return a.fromToken(ctx, raw, sourceSession)
	}
	return Principal{}, errNoCredentials
}

func (a authenticator) fromToken(ctx context.Context, raw, source string) (Principal, error) {
	claims, err := a.cfg.Codec.Parse(raw)
	if err != nil {
		return Principal{}, errInvalidCredentials
	}
	revoked, err := a.cfg.Store.IsRevoked(ctx, claims.ID)
	if err != nil {
		return Principal{}, err
	}
	if revoked {
		return Principal{}, errInvalidCredentials
	}
	userID, err := claims.UserID()
	if err != nil {
		return Principal{}, errInvalidCredentials
	}
	// The role is read from the database so role changes apply immediately.
	u, err := a.engine.GetUser(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return Principal{}, errInvalidCredentials
	}
	if err != nil {
		return Principal{}, err
	}
	return Principal{User: u, Source: source, Claims: &claims}, nil
}

// renew re-issues the session cookie when sliding sessions are on and the
// token is past half its lifetime.
func (a authenticator) renew(w http.ResponseWriter, p Principal) {
	if !a.cfg.Sliding || p.Source != sourceSession || p.Claims == nil || !a.cfg.Codec.NeedsRenewal(*p.Claims) {
		return
	}
	token, claims, err := a.cfg.Codec.Issue(p.User)
	if err != nil {
		return
	}
	session.SetCookie(w, token, claims.ExpiresAt.Time, a.cfg.SecureCookies)
}

func publicAPIPaths(basePath string) []string {
	return []string{
		path.Join(basePath, "health"),
		path.Join(basePath, "auth/login"),
		path.Join(basePath, "openapi.json"),
	}
}

func newAuthMiddleware(basePath string, cfg AuthConfig, e engine.Engine, logger *slog.Logger) func(http.Handler) http.Handler {
	a := authenticator{cfg: cfg, engine: e}
	public := map[string]bool{"/login": true, "/docs": true}
	for _, p := range publicAPIPaths(basePath) {
		public[p] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if public[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			isPage := !strings.HasPrefix(req.URL.Path, basePath+"/") && !strings.HasPrefix(req.URL.Path, "/ws/")

			principal, err := a.authenticate(req)
			switch {
			case err == nil:
			case errors.Is(err, errNoCredentials), errors.Is(err, errInvalidCredentials):
				if isPage {
					if errors.Is(err, errInvalidCredentials) {
						session.ClearCookie(w, cfg.SecureCookies)
					}
					http.Redirect(w, req, "/login", http.StatusSeeOther)
					return
				}
				code := "unauthorized"
				if errors.Is(err, errInvalidCredentials) {
					code = "invalid_credentials"
				}
				respondStatusError(w, newAPIError(http.StatusUnauthorized, code, err.Error(), nil))
				return
			default:
				logger.ErrorContext(req.Context(), "authentication failed", "error", err)
				respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", "internal error", nil))
				return
			}
			a.renew(w, principal)
			next.ServeHTTP(w, req.WithContext(withPrincipal(req.Context(), principal)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}

// login issues a session for the user with email.
func (h handlers) login(ctx context.Context, email string) (domain.User, string, time.Time, error) {
	u, err := h.engine.GetUserByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		return domain.User{}, "", time.Time{}, err
	}
	token, claims, err := h.auth.Codec.Issue(u)
	if err != nil {
		return domain.User{}, "", time.Time{}, err
	}
	h.logger.InfoContext(ctx, "user logged in", "user_id", u.ID)
	return u, token, claims.ExpiresAt.Time, nil
}

// logout revokes the caller's token until it would have expired anyway.
func (h handlers) logout(ctx context.Context, p Principal) error {
	if p.Claims == nil || p.Claims.ExpiresAt == nil {
		return nil
	}
	return h.auth.Store.Revoke(ctx, p.Claims.ID, p.Claims.ExpiresAt.Time)
}

func (h handlers) registerAuth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "login",
		Method:      http.MethodPost,
		Path:        "/auth/login",
		Summary:     "Log in by email and receive a session",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, input *struct {
		Body LoginRequest `json:"body"`
	}) (*struct {
		SetCookie http.Cookie   `header:"Set-Cookie"`
		Body      LoginResponse `json:"body"`
	}, error) {
		u, token, expires, err := h.login(ctx, input.Body.Email)
		if errors.Is(err, repo.ErrNotFound) {
			return nil, newAPIError(http.StatusUnauthorized, "invalid_credentials", "unknown email", nil)
		}
		if err != nil {
			return nil, h.fail(ctx, "login", err)
		}
		return &struct {
			SetCookie http.Cookie   `header:"Set-Cookie"`
			Body      LoginResponse `json:"body"`
		}{
			SetCookie: session.Cookie(token, expires, h.auth.SecureCookies),
			Body:      LoginResponse{Token: token, ExpiresAt: expires, User: u},
		}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "logout",
		Method:        http.MethodPost,
		Path:          "/auth/logout",
		Summary:       "Revoke the current session",
		DefaultStatus: http.StatusNoContent,
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		SetCookie http.Cookie `header:"Set-Cookie"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if err := h.logout(ctx, principal); err != nil {
			return nil, h.fail(ctx, "logout", err)
		}
		return &struct {
			SetCookie http.Cookie `header:"Set-Cookie"`
		}{SetCookie: session.ExpiredCookie(h.auth.SecureCookies)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "me",
		Method:      http.MethodGet,
		Path:        "/me",
		Summary:     "Current user",
		Errors: []int{
			http.StatusUnauthorized,
		},
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body MeResponse `json:"body"`
	}, error) {
		principal, authErr := principalFromRequest(ctx)
		if authErr != nil {
			return nil, authErr
		}
		return &struct {
			Body MeResponse `json:"body"`
		}{Body: MeResponse{User: principal.User, Source: principal.Source}}, nil
	})
}
