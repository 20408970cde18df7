package engine

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"taskdash/internal/domain"
	"taskdash/internal/engine/auth"
	"taskdash/internal/repo"
)

func (e Engine) requireUser(ctx context.Context, field string, id int64) error {
	if _, err := e.Repo.GetUser(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return invalid(field, "user %d not found", id)
		}
		return err
	}
	return nil
}

type UserCreateOptions struct {
	Email       string
	DisplayName string
	Role        domain.Role
	Department  string
}

func (e Engine) CreateUser(ctx context.Context, opts UserCreateOptions) (domain.User, error) {
	email := strings.TrimSpace(opts.Email)
	if email == "" || !strings.Contains(email, "@") {
		return domain.User{}, invalid("email", "a valid email is required")
	}
	if opts.Role == "" {
		opts.Role = domain.RoleEmployee
	}
	if !opts.Role.Valid() {
		return domain.User{}, invalid("role", "unknown role %q", opts.Role)
	}
	name := strings.TrimSpace(opts.DisplayName)
	if name == "" {
		name = email
	}
	if _, err := e.Repo.GetUserByEmail(ctx, email); err == nil {
		return domain.User{}, invalid("email", "%s is already registered", email)
	} else if !errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, err
	}
	u := domain.User{
		Email:       email,
		DisplayName: name,
		Role:        opts.Role,
		Department:  strings.TrimSpace(opts.Department),
		CreatedAt:   e.now(),
	}
	id, err := e.Repo.InsertUser(ctx, nil, u)
	if err != nil {
		return domain.User{}, fmt.Errorf("insert user: %w", err)
	}
	u.ID = id
	return u, nil
}

func (e Engine) GetUser(ctx context.Context, id int64) (domain.User, error) {
	return e.Repo.GetUser(ctx, id)
}

func (e Engine) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	return e.Repo.GetUserByEmail(ctx, email)
}

// ListUsers lists users, optionally only those holding role.
func (e Engine) ListUsers(ctx context.Context, role domain.Role) ([]domain.User, error) {
	if role != "" && !role.Valid() {
		return nil, invalid("role", "unknown role %q", role)
	}
	return e.Repo.ListUsers(ctx, role)
}

// UpdateUserRole changes userID's role. Only Administrators may do this.
func (e Engine) UpdateUserRole(ctx context.Context, actorID, userID int64, role domain.Role) (domain.User, error) {
	if !role.Valid() {
		return domain.User{}, invalid("role", "unknown role %q", role)
	}
	actor, err := e.Repo.GetUser(ctx, actorID)
	if err != nil {
		return domain.User{}, err
	}
	if err := auth.Administrator.Require(actor.Role); err != nil {
		return domain.User{}, err
	}
	if err := e.Repo.UpdateUserRole(ctx, nil, userID, role); err != nil {
		return domain.User{}, err
	}
	e.log().Info("user role changed", "user_id", userID, "role", role, "by", actorID)
	return e.Repo.GetUser(ctx, userID)
}

// CreateAPIKey issues a new key for userID. The plaintext key is returned
// once; only its hash is stored.
func (e Engine) CreateAPIKey(ctx context.Context, userID int64, name string) (string, domain.APIKey, error) {
	if err := e.requireUser(ctx, "user_id", userID); err != nil {
		return "", domain.APIKey{}, err
	}
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", domain.APIKey{}, err
	}
	plain := "td_" + hex.EncodeToString(buf)
	key := domain.APIKey{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      strings.TrimSpace(name),
		KeyHash:   repo.HashAPIKey(plain),
		CreatedAt: e.now(),
	}
	if err := e.Repo.InsertAPIKey(ctx, nil, key); err != nil {
		return "", domain.APIKey{}, fmt.Errorf("insert api key: %w", err)
	}
	return plain, key, nil
}

func (e Engine) ListAPIKeys(ctx context.Context, userID int64) ([]domain.APIKey, error) {
	return e.Repo.ListAPIKeys(ctx, userID)
}

func (e Engine) RevokeAPIKey(ctx context.Context, id string) error {
	return e.Repo.DeleteAPIKey(ctx, id)
}

// UserForAPIKey resolves the owner of a plaintext key.
func (e Engine) UserForAPIKey(ctx context.Context, plain string) (domain.User, error) {
	key, err := e.Repo.GetAPIKeyByHash(ctx, repo.HashAPIKey(plain))
	if err != nil {
		return domain.User{}, err
	}
	return e.Repo.GetUser(ctx, key.UserID)
}
