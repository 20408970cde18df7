package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"taskdash/internal/config"
	"taskdash/internal/db"
	"taskdash/internal/domain"
	"taskdash/internal/engine"
	"taskdash/internal/migrate"
	"taskdash/internal/repo"
)

// Context bundles what a command needs once the workspace is resolved.
type Context struct {
	Workspace string
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	Logger    *slog.Logger
}

// LoadEnvFile loads <workspace>/.env into the process environment. Variables
// already set win; a missing file is not an error.
func LoadEnvFile(workspace string) error {
	if workspace == "" {
		workspace = "."
	}
	path := filepath.Join(workspace, ".env")
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// LoadConfig reads the workspace config (or the explicit path), then applies
// environment overrides.
func LoadConfig(workspace, path string) (*config.Config, error) {
	if err := LoadEnvFile(workspace); err != nil {
		return nil, err
	}
	var (
		cfg *config.Config
		err error
	)
	if path != "" {
		cfg, err = config.FromFile(path)
	} else {
		cfg, err = config.LoadOptional(workspace)
	}
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// NewLogger builds the slog logger described by cfg.
func NewLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level, AddSource: level == slog.LevelDebug}
	var handler slog.Handler
	switch cfg.Format {
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		handler = slog.NewJSONHandler(w, opts)
	}
	return slog.New(handler), nil
}

// Open prepares the workspace database, migrates it and builds the engine.
func Open(ctx context.Context, workspace string, cfg *config.Config, logger *slog.Logger) (*Context, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(ctx, db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Context{
		Workspace: workspace,
		Config:    cfg,
		DB:        conn,
		Engine:    engine.New(conn, logger),
		Logger:    logger,
	}, nil
}

func (c *Context) Close() error {
	return c.DB.Close()
}

// ResolveActor finds the acting user from a numeric id or an email address.
func (c *Context) ResolveActor(ctx context.Context, ref string) (domain.User, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return domain.User{}, errors.New("acting user not specified; use --as <user-id|email>")
	}
	var (
		u   domain.User
		err error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		u, err = c.Engine.GetUser(ctx, id)
	} else {
		u, err = c.Engine.GetUserByEmail(ctx, ref)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, fmt.Errorf("user %q not found", ref)
	}
	return u, err
}
