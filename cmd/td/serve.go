package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taskdash/internal/app"
	"taskdash/internal/config"
	"taskdash/internal/server"
	"taskdash/internal/session"
)

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web UI, JSON API and notification feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace := viper.GetString("workspace")
			cfg, err := app.LoadConfig(workspace, viper.GetString("config"))
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("base-path") {
				cfg.Server.BasePath = basePath
			}
			if cfg.Auth.SessionSecret == "" {
				return errors.New("a session secret is required; set TASKDASH_SESSION_SECRET or auth.session_secret")
			}
			logger, err := app.NewLogger(cfg.Log, os.Stdout)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return serve(cmd.Context(), workspace, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "listen address")
	cmd.Flags().StringVar(&basePath, "base-path", config.DefaultBasePath, "JSON API base path")
	return cmd
}

func serve(ctx context.Context, workspace string, cfg *config.Config, logger *slog.Logger) error {
	ac, err := app.Open(ctx, workspace, cfg, logger)
	if err != nil {
		return err
	}
	defer ac.Close()

	store, closeStore, err := revocationStore(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	hub := server.NewHub(logger)
	go hub.Run(ctx)
	relay := &server.Relay{
		Repo:     ac.Engine.Repo,
		Hub:      hub,
		Interval: cfg.Relay.PollInterval,
		Batch:    cfg.Relay.Batch,
		Logger:   logger,
	}
	go func() {
		if err := relay.Run(ctx); err != nil {
			logger.Error("notification relay stopped", "error", err)
		}
	}()

	handler, err := server.New(server.Config{
		Engine:   ac.Engine,
		BasePath: cfg.Server.BasePath,
		Auth: server.AuthConfig{
			Codec:         session.Codec{Secret: []byte(cfg.Auth.SessionSecret), TTL: cfg.Auth.SessionTTL},
			Store:         store,
			SecureCookies: cfg.Server.SecureCookies,
			Sliding:       cfg.Auth.Sliding,
		},
		Logger: logger,
		Hub:    hub,
	})
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("serving taskdash",
			"addr", cfg.Server.Addr,
			"openapi", cfg.Server.BasePath+"/openapi.json",
			"docs", "/docs",
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer stop()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// revocationStore picks Redis when an address is configured and falls back to
// process memory otherwise.
func revocationStore(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (session.Store, func(), error) {
	if cfg.Addr == "" {
		logger.Warn("redis not configured; revoked sessions are kept in memory")
		return session.NewMemoryStore(), func() {}, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	logger.Info("redis session store connected", "addr", cfg.Addr, "db", cfg.DB)
	store := session.NewRedisStore(session.RedisStoreConfig{Client: client, KeyPrefix: cfg.KeyPrefix})
	return store, func() { _ = client.Close() }, nil
}
