package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ignite/mailroom/internal/api"
	"github.com/ignite/mailroom/internal/app"
	"github.com/ignite/mailroom/internal/auth"
	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	logger.Sync()
	os.Exit(1)
}

func main() {
	cfg, err := config.LoadFromEnv(configPath())
	if err != nil {
		fatal("failed to load config", err)
	}
	logger.Init("mailroom-server", cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		fatal("failed to initialize", err)
	}
	defer a.Close()

	if err := a.Templates.EnsureDefaults(ctx); err != nil {
		logger.Warn("seeding default templates failed", "error", err)
	}

	authManager, err := auth.NewManager(auth.Config{
		TenantID:           cfg.Auth.TenantID,
		ClientID:           cfg.Auth.ClientID,
		ClientSecret:       cfg.Auth.ClientSecret,
		PublicURL:          cfg.Auth.PublicURL,
		SessionSecret:      cfg.Auth.SessionSecret,
		CookieName:         cfg.Auth.CookieName,
		SessionTTL:         cfg.Auth.SessionTTL(),
		LocalAdminUsername: cfg.Auth.LocalAdminUsername,
		LocalAdminPassword: cfg.Auth.LocalAdminPassword,
	}, a.Users)
	if err != nil {
		fatal("failed to initialize authentication", err)
	}

	var bucketHeader api.BucketHeader
	if a.S3 != nil {
		bucketHeader = a.S3
	}
	handlers := api.NewHandlers(api.Deps{
		Campaigns: a.Campaigns,
		Sweeper:   a.Scheduler,
		Contacts:  a.Contacts,
		Groups:    a.Groups,
		Templates: a.Templates,
		Users:     a.Users,
		Uploads:   a.Uploads,
		Health:    api.NewHealthChecker(a.DB, a.Redis, bucketHeader, cfg.Uploads.S3Bucket, a.Sender),
	})
	server := api.NewServer(cfg.Server, handlers, authManager)

	if cfg.Scheduler.Enabled {
		if err := a.Scheduler.Start(ctx); err != nil {
			fatal("failed to start scheduler", err)
		}
		defer a.Scheduler.Stop()
	}

	done := make(chan os.Signal, 1)
	signal.Notify(done, os.Interrupt, syscall.SIGTERM)

	go func() {
		addr := cfg.Server.Addr()
		logger.Info("starting server", "addr", addr)
		if err := server.ListenAndServe(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fatal("server error", err)
		}
	}()

	<-done
	logger.Info("shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	logger.Info("server stopped")
}

func configPath() string {
	if p := os.Getenv("CONFIG_PATH"); p != "" {
		return p
	}
	return "config/config.yaml"
}
