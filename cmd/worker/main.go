// Command worker runs the scheduled-campaign sweep without the HTTP API.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/ignite/mailroom/internal/app"
	"github.com/ignite/mailroom/internal/config"
	"github.com/ignite/mailroom/internal/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config file")
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger.Init("mailroom-worker", cfg.LogLevel)
	defer logger.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if *once {
		res, err := a.Scheduler.ProcessDue(ctx)
		if err != nil {
			logger.Error("sweep failed", "error", err)
			os.Exit(1)
		}
		logger.Info("sweep finished", "processed", res.ProcessedCount, "failed", res.FailedCount)
		return
	}

	if err := a.Scheduler.Start(ctx); err != nil {
		logger.Error("failed to start scheduler", "error", err)
		os.Exit(1)
	}
	logger.Info("worker running", "interval", cfg.Scheduler.Interval().String())

	<-ctx.Done()
	logger.Info("shutting down worker")
	a.Scheduler.Stop()
	logger.Info("worker stopped")
}
