package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/utafrali/WholesaleGo/internal/app"
	"github.com/utafrali/WholesaleGo/internal/config"
	"github.com/utafrali/WholesaleGo/pkg/logger"
)

const usage = "usage: server [serve|migrate]"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}
	log := logger.New("purchasing-service", cfg.LogLevel)

	command := "serve"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, command, cfg, log); err != nil {
		log.Error("purchasing service failed",
			slog.String("command", command),
			slog.String("error", err.Error()),
		)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, command string, cfg *config.Config, log *slog.Logger) error {
	switch command {
	case "migrate":
		return app.Migrate(ctx, cfg, log)
	case "serve":
	default:
		return fmt.Errorf("unknown command %q, %s", command, usage)
	}

	log.Info("starting purchasing service",
		slog.String("environment", cfg.Environment),
		slog.Int("http_port", cfg.HTTPPort),
		slog.Bool("redis_lock", cfg.RedisURL != ""),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return fmt.Errorf("initialize application: %w", err)
	}
	// Run blocks until ctx is canceled and shutdown completes.
	if err := application.Run(ctx); err != nil {
		return err
	}

	log.Info("purchasing service stopped")
	return nil
}
