// The api binary runs the HTTP backend: storage, the sync service, the
// optional background scheduler and the REST API.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/papercost/papercost-backend/internal/adapters/paperless"
	"github.com/papercost/papercost-backend/internal/api"
	"github.com/papercost/papercost-backend/internal/application/scheduler"
	appsync "github.com/papercost/papercost-backend/internal/application/sync"
	"github.com/papercost/papercost-backend/internal/infrastructure/config"
	"github.com/papercost/papercost-backend/internal/infrastructure/logging"
	"github.com/papercost/papercost-backend/internal/infrastructure/storage"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Configuration file path")
	flag.Parse()

	cfg := config.LoadOrEnvWithPath(*configFile)
	logger := logging.NewLogger(cfg.Logging)

	store, err := storage.NewStorage(cfg.Storage.DatabasePath)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer func() { _ = store.Close() }()

	archive := paperless.NewClient(cfg.Paperless.BaseURL, cfg.Paperless.Token, logger)
	syncService := appsync.NewService(store, archive, cfg, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Scheduler.Enabled {
		interval := time.Duration(cfg.Scheduler.IntervalMinutes) * time.Minute
		sched := scheduler.New(syncService, interval, cfg.Scheduler.RunOnStartup, logger)
		sched.Start(ctx)
		defer sched.Stop()
	}

	server := api.NewServer(cfg, store, syncService, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- server.Start() }()

	select {
	case <-ctx.Done():
		logger.Info("shutting down", slog.String("system", "api"))
	case err := <-errCh:
		if err != nil {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
