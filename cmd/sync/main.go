// The sync binary runs a single reconciliation pass and prints the result,
// useful for cron jobs and debugging without the API server.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/papercost/papercost-backend/internal/adapters/paperless"
	appsync "github.com/papercost/papercost-backend/internal/application/sync"
	"github.com/papercost/papercost-backend/internal/infrastructure/config"
	"github.com/papercost/papercost-backend/internal/infrastructure/logging"
	"github.com/papercost/papercost-backend/internal/infrastructure/storage"
)

func main() {
	var (
		configFile = flag.String("config", "config.yaml", "Configuration file path")
		timeout    = flag.Duration("timeout", 5*time.Minute, "Abort the pass after this duration")
		showRuns   = flag.Int("runs", 0, "Print the last N sync runs instead of syncing")
	)
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
	service := appsync.NewService(store, archive, cfg, logger)

	if *showRuns > 0 {
		printRuns(service, *showRuns, logger)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	result, err := service.Sync(ctx)
	if err != nil {
		logger.Error("sync failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("checked=%d new=%d updated=%d skipped=%d errors=%d duration=%dms\n",
		result.CheckedDocs, result.NewInvoices, result.UpdatedInvoices,
		result.SkippedInvoices, result.Errors.Count, result.DurationMs)
	if result.Errors.FirstError != nil {
		fmt.Printf("first error: %s\n", *result.Errors.FirstError)
	}
	if result.Errors.Count > 0 {
		os.Exit(2)
	}
}

func printRuns(service *appsync.Service, limit int, logger *slog.Logger) {
	runs, err := service.ListRuns(limit)
	if err != nil {
		logger.Error("failed to list runs", slog.String("error", err.Error()))
		os.Exit(1)
	}
	for _, run := range runs {
		fmt.Printf("#%d %s checked=%d new=%d updated=%d skipped=%d errors=%d\n",
			run.ID, run.StartedAt.Format(time.RFC3339),
			run.CheckedDocs, run.NewInvoices, run.UpdatedInvoices,
			run.SkippedInvoices, run.ErrorCount)
	}
}
