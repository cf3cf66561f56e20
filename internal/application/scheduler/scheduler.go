// Package scheduler triggers reconciliation passes on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	appsync "github.com/papercost/papercost-backend/internal/application/sync"
)

// Syncer is the single operation the scheduler drives.
type Syncer interface {
	Sync(ctx context.Context) (*appsync.SyncResult, error)
}

// Scheduler runs background syncs until its context is cancelled. A pass
// that fails is logged and the loop keeps going; overlapping triggers are
// already rejected by the sync service itself.
type Scheduler struct {
	syncer       Syncer
	interval     time.Duration
	runOnStartup bool
	logger       *slog.Logger
	done         chan struct{}
	cancel       context.CancelFunc
}

func New(syncer Syncer, interval time.Duration, runOnStartup bool, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:       syncer,
		interval:     interval,
		runOnStartup: runOnStartup,
		logger:       logger,
		done:         make(chan struct{}),
	}
}

// Start launches the background loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)
	go s.loop(ctx)
}

// Stop cancels the loop and waits for it to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	s.logger.Info("scheduler started", "system", "scheduler",
		"interval", s.interval.String(), "run_on_startup", s.runOnStartup)

	if s.runOnStartup {
		s.runOnce(ctx)
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", "system", "scheduler")
			return
		case <-ticker.C:
			s.runOnce(ctx)
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.syncer.Sync(ctx)
	switch {
	case errors.Is(err, appsync.ErrSyncInProgress):
		s.logger.Debug("scheduled sync skipped, another run is active", "system", "scheduler")
	case err != nil:
		s.logger.Error("scheduled sync failed", "system", "scheduler", "error", err)
	default:
		s.logger.Info("scheduled sync finished", "system", "scheduler",
			"checked", result.CheckedDocs, "new", result.NewInvoices,
			"updated", result.UpdatedInvoices, "errors", result.Errors.Count)
	}
}
