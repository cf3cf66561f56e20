package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/papercost/papercost-backend/internal/adapters/paperless"
	"github.com/papercost/papercost-backend/internal/infrastructure/config"
	"github.com/papercost/papercost-backend/internal/infrastructure/storage"
)

var (
	// ErrSyncInProgress is returned when a pass is requested while another
	// one is still running. Runs never overlap.
	ErrSyncInProgress = errors.New("a sync is already running")

	// ErrNotConfigured is returned when the paperless connection settings
	// are incomplete.
	ErrNotConfigured = errors.New("paperless connection is not configured")
)

// ArchiveClient is the slice of the paperless client the service needs.
type ArchiveClient interface {
	GetTagIDByName(ctx context.Context, name string) (int64, error)
	ListDocuments(ctx context.Context, tagID int64, cutoff time.Time, pageSize int) ([]paperless.Document, error)
}

// Service runs reconciliation passes end to end: fetch, merge, commit.
type Service struct {
	repo       storage.Repository
	archive    ArchiveClient
	cfg        *config.Config
	reconciler *Reconciler
	logger     *slog.Logger
	running    atomic.Bool
}

func NewService(repo storage.Repository, archive ArchiveClient, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		repo:       repo,
		archive:    archive,
		cfg:        cfg,
		reconciler: NewReconciler(DefaultExtractor(cfg.Sync.DefaultCurrency), logger),
		logger:     logger,
	}
}

// NewServiceWithReconciler injects a custom reconciler, used by tests and
// by callers that swap the extraction heuristics.
func NewServiceWithReconciler(repo storage.Repository, archive ArchiveClient, cfg *config.Config, reconciler *Reconciler, logger *slog.Logger) *Service {
	return &Service{repo: repo, archive: archive, cfg: cfg, reconciler: reconciler, logger: logger}
}

// Sync executes one reconciliation pass. Fetch failures abort the pass with
// no ledger entry; per-document failures are counted and committed with the
// rest. The commit is atomic: either all row changes and the run entry land,
// or none do.
func (s *Service) Sync(ctx context.Context) (*SyncResult, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, ErrSyncInProgress
	}
	defer s.running.Store(false)

	if err := s.cfg.ValidatePaperless(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}

	startedAt := time.Now().UTC()
	started := time.Now()

	s.logger.Info("sync started", "system", "sync", "tag", s.cfg.Paperless.ProjectTag)

	tagID, err := s.archive.GetTagIDByName(ctx, s.cfg.Paperless.ProjectTag)
	if err != nil {
		return nil, fmt.Errorf("resolving project tag: %w", err)
	}

	cutoff := startedAt.AddDate(0, 0, -s.cfg.Sync.LookbackDays)
	docs, err := s.archive.ListDocuments(ctx, tagID, cutoff, s.cfg.Sync.PageSize)
	if err != nil {
		return nil, fmt.Errorf("fetching documents: %w", err)
	}

	existing := map[int64]*storage.Invoice{}
	if ids := docIDs(docs); len(ids) > 0 {
		existing, err = s.repo.GetInvoicesByDocIDs(ids)
		if err != nil {
			return nil, fmt.Errorf("loading existing invoices: %w", err)
		}
	}

	outcome := s.reconciler.Reconcile(docs, existing, startedAt)

	finishedAt := time.Now().UTC()
	run := &storage.SyncRun{
		StartedAt:       startedAt,
		FinishedAt:      finishedAt,
		DurationMs:      time.Since(started).Milliseconds(),
		CheckedDocs:     outcome.Checked,
		NewInvoices:     outcome.New,
		UpdatedInvoices: outcome.Updated,
		SkippedInvoices: outcome.Skipped,
		ErrorCount:      outcome.ErrorCount,
		LastErrorText:   outcome.FirstError,
	}

	if err := s.repo.CommitSyncBatch(outcome.Inserts, outcome.Updates, run); err != nil {
		return nil, fmt.Errorf("committing sync batch: %w", err)
	}

	s.logger.Info("sync finished", "system", "sync",
		"checked", outcome.Checked,
		"new", outcome.New,
		"updated", outcome.Updated,
		"skipped", outcome.Skipped,
		"errors", outcome.ErrorCount,
		"duration_ms", run.DurationMs)

	return ResultFromRun(run), nil
}

// ListRuns returns the most recent ledger entries, newest first.
func (s *Service) ListRuns(limit int) ([]storage.SyncRun, error) {
	return s.repo.ListSyncRuns(limit)
}

// docIDs collects the external ids of all fetched documents that have one.
func docIDs(docs []paperless.Document) []int64 {
	ids := make([]int64, 0, len(docs))
	for _, doc := range docs {
		if doc.ID != 0 {
			ids = append(ids, doc.ID)
		}
	}
	return ids
}
