package sync

import (
	"time"

	"github.com/papercost/papercost-backend/internal/infrastructure/storage"
)

// SyncResult is the caller-facing outcome of one reconciliation pass. The
// counters satisfy checked = new + updated + skipped + errors.
type SyncResult struct {
	RunID           int64      `json:"run_id"`
	StartedAt       time.Time  `json:"started_at"`
	FinishedAt      time.Time  `json:"finished_at"`
	DurationMs      int64      `json:"duration_ms"`
	CheckedDocs     int        `json:"checked_docs"`
	NewInvoices     int        `json:"new_invoices"`
	UpdatedInvoices int        `json:"updated_invoices"`
	SkippedInvoices int        `json:"skipped_invoices"`
	Errors          SyncErrors `json:"errors"`
}

// SyncErrors summarizes per-document failures of a pass. Only the first
// error text is retained; the count covers all of them.
type SyncErrors struct {
	Count      int     `json:"count"`
	FirstError *string `json:"first_error,omitempty"`
}

// ResultFromRun rebuilds the result shape from a persisted ledger entry.
func ResultFromRun(run *storage.SyncRun) *SyncResult {
	return &SyncResult{
		RunID:           run.ID,
		StartedAt:       run.StartedAt,
		FinishedAt:      run.FinishedAt,
		DurationMs:      run.DurationMs,
		CheckedDocs:     run.CheckedDocs,
		NewInvoices:     run.NewInvoices,
		UpdatedInvoices: run.UpdatedInvoices,
		SkippedInvoices: run.SkippedInvoices,
		Errors:          SyncErrors{Count: run.ErrorCount, FirstError: run.LastErrorText},
	}
}

// Outcome is the pure merge result before anything touches storage.
type Outcome struct {
	Inserts []*storage.Invoice
	Updates []*storage.Invoice

	Checked    int
	New        int
	Updated    int
	Skipped    int
	ErrorCount int
	FirstError *string
}
