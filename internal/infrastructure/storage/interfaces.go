package storage

import "time"

// Repository defines the complete storage interface.
// This interface allows swapping implementations and makes testing with the
// in-memory repository straightforward.
type Repository interface {
	InvoiceRepository
	ManualCostRepository
	SyncRunRepository
	ReportRepository
	Close() error
}

// InvoiceRepository handles reconciled invoice rows.
type InvoiceRepository interface {
	// GetInvoicesByDocIDs performs the single bulk lookup a reconciliation
	// pass needs: existing invoices keyed by external document id.
	GetInvoicesByDocIDs(ids []int64) (map[int64]*Invoice, error)

	// GetInvoice retrieves one invoice by internal id, nil if absent.
	GetInvoice(id int64) (*Invoice, error)

	// ListInvoices returns invoices matching the given filters.
	ListInvoices(filters InvoiceFilters) ([]*Invoice, error)

	// UpdateInvoice persists user-facing edits (provenance flips, review
	// resolution, field resets) outside of a sync pass.
	UpdateInvoice(invoice *Invoice) error
}

// InvoiceFilters defines filters for listing invoices.
type InvoiceFilters struct {
	NeedsReview *bool  // nil = no filter
	Search      string // matches vendor or title, case-insensitive
	Sort        string // date_desc (default), date_asc, amount_desc, amount_asc, vendor_asc
}

// ManualCostRepository handles hand-entered cost lines.
type ManualCostRepository interface {
	CreateManualCost(item *ManualCost) error
	GetManualCost(id int64) (*ManualCost, error)
	ListManualCosts(includeArchived bool) ([]*ManualCost, error)
	UpdateManualCost(item *ManualCost) error
	ArchiveManualCost(id int64, at time.Time) error
	DeleteManualCost(id int64) error
}

// SyncRunRepository handles the reconciliation run ledger.
type SyncRunRepository interface {
	// CommitSyncBatch persists a completed reconciliation pass atomically:
	// all inserts, all updates and the run ledger entry commit together or
	// not at all. On success the run and new invoices carry their row ids.
	CommitSyncBatch(inserts, updates []*Invoice, run *SyncRun) error

	// ListSyncRuns returns the most recent runs, newest first; runs sharing
	// a start timestamp are ordered by descending id.
	ListSyncRuns(limit int) ([]SyncRun, error)

	// GetSyncRun retrieves one run by id, nil if absent.
	GetSyncRun(id int64) (*SyncRun, error)
}

// ReportRepository produces cross-source aggregates.
type ReportRepository interface {
	// GetSummary aggregates both cost sources, optionally bounded to a
	// closed date interval (nil bounds mean unbounded).
	GetSummary(start, end *time.Time) (*Summary, error)

	// ListAllCosts returns the invoice/manual-cost union used by the CSV
	// export, optionally bounded to a closed date interval.
	ListAllCosts(start, end *time.Time) ([]CostRow, error)
}
