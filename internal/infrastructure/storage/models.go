package storage

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papercost/papercost-backend/internal/domain/provenance"
)

// Invoice is one reconciled document from the paperless archive. There is at
// most one row per external document id; sync upserts, never duplicates.
type Invoice struct {
	ID     int64  `json:"id"`
	Source string `json:"source"` // always "paperless" for this table

	// DocID is the stable external document id assigned by paperless.
	DocID      int64      `json:"paperless_doc_id"`
	DocCreated *time.Time `json:"paperless_created,omitempty"`

	Title *string `json:"title,omitempty"`

	Vendor       *string           `json:"vendor,omitempty"`
	VendorAuto   *string           `json:"vendor_auto,omitempty"`
	VendorSource provenance.Source `json:"vendor_source"`

	Amount       decimal.NullDecimal `json:"amount"`
	AmountAuto   decimal.NullDecimal `json:"amount_auto"`
	AmountSource provenance.Source   `json:"amount_source"`

	Currency    string  `json:"currency"`
	Confidence  float64 `json:"confidence"`
	NeedsReview bool    `json:"needs_review"`

	ExtractedAt time.Time `json:"extracted_at"`
	UpdatedAt   time.Time `json:"updated_at"`

	DebugJSON     *string `json:"debug_json,omitempty"`
	Correspondent *string `json:"correspondent,omitempty"`
	DocumentType  *string `json:"document_type,omitempty"`
	OCRText       string  `json:"ocr_text"`
}

// VendorField bundles the vendor provenance triple for the merge rules.
func (i *Invoice) VendorField() provenance.StringField {
	return provenance.StringField{Value: i.Vendor, Shadow: i.VendorAuto, Source: i.VendorSource}
}

// SetVendorField writes a provenance triple back onto the row.
func (i *Invoice) SetVendorField(f provenance.StringField) {
	i.Vendor, i.VendorAuto, i.VendorSource = f.Value, f.Shadow, f.Source
}

// AmountField bundles the amount provenance triple for the merge rules.
func (i *Invoice) AmountField() provenance.AmountField {
	return provenance.AmountField{Value: i.Amount, Shadow: i.AmountAuto, Source: i.AmountSource}
}

// SetAmountField writes a provenance triple back onto the row.
func (i *Invoice) SetAmountField(f provenance.AmountField) {
	i.Amount, i.AmountAuto, i.AmountSource = f.Value, f.Shadow, f.Source
}

// ContextSnippet extracts the UI-facing snippet from the debug payload, if
// the extractor recorded one.
func (i *Invoice) ContextSnippet() *string {
	if i.DebugJSON == nil {
		return nil
	}
	var debug struct {
		ContextSnippet string `json:"context_snippet"`
	}
	if err := json.Unmarshal([]byte(*i.DebugJSON), &debug); err != nil || debug.ContextSnippet == "" {
		return nil
	}
	return &debug.ContextSnippet
}

// ManualCost is a hand-entered cost line. Archived rows stay queryable but
// drop out of summaries and exports.
type ManualCost struct {
	ID         int64           `json:"id"`
	Source     string          `json:"source"` // always "manual"
	Date       time.Time       `json:"date"`   // date-only granularity
	Vendor     string          `json:"vendor"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   string          `json:"currency"`
	Category   *string         `json:"category,omitempty"`
	Note       *string         `json:"note,omitempty"`
	IsArchived bool            `json:"is_archived"`
	ArchivedAt *time.Time      `json:"archived_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// SyncRun is one immutable ledger entry per reconciliation pass.
// checked_docs = new + updated + skipped + error_count always holds.
type SyncRun struct {
	ID              int64     `json:"id"`
	StartedAt       time.Time `json:"started_at"`
	FinishedAt      time.Time `json:"finished_at"`
	DurationMs      int64     `json:"duration_ms"`
	CheckedDocs     int       `json:"checked_docs"`
	NewInvoices     int       `json:"new_invoices"`
	UpdatedInvoices int       `json:"updated_invoices"`
	SkippedInvoices int       `json:"skipped_invoices"`
	ErrorCount      int       `json:"error_count"`
	LastErrorText   *string   `json:"last_error_text,omitempty"`
}

// Summary aggregates both cost sources for the reporting endpoint.
type Summary struct {
	TotalAmount      decimal.Decimal `json:"total_amount"`
	InvoiceTotal     decimal.Decimal `json:"paperless_total"`
	ManualTotal      decimal.Decimal `json:"manual_total"`
	InvoiceCount     int             `json:"invoice_count"`
	ManualCostCount  int             `json:"manual_cost_count"`
	NeedsReviewCount int             `json:"needs_review_count"`
	TopVendors       []VendorTotal   `json:"top_vendors"`
	CostsByCategory  []CategoryTotal `json:"costs_by_category"`
}

// VendorTotal is one row of the top-vendors breakdown.
type VendorTotal struct {
	Name   string          `json:"name"`
	Amount decimal.Decimal `json:"amount"`
}

// CategoryTotal is one row of the manual-cost category breakdown.
type CategoryTotal struct {
	Category string          `json:"category"`
	Amount   decimal.Decimal `json:"amount"`
}

func decimalToNull(d decimal.Decimal) decimal.NullDecimal {
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

// CostRow is one line of the combined invoice + manual cost export.
type CostRow struct {
	Date        *string             `json:"date,omitempty"`
	Source      string              `json:"source"`
	Vendor      *string             `json:"vendor,omitempty"`
	Amount      decimal.NullDecimal `json:"amount"`
	Currency    string              `json:"currency"`
	Title       *string             `json:"title,omitempty"`
	Category    *string             `json:"category,omitempty"`
	Note        *string             `json:"note,omitempty"`
	DocID       *int64              `json:"paperless_doc_id,omitempty"`
	Confidence  *float64            `json:"confidence,omitempty"`
	NeedsReview *bool               `json:"needs_review,omitempty"`
}
