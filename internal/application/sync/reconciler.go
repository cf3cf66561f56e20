// Package sync reconciles documents fetched from the paperless archive with
// the stored invoice rows. The merge itself is pure: the Reconciler decides
// what to insert and update, the Service wires it between the archive client
// and storage and commits the whole pass atomically.
package sync

import (
	"log/slog"
	"time"

	"github.com/papercost/papercost-backend/internal/adapters/paperless"
	"github.com/papercost/papercost-backend/internal/domain/extractor"
	"github.com/papercost/papercost-backend/internal/domain/provenance"
	"github.com/papercost/papercost-backend/internal/infrastructure/storage"
)

// Extractor derives invoice fields from a document's OCR text. Errors are
// isolated per document: one bad document never aborts the pass.
type Extractor func(text string, correspondent *string) (*extractor.Result, error)

// DefaultExtractor wraps the heuristic extraction with a configured fallback
// currency.
func DefaultExtractor(defaultCurrency string) Extractor {
	return func(text string, correspondent *string) (*extractor.Result, error) {
		return extractor.Extract(text, correspondent, defaultCurrency), nil
	}
}

// Reconciler merges fetched documents against existing rows. It performs no
// I/O; the outcome lists what a commit must insert and update.
type Reconciler struct {
	extract Extractor
	logger  *slog.Logger
}

func NewReconciler(extract Extractor, logger *slog.Logger) *Reconciler {
	return &Reconciler{extract: extract, logger: logger}
}

// Reconcile walks the fetched documents and sorts each one into exactly one
// bucket: new, updated, skipped or errored. Documents without an external id
// are dropped silently and count toward nothing. Existing rows are never
// mutated; updates are built on copies.
func (r *Reconciler) Reconcile(docs []paperless.Document, existing map[int64]*storage.Invoice, now time.Time) *Outcome {
	out := &Outcome{}

	for _, doc := range docs {
		if doc.ID == 0 {
			continue
		}
		out.Checked++

		extracted, err := r.extract(doc.Content, doc.Correspondent)
		if err != nil {
			out.ErrorCount++
			if out.FirstError == nil {
				text := err.Error()
				out.FirstError = &text
			}
			r.logger.Warn("document failed extraction",
				"system", "sync", "doc_id", doc.ID, "error", err)
			continue
		}

		current, ok := existing[doc.ID]
		if !ok {
			out.Inserts = append(out.Inserts, r.newInvoice(doc, extracted, now))
			out.New++
			continue
		}

		if updated, changed := r.mergeInvoice(current, doc, extracted, now); changed {
			out.Updates = append(out.Updates, updated)
			out.Updated++
		} else {
			out.Skipped++
		}
	}

	return out
}

// newInvoice builds a fresh row: visible values mirror the extraction and
// both fields start under automatic tracking.
func (r *Reconciler) newInvoice(doc paperless.Document, extracted *extractor.Result, now time.Time) *storage.Invoice {
	return &storage.Invoice{
		Source:        "paperless",
		DocID:         doc.ID,
		DocCreated:    parseCreated(doc.Created),
		Title:         doc.Title,
		Vendor:        extracted.Vendor,
		VendorAuto:    extracted.Vendor,
		VendorSource:  provenance.SourceAuto,
		Amount:        extracted.Amount,
		AmountAuto:    extracted.Amount,
		AmountSource:  provenance.SourceAuto,
		Currency:      extracted.Currency,
		Confidence:    extracted.Confidence,
		NeedsReview:   provenance.DeriveNeedsReview(provenance.SourceAuto, provenance.SourceAuto, extracted.NeedsReview),
		ExtractedAt:   now,
		UpdatedAt:     now,
		DebugJSON:     extracted.Debug.JSON(),
		Correspondent: doc.Correspondent,
		DocumentType:  doc.DocumentType,
		OCRText:       doc.Content,
	}
}

// mergeInvoice applies a fresh extraction to a copy of the stored row and
// reports whether anything material changed. Timestamps are only refreshed
// when they did, so an unchanged document re-syncs as a true no-op.
func (r *Reconciler) mergeInvoice(current *storage.Invoice, doc paperless.Document, extracted *extractor.Result, now time.Time) (*storage.Invoice, bool) {
	updated := *current
	changed := false

	vendorField, vendorChanged := updated.VendorField().ApplyExtraction(extracted.Vendor)
	updated.SetVendorField(vendorField)
	amountField, amountChanged := updated.AmountField().ApplyExtraction(extracted.Amount)
	updated.SetAmountField(amountField)
	changed = vendorChanged || amountChanged

	needsReview := provenance.DeriveNeedsReview(updated.VendorSource, updated.AmountSource, extracted.NeedsReview)
	if updated.NeedsReview != needsReview {
		updated.NeedsReview = needsReview
		changed = true
	}

	if !strPtrEqual(updated.Title, doc.Title) {
		updated.Title = doc.Title
		changed = true
	}
	if created := parseCreated(doc.Created); !timePtrEqual(updated.DocCreated, created) {
		updated.DocCreated = created
		changed = true
	}
	if updated.Currency != extracted.Currency {
		updated.Currency = extracted.Currency
		changed = true
	}
	if updated.Confidence != extracted.Confidence {
		updated.Confidence = extracted.Confidence
		changed = true
	}
	if debugJSON := extracted.Debug.JSON(); !strPtrEqual(updated.DebugJSON, debugJSON) {
		updated.DebugJSON = debugJSON
		changed = true
	}
	if !strPtrEqual(updated.Correspondent, doc.Correspondent) {
		updated.Correspondent = doc.Correspondent
		changed = true
	}
	if !strPtrEqual(updated.DocumentType, doc.DocumentType) {
		updated.DocumentType = doc.DocumentType
		changed = true
	}
	if updated.OCRText != doc.Content {
		updated.OCRText = doc.Content
		changed = true
	}

	if changed {
		updated.ExtractedAt = now
		updated.UpdatedAt = now
	}
	return &updated, changed
}

// parseCreated parses the archive timestamp defensively; malformed values
// just leave the column empty.
func parseCreated(created *string) *time.Time {
	if created == nil {
		return nil
	}
	t, err := paperless.ParseTimestamp(*created)
	if err != nil {
		return nil
	}
	return &t
}

func strPtrEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}
