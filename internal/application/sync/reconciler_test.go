package sync

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papercost/papercost-backend/internal/adapters/paperless"
	"github.com/papercost/papercost-backend/internal/domain/extractor"
	"github.com/papercost/papercost-backend/internal/domain/provenance"
	"github.com/papercost/papercost-backend/internal/infrastructure/storage"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func strPtr(s string) *string { return &s }

func boolPtr(b bool) *bool { return &b }

func amount(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func doc(id int64, content string) paperless.Document {
	return paperless.Document{
		ID:      id,
		Title:   strPtr("Rechnung"),
		Created: strPtr("2026-08-10T09:00:00Z"),
		Content: content,
	}
}

func defaultReconciler() *Reconciler {
	return NewReconciler(DefaultExtractor("EUR"), testLogger())
}

func TestReconcile_NewDocument(t *testing.T) {
	r := defaultReconciler()
	correspondent := "Poolbau Müller"
	d := doc(101, "Brutto 123,45 EUR")
	d.Correspondent = &correspondent

	now := time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC)
	out := r.Reconcile([]paperless.Document{d}, nil, now)

	assert.Equal(t, 1, out.Checked)
	assert.Equal(t, 1, out.New)
	assert.Zero(t, out.Updated)
	assert.Zero(t, out.Skipped)
	assert.Zero(t, out.ErrorCount)
	require.Len(t, out.Inserts, 1)

	inv := out.Inserts[0]
	assert.Equal(t, "paperless", inv.Source)
	assert.Equal(t, int64(101), inv.DocID)
	assert.Equal(t, provenance.SourceAuto, inv.VendorSource)
	assert.Equal(t, provenance.SourceAuto, inv.AmountSource)

	// Visible values and shadow values start out identical.
	require.NotNil(t, inv.Vendor)
	require.NotNil(t, inv.VendorAuto)
	assert.Equal(t, *inv.Vendor, *inv.VendorAuto)
	assert.Equal(t, "Poolbau Müller", *inv.Vendor)
	require.True(t, inv.Amount.Valid)
	assert.True(t, inv.Amount.Decimal.Equal(inv.AmountAuto.Decimal))
	assert.Equal(t, "123.45", inv.Amount.Decimal.String())

	assert.False(t, inv.NeedsReview)
	assert.Equal(t, now, inv.ExtractedAt)
	require.NotNil(t, inv.DocCreated)
	assert.Equal(t, "2026-08-10", inv.DocCreated.Format("2006-01-02"))
}

func TestReconcile_UnchangedDocumentSkipped(t *testing.T) {
	r := defaultReconciler()
	correspondent := "Poolbau Müller"
	d := doc(101, "Brutto 123,45 EUR")
	d.Correspondent = &correspondent
	docs := []paperless.Document{d}

	first := r.Reconcile(docs, nil, time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC))
	require.Len(t, first.Inserts, 1)
	stored := first.Inserts[0]
	stored.ID = 1

	// Running the same documents again, later, must be a no-op.
	second := r.Reconcile(docs, map[int64]*storage.Invoice{101: stored},
		time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC))

	assert.Equal(t, 1, second.Checked)
	assert.Zero(t, second.New)
	assert.Zero(t, second.Updated)
	assert.Equal(t, 1, second.Skipped)
	assert.Empty(t, second.Updates)
}

func TestReconcile_ManualVendorSurvivesResync(t *testing.T) {
	r := defaultReconciler()
	correspondent := "OCR Vendor Ltd"
	d := doc(101, "Brutto 200,00 EUR")
	d.Correspondent = &correspondent

	first := r.Reconcile([]paperless.Document{d}, nil, time.Now().UTC())
	stored := first.Inserts[0]
	stored.ID = 1

	// User fixes the vendor by hand.
	stored.SetVendorField(stored.VendorField().ApplyManualEdit(strPtr("Korrigierte GmbH")))
	stored.NeedsReview = false

	// Archive now yields a different correspondent.
	newName := "Different OCR Name"
	d.Correspondent = &newName

	out := r.Reconcile([]paperless.Document{d}, map[int64]*storage.Invoice{101: stored}, time.Now().UTC())

	require.Equal(t, 1, out.Updated)
	require.Len(t, out.Updates, 1)
	updated := out.Updates[0]

	// The manual value is frozen; only the shadow tracks the new extraction.
	require.NotNil(t, updated.Vendor)
	assert.Equal(t, "Korrigierte GmbH", *updated.Vendor)
	require.NotNil(t, updated.VendorAuto)
	assert.Equal(t, "Different OCR Name", *updated.VendorAuto)
	assert.Equal(t, provenance.SourceManual, updated.VendorSource)

	// A manual override suppresses re-flagging regardless of the signal.
	assert.False(t, updated.NeedsReview)

	// The input row was not mutated.
	assert.Equal(t, "OCR Vendor Ltd", *stored.VendorAuto)
}

func TestReconcile_ResetFieldTracksAgain(t *testing.T) {
	r := defaultReconciler()
	correspondent := "Poolbau Müller"
	d := doc(101, "Brutto 200,00 EUR")
	d.Correspondent = &correspondent

	first := r.Reconcile([]paperless.Document{d}, nil, time.Now().UTC())
	stored := first.Inserts[0]
	stored.ID = 1
	stored.SetVendorField(stored.VendorField().ApplyManualEdit(strPtr("Handkorrektur")))

	// Reset puts the field back under automatic tracking.
	stored.SetVendorField(stored.VendorField().Reset())
	assert.Equal(t, "Poolbau Müller", *stored.Vendor)

	newName := "Neuer Name AG"
	d.Correspondent = &newName
	out := r.Reconcile([]paperless.Document{d}, map[int64]*storage.Invoice{101: stored}, time.Now().UTC())

	require.Len(t, out.Updates, 1)
	assert.Equal(t, "Neuer Name AG", *out.Updates[0].Vendor)
	assert.Equal(t, provenance.SourceAuto, out.Updates[0].VendorSource)
}

func TestReconcile_AmountEqualByValue(t *testing.T) {
	// An extractor that re-reads 123.450 over a stored 123.45 changes nothing.
	ext := func(text string, correspondent *string) (*extractor.Result, error) {
		d, _ := decimal.NewFromString("123.450")
		v := "Poolbau Müller"
		return &extractor.Result{
			Vendor:      &v,
			Amount:      decimal.NullDecimal{Decimal: d, Valid: true},
			Currency:    "EUR",
			Confidence:  0.9,
			NeedsReview: boolPtr(false),
		}, nil
	}
	r := NewReconciler(ext, testLogger())
	d := doc(101, "irrelevant")

	first := r.Reconcile([]paperless.Document{d}, nil, time.Now().UTC())
	stored := first.Inserts[0]
	stored.ID = 1
	stored.Amount = amount("123.45")
	stored.AmountAuto = amount("123.45")

	out := r.Reconcile([]paperless.Document{d}, map[int64]*storage.Invoice{101: stored}, time.Now().UTC())

	assert.Equal(t, 1, out.Skipped)
	assert.Zero(t, out.Updated)
}

func TestReconcile_ErrorIsolation(t *testing.T) {
	ext := func(text string, correspondent *string) (*extractor.Result, error) {
		if text == "broken" {
			return nil, errors.New("ocr payload corrupted")
		}
		v := "Vendor"
		return &extractor.Result{Vendor: &v, Amount: amount("10.00"), Currency: "EUR", NeedsReview: boolPtr(false)}, nil
	}
	r := NewReconciler(ext, testLogger())

	docs := []paperless.Document{doc(1, "ok"), doc(2, "broken"), doc(3, "ok")}
	out := r.Reconcile(docs, nil, time.Now().UTC())

	assert.Equal(t, 3, out.Checked)
	assert.Equal(t, 2, out.New)
	assert.Equal(t, 1, out.ErrorCount)
	require.NotNil(t, out.FirstError)
	assert.Equal(t, "ocr payload corrupted", *out.FirstError)
	require.Len(t, out.Inserts, 2)
	assert.Equal(t, int64(1), out.Inserts[0].DocID)
	assert.Equal(t, int64(3), out.Inserts[1].DocID)

	// Counter identity holds.
	assert.Equal(t, out.Checked, out.New+out.Updated+out.Skipped+out.ErrorCount)
}

func TestReconcile_FirstErrorWins(t *testing.T) {
	calls := 0
	ext := func(text string, correspondent *string) (*extractor.Result, error) {
		calls++
		return nil, errors.New(text)
	}
	r := NewReconciler(ext, testLogger())

	out := r.Reconcile([]paperless.Document{doc(1, "first failure"), doc(2, "second failure")}, nil, time.Now().UTC())

	assert.Equal(t, 2, out.ErrorCount)
	require.NotNil(t, out.FirstError)
	assert.Equal(t, "first failure", *out.FirstError)
	assert.Equal(t, 2, calls)
}

func TestReconcile_MissingIDSilentlySkipped(t *testing.T) {
	r := defaultReconciler()

	out := r.Reconcile([]paperless.Document{{ID: 0, Content: "Brutto 1,00"}}, nil, time.Now().UTC())

	assert.Zero(t, out.Checked)
	assert.Zero(t, out.New)
	assert.Zero(t, out.ErrorCount)
	assert.Empty(t, out.Inserts)
}

func TestReconcile_NilReviewSignalDefaultsToReview(t *testing.T) {
	ext := func(text string, correspondent *string) (*extractor.Result, error) {
		v := "Vendor"
		return &extractor.Result{Vendor: &v, Amount: amount("10.00"), Currency: "EUR"}, nil
	}
	r := NewReconciler(ext, testLogger())

	out := r.Reconcile([]paperless.Document{doc(1, "x")}, nil, time.Now().UTC())

	require.Len(t, out.Inserts, 1)
	assert.True(t, out.Inserts[0].NeedsReview)
}

func TestReconcile_MalformedCreatedTimestamp(t *testing.T) {
	r := defaultReconciler()
	d := doc(101, "Brutto 50,00 EUR")
	d.Created = strPtr("not-a-timestamp")

	out := r.Reconcile([]paperless.Document{d}, nil, time.Now().UTC())

	require.Len(t, out.Inserts, 1)
	assert.Nil(t, out.Inserts[0].DocCreated)
}
