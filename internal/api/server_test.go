package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/papercost/papercost-backend/internal/adapters/paperless"
	appsync "github.com/papercost/papercost-backend/internal/application/sync"
	"github.com/papercost/papercost-backend/internal/domain/provenance"
	"github.com/papercost/papercost-backend/internal/infrastructure/config"
	"github.com/papercost/papercost-backend/internal/infrastructure/storage"
)

type stubArchive struct {
	tagID   int64
	tagErr  error
	docs    []paperless.Document
	docsErr error
}

func (s *stubArchive) GetTagIDByName(ctx context.Context, name string) (int64, error) {
	if s.tagErr != nil {
		return 0, s.tagErr
	}
	return s.tagID, nil
}

func (s *stubArchive) ListDocuments(ctx context.Context, tagID int64, cutoff time.Time, pageSize int) ([]paperless.Document, error) {
	if s.docsErr != nil {
		return nil, s.docsErr
	}
	return s.docs, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	cfg := &config.Config{
		Paperless: config.PaperlessConfig{
			BaseURL:    "http://paperless.local",
			Token:      "token",
			ProjectTag: "Pool",
		},
		Sync: config.SyncConfig{LookbackDays: 365, PageSize: 100, DefaultCurrency: "EUR"},
	}
	return cfg
}

func newTestServer(t *testing.T, repo *storage.MockRepository, archive *stubArchive, cfg *config.Config) *Server {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	var svc *appsync.Service
	if archive != nil {
		svc = appsync.NewService(repo, archive, cfg, testLogger())
	}
	return NewServer(cfg, repo, svc, testLogger())
}

func do(t *testing.T, server *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	server.Router().ServeHTTP(rec, req)
	return rec
}

func strPtr(s string) *string { return &s }

func amountOf(s string) decimal.NullDecimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}

func seedInvoice(repo *storage.MockRepository, docID int64, vendor string) *storage.Invoice {
	now := time.Now().UTC()
	return repo.SeedInvoice(&storage.Invoice{
		Source:       "paperless",
		DocID:        docID,
		Vendor:       strPtr(vendor),
		VendorAuto:   strPtr(vendor),
		VendorSource: provenance.SourceAuto,
		AmountSource: provenance.SourceAuto,
		Currency:     "EUR",
		NeedsReview:  true,
		ExtractedAt:  now,
		UpdatedAt:    now,
	})
}

func TestHealth(t *testing.T) {
	server := newTestServer(t, storage.NewMockRepository(), nil, nil)

	rec := do(t, server, http.MethodGet, "/health", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestGetConfig_HidesToken(t *testing.T) {
	server := newTestServer(t, storage.NewMockRepository(), nil, nil)

	rec := do(t, server, http.MethodGet, "/api/config", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"token_configured":true`)
	assert.NotContains(t, rec.Body.String(), "token\":\"token")
	assert.Contains(t, rec.Body.String(), `"project_tag_name":"Pool"`)
}

func TestListInvoices_FilterNeedsReview(t *testing.T) {
	repo := storage.NewMockRepository()
	seedInvoice(repo, 1, "Clean GmbH").NeedsReview = false
	inv := seedInvoice(repo, 2, "Flagged AG")
	_ = inv
	server := newTestServer(t, repo, nil, nil)

	rec := do(t, server, http.MethodGet, "/api/invoices?needs_review=true", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var out []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "Flagged AG", out[0]["vendor"])
}

func TestUpdateInvoice_ManualEditFlipsProvenance(t *testing.T) {
	repo := storage.NewMockRepository()
	inv := seedInvoice(repo, 1, "OCR Name")
	server := newTestServer(t, repo, nil, nil)

	rec := do(t, server, http.MethodPut, "/api/invoices/1",
		map[string]any{"vendor": "Korrigiert GmbH", "amount": 123.45})

	require.Equal(t, http.StatusOK, rec.Code)

	stored, err := repo.GetInvoice(inv.ID)
	require.NoError(t, err)
	assert.Equal(t, "Korrigiert GmbH", *stored.Vendor)
	assert.Equal(t, provenance.SourceManual, stored.VendorSource)
	assert.Equal(t, provenance.SourceManual, stored.AmountSource)
	// Shadow values keep the extraction.
	assert.Equal(t, "OCR Name", *stored.VendorAuto)
	// Both fields filled by an edit resolves the review flag.
	assert.False(t, stored.NeedsReview)
}

func TestUpdateInvoice_SameValueKeepsAuto(t *testing.T) {
	repo := storage.NewMockRepository()
	seedInvoice(repo, 1, "OCR Name")
	server := newTestServer(t, repo, nil, nil)

	rec := do(t, server, http.MethodPut, "/api/invoices/1",
		map[string]any{"vendor": "OCR Name"})

	require.Equal(t, http.StatusOK, rec.Code)

	stored, _ := repo.GetInvoice(1)
	assert.Equal(t, provenance.SourceAuto, stored.VendorSource)
}

func TestUpdateInvoice_ExplicitNeedsReviewWins(t *testing.T) {
	repo := storage.NewMockRepository()
	seedInvoice(repo, 1, "OCR Name")
	server := newTestServer(t, repo, nil, nil)

	rec := do(t, server, http.MethodPut, "/api/invoices/1",
		map[string]any{"vendor": "Anders", "needs_review": true})

	require.Equal(t, http.StatusOK, rec.Code)
	stored, _ := repo.GetInvoice(1)
	assert.True(t, stored.NeedsReview)
}

func TestUpdateInvoice_NotFound(t *testing.T) {
	server := newTestServer(t, storage.NewMockRepository(), nil, nil)

	rec := do(t, server, http.MethodPut, "/api/invoices/99", map[string]any{"vendor": "x"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestResetInvoiceField(t *testing.T) {
	repo := storage.NewMockRepository()
	inv := seedInvoice(repo, 1, "OCR Name")
	inv.SetVendorField(inv.VendorField().ApplyManualEdit(strPtr("Handkorrektur")))
	require.NoError(t, repo.UpdateInvoice(inv))
	server := newTestServer(t, repo, nil, nil)

	rec := do(t, server, http.MethodPost, "/api/invoices/1/reset",
		map[string]any{"field": "vendor"})

	require.Equal(t, http.StatusOK, rec.Code)
	stored, _ := repo.GetInvoice(1)
	assert.Equal(t, provenance.SourceAuto, stored.VendorSource)
	assert.Equal(t, "OCR Name", *stored.Vendor)
	assert.True(t, stored.NeedsReview)
}

func TestResetInvoiceField_UnknownField(t *testing.T) {
	repo := storage.NewMockRepository()
	seedInvoice(repo, 1, "OCR Name")
	server := newTestServer(t, repo, nil, nil)

	rec := do(t, server, http.MethodPost, "/api/invoices/1/reset",
		map[string]any{"field": "currency"})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestManualCostLifecycle(t *testing.T) {
	repo := storage.NewMockRepository()
	server := newTestServer(t, repo, nil, nil)

	rec := do(t, server, http.MethodPost, "/api/manual-costs", map[string]any{
		"date":     "2026-08-01",
		"vendor":   "Baumarkt",
		"amount":   49.99,
		"category": "Chemie",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "manual", created["source"])
	assert.Equal(t, "2026-08-01", created["date"])
	assert.Equal(t, 49.99, created["amount"])

	rec = do(t, server, http.MethodPut, "/api/manual-costs/1", map[string]any{
		"note": "Nachkauf", "amount": 52.50,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Nachkauf")

	rec = do(t, server, http.MethodPost, "/api/manual-costs/1/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, server, http.MethodGet, "/api/manual-costs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "[]", strings.TrimSpace(rec.Body.String()))

	rec = do(t, server, http.MethodGet, "/api/manual-costs?include_archived=true", nil)
	var listed []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	require.Len(t, listed, 1)
	assert.Equal(t, true, listed[0]["is_archived"])

	rec = do(t, server, http.MethodDelete, "/api/manual-costs/1", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, server, http.MethodDelete, "/api/manual-costs/1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestManualCost_InvalidDate(t *testing.T) {
	server := newTestServer(t, storage.NewMockRepository(), nil, nil)

	rec := do(t, server, http.MethodPost, "/api/manual-costs", map[string]any{
		"date": "08/01/2026", "vendor": "Baumarkt", "amount": 10,
	})

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSummary(t *testing.T) {
	repo := storage.NewMockRepository()
	inv := seedInvoice(repo, 1, "Poolbau")
	inv.Amount = amountOf("100.00")
	require.NoError(t, repo.UpdateInvoice(inv))
	require.NoError(t, repo.CreateManualCost(&storage.ManualCost{
		Vendor: "Baumarkt", Amount: amountOf("25.50").Decimal, Currency: "EUR",
	}))
	server := newTestServer(t, repo, nil, nil)

	rec := do(t, server, http.MethodGet, "/api/summary", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, 125.5, out["total_amount"])
	assert.Equal(t, float64(1), out["invoice_count"])
	assert.Equal(t, float64(1), out["manual_cost_count"])
}

func TestSummary_InvalidRange(t *testing.T) {
	server := newTestServer(t, storage.NewMockRepository(), nil, nil)

	rec := do(t, server, http.MethodGet, "/api/summary?range=quarter", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestExportCSV(t *testing.T) {
	repo := storage.NewMockRepository()
	require.NoError(t, repo.CreateManualCost(&storage.ManualCost{
		Vendor: "Baumarkt", Amount: amountOf("25.50").Decimal, Currency: "EUR",
	}))
	server := newTestServer(t, repo, nil, nil)

	rec := do(t, server, http.MethodGet, "/api/export.csv", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "papercost_export.csv")
	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "date,source,vendor,amount,currency,title,category,note,paperless_doc_id,confidence,needs_review", lines[0])
	assert.Contains(t, lines[1], "Baumarkt")
	assert.Contains(t, lines[1], "25.5")
}

func TestSyncEndpoint_Success(t *testing.T) {
	repo := storage.NewMockRepository()
	archive := &stubArchive{tagID: 7, docs: []paperless.Document{
		{ID: 101, Content: "Brutto 123,45 EUR", Correspondent: strPtr("Poolbau")},
	}}
	server := newTestServer(t, repo, archive, nil)

	rec := do(t, server, http.MethodPost, "/api/sync", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	assert.Equal(t, float64(1), out["checked_docs"])
	assert.Equal(t, float64(1), out["new_invoices"])

	rec = do(t, server, http.MethodGet, "/api/runs", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var runs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
}

func TestSyncEndpoint_NotConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.Paperless.Token = ""
	server := newTestServer(t, storage.NewMockRepository(), &stubArchive{}, cfg)

	rec := do(t, server, http.MethodPost, "/api/sync", nil)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestSyncEndpoint_AuthFailure(t *testing.T) {
	archive := &stubArchive{tagErr: &paperless.AuthError{StatusCode: 401}}
	server := newTestServer(t, storage.NewMockRepository(), archive, nil)

	rec := do(t, server, http.MethodPost, "/api/sync", nil)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSyncEndpoint_TagNotFound(t *testing.T) {
	archive := &stubArchive{tagErr: paperless.ErrTagNotFound}
	server := newTestServer(t, storage.NewMockRepository(), archive, nil)

	rec := do(t, server, http.MethodPost, "/api/sync", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSyncEndpoint_ArchiveUnreachable(t *testing.T) {
	archive := &stubArchive{tagID: 7, docsErr: &paperless.APIError{StatusCode: 500, URL: "http://paperless.local"}}
	server := newTestServer(t, storage.NewMockRepository(), archive, nil)

	rec := do(t, server, http.MethodPost, "/api/sync", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestGetRun_NotFound(t *testing.T) {
	server := newTestServer(t, storage.NewMockRepository(), &stubArchive{}, nil)

	rec := do(t, server, http.MethodGet, "/api/runs/42", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
