package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papercost/papercost-backend/internal/infrastructure/storage"
)

// InvoiceResponse is the API shape of a reconciled invoice. Amounts are
// rendered as plain numbers; the provenance markers and shadow values are
// exposed so clients can offer reset-to-extracted.
type InvoiceResponse struct {
	ID              int64      `json:"id"`
	Source          string     `json:"source"`
	PaperlessDocID  int64      `json:"paperless_doc_id"`
	PaperlessCreated *time.Time `json:"paperless_created,omitempty"`
	Title           *string    `json:"title,omitempty"`
	Vendor          *string    `json:"vendor,omitempty"`
	VendorAuto      *string    `json:"vendor_auto,omitempty"`
	VendorSource    string     `json:"vendor_source"`
	Amount          *float64   `json:"amount,omitempty"`
	AmountAuto      *float64   `json:"amount_auto,omitempty"`
	AmountSource    string     `json:"amount_source"`
	Currency        string     `json:"currency"`
	Confidence      float64    `json:"confidence"`
	NeedsReview     bool       `json:"needs_review"`
	ExtractedAt     time.Time  `json:"extracted_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	DebugJSON       *string    `json:"debug_json,omitempty"`
	Correspondent   *string    `json:"correspondent,omitempty"`
	DocumentType    *string    `json:"document_type,omitempty"`
	OCRText         string     `json:"ocr_text"`
	OCRSnippet      *string    `json:"ocr_snippet,omitempty"`
}

// NewInvoiceResponse converts a storage row to the API shape.
func NewInvoiceResponse(inv *storage.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:               inv.ID,
		Source:           inv.Source,
		PaperlessDocID:   inv.DocID,
		PaperlessCreated: inv.DocCreated,
		Title:            inv.Title,
		Vendor:           inv.Vendor,
		VendorAuto:       inv.VendorAuto,
		VendorSource:     string(inv.VendorSource),
		Amount:           nullDecimalToFloat(inv.Amount),
		AmountAuto:       nullDecimalToFloat(inv.AmountAuto),
		AmountSource:     string(inv.AmountSource),
		Currency:         inv.Currency,
		Confidence:       inv.Confidence,
		NeedsReview:      inv.NeedsReview,
		ExtractedAt:      inv.ExtractedAt,
		UpdatedAt:        inv.UpdatedAt,
		DebugJSON:        inv.DebugJSON,
		Correspondent:    inv.Correspondent,
		DocumentType:     inv.DocumentType,
		OCRText:          inv.OCRText,
		OCRSnippet:       inv.ContextSnippet(),
	}
}

// NewInvoiceListResponse converts a slice of storage rows.
func NewInvoiceListResponse(invoices []*storage.Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, NewInvoiceResponse(inv))
	}
	return out
}

// InvoiceUpdateRequest is a partial update. Absent fields are left alone,
// which is different from fields explicitly set to null, so presence is
// tracked per field.
type InvoiceUpdateRequest struct {
	Vendor      *string
	VendorSet   bool
	Amount      decimal.NullDecimal
	AmountSet   bool
	NeedsReview *bool
}

func (r *InvoiceUpdateRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	if v, ok := raw["vendor"]; ok {
		r.VendorSet = true
		if err := json.Unmarshal(v, &r.Vendor); err != nil {
			return fmt.Errorf("vendor: %w", err)
		}
	}
	if v, ok := raw["amount"]; ok {
		r.AmountSet = true
		if string(v) != "null" {
			var d decimal.Decimal
			if err := json.Unmarshal(v, &d); err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			r.Amount = decimal.NullDecimal{Decimal: d, Valid: true}
		}
	}
	if v, ok := raw["needs_review"]; ok {
		if err := json.Unmarshal(v, &r.NeedsReview); err != nil {
			return fmt.Errorf("needs_review: %w", err)
		}
	}
	return nil
}

// InvoiceResetRequest names the field to put back under automatic tracking.
type InvoiceResetRequest struct {
	Field string `json:"field"`
}

func nullDecimalToFloat(d decimal.NullDecimal) *float64 {
	if !d.Valid {
		return nil
	}
	f := d.Decimal.InexactFloat64()
	return &f
}
