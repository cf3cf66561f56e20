package dto

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/papercost/papercost-backend/internal/infrastructure/storage"
)

const dateLayout = "2006-01-02"

// ManualCostResponse is the API shape of a hand-entered cost line.
type ManualCostResponse struct {
	ID         int64      `json:"id"`
	Source     string     `json:"source"`
	Date       string     `json:"date"`
	Vendor     string     `json:"vendor"`
	Amount     float64    `json:"amount"`
	Currency   string     `json:"currency"`
	Category   *string    `json:"category,omitempty"`
	Note       *string    `json:"note,omitempty"`
	IsArchived bool       `json:"is_archived"`
	ArchivedAt *time.Time `json:"archived_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewManualCostResponse converts a storage row to the API shape.
func NewManualCostResponse(item *storage.ManualCost) ManualCostResponse {
	return ManualCostResponse{
		ID:         item.ID,
		Source:     item.Source,
		Date:       item.Date.Format(dateLayout),
		Vendor:     item.Vendor,
		Amount:     item.Amount.InexactFloat64(),
		Currency:   item.Currency,
		Category:   item.Category,
		Note:       item.Note,
		IsArchived: item.IsArchived,
		ArchivedAt: item.ArchivedAt,
		CreatedAt:  item.CreatedAt,
		UpdatedAt:  item.UpdatedAt,
	}
}

// NewManualCostListResponse converts a slice of storage rows.
func NewManualCostListResponse(items []*storage.ManualCost) []ManualCostResponse {
	out := make([]ManualCostResponse, 0, len(items))
	for _, item := range items {
		out = append(out, NewManualCostResponse(item))
	}
	return out
}

// ManualCostCreateRequest creates a new cost line. Date defaults to today
// when omitted.
type ManualCostCreateRequest struct {
	Date     string          `json:"date"`
	Vendor   string          `json:"vendor" binding:"required"`
	Amount   decimal.Decimal `json:"amount" binding:"required"`
	Currency string          `json:"currency"`
	Category *string         `json:"category"`
	Note     *string         `json:"note"`
}

// ToModel validates the request and builds a storage row.
func (r ManualCostCreateRequest) ToModel(now time.Time) (*storage.ManualCost, error) {
	date := now
	if r.Date != "" {
		parsed, err := time.ParseInLocation(dateLayout, r.Date, time.UTC)
		if err != nil {
			return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", r.Date)
		}
		date = parsed
	}
	currency := r.Currency
	if currency == "" {
		currency = "EUR"
	}
	return &storage.ManualCost{
		Source:   "manual",
		Date:     date,
		Vendor:   r.Vendor,
		Amount:   r.Amount,
		Currency: currency,
		Category: r.Category,
		Note:     r.Note,
	}, nil
}

// ManualCostUpdateRequest is a partial update with per-field presence.
type ManualCostUpdateRequest struct {
	Date        *string
	Vendor      *string
	Amount      *decimal.Decimal
	Currency    *string
	Category    *string
	CategorySet bool
	Note        *string
	NoteSet     bool
}

func (r *ManualCostUpdateRequest) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	fields := map[string]any{
		"date":     &r.Date,
		"vendor":   &r.Vendor,
		"amount":   &r.Amount,
		"currency": &r.Currency,
	}
	for key, target := range fields {
		if v, ok := raw[key]; ok {
			if err := json.Unmarshal(v, target); err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
		}
	}
	if v, ok := raw["category"]; ok {
		r.CategorySet = true
		if err := json.Unmarshal(v, &r.Category); err != nil {
			return fmt.Errorf("category: %w", err)
		}
	}
	if v, ok := raw["note"]; ok {
		r.NoteSet = true
		if err := json.Unmarshal(v, &r.Note); err != nil {
			return fmt.Errorf("note: %w", err)
		}
	}
	return nil
}

// Apply writes the present fields onto the stored row.
func (r ManualCostUpdateRequest) Apply(item *storage.ManualCost) error {
	if r.Date != nil {
		parsed, err := time.ParseInLocation(dateLayout, *r.Date, time.UTC)
		if err != nil {
			return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", *r.Date)
		}
		item.Date = parsed
	}
	if r.Vendor != nil {
		item.Vendor = *r.Vendor
	}
	if r.Amount != nil {
		item.Amount = *r.Amount
	}
	if r.Currency != nil {
		item.Currency = *r.Currency
	}
	if r.CategorySet {
		item.Category = r.Category
	}
	if r.NoteSet {
		item.Note = r.Note
	}
	return nil
}
