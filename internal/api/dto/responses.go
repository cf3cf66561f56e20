package dto

import (
	"time"

	"github.com/papercost/papercost-backend/internal/infrastructure/config"
	"github.com/papercost/papercost-backend/internal/infrastructure/storage"
)

// HealthResponse reports service liveness.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// NewHealthResponse creates a healthy response with the current timestamp.
func NewHealthResponse() HealthResponse {
	return HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	}
}

// ConfigResponse exposes the non-secret parts of the configuration so the
// UI can show what the backend is pointed at. The token never leaves the
// server.
type ConfigResponse struct {
	PaperlessBaseURL         string `json:"paperless_base_url"`
	ProjectTagName           string `json:"project_tag_name"`
	TokenConfigured          bool   `json:"token_configured"`
	SchedulerEnabled         bool   `json:"scheduler_enabled"`
	SchedulerIntervalMinutes int    `json:"scheduler_interval_minutes"`
	SchedulerRunOnStartup    bool   `json:"scheduler_run_on_startup"`
	DefaultCurrency          string `json:"default_currency"`
}

// NewConfigResponse builds the config view.
func NewConfigResponse(cfg *config.Config) ConfigResponse {
	return ConfigResponse{
		PaperlessBaseURL:         cfg.Paperless.BaseURL,
		ProjectTagName:           cfg.Paperless.ProjectTag,
		TokenConfigured:          cfg.Paperless.Token != "",
		SchedulerEnabled:         cfg.Scheduler.Enabled,
		SchedulerIntervalMinutes: cfg.Scheduler.IntervalMinutes,
		SchedulerRunOnStartup:    cfg.Scheduler.RunOnStartup,
		DefaultCurrency:          cfg.Sync.DefaultCurrency,
	}
}

// SummaryResponse aggregates both cost sources with plain-number amounts.
type SummaryResponse struct {
	TotalAmount      float64            `json:"total_amount"`
	PaperlessTotal   float64            `json:"paperless_total"`
	ManualTotal      float64            `json:"manual_total"`
	InvoiceCount     int                `json:"invoice_count"`
	ManualCostCount  int                `json:"manual_cost_count"`
	NeedsReviewCount int                `json:"needs_review_count"`
	TopVendors       []VendorTotal      `json:"top_vendors"`
	CostsByCategory  []CategoryBreakdown `json:"costs_by_category"`
}

// VendorTotal is one row of the top-vendors breakdown.
type VendorTotal struct {
	Name   string  `json:"name"`
	Amount float64 `json:"amount"`
}

// CategoryBreakdown is one row of the manual-cost category breakdown.
type CategoryBreakdown struct {
	Category string  `json:"category"`
	Amount   float64 `json:"amount"`
}

// NewSummaryResponse converts the storage aggregate.
func NewSummaryResponse(s *storage.Summary) SummaryResponse {
	vendors := make([]VendorTotal, 0, len(s.TopVendors))
	for _, v := range s.TopVendors {
		vendors = append(vendors, VendorTotal{Name: v.Name, Amount: v.Amount.InexactFloat64()})
	}
	categories := make([]CategoryBreakdown, 0, len(s.CostsByCategory))
	for _, c := range s.CostsByCategory {
		categories = append(categories, CategoryBreakdown{Category: c.Category, Amount: c.Amount.InexactFloat64()})
	}
	return SummaryResponse{
		TotalAmount:      s.TotalAmount.InexactFloat64(),
		PaperlessTotal:   s.InvoiceTotal.InexactFloat64(),
		ManualTotal:      s.ManualTotal.InexactFloat64(),
		InvoiceCount:     s.InvoiceCount,
		ManualCostCount:  s.ManualCostCount,
		NeedsReviewCount: s.NeedsReviewCount,
		TopVendors:       vendors,
		CostsByCategory:  categories,
	}
}
