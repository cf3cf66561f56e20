package storage

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// MockRepository is an in-memory implementation of Repository for testing.
// It stores all data in maps and slices, making tests fast and isolated.
type MockRepository struct {
	invoices    map[int64]*Invoice // keyed by internal id
	manualCosts map[int64]*ManualCost
	syncRuns    []*SyncRun
	nextInvID   int64
	nextCostID  int64
	nextRunID   int64

	// Hooks for test assertions
	CommitSyncBatchCalled bool
	LastCommittedRun      *SyncRun
	LastInsertCount       int
	LastUpdateCount       int

	// Error injection for testing error paths
	CommitSyncBatchErr error
	LookupErr          error
	UpdateInvoiceErr   error
}

// Compile-time check that MockRepository implements Repository
var _ Repository = (*MockRepository)(nil)

// NewMockRepository creates a new mock repository for testing
func NewMockRepository() *MockRepository {
	return &MockRepository{
		invoices:    make(map[int64]*Invoice),
		manualCosts: make(map[int64]*ManualCost),
		nextInvID:   1,
		nextCostID:  1,
		nextRunID:   1,
	}
}

// Close does nothing for mock
func (m *MockRepository) Close() error {
	return nil
}

// SeedInvoice inserts an invoice directly, bypassing sync-batch accounting.
func (m *MockRepository) SeedInvoice(inv *Invoice) *Invoice {
	copied := *inv
	if copied.ID == 0 {
		copied.ID = m.nextInvID
		m.nextInvID++
	}
	m.invoices[copied.ID] = &copied
	return &copied
}

func (m *MockRepository) GetInvoicesByDocIDs(ids []int64) (map[int64]*Invoice, error) {
	if m.LookupErr != nil {
		return nil, m.LookupErr
	}
	existing := make(map[int64]*Invoice)
	for _, id := range ids {
		for _, inv := range m.invoices {
			if inv.DocID == id {
				copied := *inv
				existing[id] = &copied
			}
		}
	}
	return existing, nil
}

func (m *MockRepository) GetInvoice(id int64) (*Invoice, error) {
	inv, ok := m.invoices[id]
	if !ok {
		return nil, nil
	}
	copied := *inv
	return &copied, nil
}

func (m *MockRepository) ListInvoices(filters InvoiceFilters) ([]*Invoice, error) {
	var result []*Invoice
	for _, inv := range m.invoices {
		if filters.NeedsReview != nil && inv.NeedsReview != *filters.NeedsReview {
			continue
		}
		if search := strings.ToLower(strings.TrimSpace(filters.Search)); search != "" {
			vendor := ""
			if inv.Vendor != nil {
				vendor = strings.ToLower(*inv.Vendor)
			}
			title := ""
			if inv.Title != nil {
				title = strings.ToLower(*inv.Title)
			}
			if !strings.Contains(vendor, search) && !strings.Contains(title, search) {
				continue
			}
		}
		copied := *inv
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *MockRepository) UpdateInvoice(invoice *Invoice) error {
	if m.UpdateInvoiceErr != nil {
		return m.UpdateInvoiceErr
	}
	if _, ok := m.invoices[invoice.ID]; !ok {
		return fmt.Errorf("invoice %d not found", invoice.ID)
	}
	invoice.UpdatedAt = time.Now().UTC()
	copied := *invoice
	m.invoices[invoice.ID] = &copied
	return nil
}

func (m *MockRepository) CommitSyncBatch(inserts, updates []*Invoice, run *SyncRun) error {
	m.CommitSyncBatchCalled = true
	m.LastInsertCount = len(inserts)
	m.LastUpdateCount = len(updates)
	if m.CommitSyncBatchErr != nil {
		return m.CommitSyncBatchErr
	}

	for _, inv := range inserts {
		inv.ID = m.nextInvID
		m.nextInvID++
		copied := *inv
		m.invoices[inv.ID] = &copied
	}
	for _, inv := range updates {
		copied := *inv
		m.invoices[inv.ID] = &copied
	}

	run.ID = m.nextRunID
	m.nextRunID++
	copied := *run
	m.syncRuns = append(m.syncRuns, &copied)
	m.LastCommittedRun = &copied
	return nil
}

func (m *MockRepository) ListSyncRuns(limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}
	runs := make([]SyncRun, 0, len(m.syncRuns))
	for _, r := range m.syncRuns {
		runs = append(runs, *r)
	}
	sort.Slice(runs, func(i, j int) bool {
		if runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].ID > runs[j].ID
		}
		return runs[i].StartedAt.After(runs[j].StartedAt)
	})
	if len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

func (m *MockRepository) GetSyncRun(id int64) (*SyncRun, error) {
	for _, r := range m.syncRuns {
		if r.ID == id {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MockRepository) CreateManualCost(item *ManualCost) error {
	item.ID = m.nextCostID
	m.nextCostID++
	now := time.Now().UTC()
	if item.Source == "" {
		item.Source = "manual"
	}
	if item.Date.IsZero() {
		item.Date = now
	}
	item.CreatedAt = now
	item.UpdatedAt = now
	copied := *item
	m.manualCosts[item.ID] = &copied
	return nil
}

func (m *MockRepository) GetManualCost(id int64) (*ManualCost, error) {
	item, ok := m.manualCosts[id]
	if !ok {
		return nil, nil
	}
	copied := *item
	return &copied, nil
}

func (m *MockRepository) ListManualCosts(includeArchived bool) ([]*ManualCost, error) {
	var result []*ManualCost
	for _, item := range m.manualCosts {
		if !includeArchived && item.IsArchived {
			continue
		}
		copied := *item
		result = append(result, &copied)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].ID > result[j].ID
		}
		return result[i].Date.After(result[j].Date)
	})
	return result, nil
}

func (m *MockRepository) UpdateManualCost(item *ManualCost) error {
	if _, ok := m.manualCosts[item.ID]; !ok {
		return fmt.Errorf("manual cost %d not found", item.ID)
	}
	item.UpdatedAt = time.Now().UTC()
	copied := *item
	m.manualCosts[item.ID] = &copied
	return nil
}

func (m *MockRepository) ArchiveManualCost(id int64, at time.Time) error {
	item, ok := m.manualCosts[id]
	if !ok {
		return fmt.Errorf("manual cost %d not found", id)
	}
	item.IsArchived = true
	item.ArchivedAt = &at
	item.UpdatedAt = at
	return nil
}

func (m *MockRepository) DeleteManualCost(id int64) error {
	if _, ok := m.manualCosts[id]; !ok {
		return fmt.Errorf("manual cost %d not found", id)
	}
	delete(m.manualCosts, id)
	return nil
}

func (m *MockRepository) GetSummary(start, end *time.Time) (*Summary, error) {
	// Coarse in-memory aggregate; enough for handler tests.
	summary := &Summary{TopVendors: []VendorTotal{}, CostsByCategory: []CategoryTotal{}}
	for _, inv := range m.invoices {
		summary.InvoiceCount++
		if inv.NeedsReview {
			summary.NeedsReviewCount++
		}
		if inv.Amount.Valid {
			summary.InvoiceTotal = summary.InvoiceTotal.Add(inv.Amount.Decimal)
		}
	}
	for _, item := range m.manualCosts {
		if item.IsArchived {
			continue
		}
		summary.ManualCostCount++
		summary.ManualTotal = summary.ManualTotal.Add(item.Amount)
	}
	summary.TotalAmount = summary.InvoiceTotal.Add(summary.ManualTotal)
	return summary, nil
}

func (m *MockRepository) ListAllCosts(start, end *time.Time) ([]CostRow, error) {
	var result []CostRow
	for _, inv := range m.invoices {
		var date *string
		if inv.DocCreated != nil {
			d := inv.DocCreated.Format(manualCostDateLayout)
			date = &d
		}
		nr := inv.NeedsReview
		conf := inv.Confidence
		docID := inv.DocID
		result = append(result, CostRow{
			Date:        date,
			Source:      inv.Source,
			Vendor:      inv.Vendor,
			Amount:      inv.Amount,
			Currency:    inv.Currency,
			Title:       inv.Title,
			DocID:       &docID,
			Confidence:  &conf,
			NeedsReview: &nr,
		})
	}
	for _, item := range m.manualCosts {
		if item.IsArchived {
			continue
		}
		d := item.Date.Format(manualCostDateLayout)
		amount := item.Amount
		result = append(result, CostRow{
			Date:     &d,
			Source:   item.Source,
			Vendor:   &item.Vendor,
			Amount:   decimalToNull(amount),
			Currency: item.Currency,
			Category: item.Category,
			Note:     item.Note,
		})
	}
	return result, nil
}
