package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// manualCostDateLayout is the date-only storage format for cost lines.
const manualCostDateLayout = "2006-01-02"

const manualCostColumns = `id, source, date, vendor, amount, currency,
	category, note, is_archived, archived_at, created_at, updated_at`

func scanManualCost(row rowScanner) (*ManualCost, error) {
	item := &ManualCost{}
	var (
		date       string
		category   sql.NullString
		note       sql.NullString
		archivedAt sql.NullTime
	)

	err := row.Scan(
		&item.ID,
		&item.Source,
		&date,
		&item.Vendor,
		&item.Amount,
		&item.Currency,
		&category,
		&note,
		&item.IsArchived,
		&archivedAt,
		&item.CreatedAt,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := time.Parse(manualCostDateLayout, date)
	if err != nil {
		return nil, fmt.Errorf("manual cost %d has malformed date %q: %w", item.ID, date, err)
	}
	item.Date = parsed
	item.Category = nullString(category)
	item.Note = nullString(note)
	if archivedAt.Valid {
		t := archivedAt.Time
		item.ArchivedAt = &t
	}

	return item, nil
}

// CreateManualCost inserts a new hand-entered cost line.
func (s *Storage) CreateManualCost(item *ManualCost) error {
	now := time.Now().UTC()
	if item.Source == "" {
		item.Source = "manual"
	}
	if item.Date.IsZero() {
		item.Date = now
	}
	item.CreatedAt = now
	item.UpdatedAt = now

	res, err := s.db.Exec(`
		INSERT INTO manual_costs
			(source, date, vendor, amount, currency, category, note,
			 is_archived, archived_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.Source,
		item.Date.Format(manualCostDateLayout),
		item.Vendor,
		item.Amount,
		item.Currency,
		item.Category,
		item.Note,
		item.IsArchived,
		nullableTime(item.ArchivedAt),
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create manual cost: %w", err)
	}

	if id, err := res.LastInsertId(); err == nil {
		item.ID = id
	}
	return nil
}

// GetManualCost retrieves one cost line by id, nil if absent.
func (s *Storage) GetManualCost(id int64) (*ManualCost, error) {
	query := fmt.Sprintf(`SELECT %s FROM manual_costs WHERE id = ?`, manualCostColumns)
	item, err := scanManualCost(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// ListManualCosts returns cost lines newest-first. Archived lines are
// excluded unless includeArchived is set.
func (s *Storage) ListManualCosts(includeArchived bool) ([]*ManualCost, error) {
	query := fmt.Sprintf(`SELECT %s FROM manual_costs`, manualCostColumns)
	if !includeArchived {
		query += ` WHERE is_archived = 0`
	}
	query += ` ORDER BY date DESC, id DESC`

	rows, err := s.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var items []*ManualCost
	for rows.Next() {
		item, err := scanManualCost(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// UpdateManualCost persists changes to an existing cost line.
func (s *Storage) UpdateManualCost(item *ManualCost) error {
	item.UpdatedAt = time.Now().UTC()

	res, err := s.db.Exec(`
		UPDATE manual_costs SET
			date = ?, vendor = ?, amount = ?, currency = ?,
			category = ?, note = ?, updated_at = ?
		WHERE id = ?`,
		item.Date.Format(manualCostDateLayout),
		item.Vendor,
		item.Amount,
		item.Currency,
		item.Category,
		item.Note,
		item.UpdatedAt,
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update manual cost %d: %w", item.ID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("manual cost %d not found", item.ID)
	}
	return nil
}

// ArchiveManualCost flags a cost line as archived instead of deleting it.
func (s *Storage) ArchiveManualCost(id int64, at time.Time) error {
	res, err := s.db.Exec(`
		UPDATE manual_costs SET is_archived = 1, archived_at = ?, updated_at = ?
		WHERE id = ?`,
		at, at, id,
	)
	if err != nil {
		return fmt.Errorf("failed to archive manual cost %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("manual cost %d not found", id)
	}
	return nil
}

// DeleteManualCost removes a cost line permanently.
func (s *Storage) DeleteManualCost(id int64) error {
	res, err := s.db.Exec(`DELETE FROM manual_costs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete manual cost %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("manual cost %d not found", id)
	}
	return nil
}
