package storage

import (
	"database/sql"
	"fmt"
)

// CommitSyncBatch persists a completed reconciliation pass in one
// transaction. A crash or error anywhere before the final commit leaves the
// store exactly as it was: no invoices, no ledger entry.
func (s *Storage) CommitSyncBatch(inserts, updates []*Invoice, run *SyncRun) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin sync commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, inv := range inserts {
		res, err := tx.Exec(insertInvoiceSQL, insertInvoiceArgs(inv)...)
		if err != nil {
			return fmt.Errorf("failed to insert invoice for document %d: %w", inv.DocID, err)
		}
		if id, err := res.LastInsertId(); err == nil {
			inv.ID = id
		}
	}

	for _, inv := range updates {
		if _, err := tx.Exec(updateInvoiceSQL, updateInvoiceArgs(inv)...); err != nil {
			return fmt.Errorf("failed to update invoice %d: %w", inv.ID, err)
		}
	}

	res, err := tx.Exec(`
		INSERT INTO sync_runs
			(started_at, finished_at, duration_ms, checked_docs,
			 new_invoices, updated_invoices, skipped_invoices, error_count, last_error_text)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.StartedAt,
		run.FinishedAt,
		run.DurationMs,
		run.CheckedDocs,
		run.NewInvoices,
		run.UpdatedInvoices,
		run.SkippedInvoices,
		run.ErrorCount,
		run.LastErrorText,
	)
	if err != nil {
		return fmt.Errorf("failed to record sync run: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		run.ID = id
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync batch: %w", err)
	}
	return nil
}

const syncRunColumns = `id, started_at, finished_at, duration_ms, checked_docs,
	new_invoices, updated_invoices, skipped_invoices, error_count, last_error_text`

func scanSyncRun(row rowScanner) (*SyncRun, error) {
	run := &SyncRun{}
	var lastError sql.NullString

	err := row.Scan(
		&run.ID,
		&run.StartedAt,
		&run.FinishedAt,
		&run.DurationMs,
		&run.CheckedDocs,
		&run.NewInvoices,
		&run.UpdatedInvoices,
		&run.SkippedInvoices,
		&run.ErrorCount,
		&lastError,
	)
	if err != nil {
		return nil, err
	}

	run.LastErrorText = nullString(lastError)
	return run, nil
}

// ListSyncRuns returns the most recent runs newest-first; runs with the
// same start timestamp are ordered by descending id.
func (s *Storage) ListSyncRuns(limit int) ([]SyncRun, error) {
	if limit <= 0 {
		limit = 20
	}

	query := fmt.Sprintf(
		`SELECT %s FROM sync_runs ORDER BY started_at DESC, id DESC LIMIT ?`,
		syncRunColumns)

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var runs []SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, rows.Err()
}

// GetSyncRun retrieves one run by id, nil if absent.
func (s *Storage) GetSyncRun(id int64) (*SyncRun, error) {
	query := fmt.Sprintf(`SELECT %s FROM sync_runs WHERE id = ?`, syncRunColumns)
	run, err := scanSyncRun(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}
