package storage

import (
	"database/sql"
	"fmt"
)

// Migration represents a database schema migration
type Migration struct {
	Version int
	Name    string
	Up      func(*sql.Tx) error
}

// allMigrations defines all migrations in order
var allMigrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up:      migration001InitialSchema,
	},
	{
		Version: 2,
		Name:    "invoice_field_sources",
		Up:      migration002InvoiceFieldSources,
	},
	{
		Version: 3,
		Name:    "sync_runs_and_auto_values",
		Up:      migration003SyncRunsAndAutoValues,
	},
	{
		Version: 4,
		Name:    "manual_cost_archive",
		Up:      migration004ManualCostArchive,
	},
}

// runMigrations executes all pending migrations
func (s *Storage) runMigrations() error {
	if err := s.ensureMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	applied, err := s.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range allMigrations {
		if applied[migration.Version] {
			continue
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("failed to begin transaction for migration %d: %w", migration.Version, err)
		}

		if err := migration.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d (%s) failed: %w", migration.Version, migration.Name, err)
		}

		if _, err := tx.Exec(
			`INSERT INTO schema_migrations (version, name) VALUES (?, ?)`,
			migration.Version, migration.Name,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, err)
		}
	}

	return nil
}

// ensureMigrationsTable creates the schema_migrations table
func (s *Storage) ensureMigrationsTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		name TEXT NOT NULL,
		applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	)`

	_, err := s.db.Exec(query)
	return err
}

// getAppliedMigrations returns a set of applied migration versions
func (s *Storage) getAppliedMigrations() (map[int]bool, error) {
	applied := make(map[int]bool)

	rows, err := s.db.Query(`SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return nil, err
		}
		applied[version] = true
	}

	return applied, rows.Err()
}

func migration001InitialSchema(tx *sql.Tx) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS invoices (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL DEFAULT 'paperless',
			paperless_doc_id INTEGER NOT NULL,
			paperless_created TIMESTAMP,
			title TEXT,
			vendor TEXT,
			amount TEXT,
			currency TEXT NOT NULL DEFAULT 'EUR',
			confidence REAL NOT NULL DEFAULT 0,
			needs_review BOOLEAN NOT NULL DEFAULT 1,
			extracted_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL,
			debug_json TEXT,
			correspondent TEXT,
			document_type TEXT,
			ocr_text TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_invoices_paperless_doc_id ON invoices(paperless_doc_id)`,
		`CREATE TABLE IF NOT EXISTS manual_costs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL DEFAULT 'manual',
			date TEXT NOT NULL,
			vendor TEXT NOT NULL,
			amount TEXT NOT NULL,
			currency TEXT NOT NULL DEFAULT 'EUR',
			category TEXT,
			note TEXT,
			created_at TIMESTAMP NOT NULL,
			updated_at TIMESTAMP NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func migration002InvoiceFieldSources(tx *sql.Tx) error {
	queries := []string{
		`ALTER TABLE invoices ADD COLUMN vendor_source TEXT NOT NULL DEFAULT 'auto'`,
		`ALTER TABLE invoices ADD COLUMN amount_source TEXT NOT NULL DEFAULT 'auto'`,
	}

	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func migration003SyncRunsAndAutoValues(tx *sql.Tx) error {
	queries := []string{
		`ALTER TABLE invoices ADD COLUMN vendor_auto TEXT`,
		`ALTER TABLE invoices ADD COLUMN amount_auto TEXT`,
		// Seed shadow values for rows that are still auto-tracked, so a
		// later reset has something to recover.
		`UPDATE invoices SET vendor_auto = vendor WHERE vendor_source = 'auto' AND vendor_auto IS NULL`,
		`UPDATE invoices SET amount_auto = amount WHERE amount_source = 'auto' AND amount_auto IS NULL`,
		`CREATE TABLE IF NOT EXISTS sync_runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			started_at TIMESTAMP NOT NULL,
			finished_at TIMESTAMP NOT NULL,
			duration_ms INTEGER NOT NULL,
			checked_docs INTEGER NOT NULL DEFAULT 0,
			new_invoices INTEGER NOT NULL DEFAULT 0,
			updated_invoices INTEGER NOT NULL DEFAULT 0,
			skipped_invoices INTEGER NOT NULL DEFAULT 0,
			error_count INTEGER NOT NULL DEFAULT 0,
			last_error_text TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS ix_sync_runs_started_at ON sync_runs(started_at)`,
	}

	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return err
		}
	}
	return nil
}

func migration004ManualCostArchive(tx *sql.Tx) error {
	queries := []string{
		`ALTER TABLE manual_costs ADD COLUMN is_archived BOOLEAN NOT NULL DEFAULT 0`,
		`ALTER TABLE manual_costs ADD COLUMN archived_at TIMESTAMP`,
	}

	for _, query := range queries {
		if _, err := tx.Exec(query); err != nil {
			return err
		}
	}
	return nil
}
