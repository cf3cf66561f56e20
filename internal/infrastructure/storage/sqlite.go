package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Storage provides SQLite database access for invoices, manual costs and
// sync runs. It implements the Repository interface.
type Storage struct {
	db *sql.DB
}

// Compile-time check that Storage implements Repository
var _ Repository = (*Storage)(nil)

// NewStorage creates a new storage instance with SQLite database
func NewStorage(dbPath string) (*Storage, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Storage{db: db}

	if err := s.runMigrations(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

const invoiceColumns = `id, source, paperless_doc_id, paperless_created, title,
	vendor, vendor_auto, vendor_source, amount, amount_auto, amount_source,
	currency, confidence, needs_review, extracted_at, updated_at,
	debug_json, correspondent, document_type, ocr_text`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInvoice(row rowScanner) (*Invoice, error) {
	inv := &Invoice{}
	var (
		docCreated    sql.NullTime
		title         sql.NullString
		vendor        sql.NullString
		vendorAuto    sql.NullString
		debugJSON     sql.NullString
		correspondent sql.NullString
		documentType  sql.NullString
		ocrText       sql.NullString
	)

	err := row.Scan(
		&inv.ID,
		&inv.Source,
		&inv.DocID,
		&docCreated,
		&title,
		&vendor,
		&vendorAuto,
		&inv.VendorSource,
		&inv.Amount,
		&inv.AmountAuto,
		&inv.AmountSource,
		&inv.Currency,
		&inv.Confidence,
		&inv.NeedsReview,
		&inv.ExtractedAt,
		&inv.UpdatedAt,
		&debugJSON,
		&correspondent,
		&documentType,
		&ocrText,
	)
	if err != nil {
		return nil, err
	}

	if docCreated.Valid {
		t := docCreated.Time
		inv.DocCreated = &t
	}
	inv.Title = nullString(title)
	inv.Vendor = nullString(vendor)
	inv.VendorAuto = nullString(vendorAuto)
	inv.DebugJSON = nullString(debugJSON)
	inv.Correspondent = nullString(correspondent)
	inv.DocumentType = nullString(documentType)
	if ocrText.Valid {
		inv.OCRText = ocrText.String
	}

	return inv, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// GetInvoicesByDocIDs returns existing invoices keyed by external document
// id in a single query.
func (s *Storage) GetInvoicesByDocIDs(ids []int64) (map[int64]*Invoice, error) {
	existing := make(map[int64]*Invoice, len(ids))
	if len(ids) == 0 {
		return existing, nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE paperless_doc_id IN (%s)`,
		invoiceColumns, placeholders)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("bulk invoice lookup failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		existing[inv.DocID] = inv
	}

	return existing, rows.Err()
}

// GetInvoice retrieves one invoice by internal id, nil if absent.
func (s *Storage) GetInvoice(id int64) (*Invoice, error) {
	query := fmt.Sprintf(`SELECT %s FROM invoices WHERE id = ?`, invoiceColumns)
	inv, err := scanInvoice(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

// ListInvoices returns invoices matching the given filters.
func (s *Storage) ListInvoices(filters InvoiceFilters) ([]*Invoice, error) {
	var (
		conds []string
		args  []any
	)

	if filters.NeedsReview != nil {
		conds = append(conds, "needs_review = ?")
		args = append(args, *filters.NeedsReview)
	}
	if search := strings.TrimSpace(filters.Search); search != "" {
		conds = append(conds, "(vendor LIKE ? COLLATE NOCASE OR title LIKE ? COLLATE NOCASE)")
		like := "%" + search + "%"
		args = append(args, like, like)
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var order string
	switch filters.Sort {
	case "amount_desc":
		order = "CAST(amount AS REAL) DESC, id DESC"
	case "amount_asc":
		order = "CAST(amount AS REAL) ASC, id DESC"
	case "date_asc":
		order = "paperless_created ASC, id DESC"
	case "vendor_asc":
		order = "vendor COLLATE NOCASE ASC, id DESC"
	default: // date_desc
		order = "paperless_created DESC, id DESC"
	}

	query := fmt.Sprintf(`SELECT %s FROM invoices%s ORDER BY %s`, invoiceColumns, where, order)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var invoices []*Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		invoices = append(invoices, inv)
	}

	return invoices, rows.Err()
}

// UpdateInvoice persists a user-facing edit to an existing row.
func (s *Storage) UpdateInvoice(invoice *Invoice) error {
	invoice.UpdatedAt = time.Now().UTC()
	res, err := s.db.Exec(updateInvoiceSQL, updateInvoiceArgs(invoice)...)
	if err != nil {
		return fmt.Errorf("failed to update invoice %d: %w", invoice.ID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("invoice %d not found", invoice.ID)
	}
	return nil
}

const insertInvoiceSQL = `
INSERT INTO invoices
	(source, paperless_doc_id, paperless_created, title,
	 vendor, vendor_auto, vendor_source, amount, amount_auto, amount_source,
	 currency, confidence, needs_review, extracted_at, updated_at,
	 debug_json, correspondent, document_type, ocr_text)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`

const updateInvoiceSQL = `
UPDATE invoices SET
	source = ?, paperless_created = ?, title = ?,
	vendor = ?, vendor_auto = ?, vendor_source = ?,
	amount = ?, amount_auto = ?, amount_source = ?,
	currency = ?, confidence = ?, needs_review = ?,
	extracted_at = ?, updated_at = ?,
	debug_json = ?, correspondent = ?, document_type = ?, ocr_text = ?
WHERE id = ?
`

func insertInvoiceArgs(inv *Invoice) []any {
	return []any{
		inv.Source,
		inv.DocID,
		nullableTime(inv.DocCreated),
		inv.Title,
		inv.Vendor,
		inv.VendorAuto,
		inv.VendorSource,
		inv.Amount,
		inv.AmountAuto,
		inv.AmountSource,
		inv.Currency,
		inv.Confidence,
		inv.NeedsReview,
		inv.ExtractedAt,
		inv.UpdatedAt,
		inv.DebugJSON,
		inv.Correspondent,
		inv.DocumentType,
		inv.OCRText,
	}
}

func updateInvoiceArgs(inv *Invoice) []any {
	return []any{
		inv.Source,
		nullableTime(inv.DocCreated),
		inv.Title,
		inv.Vendor,
		inv.VendorAuto,
		inv.VendorSource,
		inv.Amount,
		inv.AmountAuto,
		inv.AmountSource,
		inv.Currency,
		inv.Confidence,
		inv.NeedsReview,
		inv.ExtractedAt,
		inv.UpdatedAt,
		inv.DebugJSON,
		inv.Correspondent,
		inv.DocumentType,
		inv.OCRText,
		inv.ID,
	}
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}
