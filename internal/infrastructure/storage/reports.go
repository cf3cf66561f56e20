package storage

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

// dateBounds renders an optional closed date interval as SQL conditions on
// the given column expression. Nil bounds mean unbounded.
func dateBounds(column string, start, end *time.Time) (string, []any) {
	if start == nil || end == nil {
		return "", nil
	}
	cond := " AND date(" + column + ") >= ? AND date(" + column + ") <= ?"
	return cond, []any{start.Format(manualCostDateLayout), end.Format(manualCostDateLayout)}
}

// GetSummary aggregates both cost sources, optionally bounded to a date range.
func (s *Storage) GetSummary(start, end *time.Time) (*Summary, error) {
	summary := &Summary{
		TopVendors:      []VendorTotal{},
		CostsByCategory: []CategoryTotal{},
	}

	invCond, invArgs := dateBounds("paperless_created", start, end)
	manCond, manArgs := dateBounds("date", start, end)

	var invoiceTotal, manualTotal float64

	err := s.db.QueryRow(`
		SELECT COALESCE(SUM(CAST(amount AS REAL)), 0), COUNT(*),
		       COUNT(CASE WHEN needs_review = 1 THEN 1 END)
		FROM invoices WHERE 1=1`+invCond, invArgs...).
		Scan(&invoiceTotal, &summary.InvoiceCount, &summary.NeedsReviewCount)
	if err != nil {
		return nil, err
	}

	err = s.db.QueryRow(`
		SELECT COALESCE(SUM(CAST(amount AS REAL)), 0), COUNT(*)
		FROM manual_costs WHERE is_archived = 0`+manCond, manArgs...).
		Scan(&manualTotal, &summary.ManualCostCount)
	if err != nil {
		return nil, err
	}

	summary.InvoiceTotal = decimal.NewFromFloat(invoiceTotal).Round(2)
	summary.ManualTotal = decimal.NewFromFloat(manualTotal).Round(2)
	summary.TotalAmount = summary.InvoiceTotal.Add(summary.ManualTotal)

	rows, err := s.db.Query(`
		SELECT vendor, COALESCE(SUM(CAST(amount AS REAL)), 0) AS total
		FROM invoices
		WHERE vendor IS NOT NULL AND vendor != ''`+invCond+`
		GROUP BY vendor
		ORDER BY total DESC
		LIMIT 10`, invArgs...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var name string
		var total float64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, err
		}
		summary.TopVendors = append(summary.TopVendors, VendorTotal{
			Name:   name,
			Amount: decimal.NewFromFloat(total).Round(2),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	catRows, err := s.db.Query(`
		SELECT COALESCE(category, ''), COALESCE(SUM(CAST(amount AS REAL)), 0) AS total
		FROM manual_costs
		WHERE is_archived = 0`+manCond+`
		GROUP BY category
		ORDER BY total DESC`, manArgs...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = catRows.Close() }()

	for catRows.Next() {
		var category string
		var total float64
		if err := catRows.Scan(&category, &total); err != nil {
			return nil, err
		}
		if category == "" {
			category = "Unkategorisiert"
		}
		summary.CostsByCategory = append(summary.CostsByCategory, CategoryTotal{
			Category: category,
			Amount:   decimal.NewFromFloat(total).Round(2),
		})
	}

	return summary, catRows.Err()
}

// ListAllCosts returns the invoice/manual-cost union used by the CSV export.
func (s *Storage) ListAllCosts(start, end *time.Time) ([]CostRow, error) {
	invCond, invArgs := dateBounds("paperless_created", start, end)
	manCond, manArgs := dateBounds("date", start, end)

	query := `
	SELECT date(paperless_created) AS date, source, vendor, amount, currency,
	       title, NULL AS category, NULL AS note,
	       paperless_doc_id, confidence, needs_review
	FROM invoices WHERE 1=1` + invCond + `
	UNION ALL
	SELECT date, source, vendor, amount, currency,
	       NULL AS title, category, note,
	       NULL AS paperless_doc_id, NULL AS confidence, NULL AS needs_review
	FROM manual_costs WHERE is_archived = 0` + manCond + `
	ORDER BY date DESC`

	args := append(append([]any{}, invArgs...), manArgs...)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var result []CostRow
	for rows.Next() {
		var (
			row         CostRow
			date        sql.NullString
			vendor      sql.NullString
			title       sql.NullString
			category    sql.NullString
			note        sql.NullString
			docID       sql.NullInt64
			confidence  sql.NullFloat64
			needsReview sql.NullBool
		)

		if err := rows.Scan(&date, &row.Source, &vendor, &row.Amount, &row.Currency,
			&title, &category, &note, &docID, &confidence, &needsReview); err != nil {
			return nil, err
		}

		row.Date = nullString(date)
		row.Vendor = nullString(vendor)
		row.Title = nullString(title)
		row.Category = nullString(category)
		row.Note = nullString(note)
		if docID.Valid {
			id := docID.Int64
			row.DocID = &id
		}
		if confidence.Valid {
			c := confidence.Float64
			row.Confidence = &c
		}
		if needsReview.Valid {
			nr := needsReview.Bool
			row.NeedsReview = &nr
		}

		result = append(result, row)
	}

	return result, rows.Err()
}
