package handlers

import (
	"encoding/csv"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/papercost/papercost-backend/internal/api/dto"
	"github.com/papercost/papercost-backend/internal/domain/daterange"
)

// ReportsHandler exposes the cross-source summary and the CSV export.
type ReportsHandler struct {
	*Base
}

// NewReportsHandler creates a new reports handler.
func NewReportsHandler(base *Base) *ReportsHandler {
	return &ReportsHandler{Base: base}
}

// resolveRange reads the range/from/to query parameters. The default is the
// full history, matching the dashboard's all-time totals.
func resolveRange(c *gin.Context) (*time.Time, *time.Time, error) {
	key := c.DefaultQuery("range", daterange.KeyAll)
	return daterange.Resolve(key, c.Query("from"), c.Query("to"), time.Now().UTC())
}

// Summary aggregates invoices and manual costs over an optional date range.
func (h *ReportsHandler) Summary(c *gin.Context) {
	start, end, err := resolveRange(c)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.ValidationError(err.Error()))
		return
	}

	summary, err := h.repo.GetSummary(start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, dto.NewSummaryResponse(summary))
}

// ExportCSV streams every cost line from both sources as CSV.
func (h *ReportsHandler) ExportCSV(c *gin.Context) {
	start, end, err := resolveRange(c)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.ValidationError(err.Error()))
		return
	}

	rows, err := h.repo.ListAllCosts(start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename=papercost_export.csv`)
	c.Status(http.StatusOK)

	w := csv.NewWriter(c.Writer)
	_ = w.Write([]string{
		"date", "source", "vendor", "amount", "currency",
		"title", "category", "note", "paperless_doc_id", "confidence", "needs_review",
	})

	for _, row := range rows {
		record := []string{
			deref(row.Date),
			row.Source,
			deref(row.Vendor),
			"",
			row.Currency,
			deref(row.Title),
			deref(row.Category),
			deref(row.Note),
			"",
			"",
			"",
		}
		if row.Amount.Valid {
			record[3] = row.Amount.Decimal.String()
		}
		if row.DocID != nil {
			record[8] = strconv.FormatInt(*row.DocID, 10)
		}
		if row.Confidence != nil {
			record[9] = strconv.FormatFloat(*row.Confidence, 'f', -1, 64)
		}
		if row.NeedsReview != nil {
			record[10] = strconv.FormatBool(*row.NeedsReview)
		}
		_ = w.Write(record)
	}
	w.Flush()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
