package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/papercost/papercost-backend/internal/api/dto"
	"github.com/papercost/papercost-backend/internal/domain/provenance"
	"github.com/papercost/papercost-backend/internal/infrastructure/storage"
)

// InvoicesHandler exposes reconciled invoices: listing, manual edits and
// provenance resets.
type InvoicesHandler struct {
	*Base
}

// NewInvoicesHandler creates a new invoices handler.
func NewInvoicesHandler(base *Base) *InvoicesHandler {
	return &InvoicesHandler{Base: base}
}

// List returns invoices, optionally filtered by review state and a search
// term matching vendor or title.
func (h *InvoicesHandler) List(c *gin.Context) {
	filters := storage.InvoiceFilters{
		NeedsReview: BoolQuery(c, "needs_review"),
		Search:      c.Query("search"),
		Sort:        c.DefaultQuery("sort", "date_desc"),
	}

	invoices, err := h.repo.ListInvoices(filters)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, dto.NewInvoiceListResponse(invoices))
}

// Get returns a single invoice.
func (h *InvoicesHandler) Get(c *gin.Context) {
	id, ok := IDParam(c)
	if !ok {
		return
	}

	invoice, err := h.repo.GetInvoice(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if invoice == nil {
		c.JSON(http.StatusNotFound, dto.NotFoundError("invoice"))
		return
	}
	c.JSON(http.StatusOK, dto.NewInvoiceResponse(invoice))
}

// Update applies a partial manual edit. Writing a vendor or amount that
// differs from the stored value flips that field to manual, freezing it
// against future syncs. An explicit needs_review wins; otherwise editing
// a field clears the flag once both vendor and amount are filled.
func (h *InvoicesHandler) Update(c *gin.Context) {
	id, ok := IDParam(c)
	if !ok {
		return
	}

	var req dto.InvoiceUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	invoice, err := h.repo.GetInvoice(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if invoice == nil {
		c.JSON(http.StatusNotFound, dto.NotFoundError("invoice"))
		return
	}

	if req.VendorSet {
		invoice.SetVendorField(invoice.VendorField().ApplyManualEdit(req.Vendor))
	}
	if req.AmountSet && req.Amount.Valid {
		invoice.SetAmountField(invoice.AmountField().ApplyManualEdit(req.Amount))
	}

	if req.NeedsReview != nil {
		invoice.NeedsReview = *req.NeedsReview
	} else if (req.VendorSet || req.AmountSet) && invoice.Vendor != nil && invoice.Amount.Valid {
		invoice.NeedsReview = false
	}

	invoice.UpdatedAt = time.Now().UTC()
	if err := h.repo.UpdateInvoice(invoice); err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, dto.NewInvoiceResponse(invoice))
}

// Reset puts one field back under automatic tracking, restoring the last
// extracted value without waiting for the next sync.
func (h *InvoicesHandler) Reset(c *gin.Context) {
	id, ok := IDParam(c)
	if !ok {
		return
	}

	var req dto.InvoiceResetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	invoice, err := h.repo.GetInvoice(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if invoice == nil {
		c.JSON(http.StatusNotFound, dto.NotFoundError("invoice"))
		return
	}

	switch req.Field {
	case "vendor":
		invoice.SetVendorField(invoice.VendorField().Reset())
	case "amount":
		invoice.SetAmountField(invoice.AmountField().Reset())
	default:
		c.JSON(http.StatusUnprocessableEntity,
			dto.ValidationError(`field must be "vendor" or "amount"`))
		return
	}

	// Both fields back on auto means the extractor's verdict applies again;
	// flag for review so a human confirms the restored values.
	if invoice.VendorSource == provenance.SourceAuto && invoice.AmountSource == provenance.SourceAuto {
		invoice.NeedsReview = true
	}

	invoice.UpdatedAt = time.Now().UTC()
	if err := h.repo.UpdateInvoice(invoice); err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, dto.NewInvoiceResponse(invoice))
}
