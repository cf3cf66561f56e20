package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/papercost/papercost-backend/internal/api/dto"
)

// ManualCostsHandler exposes CRUD for hand-entered cost lines.
type ManualCostsHandler struct {
	*Base
}

// NewManualCostsHandler creates a new manual costs handler.
func NewManualCostsHandler(base *Base) *ManualCostsHandler {
	return &ManualCostsHandler{Base: base}
}

// Create adds a new cost line.
func (h *ManualCostsHandler) Create(c *gin.Context) {
	var req dto.ManualCostCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	item, err := req.ToModel(time.Now().UTC())
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.ValidationError(err.Error()))
		return
	}

	if err := h.repo.CreateManualCost(item); err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusCreated, dto.NewManualCostResponse(item))
}

// List returns cost lines, newest date first. Archived lines are hidden
// unless include_archived is set.
func (h *ManualCostsHandler) List(c *gin.Context) {
	includeArchived := false
	if b := BoolQuery(c, "include_archived"); b != nil {
		includeArchived = *b
	}

	items, err := h.repo.ListManualCosts(includeArchived)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, dto.NewManualCostListResponse(items))
}

// Update applies a partial edit to a cost line.
func (h *ManualCostsHandler) Update(c *gin.Context) {
	id, ok := IDParam(c)
	if !ok {
		return
	}

	var req dto.ManualCostUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.BadRequestError(err.Error()))
		return
	}

	item, err := h.repo.GetManualCost(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, dto.NotFoundError("manual cost"))
		return
	}

	if err := req.Apply(item); err != nil {
		c.JSON(http.StatusUnprocessableEntity, dto.ValidationError(err.Error()))
		return
	}

	if err := h.repo.UpdateManualCost(item); err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, dto.NewManualCostResponse(item))
}

// Archive hides a cost line from summaries and exports without losing it.
func (h *ManualCostsHandler) Archive(c *gin.Context) {
	id, ok := IDParam(c)
	if !ok {
		return
	}

	item, err := h.repo.GetManualCost(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, dto.NotFoundError("manual cost"))
		return
	}

	if err := h.repo.ArchiveManualCost(id, time.Now().UTC()); err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, gin.H{"archived": true})
}

// Delete removes a cost line permanently.
func (h *ManualCostsHandler) Delete(c *gin.Context) {
	id, ok := IDParam(c)
	if !ok {
		return
	}

	item, err := h.repo.GetManualCost(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if item == nil {
		c.JSON(http.StatusNotFound, dto.NotFoundError("manual cost"))
		return
	}

	if err := h.repo.DeleteManualCost(id); err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
