package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/papercost/papercost-backend/internal/api/dto"
	"github.com/papercost/papercost-backend/internal/infrastructure/config"
)

// HealthHandler handles health and config introspection requests.
type HealthHandler struct {
	cfg *config.Config
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(cfg *config.Config) *HealthHandler {
	return &HealthHandler{cfg: cfg}
}

// Health reports liveness.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewHealthResponse())
}

// Config exposes the non-secret configuration.
func (h *HealthHandler) Config(c *gin.Context) {
	c.JSON(http.StatusOK, dto.NewConfigResponse(h.cfg))
}
