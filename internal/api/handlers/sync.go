package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/papercost/papercost-backend/internal/adapters/paperless"
	"github.com/papercost/papercost-backend/internal/api/dto"
	appsync "github.com/papercost/papercost-backend/internal/application/sync"
)

// SyncHandler exposes the sync trigger and the run ledger.
type SyncHandler struct {
	*Base
	service *appsync.Service
}

// NewSyncHandler creates a new sync handler.
func NewSyncHandler(base *Base, service *appsync.Service) *SyncHandler {
	return &SyncHandler{Base: base, service: service}
}

// Start runs one reconciliation pass synchronously and returns its result.
// Failure classes map to distinct status codes so the UI can give precise
// guidance: incomplete settings (422), bad archive credentials (502),
// archive unreachable or erroring (503), unknown tag (404) and an already
// running pass (409).
func (h *SyncHandler) Start(c *gin.Context) {
	result, err := h.service.Sync(c.Request.Context())
	if err == nil {
		c.JSON(http.StatusOK, result)
		return
	}

	var authErr *paperless.AuthError
	var apiErr *paperless.APIError
	switch {
	case errors.Is(err, appsync.ErrSyncInProgress):
		c.JSON(http.StatusConflict, dto.ConflictError(err.Error()))
	case errors.Is(err, appsync.ErrNotConfigured):
		c.JSON(http.StatusUnprocessableEntity, dto.ValidationError(err.Error()))
	case errors.Is(err, paperless.ErrTagNotFound):
		c.JSON(http.StatusNotFound, dto.NewAPIError(dto.ErrCodeNotFound, err.Error()))
	case errors.As(err, &authErr):
		c.JSON(http.StatusBadGateway, dto.NewAPIError(dto.ErrCodeUpstreamAuth,
			"paperless rejected the configured token"))
	case errors.As(err, &apiErr):
		c.JSON(http.StatusServiceUnavailable, dto.NewAPIError(dto.ErrCodeUpstreamDown, err.Error()))
	default:
		c.JSON(http.StatusServiceUnavailable, dto.NewAPIError(dto.ErrCodeUpstreamDown, err.Error()))
	}
}

// ListRuns returns the most recent ledger entries, newest first.
func (h *SyncHandler) ListRuns(c *gin.Context) {
	limit := IntQuery(c, "limit", 20)

	runs, err := h.repo.ListSyncRuns(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}

	out := make([]*appsync.SyncResult, 0, len(runs))
	for i := range runs {
		out = append(out, appsync.ResultFromRun(&runs[i]))
	}
	c.JSON(http.StatusOK, out)
}

// GetRun returns a single ledger entry.
func (h *SyncHandler) GetRun(c *gin.Context) {
	id, ok := IDParam(c)
	if !ok {
		return
	}

	run, err := h.repo.GetSyncRun(id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.InternalError())
		return
	}
	if run == nil {
		c.JSON(http.StatusNotFound, dto.NotFoundError("sync run"))
		return
	}
	c.JSON(http.StatusOK, appsync.ResultFromRun(run))
}
