// Package handlers implements the HTTP handlers of the API.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/papercost/papercost-backend/internal/api/dto"
	"github.com/papercost/papercost-backend/internal/infrastructure/storage"
)

// Base provides shared functionality for all handlers.
type Base struct {
	repo storage.Repository
}

// NewBase creates a new base handler with the given repository.
func NewBase(repo storage.Repository) *Base {
	return &Base{repo: repo}
}

// IDParam parses the numeric :id path parameter.
func IDParam(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, dto.BadRequestError("invalid id"))
		return 0, false
	}
	return id, true
}

// IntQuery parses an integer query parameter with a default value.
func IntQuery(c *gin.Context, name string, defaultVal int) int {
	val := c.Query(name)
	if val == "" {
		return defaultVal
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return parsed
}

// BoolQuery parses an optional boolean query parameter, nil when absent.
func BoolQuery(c *gin.Context, name string) *bool {
	val := c.Query(name)
	if val == "" {
		return nil
	}
	b := val == "true" || val == "1"
	return &b
}
