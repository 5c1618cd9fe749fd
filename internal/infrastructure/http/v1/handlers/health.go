package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Pinger is a storage backend that can report its reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler provides the health check endpoint.
type HealthHandler struct {
	db      Pinger
	storage string
}

// NewHealthHandler creates a new health handler. db may be nil for the
// in-memory store.
func NewHealthHandler(db Pinger, storage string) *HealthHandler {
	return &HealthHandler{db: db, storage: storage}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	if h.db != nil {
		if err := h.db.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":  "error",
				"storage": h.storage,
				"checks": map[string]string{
					"database": "unhealthy: " + err.Error(),
				},
			})
			return
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"storage": h.storage,
	})
}
