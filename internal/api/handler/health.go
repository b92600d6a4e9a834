package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/timmy/randmeme/internal/domain"
)

// PoolReader exposes the current per-category pools.
type PoolReader interface {
	Snapshots() []*domain.CacheEntry
}

// HealthHandler handles health check endpoints.
type HealthHandler struct {
	pools PoolReader
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(pools PoolReader) *HealthHandler {
	return &HealthHandler{pools: pools}
}

// CategoryHealth describes one category pool.
type CategoryHealth struct {
	Size        int        `json:"size"`
	RefreshedAt *time.Time `json:"refreshed_at,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Status     string                    `json:"status"`
	Categories map[string]CategoryHealth `json:"categories"`
}

// Health reports "ok" when at least one category can serve an image and
// "degraded" otherwise. The status code is always 200.
func (h *HealthHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:     "degraded",
		Categories: make(map[string]CategoryHealth),
	}

	for _, entry := range h.pools.Snapshots() {
		ch := CategoryHealth{Size: entry.Len()}
		if !entry.RefreshedAt.IsZero() {
			refreshedAt := entry.RefreshedAt
			ch.RefreshedAt = &refreshedAt
		}
		resp.Categories[entry.Category.String()] = ch
		if !entry.IsEmpty() {
			resp.Status = "ok"
		}
	}

	c.JSON(http.StatusOK, resp)
}
