package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/parishops/livestream-service/internal/model"
	"github.com/parishops/livestream-service/internal/views"
)

// ViewsHandler handles the durable view-record API.
type ViewsHandler struct {
	svc *views.Service
}

// NewViewsHandler creates a views handler.
func NewViewsHandler(svc *views.Service) *ViewsHandler {
	return &ViewsHandler{svc: svc}
}

// Record handles POST /sessions/:id/views. Anonymous viewers post with a
// null viewer_id.
func (h *ViewsHandler) Record(c *gin.Context) {
	var req model.RecordViewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	rec, err := h.svc.Record(c.Request.Context(), c.Param("id"), req.ViewerID, req.WatchSeconds)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": rec.ID})
}

// Stats handles GET /sessions/:id/views/stats?window_days=.
func (h *ViewsHandler) Stats(c *gin.Context) {
	windowDays := 0
	if raw := c.Query("window_days"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "window_days must be a positive integer"})
			return
		}
		windowDays = n
	}
	stats, err := h.svc.Stats(c.Request.Context(), c.Param("id"), windowDays)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
