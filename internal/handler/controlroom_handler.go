package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parishops/livestream-service/internal/auth"
	"github.com/parishops/livestream-service/internal/controlroom"
	"github.com/parishops/livestream-service/internal/errs"
	"github.com/parishops/livestream-service/internal/model"
)

// ControlRoomHandler exposes the operator surface.
type ControlRoomHandler struct {
	orch *controlroom.Orchestrator
}

// NewControlRoomHandler creates the control-room handler.
func NewControlRoomHandler(o *controlroom.Orchestrator) *ControlRoomHandler {
	return &ControlRoomHandler{orch: o}
}

// Load handles GET /control/sessions/:id: the merged session + chat +
// credentials + viewer-count view.
func (h *ControlRoomHandler) Load(c *gin.Context) {
	view, err := h.orch.LoadSession(c.Request.Context(), auth.FromContext(c), c.Param("id"))
	if err != nil {
		writeControlError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Transition handles POST /sessions/:id/transition.
func (h *ControlRoomHandler) Transition(c *gin.Context) {
	var req model.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	view, err := h.orch.Transition(c.Request.Context(), auth.FromContext(c), c.Param("id"), model.SessionStatus(req.Status))
	if err != nil {
		writeControlError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// RegenerateKey handles POST /control/sessions/:id/regenerate-key.
func (h *ControlRoomHandler) RegenerateKey(c *gin.Context) {
	creds, err := h.orch.RegenerateIngestKey(c.Request.Context(), auth.FromContext(c), c.Param("id"))
	if err != nil {
		writeControlError(c, err)
		return
	}
	c.JSON(http.StatusOK, creds)
}

// SetIngestServer handles POST /control/sessions/:id/ingest-server.
func (h *ControlRoomHandler) SetIngestServer(c *gin.Context) {
	var req struct {
		RTMPURL string `json:"rtmp_url" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	creds, err := h.orch.SetIngestServer(c.Request.Context(), auth.FromContext(c), c.Param("id"), req.RTMPURL)
	if err != nil {
		writeControlError(c, err)
		return
	}
	c.JSON(http.StatusOK, creds)
}

// ModerateDelete handles DELETE /control/chat/:id. Responds with the
// session's remaining messages so the control room can replace its feed.
func (h *ControlRoomHandler) ModerateDelete(c *gin.Context) {
	msgs, err := h.orch.ModerateDelete(c.Request.Context(), auth.FromContext(c), c.Param("id"))
	if err != nil {
		writeControlError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

func writeControlError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.Is(err, errs.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "operator role required"})
	case errors.Is(err, errs.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, errs.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, errs.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected failure"})
	}
}
