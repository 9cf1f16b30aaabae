package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parishops/livestream-service/internal/auth"
	"github.com/parishops/livestream-service/internal/chat"
	"github.com/parishops/livestream-service/internal/errs"
	"github.com/parishops/livestream-service/internal/model"
)

// ChatHandler handles the chat REST API.
type ChatHandler struct {
	svc *chat.Service
}

// NewChatHandler creates a chat handler.
func NewChatHandler(svc *chat.Service) *ChatHandler {
	return &ChatHandler{svc: svc}
}

// History handles GET /sessions/:id/chat.
func (h *ChatHandler) History(c *gin.Context) {
	msgs, err := h.svc.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeChatError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// Send handles POST /sessions/:id/chat.
func (h *ChatHandler) Send(c *gin.Context) {
	var req model.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	msg, err := h.svc.Send(c.Request.Context(), auth.FromContext(c), c.Param("id"), req.Body)
	if err != nil {
		writeChatError(c, err)
		return
	}
	c.JSON(http.StatusCreated, msg)
}

// Delete handles DELETE /chat/:id (moderation).
func (h *ChatHandler) Delete(c *gin.Context) {
	if _, err := h.svc.Delete(c.Request.Context(), auth.FromContext(c), c.Param("id")); err != nil {
		writeChatError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeChatError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.Is(err, errs.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "operator role required"})
	case errors.Is(err, errs.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, errs.ErrMessageNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "message not found"})
	case errors.Is(err, errs.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected failure"})
	}
}
