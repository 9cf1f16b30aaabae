package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parishops/livestream-service/internal/errs"
	"github.com/parishops/livestream-service/internal/model"
	"github.com/parishops/livestream-service/internal/store"
)

// SessionHandler handles the general (credential-free) session REST API.
type SessionHandler struct {
	store *store.SessionStore
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(s *store.SessionStore) *SessionHandler {
	return &SessionHandler{store: s}
}

// ListSessions handles GET /sessions?status=&privacy=&branch_id=.
func (h *SessionHandler) ListSessions(c *gin.Context) {
	f := store.Filters{
		Status:   model.SessionStatus(c.Query("status")),
		Privacy:  model.SessionPrivacy(c.Query("privacy")),
		BranchID: c.Query("branch_id"),
	}
	if f.Status != "" && !f.Status.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status filter"})
		return
	}
	if f.Privacy != "" && !f.Privacy.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown privacy filter"})
		return
	}
	sessions, err := h.store.List(c.Request.Context(), f)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to list sessions"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetSession handles GET /sessions/:id.
func (h *SessionHandler) GetSession(c *gin.Context) {
	sess, err := h.store.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// CreateSession handles POST /sessions.
func (h *SessionHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	sess, err := h.store.Create(c.Request.Context(), &req)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusCreated, sess)
}

// UpdateSession handles PATCH /sessions/:id. The response never carries
// credentials; operators needing secrets re-fetch through the gate.
func (h *SessionHandler) UpdateSession(c *gin.Context) {
	var req model.UpdateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request", "message": err.Error()})
		return
	}
	sess, err := h.store.Update(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// DeleteSession handles DELETE /sessions/:id.
func (h *SessionHandler) DeleteSession(c *gin.Context) {
	if err := h.store.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeStoreError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func writeStoreError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, errs.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected failure"})
	}
}
