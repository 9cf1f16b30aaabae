package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/parishops/livestream-service/internal/auth"
	"github.com/parishops/livestream-service/internal/credentials"
	"github.com/parishops/livestream-service/internal/errs"
)

// Action discriminators accepted by the credential endpoint.
const (
	ActionGetCredentials = "get_credentials"
	ActionRegenerateKey  = "regenerate_key"
	ActionSetRTMPServer  = "set_rtmp_server"
)

// CredentialsRequest is the body of POST /functions/stream-credentials.
type CredentialsRequest struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
	RTMPURL   string `json:"rtmp_url"`
}

// CredentialsHandler exposes the credential gate as a single
// action-discriminated endpoint with open CORS, mirroring a serverless
// function boundary.
type CredentialsHandler struct {
	gate *credentials.Gate
}

// NewCredentialsHandler creates the credential endpoint handler.
func NewCredentialsHandler(g *credentials.Gate) *CredentialsHandler {
	return &CredentialsHandler{gate: g}
}

// Handle dispatches on the action discriminator. Status semantics: 400 bad
// request, 401 unauthenticated, 403 unauthorized role, 404 unknown session,
// 500 unexpected. Failures never include partial credential data.
func (h *CredentialsHandler) Handle(c *gin.Context) {
	var req CredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Action == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "action is required"})
		return
	}
	if req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}
	id := auth.FromContext(c)
	ctx := c.Request.Context()

	switch req.Action {
	case ActionGetCredentials:
		creds, err := h.gate.GetCredentials(ctx, id, req.SessionID)
		if err != nil {
			writeGateError(c, err)
			return
		}
		c.JSON(http.StatusOK, creds)
	case ActionRegenerateKey:
		creds, err := h.gate.RegenerateKey(ctx, id, req.SessionID)
		if err != nil {
			writeGateError(c, err)
			return
		}
		c.JSON(http.StatusOK, creds)
	case ActionSetRTMPServer:
		if req.RTMPURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "rtmp_url is required"})
			return
		}
		creds, err := h.gate.SetIngestServer(ctx, id, req.SessionID, req.RTMPURL)
		if err != nil {
			writeGateError(c, err)
			return
		}
		c.JSON(http.StatusOK, creds)
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown action"})
	}
}

func writeGateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrUnauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication required"})
	case errors.Is(err, errs.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "operator role required"})
	case errors.Is(err, errs.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
	case errors.Is(err, errs.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unexpected failure"})
	}
}
