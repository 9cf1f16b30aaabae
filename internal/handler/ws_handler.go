package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/parishops/livestream-service/internal/auth"
	"github.com/parishops/livestream-service/internal/chat"
	"github.com/parishops/livestream-service/internal/model"
	"github.com/parishops/livestream-service/internal/presence"
	"github.com/parishops/livestream-service/internal/store"
	"go.uber.org/zap"
)

// WSHandler serves the presence channel and the live chat feed.
type WSHandler struct {
	presence   *presence.Hub
	chat       *chat.Service
	store      *store.SessionStore
	upgrader   websocket.Upgrader
	maxMsgSize int64
	logger     *zap.Logger
}

// NewWSHandler creates the WebSocket handler.
func NewWSHandler(p *presence.Hub, c *chat.Service, s *store.SessionStore, readBuf, writeBuf int, maxMsgSize int64, logger *zap.Logger) *WSHandler {
	return &WSHandler{
		presence: p,
		chat:     c,
		store:    s,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuf,
			WriteBufferSize: writeBuf,
			// Viewer surfaces are public embeds; origin policy is enforced
			// upstream.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		maxMsgSize: maxMsgSize,
		logger:     logger,
	}
}

// ServePresence handles GET /ws/presence/:session_id. The connection's
// member key is the authenticated user id when present, otherwise a
// generated anonymous id unique to this connection. The entry lives exactly
// as long as the connection.
func (h *WSHandler) ServePresence(c *gin.Context) {
	sessionID := c.Param("session_id")
	sess, err := h.store.Get(c.Request.Context(), sessionID)
	if err != nil {
		writeStoreError(c, err)
		return
	}
	if sess.Status == model.SessionStatusCancelled {
		c.JSON(http.StatusGone, gin.H{"error": "session cancelled"})
		return
	}

	key := "anon-" + uuid.New().String()
	if id := auth.FromContext(c); id != nil {
		key = id.UserID
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	if h.maxMsgSize > 0 {
		conn.SetReadLimit(h.maxMsgSize)
	}

	member, cleanup := h.presence.Join(sessionID, key, conn)
	defer cleanup()

	go writePump(conn, member.Send)
	discardPump(conn) // presence clients send nothing meaningful
}

// ServeChat handles GET /ws/chat/:session_id: a live feed of insert events.
// Requires authentication (enforced by middleware). Delivery is
// at-least-once; clients dedupe by message id.
func (h *WSHandler) ServeChat(c *gin.Context) {
	sessionID := c.Param("session_id")
	if _, err := h.store.Get(c.Request.Context(), sessionID); err != nil {
		writeStoreError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()
	if h.maxMsgSize > 0 {
		conn.SetReadLimit(h.maxMsgSize)
	}

	sub := h.chat.Subscribe(sessionID)
	defer sub.Unsubscribe()

	go writePump(conn, sub.C)
	discardPump(conn)
}

// writePump copies events from a channel to the connection until either
// closes.
func writePump(conn *websocket.Conn, send <-chan []byte) {
	defer conn.Close()
	for data := range send {
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			break
		}
	}
}

// discardPump reads until the peer disconnects, dropping inbound frames.
func discardPump(conn *websocket.Conn) {
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
