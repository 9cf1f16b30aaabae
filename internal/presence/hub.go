// Package presence tracks ephemeral per-connection membership on a session's
// live channel. Entries exist only while the owning connection is open and
// are never persisted; the live viewer count is the number of connections.
package presence

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// TopicName returns the channel topic for a session. Topics are unique per
// session so presence events never leak across sessions.
func TopicName(sessionID string) string {
	return "stream-presence-" + sessionID
}

// Member is one WebSocket connection on a session's presence channel.
// Key is the authenticated user id, or a generated anonymous id; two tabs of
// the same user are two members.
type Member struct {
	SessionID string
	Key       string
	JoinedAt  time.Time
	Conn      *websocket.Conn
	Send      chan []byte
}

// SyncEvent is broadcast to every member whenever membership changes.
type SyncEvent struct {
	Event     string `json:"event"` // always "presence_sync"
	SessionID string `json:"session_id"`
	Count     int    `json:"count"`
}

// Hub manages presence channels for all sessions.
type Hub struct {
	mu      sync.RWMutex
	members map[string]map[*Member]struct{} // sessionID -> set of members
	log     *zap.Logger
}

// NewHub creates a presence hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		members: make(map[string]map[*Member]struct{}),
		log:     log,
	}
}

// Join adds a connection to a session's channel and returns the member plus a
// cleanup function. Joining announces the new count to every member,
// including the one that just joined; cleanup announces it to the remainder.
func (h *Hub) Join(sessionID, key string, conn *websocket.Conn) (*Member, func()) {
	m := &Member{
		SessionID: sessionID,
		Key:       key,
		JoinedAt:  time.Now(),
		Conn:      conn,
		Send:      make(chan []byte, 16),
	}
	h.mu.Lock()
	if h.members[sessionID] == nil {
		h.members[sessionID] = make(map[*Member]struct{})
	}
	h.members[sessionID][m] = struct{}{}
	h.mu.Unlock()

	h.log.Info("presence join",
		zap.String("topic", TopicName(sessionID)),
		zap.String("key", key))
	h.broadcastSync(sessionID)

	cleanup := func() {
		h.leave(sessionID, m)
	}
	return m, cleanup
}

func (h *Hub) leave(sessionID string, m *Member) {
	h.mu.Lock()
	set, ok := h.members[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := set[m]; !ok {
		h.mu.Unlock()
		return
	}
	delete(set, m)
	if len(set) == 0 {
		delete(h.members, sessionID)
	}
	// Closed under the write lock: broadcasts hold the read lock while
	// sending, so nothing can write to a closed channel.
	close(m.Send)
	h.mu.Unlock()

	h.log.Info("presence leave",
		zap.String("topic", TopicName(sessionID)),
		zap.String("key", m.Key))
	h.broadcastSync(sessionID)
}

// Count returns the current viewer count: the number of active connections on
// the session's channel.
func (h *Hub) Count(sessionID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.members[sessionID])
}

// Snapshot returns the channel's membership grouped by key: every join
// timestamp for each distinct key. The count equals the total number of
// entries across all keys.
func (h *Hub) Snapshot(sessionID string) map[string][]time.Time {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make(map[string][]time.Time, len(h.members[sessionID]))
	for m := range h.members[sessionID] {
		out[m.Key] = append(out[m.Key], m.JoinedAt)
	}
	return out
}

// broadcastSync fans the current count out under the read lock. Sends are
// non-blocking, so holding the lock across the loop is fine and guarantees no
// send races a close.
func (h *Hub) broadcastSync(sessionID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	set := h.members[sessionID]
	raw, _ := json.Marshal(SyncEvent{
		Event:     "presence_sync",
		SessionID: sessionID,
		Count:     len(set),
	})
	for m := range set {
		select {
		case m.Send <- raw:
		default:
			h.log.Warn("presence send buffer full", zap.String("key", m.Key))
		}
	}
}
