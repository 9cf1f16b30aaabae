package chat

import (
	"encoding/json"
	"sync"

	"github.com/parishops/livestream-service/internal/model"
	"go.uber.org/zap"
)

// TopicName returns the live-feed topic for a session's chat, unique per
// session so insert events never leak across sessions.
func TopicName(sessionID string) string {
	return "stream-chat-" + sessionID
}

// InsertEvent is delivered to subscribers once per newly inserted message.
// Transport delivery is at-least-once; consumers dedupe by Message.ID.
type InsertEvent struct {
	Event   string         `json:"event"` // always "message_insert"
	Message *model.Message `json:"message"`
}

// Subscriber is one live chat feed. Events arrive on C until Unsubscribe.
type Subscriber struct {
	C         chan []byte
	sessionID string
	hub       *Hub
	once      sync.Once
}

// Unsubscribe detaches the feed and closes C. Safe to call more than once.
func (s *Subscriber) Unsubscribe() {
	s.once.Do(func() {
		s.hub.drop(s.sessionID, s)
	})
}

// Hub fans out chat insert events to per-session subscribers.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]map[*Subscriber]struct{} // sessionID -> subscribers
	log  *zap.Logger
}

// NewHub creates a chat fan-out hub.
func NewHub(log *zap.Logger) *Hub {
	return &Hub{
		subs: make(map[string]map[*Subscriber]struct{}),
		log:  log,
	}
}

// Subscribe opens a live feed for a session's chat.
func (h *Hub) Subscribe(sessionID string) *Subscriber {
	s := &Subscriber{
		C:         make(chan []byte, 64),
		sessionID: sessionID,
		hub:       h,
	}
	h.mu.Lock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*Subscriber]struct{})
	}
	h.subs[sessionID][s] = struct{}{}
	h.mu.Unlock()
	return s
}

func (h *Hub) drop(sessionID string, s *Subscriber) {
	h.mu.Lock()
	if set, ok := h.subs[sessionID]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.subs, sessionID)
		}
	}
	// Closed under the write lock: Publish sends under the read lock, so a
	// closed channel is never written.
	close(s.C)
	h.mu.Unlock()
}

// Publish fans an insert event out to every subscriber of the session.
// Slow subscribers with a full buffer miss the event and reconcile from
// history.
func (h *Hub) Publish(msg *model.Message) {
	raw, _ := json.Marshal(InsertEvent{Event: "message_insert", Message: msg})

	h.mu.RLock()
	defer h.mu.RUnlock()
	for s := range h.subs[msg.SessionID] {
		select {
		case s.C <- raw:
		default:
			h.log.Warn("chat send buffer full",
				zap.String("topic", TopicName(msg.SessionID)))
		}
	}
}
