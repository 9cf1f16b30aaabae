package model

import "time"

// Message is the API view of a chat message.
type Message struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	UserID      string    `json:"user_id"`
	DisplayName string    `json:"display_name"`
	Body        string    `json:"body"`
	CreatedAt   time.Time `json:"created_at"`
}

// MessageFromEntity maps a chat row to its API view.
func MessageFromEntity(ent *ChatMessage) *Message {
	return &Message{
		ID:          ent.ID,
		SessionID:   ent.SessionID,
		UserID:      ent.UserID,
		DisplayName: ent.DisplayName,
		Body:        ent.Body,
		CreatedAt:   ent.CreatedAt,
	}
}

// SendMessageRequest is the request body for POST /sessions/:id/chat.
type SendMessageRequest struct {
	Body string `json:"body" binding:"required"`
}

// RecordViewRequest is the request body for POST /sessions/:id/views.
type RecordViewRequest struct {
	ViewerID     *string `json:"viewer_id"`
	WatchSeconds int64   `json:"watch_seconds"`
}

// ViewStats is the aggregate response for GET /sessions/:id/views/stats.
type ViewStats struct {
	SessionID         string `json:"session_id"`
	WindowDays        int    `json:"window_days"`
	TotalViews        int64  `json:"total_views"`
	DistinctViewers   int64  `json:"distinct_viewers"`
	TotalWatchSeconds int64  `json:"total_watch_seconds"`
}
