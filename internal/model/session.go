package model

import "time"

// SessionStatus represents broadcast session state.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusLive      SessionStatus = "live"
	SessionStatusEnded     SessionStatus = "ended"
	SessionStatusArchived  SessionStatus = "archived"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// Valid reports whether s is a known status value.
func (s SessionStatus) Valid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusLive, SessionStatusEnded,
		SessionStatusArchived, SessionStatusCancelled:
		return true
	}
	return false
}

// SessionPrivacy controls who may see a session.
type SessionPrivacy string

const (
	PrivacyPublic      SessionPrivacy = "public"
	PrivacyMembersOnly SessionPrivacy = "members_only"
	PrivacyPrivate     SessionPrivacy = "private"
)

// Valid reports whether p is a known privacy value.
func (p SessionPrivacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyMembersOnly, PrivacyPrivate:
		return true
	}
	return false
}

// Session is the API view of a broadcast session. It intentionally has no
// credential fields: ingest secrets only travel through SessionCredentials,
// which only the credential gate produces.
type Session struct {
	ID          string         `json:"id"`
	BranchID    string         `json:"branch_id"`
	Title       string         `json:"title"`
	Description string         `json:"description,omitempty"`
	Status      SessionStatus  `json:"status"`
	Privacy     SessionPrivacy `json:"privacy"`
	StartTime   *time.Time     `json:"start_time,omitempty"`
	EndTime     *time.Time     `json:"end_time,omitempty"`
	ViewCount   int64          `json:"view_count"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// SessionCredentials are the ingest secrets for a session. Returned only by
// the credential gate to operator-role callers.
type SessionCredentials struct {
	RTMPServer string `json:"rtmp_server"`
	StreamKey  string `json:"stream_key"`
}

// SessionFromEntity maps a row to its credential-free API view.
func SessionFromEntity(ent *StreamSession) *Session {
	return &Session{
		ID:          ent.ID,
		BranchID:    ent.BranchID,
		Title:       ent.Title,
		Description: ent.Description,
		Status:      SessionStatus(ent.Status),
		Privacy:     SessionPrivacy(ent.Privacy),
		StartTime:   ent.StartTime,
		EndTime:     ent.EndTime,
		ViewCount:   ent.ViewCount,
		CreatedAt:   ent.CreatedAt,
		UpdatedAt:   ent.UpdatedAt,
	}
}

// CreateSessionRequest is the request body for POST /sessions.
type CreateSessionRequest struct {
	BranchID    string `json:"branch_id" binding:"required,uuid"`
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
	Privacy     string `json:"privacy"`
}

// UpdateSessionRequest is the request body for PATCH /sessions/:id.
// Status and credentials are not updatable through this path.
type UpdateSessionRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Privacy     *string `json:"privacy"`
	BranchID    *string `json:"branch_id"`
}

// TransitionRequest is the request body for POST /sessions/:id/transition.
type TransitionRequest struct {
	Status string `json:"status" binding:"required"`
}
