package model

import "time"

// StreamSession is the broadcast session row (GORM).
// rtmp_server and stream_key are never mapped into API DTOs outside the
// credential gate; see model/session.go.
type StreamSession struct {
	ID          string     `gorm:"type:uuid;primaryKey"`
	BranchID    string     `gorm:"type:uuid;not null;index"`
	Title       string     `gorm:"size:200;not null"`
	Description string     `gorm:"type:text"`
	Status      string     `gorm:"size:20;not null;default:scheduled"` // scheduled, live, ended, archived, cancelled
	Privacy     string     `gorm:"size:20;not null;default:public"`    // public, members_only, private
	StartTime   *time.Time `gorm:"column:start_time"`
	EndTime     *time.Time `gorm:"column:end_time"`
	ViewCount   int64      `gorm:"not null;default:0"`
	RTMPServer  string     `gorm:"column:rtmp_server;size:255;not null"`
	StreamKey   string     `gorm:"size:64;not null;uniqueIndex"`
	CreatedAt   time.Time  `gorm:"autoCreateTime"`
	UpdatedAt   time.Time  `gorm:"autoUpdateTime"`
}

func (StreamSession) TableName() string { return "stream_sessions" }

// ChatMessage is one audience chat line (GORM). IDs are ULIDs, so ordering
// by id equals ordering by creation time.
type ChatMessage struct {
	ID          string    `gorm:"size:26;primaryKey"`
	SessionID   string    `gorm:"type:uuid;not null;index"`
	UserID      string    `gorm:"type:uuid;not null;index"`
	DisplayName string    `gorm:"size:100;not null"`
	Body        string    `gorm:"type:text;not null"`
	CreatedAt   time.Time `gorm:"autoCreateTime"`
}

func (ChatMessage) TableName() string { return "chat_messages" }

// ViewRecord is one durable watch log line, counted toward historical view
// statistics. Distinct from ephemeral presence, which is never persisted.
type ViewRecord struct {
	ID           string    `gorm:"type:uuid;primaryKey"`
	SessionID    string    `gorm:"type:uuid;not null;index"`
	ViewerID     *string   `gorm:"type:uuid"` // nil for anonymous viewers
	WatchSeconds int64     `gorm:"not null;default:0"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
}

func (ViewRecord) TableName() string { return "view_records" }
