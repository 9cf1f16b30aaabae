// Package chat is the durable, ordered, append-only message stream per
// session, with live delivery to subscribers and moderator deletion.
package chat

import (
	"context"
	crand "crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/oklog/ulid/v2"
	"github.com/parishops/livestream-service/internal/auth"
	"github.com/parishops/livestream-service/internal/errs"
	"github.com/parishops/livestream-service/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Monotonic entropy keeps ids strictly increasing within the same
// millisecond, so id order always equals insert order.
var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(crand.Reader, 0)
)

func newMessageID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Service persists chat messages and publishes insert events to the hub.
type Service struct {
	db            *gorm.DB
	hub           *Hub
	operatorRoles []string
	maxBodyRunes  int
	log           *zap.Logger
}

// NewService creates the chat service.
func NewService(db *gorm.DB, hub *Hub, operatorRoles []string, maxBodyRunes int, log *zap.Logger) *Service {
	if maxBodyRunes <= 0 {
		maxBodyRunes = 500
	}
	return &Service{
		db:            db,
		hub:           hub,
		operatorRoles: operatorRoles,
		maxBodyRunes:  maxBodyRunes,
		log:           log,
	}
}

// History returns all messages for a session, oldest first. Message ids are
// ULIDs, so id order is creation order.
func (s *Service) History(ctx context.Context, sessionID string) ([]*model.Message, error) {
	var ents []model.ChatMessage
	if err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&ents).Error; err != nil {
		return nil, fmt.Errorf("chat history: %w", err)
	}
	out := make([]*model.Message, 0, len(ents))
	for i := range ents {
		out = append(out, model.MessageFromEntity(&ents[i]))
	}
	return out, nil
}

// Send inserts a message attributed to the caller and fans out the insert
// event. Requires an authenticated identity.
func (s *Service) Send(ctx context.Context, id *auth.Identity, sessionID, body string) (*model.Message, error) {
	if id == nil {
		return nil, errs.ErrUnauthorized
	}
	if body == "" {
		return nil, fmt.Errorf("%w: empty message body", errs.ErrValidation)
	}
	if utf8.RuneCountInString(body) > s.maxBodyRunes {
		return nil, fmt.Errorf("%w: message exceeds %d characters", errs.ErrValidation, s.maxBodyRunes)
	}
	if err := s.sessionExists(ctx, sessionID); err != nil {
		return nil, err
	}

	ent := &model.ChatMessage{
		ID:          newMessageID(),
		SessionID:   sessionID,
		UserID:      id.UserID,
		DisplayName: id.DisplayName,
		Body:        body,
	}
	if err := s.db.WithContext(ctx).Create(ent).Error; err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	msg := model.MessageFromEntity(ent)
	s.hub.Publish(msg)
	return msg, nil
}

// Delete removes a message permanently and returns it, so callers know
// which session's feed to reconcile. Operator roles only. There is no
// push-delete event; live consumers reconcile locally after a successful
// call.
func (s *Service) Delete(ctx context.Context, id *auth.Identity, messageID string) (*model.Message, error) {
	if err := auth.RequireOperator(id, s.operatorRoles); err != nil {
		return nil, err
	}
	var ent model.ChatMessage
	if err := s.db.WithContext(ctx).Where("id = ?", messageID).First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrMessageNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}
	if err := s.db.WithContext(ctx).Delete(&ent).Error; err != nil {
		return nil, fmt.Errorf("delete message: %w", err)
	}
	s.log.Info("chat message deleted",
		zap.String("message_id", messageID),
		zap.String("moderator_id", id.UserID))
	return model.MessageFromEntity(&ent), nil
}

// Subscribe opens a live feed of insert events for the session.
func (s *Service) Subscribe(sessionID string) *Subscriber {
	return s.hub.Subscribe(sessionID)
}

func (s *Service) sessionExists(ctx context.Context, sessionID string) error {
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.StreamSession{}).
		Where("id = ?", sessionID).Count(&n).Error; err != nil {
		return fmt.Errorf("check session: %w", err)
	}
	if n == 0 {
		return errs.ErrSessionNotFound
	}
	return nil
}
