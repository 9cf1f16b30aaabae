// Package store is the durable read/write path for session rows. Everything
// it returns is the credential-free API view; ingest secrets are only
// readable through the credential gate.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/parishops/livestream-service/internal/cache"
	"github.com/parishops/livestream-service/internal/credentials"
	"github.com/parishops/livestream-service/internal/errs"
	"github.com/parishops/livestream-service/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SessionStore provides CRUD access to stream sessions.
type SessionStore struct {
	db          *gorm.DB
	cache       *cache.Cache
	cacheTTL    time.Duration
	keyLength   int
	defaultRTMP string
	log         *zap.Logger
}

// NewSessionStore creates a session store. cache may be nil (caching off).
func NewSessionStore(db *gorm.DB, c *cache.Cache, cacheTTL time.Duration, keyLength int, defaultRTMP string, log *zap.Logger) *SessionStore {
	return &SessionStore{
		db:          db,
		cache:       c,
		cacheTTL:    cacheTTL,
		keyLength:   keyLength,
		defaultRTMP: defaultRTMP,
		log:         log,
	}
}

// Filters narrows List results. Zero values mean "any".
type Filters struct {
	Status   model.SessionStatus
	Privacy  model.SessionPrivacy
	BranchID string
}

// List returns sessions matching the filters, newest start time first
// (sessions without a start time sort after, by creation time).
func (s *SessionStore) List(ctx context.Context, f Filters) ([]*model.Session, error) {
	q := s.db.WithContext(ctx).Model(&model.StreamSession{})
	if f.Status != "" {
		q = q.Where("status = ?", string(f.Status))
	}
	if f.Privacy != "" {
		q = q.Where("privacy = ?", string(f.Privacy))
	}
	if f.BranchID != "" {
		q = q.Where("branch_id = ?", f.BranchID)
	}
	var ents []model.StreamSession
	if err := q.Order("start_time DESC NULLS LAST").Order("created_at DESC").Find(&ents).Error; err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	out := make([]*model.Session, 0, len(ents))
	for i := range ents {
		out = append(out, model.SessionFromEntity(&ents[i]))
	}
	return out, nil
}

// Get returns a session by id, read-through the cache.
func (s *SessionStore) Get(ctx context.Context, id string) (*model.Session, error) {
	key := cache.SessionKey(id)
	if raw, ok, err := s.cache.Get(ctx, key); err == nil && ok {
		var sess model.Session
		if err := json.Unmarshal(raw, &sess); err == nil {
			return &sess, nil
		}
		// Corrupt entry: drop it and fall through to the database.
		_ = s.cache.Invalidate(ctx, key)
	} else if err != nil {
		s.log.Warn("cache get failed", zap.String("session_id", id), zap.Error(err))
	}

	ent, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	sess := model.SessionFromEntity(ent)
	if raw, err := json.Marshal(sess); err == nil {
		if err := s.cache.Set(ctx, key, raw, s.cacheTTL); err != nil {
			s.log.Warn("cache set failed", zap.String("session_id", id), zap.Error(err))
		}
	}
	return sess, nil
}

// Create inserts a new session in scheduled status with generated ingest
// credentials. Server-assigned fields (id, timestamps, view count) come back
// on the returned view.
func (s *SessionStore) Create(ctx context.Context, req *model.CreateSessionRequest) (*model.Session, error) {
	privacy := model.SessionPrivacy(req.Privacy)
	if req.Privacy == "" {
		privacy = model.PrivacyPublic
	}
	if !privacy.Valid() {
		return nil, fmt.Errorf("%w: unknown privacy %q", errs.ErrValidation, req.Privacy)
	}
	key, err := credentials.NewStreamKey(s.keyLength)
	if err != nil {
		return nil, fmt.Errorf("generate stream key: %w", err)
	}
	ent := &model.StreamSession{
		ID:          uuid.New().String(),
		BranchID:    req.BranchID,
		Title:       req.Title,
		Description: req.Description,
		Status:      string(model.SessionStatusScheduled),
		Privacy:     string(privacy),
		RTMPServer:  s.defaultRTMP,
		StreamKey:   key,
	}
	if err := s.db.WithContext(ctx).Create(ent).Error; err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return model.SessionFromEntity(ent), nil
}

// Update applies a partial update. The returned view never carries
// credentials; callers needing secrets after an update must go through the
// credential gate. Status is not updatable here (see Transition).
func (s *SessionStore) Update(ctx context.Context, id string, req *model.UpdateSessionRequest) (*model.Session, error) {
	fields := map[string]any{}
	if req.Title != nil {
		fields["title"] = *req.Title
	}
	if req.Description != nil {
		fields["description"] = *req.Description
	}
	if req.Privacy != nil {
		p := model.SessionPrivacy(*req.Privacy)
		if !p.Valid() {
			return nil, fmt.Errorf("%w: unknown privacy %q", errs.ErrValidation, *req.Privacy)
		}
		fields["privacy"] = string(p)
	}
	if req.BranchID != nil {
		fields["branch_id"] = *req.BranchID
	}
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: no updatable fields", errs.ErrValidation)
	}

	ent, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(ent).Updates(fields).Error; err != nil {
		return nil, fmt.Errorf("update session: %w", err)
	}
	if err := s.cache.Invalidate(ctx, cache.SessionKey(id)); err != nil {
		s.log.Warn("cache invalidate failed", zap.String("session_id", id), zap.Error(err))
	}
	ent, err = s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return model.SessionFromEntity(ent), nil
}

// SetStatus writes the status column together with any lifecycle timestamps
// in a single update, then invalidates the cache. Transition legality is the
// orchestrator's job; this is the point write.
func (s *SessionStore) SetStatus(ctx context.Context, id string, status model.SessionStatus, startTime, endTime *time.Time) (*model.Session, error) {
	ent, err := s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{"status": string(status)}
	if startTime != nil {
		fields["start_time"] = *startTime
	}
	if endTime != nil {
		fields["end_time"] = *endTime
	}
	if err := s.db.WithContext(ctx).Model(ent).Updates(fields).Error; err != nil {
		return nil, fmt.Errorf("set status: %w", err)
	}
	if err := s.cache.Invalidate(ctx, cache.SessionKey(id)); err != nil {
		s.log.Warn("cache invalidate failed", zap.String("session_id", id), zap.Error(err))
	}
	ent, err = s.fetch(ctx, id)
	if err != nil {
		return nil, err
	}
	return model.SessionFromEntity(ent), nil
}

// Delete removes a session row permanently. Chat and view history are not
// cascaded here; referential rules live in the schema.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.StreamSession{})
	if res.Error != nil {
		return fmt.Errorf("delete session: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.ErrSessionNotFound
	}
	if err := s.cache.Invalidate(ctx, cache.SessionKey(id)); err != nil {
		s.log.Warn("cache invalidate failed", zap.String("session_id", id), zap.Error(err))
	}
	return nil
}

func (s *SessionStore) fetch(ctx context.Context, id string) (*model.StreamSession, error) {
	var ent model.StreamSession
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &ent, nil
}
