// Package credentials is the only path through which ingest secrets are read
// or rotated. It is a separate privileged boundary with its own role check
// and its own database reads; the general session store never touches the
// credential columns of a row it returns.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/parishops/livestream-service/internal/auth"
	"github.com/parishops/livestream-service/internal/cache"
	"github.com/parishops/livestream-service/internal/errs"
	"github.com/parishops/livestream-service/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Gate authorizes and serves ingest-credential operations.
type Gate struct {
	db            *gorm.DB
	cache         *cache.Cache
	operatorRoles []string
	keyLength     int
	log           *zap.Logger
}

// NewGate creates a credential gate. cache may be nil.
func NewGate(db *gorm.DB, c *cache.Cache, operatorRoles []string, keyLength int, log *zap.Logger) *Gate {
	return &Gate{
		db:            db,
		cache:         c,
		operatorRoles: operatorRoles,
		keyLength:     keyLength,
		log:           log,
	}
}

// GetCredentials returns the ingest server and stream key for a session.
// ErrUnauthorized without identity, ErrForbidden outside the operator
// allow-list, ErrSessionNotFound if the session is absent. Never returns
// partial data on failure.
func (g *Gate) GetCredentials(ctx context.Context, id *auth.Identity, sessionID string) (*model.SessionCredentials, error) {
	if err := auth.RequireOperator(id, g.operatorRoles); err != nil {
		return nil, err
	}
	ent, err := g.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &model.SessionCredentials{
		RTMPServer: ent.RTMPServer,
		StreamKey:  ent.StreamKey,
	}, nil
}

// RegenerateKey overwrites the session's stream key with a fresh random one
// and returns the new credentials. The previous key stops working the moment
// the write lands.
func (g *Gate) RegenerateKey(ctx context.Context, id *auth.Identity, sessionID string) (*model.SessionCredentials, error) {
	if err := auth.RequireOperator(id, g.operatorRoles); err != nil {
		return nil, err
	}
	ent, err := g.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	key, err := NewStreamKey(g.keyLength)
	if err != nil {
		return nil, fmt.Errorf("generate stream key: %w", err)
	}
	if err := g.db.WithContext(ctx).Model(ent).
		Updates(map[string]any{"stream_key": key, "updated_at": time.Now()}).Error; err != nil {
		return nil, fmt.Errorf("persist stream key: %w", err)
	}
	g.invalidate(ctx, sessionID)
	g.log.Info("stream key rotated",
		zap.String("session_id", sessionID),
		zap.String("user_id", id.UserID))
	return &model.SessionCredentials{
		RTMPServer: ent.RTMPServer,
		StreamKey:  key,
	}, nil
}

// SetIngestServer updates the session's RTMP ingest address.
func (g *Gate) SetIngestServer(ctx context.Context, id *auth.Identity, sessionID, address string) (*model.SessionCredentials, error) {
	if err := auth.RequireOperator(id, g.operatorRoles); err != nil {
		return nil, err
	}
	address = strings.TrimSpace(address)
	if !strings.HasPrefix(address, "rtmp://") && !strings.HasPrefix(address, "rtmps://") {
		return nil, fmt.Errorf("%w: ingest server must be an rtmp:// or rtmps:// address", errs.ErrValidation)
	}
	ent, err := g.fetch(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if err := g.db.WithContext(ctx).Model(ent).
		Update("rtmp_server", address).Error; err != nil {
		return nil, fmt.Errorf("persist ingest server: %w", err)
	}
	g.invalidate(ctx, sessionID)
	g.log.Info("ingest server updated",
		zap.String("session_id", sessionID),
		zap.String("user_id", id.UserID))
	return &model.SessionCredentials{
		RTMPServer: address,
		StreamKey:  ent.StreamKey,
	}, nil
}

func (g *Gate) fetch(ctx context.Context, sessionID string) (*model.StreamSession, error) {
	var ent model.StreamSession
	if err := g.db.WithContext(ctx).Where("id = ?", sessionID).First(&ent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, errs.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &ent, nil
}

func (g *Gate) invalidate(ctx context.Context, sessionID string) {
	if err := g.cache.Invalidate(ctx, cache.SessionKey(sessionID)); err != nil {
		g.log.Warn("cache invalidate failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}
