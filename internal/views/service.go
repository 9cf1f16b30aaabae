// Package views keeps the durable watch log, distinct from ephemeral
// presence: append-only rows feeding historical counts like "30-day views".
package views

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/parishops/livestream-service/internal/errs"
	"github.com/parishops/livestream-service/internal/model"
	"gorm.io/gorm"
)

// DefaultWindowDays is the aggregate window when the caller gives none.
const DefaultWindowDays = 30

// Service records and aggregates view records.
type Service struct {
	db *gorm.DB
}

// NewService creates the view-record service.
func NewService(db *gorm.DB) *Service {
	return &Service{db: db}
}

// Record appends one watch log line (viewerID nil for anonymous) and bumps
// the session's total view counter.
func (s *Service) Record(ctx context.Context, sessionID string, viewerID *string, watchSeconds int64) (*model.ViewRecord, error) {
	if watchSeconds < 0 {
		return nil, fmt.Errorf("%w: negative watch duration", errs.ErrValidation)
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&model.StreamSession{}).
		Where("id = ?", sessionID).Count(&n).Error; err != nil {
		return nil, fmt.Errorf("check session: %w", err)
	}
	if n == 0 {
		return nil, errs.ErrSessionNotFound
	}

	rec := &model.ViewRecord{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		ViewerID:     viewerID,
		WatchSeconds: watchSeconds,
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return nil, fmt.Errorf("insert view record: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&model.StreamSession{}).
		Where("id = ?", sessionID).
		UpdateColumn("view_count", gorm.Expr("view_count + 1")).Error; err != nil {
		return nil, fmt.Errorf("bump view count: %w", err)
	}
	return rec, nil
}

// Stats aggregates views within the trailing window. windowDays <= 0 uses
// the default.
func (s *Service) Stats(ctx context.Context, sessionID string, windowDays int) (*model.ViewStats, error) {
	if windowDays <= 0 {
		windowDays = DefaultWindowDays
	}
	cutoff := time.Now().AddDate(0, 0, -windowDays)

	base := s.db.WithContext(ctx).Model(&model.ViewRecord{}).
		Where("session_id = ? AND created_at >= ?", sessionID, cutoff)

	stats := &model.ViewStats{SessionID: sessionID, WindowDays: windowDays}
	if err := base.Count(&stats.TotalViews).Error; err != nil {
		return nil, fmt.Errorf("count views: %w", err)
	}
	if err := s.db.WithContext(ctx).Model(&model.ViewRecord{}).
		Where("session_id = ? AND created_at >= ? AND viewer_id IS NOT NULL", sessionID, cutoff).
		Distinct("viewer_id").
		Count(&stats.DistinctViewers).Error; err != nil {
		return nil, fmt.Errorf("count distinct viewers: %w", err)
	}
	var total *int64
	if err := s.db.WithContext(ctx).Model(&model.ViewRecord{}).
		Where("session_id = ? AND created_at >= ?", sessionID, cutoff).
		Select("SUM(watch_seconds)").
		Scan(&total).Error; err != nil {
		return nil, fmt.Errorf("sum watch time: %w", err)
	}
	if total != nil {
		stats.TotalWatchSeconds = *total
	}
	return stats, nil
}
