package views

import (
	"context"
	"errors"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/parishops/livestream-service/internal/errs"
	"github.com/parishops/livestream-service/internal/model"
	"gorm.io/gorm"
)

func newTestService(t *testing.T) (*Service, *gorm.DB, string) {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.StreamSession{}, &model.ViewRecord{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	ent := &model.StreamSession{
		ID:         uuid.New().String(),
		BranchID:   uuid.New().String(),
		Title:      "Sunday Service",
		Status:     string(model.SessionStatusEnded),
		Privacy:    string(model.PrivacyPublic),
		RTMPServer: "rtmp://ingest.example.com/live",
		StreamKey:  "ViewKey000000000000000000000000000000000",
	}
	if err := db.Create(ent).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return NewService(db), db, ent.ID
}

func TestRecord_AppendsAndBumpsCounter(t *testing.T) {
	svc, db, sessionID := newTestService(t)

	viewer := uuid.New().String()
	if _, err := svc.Record(context.Background(), sessionID, &viewer, 1800); err != nil {
		t.Fatalf("record identified view: %v", err)
	}
	if _, err := svc.Record(context.Background(), sessionID, nil, 300); err != nil {
		t.Fatalf("record anonymous view: %v", err)
	}

	var sess model.StreamSession
	if err := db.First(&sess, "id = ?", sessionID).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if sess.ViewCount != 2 {
		t.Fatalf("expected view_count 2, got %d", sess.ViewCount)
	}
}

func TestRecord_Validation(t *testing.T) {
	svc, _, sessionID := newTestService(t)

	if _, err := svc.Record(context.Background(), sessionID, nil, -1); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected ErrValidation for negative duration, got %v", err)
	}
	if _, err := svc.Record(context.Background(), uuid.New().String(), nil, 10); !errors.Is(err, errs.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestStats_WindowAndDistinctViewers(t *testing.T) {
	svc, db, sessionID := newTestService(t)

	viewer := uuid.New().String()
	for i := 0; i < 2; i++ {
		if _, err := svc.Record(context.Background(), sessionID, &viewer, 600); err != nil {
			t.Fatalf("record: %v", err)
		}
	}
	if _, err := svc.Record(context.Background(), sessionID, nil, 120); err != nil {
		t.Fatalf("record anonymous: %v", err)
	}

	// A record outside the window must not count.
	old := &model.ViewRecord{
		ID:           uuid.New().String(),
		SessionID:    sessionID,
		WatchSeconds: 999,
		CreatedAt:    time.Now().AddDate(0, 0, -60),
	}
	if err := db.Create(old).Error; err != nil {
		t.Fatalf("insert old record: %v", err)
	}

	stats, err := svc.Stats(context.Background(), sessionID, 30)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalViews != 3 {
		t.Fatalf("expected 3 views in window, got %d", stats.TotalViews)
	}
	if stats.DistinctViewers != 1 {
		t.Fatalf("expected 1 distinct viewer, got %d", stats.DistinctViewers)
	}
	if stats.TotalWatchSeconds != 1320 {
		t.Fatalf("expected 1320 watch seconds, got %d", stats.TotalWatchSeconds)
	}
	if stats.WindowDays != 30 {
		t.Fatalf("expected window 30, got %d", stats.WindowDays)
	}
}
