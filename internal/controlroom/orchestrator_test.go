package controlroom

import (
	"context"
	"errors"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/parishops/livestream-service/internal/auth"
	"github.com/parishops/livestream-service/internal/chat"
	"github.com/parishops/livestream-service/internal/credentials"
	"github.com/parishops/livestream-service/internal/errs"
	"github.com/parishops/livestream-service/internal/model"
	"github.com/parishops/livestream-service/internal/presence"
	"github.com/parishops/livestream-service/internal/store"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var operatorRoles = []string{"admin", "pastor", "media_team"}

type fixture struct {
	orch *Orchestrator
	db   *gorm.DB
	hub  *presence.Hub
	chat *chat.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.StreamSession{}, &model.ChatMessage{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	log := zap.NewNop()
	sessionStore := store.NewSessionStore(db, nil, time.Minute, 40, "rtmp://ingest.example.com/live", log)
	gate := credentials.NewGate(db, nil, operatorRoles, 40, log)
	hub := presence.NewHub(log)
	chatSvc := chat.NewService(db, chat.NewHub(log), operatorRoles, 500, log)
	return &fixture{
		orch: NewOrchestrator(sessionStore, gate, chatSvc, hub, operatorRoles, log),
		db:   db,
		hub:  hub,
		chat: chatSvc,
	}
}

func (f *fixture) seedSession(t *testing.T, status string) string {
	t.Helper()
	ent := &model.StreamSession{
		ID:         uuid.New().String(),
		BranchID:   uuid.New().String(),
		Title:      "Sunday Service",
		Status:     status,
		Privacy:    string(model.PrivacyPublic),
		RTMPServer: "rtmp://ingest.example.com/live",
		StreamKey:  "SeedKey000000000000000000000000000000000",
	}
	if err := f.db.Create(ent).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return ent.ID
}

func operator() *auth.Identity {
	return &auth.Identity{UserID: uuid.New().String(), DisplayName: "Op", Roles: []string{"pastor"}}
}

func viewer() *auth.Identity {
	return &auth.Identity{UserID: uuid.New().String(), DisplayName: "Viewer", Roles: []string{"member"}}
}

func TestTransition_ScheduledToLive(t *testing.T) {
	f := newFixture(t)
	id := f.seedSession(t, string(model.SessionStatusScheduled))

	// Driver round-trips may truncate sub-second precision; widen the
	// window by a second on both sides.
	before := time.Now().Truncate(time.Second)
	view, err := f.orch.Transition(context.Background(), operator(), id, model.SessionStatusLive)
	after := time.Now().Add(time.Second)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}

	sess := view.Session
	if sess.Status != model.SessionStatusLive {
		t.Fatalf("expected live, got %s", sess.Status)
	}
	if sess.StartTime == nil {
		t.Fatal("expected start_time set")
	}
	if sess.StartTime.Before(before) || sess.StartTime.After(after) {
		t.Fatalf("start_time %v outside call window [%v, %v]", sess.StartTime, before, after)
	}
	if sess.EndTime != nil {
		t.Fatal("end_time must remain null")
	}
	// Credentials re-fetched through the gate after the transition.
	if view.Credentials == nil || view.Credentials.StreamKey == "" {
		t.Fatalf("expected merged credentials, got %+v", view.Credentials)
	}
}

func TestTransition_PreservesExistingStartTime(t *testing.T) {
	f := newFixture(t)
	id := f.seedSession(t, string(model.SessionStatusScheduled))

	existing := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	if err := f.db.Model(&model.StreamSession{}).Where("id = ?", id).
		Update("start_time", existing).Error; err != nil {
		t.Fatalf("preset start_time: %v", err)
	}

	view, err := f.orch.Transition(context.Background(), operator(), id, model.SessionStatusLive)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	if view.Session.StartTime == nil || !view.Session.StartTime.Equal(existing) {
		t.Fatalf("start_time changed: want %v, got %v", existing, view.Session.StartTime)
	}
}

func TestTransition_LiveToEnded(t *testing.T) {
	f := newFixture(t)
	id := f.seedSession(t, string(model.SessionStatusLive))

	started := time.Now().Add(-30 * time.Minute).UTC().Truncate(time.Second)
	if err := f.db.Model(&model.StreamSession{}).Where("id = ?", id).
		Update("start_time", started).Error; err != nil {
		t.Fatalf("preset start_time: %v", err)
	}

	view, err := f.orch.Transition(context.Background(), operator(), id, model.SessionStatusEnded)
	if err != nil {
		t.Fatalf("transition: %v", err)
	}
	sess := view.Session
	if sess.Status != model.SessionStatusEnded {
		t.Fatalf("expected ended, got %s", sess.Status)
	}
	if sess.EndTime == nil {
		t.Fatal("expected end_time set")
	}
	if sess.StartTime == nil || !sess.StartTime.Equal(started) {
		t.Fatalf("start_time changed: want %v, got %v", started, sess.StartTime)
	}
}

func TestTransition_RejectsIllegalEdges(t *testing.T) {
	cases := []struct {
		from string
		to   model.SessionStatus
	}{
		{string(model.SessionStatusScheduled), model.SessionStatusEnded},
		{string(model.SessionStatusScheduled), model.SessionStatusArchived},
		{string(model.SessionStatusLive), model.SessionStatusScheduled},
		{string(model.SessionStatusLive), model.SessionStatusArchived},
		{string(model.SessionStatusLive), model.SessionStatusLive},
		{string(model.SessionStatusEnded), model.SessionStatusLive},
		{string(model.SessionStatusArchived), model.SessionStatusScheduled},
		{string(model.SessionStatusCancelled), model.SessionStatusLive},
	}
	for _, tc := range cases {
		f := newFixture(t)
		id := f.seedSession(t, tc.from)
		_, err := f.orch.Transition(context.Background(), operator(), id, tc.to)
		if !errors.Is(err, errs.ErrInvalidTransition) {
			t.Fatalf("%s -> %s: expected ErrInvalidTransition, got %v", tc.from, tc.to, err)
		}
	}
}

func TestTransition_RejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)
	id := f.seedSession(t, string(model.SessionStatusScheduled))
	_, err := f.orch.Transition(context.Background(), operator(), id, model.SessionStatus("paused"))
	if !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestTransition_OperatorOnly(t *testing.T) {
	f := newFixture(t)
	id := f.seedSession(t, string(model.SessionStatusScheduled))

	if _, err := f.orch.Transition(context.Background(), viewer(), id, model.SessionStatusLive); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := f.orch.Transition(context.Background(), nil, id, model.SessionStatusLive); !errors.Is(err, errs.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}

	// Failed transitions leave status unchanged.
	var ent model.StreamSession
	if err := f.db.First(&ent, "id = ?", id).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if ent.Status != string(model.SessionStatusScheduled) {
		t.Fatalf("status changed by rejected transition: %s", ent.Status)
	}
}

func TestLoadSession_MergesViewerCountAndChat(t *testing.T) {
	f := newFixture(t)
	id := f.seedSession(t, string(model.SessionStatusLive))

	op := operator()
	if _, err := f.chat.Send(context.Background(), op, id, "welcome"); err != nil {
		t.Fatalf("send chat: %v", err)
	}
	_, leave1 := f.hub.Join(id, "user-a", nil)
	defer leave1()
	_, leave2 := f.hub.Join(id, "anon-1", nil)
	defer leave2()

	view, err := f.orch.LoadSession(context.Background(), op, id)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if view.Session == nil || view.Session.ID != id {
		t.Fatalf("unexpected session: %+v", view.Session)
	}
	if view.Credentials == nil || view.CredentialsError != "" {
		t.Fatalf("expected credentials for operator, got error %q", view.CredentialsError)
	}
	if len(view.Messages) != 1 || view.Messages[0].Body != "welcome" {
		t.Fatalf("unexpected chat history: %+v", view.Messages)
	}
	if view.ViewerCount != 2 {
		t.Fatalf("expected 2 viewers, got %d", view.ViewerCount)
	}
}

func TestLoadSession_NonOperatorGetsNoCredentials(t *testing.T) {
	f := newFixture(t)
	id := f.seedSession(t, string(model.SessionStatusLive))

	view, err := f.orch.LoadSession(context.Background(), viewer(), id)
	if err != nil {
		t.Fatalf("load session: %v", err)
	}
	if view.Credentials != nil {
		t.Fatal("credentials leaked to non-operator")
	}
	if view.CredentialsError == "" {
		t.Fatal("expected credentials_error for non-operator")
	}
}

func TestModerateDelete_RemovesFromHistory(t *testing.T) {
	f := newFixture(t)
	id := f.seedSession(t, string(model.SessionStatusLive))

	op := operator()
	keep, err := f.chat.Send(context.Background(), op, id, "welcome everyone")
	if err != nil {
		t.Fatalf("send chat: %v", err)
	}
	msg, err := f.chat.Send(context.Background(), op, id, "off topic")
	if err != nil {
		t.Fatalf("send chat: %v", err)
	}

	remaining, err := f.orch.ModerateDelete(context.Background(), op, msg.ID)
	if err != nil {
		t.Fatalf("moderate delete: %v", err)
	}
	if len(remaining) != 1 || remaining[0].ID != keep.ID {
		t.Fatalf("unexpected remaining feed: %+v", remaining)
	}
	for _, m := range remaining {
		if m.ID == msg.ID {
			t.Fatal("deleted message still in returned feed")
		}
	}

	history, err := f.chat.History(context.Background(), id)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 {
		t.Fatalf("message still present after moderation: %d", len(history))
	}
}

func TestRegenerateIngestKey_RotatesThroughGate(t *testing.T) {
	f := newFixture(t)
	id := f.seedSession(t, string(model.SessionStatusLive))

	creds, err := f.orch.RegenerateIngestKey(context.Background(), operator(), id)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if creds.StreamKey == "SeedKey000000000000000000000000000000000" {
		t.Fatal("key not rotated")
	}
	if _, err := f.orch.RegenerateIngestKey(context.Background(), viewer(), id); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
