package credentials

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	gormsqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"github.com/parishops/livestream-service/internal/auth"
	"github.com/parishops/livestream-service/internal/cache"
	"github.com/parishops/livestream-service/internal/errs"
	"github.com/parishops/livestream-service/internal/model"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var operatorRoles = []string{"admin", "pastor", "media_team"}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormsqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&model.StreamSession{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func seedSession(t *testing.T, db *gorm.DB, privacy string) *model.StreamSession {
	t.Helper()
	id := uuid.New().String()
	// stream_key carries a unique index, so derive each seed's key from the
	// row's uuid while keeping the 40-char alphanumeric shape.
	ent := &model.StreamSession{
		ID:         id,
		BranchID:   uuid.New().String(),
		Title:      "Sunday Service",
		Status:     string(model.SessionStatusScheduled),
		Privacy:    privacy,
		RTMPServer: "rtmp://ingest.example.com/live",
		StreamKey:  "Original" + strings.ReplaceAll(id, "-", ""),
	}
	if err := db.Create(ent).Error; err != nil {
		t.Fatalf("seed session: %v", err)
	}
	return ent
}

func operator() *auth.Identity {
	return &auth.Identity{UserID: uuid.New().String(), DisplayName: "Op", Roles: []string{"media_team"}}
}

func viewer() *auth.Identity {
	return &auth.Identity{UserID: uuid.New().String(), DisplayName: "Viewer", Roles: []string{"member"}}
}

func TestGetCredentials_OperatorOnly(t *testing.T) {
	db := openTestDB(t)
	gate := NewGate(db, nil, operatorRoles, 40, zap.NewNop())

	// Non-operators are forbidden regardless of privacy.
	for _, privacy := range []string{"public", "members_only", "private"} {
		ent := seedSession(t, db, privacy)

		if _, err := gate.GetCredentials(context.Background(), viewer(), ent.ID); !errors.Is(err, errs.ErrForbidden) {
			t.Fatalf("privacy=%s: expected ErrForbidden for viewer, got %v", privacy, err)
		}
		if _, err := gate.GetCredentials(context.Background(), nil, ent.ID); !errors.Is(err, errs.ErrUnauthorized) {
			t.Fatalf("privacy=%s: expected ErrUnauthorized for anonymous, got %v", privacy, err)
		}

		creds, err := gate.GetCredentials(context.Background(), operator(), ent.ID)
		if err != nil {
			t.Fatalf("privacy=%s: operator fetch: %v", privacy, err)
		}
		if creds.StreamKey != ent.StreamKey || creds.RTMPServer != ent.RTMPServer {
			t.Fatalf("privacy=%s: credentials mismatch", privacy)
		}
	}
}

func TestGetCredentials_SessionNotFound(t *testing.T) {
	db := openTestDB(t)
	gate := NewGate(db, nil, operatorRoles, 40, zap.NewNop())

	_, err := gate.GetCredentials(context.Background(), operator(), uuid.New().String())
	if !errors.Is(err, errs.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestRegenerateKey_RotatesAndPersists(t *testing.T) {
	db := openTestDB(t)
	gate := NewGate(db, nil, operatorRoles, 40, zap.NewNop())
	ent := seedSession(t, db, "public")

	creds, err := gate.RegenerateKey(context.Background(), operator(), ent.ID)
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if creds.StreamKey == ent.StreamKey {
		t.Fatal("expected a new key, got the old one")
	}
	if len(creds.StreamKey) != 40 {
		t.Fatalf("expected 40-char key, got %d", len(creds.StreamKey))
	}
	for _, r := range creds.StreamKey {
		if !strings.ContainsRune(keyAlphabet, r) {
			t.Fatalf("character %q outside alphabet", r)
		}
	}

	// A subsequent fetch returns the new key, never the old one.
	fetched, err := gate.GetCredentials(context.Background(), operator(), ent.ID)
	if err != nil {
		t.Fatalf("fetch after rotation: %v", err)
	}
	if fetched.StreamKey != creds.StreamKey {
		t.Fatalf("expected rotated key %s, got %s", creds.StreamKey, fetched.StreamKey)
	}
}

func TestRegenerateKey_ViewerForbidden(t *testing.T) {
	db := openTestDB(t)
	gate := NewGate(db, nil, operatorRoles, 40, zap.NewNop())
	ent := seedSession(t, db, "public")

	if _, err := gate.RegenerateKey(context.Background(), viewer(), ent.ID); !errors.Is(err, errs.ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	// Key untouched on failure.
	var after model.StreamSession
	if err := db.First(&after, "id = ?", ent.ID).Error; err != nil {
		t.Fatalf("reload session: %v", err)
	}
	if after.StreamKey != ent.StreamKey {
		t.Fatal("key changed despite forbidden call")
	}
}

func TestSetIngestServer(t *testing.T) {
	db := openTestDB(t)
	gate := NewGate(db, nil, operatorRoles, 40, zap.NewNop())
	ent := seedSession(t, db, "public")

	creds, err := gate.SetIngestServer(context.Background(), operator(), ent.ID, "rtmps://new.example.com/live")
	if err != nil {
		t.Fatalf("set ingest server: %v", err)
	}
	if creds.RTMPServer != "rtmps://new.example.com/live" {
		t.Fatalf("unexpected server: %s", creds.RTMPServer)
	}

	if _, err := gate.SetIngestServer(context.Background(), operator(), ent.ID, "https://not-rtmp.example.com"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("expected ErrValidation for non-rtmp scheme, got %v", err)
	}
}

func TestCredentialWrites_InvalidateCachedSession(t *testing.T) {
	db := openTestDB(t)
	mr := miniredis.RunT(t)
	c := cache.New(mr.Addr(), "", 0, time.Minute)
	if c == nil {
		t.Fatal("expected live cache")
	}
	t.Cleanup(func() { _ = c.Close() })
	gate := NewGate(db, c, operatorRoles, 40, zap.NewNop())
	ent := seedSession(t, db, string(model.PrivacyPublic))
	key := cache.SessionKey(ent.ID)

	prime := func() {
		t.Helper()
		if err := c.Set(context.Background(), key, []byte(`{"id":"`+ent.ID+`"}`), 0); err != nil {
			t.Fatalf("prime cache: %v", err)
		}
	}

	prime()
	if _, err := gate.RegenerateKey(context.Background(), operator(), ent.ID); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("rotation left stale cache entry")
	}

	prime()
	if _, err := gate.SetIngestServer(context.Background(), operator(), ent.ID, "rtmps://ingest.example.com/live"); err != nil {
		t.Fatalf("set ingest server: %v", err)
	}
	if mr.Exists(key) {
		t.Fatal("ingest change left stale cache entry")
	}
}
