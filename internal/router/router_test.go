package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/parishops/livestream-service/internal/auth"
	"github.com/parishops/livestream-service/internal/handler"
)

func newTestRouter() http.Handler {
	gin.SetMode(gin.TestMode)
	return New(Deps{
		Sessions:      handler.NewSessionHandler(nil),
		Credentials:   handler.NewCredentialsHandler(nil),
		Chat:          handler.NewChatHandler(nil),
		Views:         handler.NewViewsHandler(nil),
		ControlRoom:   handler.NewControlRoomHandler(nil),
		WS:            nil,
		Health:        handler.NewHealthHandler(),
		Verifier:      auth.NewVerifier("test-secret"),
		OperatorRoles: []string{"admin"},
	})
}

func TestCredentialsPreflight_AnsweredWithOpenCORS(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodOptions, "/functions/stream-credentials", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight status: got %d, want %d", w.Code, http.StatusNoContent)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("allow-origin: got %q, want *", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); got == "" {
		t.Fatal("allow-methods header missing")
	}
}

func TestHealthRoute(t *testing.T) {
	r := newTestRouter()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("health status: got %d", w.Code)
	}
}
