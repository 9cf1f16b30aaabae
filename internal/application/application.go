package application

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/parishops/livestream-service/internal/auth"
	"github.com/parishops/livestream-service/internal/cache"
	"github.com/parishops/livestream-service/internal/chat"
	"github.com/parishops/livestream-service/internal/config"
	"github.com/parishops/livestream-service/internal/controlroom"
	"github.com/parishops/livestream-service/internal/credentials"
	"github.com/parishops/livestream-service/internal/database"
	"github.com/parishops/livestream-service/internal/handler"
	"github.com/parishops/livestream-service/internal/presence"
	"github.com/parishops/livestream-service/internal/router"
	"github.com/parishops/livestream-service/internal/store"
	"github.com/parishops/livestream-service/internal/views"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// API is the HTTP + WebSocket API application.
type API struct {
	cfg   *config.Config
	srv   *http.Server
	db    *gorm.DB
	cache *cache.Cache
	log   *zap.Logger
}

// NewAPI creates the API application: validates config, runs migrations,
// opens DB and cache, wires services, builds the router.
func NewAPI(cfg *config.Config) (*API, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if err := database.MigrateUp(cfg.DatabaseURL()); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	db, err := database.Open(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}

	logger, _ := zap.NewProduction()
	if cfg.AppEnv == "development" {
		logger, _ = zap.NewDevelopment()
	}

	c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.CacheTTL)
	if c != nil {
		pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := c.Ping(pingCtx); err != nil {
			logger.Warn("redis unreachable, caching disabled", zap.Error(err))
			_ = c.Close()
			c = nil
		}
		cancel()
	}

	verifier := auth.NewVerifier(cfg.JWTSecret)
	sessionStore := store.NewSessionStore(db, c, cfg.CacheTTL, cfg.StreamKeyLength, cfg.DefaultRTMPServer, logger)
	gate := credentials.NewGate(db, c, cfg.OperatorRoles, cfg.StreamKeyLength, logger)
	presenceHub := presence.NewHub(logger)
	chatHub := chat.NewHub(logger)
	chatSvc := chat.NewService(db, chatHub, cfg.OperatorRoles, cfg.ChatMaxBodyRunes, logger)
	viewsSvc := views.NewService(db)
	orch := controlroom.NewOrchestrator(sessionStore, gate, chatSvc, presenceHub, cfg.OperatorRoles, logger)

	r := router.New(router.Deps{
		Sessions:      handler.NewSessionHandler(sessionStore),
		Credentials:   handler.NewCredentialsHandler(gate),
		Chat:          handler.NewChatHandler(chatSvc),
		Views:         handler.NewViewsHandler(viewsSvc),
		ControlRoom:   handler.NewControlRoomHandler(orch),
		WS:            handler.NewWSHandler(presenceHub, chatSvc, sessionStore, cfg.WSReadBufferSize, cfg.WSWriteBufferSize, cfg.WSMaxMessageSize, logger),
		Health:        handler.NewHealthHandler(),
		Verifier:      verifier,
		OperatorRoles: cfg.OperatorRoles,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	return &API{cfg: cfg, srv: srv, db: db, cache: c, log: logger}, nil
}

// Run starts the HTTP server and blocks until ctx is cancelled; then shuts
// down gracefully.
func (a *API) Run(ctx context.Context) error {
	addr := a.srv.Addr
	host := a.cfg.AppHost
	if host == "0.0.0.0" {
		host = "localhost"
	}
	base := "http://" + host + ":" + a.cfg.HTTPPort
	log.Printf("HTTP server listening on %s", addr)
	log.Printf("  Health:      %s/health", base)
	log.Printf("  Sessions:    %s/sessions", base)
	log.Printf("  Control:     %s/control/sessions/:id", base)
	log.Printf("  Presence WS: ws://%s:%s/ws/presence/:session_id", host, a.cfg.HTTPPort)
	log.Printf("  Chat WS:     ws://%s:%s/ws/chat/:session_id", host, a.cfg.HTTPPort)

	go func() {
		if err := a.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("http: %v", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	_ = a.cache.Close()
	_ = a.log.Sync()
	return nil
}
