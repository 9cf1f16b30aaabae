package router

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/parishops/livestream-service/internal/auth"
	"github.com/parishops/livestream-service/internal/handler"
)

// Deps are the handlers and middleware inputs for the route table.
type Deps struct {
	Sessions      *handler.SessionHandler
	Credentials   *handler.CredentialsHandler
	Chat          *handler.ChatHandler
	Views         *handler.ViewsHandler
	ControlRoom   *handler.ControlRoomHandler
	WS            *handler.WSHandler
	Health        *handler.HealthHandler
	Verifier      *auth.Verifier
	OperatorRoles []string
}

// New builds the HTTP router.
func New(d Deps) http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", d.Health.Health)
	r.GET("/ready", d.Health.Ready)

	optional := auth.Optional(d.Verifier)
	required := auth.Required(d.Verifier)
	operator := auth.RequireOperatorRole(d.OperatorRoles)

	// General session resource: credential-free by construction.
	sessions := r.Group("/sessions")
	{
		sessions.GET("", d.Sessions.ListSessions)
		sessions.GET("/:id", d.Sessions.GetSession)
		sessions.POST("", required, operator, d.Sessions.CreateSession)
		sessions.PATCH("/:id", required, operator, d.Sessions.UpdateSession)
		sessions.DELETE("/:id", required, operator, d.Sessions.DeleteSession)
		sessions.POST("/:id/transition", required, operator, d.ControlRoom.Transition)

		sessions.GET("/:id/chat", d.Chat.History)
		sessions.POST("/:id/chat", required, d.Chat.Send)

		sessions.POST("/:id/views", optional, d.Views.Record)
		sessions.GET("/:id/views/stats", d.Views.Stats)
	}

	r.DELETE("/chat/:id", required, operator, d.Chat.Delete)

	// Privileged operator surface.
	control := r.Group("/control", required, operator)
	{
		control.GET("/sessions/:id", d.ControlRoom.Load)
		control.POST("/sessions/:id/regenerate-key", d.ControlRoom.RegenerateKey)
		control.POST("/sessions/:id/ingest-server", d.ControlRoom.SetIngestServer)
		control.DELETE("/chat/:id", d.ControlRoom.ModerateDelete)
	}

	// Credential endpoint keeps the serverless-function boundary shape:
	// action discriminator, open CORS, POST/OPTIONS only.
	fn := r.Group("/functions", cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{http.MethodPost, http.MethodOptions},
		AllowHeaders:    []string{"Authorization", "Content-Type"},
	}))
	fn.POST("/stream-credentials", optional, d.Credentials.Handle)
	// The route must exist for group middleware to run; the cors middleware
	// answers the preflight before this no-op is reached.
	fn.OPTIONS("/stream-credentials", func(c *gin.Context) {})

	// Realtime channels, scoped per session id.
	r.GET("/ws/presence/:session_id", optional, d.WS.ServePresence)
	r.GET("/ws/chat/:session_id", required, d.WS.ServeChat)

	return r
}
