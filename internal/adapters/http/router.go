package http

import (
	"context"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/nexus-ai/callmate/internal/adapters/assistant"
	"github.com/nexus-ai/callmate/internal/app"
	"github.com/nexus-ai/callmate/internal/config"
)

// CallController is what the call routes need from the coordinator.
type CallController interface {
	Start(ctx context.Context) error
	End()
	SetMuted(muted bool) error
	Snapshot() app.Snapshot
}

// AuthService proxies credential checks to the backend.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*assistant.AuthResult, error)
	Register(ctx context.Context, email, password string) (*assistant.AuthResult, error)
}

// SummaryService serves the post-call views.
type SummaryService interface {
	CallSummary(ctx context.Context, room string) (*assistant.CallSummary, error)
	RecentCalls(ctx context.Context) ([]assistant.RecentCall, error)
}

func genClientToken() string {
	return uuid.NewString()
}

func ClientTokenMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie("ct")
		if token == "" {
			token = genClientToken()
			c.SetCookie("ct", token, 3600*24*7, "/", "", false, true)
		}
		c.Set("client_token", token)
		c.Next()
	}
}

func SetupRouter(cfg *config.Config, ctrl CallController, auth AuthService, summaries SummaryService) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	store := cookie.NewStore([]byte(cfg.Secret))
	r.Use(sessions.Sessions("CallmateSessions", store))
	r.Use(ClientTokenMiddleware())

	log.Info().Str("module", "adapters.http").Int("port", cfg.Port).Msg("router setup")

	h := &handlers{ctrl: ctrl, auth: auth, summaries: summaries}

	api := r.Group("/api")
	api.POST("/auth/signin", h.signIn)
	api.POST("/auth/signup", h.signUp)

	api.POST("/call/start", h.startCall)
	api.POST("/call/end", h.endCall)
	api.POST("/call/mute", h.setMuted)
	api.GET("/call/state", h.callState)

	api.GET("/call/summary/:room", h.callSummary)
	api.GET("/calls/recent", h.recentCalls)

	return r
}
