package server

import (
	"time"

	"github.com/gin-gonic/gin"

	"studio-session/internal/auth"
	"studio-session/internal/draft"
	"studio-session/internal/handler"
	"studio-session/internal/hub"
	"studio-session/internal/metrics"
	"studio-session/internal/middleware"
	"studio-session/internal/opencard"
	"studio-session/internal/session"
	"studio-session/internal/store"
)

type Deps struct {
	Store       *store.Store
	Sessions    *session.Manager
	Drafts      *draft.Manager
	Cards       *opencard.Tracker
	Hub         *hub.Hub
	TokenConfig auth.TokenConfig
	// Limiters default to fresh ones when nil.
	AuthLimiter     *middleware.RateLimiter
	ActivityLimiter *middleware.RateLimiter
}

func NewRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	authLimiter := deps.AuthLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter(10, time.Minute)
	}
	activityLimiter := deps.ActivityLimiter
	if activityLimiter == nil {
		activityLimiter = middleware.NewRateLimiter(120, time.Minute)
	}

	authHandler := &handler.AuthHandler{Store: deps.Store, Sessions: deps.Sessions, TokenConfig: deps.TokenConfig}
	r.POST("/v1/auth", middleware.RateLimit(authLimiter, middleware.ByClientIP), authHandler.Auth)

	protected := r.Group("/v1")
	protected.Use(middleware.RequireAuth(deps.TokenConfig))
	protected.POST("/auth/logout", authHandler.Logout)

	sessionHandler := &handler.SessionHandler{Sessions: deps.Sessions}
	protected.POST("/activity", middleware.RateLimit(activityLimiter, middleware.ByUser), sessionHandler.Activity)
	protected.GET("/session", sessionHandler.Get)
	protected.POST("/session/extend", sessionHandler.Extend)
	protected.GET("/session/config", sessionHandler.Config)

	draftHandler := &handler.DraftHandler{Drafts: deps.Drafts, Cards: deps.Cards}
	protected.GET("/drafts/client", draftHandler.GetClient)
	protected.PUT("/drafts/client", draftHandler.PutClient)
	protected.DELETE("/drafts/client", draftHandler.DeleteClient)
	protected.GET("/drafts/projects", draftHandler.ListProjects)
	protected.GET("/drafts/pending-project", draftHandler.PendingProject)
	protected.GET("/drafts/projects/:clientId", draftHandler.GetProject)
	protected.PUT("/drafts/projects/:clientId", draftHandler.PutProject)
	protected.DELETE("/drafts/projects/:clientId", draftHandler.DeleteProject)
	protected.POST("/drafts/sweep", draftHandler.Sweep)

	protected.GET("/open-cards/pending", draftHandler.PendingOpen)
	protected.PUT("/open-cards/:clientId", draftHandler.MarkOpen)
	protected.DELETE("/open-cards/:clientId", draftHandler.ClearOpen)

	wsHandler := &handler.WebSocketHandler{Hub: deps.Hub, Sessions: deps.Sessions, TokenConfig: deps.TokenConfig}
	r.GET("/ws", wsHandler.Serve)

	return r
}
