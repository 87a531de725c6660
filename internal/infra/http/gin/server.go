package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"

	"bchat/internal/infra/config"
	"bchat/internal/infra/obs"
)

type Handlers struct {
	Auth           AuthHTTP
	Profile        ProfileHTTP
	Chat           ChatHTTP
	Feed           FeedHTTP
	AuthMiddleware gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)

	api := router.Group("/api/v1")
	if h.Auth != nil {
		api.POST("/auth/register", h.Auth.Register)
		api.POST("/auth/login", h.Auth.Login)
		api.POST("/auth/logout", h.Auth.Logout)
		api.POST("/auth/logout/all", h.Auth.LogoutAll)
		api.GET("/auth/me", h.Auth.Me)
	}
	if h.Profile != nil {
		api.GET("/profiles/online", h.Profile.Online)
		api.PUT("/profiles/me", h.Profile.UpdateMe)
		api.POST("/presence", h.Profile.Presence)
	}
	if h.Chat != nil {
		api.GET("/conversations", h.Chat.ListConversations)
		api.POST("/conversations/direct", h.Chat.StartDirect)
		api.POST("/conversations/group", h.Chat.CreateGroup)
		api.GET("/messages", h.Chat.Messages)
		api.POST("/messages", h.Chat.PostMessage)
		api.POST("/images", h.Chat.UploadImage)
	}
	if h.Feed != nil {
		api.GET("/feed", h.Feed.Subscribe)
	}

	return &http.Server{Addr: cfg.HTTPAddr, Handler: router}
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
