// Package router assembles the HTTP surface of the service.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"social-chat/internal/auth"
	"social-chat/internal/handlers"
	"social-chat/internal/middleware"
	"social-chat/internal/observability"
	"social-chat/internal/service"
	"social-chat/internal/ws"
)

// HealthFunc reports whether the service can serve traffic.
type HealthFunc func(ctx context.Context) error

// Deps are the collaborators the HTTP surface needs.
type Deps struct {
	ServiceName   string
	Logger        zerolog.Logger
	Verifier      *auth.Verifier
	Issuer        *auth.Issuer
	DevRoutes     bool
	Profiles      *service.ProfileService
	Friendships   *service.FriendshipService
	Chats         *service.ChatService
	Notifications *service.NotificationService
	Hub           *ws.Hub
	Events        ws.EventEmitter
	Heartbeat     time.Duration
	Health        HealthFunc
}

// New builds the gin engine with every route mounted.
func New(d Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(d.ServiceName))
	r.Use(middleware.RequestContext(d.Logger))
	r.Use(observability.HTTPMetricsMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		if d.Health != nil {
			if err := d.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	handlers.RegisterDebugRoutes(r, d.Issuer, d.DevRoutes)

	chatWS := ws.NewChatWebSocketHandler(d.Hub, d.Chats, d.Verifier, d.Events, d.Logger)
	notificationWS := ws.NewNotificationWebSocketHandler(d.Hub, d.Profiles, d.Verifier, d.Events, d.Heartbeat, d.Logger)
	r.GET("/ws/chats/:chat_id", chatWS.Handle)
	r.GET("/ws/notifications", notificationWS.Handle)

	api := r.Group("/")
	api.Use(middleware.AuthMiddleware(d.Verifier, d.Profiles, d.Logger))
	handlers.NewProfileHandler(d.Profiles, d.Logger).Register(api)
	handlers.NewFriendHandler(d.Friendships, d.Logger).Register(api)
	handlers.NewChatHandler(d.Chats, d.Logger).Register(api)
	handlers.NewNotificationHandler(d.Notifications, d.Logger).Register(api)

	return r
}
