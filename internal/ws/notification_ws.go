package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"

	"social-chat/internal/auth"
	"social-chat/internal/observability"
)

const defaultHeartbeat = 30 * time.Second

// PresenceSetter records users going online and offline.
type PresenceSetter interface {
	SetPresence(ctx context.Context, userID string, online bool) error
}

// NotificationWebSocketHandler streams a user's notifications and drives presence.
type NotificationWebSocketHandler struct {
	hub       *Hub
	presence  PresenceSetter
	verifier  *auth.Verifier
	emitter   EventEmitter
	heartbeat time.Duration
	logger    zerolog.Logger
}

// NewNotificationWebSocketHandler constructs a NotificationWebSocketHandler. The heartbeat
// both pings the client and refreshes the presence key, so it must stay below the presence TTL.
func NewNotificationWebSocketHandler(hub *Hub, presence PresenceSetter, verifier *auth.Verifier, emitter EventEmitter, heartbeat time.Duration, logger zerolog.Logger) *NotificationWebSocketHandler {
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}
	return &NotificationWebSocketHandler{
		hub:       hub,
		presence:  presence,
		verifier:  verifier,
		emitter:   emitter,
		heartbeat: heartbeat,
		logger:    logger.With().Str("component", "notification_ws").Logger(),
	}
}

// Handle upgrades the connection and subscribes it to the caller's notification stream.
func (h *NotificationWebSocketHandler) Handle(c *gin.Context) {
	ctx, span := otel.Tracer("social-chat/internal/ws").Start(c.Request.Context(), "ws.notifications.handshake")
	defer span.End()
	c.Request = c.Request.WithContext(ctx)

	sess, err := authenticate(c, h.verifier)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	info := newConnInfo(c.Request, sess.UserID, span.SpanContext().TraceID().String())
	h.hub.AddUserClient(sess.UserID, conn, info)
	observability.IncWSActive(kindNotifications)

	lifecycleCtx := observability.WithRequestID(context.WithoutCancel(ctx), info.RequestID)
	h.setPresence(lifecycleCtx, sess.UserID, true)
	emitLifecycle(lifecycleCtx, h.emitter, info, kindNotifications, sess.UserID, "ws_connect", "")

	done := make(chan struct{})
	go h.heartbeatLoop(lifecycleCtx, conn, sess.UserID, done)
	go h.readLoop(lifecycleCtx, conn, info, done)
}

func (h *NotificationWebSocketHandler) readLoop(ctx context.Context, conn *websocket.Conn, info ConnInfo, done chan struct{}) {
	var reason string
	defer func() {
		close(done)
		h.hub.RemoveUserClient(info.UserID, conn)
		observability.DecWSActive(kindNotifications)
		// another device of the same user may still be connected
		if h.hub.UserClients(info.UserID) == 0 {
			h.setPresence(ctx, info.UserID, false)
		}
		emitLifecycle(ctx, h.emitter, info, kindNotifications, info.UserID, "ws_disconnect", reason)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var abnormal bool
			reason, abnormal = closeReason(err)
			if abnormal {
				observability.IncWSEvent(kindNotifications, "ws_error")
			}
			return
		}
	}
}

func (h *NotificationWebSocketHandler) heartbeatLoop(ctx context.Context, conn *websocket.Conn, userID string, done <-chan struct{}) {
	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := h.hub.Ping(conn); err != nil {
				h.logger.Debug().Err(err).Str("user_id", userID).Msg("ping failed")
				_ = conn.Close()
				return
			}
			h.setPresence(ctx, userID, true)
		}
	}
}

func (h *NotificationWebSocketHandler) setPresence(ctx context.Context, userID string, online bool) {
	if h.presence == nil {
		return
	}
	if err := h.presence.SetPresence(ctx, userID, online); err != nil {
		h.logger.Warn().Err(err).Str("user_id", userID).Bool("online", online).Msg("presence update failed")
	}
}
