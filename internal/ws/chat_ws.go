package ws

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"social-chat/internal/auth"
	"social-chat/internal/observability"
)

// ParticipantChecker answers chat membership questions.
type ParticipantChecker interface {
	IsParticipant(ctx context.Context, chatID, userID string) (bool, error)
}

// ChatWebSocketHandler streams chat room events to participants.
type ChatWebSocketHandler struct {
	hub      *Hub
	chats    ParticipantChecker
	verifier *auth.Verifier
	emitter  EventEmitter
	logger   zerolog.Logger
}

// NewChatWebSocketHandler constructs a ChatWebSocketHandler.
func NewChatWebSocketHandler(hub *Hub, chats ParticipantChecker, verifier *auth.Verifier, emitter EventEmitter, logger zerolog.Logger) *ChatWebSocketHandler {
	return &ChatWebSocketHandler{
		hub:      hub,
		chats:    chats,
		verifier: verifier,
		emitter:  emitter,
		logger:   logger.With().Str("component", "chat_ws").Logger(),
	}
}

// Handle upgrades the connection and subscribes it to the chat room.
func (h *ChatWebSocketHandler) Handle(c *gin.Context) {
	chatID := c.Param("chat_id")
	if chatID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid chat id"})
		return
	}

	ctx, span := otel.Tracer("social-chat/internal/ws").Start(c.Request.Context(), "ws.chat.handshake")
	defer span.End()
	span.SetAttributes(attribute.String("chat.id", chatID))
	c.Request = c.Request.WithContext(ctx)

	sess, err := authenticate(c, h.verifier)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
		return
	}

	member, err := h.chats.IsParticipant(ctx, chatID, sess.UserID)
	if err != nil {
		span.RecordError(err)
		h.logger.Error().Err(err).Str("chat_id", chatID).Msg("participant check failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	if !member {
		c.JSON(http.StatusForbidden, gin.H{"error": "not authorized for chat"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	info := newConnInfo(c.Request, sess.UserID, span.SpanContext().TraceID().String())
	h.hub.AddChatClient(chatID, conn, info)
	observability.IncWSActive(kindChat)

	// The request context ends with the handshake; lifecycle events outlive it.
	lifecycleCtx := observability.WithRequestID(context.WithoutCancel(ctx), info.RequestID)
	emitLifecycle(lifecycleCtx, h.emitter, info, kindChat, chatID, "ws_connect", "")
	h.logger.Debug().Str("chat_id", chatID).Str("user_id", sess.UserID).Str("conn_id", info.ConnID).Msg("chat client connected")

	go h.readLoop(lifecycleCtx, chatID, conn, info)
}

func (h *ChatWebSocketHandler) readLoop(ctx context.Context, chatID string, conn *websocket.Conn, info ConnInfo) {
	var reason string
	defer func() {
		h.hub.RemoveChatClient(chatID, conn)
		observability.DecWSActive(kindChat)
		emitLifecycle(ctx, h.emitter, info, kindChat, chatID, "ws_disconnect", reason)
		_ = conn.Close()
	}()
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			var abnormal bool
			reason, abnormal = closeReason(err)
			if abnormal {
				observability.IncWSEvent(kindChat, "ws_error")
			}
			return
		}
	}
}
