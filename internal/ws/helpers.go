package ws

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"social-chat/internal/auth"
	"social-chat/internal/events"
	"social-chat/internal/observability"
	"social-chat/internal/session"
)

// EventEmitter publishes connection lifecycle events.
type EventEmitter interface {
	Emit(ctx context.Context, eventType string, userID string, payload any)
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func newConnID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return ""
	}
	return hex.EncodeToString(buf)
}

// authenticate accepts the Authorization header or a ?token= query parameter.
func authenticate(c *gin.Context, verifier *auth.Verifier) (session.Session, error) {
	if header := c.GetHeader("Authorization"); header != "" {
		return verifier.ParseAuthorization(header)
	}
	return verifier.Verify(c.Query("token"))
}

func newConnInfo(r *http.Request, userID, traceID string) ConnInfo {
	return ConnInfo{
		ConnID:      newConnID(),
		UserID:      userID,
		DeviceID:    observability.DeviceIDFromRequest(r),
		IP:          observability.IPFromRequest(r),
		RequestID:   observability.RequestIDFromRequest(r),
		TraceID:     traceID,
		ConnectedAt: time.Now().UTC(),
	}
}

func emitLifecycle(ctx context.Context, emitter EventEmitter, info ConnInfo, kind, resourceID, event, reason string) {
	observability.IncWSEvent(kind, event)
	if emitter == nil {
		return
	}
	eventType := events.WSConnected
	if event != "ws_connect" {
		eventType = events.WSDisconnected
	}
	emitter.Emit(ctx, eventType, info.UserID, info.lifecyclePayload(kind, resourceID, event, reason))
}

func closeReason(err error) (string, bool) {
	if err == nil {
		return "", false
	}
	abnormal := !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway)
	return err.Error(), abnormal
}
