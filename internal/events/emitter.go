package events

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"social-chat/internal/observability"
)

// Routing keys of the domain events published to the exchange.
const (
	FriendRequestSent     = "friend_request.sent"
	FriendRequestAccepted = "friend_request.accepted"
	FriendRequestRejected = "friend_request.rejected"
	FriendshipRemoved     = "friendship.removed"
	ChatMessageSent       = "chat.message.sent"
	NotificationCreated   = "notification.created"
	WSConnected           = "ws.connected"
	WSDisconnected        = "ws.disconnected"
)

const schemaVersion = 1

type Publisher interface {
	Publish(ctx context.Context, routingKey string, event any) error
	Close() error
}

// Envelope is the wire shape of every published event.
type Envelope struct {
	SchemaVersion int     `json:"schema_version"`
	EventType     string  `json:"event_type"`
	OccurredAt    string  `json:"occurred_at"`
	Service       string  `json:"service"`
	Environment   string  `json:"environment"`
	RequestID     string  `json:"request_id,omitempty"`
	UserID        *string `json:"user_id,omitempty"`
	Payload       any     `json:"payload"`
}

// Emitter wraps payloads in an Envelope and publishes them with the event type as routing key.
// Publish failures are logged and counted; callers never see them.
type Emitter struct {
	publisher   Publisher
	service     string
	environment string
	logger      zerolog.Logger
	now         func() time.Time
}

func NewEmitter(publisher Publisher, service, environment string, logger zerolog.Logger) *Emitter {
	return &Emitter{
		publisher:   publisher,
		service:     service,
		environment: environment,
		logger:      logger.With().Str("component", "event_emitter").Logger(),
		now:         time.Now,
	}
}

func (e *Emitter) Emit(ctx context.Context, eventType string, userID string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	envelope := Envelope{
		SchemaVersion: schemaVersion,
		EventType:     eventType,
		OccurredAt:    e.now().UTC().Format(time.RFC3339Nano),
		Service:       e.service,
		Environment:   e.environment,
		RequestID:     observability.RequestIDFromContext(ctx),
		Payload:       payload,
	}
	if userID != "" {
		envelope.UserID = &userID
	}

	if err := e.publisher.Publish(ctx, eventType, envelope); err != nil {
		observability.IncEventPublishError(eventType)
		e.logger.Warn().Err(err).Str("event_type", eventType).Str("request_id", envelope.RequestID).Msg("event publish failed")
		return
	}
	e.logger.Debug().Str("event_type", eventType).Str("request_id", envelope.RequestID).Msg("event published")
}
