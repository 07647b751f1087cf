// Package realtime relays websocket hub events between service nodes over NATS.
package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"social-chat/internal/models"
	"social-chat/internal/observability"
)

const (
	scopeChat = "chat"
	scopeUser = "user"
)

// LocalHub delivers events to connections held by this node only.
type LocalHub interface {
	DeliverChatEvent(chatID string, event models.ChatEvent)
	DeliverUserEvent(userID string, event models.NotificationEvent)
}

type relayEvent struct {
	Source       string                    `json:"source"`
	Scope        string                    `json:"scope"`
	Target       string                    `json:"target"`
	Chat         *models.ChatEvent         `json:"chat,omitempty"`
	Notification *models.NotificationEvent `json:"notification,omitempty"`
	SentAt       time.Time                 `json:"sent_at"`
}

// Relay publishes hub events to every node and delivers events from other nodes locally.
type Relay struct {
	conn    *nats.Conn
	subject string
	nodeID  string
	hub     LocalHub
	logger  zerolog.Logger
}

// NewRelay builds a relay on <prefix>.realtime. Every node subscribes without a queue group
// so each one sees every event.
func NewRelay(conn *nats.Conn, subjectPrefix string, hub LocalHub, logger zerolog.Logger) *Relay {
	prefix := strings.Trim(strings.ReplaceAll(subjectPrefix, ":", "."), ".")
	if prefix == "" {
		prefix = "chat"
	}
	return &Relay{
		conn:    conn,
		subject: prefix + ".realtime",
		nodeID:  uuid.NewString(),
		hub:     hub,
		logger:  logger.With().Str("component", "realtime_relay").Logger(),
	}
}

// Subject returns the NATS subject the relay uses.
func (r *Relay) Subject() string {
	return r.subject
}

// NodeID identifies this node in relayed events.
func (r *Relay) NodeID() string {
	return r.nodeID
}

// Start subscribes to the relay subject until ctx is cancelled.
func (r *Relay) Start(ctx context.Context) error {
	sub, err := r.conn.Subscribe(r.subject, func(msg *nats.Msg) {
		r.handleEvent(msg.Data)
	})
	if err != nil {
		return err
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to drain realtime subscription")
		}
	}()
	r.logger.Info().Str("subject", r.subject).Str("node_id", r.nodeID).Msg("realtime relay subscribed")
	return nil
}

// PublishChatEvent relays a chat event to the other nodes.
func (r *Relay) PublishChatEvent(chatID string, event models.ChatEvent) {
	r.publish(relayEvent{Scope: scopeChat, Target: chatID, Chat: &event})
}

// PublishUserEvent relays a notification event to the other nodes.
func (r *Relay) PublishUserEvent(userID string, event models.NotificationEvent) {
	r.publish(relayEvent{Scope: scopeUser, Target: userID, Notification: &event})
}

func (r *Relay) publish(event relayEvent) {
	if r == nil || r.conn == nil {
		return
	}
	event.Source = r.nodeID
	event.SentAt = time.Now().UTC()
	payload, err := json.Marshal(event)
	if err != nil {
		r.logger.Error().Err(err).Msg("failed to marshal realtime event")
		return
	}
	if err := r.conn.Publish(r.subject, payload); err != nil {
		r.logger.Warn().Err(err).Str("scope", event.Scope).Str("target", event.Target).Msg("failed to publish realtime event")
		observability.IncRelayEvent("publish_error")
		return
	}
	observability.IncRelayEvent("out")
}

func (r *Relay) handleEvent(data []byte) {
	var event relayEvent
	if err := json.Unmarshal(data, &event); err != nil {
		r.logger.Warn().Err(err).Msg("invalid realtime event")
		return
	}
	if event.Source == r.nodeID {
		return
	}

	switch {
	case event.Scope == scopeChat && event.Chat != nil:
		r.hub.DeliverChatEvent(event.Target, *event.Chat)
	case event.Scope == scopeUser && event.Notification != nil:
		r.hub.DeliverUserEvent(event.Target, *event.Notification)
	default:
		r.logger.Warn().Str("scope", event.Scope).Msg("unknown realtime event scope")
		return
	}
	observability.IncRelayEvent("in")
}
