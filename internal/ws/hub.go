package ws

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"social-chat/internal/models"
	"social-chat/internal/observability"
)

const (
	kindChat          = "chat"
	kindNotifications = "notifications"
	writeWait         = 10 * time.Second
)

// Relay forwards hub events to other nodes.
type Relay interface {
	PublishChatEvent(chatID string, event models.ChatEvent)
	PublishUserEvent(userID string, event models.NotificationEvent)
}

type client struct {
	conn *websocket.Conn
	info ConnInfo
	mu   sync.Mutex
}

func (c *client) write(messageType int, payload []byte) error {
	if c.conn == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, payload)
}

// Hub maintains chat room subscriptions and per-user notification streams.
type Hub struct {
	chatRooms   map[string]map[*websocket.Conn]*client
	userStreams map[string]map[*websocket.Conn]*client
	relay       Relay
	logger      zerolog.Logger
	mu          sync.RWMutex
}

// NewHub creates an empty hub.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		chatRooms:   make(map[string]map[*websocket.Conn]*client),
		userStreams: make(map[string]map[*websocket.Conn]*client),
		logger:      logger.With().Str("component", "ws_hub").Logger(),
	}
}

// SetRelay attaches the cross-node relay. Events broadcast afterwards are also relayed.
func (h *Hub) SetRelay(relay Relay) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.relay = relay
}

// AddChatClient registers a websocket connection to a chat room.
func (h *Hub) AddChatClient(chatID string, conn *websocket.Conn, info ConnInfo) {
	h.add(h.chatRooms, chatID, conn, info)
}

// RemoveChatClient removes a chat websocket connection.
func (h *Hub) RemoveChatClient(chatID string, conn *websocket.Conn) {
	h.remove(h.chatRooms, chatID, conn)
}

// AddUserClient registers a notification stream connection of a user.
func (h *Hub) AddUserClient(userID string, conn *websocket.Conn, info ConnInfo) {
	h.add(h.userStreams, userID, conn, info)
}

// RemoveUserClient removes a notification stream connection.
func (h *Hub) RemoveUserClient(userID string, conn *websocket.Conn) {
	h.remove(h.userStreams, userID, conn)
}

// ChatClients counts local connections subscribed to the chat.
func (h *Hub) ChatClients(chatID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.chatRooms[chatID])
}

// UserClients counts local notification streams of the user.
func (h *Hub) UserClients(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.userStreams[userID])
}

// BroadcastChatEvent delivers the event to local subscribers of the chat and relays it.
func (h *Hub) BroadcastChatEvent(chatID string, event models.ChatEvent) {
	h.DeliverChatEvent(chatID, event)
	if relay := h.currentRelay(); relay != nil {
		relay.PublishChatEvent(chatID, event)
	}
}

// BroadcastUserEvent delivers the event to the user's local streams and relays it.
func (h *Hub) BroadcastUserEvent(userID string, event models.NotificationEvent) {
	h.DeliverUserEvent(userID, event)
	if relay := h.currentRelay(); relay != nil {
		relay.PublishUserEvent(userID, event)
	}
}

// DeliverChatEvent writes to local subscribers only.
func (h *Hub) DeliverChatEvent(chatID string, event models.ChatEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("chat_id", chatID).Msg("marshal chat event")
		return
	}
	h.deliver(kindChat, h.chatRooms, chatID, payload)
	observability.IncWSEvent(kindChat, event.Type)
}

// DeliverUserEvent writes to the user's local streams only.
func (h *Hub) DeliverUserEvent(userID string, event models.NotificationEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID).Msg("marshal notification event")
		return
	}
	h.deliver(kindNotifications, h.userStreams, userID, payload)
	observability.IncWSEvent(kindNotifications, event.Type)
}

// Ping writes a ping frame to one connection of a user stream or chat room.
func (h *Hub) Ping(conn *websocket.Conn) error {
	c := h.find(conn)
	if c == nil {
		return nil
	}
	return c.write(websocket.PingMessage, nil)
}

func (h *Hub) add(rooms map[string]map[*websocket.Conn]*client, key string, conn *websocket.Conn, info ConnInfo) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := rooms[key]; !ok {
		rooms[key] = make(map[*websocket.Conn]*client)
	}
	rooms[key][conn] = &client{conn: conn, info: info}
}

func (h *Hub) remove(rooms map[string]map[*websocket.Conn]*client, key string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if conns, ok := rooms[key]; ok {
		delete(conns, conn)
		if len(conns) == 0 {
			delete(rooms, key)
		}
	}
}

func (h *Hub) deliver(kind string, rooms map[string]map[*websocket.Conn]*client, key string, payload []byte) {
	h.mu.RLock()
	targets := make([]*client, 0, len(rooms[key]))
	for _, c := range rooms[key] {
		targets = append(targets, c)
	}
	h.mu.RUnlock()

	for _, c := range targets {
		if err := c.write(websocket.TextMessage, payload); err != nil {
			h.logger.Warn().Err(err).Str("kind", kind).Str("resource_id", key).Str("conn_id", c.info.ConnID).Msg("websocket write error")
			_ = c.conn.Close()
			h.remove(rooms, key, c.conn)
			observability.IncWSEvent(kind, "ws_error")
		}
	}
}

func (h *Hub) find(conn *websocket.Conn) *client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, rooms := range []map[string]map[*websocket.Conn]*client{h.chatRooms, h.userStreams} {
		for _, conns := range rooms {
			if c, ok := conns[conn]; ok {
				return c
			}
		}
	}
	return nil
}

func (h *Hub) currentRelay() Relay {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.relay
}
