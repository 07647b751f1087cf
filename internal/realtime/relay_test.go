package realtime

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-chat/internal/models"
)

type recordingHub struct {
	chats map[string][]models.ChatEvent
	users map[string][]models.NotificationEvent
}

func newRecordingHub() *recordingHub {
	return &recordingHub{
		chats: map[string][]models.ChatEvent{},
		users: map[string][]models.NotificationEvent{},
	}
}

func (h *recordingHub) DeliverChatEvent(chatID string, event models.ChatEvent) {
	h.chats[chatID] = append(h.chats[chatID], event)
}

func (h *recordingHub) DeliverUserEvent(userID string, event models.NotificationEvent) {
	h.users[userID] = append(h.users[userID], event)
}

func encode(t *testing.T, event relayEvent) []byte {
	t.Helper()
	raw, err := json.Marshal(event)
	require.NoError(t, err)
	return raw
}

func TestNewRelayBuildsSubjectFromPrefix(t *testing.T) {
	assert.Equal(t, "chat.realtime", NewRelay(nil, "", newRecordingHub(), zerolog.Nop()).Subject())
	assert.Equal(t, "social.chat.realtime", NewRelay(nil, "social:chat", newRecordingHub(), zerolog.Nop()).Subject())
}

func TestRelayIgnoresOwnEvents(t *testing.T) {
	hub := newRecordingHub()
	relay := NewRelay(nil, "chat", hub, zerolog.Nop())

	relay.handleEvent(encode(t, relayEvent{
		Source: relay.NodeID(),
		Scope:  scopeChat,
		Target: "c1",
		Chat:   &models.ChatEvent{Type: models.ChatEventMessage, ChatID: "c1"},
	}))

	assert.Empty(t, hub.chats)
}

func TestRelayDeliversForeignEventsLocally(t *testing.T) {
	hub := newRecordingHub()
	relay := NewRelay(nil, "chat", hub, zerolog.Nop())

	relay.handleEvent(encode(t, relayEvent{
		Source: "other-node",
		Scope:  scopeChat,
		Target: "c1",
		Chat:   &models.ChatEvent{Type: models.ChatEventRead, ChatID: "c1", ReaderID: "bob"},
	}))
	relay.handleEvent(encode(t, relayEvent{
		Source:       "other-node",
		Scope:        scopeUser,
		Target:       "alice",
		Notification: &models.NotificationEvent{Type: "notification.created", Notification: &models.Notification{ID: "n1"}},
	}))

	require.Len(t, hub.chats["c1"], 1)
	assert.Equal(t, "bob", hub.chats["c1"][0].ReaderID)
	require.Len(t, hub.users["alice"], 1)
	assert.Equal(t, "n1", hub.users["alice"][0].Notification.ID)
}

func TestRelayDropsMalformedEvents(t *testing.T) {
	hub := newRecordingHub()
	relay := NewRelay(nil, "chat", hub, zerolog.Nop())

	relay.handleEvent([]byte("{not json"))
	relay.handleEvent(encode(t, relayEvent{Source: "other-node", Scope: scopeChat, Target: "c1"}))

	assert.Empty(t, hub.chats)
	assert.Empty(t, hub.users)
}

func TestPublishWithoutConnectionIsNoop(t *testing.T) {
	relay := NewRelay(nil, "chat", newRecordingHub(), zerolog.Nop())

	assert.NotPanics(t, func() {
		relay.PublishChatEvent("c1", models.ChatEvent{Type: models.ChatEventMessage})
		relay.PublishUserEvent("u1", models.NotificationEvent{Type: "notification.created"})
	})
}
