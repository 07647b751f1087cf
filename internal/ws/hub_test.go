package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-chat/internal/models"
)

type recordingRelay struct {
	mu    sync.Mutex
	chats []string
	users []string
}

func (r *recordingRelay) PublishChatEvent(chatID string, _ models.ChatEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chats = append(r.chats, chatID)
}

func (r *recordingRelay) PublishUserEvent(userID string, _ models.NotificationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

// dialPair returns the server side and client side of a live websocket connection.
func dialPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverConns <- conn
	}))
	t.Cleanup(srv.Close)

	client, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	select {
	case server := <-serverConns:
		t.Cleanup(func() { _ = server.Close() })
		return server, client
	case <-time.After(2 * time.Second):
		t.Fatal("server side of websocket not accepted")
		return nil, nil
	}
}

func TestHubAddAndRemoveChatClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	hub.AddChatClient("c1", nil, ConnInfo{})
	assert.Equal(t, 1, hub.ChatClients("c1"))

	hub.RemoveChatClient("c1", nil)
	assert.Equal(t, 0, hub.ChatClients("c1"))
	assert.Empty(t, hub.chatRooms)
}

func TestHubAddAndRemoveUserClient(t *testing.T) {
	hub := NewHub(zerolog.Nop())

	hub.AddUserClient("u1", nil, ConnInfo{})
	assert.Equal(t, 1, hub.UserClients("u1"))

	hub.RemoveUserClient("u1", nil)
	assert.Equal(t, 0, hub.UserClients("u1"))
	assert.Empty(t, hub.userStreams)
}

func TestHubBroadcastChatEventReachesSubscriber(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	server, client := dialPair(t)
	hub.AddChatClient("c1", server, ConnInfo{ConnID: "conn-1"})

	hub.BroadcastChatEvent("c1", models.ChatEvent{Type: models.ChatEventRead, ChatID: "c1", ReaderID: "u2", MessageIDs: []string{"m1"}})

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got models.ChatEvent
	require.NoError(t, client.ReadJSON(&got))
	assert.Equal(t, models.ChatEventRead, got.Type)
	assert.Equal(t, "u2", got.ReaderID)
	assert.Equal(t, []string{"m1"}, got.MessageIDs)
}

func TestHubBroadcastUserEventOnlyReachesThatUser(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	serverA, clientA := dialPair(t)
	serverB, clientB := dialPair(t)
	hub.AddUserClient("alice", serverA, ConnInfo{})
	hub.AddUserClient("bob", serverB, ConnInfo{})

	hub.BroadcastUserEvent("alice", models.NotificationEvent{Type: "notification.created", Notification: &models.Notification{ID: "n1", UserID: "alice"}})

	require.NoError(t, clientA.SetReadDeadline(time.Now().Add(2*time.Second)))
	var got models.NotificationEvent
	require.NoError(t, clientA.ReadJSON(&got))
	require.NotNil(t, got.Notification)
	assert.Equal(t, "n1", got.Notification.ID)

	require.NoError(t, clientB.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := clientB.ReadMessage()
	assert.Error(t, err)
}

func TestHubBroadcastRelaysButDeliverDoesNot(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	relay := &recordingRelay{}
	hub.SetRelay(relay)

	hub.BroadcastChatEvent("c1", models.ChatEvent{Type: models.ChatEventMessage, ChatID: "c1"})
	hub.BroadcastUserEvent("u1", models.NotificationEvent{Type: "notification.created"})
	hub.DeliverChatEvent("c2", models.ChatEvent{Type: models.ChatEventMessage, ChatID: "c2"})
	hub.DeliverUserEvent("u2", models.NotificationEvent{Type: "notification.created"})

	assert.Equal(t, []string{"c1"}, relay.chats)
	assert.Equal(t, []string{"u1"}, relay.users)
}

func TestHubDropsClientOnWriteError(t *testing.T) {
	hub := NewHub(zerolog.Nop())
	server, _ := dialPair(t)
	hub.AddChatClient("c1", server, ConnInfo{})
	require.NoError(t, server.Close())

	hub.DeliverChatEvent("c1", models.ChatEvent{Type: models.ChatEventMessage, ChatID: "c1"})

	assert.Equal(t, 0, hub.ChatClients("c1"))
}
