package handlers_test

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-chat/internal/models"
	"social-chat/internal/service"
)

func startDirect(t *testing.T, api *apiFixture, from, to string) models.ChatRoom {
	t.Helper()
	rec := api.do(t, from, http.MethodPost, "/chats/direct", map[string]string{"friend_id": to})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[models.ChatRoom](t, rec)
}

func TestStartDirectChatRequiresFriendship(t *testing.T) {
	api := newAPI(t)
	api.do(t, "bob", http.MethodGet, "/me", nil)

	rec := api.do(t, "alice", http.MethodPost, "/chats/direct", map[string]string{"friend_id": "bob"})

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestStartDirectChatIsDeduplicated(t *testing.T) {
	api := newAPI(t)
	api.befriend(t, "alice", "bob")

	first := startDirect(t, api, "alice", "bob")
	second := startDirect(t, api, "bob", "alice")

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, models.ChatTypeDirect, first.Type)
	assert.ElementsMatch(t, []string{"alice", "bob"}, first.Participants)
}

func TestSendMessageAndReadHistory(t *testing.T) {
	api := newAPI(t)
	api.befriend(t, "alice", "bob")
	room := startDirect(t, api, "alice", "bob")

	rec := api.do(t, "alice", http.MethodPost, "/chats/"+room.ID+"/messages", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sent := decode[service.SendMessageResult](t, rec)
	assert.Equal(t, "hi", sent.Message.Text)
	assert.Equal(t, []string{"bob"}, sent.FanOut.Delivered)
	assert.Empty(t, sent.FanOut.Failed)

	rec = api.do(t, "bob", http.MethodGet, "/chats/"+room.ID+"/messages", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	history := decode[struct {
		Messages []models.Message `json:"messages"`
	}](t, rec)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, []string{"alice"}, history.Messages[0].ReadBy)

	rec = api.do(t, "bob", http.MethodPost, "/chats/"+room.ID+"/read", map[string][]string{"message_ids": {sent.Message.ID}})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"message_ids":["`+sent.Message.ID+`"]}`, rec.Body.String())

	rec = api.do(t, "bob", http.MethodGet, "/chats", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	chats := decode[struct {
		Chats []models.ChatRoom `json:"chats"`
	}](t, rec)
	require.Len(t, chats.Chats, 1)
	require.NotNil(t, chats.Chats[0].LastMessage)
	assert.Equal(t, "hi", chats.Chats[0].LastMessage.Text)
}

func TestHistoryCursorAcceptsAnyZone(t *testing.T) {
	api := newAPI(t)
	api.befriend(t, "alice", "bob")
	room := startDirect(t, api, "alice", "bob")

	rec := api.do(t, "alice", http.MethodPost, "/chats/"+room.ID+"/messages", map[string]string{"text": "hi"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sent := decode[service.SendMessageResult](t, rec)

	plusFive := time.FixedZone("UTC+5", 5*60*60)
	history := func(cursor time.Time) []models.Message {
		path := "/chats/" + room.ID + "/messages?before=" + url.QueryEscape(cursor.In(plusFive).Format(time.RFC3339Nano))
		rec := api.do(t, "bob", http.MethodGet, path, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		return decode[struct {
			Messages []models.Message `json:"messages"`
		}](t, rec).Messages
	}

	assert.Empty(t, history(sent.Message.CreatedAt.Add(-time.Hour)))
	assert.Len(t, history(sent.Message.CreatedAt.Add(time.Hour)), 1)
}

func TestOutsiderCannotReadOrWrite(t *testing.T) {
	api := newAPI(t)
	api.befriend(t, "alice", "bob")
	room := startDirect(t, api, "alice", "bob")

	rec := api.do(t, "mallory", http.MethodGet, "/chats/"+room.ID+"/messages", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, "mallory", http.MethodPost, "/chats/"+room.ID+"/messages", map[string]string{"text": "spam"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSendMessageValidation(t *testing.T) {
	api := newAPI(t)
	api.befriend(t, "alice", "bob")
	room := startDirect(t, api, "alice", "bob")

	rec := api.do(t, "alice", http.MethodPost, "/chats/"+room.ID+"/messages", map[string]string{"text": "   "})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, "alice", http.MethodGet, "/chats/"+room.ID+"/messages?before=yesterday", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = api.do(t, "alice", http.MethodPost, "/chats/missing/messages", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDeactivatedChatRejectsMessages(t *testing.T) {
	api := newAPI(t)
	api.befriend(t, "alice", "bob")
	room := startDirect(t, api, "alice", "bob")

	rec := api.do(t, "alice", http.MethodDelete, "/chats/"+room.ID, nil)
	require.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, "bob", http.MethodPost, "/chats/"+room.ID+"/messages", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateGroupChat(t *testing.T) {
	api := newAPI(t)
	api.do(t, "bob", http.MethodGet, "/me", nil)
	api.do(t, "carol", http.MethodGet, "/me", nil)

	rec := api.do(t, "alice", http.MethodPost, "/chats/groups", map[string]any{"name": "trip", "member_ids": []string{"bob", "carol"}})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	room := decode[models.ChatRoom](t, rec)
	assert.Equal(t, models.ChatTypeGroup, room.Type)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, room.Participants)

	rec = api.do(t, "alice", http.MethodPost, "/chats/groups", map[string]any{"name": "", "member_ids": []string{"bob"}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
