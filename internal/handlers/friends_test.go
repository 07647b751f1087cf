package handlers_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"social-chat/internal/models"
	"social-chat/internal/service"
)

func TestFriendRequestLifecycle(t *testing.T) {
	api := newAPI(t)
	api.do(t, "bob", http.MethodGet, "/me", nil)

	rec := api.do(t, "alice", http.MethodPost, "/friend-requests", map[string]string{"to_user": "bob", "message": "hey"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	sent := decode[service.FriendRequestResult](t, rec)
	assert.Equal(t, models.FriendRequestPending, sent.Request.Status)
	assert.Equal(t, []string{"bob"}, sent.FanOut.Delivered)

	rec = api.do(t, "alice", http.MethodPost, "/friend-requests", map[string]string{"to_user": "bob"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, "bob", http.MethodGet, "/friend-requests/received", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	received := decode[struct {
		Requests []models.FriendRequestWithProfile `json:"requests"`
	}](t, rec)
	require.Len(t, received.Requests, 1)

	rec = api.do(t, "alice", http.MethodPost, "/friend-requests/"+sent.Request.ID+"/accept", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = api.do(t, "bob", http.MethodPost, "/friend-requests/"+sent.Request.ID+"/accept", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	accepted := decode[service.AcceptResult](t, rec)
	assert.Equal(t, models.FriendRequestAccepted, accepted.Request.Status)

	rec = api.do(t, "bob", http.MethodPost, "/friend-requests/"+sent.Request.ID+"/reject", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = api.do(t, "alice", http.MethodGet, "/friends", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	friends := decode[struct {
		Friends []models.Friend `json:"friends"`
	}](t, rec)
	require.Len(t, friends.Friends, 1)
	assert.Equal(t, "bob", friends.Friends[0].Profile.ID)
}

func TestFriendRequestToUnknownUserIs404(t *testing.T) {
	api := newAPI(t)

	rec := api.do(t, "alice", http.MethodPost, "/friend-requests", map[string]string{"to_user": "ghost"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFriendRequestToSelfIs400(t *testing.T) {
	api := newAPI(t)

	rec := api.do(t, "alice", http.MethodPost, "/friend-requests", map[string]string{"to_user": "alice"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRemoveFriendIsIdempotent(t *testing.T) {
	api := newAPI(t)
	api.befriend(t, "alice", "bob")

	rec := api.do(t, "alice", http.MethodDelete, "/friends/bob", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec = api.do(t, "alice", http.MethodDelete, "/friends/bob", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, "bob", http.MethodGet, "/friends", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"friends":[]}`, rec.Body.String())
}

func TestRejectUnknownRequestIs404(t *testing.T) {
	api := newAPI(t)

	rec := api.do(t, "bob", http.MethodPost, "/friend-requests/nope/reject", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
