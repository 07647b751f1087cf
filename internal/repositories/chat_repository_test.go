package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"social-chat/internal/models"
	"social-chat/internal/repositories"
)

func TestChatRepoCreateAndGet(t *testing.T) {
	conn := openDB(t)
	repo := repositories.NewChatRepo(conn)
	seedDirectChat(t, conn, "c1", "alice", "bob")

	room, err := repo.GetChat(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, models.ChatTypeDirect, room.Type)
	require.ElementsMatch(t, []string{"alice", "bob"}, room.Participants)
	require.True(t, room.IsActive)
	require.Nil(t, room.LastMessage)

	_, err = repo.GetChat(context.Background(), "missing")
	require.ErrorIs(t, err, repositories.ErrChatNotFound)
}

func TestChatRepoActiveDirectKeyIsUnique(t *testing.T) {
	conn := openDB(t)
	repo := repositories.NewChatRepo(conn)
	first := seedDirectChat(t, conn, "c1", "alice", "bob")

	dup := first
	dup.ID = "c2"
	dup.Participants = []string{"bob", "alice"}
	require.ErrorIs(t, repo.CreateChat(context.Background(), dup), repositories.ErrDirectChatExists)

	found, err := repo.FindActiveDirect(context.Background(), models.DirectKey("bob", "alice"))
	require.NoError(t, err)
	require.Equal(t, "c1", found.ID)

	// a deactivated room frees the key
	require.NoError(t, repo.Deactivate(context.Background(), "c1", baseTime.Add(1)))
	_, err = repo.FindActiveDirect(context.Background(), models.DirectKey("alice", "bob"))
	require.ErrorIs(t, err, repositories.ErrChatNotFound)
	require.NoError(t, repo.CreateChat(context.Background(), dup))
}

func TestChatRepoListChatsOrderedByActivity(t *testing.T) {
	conn := openDB(t)
	repo := repositories.NewChatRepo(conn)
	seedDirectChat(t, conn, "c1", "alice", "bob")
	seedDirectChat(t, conn, "c2", "alice", "carol")
	seedDirectChat(t, conn, "c3", "bob", "carol")

	summary := models.MessageSummary{Text: "hi", SenderID: "alice", Timestamp: baseTime.Add(10 * time.Minute)}
	require.NoError(t, repo.UpdateSummary(context.Background(), "c1", summary))

	rooms, err := repo.ListChats(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, rooms, 2)
	require.Equal(t, "c1", rooms[0].ID)
	require.NotNil(t, rooms[0].LastMessage)
	require.Equal(t, "hi", rooms[0].LastMessage.Text)
	require.Equal(t, "alice", rooms[0].LastMessage.SenderID)
	require.Equal(t, "c2", rooms[1].ID)

	require.NoError(t, repo.Deactivate(context.Background(), "c2", baseTime.Add(1)))
	rooms, err = repo.ListChats(context.Background(), "alice")
	require.NoError(t, err)
	require.Len(t, rooms, 1)

	rooms, err = repo.ListChats(context.Background(), "nobody")
	require.NoError(t, err)
	require.Empty(t, rooms)
}

func TestChatRepoIsParticipant(t *testing.T) {
	conn := openDB(t)
	repo := repositories.NewChatRepo(conn)
	seedDirectChat(t, conn, "c1", "alice", "bob")

	ok, err := repo.IsParticipant(context.Background(), "c1", "alice")
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.IsParticipant(context.Background(), "c1", "mallory")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestChatRepoUpdateMissingChat(t *testing.T) {
	repo := repositories.NewChatRepo(openDB(t))
	err := repo.UpdateSummary(context.Background(), "missing", models.MessageSummary{Text: "x", Timestamp: baseTime})
	require.ErrorIs(t, err, repositories.ErrChatNotFound)
	require.ErrorIs(t, repo.Deactivate(context.Background(), "missing", baseTime), repositories.ErrChatNotFound)
}
