package repositories_test

import (
	"context"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"social-chat/internal/db/dbtest"
	"social-chat/internal/models"
	"social-chat/internal/repositories"
)

var baseTime = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func openDB(t *testing.T) *sqlx.DB {
	t.Helper()
	return dbtest.Open(t)
}

func seedProfile(t *testing.T, conn *sqlx.DB, id, name string) models.UserProfile {
	t.Helper()
	p := models.UserProfile{ID: id, Email: id + "@example.com", DisplayName: name, CreatedAt: baseTime, UpdatedAt: baseTime}
	require.NoError(t, repositories.NewProfileRepo(conn).CreateIfMissing(context.Background(), p))
	return p
}

func seedDirectChat(t *testing.T, conn *sqlx.DB, id, a, b string) models.ChatRoom {
	t.Helper()
	key := models.DirectKey(a, b)
	room := models.ChatRoom{
		ID:           id,
		Type:         models.ChatTypeDirect,
		DirectKey:    &key,
		IsActive:     true,
		CreatedBy:    a,
		CreatedAt:    baseTime,
		UpdatedAt:    baseTime,
		Participants: []string{a, b},
	}
	require.NoError(t, repositories.NewChatRepo(conn).CreateChat(context.Background(), room))
	return room
}
