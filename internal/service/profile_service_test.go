package service_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"social-chat/internal/presence"
	"social-chat/internal/repositories"
	"social-chat/internal/service"
	"social-chat/internal/session"
)

func strPtr(s string) *string { return &s }

func TestEnsureCreatesOnceFromEmail(t *testing.T) {
	f := newFixture(t)
	sess := session.Session{UserID: "u1", Email: "jane.doe@example.com"}

	p, err := f.profiles.Ensure(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, "u1", p.ID)
	require.Equal(t, "jane.doe", p.DisplayName)

	_, err = f.profiles.Update(context.Background(), sess, service.UpdateProfileRequest{DisplayName: strPtr("Jane")})
	require.NoError(t, err)

	again, err := f.profiles.Ensure(context.Background(), sess)
	require.NoError(t, err)
	require.Equal(t, "Jane", again.DisplayName)

	_, err = f.profiles.Ensure(context.Background(), session.Session{})
	require.ErrorIs(t, err, session.ErrNoSession)
}

func TestUpdateProfileValidation(t *testing.T) {
	f := newFixture(t)
	sess := f.user(t, "alice")

	_, err := f.profiles.Update(context.Background(), sess, service.UpdateProfileRequest{DisplayName: strPtr("   ")})
	require.ErrorIs(t, err, service.ErrValidation)

	_, err = f.profiles.Update(context.Background(), sess, service.UpdateProfileRequest{AvatarURL: strPtr("not a url")})
	require.ErrorIs(t, err, service.ErrValidation)

	updated, err := f.profiles.Update(context.Background(), sess, service.UpdateProfileRequest{AvatarURL: strPtr("https://cdn.example.com/a.png")})
	require.NoError(t, err)
	require.Equal(t, "https://cdn.example.com/a.png", *updated.AvatarURL)
}

func TestSearchExcludesCaller(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice")
	f.user(t, "alina")
	f.user(t, "bob")

	found, err := f.profiles.Search(context.Background(), alice, "al", 10)
	require.NoError(t, err)
	require.Len(t, found, 1)
	require.Equal(t, "alina", found[0].ID)

	none, err := f.profiles.Search(context.Background(), alice, "%", 10)
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = f.profiles.Search(context.Background(), alice, " ", 10)
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestPresenceOverlayFromRedis(t *testing.T) {
	f := newFixture(t)
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	profiles := service.NewProfileService(f.profileRepo, presence.NewRedisStore(client, time.Minute), f.validate, zerolog.Nop())
	_, err := profiles.Ensure(context.Background(), session.Session{UserID: "alice", Email: "alice@x.com"})
	require.NoError(t, err)

	require.NoError(t, profiles.SetPresence(context.Background(), "alice", true))
	p, err := profiles.Get(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, p.IsOnline)
	require.NotNil(t, p.LastSeen)

	// the key expiring wins over the stored flag
	mr.FastForward(2 * time.Minute)
	p, err = profiles.Get(context.Background(), "alice")
	require.NoError(t, err)
	require.False(t, p.IsOnline)

	require.NoError(t, profiles.SetPresence(context.Background(), "ghost", true))
	_, err = profiles.Get(context.Background(), "ghost")
	require.ErrorIs(t, err, repositories.ErrProfileNotFound)
}
