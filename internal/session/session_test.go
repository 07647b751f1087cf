package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromContextRoundTrip(t *testing.T) {
	ctx := WithContext(context.Background(), Session{UserID: "u1", Email: "a@x.com"})

	s, err := FromContext(ctx)
	require.NoError(t, err)
	require.Equal(t, "u1", s.UserID)
	require.Equal(t, "a@x.com", s.Email)
}

func TestFromContextMissing(t *testing.T) {
	_, err := FromContext(context.Background())
	require.ErrorIs(t, err, ErrNoSession)

	_, err = FromContext(WithContext(context.Background(), Session{UserID: "  "}))
	require.ErrorIs(t, err, ErrNoSession)
}
