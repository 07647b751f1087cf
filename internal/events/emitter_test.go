package events_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"social-chat/internal/events"
	"social-chat/internal/mocks"
	"social-chat/internal/observability"
)

func TestEmitWrapsPayloadInEnvelope(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := events.NewEmitter(publisher, "social-chat", "test", zerolog.Nop())

	var captured events.Envelope
	publisher.On("Publish", mock.Anything, events.ChatMessageSent, mock.AnythingOfType("events.Envelope")).
		Run(func(args mock.Arguments) { captured = args.Get(2).(events.Envelope) }).
		Return(nil).Once()

	ctx := observability.WithRequestID(context.Background(), "req-1")
	emitter.Emit(ctx, events.ChatMessageSent, "alice", map[string]string{"chat_id": "c1"})

	publisher.AssertExpectations(t)
	require.Equal(t, 1, captured.SchemaVersion)
	require.Equal(t, events.ChatMessageSent, captured.EventType)
	require.Equal(t, "social-chat", captured.Service)
	require.Equal(t, "test", captured.Environment)
	require.Equal(t, "req-1", captured.RequestID)
	require.NotNil(t, captured.UserID)
	require.Equal(t, "alice", *captured.UserID)
	_, err := time.Parse(time.RFC3339Nano, captured.OccurredAt)
	require.NoError(t, err)
}

func TestEmitSwallowsPublishErrors(t *testing.T) {
	publisher := new(mocks.PublisherMock)
	emitter := events.NewEmitter(publisher, "social-chat", "test", zerolog.Nop())
	publisher.On("Publish", mock.Anything, events.FriendshipRemoved, mock.Anything).Return(assert.AnError).Once()

	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), events.FriendshipRemoved, "", nil)
	})
	publisher.AssertExpectations(t)
}

func TestNilEmitterIsNoop(t *testing.T) {
	var emitter *events.Emitter
	assert.NotPanics(t, func() {
		emitter.Emit(context.Background(), events.FriendRequestSent, "alice", nil)
	})
}
