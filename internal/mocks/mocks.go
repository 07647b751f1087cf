package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type ParticipantCheckerMock struct {
	mock.Mock
}

func (m *ParticipantCheckerMock) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	args := m.Called(ctx, chatID, userID)
	return args.Bool(0), args.Error(1)
}

type PresenceSetterMock struct {
	mock.Mock
}

func (m *PresenceSetterMock) SetPresence(ctx context.Context, userID string, online bool) error {
	args := m.Called(ctx, userID, online)
	return args.Error(0)
}

type EmitterMock struct {
	mock.Mock
}

func (m *EmitterMock) Emit(ctx context.Context, eventType string, userID string, payload any) {
	m.Called(ctx, eventType, userID, payload)
}

// PublisherMock stands in for the event bus publisher.
type PublisherMock struct {
	mock.Mock
}

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, event any) error {
	return m.Called(ctx, routingKey, event).Error(0)
}

func (m *PublisherMock) Close() error {
	return m.Called().Error(0)
}
