package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"social-chat/internal/events"
	"social-chat/internal/models"
	"social-chat/internal/repositories"
	"social-chat/internal/session"
)

// CreateNotificationRequest is an internal request to append to a user's ledger.
type CreateNotificationRequest struct {
	UserID string                  `validate:"required"`
	Type   models.NotificationType `validate:"required,oneof=message friend_request friend_accepted"`
	Title  string                  `validate:"required,max=200"`
	Body   string                  `validate:"max=1000"`
	Data   map[string]string
}

// UpdateSettingsRequest is a partial settings edit. Nil fields are left unchanged.
type UpdateSettingsRequest struct {
	PushNotifications          *bool `json:"push_notifications"`
	MessageNotifications       *bool `json:"message_notifications"`
	FriendRequestNotifications *bool `json:"friend_request_notifications"`
}

// NotificationService owns the per-user notification ledger and settings.
type NotificationService struct {
	repo        repositories.NotificationRepository
	events      EventEmitter
	broadcaster Broadcaster
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewNotificationService constructs a NotificationService. emitter and broadcaster may be nil.
func NewNotificationService(repo repositories.NotificationRepository, emitter EventEmitter, broadcaster Broadcaster, validate *validator.Validate, logger zerolog.Logger) *NotificationService {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	if broadcaster == nil {
		broadcaster = noopBroadcaster{}
	}
	return &NotificationService{
		repo:        repo,
		events:      emitter,
		broadcaster: broadcaster,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      otel.Tracer("social-chat/internal/service/notification"),
	}
}

// Create writes an unread record, pushes it to the user's realtime stream and, unless the
// user disabled push notifications, publishes it for push delivery.
func (s *NotificationService) Create(ctx context.Context, req CreateNotificationRequest) (models.Notification, error) {
	req.UserID = strings.TrimSpace(req.UserID)
	req.Title = sanitizeText(s.sanitizer, req.Title)
	req.Body = sanitizeText(s.sanitizer, req.Body)
	if err := s.validator.Struct(req); err != nil {
		return models.Notification{}, wrapValidation(err)
	}

	ctx, span := s.tracer.Start(ctx, "notifications.create", trace.WithAttributes(
		attribute.String("notification.user_id", req.UserID),
		attribute.String("notification.type", string(req.Type)),
	))
	defer span.End()

	data := models.NotificationData{}
	for k, v := range req.Data {
		data[k] = v
	}
	n := models.Notification{
		ID:        newID(),
		UserID:    req.UserID,
		Type:      req.Type,
		Title:     req.Title,
		Body:      req.Body,
		Data:      data,
		IsRead:    false,
		CreatedAt: nowUTC(),
	}
	if err := s.repo.CreateNotification(ctx, n); err != nil {
		span.RecordError(err)
		return models.Notification{}, fmt.Errorf("create notification: %w", err)
	}

	s.broadcaster.BroadcastUserEvent(n.UserID, models.NotificationEvent{Type: events.NotificationCreated, Notification: &n})

	settings, err := s.GetSettings(ctx, n.UserID)
	if err != nil {
		s.logger.Warn().Err(err).Str("user_id", n.UserID).Msg("settings lookup failed, using defaults")
		settings = models.DefaultNotificationSettings(n.UserID)
	}
	if settings.PushNotifications {
		s.events.Emit(ctx, events.NotificationCreated, n.UserID, n)
	}
	return n, nil
}

// List pages through a user's ledger, newest first.
func (s *NotificationService) List(ctx context.Context, userID string, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("user id is required")
	}
	return s.repo.ListNotifications(ctx, userID, unreadOnly, limit, offset)
}

// MarkAsRead flags one of the caller's notifications.
func (s *NotificationService) MarkAsRead(ctx context.Context, sess session.Session, notificationID string) error {
	if !sess.Valid() {
		return session.ErrNoSession
	}
	if strings.TrimSpace(notificationID) == "" {
		return validationError("notification id is required")
	}
	ctx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(attribute.String("notification.user_id", sess.UserID)))
	defer span.End()

	if err := s.repo.MarkRead(ctx, notificationID, sess.UserID); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// MarkAllAsRead flags every unread notification of the caller and returns how many changed.
func (s *NotificationService) MarkAllAsRead(ctx context.Context, sess session.Session) (int64, error) {
	if !sess.Valid() {
		return 0, session.ErrNoSession
	}
	return s.repo.MarkAllRead(ctx, sess.UserID)
}

// UnreadCount returns how many of the user's notifications are unread.
func (s *NotificationService) UnreadCount(ctx context.Context, userID string) (int, error) {
	if strings.TrimSpace(userID) == "" {
		return 0, validationError("user id is required")
	}
	return s.repo.CountUnread(ctx, userID)
}

// GetSettings returns the stored settings, or all-enabled defaults.
func (s *NotificationService) GetSettings(ctx context.Context, userID string) (models.NotificationSettings, error) {
	settings, err := s.repo.GetSettings(ctx, userID)
	if errors.Is(err, repositories.ErrSettingsNotFound) {
		return models.DefaultNotificationSettings(userID), nil
	}
	return settings, err
}

// UpdateSettings applies a partial edit to the caller's settings.
func (s *NotificationService) UpdateSettings(ctx context.Context, sess session.Session, req UpdateSettingsRequest) (models.NotificationSettings, error) {
	if !sess.Valid() {
		return models.NotificationSettings{}, session.ErrNoSession
	}
	settings, err := s.GetSettings(ctx, sess.UserID)
	if err != nil {
		return models.NotificationSettings{}, err
	}
	if req.PushNotifications != nil {
		settings.PushNotifications = *req.PushNotifications
	}
	if req.MessageNotifications != nil {
		settings.MessageNotifications = *req.MessageNotifications
	}
	if req.FriendRequestNotifications != nil {
		settings.FriendRequestNotifications = *req.FriendRequestNotifications
	}
	settings.UpdatedAt = nowUTC()

	if err := s.repo.UpsertSettings(ctx, settings); err != nil {
		return models.NotificationSettings{}, fmt.Errorf("update settings: %w", err)
	}
	return settings, nil
}
