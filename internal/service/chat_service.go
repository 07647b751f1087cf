package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

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

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 100
	maxReadBatch        = 200
	maxGroupMembers     = 256
)

// FriendChecker answers whether two users are friends.
type FriendChecker interface {
	AreFriends(ctx context.Context, userA, userB string) (bool, error)
}

// SendMessageRequest is the body of a new chat message.
type SendMessageRequest struct {
	Text string             `json:"text" validate:"required"`
	Type models.MessageType `json:"type" validate:"omitempty,oneof=text image"`
}

// CreateGroupRequest creates a multi-party room.
type CreateGroupRequest struct {
	Name      string   `json:"name" validate:"required,max=100"`
	MemberIDs []string `json:"member_ids" validate:"required,min=1,max=256,dive,required,max=128"`
}

// SendMessageResult is the stored message plus the outcome of its notification fan-out.
type SendMessageResult struct {
	Message models.Message `json:"message"`
	FanOut  FanOutReport   `json:"fan_out"`
}

// ChatService owns chat rooms, direct-room deduplication and message fan-out.
type ChatService struct {
	tx          TxRunner
	chats       repositories.ChatRepository
	messages    repositories.MessageRepository
	profiles    repositories.ProfileRepository
	friends     FriendChecker
	notifier    Notifier
	events      EventEmitter
	broadcaster Broadcaster
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// ChatDeps groups the collaborators of ChatService.
type ChatDeps struct {
	Tx          TxRunner
	Chats       repositories.ChatRepository
	Messages    repositories.MessageRepository
	Profiles    repositories.ProfileRepository
	Friends     FriendChecker
	Notifier    Notifier
	Events      EventEmitter
	Broadcaster Broadcaster
}

// NewChatService constructs a ChatService. Events and Broadcaster may be nil.
func NewChatService(deps ChatDeps, validate *validator.Validate, logger zerolog.Logger) *ChatService {
	if deps.Events == nil {
		deps.Events = noopEmitter{}
	}
	if deps.Broadcaster == nil {
		deps.Broadcaster = noopBroadcaster{}
	}
	sanitizer := bluemonday.StrictPolicy()

	return &ChatService{
		tx:          deps.Tx,
		chats:       deps.Chats,
		messages:    deps.Messages,
		profiles:    deps.Profiles,
		friends:     deps.Friends,
		notifier:    deps.Notifier,
		events:      deps.Events,
		broadcaster: deps.Broadcaster,
		validator:   validate,
		sanitizer:   sanitizer,
		logger:      logger.With().Str("component", "chat_service").Logger(),
		tracer:      otel.Tracer("social-chat/internal/service/chat"),
	}
}

// GetOrCreateDirectChat returns the single active direct room of the pair, creating it
// on first contact. Concurrent first contacts converge on one room: the loser of the
// insert race hits the unique direct key and reads the winner's room.
func (s *ChatService) GetOrCreateDirectChat(ctx context.Context, userA, userB string) (models.ChatRoom, error) {
	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return models.ChatRoom{}, validationError("both participants are required")
	}
	if userA == userB {
		return models.ChatRoom{}, validationError("a direct chat needs two distinct participants")
	}

	ctx, span := s.tracer.Start(ctx, "chats.get_or_create_direct", trace.WithAttributes(
		attribute.String("chat.user_a", userA),
		attribute.String("chat.user_b", userB),
	))
	defer span.End()

	key := models.DirectKey(userA, userB)
	room, err := s.chats.FindActiveDirect(ctx, key)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repositories.ErrChatNotFound) {
		span.RecordError(err)
		return models.ChatRoom{}, err
	}

	now := nowUTC()
	room = models.ChatRoom{
		ID:           newID(),
		Type:         models.ChatTypeDirect,
		DirectKey:    &key,
		IsActive:     true,
		CreatedBy:    userA,
		CreatedAt:    now,
		UpdatedAt:    now,
		Participants: []string{userA, userB},
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.chats.CreateChat(ctx, room)
	})
	if errors.Is(err, repositories.ErrDirectChatExists) {
		s.logger.Debug().Str("direct_key", key).Msg("direct chat created concurrently, reusing")
		return s.chats.FindActiveDirect(ctx, key)
	}
	if err != nil {
		span.RecordError(err)
		return models.ChatRoom{}, fmt.Errorf("create direct chat: %w", err)
	}
	return room, nil
}

// StartDirectChat opens the direct room between the caller and a friend.
func (s *ChatService) StartDirectChat(ctx context.Context, sess session.Session, friendID string) (models.ChatRoom, error) {
	if !sess.Valid() {
		return models.ChatRoom{}, session.ErrNoSession
	}
	friendID = strings.TrimSpace(friendID)
	if friendID == "" {
		return models.ChatRoom{}, validationError("friend id is required")
	}
	if friendID == sess.UserID {
		return models.ChatRoom{}, validationError("cannot chat with yourself")
	}

	if s.friends != nil {
		ok, err := s.friends.AreFriends(ctx, sess.UserID, friendID)
		if err != nil {
			return models.ChatRoom{}, err
		}
		if !ok {
			return models.ChatRoom{}, ErrNotFriends
		}
	}
	return s.GetOrCreateDirectChat(ctx, sess.UserID, friendID)
}

// CreateGroupChat creates a group room. The caller is always a member.
func (s *ChatService) CreateGroupChat(ctx context.Context, sess session.Session, req CreateGroupRequest) (models.ChatRoom, error) {
	if !sess.Valid() {
		return models.ChatRoom{}, session.ErrNoSession
	}
	req.Name = sanitizeText(s.sanitizer, req.Name)
	if err := s.validator.Struct(req); err != nil {
		return models.ChatRoom{}, wrapValidation(err)
	}

	members := []string{sess.UserID}
	seen := map[string]struct{}{sess.UserID: {}}
	for _, id := range req.MemberIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		members = append(members, id)
	}
	if len(members) < 2 {
		return models.ChatRoom{}, validationError("a group needs at least one other member")
	}
	if len(members) > maxGroupMembers {
		return models.ChatRoom{}, validationError("a group may have at most %d members", maxGroupMembers)
	}

	ctx, span := s.tracer.Start(ctx, "chats.create_group", trace.WithAttributes(attribute.Int("chat.members", len(members))))
	defer span.End()

	now := nowUTC()
	name := req.Name
	room := models.ChatRoom{
		ID:           newID(),
		Type:         models.ChatTypeGroup,
		Name:         &name,
		IsActive:     true,
		CreatedBy:    sess.UserID,
		CreatedAt:    now,
		UpdatedAt:    now,
		Participants: members,
	}
	if err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		return s.chats.CreateChat(ctx, room)
	}); err != nil {
		span.RecordError(err)
		return models.ChatRoom{}, fmt.Errorf("create group chat: %w", err)
	}
	return room, nil
}

// ListChats returns the user's active rooms, most recently active first.
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]models.ChatRoom, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("user id is required")
	}
	return s.chats.ListChats(ctx, userID)
}

// DeactivateChat hides a room for everyone. Deactivating an inactive room is a no-op.
func (s *ChatService) DeactivateChat(ctx context.Context, sess session.Session, chatID string) error {
	room, err := s.participantRoom(ctx, sess, chatID)
	if err != nil {
		return err
	}
	if !room.IsActive {
		return nil
	}
	return s.chats.Deactivate(ctx, room.ID, nowUTC())
}

// SendMessage stores a message, refreshes the room summary and fans out notifications
// to the other participants. Notification failures never fail the send; they are
// returned in the result's FanOut report.
func (s *ChatService) SendMessage(ctx context.Context, sess session.Session, chatID string, req SendMessageRequest) (SendMessageResult, error) {
	room, err := s.participantRoom(ctx, sess, chatID)
	if err != nil {
		return SendMessageResult{}, err
	}
	if !room.IsActive {
		return SendMessageResult{}, ErrChatInactive
	}

	req.Text = sanitizeText(s.sanitizer, req.Text)
	if err := s.validator.Struct(req); err != nil {
		return SendMessageResult{}, wrapValidation(err)
	}
	if utf8.RuneCountInString(req.Text) > messageMaxRunes {
		return SendMessageResult{}, validationError("message exceeds %d characters", messageMaxRunes)
	}
	if req.Type == "" {
		req.Type = models.MessageTypeText
	}

	ctx, span := s.tracer.Start(ctx, "chats.send_message", trace.WithAttributes(
		attribute.String("chat.id", room.ID),
		attribute.String("chat.sender_id", sess.UserID),
		attribute.String("chat.type", string(req.Type)),
	))
	defer span.End()

	msg := models.Message{
		ID:        newID(),
		ChatID:    room.ID,
		SenderID:  sess.UserID,
		Text:      req.Text,
		Type:      req.Type,
		CreatedAt: nowUTC(),
		ReadBy:    []string{sess.UserID},
	}
	summary := models.MessageSummary{
		Text:      truncateRunes(msg.Text, summaryMaxRunes),
		SenderID:  msg.SenderID,
		Timestamp: msg.CreatedAt,
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.messages.CreateMessage(ctx, msg); err != nil {
			return err
		}
		if _, err := s.messages.MarkRead(ctx, msg.ChatID, msg.SenderID, []string{msg.ID}, msg.CreatedAt); err != nil {
			return err
		}
		return s.chats.UpdateSummary(ctx, msg.ChatID, summary)
	})
	if err != nil {
		span.RecordError(err)
		return SendMessageResult{}, fmt.Errorf("store message: %w", err)
	}

	s.broadcaster.BroadcastChatEvent(msg.ChatID, models.ChatEvent{Type: models.ChatEventMessage, ChatID: msg.ChatID, Message: &msg})

	recipients := room.OtherParticipants(sess.UserID)
	title := s.senderName(ctx, sess)
	reqs := make([]CreateNotificationRequest, 0, len(recipients))
	for _, userID := range recipients {
		reqs = append(reqs, CreateNotificationRequest{
			UserID: userID,
			Type:   models.NotificationMessage,
			Title:  title,
			Body:   summary.Text,
			Data: map[string]string{
				"chat_id":    msg.ChatID,
				"message_id": msg.ID,
				"sender_id":  msg.SenderID,
			},
		})
	}
	report := fanOut(ctx, s.notifier, s.logger, "message", reqs...)
	if !report.OK() {
		span.SetAttributes(attribute.Int("chat.fanout_failed", len(report.Failed)))
	}

	s.events.Emit(ctx, events.ChatMessageSent, sess.UserID, map[string]any{
		"chat_id":    msg.ChatID,
		"message_id": msg.ID,
		"sender_id":  msg.SenderID,
		"recipients": recipients,
		"type":       msg.Type,
		"created_at": msg.CreatedAt,
	})

	return SendMessageResult{Message: msg, FanOut: report}, nil
}

// ListMessages returns up to limit messages older than before (zero for the newest),
// oldest first.
func (s *ChatService) ListMessages(ctx context.Context, sess session.Session, chatID string, before time.Time, limit int) ([]models.Message, error) {
	room, err := s.participantRoom(ctx, sess, chatID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return s.messages.ListMessages(ctx, room.ID, before, limit)
}

// MarkMessagesRead adds the caller to the readers of the given messages of the room.
func (s *ChatService) MarkMessagesRead(ctx context.Context, sess session.Session, chatID string, messageIDs []string) ([]string, error) {
	room, err := s.participantRoom(ctx, sess, chatID)
	if err != nil {
		return nil, err
	}
	if len(messageIDs) == 0 {
		return nil, validationError("message ids are required")
	}
	if len(messageIDs) > maxReadBatch {
		return nil, validationError("at most %d message ids per call", maxReadBatch)
	}

	marked, err := s.messages.MarkRead(ctx, room.ID, sess.UserID, messageIDs, nowUTC())
	if err != nil {
		return nil, fmt.Errorf("mark messages read: %w", err)
	}
	if len(marked) > 0 {
		s.broadcaster.BroadcastChatEvent(room.ID, models.ChatEvent{
			Type:       models.ChatEventRead,
			ChatID:     room.ID,
			ReaderID:   sess.UserID,
			MessageIDs: marked,
		})
	}
	return marked, nil
}

// IsParticipant reports whether the user belongs to the room.
func (s *ChatService) IsParticipant(ctx context.Context, chatID, userID string) (bool, error) {
	return s.chats.IsParticipant(ctx, chatID, userID)
}

func (s *ChatService) participantRoom(ctx context.Context, sess session.Session, chatID string) (models.ChatRoom, error) {
	if !sess.Valid() {
		return models.ChatRoom{}, session.ErrNoSession
	}
	chatID = strings.TrimSpace(chatID)
	if chatID == "" {
		return models.ChatRoom{}, validationError("chat id is required")
	}
	room, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return models.ChatRoom{}, err
	}
	if !room.HasParticipant(sess.UserID) {
		return models.ChatRoom{}, ErrNotParticipant
	}
	return room, nil
}

func (s *ChatService) senderName(ctx context.Context, sess session.Session) string {
	profile, err := s.profiles.GetProfile(ctx, sess.UserID)
	if err != nil {
		return displayNameFor(models.UserProfile{ID: sess.UserID, Email: sess.Email})
	}
	return displayNameFor(profile)
}
