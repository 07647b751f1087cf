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

type sendFriendRequest struct {
	To      string `validate:"required,max=128"`
	Message string `validate:"max=200"`
}

// FriendRequestResult is a request after a state change plus its notification outcome.
type FriendRequestResult struct {
	Request models.FriendRequest `json:"request"`
	FanOut  FanOutReport         `json:"fan_out"`
}

// AcceptResult is an accepted request, the friendship it created and the notification outcome.
type AcceptResult struct {
	Request    models.FriendRequest `json:"request"`
	Friendship models.Friendship    `json:"friendship"`
	FanOut     FanOutReport         `json:"fan_out"`
}

// FriendshipService implements the friend request state machine.
type FriendshipService struct {
	tx          TxRunner
	requests    repositories.FriendRequestRepository
	friendships repositories.FriendshipRepository
	profiles    repositories.ProfileRepository
	notifier    Notifier
	events      EventEmitter
	validator   *validator.Validate
	sanitizer   *bluemonday.Policy
	logger      zerolog.Logger
	tracer      trace.Tracer
}

// NewFriendshipService constructs a FriendshipService. emitter may be nil.
func NewFriendshipService(
	tx TxRunner,
	requests repositories.FriendRequestRepository,
	friendships repositories.FriendshipRepository,
	profiles repositories.ProfileRepository,
	notifier Notifier,
	emitter EventEmitter,
	validate *validator.Validate,
	logger zerolog.Logger,
) *FriendshipService {
	if emitter == nil {
		emitter = noopEmitter{}
	}
	return &FriendshipService{
		tx:          tx,
		requests:    requests,
		friendships: friendships,
		profiles:    profiles,
		notifier:    notifier,
		events:      emitter,
		validator:   validate,
		sanitizer:   bluemonday.StrictPolicy(),
		logger:      logger.With().Str("component", "friendship_service").Logger(),
		tracer:      otel.Tracer("social-chat/internal/service/friendship"),
	}
}

// SendRequest creates a pending request from the caller to another user.
func (s *FriendshipService) SendRequest(ctx context.Context, sess session.Session, to string, message string) (FriendRequestResult, error) {
	if !sess.Valid() {
		return FriendRequestResult{}, session.ErrNoSession
	}
	payload := sendFriendRequest{
		To:      strings.TrimSpace(to),
		Message: sanitizeText(s.sanitizer, message),
	}
	if err := s.validator.Struct(payload); err != nil {
		return FriendRequestResult{}, wrapValidation(err)
	}
	if payload.To == sess.UserID {
		return FriendRequestResult{}, validationError("cannot send a friend request to yourself")
	}

	ctx, span := s.tracer.Start(ctx, "friendships.send_request", trace.WithAttributes(
		attribute.String("friend_request.from", sess.UserID),
		attribute.String("friend_request.to", payload.To),
	))
	defer span.End()

	req := models.FriendRequest{
		ID:        newID(),
		FromUser:  sess.UserID,
		ToUser:    payload.To,
		Status:    models.FriendRequestPending,
		CreatedAt: nowUTC(),
	}
	if payload.Message != "" {
		req.Message = &payload.Message
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if _, err := s.profiles.GetProfile(ctx, payload.To); err != nil {
			return err
		}

		_, err := s.friendships.GetFriendship(ctx, sess.UserID, payload.To)
		if err == nil {
			return ErrAlreadyFriends
		}
		if !errors.Is(err, repositories.ErrFriendshipNotFound) {
			return err
		}

		_, err = s.requests.FindPendingBetween(ctx, sess.UserID, payload.To)
		if err == nil {
			return ErrDuplicateRequest
		}
		if !errors.Is(err, repositories.ErrFriendRequestNotFound) {
			return err
		}

		if err := s.requests.CreateRequest(ctx, req); err != nil {
			if errors.Is(err, repositories.ErrPendingRequestExists) {
				return ErrDuplicateRequest
			}
			return err
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return FriendRequestResult{}, err
	}

	sender := s.senderName(ctx, sess)
	report := s.notify(ctx, "friend_request", CreateNotificationRequest{
		UserID: req.ToUser,
		Type:   models.NotificationFriendRequest,
		Title:  "New friend request",
		Body:   fmt.Sprintf("%s sent you a friend request", sender),
		Data:   map[string]string{"request_id": req.ID, "from_user": req.FromUser},
	})
	s.events.Emit(ctx, events.FriendRequestSent, sess.UserID, req)

	return FriendRequestResult{Request: req, FanOut: report}, nil
}

// AcceptRequest marks a pending request addressed to the caller as accepted and creates
// the friendship. Both writes commit together or not at all.
func (s *FriendshipService) AcceptRequest(ctx context.Context, sess session.Session, requestID string) (AcceptResult, error) {
	req, err := s.loadForResponse(ctx, sess, requestID)
	if err != nil {
		return AcceptResult{}, err
	}

	ctx, span := s.tracer.Start(ctx, "friendships.accept_request", trace.WithAttributes(attribute.String("friend_request.id", req.ID)))
	defer span.End()

	now := nowUTC()
	friendship := models.Friendship{
		ID:         newID(),
		User1:      req.FromUser,
		User2:      req.ToUser,
		Status:     models.FriendshipAccepted,
		AcceptedAt: now,
	}
	friendship.EnsureCanonicalOrder()

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.requests.MarkResponded(ctx, req.ID, models.FriendRequestAccepted, now); err != nil {
			if errors.Is(err, repositories.ErrRequestNotPending) {
				return ErrAlreadyProcessed
			}
			return err
		}
		if err := s.friendships.CreateFriendship(ctx, friendship); err != nil {
			if errors.Is(err, repositories.ErrFriendshipExists) {
				return ErrAlreadyFriends
			}
			return err
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return AcceptResult{}, err
	}

	req.Status = models.FriendRequestAccepted
	req.RespondedAt = &now

	accepter := s.senderName(ctx, sess)
	report := s.notify(ctx, "friend_accepted", CreateNotificationRequest{
		UserID: req.FromUser,
		Type:   models.NotificationFriendAccepted,
		Title:  "Friend request accepted",
		Body:   fmt.Sprintf("%s accepted your friend request", accepter),
		Data:   map[string]string{"request_id": req.ID, "friend_id": req.ToUser, "friendship_id": friendship.ID},
	})
	s.events.Emit(ctx, events.FriendRequestAccepted, sess.UserID, friendship)

	return AcceptResult{Request: req, Friendship: friendship, FanOut: report}, nil
}

// RejectRequest marks a pending request addressed to the caller as rejected.
// The sender may send a new request afterwards.
func (s *FriendshipService) RejectRequest(ctx context.Context, sess session.Session, requestID string) (models.FriendRequest, error) {
	req, err := s.loadForResponse(ctx, sess, requestID)
	if err != nil {
		return models.FriendRequest{}, err
	}

	now := nowUTC()
	if err := s.requests.MarkResponded(ctx, req.ID, models.FriendRequestRejected, now); err != nil {
		if errors.Is(err, repositories.ErrRequestNotPending) {
			return models.FriendRequest{}, ErrAlreadyProcessed
		}
		return models.FriendRequest{}, err
	}
	req.Status = models.FriendRequestRejected
	req.RespondedAt = &now

	s.events.Emit(ctx, events.FriendRequestRejected, sess.UserID, req)
	return req, nil
}

// RemoveFriendship deletes the friendship of the pair. Removing a missing friendship is not an error.
func (s *FriendshipService) RemoveFriendship(ctx context.Context, userA, userB string) error {
	userA, userB = strings.TrimSpace(userA), strings.TrimSpace(userB)
	if userA == "" || userB == "" {
		return validationError("both user ids are required")
	}
	if userA == userB {
		return validationError("a user cannot unfriend themselves")
	}

	deleted, err := s.friendships.DeleteFriendship(ctx, userA, userB)
	if err != nil {
		return fmt.Errorf("remove friendship: %w", err)
	}
	if deleted {
		u1, u2 := models.CanonicalPair(userA, userB)
		s.events.Emit(ctx, events.FriendshipRemoved, userA, map[string]string{"user1": u1, "user2": u2})
	}
	return nil
}

// ListFriends returns the user's friends, most recently accepted first.
func (s *FriendshipService) ListFriends(ctx context.Context, userID string) ([]models.Friend, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("user id is required")
	}
	friendships, err := s.friendships.ListFriendships(ctx, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(friendships))
	for _, f := range friendships {
		ids = append(ids, f.Other(userID))
	}
	profiles, err := profileMap(ctx, s.profiles, ids)
	if err != nil {
		return nil, err
	}

	friends := make([]models.Friend, 0, len(friendships))
	for _, f := range friendships {
		friends = append(friends, models.Friend{
			FriendshipID: f.ID,
			Since:        f.AcceptedAt,
			Profile:      profiles[f.Other(userID)],
		})
	}
	return friends, nil
}

// ListPendingReceived returns pending requests addressed to the user, newest first.
func (s *FriendshipService) ListPendingReceived(ctx context.Context, userID string) ([]models.FriendRequestWithProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("user id is required")
	}
	reqs, err := s.requests.ListPendingReceived(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withCounterparts(ctx, userID, reqs)
}

// ListPendingSent returns pending requests sent by the user, newest first.
func (s *FriendshipService) ListPendingSent(ctx context.Context, userID string) ([]models.FriendRequestWithProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, validationError("user id is required")
	}
	reqs, err := s.requests.ListPendingSent(ctx, userID)
	if err != nil {
		return nil, err
	}
	return s.withCounterparts(ctx, userID, reqs)
}

// AreFriends reports whether the pair holds an accepted friendship.
func (s *FriendshipService) AreFriends(ctx context.Context, userA, userB string) (bool, error) {
	f, err := s.friendships.GetFriendship(ctx, userA, userB)
	if errors.Is(err, repositories.ErrFriendshipNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return f.Status == models.FriendshipAccepted, nil
}

func (s *FriendshipService) loadForResponse(ctx context.Context, sess session.Session, requestID string) (models.FriendRequest, error) {
	if !sess.Valid() {
		return models.FriendRequest{}, session.ErrNoSession
	}
	if strings.TrimSpace(requestID) == "" {
		return models.FriendRequest{}, validationError("request id is required")
	}
	req, err := s.requests.GetRequest(ctx, requestID)
	if err != nil {
		return models.FriendRequest{}, err
	}
	if req.ToUser != sess.UserID {
		return models.FriendRequest{}, ErrForbidden
	}
	if !req.IsPending() {
		return models.FriendRequest{}, ErrAlreadyProcessed
	}
	return req, nil
}

func (s *FriendshipService) withCounterparts(ctx context.Context, userID string, reqs []models.FriendRequest) ([]models.FriendRequestWithProfile, error) {
	ids := make([]string, 0, len(reqs))
	for _, r := range reqs {
		if r.FromUser == userID {
			ids = append(ids, r.ToUser)
		} else {
			ids = append(ids, r.FromUser)
		}
	}
	profiles, err := profileMap(ctx, s.profiles, ids)
	if err != nil {
		return nil, err
	}

	out := make([]models.FriendRequestWithProfile, 0, len(reqs))
	for i, r := range reqs {
		p := profiles[ids[i]]
		out = append(out, models.FriendRequestWithProfile{FriendRequest: r, Counterpart: &p})
	}
	return out, nil
}

func (s *FriendshipService) senderName(ctx context.Context, sess session.Session) string {
	profile, err := s.profiles.GetProfile(ctx, sess.UserID)
	if err != nil {
		return displayNameFor(models.UserProfile{ID: sess.UserID, Email: sess.Email})
	}
	return displayNameFor(profile)
}

func (s *FriendshipService) notify(ctx context.Context, source string, req CreateNotificationRequest) FanOutReport {
	return fanOut(ctx, s.notifier, s.logger, source, req)
}
