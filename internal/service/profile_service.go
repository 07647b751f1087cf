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

	"social-chat/internal/models"
	"social-chat/internal/repositories"
	"social-chat/internal/session"
)

// UpdateProfileRequest is a partial profile edit. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	DisplayName *string `json:"display_name" validate:"omitempty,max=64"`
	AvatarURL   *string `json:"avatar_url" validate:"omitempty,url,max=2048"`
}

// ProfileService manages the user directory.
type ProfileService struct {
	profiles  repositories.ProfileRepository
	presence  PresenceStore
	validator *validator.Validate
	sanitizer *bluemonday.Policy
	logger    zerolog.Logger
	tracer    trace.Tracer
}

// NewProfileService constructs a ProfileService. presence may be nil.
func NewProfileService(profiles repositories.ProfileRepository, presence PresenceStore, validate *validator.Validate, logger zerolog.Logger) *ProfileService {
	return &ProfileService{
		profiles:  profiles,
		presence:  presence,
		validator: validate,
		sanitizer: bluemonday.StrictPolicy(),
		logger:    logger.With().Str("component", "profile_service").Logger(),
		tracer:    otel.Tracer("social-chat/internal/service/profile"),
	}
}

// Ensure creates the caller's profile on first contact and returns the stored record.
func (s *ProfileService) Ensure(ctx context.Context, sess session.Session) (models.UserProfile, error) {
	if !sess.Valid() {
		return models.UserProfile{}, session.ErrNoSession
	}
	ctx, span := s.tracer.Start(ctx, "profiles.ensure", trace.WithAttributes(attribute.String("user.id", sess.UserID)))
	defer span.End()

	now := nowUTC()
	profile := models.UserProfile{
		ID:          sess.UserID,
		Email:       strings.TrimSpace(sess.Email),
		DisplayName: emailLocalPart(sess.Email),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if profile.DisplayName == "" {
		profile.DisplayName = sess.UserID
	}
	if err := s.profiles.CreateIfMissing(ctx, profile); err != nil {
		span.RecordError(err)
		return models.UserProfile{}, fmt.Errorf("ensure profile: %w", err)
	}
	return s.Get(ctx, sess.UserID)
}

// Get returns a profile with live presence applied when a presence store is configured.
func (s *ProfileService) Get(ctx context.Context, userID string) (models.UserProfile, error) {
	if strings.TrimSpace(userID) == "" {
		return models.UserProfile{}, validationError("user id is required")
	}
	profile, err := s.profiles.GetProfile(ctx, userID)
	if err != nil {
		return models.UserProfile{}, err
	}
	out := []models.UserProfile{profile}
	s.overlayPresence(ctx, out)
	return out[0], nil
}

// Update applies a partial edit to the caller's profile.
func (s *ProfileService) Update(ctx context.Context, sess session.Session, req UpdateProfileRequest) (models.UserProfile, error) {
	if !sess.Valid() {
		return models.UserProfile{}, session.ErrNoSession
	}
	if err := s.validator.Struct(req); err != nil {
		return models.UserProfile{}, wrapValidation(err)
	}

	ctx, span := s.tracer.Start(ctx, "profiles.update", trace.WithAttributes(attribute.String("user.id", sess.UserID)))
	defer span.End()

	profile, err := s.profiles.GetProfile(ctx, sess.UserID)
	if err != nil {
		return models.UserProfile{}, err
	}

	if req.DisplayName != nil {
		name := sanitizeText(s.sanitizer, *req.DisplayName)
		if name == "" {
			return models.UserProfile{}, validationError("display name must not be empty")
		}
		profile.DisplayName = name
	}
	if req.AvatarURL != nil {
		avatar := strings.TrimSpace(*req.AvatarURL)
		if avatar == "" {
			profile.AvatarURL = nil
		} else {
			profile.AvatarURL = &avatar
		}
	}
	profile.UpdatedAt = nowUTC()

	if err := s.profiles.UpdateProfile(ctx, profile); err != nil {
		span.RecordError(err)
		return models.UserProfile{}, fmt.Errorf("update profile: %w", err)
	}
	return profile, nil
}

// Search finds other users by display name or email prefix.
func (s *ProfileService) Search(ctx context.Context, sess session.Session, query string, limit int) ([]models.UserProfile, error) {
	if !sess.Valid() {
		return nil, session.ErrNoSession
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, validationError("search query is required")
	}
	if len(query) > 64 {
		return nil, validationError("search query too long")
	}
	// LIKE wildcards in user input would widen the match
	if strings.ContainsAny(query, "%_") {
		return []models.UserProfile{}, nil
	}

	profiles, err := s.profiles.SearchProfiles(ctx, query, sess.UserID, limit)
	if err != nil {
		return nil, err
	}
	s.overlayPresence(ctx, profiles)
	return profiles, nil
}

// SetPresence records a user going online or offline.
func (s *ProfileService) SetPresence(ctx context.Context, userID string, online bool) error {
	if strings.TrimSpace(userID) == "" {
		return validationError("user id is required")
	}
	if s.presence != nil {
		var err error
		if online {
			err = s.presence.MarkOnline(ctx, userID)
		} else {
			err = s.presence.MarkOffline(ctx, userID)
		}
		if err != nil {
			s.logger.Warn().Err(err).Str("user_id", userID).Bool("online", online).Msg("presence store update failed")
		}
	}

	err := s.profiles.SetPresence(ctx, userID, online, nowUTC())
	if errors.Is(err, repositories.ErrProfileNotFound) {
		// connections may open before the profile is ensured
		return nil
	}
	return err
}

func (s *ProfileService) overlayPresence(ctx context.Context, profiles []models.UserProfile) {
	if s.presence == nil || len(profiles) == 0 {
		return
	}
	ids := make([]string, 0, len(profiles))
	for _, p := range profiles {
		ids = append(ids, p.ID)
	}
	online, err := s.presence.OnlineUsers(ctx, ids)
	if err != nil {
		s.logger.Warn().Err(err).Msg("presence lookup failed, using stored flags")
		return
	}
	for i := range profiles {
		profiles[i].IsOnline = online[profiles[i].ID]
	}
}

// profileMap loads profiles for ids; missing ids map to a bare profile carrying only the id.
func profileMap(ctx context.Context, repo repositories.ProfileRepository, ids []string) (map[string]models.UserProfile, error) {
	found, err := repo.GetProfiles(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		if _, ok := found[id]; !ok {
			found[id] = models.UserProfile{ID: id, DisplayName: id}
		}
	}
	return found, nil
}
