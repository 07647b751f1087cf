package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"social-chat/internal/logging"
	"social-chat/internal/middleware"
	"social-chat/internal/repositories"
	"social-chat/internal/service"
	"social-chat/internal/session"
)

// statusFor maps domain errors to HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrNoSession):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrForbidden),
		errors.Is(err, service.ErrNotParticipant),
		errors.Is(err, service.ErrNotFriends):
		return http.StatusForbidden
	case errors.Is(err, repositories.ErrProfileNotFound),
		errors.Is(err, repositories.ErrChatNotFound),
		errors.Is(err, repositories.ErrFriendRequestNotFound),
		errors.Is(err, repositories.ErrFriendshipNotFound),
		errors.Is(err, repositories.ErrNotificationNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateRequest),
		errors.Is(err, service.ErrAlreadyProcessed),
		errors.Is(err, service.ErrAlreadyFriends),
		errors.Is(err, service.ErrChatInactive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes the mapped status. Internal errors only reach the log.
func respondError(c *gin.Context, logger zerolog.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		log := logging.FromContext(c.Request.Context(), logger)
		log.Error().Err(err).Str("route", c.FullPath()).Msg("request failed")
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}

// requireSession returns the caller's session or writes 401.
func requireSession(c *gin.Context) (session.Session, bool) {
	sess, ok := middleware.SessionFromGin(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return session.Session{}, false
	}
	return sess, true
}

// queryInt parses an optional integer query parameter. Missing yields 0.
func queryInt(c *gin.Context, key string) (int, bool) {
	raw := c.Query(key)
	if raw == "" {
		return 0, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		badRequest(c, "invalid "+key)
		return 0, false
	}
	return value, true
}
