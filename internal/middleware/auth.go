package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"social-chat/internal/auth"
	"social-chat/internal/logging"
	"social-chat/internal/models"
	"social-chat/internal/session"
)

// SessionKey is the gin context key holding the caller's session.Session.
const SessionKey = "session"

// ProfileEnsurer creates the caller's profile on first sight.
type ProfileEnsurer interface {
	Ensure(ctx context.Context, sess session.Session) (models.UserProfile, error)
}

// AuthMiddleware validates the bearer token and attaches the session to the request.
func AuthMiddleware(verifier *auth.Verifier, profiles ProfileEnsurer, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := verifier.ParseAuthorization(c.GetHeader("Authorization"))
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, auth.ErrMissingToken) {
				msg = "missing authorization"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": msg})
			return
		}

		ctx := session.WithContext(c.Request.Context(), sess)
		reqLogger := logging.FromContext(ctx, logger).With().Str("user_id", sess.UserID).Logger()
		ctx = logging.WithContext(ctx, reqLogger)
		c.Request = c.Request.WithContext(ctx)

		if profiles != nil {
			if _, err := profiles.Ensure(ctx, sess); err != nil {
				reqLogger.Error().Err(err).Msg("ensure profile failed")
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
		}

		c.Set(SessionKey, sess)
		c.Next()
	}
}

// SessionFromGin returns the session stored by AuthMiddleware.
func SessionFromGin(c *gin.Context) (session.Session, bool) {
	if val, ok := c.Get(SessionKey); ok {
		if sess, ok := val.(session.Session); ok && sess.Valid() {
			return sess, true
		}
	}
	sess, err := session.FromContext(c.Request.Context())
	return sess, err == nil
}
