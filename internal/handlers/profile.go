package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"social-chat/internal/service"
)

// ProfileHandler serves the user directory.
type ProfileHandler struct {
	profiles *service.ProfileService
	logger   zerolog.Logger
}

// NewProfileHandler builds a ProfileHandler.
func NewProfileHandler(profiles *service.ProfileService, logger zerolog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger.With().Str("component", "profile_handler").Logger()}
}

// Register mounts the profile routes.
func (h *ProfileHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/me", h.GetMe)
	rg.PATCH("/me", h.UpdateMe)
	rg.GET("/users", h.Search)
	rg.GET("/users/:user_id", h.GetUser)
}

// GetMe returns the caller's own profile.
func (h *ProfileHandler) GetMe(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	profile, err := h.profiles.Ensure(c.Request.Context(), sess)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	profile, err = h.profiles.Get(c.Request.Context(), profile.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// UpdateMe applies a partial profile edit.
func (h *ProfileHandler) UpdateMe(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	var req service.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	profile, err := h.profiles.Update(c.Request.Context(), sess, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// GetUser returns another user's profile.
func (h *ProfileHandler) GetUser(c *gin.Context) {
	if _, ok := requireSession(c); !ok {
		return
	}
	profile, err := h.profiles.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

// Search finds users by display name or email prefix.
func (h *ProfileHandler) Search(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	users, err := h.profiles.Search(c.Request.Context(), sess, c.Query("q"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}
