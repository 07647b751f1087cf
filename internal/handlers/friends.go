package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"social-chat/internal/service"
)

// FriendHandler serves friend requests and friendships.
type FriendHandler struct {
	friendships *service.FriendshipService
	logger      zerolog.Logger
}

// NewFriendHandler builds a FriendHandler.
func NewFriendHandler(friendships *service.FriendshipService, logger zerolog.Logger) *FriendHandler {
	return &FriendHandler{friendships: friendships, logger: logger.With().Str("component", "friend_handler").Logger()}
}

// Register mounts the friendship routes.
func (h *FriendHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/friends", h.ListFriends)
	rg.DELETE("/friends/:user_id", h.RemoveFriend)
	rg.POST("/friend-requests", h.SendRequest)
	rg.GET("/friend-requests/received", h.ListReceived)
	rg.GET("/friend-requests/sent", h.ListSent)
	rg.POST("/friend-requests/:request_id/accept", h.Accept)
	rg.POST("/friend-requests/:request_id/reject", h.Reject)
}

// ListFriends returns the caller's friends.
func (h *FriendHandler) ListFriends(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	friends, err := h.friendships.ListFriends(c.Request.Context(), sess.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"friends": friends})
}

// RemoveFriend deletes the friendship between the caller and another user.
func (h *FriendHandler) RemoveFriend(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	if err := h.friendships.RemoveFriendship(c.Request.Context(), sess.UserID, c.Param("user_id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// SendRequest creates a friend request from the caller.
func (h *FriendHandler) SendRequest(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	var req struct {
		ToUser  string `json:"to_user" binding:"required"`
		Message string `json:"message"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "to_user is required")
		return
	}
	result, err := h.friendships.SendRequest(c.Request.Context(), sess, req.ToUser, req.Message)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// ListReceived returns pending requests addressed to the caller.
func (h *FriendHandler) ListReceived(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	requests, err := h.friendships.ListPendingReceived(c.Request.Context(), sess.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// ListSent returns pending requests the caller sent.
func (h *FriendHandler) ListSent(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	requests, err := h.friendships.ListPendingSent(c.Request.Context(), sess.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"requests": requests})
}

// Accept accepts a pending request addressed to the caller.
func (h *FriendHandler) Accept(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	result, err := h.friendships.AcceptRequest(c.Request.Context(), sess, c.Param("request_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Reject rejects a pending request addressed to the caller.
func (h *FriendHandler) Reject(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	request, err := h.friendships.RejectRequest(c.Request.Context(), sess, c.Param("request_id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"request": request})
}
