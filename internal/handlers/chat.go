package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"social-chat/internal/service"
)

// ChatHandler manages chat rooms and their messages.
type ChatHandler struct {
	chats  *service.ChatService
	logger zerolog.Logger
}

// NewChatHandler builds a ChatHandler.
func NewChatHandler(chats *service.ChatService, logger zerolog.Logger) *ChatHandler {
	return &ChatHandler{chats: chats, logger: logger.With().Str("component", "chat_handler").Logger()}
}

// Register mounts the chat routes.
func (h *ChatHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/chats", h.ListChats)
	rg.POST("/chats/direct", h.StartDirectChat)
	rg.POST("/chats/groups", h.CreateGroupChat)
	rg.DELETE("/chats/:chat_id", h.DeactivateChat)
	rg.GET("/chats/:chat_id/messages", h.ListMessages)
	rg.POST("/chats/:chat_id/messages", h.SendMessage)
	rg.POST("/chats/:chat_id/read", h.MarkRead)
}

// ListChats returns the caller's active chats, most recent activity first.
func (h *ChatHandler) ListChats(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	chats, err := h.chats.ListChats(c.Request.Context(), sess.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chats": chats})
}

// StartDirectChat creates or returns the direct chat with a friend.
func (h *ChatHandler) StartDirectChat(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	var req struct {
		FriendID string `json:"friend_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "friend_id is required")
		return
	}
	chat, err := h.chats.StartDirectChat(c.Request.Context(), sess, req.FriendID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, chat)
}

// CreateGroupChat creates a group chat owned by the caller.
func (h *ChatHandler) CreateGroupChat(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	var req service.CreateGroupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	chat, err := h.chats.CreateGroupChat(c.Request.Context(), sess, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, chat)
}

// DeactivateChat hides the chat for every participant.
func (h *ChatHandler) DeactivateChat(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	if err := h.chats.DeactivateChat(c.Request.Context(), sess, c.Param("chat_id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ListMessages returns one page of history. ?before is an RFC3339 timestamp.
func (h *ChatHandler) ListMessages(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	var before time.Time
	if raw := c.Query("before"); raw != "" {
		parsed, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			badRequest(c, "invalid before")
			return
		}
		before = parsed.UTC()
	}
	msgs, err := h.chats.ListMessages(c.Request.Context(), sess, c.Param("chat_id"), before, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": msgs})
}

// SendMessage stores a message, broadcasts it and notifies the other participants.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	var req service.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	result, err := h.chats.SendMessage(c.Request.Context(), sess, c.Param("chat_id"), req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// MarkRead records the caller as a reader of the listed messages.
func (h *ChatHandler) MarkRead(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	var req struct {
		MessageIDs []string `json:"message_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "message_ids is required")
		return
	}
	marked, err := h.chats.MarkMessagesRead(c.Request.Context(), sess, c.Param("chat_id"), req.MessageIDs)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message_ids": marked})
}
