package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"social-chat/internal/service"
)

// NotificationHandler serves the caller's notification ledger and settings.
type NotificationHandler struct {
	notifications *service.NotificationService
	logger        zerolog.Logger
}

// NewNotificationHandler builds a NotificationHandler.
func NewNotificationHandler(notifications *service.NotificationService, logger zerolog.Logger) *NotificationHandler {
	return &NotificationHandler{notifications: notifications, logger: logger.With().Str("component", "notification_handler").Logger()}
}

// Register mounts the notification routes.
func (h *NotificationHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/notifications", h.List)
	rg.GET("/notifications/unread-count", h.UnreadCount)
	rg.POST("/notifications/read-all", h.MarkAllRead)
	rg.POST("/notifications/:notification_id/read", h.MarkRead)
	rg.GET("/notifications/settings", h.GetSettings)
	rg.PATCH("/notifications/settings", h.UpdateSettings)
}

// List returns the caller's notifications, newest first.
func (h *NotificationHandler) List(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	limit, ok := queryInt(c, "limit")
	if !ok {
		return
	}
	offset, ok := queryInt(c, "offset")
	if !ok {
		return
	}
	unreadOnly := c.Query("unread") == "true"
	items, err := h.notifications.List(c.Request.Context(), sess.UserID, unreadOnly, limit, offset)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// UnreadCount returns how many notifications the caller has not read.
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	count, err := h.notifications.UnreadCount(c.Request.Context(), sess.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"unread": count})
}

// MarkRead marks one of the caller's notifications as read.
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	if err := h.notifications.MarkAsRead(c.Request.Context(), sess, c.Param("notification_id")); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// MarkAllRead marks every unread notification of the caller as read.
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	updated, err := h.notifications.MarkAllAsRead(c.Request.Context(), sess)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": updated})
}

// GetSettings returns the caller's notification settings.
func (h *NotificationHandler) GetSettings(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	settings, err := h.notifications.GetSettings(c.Request.Context(), sess.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}

// UpdateSettings applies a partial settings edit.
func (h *NotificationHandler) UpdateSettings(c *gin.Context) {
	sess, ok := requireSession(c)
	if !ok {
		return
	}
	var req service.UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	settings, err := h.notifications.UpdateSettings(c.Request.Context(), sess, req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, settings)
}
