package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"social-chat/internal/auth"
)

// RegisterDebugRoutes wires development-only endpoints.
func RegisterDebugRoutes(router *gin.Engine, issuer *auth.Issuer, enabled bool) {
	if !enabled || issuer == nil {
		return
	}

	// issues a token for any user id so local clients can log in without an identity provider
	router.POST("/dev/token", func(c *gin.Context) {
		var req struct {
			UserID string `json:"user_id" binding:"required"`
			Email  string `json:"email"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "user_id is required")
			return
		}
		token, err := issuer.Issue(req.UserID, req.Email)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		c.JSON(http.StatusOK, gin.H{"token": token, "token_type": "Bearer"})
	})
}
