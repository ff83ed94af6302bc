package handler

import (
	"errors"
	"net/http"

	"github.com/iliyagoodarzi28/ModernBlog/internal/auth"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/credentials"
	"github.com/iliyagoodarzi28/ModernBlog/internal/middleware"

	"github.com/gin-gonic/gin"
)

// Me returns the authenticated account's profile.
func (h *Handler) Me(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	acct, err := h.accounts.GetByID(c.Request.Context(), accountID)
	if err != nil || acct == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load account"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"id":           acct.ID,
		"email":        acct.Email,
		"display_name": acct.DisplayName,
		"avatar_url":   acct.AvatarURL,
		"created_at":   acct.CreatedAt,
	})
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ChangePassword sets a new password for the authenticated account.
func (h *Handler) ChangePassword(c *gin.Context) {
	accountID, ok := middleware.AccountIDFromContext(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req changePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	err := h.credentials.ChangePassword(
		c.Request.Context(),
		accountID,
		req.CurrentPassword,
		req.NewPassword,
	)

	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusForbidden, gin.H{"error": "current password incorrect"})
		case errors.Is(err, credentials.ErrPasswordTooShort):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "password change failed"})
		}
		return
	}

	c.Status(http.StatusNoContent)
}
