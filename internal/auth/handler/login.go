package handler

import (
	"errors"
	"net/http"

	"github.com/iliyagoodarzi28/ModernBlog/internal/auth"
	"github.com/iliyagoodarzi28/ModernBlog/internal/logger"

	"github.com/gin-gonic/gin"
)

type loginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"remember_me"`
}

func (h *Handler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	accountID, err := h.credentials.Authenticate(
		c.Request.Context(),
		req.Email,
		req.Password,
	)

	if err != nil {
		switch {
		case errors.Is(err, auth.ErrAccountLocked):
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "account locked"})
		case errors.Is(err, auth.ErrInvalidCredentials):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "login failed"})
		}
		return
	}

	ttl := h.opts.SessionTTL
	if req.RememberMe {
		ttl = h.opts.RememberMeTTL
	}

	if err := h.issueSession(c, accountID, ttl); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session error"})
		return
	}

	logger.Info("credential login succeeded", map[string]any{
		"account_id": accountID,
		"ip":         c.ClientIP(),
	})

	c.JSON(http.StatusOK, gin.H{"status": "logged_in"})
}
