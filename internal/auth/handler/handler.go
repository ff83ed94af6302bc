package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/iliyagoodarzi28/ModernBlog/internal/account"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/credentials"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/provider"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/resolver"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/state"
	"github.com/iliyagoodarzi28/ModernBlog/internal/logger"
	"github.com/iliyagoodarzi28/ModernBlog/internal/session"
	"github.com/iliyagoodarzi28/ModernBlog/internal/utils"

	"github.com/gin-gonic/gin"
)

const (
	// loginPath is where OAuth failures land, with an error code the
	// front end turns into a user-facing message.
	loginPath = "/login"
	// successPath is where a completed OAuth login lands.
	successPath = "/"
)

// Options carries the handler's tunables, all injected from config.
type Options struct {
	SessionTTL      time.Duration
	RememberMeTTL   time.Duration
	ProviderTimeout time.Duration
}

type Handler struct {
	providers   *provider.Registry
	sessions    session.Store
	pending     state.Store
	resolver    resolver.Resolver
	credentials *credentials.Service
	accounts    account.Store
	opts        Options
}

func NewHandler(
	registry *provider.Registry,
	sessions session.Store,
	pending state.Store,
	identityResolver resolver.Resolver,
	credentialService *credentials.Service,
	accounts account.Store,
	opts Options,
) *Handler {
	return &Handler{
		providers:   registry,
		sessions:    sessions,
		pending:     pending,
		resolver:    identityResolver,
		credentials: credentialService,
		accounts:    accounts,
		opts:        opts,
	}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	r.POST("/auth/register", h.Register)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.GET("/oauth/:provider/start", h.start)
	r.GET("/oauth/:provider/callback", h.callback)
}

func (h *Handler) start(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "unknown oauth provider",
		})
		return
	}

	stateToken := utils.RandomString(32)
	verifier := utils.RandomString(32)

	err = h.pending.Save(c.Request.Context(), stateToken, state.Pending{
		Provider:     providerName,
		CodeVerifier: verifier,
		CreatedAt:    time.Now(),
	})
	if err != nil {
		logger.Error("failed to persist oauth state", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "failed to start oauth flow",
		})
		return
	}

	c.Redirect(http.StatusFound, p.AuthCodeURL(stateToken, pkceChallenge(verifier)))
}

func (h *Handler) callback(c *gin.Context) {
	providerName := c.Param("provider")

	p, err := h.providers.Get(providerName)
	if err != nil {
		failRedirect(c, "unknown_provider")
		return
	}

	// Consent denied or any other provider-reported error: back to
	// the login page for a fresh attempt.
	if errParam := c.Query("error"); errParam != "" {
		logger.Warn("oauth callback returned error", map[string]any{
			"provider": providerName,
			"error":    errParam,
			"desc":     c.Query("error_description"),
		})
		failRedirect(c, "provider_denied")
		return
	}

	pending, err := h.consumeState(c, providerName)
	if err != nil {
		if errors.Is(err, auth.ErrStateMismatch) {
			failRedirect(c, "state_mismatch")
		} else {
			failRedirect(c, "server_error")
		}
		return
	}

	code := c.Query("code")
	if code == "" {
		logger.Error("oauth callback missing code and error", map[string]any{
			"provider": providerName,
		})
		failRedirect(c, "invalid_callback")
		return
	}

	exchangeCtx, cancel := context.WithTimeout(c.Request.Context(), h.opts.ProviderTimeout)
	defer cancel()

	identity, err := p.ExchangeCode(exchangeCtx, code, pending.CodeVerifier)
	if err != nil {
		logger.Warn("provider exchange failed", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		if errors.Is(err, auth.ErrProviderProfileIncomplete) {
			failRedirect(c, "profile_incomplete")
		} else {
			// Timeouts and provider-side failures land here; the user
			// retries by clicking again, there is no automatic retry.
			failRedirect(c, "provider_exchange_failed")
		}
		return
	}

	accountID, err := h.resolver.Resolve(c.Request.Context(), identity)
	if err != nil {
		if errors.Is(err, auth.ErrProviderProfileIncomplete) {
			failRedirect(c, "profile_incomplete")
			return
		}
		logger.Error("failed to resolve account", map[string]any{
			"provider": providerName,
			"error":    err.Error(),
		})
		failRedirect(c, "server_error")
		return
	}

	if err := h.issueSession(c, accountID, h.opts.SessionTTL); err != nil {
		failRedirect(c, "server_error")
		return
	}

	logger.Info("oauth login succeeded", map[string]any{
		"provider":   providerName,
		"account_id": accountID,
		"ip":         c.ClientIP(),
	})

	c.Redirect(http.StatusFound, successPath)
}

// consumeState validates the returned state token against the pending
// store. The entry is removed on read, so a token can never be
// replayed; expiry is enforced by the store's TTL.
func (h *Handler) consumeState(c *gin.Context, providerName string) (*state.Pending, error) {
	token := c.Query("state")
	if token == "" {
		return nil, auth.ErrStateMismatch
	}

	pending, err := h.pending.Consume(c.Request.Context(), token)
	if err != nil {
		logger.Error("failed to consume oauth state", map[string]any{
			"error": err.Error(),
		})
		return nil, err
	}

	if pending == nil || pending.Provider != providerName {
		return nil, auth.ErrStateMismatch
	}

	return pending, nil
}

// issueSession creates a session for the account and sets the cookie.
func (h *Handler) issueSession(c *gin.Context, accountID string, ttl time.Duration) error {
	token, err := session.GenerateToken()
	if err != nil {
		logger.Error("failed to generate session token", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	now := time.Now()
	sess := session.Session{
		Token:     token,
		AccountID: accountID,
		IssuedAt:  now,
		ExpiresAt: now.Add(ttl),
	}

	if err := h.sessions.Create(c.Request.Context(), sess); err != nil {
		logger.Error("failed to persist session", map[string]any{
			"error": err.Error(),
		})
		return err
	}

	session.SetCookie(c.Writer, token, sess.ExpiresAt, session.CookieOptions{
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	return nil
}

func (h *Handler) Logout(c *gin.Context) {
	// Destroying an absent or already-expired session is a no-op, so
	// a double logout succeeds too.
	cookie, err := c.Request.Cookie(session.CookieName)
	if err == nil && cookie.Value != "" {
		_ = h.sessions.Delete(c.Request.Context(), cookie.Value)
	}

	session.ClearCookie(c.Writer, session.CookieOptions{
		Path:     "/",
		Secure:   true,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	c.Status(http.StatusNoContent)
}

func failRedirect(c *gin.Context, code string) {
	c.Redirect(http.StatusFound, loginPath+"?error="+code)
}
