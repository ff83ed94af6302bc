package app

import (
	"context"

	"github.com/iliyagoodarzi28/ModernBlog/internal/account"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/credentials"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/handler"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/provider"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/provider/facebook"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/provider/google"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/resolver"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth/state"
	"github.com/iliyagoodarzi28/ModernBlog/internal/config"
	"github.com/iliyagoodarzi28/ModernBlog/internal/logger"
	"github.com/iliyagoodarzi28/ModernBlog/internal/middleware"
	"github.com/iliyagoodarzi28/ModernBlog/internal/session"

	"github.com/gin-gonic/gin"
)

func setupHTTP(ctx context.Context, cfg config.Config) (*gin.Engine, func() error, error) {

	infra, err := setupInfra(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	// ----------------------------
	// Dependencies
	// ----------------------------

	accountStore := account.NewPostgresStore(infra.DB)
	sessionStore := session.NewRedisStore(infra.Redis.Client)
	pendingStore := state.NewRedisStore(infra.Redis.Client, cfg.OAuthStateTTL)
	lockout := credentials.NewRedisLockout(infra.Redis.Client, cfg.LockoutMaxAttempts, cfg.LockoutWindow)

	credentialService := credentials.NewService(accountStore, lockout)
	identityResolver := resolver.NewStoreResolver(accountStore)

	registry, err := setupProviders(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}

	authHandler := handler.NewHandler(
		registry,
		sessionStore,
		pendingStore,
		identityResolver,
		credentialService,
		accountStore,
		handler.Options{
			SessionTTL:      cfg.SessionTTL,
			RememberMeTTL:   cfg.RememberMeTTL,
			ProviderTimeout: cfg.ProviderTimeout,
		},
	)

	authMiddleware := middleware.NewAuthMiddleware(sessionStore)

	// ----------------------------
	// Router
	// ----------------------------

	router := gin.New()
	router.Use(gin.Recovery())

	// ----------------------------
	// Public Routes
	// ----------------------------

	authHandler.RegisterRoutes(router)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// ----------------------------
	// Protected API Routes
	// ----------------------------

	api := router.Group("/api")
	api.Use(middleware.GinRequireAuth(authMiddleware))

	api.GET("/me", authHandler.Me)
	api.POST("/password", authHandler.ChangePassword)

	// ----------------------------
	// Cleanup
	// ----------------------------

	return router, func() error {
		if err := infra.Redis.Close(); err != nil {
			return err
		}
		return infra.DB.Close()
	}, nil
}

// setupProviders builds the registry from whatever providers have
// credentials configured. Running with none is allowed (credential
// login still works), but each misconfigured provider is logged.
func setupProviders(ctx context.Context, cfg config.Config) (*provider.Registry, error) {
	var providers []provider.OAuthProvider

	if cfg.GoogleClientID != "" {
		googleProvider, err := google.New(
			ctx,
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL,
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, googleProvider)
	} else {
		logger.Warn("google oauth not configured", nil)
	}

	if cfg.FacebookClientID != "" {
		facebookProvider, err := facebook.New(
			cfg.FacebookClientID,
			cfg.FacebookClientSecret,
			cfg.FacebookRedirectURL,
		)
		if err != nil {
			return nil, err
		}
		providers = append(providers, facebookProvider)
	} else {
		logger.Warn("facebook oauth not configured", nil)
	}

	return provider.NewRegistry(providers...), nil
}
