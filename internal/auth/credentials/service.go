package credentials

import (
	"context"
	"strings"

	"github.com/iliyagoodarzi28/ModernBlog/internal/account"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth"
	"github.com/iliyagoodarzi28/ModernBlog/internal/logger"
)

// Service handles local-credential registration and login.
type Service struct {
	store   account.Store
	lockout Lockout
}

func NewService(store account.Store, lockout Lockout) *Service {
	return &Service{
		store:   store,
		lockout: lockout,
	}
}

// Register creates a new local account. Returns account.ErrEmailTaken
// when the email is already in use.
func (s *Service) Register(
	ctx context.Context,
	email string,
	password string,
	displayName string,
) (string, error) {

	hash, err := HashPassword(password)
	if err != nil {
		return "", err
	}

	acct, err := s.store.CreateAccount(ctx, account.NewAccount{
		Email:        email,
		DisplayName:  displayName,
		PasswordHash: hash,
	})
	if err != nil {
		return "", err
	}

	logger.Info("local account registered", map[string]any{
		"account_id": acct.ID,
	})

	return acct.ID, nil
}

// Authenticate verifies email and password. Unknown email, wrong
// password and social-only accounts all return auth.ErrInvalidCredentials
// so nothing leaks about which case occurred. Once the failure counter
// crosses the lockout threshold, further attempts return
// auth.ErrAccountLocked until the window expires.
func (s *Service) Authenticate(
	ctx context.Context,
	email string,
	password string,
) (string, error) {

	key := strings.ToLower(strings.TrimSpace(email))

	locked, err := s.lockout.Locked(ctx, key)
	if err != nil {
		// Fail open: an unavailable counter must not take down login.
		logger.Warn("lockout check failed", map[string]any{
			"error": err.Error(),
		})
	}
	if locked {
		return "", auth.ErrAccountLocked
	}

	acct, err := s.store.GetByEmail(ctx, email)
	if err != nil {
		return "", err
	}

	if acct == nil || acct.PasswordHash == "" {
		s.recordFailure(ctx, key)
		return "", auth.ErrInvalidCredentials
	}

	if err := VerifyPassword(acct.PasswordHash, password); err != nil {
		s.recordFailure(ctx, key)
		return "", auth.ErrInvalidCredentials
	}

	if err := s.lockout.Reset(ctx, key); err != nil {
		logger.Warn("lockout reset failed", map[string]any{
			"error": err.Error(),
		})
	}

	return acct.ID, nil
}

// ChangePassword sets a new password after verifying the current one.
func (s *Service) ChangePassword(
	ctx context.Context,
	accountID string,
	currentPassword string,
	newPassword string,
) error {

	acct, err := s.store.GetByID(ctx, accountID)
	if err != nil {
		return err
	}

	if acct == nil || acct.PasswordHash == "" {
		return auth.ErrInvalidCredentials
	}

	if err := VerifyPassword(acct.PasswordHash, currentPassword); err != nil {
		return auth.ErrInvalidCredentials
	}

	hash, err := HashPassword(newPassword)
	if err != nil {
		return err
	}

	return s.store.SetPasswordHash(ctx, accountID, hash)
}

func (s *Service) recordFailure(ctx context.Context, key string) {
	if err := s.lockout.RecordFailure(ctx, key); err != nil {
		logger.Warn("lockout record failed", map[string]any{
			"error": err.Error(),
		})
	}
}
