package account

import (
	"context"
	"errors"
)

var (
	// ErrEmailTaken maps the unique index on LOWER(email).
	ErrEmailTaken = errors.New("account: email already taken")
	// ErrIdentityTaken maps the (provider, provider_user_id) constraint.
	ErrIdentityTaken = errors.New("account: identity already linked")
)

// Store persists accounts and their linked identities. Lookups return
// (nil, nil) for missing rows; errors are reserved for storage
// failures. Uniqueness is enforced atomically at this layer so two
// concurrent check-and-create calls cannot both succeed.
type Store interface {
	GetByID(ctx context.Context, id string) (*Account, error)
	GetByEmail(ctx context.Context, email string) (*Account, error)

	// CreateAccount creates an account with no linked identity
	// (local registration). Returns ErrEmailTaken on conflict.
	CreateAccount(ctx context.Context, na NewAccount) (*Account, error)

	// CreateAccountWithIdentity creates an account and its first
	// linked identity atomically, so a lost race never leaves an
	// orphan account behind. Returns ErrEmailTaken or
	// ErrIdentityTaken on conflict.
	CreateAccountWithIdentity(ctx context.Context, na NewAccount, ref IdentityRef) (*Account, error)

	FindIdentity(ctx context.Context, provider, providerUserID string) (*LinkedIdentity, error)

	// LinkIdentity attaches a provider identity to an existing
	// account. Returns ErrIdentityTaken on conflict.
	LinkIdentity(ctx context.Context, accountID string, ref IdentityRef) error

	SetPasswordHash(ctx context.Context, accountID, hash string) error

	// BackfillProfile fills display_name and avatar_url only where the
	// account has none, so provider claims never clobber what a user
	// set themselves.
	BackfillProfile(ctx context.Context, accountID, displayName, avatarURL string) error
}
