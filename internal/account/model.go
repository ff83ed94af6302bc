package account

import "time"

// Account is a user's durable identity record.
type Account struct {
	ID            string
	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
	PasswordHash  string // empty for social-only accounts
	Status        string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// LinkedIdentity binds a provider's user to a local Account.
type LinkedIdentity struct {
	ID             string
	AccountID      string
	Provider       string
	ProviderUserID string
	RawProfile     []byte
	CreatedAt      time.Time
}

// NewAccount carries the fields needed to create an Account.
type NewAccount struct {
	Email         string
	EmailVerified bool
	DisplayName   string
	AvatarURL     string
	PasswordHash  string
}

// IdentityRef identifies a provider identity to link.
type IdentityRef struct {
	Provider       string
	ProviderUserID string
	RawProfile     []byte
}
