package session

import (
	"context"
	"time"
)

// Session is the proof of authentication presented by the client. It
// stores only identity pointers, not auth state.
type Session struct {
	Token     string    `json:"token"`
	AccountID string    `json:"account_id"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"` // absolute expiry, checked passively
}

// Store defines how sessions are stored and retrieved. Get returns
// (nil, nil) for unknown or expired tokens; Delete on an absent token
// is a no-op.
type Store interface {
	Create(ctx context.Context, s Session) error
	Get(ctx context.Context, token string) (*Session, error)
	Delete(ctx context.Context, token string) error
}
