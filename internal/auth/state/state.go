// Package state persists the short-lived anti-forgery tokens issued
// before redirecting to an OAuth provider. A pending entry binds the
// opaque state token to the provider and the PKCE verifier for that
// one authorization attempt.
package state

import (
	"context"
	"time"
)

// Pending is the server-side record behind a state token.
type Pending struct {
	Provider     string    `json:"provider"`
	CodeVerifier string    `json:"code_verifier"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists pending authorizations keyed by state token.
// Consume must be atomic and single-use: after one successful Consume
// the token is gone, so a replayed callback cannot match. Expired or
// unknown tokens return (nil, nil).
type Store interface {
	Save(ctx context.Context, token string, p Pending) error
	Consume(ctx context.Context, token string) (*Pending, error)
}
