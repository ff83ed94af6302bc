package resolver

import (
	"context"

	"github.com/iliyagoodarzi28/ModernBlog/internal/auth"
)

// Resolver determines which local account an external identity belongs
// to. It is the only place where identity-to-account mapping logic lives.
type Resolver interface {
	Resolve(ctx context.Context, identity *auth.Identity) (accountID string, err error)
}
