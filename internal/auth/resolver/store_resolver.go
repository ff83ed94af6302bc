package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/iliyagoodarzi28/ModernBlog/internal/account"
	"github.com/iliyagoodarzi28/ModernBlog/internal/auth"
	"github.com/iliyagoodarzi28/ModernBlog/internal/logger"
)

// maxResolveAttempts bounds the conflict-retry loop. Two attempts
// handle any single lost race; the third is slack.
const maxResolveAttempts = 3

// StoreResolver resolves identities against the account store using
// three branches, in order:
//
//  1. the (provider, provider_user_id) pair is already linked: reuse
//     its account;
//  2. an account with the claimed email exists: link the new identity
//     to it;
//  3. neither exists: create the account and the link together.
//
// A uniqueness conflict during 2 or 3 means a concurrent request won
// the create; the loop re-runs from branch 1 and converges on the row
// that was inserted first, so repeated and concurrent logins for one
// identity always end at exactly one account.
type StoreResolver struct {
	store account.Store
}

func NewStoreResolver(store account.Store) *StoreResolver {
	return &StoreResolver{store: store}
}

func (r *StoreResolver) Resolve(ctx context.Context, identity *auth.Identity) (string, error) {
	if identity == nil || identity.Provider == "" || identity.ProviderUserID == "" {
		return "", auth.ErrProviderProfileIncomplete
	}
	if identity.Email == "" {
		return "", auth.ErrProviderProfileIncomplete
	}

	for attempt := 1; attempt <= maxResolveAttempts; attempt++ {
		id, retry, err := r.resolveOnce(ctx, identity)
		if err != nil {
			return "", err
		}
		if !retry {
			return id, nil
		}
		logger.Warn("identity resolution lost a race, retrying", map[string]any{
			"provider": identity.Provider,
			"attempt":  attempt,
		})
	}

	return "", fmt.Errorf("resolver: no convergence after %d attempts", maxResolveAttempts)
}

func (r *StoreResolver) resolveOnce(
	ctx context.Context,
	identity *auth.Identity,
) (id string, retry bool, err error) {

	// Branch 1: known identity.
	li, err := r.store.FindIdentity(ctx, identity.Provider, identity.ProviderUserID)
	if err != nil {
		return "", false, err
	}
	if li != nil {
		return li.AccountID, false, nil
	}

	ref := account.IdentityRef{
		Provider:       identity.Provider,
		ProviderUserID: identity.ProviderUserID,
		RawProfile:     identity.RawProfile,
	}

	// Branch 2: existing account with the claimed email.
	acct, err := r.store.GetByEmail(ctx, identity.Email)
	if err != nil {
		return "", false, err
	}
	if acct != nil {
		err := r.store.LinkIdentity(ctx, acct.ID, ref)
		if errors.Is(err, account.ErrIdentityTaken) {
			return "", true, nil
		}
		if err != nil {
			return "", false, err
		}

		if err := r.store.BackfillProfile(ctx, acct.ID, identity.Name, identity.AvatarURL); err != nil {
			logger.Warn("profile backfill failed", map[string]any{
				"account_id": acct.ID,
				"error":      err.Error(),
			})
		}

		logger.Info("identity linked to existing account", map[string]any{
			"provider":   identity.Provider,
			"account_id": acct.ID,
		})
		return acct.ID, false, nil
	}

	// Branch 3: first time we see both the identity and the email.
	created, err := r.store.CreateAccountWithIdentity(ctx, account.NewAccount{
		Email:         identity.Email,
		EmailVerified: identity.EmailVerified,
		DisplayName:   identity.Name,
		AvatarURL:     identity.AvatarURL,
	}, ref)
	if errors.Is(err, account.ErrEmailTaken) || errors.Is(err, account.ErrIdentityTaken) {
		return "", true, nil
	}
	if err != nil {
		return "", false, err
	}

	logger.Info("account created from provider identity", map[string]any{
		"provider":   identity.Provider,
		"account_id": created.ID,
	})
	return created.ID, false, nil
}
