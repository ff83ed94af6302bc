package auth

import "errors"

// Authentication failures surfaced to callers. Every one of these is
// recoverable: handlers translate them into a 4xx response or a
// redirect back to the login page, never a crash.
var (
	// ErrInvalidCredentials covers both unknown email and wrong
	// password so the two cases are indistinguishable to a caller.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountLocked is returned once the failure counter for an
	// email has crossed the lockout threshold.
	ErrAccountLocked = errors.New("account locked")

	// ErrStateMismatch means the OAuth callback carried a state token
	// that is absent, expired, already used, or bound to a different
	// provider.
	ErrStateMismatch = errors.New("oauth state mismatch")

	// ErrProviderExchangeFailed covers network errors, timeouts and
	// provider-side failures during the authorization-code exchange.
	ErrProviderExchangeFailed = errors.New("provider exchange failed")

	// ErrProviderProfileIncomplete means the provider returned a
	// profile missing a required claim (subject or verified email).
	ErrProviderProfileIncomplete = errors.New("provider profile incomplete")
)
