// Package token defines the verified access-token model shared by the
// verification strategies and the authorization layer.
package token

import (
	"context"
	"time"
)

// AccessToken is the verified, normalized output of token verification.
// It is owned by the request that produced it and is never shared or
// mutated after construction.
type AccessToken struct {
	// Token is the raw bearer token as presented by the caller.
	Token string

	// ClientID is the OAuth2 client the token was issued to.
	ClientID string

	// Subject identifies the end user (sub or username).
	Subject string

	// Scopes granted to the token, normalized to a list.
	Scopes []string

	// ExpiresAt is the token expiry; zero when the provider omitted it.
	ExpiresAt time.Time

	// Claims holds the full verified claim set when the token was
	// verified locally. Introspection results leave it nil.
	Claims map[string]any
}

// Verifier validates a bearer token, returning the normalized result or one
// of the verification errors declared in this package. A token is either
// fully verified or rejected; there is no partial-trust state.
type Verifier interface {
	Verify(ctx context.Context, token string) (*AccessToken, error)
}

// Redact shortens a secret for logging. Raw tokens, authorization codes and
// PKCE verifiers must never be logged in full.
func Redact(secret string) string {
	if len(secret) <= 8 {
		return "[redacted]"
	}
	return secret[:8] + "..."
}
