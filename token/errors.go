package token

import "errors"

// Verification failure taxonomy. Authentication failures surface as
// unauthorized; ErrInsufficientScope surfaces as forbidden so callers can
// tell "log in again" from "request a different scope".
var (
	// ErrTokenExpired is returned when the token's expiry has passed.
	ErrTokenExpired = errors.New("token expired")

	// ErrInvalidToken covers signature, issuer, audience and format
	// failures. The underlying reason is wrapped for diagnostics.
	ErrInvalidToken = errors.New("invalid token")

	// ErrKeyNotFound is returned when no signing key matches the token's
	// key id, even after refreshing the key set.
	ErrKeyNotFound = errors.New("signing key not found")

	// ErrNotVerified is returned when introspection reports the token
	// inactive or the introspection endpoint cannot be reached. The two
	// causes are deliberately indistinguishable to the caller.
	ErrNotVerified = errors.New("token not verified")

	// ErrInsufficientScope is returned when a verified token lacks a
	// required scope.
	ErrInsufficientScope = errors.New("insufficient scope")
)

// IsUnauthorized reports whether err is an authentication failure, as
// opposed to a scope (authorization) failure.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrTokenExpired) ||
		errors.Is(err, ErrInvalidToken) ||
		errors.Is(err, ErrKeyNotFound) ||
		errors.Is(err, ErrNotVerified)
}
