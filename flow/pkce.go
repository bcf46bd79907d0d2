package flow

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// GenerateVerifier creates a PKCE code verifier: 32 random bytes,
// base64url-encoded without padding. The verifier itself never travels over
// the network; only its challenge does.
func GenerateVerifier() string {
	return generateRandomString(32)
}

// Challenge derives the S256 code challenge for a verifier.
func Challenge(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}

// GenerateState creates the anti-CSRF state value for one authorization
// request.
func GenerateState() string {
	return generateRandomString(32)
}

// generateRandomString creates a random base64url string from length bytes
// of entropy.
func generateRandomString(length int) string {
	b := make([]byte, length)
	rand.Read(b)
	return base64.RawURLEncoding.EncodeToString(b)
}
