// Package jwt verifies access tokens locally against the provider's
// published signing keys.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"

	"github.com/tokengate/tokengate/token"
	"github.com/tokengate/tokengate/token/keys"
)

// NowTimeFunc returns the current time. It can be overridden in tests.
var NowTimeFunc = time.Now

// Verifier validates a token's RS256 signature using the key matching its
// kid header, then checks issuer, audience and expiry against the
// configured values.
type Verifier struct {
	keys     *keys.Client
	issuer   string
	audience string
}

var _ token.Verifier = (*Verifier)(nil)

// NewVerifier creates a local verifier bound to one issuer and audience.
func NewVerifier(keyClient *keys.Client, issuer, audience string) *Verifier {
	return &Verifier{
		keys:     keyClient,
		issuer:   issuer,
		audience: audience,
	}
}

// Verify parses and validates rawToken. Failure modes:
//   - expired token: token.ErrTokenExpired
//   - unknown key id: token.ErrKeyNotFound
//   - anything else (signature, issuer, audience, malformed):
//     token.ErrInvalidToken wrapping the underlying reason
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*token.AccessToken, error) {
	parser := jwtlib.NewParser(
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodRS256.Alg()}),
		jwtlib.WithIssuer(v.issuer),
		jwtlib.WithAudience(v.audience),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(func() time.Time { return NowTimeFunc() }),
	)

	claims := jwtlib.MapClaims{}
	parsed, err := parser.ParseWithClaims(rawToken, claims, v.verificationKey(ctx))
	if err != nil {
		switch {
		case errors.Is(err, jwtlib.ErrTokenExpired):
			return nil, fmt.Errorf("%w: %v", token.ErrTokenExpired, err)
		case errors.Is(err, token.ErrKeyNotFound):
			return nil, err
		default:
			return nil, fmt.Errorf("%w: %v", token.ErrInvalidToken, err)
		}
	}
	if !parsed.Valid {
		return nil, token.ErrInvalidToken
	}

	result := accessTokenFromClaims(rawToken, claims)
	log.Debug().
		Str("client_id", result.ClientID).
		Str("sub", result.Subject).
		Strs("scopes", result.Scopes).
		Msg("token verified locally")
	return result, nil
}

// verificationKey resolves the signing key named by the token's kid header.
func (v *Verifier) verificationKey(ctx context.Context) jwtlib.Keyfunc {
	return func(t *jwtlib.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, fmt.Errorf("%w: token header missing kid", token.ErrInvalidToken)
		}
		return v.keys.Lookup(ctx, kid)
	}
}

func accessTokenFromClaims(rawToken string, claims jwtlib.MapClaims) *token.AccessToken {
	result := &token.AccessToken{
		Token:  rawToken,
		Claims: claims,
	}

	if sub, _ := claims["sub"].(string); sub != "" {
		result.Subject = sub
	}

	// Okta issues the client id as cid; fall back to the standard name.
	if cid, _ := claims["cid"].(string); cid != "" {
		result.ClientID = cid
	} else if cid, _ := claims["client_id"].(string); cid != "" {
		result.ClientID = cid
	}

	// Scopes arrive as scp (list) or scope (space-delimited string).
	if scp, ok := claims["scp"]; ok {
		result.Scopes = token.SplitScopes(scp)
	} else {
		result.Scopes = token.SplitScopes(claims["scope"])
	}

	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		result.ExpiresAt = exp.Time
	}

	return result
}
