// Package introspect verifies tokens remotely via the identity provider's
// introspection endpoint.
package introspect

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokengate/tokengate/token"
)

// Result is the introspection response as defined by RFC 7662. When Active
// is false the remaining fields may be absent.
type Result struct {
	Active   bool   `json:"active"`
	Scope    any    `json:"scope,omitempty"` // space-delimited string or list
	ClientID string `json:"client_id,omitempty"`
	Exp      int64  `json:"exp,omitempty"`
	Sub      string `json:"sub,omitempty"`
	Username string `json:"username,omitempty"`
}

// Verifier validates tokens by introspecting them with confidential-client
// credentials. Every failure mode — inactive token, non-200 response,
// transport error — collapses into token.ErrNotVerified so the caller always
// gets a definite allow/deny decision.
type Verifier struct {
	url          string
	clientID     string
	clientSecret string
	http         *http.Client
}

var _ token.Verifier = (*Verifier)(nil)

// NewVerifier creates an introspection verifier for the given endpoint.
func NewVerifier(introspectionURL, clientID, clientSecret string, httpClient *http.Client) *Verifier {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Verifier{
		url:          introspectionURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		http:         httpClient,
	}
}

// Verify introspects rawToken and returns the normalized result, or
// token.ErrNotVerified when the provider reports it inactive or cannot be
// reached.
func (v *Verifier) Verify(ctx context.Context, rawToken string) (*token.AccessToken, error) {
	form := url.Values{
		"token":           {rawToken},
		"token_type_hint": {"access_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", token.ErrNotVerified, err)
	}
	req.SetBasicAuth(v.clientID, v.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := v.http.Do(req)
	if err != nil {
		// Fail closed: a transport failure denies access rather than
		// propagating as an exception.
		log.Warn().Err(err).Msg("token introspection unreachable")
		return nil, token.ErrNotVerified
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Warn().Int("status", resp.StatusCode).Msg("token introspection failed")
		return nil, token.ErrNotVerified
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Warn().Err(err).Msg("malformed introspection response")
		return nil, token.ErrNotVerified
	}

	if !result.Active {
		log.Debug().Msg("token is not active")
		return nil, token.ErrNotVerified
	}

	subject := result.Username
	if subject == "" {
		subject = result.Sub
	}

	at := &token.AccessToken{
		Token:    rawToken,
		ClientID: result.ClientID,
		Subject:  subject,
		Scopes:   token.SplitScopes(result.Scope),
	}
	if result.Exp > 0 {
		at.ExpiresAt = time.Unix(result.Exp, 0)
	}

	log.Info().
		Str("client_id", at.ClientID).
		Str("sub", at.Subject).
		Strs("scopes", at.Scopes).
		Msg("token verified via introspection")
	return at, nil
}
