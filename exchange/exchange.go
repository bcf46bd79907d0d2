// Package exchange performs RFC 8693 token exchange with DPoP
// proof-of-possession against the identity provider's token endpoint.
package exchange

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tokengate/tokengate/dpop"
	"github.com/tokengate/tokengate/token"
)

// Token type URNs from RFC 8693.
const (
	GrantTypeTokenExchange = "urn:ietf:params:oauth:grant-type:token-exchange"
	TokenTypeAccessToken   = "urn:ietf:params:oauth:token-type:access_token"
)

const errorCodeUseDPoPNonce = "use_dpop_nonce"

// ErrMissingNonce is returned when the provider demands a DPoP nonce but
// supplies no DPoP-Nonce response header to retry with.
var ErrMissingNonce = errors.New("provider requires a DPoP nonce but supplied none")

// Error is a failed exchange response, carrying full diagnostic context:
// these failures are usually operator-facing configuration errors, not
// attacker activity.
type Error struct {
	Status int
	Body   string
}

func (e *Error) Error() string {
	return fmt.Sprintf("token exchange failed: status %d: %s", e.Status, e.Body)
}

// Client trades a verified subject token for a new access token scoped and
// audienced for a downstream API.
type Client struct {
	tokenURL     string
	clientID     string
	clientSecret string
	scope        string
	audience     string
	http         *http.Client
}

// NewClient creates an exchange client for one downstream API.
func NewClient(tokenURL, clientID, clientSecret, scope, audience string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		tokenURL:     tokenURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		scope:        scope,
		audience:     audience,
		http:         httpClient,
	}
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	IssuedTokenType  string `json:"issued_token_type,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
	ExpiresIn        int    `json:"expires_in,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

// Exchange performs the token exchange for subjectToken.
//
// One ephemeral DPoP keypair is generated per call. The first attempt sends
// a proof without a nonce; if the provider answers 400 with error code
// use_dpop_nonce, the proof is regenerated with the nonce from the
// DPoP-Nonce header and the POST is retried exactly once. Nothing else is
// retried.
func (c *Client) Exchange(ctx context.Context, subjectToken string) (string, error) {
	keyPair, err := dpop.GenerateKeyPair()
	if err != nil {
		return "", err
	}

	form := url.Values{
		"grant_type":           {GrantTypeTokenExchange},
		"subject_token":        {subjectToken},
		"subject_token_type":   {TokenTypeAccessToken},
		"requested_token_type": {TokenTypeAccessToken},
		"scope":                {c.scope},
		"audience":             {c.audience},
	}

	status, header, body, err := c.post(ctx, form, keyPair, "")
	if err != nil {
		return "", err
	}

	if nonceRequired(status, body) {
		nonce := header.Get("DPoP-Nonce")
		if nonce == "" {
			return "", ErrMissingNonce
		}
		log.Debug().Msg("retrying token exchange with provider-issued DPoP nonce")
		status, _, body, err = c.post(ctx, form, keyPair, nonce)
		if err != nil {
			return "", err
		}
	}

	if status != http.StatusOK {
		return "", &Error{Status: status, Body: string(body)}
	}

	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode token exchange response: %w", err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("token exchange response missing access_token")
	}

	log.Info().
		Str("audience", c.audience).
		Str("scope", c.scope).
		Str("token", token.Redact(resp.AccessToken)).
		Msg("token exchange complete")
	return resp.AccessToken, nil
}

// post sends one exchange attempt with a freshly generated proof.
func (c *Client) post(ctx context.Context, form url.Values, keyPair *dpop.KeyPair, nonce string) (int, http.Header, []byte, error) {
	proof, err := keyPair.Proof(http.MethodPost, c.tokenURL, nonce)
	if err != nil {
		return 0, nil, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return 0, nil, nil, fmt.Errorf("build token exchange request: %w", err)
	}
	req.SetBasicAuth(c.clientID, c.clientSecret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("DPoP", proof)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("token exchange request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, nil, fmt.Errorf("read token exchange response: %w", err)
	}

	return resp.StatusCode, resp.Header, body, nil
}

// nonceRequired reports whether the response is the provider's DPoP nonce
// challenge. Nonce requirements are discovered, not statically known, so a
// first-attempt 400 here is expected.
func nonceRequired(status int, body []byte) bool {
	if status != http.StatusBadRequest {
		return false
	}
	var resp tokenResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return false
	}
	return resp.Error == errorCodeUseDPoPNonce
}
