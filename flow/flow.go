// Package flow drives the browser-based OAuth2 authorization-code + PKCE
// login used by the client role to obtain its initial access token.
package flow

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"

	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/token"
)

var (
	// ErrCallbackTimeout is returned when no authorization callback
	// arrives within the flow timeout.
	ErrCallbackTimeout = errors.New("timed out waiting for authorization callback")

	// ErrStateMismatch is returned when the callback state does not match
	// the state generated for the authorization request. No token request
	// is made in that case.
	ErrStateMismatch = errors.New("state parameter mismatch, possible CSRF")
)

// CodeExchangeError is a failed authorization-code exchange, carrying the
// provider's status and body for diagnosis.
type CodeExchangeError struct {
	Status int
	Body   string
}

func (e *CodeExchangeError) Error() string {
	return fmt.Sprintf("code exchange failed: status %d: %s", e.Status, e.Body)
}

const defaultPollInterval = 100 * time.Millisecond

// Result is the outcome of a completed login.
type Result struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	Scope        string
	IDToken      string
}

// Flow runs one authentication attempt. All per-attempt state (PKCE
// verifier, CSRF state, pending code) is local to Login and discarded when
// it returns, whether the attempt completed or failed.
type Flow struct {
	issuer       string
	clientID     string
	clientSecret string
	scopes       []string
	authURL      string
	tokenURL     string
	jwksURL      string
	callbackPort int
	timeout      time.Duration
	pollInterval time.Duration
	http         *http.Client

	// OpenBrowser launches the user's browser at the authorization URL.
	// Overridable for tests and headless environments; errors are logged,
	// not fatal, since the URL is also surfaced to the user.
	OpenBrowser func(url string) error

	// VerifyIDToken controls whether an id_token in the token response is
	// verified against the provider's keys before the flow completes.
	VerifyIDToken bool
}

// New builds a login flow from the configuration. The requested scopes are
// openid, profile and offline_access plus the configured required scopes,
// matching what the resource server will demand.
func New(cfg *config.Config, httpClient *http.Client) *Flow {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	scopes := append([]string{oidc.ScopeOpenID, "profile", oidc.ScopeOfflineAccess}, cfg.RequiredScopes...)

	return &Flow{
		issuer:        cfg.Issuer,
		clientID:      cfg.ClientID,
		clientSecret:  cfg.ClientSecret,
		scopes:        scopes,
		authURL:       cfg.AuthorizeURL(),
		tokenURL:      cfg.TokenURL(),
		jwksURL:       cfg.JWKSURL(),
		callbackPort:  cfg.CallbackPort,
		timeout:       cfg.CallbackTimeout,
		pollInterval:  defaultPollInterval,
		http:          httpClient,
		VerifyIDToken: true,
	}
}

// Login performs one full authorization-code + PKCE handshake:
//
//	generate PKCE pair and CSRF state
//	-> start the loopback callback listener
//	-> open the authorization URL in the browser
//	-> wait for exactly one code-bearing callback (bounded by the timeout)
//	-> check returned state against generated state
//	-> exchange code + verifier for tokens
//
// The callback listener is torn down on every exit path.
func (f *Flow) Login(ctx context.Context) (*Result, error) {
	verifier := GenerateVerifier()
	state := GenerateState()

	callback, err := startCallbackServer(f.callbackPort)
	if err != nil {
		return nil, err
	}
	defer callback.close()

	oauthCfg := &oauth2.Config{
		ClientID:     f.clientID,
		ClientSecret: f.clientSecret,
		Endpoint: oauth2.Endpoint{
			AuthURL:  f.authURL,
			TokenURL: f.tokenURL,
		},
		RedirectURL: callback.RedirectURL(),
		Scopes:      f.scopes,
	}

	authURL := oauthCfg.AuthCodeURL(state,
		oauth2.SetAuthURLParam("code_challenge", Challenge(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
	)

	log.Info().Str("issuer", f.issuer).Msg("opening browser for authentication")
	if f.OpenBrowser != nil {
		if err := f.OpenBrowser(authURL); err != nil {
			log.Warn().Err(err).Msg("could not open browser; visit the authorization URL manually")
		}
	}

	code, returnedState, err := callback.wait(ctx, f.timeout, f.pollInterval)
	if err != nil {
		return nil, err
	}

	// CSRF check happens before any token request is made.
	if subtle.ConstantTimeCompare([]byte(returnedState), []byte(state)) != 1 {
		return nil, ErrStateMismatch
	}
	log.Debug().Str("code", token.Redact(code)).Msg("authorization code received")

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, f.http)
	oauthToken, err := oauthCfg.Exchange(exchangeCtx, code,
		oauth2.SetAuthURLParam("code_verifier", verifier),
	)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
			return nil, &CodeExchangeError{
				Status: retrieveErr.Response.StatusCode,
				Body:   string(retrieveErr.Body),
			}
		}
		return nil, fmt.Errorf("code exchange: %w", err)
	}

	result := &Result{
		AccessToken:  oauthToken.AccessToken,
		RefreshToken: oauthToken.RefreshToken,
		TokenType:    oauthToken.TokenType,
		Expiry:       oauthToken.Expiry,
	}
	if scope, ok := oauthToken.Extra("scope").(string); ok {
		result.Scope = scope
	}

	if rawIDToken, ok := oauthToken.Extra("id_token").(string); ok && rawIDToken != "" {
		if f.VerifyIDToken {
			if err := f.verifyIDToken(ctx, rawIDToken); err != nil {
				return nil, fmt.Errorf("id token verification: %w", err)
			}
		}
		result.IDToken = rawIDToken
	}

	log.Info().Str("token", token.Redact(result.AccessToken)).Msg("authentication complete")
	return result, nil
}

// verifyIDToken checks the ID token's signature and claims against the
// provider's published keys.
func (f *Flow) verifyIDToken(ctx context.Context, rawIDToken string) error {
	keyCtx := oidc.ClientContext(ctx, f.http)
	keySet := oidc.NewRemoteKeySet(keyCtx, f.jwksURL)
	verifier := oidc.NewVerifier(f.issuer, keySet, &oidc.Config{ClientID: f.clientID})

	_, err := verifier.Verify(keyCtx, rawIDToken)
	return err
}
