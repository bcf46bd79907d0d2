package exchange_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tokengate/tokengate/exchange"
)

const (
	testClientID     = "client-1"
	testClientSecret = "secret-1"
	testScope        = "api:read"
	testAudience     = "api://downstream"
)

type attempt struct {
	form  map[string]string
	proof map[string]any // decoded proof claims
	jwk   map[string]any // decoded proof header jwk
}

func decodeProof(t *testing.T, proof string) (claims, jwk map[string]any) {
	t.Helper()

	parts := strings.Split(proof, ".")
	require.Len(t, parts, 3)

	headerRaw, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	var header map[string]any
	require.NoError(t, json.Unmarshal(headerRaw, &header))
	jwk, _ = header["jwk"].(map[string]any)

	claimsRaw, err := base64.RawURLEncoding.DecodeString(parts[1])
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(claimsRaw, &claims))
	return claims, jwk
}

// exchangeServer records every attempt and delegates the response to respond.
func exchangeServer(t *testing.T, attempts *[]attempt, respond func(w http.ResponseWriter, n int)) *httptest.Server {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		require.True(t, ok)
		require.Equal(t, testClientID, user)
		require.Equal(t, testClientSecret, pass)

		require.NoError(t, r.ParseForm())
		claims, jwk := decodeProof(t, r.Header.Get("DPoP"))

		*attempts = append(*attempts, attempt{
			form: map[string]string{
				"grant_type":           r.PostFormValue("grant_type"),
				"subject_token":        r.PostFormValue("subject_token"),
				"subject_token_type":   r.PostFormValue("subject_token_type"),
				"requested_token_type": r.PostFormValue("requested_token_type"),
				"scope":                r.PostFormValue("scope"),
				"audience":             r.PostFormValue("audience"),
			},
			proof: claims,
			jwk:   jwk,
		})

		w.Header().Set("Content-Type", "application/json")
		respond(w, len(*attempts))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestExchangeSuccessFirstAttempt(t *testing.T) {
	var attempts []attempt
	srv := exchangeServer(t, &attempts, func(w http.ResponseWriter, n int) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":      "downstream-token",
			"issued_token_type": exchange.TokenTypeAccessToken,
			"token_type":        "Bearer",
		})
	})

	c := exchange.NewClient(srv.URL, testClientID, testClientSecret, testScope, testAudience, srv.Client())
	got, err := c.Exchange(context.Background(), "subject-token")
	require.NoError(t, err)
	require.Equal(t, "downstream-token", got)

	require.Len(t, attempts, 1)
	a := attempts[0]
	require.Equal(t, exchange.GrantTypeTokenExchange, a.form["grant_type"])
	require.Equal(t, "subject-token", a.form["subject_token"])
	require.Equal(t, exchange.TokenTypeAccessToken, a.form["subject_token_type"])
	require.Equal(t, exchange.TokenTypeAccessToken, a.form["requested_token_type"])
	require.Equal(t, testScope, a.form["scope"])
	require.Equal(t, testAudience, a.form["audience"])

	require.Equal(t, "POST", a.proof["htm"])
	require.NotContains(t, a.proof, "nonce")
	require.NotNil(t, a.jwk)
}

func TestExchangeNonceRetry(t *testing.T) {
	var attempts []attempt
	srv := exchangeServer(t, &attempts, func(w http.ResponseWriter, n int) {
		if n == 1 {
			w.Header().Set("DPoP-Nonce", "abc123")
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]any{"error": "use_dpop_nonce"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "downstream-token"})
	})

	c := exchange.NewClient(srv.URL, testClientID, testClientSecret, testScope, testAudience, srv.Client())
	got, err := c.Exchange(context.Background(), "subject-token")
	require.NoError(t, err)
	require.Equal(t, "downstream-token", got)

	require.Len(t, attempts, 2)
	require.NotContains(t, attempts[0].proof, "nonce")
	require.Equal(t, "abc123", attempts[1].proof["nonce"])

	// Same keypair across the retry, fresh proof claims.
	require.Equal(t, attempts[0].jwk, attempts[1].jwk)
	require.NotEqual(t, attempts[0].proof["jti"], attempts[1].proof["jti"])
}

func TestExchangeNonceRetryNotRepeated(t *testing.T) {
	var attempts []attempt
	srv := exchangeServer(t, &attempts, func(w http.ResponseWriter, n int) {
		// Provider keeps demanding a nonce; the retry budget is one.
		w.Header().Set("DPoP-Nonce", "abc123")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error": "use_dpop_nonce"})
	})

	c := exchange.NewClient(srv.URL, testClientID, testClientSecret, testScope, testAudience, srv.Client())
	_, err := c.Exchange(context.Background(), "subject-token")

	var exchErr *exchange.Error
	require.ErrorAs(t, err, &exchErr)
	require.Equal(t, http.StatusBadRequest, exchErr.Status)
	require.Len(t, attempts, 2)
}

func TestExchangeMissingNonceHeader(t *testing.T) {
	var attempts []attempt
	srv := exchangeServer(t, &attempts, func(w http.ResponseWriter, n int) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error": "use_dpop_nonce"})
	})

	c := exchange.NewClient(srv.URL, testClientID, testClientSecret, testScope, testAudience, srv.Client())
	_, err := c.Exchange(context.Background(), "subject-token")
	require.ErrorIs(t, err, exchange.ErrMissingNonce)
	require.Len(t, attempts, 1)
}

func TestExchangeHTTPFailure(t *testing.T) {
	var attempts []attempt
	srv := exchangeServer(t, &attempts, func(w http.ResponseWriter, n int) {
		w.WriteHeader(http.StatusForbidden)
		json.NewEncoder(w).Encode(map[string]any{
			"error":             "access_denied",
			"error_description": "client not allowed",
		})
	})

	c := exchange.NewClient(srv.URL, testClientID, testClientSecret, testScope, testAudience, srv.Client())
	_, err := c.Exchange(context.Background(), "subject-token")

	var exchErr *exchange.Error
	require.ErrorAs(t, err, &exchErr)
	require.Equal(t, http.StatusForbidden, exchErr.Status)
	require.Contains(t, exchErr.Body, "client not allowed")
	require.Len(t, attempts, 1)
}

func TestExchangeMissingAccessToken(t *testing.T) {
	var attempts []attempt
	srv := exchangeServer(t, &attempts, func(w http.ResponseWriter, n int) {
		json.NewEncoder(w).Encode(map[string]any{"token_type": "Bearer"})
	})

	c := exchange.NewClient(srv.URL, testClientID, testClientSecret, testScope, testAudience, srv.Client())
	_, err := c.Exchange(context.Background(), "subject-token")
	require.ErrorContains(t, err, "access_token")
}
