package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tokengate/tokengate/server"
	"github.com/tokengate/tokengate/token"
)

func TestValidatorEchoesClaims(t *testing.T) {
	at := &token.AccessToken{
		Subject: "user@example.com",
		Scopes:  []string{"openid", "mcp:access"},
		Claims: map[string]any{
			"sub": "user@example.com",
			"iss": "https://idp.example.com/oauth2/default",
			"scp": []any{"openid", "mcp:access"},
		},
	}
	mux := server.NewValidatorMux(stubVerifier{at: at})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var claims map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claims))
	require.Equal(t, "user@example.com", claims["sub"])
	require.Equal(t, "https://idp.example.com/oauth2/default", claims["iss"])
}

func TestValidatorNormalizesIntrospectionResult(t *testing.T) {
	// Introspection verifiers return no raw claim set.
	at := &token.AccessToken{
		Subject:   "user@example.com",
		ClientID:  "client-1",
		Scopes:    []string{"mcp:access"},
		ExpiresAt: time.Unix(1924992000, 0),
	}
	mux := server.NewValidatorMux(stubVerifier{at: at})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer opaque-token")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var claims map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &claims))
	require.Equal(t, "user@example.com", claims["sub"])
	require.Equal(t, "client-1", claims["cid"])
	require.Equal(t, float64(1924992000), claims["exp"])
}

func TestValidatorRejectsBadToken(t *testing.T) {
	mux := server.NewValidatorMux(stubVerifier{err: token.ErrInvalidToken})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
}

func TestValidatorMissingHeader(t *testing.T) {
	mux := server.NewValidatorMux(stubVerifier{err: token.ErrInvalidToken})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestValidatorHealthz(t *testing.T) {
	mux := server.NewValidatorMux(stubVerifier{err: token.ErrInvalidToken})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
