package server

import (
	"context"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/tokengate/tokengate/internal/metrics"
	"github.com/tokengate/tokengate/token"
)

// ContextKey is a custom type for context keys to avoid collisions
type ContextKey string

// ContextKeyAccessToken stores the verified *token.AccessToken
const ContextKeyAccessToken ContextKey = "access_token"

// AccessTokenFromContext returns the verified token injected by RequireAuth.
func AccessTokenFromContext(ctx context.Context) (*token.AccessToken, bool) {
	at, ok := ctx.Value(ContextKeyAccessToken).(*token.AccessToken)
	return at, ok
}

func ChainMiddleware(routeFunction http.HandlerFunc, mw ...func(http.HandlerFunc) http.HandlerFunc) http.HandlerFunc {
	chainedHandler := routeFunction
	// Apply middleware in reverse order
	for i := len(mw) - 1; i >= 0; i-- {
		chainedHandler = mw[i](chainedHandler)
	}
	return chainedHandler
}

// RequireAuth is middleware that validates a Bearer access token and enforces
// the configured required scopes. Verification failures are 401 with a
// WWW-Authenticate challenge; scope failures are 403. The verified token is
// injected into the request context on success.
func (s *Server) RequireAuth() func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			bearer, ok := extractBearer(r)
			if !ok {
				metrics.Verifications.WithLabelValues(metrics.ResultUnauthorized).Inc()
				w.Header().Set("WWW-Authenticate", `Bearer realm="tools"`)
				writeOAuthError(w, http.StatusUnauthorized, "unauthorized", "missing or malformed Authorization header")
				return
			}

			at, err := s.verifier.Verify(r.Context(), bearer)
			if err != nil {
				if token.IsUnauthorized(err) {
					metrics.Verifications.WithLabelValues(metrics.ResultUnauthorized).Inc()
					log.Warn().Err(err).Str("token", token.Redact(bearer)).Msg("token rejected")
					w.Header().Set("WWW-Authenticate", `Bearer realm="tools", error="invalid_token"`)
					writeOAuthError(w, http.StatusUnauthorized, "unauthorized", err.Error())
					return
				}
				metrics.Verifications.WithLabelValues(metrics.ResultError).Inc()
				log.Error().Err(err).Msg("token verification")
				writeOAuthError(w, http.StatusInternalServerError, "server_error", "token verification failed")
				return
			}

			if err := token.RequireScopes(at.Scopes, s.config.RequiredScopes); err != nil {
				metrics.Verifications.WithLabelValues(metrics.ResultForbidden).Inc()
				log.Warn().
					Str("subject", at.Subject).
					Strs("granted", at.Scopes).
					Strs("required", s.config.RequiredScopes).
					Msg("insufficient scope")
				w.Header().Set("WWW-Authenticate", `Bearer realm="tools", error="insufficient_scope"`)
				writeOAuthError(w, http.StatusForbidden, "insufficient_scope", err.Error())
				return
			}

			metrics.Verifications.WithLabelValues(metrics.ResultOK).Inc()
			ctx := context.WithValue(r.Context(), ContextKeyAccessToken, at)
			next(w, r.WithContext(ctx))
		}
	}
}

// extractBearer pulls the token out of the Authorization header.
func extractBearer(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func (s *Server) LoggingMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("request")
		next(w, r)
	}
}

func (s *Server) RecoverMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Any("panic", rec).Str("path", r.URL.Path).Msg("handler panicked")
				writeOAuthError(w, http.StatusInternalServerError, "server_error", "internal error")
			}
		}()
		next(w, r)
	}
}
