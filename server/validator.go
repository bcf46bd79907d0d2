package server

import (
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokengate/tokengate/token"
)

// ValidatorHandler is the standalone token validator: it verifies the bearer
// token and echoes the verified claims back with a 200. Verification
// failures are 401 with the failure reason.
func ValidatorHandler(verifier token.Verifier) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		bearer, ok := extractBearer(r)
		if !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="validator"`)
			writeOAuthError(w, http.StatusUnauthorized, "unauthorized", "missing or malformed Authorization header")
			return
		}

		at, err := verifier.Verify(r.Context(), bearer)
		if err != nil {
			log.Warn().Err(err).Str("token", token.Redact(bearer)).Msg("validator rejected token")
			w.Header().Set("WWW-Authenticate", `Bearer realm="validator", error="invalid_token"`)
			writeOAuthError(w, http.StatusUnauthorized, "unauthorized", err.Error())
			return
		}

		log.Info().
			Str("subject", at.Subject).
			Strs("scopes", at.Scopes).
			Msg("token validated")

		// Local verification keeps the full claim set; introspection
		// results get a normalized one built from the token fields.
		claims := at.Claims
		if claims == nil {
			claims = map[string]any{
				"sub": at.Subject,
				"cid": at.ClientID,
				"scp": at.Scopes,
			}
			if !at.ExpiresAt.IsZero() {
				claims["exp"] = at.ExpiresAt.Unix()
			}
		}
		writeJSON(w, http.StatusOK, claims)
	}
}

// NewValidatorMux wires the validator handler plus health and metrics
// endpoints into a standalone mux.
func NewValidatorMux(verifier token.Verifier) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /", ValidatorHandler(verifier))
	mux.HandleFunc("GET "+RouteHealthz, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
	})
	return mux
}
