package server

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokengate/tokengate/internal/metrics"
	"github.com/tokengate/tokengate/token"
)

// Tool names in the catalog.
const (
	ToolGetCurrentTime    = "get_current_time"
	ToolCalculateSquare   = "calculate_square"
	ToolCallThirdPartyAPI = "call_third_party_api"
)

// Tool describes one catalog entry.
type Tool struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

func (s *Server) toolCatalog() []Tool {
	return []Tool{
		{
			Name:        ToolGetCurrentTime,
			Description: "Get the current server time.",
		},
		{
			Name:        ToolCalculateSquare,
			Description: "Calculate the square of a number.",
			Parameters: map[string]any{
				"number": map[string]any{"type": "number", "description": "The number to square"},
			},
		},
		{
			Name:        ToolCallThirdPartyAPI,
			Description: "Call the downstream API with an exchanged, audience-restricted token.",
		},
	}
}

// ListToolsHandler returns the tool catalog.
func (s *Server) ListToolsHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"tools": s.toolCatalog()})
	}
}

type toolCallRequest struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// CallToolHandler dispatches a tool invocation. The caller has already been
// authenticated and scope-checked by RequireAuth.
func (s *Server) CallToolHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req toolCallRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeOAuthError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body")
			return
		}

		switch req.Name {
		case ToolGetCurrentTime:
			writeJSON(w, http.StatusOK, getCurrentTime())
		case ToolCalculateSquare:
			result, err := calculateSquare(req.Arguments)
			if err != nil {
				writeOAuthError(w, http.StatusBadRequest, "invalid_request", err.Error())
				return
			}
			writeJSON(w, http.StatusOK, result)
		case ToolCallThirdPartyAPI:
			s.callThirdPartyAPI(w, r)
		default:
			writeOAuthError(w, http.StatusNotFound, "unknown_tool", fmt.Sprintf("no tool named %q", req.Name))
		}
	}
}

func getCurrentTime() map[string]any {
	now := time.Now().UTC()
	return map[string]any{
		"current_time": now.Format(time.RFC3339Nano),
		"timezone":     "UTC",
		"timestamp":    float64(now.UnixNano()) / float64(time.Second),
		"formatted":    now.Format("2006-01-02 15:04:05"),
		"message":      "Hello from authenticated MCP server!",
	}
}

func calculateSquare(args map[string]any) (map[string]any, error) {
	raw, ok := args["number"]
	if !ok {
		return nil, fmt.Errorf("missing required argument %q", "number")
	}
	number, ok := raw.(float64)
	if !ok {
		return nil, fmt.Errorf("argument %q must be a number", "number")
	}

	square := number * number
	return map[string]any{
		"input":       number,
		"square":      square,
		"calculation": fmt.Sprintf("%g² = %g", number, square),
	}, nil
}

// callThirdPartyAPI exchanges the caller's token for a downstream one and
// relays the downstream response. The caller's own token never leaves this
// process; only the exchanged token travels to the third party.
func (s *Server) callThirdPartyAPI(w http.ResponseWriter, r *http.Request) {
	at, ok := AccessTokenFromContext(r.Context())
	if !ok {
		writeOAuthError(w, http.StatusUnauthorized, "unauthorized", "no verified token in request context")
		return
	}

	if s.exchanger == nil || s.config.ThirdPartyAPIURL == "" {
		writeOAuthError(w, http.StatusNotImplemented, "unsupported", "token exchange is not configured")
		return
	}

	downstream, err := s.exchanger.Exchange(r.Context(), at.Token)
	if err != nil {
		metrics.Exchanges.WithLabelValues(metrics.ResultError).Inc()
		log.Error().Err(err).Str("subject", at.Subject).Msg("token exchange")
		writeOAuthError(w, http.StatusBadGateway, "exchange_failed", "could not obtain a downstream token")
		return
	}
	metrics.Exchanges.WithLabelValues(metrics.ResultOK).Inc()

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, s.config.ThirdPartyAPIURL, nil)
	if err != nil {
		writeOAuthError(w, http.StatusInternalServerError, "server_error", "building downstream request")
		return
	}
	req.Header.Set("Authorization", "Bearer "+downstream)

	resp, err := s.http.Do(req)
	if err != nil {
		log.Error().Err(err).Str("url", s.config.ThirdPartyAPIURL).Msg("downstream request")
		writeOAuthError(w, http.StatusBadGateway, "downstream_unreachable", "downstream API request failed")
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		writeOAuthError(w, http.StatusBadGateway, "downstream_unreachable", "reading downstream response")
		return
	}

	log.Info().
		Int("status", resp.StatusCode).
		Str("token", token.Redact(downstream)).
		Msg("downstream API called with exchanged token")

	result := map[string]any{"status": resp.StatusCode}
	var payload any
	if err := json.Unmarshal(body, &payload); err == nil {
		result["response"] = payload
	} else {
		result["response"] = string(body)
	}
	writeJSON(w, http.StatusOK, result)
}
