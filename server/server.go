// Package server is the protected resource server: a small tool catalog
// gated by bearer-token verification and scope enforcement, plus the
// standalone validator handler.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/token"
)

// Exchanger mints a downstream access token for a verified subject token.
// Satisfied by exchange.Client.
type Exchanger interface {
	Exchange(ctx context.Context, subjectToken string) (string, error)
}

type Server struct {
	mux       *http.ServeMux
	routes    []string
	config    *config.Config
	verifier  token.Verifier
	exchanger Exchanger
	http      *http.Client
}

func New(cfg *config.Config, verifier token.Verifier, exchanger Exchanger, httpClient *http.Client) *Server {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	s := &Server{
		mux:       http.NewServeMux(),
		config:    cfg,
		verifier:  verifier,
		exchanger: exchanger,
		http:      httpClient,
	}

	s.initRoutes()
	s.logRoutes()

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) RegisterRouteHandler(pattern string, handler http.Handler) {
	s.routes = append(s.routes, pattern)
	s.mux.Handle(pattern, handler)
}

func (s *Server) RegisterRouteFunc(pattern string, handler func(http.ResponseWriter, *http.Request)) {
	s.routes = append(s.routes, pattern)
	s.mux.HandleFunc(pattern, handler)
}

func (s *Server) logRoutes() {
	for _, route := range s.routes {
		log.Debug().Str("route", route).Msg("registered")
	}
}

// writeJSON serialises v with the given status. Encoding failures are logged
// only; the status line is already committed.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("writing JSON response")
	}
}

// writeOAuthError emits an RFC 6750 style error body.
func writeOAuthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{
		"error":             code,
		"error_description": description,
	})
}
