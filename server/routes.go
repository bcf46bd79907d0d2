package server

import (
	"net/http"

	"github.com/tokengate/tokengate/internal/metrics"
)

// Route path constants
// All application routes are defined here to ensure consistency and prevent typos
const (
	RouteTools     = "/tools"
	RouteToolsCall = "/tools/call"
	RouteHealthz   = "/healthz"
	RouteMetrics   = "/metrics"
)

func (s *Server) initRoutes() {
	s.RegisterRouteFunc("GET "+RouteHealthz, s.HealthzHandler())
	s.RegisterRouteHandler("GET "+RouteMetrics, metrics.Handler())

	// Protected tool catalog
	s.RegisterRouteFunc("GET "+RouteTools, ChainMiddleware(s.ListToolsHandler(), s.APIMiddleware()...))
	s.RegisterRouteFunc("POST "+RouteToolsCall, ChainMiddleware(s.CallToolHandler(), s.APIMiddleware()...))
}

// APIMiddleware is the chain applied to every protected API route.
func (s *Server) APIMiddleware() []func(http.HandlerFunc) http.HandlerFunc {
	return []func(http.HandlerFunc) http.HandlerFunc{
		s.RecoverMiddleware,
		s.LoggingMiddleware,
		s.RequireAuth(),
	}
}
