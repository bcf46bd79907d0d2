// Package metrics exposes Prometheus counters for the verification and
// exchange paths.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels recorded on the counters below.
const (
	ResultOK           = "ok"
	ResultUnauthorized = "unauthorized"
	ResultForbidden    = "forbidden"
	ResultError        = "error"
)

var (
	// Verifications counts bearer-token verification outcomes on the
	// resource server.
	Verifications = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengate_token_verifications_total",
		Help: "Bearer token verification outcomes by result.",
	}, []string{"result"})

	// Exchanges counts RFC 8693 token-exchange outcomes.
	Exchanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tokengate_token_exchanges_total",
		Help: "RFC 8693 token exchange outcomes by result.",
	}, []string{"result"})
)

// Handler serves the Prometheus scrape endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
