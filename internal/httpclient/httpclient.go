// Package httpclient builds the outbound HTTP client shared by the identity
// provider and downstream API calls.
package httpclient

import (
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/tokengate/tokengate/internal/config"
)

const defaultTimeout = 30 * time.Second

// New returns an *http.Client honouring the configured SSL verification
// toggle and optional custom CA bundle (for self-signed test providers).
func New(cfg *config.Config) (*http.Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()

	switch {
	case cfg.CABundlePath != "":
		pem, err := os.ReadFile(cfg.CABundlePath)
		if err != nil {
			return nil, fmt.Errorf("read CA bundle: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA bundle %s", cfg.CABundlePath)
		}
		transport.TLSClientConfig = &tls.Config{RootCAs: pool}
		log.Info().Str("ca_bundle", cfg.CABundlePath).Msg("using custom CA bundle")

	case !cfg.VerifySSL:
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
		log.Warn().Msg("SSL verification is disabled; use only in testing environments")
	}

	return &http.Client{
		Timeout:   defaultTimeout,
		Transport: transport,
	}, nil
}
