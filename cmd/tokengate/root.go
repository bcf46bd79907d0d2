package main

import (
	"net/http"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/internal/httpclient"
	"github.com/tokengate/tokengate/token"
	"github.com/tokengate/tokengate/token/introspect"
	"github.com/tokengate/tokengate/token/jwt"
	"github.com/tokengate/tokengate/token/keys"
)

var rootCmd = &cobra.Command{
	Use:           "tokengate",
	Short:         "OAuth token verification, exchange and login tooling",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := zerolog.ParseLevel(config.GetEnv("LOG_LEVEL", "info"))
		if err != nil {
			return err
		}
		zerolog.SetGlobalLevel(level)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd, loginCmd, validatorCmd)
}

// setup loads the configuration and the outbound HTTP client shared by all
// subcommands.
func setup() (*config.Config, *http.Client, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, nil, err
	}
	httpClient, err := httpclient.New(cfg)
	if err != nil {
		return nil, nil, err
	}
	return cfg, httpClient, nil
}

// newVerifier picks the verification strategy from the configuration:
// introspection for opaque tokens, local JWT verification otherwise.
func newVerifier(cfg *config.Config, httpClient *http.Client) token.Verifier {
	if cfg.VerifierKind == config.VerifierJWT {
		return jwt.NewVerifier(keys.NewClient(cfg.JWKSURL(), httpClient), cfg.Issuer, cfg.Audience)
	}
	return introspect.NewVerifier(cfg.IntrospectionURL(), cfg.ClientID, cfg.ClientSecret, httpClient)
}
