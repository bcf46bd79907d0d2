package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/tokengate/tokengate/internal/config"
	"github.com/tokengate/tokengate/server"
	"github.com/tokengate/tokengate/token/jwt"
	"github.com/tokengate/tokengate/token/keys"
)

var validatorCmd = &cobra.Command{
	Use:   "validator",
	Short: "Run the standalone token validator service",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, httpClient, err := setup()
		if err != nil {
			return err
		}
		displayAppname("validator")

		// The validator always verifies locally against the provider's
		// published keys; introspection would defeat its purpose.
		verifier := jwt.NewVerifier(keys.NewClient(cfg.JWKSURL(), httpClient), cfg.Issuer, cfg.Audience)

		srv := &http.Server{
			Addr:    ":" + config.GetEnv("VALIDATOR_PORT", "8000"),
			Handler: server.NewValidatorMux(verifier),
		}
		return runServer(srv)
	},
}
