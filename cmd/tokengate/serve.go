package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/tokengate/tokengate/exchange"
	"github.com/tokengate/tokengate/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the protected resource server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, httpClient, err := setup()
		if err != nil {
			return err
		}
		displayAppname("tokengate")

		var exchanger server.Exchanger
		if cfg.ThirdPartyAPIURL != "" {
			exchanger = exchange.NewClient(
				cfg.TokenURL(),
				cfg.ClientID,
				cfg.ClientSecret,
				cfg.ThirdPartyScope,
				cfg.ThirdPartyAudience,
				httpClient,
			)
		}

		srv := &http.Server{
			Addr:    cfg.ListenAddr(),
			Handler: server.New(cfg, newVerifier(cfg, httpClient), exchanger, httpClient),
		}
		return runServer(srv)
	},
}

// runServer serves until SIGINT/SIGTERM, then drains for up to 5 seconds.
func runServer(srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server.ListenAndServe: %w", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-stop:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server.Shutdown: %w", err)
	}
	log.Info().Msg("server stopped")
	return nil
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
