package main

import (
	"context"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/config"
	"github.com/MarkoPoloResearchLab/auctionhouse/internal/webapi"
	"github.com/spf13/cobra"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the auction pages and credit ledger as a JSON API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, cfg, func(ctx context.Context, app *application) error {
				return webapi.Run(ctx, webapi.Config{
					ListenAddr:     cfg.ListenAddr,
					AllowedOrigins: cfg.AllowedOrigins,
				}, webapi.Dependencies{
					Pages:  app.pages,
					Chrome: app.chrome,
					Logger: app.logger,
				})
			})
		},
	}
	cmd.Flags().String(flagListenAddr, "", "HTTP listen address (default :8090)")
	cmd.Flags().String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	return cmd
}
