package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the notifier consumer",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	log.Info("starting storefront service",
		slog.String("environment", cfg.Environment),
		slog.String("version", cfg.ServiceVersion),
		slog.Int("http_port", cfg.HTTPPort),
	)

	application, err := app.NewApp(cfg, log)
	if err != nil {
		return err
	}
	if err := application.Run(cmd.Context()); err != nil {
		return err
	}

	log.Info("storefront service stopped")
	return nil
}
