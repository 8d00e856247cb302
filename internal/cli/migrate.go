package cli

import (
	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
)

func newMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending migrations and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			if err := app.Migrate(cmd.Context(), cfg, log); err != nil {
				return err
			}
			log.Info("migrations applied")
			return nil
		},
	}
}
