package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/utafrali/storefront/internal/app"
)

const adminPasswordEnv = "STOREFRONT_ADMIN_PASSWORD"

func newCreateAdminCommand() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		Long: "Creates an administrator account with an empty wishlist. The password may be\n" +
			"given with --password or through the " + adminPasswordEnv + " environment variable.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if password == "" {
				password = os.Getenv(adminPasswordEnv)
			}
			if password == "" {
				return errors.New("a password is required: pass --password or set " + adminPasswordEnv)
			}

			cfg, log, err := bootstrap()
			if err != nil {
				return err
			}
			id, err := app.CreateAdmin(cmd.Context(), cfg, log, email, password)
			if err != nil {
				return fmt.Errorf("create admin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created admin %s (%s)\n", email, id)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "administrator email address")
	cmd.Flags().StringVar(&password, "password", "", "administrator password")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}
