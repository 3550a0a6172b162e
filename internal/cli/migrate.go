package cli

import (
	"fmt"
	"strconv"

	"stackit/internal/bootstrap"
	"stackit/internal/database"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command and its subcommands.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply AutoMigrate and pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.InitRuntime(cmd.Context(), rootOpts.Config, bootstrap.Options{SkipRedis: true})
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			if err := database.ApplySchema(cmd.Context(), rt.DB); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "List applied and pending SQL migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.InitRuntime(cmd.Context(), rootOpts.Config, bootstrap.Options{SkipRedis: true})
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			status, err := database.GetSchemaStatus(cmd.Context(), rt.DB)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "driver=%s applied=%d pending=%d\n", status.Driver, len(status.AppliedVersions), len(status.PendingMigrations))
			for _, m := range status.PendingMigrations {
				fmt.Fprintf(cmd.OutOrStdout(), "pending: %s\n", m.String())
			}
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down <version>",
		Short: "Roll back one SQL migration",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid version %q: %w", args[0], err)
			}
			rt, err := bootstrap.InitRuntime(cmd.Context(), rootOpts.Config, bootstrap.Options{SkipRedis: true})
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			if err := database.RollbackMigration(cmd.Context(), rt.DB, version); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back migration %d\n", version)
			return nil
		},
	})

	return cmd
}
