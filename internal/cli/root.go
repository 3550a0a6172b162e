// Package cli implements the stackit command tree.
package cli

import (
	"errors"
	"fmt"
	"io/fs"

	"stackit/internal/config"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags and the configuration they resolve to.
type RootOptions struct {
	EnvFile string

	// LoadConfig reads configuration after the env file is applied.
	LoadConfig func() (*config.Config, error)
	Config     *config.Config
}

// NewRootCommand creates the root command for the StackIt CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{LoadConfig: config.LoadConfig})
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stackit",
		Short: "StackIt - a question and answer forum",
		Long:  "Runs the StackIt API and its maintenance tasks: migrations, demo data, the tag catalog and admin roles.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.EnvFile != "" {
				if err := godotenv.Load(opts.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return fmt.Errorf("load %s: %w", opts.EnvFile, err)
				}
			}
			cfg, err := opts.LoadConfig()
			if err != nil {
				return err
			}
			opts.Config = cfg
			return nil
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file applied before reading configuration")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewTagsCommand(opts))
	cmd.AddCommand(NewAdminCommand(opts))

	return cmd
}
