package cli

import (
	"fmt"

	"stackit/internal/bootstrap"
	"stackit/internal/cache"
	"stackit/internal/repository"
	"stackit/internal/seed"
	"stackit/internal/service"

	"github.com/spf13/cobra"
)

// NewTagsCommand creates the tags command.
func NewTagsCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tags",
		Short: "Manage the tag catalog",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "load",
		Short: "Upsert the built-in tag catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.InitRuntime(cmd.Context(), rootOpts.Config, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			tags := service.NewTagService(repository.NewTagRepository(rt.DB, cache.NewStore(rt.Redis)))
			created, err := seed.LoadTags(cmd.Context(), tags)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded tag catalog: %d new\n", created)
			return nil
		},
	})

	return cmd
}
