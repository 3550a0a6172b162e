package cli

import (
	"fmt"

	"stackit/internal/bootstrap"
	"stackit/internal/cache"
	"stackit/internal/models"
	"stackit/internal/repository"
	"stackit/internal/service"

	"github.com/spf13/cobra"
)

// NewAdminCommand creates the admin command with promote and demote.
func NewAdminCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Grant or revoke the admin role",
	}
	cmd.AddCommand(newSetRoleCommand(rootOpts, "promote", models.RoleAdmin))
	cmd.AddCommand(newSetRoleCommand(rootOpts, "demote", models.RoleUser))
	cmd.AddCommand(newListAdminsCommand(rootOpts))
	return cmd
}

func newListAdminsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List admin accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := bootstrap.InitRuntime(cmd.Context(), rootOpts.Config, bootstrap.Options{SkipRedis: true})
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			var admins []models.User
			if err := rt.DB.WithContext(cmd.Context()).
				Where("role = ?", models.RoleAdmin).
				Order("username").
				Find(&admins).Error; err != nil {
				return err
			}
			if len(admins) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no admins")
				return nil
			}
			for _, u := range admins {
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", u.ID, u.Username, u.Email)
			}
			return nil
		},
	}
}

func newSetRoleCommand(rootOpts *RootOptions, use string, role models.Role) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <username>",
		Short: "Set the role of a user to " + string(role),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Redis is needed so the cached user record is invalidated.
			rt, err := bootstrap.InitRuntime(cmd.Context(), rootOpts.Config, bootstrap.Options{})
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			users := service.NewUserService(repository.NewUserRepository(rt.DB, cache.NewStore(rt.Redis)))
			user, err := users.SetRole(cmd.Context(), args[0], role)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", user.Username, user.Role)
			return nil
		},
	}
}
