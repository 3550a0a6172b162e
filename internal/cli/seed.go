package cli

import (
	"errors"
	"fmt"

	"stackit/internal/bootstrap"
	"stackit/internal/seed"

	"github.com/spf13/cobra"
)

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		opts  seed.Options
		force bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Populate the database with demo users and questions",
		Long: `Loads the tag catalog, then creates demo users and question threads with
answers, votes, comments and accepted answers. Every demo account uses the
password ` + seed.DemoPassword + `.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if rootOpts.Config.IsProduction() && !force {
				return errors.New("refusing to seed a production database without --force")
			}
			rt, err := bootstrap.InitRuntime(cmd.Context(), rootOpts.Config, bootstrap.Options{SkipRedis: true})
			if err != nil {
				return err
			}
			defer rt.Close(cmd.Context())

			report, err := seed.NewSeeder(rt.DB, opts).Run(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "users=%d questions=%d answers=%d comments=%d votes=%d accepted=%d new_tags=%d\n",
				report.Users, report.Questions, report.Answers, report.Comments, report.Votes, report.Accepted, report.NewTags)
			return nil
		},
	}

	cmd.Flags().IntVar(&opts.Users, "users", 20, "number of demo users")
	cmd.Flags().IntVar(&opts.Questions, "questions", 50, "number of demo questions")
	cmd.Flags().IntVar(&opts.MaxAnswers, "max-answers", 4, "maximum answers per question")
	cmd.Flags().IntVar(&opts.MaxDays, "max-days", 90, "spread creation times over this many days")
	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "delete users and content first")
	cmd.Flags().BoolVar(&opts.FastHash, "fast-hash", false, "hash the demo password at minimum bcrypt cost")
	cmd.Flags().Int64Var(&opts.Seed, "seed", 0, "random seed; 0 picks one")
	cmd.Flags().BoolVar(&force, "force", false, "allow seeding when APP_ENV is production")

	return cmd
}
