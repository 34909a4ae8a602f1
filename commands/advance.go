package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAdvanceCommand(app *App) *cobra.Command {
	var approveReview bool

	cmd := &cobra.Command{
		Use:   "advance <slug>",
		Short: "Advance the project to its next phase",
		Long: `Moves the project to the immediate successor phase if that phase's
precondition holds; anything else is rejected with the unmet
requirement. --approve-review first records operator acceptance of a
document review the quality gates flagged, which is the precondition
for leaving quality_gates with a sub-threshold document.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]
			ctx := cmd.Context()

			if approveReview {
				if _, err := app.manager.ApproveReview(ctx, slug); err != nil {
					return err
				}
			}

			p, err := app.manager.Advance(ctx, slug)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Advanced to %s\n", p.Phase)
			return nil
		},
	}

	cmd.Flags().BoolVar(&approveReview, "approve-review", false, "Accept a flagged document review before advancing")

	return cmd
}
