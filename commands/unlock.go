package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUnlockCommand(app *App) *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "unlock <slug>",
		Short: "Unlock the outline for editing",
		Long: `Releases the outline integrity lock: clears the hash, resets every
chapter to pending, clears the document review, rolls the phase back
to outline_generation, and appends a version history entry recording
the reason and the prior hash. The reason is mandatory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.manager.UnlockOutline(cmd.Context(), args[0], reason)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			entry := p.VersionHistory[len(p.VersionHistory)-1]
			fmt.Fprintf(out, "Outline unlocked: %q\n", entry.Reason)
			fmt.Fprintf(out, "Version %d -> %d (prior hash %s retained)\n", entry.Version-1, p.Version, entry.PriorHash)
			fmt.Fprintf(out, "Phase: %s\n", p.Phase)
			return nil
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "Why the outline must change (required)")
	_ = cmd.MarkFlagRequired("reason")

	return cmd
}
