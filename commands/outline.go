package commands

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/c360studio/semdraft/project"
)

func newOutlineCommand(app *App) *cobra.Command {
	var (
		approve bool
		lock    bool
	)

	cmd := &cobra.Command{
		Use:   "outline <slug>",
		Short: "Generate, approve, or lock the document outline",
		Long: `Without flags, generates the outline (replacing any unlocked one).
--approve records operator approval; --lock hashes the approved
outline, making it immutable, and creates one pending chapter per
section. Locked outlines only change after an explicit unlock.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if approve && lock {
				return fmt.Errorf("--approve and --lock are mutually exclusive")
			}

			switch {
			case approve:
				p, err := app.manager.ApproveOutline(ctx, slug)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Outline approved (%d sections)\n", len(p.Outline.Sections))
				fmt.Fprintln(out, "Lock it with: semdraft outline", slug, "--lock")
				return nil

			case lock:
				p, err := app.manager.LockOutline(ctx, slug)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Outline locked: %s\n", p.Outline.LockedHash)
				fmt.Fprintf(out, "%d chapters pending\n", len(p.Chapters))
				return nil

			default:
				p, err := app.manager.GenerateOutline(ctx, slug, app.TextGenerator())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "Outline generated by %s:\n\n", p.Outline.GeneratedBy)
				printSections(out, p.Outline.Sections)
				fmt.Fprintf(out, "\nApprove with: semdraft outline %s --approve\n", slug)
				return nil
			}
		},
	}

	cmd.Flags().BoolVar(&approve, "approve", false, "Approve the current outline")
	cmd.Flags().BoolVar(&lock, "lock", false, "Lock the approved outline")

	return cmd
}

func printSections(out io.Writer, sections []project.Section) {
	for _, s := range sections {
		fmt.Fprintf(out, "  %2d. %s\n", s.Index+1, s.Title)
	}
}
