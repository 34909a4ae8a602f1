package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/c360studio/semdraft/project"
)

func newStatusCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "status [slug]",
		Short: "Show project status",
		Long: `Without a slug, lists every project under the state root. With one,
shows the full lifecycle state: phase, outline and lock, per-chapter
scores, the document review, and version history.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			if len(args) == 0 {
				return listProjects(ctx, out, app)
			}

			p, err := app.manager.Load(ctx, args[0])
			if err != nil {
				return err
			}
			printProject(out, p)
			return nil
		},
	}
}

func listProjects(ctx context.Context, out io.Writer, app *App) error {
	result, err := app.manager.List(ctx)
	if err != nil {
		return err
	}

	if len(result.Projects) == 0 {
		fmt.Fprintln(out, "No projects. Start one with: semdraft idea <slug> --title <t> --text <idea>")
	}
	for _, p := range result.Projects {
		lock := " "
		if p.Locked() {
			lock = "L"
		}
		fmt.Fprintf(out, "%s %-24s %-20s v%d  %s\n", lock, p.Slug, p.Phase, p.Version, p.Title)
	}
	for _, err := range result.Errors {
		fmt.Fprintf(out, "! %v\n", err)
	}
	return nil
}

func printProject(out io.Writer, p *project.Project) {
	fmt.Fprintf(out, "%s (%s)\n", p.Title, p.Slug)
	fmt.Fprintf(out, "Phase:   %s\n", p.Phase)
	fmt.Fprintf(out, "Depth:   %s\n", p.DepthMode)
	fmt.Fprintf(out, "Version: %d\n", p.Version)

	if len(p.Features) > 0 {
		fmt.Fprintf(out, "Features: %d selected\n", len(p.Features))
	}

	if p.Outline != nil {
		state := "draft"
		switch {
		case p.Locked():
			state = "locked " + p.Outline.LockedHash[:12]
		case p.Outline.Approved:
			state = "approved"
		}
		fmt.Fprintf(out, "\nOutline (%s, by %s):\n", state, p.Outline.GeneratedBy)
		printSections(out, p.Outline.Sections)
	}

	if len(p.Chapters) > 0 {
		fmt.Fprintln(out, "\nChapters:")
		for _, ch := range p.Chapters {
			score := "  -"
			if ch.Score != nil {
				score = fmt.Sprintf("%3d (%s)", ch.Score.Total, ch.Score.Bucket)
			}
			fmt.Fprintf(out, "  %2d. %-40s %-12s %s\n", ch.Index+1, ch.Title, ch.Status, score)
		}
	}

	if p.Review != nil {
		fmt.Fprintf(out, "\nDocument review: %d (%s)", p.Review.Score, p.Review.Bucket)
		if p.Review.Approved {
			fmt.Fprint(out, ", operator approved")
		}
		fmt.Fprintln(out)
		for _, g := range p.Review.Gates {
			mark := "pass"
			if !g.Passed {
				mark = "FAIL"
			}
			fmt.Fprintf(out, "  %-16s %s  %s\n", g.Name, mark, g.Detail)
		}
	}

	if p.AssembledPath != "" {
		fmt.Fprintf(out, "\nAssembled: %s\n", p.AssembledPath)
	}

	if len(p.VersionHistory) > 0 {
		fmt.Fprintln(out, "\nVersion history:")
		for _, v := range p.VersionHistory {
			fmt.Fprintf(out, "  v%d %s: %s\n", v.Version, v.UnlockedAt.Format("2006-01-02 15:04"), v.Reason)
		}
	}
}
