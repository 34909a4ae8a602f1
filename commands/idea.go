package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/semdraft/ingest"
	"github.com/c360studio/semdraft/project"
	"github.com/c360studio/semdraft/scoring"
)

func newIdeaCommand(app *App) *cobra.Command {
	var (
		title   string
		text    string
		fromURL string
		depth   string
	)

	cmd := &cobra.Command{
		Use:   "idea <slug>",
		Short: "Capture a project idea",
		Long: `Creates the project (or replaces the idea of an existing one during
idea intake) from literal text or from a web page. Captured ideas are
verbatim: semdraft never rewrites them.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]
			ctx := cmd.Context()

			if text != "" && fromURL != "" {
				return fmt.Errorf("--text and --from-url are mutually exclusive")
			}

			idea := text
			source := ""
			if fromURL != "" {
				result, err := ingest.Capture(ctx, ingest.NewFetcher(), ingest.NewConverter(), fromURL)
				if err != nil {
					return fmt.Errorf("capture idea from %s: %w", fromURL, err)
				}
				idea = result.Markdown
				source = fromURL
				if title == "" {
					title = result.Title
				}
			}
			if strings.TrimSpace(idea) == "" {
				return fmt.Errorf("an idea is required: pass --text or --from-url")
			}

			var p *project.Project
			var err error
			if app.manager.Exists(slug) {
				p, err = app.manager.SetIdea(ctx, slug, idea, source)
			} else {
				if title == "" {
					return fmt.Errorf("--title is required when creating a project")
				}
				p, err = app.manager.Create(ctx, slug, title, idea)
				if err == nil && source != "" {
					p, err = app.manager.SetIdea(ctx, slug, idea, source)
				}
				if err == nil {
					mode := depth
					if mode == "" {
						mode = app.cfg.Build.DepthMode
					}
					p, err = app.manager.SetDepthMode(ctx, slug, scoring.ResolveDepthMode(mode))
				}
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Project %s (%s)\n", p.Slug, p.Title)
			fmt.Fprintf(out, "Phase: %s\n", p.Phase)
			fmt.Fprintf(out, "Idea captured: %d words", len(strings.Fields(p.Idea)))
			if p.IdeaSource != "" {
				fmt.Fprintf(out, " from %s", p.IdeaSource)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Project display name")
	cmd.Flags().StringVar(&text, "text", "", "Idea text")
	cmd.Flags().StringVar(&fromURL, "from-url", "", "Capture the idea from a web page")
	cmd.Flags().StringVar(&depth, "depth", "", "Depth mode for new projects (light, standard, professional, enterprise)")

	return cmd
}
