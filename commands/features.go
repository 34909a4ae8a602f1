package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/semdraft/project"
)

func newFeaturesCommand(app *App) *cobra.Command {
	var selectIDs string

	cmd := &cobra.Command{
		Use:   "features <slug>",
		Short: "Show the feature catalog or record a selection",
		Long: `Without --select, generates (once) and prints the project's feature
catalog: candidate features grouped by category, split across the
functional and architectural layers. With --select, validates the
comma-separated feature ids against the catalog and records the
selection.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			catalog, err := app.manager.EnsureCatalog(ctx, slug, app.TextGenerator())
			if err != nil {
				return err
			}

			if selectIDs == "" {
				printCatalog(out, catalog)
				return nil
			}

			ids := splitIDs(selectIDs)
			p, err := app.manager.SelectFeatures(ctx, slug, ids)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Selected %d features:\n", len(p.Features))
			for _, f := range p.Features {
				fmt.Fprintf(out, "  %-28s %s (%s)\n", f.ID, f.Name, f.Layer)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&selectIDs, "select", "", "Comma-separated feature ids to select")

	return cmd
}

func splitIDs(s string) []string {
	var ids []string
	for _, id := range strings.Split(s, ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

func printCatalog(out io.Writer, catalog *project.Catalog) {
	fmt.Fprintf(out, "Feature catalog (source: %s)\n", catalog.Source)
	for _, cat := range catalog.Categories {
		fmt.Fprintf(out, "\n%s [%s]\n", cat.Name, project.LayerFor(cat.Name))
		for _, f := range cat.Features {
			fmt.Fprintf(out, "  %-28s %s\n", f.ID, f.Description)
		}
	}
	fmt.Fprintf(out, "\nSelect with: semdraft features <slug> --select id,id,...\n")
}
