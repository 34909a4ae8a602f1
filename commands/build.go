package commands

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/c360studio/semdraft/build"
	"github.com/c360studio/semdraft/export"
	"github.com/c360studio/semdraft/notify"
	"github.com/c360studio/semdraft/scoring"
)

func newBuildCommand(app *App) *cobra.Command {
	var unit int

	cmd := &cobra.Command{
		Use:   "build <slug>",
		Short: "Run the chapter build pipeline",
		Long: `Generates chapters sequentially with bounded retries, scores every
draft, and on full success walks the project through quality gates
and final assembly. --unit builds a single chapter instead. A halted
run reports exactly which unit and which scoring dimensions fell
short; resume by re-running build after addressing the cause.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			slug := args[0]
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			// The archive must exist before the llm client is built so
			// generation calls are recorded to it.
			nc := app.connectNATS()
			if nc != nil {
				defer nc.Close()
			}
			store := app.openArchive(ctx, nc)

			hub := notify.NewHub(app.logger)
			defer hub.Close()

			events, cancel := hub.Subscribe(256)
			printerDone := make(chan struct{})
			go func() {
				defer close(printerDone)
				for ev := range events {
					printEvent(out, ev)
				}
			}()

			if nc != nil {
				bridge, err := notify.NewNATSBridge(nc, app.logger)
				if err == nil {
					go func() { _ = bridge.Run(ctx, hub) }()
				}
			}

			opts := []build.Option{
				build.WithHub(hub),
				build.WithLogger(app.logger),
				build.WithAssembler(export.NewAssembler(app.manager)),
				build.WithMaxAttempts(app.cfg.Build.MaxAttempts),
			}
			if store != nil {
				opts = append(opts, build.WithArchive(store))
			}
			orch := build.NewOrchestrator(app.manager, app.BuildGenerator(), opts...)

			// Drain the event printer before writing the summary so the two
			// never interleave on the same writer.
			if unit >= 0 {
				res, err := orch.RunUnit(ctx, slug, unit)
				cancel()
				<-printerDone
				if err != nil {
					return err
				}
				return printUnitResult(out, res)
			}

			report, err := orch.RunPipeline(ctx, slug)
			cancel()
			<-printerDone
			if err != nil {
				var genErr *build.GenerationError
				if errors.As(err, &genErr) {
					return fmt.Errorf("generation halted at chapter %d after %d attempts: %w",
						genErr.Index, genErr.Attempts, genErr.Err)
				}
				return err
			}
			return printPipelineReport(out, report)
		},
	}

	cmd.Flags().IntVar(&unit, "unit", -1, "Build only the chapter with this index")

	return cmd
}

func printUnitResult(out io.Writer, res *build.UnitResult) error {
	if res.State == build.UnitFailed {
		return fmt.Errorf("chapter %d settled failed after %d attempts:\n%s",
			res.Index, res.Attempts, scoreDetail(res.Score))
	}
	fmt.Fprintf(out, "Chapter %d passed (%d attempts)\n", res.Index, res.Attempts)
	return nil
}

func printPipelineReport(out io.Writer, report *build.PipelineReport) error {
	if report.Halted {
		fmt.Fprintf(out, "\nPipeline halted: %s\n", report.HaltReason)
		if report.FailedUnit != nil {
			if res := unitResult(report, *report.FailedUnit); res != nil {
				fmt.Fprintln(out, scoreDetail(res.Score))
			}
		}
		return fmt.Errorf("pipeline halted for review: %s", report.HaltReason)
	}

	fmt.Fprintf(out, "\nBuild complete: %d chapters, phase %s\n", len(report.Units), report.Phase)
	if report.Document != nil {
		fmt.Fprintf(out, "Document score %d (%d words, ~%d pages)\n",
			report.Document.Score.Total, report.Document.WordCount, report.Document.Pages)
	}
	if report.AssembledPath != "" {
		fmt.Fprintf(out, "Assembled: %s\n", report.AssembledPath)
	}
	return nil
}

func unitResult(report *build.PipelineReport, index int) *build.UnitResult {
	for i := range report.Units {
		if report.Units[i].Index == index {
			return &report.Units[i]
		}
	}
	return nil
}

// scoreDetail renders the per-dimension breakdown a reviewer needs to act
// on a failed unit.
func scoreDetail(s *scoring.Result) string {
	if s == nil {
		return "no score recorded"
	}
	detail := fmt.Sprintf("score %d/100 (length %d, structure %d, density %d, specificity %d)",
		s.Total, s.Length, s.Structure, s.Density, s.Specificity)
	if s.Feedback != "" {
		detail += "\n" + s.Feedback
	}
	return detail
}

func printEvent(out io.Writer, ev notify.Event) {
	switch ev.Type {
	case notify.EventUnitStarted:
		fmt.Fprintf(out, "chapter %d: generating (attempt %d)\n", deref(ev.Unit), ev.Attempt)
	case notify.EventUnitScored:
		fmt.Fprintf(out, "chapter %d: scored %d (%s)\n", deref(ev.Unit), deref(ev.Score), ev.Bucket)
	case notify.EventUnitRetry:
		fmt.Fprintf(out, "chapter %d: retrying, %s\n", deref(ev.Unit), ev.Reason)
	case notify.EventUnitPassed:
		fmt.Fprintf(out, "chapter %d: passed\n", deref(ev.Unit))
	case notify.EventUnitFailed:
		fmt.Fprintf(out, "chapter %d: FAILED, %s\n", deref(ev.Unit), ev.Reason)
	case notify.EventPhaseAdvanced:
		fmt.Fprintf(out, "phase: %s\n", ev.Phase)
	case notify.EventPipelineHalted:
		fmt.Fprintf(out, "pipeline halted: %s\n", ev.Reason)
	}
}

func deref(p *int) int {
	if p == nil {
		return -1
	}
	return *p
}
