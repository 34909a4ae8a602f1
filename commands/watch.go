package commands

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/c360studio/semdraft/metrics"
	"github.com/c360studio/semdraft/notify"
	"github.com/c360studio/semdraft/project"
)

func newWatchCommand(app *App) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch project documents for drift and serve metrics",
		Long: `Monitors every project document under the state root, re-verifying
the outline hash whenever one changes on disk; drift on a locked
outline is surfaced immediately. Serves Prometheus metrics on the
configured address and, when NATS is configured, republishes drift
events on the draft.events subjects. Runs until interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			listenAddr := addr
			if listenAddr == "" {
				listenAddr = app.cfg.Watch.Addr
			}

			hub := notify.NewHub(app.logger)
			defer hub.Close()

			nc := app.connectNATS()
			if nc != nil {
				defer nc.Close()
				bridge, err := notify.NewNATSBridge(nc, app.logger)
				if err != nil {
					return err
				}
				go func() { _ = bridge.Run(ctx, hub) }()
			}

			reg := prometheus.NewRegistry()
			m := metrics.New(reg)
			if result, err := app.manager.List(ctx); err == nil {
				for _, p := range result.Projects {
					m.SetPhase(p.Slug, p.Phase.String())
				}
			}

			mux := http.NewServeMux()
			mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
			server := &http.Server{Addr: listenAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
			go func() {
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					app.logger.Error("Metrics server failed", "addr", listenAddr, "error", err)
				}
			}()
			defer server.Close()

			watcher, err := project.NewWatcher(project.WatcherConfig{
				Manager:       app.manager,
				Hub:           hub,
				DebounceDelay: app.cfg.Watch.Debounce,
				Logger:        app.logger,
			})
			if err != nil {
				return fmt.Errorf("create watcher: %w", err)
			}
			if err := watcher.Start(ctx); err != nil {
				return fmt.Errorf("start watcher: %w", err)
			}
			defer func() { _ = watcher.Stop() }()

			fmt.Fprintf(out, "Watching %s (metrics on %s)\n", app.manager.RootPath(), listenAddr)

			for {
				select {
				case <-ctx.Done():
					return nil
				case ev, ok := <-watcher.Events():
					if !ok {
						return nil
					}
					if ev.Err != nil {
						fmt.Fprintf(out, "DRIFT %s: %v\n", ev.Slug, ev.Err)
					} else {
						fmt.Fprintf(out, "ok    %s: %s\n", ev.Slug, ev.Path)
					}
				}
			}
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Metrics listen address (defaults to watch.addr from config)")

	return cmd
}
