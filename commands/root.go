// Package commands implements the semdraft CLI: one cobra subcommand per
// lifecycle operation, sharing an App that holds the resolved
// configuration and lazily built collaborators.
package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/c360studio/semdraft/build"
	"github.com/c360studio/semdraft/config"
	"github.com/c360studio/semdraft/llm"
	"github.com/c360studio/semdraft/model"
	"github.com/c360studio/semdraft/project"
)

// App carries the state shared by every subcommand.
type App struct {
	rootDir  string
	logLevel string

	cfg     *config.Config
	logger  *slog.Logger
	manager *project.Manager

	client *llm.Client

	// Test overrides. When set they replace the llm-backed generators.
	textGen  project.TextGenerator
	buildGen build.Generator
}

// Option configures the App before the command tree is built.
type Option func(*App)

// WithTextGenerator overrides the catalog/outline text generator.
func WithTextGenerator(gen project.TextGenerator) Option {
	return func(a *App) { a.textGen = gen }
}

// WithBuildGenerator overrides the chapter generator.
func WithBuildGenerator(gen build.Generator) Option {
	return func(a *App) { a.buildGen = gen }
}

// NewRootCommand builds the semdraft command tree.
func NewRootCommand(opts ...Option) *cobra.Command {
	app := &App{}
	for _, opt := range opts {
		opt(app)
	}

	cmd := &cobra.Command{
		Use:   "semdraft",
		Short: "Guided requirements document builder",
		Long: `Semdraft walks a project idea through feature discovery, outline
approval, and chapter generation, gating every phase on explicit
approval or quality thresholds. Project state lives in .semdraft/
under the state root; generation runs against the models configured
in semdraft.yaml.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.initialize()
		},
	}

	cmd.PersistentFlags().StringVar(&app.rootDir, "root", ".", "State root directory (holds .semdraft/)")
	cmd.PersistentFlags().StringVar(&app.logLevel, "log-level", "", "Log level (debug, info, warn, error); overrides config")

	cmd.AddCommand(
		newIdeaCommand(app),
		newFeaturesCommand(app),
		newOutlineCommand(app),
		newBuildCommand(app),
		newStatusCommand(app),
		newAdvanceCommand(app),
		newUnlockCommand(app),
		newWatchCommand(app),
		newVersionCommand(),
	)

	return cmd
}

// initialize loads config, configures logging, and creates the project
// manager. Runs once before any subcommand.
func (a *App) initialize() error {
	cfg, err := config.NewLoader(slog.Default()).Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	level := a.logLevel
	if level == "" {
		level = cfg.Log.Level
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLevel(level),
	}))
	slog.SetDefault(logger)

	a.cfg = cfg
	a.logger = logger
	a.manager = project.NewManager(a.rootDir)
	return nil
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Client returns the llm client, built on first use from the configured
// model registry.
func (a *App) Client() *llm.Client {
	if a.client == nil {
		registry := model.NewDefaultRegistry()
		if rc := a.cfg.LLM.RegistryConfig(); rc != nil {
			registry.MergeFromConfig(rc)
		}
		opts := []llm.ClientOption{llm.WithLogger(a.logger)}
		if store := llm.GlobalCallStore(); store != nil {
			opts = append(opts, llm.WithCallStore(store))
		}
		a.client = llm.NewClient(registry, opts...)
	}
	return a.client
}

// TextGenerator returns the generator for catalog and outline calls.
func (a *App) TextGenerator() project.TextGenerator {
	if a.textGen != nil {
		return a.textGen
	}
	return a.Client()
}

// BuildGenerator returns the generator for chapter drafting.
func (a *App) BuildGenerator() build.Generator {
	if a.buildGen != nil {
		return a.buildGen
	}
	return build.NewLLMGenerator(a.Client())
}
