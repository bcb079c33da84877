// Package main is the tplr-ops CLI: the task runner, env file generator,
// pipeline runner, and updater for templar nodes.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tplr-ai/templar-ops/internal/config"
	"github.com/tplr-ai/templar-ops/internal/envfile"
	"github.com/tplr-ai/templar-ops/internal/logging"
	"github.com/tplr-ai/templar-ops/internal/pipeline/adapters/command"
	"github.com/tplr-ai/templar-ops/internal/r2"
	"github.com/tplr-ai/templar-ops/internal/recipe"
)

var (
	verbose    bool
	configPath string

	cfg    config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tplr-ops",
	Short: "Operations toolkit for templar nodes",
	Long: `tplr-ops wraps the day-to-day operations of a templar checkout:
task recipes (lint, fix), R2 credential env files, the verification
pipeline, coverage upload, artifact stores, and auto-update.

Run without arguments to list available recipes.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		var err error
		logger, err = logging.New(verbose)
		if err != nil {
			return err
		}
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(*cobra.Command, []string) {
		if logger != nil {
			//nolint:errcheck // Sync to stderr can fail on some platforms, not actionable
			_ = logger.Sync()
		}
	},
	RunE: func(*cobra.Command, []string) error {
		return listRecipes()
	},
}

// listRecipes is the default action, mirroring a bare `just` invocation.
func listRecipes() error {
	reg, err := recipe.NewRegistry(cfg.Recipes)
	if err != nil {
		return err
	}

	fmt.Println("Available recipes:")
	for _, rec := range reg.List() {
		fmt.Printf("    %-12s # %s\n", rec.Name, rec.Description)
	}
	return nil
}

// stepEnv renders the credential environment for recipe and pipeline steps.
// Steps run without credentials when the environment has none.
func stepEnv() []string {
	content, err := envfile.Render(r2.OSLookup)
	if err != nil {
		logger.Debug("r2 credentials not fully set, steps run without them", zap.Error(err))
		return nil
	}
	pairs, err := envfile.Parse(content)
	if err != nil {
		return nil
	}
	env := make([]string, 0, len(pairs))
	for _, p := range pairs {
		env = append(env, p[0]+"="+p[1])
	}
	return env
}

func runRecipe(cmd *cobra.Command, name string, watch bool) error {
	reg, err := recipe.NewRegistry(cfg.Recipes)
	if err != nil {
		return err
	}
	rec, err := reg.Resolve(name)
	if err != nil {
		return err
	}

	runner := recipe.NewRunner(command.New(""), stepEnv(), logger)
	if watch {
		return runner.Watch(cmd.Context(), rec, cfg.WatchPaths)
	}
	return runner.Run(cmd.Context(), rec)
}

func newRecipeCmd(name, short string) *cobra.Command {
	var watch bool
	c := &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRecipe(cmd, name, watch)
		},
	}
	c.Flags().BoolVarP(&watch, "watch", "w", false, "rerun on file changes")
	return c
}

var runCmd = &cobra.Command{
	Use:   "run [recipe]",
	Short: "Run a recipe by name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		watch, _ := cmd.Flags().GetBool("watch")
		return runRecipe(cmd, args[0], watch)
	},
}

func main() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath, "path to tplr-ops.yaml")

	runCmd.Flags().BoolP("watch", "w", false, "rerun on file changes")

	rootCmd.AddCommand(
		newRecipeCmd("lint", "Run the linter with auto-fix, then the formatter"),
		newRecipeCmd("fix", "Alias for lint"),
		runCmd,
		newEnvCmd(),
		newPipelineCmd(),
		newCoverageCmd(),
		newArtifactsCmd(),
		newUpdateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %s\n", err)
		os.Exit(1)
	}
}

// getEnvOrFlag prefers the flag value, falling back to an env var.
func getEnvOrFlag(flagValue, envKey string) string {
	if flagValue != "" {
		return flagValue
	}
	return os.Getenv(envKey)
}

// splitRepoSlug parses an owner/name slug.
func splitRepoSlug(slug string) (string, string, error) {
	owner, name, found := strings.Cut(slug, "/")
	if !found || owner == "" || name == "" {
		return "", "", fmt.Errorf("invalid repo slug %q, expected owner/name", slug)
	}
	return owner, name, nil
}
