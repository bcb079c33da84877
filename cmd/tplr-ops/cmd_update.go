package main

import (
	"os"

	"github.com/google/go-github/v68/github"
	"github.com/spf13/cobra"

	"github.com/tplr-ai/templar-ops/internal/update"
)

func newUpdateCmd() *cobra.Command {
	var (
		repoDir string
		once    bool
	)

	c := &cobra.Command{
		Use:   "update",
		Short: "Keep the templar checkout current with the target branch",
		Long: `Compares the checkout's version against the target branch and, when a
newer release exists, pulls it, resynchronizes dependencies, and restarts
the node process (via PM2 when present, otherwise by re-exec).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, repo, err := splitRepoSlug(cfg.Update.Repo)
			if err != nil {
				return err
			}

			client := github.NewClient(nil)
			if token := os.Getenv("GITHUB_TOKEN"); token != "" {
				client = client.WithAuthToken(token)
			}

			checker := update.NewChecker(client, owner, repo, cfg.Update.Branch)
			stager := update.NewArchiveStager(client, owner, repo, cfg.Update.Branch)
			updater := update.New(
				checker,
				stager,
				repoDir,
				cfg.Update.Branch,
				cfg.Update.ProcessName,
				cfg.Update.Interval,
				logger,
			)

			if once {
				return updater.TryUpdate(cmd.Context())
			}
			return updater.Run(cmd.Context())
		},
	}

	c.Flags().StringVar(&repoDir, "repo-dir", ".", "path to the templar checkout")
	c.Flags().BoolVar(&once, "once", false, "run a single update check and exit")
	return c
}
