package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tplr-ai/templar-ops/internal/coverage"
	"github.com/tplr-ai/templar-ops/internal/envfile"
	"github.com/tplr-ai/templar-ops/internal/pipeline/adapters/checkrun"
	"github.com/tplr-ai/templar-ops/internal/pipeline/adapters/command"
	"github.com/tplr-ai/templar-ops/internal/pipeline/app"
	"github.com/tplr-ai/templar-ops/internal/pipeline/domain"
	"github.com/tplr-ai/templar-ops/internal/r2"
)

func newPipelineCmd() *cobra.Command {
	var (
		sha      string
		branch   string
		prNumber int
		report   bool
	)

	c := &cobra.Command{
		Use:   "pipeline",
		Short: "Run the verification pipeline (env, install, lint, format, tests, coverage)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			owner, repo, err := splitRepoSlug(cfg.Update.Repo)
			if err != nil {
				return err
			}
			runCtx := domain.RunContext{
				Owner:   owner,
				Repo:    repo,
				Branch:  branch,
				HeadSHA: getEnvOrFlag(sha, "GITHUB_SHA"),
			}

			writeEnv := func(context.Context) (string, error) {
				content, err := envfile.Render(r2.OSLookup)
				if err != nil {
					return "", err
				}
				if err := envfile.Write(cfg.EnvFile, content); err != nil {
					return "", err
				}
				return "wrote " + cfg.EnvFile, nil
			}

			uploadCoverage := func(ctx context.Context) (string, error) {
				rep, err := coverage.ParseFile(cfg.Coverage.ReportPath)
				if err != nil {
					return "", err
				}
				client := coverage.NewClient(cfg.Coverage.ServiceURL, logger)
				meta := coverage.UploadMeta{CommitSHA: runCtx.HeadSHA, Branch: runCtx.Branch}
				if err := client.Upload(ctx, cfg.Coverage.ReportPath, meta); err != nil {
					return "", err
				}
				return fmt.Sprintf("coverage %.1f%% uploaded", rep.Percent()), nil
			}

			actions := app.CanonicalActions(writeEnv, uploadCoverage, stepEnv(), cfg.Coverage.ReportPath)

			svc := app.New(command.New(""), logger)
			run, err := svc.Run(cmd.Context(), runCtx, actions)
			if err != nil {
				return err
			}

			success, failed, skipped := domain.CountByStatus(run.Results)
			fmt.Printf("pipeline %s: %d succeeded, %d failed, %d skipped\n",
				run.ID, success, failed, skipped)

			if report {
				reporter, err := appReporter()
				if err != nil {
					return err
				}
				if err := svc.Report(cmd.Context(), reporter, run, prNumber); err != nil {
					return err
				}
			}

			if failure, ok := domain.FirstFailure(run.Results); ok {
				return failure.Err
			}
			return nil
		},
	}

	c.Flags().StringVar(&sha, "sha", "", "head commit SHA (or GITHUB_SHA env var)")
	c.Flags().StringVar(&branch, "branch", "main", "branch under test")
	c.Flags().IntVar(&prNumber, "pr", 0, "pull request number to comment on")
	c.Flags().BoolVar(&report, "report", false, "publish results to GitHub")
	return c
}

// appReporter builds the GitHub App-authenticated reporter from the
// CI secret environment.
func appReporter() (*checkrun.Adapter, error) {
	appID, err := envInt64("TPLR_OPS_APP_ID")
	if err != nil {
		return nil, err
	}
	installID, err := envInt64("TPLR_OPS_INSTALLATION_ID")
	if err != nil {
		return nil, err
	}
	keyPath := getEnvOrFlag("", "TPLR_OPS_PRIVATE_KEY")
	if keyPath == "" {
		return nil, fmt.Errorf("TPLR_OPS_PRIVATE_KEY not set")
	}

	adapter, err := checkrun.NewFromApp(appID, installID, keyPath)
	if err != nil {
		return nil, err
	}
	logger.Debug("github reporter configured",
		zap.Int64("app_id", appID),
		zap.Int64("installation_id", installID))
	return adapter, nil
}

func envInt64(key string) (int64, error) {
	raw := getEnvOrFlag("", key)
	if raw == "" {
		return 0, fmt.Errorf("%s not set", key)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func newCoverageCmd() *cobra.Command {
	coverageCmd := &cobra.Command{
		Use:   "coverage",
		Short: "Inspect and upload coverage reports",
	}

	var sha, branch string
	uploadCmd := &cobra.Command{
		Use:   "upload",
		Short: "Upload the XML coverage report to the tracking service",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := coverage.NewClient(cfg.Coverage.ServiceURL, logger)
			meta := coverage.UploadMeta{
				CommitSHA: getEnvOrFlag(sha, "GITHUB_SHA"),
				Branch:    branch,
			}
			return client.Upload(cmd.Context(), cfg.Coverage.ReportPath, meta)
		},
	}
	uploadCmd.Flags().StringVar(&sha, "sha", "", "commit SHA (or GITHUB_SHA env var)")
	uploadCmd.Flags().StringVar(&branch, "branch", "main", "branch name")

	summaryCmd := &cobra.Command{
		Use:   "summary",
		Short: "Print the coverage summary as markdown",
		Args:  cobra.NoArgs,
		RunE: func(*cobra.Command, []string) error {
			rep, err := coverage.ParseFile(cfg.Coverage.ReportPath)
			if err != nil {
				return err
			}
			fmt.Print(rep.Markdown())
			return nil
		},
	}

	coverageCmd.AddCommand(uploadCmd, summaryCmd)
	return coverageCmd
}
