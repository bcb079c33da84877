package app

import (
	"context"

	"github.com/tplr-ai/templar-ops/internal/pipeline/domain"
)

// StepFn is an in-process pipeline stage.
type StepFn func(ctx context.Context) (string, error)

// CanonicalActions builds the standard verification pipeline: write the env
// file, install dependencies, lint, format check, tests with coverage, and
// coverage upload. env is applied to every command step so the test suite
// sees the R2 credentials, and reportPath is where pytest writes the XML
// coverage report.
func CanonicalActions(writeEnv, uploadCoverage StepFn, env []string, reportPath string) []Action {
	return []Action{
		InProcess("write env file", writeEnv),
		Command(domain.Step{
			Name: "install dependencies",
			Argv: []string{"uv", "sync", "--extra", "all"},
			Env:  env,
		}),
		Command(domain.Step{
			Name: "lint",
			Argv: []string{"uv", "run", "ruff", "check", "."},
			Env:  env,
		}),
		Command(domain.Step{
			Name: "format check",
			Argv: []string{"uv", "run", "ruff", "format", "--check", "."},
			Env:  env,
		}),
		Command(domain.Step{
			Name: "tests",
			Argv: []string{
				"uv", "run", "pytest",
				"--cov=src/templar",
				"--cov-report=xml:" + reportPath,
				"tests/",
			},
			Env: env,
		}),
		InProcess("upload coverage", uploadCoverage),
	}
}
