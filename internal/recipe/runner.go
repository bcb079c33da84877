package recipe

import (
	"context"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/tplr-ai/templar-ops/internal/pipeline/domain"
)

// Executor runs a single command step. Satisfied by the pipeline's command
// adapter.
type Executor interface {
	Execute(ctx context.Context, step domain.Step) (domain.StepResult, error)
}

// Runner executes recipes step by step.
type Runner struct {
	exec   Executor
	env    []string
	logger *zap.Logger
}

// NewRunner creates a recipe runner. env entries (KEY=VALUE) are applied to
// every step, on top of the process environment.
func NewRunner(exec Executor, env []string, logger *zap.Logger) *Runner {
	return &Runner{exec: exec, env: env, logger: logger}
}

// Run executes every step of the recipe in order and stops on the first
// failure, returning that step's error.
func (r *Runner) Run(ctx context.Context, rec Recipe) error {
	for i, argv := range rec.Steps {
		step := domain.Step{
			Name: rec.Name + "/" + strconv.Itoa(i+1),
			Argv: argv,
			Env:  r.env,
		}

		res, err := r.exec.Execute(ctx, step)
		if err != nil {
			return fmt.Errorf("running recipe %s: %w", rec.Name, err)
		}

		r.logger.Debug("recipe step finished",
			zap.String("recipe", rec.Name),
			zap.Strings("argv", argv),
			zap.String("status", res.Status.String()),
			zap.Duration("duration", res.Duration))

		if res.Output != "" {
			fmt.Println(res.Output)
		}
		if res.Status == domain.StatusFailed {
			return res.Err
		}
	}
	return nil
}
