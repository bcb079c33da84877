// Package command executes pipeline steps as external processes.
package command

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/tplr-ai/templar-ops/internal/pipeline/domain"
)

// Adapter implements the pipeline's step executor over os/exec.
type Adapter struct {
	// Dir is the working directory for every step; empty means inherit.
	Dir string
}

// New creates a new command adapter.
func New(dir string) *Adapter {
	return &Adapter{Dir: dir}
}

// Execute runs one step and returns its result. A non-zero exit or a start
// failure produces StatusFailed with a StepError; the adapter itself only
// errors on misuse (empty argv).
func (a *Adapter) Execute(ctx context.Context, step domain.Step) (domain.StepResult, error) {
	if len(step.Argv) == 0 {
		return domain.StepResult{}, fmt.Errorf("step %s: empty argv", step.Name)
	}

	binary, err := exec.LookPath(step.Argv[0])
	if err != nil {
		return failed(step, 0, domain.NewStepError(step.Name, -1, err)), nil
	}

	if step.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, step.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary, step.Argv[1:]...)
	cmd.Dir = a.Dir
	cmd.Env = append(os.Environ(), step.Env...)

	var combined bytes.Buffer
	cmd.Stdout = &combined
	cmd.Stderr = &combined

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	output := strings.TrimSpace(combined.String())

	if runErr != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(runErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		res := failed(step, elapsed, domain.NewStepError(step.Name, code, runErr))
		res.Output = output
		return res, nil
	}

	return domain.StepResult{
		Step:     step,
		Status:   domain.StatusSuccess,
		Duration: elapsed,
		Output:   output,
	}, nil
}

func failed(step domain.Step, elapsed time.Duration, err *domain.StepError) domain.StepResult {
	return domain.StepResult{
		Step:     step,
		Status:   domain.StatusFailed,
		Duration: elapsed,
		Err:      err,
	}
}
