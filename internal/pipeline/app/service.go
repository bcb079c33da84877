// Package app orchestrates pipeline runs: ordered steps, stop on first
// failure, results reported through the configured reporter.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tplr-ai/templar-ops/internal/pipeline/domain"
)

// Executor runs a single external command step.
type Executor interface {
	Execute(ctx context.Context, step domain.Step) (domain.StepResult, error)
}

// Reporter publishes a finished run.
type Reporter interface {
	PublishCheckRun(ctx context.Context, run domain.Run) error
	UpsertComment(ctx context.Context, run domain.Run, prNumber int) error
}

// Action is one pipeline entry: an external command step, or an in-process
// function for work that has no useful external form (env file generation,
// coverage upload).
type Action struct {
	Name string
	Step *domain.Step
	Fn   func(ctx context.Context) (output string, err error)
}

// Command wraps a domain.Step as an Action.
func Command(step domain.Step) Action {
	return Action{Name: step.Name, Step: &step}
}

// InProcess wraps a function as an Action.
func InProcess(name string, fn func(ctx context.Context) (string, error)) Action {
	return Action{Name: name, Fn: fn}
}

// Service runs pipelines.
type Service struct {
	executor Executor
	logger   *zap.Logger
}

// New creates a pipeline service.
func New(executor Executor, logger *zap.Logger) *Service {
	return &Service{executor: executor, logger: logger}
}

// Run executes actions in order. The first failure stops execution; the
// remaining actions are recorded as skipped. The returned error reflects
// infrastructure problems only — step failures live in the run's results.
func (s *Service) Run(ctx context.Context, runCtx domain.RunContext, actions []Action) (domain.Run, error) {
	run := domain.Run{
		ID:      uuid.NewString(),
		Context: runCtx,
		Started: time.Now(),
	}

	s.logger.Info("pipeline run started",
		zap.String("run_id", run.ID),
		zap.String("repo", runCtx.Owner+"/"+runCtx.Repo),
		zap.String("sha", runCtx.HeadSHA),
		zap.Int("steps", len(actions)))

	stopped := false
	for _, action := range actions {
		if stopped {
			run.Results = append(run.Results, domain.StepResult{
				Step:   stepFor(action),
				Status: domain.StatusSkipped,
			})
			continue
		}

		res, err := s.execute(ctx, action)
		if err != nil {
			return run, fmt.Errorf("executing %s: %w", action.Name, err)
		}
		run.Results = append(run.Results, res)

		s.logger.Info("pipeline step finished",
			zap.String("run_id", run.ID),
			zap.String("step", action.Name),
			zap.String("status", res.Status.String()),
			zap.Duration("duration", res.Duration))

		if res.Status == domain.StatusFailed {
			s.logger.Warn("pipeline stopping on first failure",
				zap.String("run_id", run.ID),
				zap.String("step", action.Name),
				zap.Error(res.Err))
			stopped = true
		}
	}

	return run, nil
}

func (s *Service) execute(ctx context.Context, action Action) (domain.StepResult, error) {
	if action.Step != nil {
		return s.executor.Execute(ctx, *action.Step)
	}
	if action.Fn == nil {
		return domain.StepResult{}, fmt.Errorf("action %s has neither step nor function", action.Name)
	}

	start := time.Now()
	output, err := action.Fn(ctx)
	elapsed := time.Since(start)

	res := domain.StepResult{
		Step:     stepFor(action),
		Duration: elapsed,
		Output:   output,
	}
	if err != nil {
		res.Status = domain.StatusFailed
		res.Err = domain.NewStepError(action.Name, -1, err)
		return res, nil
	}
	res.Status = domain.StatusSuccess
	return res, nil
}

func stepFor(action Action) domain.Step {
	if action.Step != nil {
		return *action.Step
	}
	return domain.Step{Name: action.Name}
}

// Report publishes the run as a check run and, when prNumber is positive,
// as a PR summary comment.
func (s *Service) Report(ctx context.Context, reporter Reporter, run domain.Run, prNumber int) error {
	if err := reporter.PublishCheckRun(ctx, run); err != nil {
		return err
	}
	if prNumber > 0 {
		return reporter.UpsertComment(ctx, run, prNumber)
	}
	return nil
}
