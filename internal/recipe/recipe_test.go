package recipe

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/tplr-ai/templar-ops/internal/config"
	"github.com/tplr-ai/templar-ops/internal/pipeline/domain"
)

func TestRegistry_ListSorted(t *testing.T) {
	reg, err := NewRegistry([]config.Recipe{
		{Name: "typecheck", Steps: [][]string{{"uv", "run", "mypy", "src"}}},
	})
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	list := reg.List()
	wantNames := []string{"fix", "lint", "typecheck"}
	if len(list) != len(wantNames) {
		t.Fatalf("got %d recipes, want %d", len(list), len(wantNames))
	}
	for i, rec := range list {
		if rec.Name != wantNames[i] {
			t.Errorf("recipe %d = %q, want %q", i, rec.Name, wantNames[i])
		}
	}
}

func TestRegistry_FixAliasesLint(t *testing.T) {
	reg, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	fix, err := reg.Resolve("fix")
	if err != nil {
		t.Fatalf("Resolve(fix) error: %v", err)
	}
	lint, err := reg.Resolve("lint")
	if err != nil {
		t.Fatalf("Resolve(lint) error: %v", err)
	}
	if fix.Name != lint.Name {
		t.Errorf("fix resolved to %q, want %q", fix.Name, lint.Name)
	}
	if len(lint.Steps) != 2 {
		t.Fatalf("lint has %d steps, want 2 (check --fix, format)", len(lint.Steps))
	}
}

func TestRegistry_UnknownRecipe(t *testing.T) {
	reg, err := NewRegistry(nil)
	if err != nil {
		t.Fatalf("NewRegistry() error: %v", err)
	}

	_, err = reg.Resolve("deploy")
	if !IsNotFound(err) {
		t.Errorf("Resolve(deploy) = %v, want NotFoundError", err)
	}
}

func TestRegistry_ShadowingBuiltinRejected(t *testing.T) {
	_, err := NewRegistry([]config.Recipe{
		{Name: "lint", Steps: [][]string{{"true"}}},
	})
	if err == nil {
		t.Error("expected error for recipe shadowing a builtin")
	}
}

// recordingExecutor records executed argvs and fails on request.
type recordingExecutor struct {
	argvs  [][]string
	failAt int // 1-based step index to fail, 0 = never
}

func (e *recordingExecutor) Execute(_ context.Context, step domain.Step) (domain.StepResult, error) {
	e.argvs = append(e.argvs, step.Argv)
	if e.failAt == len(e.argvs) {
		return domain.StepResult{
			Step:   step,
			Status: domain.StatusFailed,
			Err:    domain.NewStepError(step.Name, 2, errors.New("exit status 2")),
		}, nil
	}
	return domain.StepResult{Step: step, Status: domain.StatusSuccess}, nil
}

func TestRunner_RunsStepsInOrder(t *testing.T) {
	exec := &recordingExecutor{}
	runner := NewRunner(exec, nil, zap.NewNop())

	rec := Recipe{Name: "lint", Steps: [][]string{
		{"uv", "run", "ruff", "check", "--fix", "."},
		{"uv", "run", "ruff", "format", "."},
	}}
	if err := runner.Run(context.Background(), rec); err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	if len(exec.argvs) != 2 {
		t.Fatalf("executed %d steps, want 2", len(exec.argvs))
	}
	if exec.argvs[0][3] != "check" || exec.argvs[1][3] != "format" {
		t.Errorf("steps out of order: %v", exec.argvs)
	}
}

func TestRunner_StopsOnFailure(t *testing.T) {
	exec := &recordingExecutor{failAt: 1}
	runner := NewRunner(exec, nil, zap.NewNop())

	rec := Recipe{Name: "lint", Steps: [][]string{{"first"}, {"second"}}}
	err := runner.Run(context.Background(), rec)

	var stepErr *domain.StepError
	if !errors.As(err, &stepErr) {
		t.Fatalf("expected StepError, got %v", err)
	}
	if len(exec.argvs) != 1 {
		t.Errorf("executed %d steps after failure, want 1", len(exec.argvs))
	}
}
