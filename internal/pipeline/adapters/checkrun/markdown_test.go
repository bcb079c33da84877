package checkrun

import (
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tplr-ai/templar-ops/internal/pipeline/domain"
)

var update = flag.Bool("update", false, "update golden files")

func sampleRun() domain.Run {
	ctx := domain.RunContext{
		Owner:   "tplr-ai",
		Repo:    "templar",
		Branch:  "main",
		HeadSHA: "a1b2c3d4e5f6a7b8",
	}
	return domain.Run{
		ID:      "run-0001",
		Context: ctx,
		Results: []domain.StepResult{
			{
				Step:     domain.Step{Name: "write env file"},
				Status:   domain.StatusSuccess,
				Duration: 12 * time.Millisecond,
			},
			{
				Step:     domain.Step{Name: "install"},
				Status:   domain.StatusSuccess,
				Duration: 4200 * time.Millisecond,
				Output:   "Resolved 148 packages in 1.2s",
			},
			{
				Step:     domain.Step{Name: "lint"},
				Status:   domain.StatusFailed,
				Duration: 800 * time.Millisecond,
				Output:   "src/templar/comms.py:42:1: F401 'os' imported but unused",
				Err:      domain.NewStepError("lint", 1, errors.New("exit status 1")),
			},
			{
				Step:   domain.Step{Name: "tests"},
				Status: domain.StatusSkipped,
			},
		},
	}
}

func TestCheckRunMarkdown_Golden(t *testing.T) {
	got := CheckRunMarkdown(sampleRun())
	compareOrUpdateGolden(t, filepath.Join("testdata", "golden", "check-run.md"), got)
}

func TestCommentMarkdown_Golden(t *testing.T) {
	got := CommentMarkdown(sampleRun())
	compareOrUpdateGolden(t, filepath.Join("testdata", "golden", "pr-comment.md"), got)
}

func TestCommentMarkdown_AllPassed(t *testing.T) {
	run := sampleRun()
	run.Results = run.Results[:2]

	got := CommentMarkdown(run)
	if want := "All steps passed.\n"; !strings.Contains(got, want) {
		t.Errorf("expected %q in comment:\n%s", want, got)
	}
}

// compareOrUpdateGolden either updates the golden file or compares against it.
func compareOrUpdateGolden(t *testing.T, path, actual string) {
	t.Helper()

	if *update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatalf("creating golden dir: %v", err)
		}
		if err := os.WriteFile(path, []byte(actual), 0o644); err != nil {
			t.Fatalf("writing golden file %s: %v", path, err)
		}
		t.Logf("updated golden file: %s", path)
		return
	}

	expected, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading golden file %s (run with -update to create): %v", path, err)
	}

	if string(expected) != actual {
		t.Errorf("output does not match golden file %s\n\n--- expected ---\n%s\n--- actual ---\n%s",
			path, string(expected), actual)
	}
}
