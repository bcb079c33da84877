package domain

import "time"

// Status represents the outcome of a single pipeline step.
type Status int

const (
	StatusSuccess Status = iota // Step exited zero
	StatusFailed                // Step exited non-zero or could not start
	StatusSkipped               // Not run because an earlier step failed
)

// String returns the lower-case status name used in logs and reports.
func (s Status) String() string {
	switch s {
	case StatusSuccess:
		return "success"
	case StatusFailed:
		return "failed"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// StepResult records one step's execution.
type StepResult struct {
	Step     Step
	Status   Status
	Duration time.Duration
	Output   string // Combined stdout/stderr, trimmed
	Err      error  // Non-nil when Status == StatusFailed
}

// CountByStatus returns counts of results grouped by status.
func CountByStatus(results []StepResult) (success, failed, skipped int) {
	for _, r := range results {
		switch r.Status {
		case StatusSuccess:
			success++
		case StatusFailed:
			failed++
		case StatusSkipped:
			skipped++
		}
	}
	return
}

// FirstFailure returns the first failed result, if any.
func FirstFailure(results []StepResult) (StepResult, bool) {
	for _, r := range results {
		if r.Status == StatusFailed {
			return r, true
		}
	}
	return StepResult{}, false
}

// StepLabel creates a display name for a step within a run.
// Example: "tests (tplr-ai/templar@a1b2c3d)".
func StepLabel(stepName string, ctx RunContext) string {
	sha := ctx.HeadSHA
	if len(sha) > 7 {
		sha = sha[:7]
	}
	return stepName + " (" + ctx.Owner + "/" + ctx.Repo + "@" + sha + ")"
}
