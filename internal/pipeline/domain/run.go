package domain

import "time"

// RunContext holds the repository context a pipeline run reports against.
type RunContext struct {
	Owner   string
	Repo    string
	Branch  string
	HeadSHA string
}

// Step is one external command in the pipeline, executed in order.
type Step struct {
	Name string
	Argv []string
	// Env entries (KEY=VALUE) applied on top of the process environment.
	Env []string
	// Optional per-step timeout; zero means no deadline beyond the run's.
	Timeout time.Duration
}

// Run is an executed pipeline: identity plus per-step results.
type Run struct {
	ID      string
	Context RunContext
	Started time.Time
	Results []StepResult
}

// Failed reports whether any step failed.
func (r Run) Failed() bool {
	for _, res := range r.Results {
		if res.Status == StatusFailed {
			return true
		}
	}
	return false
}
