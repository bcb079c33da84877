package domain

import (
	"errors"
	"fmt"
	"strings"
)

// StepError reports a step that exited non-zero or could not start.
type StepError struct {
	Step     string
	ExitCode int // -1 when the process never started
	Cause    error
}

func (e *StepError) Error() string {
	if e.ExitCode < 0 {
		return fmt.Sprintf("step %s: %v", e.Step, e.Cause)
	}
	return fmt.Sprintf("step %s: exit code %d", e.Step, e.ExitCode)
}

func (e *StepError) Unwrap() error { return e.Cause }

// NewStepError creates a StepError for a step that ran and failed.
func NewStepError(step string, exitCode int, cause error) *StepError {
	return &StepError{Step: step, ExitCode: exitCode, Cause: cause}
}

// NotFoundError represents a resource that was not found at a specific ref.
type NotFoundError struct {
	Resource string
	Ref      string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found at ref %s", e.Resource, e.Ref)
}

// NewNotFoundError creates a new NotFoundError.
func NewNotFoundError(resource, ref string) *NotFoundError {
	return &NotFoundError{Resource: resource, Ref: ref}
}

// IsNotFound checks if an error is or wraps a NotFoundError. It also checks
// for common "not found" messages from external systems (GitHub API, S3,
// filesystem) that arrive untyped.
func IsNotFound(err error) bool {
	if err == nil {
		return false
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, pat := range []string{"not found", "no such file or directory", "404", "nosuchkey"} {
		if strings.Contains(msg, pat) {
			return true
		}
	}
	return false
}
