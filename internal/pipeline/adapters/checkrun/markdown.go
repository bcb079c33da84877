package checkrun

import (
	"fmt"
	"strings"
	"time"

	"github.com/tplr-ai/templar-ops/internal/pipeline/domain"
)

// CheckRunMarkdown produces the check run body: a summary line plus a
// collapsible output section per step.
func CheckRunMarkdown(run domain.Run) string {
	success, failed, skipped := domain.CountByStatus(run.Results)

	var sb strings.Builder
	fmt.Fprintf(&sb, "## Pipeline — %s/%s\n\n", run.Context.Owner, run.Context.Repo)
	fmt.Fprintf(&sb, "Run `%s` on `%s` (%s)\n\n", run.ID, run.Context.Branch, shortSHA(run.Context.HeadSHA))
	fmt.Fprintf(&sb, "### Summary\n")
	fmt.Fprintf(&sb, "Ran %d step(s): %d succeeded, %d failed, %d skipped\n\n",
		len(run.Results), success, failed, skipped)
	fmt.Fprintf(&sb, "### Output\n")

	for i, r := range run.Results {
		if i > 0 {
			sb.WriteString("\n")
		}

		fmt.Fprintf(&sb, "<details><summary>%s — %s (%s)</summary>\n\n",
			r.Step.Name, statusWord(r.Status), r.Duration.Round(time.Millisecond))

		switch {
		case r.Status == domain.StatusSkipped:
			sb.WriteString("Skipped: an earlier step failed.\n")
		case r.Output == "" && r.Err == nil:
			sb.WriteString("No output.\n")
		default:
			if r.Err != nil {
				fmt.Fprintf(&sb, "**Error:** %s\n\n", r.Err)
			}
			if r.Output != "" {
				fmt.Fprintf(&sb, "```\n%s\n```\n", r.Output)
			}
		}

		sb.WriteString("\n</details>\n")
	}

	return sb.String()
}

// CommentMarkdown produces the PR summary comment: a status table and the
// first failure's output, if any.
func CommentMarkdown(run domain.Run) string {
	var sb strings.Builder
	sb.WriteString("## tplr-ops Pipeline Report\n\n")

	sb.WriteString("| Step | Status | Duration |\n")
	sb.WriteString("|------|--------|----------|\n")
	for _, r := range run.Results {
		fmt.Fprintf(&sb, "| %s | %s | %s |\n",
			r.Step.Name, statusWord(r.Status), r.Duration.Round(time.Millisecond))
	}
	sb.WriteString("\n")

	if failure, ok := domain.FirstFailure(run.Results); ok {
		fmt.Fprintf(&sb, "### First failure: %s\n", failure.Step.Name)
		sb.WriteString("<details><summary>View output</summary>\n\n")
		if failure.Err != nil {
			fmt.Fprintf(&sb, "**Error:** %s\n\n", failure.Err)
		}
		if failure.Output != "" {
			fmt.Fprintf(&sb, "```\n%s\n```\n", failure.Output)
		}
		sb.WriteString("</details>\n")
	} else {
		sb.WriteString("All steps passed.\n")
	}

	return sb.String()
}

func statusWord(s domain.Status) string {
	switch s {
	case domain.StatusSuccess:
		return "Passed"
	case domain.StatusFailed:
		return "Failed"
	case domain.StatusSkipped:
		return "Skipped"
	default:
		return "Unknown"
	}
}

func shortSHA(sha string) string {
	if len(sha) > 7 {
		return sha[:7]
	}
	return sha
}
