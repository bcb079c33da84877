// Package checkrun reports pipeline runs back to GitHub as check runs and a
// single, updated-in-place summary comment on the pull request.
package checkrun

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v68/github"

	"github.com/tplr-ai/templar-ops/internal/pipeline/domain"
)

// commentMarker identifies the summary comment so reruns update it instead
// of stacking new ones.
const commentMarker = "<!-- tplr-ops-report -->"

// CheckName is the check run name shown on the PR checks tab.
const CheckName = "tplr-ops / pipeline"

// Adapter implements the pipeline's reporter port against the GitHub API.
type Adapter struct {
	client *github.Client
}

// New creates a reporting adapter from an already-authenticated client.
func New(client *github.Client) *Adapter {
	return &Adapter{client: client}
}

// NewFromApp creates a reporting adapter authenticated as a GitHub App
// installation.
func NewFromApp(appID, installationID int64, privateKeyPath string) (*Adapter, error) {
	itr, err := ghinstallation.NewKeyFromFile(http.DefaultTransport, appID, installationID, privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("creating installation transport: %w", err)
	}
	return New(github.NewClient(&http.Client{Transport: itr})), nil
}

// PublishCheckRun creates a completed check run for the pipeline run.
// Conclusion is "success" when every step passed, otherwise "failure".
func (a *Adapter) PublishCheckRun(ctx context.Context, run domain.Run) error {
	conclusion := "success"
	if run.Failed() {
		conclusion = "failure"
	}

	summary := CheckRunMarkdown(run)
	_, _, err := a.client.Checks.CreateCheckRun(ctx, run.Context.Owner, run.Context.Repo, github.CreateCheckRunOptions{
		Name:       CheckName,
		HeadSHA:    run.Context.HeadSHA,
		Status:     github.Ptr("completed"),
		Conclusion: github.Ptr(conclusion),
		Output: &github.CheckRunOutput{
			Title:   github.Ptr(fmt.Sprintf("pipeline %s", conclusion)),
			Summary: github.Ptr(summary),
		},
	})
	if err != nil {
		return fmt.Errorf("creating check run: %w", err)
	}
	return nil
}

// UpsertComment posts the run summary on the PR, replacing the previous
// summary comment when one exists.
func (a *Adapter) UpsertComment(ctx context.Context, run domain.Run, prNumber int) error {
	body := commentMarker + "\n" + CommentMarkdown(run)

	existingID, err := a.findMarkerComment(ctx, run.Context.Owner, run.Context.Repo, prNumber)
	if err != nil {
		return err
	}

	comment := &github.IssueComment{Body: github.Ptr(body)}
	if existingID != 0 {
		_, _, err = a.client.Issues.EditComment(ctx, run.Context.Owner, run.Context.Repo, existingID, comment)
		if err != nil {
			return fmt.Errorf("updating summary comment: %w", err)
		}
		return nil
	}

	_, _, err = a.client.Issues.CreateComment(ctx, run.Context.Owner, run.Context.Repo, prNumber, comment)
	if err != nil {
		return fmt.Errorf("creating summary comment: %w", err)
	}
	return nil
}

// findMarkerComment pages through PR comments looking for the marker.
// Returns 0 when no previous summary comment exists.
func (a *Adapter) findMarkerComment(ctx context.Context, owner, repo string, prNumber int) (int64, error) {
	opts := &github.IssueListCommentsOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		comments, resp, err := a.client.Issues.ListComments(ctx, owner, repo, prNumber, opts)
		if err != nil {
			return 0, fmt.Errorf("listing PR comments: %w", err)
		}

		for _, c := range comments {
			if strings.Contains(c.GetBody(), commentMarker) {
				return c.GetID(), nil
			}
		}

		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	return 0, nil
}
