// Package update keeps a templar checkout current: it compares the local
// version against the target branch, pulls new releases, resyncs
// dependencies, and restarts the node process.
package update

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/go-github/v68/github"
)

// versionFile is where templar declares __version__, relative to the repo
// root. The same path is read locally and on the remote branch.
const versionFile = "src/templar/__init__.py"

// ExtractVersion pulls the __version__ assignment out of __init__.py
// content.
func ExtractVersion(content string) (string, error) {
	for _, line := range strings.Split(content, "\n") {
		if !strings.HasPrefix(strings.TrimSpace(line), "__version__") {
			continue
		}
		_, rhs, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		version := strings.Trim(strings.TrimSpace(rhs), `"'`)
		if version == "" {
			break
		}
		return version, nil
	}
	return "", fmt.Errorf("no __version__ assignment in %s", versionFile)
}

// ReadLocalVersion reads the checkout's current version from disk. It is
// re-read on every check so a completed update is observed without
// restarting the checker.
func ReadLocalVersion(repoDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(repoDir, versionFile))
	if err != nil {
		return "", fmt.Errorf("reading local version: %w", err)
	}
	return ExtractVersion(string(data))
}

// Checker reads the remote version from the target branch via the GitHub
// Contents API.
type Checker struct {
	client *github.Client
	owner  string
	repo   string
	branch string
}

// NewChecker creates a version checker for owner/repo on branch.
func NewChecker(client *github.Client, owner, repo, branch string) *Checker {
	return &Checker{client: client, owner: owner, repo: repo, branch: branch}
}

// RemoteVersion fetches and parses the version file at the target branch.
func (c *Checker) RemoteVersion(ctx context.Context) (string, error) {
	fc, _, _, err := c.client.Repositories.GetContents(ctx, c.owner, c.repo, versionFile,
		&github.RepositoryContentGetOptions{Ref: c.branch})
	if err != nil {
		return "", fmt.Errorf("fetching %s@%s: %w", versionFile, c.branch, err)
	}
	content, err := fc.GetContent()
	if err != nil {
		return "", fmt.Errorf("decoding %s@%s: %w", versionFile, c.branch, err)
	}
	return ExtractVersion(content)
}

// NewerThan reports whether remote is a strictly higher semantic version
// than local.
func NewerThan(remote, local string) (bool, error) {
	remoteV, err := semver.NewVersion(remote)
	if err != nil {
		return false, fmt.Errorf("remote version %q: %w", remote, err)
	}
	localV, err := semver.NewVersion(local)
	if err != nil {
		return false, fmt.Errorf("local version %q: %w", local, err)
	}
	return remoteV.GreaterThan(localV), nil
}
