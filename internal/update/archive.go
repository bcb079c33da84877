package update

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	gogithub "github.com/google/go-github/v68/github"
)

// ArchiveStager downloads the repository tarball at the target branch and
// extracts it to a temp directory, for when a git pull cannot be applied.
type ArchiveStager struct {
	client *gogithub.Client
	owner  string
	repo   string
	ref    string
}

// NewArchiveStager creates a stager for owner/repo at ref.
func NewArchiveStager(client *gogithub.Client, owner, repo, ref string) *ArchiveStager {
	return &ArchiveStager{client: client, owner: owner, repo: repo, ref: ref}
}

// Stage downloads and extracts the tarball, returning the repository root
// inside the temp directory. The caller must invoke cleanup() when done.
func (s *ArchiveStager) Stage(ctx context.Context) (string, func(), error) {
	archiveURL, _, err := s.client.Repositories.GetArchiveLink(
		ctx,
		s.owner,
		s.repo,
		gogithub.Tarball,
		&gogithub.RepositoryContentGetOptions{Ref: s.ref},
		10,
	)
	if err != nil {
		return "", nil, fmt.Errorf("getting archive link: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, archiveURL.String(), http.NoBody)
	if err != nil {
		return "", nil, fmt.Errorf("creating archive request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("downloading archive: %w", err)
	}
	//nolint:errcheck // Deferred cleanup, error not actionable
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", nil, fmt.Errorf("unexpected status downloading archive: %d", resp.StatusCode)
	}

	tmpDir, err := os.MkdirTemp("", "tplr-ops-stage-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp dir: %w", err)
	}
	//nolint:errcheck // Cleanup function, error not actionable
	cleanup := func() { _ = os.RemoveAll(tmpDir) }

	if err := extractTarGz(resp.Body, tmpDir); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("extracting archive: %w", err)
	}

	// GitHub tarballs contain a single top-level directory (owner-repo-sha/).
	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		cleanup()
		return "", nil, fmt.Errorf("reading temp dir: %w", err)
	}
	if len(entries) == 0 {
		cleanup()
		return "", nil, errors.New("empty archive")
	}

	return filepath.Join(tmpDir, entries[0].Name()), cleanup, nil
}

func extractTarGz(r io.Reader, dest string) error {
	gz, err := gzip.NewReader(r)
	if err != nil {
		return fmt.Errorf("creating gzip reader: %w", err)
	}
	//nolint:errcheck // Deferred cleanup, error not actionable
	defer func() { _ = gz.Close() }()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar entry: %w", err)
		}

		if err := extractEntry(tr, header, dest); err != nil {
			return err
		}
	}
	return nil
}

//nolint:gosec // G305: Tar extraction with path validation to prevent zip-slip
func extractEntry(tr *tar.Reader, header *tar.Header, dest string) error {
	target := filepath.Join(dest, header.Name)

	if err := validateExtractPath(target, dest); err != nil {
		return err
	}

	switch header.Typeflag {
	case tar.TypeDir:
		return extractDirectory(target)
	case tar.TypeReg:
		return extractRegularFile(target, header, tr)
	}
	return nil
}

func validateExtractPath(target, dest string) error {
	if !strings.HasPrefix(filepath.Clean(target), filepath.Clean(dest)+string(os.PathSeparator)) {
		return fmt.Errorf("illegal file path in archive: %s", filepath.Base(target))
	}
	return nil
}

//nolint:gosec // G301: Standard directory permissions for extracted archives
func extractDirectory(target string) error {
	if err := os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return nil
}

//nolint:gosec // G301,G304: Extracting tar with validated paths and archive permissions
func extractRegularFile(target string, header *tar.Header, tr *tar.Reader) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	f, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}

	if _, err := io.Copy(f, tr); err != nil {
		//nolint:errcheck // Best effort cleanup on error path
		_ = f.Close()
		return fmt.Errorf("writing file: %w", err)
	}

	//nolint:errcheck // File already written successfully
	_ = f.Close()
	return nil
}

// copyTree copies src over dst, skipping dst's .git directory so the
// checkout's history survives a staged update.
func copyTree(src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		if rel == ".git" || strings.HasPrefix(rel, ".git"+string(os.PathSeparator)) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		return copyFile(path, target, info.Mode().Perm())
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("opening %s: %w", src, err)
	}
	//nolint:errcheck // Deferred cleanup, error not actionable
	defer func() { _ = in.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dst, err)
	}

	if _, err := io.Copy(out, in); err != nil {
		//nolint:errcheck // Best effort cleanup on error path
		_ = out.Close()
		return fmt.Errorf("copying to %s: %w", dst, err)
	}
	return out.Close()
}
