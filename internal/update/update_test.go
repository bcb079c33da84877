package update

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestExtractVersion(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
		wantErr bool
	}{
		{
			name:    "double quotes",
			content: "# comment\n__version__ = \"0.2.52\"\n",
			want:    "0.2.52",
		},
		{
			name:    "single quotes",
			content: "__version__ = '1.0.0'\n",
			want:    "1.0.0",
		},
		{
			name:    "surrounding code",
			content: "import os\n\n__version__ = \"0.3.0\"\n\n__all__ = []\n",
			want:    "0.3.0",
		},
		{
			name:    "missing assignment",
			content: "import os\n",
			wantErr: true,
		},
		{
			name:    "empty value",
			content: "__version__ = \"\"\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractVersion(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestReadLocalVersion(t *testing.T) {
	repoDir := t.TempDir()
	initPath := filepath.Join(repoDir, "src", "templar", "__init__.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(initPath), 0o755))
	require.NoError(t, os.WriteFile(initPath, []byte("__version__ = \"0.2.52\"\n"), 0o644))

	got, err := ReadLocalVersion(repoDir)
	require.NoError(t, err)
	assert.Equal(t, "0.2.52", got)

	_, err = ReadLocalVersion(t.TempDir())
	assert.Error(t, err)
}

func TestNewerThan(t *testing.T) {
	tests := []struct {
		remote, local string
		want          bool
	}{
		{"0.2.53", "0.2.52", true},
		{"0.2.52", "0.2.52", false},
		{"0.2.51", "0.2.52", false},
		{"1.0.0", "0.9.9", true},
	}

	for _, tt := range tests {
		got, err := NewerThan(tt.remote, tt.local)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "NewerThan(%s, %s)", tt.remote, tt.local)
	}

	_, err := NewerThan("not-a-version", "0.2.52")
	assert.Error(t, err)
}

// fakeSource returns a fixed remote version.
type fakeSource struct {
	version string
	err     error
}

func (f fakeSource) RemoteVersion(context.Context) (string, error) {
	return f.version, f.err
}

// newTestUpdater builds an updater over a temp repo with a scripted
// Commander and a no-op restart.
func newTestUpdater(t *testing.T, remote string, script func(dir string, argv ...string) (string, error)) (*Updater, *[]string, string) {
	t.Helper()

	repoDir := t.TempDir()
	initPath := filepath.Join(repoDir, "src", "templar", "__init__.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(initPath), 0o755))
	require.NoError(t, os.WriteFile(initPath, []byte("__version__ = \"0.2.52\"\n"), 0o644))

	var calls []string
	u := New(fakeSource{version: remote}, nil, repoDir, "main", "", time.Hour, zap.NewNop())
	u.run = func(_ context.Context, dir string, argv ...string) (string, error) {
		calls = append(calls, strings.Join(argv, " "))
		return script(dir, argv...)
	}
	u.restart = func() error { return nil }
	return u, &calls, repoDir
}

func TestTryUpdate_UpToDate(t *testing.T) {
	u, calls, _ := newTestUpdater(t, "0.2.52", func(string, ...string) (string, error) {
		return "", nil
	})

	require.NoError(t, u.TryUpdate(context.Background()))
	assert.Empty(t, *calls, "no commands should run when already current")
}

func TestTryUpdate_PullsAndSyncs(t *testing.T) {
	u, calls, _ := newTestUpdater(t, "0.2.53", func(_ string, argv ...string) (string, error) {
		return "", nil // clean tree, successful pull and sync
	})

	require.NoError(t, u.TryUpdate(context.Background()))

	got := *calls
	require.Len(t, got, 3)
	assert.Equal(t, "git status --porcelain", got[0])
	assert.Equal(t, "git pull --rebase origin main", got[1])
	assert.Equal(t, "uv sync --extra all", got[2])
}

func TestTryUpdate_DirtyTreeRefuses(t *testing.T) {
	u, calls, _ := newTestUpdater(t, "0.2.53", func(_ string, argv ...string) (string, error) {
		if argv[1] == "status" {
			return " M src/templar/comms.py", nil
		}
		return "", nil
	})

	err := u.TryUpdate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dirty")
	assert.Len(t, *calls, 1, "nothing past the status check should run")
}

func TestTryUpdate_PullFailureWithoutStagerErrors(t *testing.T) {
	u, _, _ := newTestUpdater(t, "0.2.53", func(_ string, argv ...string) (string, error) {
		if argv[1] == "pull" {
			return "fatal: couldn't find remote ref", errors.New("exit status 1")
		}
		return "", nil
	})

	err := u.TryUpdate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "pulling main")
}

// dirStager stages from a fixed local directory.
type dirStager struct{ dir string }

func (s dirStager) Stage(context.Context) (string, func(), error) {
	return s.dir, func() {}, nil
}

func TestTryUpdate_PullFailureFallsBackToStage(t *testing.T) {
	stage := t.TempDir()
	stagedInit := filepath.Join(stage, "src", "templar", "__init__.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(stagedInit), 0o755))
	require.NoError(t, os.WriteFile(stagedInit, []byte("__version__ = \"0.2.53\"\n"), 0o644))

	u, _, repoDir := newTestUpdater(t, "0.2.53", func(_ string, argv ...string) (string, error) {
		if argv[1] == "pull" {
			return "merge conflict", errors.New("exit status 1")
		}
		return "", nil
	})
	u.stager = dirStager{dir: stage}

	require.NoError(t, u.TryUpdate(context.Background()))

	// The staged tree must have been copied over the checkout.
	got, err := ReadLocalVersion(repoDir)
	require.NoError(t, err)
	assert.Equal(t, "0.2.53", got)
}

func TestCopyTree_SkipsGit(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(src, ".git"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(src, ".git", "HEAD"), []byte("ref: refs/heads/main"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(src, "pyproject.toml"), []byte("[project]"), 0o644))

	require.NoError(t, copyTree(src, dst))

	_, err := os.Stat(filepath.Join(dst, "pyproject.toml"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dst, ".git"))
	assert.True(t, os.IsNotExist(err), ".git should not be copied")
}
