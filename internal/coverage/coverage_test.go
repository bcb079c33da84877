package coverage

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestParseFile(t *testing.T) {
	rep, err := ParseFile(filepath.Join("testdata", "coverage.xml"))
	require.NoError(t, err)

	assert.InDelta(t, 0.85, rep.LineRate, 1e-9)
	assert.Equal(t, int64(850), rep.LinesCovered)
	assert.Equal(t, int64(1000), rep.LinesValid)
	require.Len(t, rep.Packages, 2)
	assert.Equal(t, "templar", rep.Packages[0].Name)
	assert.InDelta(t, 85.0, rep.Percent(), 1e-9)
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("not xml at all"))
	assert.Error(t, err)

	_, err = Parse([]byte(`<coverage line-rate="1.5"/>`))
	assert.Error(t, err, "line-rate above 1 should be rejected")
}

func TestMarkdown_WorstPackageFirst(t *testing.T) {
	rep, err := ParseFile(filepath.Join("testdata", "coverage.xml"))
	require.NoError(t, err)

	md := rep.Markdown()
	assert.Contains(t, md, "### Coverage: 85.0%")
	assert.Contains(t, md, "850 of 1000 lines covered")

	schemasIdx := strings.Index(md, "templar.schemas")
	templarIdx := strings.Index(md, "| templar |")
	require.NotEqual(t, -1, schemasIdx)
	require.NotEqual(t, -1, templarIdx)
	assert.Less(t, schemasIdx, templarIdx, "lowest-coverage package should be listed first")
}

func TestUpload(t *testing.T) {
	var gotCommit, gotBranch, gotReport string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		gotCommit = r.FormValue("commit")
		gotBranch = r.FormValue("branch")

		file, _, err := r.FormFile("report")
		require.NoError(t, err)
		defer file.Close()
		data, err := io.ReadAll(file)
		require.NoError(t, err)
		gotReport = string(data)

		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "coverage.xml")
	require.NoError(t, os.WriteFile(path, []byte("<coverage/>"), 0o644))

	client := NewClient(srv.URL, zap.NewNop())
	err := client.Upload(context.Background(), path, UploadMeta{CommitSHA: "abc123", Branch: "main"})
	require.NoError(t, err)

	assert.Equal(t, "abc123", gotCommit)
	assert.Equal(t, "main", gotBranch)
	assert.Equal(t, "<coverage/>", gotReport)
}

func TestUpload_ServerErrorFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "quota exceeded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "coverage.xml")
	require.NoError(t, os.WriteFile(path, []byte("<coverage/>"), 0o644))

	client := NewClient(srv.URL, zap.NewNop())
	err := client.Upload(context.Background(), path, UploadMeta{CommitSHA: "abc123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestUpload_MissingReport(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", zap.NewNop())
	err := client.Upload(context.Background(), filepath.Join(t.TempDir(), "nope.xml"), UploadMeta{})
	require.Error(t, err)
}

func TestUpload_NoServiceURL(t *testing.T) {
	client := NewClient("", zap.NewNop())
	err := client.Upload(context.Background(), "coverage.xml", UploadMeta{})
	require.Error(t, err)
}
