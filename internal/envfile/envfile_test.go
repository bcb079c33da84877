package envfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tplr-ai/templar-ops/internal/r2"
)

func testLookup() r2.Lookup {
	return func(key string) (string, bool) {
		// Deterministic value derived from the key itself.
		return "val-" + strings.ToLower(key), true
	}
}

func TestRender_OrderAndCount(t *testing.T) {
	content, err := Render(testLookup())
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	if len(lines) != 12 {
		t.Fatalf("rendered %d lines, want 12", len(lines))
	}
	for i, line := range lines {
		wantPrefix := Keys[i] + "="
		if !strings.HasPrefix(line, wantPrefix) {
			t.Errorf("line %d = %q, want prefix %q", i+1, line, wantPrefix)
		}
	}

	// Gradients group must come before the dataset group.
	gradIdx := strings.Index(content, "R2_GRADIENTS_ACCOUNT_ID")
	dataIdx := strings.Index(content, "R2_DATASET_ACCOUNT_ID")
	if gradIdx > dataIdx {
		t.Error("gradients group should precede dataset group")
	}
}

func TestRender_MissingKey(t *testing.T) {
	lookup := func(key string) (string, bool) {
		if key == "R2_DATASET_BUCKET_NAME" {
			return "", false
		}
		return "x", true
	}

	_, err := Render(lookup)
	var missing *MissingKeyError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingKeyError, got %v", err)
	}
	if missing.Key != "R2_DATASET_BUCKET_NAME" {
		t.Errorf("missing key = %q, want R2_DATASET_BUCKET_NAME", missing.Key)
	}
}

func TestParse_RoundTrip(t *testing.T) {
	content, err := Render(testLookup())
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}

	pairs, err := Parse(content)
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(pairs) != len(Keys) {
		t.Fatalf("parsed %d pairs, want %d", len(pairs), len(Keys))
	}
	for i, pair := range pairs {
		if pair[0] != Keys[i] {
			t.Errorf("pair %d key = %q, want %q", i, pair[0], Keys[i])
		}
	}
}

func TestParse_SkipsCommentsAndBlanks(t *testing.T) {
	pairs, err := Parse("# header\n\nFOO=bar\n  # indented comment\nBAZ=qux=quux\n")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if len(pairs) != 2 {
		t.Fatalf("parsed %d pairs, want 2", len(pairs))
	}
	if pairs[1][1] != "qux=quux" {
		t.Errorf("value with '=' parsed as %q, want qux=quux", pairs[1][1])
	}
}

func TestParse_Malformed(t *testing.T) {
	if _, err := Parse("FOO=bar\nnot a pair\n"); err == nil {
		t.Error("expected error for malformed line")
	}
}

func TestVerify(t *testing.T) {
	content, err := Render(testLookup())
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if err := Verify(content); err != nil {
		t.Errorf("Verify() on rendered content: %v", err)
	}

	// Swapping two entries breaks the order property.
	lines := strings.SplitAfter(content, "\n")
	lines[0], lines[1] = lines[1], lines[0]
	if err := Verify(strings.Join(lines, "")); err == nil {
		t.Error("expected Verify to reject out-of-order entries")
	}

	// Dropping an entry breaks the count property.
	if err := Verify(strings.Join(lines[1:], "")); err == nil {
		t.Error("expected Verify to reject missing entries")
	}
}

func TestWriteAndDrift(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")

	content, err := Render(testLookup())
	if err != nil {
		t.Fatalf("Render() error: %v", err)
	}
	if err := Write(path, content); err != nil {
		t.Fatalf("Write() error: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("env file mode = %o, want 600", perm)
	}

	diff, err := Drift(path, content)
	if err != nil {
		t.Fatalf("Drift() error: %v", err)
	}
	if diff != "" {
		t.Errorf("expected no drift, got:\n%s", diff)
	}

	// Mutate one value on disk and expect the drifted line in the diff.
	mutated := strings.Replace(content, "val-r2_dataset_bucket_name", "rotated", 1)
	if err := os.WriteFile(path, []byte(mutated), 0o600); err != nil {
		t.Fatalf("rewriting env file: %v", err)
	}

	diff, err = Drift(path, content)
	if err != nil {
		t.Fatalf("Drift() error: %v", err)
	}
	if !strings.Contains(diff, "-R2_DATASET_BUCKET_NAME=rotated") {
		t.Errorf("drift diff missing mutated line:\n%s", diff)
	}
	if !strings.Contains(diff, "+R2_DATASET_BUCKET_NAME=val-r2_dataset_bucket_name") {
		t.Errorf("drift diff missing expected line:\n%s", diff)
	}
}
