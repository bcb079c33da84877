// Package envfile renders and verifies the generated .env file consumed by
// the training tooling. The file carries exactly the twelve R2 credential
// variables, in a fixed order, so downstream steps and drift checks can rely
// on a byte-stable rendering.
package envfile

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pmezard/go-difflib/difflib"

	"github.com/tplr-ai/templar-ops/internal/r2"
)

// Keys is the canonical variable order: the gradients group then the dataset
// group, each ACCOUNT_ID through WRITE_SECRET_ACCESS_KEY.
var Keys = []string{
	"R2_GRADIENTS_ACCOUNT_ID",
	"R2_GRADIENTS_BUCKET_NAME",
	"R2_GRADIENTS_READ_ACCESS_KEY_ID",
	"R2_GRADIENTS_READ_SECRET_ACCESS_KEY",
	"R2_GRADIENTS_WRITE_ACCESS_KEY_ID",
	"R2_GRADIENTS_WRITE_SECRET_ACCESS_KEY",
	"R2_DATASET_ACCOUNT_ID",
	"R2_DATASET_BUCKET_NAME",
	"R2_DATASET_READ_ACCESS_KEY_ID",
	"R2_DATASET_READ_SECRET_ACCESS_KEY",
	"R2_DATASET_WRITE_ACCESS_KEY_ID",
	"R2_DATASET_WRITE_SECRET_ACCESS_KEY",
}

// MissingKeyError reports a variable required by the rendering that the
// source could not provide.
type MissingKeyError struct {
	Key string
}

func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("env file: missing value for %s", e.Key)
}

// Render produces the .env content from a lookup. Every key must resolve to
// a non-empty value; the first missing key aborts the rendering.
func Render(lookup r2.Lookup) (string, error) {
	var sb strings.Builder
	for _, key := range Keys {
		val, ok := lookup(key)
		if !ok {
			return "", &MissingKeyError{Key: key}
		}
		fmt.Fprintf(&sb, "%s=%s\n", key, val)
	}
	return sb.String(), nil
}

// RenderSet renders from an explicit credential set instead of the
// environment.
func RenderSet(set r2.Set) (string, error) {
	return Render(setLookup(set))
}

func setLookup(set r2.Set) r2.Lookup {
	values := map[string]string{
		"R2_GRADIENTS_ACCOUNT_ID":              set.Gradients.AccountID,
		"R2_GRADIENTS_BUCKET_NAME":             set.Gradients.BucketName,
		"R2_GRADIENTS_READ_ACCESS_KEY_ID":      set.Gradients.Read.AccessKeyID,
		"R2_GRADIENTS_READ_SECRET_ACCESS_KEY":  set.Gradients.Read.SecretAccessKey,
		"R2_GRADIENTS_WRITE_ACCESS_KEY_ID":     set.Gradients.Write.AccessKeyID,
		"R2_GRADIENTS_WRITE_SECRET_ACCESS_KEY": set.Gradients.Write.SecretAccessKey,
		"R2_DATASET_ACCOUNT_ID":                set.Dataset.AccountID,
		"R2_DATASET_BUCKET_NAME":               set.Dataset.BucketName,
		"R2_DATASET_READ_ACCESS_KEY_ID":        set.Dataset.Read.AccessKeyID,
		"R2_DATASET_READ_SECRET_ACCESS_KEY":    set.Dataset.Read.SecretAccessKey,
		"R2_DATASET_WRITE_ACCESS_KEY_ID":       set.Dataset.Write.AccessKeyID,
		"R2_DATASET_WRITE_SECRET_ACCESS_KEY":   set.Dataset.Write.SecretAccessKey,
	}
	return func(key string) (string, bool) {
		v, ok := values[key]
		if !ok || v == "" {
			return "", false
		}
		return v, true
	}
}

// Parse reads .env content back into key/value pairs, preserving order.
// Blank lines and '#' comments are ignored; anything else without '=' is an
// error naming the offending line.
func Parse(content string) ([][2]string, error) {
	var pairs [][2]string
	for i, line := range strings.Split(content, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, val, found := strings.Cut(trimmed, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("env file: malformed line %d: %q", i+1, line)
		}
		pairs = append(pairs, [2]string{key, val})
	}
	return pairs, nil
}

// Write atomically writes content to path with owner-only permissions.
// The temp file lives in the target directory so the rename cannot cross
// filesystems.
func Write(path, content string) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".env-*")
	if err != nil {
		return fmt.Errorf("creating temp env file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.WriteString(content); err != nil {
		//nolint:errcheck // Best effort cleanup on error path
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing temp env file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		//nolint:errcheck // Best effort cleanup on error path
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing temp env file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		//nolint:errcheck // Best effort cleanup on error path
		_ = os.Remove(tmpName)
		return fmt.Errorf("restricting env file permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		//nolint:errcheck // Best effort cleanup on error path
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing env file: %w", err)
	}
	return nil
}

// Drift compares the on-disk env file against the expected rendering and
// returns a unified diff. Empty string means no drift. Secrets appear in the
// diff, so callers must keep it off shared channels.
func Drift(path, expected string) (string, error) {
	onDisk, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading env file: %w", err)
	}

	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(string(onDisk)),
		B:        difflib.SplitLines(expected),
		FromFile: path,
		ToFile:   "expected",
		Context:  3,
	})
	if err != nil {
		return "", fmt.Errorf("computing env drift: %w", err)
	}
	return strings.TrimSpace(diff), nil
}

// Verify checks that content holds exactly the canonical keys in the
// canonical order. It does not inspect values beyond non-emptiness.
func Verify(content string) error {
	pairs, err := Parse(content)
	if err != nil {
		return err
	}
	if len(pairs) != len(Keys) {
		return fmt.Errorf("env file: expected %d entries, found %d", len(Keys), len(pairs))
	}
	for i, pair := range pairs {
		if pair[0] != Keys[i] {
			return fmt.Errorf("env file: entry %d is %s, want %s", i+1, pair[0], Keys[i])
		}
		if pair[1] == "" {
			return &MissingKeyError{Key: pair[0]}
		}
	}
	return nil
}
