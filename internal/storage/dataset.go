package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"golang.org/x/sync/errgroup"

	"github.com/tplr-ai/templar-ops/internal/pipeline/domain"
)

// datasetPrefix is where dataset shards live in the dataset bucket.
const datasetPrefix = "dataset/"

// defaultFetchParallelism bounds concurrent shard downloads.
const defaultFetchParallelism = 8

// DatasetStore reads dataset shards. The dataset bucket is read-mostly;
// this store only needs a client built with r2.AccessRead.
type DatasetStore struct {
	api         ObjectAPI
	bucket      string
	parallelism int
}

// NewDatasetStore creates a dataset store over the given client.
func NewDatasetStore(api ObjectAPI, bucket string) *DatasetStore {
	return &DatasetStore{api: api, bucket: bucket, parallelism: defaultFetchParallelism}
}

// WithParallelism overrides the bulk-fetch concurrency bound.
func (s *DatasetStore) WithParallelism(n int) *DatasetStore {
	if n > 0 {
		s.parallelism = n
	}
	return s
}

// ListShards returns all shard keys under the dataset prefix.
func (s *DatasetStore) ListShards(ctx context.Context) ([]ObjectInfo, error) {
	var shards []ObjectInfo
	var token *string
	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(datasetPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("listing dataset shards: %w", err)
		}

		for _, obj := range out.Contents {
			shards = append(shards, ObjectInfo{
				Key:          aws.ToString(obj.Key),
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
			})
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return shards, nil
}

// FetchShards downloads the given shard keys into destDir, preserving the
// key's base name. Downloads run with bounded parallelism; the first error
// cancels the remaining fetches.
func (s *DatasetStore) FetchShards(ctx context.Context, keys []string, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("creating dataset dir: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.parallelism)

	for _, key := range keys {
		g.Go(func() error {
			return s.fetchOne(ctx, key, destDir)
		})
	}
	return g.Wait()
}

func (s *DatasetStore) fetchOne(ctx context.Context, key, destDir string) error {
	if !strings.HasPrefix(key, datasetPrefix) {
		return fmt.Errorf("key %q is not under %s", key, datasetPrefix)
	}

	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return domain.NewNotFoundError(key, s.bucket)
		}
		return fmt.Errorf("getting %s: %w", key, err)
	}
	//nolint:errcheck // Deferred cleanup, error not actionable
	defer func() { _ = out.Body.Close() }()

	dest := filepath.Join(destDir, filepath.Base(key))
	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	if _, err := io.Copy(f, out.Body); err != nil {
		//nolint:errcheck // Best effort cleanup on error path
		_ = f.Close()
		_ = os.Remove(dest)
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return f.Close()
}
