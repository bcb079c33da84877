package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/tplr-ai/templar-ops/internal/pipeline/domain"
)

// ObjectAPI is the slice of the S3 API the stores use. *s3.Client
// satisfies it.
type ObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// ObjectInfo describes a stored object without its content.
type ObjectInfo struct {
	Key          string
	Size         int64
	LastModified time.Time
}

// GradientStore reads and writes gradient artifacts in the gradient bucket.
// Writes require a client built with r2.AccessWrite.
type GradientStore struct {
	api    ObjectAPI
	bucket string
}

// NewGradientStore creates a gradient store over the given client.
func NewGradientStore(api ObjectAPI, bucket string) *GradientStore {
	return &GradientStore{api: api, bucket: bucket}
}

// Put uploads one gradient.
func (s *GradientStore) Put(ctx context.Context, ref GradientRef, body io.Reader) error {
	key := GradientKey(ref.Version, ref.UID, ref.Window)
	_, err := s.api.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   body,
	})
	if err != nil {
		return fmt.Errorf("putting %s: %w", key, err)
	}
	return nil
}

// Get returns the gradient's content. The caller must close the reader.
func (s *GradientStore) Get(ctx context.Context, ref GradientRef) (io.ReadCloser, error) {
	key := GradientKey(ref.Version, ref.UID, ref.Window)
	out, err := s.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return nil, domain.NewNotFoundError(key, s.bucket)
		}
		return nil, fmt.Errorf("getting %s: %w", key, err)
	}
	return out.Body, nil
}

// Head checks existence and returns object metadata.
func (s *GradientStore) Head(ctx context.Context, ref GradientRef) (ObjectInfo, error) {
	key := GradientKey(ref.Version, ref.UID, ref.Window)
	out, err := s.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if isNoSuchKey(err) {
			return ObjectInfo{}, domain.NewNotFoundError(key, s.bucket)
		}
		return ObjectInfo{}, fmt.Errorf("heading %s: %w", key, err)
	}
	return ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(out.ContentLength),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

// ListWindow returns the gradients stored for one version and window,
// following continuation tokens until the listing is exhausted.
func (s *GradientStore) ListWindow(ctx context.Context, version string, window int64) ([]GradientRef, error) {
	prefix := fmt.Sprintf("%s%s/", gradientPrefix, version)

	var refs []GradientRef
	var token *string
	for {
		out, err := s.api.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(s.bucket),
			Prefix:            aws.String(prefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, fmt.Errorf("listing %s: %w", prefix, err)
		}

		for _, obj := range out.Contents {
			ref, err := ParseGradientKey(aws.ToString(obj.Key))
			if err != nil {
				continue // foreign object under the prefix
			}
			if ref.Window == window {
				refs = append(refs, ref)
			}
		}

		if !aws.ToBool(out.IsTruncated) {
			break
		}
		token = out.NextContinuationToken
	}
	return refs, nil
}

func isNoSuchKey(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var notFound *types.NotFound
	return errors.As(err, &notFound)
}
