// Package storage provides the R2-backed object stores for gradient and
// dataset artifacts.
package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/tplr-ai/templar-ops/internal/r2"
)

// NewClient builds an S3 client for one credential group. The access mode
// decides which keypair signs requests: read-only consumers never hold
// write keys.
func NewClient(ctx context.Context, creds r2.Credentials, group r2.Group, mode r2.AccessMode) (*s3.Client, error) {
	if err := creds.Validate(group); err != nil {
		return nil, err
	}
	keys, err := creds.Keys(group, mode)
	if err != nil {
		return nil, err
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(r2.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(keys.AccessKeyID, keys.SecretAccessKey, ""),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(creds.Endpoint())
		o.UsePathStyle = true
	})
	return client, nil
}
