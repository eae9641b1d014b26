// Package s3source opens captures stored in AWS S3.
package s3source

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/discochess/capdump/internal/source"
)

// Scheme is the location scheme for S3 objects.
const Scheme = "s3"

// Compile-time check that Opener implements source.Opener.
var _ source.Opener = (*Opener)(nil)

// Opener streams S3 objects addressed as s3://bucket/key.
type Opener struct {
	client *s3.Client
}

type settings struct {
	region   string
	endpoint string
}

// Option configures an Opener.
type Option func(*settings)

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(s *settings) { s.region = region }
}

// WithEndpoint sets a custom endpoint (for S3-compatible services like MinIO).
// Path-style addressing is used with a custom endpoint.
func WithEndpoint(endpoint string) Option {
	return func(s *settings) { s.endpoint = endpoint }
}

// New creates an S3 opener using the default AWS credential chain.
func New(ctx context.Context, opts ...Option) (*Opener, error) {
	var set settings
	for _, opt := range opts {
		opt(&set)
	}

	var loadOpts []func(*config.LoadOptions) error
	if set.region != "" {
		loadOpts = append(loadOpts, config.WithRegion(set.region))
	}
	cfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	client := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if set.endpoint != "" {
			o.BaseEndpoint = aws.String(set.endpoint)
			o.UsePathStyle = true
		}
	})
	return &Opener{client: client}, nil
}

// Open starts a streaming GET of the object. The body is read as the
// pipeline consumes it.
func (o *Opener) Open(ctx context.Context, loc source.Location) (io.ReadCloser, error) {
	result, err := o.client.GetObject(ctx, objectInput(loc))
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, fmt.Errorf("%w: %s", source.ErrNotFound, loc)
		}
		return nil, fmt.Errorf("getting %s: %w", loc, err)
	}
	return result.Body, nil
}

// Close releases resources.
func (o *Opener) Close() error {
	// S3 client doesn't need explicit closing.
	return nil
}

func objectInput(loc source.Location) *s3.GetObjectInput {
	return &s3.GetObjectInput{
		Bucket: aws.String(loc.Host),
		Key:    aws.String(loc.Path),
	}
}
