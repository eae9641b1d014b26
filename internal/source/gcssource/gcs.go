// Package gcssource opens captures stored in Google Cloud Storage.
package gcssource

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/discochess/capdump/internal/source"
)

// Scheme is the location scheme for GCS objects.
const Scheme = "gs"

// Compile-time check that Opener implements source.Opener.
var _ source.Opener = (*Opener)(nil)

// Opener streams GCS objects addressed as gs://bucket/object.
type Opener struct {
	client *storage.Client
}

// New creates a GCS opener. Client options are passed to storage.NewClient.
func New(ctx context.Context, opts ...option.ClientOption) (*Opener, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}
	return &Opener{client: client}, nil
}

// Open returns a streaming reader over the object.
func (o *Opener) Open(ctx context.Context, loc source.Location) (io.ReadCloser, error) {
	reader, err := o.client.Bucket(loc.Host).Object(loc.Path).NewReader(ctx)
	if err != nil {
		return nil, mapError(loc, err)
	}
	return reader, nil
}

// Close releases resources.
func (o *Opener) Close() error {
	return o.client.Close()
}

func mapError(loc source.Location, err error) error {
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return fmt.Errorf("%w: %s", source.ErrNotFound, loc)
	}
	return fmt.Errorf("creating reader for %s: %w", loc, err)
}
