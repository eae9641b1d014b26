package main

import (
	"context"
	"fmt"

	"github.com/discochess/capdump/internal/source"
	"github.com/discochess/capdump/internal/source/disksource"
	"github.com/discochess/capdump/internal/source/gcssource"
	"github.com/discochess/capdump/internal/source/httpsource"
	"github.com/discochess/capdump/internal/source/s3source"
)

// newOpener returns an opener able to serve location. Remote clients are
// only created for the scheme actually used, so a local dump never needs
// cloud credentials.
func newOpener(ctx context.Context, location string, f flags) (source.Opener, error) {
	mux := source.NewMux()
	mux.Handle(source.SchemeFile, disksource.New())

	loc, err := source.Parse(location)
	if err != nil {
		// Reported by the dumper as an open failure.
		return mux, nil
	}

	switch loc.Scheme {
	case s3source.Scheme:
		var opts []s3source.Option
		if f.s3Region != "" {
			opts = append(opts, s3source.WithRegion(f.s3Region))
		}
		if f.s3Endpoint != "" {
			opts = append(opts, s3source.WithEndpoint(f.s3Endpoint))
		}
		s3, err := s3source.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("creating S3 client: %w", err)
		}
		mux.Handle(s3source.Scheme, s3)
	case gcssource.Scheme:
		gcs, err := gcssource.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("creating GCS client: %w", err)
		}
		mux.Handle(gcssource.Scheme, gcs)
	case "http", "https":
		h := httpsource.New()
		mux.Handle("http", h)
		mux.Handle("https", h)
	}
	return mux, nil
}
