// Package capdumpfx provides an fx module for a capture dumper reading local
// files and HTTP URLs, and optionally S3 objects.
package capdumpfx

import (
	"context"
	"io"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/capdump"
	"github.com/discochess/capdump/internal/codec"
	"github.com/discochess/capdump/internal/source"
	"github.com/discochess/capdump/internal/source/disksource"
	"github.com/discochess/capdump/internal/source/httpsource"
	"github.com/discochess/capdump/internal/source/s3source"
	"github.com/discochess/capdump/internal/stats"
	"github.com/discochess/capdump/internal/stats/logger"
)

// Config holds configuration for the dumper.
type Config struct {
	// Compression forces a decompression algorithm. Empty or "auto" selects
	// one from the file extension.
	Compression string

	// MaxConsecutiveErrors is the decode error limit. Default is 16.
	MaxConsecutiveErrors int

	// Output receives rendered lines. Default is stdout.
	Output io.Writer

	// S3 enables s3:// locations when set.
	S3 *S3Config
}

// S3Config configures the S3 opener.
type S3Config struct {
	Region   string
	Endpoint string
}

// Module provides a *capdump.Dumper.
// Requires a Config and a *zap.Logger to be provided.
var Module = fx.Module("capdump",
	fx.Provide(
		newStatsCollector,
		newOpener,
		newDumper,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("capdump.stats"))
}

func newOpener(cfg Config) (source.Opener, error) {
	mux := source.NewMux()
	mux.Handle(source.SchemeFile, disksource.New())

	h := httpsource.New()
	mux.Handle("http", h)
	mux.Handle("https", h)

	if cfg.S3 != nil {
		var opts []s3source.Option
		if cfg.S3.Region != "" {
			opts = append(opts, s3source.WithRegion(cfg.S3.Region))
		}
		if cfg.S3.Endpoint != "" {
			opts = append(opts, s3source.WithEndpoint(cfg.S3.Endpoint))
		}
		s3, err := s3source.New(context.Background(), opts...)
		if err != nil {
			return nil, err
		}
		mux.Handle(s3source.Scheme, s3)
	}
	return mux, nil
}

// Params holds dependencies for creating the dumper.
type Params struct {
	fx.In

	Config    Config
	Logger    *zap.Logger
	Collector stats.Collector
	Opener    source.Opener
	Lifecycle fx.Lifecycle
}

// Result holds the provided dumper.
type Result struct {
	fx.Out

	Dumper *capdump.Dumper
}

func newDumper(p Params) (Result, error) {
	opts := []capdump.Option{
		capdump.WithOpener(p.Opener),
		capdump.WithStats(p.Collector),
		capdump.WithLogger(p.Logger.Named("capdump")),
		capdump.WithMaxConsecutiveErrors(p.Config.MaxConsecutiveErrors),
	}
	if p.Config.Output != nil {
		opts = append(opts, capdump.WithOutput(p.Config.Output))
	}
	if c := p.Config.Compression; c != "" && c != "auto" {
		algo, err := codec.ParseAlgorithm(c)
		if err != nil {
			return Result{}, err
		}
		opts = append(opts, capdump.WithCompression(algo))
	}

	d, err := capdump.New(opts...)
	if err != nil {
		return Result{}, err
	}

	p.Lifecycle.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return d.Close()
		},
	})

	return Result{Dumper: d}, nil
}
