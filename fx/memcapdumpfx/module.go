// Package memcapdumpfx provides an fx module for a dumper reading captures
// from memory. Useful for testing.
package memcapdumpfx

import (
	"context"
	"io"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/discochess/capdump"
	"github.com/discochess/capdump/internal/source"
	"github.com/discochess/capdump/internal/source/memsource"
	"github.com/discochess/capdump/internal/stats"
	"github.com/discochess/capdump/internal/stats/logger"
)

// Module provides a *capdump.Dumper serving mem:// locations and the
// *memsource.Opener behind it.
// Requires a *zap.Logger and an io.Writer for output to be provided.
var Module = fx.Module("memcapdump",
	fx.Provide(
		newStatsCollector,
		memsource.New,
		newDumper,
	),
)

func newStatsCollector(log *zap.Logger) stats.Collector {
	return logger.New(log.Named("capdump.stats"))
}

// Params holds dependencies for creating the dumper.
type Params struct {
	fx.In

	Logger    *zap.Logger
	Collector stats.Collector
	Mem       *memsource.Opener
	Output    io.Writer
	Lifecycle fx.Lifecycle
}

// Result holds the provided dumper.
type Result struct {
	fx.Out

	Dumper *capdump.Dumper
}

func newDumper(p Params) (Result, error) {
	mux := source.NewMux()
	mux.Handle(memsource.Scheme, p.Mem)

	d, err := capdump.New(
		capdump.WithOpener(mux),
		capdump.WithOutput(p.Output),
		capdump.WithStats(p.Collector),
		capdump.WithLogger(p.Logger.Named("capdump")),
	)
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
