// Package capdump streams records out of capture files, compressed or not,
// and renders each one as a human-readable line.
//
// Example usage:
//
//	d, err := capdump.New(
//	    capdump.WithLogger(logger),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer d.Close()
//
//	summary, err := d.Dump(ctx, "/var/captures/edge.pcapng.gz")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Printf("%d records, %d decode errors\n", summary.Records, summary.DecodeErrors)
package capdump

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/capdump/internal/capture"
	"github.com/discochess/capdump/internal/codec"
	"github.com/discochess/capdump/internal/codec/selector"
	"github.com/discochess/capdump/internal/render"
	"github.com/discochess/capdump/internal/source"
	"github.com/discochess/capdump/internal/stats"
	"github.com/discochess/capdump/internal/throughput"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrOpen indicates the capture location could not be opened.
	ErrOpen = errors.New("capdump: opening capture")

	// ErrConstruct indicates the decoded stream is not a readable capture.
	ErrConstruct = errors.New("capdump: reading capture")

	// ErrClosed indicates the dumper has been closed.
	ErrClosed = errors.New("capdump: dumper closed")

	// ErrNoOpener indicates no source opener was provided.
	ErrNoOpener = errors.New("capdump: no source opener provided")
)

// Summary describes one finished run.
type Summary struct {
	Location  string
	Format    capture.Format
	Algorithm codec.Algorithm

	// Records is the number of records decoded and rendered.
	Records int64
	// DecodeErrors is the number of records that failed to decode.
	DecodeErrors int64
	// Corrupt is set when the stream was abandoned as unrecoverable.
	Corrupt bool

	Throughput throughput.Summary
}

// Dumper renders capture files. Each Dump call is an independent,
// single-threaded run; a Dumper must not run two dumps at once.
type Dumper struct {
	opener      source.Opener
	selector    *selector.Selector
	compression *codec.Algorithm
	maxErrors   int
	interval    int64
	out         io.Writer
	errOut      io.Writer
	stats       stats.Collector
	logger      *zap.Logger
	now         func() time.Time
	closed      atomic.Bool
}

// New creates a Dumper with the given options.
// If no options are provided, local files are dumped to stdout.
func New(opts ...Option) (*Dumper, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		opt.apply(&cfg)
	}

	if cfg.opener == nil {
		return nil, ErrNoOpener
	}

	d := &Dumper{
		opener:      cfg.opener,
		selector:    selector.New(cfg.logger.Named("selector")),
		compression: cfg.compression,
		maxErrors:   cfg.maxErrors,
		interval:    cfg.sampleInterval,
		out:         cfg.out,
		errOut:      cfg.errOut,
		stats:       cfg.stats,
		logger:      cfg.logger,
		now:         cfg.now,
	}

	d.logger.Debug("dumper initialized",
		zap.Int("maxConsecutiveErrors", d.maxErrors),
		zap.Int64("sampleInterval", d.interval),
	)
	return d, nil
}

// Dump opens the capture at location and renders every record.
//
// Errors wrapping ErrOpen or ErrConstruct are fatal and nothing has been
// written to the output. Per-record decode errors are written to the error
// output and counted in the Summary; they do not make Dump fail.
func (d *Dumper) Dump(ctx context.Context, location string) (*Summary, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}

	loc, err := source.Parse(location)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrOpen, err)
	}

	raw, err := d.opener.Open(ctx, loc)
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrOpen, loc, err)
	}

	var read throughput.Counter
	algo := d.algorithm(loc)
	stream := codec.Decode(throughput.NewCountingReader(raw, &read), selector.Codec(algo))
	defer stream.Close()

	src, err := capture.Open(stream, capture.WithMaxConsecutiveErrors(d.maxErrors))
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrConstruct, loc, err)
	}

	d.logger.Info("dumping capture",
		zap.String("location", loc.String()),
		zap.Stringer("format", src.Format()),
		zap.Stringer("compression", algo),
	)

	summary, err := d.run(src, &read)
	summary.Location = loc.String()
	summary.Algorithm = algo
	return summary, err
}

// Run renders every record of an already opened source.
func (d *Dumper) Run(src capture.Source) (*Summary, error) {
	if d.closed.Load() {
		return nil, ErrClosed
	}
	return d.run(src, nil)
}

// Close releases the source opener.
// After Close, the dumper should not be used.
func (d *Dumper) Close() error {
	if !d.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	if err := d.opener.Close(); err != nil {
		return fmt.Errorf("closing opener: %w", err)
	}
	return nil
}

// algorithm returns the forced compression, or selects one by file name.
func (d *Dumper) algorithm(loc source.Location) codec.Algorithm {
	if d.compression != nil {
		return *d.compression
	}
	return d.selector.Select(loc.Name())
}

func (d *Dumper) run(src capture.Source, read *throughput.Counter) (*Summary, error) {
	samplerOpts := []throughput.Option{
		throughput.WithInterval(d.interval),
		throughput.WithClock(d.now),
		throughput.WithLogger(d.logger.Named("throughput")),
		throughput.WithStats(d.stats),
	}
	if read != nil {
		samplerOpts = append(samplerOpts, throughput.WithBytes(read))
	}
	sampler := throughput.New(samplerOpts...)
	renderer := render.New(d.out)
	summary := &Summary{Format: src.Format()}

	err := d.loop(src, renderer, sampler, summary)
	if ferr := renderer.Flush(); err == nil && ferr != nil {
		err = fmt.Errorf("writing output: %w", ferr)
	}

	final := sampler.Snapshot()
	summary.Throughput = throughput.Summarize(sampler.Samples(), final)
	if read != nil {
		d.stats.SetGauge(stats.MetricBytesRead, final.Bytes)
	}
	d.logger.Info("done",
		zap.Int64("records", summary.Records),
		zap.Int64("decodeErrors", summary.DecodeErrors),
		zap.Bool("corrupt", summary.Corrupt),
		zap.String("elapsed", throughput.FormatDuration(summary.Throughput.Elapsed())),
		zap.Float64("meanRate", summary.Throughput.MeanRate),
		zap.Float64("stdDevRate", summary.Throughput.StdDevRate),
	)
	return summary, err
}

// loop pulls records until the source ends. It never retries a pull.
func (d *Dumper) loop(src capture.Source, renderer *render.Renderer, sampler *throughput.Sampler, summary *Summary) error {
	for {
		rec, err := src.Next()
		if err == nil {
			summary.Records++
			d.stats.IncCounter(stats.MetricRecords, 1)
			if err := renderer.Render(rec); err != nil {
				return fmt.Errorf("writing output: %w", err)
			}
			sampler.Observe()
			continue
		}

		if errors.Is(err, io.EOF) {
			return nil
		}

		var de *capture.DecodeError
		if errors.As(err, &de) {
			summary.DecodeErrors++
			d.stats.IncCounter(stats.MetricDecodeErrors, 1)
			fmt.Fprintln(d.errOut, err)
			continue
		}

		// Anything else ends the sequence.
		summary.Corrupt = true
		fmt.Fprintln(d.errOut, err)
		return nil
	}
}
