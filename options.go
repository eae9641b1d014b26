package capdump

import (
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/discochess/capdump/internal/capture"
	"github.com/discochess/capdump/internal/codec"
	"github.com/discochess/capdump/internal/source"
	"github.com/discochess/capdump/internal/source/disksource"
	"github.com/discochess/capdump/internal/stats"
	"github.com/discochess/capdump/internal/throughput"
)

// Option configures a Dumper.
type Option interface {
	apply(*options)
}

// options holds the dumper configuration.
type options struct {
	opener         source.Opener
	compression    *codec.Algorithm
	maxErrors      int
	sampleInterval int64
	out            io.Writer
	errOut         io.Writer
	stats          stats.Collector
	logger         *zap.Logger
	now            func() time.Time
}

// defaultOptions returns the default configuration.
func defaultOptions() options {
	mux := source.NewMux()
	mux.Handle(source.SchemeFile, disksource.New())
	return options{
		opener:         mux,
		maxErrors:      capture.DefaultMaxConsecutiveErrors,
		sampleInterval: throughput.DefaultInterval,
		out:            os.Stdout,
		errOut:         os.Stderr,
		stats:          stats.NewNoop(),
		logger:         zap.NewNop(),
		now:            time.Now,
	}
}

// optionFunc wraps a function to implement Option.
type optionFunc func(*options)

// Compile-time check that optionFunc implements Option.
var _ Option = optionFunc(nil)

func (f optionFunc) apply(o *options) { f(o) }

// WithOpener sets the opener used to resolve capture locations.
// If not set, only local file paths can be dumped.
func WithOpener(op source.Opener) Option {
	return optionFunc(func(o *options) {
		o.opener = op
	})
}

// WithCompression forces the decompression algorithm instead of choosing
// one from the file extension.
func WithCompression(a codec.Algorithm) Option {
	return optionFunc(func(o *options) {
		o.compression = &a
	})
}

// WithMaxConsecutiveErrors sets how many records in a row may fail to
// decode before the stream is abandoned. Default is 16.
func WithMaxConsecutiveErrors(n int) Option {
	return optionFunc(func(o *options) {
		if n > 0 {
			o.maxErrors = n
		}
	})
}

// WithSampleInterval sets how many records pass between throughput samples.
// Default is 1000.
func WithSampleInterval(n int64) Option {
	return optionFunc(func(o *options) {
		if n > 0 {
			o.sampleInterval = n
		}
	})
}

// WithOutput sets where rendered lines are written. Default is stdout.
func WithOutput(w io.Writer) Option {
	return optionFunc(func(o *options) {
		o.out = w
	})
}

// WithErrorOutput sets where per-record decode errors are written.
// Default is stderr.
func WithErrorOutput(w io.Writer) Option {
	return optionFunc(func(o *options) {
		o.errOut = w
	})
}

// WithStats sets the stats collector.
// If not set, a no-op collector is used.
func WithStats(c stats.Collector) Option {
	return optionFunc(func(o *options) {
		o.stats = c
	})
}

// WithLogger sets the logger.
// If not set, a no-op logger is used.
func WithLogger(l *zap.Logger) Option {
	return optionFunc(func(o *options) {
		o.logger = l
	})
}

// WithClock sets the clock used to time throughput samples.
func WithClock(now func() time.Time) Option {
	return optionFunc(func(o *options) {
		o.now = now
	})
}
