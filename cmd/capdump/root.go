package main

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/capdump"
	"github.com/discochess/capdump/internal/capture"
	"github.com/discochess/capdump/internal/codec"
	"github.com/discochess/capdump/internal/stats"
	statslogger "github.com/discochess/capdump/internal/stats/logger"
	"github.com/discochess/capdump/internal/stats/prometheus"
	"github.com/discochess/capdump/internal/throughput"
)

// flags holds the command line configuration of one invocation.
type flags struct {
	verbose     int
	compression string
	maxErrors   int
	metricsFile string
	summary     bool
	s3Region    string
	s3Endpoint  string
}

func newRootCmd() *cobra.Command {
	var (
		f      flags
		logger *zap.Logger
	)

	cmd := &cobra.Command{
		Use:   "capdump [flags] <capture>",
		Short: "Print the records of a packet capture file",
		Long: `capdump reads a pcapng or pcap capture and prints one line per record:
the capture timestamp, the captured length and the payload with every
non-printable byte replaced by '.'.

Captures ending in .gz or .xz are decompressed on the fly. Locations may be
local paths or s3://, gs://, http:// and https:// URLs.

Examples:
  # Dump a local capture
  capdump trace.pcapng

  # Dump a compressed capture from S3 and log throughput
  capdump -v s3://captures/edge/2024-03-01.pcapng.xz

  # Also log each counter and gauge update
  capdump -vv trace.pcapng

  # Force zstd for a file without a telling extension
  capdump --compression zstd capture.bin`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logger = newLogger(cmd.ErrOrStderr(), f.verbose)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer logger.Sync()
			return runDump(cmd, args[0], f, logger)
		},
	}

	cmd.Flags().CountVarP(&f.verbose, "verbose", "v", "log progress and throughput; repeat (-vv) to log every metric update")
	cmd.Flags().StringVar(&f.compression, "compression", "auto", "decompression: auto, none, gzip, xz, zstd")
	cmd.Flags().IntVar(&f.maxErrors, "max-errors", capture.DefaultMaxConsecutiveErrors, "consecutive decode errors before the capture is abandoned")
	cmd.Flags().StringVar(&f.metricsFile, "metrics-file", "", "write run metrics in Prometheus text format to this file")
	cmd.Flags().BoolVar(&f.summary, "summary", false, "print a throughput summary to stderr when done")
	cmd.Flags().StringVar(&f.s3Region, "s3-region", "", "AWS region for s3:// locations")
	cmd.Flags().StringVar(&f.s3Endpoint, "s3-endpoint", "", "custom endpoint for s3:// locations")

	return cmd
}

func runDump(cmd *cobra.Command, location string, f flags, logger *zap.Logger) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	opener, err := newOpener(ctx, location, f)
	if err != nil {
		return err
	}

	promStats := prometheus.New(nil)
	opts := []capdump.Option{
		capdump.WithOpener(opener),
		capdump.WithOutput(cmd.OutOrStdout()),
		capdump.WithErrorOutput(cmd.ErrOrStderr()),
		capdump.WithLogger(logger),
		capdump.WithMaxConsecutiveErrors(f.maxErrors),
		capdump.WithStats(stats.Multi{
			promStats,
			statslogger.New(logger.Named("stats")),
		}),
	}

	if f.compression != "auto" {
		algo, err := codec.ParseAlgorithm(f.compression)
		if err != nil {
			return fmt.Errorf("--compression: %w", err)
		}
		opts = append(opts, capdump.WithCompression(algo))
	}

	d, err := capdump.New(opts...)
	if err != nil {
		return err
	}
	defer d.Close()

	summary, err := d.Dump(ctx, location)
	if err != nil {
		return err
	}

	if f.summary {
		printSummary(cmd.ErrOrStderr(), summary)
	}
	if f.metricsFile != "" {
		if err := promStats.WriteTextfile(f.metricsFile); err != nil {
			logger.Warn("writing metrics file", zap.String("path", f.metricsFile), zap.Error(err))
		}
	}
	return nil
}

func printSummary(w io.Writer, s *capdump.Summary) {
	t := s.Throughput
	fmt.Fprintf(w, "Capture:       %s (%s, compression %s)\n", s.Location, s.Format, s.Algorithm)
	fmt.Fprintf(w, "Records:       %d\n", s.Records)
	fmt.Fprintf(w, "Decode errors: %d\n", s.DecodeErrors)
	if s.Corrupt {
		fmt.Fprintln(w, "Status:        abandoned after consecutive decode errors")
	}
	fmt.Fprintf(w, "Read:          %s in %s\n", throughput.FormatBytes(t.Overall.Bytes), throughput.FormatDuration(t.Elapsed()))
	if t.Samples > 0 {
		fmt.Fprintf(w, "Rate:          %.0f rec/s mean, %.0f stddev, %.0f..%.0f over %d samples\n",
			t.MeanRate, t.StdDevRate, t.MinRate, t.MaxRate, t.Samples)
	}
}
