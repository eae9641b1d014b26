package capdump

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/discochess/capdump/internal/capture"
	"github.com/discochess/capdump/internal/capture/capturetest"
	"github.com/discochess/capdump/internal/codec"
	"github.com/discochess/capdump/internal/codec/gzipcodec"
	"github.com/discochess/capdump/internal/codec/xzcodec"
	"github.com/discochess/capdump/internal/codec/zstdcodec"
	"github.com/discochess/capdump/internal/render"
	"github.com/discochess/capdump/internal/source"
	"github.com/discochess/capdump/internal/source/memsource"
	"github.com/discochess/capdump/internal/stats"
	statslogger "github.com/discochess/capdump/internal/stats/logger"
)

// fakeSource replays a fixed list of Next results, then io.EOF.
type fakeSource struct {
	steps []error
	pos   int
}

func (f *fakeSource) Format() capture.Format { return capture.FormatPcapNG }

func (f *fakeSource) Next() (*capture.Record, error) {
	if f.pos >= len(f.steps) {
		return nil, io.EOF
	}
	err := f.steps[f.pos]
	f.pos++
	if err != nil {
		return nil, err
	}
	return &capture.Record{Data: []byte(fmt.Sprintf("rec%d", f.pos))}, nil
}

func writeFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

func expectedOutput(pkts []capturetest.Packet) string {
	var b strings.Builder
	for _, p := range pkts {
		b.WriteString(render.Line(&capture.Record{Timestamp: p.Timestamp, Data: p.Data}))
		b.WriteByte('\n')
	}
	return b.String()
}

func newTestDumper(t *testing.T, out, errOut io.Writer, opts ...Option) *Dumper {
	t.Helper()
	opts = append([]Option{WithOutput(out), WithErrorOutput(errOut)}, opts...)
	d, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { d.Close() })
	return d
}

func TestNew_RequiresOpener(t *testing.T) {
	_, err := New(WithOpener(nil))
	if !errors.Is(err, ErrNoOpener) {
		t.Errorf("New() error = %v, want ErrNoOpener", err)
	}
}

func TestDumper_Dump(t *testing.T) {
	pkts := capturetest.Packets(3)
	ng := capturetest.PcapNG(t, pkts...)
	classic := capturetest.Pcap(t, pkts...)

	tests := []struct {
		name       string
		file       string
		data       []byte
		wantFormat capture.Format
		wantAlgo   codec.Algorithm
	}{
		{"pcapng", "trace.pcapng", ng, capture.FormatPcapNG, codec.None},
		{"pcapng gzip", "trace.pcapng.gz", capturetest.Compress(t, gzipcodec.New(), ng), capture.FormatPcapNG, codec.Gzip},
		{"pcapng xz", "trace.pcapng.xz", capturetest.Compress(t, xzcodec.New(), ng), capture.FormatPcapNG, codec.Xz},
		{"classic pcap", "trace.pcapng", classic, capture.FormatPcap, codec.None},
		{"unknown extension", "trace.cap", ng, capture.FormatPcapNG, codec.None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			d := newTestDumper(t, &out, &errOut)

			summary, err := d.Dump(context.Background(), writeFile(t, tt.file, tt.data))
			if err != nil {
				t.Fatalf("Dump() error = %v", err)
			}

			if got, want := out.String(), expectedOutput(pkts); got != want {
				t.Errorf("output = %q, want %q", got, want)
			}
			if errOut.Len() != 0 {
				t.Errorf("error output = %q, want empty", errOut.String())
			}
			if summary.Records != 3 {
				t.Errorf("Records = %d, want 3", summary.Records)
			}
			if summary.Format != tt.wantFormat {
				t.Errorf("Format = %v, want %v", summary.Format, tt.wantFormat)
			}
			if summary.Algorithm != tt.wantAlgo {
				t.Errorf("Algorithm = %v, want %v", summary.Algorithm, tt.wantAlgo)
			}
		})
	}
}

func TestDumper_Dump_FirstLine(t *testing.T) {
	var out, errOut bytes.Buffer
	d := newTestDumper(t, &out, &errOut)

	path := writeFile(t, "one.pcapng", capturetest.PcapNG(t, capturetest.Packets(1)...))
	if _, err := d.Dump(context.Background(), path); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	want := "[2024-03-01T12:00:00.000000000Z]     9  GET /a...\n"
	if out.String() != want {
		t.Errorf("output = %q, want %q", out.String(), want)
	}
}

func TestDumper_Dump_UnknownExtensionWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	var out, errOut bytes.Buffer
	d := newTestDumper(t, &out, &errOut, WithLogger(zap.New(core)))

	path := writeFile(t, "trace.cap", capturetest.PcapNG(t, capturetest.Packets(2)...))
	if _, err := d.Dump(context.Background(), path); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	if logs.Len() != 1 {
		t.Fatalf("warnings = %d, want 1", logs.Len())
	}
	if got := logs.All()[0].ContextMap()["extension"]; got != "cap" {
		t.Errorf("warning extension = %v, want cap", got)
	}
}

func TestDumper_Dump_ForcedCompression(t *testing.T) {
	pkts := capturetest.Packets(4)
	data := capturetest.Compress(t, zstdcodec.New(), capturetest.PcapNG(t, pkts...))

	var out, errOut bytes.Buffer
	d := newTestDumper(t, &out, &errOut, WithCompression(codec.Zstd))

	summary, err := d.Dump(context.Background(), writeFile(t, "capture.bin", data))
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if summary.Algorithm != codec.Zstd {
		t.Errorf("Algorithm = %v, want zstd", summary.Algorithm)
	}
	if out.String() != expectedOutput(pkts) {
		t.Errorf("output = %q, want %q", out.String(), expectedOutput(pkts))
	}
}

func TestDumper_Dump_OpenErrors(t *testing.T) {
	tests := []struct {
		name     string
		location string
		wantErr  error
	}{
		{"missing file", filepath.Join(t.TempDir(), "missing.pcapng"), source.ErrNotFound},
		{"unsupported scheme", "ftp://host/trace.pcapng", source.ErrUnsupportedScheme},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			d := newTestDumper(t, &out, &errOut)

			_, err := d.Dump(context.Background(), tt.location)
			if !errors.Is(err, ErrOpen) {
				t.Errorf("Dump() error = %v, want ErrOpen", err)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Dump() error = %v, want %v", err, tt.wantErr)
			}
			if out.Len() != 0 {
				t.Errorf("output = %q, want empty", out.String())
			}
		})
	}
}

func TestDumper_Dump_ConstructErrors(t *testing.T) {
	tests := []struct {
		name string
		file string
		data []byte
	}{
		{"not a capture", "notes.pcapng", []byte("just some text\n")},
		{"empty", "empty.pcapng", nil},
		{"bad gzip", "trace.pcapng.gz", []byte("definitely not gzip")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out, errOut bytes.Buffer
			d := newTestDumper(t, &out, &errOut)

			_, err := d.Dump(context.Background(), writeFile(t, tt.file, tt.data))
			if !errors.Is(err, ErrConstruct) {
				t.Errorf("Dump() error = %v, want ErrConstruct", err)
			}
			if out.Len() != 0 {
				t.Errorf("output = %q, want empty", out.String())
			}
		})
	}
}

func TestDumper_Dump_CustomOpener(t *testing.T) {
	pkts := capturetest.Packets(2)
	mem := memsource.New()
	mem.Set("/caps/edge.pcapng.gz", capturetest.Compress(t, gzipcodec.New(), capturetest.PcapNG(t, pkts...)))

	mux := source.NewMux()
	mux.Handle(memsource.Scheme, mem)

	var out, errOut bytes.Buffer
	d := newTestDumper(t, &out, &errOut, WithOpener(mux))

	summary, err := d.Dump(context.Background(), "mem:///caps/edge.pcapng.gz")
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if summary.Location != "mem:///caps/edge.pcapng.gz" {
		t.Errorf("Location = %q", summary.Location)
	}
	if out.String() != expectedOutput(pkts) {
		t.Errorf("output = %q, want %q", out.String(), expectedOutput(pkts))
	}
	if summary.Throughput.Overall.Bytes == 0 {
		t.Error("Overall.Bytes = 0, want compressed bytes read")
	}
}

func TestDumper_Run_DecodeErrorsContinue(t *testing.T) {
	const k = 3
	steps := make([]error, 0, 2*k+1)
	for i := 0; i < k; i++ {
		steps = append(steps, &capture.DecodeError{Index: int64(i + 1), Err: errors.New("bad block")})
	}
	for i := 0; i <= k; i++ {
		steps = append(steps, nil)
	}

	var out, errOut bytes.Buffer
	collector := statslogger.New(nil)
	d := newTestDumper(t, &out, &errOut, WithStats(collector))

	summary, err := d.Run(&fakeSource{steps: steps})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if summary.Records != k+1 {
		t.Errorf("Records = %d, want %d", summary.Records, k+1)
	}
	if summary.DecodeErrors != k {
		t.Errorf("DecodeErrors = %d, want %d", summary.DecodeErrors, k)
	}
	if summary.Corrupt {
		t.Error("Corrupt = true, want false")
	}
	if got := strings.Count(out.String(), "\n"); got != k+1 {
		t.Errorf("output lines = %d, want %d", got, k+1)
	}
	if got := strings.Count(errOut.String(), "\n"); got != k {
		t.Errorf("error lines = %d, want %d", got, k)
	}
	if got := collector.Total(stats.MetricRecords); got != k+1 {
		t.Errorf("records counter = %d, want %d", got, k+1)
	}
	if got := collector.Total(stats.MetricDecodeErrors); got != k {
		t.Errorf("decode error counter = %d, want %d", got, k)
	}
}

func TestDumper_Run_CorruptEndsRun(t *testing.T) {
	corrupt := fmt.Errorf("%w: 16 consecutive decode errors", capture.ErrCorrupt)
	var out, errOut bytes.Buffer
	d := newTestDumper(t, &out, &errOut)

	summary, err := d.Run(&fakeSource{steps: []error{nil, corrupt, nil}})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !summary.Corrupt {
		t.Error("Corrupt = false, want true")
	}
	if summary.Records != 1 {
		t.Errorf("Records = %d, want 1", summary.Records)
	}
	if got := strings.Count(errOut.String(), "\n"); got != 1 {
		t.Errorf("error lines = %d, want 1", got)
	}
}

func TestDumper_Run_Samples(t *testing.T) {
	steps := make([]error, 25)
	var out, errOut bytes.Buffer
	now := time.Unix(0, 0)
	clock := func() time.Time {
		now = now.Add(time.Millisecond)
		return now
	}
	d := newTestDumper(t, &out, &errOut, WithSampleInterval(10), WithClock(clock))

	summary, err := d.Run(&fakeSource{steps: steps})
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if summary.Throughput.Samples != 2 {
		t.Errorf("Samples = %d, want 2", summary.Throughput.Samples)
	}
	if summary.Throughput.MeanRate <= 0 {
		t.Errorf("MeanRate = %v, want > 0", summary.Throughput.MeanRate)
	}
	if summary.Throughput.Overall.Count != 25 {
		t.Errorf("Overall.Count = %d, want 25", summary.Throughput.Overall.Count)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestDumper_Run_OutputError(t *testing.T) {
	var errOut bytes.Buffer
	d := newTestDumper(t, failingWriter{}, &errOut)

	_, err := d.Run(&fakeSource{steps: []error{nil}})
	if err == nil {
		t.Fatal("Run() error = nil, want write error")
	}
}

func TestDumper_Dump_MalformedInterfaceCorrupt(t *testing.T) {
	pkts := capturetest.Packets(2)
	data := append(capturetest.PcapNG(t, pkts...), capturetest.InterfaceBlock(0x40)...)

	var out, errOut bytes.Buffer
	d := newTestDumper(t, &out, &errOut)
	summary, err := d.Dump(context.Background(), writeFile(t, "trace.pcapng", data))
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	if !summary.Corrupt {
		t.Error("Corrupt = false, want true")
	}
	if summary.Records != 2 {
		t.Errorf("Records = %d, want 2", summary.Records)
	}
	if got, want := out.String(), expectedOutput(pkts); got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if !strings.Contains(errOut.String(), "stream corrupt") {
		t.Errorf("error output = %q, want corrupt report", errOut.String())
	}
}

// gaugeRecorder keeps the last value of each gauge.
type gaugeRecorder struct {
	stats.Noop
	gauges map[string]int64
}

func (g *gaugeRecorder) SetGauge(name string, value int64) { g.gauges[name] = value }

func TestDumper_Dump_ReportsBytesRead(t *testing.T) {
	data := capturetest.PcapNG(t, capturetest.Packets(3)...)
	rec := &gaugeRecorder{gauges: make(map[string]int64)}

	var out, errOut bytes.Buffer
	d := newTestDumper(t, &out, &errOut, WithStats(rec))
	if _, err := d.Dump(context.Background(), writeFile(t, "trace.pcapng", data)); err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	if got := rec.gauges[stats.MetricBytesRead]; got != int64(len(data)) {
		t.Errorf("%s = %d, want %d", stats.MetricBytesRead, got, len(data))
	}
}

func TestDumper_Close(t *testing.T) {
	d, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := d.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := d.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}
	if _, err := d.Dump(context.Background(), "trace.pcapng"); !errors.Is(err, ErrClosed) {
		t.Errorf("Dump() after Close error = %v, want ErrClosed", err)
	}
}
