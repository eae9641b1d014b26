package gzipcodec

import (
	"bytes"
	"io"
	"testing"

	"github.com/klauspost/compress/gzip"

	"github.com/discochess/capdump/internal/codec"
)

func TestCodec_Algorithm(t *testing.T) {
	if got := New().Algorithm(); got != codec.Gzip {
		t.Errorf("Algorithm() = %v, want gzip", got)
	}
}

func TestCodec_Reader_Multistream(t *testing.T) {
	c := NewLevel(gzip.BestSpeed)
	var compressed bytes.Buffer
	for _, part := range []string{"first member ", "second member"} {
		w, err := c.Writer(&compressed)
		if err != nil {
			t.Fatalf("Writer() error = %v", err)
		}
		w.Write([]byte(part))
		if err := w.Close(); err != nil {
			t.Fatalf("Close() error = %v", err)
		}
	}

	r, err := c.Reader(&compressed)
	if err != nil {
		t.Fatalf("Reader() error = %v", err)
	}
	got, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("ReadAll() error = %v", err)
	}
	if string(got) != "first member second member" {
		t.Errorf("ReadAll() = %q", got)
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", []byte{}},
		{"short", []byte("\x0a\x0d\x0d\x0a captured bytes")},
		{"large", bytes.Repeat([]byte{0xd4, 0xc3, 0xb2, 0xa1, 'p', 'k', 't'}, 20000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New()

			var compressed bytes.Buffer
			w, err := c.Writer(&compressed)
			if err != nil {
				t.Fatalf("Writer() error = %v", err)
			}
			if _, err := w.Write(tt.data); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if err := w.Close(); err != nil {
				t.Fatalf("Close() error = %v", err)
			}

			r, err := c.Reader(&compressed)
			if err != nil {
				t.Fatalf("Reader() error = %v", err)
			}
			defer r.Close()

			got, err := io.ReadAll(r)
			if err != nil {
				t.Fatalf("ReadAll() error = %v", err)
			}
			if !bytes.Equal(got, tt.data) {
				t.Errorf("round trip returned %d bytes, want %d", len(got), len(tt.data))
			}
		})
	}
}

func TestCodec_Reader_InvalidData(t *testing.T) {
	c := New()
	if _, err := c.Reader(bytes.NewReader([]byte("not gzip data"))); err == nil {
		t.Error("Reader() expected error for invalid gzip data, got nil")
	}
}
