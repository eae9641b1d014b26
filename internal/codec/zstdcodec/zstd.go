// Package zstdcodec provides Zstandard decompression using klauspost/compress.
package zstdcodec

import (
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/discochess/capdump/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec reads zstd frames on the calling goroutine. Records are consumed
// strictly in order, so background decoding would only add buffering.
type Codec struct{}

// New returns a zstd codec.
func New() *Codec {
	return &Codec{}
}

// Reader returns a single-threaded, low-memory decoder over r.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	dec, err := zstd.NewReader(r,
		zstd.WithDecoderConcurrency(1),
		zstd.WithDecoderLowmem(true),
	)
	if err != nil {
		return nil, err
	}
	return dec.IOReadCloser(), nil
}

// Writer wraps w to compress data with zstd at the fastest level.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
}

// Algorithm returns codec.Zstd.
func (c *Codec) Algorithm() codec.Algorithm { return codec.Zstd }
