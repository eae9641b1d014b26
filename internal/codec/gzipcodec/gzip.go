// Package gzipcodec provides gzip decompression using klauspost/compress.
package gzipcodec

import (
	"io"

	"github.com/klauspost/compress/gzip"

	"github.com/discochess/capdump/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec reads gzip streams. Concatenated members, as produced by appending
// rotated captures to one file, are read as a single stream.
type Codec struct {
	level int
}

// New returns a gzip codec writing at the default compression level.
func New() *Codec {
	return &Codec{level: gzip.DefaultCompression}
}

// NewLevel returns a gzip codec writing at level.
func NewLevel(level int) *Codec {
	return &Codec{level: level}
}

// Reader reads the gzip header from r and returns the decompressed stream.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	zr, err := gzip.NewReader(r)
	if err != nil {
		return nil, err
	}
	zr.Multistream(true)
	return zr, nil
}

// Writer wraps w to compress data with gzip.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(w, c.level)
}

// Algorithm returns codec.Gzip.
func (c *Codec) Algorithm() codec.Algorithm { return codec.Gzip }
