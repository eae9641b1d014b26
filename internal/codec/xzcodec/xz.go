// Package xzcodec provides an xz compression codec.
package xzcodec

import (
	"io"

	"github.com/ulikunitz/xz"

	"github.com/discochess/capdump/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = (*Codec)(nil)

// Codec implements xz compression.
type Codec struct{}

// New returns a new xz codec.
func New() *Codec {
	return &Codec{}
}

// Reader wraps r to decompress xz data.
// The stream header is read and validated before Reader returns.
func (c *Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	xr, err := xz.NewReader(r)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(xr), nil
}

// Writer wraps w to compress data with xz.
func (c *Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return xz.NewWriter(w)
}

// Algorithm returns codec.Xz.
func (c *Codec) Algorithm() codec.Algorithm { return codec.Xz }
