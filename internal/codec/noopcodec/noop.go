// Package noopcodec provides the pass-through codec for uncompressed captures.
package noopcodec

import (
	"io"

	"github.com/discochess/capdump/internal/codec"
)

// Compile-time check that Codec implements codec.Codec.
var _ codec.Codec = Codec{}

// Codec leaves bytes untouched in both directions.
type Codec struct{}

// New returns the pass-through codec.
func New() Codec { return Codec{} }

// Reader returns r with a Close that does nothing. Closing the source stays
// the caller's job.
func (Codec) Reader(r io.Reader) (io.ReadCloser, error) {
	return io.NopCloser(r), nil
}

// Writer returns w with a Close that does nothing.
func (Codec) Writer(w io.Writer) (io.WriteCloser, error) {
	return nopWriteCloser{w}, nil
}

// Algorithm returns codec.None.
func (Codec) Algorithm() codec.Algorithm { return codec.None }

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }
