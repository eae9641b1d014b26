// Package codec provides streaming decompression for capture files.
package codec

import (
	"fmt"
	"io"
)

// Codec decompresses capture streams. Writer exists so tests and tools can
// produce the compressed form.
type Codec interface {
	// Reader wraps r to decompress data read from it. It may consume the
	// stream header before returning.
	Reader(r io.Reader) (io.ReadCloser, error)
	// Writer wraps w to compress data written to it.
	Writer(w io.Writer) (io.WriteCloser, error)
	// Algorithm reports which algorithm the codec implements.
	Algorithm() Algorithm
}

// Algorithm identifies a decompression strategy.
type Algorithm int

const (
	// None passes bytes through unchanged.
	None Algorithm = iota
	// Gzip decompresses RFC 1952 streams.
	Gzip
	// Xz decompresses .xz container streams.
	Xz
	// Zstd decompresses Zstandard frames.
	Zstd
)

// String returns the flag spelling of the algorithm.
func (a Algorithm) String() string {
	switch a {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Xz:
		return "xz"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("Algorithm(%d)", int(a))
	}
}

// ParseAlgorithm parses a flag spelling produced by Algorithm.String.
func ParseAlgorithm(s string) (Algorithm, error) {
	for _, a := range []Algorithm{None, Gzip, Xz, Zstd} {
		if a.String() == s {
			return a, nil
		}
	}
	return None, fmt.Errorf("unknown compression algorithm: %s", s)
}
