package codec

import "io"

// Decode returns a reader that transparently decompresses r with c.
//
// A codec for None is a pass-through and r is returned as-is
// (wrapped in a no-op closer if it has no Close). Otherwise the decompressor
// is built on the first Read, so a malformed header is reported by Read and
// not here. Closing the returned reader closes the decompressor and r.
func Decode(r io.Reader, c Codec) io.ReadCloser {
	if c.Algorithm() == None {
		if rc, ok := r.(io.ReadCloser); ok {
			return rc
		}
		return io.NopCloser(r)
	}
	return &lazyReader{src: r, codec: c}
}

// lazyReader defers decompressor construction until the first Read.
type lazyReader struct {
	src   io.Reader
	codec Codec
	dec   io.ReadCloser
	err   error
}

func (l *lazyReader) Read(p []byte) (int, error) {
	if l.dec == nil && l.err == nil {
		l.dec, l.err = l.codec.Reader(l.src)
	}
	if l.err != nil {
		return 0, l.err
	}
	return l.dec.Read(p)
}

func (l *lazyReader) Close() error {
	var err error
	if l.dec != nil {
		err = l.dec.Close()
	}
	if c, ok := l.src.(io.Closer); ok {
		if cerr := c.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
