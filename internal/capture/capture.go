// Package capture turns a decoded byte stream into a lazy sequence of
// capture records.
//
// Parsing is delegated to gopacket's pcapgo readers. This package adds the
// per-record error contract the dump pipeline relies on: a failed record is
// reported as a *DecodeError and the sequence carries on, until it ends with
// io.EOF or gives up with ErrCorrupt.
package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

// DefaultMaxConsecutiveErrors is the number of back-to-back decode errors
// after which a stream is declared corrupt.
const DefaultMaxConsecutiveErrors = 16

// Sentinel errors for well-defined error conditions.
var (
	// ErrUnknownFormat indicates the stream is not a pcap or pcapng capture.
	ErrUnknownFormat = errors.New("capture: unrecognised capture format")

	// ErrCorrupt indicates the stream could not be resynchronized.
	ErrCorrupt = errors.New("capture: stream corrupt")
)

// Format identifies the on-disk capture format.
type Format int

const (
	// FormatPcap is the classic libpcap format.
	FormatPcap Format = iota + 1
	// FormatPcapNG is the pcapng block format.
	FormatPcapNG
)

func (f Format) String() string {
	switch f {
	case FormatPcap:
		return "pcap"
	case FormatPcapNG:
		return "pcapng"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

var (
	magicPcapNG = []byte{0x0a, 0x0d, 0x0d, 0x0a}

	magicPcap = [][]byte{
		{0xa1, 0xb2, 0xc3, 0xd4}, // microseconds, big endian
		{0xd4, 0xc3, 0xb2, 0xa1}, // microseconds, little endian
		{0xa1, 0xb2, 0x3c, 0x4d}, // nanoseconds, big endian
		{0x4d, 0x3c, 0xb2, 0xa1}, // nanoseconds, little endian
	}
)

// Record is one decoded capture record.
type Record struct {
	// Timestamp is the capture time. The zero value means the record carried
	// no timestamp.
	Timestamp time.Time
	// Data is the captured payload.
	Data []byte
	// Length is the original length of the packet on the wire.
	Length int
	// InterfaceIndex is the pcapng interface the record was captured on.
	InterfaceIndex int
	// LinkType is the link layer type of the capture.
	LinkType layers.LinkType
}

// HasTimestamp reports whether the record carried a timestamp.
func (r *Record) HasTimestamp() bool {
	return !r.Timestamp.IsZero()
}

// DecodeError reports a single record that could not be decoded.
type DecodeError struct {
	// Index is the 1-based position of the failed pull in the sequence.
	Index int64
	Err   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("capture: record %d: %v", e.Index, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Source is a lazy sequence of records.
type Source interface {
	// Next returns the next record. It returns a *DecodeError for a record
	// that failed to decode (the following call continues the sequence),
	// io.EOF at the end of the sequence, or an error wrapping ErrCorrupt when
	// the stream cannot be resynchronized. After io.EOF or ErrCorrupt every
	// call returns io.EOF.
	Next() (*Record, error)

	// Format returns the detected capture format.
	Format() Format
}

// packetReader is the subset of pcapgo.Reader and pcapgo.NgReader in use.
type packetReader interface {
	ReadPacketData() ([]byte, gopacket.CaptureInfo, error)
	LinkType() layers.LinkType
}

// Option configures a Source.
type Option func(*reader)

// WithMaxConsecutiveErrors sets how many decode errors in a row end the
// sequence with ErrCorrupt. Values below 1 select the default.
func WithMaxConsecutiveErrors(n int) Option {
	return func(r *reader) {
		if n >= 1 {
			r.maxErrors = n
		}
	}
}

// Open detects the capture format of r and returns a Source reading it.
// It fails if the stream is empty, unreadable, or not a capture.
func Open(r io.Reader, opts ...Option) (src Source, err error) {
	// pcapgo panics on some malformed headers.
	defer func() {
		if p := recover(); p != nil {
			src, err = nil, fmt.Errorf("%w: malformed header: %v", ErrUnknownFormat, p)
		}
	}()

	tail := &blockTracker{r: r}
	br := bufio.NewReaderSize(tail, readBufferSize)
	magic, err := br.Peek(4)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: stream too short", ErrUnknownFormat)
		}
		return nil, fmt.Errorf("reading capture header: %w", err)
	}

	switch {
	case bytes.Equal(magic, magicPcapNG):
		shb, _ := br.Peek(12)
		order, ok := byteOrder(shb[min(len(shb), 8):])
		if !ok {
			return nil, fmt.Errorf("%w: bad pcapng byte order mark", ErrUnknownFormat)
		}
		// br is large enough for NgReader to use it directly, so the guard
		// peeks at the parser's exact position.
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("reading pcapng section header: %w", err)
		}
		rd := newReader(ng, FormatPcapNG, opts...)
		rd.guard = &ngGuard{br: br, tail: tail, order: order}
		return rd, nil
	case isPcapMagic(magic):
		p, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("reading pcap file header: %w", err)
		}
		return newReader(p, FormatPcap, opts...), nil
	default:
		return nil, fmt.Errorf("%w: magic % x", ErrUnknownFormat, magic)
	}
}

func isPcapMagic(magic []byte) bool {
	for _, m := range magicPcap {
		if bytes.Equal(magic, m) {
			return true
		}
	}
	return false
}

// reader adapts a packetReader to Source.
type reader struct {
	pr        packetReader
	format    Format
	maxErrors int

	// guard is set for pcapng streams only.
	guard *ngGuard

	index       int64
	consecutive int
	done        bool
}

// Compile-time check that reader implements Source.
var _ Source = (*reader)(nil)

func newReader(pr packetReader, format Format, opts ...Option) *reader {
	r := &reader{
		pr:        pr,
		format:    format,
		maxErrors: DefaultMaxConsecutiveErrors,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *reader) Format() Format { return r.format }

func (r *reader) Next() (rec *Record, err error) {
	if r.done {
		return nil, io.EOF
	}

	// The parser's position is unknown after a panic, so nothing that
	// follows can be trusted.
	defer func() {
		if p := recover(); p != nil {
			r.done = true
			rec, err = nil, fmt.Errorf("%w: parser failure after record %d: %v", ErrCorrupt, r.index, p)
		}
	}()

	if r.guard != nil {
		if err := r.guard.check(); err != nil {
			if errors.Is(err, ErrCorrupt) {
				r.done = true
				return nil, err
			}
			return r.fail(err)
		}
	}

	data, ci, err := r.pr.ReadPacketData()
	if errors.Is(err, io.EOF) {
		if r.guard == nil || !r.guard.tail.truncated() {
			r.done = true
			return nil, io.EOF
		}
		err = io.ErrUnexpectedEOF
	}
	if err != nil {
		return r.fail(err)
	}

	r.index++
	r.consecutive = 0
	return &Record{
		Timestamp:      ci.Timestamp,
		Data:           data,
		Length:         ci.Length,
		InterfaceIndex: ci.InterfaceIndex,
		LinkType:       r.pr.LinkType(),
	}, nil
}

// fail accounts for one record that could not be decoded.
func (r *reader) fail(err error) (*Record, error) {
	r.index++
	r.consecutive++
	switch {
	case errors.Is(err, io.ErrUnexpectedEOF):
		// Truncated final record; nothing follows it.
		r.done = true
	case r.consecutive >= r.maxErrors:
		r.done = true
		return nil, fmt.Errorf("%w: %d consecutive decode errors, last at record %d: %v",
			ErrCorrupt, r.consecutive, r.index, err)
	}
	return nil, &DecodeError{Index: r.index, Err: err}
}
