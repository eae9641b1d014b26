package capture

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	// readBufferSize bounds how far ahead of the parser ngGuard can look.
	readBufferSize = 64 << 10

	blockTypePacket         = 2
	blockTypeEnhancedPacket = 6

	// blockFraming is the type, leading length and trailing length.
	blockFraming = 12
	// packetBlockOverhead is the framing plus the fixed fields of a packet
	// block. The captured length sits at offset 20 in both packet block types.
	packetBlockOverhead = 32
	captureLengthOffset = 20
)

var (
	byteOrderLittle = []byte{0x4d, 0x3c, 0x2b, 0x1a}
	byteOrderBig    = []byte{0x1a, 0x2b, 0x3c, 0x4d}
)

// byteOrder decodes a section header byte order mark.
func byteOrder(mark []byte) (binary.ByteOrder, bool) {
	switch {
	case len(mark) < 4:
		return nil, false
	case bytes.Equal(mark[:4], byteOrderLittle):
		return binary.LittleEndian, true
	case bytes.Equal(mark[:4], byteOrderBig):
		return binary.BigEndian, true
	default:
		return nil, false
	}
}

// blockTracker follows pcapng block boundaries in the raw stream so that an
// end of stream inside a block can be told apart from a clean end.
type blockTracker struct {
	r io.Reader

	order     binary.ByteOrder
	hdr       [blockFraming]byte
	hdrLen    int
	remaining int64

	// lost is set once the framing no longer makes sense, after which
	// nothing is reported as truncated.
	lost bool
	eof  bool
}

func (t *blockTracker) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	t.scan(p[:n])
	if errors.Is(err, io.EOF) {
		t.eof = true
	}
	return n, err
}

func (t *blockTracker) scan(p []byte) {
	for len(p) > 0 && !t.lost {
		if t.remaining > 0 {
			k := min(int64(len(p)), t.remaining)
			t.remaining -= k
			p = p[k:]
			continue
		}
		k := copy(t.hdr[t.hdrLen:], p)
		t.hdrLen += k
		p = p[k:]
		if t.hdrLen < len(t.hdr) {
			return
		}
		t.hdrLen = 0
		t.enter()
	}
}

// enter starts a block whose first bytes are in t.hdr.
func (t *blockTracker) enter() {
	if bytes.Equal(t.hdr[:4], magicPcapNG) {
		order, ok := byteOrder(t.hdr[8:12])
		if !ok {
			t.lost = true
			return
		}
		t.order = order
	}
	if t.order == nil {
		t.lost = true
		return
	}
	length := t.order.Uint32(t.hdr[4:8])
	if length < blockFraming {
		t.lost = true
		return
	}
	t.remaining = int64(length) - blockFraming
}

// truncated reports whether the stream ended part way through a block.
func (t *blockTracker) truncated() bool {
	return t.eof && !t.lost && (t.hdrLen > 0 || t.remaining > 0)
}

// ngGuard inspects the blocks ahead of the pcapng parser and drops packet
// blocks whose captured length does not fit inside the block.
type ngGuard struct {
	br    *bufio.Reader
	tail  *blockTracker
	order binary.ByteOrder
}

// check looks at the blocks up to and including the next packet block. It
// returns nil when the parser may go ahead, an error wrapping ErrCorrupt
// when the framing is broken, or a plain error after discarding an
// oversized packet block. Blocks beyond the read buffer are left to the
// parser.
func (g *ngGuard) check() error {
	order := g.order
	defer func() { g.order = order }()

	off := 0
	for {
		buf, err := g.br.Peek(off + blockFraming)
		if err != nil {
			return nil
		}
		hdr := buf[off:]
		if bytes.Equal(hdr[:4], magicPcapNG) {
			o, ok := byteOrder(hdr[8:12])
			if !ok {
				return fmt.Errorf("%w: bad byte order mark % x", ErrCorrupt, hdr[8:12])
			}
			order = o
		}
		typ := order.Uint32(hdr[:4])
		length := int64(order.Uint32(hdr[4:8]))
		if length < blockFraming {
			return fmt.Errorf("%w: block length %d", ErrCorrupt, length)
		}
		if typ != blockTypePacket && typ != blockTypeEnhancedPacket {
			off += int(length)
			continue
		}

		var caplen int64
		if length >= packetBlockOverhead {
			buf, err := g.br.Peek(off + captureLengthOffset + 4)
			if err != nil {
				return nil
			}
			caplen = int64(order.Uint32(buf[off+captureLengthOffset:]))
			if caplen <= length-packetBlockOverhead {
				return nil
			}
		}

		// Any blocks ahead of the bad one go with it.
		if _, err := g.br.Discard(off + int(length)); err != nil {
			return fmt.Errorf("discarding packet block: %w", io.ErrUnexpectedEOF)
		}
		return fmt.Errorf("packet block of %d bytes claims %d captured bytes", length, caplen)
	}
}
