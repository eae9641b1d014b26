// Package render formats capture records as display lines.
//
// Payloads are decoded as UTF-8 one rune at a time, so every byte of an
// invalid sequence becomes its own '.'. A truncated three-byte sequence
// prints as "..", not as the single replacement a decoder substituting per
// maximal invalid subsequence would give.
package render

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/discochess/capdump/internal/capture"
)

// TimeLayout renders UTC instants with fixed nanosecond precision.
const TimeLayout = "2006-01-02T15:04:05.000000000Z"

// Epoch stands in for records that carry no timestamp.
var Epoch = time.Unix(0, 0).UTC()

// Timestamp formats t, substituting Epoch for the zero time.
func Timestamp(t time.Time) string {
	if t.IsZero() {
		t = Epoch
	}
	return t.UTC().Format(TimeLayout)
}

// Sanitize decodes data as UTF-8, best effort, and replaces every character
// that is not printable ASCII with '.'. Each invalid byte and each non-ASCII
// character becomes a single '.'.
func Sanitize(data []byte) string {
	var b strings.Builder
	b.Grow(len(data))
	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		data = data[size:]
		if r >= 0x20 && r < 0x7f {
			b.WriteByte(byte(r))
			continue
		}
		b.WriteByte('.')
	}
	return b.String()
}

// Line formats rec without a trailing newline:
//
//	[<timestamp>] <length>  <payload>
func Line(rec *capture.Record) string {
	return fmt.Sprintf("[%s] %5d  %s", Timestamp(rec.Timestamp), len(rec.Data), Sanitize(rec.Data))
}

// Renderer writes one line per record to a buffered writer.
// Call Flush once the last record has been written.
type Renderer struct {
	w *bufio.Writer
}

// New returns a Renderer writing to w.
func New(w io.Writer) *Renderer {
	return &Renderer{w: bufio.NewWriter(w)}
}

// Render writes the line for rec.
func (r *Renderer) Render(rec *capture.Record) error {
	if _, err := r.w.WriteString(Line(rec)); err != nil {
		return err
	}
	return r.w.WriteByte('\n')
}

// Flush writes any buffered lines.
func (r *Renderer) Flush() error {
	return r.w.Flush()
}
