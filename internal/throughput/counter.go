package throughput

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"
)

// Counter counts bytes flowing through a CountingReader.
type Counter struct {
	n atomic.Int64
}

// Load returns the number of bytes counted.
func (c *Counter) Load() int64 {
	return c.n.Load()
}

// CountingReader wraps an io.ReadCloser to count bytes read.
type CountingReader struct {
	r       io.ReadCloser
	counter *Counter
}

// NewCountingReader returns a reader adding every byte read from r to c.
func NewCountingReader(r io.ReadCloser, c *Counter) *CountingReader {
	return &CountingReader{r: r, counter: c}
}

func (cr *CountingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.counter.n.Add(int64(n))
	return n, err
}

// Close closes the wrapped reader.
func (cr *CountingReader) Close() error {
	return cr.r.Close()
}

// FormatBytes formats bytes as human-readable string.
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatDuration formats duration as human-readable string.
func FormatDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Microsecond).String()
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
