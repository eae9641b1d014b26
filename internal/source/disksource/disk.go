// Package disksource opens captures on the local filesystem.
package disksource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/discochess/capdump/internal/source"
)

// Compile-time check that Opener implements source.Opener.
var _ source.Opener = (*Opener)(nil)

// Opener opens local files.
type Opener struct{}

// New creates a new disk opener.
func New() *Opener {
	return &Opener{}
}

// Open opens the file at loc.Path for streaming reads.
func (o *Opener) Open(ctx context.Context, loc source.Location) (io.ReadCloser, error) {
	// Check for cancellation before starting I/O.
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	f, err := os.Open(loc.Path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %w", source.ErrNotFound, err)
		}
		return nil, err
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("%s is a directory", loc.Path)
	}
	return f, nil
}

// Close releases any resources held by the opener.
func (o *Opener) Close() error {
	return nil
}
