// Package memsource provides an in-memory opener for testing.
package memsource

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/discochess/capdump/internal/source"
)

// Scheme is the location scheme served by memory openers.
const Scheme = "mem"

// Compile-time check that Opener implements source.Opener.
var _ source.Opener = (*Opener)(nil)

// Opener serves objects from memory, keyed by location path.
type Opener struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates a new in-memory opener.
func New() *Opener {
	return &Opener{objects: make(map[string][]byte)}
}

// Set stores data under path. The data is copied.
func (o *Opener) Set(path string, data []byte) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.objects[path] = bytes.Clone(data)
}

// Open returns a reader over the object at loc.Path.
func (o *Opener) Open(ctx context.Context, loc source.Location) (io.ReadCloser, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	data, ok := o.objects[loc.Path]
	if !ok {
		return nil, source.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Close is a no-op for the memory opener.
func (o *Opener) Close() error {
	return nil
}
