// Package source opens capture locations as byte streams.
//
// A location is a local path or a URL. Openers are registered per scheme on
// a Mux; each returns the raw, still-compressed stream of one object.
package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Sentinel errors for well-defined error conditions.
var (
	// ErrNotFound is returned when the capture does not exist.
	ErrNotFound = errors.New("source: capture not found")

	// ErrUnsupportedScheme is returned for a location no opener handles.
	ErrUnsupportedScheme = errors.New("source: unsupported location scheme")
)

// SchemeFile is the scheme of local paths.
const SchemeFile = "file"

// Opener opens locations of one scheme.
type Opener interface {
	// Open returns a stream of the object at loc. The caller closes it.
	Open(ctx context.Context, loc Location) (io.ReadCloser, error)

	// Close releases any resources held by the opener.
	Close() error
}

// Location identifies one capture object.
type Location struct {
	// Raw is the location as given.
	Raw string
	// Scheme is "file" for local paths.
	Scheme string
	// Host is the bucket for object stores and the host for HTTP.
	Host string
	// Path is the local path, object key, or URL path.
	Path string
}

// Parse parses a local path or URL into a Location.
func Parse(raw string) (Location, error) {
	if raw == "" {
		return Location{}, fmt.Errorf("empty location")
	}
	if !strings.Contains(raw, "://") {
		return Location{Raw: raw, Scheme: SchemeFile, Path: raw}, nil
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Location{}, fmt.Errorf("parsing location %q: %w", raw, err)
	}
	loc := Location{Raw: raw, Scheme: strings.ToLower(u.Scheme), Host: u.Host, Path: u.Path}
	switch loc.Scheme {
	case SchemeFile:
		loc.Path = filepath.FromSlash(u.Host + u.Path)
		loc.Host = ""
	case "s3", "gs":
		if loc.Host == "" {
			return Location{}, fmt.Errorf("location %q: missing bucket name", raw)
		}
		loc.Path = strings.TrimPrefix(u.Path, "/")
		if loc.Path == "" {
			return Location{}, fmt.Errorf("location %q: missing object key", raw)
		}
	}
	return loc, nil
}

// Name returns the base file name of the location, used to pick a codec.
func (l Location) Name() string {
	if l.Scheme == SchemeFile {
		return filepath.Base(l.Path)
	}
	return path.Base(l.Path)
}

func (l Location) String() string {
	return l.Raw
}

// Mux dispatches locations to the opener registered for their scheme.
type Mux struct {
	openers map[string]Opener
}

// Compile-time check that Mux implements Opener.
var _ Opener = (*Mux)(nil)

// NewMux returns an empty Mux.
func NewMux() *Mux {
	return &Mux{openers: make(map[string]Opener)}
}

// Handle registers o for scheme, replacing any previous opener.
func (m *Mux) Handle(scheme string, o Opener) {
	m.openers[strings.ToLower(scheme)] = o
}

// Open opens loc with the opener for its scheme.
func (m *Mux) Open(ctx context.Context, loc Location) (io.ReadCloser, error) {
	o, ok := m.openers[loc.Scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, loc.Scheme)
	}
	return o.Open(ctx, loc)
}

// Close closes every registered opener.
func (m *Mux) Close() error {
	var errs []error
	for _, o := range m.openers {
		if err := o.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
