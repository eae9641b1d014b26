// Package httpsource opens captures served over HTTP(S).
package httpsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/discochess/capdump/internal/source"
)

// DefaultResponseHeaderTimeout is the default timeout for receiving response headers.
const DefaultResponseHeaderTimeout = 30 * time.Second

// Compile-time check that Opener implements source.Opener.
var _ source.Opener = (*Opener)(nil)

// Opener streams HTTP response bodies.
type Opener struct {
	client *http.Client
}

// Option configures an Opener.
type Option func(*Opener)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(o *Opener) {
		o.client = client
	}
}

// New creates an HTTP opener with sensible defaults.
func New(opts ...Option) *Opener {
	o := &Opener{
		client: &http.Client{
			Timeout: 0, // Bodies are streamed for as long as the dump runs.
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: DefaultResponseHeaderTimeout,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Open issues a GET for loc and returns the response body.
func (o *Opener) Open(ctx context.Context, loc source.Location) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, loc.Raw, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", loc, err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNotFound, http.StatusGone:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", source.ErrNotFound, loc)
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("fetching %s: unexpected status: %s", loc, resp.Status)
	}
}

// Close releases idle connections.
func (o *Opener) Close() error {
	o.client.CloseIdleConnections()
	return nil
}
