// Package httpclient provides the outbound HTTP dispatcher.
package httpclient

import (
	"net/http"
	"time"
)

// Client implements ports.Doer over a standard http.Client. Per-request
// deadlines come from the request context; the client-level timeout is
// only a backstop.
type Client struct {
	inner *http.Client
}

// New creates a dispatcher. maxTimeout caps any single call even if a
// caller forgets to bound its context.
func New(maxTimeout time.Duration) *Client {
	return &Client{
		inner: &http.Client{
			Timeout: maxTimeout,
		},
	}
}

// Do dispatches the request, following redirects. Cancellation and
// deadline handling follow the request context.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.inner.Do(req)
}
