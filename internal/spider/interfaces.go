package spider

import (
	"context"
	"time"
)

// Fetcher is the capability a session wraps: it performs one fetch attempt
// and returns the response or an error. Implementations may be concurrent
// internally but each call is synchronous from the driver's point of view.
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*Response, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc func(ctx context.Context, req *Request) (*Response, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// ParseFunc processes a response and returns the ordered sequence of items
// and follow-up requests it yields. A ParseFunc must not retain the response
// after returning.
type ParseFunc func(ctx context.Context, resp *Response) ([]Output, error)

// Classifier decides whether a completed fetch counts as blocked and should
// be retried with backoff rather than parsed.
type Classifier interface {
	IsBlocked(resp *Response) bool
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(resp *Response) bool

// IsBlocked calls f.
func (f ClassifierFunc) IsBlocked(resp *Response) bool {
	return f(resp)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
