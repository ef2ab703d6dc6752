// Package spider defines the core types and contracts shared across the
// crawl engine: requests, responses, yielded outputs, and the user-supplied
// Spider definition the driver executes.
package spider

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Request describes one unit of fetch work. It is immutable once enqueued;
// RetryCount is the only field that changes, and only through WithRetry on
// the controlled requeue path.
type Request struct {
	URL        string            `json:"url"`
	Method     string            `json:"method"`
	Header     http.Header       `json:"header,omitempty"`
	Body       []byte            `json:"body,omitempty"`
	Priority   int               `json:"priority"`
	SessionID  string            `json:"session_id,omitempty"`
	Callback   string            `json:"callback,omitempty"`
	RetryCount int               `json:"retry_count"`
	Meta       map[string]string `json:"meta,omitempty"`
}

// NewRequest builds a GET Request for url at the given priority.
// Lower priorities are dispatched sooner.
func NewRequest(rawURL string, priority int) *Request {
	return &Request{
		URL:      rawURL,
		Method:   http.MethodGet,
		Priority: priority,
	}
}

// Fingerprint returns the deterministic dedup key for the request: a hex
// SHA-256 digest over method, URL, body, and session id. Two requests with
// the same fingerprint are the same unit of work to the frontier.
func (r *Request) Fingerprint() string {
	h := sha256.New()
	h.Write([]byte(strings.ToUpper(r.Method)))
	h.Write([]byte{0})
	h.Write([]byte(r.URL))
	h.Write([]byte{0})
	h.Write(r.Body)
	h.Write([]byte{0})
	h.Write([]byte(r.SessionID))
	return hex.EncodeToString(h.Sum(nil))
}

// Host returns the lowercased hostname of the request URL, or "" when the
// URL does not parse. The governor keys per-host caps and delays on it.
func (r *Request) Host() string {
	u, err := url.Parse(r.URL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

// WithRetry returns a copy of the request with RetryCount incremented and
// its priority shifted by penalty. The copy shares header, body, and meta
// with the original, which is safe because both are read-only once enqueued.
func (r *Request) WithRetry(penalty int) *Request {
	retry := *r
	retry.RetryCount++
	retry.Priority += penalty
	return &retry
}

// Response is the outcome of one successful fetch attempt. It is read-only
// and owned by the driver for the duration of the parse callback.
type Response struct {
	Request    *Request
	StatusCode int
	Header     http.Header
	Body       []byte
	Duration   time.Duration
	Meta       map[string]string
}

// Bytes returns the size of the response body.
func (r *Response) Bytes() int64 {
	return int64(len(r.Body))
}

// Item is a unit of scraped data yielded by a parse callback. The engine
// treats it as opaque; export encodes it as JSON.
type Item any

// Output is the tagged union produced by parse callbacks: exactly one of
// Item or Request is set. The driver consumes outputs in yield order.
type Output struct {
	Item    Item
	Request *Request
}

// YieldItem wraps a scraped item for return from a parse callback.
func YieldItem(v Item) Output {
	return Output{Item: v}
}

// YieldRequest wraps a follow-up request for return from a parse callback.
func YieldRequest(req *Request) Output {
	return Output{Request: req}
}

// IsItem reports whether the output carries an item rather than a request.
func (o Output) IsItem() bool {
	return o.Request == nil
}
