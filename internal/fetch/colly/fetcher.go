// Package collyfetch implements the HTTP fetch capability using gocolly.
package collyfetch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/spindlehq/spindle/internal/spider"
)

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Fetcher performs plain HTTP fetches through a Colly collector. It is safe
// for concurrent use: every Fetch clones the base collector.
type Fetcher struct {
	cfg       Config
	transport http.RoundTripper
	base      *colly.Collector
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	c := colly.NewCollector(colly.Async(false))
	// Dedup belongs to the frontier; retries re-fetch the same URL through
	// one shared collector store, so revisits must be allowed here.
	c.AllowURLRevisit = true
	transport := newHTTPTransport()
	c.WithTransport(transport)
	return &Fetcher{
		cfg:       cfg,
		transport: transport,
		base:      c,
	}
}

// Fetch executes one HTTP request. Non-2xx statuses are returned as
// responses, not errors, so the blocked classifier sees them.
func (f *Fetcher) Fetch(ctx context.Context, req *spider.Request) (*spider.Response, error) {
	var (
		resp     *spider.Response
		fetchErr error
	)
	start := time.Now()
	collector := f.buildCollector(req, start, &resp, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- f.visit(collector, req)
	}()
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return nil, fmt.Errorf("colly visit failed: %w", err)
		}
	}
	if fetchErr != nil {
		return nil, fmt.Errorf("colly response failed: %w", fetchErr)
	}
	if resp == nil {
		return nil, errors.New("colly returned no response")
	}
	return resp, nil
}

func (f *Fetcher) buildCollector(
	req *spider.Request,
	start time.Time,
	resp **spider.Response,
	fetchErr *error,
) *colly.Collector {
	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	// Error statuses must reach the classifier as responses.
	collector.ParseHTTPErrorResponse = true
	timeout := f.cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)
	if f.transport != nil {
		collector.WithTransport(f.transport)
	}

	collector.OnResponse(func(r *colly.Response) {
		*resp = &spider.Response{
			Request:    req,
			StatusCode: r.StatusCode,
			Header:     r.Headers.Clone(),
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
	return collector
}

func (f *Fetcher) visit(collector *colly.Collector, req *spider.Request) error {
	hdr := http.Header{}
	if req.Header != nil {
		hdr = req.Header.Clone()
	}
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	return collector.Request(method, req.URL, body, nil, hdr)
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
