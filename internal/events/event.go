// Package events defines the typed event stream the driver emits while a
// crawl runs: fetch milestones, item decisions, retries, failures, and
// crawl lifecycle transitions. The Hub buffers and fans events out to
// registered sinks without ever blocking the emitting worker.
package events

import (
	"errors"
	"fmt"
	"time"
)

// Kind denotes the type of milestone an Event represents.
type Kind string

// Supported event kinds.
const (
	KindCrawlStart     Kind = "CRAWL_START"
	KindCrawlDone      Kind = "CRAWL_DONE"
	KindCrawlError     Kind = "CRAWL_ERROR"
	KindFetchStart     Kind = "FETCH_START"
	KindFetchDone      Kind = "FETCH_DONE"
	KindItemKept       Kind = "ITEM_KEPT"
	KindItemDropped    Kind = "ITEM_DROPPED"
	KindRequestRetried Kind = "REQUEST_RETRIED"
	KindRequestFailed  Kind = "REQUEST_FAILED"
)

// StatusClass is a coarse HTTP response grouping.
type StatusClass string

// Supported HTTP status classes tracked for fetch completions.
const (
	Status2xx   StatusClass = "2xx"
	Status3xx   StatusClass = "3xx"
	Status4xx   StatusClass = "4xx"
	Status5xx   StatusClass = "5xx"
	StatusOther StatusClass = "other"
)

// Event captures a single crawl milestone.
type Event struct {
	// CrawlID identifies the crawl run.
	CrawlID string
	// TS is the UTC timestamp recorded by the emitter.
	TS time.Time
	// Kind denotes which milestone occurred.
	Kind Kind
	// Host scopes fetch events to a host label.
	Host string
	// URL is the optional page URL; it should not contain credentials.
	URL string
	// Session names the execution context that performed the fetch.
	Session string
	// Bytes carries the response size for fetch completions.
	Bytes int64
	// StatusClass groups HTTP response codes (2xx, 3xx, etc).
	StatusClass StatusClass
	// Dur captures fetch latency and crawl wall time.
	Dur time.Duration
	// Note lets emitters attach low-volume debug context (e.g. error text).
	Note string
}

// Validate performs coarse validation on Event payloads.
func (e Event) Validate() error {
	if e.CrawlID == "" {
		return errors.New("crawl id is required")
	}
	if e.TS.IsZero() {
		return errors.New("timestamp is required")
	}
	switch e.Kind {
	case KindCrawlStart, KindCrawlDone, KindCrawlError,
		KindItemKept, KindItemDropped, KindRequestRetried, KindRequestFailed:
	case KindFetchStart:
		if e.Host == "" {
			return errors.New("fetch start requires host")
		}
	case KindFetchDone:
		if e.Host == "" {
			return errors.New("fetch done requires host")
		}
		if e.StatusClass == "" {
			return errors.New("fetch done requires status class")
		}
	default:
		return fmt.Errorf("unknown kind %q", e.Kind)
	}
	if e.Dur < 0 {
		return errors.New("duration must be >= 0")
	}
	return nil
}

// ClassifyStatus groups HTTP status codes for fetch events.
func ClassifyStatus(code int) StatusClass {
	switch {
	case code >= 200 && code < 300:
		return Status2xx
	case code >= 300 && code < 400:
		return Status3xx
	case code >= 400 && code < 500:
		return Status4xx
	case code >= 500 && code < 600:
		return Status5xx
	default:
		return StatusOther
	}
}
