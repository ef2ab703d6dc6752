// Package stats aggregates crawl counters. The aggregator is safe for
// concurrent increments from all workers; a Snapshot is an immutable copy
// that can be taken at any point during the crawl.
package stats

import (
	"sync"
	"sync/atomic"
	"time"
)

// Aggregator holds monotonically non-decreasing counters updated by the
// driver at each observable event.
type Aggregator struct {
	start time.Time

	requests       atomic.Int64
	responses      atomic.Int64
	failures       atomic.Int64
	blockedRetries atomic.Int64
	itemsScraped   atomic.Int64
	itemsDropped   atomic.Int64
	bytes          atomic.Int64

	mu          sync.Mutex
	statusCodes map[int]int64
	domains     map[string]int64
	sessions    map[string]int64
	logLevels   map[string]int64
}

// New returns an Aggregator with its wall-time origin set to now.
func New(now time.Time) *Aggregator {
	return &Aggregator{
		start:       now,
		statusCodes: make(map[int]int64),
		domains:     make(map[string]int64),
		sessions:    make(map[string]int64),
		logLevels:   make(map[string]int64),
	}
}

// RequestIssued records one dispatched fetch attempt.
func (a *Aggregator) RequestIssued() { a.requests.Add(1) }

// ResponseReceived records a completed response with its byte count.
func (a *Aggregator) ResponseReceived(statusCode int, bytes int64) {
	a.responses.Add(1)
	a.bytes.Add(bytes)
	a.mu.Lock()
	a.statusCodes[statusCode]++
	a.mu.Unlock()
}

// RequestFailed records a permanently failed request.
func (a *Aggregator) RequestFailed() { a.failures.Add(1) }

// BlockedRetried records a blocked or transiently failed fetch that was
// requeued.
func (a *Aggregator) BlockedRetried() { a.blockedRetries.Add(1) }

// ItemScraped records one kept item.
func (a *Aggregator) ItemScraped() { a.itemsScraped.Add(1) }

// ItemDropped records one item rejected by the keep hook.
func (a *Aggregator) ItemDropped() { a.itemsDropped.Add(1) }

// DomainSeen counts a dispatch against host.
func (a *Aggregator) DomainSeen(host string) {
	if host == "" {
		return
	}
	a.mu.Lock()
	a.domains[host]++
	a.mu.Unlock()
}

// SessionUsed counts a dispatch through the named session.
func (a *Aggregator) SessionUsed(id string) {
	a.mu.Lock()
	a.sessions[id]++
	a.mu.Unlock()
}

// LogEmitted counts one log record at the named level.
func (a *Aggregator) LogEmitted(level string) {
	a.mu.Lock()
	a.logLevels[level]++
	a.mu.Unlock()
}

// Snapshot is a read-only view of the counters at one point in time.
type Snapshot struct {
	Requests       int64            `json:"requests_count"`
	Responses      int64            `json:"responses_count"`
	Failures       int64            `json:"failed_requests_count"`
	BlockedRetries int64            `json:"blocked_retries_count"`
	ItemsScraped   int64            `json:"items_scraped_count"`
	ItemsDropped   int64            `json:"items_dropped_count"`
	Bytes          int64            `json:"bytes_downloaded"`
	StatusCodes    map[int]int64    `json:"status_codes"`
	Domains        map[string]int64 `json:"domains"`
	Sessions       map[string]int64 `json:"sessions"`
	LogLevels      map[string]int64 `json:"log_levels"`
	Elapsed        time.Duration    `json:"elapsed_ns"`
}

// Snapshot returns a deep copy of the current counters. It is safe to call
// concurrently with ongoing updates.
func (a *Aggregator) Snapshot(now time.Time) Snapshot {
	s := Snapshot{
		Requests:       a.requests.Load(),
		Responses:      a.responses.Load(),
		Failures:       a.failures.Load(),
		BlockedRetries: a.blockedRetries.Load(),
		ItemsScraped:   a.itemsScraped.Load(),
		ItemsDropped:   a.itemsDropped.Load(),
		Bytes:          a.bytes.Load(),
		Elapsed:        now.Sub(a.start),
	}
	a.mu.Lock()
	s.StatusCodes = copyMap(a.statusCodes)
	s.Domains = copyMap(a.domains)
	s.Sessions = copyMap(a.sessions)
	s.LogLevels = copyMap(a.logLevels)
	a.mu.Unlock()
	return s
}

// Restore seeds the counters from a checkpointed snapshot so a resumed
// crawl continues counting where the interrupted run stopped.
func (a *Aggregator) Restore(s Snapshot) {
	a.requests.Store(s.Requests)
	a.responses.Store(s.Responses)
	a.failures.Store(s.Failures)
	a.blockedRetries.Store(s.BlockedRetries)
	a.itemsScraped.Store(s.ItemsScraped)
	a.itemsDropped.Store(s.ItemsDropped)
	a.bytes.Store(s.Bytes)
	a.mu.Lock()
	a.statusCodes = copyMap(s.StatusCodes)
	a.domains = copyMap(s.Domains)
	a.sessions = copyMap(s.Sessions)
	a.logLevels = copyMap(s.LogLevels)
	a.mu.Unlock()
}

func copyMap[K comparable](src map[K]int64) map[K]int64 {
	dst := make(map[K]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
