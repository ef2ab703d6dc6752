// Package frontier implements the pending-work priority queue. Entries are
// ordered by priority ascending (lower dispatches sooner) with a
// monotonically increasing sequence number as a stable FIFO tie-break, and
// deduplicated by request fingerprint against a seen-set that survives a
// checkpoint/resume cycle.
package frontier

import (
	"container/heap"
	"sync"

	"github.com/spindlehq/spindle/internal/spider"
)

// Frontier is safe for concurrent use; all mutation goes through its own
// synchronized operations.
type Frontier struct {
	mu     sync.Mutex
	cond   *sync.Cond
	heap   entryHeap
	seen   map[string]struct{}
	seq    uint64
	closed bool
}

type entry struct {
	req *spider.Request
	seq uint64
}

// New returns an empty, open Frontier.
func New() *Frontier {
	f := &Frontier{seen: make(map[string]struct{})}
	f.cond = sync.NewCond(&f.mu)
	return f
}

// Push admits req unless its fingerprint has already been admitted during
// this crawl or a previous checkpointed run. It reports whether the request
// was accepted.
func (f *Frontier) Push(req *spider.Request) bool {
	fp := req.Fingerprint()
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	if _, dup := f.seen[fp]; dup {
		return false
	}
	f.seen[fp] = struct{}{}
	f.pushLocked(req)
	return true
}

// Requeue re-admits req bypassing the dedup check. It is the controlled
// re-push path for blocked/transient retries and for pending entries
// restored from a checkpoint; it must not be used for fresh discoveries.
// It reports false if the frontier has already been closed.
func (f *Frontier) Requeue(req *spider.Request) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false
	}
	f.seen[req.Fingerprint()] = struct{}{}
	f.pushLocked(req)
	return true
}

// MarkIfNew records fp in the seen-set without queueing anything and reports
// whether it was newly recorded. Unlike Push it works on a closed frontier,
// which lets a paused crawl keep deduplicating late discoveries it parks
// for the checkpoint.
func (f *Frontier) MarkIfNew(fp string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, dup := f.seen[fp]; dup {
		return false
	}
	f.seen[fp] = struct{}{}
	return true
}

func (f *Frontier) pushLocked(req *spider.Request) {
	f.seq++
	heap.Push(&f.heap, &entry{req: req, seq: f.seq})
	f.cond.Signal()
}

// Pop blocks until an entry is available or the frontier is closed. The
// second return is false once the frontier is closed and drained.
func (f *Frontier) Pop() (*spider.Request, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for len(f.heap) == 0 && !f.closed {
		f.cond.Wait()
	}
	if len(f.heap) == 0 {
		return nil, false
	}
	e := heap.Pop(&f.heap).(*entry)
	return e.req, true
}

// Len returns the number of pending entries.
func (f *Frontier) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.heap)
}

// Close unblocks all Pop callers. Pending entries already queued can still
// be popped; new pushes are rejected.
func (f *Frontier) Close() {
	f.mu.Lock()
	f.closed = true
	f.cond.Broadcast()
	f.mu.Unlock()
}

// Snapshot returns the pending requests in dispatch order without removing
// them. The seen-set is not part of the result; see Seen.
func (f *Frontier) Snapshot() []*spider.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	tmp := make(entryHeap, len(f.heap))
	copy(tmp, f.heap)
	heap.Init(&tmp)
	out := make([]*spider.Request, 0, len(tmp))
	for len(tmp) > 0 {
		out = append(out, heap.Pop(&tmp).(*entry).req)
	}
	return out
}

// Seen returns the admitted fingerprints, for checkpointing.
func (f *Frontier) Seen() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.seen))
	for fp := range f.seen {
		out = append(out, fp)
	}
	return out
}

// RestoreSeen merges fingerprints recorded by a previous run into the
// seen-set so already-completed requests are never re-issued when
// rediscovered by a callback.
func (f *Frontier) RestoreSeen(fingerprints []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, fp := range fingerprints {
		f.seen[fp] = struct{}{}
	}
}

// entryHeap orders by (priority asc, seq asc).
type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].req.Priority != h[j].req.Priority {
		return h[i].req.Priority < h[j].req.Priority
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}
