// Package items collects the items a crawl yields. The sink applies the
// spider's keep/drop hook, appends kept items to an export-ready ordered
// collection, and fans every kept item out to subscribed streaming
// consumers; streaming and bulk collection are not mutually exclusive.
package items

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/spindlehq/spindle/internal/spider"
	"github.com/spindlehq/spindle/internal/storage"
)

// Hook filters or transforms an item before it is kept. Returning
// keep=false drops the item.
type Hook func(item spider.Item) (spider.Item, bool)

// Sink is safe for concurrent Offer calls from all workers.
type Sink struct {
	hook Hook

	mu     sync.Mutex
	kept   []spider.Item
	subs   []*subscription
	closed bool
}

// subscription pairs a delivery channel with a done signal so Offer can
// stop sending to a consumer that has unsubscribed, even when its buffer
// is already full.
type subscription struct {
	ch   chan spider.Item
	done chan struct{}
}

// NewSink builds a Sink. A nil hook keeps every item unchanged.
func NewSink(hook Hook) *Sink {
	if hook == nil {
		hook = func(item spider.Item) (spider.Item, bool) { return item, true }
	}
	return &Sink{hook: hook}
}

// Offer runs the keep hook and, when the item is kept, records it and
// pushes it to every subscriber. It reports whether the item was kept.
func (s *Sink) Offer(item spider.Item) bool {
	out, keep := s.hook(item)
	if !keep {
		return false
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.kept = append(s.kept, out)
	subs := s.subs
	s.mu.Unlock()
	for _, sub := range subs {
		select {
		case sub.ch <- out:
		case <-sub.done:
			// Consumer left; the item is still in the kept collection.
		}
	}
	return true
}

// Subscribe returns a channel receiving every subsequently kept item. The
// channel is closed by Close. buffer sizes the channel; a slow consumer
// backpressures Offer callers until it reads or unsubscribes.
func (s *Sink) Subscribe(buffer int) <-chan spider.Item {
	sub := &subscription{
		ch:   make(chan spider.Item, buffer),
		done: make(chan struct{}),
	}
	s.mu.Lock()
	if s.closed {
		close(sub.ch)
	} else {
		s.subs = append(s.subs, sub)
	}
	s.mu.Unlock()
	return sub.ch
}

// Unsubscribe detaches a channel returned by Subscribe. Offer stops
// delivering to it immediately, including senders already blocked on a full
// buffer, so an abandoned consumer can never wedge the crawl workers.
func (s *Sink) Unsubscribe(ch <-chan spider.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, sub := range s.subs {
		if sub.ch == ch {
			s.subs = append(s.subs[:i], s.subs[i+1:]...)
			close(sub.done)
			return
		}
	}
}

// Close closes all subscriber channels. Offer calls after Close are
// dropped.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	subs := s.subs
	s.subs = nil
	s.mu.Unlock()
	for _, sub := range subs {
		close(sub.ch)
	}
}

// Len returns the number of kept items.
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.kept)
}

// Items returns a copy of the kept collection in yield order.
func (s *Sink) Items() []spider.Item {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]spider.Item, len(s.kept))
	copy(out, s.kept)
	return out
}

// ExportJSON writes the kept items as one JSON array.
func (s *Sink) ExportJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	if err := enc.Encode(s.Items()); err != nil {
		return fmt.Errorf("items: encode json array: %w", err)
	}
	return nil
}

// ExportNDJSON writes the kept items as newline-delimited JSON.
func (s *Sink) ExportNDJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	for _, item := range s.Items() {
		if err := enc.Encode(item); err != nil {
			return fmt.Errorf("items: encode ndjson line: %w", err)
		}
	}
	return nil
}

// Dump writes the NDJSON export to a blob store object.
func (s *Sink) Dump(ctx context.Context, provider storage.Provider, objectName string) error {
	var buf bytes.Buffer
	if err := s.ExportNDJSON(&buf); err != nil {
		return err
	}
	if err := provider.Save(ctx, objectName, buf.Bytes()); err != nil {
		return fmt.Errorf("items: dump to blob store: %w", err)
	}
	return nil
}
