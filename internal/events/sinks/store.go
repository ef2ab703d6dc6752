package sinks

import (
	"context"
	"sync"

	"github.com/spindlehq/spindle/internal/events"
)

// MemorySink records every consumed event; tests assert against it.
type MemorySink struct {
	mu     sync.RWMutex
	events []events.Event
}

// NewMemorySink returns an empty MemorySink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Consume appends the batch.
func (s *MemorySink) Consume(_ context.Context, batch []events.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, batch...)
	return nil
}

// Close implements the Sink interface; it performs no action.
func (s *MemorySink) Close(context.Context) error {
	return nil
}

// Events returns a copy of everything consumed so far.
func (s *MemorySink) Events() []events.Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]events.Event, len(s.events))
	copy(out, s.events)
	return out
}

// CountKind returns how many consumed events carry kind.
func (s *MemorySink) CountKind(kind events.Kind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, evt := range s.events {
		if evt.Kind == kind {
			n++
		}
	}
	return n
}
