// Package session manages named execution contexts. Each session wraps one
// fetch capability with its own concurrency budget; lazily registered
// sessions acquire their capability on first use, not at registration.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"

	"github.com/spindlehq/spindle/internal/spider"
)

// ErrUnknownSession is returned by Resolve for an unregistered id.
var ErrUnknownSession = errors.New("session: unknown session id")

// Factory produces a fetch capability on first use of a lazy session.
type Factory func(ctx context.Context) (spider.Fetcher, error)

// Session is one named execution context. Its fetch capability is acquired
// exactly once even under concurrent first use.
type Session struct {
	id      string
	lazy    bool
	factory Factory

	once    sync.Once
	fetcher spider.Fetcher
	initErr error

	budget int
	slots  *semaphore.Weighted
}

// ID returns the session identifier.
func (s *Session) ID() string { return s.id }

// Budget returns the per-session concurrency budget; 0 means unlimited.
func (s *Session) Budget() int { return s.budget }

// Acquire claims one concurrency slot, blocking until one is free or ctx
// ends. It is a no-op for unlimited sessions.
func (s *Session) Acquire(ctx context.Context) error {
	if s.slots == nil {
		return nil
	}
	if err := s.slots.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("session %s: acquire slot: %w", s.id, err)
	}
	return nil
}

// Release returns a slot claimed by Acquire.
func (s *Session) Release() {
	if s.slots != nil {
		s.slots.Release(1)
	}
}

// Fetcher returns the session's fetch capability, acquiring it on first call
// for lazy sessions. An acquisition failure is sticky: every subsequent call
// returns the same error.
func (s *Session) Fetcher(ctx context.Context) (spider.Fetcher, error) {
	s.once.Do(func() {
		if !s.lazy {
			return
		}
		s.fetcher, s.initErr = s.factory(ctx)
		if s.initErr != nil {
			s.initErr = fmt.Errorf("session %s: acquire capability: %w", s.id, s.initErr)
		}
	})
	if s.initErr != nil {
		return nil, s.initErr
	}
	return s.fetcher, nil
}

// Registry holds the sessions of one crawl. It is owned by a single driver
// instance and passed by reference to workers; it is never process-global,
// so concurrent crawls in one process do not interfere.
type Registry struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	defaultID string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Add registers an eagerly supplied fetch capability under id. The first
// registered id becomes the default for requests that specify none.
func (r *Registry) Add(id string, f spider.Fetcher) error {
	if f == nil {
		return fmt.Errorf("session %s: nil fetcher", id)
	}
	return r.add(&Session{id: id, fetcher: f})
}

// AddLazy registers a session whose capability is produced by factory on
// first use. Factory failures surface as fatal errors only if the session
// is actually dispatched to before the crawl ends.
func (r *Registry) AddLazy(id string, factory func(ctx context.Context) (spider.Fetcher, error)) error {
	if factory == nil {
		return fmt.Errorf("session %s: nil factory", id)
	}
	return r.add(&Session{id: id, lazy: true, factory: factory})
}

func (r *Registry) add(s *Session) error {
	if s.id == "" {
		return errors.New("session: empty session id")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.sessions[s.id]; dup {
		return fmt.Errorf("session %s: already registered", s.id)
	}
	r.sessions[s.id] = s
	if r.defaultID == "" {
		r.defaultID = s.id
	}
	return nil
}

// SetBudget sets the per-session concurrency budget for id; n <= 0 means
// unlimited.
func (r *Registry) SetBudget(id string, n int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	s.budget = n
	if n > 0 {
		s.slots = semaphore.NewWeighted(int64(n))
	} else {
		s.slots = nil
	}
	return nil
}

// Resolve returns the session registered under id, or the default session
// for the empty id.
func (r *Registry) Resolve(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if id == "" {
		id = r.defaultID
	}
	s, ok := r.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSession, id)
	}
	return s, nil
}

// DefaultID returns the id of the first registered session.
func (r *Registry) DefaultID() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.defaultID
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
