package spider

import (
	"context"
	"errors"
	"fmt"
)

// DefaultCallback is the callback name used when a request does not name one.
const DefaultCallback = "parse"

// Spider is the user contract for a crawl: seed addresses, the parse
// callback, and optional behavior overrides. All hook fields are optional;
// the driver supplies defaults for the ones left nil.
type Spider struct {
	// Name identifies the spider in logs, events, and checkpoint files.
	Name string

	// Start holds the seed addresses expanded into Requests at default
	// priority when the crawl is not resuming from a checkpoint.
	Start []string

	// Parse is the default callback for every response whose request does
	// not name one. Required.
	Parse ParseFunc

	// Callbacks maps callback identifiers referenced by Request.Callback to
	// their functions. The DefaultCallback key is implied by Parse.
	Callbacks map[string]ParseFunc

	// ConfigureSessions registers the spider's fetch sessions. When nil the
	// driver's preconfigured registry is used as-is.
	ConfigureSessions func(reg SessionRegistrar) error

	// IsBlocked overrides the default status-code classifier. It receives
	// the full response, including the body, and may apply content-based
	// heuristics.
	IsBlocked func(resp *Response) bool

	// OnStart runs once before dispatching begins. resuming reports whether
	// the crawl was restored from a checkpoint.
	OnStart func(resuming bool)

	// OnClose runs once while the crawl drains, before the final checkpoint
	// decision.
	OnClose func()

	// OnError is invoked for each per-request fault: exhausted retries,
	// unretryable fetch failures, and callback faults.
	OnError func(req *Request, err error)

	// OnItem filters or transforms each yielded item. Returning keep=false
	// drops the item. When nil every item is kept unchanged.
	OnItem func(item Item) (Item, bool)
}

// SessionRegistrar is the subset of the session registry exposed to
// ConfigureSessions.
type SessionRegistrar interface {
	Add(id string, f Fetcher) error
	AddLazy(id string, factory func(ctx context.Context) (Fetcher, error)) error
	SetBudget(id string, n int) error
}

// ErrNoParse is returned when a spider is missing its Parse callback.
var ErrNoParse = errors.New("spider: Parse callback is required")

// Validate checks the parts of the contract the driver cannot default.
func (s *Spider) Validate() error {
	if s == nil {
		return errors.New("spider: nil spider")
	}
	if s.Parse == nil {
		return ErrNoParse
	}
	if len(s.Start) == 0 {
		return errors.New("spider: at least one start address is required")
	}
	return nil
}

// Callback resolves a callback identifier to its ParseFunc. The empty name
// and DefaultCallback both resolve to Parse.
func (s *Spider) Callback(name string) (ParseFunc, error) {
	if name == "" || name == DefaultCallback {
		return s.Parse, nil
	}
	if fn, ok := s.Callbacks[name]; ok {
		return fn, nil
	}
	return nil, fmt.Errorf("spider: unknown callback %q", name)
}

// KeepItem applies the OnItem hook, defaulting to keep-unchanged.
func (s *Spider) KeepItem(item Item) (Item, bool) {
	if s.OnItem == nil {
		return item, true
	}
	return s.OnItem(item)
}
