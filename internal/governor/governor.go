// Package governor enforces admission control for fetch dispatch: the
// global in-flight cap, the target session's budget, the per-host cap, and
// the per-host inter-request delay must all be satisfied before a worker
// may dispatch. The three caps are independent so a single site is never
// overwhelmed even when global concurrency headroom exists.
package governor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/spindlehq/spindle/internal/session"
	"github.com/spindlehq/spindle/internal/spider"
)

// Config holds the governor's limits.
type Config struct {
	// ConcurrentRequests is the global in-flight cap. Values < 1 are
	// treated as 1.
	ConcurrentRequests int
	// ConcurrentRequestsPerHost caps in-flight fetches per host; 0 means
	// unlimited.
	ConcurrentRequestsPerHost int
	// DownloadDelay is the minimum gap between dispatches to the same host.
	DownloadDelay time.Duration
	// HostDelay overrides DownloadDelay for specific hosts.
	HostDelay map[string]time.Duration
}

// Governor admits requests for dispatch. All methods are safe for
// concurrent use.
type Governor struct {
	cfg    Config
	global *semaphore.Weighted

	mu    sync.Mutex
	hosts map[string]*hostState
}

type hostState struct {
	limiter *rate.Limiter
	slots   *semaphore.Weighted
}

// New builds a Governor from cfg.
func New(cfg Config) *Governor {
	if cfg.ConcurrentRequests < 1 {
		cfg.ConcurrentRequests = 1
	}
	return &Governor{
		cfg:    cfg,
		global: semaphore.NewWeighted(int64(cfg.ConcurrentRequests)),
		hosts:  make(map[string]*hostState),
	}
}

// Permit represents one granted admission. Release must be called when the
// fetch attempt completes, success or failure.
type Permit struct {
	governor *Governor
	sess     *session.Session
	host     *hostState
	once     sync.Once
}

// Release returns every slot claimed for this admission.
func (p *Permit) Release() {
	p.once.Do(func() {
		if p.host != nil && p.host.slots != nil {
			p.host.slots.Release(1)
		}
		if p.sess != nil {
			p.sess.Release()
		}
		p.governor.global.Release(1)
	})
}

// Admit blocks until the global cap, sess's budget, and the host cap all
// have room and the host's delay window has elapsed. On error (context
// cancellation) no slot remains claimed.
func (g *Governor) Admit(ctx context.Context, req *spider.Request, sess *session.Session) (*Permit, error) {
	if err := g.global.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("governor: global slot: %w", err)
	}
	if err := sess.Acquire(ctx); err != nil {
		g.global.Release(1)
		return nil, err
	}
	host := g.host(req.Host())
	if host.slots != nil {
		if err := host.slots.Acquire(ctx, 1); err != nil {
			sess.Release()
			g.global.Release(1)
			return nil, fmt.Errorf("governor: host slot: %w", err)
		}
	}
	if err := host.limiter.Wait(ctx); err != nil {
		if host.slots != nil {
			host.slots.Release(1)
		}
		sess.Release()
		g.global.Release(1)
		return nil, fmt.Errorf("governor: host delay: %w", err)
	}
	return &Permit{governor: g, sess: sess, host: host}, nil
}

// host returns the state for hostname, creating it on first sight. A newly
// seen host has a full token so its first dispatch is never delayed.
func (g *Governor) host(hostname string) *hostState {
	g.mu.Lock()
	defer g.mu.Unlock()
	if hs, ok := g.hosts[hostname]; ok {
		return hs
	}
	hs := &hostState{limiter: rate.NewLimiter(g.hostRate(hostname), 1)}
	if g.cfg.ConcurrentRequestsPerHost > 0 {
		hs.slots = semaphore.NewWeighted(int64(g.cfg.ConcurrentRequestsPerHost))
	}
	g.hosts[hostname] = hs
	return hs
}

func (g *Governor) hostRate(hostname string) rate.Limit {
	delay := g.cfg.DownloadDelay
	if d, ok := g.cfg.HostDelay[hostname]; ok {
		delay = d
	}
	if delay <= 0 {
		return rate.Inf
	}
	return rate.Every(delay)
}
