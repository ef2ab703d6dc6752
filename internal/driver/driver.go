// Package driver runs a crawl end to end: it seeds or resumes the frontier,
// fans requests out to a worker pool under the governor's admission control,
// routes responses through the blocked classifier and the spider's
// callbacks, and settles the final checkpoint when the crawl drains.
//
// A Driver is single-use. Cancelling the context passed to Run pauses the
// crawl: workers finish their in-flight fetches, everything still pending is
// captured in a checkpoint, and Run returns with Result.Paused set. A
// configured hard deadline instead cancels in-flight fetches and marks them
// failed.
package driver

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/spindlehq/spindle/internal/checkpoint"
	systemclock "github.com/spindlehq/spindle/internal/clock/system"
	"github.com/spindlehq/spindle/internal/events"
	"github.com/spindlehq/spindle/internal/frontier"
	"github.com/spindlehq/spindle/internal/governor"
	"github.com/spindlehq/spindle/internal/items"
	"github.com/spindlehq/spindle/internal/session"
	"github.com/spindlehq/spindle/internal/spider"
	"github.com/spindlehq/spindle/internal/stats"
)

// Config tunes one crawl run. The zero value is usable; every field has a
// default applied by New.
type Config struct {
	// CrawlID keys the crawl's checkpoint state. Defaults to a random UUID,
	// which makes the crawl non-resumable unless the caller records the id.
	CrawlID string

	// ConcurrentRequests is the global in-flight cap and the worker pool
	// size. Defaults to 4.
	ConcurrentRequests int

	// ConcurrentRequestsPerDomain caps in-flight fetches per domain; 0
	// means unlimited.
	ConcurrentRequestsPerDomain int

	// DownloadDelay is the minimum gap between dispatches to one domain.
	DownloadDelay time.Duration

	// DomainDelay overrides DownloadDelay per domain.
	DomainDelay map[string]time.Duration

	// MaxBlockedRetries bounds re-pushes of a blocked or transiently failed
	// request; a request is attempted at most MaxBlockedRetries+1 times.
	// Defaults to 3.
	MaxBlockedRetries int

	// RetryPriorityPenalty is added to a request's priority on each retry,
	// deferring it behind fresh work. 0 keeps the original priority.
	RetryPriorityPenalty int

	// Deadline is a hard wall-time bound for the whole crawl. When it
	// expires, in-flight fetches are cancelled and marked failed, and the
	// crawl checkpoints and stops. 0 means no deadline.
	Deadline time.Duration

	// CheckpointEvery writes a mid-run checkpoint after that many request
	// completions; 0 checkpoints only on pause and shutdown.
	CheckpointEvery int

	// KeepCheckpoint retains the final checkpoint after a successful crawl
	// instead of clearing it.
	KeepCheckpoint bool

	// UseAcceleratedEventLoop is accepted for configuration compatibility.
	// The scheduler does not block on an event loop, so it has no effect.
	UseAcceleratedEventLoop bool

	// Checkpoints persists pause/resume state. Nil disables checkpointing.
	Checkpoints checkpoint.Store

	// Events receives the crawl's milestone events. Nil discards them.
	Events events.Emitter

	// Stats lets the caller share the aggregator with a level-counting
	// logger core. Nil creates a fresh one.
	Stats *stats.Aggregator

	Logger *zap.Logger
	Clock  spider.Clock
	Retry  *RetryPolicy
}

func (c Config) withDefaults() Config {
	if c.CrawlID == "" {
		c.CrawlID = uuid.NewString()
	}
	if c.ConcurrentRequests < 1 {
		c.ConcurrentRequests = 4
	}
	if c.MaxBlockedRetries < 0 {
		c.MaxBlockedRetries = 3
	}
	if c.Events == nil {
		c.Events = events.NopEmitter{}
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.Clock == nil {
		c.Clock = systemclock.New()
	}
	if c.Retry == nil {
		c.Retry = NewRetryPolicy()
	}
	return c
}

// Result is what a finished (or paused) crawl hands back.
type Result struct {
	CrawlID string
	// Paused reports that Run stopped because its context was cancelled and
	// the remaining work was checkpointed, not exhausted.
	Paused bool
	Stats  stats.Snapshot
	Items  []spider.Item
}

// Driver executes one crawl. It is safe for concurrent inspection (State,
// Stats) while Run is in progress.
type Driver struct {
	cfg      Config
	sp       *spider.Spider
	sessions *session.Registry
	frontier *frontier.Frontier
	gov      *governor.Governor
	stats    *stats.Aggregator
	sink     *items.Sink
	classify spider.Classifier

	state       atomic.Int32
	fetchCtx    context.Context
	cancelAdmit context.CancelFunc
	doneCh      chan struct{}

	mu          sync.Mutex
	paused      bool
	fatalErr    error
	outstanding int
	completions int
	inflight    map[*spider.Request]struct{}
	scheduled   map[*spider.Request]struct{}
	parked      []*spider.Request
}

// New validates the spider, runs its session configuration hook against reg,
// and wires up a Driver. reg may be nil when the spider registers all of its
// own sessions.
func New(sp *spider.Spider, reg *session.Registry, cfg Config) (*Driver, error) {
	if err := sp.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()
	if reg == nil {
		reg = session.NewRegistry()
	}
	if sp.ConfigureSessions != nil {
		if err := sp.ConfigureSessions(reg); err != nil {
			return nil, fmt.Errorf("driver: configure sessions: %w", err)
		}
	}
	if reg.Len() == 0 {
		return nil, errors.New("driver: at least one session is required")
	}

	var classify spider.Classifier = spider.DefaultClassifier()
	if sp.IsBlocked != nil {
		classify = spider.ClassifierFunc(sp.IsBlocked)
	}
	agg := cfg.Stats
	if agg == nil {
		agg = stats.New(cfg.Clock.Now())
	}

	d := &Driver{
		cfg:      cfg,
		sp:       sp,
		sessions: reg,
		frontier: frontier.New(),
		gov: governor.New(governor.Config{
			ConcurrentRequests:        cfg.ConcurrentRequests,
			ConcurrentRequestsPerHost: cfg.ConcurrentRequestsPerDomain,
			DownloadDelay:             cfg.DownloadDelay,
			HostDelay:                 cfg.DomainDelay,
		}),
		stats:     agg,
		sink:      items.NewSink(sp.KeepItem),
		classify:  classify,
		doneCh:    make(chan struct{}),
		inflight:  make(map[*spider.Request]struct{}),
		scheduled: make(map[*spider.Request]struct{}),
	}
	d.cfg.Logger = cfg.Logger.With(
		zap.String("crawl_id", cfg.CrawlID),
		zap.String("spider", sp.Name),
	)
	return d, nil
}

// CrawlID returns the identifier under which this crawl checkpoints.
func (d *Driver) CrawlID() string { return d.cfg.CrawlID }

// State returns the current lifecycle phase.
func (d *Driver) State() State { return State(d.state.Load()) }

// Stats returns a point-in-time snapshot of the crawl counters.
func (d *Driver) Stats() stats.Snapshot { return d.stats.Snapshot(d.cfg.Clock.Now()) }

// Sink exposes the item sink so callers can subscribe to kept items while
// the crawl runs.
func (d *Driver) Sink() *items.Sink { return d.sink }

// Run executes the crawl to completion, pause, or fatal failure. It may be
// called once.
func (d *Driver) Run(ctx context.Context) (*Result, error) {
	if !d.state.CompareAndSwap(int32(StateIdle), int32(StateStarting)) {
		return nil, errors.New("driver: already started; drivers are single-use")
	}
	log := d.cfg.Logger

	resuming, err := d.seed(ctx)
	if err != nil {
		d.state.Store(int32(StateStopped))
		return nil, err
	}
	if d.sp.OnStart != nil {
		d.sp.OnStart(resuming)
	}
	d.emitEvent(events.Event{Kind: events.KindCrawlStart})
	started := d.cfg.Clock.Now()

	// Pausing stops admission but never the fetches themselves; only the
	// hard deadline cancels fetchCtx.
	fetchCtx := context.Background()
	cancelFetch := func() {}
	if d.cfg.Deadline > 0 {
		fetchCtx, cancelFetch = context.WithTimeout(fetchCtx, d.cfg.Deadline)
	}
	defer cancelFetch()
	d.fetchCtx = fetchCtx

	admitCtx, cancelAdmit := context.WithCancel(context.Background())
	defer cancelAdmit()
	d.cancelAdmit = cancelAdmit

	watchDone := make(chan struct{})
	go func() {
		defer close(watchDone)
		select {
		case <-ctx.Done():
			log.Info("pause requested, draining in-flight fetches")
			d.halt(nil)
		case <-fetchCtx.Done():
			log.Warn("crawl deadline reached, cancelling in-flight fetches")
			d.halt(nil)
		case <-d.doneCh:
		}
	}()

	d.state.Store(int32(StateRunning))
	log.Info("crawl started",
		zap.Bool("resuming", resuming),
		zap.Int("concurrency", d.cfg.ConcurrentRequests),
		zap.Int("max_blocked_retries", d.cfg.MaxBlockedRetries),
	)
	if d.cfg.UseAcceleratedEventLoop {
		log.Debug("accelerated event loop requested; scheduler is already non-blocking, ignoring")
	}

	g := new(errgroup.Group)
	for i := 0; i < d.cfg.ConcurrentRequests; i++ {
		g.Go(func() error { return d.worker(admitCtx) })
	}
	runErr := g.Wait()
	close(d.doneCh)
	<-watchDone

	d.state.Store(int32(StateDraining))
	d.mu.Lock()
	paused := d.paused
	fatal := d.fatalErr
	d.mu.Unlock()
	if fatal == nil {
		fatal = runErr
	}

	if d.sp.OnClose != nil && !paused && fatal == nil {
		d.sp.OnClose()
	}
	cpErr := d.settleCheckpoint(paused, fatal)
	d.sink.Close()

	snap := d.stats.Snapshot(d.cfg.Clock.Now())
	wall := d.cfg.Clock.Now().Sub(started)
	switch {
	case fatal != nil:
		d.emitEvent(events.Event{Kind: events.KindCrawlError, Dur: wall, Note: fatal.Error()})
		log.Error("crawl aborted", zap.Error(fatal), zap.Duration("wall_time", wall))
	default:
		d.emitEvent(events.Event{Kind: events.KindCrawlDone, Dur: wall})
		log.Info("crawl finished",
			zap.Bool("paused", paused),
			zap.Duration("wall_time", wall),
			zap.Int64("items", snap.ItemsScraped),
			zap.Int64("requests", snap.Requests),
		)
	}
	d.state.Store(int32(StateStopped))

	res := &Result{
		CrawlID: d.cfg.CrawlID,
		Paused:  paused && fatal == nil,
		Stats:   snap,
		Items:   d.sink.Items(),
	}
	if fatal != nil {
		return res, fatal
	}
	if cpErr != nil {
		return res, cpErr
	}
	return res, nil
}

// seed loads a checkpoint when one exists for the crawl id, otherwise
// expands the spider's start addresses. It reports whether the crawl is
// resuming.
func (d *Driver) seed(ctx context.Context) (bool, error) {
	if d.cfg.Checkpoints != nil {
		cp, err := d.cfg.Checkpoints.Load(ctx, d.cfg.CrawlID)
		switch {
		case err == nil:
			return true, d.restore(cp)
		case errors.Is(err, checkpoint.ErrNotFound):
			// fresh crawl
		default:
			return false, fmt.Errorf("driver: load checkpoint: %w", err)
		}
	}
	for _, addr := range d.sp.Start {
		u, err := url.Parse(addr)
		if err != nil || u.Host == "" {
			return false, fmt.Errorf("driver: invalid start address %q", addr)
		}
		req := spider.NewRequest(addr, 0)
		d.mu.Lock()
		if d.frontier.Push(req) {
			d.outstanding++
		}
		d.mu.Unlock()
	}
	d.closeIfExhausted()
	return false, nil
}

func (d *Driver) restore(cp *checkpoint.Checkpoint) error {
	if cp.Spider != "" && d.sp.Name != "" && cp.Spider != d.sp.Name {
		return fmt.Errorf("driver: checkpoint %s belongs to spider %q, not %q",
			cp.CrawlID, cp.Spider, d.sp.Name)
	}
	d.frontier.RestoreSeen(cp.Seen)
	d.stats.Restore(cp.Stats)
	d.mu.Lock()
	for _, req := range cp.Pending {
		if d.frontier.Requeue(req) {
			d.outstanding++
		}
	}
	d.mu.Unlock()
	d.closeIfExhausted()
	d.cfg.Logger.Info("resumed from checkpoint",
		zap.Int("pending", len(cp.Pending)),
		zap.Int("seen", len(cp.Seen)),
		zap.Time("checkpoint_at", cp.CreatedAt),
	)
	return nil
}

// closeIfExhausted ends the crawl when nothing is queued or in flight, which
// can happen right after seeding a fully completed resume.
func (d *Driver) closeIfExhausted() {
	d.mu.Lock()
	if d.outstanding == 0 {
		d.frontier.Close()
	}
	d.mu.Unlock()
}

// halt stops admission of new work. With a nil error it is a pause; with an
// error it is a fatal abort. Either way the frontier closes so workers park
// whatever remains for the checkpoint.
func (d *Driver) halt(err error) {
	d.mu.Lock()
	if err != nil && d.fatalErr == nil {
		d.fatalErr = err
	}
	if err == nil {
		d.paused = true
	}
	d.frontier.Close()
	d.mu.Unlock()
	if d.cancelAdmit != nil {
		d.cancelAdmit()
	}
}

func (d *Driver) halted() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.paused || d.fatalErr != nil
}

// settleCheckpoint writes or clears persistent state once workers have
// drained. A paused or aborted crawl always leaves a checkpoint behind so it
// can resume; a completed one clears it unless KeepCheckpoint is set.
func (d *Driver) settleCheckpoint(paused bool, fatal error) error {
	if d.cfg.Checkpoints == nil {
		return nil
	}
	ctx := context.Background()
	if paused || fatal != nil || d.cfg.KeepCheckpoint {
		return d.writeCheckpoint(ctx)
	}
	if err := d.cfg.Checkpoints.Clear(ctx, d.cfg.CrawlID); err != nil {
		return fmt.Errorf("driver: clear checkpoint: %w", err)
	}
	return nil
}

// writeCheckpoint captures queued, parked, in-flight, and backoff-scheduled
// requests as pending under one lock, together with the full seen-set, so
// the snapshot is internally consistent.
func (d *Driver) writeCheckpoint(ctx context.Context) error {
	d.mu.Lock()
	pending := d.frontier.Snapshot()
	pending = append(pending, d.parked...)
	for req := range d.inflight {
		pending = append(pending, req)
	}
	for req := range d.scheduled {
		pending = append(pending, req)
	}
	seen := d.frontier.Seen()
	d.mu.Unlock()

	cp := checkpoint.New(d.cfg.CrawlID, d.sp.Name, pending, seen,
		d.stats.Snapshot(d.cfg.Clock.Now()), d.cfg.Clock.Now())
	if err := d.cfg.Checkpoints.Save(ctx, cp); err != nil {
		return fmt.Errorf("driver: save checkpoint: %w", err)
	}
	d.cfg.Logger.Info("checkpoint saved",
		zap.Int("pending", len(pending)),
		zap.Int("seen", len(seen)),
	)
	return nil
}

func (d *Driver) emitEvent(evt events.Event) {
	evt.CrawlID = d.cfg.CrawlID
	evt.TS = d.cfg.Clock.Now()
	d.cfg.Events.Emit(evt)
}
