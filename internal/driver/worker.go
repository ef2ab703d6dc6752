package driver

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/spindlehq/spindle/internal/events"
	"github.com/spindlehq/spindle/internal/spider"
)

// worker pops requests until the frontier closes and drains. A non-nil
// return is a fatal crawl fault and cancels the whole pool through errgroup.
func (d *Driver) worker(ctx context.Context) error {
	for {
		req, ok := d.frontier.Pop()
		if !ok {
			return nil
		}
		if d.halted() {
			d.park(req)
			continue
		}
		if err := d.dispatch(ctx, req); err != nil {
			d.halt(err)
			return err
		}
	}
}

// dispatch runs one fetch attempt end to end: admission, fetch,
// classification, and either the callback or a retry/failure outcome.
// Per-request faults are settled locally; only resource acquisition faults
// propagate as fatal.
func (d *Driver) dispatch(ctx context.Context, req *spider.Request) error {
	sess, err := d.sessions.Resolve(req.SessionID)
	if err != nil {
		d.countIssued(req)
		d.fail(req, err)
		return nil
	}
	fn, err := d.sp.Callback(req.Callback)
	if err != nil {
		// Can only happen for checkpointed requests whose spider lost the
		// callback between runs; reject before spending a fetch on it.
		d.countIssued(req)
		d.fail(req, err)
		return nil
	}

	permit, err := d.gov.Admit(ctx, req, sess)
	if err != nil {
		// Admission only fails when the crawl is pausing or aborting.
		d.park(req)
		return nil
	}
	defer permit.Release()

	fetcher, err := sess.Fetcher(d.fetchCtx)
	if err != nil {
		d.park(req)
		return err
	}

	d.markInflight(req)
	d.countIssued(req)
	d.stats.DomainSeen(req.Host())
	d.stats.SessionUsed(sess.ID())
	d.emitEvent(events.Event{
		Kind:    events.KindFetchStart,
		Host:    req.Host(),
		URL:     req.URL,
		Session: sess.ID(),
	})

	start := d.cfg.Clock.Now()
	resp, ferr := fetcher.Fetch(d.fetchCtx, req)
	elapsed := d.cfg.Clock.Now().Sub(start)
	permit.Release()

	if ferr != nil {
		d.settleFetchError(req, sess.ID(), ferr)
		return nil
	}
	if resp.Request == nil {
		resp.Request = req
	}
	if resp.Duration == 0 {
		resp.Duration = elapsed
	}
	inheritMeta(req, resp)

	if d.classify.IsBlocked(resp) {
		d.settleBlocked(req, sess.ID(), resp)
		return nil
	}

	d.stats.ResponseReceived(resp.StatusCode, resp.Bytes())
	d.emitEvent(events.Event{
		Kind:        events.KindFetchDone,
		Host:        req.Host(),
		URL:         req.URL,
		Session:     sess.ID(),
		Bytes:       resp.Bytes(),
		StatusClass: events.ClassifyStatus(resp.StatusCode),
		Dur:         resp.Duration,
	})
	d.parse(fn, req, resp)
	return nil
}

// parse invokes the callback and walks its yields in order. A callback
// fault is isolated: the response stays counted and only this request's
// branch of the crawl is cut off.
func (d *Driver) parse(fn spider.ParseFunc, req *spider.Request, resp *spider.Response) {
	outs, err := d.invoke(fn, resp)
	if err != nil {
		d.cfg.Logger.Error("callback failed",
			zap.String("url", req.URL),
			zap.String("callback", req.Callback),
			zap.Error(err),
		)
		if d.sp.OnError != nil {
			d.sp.OnError(req, err)
		}
		d.emitEvent(events.Event{
			Kind: events.KindRequestFailed,
			Host: req.Host(),
			URL:  req.URL,
			Note: "callback: " + err.Error(),
		})
		d.finish(req)
		return
	}
	for _, out := range outs {
		if out.IsItem() {
			d.offerItem(req, out.Item)
		} else {
			d.enqueue(out.Request)
		}
	}
	d.finish(req)
}

func (d *Driver) invoke(fn spider.ParseFunc, resp *spider.Response) (outs []spider.Output, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("callback panic: %v", r)
		}
	}()
	return fn(d.fetchCtx, resp)
}

func (d *Driver) offerItem(req *spider.Request, item spider.Item) {
	if d.sink.Offer(item) {
		d.stats.ItemScraped()
		d.emitEvent(events.Event{Kind: events.KindItemKept, Host: req.Host(), URL: req.URL})
		return
	}
	d.stats.ItemDropped()
	d.emitEvent(events.Event{Kind: events.KindItemDropped, Host: req.Host(), URL: req.URL})
}

// enqueue admits a callback-yielded discovery. Requests naming an unknown
// session or callback are dropped through OnError rather than failing the
// crawl; everything else dedups against the seen-set. While the crawl is
// halting, new discoveries are parked so the checkpoint keeps them.
func (d *Driver) enqueue(req *spider.Request) {
	if req == nil {
		return
	}
	if _, err := d.sp.Callback(req.Callback); err != nil {
		d.dropDiscovery(req, err)
		return
	}
	if _, err := d.sessions.Resolve(req.SessionID); err != nil {
		d.dropDiscovery(req, err)
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.paused || d.fatalErr != nil {
		if d.frontier.MarkIfNew(req.Fingerprint()) {
			d.parked = append(d.parked, req)
		}
		return
	}
	if d.frontier.Push(req) {
		d.outstanding++
	}
}

func (d *Driver) dropDiscovery(req *spider.Request, err error) {
	d.cfg.Logger.Warn("dropping discovered request",
		zap.String("url", req.URL),
		zap.Error(err),
	)
	if d.sp.OnError != nil {
		d.sp.OnError(req, err)
	}
}

// settleBlocked handles a response the classifier flagged. Under the retry
// ceiling the request is re-pushed with backoff; past it, it fails for good.
func (d *Driver) settleBlocked(req *spider.Request, sessionID string, resp *spider.Response) {
	if req.RetryCount >= d.cfg.MaxBlockedRetries {
		d.fail(req, fmt.Errorf("blocked with status %d after %d attempts",
			resp.StatusCode, req.RetryCount+1))
		return
	}
	d.retryLater(req, sessionID, fmt.Sprintf("blocked: status %d", resp.StatusCode))
}

func (d *Driver) settleFetchError(req *spider.Request, sessionID string, ferr error) {
	if d.cfg.Retry.Retryable(ferr) && req.RetryCount < d.cfg.MaxBlockedRetries {
		d.retryLater(req, sessionID, ferr.Error())
		return
	}
	d.fail(req, ferr)
}

// retryLater schedules the request's next attempt after a backoff delay.
// The outstanding count is untouched: a scheduled retry still holds its
// slot in the termination accounting, so the crawl cannot finish under it.
func (d *Driver) retryLater(req *spider.Request, sessionID string, note string) {
	next := req.WithRetry(d.cfg.RetryPriorityPenalty)
	d.stats.BlockedRetried()
	d.emitEvent(events.Event{
		Kind:    events.KindRequestRetried,
		Host:    req.Host(),
		URL:     req.URL,
		Session: sessionID,
		Note:    note,
	})
	d.cfg.Logger.Debug("retrying request",
		zap.String("url", req.URL),
		zap.Int("attempt", next.RetryCount),
		zap.String("reason", note),
	)

	d.mu.Lock()
	delete(d.inflight, req)
	d.scheduled[next] = struct{}{}
	d.mu.Unlock()
	time.AfterFunc(d.cfg.Retry.Backoff(req.RetryCount), func() {
		d.requeueScheduled(next)
	})
}

func (d *Driver) requeueScheduled(req *spider.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.scheduled[req]; !ok {
		return
	}
	delete(d.scheduled, req)
	if !d.frontier.Requeue(req) {
		d.parked = append(d.parked, req)
	}
}

// inheritMeta carries the request's metadata onto its response so callbacks
// see it without reaching back through resp.Request. Keys the fetcher already
// set win over inherited ones.
func inheritMeta(req *spider.Request, resp *spider.Response) {
	if len(req.Meta) == 0 {
		return
	}
	if resp.Meta == nil {
		resp.Meta = make(map[string]string, len(req.Meta))
	}
	for k, v := range req.Meta {
		if _, ok := resp.Meta[k]; !ok {
			resp.Meta[k] = v
		}
	}
}

// countIssued records a first attempt. Retries share the original attempt's
// slot in requests_count, so every request settles as exactly one response or
// one failure against exactly one issue.
func (d *Driver) countIssued(req *spider.Request) {
	if req.RetryCount == 0 {
		d.stats.RequestIssued()
	}
}

// fail settles a request as permanently failed.
func (d *Driver) fail(req *spider.Request, err error) {
	d.stats.RequestFailed()
	d.cfg.Logger.Warn("request failed",
		zap.String("url", req.URL),
		zap.Int("retries", req.RetryCount),
		zap.Error(err),
	)
	if d.sp.OnError != nil {
		d.sp.OnError(req, err)
	}
	d.emitEvent(events.Event{
		Kind: events.KindRequestFailed,
		Host: req.Host(),
		URL:  req.URL,
		Note: err.Error(),
	})
	d.finish(req)
}

// finish records a terminal outcome. When the last outstanding request
// settles the frontier closes, which is what ends the crawl.
func (d *Driver) finish(req *spider.Request) {
	d.mu.Lock()
	delete(d.inflight, req)
	d.outstanding--
	d.completions++
	periodic := d.cfg.CheckpointEvery > 0 && d.cfg.Checkpoints != nil &&
		d.completions%d.cfg.CheckpointEvery == 0
	if d.outstanding == 0 && !d.paused && d.fatalErr == nil {
		d.frontier.Close()
	}
	d.mu.Unlock()

	if periodic {
		if err := d.writeCheckpoint(context.Background()); err != nil {
			d.cfg.Logger.Warn("periodic checkpoint failed", zap.Error(err))
		}
	}
}

// park preserves a request that was popped but will not be dispatched, so a
// later checkpoint carries it as pending.
func (d *Driver) park(req *spider.Request) {
	d.mu.Lock()
	delete(d.inflight, req)
	d.parked = append(d.parked, req)
	d.mu.Unlock()
}

func (d *Driver) markInflight(req *spider.Request) {
	d.mu.Lock()
	d.inflight[req] = struct{}{}
	d.mu.Unlock()
}
