package driver_test

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spindlehq/spindle/internal/checkpoint"
	"github.com/spindlehq/spindle/internal/driver"
	"github.com/spindlehq/spindle/internal/session"
	"github.com/spindlehq/spindle/internal/spider"
	"github.com/spindlehq/spindle/internal/stats"
)

// okResponse fabricates a 200 response for req with the given body.
func okResponse(req *spider.Request, body string) *spider.Response {
	return &spider.Response{
		Request:    req,
		StatusCode: http.StatusOK,
		Body:       []byte(body),
		Duration:   time.Millisecond,
	}
}

// chainSpider yields one item per page and a link to the next page until n
// pages have been visited.
func chainSpider(n int) *spider.Spider {
	return &spider.Spider{
		Name:  "chain",
		Start: []string{"https://example.com/page/1"},
		Parse: func(_ context.Context, resp *spider.Response) ([]spider.Output, error) {
			outs := []spider.Output{spider.YieldItem(resp.Request.URL)}
			page := 0
			fmt.Sscanf(resp.Request.URL, "https://example.com/page/%d", &page)
			if page < n {
				outs = append(outs, spider.YieldRequest(
					spider.NewRequest(fmt.Sprintf("https://example.com/page/%d", page+1), page)))
			}
			return outs, nil
		},
	}
}

func newHTTPRegistry(t *testing.T, fetch spider.FetcherFunc) *session.Registry {
	t.Helper()
	reg := session.NewRegistry()
	require.NoError(t, reg.Add("http", fetch))
	return reg
}

// TestRunCrawlsLinkedPages walks a five page chain to completion.
func TestRunCrawlsLinkedPages(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int64
	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		fetches.Add(1)
		return okResponse(req, "page body"), nil
	})

	drv, err := driver.New(chainSpider(5), reg, driver.Config{ConcurrentRequests: 2})
	require.NoError(t, err)

	res, err := drv.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Paused)
	assert.Len(t, res.Items, 5)
	assert.Equal(t, int64(5), fetches.Load())
	assert.Equal(t, int64(5), res.Stats.Requests)
	assert.Equal(t, int64(5), res.Stats.Responses)
	assert.Zero(t, res.Stats.Failures)
	assert.Equal(t, int64(5), res.Stats.ItemsScraped)
	assert.Equal(t, int64(5), res.Stats.Domains["example.com"])
	assert.Equal(t, driver.StateStopped, drv.State())
}

// TestRunDedupsDiscoveredRequests never fetches the same URL twice even
// when every page links back to the start.
func TestRunDedupsDiscoveredRequests(t *testing.T) {
	t.Parallel()

	var fetches atomic.Int64
	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		fetches.Add(1)
		return okResponse(req, "x"), nil
	})
	sp := &spider.Spider{
		Name:  "loop",
		Start: []string{"https://example.com/a"},
		Parse: func(_ context.Context, resp *spider.Response) ([]spider.Output, error) {
			return []spider.Output{
				spider.YieldRequest(spider.NewRequest("https://example.com/a", 0)),
				spider.YieldRequest(spider.NewRequest("https://example.com/b", 0)),
			}, nil
		},
	}

	drv, err := driver.New(sp, reg, driver.Config{})
	require.NoError(t, err)
	res, err := drv.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(2), fetches.Load())
	assert.Equal(t, int64(2), res.Stats.Requests)
}

// TestRunGlobalConcurrencyCap holds fetch overlap at the configured limit.
func TestRunGlobalConcurrencyCap(t *testing.T) {
	t.Parallel()

	var inFlight, maxSeen atomic.Int64
	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		cur := inFlight.Add(1)
		for {
			prev := maxSeen.Load()
			if cur <= prev || maxSeen.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return okResponse(req, "x"), nil
	})

	sp := &spider.Spider{
		Name: "wide",
		Start: []string{
			"https://example.com/1", "https://example.com/2",
			"https://example.com/3", "https://example.com/4",
			"https://example.com/5", "https://example.com/6",
		},
		Parse: func(context.Context, *spider.Response) ([]spider.Output, error) {
			return nil, nil
		},
	}

	drv, err := driver.New(sp, reg, driver.Config{ConcurrentRequests: 2})
	require.NoError(t, err)
	_, err = drv.Run(context.Background())
	require.NoError(t, err)

	assert.LessOrEqual(t, maxSeen.Load(), int64(2))
}

// TestRunRetriesBlockedUntilCeiling re-fetches a blocked URL with backoff
// and fails it once the retry budget is spent.
func TestRunRetriesBlockedUntilCeiling(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64
	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		attempts.Add(1)
		return &spider.Response{
			Request:    req,
			StatusCode: http.StatusServiceUnavailable,
			Duration:   time.Millisecond,
		}, nil
	})
	var failed atomic.Int64
	sp := &spider.Spider{
		Name:  "blocked",
		Start: []string{"https://example.com/walled"},
		Parse: func(context.Context, *spider.Response) ([]spider.Output, error) {
			return nil, nil
		},
		OnError: func(*spider.Request, error) { failed.Add(1) },
	}

	drv, err := driver.New(sp, reg, driver.Config{
		MaxBlockedRetries: 2,
		Retry:             &driver.RetryPolicy{},
	})
	require.NoError(t, err)
	res, err := drv.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), attempts.Load()) // initial try plus two retries
	assert.Equal(t, int64(1), failed.Load())
	assert.Equal(t, int64(1), res.Stats.Requests)
	assert.Equal(t, int64(1), res.Stats.Failures)
	assert.Equal(t, int64(2), res.Stats.BlockedRetries)
	assert.Zero(t, res.Stats.Responses)
}

// TestRunRecoversAfterBlockedRetry succeeds when the block clears before
// the ceiling, and the stats identity still holds.
func TestRunRecoversAfterBlockedRetry(t *testing.T) {
	t.Parallel()

	var attempts atomic.Int64
	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		if attempts.Add(1) < 3 {
			return &spider.Response{Request: req, StatusCode: http.StatusTooManyRequests}, nil
		}
		return okResponse(req, "finally"), nil
	})
	sp := &spider.Spider{
		Name:  "throttled",
		Start: []string{"https://example.com/slow-door"},
		Parse: func(_ context.Context, resp *spider.Response) ([]spider.Output, error) {
			return []spider.Output{spider.YieldItem(string(resp.Body))}, nil
		},
	}

	drv, err := driver.New(sp, reg, driver.Config{
		MaxBlockedRetries: 3,
		Retry:             &driver.RetryPolicy{},
	})
	require.NoError(t, err)
	res, err := drv.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), attempts.Load())
	assert.Equal(t, int64(1), res.Stats.Requests)
	assert.Equal(t, int64(1), res.Stats.Responses)
	assert.Zero(t, res.Stats.Failures)
	assert.Equal(t, int64(2), res.Stats.BlockedRetries)
	assert.Len(t, res.Items, 1)
}

// TestRunStatsIdentity checks requests always split into responses plus
// failures across a mixed outcome crawl.
func TestRunStatsIdentity(t *testing.T) {
	t.Parallel()

	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		switch req.URL {
		case "https://example.com/ok":
			return okResponse(req, "fine"), nil
		case "https://example.com/gone":
			return &spider.Response{Request: req, StatusCode: http.StatusNotFound}, nil
		default:
			return nil, fmt.Errorf("connection refused to %s", req.URL)
		}
	})
	sp := &spider.Spider{
		Name: "mixed",
		Start: []string{
			"https://example.com/ok",
			"https://example.com/gone",
			"https://example.com/dead",
		},
		Parse: func(context.Context, *spider.Response) ([]spider.Output, error) {
			return nil, nil
		},
	}

	drv, err := driver.New(sp, reg, driver.Config{
		MaxBlockedRetries: 1,
		Retry:             &driver.RetryPolicy{},
	})
	require.NoError(t, err)
	res, err := drv.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Stats.Requests)
	assert.Equal(t, res.Stats.Requests, res.Stats.Responses+res.Stats.Failures)
	assert.Equal(t, int64(2), res.Stats.Responses) // 404 is a counted response
	assert.Equal(t, int64(1), res.Stats.Failures)
	assert.Equal(t, int64(1), res.Stats.StatusCodes[http.StatusNotFound])
}

// TestRunItemHookDropsAndTransforms routes every yield through OnItem.
func TestRunItemHookDropsAndTransforms(t *testing.T) {
	t.Parallel()

	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		return okResponse(req, "x"), nil
	})
	sp := &spider.Spider{
		Name:  "picky",
		Start: []string{"https://example.com/"},
		Parse: func(context.Context, *spider.Response) ([]spider.Output, error) {
			return []spider.Output{
				spider.YieldItem("keep-me"),
				spider.YieldItem("drop-me"),
				spider.YieldItem("keep-too"),
			}, nil
		},
		OnItem: func(item spider.Item) (spider.Item, bool) {
			s, _ := item.(string)
			if s == "drop-me" {
				return nil, false
			}
			return "tagged:" + s, true
		},
	}

	drv, err := driver.New(sp, reg, driver.Config{})
	require.NoError(t, err)
	res, err := drv.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []spider.Item{"tagged:keep-me", "tagged:keep-too"}, res.Items)
	assert.Equal(t, int64(2), res.Stats.ItemsScraped)
	assert.Equal(t, int64(1), res.Stats.ItemsDropped)
}

// TestRunCallbackFaultIsIsolated keeps the crawl alive when one parse
// callback panics; the response stays counted.
func TestRunCallbackFaultIsIsolated(t *testing.T) {
	t.Parallel()

	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		return okResponse(req, "x"), nil
	})
	var faults atomic.Int64
	sp := &spider.Spider{
		Name:  "flaky",
		Start: []string{"https://example.com/boom", "https://example.com/calm"},
		Parse: func(_ context.Context, resp *spider.Response) ([]spider.Output, error) {
			if resp.Request.URL == "https://example.com/boom" {
				panic("bad selector")
			}
			return []spider.Output{spider.YieldItem("ok")}, nil
		},
		OnError: func(_ *spider.Request, err error) {
			if err != nil {
				faults.Add(1)
			}
		},
	}

	drv, err := driver.New(sp, reg, driver.Config{})
	require.NoError(t, err)
	res, err := drv.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int64(1), faults.Load())
	assert.Len(t, res.Items, 1)
	assert.Equal(t, int64(2), res.Stats.Responses)
	assert.Zero(t, res.Stats.Failures) // the response itself succeeded
}

// TestRunDropsUnknownSessionDiscovery surfaces the bad yield through
// OnError without touching the rest of the crawl.
func TestRunDropsUnknownSessionDiscovery(t *testing.T) {
	t.Parallel()

	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		return okResponse(req, "x"), nil
	})
	var dropped []string
	var mu sync.Mutex
	sp := &spider.Spider{
		Name:  "misrouted",
		Start: []string{"https://example.com/"},
		Parse: func(context.Context, *spider.Response) ([]spider.Output, error) {
			bad := spider.NewRequest("https://example.com/next", 0)
			bad.SessionID = "browser" // never registered
			return []spider.Output{spider.YieldRequest(bad)}, nil
		},
		OnError: func(req *spider.Request, _ error) {
			mu.Lock()
			dropped = append(dropped, req.URL)
			mu.Unlock()
		},
	}

	drv, err := driver.New(sp, reg, driver.Config{})
	require.NoError(t, err)
	res, err := drv.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"https://example.com/next"}, dropped)
	assert.Equal(t, int64(1), res.Stats.Requests)
	assert.Zero(t, res.Stats.Failures)
}

// TestRunPauseAndResume cancels a crawl mid-flight, then finishes it from
// the checkpoint with cumulative stats.
func TestRunPauseAndResume(t *testing.T) {
	t.Parallel()

	store := checkpoint.NewMemoryStore()
	const crawlID = "resume-me"
	seeds := []string{
		"https://example.com/1",
		"https://example.com/2",
		"https://example.com/3",
	}
	newSpider := func() *spider.Spider {
		return &spider.Spider{
			Name:  "pausable",
			Start: seeds,
			Parse: func(_ context.Context, resp *spider.Response) ([]spider.Output, error) {
				return []spider.Output{spider.YieldItem(resp.Request.URL)}, nil
			},
		}
	}

	started := make(chan struct{})
	var once sync.Once
	slowReg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		once.Do(func() { close(started) })
		time.Sleep(75 * time.Millisecond)
		return okResponse(req, "x"), nil
	})

	drv, err := driver.New(newSpider(), slowReg, driver.Config{
		CrawlID:            crawlID,
		ConcurrentRequests: 1,
		Checkpoints:        store,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-started
		cancel()
	}()
	res, err := drv.Run(ctx)
	require.NoError(t, err)
	require.True(t, res.Paused)
	require.Len(t, res.Items, 1) // the in-flight fetch finished

	cp, err := store.Load(context.Background(), crawlID)
	require.NoError(t, err)
	assert.Len(t, cp.Pending, 2)

	fastReg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		return okResponse(req, "x"), nil
	})
	resumed, err := driver.New(newSpider(), fastReg, driver.Config{
		CrawlID:     crawlID,
		Checkpoints: store,
	})
	require.NoError(t, err)
	res2, err := resumed.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res2.Paused)
	assert.Len(t, res2.Items, 2)
	assert.Equal(t, int64(3), res2.Stats.Requests) // restored plus resumed
	assert.Equal(t, int64(3), res2.Stats.Responses)

	_, err = store.Load(context.Background(), crawlID)
	assert.ErrorIs(t, err, checkpoint.ErrNotFound)
}

// TestRunRejectsForeignCheckpoint refuses to resume a checkpoint written by
// a different spider.
func TestRunRejectsForeignCheckpoint(t *testing.T) {
	t.Parallel()

	store := checkpoint.NewMemoryStore()
	cp := checkpoint.New("shared-id", "someone-else", nil, nil, stats.Snapshot{}, time.Now())
	require.NoError(t, store.Save(context.Background(), cp))

	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		return okResponse(req, "x"), nil
	})
	sp := &spider.Spider{
		Name:  "mine",
		Start: []string{"https://example.com/"},
		Parse: func(context.Context, *spider.Response) ([]spider.Output, error) {
			return nil, nil
		},
	}
	drv, err := driver.New(sp, reg, driver.Config{CrawlID: "shared-id", Checkpoints: store})
	require.NoError(t, err)

	_, err = drv.Run(context.Background())
	require.ErrorContains(t, err, "belongs to spider")
}

// TestRunResumeWithLostCallbackKeepsStatsIdentity resumes a checkpoint whose
// pending request names a callback the spider no longer has. The request must
// settle as issued-and-failed so requests still equal responses plus failures.
func TestRunResumeWithLostCallbackKeepsStatsIdentity(t *testing.T) {
	t.Parallel()

	store := checkpoint.NewMemoryStore()
	pending := spider.NewRequest("https://example.com/orphan", 0)
	pending.SessionID = "http"
	pending.Callback = "vanished"
	cp := checkpoint.New("lost-callback", "mine",
		[]*spider.Request{pending}, []string{pending.Fingerprint()},
		stats.Snapshot{}, time.Now())
	require.NoError(t, store.Save(context.Background(), cp))

	var fetches atomic.Int64
	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		fetches.Add(1)
		return okResponse(req, "x"), nil
	})
	sp := &spider.Spider{
		Name:  "mine",
		Start: []string{"https://example.com/orphan"},
		Parse: func(context.Context, *spider.Response) ([]spider.Output, error) {
			return nil, nil
		},
	}

	drv, err := driver.New(sp, reg, driver.Config{CrawlID: "lost-callback", Checkpoints: store})
	require.NoError(t, err)
	res, err := drv.Run(context.Background())
	require.NoError(t, err)

	assert.False(t, res.Paused)
	assert.Zero(t, fetches.Load())
	assert.Equal(t, int64(1), res.Stats.Requests)
	assert.Equal(t, int64(1), res.Stats.Failures)
	assert.Zero(t, res.Stats.Responses)
	assert.Equal(t, res.Stats.Requests, res.Stats.Responses+res.Stats.Failures)
}

// TestRunResponseInheritsRequestMeta carries request metadata onto the
// response handed to the callback, with fetcher-set keys taking precedence.
func TestRunResponseInheritsRequestMeta(t *testing.T) {
	t.Parallel()

	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		resp := okResponse(req, "x")
		resp.Meta = map[string]string{"via": "proxy"}
		return resp, nil
	})

	var mu sync.Mutex
	metas := map[string]map[string]string{}
	sp := &spider.Spider{
		Name:  "meta",
		Start: []string{"https://example.com/root"},
		Parse: func(_ context.Context, resp *spider.Response) ([]spider.Output, error) {
			mu.Lock()
			metas[resp.Request.URL] = resp.Meta
			mu.Unlock()
			if resp.Request.URL != "https://example.com/root" {
				return nil, nil
			}
			next := spider.NewRequest("https://example.com/leaf", 0)
			next.Meta = map[string]string{"depth": "1", "via": "request"}
			return []spider.Output{spider.YieldRequest(next)}, nil
		},
	}

	drv, err := driver.New(sp, reg, driver.Config{})
	require.NoError(t, err)
	_, err = drv.Run(context.Background())
	require.NoError(t, err)

	leaf := metas["https://example.com/leaf"]
	require.NotNil(t, leaf)
	assert.Equal(t, "1", leaf["depth"])
	assert.Equal(t, "proxy", leaf["via"], "fetcher-set key wins over inherited")
	assert.Equal(t, map[string]string{"via": "proxy"}, metas["https://example.com/root"])
}

// TestRunDeadlineFailsInFlight cancels slow fetches at the wall-time bound
// and leaves a resumable checkpoint.
func TestRunDeadlineFailsInFlight(t *testing.T) {
	t.Parallel()

	store := checkpoint.NewMemoryStore()
	reg := newHTTPRegistry(t, func(ctx context.Context, _ *spider.Request) (*spider.Response, error) {
		<-ctx.Done()
		// Give the deadline watcher time to mark the crawl paused before
		// this failure settles and the frontier drains.
		time.Sleep(20 * time.Millisecond)
		return nil, ctx.Err()
	})
	sp := &spider.Spider{
		Name:  "stuck",
		Start: []string{"https://example.com/tarpit"},
		Parse: func(context.Context, *spider.Response) ([]spider.Output, error) {
			return nil, nil
		},
	}

	drv, err := driver.New(sp, reg, driver.Config{
		CrawlID:     "deadline-crawl",
		Deadline:    50 * time.Millisecond,
		Checkpoints: store,
		Retry:       &driver.RetryPolicy{},
	})
	require.NoError(t, err)

	res, err := drv.Run(context.Background())
	require.NoError(t, err)

	assert.True(t, res.Paused)
	assert.Equal(t, int64(1), res.Stats.Failures)
	assert.Zero(t, res.Stats.Responses)

	_, err = store.Load(context.Background(), "deadline-crawl")
	assert.NoError(t, err)
}

// TestRunPerDomainDelaySpacing enforces the configured gap between fetches
// to the same host.
func TestRunPerDomainDelaySpacing(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	var stamps []time.Time
	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		mu.Lock()
		stamps = append(stamps, time.Now())
		mu.Unlock()
		return okResponse(req, "x"), nil
	})
	sp := &spider.Spider{
		Name:  "polite",
		Start: []string{"https://example.com/a", "https://example.com/b", "https://example.com/c"},
		Parse: func(context.Context, *spider.Response) ([]spider.Output, error) {
			return nil, nil
		},
	}

	drv, err := driver.New(sp, reg, driver.Config{
		ConcurrentRequests: 3,
		DownloadDelay:      40 * time.Millisecond,
	})
	require.NoError(t, err)
	start := time.Now()
	_, err = drv.Run(context.Background())
	require.NoError(t, err)

	require.Len(t, stamps, 3)
	// Three dispatches to one host need at least two full delay gaps.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

// TestDriverSingleUse rejects a second Run on the same driver.
func TestDriverSingleUse(t *testing.T) {
	t.Parallel()

	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		return okResponse(req, "x"), nil
	})
	sp := &spider.Spider{
		Name:  "once",
		Start: []string{"https://example.com/"},
		Parse: func(context.Context, *spider.Response) ([]spider.Output, error) {
			return nil, nil
		},
	}
	drv, err := driver.New(sp, reg, driver.Config{})
	require.NoError(t, err)

	_, err = drv.Run(context.Background())
	require.NoError(t, err)
	_, err = drv.Run(context.Background())
	require.ErrorContains(t, err, "single-use")
}

// TestNewValidatesSpider rejects spiders without a parse callback and
// crawls without sessions.
func TestNewValidatesSpider(t *testing.T) {
	t.Parallel()

	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		return okResponse(req, "x"), nil
	})

	_, err := driver.New(&spider.Spider{Start: []string{"https://example.com/"}}, reg, driver.Config{})
	require.ErrorIs(t, err, spider.ErrNoParse)

	sp := &spider.Spider{
		Name:  "orphan",
		Start: []string{"https://example.com/"},
		Parse: func(context.Context, *spider.Response) ([]spider.Output, error) {
			return nil, nil
		},
	}
	_, err = driver.New(sp, nil, driver.Config{})
	require.ErrorContains(t, err, "session")
}

// TestRunRejectsBadSeed fails fast on a seed URL without a host.
func TestRunRejectsBadSeed(t *testing.T) {
	t.Parallel()

	reg := newHTTPRegistry(t, func(_ context.Context, req *spider.Request) (*spider.Response, error) {
		return okResponse(req, "x"), nil
	})
	sp := &spider.Spider{
		Name:  "badseed",
		Start: []string{"not a url"},
		Parse: func(context.Context, *spider.Response) ([]spider.Output, error) {
			return nil, nil
		},
	}
	drv, err := driver.New(sp, reg, driver.Config{})
	require.NoError(t, err)

	_, err = drv.Run(context.Background())
	require.ErrorContains(t, err, "invalid start address")
}
