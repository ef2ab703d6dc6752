package sinks

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/spindlehq/spindle/internal/events"
)

// PrometheusSink exports crawl metrics via Prometheus. It owns all
// collectors for crawl lifecycle and per-host fetch counters.
type PrometheusSink struct {
	crawlsStarted   prometheus.Counter
	crawlsCompleted *prometheus.CounterVec
	crawlRuntime    *prometheus.HistogramVec

	fetchRequests *prometheus.CounterVec
	fetchBytes    *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec

	itemsDecided   *prometheus.CounterVec
	requestRetries prometheus.Counter
	requestFailed  prometheus.Counter
}

// NewPrometheusSink registers the collectors against the provided registry.
func NewPrometheusSink(reg prometheus.Registerer) (*PrometheusSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PrometheusSink{
		crawlsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spindle_crawls_started_total",
			Help: "Total crawls that have started.",
		}),
		crawlsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spindle_crawls_completed_total",
			Help: "Total crawls completed partitioned by result.",
		}, []string{"result"}),
		crawlRuntime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spindle_crawl_runtime_seconds",
			Help:    "Wall time per completed crawl.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		}, []string{"result"}),
		fetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spindle_fetch_requests_total",
			Help: "Fetch completions partitioned by host and status class.",
		}, []string{"host", "status_class"}),
		fetchBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spindle_fetch_bytes_total",
			Help: "Bytes downloaded per host.",
		}, []string{"host"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spindle_fetch_duration_seconds",
			Help:    "Fetch duration partitioned by host and status class.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
		}, []string{"host", "status_class"}),
		itemsDecided: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spindle_items_total",
			Help: "Items yielded partitioned by keep/drop decision.",
		}, []string{"decision"}),
		requestRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spindle_request_retries_total",
			Help: "Blocked or transiently failed requests requeued for retry.",
		}),
		requestFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "spindle_requests_failed_total",
			Help: "Requests that exhausted their retry budget.",
		}),
	}
	for _, collector := range []prometheus.Collector{
		s.crawlsStarted,
		s.crawlsCompleted,
		s.crawlRuntime,
		s.fetchRequests,
		s.fetchBytes,
		s.fetchDuration,
		s.itemsDecided,
		s.requestRetries,
		s.requestFailed,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register crawl collector: %w", err)
		}
	}
	return s, nil
}

// Consume updates the Prometheus collectors using the provided batch. It is
// safe for concurrent use by multiple goroutines.
func (s *PrometheusSink) Consume(_ context.Context, batch []events.Event) error {
	for _, evt := range batch {
		s.consumeEvent(evt)
	}
	return nil
}

func (s *PrometheusSink) consumeEvent(evt events.Event) {
	switch evt.Kind {
	case events.KindCrawlStart:
		s.crawlsStarted.Inc()
	case events.KindCrawlDone:
		s.crawlsCompleted.WithLabelValues("success").Inc()
		s.crawlRuntime.WithLabelValues("success").Observe(evt.Dur.Seconds())
	case events.KindCrawlError:
		s.crawlsCompleted.WithLabelValues("error").Inc()
		s.crawlRuntime.WithLabelValues("error").Observe(evt.Dur.Seconds())
	case events.KindFetchDone:
		class := string(evt.StatusClass)
		s.fetchRequests.WithLabelValues(evt.Host, class).Inc()
		s.fetchBytes.WithLabelValues(evt.Host).Add(float64(evt.Bytes))
		s.fetchDuration.WithLabelValues(evt.Host, class).Observe(evt.Dur.Seconds())
	case events.KindItemKept:
		s.itemsDecided.WithLabelValues("kept").Inc()
	case events.KindItemDropped:
		s.itemsDecided.WithLabelValues("dropped").Inc()
	case events.KindRequestRetried:
		s.requestRetries.Inc()
	case events.KindRequestFailed:
		s.requestFailed.Inc()
	}
}

// Close implements the Sink interface; collectors stay registered.
func (s *PrometheusSink) Close(context.Context) error {
	return nil
}
